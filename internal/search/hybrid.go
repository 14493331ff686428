package search

import (
	"context"
	"fmt"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/pleaseai/mcp-please/internal/toolsdata"
)

// RRFK is the Reciprocal Rank Fusion smoothing constant (spec §4.J "k=60").
const RRFK = 60

// HybridTopKMultiplier widens each sub-search's result window before fusion
// so RRF has enough candidates to re-rank from (spec §4.J "topKMultiplier=3 default").
const HybridTopKMultiplier = 3

// HybridStrategy fuses BM25 and Embedding rankings via Reciprocal Rank
// Fusion (spec §4.J "Hybrid/RRF" — "Composes BM25 and Embedding strategies").
type HybridStrategy struct {
	BM25      Strategy
	Embedding Strategy
}

// NewHybridStrategy composes bm25 and embed sub-strategies.
func NewHybridStrategy(bm25, embed Strategy) *HybridStrategy {
	return &HybridStrategy{BM25: bm25, Embedding: embed}
}

func (s *HybridStrategy) Initialize(ctx context.Context) error {
	if err := s.BM25.Initialize(ctx); err != nil {
		return err
	}
	return s.Embedding.Initialize(ctx)
}

func (s *HybridStrategy) Dispose() error {
	_ = s.BM25.Dispose()
	return s.Embedding.Dispose()
}

// Search requires at least one document with a stored embedding (fails fast
// otherwise with a guidance message), then runs BM25 and Embedding
// concurrently over a widened candidate window (threshold forced to 0 so
// RRF sees every sub-ranking) and fuses their rank positions via RRF,
// normalizing by the max fused score so the top hit scores 1.0 (spec
// §4.J/§9).
func (s *HybridStrategy) Search(ctx context.Context, tools []toolsdata.IndexedTool, q Query) ([]Hit, error) {
	var anyEmbedded bool
	for _, t := range tools {
		if len(t.Embedding) > 0 {
			anyEmbedded = true
			break
		}
	}
	if !anyEmbedded {
		return nil, fmt.Errorf("hybrid search unavailable: No tools with embeddings are present in this index; run \"please index --provider <location:model>\" to build one")
	}

	subQuery := q
	subQuery.Threshold = 0
	if q.TopK > 0 {
		subQuery.TopK = q.TopK * HybridTopKMultiplier
	}

	var bm25Hits, embedHits []Hit
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		hits, err := s.BM25.Search(gctx, tools, subQuery)
		if err != nil {
			return fmt.Errorf("hybrid: bm25 sub-search failed: %w", err)
		}
		bm25Hits = hits
		return nil
	})
	g.Go(func() error {
		hits, err := s.Embedding.Search(gctx, tools, subQuery)
		if err != nil {
			return fmt.Errorf("hybrid: embedding sub-search failed: %w", err)
		}
		embedHits = hits
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	fused := reciprocalRankFusion(map[string][]Hit{
		"bm25":      bm25Hits,
		"embedding": embedHits,
	})

	sort.SliceStable(fused, func(i, j int) bool {
		return fused[i].Score > fused[j].Score
	})

	fused = normalizeByMax(fused)
	return applyTopKAndThreshold(fused, q), nil
}

// reciprocalRankFusion combines multiple ranked lists into one, scoring
// each document by sum(1 / (k + rank + 1)) across every list it appears in
// (spec §4.J "RRF, k=60"; §8 "a tool at rank 0 in both sub-results has
// unnormalized RRF score 2/(k+1)").
func reciprocalRankFusion(rankings map[string][]Hit) []Hit {
	scores := make(map[string]float64)
	tools := make(map[string]toolsdata.IndexedTool)

	for _, hits := range rankings {
		for rank, h := range hits {
			key := h.Tool.Tool.Name
			scores[key] += 1.0 / float64(RRFK+rank+1)
			tools[key] = h.Tool
		}
	}

	out := make([]Hit, 0, len(scores))
	for key, score := range scores {
		out = append(out, Hit{Tool: tools[key], Score: score, MatchType: "hybrid"})
	}
	return out
}
