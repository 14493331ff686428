package search

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/pleaseai/mcp-please/internal/embedding"
	"github.com/pleaseai/mcp-please/internal/toolsdata"
)

// EmbeddingStrategy ranks tools by cosine similarity between the query's
// embedding and each tool's stored embedding (spec §4.J "Embedding").
type EmbeddingStrategy struct {
	Provider embedding.Provider
}

// NewEmbeddingStrategy builds an EmbeddingStrategy backed by provider.
func NewEmbeddingStrategy(provider embedding.Provider) *EmbeddingStrategy {
	return &EmbeddingStrategy{Provider: provider}
}

func (s *EmbeddingStrategy) Initialize(ctx context.Context) error {
	return s.Provider.Initialize(ctx)
}

func (s *EmbeddingStrategy) Dispose() error { return s.Provider.Dispose() }

// Search embeds the query and compares it against every tool with a stored
// embedding. Tools without embeddings are skipped. If no tool in the
// corpus has an embedding at all, Search returns a descriptive error naming
// that so callers/CLI can surface "No tools with embeddings" guidance
// (spec §8 scenario 3).
func (s *EmbeddingStrategy) Search(ctx context.Context, tools []toolsdata.IndexedTool, q Query) ([]Hit, error) {
	var anyEmbedded bool
	for _, t := range tools {
		if len(t.Embedding) > 0 {
			anyEmbedded = true
			break
		}
	}
	if !anyEmbedded {
		return nil, fmt.Errorf("embedding search unavailable: No tools with embeddings are present in this index; run \"please index --provider <location:model>\" to build one")
	}

	queryVec, err := s.Provider.Embed(ctx, q.Text)
	if err != nil {
		return nil, fmt.Errorf("search: embed query: %w", err)
	}

	var hits []Hit
	for _, tool := range tools {
		if len(tool.Embedding) == 0 {
			continue
		}
		if len(tool.Embedding) != len(queryVec) {
			return nil, fmt.Errorf("search: dimension mismatch, query has %d dims but %q has %d", len(queryVec), tool.Tool.Name, len(tool.Embedding))
		}
		sim := cosineSimilarity(queryVec, tool.Embedding)
		// Map cosine similarity [-1, 1] into [0, 1] (spec §4.J).
		score := (sim + 1) / 2
		hits = append(hits, Hit{Tool: tool, Score: score, MatchType: "embedding"})
	}

	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Score > hits[j].Score
	})

	hits = normalizeByMax(hits)
	return applyTopKAndThreshold(hits, q), nil
}

func cosineSimilarity(a, b []float32) float64 {
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
