package search

import (
	"context"
	"math"
	"sort"

	"github.com/pleaseai/mcp-please/internal/indexer"
	"github.com/pleaseai/mcp-please/internal/toolsdata"
)

// BM25 parameters (Okapi BM25, spec §4.J): k1 controls term-frequency
// saturation, b controls document-length normalization strength.
const (
	bm25K1 = 1.5
	bm25B  = 0.75
)

// BM25Strategy ranks tools by Okapi BM25 score against corpus-wide
// statistics computed at index-build time.
type BM25Strategy struct {
	Stats indexer.CorpusStats
}

// NewBM25Strategy builds a BM25Strategy over the given corpus statistics.
func NewBM25Strategy(stats indexer.CorpusStats) *BM25Strategy {
	return &BM25Strategy{Stats: stats}
}

func (s *BM25Strategy) Initialize(_ context.Context) error { return nil }
func (s *BM25Strategy) Dispose() error                      { return nil }

// Search scores every tool by summed BM25 term scores over the query's
// tokens, drops zero-score documents, normalizes by the maximum score, then
// applies threshold/topK (spec §4.J "BM25").
func (s *BM25Strategy) Search(_ context.Context, tools []toolsdata.IndexedTool, q Query) ([]Hit, error) {
	queryTokens := indexer.Tokenize(q.Text)
	if len(queryTokens) == 0 {
		return nil, nil
	}

	n := float64(s.Stats.TotalDocuments)
	if n == 0 {
		n = float64(len(tools))
	}
	avgDocLen := s.Stats.AvgDocLength
	if avgDocLen == 0 {
		avgDocLen = averageLength(tools)
	}
	docFreq := s.Stats.DocumentFrequency
	if len(docFreq) == 0 {
		docFreq = documentFrequency(tools)
	}

	var hits []Hit
	for _, tool := range tools {
		score := bm25Score(tool.Tokens, queryTokens, docFreq, n, avgDocLen)
		if score <= 0 {
			continue
		}
		hits = append(hits, Hit{Tool: tool, Score: score, MatchType: "bm25"})
	}

	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Score > hits[j].Score
	})

	hits = normalizeByMax(hits)
	return applyTopKAndThreshold(hits, q), nil
}

func bm25Score(docTokens, queryTokens []string, docFreq map[string]int, n, avgDocLen float64) float64 {
	termCounts := make(map[string]int, len(docTokens))
	for _, t := range docTokens {
		termCounts[t]++
	}
	docLen := float64(len(docTokens))
	if docLen == 0 {
		docLen = 1
	}
	if avgDocLen == 0 {
		avgDocLen = 1
	}

	var total float64
	seen := make(map[string]bool, len(queryTokens))
	for _, qt := range queryTokens {
		if seen[qt] {
			continue
		}
		seen[qt] = true

		tf := float64(termCounts[qt])
		if tf == 0 {
			continue
		}
		df := float64(docFreq[qt])
		if df == 0 {
			df = 1
		}
		idf := math.Log(1 + (n-df+0.5)/(df+0.5))
		numerator := tf * (bm25K1 + 1)
		denominator := tf + bm25K1*(1-bm25B+bm25B*(docLen/avgDocLen))
		total += idf * (numerator / denominator)
	}
	return total
}

// documentFrequency counts, for each term, how many documents in tools
// contain it at least once — the same on-the-fly corpus statistic
// indexer.computeCorpusStats computes at build time, recomputed here for
// callers that construct a BM25Strategy without injected stats (spec §4.J
// "computed from the passed-in documents on the fly").
func documentFrequency(tools []toolsdata.IndexedTool) map[string]int {
	df := make(map[string]int)
	for _, tool := range tools {
		seen := make(map[string]bool, len(tool.Tokens))
		for _, tok := range tool.Tokens {
			if seen[tok] {
				continue
			}
			seen[tok] = true
			df[tok]++
		}
	}
	return df
}

func averageLength(tools []toolsdata.IndexedTool) float64 {
	if len(tools) == 0 {
		return 0
	}
	var total int
	for _, t := range tools {
		total += len(t.Tokens)
	}
	return float64(total) / float64(len(tools))
}
