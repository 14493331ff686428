package search

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pleaseai/mcp-please/internal/indexer"
	"github.com/pleaseai/mcp-please/internal/toolsdata"
)

func indexedTool(name, description string) toolsdata.IndexedTool {
	def := toolsdata.ToolDefinition{Name: name, Description: description}
	text := indexer.SearchableText(def)
	return toolsdata.IndexedTool{
		Tool:           def,
		SearchableText: text,
		Tokens:         indexer.Tokenize(text),
	}
}

// Scenario 1: BM25 top hit.
func TestBM25TopHit(t *testing.T) {
	tools := []toolsdata.IndexedTool{
		indexedTool("read_file", "Read a file"),
		indexedTool("write_file", "Write a file"),
		indexedTool("git_commit", "Git commit"),
	}
	stats := indexer.CorpusStats{}
	strategy := NewBM25Strategy(stats)

	hits, err := strategy.Search(context.Background(), tools, Query{Text: "file", TopK: 2})
	require.NoError(t, err)
	require.Len(t, hits, 2)

	names := map[string]bool{hits[0].Tool.Tool.Name: true, hits[1].Tool.Tool.Name: true}
	assert.True(t, names["read_file"])
	assert.True(t, names["write_file"])
	assert.InDelta(t, 1.0, hits[0].Score, 1e-9)
}

func TestBM25EmptyQueryYieldsNoResults(t *testing.T) {
	tools := []toolsdata.IndexedTool{indexedTool("read_file", "Read a file")}
	strategy := NewBM25Strategy(indexer.CorpusStats{})

	hits, err := strategy.Search(context.Background(), tools, Query{Text: "   "})
	require.NoError(t, err)
	assert.Empty(t, hits)
}

// Scenario 2: regex literal fallback.
func TestRegexLiteralFallback(t *testing.T) {
	tools := []toolsdata.IndexedTool{
		indexedTool("read_file", "Read a file"),
		indexedTool("write_file", "Write a file"),
	}
	strategy := NewRegexStrategy()

	hits, err := strategy.Search(context.Background(), tools, Query{Text: "read.*"})
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	assert.Equal(t, "read_file", hits[0].Tool.Tool.Name)

	hits, err = strategy.Search(context.Background(), tools, Query{Text: "read("})
	require.NoError(t, err)
	assert.Empty(t, hits)
}

// Scenario 3: embedding search fails with a descriptive message when the
// corpus has no embeddings at all.
func TestEmbeddingUnavailable(t *testing.T) {
	tools := []toolsdata.IndexedTool{indexedTool("read_file", "Read a file")}
	strategy := NewEmbeddingStrategy(nil)

	_, err := strategy.Search(context.Background(), tools, Query{Text: "read a file"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "No tools with embeddings")
}

// Scenario 4: hybrid fusion composition. BM25 ranks A,B,C; embedding ranks
// C,B,A. A and C each hold one rank-0 and one rank-2 placement, B holds
// rank-1 in both. Reciprocal rank fusion's term 1/(k+rank+1) is convex in
// rank, so by Jensen's inequality the rank-0-and-rank-2 split (A, C)
// strictly outscores the double-rank-1 placement (B) for any finite k, and
// A and C tie exactly by construction.
func TestHybridFusionComposition(t *testing.T) {
	bm25 := stubStrategy{order: []string{"A", "B", "C"}}
	embed := stubStrategy{order: []string{"C", "B", "A"}}

	tools := []toolsdata.IndexedTool{
		indexedTool("A", ""), indexedTool("B", ""), indexedTool("C", ""),
	}
	for i := range tools {
		tools[i].Embedding = []float32{1, 0}
	}

	hybrid := NewHybridStrategy(bm25, embed)
	hits, err := hybrid.Search(context.Background(), tools, Query{Text: "x", TopK: 10})
	require.NoError(t, err)
	require.Len(t, hits, 3)

	scores := make(map[string]float64, 3)
	for _, h := range hits {
		scores[h.Tool.Tool.Name] = h.Score
	}
	assert.Greater(t, scores["A"], scores["B"])
	assert.InDelta(t, scores["A"], scores["C"], 1e-9)
	assert.InDelta(t, 1.0, scores["A"], 1e-9)
}

// stubStrategy returns a fixed ranking (in order) regardless of the query,
// used to pin down RRF's fusion arithmetic independently of BM25/embedding
// scoring details.
type stubStrategy struct {
	order []string
}

func (s stubStrategy) Initialize(context.Context) error { return nil }
func (s stubStrategy) Dispose() error                   { return nil }
func (s stubStrategy) Search(_ context.Context, tools []toolsdata.IndexedTool, _ Query) ([]Hit, error) {
	byName := make(map[string]toolsdata.IndexedTool, len(tools))
	for _, t := range tools {
		byName[t.Tool.Name] = t
	}
	hits := make([]Hit, 0, len(s.order))
	for i, name := range s.order {
		hits = append(hits, Hit{Tool: byName[name], Score: 1.0 - float64(i)*0.1})
	}
	return hits, nil
}

func TestHybridRequiresEmbeddings(t *testing.T) {
	bm25 := stubStrategy{order: []string{"A"}}
	embed := stubStrategy{order: []string{"A"}}
	tools := []toolsdata.IndexedTool{indexedTool("A", "")}

	hybrid := NewHybridStrategy(bm25, embed)
	_, err := hybrid.Search(context.Background(), tools, Query{Text: "x", TopK: 10})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "No tools with embeddings")
}

func TestOrchestratorUnknownMode(t *testing.T) {
	orch := NewOrchestrator(map[Mode]Strategy{ModeBM25: NewBM25Strategy(indexer.CorpusStats{})})
	_, err := orch.Search(context.Background(), Mode("nonsense"), nil, Query{Text: "x"})
	assert.Error(t, err)
}

func TestNormalizeByMaxTopScoreIsOne(t *testing.T) {
	hits := []Hit{{Score: 4}, {Score: 2}, {Score: 1}}
	out := normalizeByMax(hits)
	assert.InDelta(t, 1.0, out[0].Score, 1e-9)
	assert.InDelta(t, 0.5, out[1].Score, 1e-9)
}

func TestApplyTopKAndThreshold(t *testing.T) {
	hits := []Hit{{Score: 0.9}, {Score: 0.5}, {Score: 0.1}}
	out := applyTopKAndThreshold(hits, Query{TopK: 2, Threshold: 0.2})
	require.Len(t, out, 2)
	assert.InDelta(t, 0.9, out[0].Score, 1e-9)
}
