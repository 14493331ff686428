// Package indexer implements the Index Builder (spec §4.G): it flattens
// tool definitions into searchable text, tokenizes them, computes BM25
// corpus statistics, and optionally embeds them in batches.
package indexer

import (
	"context"
	"fmt"

	"github.com/cenkalti/backoff/v5"

	"github.com/pleaseai/mcp-please/internal/embedding"
	"github.com/pleaseai/mcp-please/internal/logger"
	"github.com/pleaseai/mcp-please/internal/toolsdata"
)

// embedBatchMaxTries bounds retries of a single embedding batch call against
// a remote provider's transient failures (rate limits, timeouts).
const embedBatchMaxTries = 3

// EmbeddingBatchSize bounds how many texts are embedded per provider call
// (spec §4.G "batch-of-32 embedding").
const EmbeddingBatchSize = 32

// Phase identifies an index-build sub-step for progress reporting.
type Phase string

const (
	PhaseFlattening Phase = "flattening"
	PhaseEmbedding  Phase = "embedding"
	PhaseDone       Phase = "done"
)

// Progress reports build progress; Total/Completed apply to PhaseEmbedding.
type Progress struct {
	Phase     Phase
	Completed int
	Total     int
}

// ProgressFunc receives build progress events; nil is a valid no-op callback.
type ProgressFunc func(Progress)

// CorpusStats are the BM25 statistics computed over an entire index (spec §4.G/§4.J).
type CorpusStats struct {
	TotalDocuments  int            `json:"totalDocuments"`
	AvgDocLength    float64        `json:"avgDocLength"`
	DocumentFrequency map[string]int `json:"documentFrequency"`
}

// Options configures a build.
type Options struct {
	// Provider, when non-nil, is used to embed each tool's searchable text.
	Provider   embedding.Provider
	OnProgress ProgressFunc
}

// Result is the output of a build: one IndexedTool per input definition plus
// corpus-wide BM25 statistics.
type Result struct {
	Tools []toolsdata.IndexedTool
	Stats CorpusStats
}

// Build flattens, tokenizes, and (optionally) embeds every definition in
// defs, returning the combined result (spec §4.G "Build").
func Build(ctx context.Context, defs []toolsdata.ToolDefinition, opts Options) (*Result, error) {
	report := func(p Progress) {
		if opts.OnProgress != nil {
			opts.OnProgress(p)
		}
	}

	report(Progress{Phase: PhaseFlattening, Total: len(defs)})

	indexed := make([]toolsdata.IndexedTool, len(defs))
	for i, def := range defs {
		text := SearchableText(def)
		indexed[i] = toolsdata.IndexedTool{
			Tool:           def,
			SearchableText: text,
			Tokens:         Tokenize(text),
		}
	}

	if opts.Provider != nil {
		if err := embedAll(ctx, indexed, opts.Provider, report); err != nil {
			return nil, err
		}
	}

	report(Progress{Phase: PhaseDone, Total: len(defs), Completed: len(defs)})

	return &Result{
		Tools: indexed,
		Stats: computeCorpusStats(indexed),
	}, nil
}

func embedAll(ctx context.Context, indexed []toolsdata.IndexedTool, provider embedding.Provider, report func(Progress)) error {
	if err := provider.Initialize(ctx); err != nil {
		return fmt.Errorf("indexer: initialize embedding provider: %w", err)
	}

	total := len(indexed)
	for start := 0; start < total; start += EmbeddingBatchSize {
		end := start + EmbeddingBatchSize
		if end > total {
			end = total
		}
		batch := make([]string, end-start)
		for i := range batch {
			batch[i] = indexed[start+i].SearchableText
		}

		vectors, err := backoff.Retry(ctx, func() ([][]float32, error) {
			return provider.EmbedBatch(ctx, batch)
		}, backoff.WithMaxTries(embedBatchMaxTries), backoff.WithBackOff(backoff.NewExponentialBackOff()))
		if err != nil {
			return fmt.Errorf("indexer: embed batch [%d:%d]: %w", start, end, err)
		}
		if len(vectors) != len(batch) {
			return fmt.Errorf("indexer: embedding provider returned %d vectors for %d inputs", len(vectors), len(batch))
		}
		for i, v := range vectors {
			indexed[start+i].Embedding = v
		}

		report(Progress{Phase: PhaseEmbedding, Completed: end, Total: total})
		logger.Debugf("indexer: embedded %d/%d tools", end, total)
	}
	return nil
}

// computeCorpusStats computes BM25 corpus-level statistics: total document
// count, average document length in tokens, and per-term document frequency
// (spec §4.G/§4.J "BM25 corpus statistics").
func computeCorpusStats(indexed []toolsdata.IndexedTool) CorpusStats {
	stats := CorpusStats{
		TotalDocuments:    len(indexed),
		DocumentFrequency: make(map[string]int),
	}
	if len(indexed) == 0 {
		return stats
	}

	var totalLength int
	for _, tool := range indexed {
		totalLength += len(tool.Tokens)
		seen := make(map[string]bool, len(tool.Tokens))
		for _, tok := range tool.Tokens {
			if seen[tok] {
				continue
			}
			seen[tok] = true
			stats.DocumentFrequency[tok]++
		}
	}
	stats.AvgDocLength = float64(totalLength) / float64(len(indexed))
	return stats
}
