// Package search implements the Search Strategies and Orchestrator (spec
// §4.J/§4.K): Regex, BM25, Embedding, and Hybrid (RRF) ranking over a set of
// indexed tools, dispatched by mode.
package search

import (
	"context"
	"fmt"
	"time"

	"github.com/pleaseai/mcp-please/internal/metrics"
	"github.com/pleaseai/mcp-please/internal/toolsdata"
)

// Mode selects a search strategy.
type Mode string

const (
	ModeRegex     Mode = "regex"
	ModeBM25      Mode = "bm25"
	ModeEmbedding Mode = "embedding"
	ModeHybrid    Mode = "hybrid"
)

// Hit is one scored result. Score is normalized to [0, 1] by every
// strategy, with the top hit always scoring exactly 1.0 when there is at
// least one result (spec §8 "results[0].score = 1.0"). MatchType names the
// strategy that produced the hit (spec §4.J result shape).
type Hit struct {
	Tool      toolsdata.IndexedTool `json:"tool"`
	Score     float64               `json:"score"`
	MatchType string                `json:"matchType"`
}

// Query parameterizes a single search call.
type Query struct {
	Text      string
	TopK      int
	Threshold float64
}

// Strategy is the contract every search mode implements (spec §4.J).
type Strategy interface {
	Initialize(ctx context.Context) error
	Search(ctx context.Context, tools []toolsdata.IndexedTool, q Query) ([]Hit, error)
	Dispose() error
}

// Result is the Orchestrator's output: hits plus the wall-clock duration of
// the search (spec §4.K).
type Result struct {
	Hits     []Hit
	Mode     Mode
	Duration time.Duration
}

// Orchestrator dispatches a Query to the Strategy registered for a Mode.
type Orchestrator struct {
	strategies map[Mode]Strategy
}

// NewOrchestrator builds an Orchestrator with the given strategies wired by mode.
func NewOrchestrator(strategies map[Mode]Strategy) *Orchestrator {
	return &Orchestrator{strategies: strategies}
}

// Search times and dispatches q against tools using mode (spec §4.K "mode
// dispatch, wall-clock timing, unknown-mode hard error").
func (o *Orchestrator) Search(ctx context.Context, mode Mode, tools []toolsdata.IndexedTool, q Query) (*Result, error) {
	strategy, ok := o.strategies[mode]
	if !ok {
		return nil, fmt.Errorf("search: unknown mode %q", mode)
	}

	start := time.Now()
	hits, err := strategy.Search(ctx, tools, q)
	elapsed := time.Since(start)
	metrics.SearchDuration.WithLabelValues(string(mode)).Observe(elapsed.Seconds())
	if err != nil {
		metrics.SearchTotal.WithLabelValues(string(mode), metrics.OutcomeError).Inc()
		return nil, err
	}
	metrics.SearchTotal.WithLabelValues(string(mode), metrics.OutcomeSuccess).Inc()
	return &Result{Hits: hits, Mode: mode, Duration: elapsed}, nil
}

// normalizeByMax divides every score by the maximum score in hits so the
// top hit scores exactly 1.0 (spec §8/§9: the "faithful" normalization,
// made mandatory by the testable property that results[0].score == 1.0 for
// every strategy, not merely an optional replica of the original).
func normalizeByMax(hits []Hit) []Hit {
	if len(hits) == 0 {
		return hits
	}
	max := hits[0].Score
	for _, h := range hits[1:] {
		if h.Score > max {
			max = h.Score
		}
	}
	if max <= 0 {
		return hits
	}
	out := make([]Hit, len(hits))
	for i, h := range hits {
		out[i] = Hit{Tool: h.Tool, Score: h.Score / max, MatchType: h.MatchType}
	}
	return out
}

func applyTopKAndThreshold(hits []Hit, q Query) []Hit {
	filtered := hits[:0:0]
	for _, h := range hits {
		if h.Score > q.Threshold {
			filtered = append(filtered, h)
		}
	}
	if q.TopK > 0 && len(filtered) > q.TopK {
		filtered = filtered[:q.TopK]
	}
	return filtered
}
