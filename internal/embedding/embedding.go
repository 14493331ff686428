// Package embedding implements the Embedding Provider contract (spec §4.A):
// a small registry of "location:model" backed providers, each offering
// initialize/embed/embedBatch/dispose, with optional Matryoshka truncation.
package embedding

import (
	"context"
	"fmt"
	"math"
	"strings"
)

// Quantization is a hint consumed by local providers; remote providers ignore it.
type Quantization string

const (
	QuantFP32 Quantization = "fp32"
	QuantFP16 Quantization = "fp16"
	QuantQ8   Quantization = "q8"
	QuantQ4F16 Quantization = "q4f16"
	QuantQ4   Quantization = "q4"
)

// Config selects and configures a provider.
type Config struct {
	// Tag is "location:model", e.g. "local:general", "local:retrieval",
	// "openai:text-embedding-3-small", "voyage:voyage-3".
	Tag          string
	Quantization Quantization
	// Dimensions truncates the provider's native dimensionality via
	// Matryoshka Representation Learning truncation+renormalization when
	// non-zero and smaller than the native size (spec §4.A).
	Dimensions int
	// APIKey overrides environment-derived credentials for remote providers.
	APIKey string
}

// Provider is the embedding contract every backend implements.
type Provider interface {
	// Initialize prepares the provider (loading local weights, validating
	// remote credentials). Implementations must tolerate repeated calls.
	Initialize(ctx context.Context) error
	// Embed returns a single vector for text.
	Embed(ctx context.Context, text string) ([]float32, error)
	// EmbedBatch returns one vector per input text, preserving order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	// Dimension reports the vector length this provider returns.
	Dimension() int
	// Dispose releases any held resources.
	Dispose() error
}

// Factory builds a Provider from a Config. Custom factories may be
// registered at runtime via Register (spec §4.A "runtime-custom-factory support").
type Factory func(cfg Config) (Provider, error)

var registry = map[string]Factory{
	"local:general":   func(cfg Config) (Provider, error) { return newLocalProvider(cfg, generalDimension) },
	"local:retrieval": func(cfg Config) (Provider, error) { return newLocalProvider(cfg, retrievalDimension) },
	"openai":          func(cfg Config) (Provider, error) { return newOpenAIProvider(cfg) },
	"voyage":          func(cfg Config) (Provider, error) { return newVoyageProvider(cfg) },
}

// Register installs or overrides a factory for the given location prefix
// (the part of Tag before ':', or the full tag for exact matches).
func Register(key string, factory Factory) {
	registry[key] = factory
}

// New resolves cfg.Tag to a concrete Provider.
//
// Resolution order: exact tag match, then location-prefix match (text before
// the first ':'), else an error naming the unknown tag.
func New(cfg Config) (Provider, error) {
	if factory, ok := registry[cfg.Tag]; ok {
		return factory(cfg)
	}
	location, _, _ := strings.Cut(cfg.Tag, ":")
	if factory, ok := registry[location]; ok {
		return factory(cfg)
	}
	return nil, fmt.Errorf("embedding: unknown provider tag %q", cfg.Tag)
}

// Truncate applies Matryoshka Representation Learning truncation:  keep the
// first dims components and renormalize to unit length (spec §4.A). If dims
// is <= 0 or >= len(vec), vec is returned unmodified.
func Truncate(vec []float32, dims int) []float32 {
	if dims <= 0 || dims >= len(vec) {
		return vec
	}
	out := make([]float32, dims)
	copy(out, vec[:dims])

	var sumSquares float64
	for _, v := range out {
		sumSquares += float64(v) * float64(v)
	}
	if sumSquares == 0 {
		return out
	}
	norm := math.Sqrt(sumSquares)
	for i, v := range out {
		out[i] = float32(float64(v) / norm)
	}
	return out
}
