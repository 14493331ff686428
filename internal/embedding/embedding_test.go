package embedding

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func vectorNorm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

// Invariant (spec §8): an embedding's L2 norm is approximately 1 within 1e-2.
func TestLocalProviderEmbeddingsAreUnitNorm(t *testing.T) {
	p, err := New(Config{Tag: "local:general"})
	require.NoError(t, err)
	require.NoError(t, p.Initialize(context.Background()))

	vec, err := p.Embed(context.Background(), "read a file from disk")
	require.NoError(t, err)
	assert.Len(t, vec, generalDimension)
	assert.InDelta(t, 1.0, vectorNorm(vec), 1e-2)
}

func TestLocalProviderIsDeterministic(t *testing.T) {
	p, err := New(Config{Tag: "local:retrieval"})
	require.NoError(t, err)

	v1, err := p.Embed(context.Background(), "git commit changes")
	require.NoError(t, err)
	v2, err := p.Embed(context.Background(), "git commit changes")
	require.NoError(t, err)
	assert.Equal(t, v1, v2)
}

func TestLocalProviderEmbedBatchPreservesOrder(t *testing.T) {
	p, err := New(Config{Tag: "local:general"})
	require.NoError(t, err)

	texts := []string{"alpha", "beta", "gamma"}
	batch, err := p.EmbedBatch(context.Background(), texts)
	require.NoError(t, err)
	require.Len(t, batch, len(texts))
	for i, text := range texts {
		single, err := p.Embed(context.Background(), text)
		require.NoError(t, err)
		assert.Equal(t, single, batch[i])
	}
}

// Matryoshka truncation keeps the first dims components and renormalizes to
// unit length (spec §4.A).
func TestTruncateKeepsPrefixAndRenormalizes(t *testing.T) {
	vec := []float32{3, 4, 0, 0}
	out := Truncate(vec, 2)
	require.Len(t, out, 2)
	assert.InDelta(t, 1.0, vectorNorm(out), 1e-6)
	assert.InDelta(t, 0.6, out[0], 1e-6)
	assert.InDelta(t, 0.8, out[1], 1e-6)
}

func TestTruncateNoopWhenDimsNotSmaller(t *testing.T) {
	vec := []float32{1, 0, 0}
	assert.Equal(t, vec, Truncate(vec, 0))
	assert.Equal(t, vec, Truncate(vec, 3))
	assert.Equal(t, vec, Truncate(vec, 10))
}

func TestTruncateZeroVectorStaysZero(t *testing.T) {
	vec := []float32{0, 0, 0, 0}
	out := Truncate(vec, 2)
	assert.Equal(t, []float32{0, 0}, out)
}

func TestLocalProviderHonorsConfiguredTruncation(t *testing.T) {
	p, err := New(Config{Tag: "local:general", Dimensions: 64})
	require.NoError(t, err)
	assert.Equal(t, 64, p.Dimension())

	vec, err := p.Embed(context.Background(), "truncated dimensions")
	require.NoError(t, err)
	assert.Len(t, vec, 64)
	assert.InDelta(t, 1.0, vectorNorm(vec), 1e-2)
}

func TestNewUnknownTagErrors(t *testing.T) {
	_, err := New(Config{Tag: "nonexistent:model"})
	assert.Error(t, err)
}

func TestNewResolvesByLocationPrefix(t *testing.T) {
	p, err := New(Config{Tag: "openai:text-embedding-3-small", APIKey: "placeholder"})
	require.NoError(t, err)
	assert.Equal(t, openaiDimension, p.Dimension())
}
