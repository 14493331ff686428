package gateway

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pleaseai/mcp-please/internal/search"
)

func TestAvailableModesWithoutEmbeddings(t *testing.T) {
	merged := &MergedIndex{HasEmbeddings: false}
	modes := AvailableModes(merged)
	assert.Contains(t, modes, search.ModeRegex)
	assert.Contains(t, modes, search.ModeBM25)
	assert.NotContains(t, modes, search.ModeEmbedding)
	assert.NotContains(t, modes, search.ModeHybrid)
}

func TestAvailableModesWithEmbeddings(t *testing.T) {
	merged := &MergedIndex{HasEmbeddings: true}
	modes := AvailableModes(merged)
	assert.Contains(t, modes, search.ModeEmbedding)
	assert.Contains(t, modes, search.ModeHybrid)
}

func TestOrchestratorForWithoutEmbeddingsOmitsEmbeddingModes(t *testing.T) {
	merged := &MergedIndex{HasEmbeddings: false}
	orch, err := OrchestratorFor(merged)
	require.NoError(t, err)
	require.NotNil(t, orch)
}

func TestOrchestratorForWithUnknownEmbeddingTagErrors(t *testing.T) {
	merged := &MergedIndex{HasEmbeddings: true, EmbeddingTag: "nonexistent:model"}
	_, err := OrchestratorFor(merged)
	assert.Error(t, err)
}

func TestOrchestratorForWithLocalEmbeddingTagSucceeds(t *testing.T) {
	merged := &MergedIndex{HasEmbeddings: true, EmbeddingTag: "local:general"}
	orch, err := OrchestratorFor(merged)
	require.NoError(t, err)
	require.NotNil(t, orch)
}
