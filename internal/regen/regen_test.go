package regen

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pleaseai/mcp-please/internal/config"
	"github.com/pleaseai/mcp-please/internal/indexer"
	"github.com/pleaseai/mcp-please/internal/indexstore"
)

func writeDoc(t *testing.T, path, mode, embeddingTag, quantization string, fingerprints map[config.Scope]config.Fingerprint) {
	t.Helper()
	doc := indexstore.NewDocument(&indexer.Result{Stats: indexer.CorpusStats{DocumentFrequency: map[string]int{}}}, mode, embeddingTag, quantization, nil, fingerprints)
	require.NoError(t, indexstore.Save(path, doc))
}

func TestCheckMissingIndexNeedsRebuild(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.json")
	needsRebuild, reasons := Check(Inputs{IndexPath: path})
	assert.True(t, needsRebuild)
	assert.Contains(t, reasons, "index file does not exist")
}

// Scenario 5: regeneration on dtype change.
func TestCheckDtypeChangeTriggersRebuild(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.json")
	writeDoc(t, path, "hybrid", "local:general", "fp32", nil)

	needsRebuild, reasons := Check(Inputs{
		IndexPath:    path,
		Mode:         "hybrid",
		EmbeddingTag: "local:general",
		Quantization: "fp16",
	})

	assert.True(t, needsRebuild)
	found := false
	for _, r := range reasons {
		if strings.Contains(r, "Model dtype changed") {
			found = true
		}
	}
	assert.True(t, found, "expected a reason containing %q, got %v", "Model dtype changed", reasons)
}

func TestCheckNoChangesNoRebuild(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.json")
	fp := map[config.Scope]config.Fingerprint{
		config.ScopeProject: {Exists: true, Hash: "aaa"},
	}
	writeDoc(t, path, "hybrid", "local:general", "fp32", fp)

	needsRebuild, reasons := Check(Inputs{
		IndexPath:    path,
		Mode:         "hybrid",
		EmbeddingTag: "local:general",
		Quantization: "fp32",
		Fingerprints: fp,
	})

	assert.False(t, needsRebuild)
	assert.Empty(t, reasons)
}

func TestCheckReturnsTrueIffReasonsNonEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.json")
	writeDoc(t, path, "bm25", "", "", nil)

	needsRebuild, reasons := Check(Inputs{IndexPath: path, Mode: "bm25"})
	assert.Equal(t, len(reasons) > 0, needsRebuild)
}

func TestFingerprintTransitions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.json")
	prior := map[config.Scope]config.Fingerprint{
		config.ScopeProject: {Exists: true, Hash: "aaa"},
	}
	writeDoc(t, path, "bm25", "", "", prior)

	after := map[config.Scope]config.Fingerprint{
		config.ScopeProject: {Exists: true, Hash: "bbb"},
		config.ScopeUser:    {Exists: true, Hash: "ccc"},
	}

	_, reasons := Check(Inputs{IndexPath: path, Mode: "bm25", Fingerprints: after})
	assert.Contains(t, reasons, "project config content changed")
	assert.Contains(t, reasons, "user config added")
}

func TestExcludeListChangedIgnoresOrder(t *testing.T) {
	assert.False(t, excludeListChanged([]string{"a", "b"}, []string{"b", "a"}))
	assert.True(t, excludeListChanged([]string{"a"}, []string{"a", "b"}))
}
