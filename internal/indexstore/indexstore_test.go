package indexstore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pleaseai/mcp-please/internal/indexer"
	"github.com/pleaseai/mcp-please/internal/toolsdata"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "index.json")
	result := &indexer.Result{
		Tools: []toolsdata.IndexedTool{
			{Tool: toolsdata.ToolDefinition{Name: "a__read", Description: "read"}, Tokens: []string{"read"}},
		},
		Stats: indexer.CorpusStats{TotalDocuments: 1, AvgDocLength: 1, DocumentFrequency: map[string]int{"read": 1}},
	}
	doc := NewDocument(result, "bm25", "", "", []string{"excluded"}, nil)

	require.NoError(t, Save(path, doc))
	assert.True(t, Exists(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, FormatMajor, loaded.FormatMajor)
	assert.Equal(t, "bm25", loaded.Build.Mode)
	assert.Equal(t, []string{"excluded"}, loaded.Build.ExcludedNames)
	require.Len(t, loaded.Tools, 1)
	assert.Equal(t, "a__read", loaded.Tools[0].Tool.Name)
}

func TestLoadLegacyIndexHasNoFormatMajor(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"tools":[]}`), 0o644))

	_, err := Load(path)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrLegacyIndex)
}

func TestLoadMajorMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"formatMajor":999}`), 0o644))

	_, err := Load(path)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMajorMismatch)
}

func TestCreateEmptyProducesZeroToolDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.json")
	require.NoError(t, CreateEmpty(path, "regex"))

	doc, err := Load(path)
	require.NoError(t, err)
	assert.Empty(t, doc.Tools)
	assert.False(t, doc.HasEmbeddings())
}
