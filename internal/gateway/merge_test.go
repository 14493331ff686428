package gateway

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pleaseai/mcp-please/internal/indexer"
	"github.com/pleaseai/mcp-please/internal/indexstore"
	"github.com/pleaseai/mcp-please/internal/toolsdata"
)

func writeIndex(t *testing.T, path string, tools []toolsdata.IndexedTool, stats indexer.CorpusStats) {
	t.Helper()
	doc := indexstore.NewDocument(&indexer.Result{Tools: tools, Stats: stats}, "bm25", "", "", nil, nil)
	require.NoError(t, indexstore.Save(path, doc))
}

// Dedup merge: project-scope tool overrides user-scope tool of the same name.
func TestBuildMergedIndexProjectOverridesUser(t *testing.T) {
	dir := t.TempDir()
	userPath := filepath.Join(dir, "user.json")
	projectPath := filepath.Join(dir, "project.json")

	writeIndex(t, userPath, []toolsdata.IndexedTool{
		{Tool: toolsdata.ToolDefinition{Name: "shared", Description: "from user"}},
		{Tool: toolsdata.ToolDefinition{Name: "user_only", Description: "u"}},
	}, indexer.CorpusStats{TotalDocuments: 2, AvgDocLength: 2, DocumentFrequency: map[string]int{}})

	writeIndex(t, projectPath, []toolsdata.IndexedTool{
		{Tool: toolsdata.ToolDefinition{Name: "shared", Description: "from project"}},
		{Tool: toolsdata.ToolDefinition{Name: "project_only", Description: "p"}},
	}, indexer.CorpusStats{TotalDocuments: 2, AvgDocLength: 4, DocumentFrequency: map[string]int{}})

	merged, err := BuildMergedIndex(userPath, projectPath)
	require.NoError(t, err)
	require.Len(t, merged.Tools, 3)

	byName := map[string]toolsdata.IndexedTool{}
	for _, tool := range merged.Tools {
		byName[tool.Tool.Name] = tool
	}
	assert.Equal(t, "from project", byName["shared"].Tool.Description)
	assert.Contains(t, byName, "user_only")
	assert.Contains(t, byName, "project_only")

	// mergeBM25Stats(P, U).totalDocuments = P.totalDocuments + U.totalDocuments
	assert.Equal(t, 4, merged.Stats.TotalDocuments)
	assert.InDelta(t, 3.0, merged.Stats.AvgDocLength, 1e-9) // (2*2 + 2*4) / 4
}

func TestBuildMergedIndexMissingFilesAreTolerated(t *testing.T) {
	dir := t.TempDir()
	merged, err := BuildMergedIndex(filepath.Join(dir, "missing-user.json"), filepath.Join(dir, "missing-project.json"))
	require.NoError(t, err)
	assert.Empty(t, merged.Tools)
	assert.False(t, merged.HasEmbeddings)
}

func TestIndexCacheInvalidatesOnRebuild(t *testing.T) {
	dir := t.TempDir()
	projectPath := filepath.Join(dir, "project.json")
	writeIndex(t, projectPath, []toolsdata.IndexedTool{
		{Tool: toolsdata.ToolDefinition{Name: "a"}},
	}, indexer.CorpusStats{DocumentFrequency: map[string]int{}})

	cache := NewIndexCache(filepath.Join(dir, "user.json"), projectPath)
	first, err := cache.Get()
	require.NoError(t, err)
	require.Len(t, first.Tools, 1)

	writeIndex(t, projectPath, []toolsdata.IndexedTool{
		{Tool: toolsdata.ToolDefinition{Name: "a"}},
		{Tool: toolsdata.ToolDefinition{Name: "b"}},
	}, indexer.CorpusStats{DocumentFrequency: map[string]int{}})
	// Explicit invalidation, rather than relying on filesystem mtime
	// resolution to detect the change.
	cache.Invalidate()

	second, err := cache.Get()
	require.NoError(t, err)
	assert.Len(t, second.Tools, 2)
}
