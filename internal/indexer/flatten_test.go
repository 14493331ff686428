package indexer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pleaseai/mcp-please/internal/toolsdata"
)

func TestSearchableTextSplitsAndLowercasesIdentifiers(t *testing.T) {
	def := toolsdata.ToolDefinition{
		Name:        "readFile",
		Description: "Read a file from disk",
		InputSchema: &toolsdata.InputSchema{
			Type: "object",
			Properties: map[string]*toolsdata.SchemaProp{
				"filePath": {Type: "string", Description: "Path to read"},
			},
		},
	}
	text := SearchableText(def)
	assert.Contains(t, text, "read file")
	assert.Contains(t, text, "file path")
	assert.NotContains(t, text, "readFile")
	assert.NotContains(t, text, "filePath")
}

func TestSearchableTextIncludesEnumAndMetadataTags(t *testing.T) {
	def := toolsdata.ToolDefinition{
		Name: "set_mode",
		InputSchema: &toolsdata.InputSchema{
			Properties: map[string]*toolsdata.SchemaProp{
				"mode": {Type: "string", Enum: []any{"fast", "slow"}},
			},
		},
		Metadata: map[string]any{"tags": []any{"filesystem", "io"}},
	}
	text := SearchableText(def)
	assert.Contains(t, text, "fast")
	assert.Contains(t, text, "slow")
	assert.Contains(t, text, "filesystem")
}

func TestSearchableTextExcludesProvenanceMetadata(t *testing.T) {
	def := toolsdata.WithProvenance(toolsdata.ToolDefinition{Name: "read_file"}, "fs-server")
	text := SearchableText(def)
	assert.NotContains(t, text, "fs-server")
}

func TestTokenizeDropsStopWordsAndShortTokens(t *testing.T) {
	tokens := Tokenize("Read a File from the Disk")
	assert.Contains(t, tokens, "read")
	assert.Contains(t, tokens, "file")
	assert.Contains(t, tokens, "disk")
	assert.NotContains(t, tokens, "a")
	assert.NotContains(t, tokens, "from")
	assert.NotContains(t, tokens, "the")
}

// Invariant (spec §8): rebuilding BM25 statistics from a persisted index's
// tools yields the exact stats the index carries.
func TestComputeCorpusStatsMatchesTools(t *testing.T) {
	defs := []toolsdata.ToolDefinition{
		{Name: "read_file", Description: "Read a file"},
		{Name: "write_file", Description: "Write a file"},
		{Name: "git_commit", Description: "Git commit"},
	}
	result, err := Build(context.Background(), defs, Options{})
	require.NoError(t, err)

	recomputed := computeCorpusStats(result.Tools)
	assert.Equal(t, result.Stats.TotalDocuments, recomputed.TotalDocuments)
	assert.InDelta(t, result.Stats.AvgDocLength, recomputed.AvgDocLength, 1e-9)
	assert.Equal(t, result.Stats.DocumentFrequency, recomputed.DocumentFrequency)
}
