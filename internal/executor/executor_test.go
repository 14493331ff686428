package executor

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pleaseai/mcp-please/internal/config"
	"github.com/pleaseai/mcp-please/internal/toolsdata"
)

func TestExecuteToolNotFound(t *testing.T) {
	ex := New(nil, config.Merged{}, nil)
	_, failure := ex.Execute(context.Background(), "server__missing", nil)
	require.NotNil(t, failure)
	assert.Equal(t, ToolNotFound, failure.Code)
}

func TestExecuteMetadataMissing(t *testing.T) {
	index := []toolsdata.IndexedTool{
		{Tool: toolsdata.ToolDefinition{Name: "bare_tool"}},
	}
	ex := New(index, config.Merged{}, nil)
	_, failure := ex.Execute(context.Background(), "bare_tool", nil)
	require.NotNil(t, failure)
	assert.Equal(t, MetadataMissing, failure.Code)
}

func TestExecuteServerNotConfigured(t *testing.T) {
	def := toolsdata.WithProvenance(toolsdata.ToolDefinition{Name: "read"}, "ghost_server")
	index := []toolsdata.IndexedTool{{Tool: def}}
	ex := New(index, config.Merged{Servers: map[string]config.UpstreamServerConfig{}}, nil)

	_, failure := ex.Execute(context.Background(), def.Name, nil)
	require.NotNil(t, failure)
	assert.Equal(t, ServerNotConfigured, failure.Code)
	assert.Contains(t, failure.Remediation, "ghost_server")
}

func TestExecuteAuthRequiredForOAuthWithoutStore(t *testing.T) {
	def := toolsdata.WithProvenance(toolsdata.ToolDefinition{Name: "read"}, "secure_server")
	index := []toolsdata.IndexedTool{{Tool: def}}
	merged := config.Merged{Servers: map[string]config.UpstreamServerConfig{
		"secure_server": {
			URL:           "https://upstream.example.com/mcp",
			Authorization: &config.Authorization{Type: config.AuthOAuth2},
		},
	}}
	ex := New(index, merged, nil)

	_, failure := ex.Execute(context.Background(), def.Name, nil)
	require.NotNil(t, failure)
	assert.Equal(t, AuthRequired, failure.Code)
	assert.Contains(t, failure.Remediation, "mcp auth secure_server")
}

func TestFailureErrorIncludesCodeAndMessage(t *testing.T) {
	f := &Failure{Code: ToolNotFound, Message: "no tool named \"x\""}
	assert.Contains(t, f.Error(), "TOOL_NOT_FOUND")
	assert.Contains(t, f.Error(), "no tool named")
}
