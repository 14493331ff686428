package toolsdata

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateArgsNilSchemaAcceptsAnything(t *testing.T) {
	def := ToolDefinition{Name: "no_schema"}
	assert.NoError(t, ValidateArgs(def, map[string]any{"anything": 1}))
	assert.NoError(t, ValidateArgs(def, nil))
}

func TestValidateArgsRequiresDeclaredFields(t *testing.T) {
	def := ToolDefinition{
		Name: "read_file",
		InputSchema: &InputSchema{
			Type:     "object",
			Required: []string{"path"},
			Properties: map[string]*SchemaProp{
				"path": {Type: "string"},
			},
		},
	}

	assert.NoError(t, ValidateArgs(def, map[string]any{"path": "/tmp/x"}))

	err := ValidateArgs(def, map[string]any{})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "read_file")
}

func TestValidateArgsRejectsWrongType(t *testing.T) {
	def := ToolDefinition{
		Name: "set_limit",
		InputSchema: &InputSchema{
			Type: "object",
			Properties: map[string]*SchemaProp{
				"limit": {Type: "integer"},
			},
		},
	}

	assert.Error(t, ValidateArgs(def, map[string]any{"limit": "not-a-number"}))
	assert.NoError(t, ValidateArgs(def, map[string]any{"limit": 5}))
}
