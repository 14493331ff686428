package gateway

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/pleaseai/mcp-please/internal/toolsdata"
)

func TestUsageTemplateEnumTruncatesToThree(t *testing.T) {
	def := toolsdata.ToolDefinition{
		Name: "server__pick_color",
		InputSchema: &toolsdata.InputSchema{
			Properties: map[string]*toolsdata.SchemaProp{
				"color": {Type: "string", Enum: []any{"red", "green", "blue", "yellow"}},
			},
			Required: []string{"color"},
		},
	}
	template := UsageTemplate(def)
	assert.Contains(t, template, "<red|green|blue|...>")
	assert.Contains(t, template, "server__pick_color")
}

func TestUsageTemplatePlaceholdersByType(t *testing.T) {
	def := toolsdata.ToolDefinition{
		Name: "server__do_thing",
		InputSchema: &toolsdata.InputSchema{
			Properties: map[string]*toolsdata.SchemaProp{
				"name":   {Type: "string"},
				"count":  {Type: "number"},
				"active": {Type: "boolean"},
				"blob":   {Type: "object"},
			},
			Required: []string{"name", "count", "active", "blob"},
		},
	}
	template := UsageTemplate(def)
	assert.Contains(t, template, `"name": "<string>"`)
	assert.Contains(t, template, `"count": "<number>"`)
	assert.Contains(t, template, `"active": "<true|false>"`)
	assert.Contains(t, template, `"blob": "<value>"`)
}

func TestUsageTemplateNoRequiredFieldsIsEmptyObject(t *testing.T) {
	def := toolsdata.ToolDefinition{Name: "server__noop"}
	template := UsageTemplate(def)
	assert.Contains(t, template, "server__noop --args '{}'")
}
