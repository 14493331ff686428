package mcpclient

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAuthHeaderValueDefaultsToBearer(t *testing.T) {
	assert.Equal(t, "Bearer tok-123", authHeaderValue("tok-123"))
}

func TestConvertSchemaNilWhenEmpty(t *testing.T) {
	assert.Nil(t, convertSchema("", nil, nil))
}

func TestConvertSchemaPreservesTypeAndRequired(t *testing.T) {
	schema := convertSchema("object", map[string]any{
		"path": map[string]any{"type": "string", "description": "file path"},
	}, []string{"path"})

	assert.Equal(t, "object", schema.Type)
	assert.Equal(t, []string{"path"}, schema.Required)
	assert.Equal(t, "string", schema.Properties["path"].Type)
	assert.Equal(t, "file path", schema.Properties["path"].Description)
}

func TestConvertSchemaPropHandlesNestedItemsAndProperties(t *testing.T) {
	raw := map[string]any{
		"type": "array",
		"items": map[string]any{
			"type": "object",
			"properties": map[string]any{
				"name": map[string]any{"type": "string"},
			},
		},
		"enum": []any{"a", "b"},
	}

	prop := convertSchemaProp(raw)
	assert.Equal(t, "array", prop.Type)
	assert.Equal(t, []any{"a", "b"}, prop.Enum)
	items := prop.Items
	if items == nil {
		t.Fatal("expected nested items schema")
	}
	assert.Equal(t, "object", items.Type)
	assert.Equal(t, "string", items.Properties["name"].Type)
}

func TestConvertSchemaPropNonMapYieldsEmptyProp(t *testing.T) {
	prop := convertSchemaProp("not-a-map")
	assert.Equal(t, "", prop.Type)
	assert.Nil(t, prop.Enum)
}
