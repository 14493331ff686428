package indexer

import (
	"fmt"
	"sort"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/pleaseai/mcp-please/internal/toolsdata"
)

// SearchableText renders a tool definition into a single text blob suitable
// for tokenization and embedding (spec §4.G "searchable text flattening"):
// name, title, description, then a recursive walk of the input and output
// schemas' property names, descriptions, types, and enum values, then
// metadata tags in key order.
func SearchableText(def toolsdata.ToolDefinition) string {
	var b strings.Builder
	writeIdentifier(&b, def.Name)
	writeField(&b, def.Title)
	writeField(&b, def.Description)
	flattenSchema(&b, def.InputSchema)
	flattenSchema(&b, def.OutputSchema)
	flattenMetadata(&b, def.Metadata)
	return strings.TrimSpace(b.String())
}

func writeField(b *strings.Builder, s string) {
	if s == "" {
		return
	}
	b.WriteString(s)
	b.WriteByte(' ')
}

// writeIdentifier writes an identifier-shaped field (a tool or property
// name) split on camelCase/snake_case/kebab-case boundaries and lowercased
// (spec §3 "searchableText ... identifier case is split, lowercased"; §4.G
// "the name (identifier-split: camelCase boundary, _, - → spaces; lowercased)").
func writeIdentifier(b *strings.Builder, s string) {
	for _, part := range splitIdentifier(s) {
		writeField(b, strings.ToLower(part))
	}
}

func flattenSchema(b *strings.Builder, schema *toolsdata.InputSchema) {
	if schema == nil {
		return
	}
	names := make([]string, 0, len(schema.Properties))
	for name := range schema.Properties {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		writeIdentifier(b, name)
		flattenSchemaProp(b, schema.Properties[name])
	}
}

func flattenSchemaProp(b *strings.Builder, prop *toolsdata.SchemaProp) {
	if prop == nil {
		return
	}
	writeField(b, prop.Description)
	writeField(b, prop.Type)
	for _, v := range prop.Enum {
		writeField(b, fmt.Sprintf("%v", v))
	}
	if prop.Items != nil {
		flattenSchemaProp(b, prop.Items)
	}
	if len(prop.Properties) > 0 {
		names := make([]string, 0, len(prop.Properties))
		for name := range prop.Properties {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			writeIdentifier(b, name)
			flattenSchemaProp(b, prop.Properties[name])
		}
	}
}

// flattenMetadata folds the values of every metadata key into searchable
// text as free-form tags, in key order; provenance keys are excluded since
// they name the upstream server, not the tool's capability.
func flattenMetadata(b *strings.Builder, meta map[string]any) {
	if len(meta) == 0 {
		return
	}
	keys := make([]string, 0, len(meta))
	for k := range meta {
		if k == toolsdata.MetaUpstreamServer || k == toolsdata.MetaOriginalName {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		switch v := meta[k].(type) {
		case string:
			// Some upstreams stuff structured tag data into a metadata value
			// as a raw JSON string rather than a native []any; gjson.Valid
			// avoids a full unmarshal just to detect the shape.
			if gjson.Valid(v) && (strings.HasPrefix(v, "{") || strings.HasPrefix(v, "[")) {
				gjson.Parse(v).ForEach(func(_, value gjson.Result) bool {
					writeField(b, value.String())
					return true
				})
			} else {
				writeField(b, v)
			}
		case []string:
			for _, s := range v {
				writeField(b, s)
			}
		case []any:
			for _, s := range v {
				writeField(b, fmt.Sprintf("%v", s))
			}
		default:
			writeField(b, fmt.Sprintf("%v", v))
		}
	}
}
