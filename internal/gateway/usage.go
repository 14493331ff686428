package gateway

import (
	"fmt"
	"sort"
	"strings"

	"github.com/pleaseai/mcp-please/internal/toolsdata"
)

// cliPackage is the npm package name used in CLI-usage templates, matching
// the install story surfaced by "please install --ide <id>".
const cliPackage = "@pleaseai/mcp-please"

// UsageTemplate builds the shell-command string a host can run to invoke def
// via the external CLI instead of the MCP wire interface: a fully-qualified
// tool name plus placeholder JSON for every required argument (spec §4.L
// "CLI-usage template").
func UsageTemplate(def toolsdata.ToolDefinition) string {
	placeholders := map[string]string{}
	if def.InputSchema != nil {
		for _, name := range def.InputSchema.Required {
			prop := def.InputSchema.Properties[name]
			placeholders[name] = placeholderFor(prop)
		}
	}

	names := make([]string, 0, len(placeholders))
	for name := range placeholders {
		names = append(names, name)
	}
	sort.Strings(names)

	var body strings.Builder
	body.WriteString("{")
	for i, name := range names {
		if i > 0 {
			body.WriteString(", ")
		}
		fmt.Fprintf(&body, "%q: %q", name, placeholders[name])
	}
	body.WriteString("}")

	return fmt.Sprintf("npx %s %s --args '%s'", cliPackage, def.Name, body.String())
}

// placeholderFor derives a human-readable placeholder string for a single
// required property (spec §4.L): enum values list up to the first three
// ("|..." if truncated), otherwise the placeholder names the JSON Schema type.
func placeholderFor(prop *toolsdata.SchemaProp) string {
	if prop == nil {
		return "<value>"
	}
	if len(prop.Enum) > 0 {
		values := prop.Enum
		truncated := len(values) > 3
		if truncated {
			values = values[:3]
		}
		strs := make([]string, len(values))
		for i, v := range values {
			strs[i] = fmt.Sprintf("%v", v)
		}
		joined := strings.Join(strs, "|")
		if truncated {
			joined += "|..."
		}
		return "<" + joined + ">"
	}

	switch prop.Type {
	case "string":
		return "<string>"
	case "number", "integer":
		return "<number>"
	case "boolean":
		return "<true|false>"
	default:
		return "<value>"
	}
}
