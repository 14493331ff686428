package toolsdata

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// ValidateArgs checks args against def's InputSchema, returning a single
// error naming every violation found. A tool with no declared schema accepts
// any arguments (spec §4.M: execution validates args against the tool's
// declared schema before dispatch).
func ValidateArgs(def ToolDefinition, args map[string]any) error {
	if def.InputSchema == nil {
		return nil
	}

	schemaLoader := gojsonschema.NewGoLoader(def.InputSchema)
	docLoader := gojsonschema.NewGoLoader(args)

	result, err := gojsonschema.Validate(schemaLoader, docLoader)
	if err != nil {
		return fmt.Errorf("toolsdata: validate args for %q: %w", def.Name, err)
	}
	if result.Valid() {
		return nil
	}

	msgs := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		msgs = append(msgs, e.String())
	}
	return fmt.Errorf("toolsdata: %q: %s", def.Name, strings.Join(msgs, "; "))
}
