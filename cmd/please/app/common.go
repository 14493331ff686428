package app

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pleaseai/mcp-please/internal/config"
	"github.com/pleaseai/mcp-please/internal/indexstore"
)

// Output format constants shared across commands (spec §6).
const (
	FormatText    = "text"
	FormatJSON    = "json"
	FormatTable   = "table"
	FormatMinimal = "minimal"
)

// resolveScope validates a --scope flag value against allowed, defaulting to
// "project" when empty.
func resolveScope(scope string, allowed ...string) (config.Scope, error) {
	if scope == "" {
		scope = "project"
	}
	for _, a := range allowed {
		if scope == a {
			return config.Scope(scope), nil
		}
	}
	return "", fmt.Errorf("invalid scope %q, must be one of: %v", scope, allowed)
}

// indexPathForScope resolves the on-disk index path for scope, honoring an
// explicit --index override when provided.
func indexPathForScope(scope config.Scope, override, cwd string) string {
	if override != "" {
		return override
	}
	if scope == config.ScopeUser {
		return indexstore.UserPath()
	}
	return indexstore.ProjectPath(cwd)
}

func currentDir() (string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("resolve working directory: %w", err)
	}
	return cwd, nil
}

// exitCodeError carries a process exit code for a command that has already
// rendered its own error output (e.g. "call"'s JSON/minimal failure
// rendering) and must not have cobra or main print anything further.
type exitCodeError struct{ code int }

func (e *exitCodeError) Error() string { return "" }

// ExitCode extracts the intended process exit code from err, defaulting to
// 1 for any other non-nil error.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	if ec, ok := err.(*exitCodeError); ok {
		return ec.code
	}
	return 1
}

// validateFormat returns a PreRunE that rejects a --format value outside allowed.
func validateFormat(formatVar *string, allowed ...string) func(*cobra.Command, []string) error {
	return func(_ *cobra.Command, _ []string) error {
		for _, a := range allowed {
			if *formatVar == a {
				return nil
			}
		}
		return fmt.Errorf("invalid format %q, must be one of: %s", *formatVar, strings.Join(allowed, ", "))
	}
}
