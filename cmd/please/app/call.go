package app

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/spf13/cobra"

	"github.com/pleaseai/mcp-please/internal/config"
	"github.com/pleaseai/mcp-please/internal/executor"
	"github.com/pleaseai/mcp-please/internal/gateway"
	"github.com/pleaseai/mcp-please/internal/indexstore"
	"github.com/pleaseai/mcp-please/internal/tokenstore"
)

type callFlags struct {
	args   string
	index  string
	format string
}

func newCallCmd() *cobra.Command {
	flags := &callFlags{}
	cmd := &cobra.Command{
		Use:   "call <tool>",
		Short: "Invoke a federated tool by its prefixed name",
		Long: `Resolve a prefixed tool name ("server__tool") back to its upstream and
invoke it. Arguments come from --args as a JSON object, or from stdin if
--args is omitted and stdin is not a terminal. Exits non-zero both when the
tool could not be resolved/reached and when the upstream itself reports
isError on its result. The root command does not accept a tool name
directly; tools are invoked only through this verb.`,
		Args:    cobra.ExactArgs(1),
		PreRunE: validateFormat(&flags.format, FormatJSON, FormatMinimal),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCall(cmd.Context(), cmd, flags, args[0])
		},
	}

	cmd.Flags().StringVar(&flags.args, "args", "", "Tool arguments as a JSON object")
	cmd.Flags().StringVar(&flags.index, "index", "", "Explicit index file path to resolve the tool against")
	cmd.Flags().StringVar(&flags.format, "format", FormatJSON, "Output format (json or minimal)")

	return cmd
}

func runCall(ctx context.Context, cmd *cobra.Command, flags *callFlags, toolName string) error {
	args, err := resolveCallArgs(cmd, flags.args)
	if err != nil {
		return err
	}

	merged, err := loadMergedForCall(flags.index)
	if err != nil {
		return err
	}

	cwd, err := currentDir()
	if err != nil {
		return err
	}
	resolved, err := config.Load(cwd)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	exec := executor.New(merged.Tools, resolved.MergeForDiscovery(), tokenstore.New(""))
	result, failure := exec.Execute(ctx, toolName, args)
	if failure != nil {
		return renderCallFailure(cmd, flags.format, failure)
	}
	return renderCallResult(cmd, flags.format, result)
}

// resolveCallArgs parses --args if given, else reads a JSON object from
// stdin (spec §6 "call: --args <json> or stdin JSON").
func resolveCallArgs(cmd *cobra.Command, raw string) (map[string]any, error) {
	if raw == "" {
		raw = "{}"
		if stdin, ok := cmd.InOrStdin().(*os.File); !ok || !isTerminal(stdin) {
			data, err := io.ReadAll(cmd.InOrStdin())
			if err != nil {
				return nil, fmt.Errorf("read stdin args: %w", err)
			}
			if len(data) > 0 {
				raw = string(data)
			}
		}
	}

	var args map[string]any
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return nil, fmt.Errorf("parse --args as JSON object: %w", err)
	}
	return args, nil
}

// isTerminal is a best-effort stdin check; a real terminal has no buffered
// input, so an os.Stdin with no redirection is treated as "no args on stdin".
func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return true
	}
	return info.Mode()&os.ModeCharDevice != 0
}

func loadMergedForCall(override string) (*gateway.MergedIndex, error) {
	if override != "" {
		return gateway.BuildMergedIndex(override, "")
	}
	cwd, err := currentDir()
	if err != nil {
		return nil, err
	}
	return gateway.BuildMergedIndex(indexstore.UserPath(), indexstore.ProjectPath(cwd))
}

func renderCallFailure(cmd *cobra.Command, format string, failure *executor.Failure) error {
	switch format {
	case FormatMinimal:
		fmt.Fprintln(cmd.ErrOrStderr(), failure.Error())
	default:
		data, err := json.MarshalIndent(map[string]any{
			"error":       failure.Code,
			"message":     failure.Message,
			"remediation": failure.Remediation,
		}, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal failure: %w", err)
		}
		fmt.Fprintln(cmd.ErrOrStderr(), string(data))
	}
	return &exitCodeError{code: 1}
}

func renderCallResult(cmd *cobra.Command, format string, result *mcp.CallToolResult) error {
	switch format {
	case FormatMinimal:
		for _, c := range result.Content {
			if tc, ok := c.(mcp.TextContent); ok {
				fmt.Fprintln(cmd.OutOrStdout(), tc.Text)
			}
		}
	default:
		data, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal result: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
	}
	if result.IsError {
		return &exitCodeError{code: 1}
	}
	return nil
}
