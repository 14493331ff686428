package app

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
	"github.com/spf13/cobra"

	"github.com/pleaseai/mcp-please/internal/gateway"
	"github.com/pleaseai/mcp-please/internal/indexstore"
	"github.com/pleaseai/mcp-please/internal/search"
)

type searchFlags struct {
	mode      string
	topK      int
	threshold float64
	index     string
	format    string
	provider  string
	scope     string
}

func newSearchCmd() *cobra.Command {
	flags := &searchFlags{}
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the federated tool index",
		Args:  cobra.ExactArgs(1),
		PreRunE: validateFormat(&flags.format, FormatTable, FormatJSON, FormatMinimal),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(cmd.Context(), cmd, flags, args[0])
		},
	}

	cmd.Flags().StringVar(&flags.mode, "mode", string(search.ModeHybrid), "Search mode: regex, bm25, embedding, or hybrid")
	cmd.Flags().IntVar(&flags.topK, "top-k", 10, "Maximum number of results to return")
	cmd.Flags().Float64Var(&flags.threshold, "threshold", 0, "Minimum score a result must exceed to be included")
	cmd.Flags().StringVar(&flags.index, "index", "", "Explicit index file path, overriding --scope")
	cmd.Flags().StringVar(&flags.format, "format", FormatTable, "Output format (table, json, minimal)")
	cmd.Flags().StringVar(&flags.provider, "provider", "", "Ignored; embedding/hybrid modes use the provider recorded in the index")
	cmd.Flags().StringVar(&flags.scope, "scope", "all", "Which index to search: project, user, or all")

	return cmd
}

func runSearch(ctx context.Context, cmd *cobra.Command, flags *searchFlags, query string) error {
	merged, err := loadMergedForSearch(flags.index, flags.scope)
	if err != nil {
		return err
	}

	orch, err := gateway.OrchestratorFor(merged)
	if err != nil {
		return err
	}

	result, err := orch.Search(ctx, search.Mode(flags.mode), merged.Tools, search.Query{
		Text:      query,
		TopK:      flags.topK,
		Threshold: flags.threshold,
	})
	if err != nil {
		return fmt.Errorf("search: %w", err)
	}

	switch flags.format {
	case FormatJSON:
		return printSearchJSON(cmd, result.Hits)
	case FormatMinimal:
		return printSearchMinimal(cmd, result.Hits)
	default:
		return printSearchTable(cmd, result.Hits)
	}
}

// loadMergedForSearch resolves --index/--scope into a gateway.MergedIndex,
// reusing the gateway's own merge logic so "please search" and the MCP
// search_tools meta-tool rank identically over the same inputs.
func loadMergedForSearch(override, scope string) (*gateway.MergedIndex, error) {
	if override != "" {
		return gateway.BuildMergedIndex(override, "")
	}

	cwd, err := currentDir()
	if err != nil {
		return nil, err
	}

	switch scope {
	case "project":
		return gateway.BuildMergedIndex("", indexstore.ProjectPath(cwd))
	case "user":
		return gateway.BuildMergedIndex(indexstore.UserPath(), "")
	case "all", "":
		return gateway.BuildMergedIndex(indexstore.UserPath(), indexstore.ProjectPath(cwd))
	default:
		return nil, fmt.Errorf("invalid scope %q, must be one of: project, user, all", scope)
	}
}

func printSearchJSON(cmd *cobra.Command, hits []search.Hit) error {
	data, err := json.MarshalIndent(hits, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal results: %w", err)
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return err
}

func printSearchMinimal(cmd *cobra.Command, hits []search.Hit) error {
	out := cmd.OutOrStdout()
	for _, h := range hits {
		if _, err := fmt.Fprintln(out, h.Tool.Tool.Name); err != nil {
			return err
		}
	}
	return nil
}

func printSearchTable(cmd *cobra.Command, hits []search.Hit) error {
	out := cmd.OutOrStdout()
	if len(hits) == 0 {
		_, err := fmt.Fprintln(out, "No tools matched")
		return err
	}

	headers := []string{"Score", "Tool", "Description"}
	table := tablewriter.NewWriter(out)
	table.Options(
		tablewriter.WithHeader(headers),
		tablewriter.WithRendition(
			tw.Rendition{
				Borders: tw.Border{
					Left:   tw.State(1),
					Top:    tw.State(1),
					Right:  tw.State(1),
					Bottom: tw.State(1),
				},
			},
		),
		tablewriter.WithAlignment(tw.MakeAlign(len(headers), tw.AlignLeft)),
	)

	for _, h := range hits {
		if err := table.Append([]string{fmt.Sprintf("%.3f", h.Score), h.Tool.Tool.Name, truncate(h.Tool.Tool.Description, 80)}); err != nil {
			return fmt.Errorf("append row: %w", err)
		}
	}
	if err := table.Render(); err != nil {
		return fmt.Errorf("render table: %w", err)
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-1] + "…"
}
