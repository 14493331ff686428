package app

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pleaseai/mcp-please/internal/buildinfo"
	"github.com/pleaseai/mcp-please/internal/config"
	"github.com/pleaseai/mcp-please/internal/gateway"
	"github.com/pleaseai/mcp-please/internal/indexstore"
	"github.com/pleaseai/mcp-please/internal/logger"
	"github.com/pleaseai/mcp-please/internal/regen"
)

type serveFlags struct {
	transport string
	port      int
	index     string
	mode      string
	provider  string
	dtype     string
	scope     string
}

func newServeCmd() *cobra.Command {
	flags := &serveFlags{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP gateway server",
		Long: `Serve the merged tool index over MCP, either on stdio (the default, for
host integration) or as a Streamable HTTP server. Before serving, runs the
Regeneration Detector against the target scope's index and triggers a
rebuild if flags or configuration have drifted since it was last built.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), flags)
		},
	}

	cmd.Flags().StringVar(&flags.transport, "transport", "stdio", "Transport: stdio or http")
	cmd.Flags().IntVar(&flags.port, "port", 8787, "Port to listen on for --transport http")
	cmd.Flags().StringVar(&flags.index, "index", "", "Explicit index file path override")
	cmd.Flags().StringVar(&flags.mode, "mode", "hybrid", "Ignored; search_tools calls that name no mode use bm25")
	cmd.Flags().StringVar(&flags.provider, "provider", "local", "Embedding provider location (local, openai, voyage)")
	cmd.Flags().StringVar(&flags.dtype, "dtype", "fp32", "Embedding quantization (fp32, fp16, q8, q4f16, q4)")
	cmd.Flags().StringVar(&flags.scope, "scope", "project", "Index scope to check and rebuild before serving: project or user (the gateway always serves the merged user and project indexes)")

	return cmd
}

func runServe(ctx context.Context, flags *serveFlags) error {
	cwd, err := currentDir()
	if err != nil {
		return err
	}
	scope, err := resolveScope(flags.scope, "project", "user")
	if err != nil {
		return err
	}

	indexPath := indexPathForScope(scope, flags.index, cwd)
	if err := maybeAutoRebuild(ctx, cwd, scope, indexPath, flags); err != nil {
		return err
	}

	srv := gateway.New(gateway.Config{
		UserIndexPath:    indexstore.UserPath(),
		ProjectIndexPath: indexstore.ProjectPath(cwd),
	})

	switch flags.transport {
	case "stdio", "":
		return srv.ServeStdio(ctx)
	case "http":
		return srv.ServeHTTP(ctx, fmt.Sprintf(":%d", flags.port))
	default:
		return fmt.Errorf("invalid transport %q, must be stdio or http", flags.transport)
	}
}

// maybeAutoRebuild runs the Regeneration Detector against indexPath and,
// if it reports the index is stale, rebuilds it in place before serving
// (spec §6 "serve ... triggers auto-rebuild when Regeneration Detector
// says so").
func maybeAutoRebuild(ctx context.Context, cwd string, scope config.Scope, indexPath string, flags *serveFlags) error {
	resolved, err := config.Load(cwd)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	embeddingTag := fmt.Sprintf("%s:%s", flags.provider, "general")
	needsRebuild, reasons := regen.Check(regen.Inputs{
		IndexPath:    indexPath,
		CLIVersion:   buildinfo.Version,
		Mode:         "bm25",
		EmbeddingTag: embeddingTag,
		Quantization: flags.dtype,
		Fingerprints: resolved.FingerprintsForScope(scope),
	})
	if !needsRebuild {
		return nil
	}

	logger.Infof("serve: auto-rebuilding index before serving (%v)", reasons)
	return runIndex(ctx, &indexFlags{
		output:   indexPath,
		provider: flags.provider,
		model:    "general",
		dtype:    flags.dtype,
		scope:    string(scope),
		timeout:  defaultIndexTimeout,
		force:    true,
	}, nil)
}
