package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/pleaseai/mcp-please/internal/buildinfo"
	"github.com/pleaseai/mcp-please/internal/config"
	"github.com/pleaseai/mcp-please/internal/discovery"
	"github.com/pleaseai/mcp-please/internal/embedding"
	"github.com/pleaseai/mcp-please/internal/indexer"
	"github.com/pleaseai/mcp-please/internal/indexstore"
	"github.com/pleaseai/mcp-please/internal/logger"
	"github.com/pleaseai/mcp-please/internal/regen"
	"github.com/pleaseai/mcp-please/internal/tokenstore"
	"github.com/pleaseai/mcp-please/internal/toolsdata"
)

// defaultIndexTimeout is also used by "serve"'s auto-rebuild path, which
// constructs indexFlags directly rather than through newIndexCmd's flag
// registration.
const defaultIndexTimeout = 5 * time.Minute

type indexFlags struct {
	output       string
	provider     string
	model        string
	dtype        string
	noEmbeddings bool
	force        bool
	timeout      time.Duration
	exclude      string
	scope        string
}

func newIndexCmd() *cobra.Command {
	flags := &indexFlags{}
	cmd := &cobra.Command{
		Use:   "index [sources...]",
		Short: "Rebuild the scoped tool index",
		Long: `Discover tools from every configured upstream MCP server (or, when
sources are given, only those upstreams), flatten and tokenize them for BM25,
optionally embed them, and persist the result as the scope's index file.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIndex(cmd.Context(), flags, args)
		},
	}

	cmd.Flags().StringVar(&flags.output, "output", "", "Override the index output path")
	cmd.Flags().StringVar(&flags.provider, "provider", "local", "Embedding provider location (local, openai, voyage)")
	cmd.Flags().StringVar(&flags.model, "model", "general", "Embedding model name within the provider")
	cmd.Flags().StringVar(&flags.dtype, "dtype", "fp32", "Embedding quantization (fp32, fp16, q8, q4f16, q4)")
	cmd.Flags().BoolVar(&flags.noEmbeddings, "no-embeddings", false, "Build a BM25/regex-only index, skipping embeddings")
	cmd.Flags().BoolVar(&flags.force, "force", false, "Rebuild even if the Regeneration Detector reports no changes")
	cmd.Flags().DurationVar(&flags.timeout, "timeout", defaultIndexTimeout, "Overall build timeout")
	cmd.Flags().StringVar(&flags.exclude, "exclude", "", "Comma-separated upstream names to skip")
	cmd.Flags().StringVar(&flags.scope, "scope", "project", "Index scope: project or user")

	return cmd
}

func runIndex(ctx context.Context, flags *indexFlags, sources []string) error {
	ctx, cancel := context.WithTimeout(ctx, flags.timeout)
	defer cancel()

	cwd, err := currentDir()
	if err != nil {
		return err
	}

	scope, err := resolveScope(flags.scope, "project", "user")
	if err != nil {
		return err
	}

	resolved, err := config.Load(cwd)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	merged := resolved.MergeForScope(scope)
	if len(sources) > 0 {
		merged = restrictTo(merged, sources)
	}

	indexPath := indexPathForScope(scope, flags.output, cwd)
	excludedNames := splitCSV(flags.exclude)
	embeddingTag := ""
	if !flags.noEmbeddings {
		embeddingTag = fmt.Sprintf("%s:%s", flags.provider, flags.model)
	}

	if !flags.force {
		needsRebuild, reasons := regen.Check(regen.Inputs{
			IndexPath:     indexPath,
			CLIVersion:    buildinfo.Version,
			Mode:          "bm25",
			EmbeddingTag:  embeddingTag,
			Quantization:  flags.dtype,
			ExcludedNames: excludedNames,
			Fingerprints:  resolved.FingerprintsForScope(scope),
		})
		if !needsRebuild {
			logger.Info("index: up to date, nothing to do (use --force to rebuild anyway)")
			return nil
		}
		logger.Infof("index: rebuilding (%s)", strings.Join(reasons, "; "))
	}

	store := tokenstore.New("")
	var discoveryWarnings int
	results := discovery.Discover(ctx, merged, discovery.Options{
		Exclude:    excludedNames,
		TokenStore: store,
		OnProgress: func(p discovery.Progress) {
			if p.Phase == discovery.PhaseError {
				discoveryWarnings++
				logger.Warnf("index: %s: %v", p.Upstream, p.Err)
			}
		},
	})

	var defs []toolsdata.ToolDefinition
	for _, r := range results {
		defs = append(defs, r.Tools...)
	}

	var provider embedding.Provider
	if !flags.noEmbeddings {
		provider, err = embedding.New(embedding.Config{
			Tag:          embeddingTag,
			Quantization: embedding.Quantization(flags.dtype),
		})
		if err != nil {
			return fmt.Errorf("build embedding provider: %w", err)
		}
		defer provider.Dispose()
	}

	result, err := indexer.Build(ctx, defs, indexer.Options{
		Provider: provider,
		OnProgress: func(p indexer.Progress) {
			if p.Phase == indexer.PhaseEmbedding {
				logger.Debugf("index: embedding %d/%d", p.Completed, p.Total)
			}
		},
	})
	if err != nil {
		return fmt.Errorf("build index: %w", err)
	}

	doc := indexstore.NewDocument(result, "bm25", embeddingTag, flags.dtype, excludedNames, resolved.FingerprintsForScope(scope))
	if err := indexstore.Save(indexPath, doc); err != nil {
		return fmt.Errorf("save index: %w", err)
	}

	logger.Infof("index: wrote %d tools to %s (%d upstream warnings)", len(result.Tools), indexPath, discoveryWarnings)
	return nil
}

// restrictTo narrows merged to only the named upstreams, preserving order.
func restrictTo(merged config.Merged, names []string) config.Merged {
	want := make(map[string]bool, len(names))
	for _, n := range names {
		want[n] = true
	}
	out := config.Merged{Servers: make(map[string]config.UpstreamServerConfig)}
	for _, name := range merged.Order {
		if want[name] {
			out.Order = append(out.Order, name)
			out.Servers[name] = merged.Servers[name]
		}
	}
	return out
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
