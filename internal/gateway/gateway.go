// Package gateway implements the MCP Gateway Server (spec §4.L): it serves
// a merged user+project tool index over MCP, exposing search_tools,
// list_tools, get_tool, and tool_search_info as meta-tools. Tool execution
// itself is deliberately not exposed at the MCP layer (package executor
// handles that, driven by the CLI's "call" verb) so a host can gate
// execution behind shell-command permission policy.
package gateway

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/mark3labs/mcp-go/server"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pleaseai/mcp-please/internal/buildinfo"
	"github.com/pleaseai/mcp-please/internal/embedding"
	"github.com/pleaseai/mcp-please/internal/logger"
	"github.com/pleaseai/mcp-please/internal/search"
)

// ServerName is the name advertised in MCP's initialize handshake.
const ServerName = "mcp-please-gateway"

// Config configures a Server.
type Config struct {
	// UserIndexPath and ProjectIndexPath name the index files to merge.
	// Either may be empty, meaning that scope contributes nothing.
	UserIndexPath    string
	ProjectIndexPath string
}

// Server wires a process-lifetime merged index cache to an MCP server
// exposing the four meta-tools.
type Server struct {
	cfg   Config
	cache *IndexCache
}

// New builds a Server over cfg's index paths.
func New(cfg Config) *Server {
	return &Server{cfg: cfg, cache: NewIndexCache(cfg.UserIndexPath, cfg.ProjectIndexPath)}
}

// InvalidateCache forces the next tool call to reload and re-merge the
// index files, without waiting for a modification-time change to be seen
// (spec §4.L "writes invalidate the cache").
func (s *Server) InvalidateCache() { s.cache.Invalidate() }

// buildMCPServer constructs the underlying mcp-go server with all four
// meta-tools registered, grounded on the registration pattern of
// stacklok-toolhive's cmd/thv/app/mcp_serve.go.
func (s *Server) buildMCPServer() *server.MCPServer {
	mcpServer := server.NewMCPServer(
		ServerName,
		buildinfo.Version,
		server.WithToolCapabilities(false),
		server.WithLogging(),
	)

	h := &handler{server: s}
	registerMetaTools(mcpServer, h)
	return mcpServer
}

// ServeStdio runs the gateway over stdio until the client disconnects or the
// process receives SIGINT/SIGTERM; ctx is not consulted. This is the CLI's
// default "serve" transport.
func (s *Server) ServeStdio(ctx context.Context) error {
	mcpServer := s.buildMCPServer()
	logger.Info("gateway: serving over stdio")
	// ServeStdio manages its own context and signal handling internally;
	// the ctx parameter only documents the caller's cancellation intent.
	return server.ServeStdio(mcpServer)
}

// ServeHTTP runs the gateway as a Streamable HTTP MCP server on addr until
// ctx is cancelled, at which point it shuts down gracefully. Grounded on
// stacklok-toolhive's cmd/thv/app/mcp_serve.go HTTP-serving idiom for the
// MCP endpoint itself; a chi router sits in front of it so the gateway can
// also expose /healthz and /metrics without growing its own mux.
func (s *Server) ServeHTTP(ctx context.Context, addr string) error {
	mcpServer := s.buildMCPServer()

	streamableServer := server.NewStreamableHTTPServer(
		mcpServer,
		server.WithEndpointPath("/mcp"),
		server.WithHTTPContextFunc(func(_ context.Context, _ *http.Request) context.Context {
			return ctx
		}),
	)

	router := chi.NewRouter()
	router.Use(middleware.Recoverer)
	router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	router.Handle("/metrics", promhttp.Handler())
	// streamableServer already routes its own "/mcp" endpoint internally
	// (server.WithEndpointPath above), so it is mounted at the router root.
	router.Mount("/", streamableServer)

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("gateway: serving http://%s/mcp", addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		logger.Info("gateway: shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	}
}

// OrchestratorFor builds a search.Orchestrator over merged: regex and BM25
// are always available; embedding and hybrid are wired in only when the
// merged index actually carries embeddings, matching a query-time provider
// built from the index's recorded embedding tag (spec §4.L "tool_search_info").
func OrchestratorFor(merged *MergedIndex) (*search.Orchestrator, error) {
	strategies := map[search.Mode]search.Strategy{
		search.ModeRegex: search.NewRegexStrategy(),
		search.ModeBM25:  search.NewBM25Strategy(merged.Stats),
	}

	if merged.HasEmbeddings && merged.EmbeddingTag != "" {
		provider, err := embedding.New(embedding.Config{Tag: merged.EmbeddingTag})
		if err != nil {
			return nil, fmt.Errorf("gateway: building embedding provider %q: %w", merged.EmbeddingTag, err)
		}
		embedStrategy := search.NewEmbeddingStrategy(provider)
		strategies[search.ModeEmbedding] = embedStrategy
		strategies[search.ModeHybrid] = search.NewHybridStrategy(strategies[search.ModeBM25], embedStrategy)
	}

	return search.NewOrchestrator(strategies), nil
}

// AvailableModes lists the search modes tool_search_info should report.
func AvailableModes(merged *MergedIndex) []search.Mode {
	modes := []search.Mode{search.ModeRegex, search.ModeBM25}
	if merged.HasEmbeddings {
		modes = append(modes, search.ModeEmbedding, search.ModeHybrid)
	}
	return modes
}
