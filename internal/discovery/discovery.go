// Package discovery implements the Discovery Engine (spec §4.F): a
// sequential fan-out across configured upstream MCP servers that isolates
// per-upstream failures and reports progress as it goes.
package discovery

import (
	"context"
	"fmt"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"

	"github.com/pleaseai/mcp-please/internal/config"
	"github.com/pleaseai/mcp-please/internal/logger"
	"github.com/pleaseai/mcp-please/internal/mcpclient"
	"github.com/pleaseai/mcp-please/internal/metrics"
	"github.com/pleaseai/mcp-please/internal/oauthmgr"
	"github.com/pleaseai/mcp-please/internal/tokenstore"
	"github.com/pleaseai/mcp-please/internal/toolsdata"
)

// Phase identifies a discovery sub-step for progress reporting.
type Phase string

const (
	PhaseConnecting    Phase = "connecting"
	PhaseAuthenticating Phase = "authenticating"
	PhaseFetching      Phase = "fetching"
	PhaseDone          Phase = "done"
	PhaseError         Phase = "error"
)

// dialMaxTries bounds retries of a single upstream dial against transient
// connection failures; kept low since a stdio upstream's command is
// re-spawned on each attempt.
const dialMaxTries = 2

// Progress is delivered once per (upstream, phase) transition.
type Progress struct {
	Upstream string
	Phase    Phase
	Err      error
}

// ProgressFunc receives discovery progress events; nil is a valid no-op callback.
type ProgressFunc func(Progress)

// UpstreamResult is the outcome of discovering a single upstream.
type UpstreamResult struct {
	Upstream string
	Tools    []toolsdata.ToolDefinition
	Err      error
}

// Options configures a discovery run.
type Options struct {
	// Exclude lists upstream names to skip entirely.
	Exclude []string
	// TokenStore backs OAuth session lookup/refresh for OAuth-authorized upstreams.
	TokenStore *tokenstore.Store
	OnProgress ProgressFunc
}

// Discover walks merged.Order in deterministic order, connecting to each
// non-excluded upstream and listing its tools. A failure on one upstream
// does not abort discovery of the others (spec §4.F "error isolation").
func Discover(ctx context.Context, merged config.Merged, opts Options) []UpstreamResult {
	runID := uuid.NewString()
	logger.Debugw("discovery: starting run", "runId", runID, "upstreams", len(merged.Order))

	excluded := make(map[string]bool, len(opts.Exclude))
	for _, name := range opts.Exclude {
		excluded[name] = true
	}

	results := make([]UpstreamResult, 0, len(merged.Order))
	for _, name := range merged.Order {
		if excluded[name] {
			continue
		}
		upstreamCfg := merged.Servers[name]
		results = append(results, discoverOne(ctx, name, upstreamCfg, opts))
	}
	return results
}

func discoverOne(ctx context.Context, name string, upstreamCfg config.UpstreamServerConfig, opts Options) UpstreamResult {
	report := func(phase Phase, err error) {
		if opts.OnProgress != nil {
			opts.OnProgress(Progress{Upstream: name, Phase: phase, Err: err})
		}
	}

	report(PhaseConnecting, nil)

	creds, err := resolveCredentials(ctx, name, upstreamCfg, opts.TokenStore)
	if err != nil {
		report(PhaseError, err)
		metrics.DiscoveryTotal.WithLabelValues(name, metrics.OutcomeError).Inc()
		return UpstreamResult{Upstream: name, Err: err}
	}

	report(PhaseAuthenticating, nil)

	session, err := backoff.Retry(ctx, func() (*mcpclient.Session, error) {
		return mcpclient.Dial(ctx, name, upstreamCfg, creds)
	}, backoff.WithMaxTries(dialMaxTries), backoff.WithBackOff(backoff.NewExponentialBackOff()))
	if err != nil {
		report(PhaseError, err)
		metrics.DiscoveryTotal.WithLabelValues(name, metrics.OutcomeError).Inc()
		return UpstreamResult{Upstream: name, Err: err}
	}
	defer session.Close()

	report(PhaseFetching, nil)

	tools, err := session.ListTools(ctx)
	if err != nil {
		report(PhaseError, err)
		metrics.DiscoveryTotal.WithLabelValues(name, metrics.OutcomeError).Inc()
		return UpstreamResult{Upstream: name, Err: err}
	}

	report(PhaseDone, nil)
	metrics.DiscoveryTotal.WithLabelValues(name, metrics.OutcomeSuccess).Inc()
	logger.Debugf("discovery: %s contributed %d tools", name, len(tools))
	return UpstreamResult{Upstream: name, Tools: tools}
}

// resolveCredentials resolves an upstream's configured Authorization into
// dial-time credentials (spec §4.D/§4.F). Missing OAuth sessions surface a
// remediation hint naming the "mcp auth" CLI verb rather than failing silently.
func resolveCredentials(ctx context.Context, name string, cfg config.UpstreamServerConfig, store *tokenstore.Store) (mcpclient.Credentials, error) {
	if cfg.Authorization == nil {
		return mcpclient.Credentials{}, nil
	}

	switch cfg.Authorization.Type {
	case config.AuthNone:
		return mcpclient.Credentials{}, nil

	case config.AuthBearer:
		return mcpclient.Credentials{BearerToken: cfg.Authorization.Token}, nil

	case config.AuthOAuth2:
		if store == nil {
			return mcpclient.Credentials{}, fmt.Errorf("discovery: %s requires OAuth but no token store is configured", name)
		}
		oauthCfg := oauthmgr.Config{ServerName: name, ServerURL: cfg.URL}
		if cfg.Authorization.OAuth != nil {
			oauthCfg.Scopes = cfg.Authorization.OAuth.Scopes
			oauthCfg.Resource = cfg.Authorization.OAuth.Resource
			oauthCfg.AuthorizationServer = cfg.Authorization.OAuth.AuthorizationServer
		}

		if !store.HasSession(cfg.URL) {
			return mcpclient.Credentials{}, fmt.Errorf(
				"discovery: %s has no authorized OAuth session; run \"mcp auth %s\" to authorize", name, name)
		}

		mgr := oauthmgr.New(oauthCfg, store)
		token, err := mgr.GetAccessToken(ctx)
		if err != nil {
			return mcpclient.Credentials{}, fmt.Errorf(
				"discovery: %s OAuth token acquisition failed (run \"mcp auth %s\" to re-authorize): %w", name, name, err)
		}
		return mcpclient.Credentials{BearerToken: token}, nil

	default:
		return mcpclient.Credentials{}, fmt.Errorf("discovery: %s has unknown authorization type %q", name, cfg.Authorization.Type)
	}
}
