// Package executor implements the Tool Executor (spec §4.M): resolves a
// prefixed tool name back to its upstream server and original name, dials
// that upstream, and dispatches the call, returning a typed, discriminated
// failure when any step along the way cannot proceed.
package executor

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/pleaseai/mcp-please/internal/config"
	"github.com/pleaseai/mcp-please/internal/mcpclient"
	"github.com/pleaseai/mcp-please/internal/metrics"
	"github.com/pleaseai/mcp-please/internal/oauthmgr"
	"github.com/pleaseai/mcp-please/internal/tokenstore"
	"github.com/pleaseai/mcp-please/internal/toolsdata"
)

// Code discriminates why a call could not be executed (spec §4.M).
type Code string

const (
	// ToolNotFound means no indexed tool has the requested prefixed name.
	ToolNotFound Code = "TOOL_NOT_FOUND"
	// MetadataMissing means the tool was found but lacks the upstream
	// provenance metadata needed to route the call.
	MetadataMissing Code = "METADATA_MISSING"
	// ServerNotConfigured means the tool's upstream server name no longer
	// appears in the resolved configuration (stale index).
	ServerNotConfigured Code = "SERVER_NOT_CONFIGURED"
	// AuthRequired means the upstream needs credentials that are missing,
	// expired, or could not be refreshed.
	AuthRequired Code = "AUTH_REQUIRED"
	// ExecutionFailed means the arguments failed schema validation, the
	// upstream could not be connected to, or the call itself failed.
	ExecutionFailed Code = "EXECUTION_FAILED"
)

// Failure is a typed, user-facing execution failure. Remediation, when set,
// names a concrete CLI verb the caller can run to resolve it.
type Failure struct {
	Code        Code
	Message     string
	Remediation string
}

func (f *Failure) Error() string {
	if f.Remediation != "" {
		return fmt.Sprintf("%s: %s (%s)", f.Code, f.Message, f.Remediation)
	}
	return fmt.Sprintf("%s: %s", f.Code, f.Message)
}

// Executor dispatches prefixed tool calls against a merged index and
// upstream configuration.
type Executor struct {
	Index      []toolsdata.IndexedTool
	Merged     config.Merged
	TokenStore *tokenstore.Store
}

// New builds an Executor over the given merged index and upstream config.
func New(index []toolsdata.IndexedTool, merged config.Merged, store *tokenstore.Store) *Executor {
	return &Executor{Index: index, Merged: merged, TokenStore: store}
}

// Execute resolves prefixedName to its upstream and original tool name,
// dials that upstream, and invokes it with args. On any resolution or
// dial failure it returns a nil result and a populated *Failure rather than
// a bare error, so callers can render the failure's code/remediation directly.
func (e *Executor) Execute(ctx context.Context, prefixedName string, args map[string]any) (*mcp.CallToolResult, *Failure) {
	def, ok := e.findTool(prefixedName)
	if !ok {
		return nil, &Failure{
			Code:    ToolNotFound,
			Message: fmt.Sprintf("no tool named %q in the index", prefixedName),
		}
	}

	if err := toolsdata.ValidateArgs(def.Tool, args); err != nil {
		return nil, &Failure{
			Code:    ExecutionFailed,
			Message: err.Error(),
		}
	}

	serverName, originalName, ok := toolsdata.Provenance(def.Tool)
	if !ok {
		return nil, &Failure{
			Code:        MetadataMissing,
			Message:     fmt.Sprintf("tool %q is missing upstream provenance metadata", prefixedName),
			Remediation: "run \"please index\" to rebuild the index",
		}
	}

	upstreamCfg, ok := e.Merged.Servers[serverName]
	if !ok {
		metrics.ExecutionTotal.WithLabelValues(serverName, metrics.OutcomeError).Inc()
		return nil, &Failure{
			Code:        ServerNotConfigured,
			Message:     fmt.Sprintf("upstream server %q is no longer configured", serverName),
			Remediation: fmt.Sprintf("run \"please mcp add %s\" or \"please index\" to refresh", serverName),
		}
	}

	creds, err := e.resolveCredentials(ctx, serverName, upstreamCfg)
	if err != nil {
		metrics.ExecutionTotal.WithLabelValues(serverName, metrics.OutcomeError).Inc()
		return nil, &Failure{
			Code:        AuthRequired,
			Message:     err.Error(),
			Remediation: fmt.Sprintf("run \"please mcp auth %s\"", serverName),
		}
	}

	session, err := mcpclient.Dial(ctx, serverName, upstreamCfg, creds)
	if err != nil {
		metrics.ExecutionTotal.WithLabelValues(serverName, metrics.OutcomeError).Inc()
		return nil, &Failure{
			Code:    ExecutionFailed,
			Message: fmt.Sprintf("could not connect to %q: %v", serverName, err),
		}
	}
	defer session.Close()

	result, err := session.CallTool(ctx, originalName, args)
	if err != nil {
		metrics.ExecutionTotal.WithLabelValues(serverName, metrics.OutcomeError).Inc()
		return nil, &Failure{
			Code:    ExecutionFailed,
			Message: fmt.Sprintf("%q failed on %q: %v", originalName, serverName, err),
		}
	}
	metrics.ExecutionTotal.WithLabelValues(serverName, metrics.OutcomeSuccess).Inc()
	return result, nil
}

func (e *Executor) findTool(name string) (toolsdata.IndexedTool, bool) {
	for _, t := range e.Index {
		if t.Tool.Name == name {
			return t, true
		}
	}
	return toolsdata.IndexedTool{}, false
}

// resolveCredentials mirrors the Discovery Engine's credential resolution
// (package discovery) so the executor can re-authenticate at call time
// without importing discovery's unexported helper.
func (e *Executor) resolveCredentials(ctx context.Context, name string, cfg config.UpstreamServerConfig) (mcpclient.Credentials, error) {
	if cfg.Authorization == nil {
		return mcpclient.Credentials{}, nil
	}

	switch cfg.Authorization.Type {
	case config.AuthNone:
		return mcpclient.Credentials{}, nil

	case config.AuthBearer:
		return mcpclient.Credentials{BearerToken: cfg.Authorization.Token}, nil

	case config.AuthOAuth2:
		if e.TokenStore == nil {
			return mcpclient.Credentials{}, fmt.Errorf("%s requires OAuth but no token store is configured", name)
		}
		oauthCfg := oauthmgr.Config{ServerName: name, ServerURL: cfg.URL}
		if cfg.Authorization.OAuth != nil {
			oauthCfg.Scopes = cfg.Authorization.OAuth.Scopes
			oauthCfg.Resource = cfg.Authorization.OAuth.Resource
			oauthCfg.AuthorizationServer = cfg.Authorization.OAuth.AuthorizationServer
		}
		if !e.TokenStore.HasSession(cfg.URL) {
			return mcpclient.Credentials{}, fmt.Errorf("%s has no authorized OAuth session", name)
		}
		token, err := oauthmgr.New(oauthCfg, e.TokenStore).GetAccessToken(ctx)
		if err != nil {
			return mcpclient.Credentials{}, fmt.Errorf("%s OAuth token acquisition failed: %w", name, err)
		}
		return mcpclient.Credentials{BearerToken: token}, nil

	default:
		return mcpclient.Credentials{}, fmt.Errorf("%s has unknown authorization type %q", name, cfg.Authorization.Type)
	}
}
