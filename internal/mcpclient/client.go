// Package mcpclient is the MCP Transport Client (spec §4.D): a thin,
// connect-operate-close wrapper around mark3labs/mcp-go's client package
// that hides stdio/HTTP/SSE transport selection from callers.
package mcpclient

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	"github.com/mark3labs/mcp-go/mcp"
	"golang.org/x/oauth2"

	"github.com/pleaseai/mcp-please/internal/buildinfo"
	"github.com/pleaseai/mcp-please/internal/config"
	"github.com/pleaseai/mcp-please/internal/toolsdata"
)

// DefaultTimeout bounds connecting to an upstream and the MCP initialize
// handshake in Dial; later calls on a Session are bounded only by their ctx.
const DefaultTimeout = 30 * time.Second

// ClientName is the Implementation.Name sent during MCP initialize.
const ClientName = "mcp-please"

// Credentials resolved for a single upstream connection (spec §4.F/§4.M
// "credential resolution" — either a bearer token or nothing).
type Credentials struct {
	BearerToken string
}

// Session wraps a connected, initialized mark3labs/mcp-go client for one
// upstream server. Callers MUST call Close when done; a Session is single-use.
type Session struct {
	upstreamName string
	client       *client.Client
}

// Dial connects to the upstream described by cfg, performs the MCP
// initialize handshake, and returns a ready-to-use Session. The caller owns
// the returned Session and must Close it.
func Dial(ctx context.Context, upstreamName string, cfg config.UpstreamServerConfig, creds Credentials) (*Session, error) {
	ctx, cancel := context.WithTimeout(ctx, DefaultTimeout)
	defer cancel()

	c, err := newTransportClient(cfg, creds)
	if err != nil {
		return nil, fmt.Errorf("mcpclient: build transport for %s: %w", upstreamName, err)
	}

	if err := c.Start(ctx); err != nil {
		return nil, fmt.Errorf("mcpclient: start transport for %s: %w", upstreamName, err)
	}

	initReq := mcp.InitializeRequest{}
	initReq.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	initReq.Params.Capabilities = mcp.ClientCapabilities{}
	initReq.Params.ClientInfo = mcp.Implementation{
		Name:    ClientName,
		Version: buildinfo.Version,
	}

	if _, err := c.Initialize(ctx, initReq); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("mcpclient: initialize %s: %w", upstreamName, err)
	}

	return &Session{upstreamName: upstreamName, client: c}, nil
}

func newTransportClient(cfg config.UpstreamServerConfig, creds Credentials) (*client.Client, error) {
	switch cfg.ResolvedTransport() {
	case config.TransportStdio:
		env := os.Environ()
		for k, v := range cfg.Env {
			env = append(env, fmt.Sprintf("%s=%s", k, v))
		}
		return client.NewStdioMCPClient(cfg.Command, env, cfg.Args...)

	case config.TransportSSE:
		var opts []transport.ClientOption
		if creds.BearerToken != "" {
			opts = append(opts, transport.WithHeaders(map[string]string{
				"Authorization": authHeaderValue(creds.BearerToken),
			}))
		}
		return client.NewSSEMCPClient(cfg.URL, opts...)

	case config.TransportHTTP:
		var opts []transport.StreamableHTTPCOption
		if creds.BearerToken != "" {
			opts = append(opts, transport.WithHTTPHeaders(map[string]string{
				"Authorization": authHeaderValue(creds.BearerToken),
			}))
		}
		return client.NewStreamableHttpClient(cfg.URL, opts...)

	default:
		return nil, fmt.Errorf("unsupported transport %q", cfg.ResolvedTransport())
	}
}

// Close releases the underlying transport.
func (s *Session) Close() error {
	return s.client.Close()
}

// ListTools fetches the upstream's full tool list and adorns each with
// provenance metadata naming this upstream (spec §3 "tool name prefixing").
func (s *Session) ListTools(ctx context.Context) ([]toolsdata.ToolDefinition, error) {
	resp, err := s.client.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		return nil, fmt.Errorf("mcpclient: list tools from %s: %w", s.upstreamName, err)
	}

	defs := make([]toolsdata.ToolDefinition, 0, len(resp.Tools))
	for _, t := range resp.Tools {
		def := toolsdata.ToolDefinition{
			Name:        t.Name,
			Title:       t.Annotations.Title,
			Description: t.Description,
			InputSchema: convertSchema(t.InputSchema.Type, t.InputSchema.Properties, t.InputSchema.Required),
		}
		defs = append(defs, toolsdata.WithProvenance(def, s.upstreamName))
	}
	return defs, nil
}

// CallTool invokes originalName (the upstream's own, unprefixed tool name)
// with args and returns the raw text/JSON content mark3labs/mcp-go reports.
func (s *Session) CallTool(ctx context.Context, originalName string, args map[string]any) (*mcp.CallToolResult, error) {
	req := mcp.CallToolRequest{}
	req.Params.Name = originalName
	req.Params.Arguments = args

	result, err := s.client.CallTool(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("mcpclient: call %s on %s: %w", originalName, s.upstreamName, err)
	}
	return result, nil
}

// authHeaderValue formats an access token as an HTTP Authorization header
// value via golang.org/x/oauth2's Token.Type(), which defaults to "Bearer"
// when no explicit token type is set, rather than hardcoding the scheme.
func authHeaderValue(accessToken string) string {
	tok := &oauth2.Token{AccessToken: accessToken}
	return tok.Type() + " " + tok.AccessToken
}

func convertSchema(typ string, properties map[string]any, required []string) *toolsdata.InputSchema {
	if typ == "" && len(properties) == 0 {
		return nil
	}
	schema := &toolsdata.InputSchema{
		Type:       typ,
		Required:   required,
		Properties: make(map[string]*toolsdata.SchemaProp, len(properties)),
	}
	for name, raw := range properties {
		schema.Properties[name] = convertSchemaProp(raw)
	}
	return schema
}

func convertSchemaProp(raw any) *toolsdata.SchemaProp {
	m, ok := raw.(map[string]any)
	if !ok {
		return &toolsdata.SchemaProp{}
	}
	prop := &toolsdata.SchemaProp{}
	if v, ok := m["type"].(string); ok {
		prop.Type = v
	}
	if v, ok := m["description"].(string); ok {
		prop.Description = v
	}
	if v, ok := m["enum"].([]any); ok {
		prop.Enum = v
	}
	if v, ok := m["items"]; ok {
		prop.Items = convertSchemaProp(v)
	}
	if v, ok := m["properties"].(map[string]any); ok {
		prop.Properties = make(map[string]*toolsdata.SchemaProp, len(v))
		for name, nested := range v {
			prop.Properties[name] = convertSchemaProp(nested)
		}
	}
	return prop
}
