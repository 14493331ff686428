package oauthmgr

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pleaseai/mcp-please/internal/networking"
)

// Endpoints are the resolved authorization-server endpoints for an upstream.
type Endpoints struct {
	AuthorizationURL            string
	TokenURL                    string
	RegistrationURL             string
	CodeChallengeMethodsSupported []string
}

// protectedResourceMetadata is the RFC 9728 document shape.
type protectedResourceMetadata struct {
	Resource             string   `json:"resource"`
	AuthorizationServers []string `json:"authorization_servers"`
}

// authServerMetadata is the RFC 8414 document shape (also used for OIDC
// discovery documents, which are a superset).
type authServerMetadata struct {
	Issuer                         string   `json:"issuer"`
	AuthorizationEndpoint          string   `json:"authorization_endpoint"`
	TokenEndpoint                  string   `json:"token_endpoint"`
	RegistrationEndpoint           string   `json:"registration_endpoint,omitempty"`
	CodeChallengeMethodsSupported  []string `json:"code_challenge_methods_supported,omitempty"`
}

// DiscoverEndpoints resolves OAuth endpoints for originURL following spec
// §4.C: first RFC 9728 protected-resource metadata (if it names an
// authorization server, follow it), else RFC 8414 authorization-server
// metadata at the origin, else hard-coded conventional paths.
func DiscoverEndpoints(ctx context.Context, originURL string) (*Endpoints, error) {
	u, err := url.Parse(originURL)
	if err != nil {
		return nil, fmt.Errorf("invalid origin URL: %w", err)
	}
	origin := u.Scheme + "://" + u.Host

	client := networking.NewHTTPClient(10 * time.Second)

	if prm, err := fetchJSON[protectedResourceMetadata](ctx, client, origin+"/.well-known/oauth-protected-resource"); err == nil {
		if len(prm.AuthorizationServers) > 0 {
			if ep, err := discoverAuthorizationServer(ctx, client, prm.AuthorizationServers[0]); err == nil {
				return ep, nil
			}
		}
	}

	if ep, err := discoverAuthorizationServer(ctx, client, origin); err == nil {
		return ep, nil
	}

	// Fall back to hard-coded conventional endpoints.
	return &Endpoints{
		AuthorizationURL: origin + "/authorize",
		TokenURL:         origin + "/token",
		RegistrationURL:  origin + "/register",
	}, nil
}

func discoverAuthorizationServer(ctx context.Context, client *http.Client, authServerOrigin string) (*Endpoints, error) {
	u, err := url.Parse(authServerOrigin)
	if err != nil {
		return nil, fmt.Errorf("invalid authorization server URL: %w", err)
	}
	base := u.Scheme + "://" + u.Host

	meta, err := fetchJSON[authServerMetadata](ctx, client, base+"/.well-known/oauth-authorization-server")
	if err != nil {
		return nil, err
	}
	if meta.AuthorizationEndpoint == "" || meta.TokenEndpoint == "" {
		return nil, fmt.Errorf("authorization server metadata missing required endpoints")
	}
	return &Endpoints{
		AuthorizationURL:               meta.AuthorizationEndpoint,
		TokenURL:                       meta.TokenEndpoint,
		RegistrationURL:                meta.RegistrationEndpoint,
		CodeChallengeMethodsSupported:  meta.CodeChallengeMethodsSupported,
	}, nil
}

func fetchJSON[T any](ctx context.Context, client *http.Client, u string) (*T, error) {
	parsed, err := url.Parse(u)
	if err != nil {
		return nil, fmt.Errorf("invalid URL %s: %w", u, err)
	}
	if parsed.Scheme != "https" && !networking.IsLocalhost(parsed.Host) {
		return nil, fmt.Errorf("metadata URL must use HTTPS: %s", u)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", UserAgent)

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", u, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s: HTTP %d", u, resp.StatusCode)
	}
	ct := strings.ToLower(resp.Header.Get("Content-Type"))
	if !strings.Contains(ct, "application/json") {
		return nil, fmt.Errorf("%s: unexpected content-type %q", u, ct)
	}

	const maxResponseSize = 1 << 20
	var out T
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseSize)).Decode(&out); err != nil {
		return nil, fmt.Errorf("%s: decode response: %w", u, err)
	}
	return &out, nil
}
