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

	"github.com/pleaseai/mcp-please/internal/logger"
	"github.com/pleaseai/mcp-please/internal/networking"
)

// UserAgent is sent on all OAuth/OIDC HTTP requests made by this process.
const UserAgent = "mcp-please/1.0"

// ClientName is the client_name sent during dynamic registration; it
// includes the upstream server name per spec §4.C.
func ClientName(serverName string) string {
	return fmt.Sprintf("mcp-please gateway (%s)", serverName)
}

const (
	grantAuthorizationCode = "authorization_code"
	grantRefreshToken      = "refresh_token"
	responseTypeCode       = "code"
	authMethodNone         = "none"
)

// DynamicClientRegistrationRequest is the RFC 7591 registration request body.
type DynamicClientRegistrationRequest struct {
	RedirectURIs            []string `json:"redirect_uris"`
	ClientName              string   `json:"client_name,omitempty"`
	TokenEndpointAuthMethod string   `json:"token_endpoint_auth_method,omitempty"`
	GrantTypes              []string `json:"grant_types,omitempty"`
	ResponseTypes           []string `json:"response_types,omitempty"`
	Scope                   string   `json:"scope,omitempty"`
}

// NewDynamicClientRegistrationRequest builds a public-client (PKCE)
// registration request naming the upstream server and the one redirect URI
// derived from the chosen callback port (spec §4.C).
func NewDynamicClientRegistrationRequest(serverName string, scopes []string, callbackPort int) *DynamicClientRegistrationRequest {
	return &DynamicClientRegistrationRequest{
		RedirectURIs:            []string{fmt.Sprintf("http://localhost:%d/callback", callbackPort)},
		ClientName:              ClientName(serverName),
		TokenEndpointAuthMethod: authMethodNone,
		GrantTypes:              []string{grantAuthorizationCode, grantRefreshToken},
		ResponseTypes:           []string{responseTypeCode},
		Scope:                   strings.Join(scopes, " "),
	}
}

// DynamicClientRegistrationResponse is the RFC 7591 registration response.
type DynamicClientRegistrationResponse struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret,omitempty"`
}

// RegisterClientDynamically performs RFC 7591 dynamic client registration
// against registrationEndpoint.
func RegisterClientDynamically(
	ctx context.Context,
	registrationEndpoint string,
	req *DynamicClientRegistrationRequest,
) (*DynamicClientRegistrationResponse, error) {
	regURL, err := url.Parse(registrationEndpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid registration endpoint URL: %w", err)
	}
	if regURL.Scheme != "https" && !networking.IsLocalhost(regURL.Host) {
		return nil, fmt.Errorf("registration endpoint must use HTTPS: %s", registrationEndpoint)
	}
	if len(req.RedirectURIs) == 0 {
		return nil, fmt.Errorf("at least one redirect URI is required")
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal registration request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, registrationEndpoint, strings.NewReader(string(body)))
	if err != nil {
		return nil, fmt.Errorf("create registration request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", UserAgent)

	client := networking.NewHTTPClient(30 * time.Second)
	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("perform dynamic client registration: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		errBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("dynamic client registration failed with status %d: %s", resp.StatusCode, string(errBody))
	}

	const maxResponseSize = 1 << 20
	var out DynamicClientRegistrationResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseSize)).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode registration response: %w", err)
	}
	if out.ClientID == "" {
		return nil, fmt.Errorf("registration response missing client_id")
	}

	logger.Infof("oauthmgr: registered OAuth client dynamically for %s", regURL.Host)
	return &out, nil
}
