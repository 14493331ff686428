// Package oauthmgr implements the OAuth Manager (spec §4.C): a full OAuth
// 2.1 authorization-code + PKCE client flow against a single upstream's
// authorization server, including RFC 9728/8414 endpoint discovery, RFC
// 7591 dynamic client registration, and proactive token refresh.
package oauthmgr

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/pkg/browser"

	"github.com/pleaseai/mcp-please/internal/logger"
	"github.com/pleaseai/mcp-please/internal/networking"
	"github.com/pleaseai/mcp-please/internal/tokenstore"
)

// State is the OAuth Manager's explicit state machine (spec §4.M "State
// machines"): Uninitialized -> Discovering -> Registering? ->
// Awaiting-Callback -> Exchanging -> Authorized <-> Refreshing -> Revoked.
type State int

const (
	StateUninitialized State = iota
	StateDiscovering
	StateRegistering
	StateAwaitingCallback
	StateExchanging
	StateAuthorized
	StateRefreshing
	StateRevoked
)

// DefaultCallbackPort is the base port probed for the OAuth callback server
// (spec §4.C).
const DefaultCallbackPort = 3334

// MaxCallbackPortAttempts bounds how many consecutive ports are probed.
const MaxCallbackPortAttempts = 10

// CallbackTimeout is the hard timeout for the authorization callback (spec §4.C/§5).
const CallbackTimeout = 5 * time.Minute

// Config describes a single upstream's OAuth configuration.
type Config struct {
	// ServerName is the upstream's configured name, used for client naming
	// and the "mcp auth <name>" remediation hint.
	ServerName string
	// ServerURL is the upstream's base URL (also used as the RFC 8707
	// "resource" indicator unless Resource is set explicitly).
	ServerURL string
	Scopes    []string
	Resource  string
	// AuthorizationServer overrides discovery with an explicit issuer/origin.
	AuthorizationServer string
}

// Manager drives the OAuth 2.1 flow for one upstream.
type Manager struct {
	cfg        Config
	store      *tokenstore.Store
	state      State
	basePort   int
	maxPorts   int
	httpClient *http.Client

	// openBrowser is overridable in tests.
	openBrowser func(url string) error
}

// New constructs a Manager for cfg, persisting sessions/client info in store.
func New(cfg Config, store *tokenstore.Store) *Manager {
	return &Manager{
		cfg:         cfg,
		store:       store,
		state:       StateUninitialized,
		basePort:    DefaultCallbackPort,
		maxPorts:    MaxCallbackPortAttempts,
		httpClient:  networking.NewHTTPClient(30 * time.Second),
		openBrowser: browser.OpenURL,
	}
}

// State returns the manager's current state, primarily for observability/tests.
func (m *Manager) State() State { return m.state }

// GetAccessToken returns a valid access token for the configured upstream,
// running the full authorization flow if no session exists, or refreshing
// proactively within the refresh buffer (spec §4.C "Refresh").
func (m *Manager) GetAccessToken(ctx context.Context) (string, error) {
	sess, ok, err := m.store.LoadSession(m.cfg.ServerURL, true)
	if err != nil {
		return "", fmt.Errorf("oauthmgr: load session: %w", err)
	}
	if !ok {
		newSess, err := m.Authorize(ctx)
		if err != nil {
			return "", err
		}
		return newSess.AccessToken, nil
	}

	if sess.NeedsRefresh(time.Now()) && sess.RefreshToken != "" {
		m.state = StateRefreshing
		refreshed, err := m.refresh(ctx, *sess)
		if err != nil {
			logger.Warnf("oauthmgr: refresh failed for %s, falling back to full flow: %v", m.cfg.ServerName, err)
			newSess, authErr := m.Authorize(ctx)
			if authErr != nil {
				return "", authErr
			}
			return newSess.AccessToken, nil
		}
		return refreshed.AccessToken, nil
	}

	if sess.Expired(time.Now()) {
		newSess, err := m.Authorize(ctx)
		if err != nil {
			return "", err
		}
		return newSess.AccessToken, nil
	}

	m.state = StateAuthorized
	return sess.AccessToken, nil
}

// Revoke clears the stored session for this upstream.
func (m *Manager) Revoke(_ context.Context) error {
	m.state = StateRevoked
	return m.store.ClearSession(m.cfg.ServerURL)
}

// Authorize runs the full authorization-code + PKCE flow end to end.
func (m *Manager) Authorize(ctx context.Context) (*tokenstore.Session, error) {
	m.state = StateDiscovering
	originForDiscovery := m.cfg.ServerURL
	if m.cfg.AuthorizationServer != "" {
		originForDiscovery = m.cfg.AuthorizationServer
	}
	endpoints, err := DiscoverEndpoints(ctx, originForDiscovery)
	if err != nil {
		return nil, fmt.Errorf("oauthmgr: endpoint discovery: %w", err)
	}

	port, err := networking.FindAvailablePort(m.basePort, m.maxPorts)
	if err != nil {
		return nil, fmt.Errorf("%w: tried ports %d-%d", ErrNoPortAvailable, m.basePort, m.basePort+m.maxPorts-1)
	}
	if port != m.basePort {
		logger.Warnf("oauthmgr: callback port %d busy, using %d instead", m.basePort, port)
	}

	clientInfo, err := m.resolveClientInfo(ctx, endpoints, port)
	if err != nil {
		return nil, err
	}

	state, err := GenerateState()
	if err != nil {
		return nil, fmt.Errorf("oauthmgr: generate state: %w", err)
	}

	var pkce *PKCEParams
	usePKCE := contains(endpoints.CodeChallengeMethodsSupported, "S256")
	if usePKCE {
		pkce, err = GeneratePKCEParams()
		if err != nil {
			return nil, fmt.Errorf("oauthmgr: generate PKCE: %w", err)
		}
	}

	resource := m.cfg.Resource
	if resource == "" {
		resource = m.cfg.ServerURL
	}

	redirectURI := fmt.Sprintf("http://localhost:%d/callback", port)
	authURL := buildAuthorizationURL(endpoints.AuthorizationURL, clientInfo.ClientID, redirectURI, state, pkce, m.cfg.Scopes, resource)

	m.state = StateAwaitingCallback
	result, err := runCallbackServer(ctx, port, state, CallbackTimeout)
	if err != nil {
		return nil, err
	}

	logger.Infof("oauthmgr: opening browser for %s authorization", m.cfg.ServerName)
	if err := m.openBrowser(authURL); err != nil {
		logger.Warnf("oauthmgr: could not open browser automatically, visit: %s", authURL)
	}

	cbResult := <-result
	if cbResult.err != nil {
		return nil, cbResult.err
	}

	m.state = StateExchanging
	verifier := ""
	if pkce != nil {
		verifier = pkce.CodeVerifier
	}
	tokenResp, err := exchangeCode(ctx, m.httpClient, endpoints.TokenURL, cbResult.code, redirectURI, clientInfo.ClientID, verifier, resource)
	if err != nil {
		return nil, fmt.Errorf("oauthmgr: token exchange: %w", err)
	}

	sess := tokenstore.Session{
		ClientID:     clientInfo.ClientID,
		ClientSecret: clientInfo.ClientSecret,
		AccessToken:  tokenResp.AccessToken,
		TokenType:    tokenResp.TokenType,
		RefreshToken: tokenResp.RefreshToken,
		Scope:        tokenResp.Scope,
		ExpiresAt:    expiryFromSeconds(tokenResp.ExpiresIn),
	}
	if err := m.store.SaveSession(m.cfg.ServerURL, sess); err != nil {
		return nil, fmt.Errorf("oauthmgr: persist session: %w", err)
	}
	m.state = StateAuthorized
	return &sess, nil
}

func (m *Manager) resolveClientInfo(ctx context.Context, endpoints *Endpoints, port int) (*tokenstore.ClientInfo, error) {
	if info, ok, err := m.store.LoadClientInfo(m.cfg.ServerURL); err != nil {
		return nil, fmt.Errorf("oauthmgr: load cached client info: %w", err)
	} else if ok {
		return info, nil
	}

	if endpoints.RegistrationURL == "" {
		return nil, fmt.Errorf("oauthmgr: no dynamic registration endpoint and no cached client for %s", m.cfg.ServerName)
	}

	m.state = StateRegistering
	req := NewDynamicClientRegistrationRequest(m.cfg.ServerName, m.cfg.Scopes, port)
	resp, err := RegisterClientDynamically(ctx, endpoints.RegistrationURL, req)
	if err != nil {
		return nil, fmt.Errorf("oauthmgr: dynamic client registration: %w", err)
	}

	info := &tokenstore.ClientInfo{ClientID: resp.ClientID, ClientSecret: resp.ClientSecret}
	if err := m.store.SaveClientInfo(m.cfg.ServerURL, *info); err != nil {
		return nil, fmt.Errorf("oauthmgr: cache client info: %w", err)
	}
	return info, nil
}

func (m *Manager) refresh(ctx context.Context, sess tokenstore.Session) (*tokenstore.Session, error) {
	resource := m.cfg.Resource
	if resource == "" {
		resource = m.cfg.ServerURL
	}
	tokenURL, err := m.tokenURLForRefresh(ctx)
	if err != nil {
		return nil, err
	}

	form := url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {sess.RefreshToken},
		"client_id":     {sess.ClientID},
		"resource":      {resource},
	}
	if sess.ClientSecret != "" {
		form.Set("client_secret", sess.ClientSecret)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("build refresh request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("refresh request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("refresh failed with status %d", resp.StatusCode)
	}

	tokenResp, err := decodeTokenResponse(resp)
	if err != nil {
		return nil, err
	}

	refreshToken := tokenResp.RefreshToken
	if refreshToken == "" {
		refreshToken = sess.RefreshToken
	}
	newSess := tokenstore.Session{
		ClientID:     sess.ClientID,
		ClientSecret: sess.ClientSecret,
		AccessToken:  tokenResp.AccessToken,
		TokenType:    tokenResp.TokenType,
		RefreshToken: refreshToken,
		Scope:        tokenResp.Scope,
		ExpiresAt:    expiryFromSeconds(tokenResp.ExpiresIn),
	}
	if err := m.store.SaveSession(m.cfg.ServerURL, newSess); err != nil {
		return nil, fmt.Errorf("persist refreshed session: %w", err)
	}
	m.state = StateAuthorized
	return &newSess, nil
}

func (m *Manager) tokenURLForRefresh(ctx context.Context) (string, error) {
	originForDiscovery := m.cfg.ServerURL
	if m.cfg.AuthorizationServer != "" {
		originForDiscovery = m.cfg.AuthorizationServer
	}
	endpoints, err := DiscoverEndpoints(ctx, originForDiscovery)
	if err != nil {
		return "", fmt.Errorf("discover token endpoint for refresh: %w", err)
	}
	return endpoints.TokenURL, nil
}

func contains(list []string, target string) bool {
	for _, v := range list {
		if strings.EqualFold(v, target) {
			return true
		}
	}
	return false
}

func buildAuthorizationURL(authURL, clientID, redirectURI, state string, pkce *PKCEParams, scopes []string, resource string) string {
	v := url.Values{}
	v.Set("client_id", clientID)
	v.Set("redirect_uri", redirectURI)
	v.Set("response_type", responseTypeCode)
	v.Set("state", state)
	v.Set("prompt", "consent")
	if pkce != nil {
		v.Set("code_challenge", pkce.CodeChallenge)
		v.Set("code_challenge_method", "S256")
	}
	if len(scopes) > 0 {
		v.Set("scope", strings.Join(scopes, " "))
	}
	if resource != "" {
		v.Set("resource", resource)
	}
	sep := "?"
	if strings.Contains(authURL, "?") {
		sep = "&"
	}
	return authURL + sep + v.Encode()
}

type callbackResult struct {
	code string
	err  error
}

// runCallbackServer starts a short-lived HTTP server on port awaiting GET
// /callback, validating state, and returns a channel delivering exactly one
// result (spec §4.C "Callback handling", §5 "OAuth local callback server").
func runCallbackServer(ctx context.Context, port int, expectedState string, timeout time.Duration) (<-chan callbackResult, error) {
	resultCh := make(chan callbackResult, 1)
	mux := http.NewServeMux()
	srv := &http.Server{Addr: fmt.Sprintf("127.0.0.1:%d", port), Handler: mux}

	var once sendOnce
	mux.HandleFunc("/callback", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if errParam := q.Get("error"); errParam != "" {
			desc := q.Get("error_description")
			writeCallbackPage(w, false)
			once.send(resultCh, callbackResult{err: fmt.Errorf("%w: %s: %s", ErrAuthorizationDenied, errParam, desc)})
			return
		}
		if q.Get("state") != expectedState {
			writeCallbackPage(w, false)
			once.send(resultCh, callbackResult{err: ErrCSRF})
			return
		}
		code := q.Get("code")
		if code == "" {
			writeCallbackPage(w, false)
			once.send(resultCh, callbackResult{err: ErrMissingCode})
			return
		}
		writeCallbackPage(w, true)
		once.send(resultCh, callbackResult{code: code})
	})

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			once.send(resultCh, callbackResult{err: fmt.Errorf("callback server: %w", err)})
		}
	}()

	out := make(chan callbackResult, 1)
	go func() {
		select {
		case res := <-resultCh:
			out <- res
		case <-time.After(timeout):
			out <- callbackResult{err: ErrCallbackTimeout}
		case <-ctx.Done():
			out <- callbackResult{err: ctx.Err()}
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	return out, nil
}

// sendOnce guarantees the callback handler delivers at most one result even
// if invoked concurrently (browsers sometimes retry the callback request).
type sendOnce struct {
	mu   sync.Mutex
	done bool
}

func (s *sendOnce) send(ch chan<- callbackResult, res callbackResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done {
		return
	}
	s.done = true
	ch <- res
}

func writeCallbackPage(w http.ResponseWriter, success bool) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if success {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("<html><body><h1>Authorization complete</h1><p>You may close this window and return to your terminal.</p></body></html>"))
		return
	}
	w.WriteHeader(http.StatusBadRequest)
	_, _ = w.Write([]byte("<html><body><h1>Authorization failed</h1><p>Please return to your terminal for details.</p></body></html>"))
}

func expiryFromSeconds(seconds int64) *time.Time {
	if seconds <= 0 {
		return nil
	}
	t := time.Now().Add(time.Duration(seconds) * time.Second)
	return &t
}
