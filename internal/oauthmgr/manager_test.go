package oauthmgr

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// A callback whose state differs from the one sent aborts with ErrCSRF
// (spec §8 "OAuth state check").
func TestCallbackStateMismatchIsCSRF(t *testing.T) {
	port, err := findFreeTestPort(t)
	require.NoError(t, err)

	resultCh, err := runCallbackServer(context.Background(), port, "expected-state", CallbackTimeout)
	require.NoError(t, err)

	resp, err := getWithRetry(callbackURL(port, "wrong-state", "some-code"))
	require.NoError(t, err)
	resp.Body.Close()

	res := <-resultCh
	assert.ErrorIs(t, res.err, ErrCSRF)
}

func TestCallbackMissingCodeIsProtocolError(t *testing.T) {
	port, err := findFreeTestPort(t)
	require.NoError(t, err)

	resultCh, err := runCallbackServer(context.Background(), port, "expected-state", CallbackTimeout)
	require.NoError(t, err)

	resp, err := getWithRetry(callbackURL(port, "expected-state", ""))
	require.NoError(t, err)
	resp.Body.Close()

	res := <-resultCh
	assert.ErrorIs(t, res.err, ErrMissingCode)
}

func TestCallbackSuccessDeliversCode(t *testing.T) {
	port, err := findFreeTestPort(t)
	require.NoError(t, err)

	resultCh, err := runCallbackServer(context.Background(), port, "expected-state", CallbackTimeout)
	require.NoError(t, err)

	resp, err := getWithRetry(callbackURL(port, "expected-state", "auth-code-123"))
	require.NoError(t, err)
	resp.Body.Close()

	res := <-resultCh
	require.NoError(t, res.err)
	assert.Equal(t, "auth-code-123", res.code)
}

// exchangeCode sends code_verifier iff a PKCE verifier is supplied (spec §4.C
// "PKCE verifier is sent to the token endpoint iff the server advertises S256").
func TestExchangeCodeSendsVerifierOnlyWhenPKCEActive(t *testing.T) {
	var gotVerifier bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		gotVerifier = r.FormValue("code_verifier") != ""
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"tok","token_type":"Bearer"}`))
	}))
	defer srv.Close()

	client := &http.Client{Timeout: 5 * time.Second}

	_, err := exchangeCode(context.Background(), client, srv.URL, "code", "http://localhost/callback", "client-id", "", "")
	require.NoError(t, err)
	assert.False(t, gotVerifier, "no verifier should be sent without PKCE")

	_, err = exchangeCode(context.Background(), client, srv.URL, "code", "http://localhost/callback", "client-id", "verifier-value", "")
	require.NoError(t, err)
	assert.True(t, gotVerifier, "verifier should be sent when PKCE is active")
}

func TestGeneratePKCEParamsS256Challenge(t *testing.T) {
	p, err := GeneratePKCEParams()
	require.NoError(t, err)
	assert.NotEmpty(t, p.CodeVerifier)
	assert.NotEmpty(t, p.CodeChallenge)
	assert.NotEqual(t, p.CodeVerifier, p.CodeChallenge)
}

func findFreeTestPort(t *testing.T) (int, error) {
	t.Helper()
	for port := 38080; port < 38090; port++ {
		ln, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", port))
		if err == nil {
			_ = ln.Close()
			return port, nil
		}
	}
	t.Fatal("no free test port found")
	return 0, nil
}

// getWithRetry tolerates the brief window between runCallbackServer
// returning and its listener goroutine actually binding the port.
func getWithRetry(url string) (*http.Response, error) {
	var lastErr error
	for i := 0; i < 20; i++ {
		resp, err := http.Get(url)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		time.Sleep(10 * time.Millisecond)
	}
	return nil, lastErr
}

func callbackURL(port int, state, code string) string {
	u := fmt.Sprintf("http://127.0.0.1:%d/callback?state=%s", port, state)
	if code != "" {
		u += "&code=" + code
	}
	return u
}
