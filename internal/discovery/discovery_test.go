package discovery

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pleaseai/mcp-please/internal/config"
	"github.com/pleaseai/mcp-please/internal/tokenstore"
)

func newTestTokenStore(t *testing.T) *tokenstore.Store {
	t.Helper()
	return tokenstore.New(t.TempDir())
}

// A failing upstream does not abort discovery of the others (spec §4.F
// "error isolation").
func TestDiscoverIsolatesPerUpstreamFailures(t *testing.T) {
	merged := config.Merged{
		Order: []string{"broken", "also_broken"},
		Servers: map[string]config.UpstreamServerConfig{
			"broken":      {Command: "/definitely/not/a/real/binary-xyz"},
			"also_broken": {Command: "/still/not/a/real/binary-abc"},
		},
	}

	var phases []Phase
	results := Discover(context.Background(), merged, Options{
		OnProgress: func(p Progress) { phases = append(phases, p.Phase) },
	})

	require.Len(t, results, 2)
	for _, r := range results {
		assert.Error(t, r.Err)
		assert.Empty(t, r.Tools)
	}
	assert.Contains(t, phases, PhaseError)
}

func TestDiscoverSkipsExcludedUpstreams(t *testing.T) {
	merged := config.Merged{
		Order: []string{"skip_me", "also_skip"},
		Servers: map[string]config.UpstreamServerConfig{
			"skip_me":   {Command: "/definitely/not/a/real/binary-xyz"},
			"also_skip": {Command: "/definitely/not/a/real/binary-xyz"},
		},
	}

	results := Discover(context.Background(), merged, Options{Exclude: []string{"skip_me", "also_skip"}})
	assert.Empty(t, results)
}

func TestResolveCredentialsNoAuthorizationIsNoop(t *testing.T) {
	creds, err := resolveCredentials(context.Background(), "srv", config.UpstreamServerConfig{}, nil)
	require.NoError(t, err)
	assert.Empty(t, creds.BearerToken)
}

func TestResolveCredentialsBearerPassesThroughToken(t *testing.T) {
	cfg := config.UpstreamServerConfig{
		Authorization: &config.Authorization{Type: config.AuthBearer, Token: "static-token"},
	}
	creds, err := resolveCredentials(context.Background(), "srv", cfg, nil)
	require.NoError(t, err)
	assert.Equal(t, "static-token", creds.BearerToken)
}

func TestResolveCredentialsOAuthWithoutStoreErrors(t *testing.T) {
	cfg := config.UpstreamServerConfig{
		URL:           "https://upstream.example.com",
		Authorization: &config.Authorization{Type: config.AuthOAuth2},
	}
	_, err := resolveCredentials(context.Background(), "srv", cfg, nil)
	assert.Error(t, err)
}

func TestResolveCredentialsOAuthWithoutSessionNamesRemediation(t *testing.T) {
	cfg := config.UpstreamServerConfig{
		URL:           "https://upstream.example.com",
		Authorization: &config.Authorization{Type: config.AuthOAuth2},
	}
	store := newTestTokenStore(t)
	_, err := resolveCredentials(context.Background(), "srv", cfg, store)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mcp auth srv")
}
