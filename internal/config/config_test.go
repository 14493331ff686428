package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Invariant (spec §8): hash(f) == hash(f) for identical bytes, and distinct
// contents yield distinct hashes.
func TestHashBytesIsDeterministicAndContentSensitive(t *testing.T) {
	a := []byte(`{"mcpServers":{}}`)
	b := []byte(`{"mcpServers":{"x":{}}}`)

	assert.Equal(t, HashBytes(a), HashBytes(a))
	assert.NotEqual(t, HashBytes(a), HashBytes(b))
}

func TestLoadOneMissingFileIsAbsent(t *testing.T) {
	f, fp := loadOne(filepath.Join(t.TempDir(), "does-not-exist.json"))
	assert.Nil(t, f)
	assert.False(t, fp.Exists)
	assert.Empty(t, fp.Hash)
}

func TestLoadOneUnparseableFileIsAbsentButFingerprinted(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mcp.json")
	require.NoError(t, os.WriteFile(path, []byte("not json"), 0o644))

	f, fp := loadOne(path)
	assert.Nil(t, f)
	assert.True(t, fp.Exists)
	assert.NotEmpty(t, fp.Hash)
}

func TestLoadOneValidFileParses(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mcp.json")
	content := `{"mcpServers":{"fs":{"command":"fs-server"}}}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	f, fp := loadOne(path)
	require.NotNil(t, f)
	assert.True(t, fp.Exists)
	assert.Equal(t, HashBytes([]byte(content)), fp.Hash)
	assert.Contains(t, f.MCPServers, "fs")
}

func TestMergeForDiscoveryPrecedenceUserProjectLocal(t *testing.T) {
	user := &File{MCPServers: map[string]UpstreamServerConfig{
		"fs":  {Command: "user-fs"},
		"git": {Command: "user-git"},
	}}
	project := &File{MCPServers: map[string]UpstreamServerConfig{
		"git": {Command: "project-git"},
		"db":  {Command: "project-db"},
	}}
	local := &File{MCPServers: map[string]UpstreamServerConfig{
		"db": {Command: "local-db"},
	}}

	r := &Resolved{User: user, Project: project, Local: local}
	merged := r.MergeForDiscovery()

	assert.Equal(t, "user-fs", merged.Servers["fs"].Command)
	assert.Equal(t, "project-git", merged.Servers["git"].Command, "project overrides user")
	assert.Equal(t, "local-db", merged.Servers["db"].Command, "local overrides project")
	assert.Equal(t, []string{"fs", "git", "db"}, merged.Order, "first-seen order preserved")
}

func TestMergeForScopeUserOnlySeesUserFile(t *testing.T) {
	user := &File{MCPServers: map[string]UpstreamServerConfig{"fs": {Command: "user-fs"}}}
	project := &File{MCPServers: map[string]UpstreamServerConfig{"git": {Command: "project-git"}}}

	r := &Resolved{User: user, Project: project}
	merged := r.MergeForScope(ScopeUser)

	assert.Contains(t, merged.Servers, "fs")
	assert.NotContains(t, merged.Servers, "git")
}

func TestMergeForScopeProjectSeesAllThree(t *testing.T) {
	user := &File{MCPServers: map[string]UpstreamServerConfig{"fs": {Command: "user-fs"}}}
	project := &File{MCPServers: map[string]UpstreamServerConfig{"git": {Command: "project-git"}}}
	local := &File{MCPServers: map[string]UpstreamServerConfig{"db": {Command: "local-db"}}}

	r := &Resolved{User: user, Project: project, Local: local}
	merged := r.MergeForScope(ScopeProject)

	assert.Contains(t, merged.Servers, "fs")
	assert.Contains(t, merged.Servers, "git")
	assert.Contains(t, merged.Servers, "db")
}

func TestResolvedTransportInference(t *testing.T) {
	assert.Equal(t, TransportHTTP, UpstreamServerConfig{URL: "https://example.com"}.ResolvedTransport())
	assert.Equal(t, TransportStdio, UpstreamServerConfig{Command: "fs-server"}.ResolvedTransport())
	assert.Equal(t, TransportSSE, UpstreamServerConfig{URL: "https://example.com", Transport: TransportSSE}.ResolvedTransport())
}

func TestValidateRequiresCommandOrURL(t *testing.T) {
	assert.Error(t, Validate("fs", UpstreamServerConfig{}))
	assert.NoError(t, Validate("fs", UpstreamServerConfig{Command: "fs-server"}))
	assert.NoError(t, Validate("fs", UpstreamServerConfig{URL: "https://example.com"}))
}

func TestFingerprintEqual(t *testing.T) {
	a := Fingerprint{Exists: true, Hash: "abc"}
	b := Fingerprint{Exists: true, Hash: "abc"}
	c := Fingerprint{Exists: true, Hash: "def"}
	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(c))
}

func TestEnsureLocalGitignoredAppendsOnce(t *testing.T) {
	cwd := t.TempDir()
	require.NoError(t, EnsureLocalGitignored(cwd))
	require.NoError(t, EnsureLocalGitignored(cwd))

	data, err := os.ReadFile(filepath.Join(cwd, ".please", ".gitignore"))
	require.NoError(t, err)
	lines := splitLines(string(data))
	count := 0
	for _, l := range lines {
		if l == "mcp.local.json" {
			count++
		}
	}
	assert.Equal(t, 1, count)
}
