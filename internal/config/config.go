// Package config implements the multi-source Config Resolver (spec §4.E):
// it loads up to three scoped JSON files describing upstream MCP servers,
// merges them for federation, and produces per-scope fingerprints consumed
// by the Regeneration Detector.
package config

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/adrg/xdg"

	"github.com/pleaseai/mcp-please/internal/logger"
)

// Scope identifies one of the three configuration/index scopes (spec
// glossary "Scope").
type Scope string

const (
	ScopeUser    Scope = "user"
	ScopeProject Scope = "project"
	ScopeLocal   Scope = "local"
)

// AuthType is the sum type tag for UpstreamServerConfig.Authorization.
type AuthType string

const (
	AuthNone   AuthType = "none"
	AuthBearer AuthType = "bearer"
	AuthOAuth2 AuthType = "oauth2"
)

// OAuthOptions configures an oauth2-authenticated upstream.
type OAuthOptions struct {
	Scopes             []string `json:"scopes,omitempty"`
	Resource           string   `json:"resource,omitempty"`
	AuthorizationServer string  `json:"authorizationServer,omitempty"`
}

// Authorization is the discriminated authentication config for an upstream.
type Authorization struct {
	Type  AuthType      `json:"type"`
	Token string        `json:"token,omitempty"`
	OAuth *OAuthOptions `json:"oauth,omitempty"`
}

// Transport is the explicit transport override; if empty it is inferred
// from the presence of URL (http) vs Command (stdio), per spec §4.D.
type Transport string

const (
	TransportStdio Transport = "stdio"
	TransportHTTP  Transport = "http"
	TransportSSE   Transport = "sse"
)

// UpstreamServerConfig is one entry of "mcpServers" in a scoped config file.
type UpstreamServerConfig struct {
	// stdio
	Command string            `json:"command,omitempty"`
	Args    []string          `json:"args,omitempty"`
	Env     map[string]string `json:"env,omitempty"`

	// http | sse
	URL string `json:"url,omitempty"`

	Transport     Transport      `json:"transport,omitempty"`
	Authorization *Authorization `json:"authorization,omitempty"`
}

// ResolvedTransport returns the explicit transport if set, otherwise infers
// it: a non-empty URL implies HTTP, otherwise stdio (spec §4.D).
func (c UpstreamServerConfig) ResolvedTransport() Transport {
	if c.Transport != "" {
		return c.Transport
	}
	if c.URL != "" {
		return TransportHTTP
	}
	return TransportStdio
}

// File is the on-disk shape of a scoped config file.
type File struct {
	MCPServers map[string]UpstreamServerConfig `json:"mcpServers"`
}

// Fingerprint is either {exists:false} or {exists:true, hash} (spec §3
// "Config Fingerprint").
type Fingerprint struct {
	Exists bool   `json:"exists"`
	Hash   string `json:"hash,omitempty"`
}

// Equal reports whether two fingerprints describe identical file state.
func (f Fingerprint) Equal(other Fingerprint) bool {
	return f.Exists == other.Exists && f.Hash == other.Hash
}

// Paths resolves the three well-known config file paths for a working
// directory (spec §6 "Config files").
type Paths struct {
	User    string
	Project string
	Local   string
}

// ResolvePaths computes the three config file paths given the current
// working directory. Home directory resolution goes through adrg/xdg for
// cross-platform portability.
func ResolvePaths(cwd string) Paths {
	home := xdg.Home
	return Paths{
		User:    filepath.Join(home, ".please", "mcp.json"),
		Project: filepath.Join(cwd, ".please", "mcp.json"),
		Local:   filepath.Join(cwd, ".please", "mcp.local.json"),
	}
}

// Resolved is the outcome of loading all three scopes: the per-scope files
// (nil if absent/unparseable) and their fingerprints.
type Resolved struct {
	Paths        Paths
	User         *File
	Project      *File
	Local        *File
	Fingerprints map[Scope]Fingerprint
}

// Load reads the three scoped config files. A missing or unparseable file is
// treated as absent, per spec §4.E ("a parse failure is treated as 'file
// absent' for robustness").
func Load(cwd string) (*Resolved, error) {
	paths := ResolvePaths(cwd)
	r := &Resolved{
		Paths:        paths,
		Fingerprints: make(map[Scope]Fingerprint, 3),
	}

	r.User, r.Fingerprints[ScopeUser] = loadOne(paths.User)
	r.Project, r.Fingerprints[ScopeProject] = loadOne(paths.Project)
	r.Local, r.Fingerprints[ScopeLocal] = loadOne(paths.Local)

	return r, nil
}

func loadOne(path string) (*File, Fingerprint) {
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Debugf("config: unable to read %s: %v", path, err)
		}
		return nil, Fingerprint{Exists: false}
	}

	fp := Fingerprint{Exists: true, Hash: HashBytes(data)}

	var f File
	if err := json.Unmarshal(data, &f); err != nil {
		logger.Warnf("config: %s is not valid JSON, treating as absent: %v", path, err)
		return nil, fp
	}
	if f.MCPServers == nil {
		f.MCPServers = map[string]UpstreamServerConfig{}
	}
	return &f, fp
}

// HashBytes computes the SHA-256 digest of raw file bytes, used for config
// fingerprints (spec §3).
func HashBytes(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// Merged is the flattened set of upstream configs visible to a given scope,
// produced by left-to-right precedence user -> project -> local (spec
// §3/§4.E merge policy), last writer wins on name collision.
type Merged struct {
	Servers map[string]UpstreamServerConfig
	// Order lists names in first-seen order across the merged files (names
	// within one file are taken in sorted order), for deterministic discovery
	// ordering (spec §5 "Ordering guarantees").
	Order []string
}

// MergeForDiscovery merges configs for the full three-scope federation used
// when actually connecting to upstreams (independent of which scope the
// resulting index will be persisted under).
func (r *Resolved) MergeForDiscovery() Merged {
	return merge(r.User, r.Project, r.Local)
}

// MergeForScope merges only the files visible to a given index scope: a
// user-scope index sees only the user file; a project-scope index sees
// user+project+local (spec §3 "For scope-aware indexing").
func (r *Resolved) MergeForScope(scope Scope) Merged {
	switch scope {
	case ScopeUser:
		return merge(r.User)
	default:
		return merge(r.User, r.Project, r.Local)
	}
}

// FingerprintsForScope returns the subset of fingerprints relevant to scope,
// used by the Regeneration Detector's scope filter (spec §4.I).
func (r *Resolved) FingerprintsForScope(scope Scope) map[Scope]Fingerprint {
	if scope == ScopeUser {
		return map[Scope]Fingerprint{ScopeUser: r.Fingerprints[ScopeUser]}
	}
	return r.Fingerprints
}

func merge(files ...*File) Merged {
	m := Merged{Servers: make(map[string]UpstreamServerConfig)}
	seen := make(map[string]bool)
	for _, f := range files {
		if f == nil {
			continue
		}
		names := make([]string, 0, len(f.MCPServers))
		for name := range f.MCPServers {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			if !seen[name] {
				seen[name] = true
				m.Order = append(m.Order, name)
			}
			m.Servers[name] = f.MCPServers[name] // last writer wins
		}
	}
	return m
}

// Validate checks the minimal structural invariant of an upstream config:
// at least one of (command) or (url) must identify how to reach it (spec §3
// "Upstream Server Config"). A config that sets both is accepted; without an
// explicit transport, ResolvedTransport then picks HTTP.
func Validate(name string, cfg UpstreamServerConfig) error {
	hasCommand := cfg.Command != ""
	hasURL := cfg.URL != ""
	if !hasCommand && !hasURL {
		return fmt.Errorf("server %q: must set either command (stdio) or url (http/sse)", name)
	}
	return nil
}

// EnsureLocalGitignored appends the local-scope config's relative path to
// <cwd>/.please/.gitignore if not already present (spec §6: "The local file
// is auto-appended to <cwd>/.please/.gitignore").
func EnsureLocalGitignored(cwd string) error {
	dir := filepath.Join(cwd, ".please")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	gitignorePath := filepath.Join(dir, ".gitignore")
	const entry = "mcp.local.json"

	existing, err := os.ReadFile(gitignorePath)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("read %s: %w", gitignorePath, err)
	}
	if containsLine(string(existing), entry) {
		return nil
	}

	f, err := os.OpenFile(gitignorePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open %s: %w", gitignorePath, err)
	}
	defer f.Close()

	prefix := ""
	if len(existing) > 0 && existing[len(existing)-1] != '\n' {
		prefix = "\n"
	}
	if _, err := f.WriteString(prefix + entry + "\n"); err != nil {
		return fmt.Errorf("write %s: %w", gitignorePath, err)
	}
	return nil
}

func containsLine(content, line string) bool {
	for _, l := range splitLines(content) {
		if l == line {
			return true
		}
	}
	return false
}

func splitLines(s string) []string {
	var out []string
	start := 0
	for i, r := range s {
		if r == '\n' {
			out = append(out, s[start:i])
			start = i + 1
		}
	}
	if start < len(s) {
		out = append(out, s[start:])
	}
	return out
}
