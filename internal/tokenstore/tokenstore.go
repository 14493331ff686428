// Package tokenstore implements the Token Store (spec §4.B): secure
// per-upstream-URL persistence of OAuth sessions and dynamic client
// registration info, under ~/.please/oauth.
package tokenstore

import (
	"crypto/md5" //nolint:gosec // digest used only for filename uniqueness, not security (spec §3)
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"

	"github.com/pleaseai/mcp-please/internal/logger"
)

// RefreshBuffer is the window before expiry within which a session is
// considered due for proactive refresh (spec §3 "Lifecycle").
const RefreshBuffer = 5 * time.Minute

// Session is a persisted OAuth Session (spec §3 "OAuth Session").
type Session struct {
	ClientID     string     `json:"clientId"`
	ClientSecret string     `json:"clientSecret,omitempty"`
	AccessToken  string     `json:"accessToken"`
	TokenType    string     `json:"tokenType,omitempty"`
	RefreshToken string     `json:"refreshToken,omitempty"`
	Scope        string     `json:"scope,omitempty"`
	ExpiresAt    *time.Time `json:"expiresAt,omitempty"`
}

// Expired reports whether the session's access token has a known expiry
// that has already passed. A nil ExpiresAt means "does not expire" and is
// never treated as expired (spec §4.B).
func (s Session) Expired(now time.Time) bool {
	return s.ExpiresAt != nil && !now.Before(*s.ExpiresAt)
}

// NeedsRefresh reports whether the session is within RefreshBuffer of
// expiry.
func (s Session) NeedsRefresh(now time.Time) bool {
	if s.ExpiresAt == nil {
		return false
	}
	return !now.Before(s.ExpiresAt.Add(-RefreshBuffer))
}

// Usable reports whether the session carries a token that can still be used
// or refreshed (spec §3 invariant: "either contains a usable access token or
// a refresh token; sessions with neither are treated as absent").
func (s Session) Usable() bool {
	return s.AccessToken != "" || s.RefreshToken != ""
}

// ClientInfo is the cached dynamic client registration result for an
// upstream (spec §4.C).
type ClientInfo struct {
	ClientID     string `json:"clientId"`
	ClientSecret string `json:"clientSecret,omitempty"`
}

// Store persists Sessions and ClientInfo under a base directory, one file
// per server URL digest, with 0700 directory / 0600 file permissions (spec
// §4.B, §6).
type Store struct {
	baseDir string
}

// DefaultBaseDir is ~/.please/oauth, per spec §6.
func DefaultBaseDir() string {
	return filepath.Join(xdg.Home, ".please", "oauth")
}

// New constructs a Store rooted at baseDir. Pass "" for the default.
func New(baseDir string) *Store {
	if baseDir == "" {
		baseDir = DefaultBaseDir()
	}
	return &Store{baseDir: baseDir}
}

// Digest returns the first 12 hex characters of MD5(url) used to name
// per-server files (spec §3, §6).
func Digest(url string) string {
	sum := md5.Sum([]byte(url)) //nolint:gosec // uniqueness only, not a security digest
	return hex.EncodeToString(sum[:])[:12]
}

func (s *Store) sessionPath(url string) string {
	return filepath.Join(s.baseDir, "tokens", Digest(url)+".json")
}

func (s *Store) clientPath(url string) string {
	return filepath.Join(s.baseDir, "clients", Digest(url)+".json")
}

func writeJSON(path string, v any) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func readJSON(path string, v any) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("parse %s: %w", path, err)
	}
	return true, nil
}

// LoadSession loads the session for url. When includeExpired is false, an
// expired session is reported as absent (spec §8 testable property).
func (s *Store) LoadSession(url string, includeExpired bool) (*Session, bool, error) {
	var sess Session
	found, err := readJSON(s.sessionPath(url), &sess)
	if err != nil || !found {
		return nil, false, err
	}
	if !sess.Usable() {
		return nil, false, nil
	}
	if !includeExpired && sess.Expired(time.Now()) {
		return nil, false, nil
	}
	return &sess, true, nil
}

// SaveSession persists the full session for url.
func (s *Store) SaveSession(url string, sess Session) error {
	if err := writeJSON(s.sessionPath(url), sess); err != nil {
		return err
	}
	logger.Debugf("tokenstore: saved session for %s", Digest(url))
	return nil
}

// UpdateTokens overwrites just the token fields of an existing (or new)
// session, preserving ClientID/ClientSecret if already stored.
func (s *Store) UpdateTokens(url string, accessToken, tokenType, refreshToken, scope string, expiresAt *time.Time) error {
	existing, _, err := s.LoadSession(url, true)
	if err != nil {
		return err
	}
	sess := Session{}
	if existing != nil {
		sess = *existing
	}
	sess.AccessToken = accessToken
	sess.TokenType = tokenType
	if refreshToken != "" {
		sess.RefreshToken = refreshToken
	}
	sess.Scope = scope
	sess.ExpiresAt = expiresAt
	return s.SaveSession(url, sess)
}

// ClearSession removes the stored session for url (explicit user
// revocation, spec §3 "Lifecycle").
func (s *Store) ClearSession(url string) error {
	err := os.Remove(s.sessionPath(url))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove session for %s: %w", Digest(url), err)
	}
	return nil
}

// HasValidSession reports whether a non-expired session exists.
func (s *Store) HasValidSession(url string) bool {
	_, ok, _ := s.LoadSession(url, false)
	return ok
}

// HasSession reports whether a session exists at all, including an expired
// one that might still be refreshable.
func (s *Store) HasSession(url string) bool {
	_, ok, _ := s.LoadSession(url, true)
	return ok
}

// NeedsRefresh reports whether the stored session for url is within the
// refresh buffer of expiry.
func (s *Store) NeedsRefresh(url string) bool {
	sess, ok, _ := s.LoadSession(url, true)
	if !ok {
		return false
	}
	return sess.NeedsRefresh(time.Now())
}

// LoadClientInfo loads the cached dynamic client registration for url.
func (s *Store) LoadClientInfo(url string) (*ClientInfo, bool, error) {
	var ci ClientInfo
	found, err := readJSON(s.clientPath(url), &ci)
	if err != nil || !found {
		return nil, false, err
	}
	return &ci, true, nil
}

// SaveClientInfo persists dynamic client registration info for url.
func (s *Store) SaveClientInfo(url string, info ClientInfo) error {
	if err := writeJSON(s.clientPath(url), info); err != nil {
		return err
	}
	logger.Debugf("tokenstore: cached client registration for %s", Digest(url))
	return nil
}
