// Package networking holds small HTTP/URL helpers shared by the OAuth
// manager and the remote embedding providers: localhost detection,
// endpoint URL validation, and an HTTP client builder with sane timeouts.
//
// Grounded on stacklok-toolhive's pkg/networking usage patterns observed
// across pkg/auth/oauth and pkg/auth/discovery (IsLocalhost,
// ValidateEndpointURL); that package's own source was not present in the
// retrieval pack, only its call sites, so this is a from-usage reimplementation.
package networking

import (
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultHTTPTimeout is the default timeout for one-shot HTTP calls made
// during discovery, OAuth metadata fetches, and dynamic client registration.
const DefaultHTTPTimeout = 30 * time.Second

// IsLocalhost reports whether host (which may include a port) refers to the
// local machine. Used to relax the HTTPS requirement on OAuth/OIDC metadata
// URLs during local development, per RFC 8414/9728 guidance.
func IsLocalhost(host string) bool {
	h := host
	if hostOnly, _, err := net.SplitHostPort(host); err == nil {
		h = hostOnly
	}
	switch strings.ToLower(h) {
	case "localhost", "127.0.0.1", "::1":
		return true
	default:
		return false
	}
}

// ValidateEndpointURL ensures an OAuth/OIDC endpoint URL is well-formed and
// uses HTTPS, except for localhost endpoints used in local development.
func ValidateEndpointURL(endpoint string) error {
	if endpoint == "" {
		return fmt.Errorf("endpoint URL is empty")
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return fmt.Errorf("invalid endpoint URL: %w", err)
	}
	if u.Scheme != "https" && !IsLocalhost(u.Host) {
		return fmt.Errorf("endpoint must use HTTPS: %s", endpoint)
	}
	if u.Host == "" {
		return fmt.Errorf("endpoint URL missing host: %s", endpoint)
	}
	return nil
}

// NewHTTPClient builds an *http.Client with bounded dial/TLS/response
// timeouts, used by the OAuth manager for short-lived metadata and token
// requests and by the remote embedding providers.
func NewHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = DefaultHTTPTimeout
	}
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			TLSHandshakeTimeout:   10 * time.Second,
			ResponseHeaderTimeout: 10 * time.Second,
		},
	}
}

// PortAvailable reports whether a TCP port can be bound on localhost.
func PortAvailable(port int) bool {
	ln, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", port))
	if err != nil {
		return false
	}
	_ = ln.Close()
	return true
}

// FindAvailablePort probes basePort and up to maxAttempts-1 subsequent ports,
// returning the first one that can be bound. Grounds OAuth Manager's
// callback port selection (spec §4.C).
func FindAvailablePort(basePort, maxAttempts int) (int, error) {
	for i := 0; i < maxAttempts; i++ {
		port := basePort + i
		if PortAvailable(port) {
			return port, nil
		}
	}
	return 0, fmt.Errorf("no available port found in range %d-%d", basePort, basePort+maxAttempts-1)
}
