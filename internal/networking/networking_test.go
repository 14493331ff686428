package networking

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsLocalhost(t *testing.T) {
	assert.True(t, IsLocalhost("localhost"))
	assert.True(t, IsLocalhost("127.0.0.1:3334"))
	assert.True(t, IsLocalhost("[::1]:8080"))
	assert.False(t, IsLocalhost("example.com"))
}

func TestValidateEndpointURLRequiresHTTPSExceptLocalhost(t *testing.T) {
	assert.NoError(t, ValidateEndpointURL("https://auth.example.com/token"))
	assert.NoError(t, ValidateEndpointURL("http://localhost:8080/token"))
	assert.Error(t, ValidateEndpointURL("http://auth.example.com/token"))
	assert.Error(t, ValidateEndpointURL(""))
}

// Scenario 6: OAuth callback port retry. Occupying the base port makes
// FindAvailablePort fall through to the next one.
func TestFindAvailablePortSkipsOccupiedPort(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	occupied := ln.Addr().(*net.TCPAddr).Port

	found, err := FindAvailablePort(occupied, 2)
	require.NoError(t, err)
	assert.Equal(t, occupied+1, found)
}

func TestFindAvailablePortExhaustionNamesFullRange(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	occupied := ln.Addr().(*net.TCPAddr).Port

	// maxAttempts=1 means only the occupied port itself is tried, so
	// exhaustion is guaranteed regardless of what neighboring ports are free.
	_, err = FindAvailablePort(occupied, 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no available port found in range")
}
