package oauthmgr

import "errors"

// Typed authentication errors (spec §7 "Authentication").
var (
	// ErrCSRF is returned when a callback's state parameter does not match
	// the one sent in the authorization request.
	ErrCSRF = errors.New("oauth: state mismatch, possible CSRF attack")
	// ErrCallbackTimeout is returned when no callback arrives within the
	// hard five-minute timeout.
	ErrCallbackTimeout = errors.New("oauth: timed out waiting for authorization callback")
	// ErrNoPortAvailable is returned when all candidate callback ports are busy.
	ErrNoPortAvailable = errors.New("oauth: no available callback port")
	// ErrAuthorizationDenied is returned when the upstream authorization
	// server reports an error parameter on the callback.
	ErrAuthorizationDenied = errors.New("oauth: authorization server denied the request")
	// ErrMissingCode is returned when the callback has neither a code nor an error.
	ErrMissingCode = errors.New("oauth: callback missing authorization code")
	// ErrNoSession indicates no usable session or refresh token exists.
	ErrNoSession = errors.New("oauth: no usable session")
)
