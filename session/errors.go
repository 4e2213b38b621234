package session

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration is returned when a Manager is built without a required collaborator.
	ErrConfiguration = errors.New("session: invalid configuration")
	// ErrNoSession is returned by operations that need a current session.
	ErrNoSession = errors.New("session: no current session")
	// ErrNetwork marks transient failures. Background refreshes retry them with backoff.
	ErrNetwork = errors.New("session: network failure")
	// ErrInvalidGrant marks a refresh token the auth service rejected. It is never retried.
	ErrInvalidGrant = errors.New("session: refresh token rejected")
	// ErrStorage wraps persistence read failures surfaced by RecoverAndRefresh.
	ErrStorage = errors.New("session: storage failure")
	// ErrUnsupported is returned by sign-in flows when the API does not implement Authenticator.
	ErrUnsupported = errors.New("session: operation not supported by the auth API")
	// ErrInvalidCredentials is returned before any request when sign-in input is incomplete.
	ErrInvalidCredentials = errors.New("session: incomplete credentials")
	// ErrInvalidSession is returned when the auth service answers without a usable session.
	ErrInvalidSession = errors.New("session: invalid session data")
)

// errSessionRemoved is returned when the session was signed out while a request that would
// have replaced it was in flight. The result of that request is dropped.
var errSessionRemoved = fmt.Errorf("%w: signed out while the request was in flight", ErrNoSession)
