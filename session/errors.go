package session

import "errors"

var (
	// ErrNotAuthenticated is returned when an operation needs a session and
	// none exists.
	ErrNotAuthenticated = errors.New("not authenticated")

	// ErrSessionExpired means the access token lapsed and no refresh token is
	// available - re-login is the only recovery.
	ErrSessionExpired = errors.New("session expired")

	// ErrInvalidLoginState means a callback arrived without a matching
	// in-flight authorization (missing or mismatched state/verifier) and no
	// existing session could vouch for it. The user should retry the login.
	ErrInvalidLoginState = errors.New("invalid login state")
)
