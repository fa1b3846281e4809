// Package auth implements the platform's JWT session tokens, bcrypt
// password hashing, and the per-request user context used by RBAC checks
// in internal/platform.
package auth

import "errors"

var (
	// ErrAuthDisabled is returned when no JWT secret has been configured.
	ErrAuthDisabled = errors.New("auth: no signing secret configured")
	// ErrInvalidToken is returned for any token that fails to parse,
	// verify, or has expired.
	ErrInvalidToken = errors.New("auth: invalid or expired token")
	// ErrInvalidCredentials covers both unknown email and bad password,
	// deliberately indistinguishable so login responses don't leak which.
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
)
