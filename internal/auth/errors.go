package auth

import "errors"

var (
	// ErrTokenInvalid reports a token that failed signature, expiry, or
	// claim validation.
	ErrTokenInvalid = errors.New("invalid token")

	// ErrInvalidCredentials reports a failed email/password login.
	ErrInvalidCredentials = errors.New("invalid credentials")
)
