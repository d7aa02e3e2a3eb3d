package auth

import "errors"

var (
	// ErrInvalidCredentials is returned when a password does not match.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrInvalidToken covers malformed, expired and badly signed tokens.
	ErrInvalidToken = errors.New("invalid token")
	// ErrEmptySecret is returned when an Issuer is built without a key.
	ErrEmptySecret = errors.New("token secret must not be empty")
	// ErrEmptyPassword rejects blank passwords before hashing.
	ErrEmptyPassword = errors.New("password must not be empty")
)
