package service

import "errors"

// Sentinel kinds returned by the service. The HTTP layer maps each one to a
// status code.
var (
	ErrNotStarted         = errors.New("service not started")
	ErrInvalidInput       = errors.New("invalid input")
	ErrNotEligible        = errors.New("must be a Fan or Super Fan of at least one league")
	ErrUsernameTaken      = errors.New("username already taken")
	ErrInvalidCredentials = errors.New("incorrect username or password")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrNotFound           = errors.New("not found")
	ErrQueueFull          = errors.New("ingest queue full")
)
