package loadgen

import "errors"

var (
	// ErrUnhealthy is returned when /healthz does not answer 200.
	ErrUnhealthy = errors.New("service unhealthy")
	// ErrStatus wraps an unexpected HTTP status.
	ErrStatus = errors.New("unexpected status")
	// ErrInvariant is returned when a scoring invariant does not hold.
	ErrInvariant = errors.New("invariant violated")
	// ErrNotSettled is returned when the ledger never caught up.
	ErrNotSettled = errors.New("ledger did not settle")
)
