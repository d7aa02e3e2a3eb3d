package queue

import "errors"

// Sentinel kinds for enqueue failures.
var (
	ErrClosed = errors.New("ingest queue closed")
	ErrFull   = errors.New("ingest queue full")
)
