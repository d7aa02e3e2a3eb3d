package pipeline

import "errors"

// Structural failures. Data problems inside a batch are exclusions, not
// errors.
var (
	ErrMissingIndex   = errors.New("pipeline: sponsor index is required")
	ErrMissingProfile = errors.New("pipeline: user profile is required")
)
