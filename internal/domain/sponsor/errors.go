package sponsor

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidEntry is wrapped by the error Build returns in strict mode.
var ErrInvalidEntry = errors.New("invalid sponsor entry")

// RowError describes one rejected sponsor row. Row is zero-based.
type RowError struct {
	Row    int
	Name   string
	League string
	Reason string
}

func (e RowError) String() string {
	return fmt.Sprintf("row %d (%q, %q): %s", e.Row, e.Name, e.League, e.Reason)
}

// ValidationError lists every malformed row found by a strict build.
type ValidationError struct {
	Rows []RowError
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Rows))
	for i, r := range e.Rows {
		parts[i] = r.String()
	}
	return fmt.Sprintf("%s: %s", ErrInvalidEntry, strings.Join(parts, "; "))
}

func (e *ValidationError) Unwrap() error { return ErrInvalidEntry }
