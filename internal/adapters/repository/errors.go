package repository

import "errors"

// Sentinel kinds for repository errors.
var (
	ErrNotFound          = errors.New("not found")
	ErrDuplicate         = errors.New("already exists")
	ErrInvalidLimit      = errors.New("invalid leaderboard limit")
	ErrUnsupportedDriver = errors.New("unsupported database driver")
)
