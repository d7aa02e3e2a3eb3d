package repository

import "time"

// Option applies a configuration option to the SQLStore.
type Option func(*SQLStore)

// WithMaxOpenConns caps the connection pool. SQLite stores always use a
// single connection regardless.
func WithMaxOpenConns(n int) Option {
	return func(s *SQLStore) {
		if n > 0 {
			s.maxOpenConns = n
		}
	}
}

// WithConnMaxLifetime recycles pooled connections after d.
func WithConnMaxLifetime(d time.Duration) Option {
	return func(s *SQLStore) {
		if d > 0 {
			s.connMaxLifetime = d
		}
	}
}

// WithoutMigrations skips goose migrations on open, for databases managed
// out of band.
func WithoutMigrations() Option {
	return func(s *SQLStore) {
		s.migrate = false
	}
}
