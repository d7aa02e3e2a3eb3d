package api

import "github.com/okian/fanspend/pkg/logger"

const defaultMaxBodyBytes = 4 << 20

// Option applies a configuration option to the Server.
type Option func(*Server)

// WithMaxBodyBytes caps request bodies.
func WithMaxBodyBytes(n int64) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxBody = n
		}
	}
}

// WithLogger sets a custom logger for the server.
func WithLogger(l logger.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}
