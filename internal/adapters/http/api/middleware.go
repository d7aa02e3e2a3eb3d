package api

import (
	"context"
	"fmt"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	service "github.com/okian/fanspend/internal/app"
	"github.com/okian/fanspend/internal/domain/model"
	"github.com/okian/fanspend/pkg/metrics"
)

// MetricsMiddleware wraps HTTP handlers to record Prometheus metrics.
func MetricsMiddleware(next http.HandlerFunc, endpoint string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		durationMs := float64(time.Since(start).Milliseconds())
		status := strconv.Itoa(wrapped.statusCode)
		metrics.RecordHTTPRequest(endpoint, r.Method, status)
		metrics.RecordHTTPRequestDuration(endpoint, r.Method, status, durationMs)
	}
}

// responseWriter wraps http.ResponseWriter to capture status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode  int
	wroteHeader bool
}

func (rw *responseWriter) WriteHeader(code int) {
	if !rw.wroteHeader {
		rw.statusCode = code
		rw.wroteHeader = true
	}
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	rw.wroteHeader = true
	return rw.ResponseWriter.Write(b)
}

type ctxKey struct{}

func principalFrom(ctx context.Context) service.Principal {
	p, _ := ctx.Value(ctxKey{}).(service.Principal)
	return p
}

// userIDFrom returns the authenticated user id set by requireAuth.
func userIDFrom(ctx context.Context) string {
	return principalFrom(ctx).ID
}

// requireAuth admits fans only.
func (s *Server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return s.requireRole(model.RoleFan)(next)
}

// requireRole verifies the bearer token, refuses principals whose role is
// not listed and stores the principal on the request context.
func (s *Server) requireRole(roles ...model.Role) func(http.HandlerFunc) http.HandlerFunc {
	const op = "api.auth"
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearer(r.Header.Get("Authorization"))
			if !ok {
				s.fail(w, r, NewKind(op, ErrUnauthorized))
				return
			}
			p, err := s.deps.Authenticate(r.Context(), token)
			if err != nil {
				s.fail(w, r, WrapKind(op, ErrUnauthorized, err))
				return
			}
			if !slices.Contains(roles, p.Role) {
				s.fail(w, r, WrapKind(op, ErrForbidden, fmt.Errorf("role %q may not use this endpoint", p.Role)))
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, p)))
		}
	}
}

func bearer(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
