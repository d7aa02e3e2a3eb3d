// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	service "github.com/okian/fanspend/internal/app"
	"github.com/okian/fanspend/internal/domain/model"
	"github.com/okian/fanspend/internal/domain/pipeline"
	"github.com/okian/fanspend/pkg/logger"
	"github.com/okian/fanspend/pkg/metrics"
)

// AccountDependencies covers registration, login and profiles.
type AccountDependencies interface {
	Register(ctx context.Context, r service.Registration) (service.Session, error)
	Login(ctx context.Context, username, password string) (service.Session, error)
	CustomerLogin(ctx context.Context, email, password string) (service.OperatorSession, error)
	TeamLogin(ctx context.Context, team, password string) (service.OperatorSession, error)
	Authenticate(ctx context.Context, token string) (service.Principal, error)
	Profile(ctx context.Context, userID string) (model.User, error)
	UpdateProfile(ctx context.Context, userID string, p model.UserProfile, teams map[model.League]string) (model.User, error)
}

// TransactionDependencies covers ingest and fan-spend scoring.
type TransactionDependencies interface {
	Ingest(ctx context.Context, userID string, txs []model.Transaction) (service.IngestReceipt, error)
	FanSpend(ctx context.Context, userID string) (pipeline.Result, error)
	ScoredTransactions(ctx context.Context, userID string) ([]model.ScoredTransaction, error)
	Points(ctx context.Context, userID string) (model.Summary, error)
}

// InsightDependencies covers the read-only aggregate endpoints.
type InsightDependencies interface {
	Leaderboard(ctx context.Context, league string, limit int) ([]model.LeaderboardEntry, error)
	Sponsors(ctx context.Context) ([]model.SponsorEntry, error)
	SpendingByTeam(ctx context.Context) ([]model.TeamSpending, error)
	TransactionsByPaymentChannel(ctx context.Context) ([]model.ChannelCount, error)
	TransactionsByTeam(ctx context.Context, team string) ([]model.ChannelCount, error)
}

// Dependencies required by HTTP handlers.
type Dependencies interface {
	AccountDependencies
	TransactionDependencies
	InsightDependencies
}

// StatsProvider reports service statistics.
type StatsProvider interface {
	GetStats(ctx context.Context) map[string]any
}

// Server wires HTTP routes for the business API.
type Server struct {
	deps    Dependencies
	stats   StatsProvider
	maxBody int64
	logger  logger.Logger
}

// NewServer creates a new API server.
func NewServer(deps Dependencies, stats StatsProvider, opts ...Option) *Server {
	s := &Server{deps: deps, stats: stats, maxBody: defaultMaxBodyBytes}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Named("api")
	}
	return s
}

// Register attaches all HTTP routes to r.
func (s *Server) Register(_ context.Context, r *mux.Router) {
	get, post, put := http.MethodGet, http.MethodPost, http.MethodPut

	r.HandleFunc("/healthz", MetricsMiddleware(s.handleHealth, "healthz")).Methods(get)
	r.Handle("/metrics", promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{})).Methods(get)
	r.HandleFunc("/stats", MetricsMiddleware(s.handleStats, "stats")).Methods(get)
	r.HandleFunc("/register", MetricsMiddleware(s.handleRegister, "register")).Methods(post)
	r.HandleFunc("/login", MetricsMiddleware(s.handleLogin, "login")).Methods(post)
	r.HandleFunc("/customer-login", MetricsMiddleware(s.handleCustomerLogin, "customer_login")).Methods(post)
	r.HandleFunc("/team-login", MetricsMiddleware(s.handleTeamLogin, "team_login")).Methods(post)

	a := r.PathPrefix("/api").Subrouter()
	a.HandleFunc("/profile", MetricsMiddleware(s.requireAuth(s.handleGetProfile), "profile")).Methods(get)
	a.HandleFunc("/profile", MetricsMiddleware(s.requireAuth(s.handleUpdateProfile), "profile")).Methods(put)
	a.HandleFunc("/points", MetricsMiddleware(s.requireAuth(s.handlePoints), "points")).Methods(get)
	a.HandleFunc("/transactions", MetricsMiddleware(s.requireAuth(s.handleIngest), "transactions")).Methods(post)
	a.HandleFunc("/transactions_with_sponsors",
		MetricsMiddleware(s.requireAuth(s.handleFanSpend), "transactions_with_sponsors")).Methods(get)
	a.HandleFunc("/leaderboard", MetricsMiddleware(s.handleLeaderboard, "leaderboard")).Methods(get)
	a.HandleFunc("/sponsors", MetricsMiddleware(s.handleSponsors, "sponsors")).Methods(get)

	insights := s.requireRole(model.RoleCustomer, model.RoleTeam)
	a.HandleFunc("/total_spending_by_team",
		MetricsMiddleware(insights(s.handleSpendingByTeam), "total_spending_by_team")).Methods(get)
	a.HandleFunc("/transactions_by_payment_channel",
		MetricsMiddleware(insights(s.handleByPaymentChannel), "transactions_by_payment_channel")).Methods(get)
	a.HandleFunc("/transactions_by_team",
		MetricsMiddleware(insights(s.handleByTeam), "transactions_by_team")).Methods(get)
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil && status < http.StatusInternalServerError {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// fail maps err to a status code and writes it. Server errors are logged;
// their detail is not sent to the client.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, code := classify(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error(r.Context(), "request failed",
			logger.String("path", r.URL.Path),
			logger.Error(err),
		)
	}
	writeError(w, status, code, err)
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, ErrBadRequest), errors.Is(err, service.ErrInvalidInput):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, service.ErrNotEligible):
		return http.StatusBadRequest, "not_eligible"
	case errors.Is(err, ErrUnauthorized), errors.Is(err, service.ErrUnauthorized):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, service.ErrInvalidCredentials):
		return http.StatusUnauthorized, "invalid_credentials"
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, service.ErrUsernameTaken):
		return http.StatusConflict, "conflict"
	case errors.Is(err, ErrBackpressure), errors.Is(err, service.ErrQueueFull):
		return http.StatusTooManyRequests, "backpressure"
	case errors.Is(err, service.ErrNotStarted):
		return http.StatusServiceUnavailable, "unavailable"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

// decode reads a JSON body capped at the server's limit.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, op string, v any) error {
	body := http.MaxBytesReader(w, r.Body, s.maxBody)
	if err := json.NewDecoder(body).Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			err = errors.New("empty body")
		}
		return WrapKind(op, ErrBadRequest, fmt.Errorf("decode body: %w", err))
	}
	return nil
}
