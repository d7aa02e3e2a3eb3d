package loadgen

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Client talks to the fanspend HTTP API as one user.
type Client struct {
	base  string
	http  *http.Client
	token string
}

// Summary mirrors the summary object of the fan-spend response.
type Summary struct {
	Total    int64            `json:"total"`
	ByLeague map[string]int64 `json:"byLeague"`
}

// ScoredRow is the subset of a scored transaction the checks read.
type ScoredRow struct {
	TransactionID  string  `json:"transaction_id"`
	MerchantName   string  `json:"merchant_name"`
	Amount         float64 `json:"amount"`
	MatchedSponsor string  `json:"matched_sponsor"`
	League         string  `json:"sponsor_league"`
	Points         int64   `json:"fanspend_points"`
	Multiplier     float64 `json:"fanspend_multiplier"`
}

// FanSpend is the body of GET /api/transactions_with_sponsors.
type FanSpend struct {
	Summary      Summary     `json:"summary"`
	Transactions []ScoredRow `json:"transactions"`
}

// Ack is the body of POST /api/transactions.
type Ack struct {
	Status     string `json:"status"`
	Accepted   int    `json:"accepted"`
	Duplicates int    `json:"duplicates"`
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewClient returns a client for baseURL with the given request timeout.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{base: baseURL, http: &http.Client{Timeout: timeout}}
}

// Health checks GET /healthz.
func (c *Client) Health(ctx context.Context) error {
	if err := c.do(ctx, http.MethodGet, "/healthz", nil, nil, http.StatusOK); err != nil {
		return fmt.Errorf("%w: %w", ErrUnhealthy, err)
	}
	return nil
}

// EnsureUser registers username as a fan, or logs in when the name is
// already taken, and keeps the returned token.
func (c *Client) EnsureUser(ctx context.Context, username, password string) (created bool, err error) {
	var sess struct {
		Token string `json:"token"`
	}
	reg := map[string]any{
		"username": username,
		"email":    username + "@example.com",
		"password": password,
		"profile":  map[string]string{"NBA": "Super Fan", "MLB": "Fan", "NFL": "Not a Fan"},
		"favorite_teams": map[string]string{
			"NBA": "Lakers",
			"MLB": "Dodgers",
		},
	}
	err = c.do(ctx, http.MethodPost, "/register", reg, &sess, http.StatusCreated)
	switch {
	case err == nil:
		c.token = sess.Token
		return true, nil
	case !isStatus(err, http.StatusConflict):
		return false, fmt.Errorf("register: %w", err)
	}

	login := map[string]string{"username": username, "password": password}
	if err := c.do(ctx, http.MethodPost, "/login", login, &sess, http.StatusOK); err != nil {
		return false, fmt.Errorf("login: %w", err)
	}
	c.token = sess.Token
	return false, nil
}

// Submit posts one batch of rows.
func (c *Client) Submit(ctx context.Context, rows []Row) (Ack, error) {
	var ack Ack
	err := c.do(ctx, http.MethodPost, "/api/transactions", rows, &ack, http.StatusAccepted, http.StatusOK)
	return ack, err
}

// FanSpend fetches the live scored view.
func (c *Client) FanSpend(ctx context.Context) (FanSpend, error) {
	var fs FanSpend
	err := c.do(ctx, http.MethodGet, "/api/transactions_with_sponsors", nil, &fs, http.StatusOK)
	return fs, err
}

// Points fetches the persisted ledger summary.
func (c *Client) Points(ctx context.Context) (Summary, error) {
	var s Summary
	err := c.do(ctx, http.MethodGet, "/api/points", nil, &s, http.StatusOK)
	return s, err
}

// Stats fetches GET /stats.
func (c *Client) Stats(ctx context.Context) (map[string]any, error) {
	var s map[string]any
	err := c.do(ctx, http.MethodGet, "/stats", nil, &s, http.StatusOK)
	return s, err
}

type statusError struct {
	status int
	body   apiError
}

func (e *statusError) Error() string {
	if e.body.Message != "" {
		return fmt.Sprintf("%s: %d %s: %s", ErrStatus, e.status, e.body.Code, e.body.Message)
	}
	return fmt.Sprintf("%s: %d", ErrStatus, e.status)
}

func (e *statusError) Unwrap() error { return ErrStatus }

func isStatus(err error, status int) bool {
	var se *statusError
	return errors.As(err, &se) && se.status == status
}

func (c *Client) do(ctx context.Context, method, path string, in, out any, want ...int) error {
	var body io.Reader = http.NoBody
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request body: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response body: %w", err)
	}

	for _, w := range want {
		if resp.StatusCode != w {
			continue
		}
		if out == nil {
			return nil
		}
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("decode %s %s: %w", method, path, err)
		}
		return nil
	}

	se := &statusError{status: resp.StatusCode}
	_ = json.Unmarshal(data, &se.body)
	return se
}
