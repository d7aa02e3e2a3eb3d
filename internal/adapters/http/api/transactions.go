package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/okian/fanspend/internal/domain/model"
)

// ingestEnvelope matches the aggregator's transactions response.
type ingestEnvelope struct {
	Transactions *[]model.Transaction `json:"transactions"`
}

var errMissingTransactions = errors.New(`"transactions" array is required`)

type ackResponse struct {
	Status     string `json:"status"`
	Accepted   int    `json:"accepted"`
	Duplicates int    `json:"duplicates"`
}

// handleIngest handles POST /api/transactions. The body is either a JSON
// array of aggregator rows or an object with a "transactions" array. An
// object without that array is a 400.
func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	const op = "api.ingest"
	var raw json.RawMessage
	if err := s.decode(w, r, op, &raw); err != nil {
		s.fail(w, r, err)
		return
	}

	var txs []model.Transaction
	if trimmed := bytes.TrimSpace(raw); len(trimmed) > 0 && trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &txs); err != nil {
			s.fail(w, r, WrapKind(op, ErrBadRequest, err))
			return
		}
	} else {
		var env ingestEnvelope
		if err := json.Unmarshal(trimmed, &env); err != nil {
			s.fail(w, r, WrapKind(op, ErrBadRequest, err))
			return
		}
		if env.Transactions == nil {
			s.fail(w, r, WrapKind(op, ErrBadRequest, errMissingTransactions))
			return
		}
		txs = *env.Transactions
	}

	receipt, err := s.deps.Ingest(r.Context(), userIDFrom(r.Context()), txs)
	if err != nil {
		s.fail(w, r, Wrap(op, err))
		return
	}
	ack := ackResponse{Status: "accepted", Accepted: receipt.Accepted, Duplicates: receipt.Duplicates}
	if receipt.Accepted == 0 {
		ack.Status = "duplicate"
		writeJSON(w, http.StatusOK, ack)
		return
	}
	writeJSON(w, http.StatusAccepted, ack)
}

// handleFanSpend handles GET /api/transactions_with_sponsors. With
// ?summary=false the bare scored list is returned.
func (s *Server) handleFanSpend(w http.ResponseWriter, r *http.Request) {
	const op = "api.fanspend"
	withSummary := true
	if v := r.URL.Query().Get("summary"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			s.fail(w, r, WrapKind(op, ErrBadRequest, err))
			return
		}
		withSummary = b
	}

	userID := userIDFrom(r.Context())
	if !withSummary {
		list, err := s.deps.ScoredTransactions(r.Context(), userID)
		if err != nil {
			s.fail(w, r, Wrap(op, err))
			return
		}
		writeJSON(w, http.StatusOK, list)
		return
	}

	res, err := s.deps.FanSpend(r.Context(), userID)
	if err != nil {
		s.fail(w, r, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// handlePoints handles GET /api/points, the persisted ledger summary.
func (s *Server) handlePoints(w http.ResponseWriter, r *http.Request) {
	sum, err := s.deps.Points(r.Context(), userIDFrom(r.Context()))
	if err != nil {
		s.fail(w, r, Wrap("api.points", err))
		return
	}
	writeJSON(w, http.StatusOK, sum)
}
