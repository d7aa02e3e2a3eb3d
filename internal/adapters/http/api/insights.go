package api

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/okian/fanspend/internal/domain/model"
)

// handleSponsors handles GET /api/sponsors.
func (s *Server) handleSponsors(w http.ResponseWriter, r *http.Request) {
	out, err := s.deps.Sponsors(r.Context())
	if err != nil {
		s.fail(w, r, Wrap("api.sponsors", err))
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// handleSpendingByTeam handles GET /api/total_spending_by_team.
func (s *Server) handleSpendingByTeam(w http.ResponseWriter, r *http.Request) {
	out, err := s.deps.SpendingByTeam(r.Context())
	if err != nil {
		s.fail(w, r, Wrap("api.spending_by_team", err))
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// handleByPaymentChannel handles GET /api/transactions_by_payment_channel.
func (s *Server) handleByPaymentChannel(w http.ResponseWriter, r *http.Request) {
	out, err := s.deps.TransactionsByPaymentChannel(r.Context())
	if err != nil {
		s.fail(w, r, Wrap("api.by_payment_channel", err))
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// handleByTeam handles GET /api/transactions_by_team?teamName=. A team
// session sees its own team only and may omit teamName.
func (s *Server) handleByTeam(w http.ResponseWriter, r *http.Request) {
	const op = "api.by_team"
	team := strings.TrimSpace(r.URL.Query().Get("teamName"))
	if p := principalFrom(r.Context()); p.Role == model.RoleTeam {
		if team != "" && !strings.EqualFold(team, p.Name) {
			s.fail(w, r, WrapKind(op, ErrForbidden, fmt.Errorf("team %q may only read its own figures", p.Name)))
			return
		}
		team = p.Name
	}
	if team == "" {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
		return
	}
	out, err := s.deps.TransactionsByTeam(r.Context(), team)
	if err != nil {
		s.fail(w, r, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, out)
}
