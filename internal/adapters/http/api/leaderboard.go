package api

import (
	"fmt"
	"net/http"
	"strconv"
)

// handleLeaderboard handles GET /api/leaderboard?league=NBA&limit=N.
func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	const op = "api.leaderboard"
	q := r.URL.Query()

	limit := 0
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			s.fail(w, r, WrapKind(op, ErrBadRequest, fmt.Errorf("limit: %w", err)))
			return
		}
		limit = n
	}

	entries, err := s.deps.Leaderboard(r.Context(), q.Get("league"), limit)
	if err != nil {
		s.fail(w, r, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, entries)
}
