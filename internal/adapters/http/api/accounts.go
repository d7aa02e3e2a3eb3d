package api

import (
	"fmt"
	"net/http"

	service "github.com/okian/fanspend/internal/app"
	"github.com/okian/fanspend/internal/domain/model"
)

// fanFields accepts either the generic maps or the per-league form fields
// of the registration page. Form fields win when both are present.
type fanFields struct {
	Profile map[string]string `json:"profile"`
	Teams   map[string]string `json:"favorite_teams"`

	MLBFanStatus    string `json:"mlbFanStatus"`
	FavoriteMLBTeam string `json:"favoriteMLBTeam"`
	NBAFanStatus    string `json:"nbaFanStatus"`
	FavoriteNBATeam string `json:"favoriteNBATeam"`
	NFLFanStatus    string `json:"nflFanStatus"`
	FavoriteNFLTeam string `json:"favoriteNFLTeam"`
}

func (f fanFields) resolve() (model.UserProfile, map[model.League]string, error) {
	profile := model.ParseProfile(f.Profile)
	teams := make(map[model.League]string, len(f.Teams))
	for raw, team := range f.Teams {
		l, ok := model.ParseLeague(raw)
		if !ok {
			return nil, nil, fmt.Errorf("unknown league %q", raw)
		}
		teams[l] = team
	}

	perLeague := []struct {
		league       model.League
		status, team string
	}{
		{model.MLB, f.MLBFanStatus, f.FavoriteMLBTeam},
		{model.NBA, f.NBAFanStatus, f.FavoriteNBATeam},
		{model.NFL, f.NFLFanStatus, f.FavoriteNFLTeam},
	}
	for _, pl := range perLeague {
		if pl.status != "" {
			profile[pl.league] = model.ParseFanStatus(pl.status)
		}
		if pl.team != "" {
			teams[pl.league] = pl.team
		}
	}
	return profile, teams, nil
}

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	fanFields
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// handleRegister handles POST /register.
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	const op = "api.register"
	var req registerRequest
	if err := s.decode(w, r, op, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	profile, teams, err := req.resolve()
	if err != nil {
		s.fail(w, r, WrapKind(op, ErrBadRequest, err))
		return
	}
	sess, err := s.deps.Register(r.Context(), service.Registration{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
		Profile:  profile,
		Teams:    teams,
	})
	if err != nil {
		s.fail(w, r, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusCreated, sess)
}

// handleLogin handles POST /login.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	const op = "api.login"
	var req loginRequest
	if err := s.decode(w, r, op, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	sess, err := s.deps.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		s.fail(w, r, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

type customerLoginRequest struct {
	// The customer login form posts the email as "username".
	Email    string `json:"username"`
	Password string `json:"password"`
}

type teamLoginRequest struct {
	TeamName string `json:"teamName"`
	Password string `json:"password"`
}

// handleCustomerLogin handles POST /customer-login.
func (s *Server) handleCustomerLogin(w http.ResponseWriter, r *http.Request) {
	const op = "api.customer_login"
	var req customerLoginRequest
	if err := s.decode(w, r, op, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	sess, err := s.deps.CustomerLogin(r.Context(), req.Email, req.Password)
	if err != nil {
		s.fail(w, r, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

// handleTeamLogin handles POST /team-login.
func (s *Server) handleTeamLogin(w http.ResponseWriter, r *http.Request) {
	const op = "api.team_login"
	var req teamLoginRequest
	if err := s.decode(w, r, op, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	sess, err := s.deps.TeamLogin(r.Context(), req.TeamName, req.Password)
	if err != nil {
		s.fail(w, r, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

// handleGetProfile handles GET /api/profile.
func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	u, err := s.deps.Profile(r.Context(), userIDFrom(r.Context()))
	if err != nil {
		s.fail(w, r, Wrap("api.get_profile", err))
		return
	}
	writeJSON(w, http.StatusOK, u)
}

// handleUpdateProfile handles PUT /api/profile.
func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	const op = "api.update_profile"
	var req fanFields
	if err := s.decode(w, r, op, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	profile, teams, err := req.resolve()
	if err != nil {
		s.fail(w, r, WrapKind(op, ErrBadRequest, err))
		return
	}
	u, err := s.deps.UpdateProfile(r.Context(), userIDFrom(r.Context()), profile, teams)
	if err != nil {
		s.fail(w, r, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, u)
}
