package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/okian/fanspend/internal/adapters/repository"
	"github.com/okian/fanspend/internal/auth"
	"github.com/okian/fanspend/internal/domain/model"
	"github.com/okian/fanspend/pkg/logger"
)

// Registration is the input to Register.
type Registration struct {
	Username string
	Email    string
	Password string
	Profile  model.UserProfile
	Teams    map[model.League]string
}

// Session is returned by Register and Login.
type Session struct {
	Token string     `json:"token"`
	User  model.User `json:"user"`
}

// Register creates a user. At least one league must be Fan or SuperFan.
func (s *Service) Register(ctx context.Context, r Registration) (Session, error) {
	r.Username = strings.TrimSpace(r.Username)
	r.Email = strings.TrimSpace(r.Email)
	if r.Username == "" {
		return Session{}, fmt.Errorf("%w: username is required", ErrInvalidInput)
	}
	if r.Password == "" {
		return Session{}, fmt.Errorf("%w: password is required", ErrInvalidInput)
	}
	if !r.Profile.Eligible() {
		return Session{}, ErrNotEligible
	}
	teams, err := cleanTeams(r.Teams)
	if err != nil {
		return Session{}, err
	}

	hash, err := auth.HashPassword(r.Password, s.bcryptCost)
	if err != nil {
		return Session{}, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}

	u, err := s.store.CreateUser(ctx, model.User{
		ID:           uuid.NewString(),
		Username:     r.Username,
		Email:        r.Email,
		PasswordHash: hash,
		Profile:      r.Profile,
		Teams:        teams,
		CreatedAt:    time.Now().UTC(),
	})
	if errors.Is(err, repository.ErrDuplicate) {
		return Session{}, ErrUsernameTaken
	}
	if err != nil {
		return Session{}, fmt.Errorf("create user: %w", err)
	}

	s.logger.Info(ctx, "user registered", logger.String("user_id", u.ID))
	return s.session(u)
}

// Login checks credentials and issues a token. Unknown users and wrong
// passwords are reported identically.
func (s *Service) Login(ctx context.Context, username, password string) (Session, error) {
	u, err := s.store.UserByUsername(ctx, strings.TrimSpace(username))
	if errors.Is(err, repository.ErrNotFound) {
		return Session{}, ErrInvalidCredentials
	}
	if err != nil {
		return Session{}, fmt.Errorf("lookup user: %w", err)
	}
	if err := auth.CheckPassword(u.PasswordHash, password); err != nil {
		return Session{}, ErrInvalidCredentials
	}
	return s.session(u)
}

func (s *Service) session(u model.User) (Session, error) {
	token, err := s.issuer.Issue(u.ID, u.Username, string(model.RoleFan))
	if err != nil {
		return Session{}, fmt.Errorf("issue token: %w", err)
	}
	return Session{Token: token, User: u}, nil
}

// Principal is the caller a session token names.
type Principal struct {
	ID   string
	Name string
	Role model.Role
}

// Authenticate verifies a session token and returns the principal it
// names.
func (s *Service) Authenticate(_ context.Context, token string) (Principal, error) {
	claims, err := s.issuer.Verify(token)
	if err != nil {
		return Principal{}, fmt.Errorf("%w: %w", ErrUnauthorized, err)
	}
	role, ok := model.ParseRole(claims.Role)
	if !ok {
		return Principal{}, fmt.Errorf("%w: unknown role %q", ErrUnauthorized, claims.Role)
	}
	return Principal{ID: claims.UserID(), Name: claims.Username, Role: role}, nil
}

// OperatorSession is returned by CustomerLogin and TeamLogin.
type OperatorSession struct {
	Token    string         `json:"token"`
	Operator model.Operator `json:"operator"`
}

// CreateOperator adds a customer or team login. Accounts are provisioned
// by an administrator; there is no self-service signup.
func (s *Service) CreateOperator(ctx context.Context, role model.Role, login, password string) (model.Operator, error) {
	if role != model.RoleCustomer && role != model.RoleTeam {
		return model.Operator{}, fmt.Errorf("%w: role must be %s or %s", ErrInvalidInput, model.RoleCustomer, model.RoleTeam)
	}
	login = strings.TrimSpace(login)
	if login == "" {
		return model.Operator{}, fmt.Errorf("%w: login is required", ErrInvalidInput)
	}
	hash, err := auth.HashPassword(password, s.bcryptCost)
	if err != nil {
		return model.Operator{}, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}

	o, err := s.store.CreateOperator(ctx, model.Operator{
		ID:           uuid.NewString(),
		Role:         role,
		Login:        login,
		PasswordHash: hash,
		CreatedAt:    time.Now().UTC(),
	})
	if errors.Is(err, repository.ErrDuplicate) {
		return model.Operator{}, ErrUsernameTaken
	}
	if err != nil {
		return model.Operator{}, fmt.Errorf("create operator: %w", err)
	}
	s.logger.Info(ctx, "operator created", logger.String("operator_id", o.ID), logger.String("role", string(role)))
	return o, nil
}

// CustomerLogin signs a sponsor customer in by email.
func (s *Service) CustomerLogin(ctx context.Context, email, password string) (OperatorSession, error) {
	return s.operatorLogin(ctx, model.RoleCustomer, email, password)
}

// TeamLogin signs a team in by team name.
func (s *Service) TeamLogin(ctx context.Context, team, password string) (OperatorSession, error) {
	return s.operatorLogin(ctx, model.RoleTeam, team, password)
}

func (s *Service) operatorLogin(ctx context.Context, role model.Role, login, password string) (OperatorSession, error) {
	o, err := s.store.OperatorByLogin(ctx, role, strings.TrimSpace(login))
	if errors.Is(err, repository.ErrNotFound) {
		return OperatorSession{}, ErrInvalidCredentials
	}
	if err != nil {
		return OperatorSession{}, fmt.Errorf("lookup %s: %w", role, err)
	}
	if err := auth.CheckPassword(o.PasswordHash, password); err != nil {
		return OperatorSession{}, ErrInvalidCredentials
	}
	token, err := s.issuer.Issue(o.ID, o.Login, string(role))
	if err != nil {
		return OperatorSession{}, fmt.Errorf("issue token: %w", err)
	}
	return OperatorSession{Token: token, Operator: o}, nil
}

// Profile returns the stored user.
func (s *Service) Profile(ctx context.Context, userID string) (model.User, error) {
	u, err := s.store.UserByID(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return model.User{}, ErrNotFound
	}
	if err != nil {
		return model.User{}, fmt.Errorf("lookup user: %w", err)
	}
	return u, nil
}

// UpdateProfile replaces the fan profile and favorite teams, then rescores
// the user's ledger since eligibility may have changed.
func (s *Service) UpdateProfile(ctx context.Context, userID string, p model.UserProfile, teams map[model.League]string) (model.User, error) {
	if p == nil {
		return model.User{}, fmt.Errorf("%w: profile is required", ErrInvalidInput)
	}
	cleaned, err := cleanTeams(teams)
	if err != nil {
		return model.User{}, err
	}
	err = s.store.UpdateProfile(ctx, userID, p, cleaned)
	if errors.Is(err, repository.ErrNotFound) {
		return model.User{}, ErrNotFound
	}
	if err != nil {
		return model.User{}, fmt.Errorf("update profile: %w", err)
	}
	if _, err := s.Refresh(ctx, userID); err != nil {
		s.logger.Warn(ctx, "refresh after profile update failed",
			logger.String("user_id", userID), logger.Error(err))
	}
	return s.Profile(ctx, userID)
}

func cleanTeams(teams map[model.League]string) (map[model.League]string, error) {
	if len(teams) == 0 {
		return nil, nil
	}
	out := make(map[model.League]string, len(teams))
	for league, team := range teams {
		if !league.Known() {
			return nil, fmt.Errorf("%w: unknown league %q", ErrInvalidInput, league)
		}
		if team = strings.TrimSpace(team); team != "" {
			out[league] = team
		}
	}
	return out, nil
}
