package services

import (
	"context"
	"errors"
	"fmt"
	"unicode"

	"webauth/pkg/broker"
	"webauth/pkg/envelope"
	"webauth/pkg/metrics"
	"webauth/pkg/models"
	"webauth/pkg/password"
	"webauth/pkg/repository"
	"webauth/pkg/token"

	"go.uber.org/zap"
)

const serviceName = "auth"

var (
	ErrCredentialMismatch = errors.New("incorrect username or password")
	ErrUsernameTaken      = errors.New("username already registered")
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidRole        = errors.New("invalid role")
)

// ValidationError is returned for a malformed username or password.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

// Session is the freshly minted token pair handed to a logged-in user.
type Session struct {
	User    models.User
	Access  token.Token
	Refresh token.Token
}

type AuthService struct {
	users   repository.UserRepository
	issuer  *token.Issuer
	events  broker.Publisher
	metrics *metrics.Metrics
	log     *zap.Logger
}

func NewAuthService(users repository.UserRepository, issuer *token.Issuer, events broker.Publisher, m *metrics.Metrics, log *zap.Logger) *AuthService {
	if events == nil {
		events = broker.Nop{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &AuthService{users: users, issuer: issuer, events: events, metrics: m, log: log}
}

func (s *AuthService) Register(ctx context.Context, req models.RegisterRequest) (Session, error) {
	if err := validateUsername(req.Username); err != nil {
		return Session{}, err
	}
	if err := validatePassword(req.Password); err != nil {
		return Session{}, err
	}

	hashed, err := password.Hash(req.Password)
	if err != nil {
		return Session{}, fmt.Errorf("hash password: %w", err)
	}

	user, err := s.users.Create(ctx, req.Username, hashed, models.RoleUser)
	if errors.Is(err, repository.ErrConflict) {
		return Session{}, ErrUsernameTaken
	}
	if err != nil {
		return Session{}, err
	}

	sess, err := s.mint(user)
	if err != nil {
		return Session{}, err
	}
	s.metrics.Registration()
	s.publish(ctx, envelope.ActionUserRegistered, user.Username, user.Role, nil)
	s.log.Info("user registered", zap.String("user", user.Username))
	return sess, nil
}

// Login checks the credentials and mints a token pair. Unknown users and
// wrong passwords produce the same error and take comparable time.
func (s *AuthService) Login(ctx context.Context, req models.LoginRequest) (Session, error) {
	user, err := s.users.FindByUsername(ctx, req.Username)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return Session{}, err
	}

	if !password.Verify(req.Password, user.HashedPassword) || user.Username == "" {
		s.metrics.Login(false)
		s.log.Info("login rejected", zap.String("user", req.Username))
		return Session{}, ErrCredentialMismatch
	}

	sess, err := s.mint(user)
	if err != nil {
		return Session{}, err
	}
	s.metrics.Login(true)
	s.publish(ctx, envelope.ActionUserLogin, user.Username, user.Role, nil)
	return sess, nil
}

// Logout records the end of a session. The caller clears the cookies.
func (s *AuthService) Logout(ctx context.Context, id *models.Identity) {
	if id == nil {
		return
	}
	s.publish(ctx, envelope.ActionUserLogout, id.Username, id.Role, nil)
}

func (s *AuthService) Me(ctx context.Context, id models.Identity) (models.User, error) {
	user, err := s.users.FindByUsername(ctx, id.Username)
	if errors.Is(err, repository.ErrNotFound) {
		return models.User{}, ErrUserNotFound
	}
	return user, err
}

func (s *AuthService) ListUsers(ctx context.Context) ([]models.User, error) {
	return s.users.List(ctx)
}

type roleChange struct {
	From models.Role `json:"from"`
	To   models.Role `json:"to"`
	By   string      `json:"by"`
}

// SetRole changes a user's role. Tokens already issued keep the old role
// until they expire.
func (s *AuthService) SetRole(ctx context.Context, actor models.Identity, username string, role models.Role) (models.User, error) {
	if !role.Valid() {
		return models.User{}, ErrInvalidRole
	}
	before, err := s.users.FindByUsername(ctx, username)
	if errors.Is(err, repository.ErrNotFound) {
		return models.User{}, ErrUserNotFound
	}
	if err != nil {
		return models.User{}, err
	}

	user, err := s.users.UpdateRole(ctx, username, role)
	if errors.Is(err, repository.ErrNotFound) {
		return models.User{}, ErrUserNotFound
	}
	if err != nil {
		return models.User{}, err
	}

	s.publish(ctx, envelope.ActionUserRoleChanged, user.Username, user.Role,
		roleChange{From: before.Role, To: user.Role, By: actor.Username})
	s.log.Info("role changed",
		zap.String("user", user.Username),
		zap.String("role", string(user.Role)),
		zap.String("by", actor.Username),
	)
	return user, nil
}

// SeedAdmin makes sure username exists and is an admin. An existing
// account keeps its password.
func (s *AuthService) SeedAdmin(ctx context.Context, username, plain string) error {
	user, err := s.users.FindByUsername(ctx, username)
	switch {
	case err == nil:
		if user.Role == models.RoleAdmin {
			return nil
		}
		_, err = s.users.UpdateRole(ctx, username, models.RoleAdmin)
		if err == nil {
			s.log.Info("promoted seed admin", zap.String("user", user.Username))
		}
		return err
	case !errors.Is(err, repository.ErrNotFound):
		return err
	}

	if err := validateUsername(username); err != nil {
		return err
	}
	hashed, err := password.Hash(plain)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	user, err = s.users.Create(ctx, username, hashed, models.RoleAdmin)
	if errors.Is(err, repository.ErrConflict) {
		return nil
	}
	if err != nil {
		return err
	}
	s.log.Info("created seed admin", zap.String("user", user.Username))
	return nil
}

func (s *AuthService) mint(user models.User) (Session, error) {
	access, refresh, err := s.issuer.IssuePair(models.Identity{Username: user.Username, Role: user.Role})
	if err != nil {
		return Session{}, fmt.Errorf("issue tokens: %w", err)
	}
	return Session{User: user, Access: access, Refresh: refresh}, nil
}

func (s *AuthService) publish(ctx context.Context, action, username string, role models.Role, data any) {
	emit(ctx, s.events, s.log, action, username, role, data)
}

// emit publishes an auth event. Failures are logged, never returned.
func emit(ctx context.Context, events broker.Publisher, log *zap.Logger, action, username string, role models.Role, data any) {
	env, err := envelope.NewEvent(action, serviceName, username, string(role), data)
	if err != nil {
		log.Error("event encode failed", zap.String("action", action), zap.Error(err))
		return
	}
	if err := events.Publish(ctx, env); err != nil {
		log.Warn("event publish failed", zap.String("action", action), zap.Error(err))
	}
}

func validateUsername(u string) error {
	if len(u) < 3 {
		return &ValidationError{Field: "username", Message: "must be at least 3 characters"}
	}
	if len(u) > 30 {
		return &ValidationError{Field: "username", Message: "too long (max 30)"}
	}
	for _, r := range u {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' && r != '-' {
			return &ValidationError{Field: "username", Message: "may only contain letters, digits, _ and -"}
		}
	}
	return nil
}

// bcrypt rejects passwords longer than 72 bytes.
func validatePassword(p string) error {
	if len(p) < 8 {
		return &ValidationError{Field: "password", Message: "must be at least 8 characters"}
	}
	if len(p) > 72 {
		return &ValidationError{Field: "password", Message: "too long (max 72 bytes)"}
	}
	return nil
}
