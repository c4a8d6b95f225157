package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/notes-service/internal/auth"
	"github.com/spec-kit/notes-service/internal/config"
	"github.com/spec-kit/notes-service/internal/domain"
	"github.com/spec-kit/notes-service/internal/events"
	"github.com/spec-kit/notes-service/internal/observability"
	"github.com/spec-kit/notes-service/internal/ratelimit"
	"github.com/spec-kit/notes-service/internal/repository"
	apperrors "github.com/spec-kit/notes-service/pkg/util/errorutil"
)

const (
	maxUsernameLength = 64
	maxPasswordBytes  = 72
)

// Session is a freshly minted token pair for a user.
type Session struct {
	User             *domain.User
	AccessToken      string
	RefreshToken     string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
}

// AuthService coordinates registration, login and session refresh.
type AuthService struct {
	users      repository.UserRepository
	tokens     *auth.TokenService
	limiter    *ratelimit.LoginLimiter
	dispatcher events.Dispatcher
	metrics    *observability.Metrics
	logger     *zap.Logger
	bcryptCost int
}

// AuthDependencies encapsulates requirements for the auth service.
type AuthDependencies struct {
	UserRepo   repository.UserRepository
	Tokens     *auth.TokenService
	Limiter    *ratelimit.LoginLimiter
	Dispatcher events.Dispatcher
	Metrics    *observability.Metrics
	Logger     *zap.Logger
}

// NewAuthService builds the service.
func NewAuthService(cfg config.AuthConfig, deps AuthDependencies) *AuthService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthService{
		users:      deps.UserRepo,
		tokens:     deps.Tokens,
		limiter:    deps.Limiter,
		dispatcher: deps.Dispatcher,
		metrics:    deps.Metrics,
		logger:     logger,
		bcryptCost: cfg.BcryptCost,
	}
}

// Register creates a user with the default role and signs them in.
func (s *AuthService) Register(ctx context.Context, username, password string) (*Session, error) {
	username = strings.TrimSpace(username)
	if err := validateCredentials(username, password); err != nil {
		return nil, err
	}

	user, err := s.createUser(ctx, username, password, domain.RoleUser)
	if err != nil {
		return nil, err
	}

	session, err := s.issue(user)
	if err != nil {
		return nil, err
	}
	s.publishEvent(ctx, events.NewEvent(events.EventUserRegistered, user.ID,
		events.UserPayload{Username: user.Username, Role: user.Role}))
	return session, nil
}

// Login checks credentials and signs the user in.
// Unknown users and wrong passwords are indistinguishable to the caller.
func (s *AuthService) Login(ctx context.Context, username, password string) (*Session, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, apperrors.NewValidationError("username and password required", nil)
	}
	if !s.limiter.Allowed(ctx, username) {
		s.metrics.RecordAuth("login", "throttled")
		return nil, apperrors.NewTooManyRequests("too many login attempts, try again later")
	}

	user, err := s.users.FindByUsername(ctx, username)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		auth.SpendComparison(password)
		return nil, s.loginFailed(ctx, username)
	case err != nil:
		return nil, err
	}
	if err := auth.ComparePassword(user.PasswordHash, password); err != nil {
		return nil, s.loginFailed(ctx, username)
	}

	s.limiter.Reset(ctx, username)
	session, err := s.issue(user)
	if err != nil {
		return nil, err
	}
	s.metrics.RecordAuth("login", "ok")
	s.publishEvent(ctx, events.NewEvent(events.EventUserLoggedIn, user.ID,
		events.UserPayload{Username: user.Username, Role: user.Role}))
	return session, nil
}

// Logout records the sign-out of whoever holds accessToken, if it is still valid.
// Issued tokens are not revoked.
func (s *AuthService) Logout(ctx context.Context, accessToken string) {
	res := s.tokens.VerifyAccess(accessToken)
	if !res.Valid {
		return
	}
	s.publishEvent(ctx, events.NewEvent(events.EventUserLoggedOut, res.Claims.UserID, nil))
}

// Refresh exchanges a refresh token for a new token pair.
// An expired refresh token yields a SESSION_EXPIRED error; the caller clears the cookies.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*Session, error) {
	if refreshToken == "" {
		s.metrics.RecordAuth("refresh", "missing")
		return nil, apperrors.NewUnauthorized("refresh token not found")
	}

	res := s.tokens.VerifyRefresh(refreshToken)
	if res.Expired {
		s.metrics.RecordAuth("refresh", "expired")
		return nil, apperrors.NewSessionExpired()
	}
	if !res.Valid {
		s.metrics.RecordAuth("refresh", "invalid")
		return nil, apperrors.NewUnauthorized("invalid refresh token")
	}

	user, err := s.users.FindByID(ctx, res.Claims.UserID)
	if errors.Is(err, repository.ErrNotFound) {
		s.metrics.RecordAuth("refresh", "unknown_user")
		return nil, apperrors.NewUnauthorized("user not found")
	}
	if err != nil {
		return nil, err
	}

	session, err := s.issue(user)
	if err != nil {
		return nil, err
	}
	s.metrics.RecordAuth("refresh", "ok")
	s.publishEvent(ctx, events.NewEvent(events.EventSessionRefreshed, user.ID, nil))
	return session, nil
}

// Me loads the current user record.
func (s *AuthService) Me(ctx context.Context, userID string) (*domain.User, error) {
	user, err := s.users.FindByID(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NewNotFound("user", nil)
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}

// EnsureAdmin creates an admin account unless the username is already taken.
func (s *AuthService) EnsureAdmin(ctx context.Context, username, password string) error {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil
	}
	if err := validateCredentials(username, password); err != nil {
		return err
	}
	_, err := s.users.FindByUsername(ctx, username)
	if err == nil {
		return nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return err
	}
	user, err := s.createUser(ctx, username, password, domain.RoleAdmin)
	if apperrors.Is(err, apperrors.CodeValidation) {
		// lost a race with another instance
		return nil
	}
	if err != nil {
		return err
	}
	s.logger.Info("bootstrap admin created", zap.String("username", user.Username))
	return nil
}

func (s *AuthService) createUser(ctx context.Context, username, password string, role domain.Role) (*domain.User, error) {
	hash, err := auth.HashPassword(password, s.bcryptCost)
	if err != nil {
		return nil, err
	}
	user := &domain.User{
		Username:     username,
		PasswordHash: hash,
		Role:         role,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, apperrors.NewValidationError("username already exists", nil)
		}
		return nil, err
	}
	return user, nil
}

func (s *AuthService) issue(user *domain.User) (*Session, error) {
	access, accessExp, err := s.tokens.IssueAccessToken(user)
	if err != nil {
		return nil, err
	}
	refresh, refreshExp, err := s.tokens.IssueRefreshToken(user)
	if err != nil {
		return nil, err
	}
	return &Session{
		User:             user,
		AccessToken:      access,
		RefreshToken:     refresh,
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: refreshExp,
	}, nil
}

func (s *AuthService) loginFailed(ctx context.Context, username string) error {
	s.limiter.RecordFailure(ctx, username)
	s.metrics.RecordAuth("login", "invalid")
	return apperrors.NewValidationError("invalid credentials", nil)
}

func (s *AuthService) publishEvent(ctx context.Context, event events.Event) {
	publish(ctx, s.dispatcher, event)
}

func validateCredentials(username, password string) error {
	details := map[string]any{}
	if username == "" {
		details["username"] = "required"
	} else if len(username) > maxUsernameLength {
		details["username"] = "too long"
	}
	if password == "" {
		details["password"] = "required"
	} else if len(password) > maxPasswordBytes {
		details["password"] = "too long"
	}
	if len(details) > 0 {
		return apperrors.NewValidationError("invalid username or password", details)
	}
	return nil
}

func publish(ctx context.Context, dispatcher events.Dispatcher, event events.Event) {
	if dispatcher == nil {
		return
	}
	_ = dispatcher.Publish(ctx, event)
}
