package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sessiongate/auth-gateway/internal/auth"
	"github.com/sessiongate/auth-gateway/internal/domain"
	"github.com/sessiongate/auth-gateway/internal/events"
	"github.com/sessiongate/auth-gateway/internal/repository"
	apperrors "github.com/sessiongate/auth-gateway/pkg/util/errorutil"
)

// AuthService coordinates registration, login and self-service account flows.
type AuthService struct {
	users    repository.UserRepository
	sessions *SessionService
	resets   repository.PasswordResetRepository
	resetTTL time.Duration
	hasher   auth.Hasher
	events   events.Dispatcher
	logger   *zap.Logger
	now      func() time.Time
}

// AuthDependencies encapsulates collaborators of the auth service.
type AuthDependencies struct {
	UserRepo          repository.UserRepository
	Sessions          *SessionService
	PasswordResetRepo repository.PasswordResetRepository
	PasswordResetTTL  time.Duration
	Hasher            auth.Hasher
	Dispatcher        events.Dispatcher
	Logger            *zap.Logger
	// Now overrides the clock used for reset token expiry.
	Now func() time.Time
}

// NewAuthService builds the service.
func NewAuthService(deps AuthDependencies) *AuthService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	resetTTL := deps.PasswordResetTTL
	if resetTTL <= 0 {
		resetTTL = 30 * time.Minute
	}
	return &AuthService{
		users:    deps.UserRepo,
		sessions: deps.Sessions,
		resets:   deps.PasswordResetRepo,
		resetTTL: resetTTL,
		hasher:   deps.Hasher,
		events:   deps.Dispatcher,
		logger:   logger,
		now:      now,
	}
}

// RegisterInput is the self-registration payload.
type RegisterInput struct {
	Username string
	Email    string
	Password string
	Profile  domain.Profile
}

// Register creates an unverified user account and requests a verification email.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*domain.User, error) {
	username := normalizeUsername(in.Username)
	email := normalizeEmail(in.Email)

	problems := fieldErrors{}
	problems.checkUsername(username)
	problems.checkEmail(email)
	problems.checkPassword(in.Password)
	if err := problems.err(); err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	token := uuid.NewString()
	user := &domain.User{
		Username:               username,
		Email:                  email,
		PasswordHash:           hash,
		Role:                   domain.RoleUser,
		Profile:                in.Profile,
		EmailVerificationToken: &token,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, mapRepoError(err, "user")
	}

	s.logger.Info("user registered", zap.String("user_id", user.ID), zap.String("username", user.Username))
	s.publish(ctx, events.New(events.EventUserRegistered, user.ID, events.VerificationPayload{
		Email:    user.Email,
		Username: user.Username,
		Token:    token,
	}))
	return user, nil
}

// Login verifies credentials given as username or email and opens a new session.
func (s *AuthService) Login(ctx context.Context, username, email, password string) (*domain.User, domain.TokenPair, error) {
	username = normalizeUsername(username)
	email = normalizeEmail(email)
	if password == "" || (username == "" && email == "") {
		return nil, domain.TokenPair{}, apperrors.NewUnauthorized("username or email and password required")
	}

	user, err := s.users.GetByLogin(ctx, username, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, domain.TokenPair{}, apperrors.NewUnauthorized("invalid credentials")
		}
		return nil, domain.TokenPair{}, apperrors.NewInternalError(err)
	}
	if err := s.hasher.Compare(user.PasswordHash, password); err != nil {
		return nil, domain.TokenPair{}, apperrors.NewUnauthorized("invalid credentials")
	}

	pair, err := s.sessions.IssueSessionPair(ctx, user)
	if err != nil {
		return nil, domain.TokenPair{}, err
	}
	s.logger.Info("user logged in", zap.String("user_id", user.ID))
	return user, pair, nil
}

// VerifyEmail marks the owner of token as verified and consumes the token.
func (s *AuthService) VerifyEmail(ctx context.Context, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return apperrors.NewValidationError("token is required", nil)
	}

	user, err := s.users.GetByVerificationToken(ctx, token)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperrors.NewValidationError("invalid token", nil)
		}
		return apperrors.NewInternalError(err)
	}

	user.EmailVerified = true
	user.EmailVerificationToken = nil
	if err := s.users.Update(ctx, user); err != nil {
		return mapRepoError(err, "user")
	}
	return nil
}

// ResendVerification replaces the user's verification token and mails it again.
func (s *AuthService) ResendVerification(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	if email == "" {
		return apperrors.NewValidationError("email is required", nil)
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return mapRepoError(err, "user")
	}
	if user.EmailVerified {
		return apperrors.NewConflict("email already verified", nil)
	}

	token := uuid.NewString()
	user.EmailVerificationToken = &token
	if err := s.users.Update(ctx, user); err != nil {
		return mapRepoError(err, "user")
	}

	s.publish(ctx, events.New(events.EventEmailVerificationRequested, user.ID, events.VerificationPayload{
		Email:    user.Email,
		Username: user.Username,
		Token:    token,
	}))
	return nil
}

// Me loads the caller's own record.
func (s *AuthService) Me(ctx context.Context, userID string) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, mapRepoError(err, "user")
	}
	return user, nil
}

// UpdateProfile replaces the caller's profile fields.
func (s *AuthService) UpdateProfile(ctx context.Context, userID string, profile domain.Profile) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, mapRepoError(err, "user")
	}
	user.Profile = profile
	if err := s.users.Update(ctx, user); err != nil {
		return nil, mapRepoError(err, "user")
	}
	return user, nil
}

// ChangePassword verifies the current password, stores the new hash and ends
// every session of the user.
func (s *AuthService) ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) error {
	problems := fieldErrors{}
	problems.checkPassword(newPassword)
	if err := problems.err(); err != nil {
		return err
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return mapRepoError(err, "user")
	}
	if err := s.hasher.Compare(user.PasswordHash, currentPassword); err != nil {
		return apperrors.NewForbidden("invalid credentials")
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return apperrors.NewInternalError(err)
	}
	user.PasswordHash = hash
	if err := s.users.Update(ctx, user); err != nil {
		return mapRepoError(err, "user")
	}
	return s.sessions.RevokeAll(ctx, user.ID, "password_changed")
}

// EnsureAdmin makes sure an admin account with the given username exists.
// An existing non-admin account with that username or email is promoted.
func (s *AuthService) EnsureAdmin(ctx context.Context, username, email, password string) (*domain.User, error) {
	username = normalizeUsername(username)
	email = normalizeEmail(email)

	user, err := s.users.GetByLogin(ctx, username, email)
	switch {
	case err == nil:
		if user.Role == domain.RoleAdmin {
			return user, nil
		}
		user.Role = domain.RoleAdmin
		if err := s.users.Update(ctx, user); err != nil {
			return nil, mapRepoError(err, "user")
		}
		s.logger.Info("promoted bootstrap admin", zap.String("user_id", user.ID))
		return user, s.sessions.RevokeAll(ctx, user.ID, "role_changed")
	case !errors.Is(err, repository.ErrNotFound):
		return nil, apperrors.NewInternalError(err)
	}

	problems := fieldErrors{}
	problems.checkUsername(username)
	problems.checkEmail(email)
	problems.checkPassword(password)
	if err := problems.err(); err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	user = &domain.User{
		Username:      username,
		Email:         email,
		PasswordHash:  hash,
		Role:          domain.RoleAdmin,
		EmailVerified: true,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, mapRepoError(err, "user")
	}
	s.logger.Info("created bootstrap admin", zap.String("user_id", user.ID))
	return user, nil
}

func (s *AuthService) publish(ctx context.Context, event events.Event) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, event); err != nil {
		s.logger.Warn("event handler failed", zap.String("event", string(event.Type)), zap.Error(err))
	}
}
