package service

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/sessiongate/auth-gateway/internal/auth"
	"github.com/sessiongate/auth-gateway/internal/domain"
	"github.com/sessiongate/auth-gateway/internal/repository"
	apperrors "github.com/sessiongate/auth-gateway/pkg/util/errorutil"
)

const (
	defaultPageSize = 10
	maxPageSize     = 100
)

// UserService implements administrative user management.
type UserService struct {
	users    repository.UserRepository
	sessions *SessionService
	hasher   auth.Hasher
	logger   *zap.Logger
}

// NewUserService builds the service.
func NewUserService(users repository.UserRepository, sessions *SessionService, hasher auth.Hasher, logger *zap.Logger) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserService{users: users, sessions: sessions, hasher: hasher, logger: logger}
}

// UserPage is one page of the user listing.
type UserPage struct {
	Users      []*domain.User
	Total      int
	Page       int
	Limit      int
	TotalPages int
}

// CreateUserInput is the admin create payload.
type CreateUserInput struct {
	Username string
	Email    string
	Password string
	Role     domain.Role
	Profile  domain.Profile
}

// UpdateUserInput is the admin full-update payload.
type UpdateUserInput struct {
	Username string
	Email    string
}

// PatchUserInput carries only the fields to change.
type PatchUserInput struct {
	Username *string
	Email    *string
	Role     *domain.Role
	Profile  *domain.Profile
}

// Empty reports whether the patch changes nothing.
func (p PatchUserInput) Empty() bool {
	return p.Username == nil && p.Email == nil && p.Role == nil && p.Profile == nil
}

// List returns users newest first.
func (s *UserService) List(ctx context.Context, page, limit int) (*UserPage, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}

	users, total, err := s.users.List(ctx, limit, (page-1)*limit)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return &UserPage{
		Users:      users,
		Total:      total,
		Page:       page,
		Limit:      limit,
		TotalPages: (total + limit - 1) / limit,
	}, nil
}

// Get loads one user.
func (s *UserService) Get(ctx context.Context, id string) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, mapRepoError(err, "user")
	}
	return user, nil
}

// Create adds a user with the given role (default user).
func (s *UserService) Create(ctx context.Context, in CreateUserInput) (*domain.User, error) {
	username := normalizeUsername(in.Username)
	email := normalizeEmail(in.Email)
	role := in.Role
	if role == "" {
		role = domain.RoleUser
	}

	problems := fieldErrors{}
	problems.checkUsername(username)
	problems.checkEmail(email)
	problems.checkPassword(in.Password)
	if !role.Valid() {
		problems["role"] = "must be user or admin"
	}
	if err := problems.err(); err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	user := &domain.User{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		Profile:      in.Profile,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, mapRepoError(err, "user")
	}
	s.logger.Info("admin created user", zap.String("user_id", user.ID), zap.String("role", string(role)))
	return user, nil
}

// Update replaces username and email.
func (s *UserService) Update(ctx context.Context, id string, in UpdateUserInput) (*domain.User, error) {
	username := normalizeUsername(in.Username)
	email := normalizeEmail(in.Email)
	return s.Patch(ctx, id, PatchUserInput{Username: &username, Email: &email})
}

// Patch applies the non-nil fields. A role change ends every session of the
// user so that no refresh token can mint access tokens with the old role.
func (s *UserService) Patch(ctx context.Context, id string, in PatchUserInput) (*domain.User, error) {
	if in.Empty() {
		return nil, apperrors.NewValidationError("body must not be empty", nil)
	}

	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, mapRepoError(err, "user")
	}

	problems := fieldErrors{}
	if in.Username != nil {
		user.Username = normalizeUsername(*in.Username)
		problems.checkUsername(user.Username)
	}
	if in.Email != nil {
		email := normalizeEmail(*in.Email)
		if email != user.Email {
			user.EmailVerified = false
		}
		user.Email = email
		problems.checkEmail(user.Email)
	}
	if in.Profile != nil {
		user.Profile = *in.Profile
	}
	roleChanged := false
	if in.Role != nil {
		if !in.Role.Valid() {
			problems["role"] = "must be user or admin"
		} else if *in.Role != user.Role {
			user.Role = *in.Role
			roleChanged = true
		}
	}
	if err := problems.err(); err != nil {
		return nil, err
	}

	if err := s.users.Update(ctx, user); err != nil {
		return nil, mapRepoError(err, "user")
	}
	if roleChanged {
		if err := s.sessions.RevokeAll(ctx, user.ID, "role_changed"); err != nil {
			return nil, err
		}
	}
	return user, nil
}

// Delete removes the user and any sessions it still had.
func (s *UserService) Delete(ctx context.Context, id string) error {
	if err := s.users.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperrors.NewNotFound("user", map[string]any{"id": id})
		}
		return apperrors.NewInternalError(err)
	}
	if err := s.sessions.RevokeAll(ctx, id, "user_deleted"); err != nil {
		s.logger.Warn("sessions of deleted user not cleared", zap.String("user_id", id), zap.Error(err))
	}
	return nil
}
