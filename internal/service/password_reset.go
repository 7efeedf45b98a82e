package service

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sessiongate/auth-gateway/internal/events"
	"github.com/sessiongate/auth-gateway/internal/repository"
	apperrors "github.com/sessiongate/auth-gateway/pkg/util/errorutil"
)

var errResetUnavailable = errors.New("password reset store not configured")

// RequestPasswordReset mails a single-use reset token to the owner of email.
// An unknown email succeeds silently so the endpoint cannot be used to probe
// for accounts.
func (s *AuthService) RequestPasswordReset(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	if email == "" {
		return apperrors.NewValidationError("email is required", nil)
	}
	if s.resets == nil {
		return apperrors.NewInternalError(errResetUnavailable)
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.logger.Info("password reset requested for unknown email")
			return nil
		}
		return apperrors.NewInternalError(err)
	}

	token := uuid.NewString()
	record := &repository.PasswordResetToken{
		UserID:    user.ID,
		TokenHash: tokenDigest(token),
		ExpiresAt: s.now().Add(s.resetTTL),
	}
	if err := s.resets.Create(ctx, record); err != nil {
		return apperrors.NewInternalError(err)
	}

	s.logger.Info("password reset requested", zap.String("user_id", user.ID))
	s.publish(ctx, events.New(events.EventPasswordResetRequested, user.ID, events.PasswordResetPayload{
		Email:    user.Email,
		Username: user.Username,
		Token:    token,
	}))
	return nil
}

// ConfirmPasswordReset consumes token, sets the new password and ends every
// session of the user.
func (s *AuthService) ConfirmPasswordReset(ctx context.Context, token, newPassword string) error {
	token = strings.TrimSpace(token)
	problems := fieldErrors{}
	if token == "" {
		problems["token"] = "is required"
	}
	problems.checkPassword(newPassword)
	if err := problems.err(); err != nil {
		return err
	}
	if s.resets == nil {
		return apperrors.NewInternalError(errResetUnavailable)
	}

	record, err := s.resets.GetByHash(ctx, tokenDigest(token))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperrors.NewValidationError("invalid or expired token", nil)
		}
		return apperrors.NewInternalError(err)
	}
	if !record.Usable(s.now()) {
		return apperrors.NewValidationError("invalid or expired token", nil)
	}

	user, err := s.users.GetByID(ctx, record.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperrors.NewValidationError("invalid or expired token", nil)
		}
		return apperrors.NewInternalError(err)
	}

	consumed, err := s.resets.MarkUsed(ctx, record.ID)
	if err != nil {
		return apperrors.NewInternalError(err)
	}
	if !consumed {
		return apperrors.NewValidationError("invalid or expired token", nil)
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return apperrors.NewInternalError(err)
	}
	user.PasswordHash = hash
	if err := s.users.Update(ctx, user); err != nil {
		return mapRepoError(err, "user")
	}

	s.publish(ctx, events.New(events.EventPasswordReset, user.ID, events.SessionPayload{Username: user.Username, Reason: "password_reset"}))
	return s.sessions.RevokeAll(ctx, user.ID, "password_reset")
}
