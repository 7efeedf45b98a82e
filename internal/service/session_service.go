package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/sessiongate/auth-gateway/internal/auth"
	"github.com/sessiongate/auth-gateway/internal/domain"
	"github.com/sessiongate/auth-gateway/internal/events"
	"github.com/sessiongate/auth-gateway/internal/repository"
	apperrors "github.com/sessiongate/auth-gateway/pkg/util/errorutil"
)

// SessionService issues, rotates and revokes refresh-token sessions.
type SessionService struct {
	users    repository.UserRepository
	sessions repository.SessionRepository
	tokens   *auth.TokenManager
	events   events.Dispatcher
	logger   *zap.Logger
}

// SessionDependencies encapsulates collaborators of the session service.
type SessionDependencies struct {
	UserRepo    repository.UserRepository
	SessionRepo repository.SessionRepository
	Tokens      *auth.TokenManager
	Dispatcher  events.Dispatcher
	Logger      *zap.Logger
}

// NewSessionService builds the service.
func NewSessionService(deps SessionDependencies) *SessionService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionService{
		users:    deps.UserRepo,
		sessions: deps.SessionRepo,
		tokens:   deps.Tokens,
		events:   deps.Dispatcher,
		logger:   logger,
	}
}

// tokenDigest is what gets stored for a bearer secret (refresh token, reset
// token), so a leaked store does not leak usable tokens.
func tokenDigest(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// IssueSessionPair signs a new token pair and records the refresh token as a
// live session of user before returning it.
func (s *SessionService) IssueSessionPair(ctx context.Context, user *domain.User) (domain.TokenPair, error) {
	pair, err := s.tokens.IssuePair(auth.IdentityFromUser(user))
	if err != nil {
		return domain.TokenPair{}, apperrors.NewInternalError(err)
	}

	if err := s.sessions.Add(ctx, user.ID, tokenDigest(pair.RefreshToken), s.tokens.RefreshTTL()); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.TokenPair{}, apperrors.NewNotFound("user", map[string]any{"id": user.ID})
		}
		s.logger.Error("persist session failed", zap.String("user_id", user.ID), zap.Error(err))
		return domain.TokenPair{}, apperrors.NewInternalError(err)
	}

	s.publish(ctx, events.New(events.EventSessionIssued, user.ID, events.SessionPayload{Username: user.Username}))
	return pair, nil
}

// Rotate exchanges a live refresh token for a new pair. The presented token
// stops being valid in the same atomic step that makes the new one valid, so
// of two concurrent rotations of one token exactly one succeeds.
func (s *SessionService) Rotate(ctx context.Context, presented string) (domain.TokenPair, error) {
	if strings.TrimSpace(presented) == "" {
		return domain.TokenPair{}, apperrors.NewUnauthorized("refresh token required")
	}

	claims, err := s.tokens.VerifyRefresh(presented)
	if err != nil {
		return domain.TokenPair{}, apperrors.NewForbidden("invalid or expired refresh token")
	}

	user, err := s.resolveOwner(ctx, claims.UserID)
	if err != nil {
		return domain.TokenPair{}, err
	}

	pair, err := s.tokens.IssuePair(auth.IdentityFromUser(user))
	if err != nil {
		return domain.TokenPair{}, apperrors.NewInternalError(err)
	}

	swapped, err := s.sessions.Swap(ctx, user.ID, tokenDigest(presented), tokenDigest(pair.RefreshToken), s.tokens.RefreshTTL())
	if err != nil {
		s.logger.Error("rotate session failed", zap.String("user_id", user.ID), zap.Error(err))
		return domain.TokenPair{}, apperrors.NewInternalError(err)
	}
	if !swapped {
		s.logger.Warn("refresh token not in session set", zap.String("user_id", user.ID), zap.String("jti", claims.ID))
		return domain.TokenPair{}, apperrors.NewForbidden("refresh token not recognized")
	}

	s.publish(ctx, events.New(events.EventSessionRotated, user.ID, events.SessionPayload{Username: user.Username}))
	return pair, nil
}

// Revoke ends the session of one refresh token. Revoking a token that is no
// longer live succeeds as long as its owner still exists.
func (s *SessionService) Revoke(ctx context.Context, presented string) error {
	if strings.TrimSpace(presented) == "" {
		return apperrors.NewUnauthorized("refresh token required")
	}

	claims, err := s.tokens.DecodeRefresh(presented)
	if err != nil {
		return apperrors.NewForbidden("invalid refresh token")
	}

	user, err := s.resolveOwner(ctx, claims.UserID)
	if err != nil {
		return err
	}

	removed, err := s.sessions.RemoveIfPresent(ctx, user.ID, tokenDigest(presented))
	if err != nil {
		s.logger.Error("revoke session failed", zap.String("user_id", user.ID), zap.Error(err))
		return apperrors.NewInternalError(err)
	}
	if removed {
		s.publish(ctx, events.New(events.EventSessionRevoked, user.ID, events.SessionPayload{Username: user.Username}))
	}
	return nil
}

// RevokeAll ends every session of the user.
func (s *SessionService) RevokeAll(ctx context.Context, userID, reason string) error {
	if err := s.sessions.Clear(ctx, userID); err != nil {
		s.logger.Error("clear sessions failed", zap.String("user_id", userID), zap.Error(err))
		return apperrors.NewInternalError(err)
	}
	s.publish(ctx, events.New(events.EventSessionsCleared, userID, events.SessionPayload{Reason: reason}))
	return nil
}

// ActiveSessions returns how many refresh tokens of the user are tracked.
// Expired entries count until their next removal.
func (s *SessionService) ActiveSessions(ctx context.Context, userID string) (int, error) {
	keys, err := s.sessions.List(ctx, userID)
	if err != nil {
		return 0, apperrors.NewInternalError(err)
	}
	return len(keys), nil
}

func (s *SessionService) resolveOwner(ctx context.Context, userID string) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewForbidden("unknown identity")
		}
		return nil, apperrors.NewInternalError(err)
	}
	return user, nil
}

func (s *SessionService) publish(ctx context.Context, event events.Event) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, event); err != nil {
		s.logger.Warn("event handler failed", zap.String("event", string(event.Type)), zap.Error(err))
	}
}
