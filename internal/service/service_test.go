package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"
	"golang.org/x/crypto/bcrypt"

	"github.com/sessiongate/auth-gateway/internal/auth"
	"github.com/sessiongate/auth-gateway/internal/config"
	"github.com/sessiongate/auth-gateway/internal/domain"
	"github.com/sessiongate/auth-gateway/internal/events"
	"github.com/sessiongate/auth-gateway/internal/repository"
	apperrors "github.com/sessiongate/auth-gateway/pkg/util/errorutil"
)

type sentVerification struct {
	email    string
	username string
	token    string
}

type recordingSender struct {
	mu     sync.Mutex
	sent   []sentVerification
	resets []sentVerification
}

func (r *recordingSender) SendVerification(_ context.Context, toEmail, username, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, sentVerification{email: toEmail, username: username, token: token})
	return nil
}

func (r *recordingSender) SendPasswordReset(_ context.Context, toEmail, username, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resets = append(r.resets, sentVerification{email: toEmail, username: username, token: token})
	return nil
}

func (r *recordingSender) resetCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.resets)
}

func (r *recordingSender) lastReset(t *testing.T) sentVerification {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.resets) == 0 {
		t.Fatal("no reset email sent")
	}
	return r.resets[len(r.resets)-1]
}

func (r *recordingSender) last(t *testing.T) sentVerification {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.sent) == 0 {
		t.Fatal("no verification email sent")
	}
	return r.sent[len(r.sent)-1]
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type harness struct {
	users    *repository.MemoryUserRepository
	registry *repository.MemorySessionRepository
	sessions *SessionService
	auth     *AuthService
	admin    *UserService
	mail     *recordingSender
	clock    *clock
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	logger := zaptest.NewLogger(t)
	clk := &clock{now: time.Now().UTC()}
	tokens, err := auth.NewTokenManager(config.AuthConfig{
		AccessTokenSecret:     "access-secret",
		RefreshTokenSecret:    "refresh-secret",
		AccessTokenTTLSeconds: 60,
		RefreshTokenTTLHours:  168,
	}, auth.WithClock(clk.Now))
	if err != nil {
		t.Fatalf("NewTokenManager: %v", err)
	}

	users := repository.NewMemoryUserRepository()
	registry := repository.NewMemorySessionRepository()
	dispatcher := events.NewInMemoryDispatcher()
	mail := &recordingSender{}
	NewNotificationService(dispatcher, logger, mail).RegisterHandlers()

	hasher := auth.NewBcryptHasher(bcrypt.MinCost)
	sessions := NewSessionService(SessionDependencies{
		UserRepo:    users,
		SessionRepo: registry,
		Tokens:      tokens,
		Dispatcher:  dispatcher,
		Logger:      logger,
	})
	return &harness{
		users:    users,
		registry: registry,
		sessions: sessions,
		auth: NewAuthService(AuthDependencies{
			UserRepo:          users,
			Sessions:          sessions,
			PasswordResetRepo: repository.NewMemoryPasswordResetRepository(),
			PasswordResetTTL:  30 * time.Minute,
			Hasher:            hasher,
			Dispatcher:        dispatcher,
			Logger:            logger,
			Now:               clk.Now,
		}),
		admin: NewUserService(users, sessions, hasher, logger),
		mail:  mail,
		clock: clk,
	}
}

func (h *harness) register(t *testing.T, username string) *domain.User {
	t.Helper()
	user, err := h.auth.Register(context.Background(), RegisterInput{
		Username: username,
		Email:    username + "@example.com",
		Password: "secret-pass",
	})
	if err != nil {
		t.Fatalf("Register %s: %v", username, err)
	}
	return user
}

func (h *harness) login(t *testing.T, username string) domain.TokenPair {
	t.Helper()
	_, pair, err := h.auth.Login(context.Background(), username, "", "secret-pass")
	if err != nil {
		t.Fatalf("Login %s: %v", username, err)
	}
	return pair
}

func (h *harness) sessionCount(t *testing.T, userID string) int {
	t.Helper()
	n, err := h.sessions.ActiveSessions(context.Background(), userID)
	if err != nil {
		t.Fatalf("ActiveSessions: %v", err)
	}
	return n
}

func requireCode(t *testing.T, err error, code string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s, got nil", code)
	}
	if !apperrors.HasCode(err, code) {
		t.Fatalf("expected %s, got %v", code, err)
	}
}
