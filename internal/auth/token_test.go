package auth

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sessiongate/auth-gateway/internal/config"
	"github.com/sessiongate/auth-gateway/internal/domain"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func testAuthConfig() config.AuthConfig {
	return config.AuthConfig{
		AccessTokenSecret:     "access-test-secret",
		RefreshTokenSecret:    "refresh-test-secret",
		AccessTokenTTLSeconds: 60,
		RefreshTokenTTLHours:  168,
	}
}

var alice = Identity{UserID: "u-1", Role: domain.RoleUser, Username: "alice"}

func TestCodecIssueVerify(t *testing.T) {
	codec, err := NewTokenCodec(TokenKindAccess, "secret")
	if err != nil {
		t.Fatalf("NewTokenCodec: %v", err)
	}

	token, exp, err := codec.Issue(alice, time.Minute)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if exp.Before(time.Now()) {
		t.Fatal("expiry in the past")
	}

	claims, err := codec.Verify(token)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if claims.Identity() != alice {
		t.Errorf("identity = %+v, want %+v", claims.Identity(), alice)
	}
	if claims.Subject != alice.UserID || claims.ID == "" {
		t.Errorf("registered claims not populated: sub=%q jti=%q", claims.Subject, claims.ID)
	}
}

func TestCodecRejectsEmptySecret(t *testing.T) {
	if _, err := NewTokenCodec(TokenKindAccess, ""); err == nil {
		t.Fatal("expected error for empty secret")
	}
}

func TestCodecExpiry(t *testing.T) {
	clock := newFakeClock()
	codec, err := NewTokenCodec(TokenKindAccess, "secret", WithClock(clock.Now))
	if err != nil {
		t.Fatalf("NewTokenCodec: %v", err)
	}

	token, _, err := codec.Issue(alice, time.Minute)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	clock.Advance(30 * time.Second)
	if _, err := codec.Verify(token); err != nil {
		t.Fatalf("Verify before expiry: %v", err)
	}

	clock.Advance(time.Minute)
	if _, err := codec.Verify(token); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("Verify after expiry: want ErrTokenExpired, got %v", err)
	}

	claims, err := codec.VerifySignature(token)
	if err != nil {
		t.Fatalf("VerifySignature on expired token: %v", err)
	}
	if claims.UserID != alice.UserID {
		t.Errorf("userId = %q", claims.UserID)
	}
}

func TestCodecRejectsForeignSignature(t *testing.T) {
	mine, _ := NewTokenCodec(TokenKindAccess, "secret-a")
	theirs, _ := NewTokenCodec(TokenKindAccess, "secret-b")

	token, _, err := theirs.Issue(alice, time.Minute)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := mine.Verify(token); !errors.Is(err, ErrTokenSignature) {
		t.Fatalf("want ErrTokenSignature, got %v", err)
	}
	if _, err := mine.VerifySignature(token); !errors.Is(err, ErrTokenSignature) {
		t.Fatalf("VerifySignature: want ErrTokenSignature, got %v", err)
	}
}

func TestCodecRejectsWrongKindUnderSameSecret(t *testing.T) {
	access, _ := NewTokenCodec(TokenKindAccess, "shared")
	refresh, _ := NewTokenCodec(TokenKindRefresh, "shared")

	token, _, err := refresh.Issue(alice, time.Hour)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := access.Verify(token); !errors.Is(err, ErrTokenSignature) {
		t.Fatalf("want ErrTokenSignature, got %v", err)
	}
}

func TestCodecMalformed(t *testing.T) {
	codec, _ := NewTokenCodec(TokenKindAccess, "secret")
	for _, tok := range []string{"", "   ", "not-a-jwt", "a.b.c"} {
		if _, err := codec.Verify(tok); !errors.Is(err, ErrTokenMalformed) {
			t.Errorf("Verify(%q): want ErrTokenMalformed, got %v", tok, err)
		}
	}
}

func TestManagerIssuesDistinctPairs(t *testing.T) {
	tm, err := NewTokenManager(testAuthConfig())
	if err != nil {
		t.Fatalf("NewTokenManager: %v", err)
	}

	first, err := tm.IssuePair(alice)
	if err != nil {
		t.Fatalf("IssuePair: %v", err)
	}
	second, err := tm.IssuePair(alice)
	if err != nil {
		t.Fatalf("IssuePair: %v", err)
	}
	if first.RefreshToken == second.RefreshToken || first.AccessToken == second.AccessToken {
		t.Fatal("two pairs issued in the same second must differ")
	}
	if !first.AccessExpiresAt.Before(first.RefreshExpiresAt) {
		t.Fatal("access token must expire before refresh token")
	}
}

func TestManagerRejectsCrossUse(t *testing.T) {
	tm, err := NewTokenManager(testAuthConfig())
	if err != nil {
		t.Fatalf("NewTokenManager: %v", err)
	}
	pair, err := tm.IssuePair(alice)
	if err != nil {
		t.Fatalf("IssuePair: %v", err)
	}

	if _, err := tm.VerifyAccess(pair.RefreshToken); !errors.Is(err, ErrTokenSignature) {
		t.Errorf("refresh token accepted as access token: %v", err)
	}
	if _, err := tm.VerifyRefresh(pair.AccessToken); !errors.Is(err, ErrTokenSignature) {
		t.Errorf("access token accepted as refresh token: %v", err)
	}
	if _, err := tm.VerifyAccess(pair.AccessToken); err != nil {
		t.Errorf("VerifyAccess: %v", err)
	}
	if _, err := tm.VerifyRefresh(pair.RefreshToken); err != nil {
		t.Errorf("VerifyRefresh: %v", err)
	}
}

func TestManagerRejectsBadConfig(t *testing.T) {
	cfg := testAuthConfig()
	cfg.RefreshTokenSecret = cfg.AccessTokenSecret
	if _, err := NewTokenManager(cfg); err == nil {
		t.Fatal("expected error for shared secret")
	}

	cfg = testAuthConfig()
	cfg.AccessTokenSecret = ""
	if _, err := NewTokenManager(cfg); err == nil {
		t.Fatal("expected error for missing secret")
	}
}
