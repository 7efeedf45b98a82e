package service

import (
	"context"
	"testing"

	"github.com/sessiongate/auth-gateway/internal/domain"
	apperrors "github.com/sessiongate/auth-gateway/pkg/util/errorutil"
)

func TestRegisterSendsVerification(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	user, err := h.auth.Register(ctx, RegisterInput{
		Username: " alice ",
		Email:    "Alice@Example.com",
		Password: "secret-pass",
		Profile:  domain.Profile{FirstName: "Alice"},
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if user.Username != "alice" || user.Email != "alice@example.com" {
		t.Fatalf("not normalized: %q %q", user.Username, user.Email)
	}
	if user.Role != domain.RoleUser || user.EmailVerified {
		t.Fatalf("unexpected new user state: role=%s verified=%v", user.Role, user.EmailVerified)
	}
	if user.PasswordHash == "secret-pass" {
		t.Fatal("password stored in clear")
	}

	sent := h.mail.last(t)
	if sent.email != "alice@example.com" || sent.token == "" {
		t.Fatalf("unexpected email: %+v", sent)
	}

	_, err = h.auth.Register(ctx, RegisterInput{Username: "alice", Email: "other@example.com", Password: "secret-pass"})
	requireCode(t, err, apperrors.CodeConflict)
}

func TestRegisterValidation(t *testing.T) {
	h := newHarness(t)

	_, err := h.auth.Register(context.Background(), RegisterInput{Username: "al", Email: "nope", Password: "123"})
	requireCode(t, err, apperrors.CodeValidation)

	details := apperrors.ToDomainError(err).Details
	for _, field := range []string{"username", "email", "password"} {
		if _, ok := details[field]; !ok {
			t.Errorf("missing detail for %s", field)
		}
	}
}

func TestVerifyEmailConsumesToken(t *testing.T) {
	h := newHarness(t)
	user := h.register(t, "alice")
	token := h.mail.last(t).token
	ctx := context.Background()

	if err := h.auth.VerifyEmail(ctx, token); err != nil {
		t.Fatalf("VerifyEmail: %v", err)
	}
	got, err := h.auth.Me(ctx, user.ID)
	if err != nil {
		t.Fatalf("Me: %v", err)
	}
	if !got.EmailVerified || got.EmailVerificationToken != nil {
		t.Fatalf("not verified: %+v", got)
	}

	requireCode(t, h.auth.VerifyEmail(ctx, token), apperrors.CodeValidation)
	requireCode(t, h.auth.ResendVerification(ctx, "alice@example.com"), apperrors.CodeConflict)
}

func TestResendVerificationReplacesToken(t *testing.T) {
	h := newHarness(t)
	h.register(t, "alice")
	first := h.mail.last(t).token
	ctx := context.Background()

	if err := h.auth.ResendVerification(ctx, "ALICE@example.com"); err != nil {
		t.Fatalf("ResendVerification: %v", err)
	}
	second := h.mail.last(t).token
	if second == first {
		t.Fatal("token not replaced")
	}
	requireCode(t, h.auth.VerifyEmail(ctx, first), apperrors.CodeValidation)
	if err := h.auth.VerifyEmail(ctx, second); err != nil {
		t.Fatalf("VerifyEmail: %v", err)
	}

	requireCode(t, h.auth.ResendVerification(ctx, "ghost@example.com"), apperrors.CodeNotFound)
}

func TestLogin(t *testing.T) {
	h := newHarness(t)
	h.register(t, "alice")
	ctx := context.Background()

	user, _, err := h.auth.Login(ctx, "", "alice@example.com", "secret-pass")
	if err != nil {
		t.Fatalf("login by email: %v", err)
	}
	if user.Username != "alice" {
		t.Fatalf("logged in as %q", user.Username)
	}

	_, _, err = h.auth.Login(ctx, "alice", "", "wrong-pass")
	requireCode(t, err, apperrors.CodeUnauthorized)

	_, _, err = h.auth.Login(ctx, "nobody", "", "secret-pass")
	requireCode(t, err, apperrors.CodeUnauthorized)

	_, _, err = h.auth.Login(ctx, "", "", "secret-pass")
	requireCode(t, err, apperrors.CodeUnauthorized)

	_, _, err = h.auth.Login(ctx, "alice", "", "")
	requireCode(t, err, apperrors.CodeUnauthorized)
}

func TestUpdateProfile(t *testing.T) {
	h := newHarness(t)
	user := h.register(t, "alice")

	updated, err := h.auth.UpdateProfile(context.Background(), user.ID, domain.Profile{Bio: "hello"})
	if err != nil {
		t.Fatalf("UpdateProfile: %v", err)
	}
	if updated.Profile.Bio != "hello" {
		t.Fatalf("bio = %q", updated.Profile.Bio)
	}

	_, err = h.auth.UpdateProfile(context.Background(), "missing", domain.Profile{})
	requireCode(t, err, apperrors.CodeNotFound)
}

func TestChangePasswordEndsSessions(t *testing.T) {
	h := newHarness(t)
	user := h.register(t, "alice")
	pair := h.login(t, "alice")
	ctx := context.Background()

	requireCode(t, h.auth.ChangePassword(ctx, user.ID, "wrong-pass", "new-secret"), apperrors.CodeForbidden)
	requireCode(t, h.auth.ChangePassword(ctx, user.ID, "secret-pass", "x"), apperrors.CodeValidation)

	if err := h.auth.ChangePassword(ctx, user.ID, "secret-pass", "new-secret"); err != nil {
		t.Fatalf("ChangePassword: %v", err)
	}
	_, err := h.sessions.Rotate(ctx, pair.RefreshToken)
	requireCode(t, err, apperrors.CodeForbidden)

	if _, _, err := h.auth.Login(ctx, "alice", "", "new-secret"); err != nil {
		t.Fatalf("login with new password: %v", err)
	}
}

func TestEnsureAdmin(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	admin, err := h.auth.EnsureAdmin(ctx, "root", "root@example.com", "root-pass")
	if err != nil {
		t.Fatalf("EnsureAdmin: %v", err)
	}
	if admin.Role != domain.RoleAdmin || !admin.EmailVerified {
		t.Fatalf("unexpected admin: %+v", admin)
	}

	again, err := h.auth.EnsureAdmin(ctx, "root", "root@example.com", "root-pass")
	if err != nil {
		t.Fatalf("EnsureAdmin again: %v", err)
	}
	if again.ID != admin.ID {
		t.Fatal("second call created another admin")
	}

	user := h.register(t, "bob")
	pair := h.login(t, "bob")
	promoted, err := h.auth.EnsureAdmin(ctx, "bob", "", "ignored")
	if err != nil {
		t.Fatalf("promote: %v", err)
	}
	if promoted.ID != user.ID || promoted.Role != domain.RoleAdmin {
		t.Fatalf("unexpected promotion: %+v", promoted)
	}
	_, err = h.sessions.Rotate(ctx, pair.RefreshToken)
	requireCode(t, err, apperrors.CodeForbidden)
}
