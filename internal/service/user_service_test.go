package service

import (
	"context"
	"fmt"
	"testing"

	"github.com/sessiongate/auth-gateway/internal/domain"
	apperrors "github.com/sessiongate/auth-gateway/pkg/util/errorutil"
)

func TestAdminCreateAndGet(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	created, err := h.admin.Create(ctx, CreateUserInput{
		Username: "carol",
		Email:    "carol@example.com",
		Password: "secret-pass",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if created.Role != domain.RoleUser {
		t.Fatalf("role = %s, want default user", created.Role)
	}

	got, err := h.admin.Get(ctx, created.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Email != "carol@example.com" {
		t.Fatalf("email = %q", got.Email)
	}

	_, err = h.admin.Create(ctx, CreateUserInput{Username: "dave", Email: "dave@example.com", Password: "secret-pass", Role: "root"})
	requireCode(t, err, apperrors.CodeValidation)

	_, err = h.admin.Get(ctx, "missing")
	requireCode(t, err, apperrors.CodeNotFound)
}

func TestAdminListPaginates(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		h.register(t, fmt.Sprintf("user%d", i))
	}

	page, err := h.admin.List(ctx, 2, 2)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if page.Total != 5 || page.TotalPages != 3 || len(page.Users) != 2 || page.Page != 2 {
		t.Fatalf("unexpected page: total=%d pages=%d len=%d page=%d", page.Total, page.TotalPages, len(page.Users), page.Page)
	}

	page, err = h.admin.List(ctx, 0, 1000)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if page.Page != 1 || page.Limit != maxPageSize || len(page.Users) != 5 {
		t.Fatalf("defaults not applied: %+v", page)
	}
}

func TestAdminPatch(t *testing.T) {
	h := newHarness(t)
	user := h.register(t, "alice")
	h.register(t, "bob")
	ctx := context.Background()

	_, err := h.admin.Patch(ctx, user.ID, PatchUserInput{})
	requireCode(t, err, apperrors.CodeValidation)

	taken := "bob"
	_, err = h.admin.Patch(ctx, user.ID, PatchUserInput{Username: &taken})
	requireCode(t, err, apperrors.CodeConflict)

	bad := domain.Role("owner")
	_, err = h.admin.Patch(ctx, user.ID, PatchUserInput{Role: &bad})
	requireCode(t, err, apperrors.CodeValidation)

	profile := domain.Profile{LastName: "Liddell"}
	updated, err := h.admin.Patch(ctx, user.ID, PatchUserInput{Profile: &profile})
	if err != nil {
		t.Fatalf("Patch profile: %v", err)
	}
	if updated.Profile.LastName != "Liddell" || updated.Username != "alice" {
		t.Fatalf("unexpected patch result: %+v", updated)
	}
}

func TestAdminRoleChangeEndsSessions(t *testing.T) {
	h := newHarness(t)
	user := h.register(t, "alice")
	pair := h.login(t, "alice")
	ctx := context.Background()

	role := domain.RoleAdmin
	updated, err := h.admin.Patch(ctx, user.ID, PatchUserInput{Role: &role})
	if err != nil {
		t.Fatalf("Patch role: %v", err)
	}
	if updated.Role != domain.RoleAdmin {
		t.Fatalf("role = %s", updated.Role)
	}
	_, err = h.sessions.Rotate(ctx, pair.RefreshToken)
	requireCode(t, err, apperrors.CodeForbidden)

	fresh := h.login(t, "alice")
	if _, err := h.admin.Patch(ctx, user.ID, PatchUserInput{Role: &role}); err != nil {
		t.Fatalf("Patch same role: %v", err)
	}
	if _, err := h.sessions.Rotate(ctx, fresh.RefreshToken); err != nil {
		t.Fatalf("unchanged role ended session: %v", err)
	}
}

func TestAdminUpdateAndDelete(t *testing.T) {
	h := newHarness(t)
	user := h.register(t, "alice")
	ctx := context.Background()

	updated, err := h.admin.Update(ctx, user.ID, UpdateUserInput{Username: "alicia", Email: "alicia@example.com"})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.Username != "alicia" || updated.EmailVerified {
		t.Fatalf("unexpected update: %+v", updated)
	}

	_, err = h.admin.Update(ctx, user.ID, UpdateUserInput{Username: "", Email: "alicia@example.com"})
	requireCode(t, err, apperrors.CodeValidation)

	if err := h.admin.Delete(ctx, user.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	requireCode(t, h.admin.Delete(ctx, user.ID), apperrors.CodeNotFound)
}
