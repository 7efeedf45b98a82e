package repository

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sessiongate/auth-gateway/internal/domain"
)

func TestMemoryUserRepositoryLifecycle(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryUserRepository()

	token := "verify-1"
	alice := &domain.User{
		Username:               "alice",
		Email:                  "alice@example.com",
		PasswordHash:           "hash",
		Role:                   domain.RoleUser,
		EmailVerificationToken: &token,
	}
	if err := repo.Create(ctx, alice); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if alice.ID == "" || alice.CreatedAt.IsZero() {
		t.Fatal("Create must assign id and timestamps")
	}

	dup := &domain.User{Username: "alice", Email: "other@example.com"}
	if err := repo.Create(ctx, dup); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("duplicate username: want ErrDuplicate, got %v", err)
	}

	byName, err := repo.GetByLogin(ctx, "alice", "")
	if err != nil || byName.ID != alice.ID {
		t.Fatalf("GetByLogin username = %v, %v", byName, err)
	}
	byEmail, err := repo.GetByLogin(ctx, "", "alice@example.com")
	if err != nil || byEmail.ID != alice.ID {
		t.Fatalf("GetByLogin email = %v, %v", byEmail, err)
	}
	if _, err := repo.GetByLogin(ctx, "", ""); !errors.Is(err, ErrNotFound) {
		t.Fatalf("empty login must not match: %v", err)
	}
	byToken, err := repo.GetByVerificationToken(ctx, "verify-1")
	if err != nil || byToken.ID != alice.ID {
		t.Fatalf("GetByVerificationToken = %v, %v", byToken, err)
	}

	byName.Profile.Bio = "hello"
	if err := repo.Update(ctx, byName); err != nil {
		t.Fatalf("Update: %v", err)
	}
	reloaded, _ := repo.GetByID(ctx, alice.ID)
	if reloaded.Profile.Bio != "hello" {
		t.Fatalf("bio = %q", reloaded.Profile.Bio)
	}

	if err := repo.Delete(ctx, alice.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := repo.GetByID(ctx, alice.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetByID after delete: %v", err)
	}
	if err := repo.Delete(ctx, alice.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second Delete: %v", err)
	}
}

func TestMemoryUserRepositoryListNewestFirst(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryUserRepository()

	for _, name := range []string{"ann", "bob", "cat"} {
		if err := repo.Create(ctx, &domain.User{Username: name, Email: name + "@example.com"}); err != nil {
			t.Fatalf("Create %s: %v", name, err)
		}
		time.Sleep(time.Millisecond)
	}

	page, total, err := repo.List(ctx, 2, 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if total != 3 || len(page) != 2 {
		t.Fatalf("total=%d len=%d", total, len(page))
	}
	if page[0].Username != "cat" || page[1].Username != "bob" {
		t.Fatalf("order = %s, %s", page[0].Username, page[1].Username)
	}

	page, _, _ = repo.List(ctx, 2, 2)
	if len(page) != 1 || page[0].Username != "ann" {
		t.Fatalf("second page = %v", page)
	}
	page, _, _ = repo.List(ctx, 2, 10)
	if len(page) != 0 {
		t.Fatalf("out of range page = %v", page)
	}
}

func TestMemoryPasswordResetSingleUse(t *testing.T) {
	repo := NewMemoryPasswordResetRepository()
	ctx := context.Background()

	token := &PasswordResetToken{UserID: "u-1", TokenHash: "digest", ExpiresAt: time.Now().Add(time.Hour)}
	if err := repo.Create(ctx, token); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := repo.Create(ctx, &PasswordResetToken{UserID: "u-2", TokenHash: "digest"}); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("duplicate Create = %v", err)
	}

	got, err := repo.GetByHash(ctx, "digest")
	if err != nil {
		t.Fatalf("GetByHash: %v", err)
	}
	if !got.Usable(time.Now()) {
		t.Fatal("fresh token not usable")
	}
	if got.Usable(time.Now().Add(2 * time.Hour)) {
		t.Fatal("expired token usable")
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := repo.MarkUsed(ctx, token.ID)
			if err != nil {
				t.Errorf("MarkUsed: %v", err)
				return
			}
			if ok {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if wins != 1 {
		t.Fatalf("MarkUsed winners = %d, want 1", wins)
	}

	if _, err := repo.GetByHash(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetByHash missing = %v", err)
	}
}

func TestMemorySessionRepositoryDropsEmptySets(t *testing.T) {
	ctx := context.Background()
	repo := NewMemorySessionRepository()
	tracked := func() int {
		repo.mu.Lock()
		defer repo.mu.Unlock()
		return len(repo.sets)
	}

	if present, _ := repo.Contains(ctx, "ghost", "A"); present {
		t.Fatal("unknown identity reports a token")
	}
	if err := repo.Clear(ctx, "ghost"); err != nil {
		t.Fatalf("Clear unknown: %v", err)
	}
	if swapped, _ := repo.Swap(ctx, "ghost", "A", "B", time.Minute); swapped {
		t.Fatal("Swap on unknown identity succeeded")
	}
	if n := tracked(); n != 0 {
		t.Fatalf("lookups created %d sets", n)
	}

	if err := repo.Add(ctx, "u1", "A", time.Minute); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := repo.Add(ctx, "u2", "B", time.Minute); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := repo.Clear(ctx, "u1"); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if removed, _ := repo.RemoveIfPresent(ctx, "u2", "B"); !removed {
		t.Fatal("RemoveIfPresent B = false")
	}
	if n := tracked(); n != 0 {
		t.Fatalf("sets after emptying = %d, want 0", n)
	}

	if err := repo.Add(ctx, "u1", "C", time.Minute); err != nil {
		t.Fatalf("Add after Clear: %v", err)
	}
	if present, _ := repo.Contains(ctx, "u1", "C"); !present {
		t.Fatal("token added after Clear is missing")
	}
}
