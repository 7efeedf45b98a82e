package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sessiongate/auth-gateway/internal/domain"
)

// MemoryUserRepository is a process-local UserRepository used when no
// database is configured and in tests.
type MemoryUserRepository struct {
	mu    sync.RWMutex
	users map[string]domain.User
}

// NewMemoryUserRepository returns an empty in-memory store.
func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{users: make(map[string]domain.User)}
}

func (r *MemoryUserRepository) Create(_ context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.conflictLocked(user) {
		return ErrDuplicate
	}
	now := time.Now().UTC()
	user.ID = uuid.NewString()
	user.CreatedAt = now
	user.UpdatedAt = now
	r.users[user.ID] = *user
	return nil
}

func (r *MemoryUserRepository) Update(_ context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.users[user.ID]; !ok {
		return ErrNotFound
	}
	if r.conflictLocked(user) {
		return ErrDuplicate
	}
	user.UpdatedAt = time.Now().UTC()
	r.users[user.ID] = *user
	return nil
}

func (r *MemoryUserRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.users[id]; !ok {
		return ErrNotFound
	}
	delete(r.users, id)
	return nil
}

func (r *MemoryUserRepository) GetByID(_ context.Context, id string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &user, nil
}

func (r *MemoryUserRepository) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	return r.find(func(u *domain.User) bool { return u.Email == email })
}

func (r *MemoryUserRepository) GetByLogin(_ context.Context, username, email string) (*domain.User, error) {
	return r.find(func(u *domain.User) bool {
		return (username != "" && u.Username == username) || (email != "" && u.Email == email)
	})
}

func (r *MemoryUserRepository) GetByVerificationToken(_ context.Context, token string) (*domain.User, error) {
	return r.find(func(u *domain.User) bool {
		return u.EmailVerificationToken != nil && *u.EmailVerificationToken == token
	})
}

func (r *MemoryUserRepository) List(_ context.Context, limit, offset int) ([]*domain.User, int, error) {
	r.mu.RLock()
	all := make([]*domain.User, 0, len(r.users))
	for _, user := range r.users {
		u := user
		all = append(all, &u)
	}
	r.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool {
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})

	total := len(all)
	if offset >= total {
		return []*domain.User{}, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return all[offset:end], total, nil
}

func (r *MemoryUserRepository) find(match func(*domain.User) bool) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var found *domain.User
	for _, user := range r.users {
		u := user
		if !match(&u) {
			continue
		}
		if found == nil || u.CreatedAt.Before(found.CreatedAt) {
			found = &u
		}
	}
	if found == nil {
		return nil, ErrNotFound
	}
	return found, nil
}

func (r *MemoryUserRepository) conflictLocked(user *domain.User) bool {
	for id, existing := range r.users {
		if id == user.ID {
			continue
		}
		if existing.Username == user.Username || existing.Email == user.Email {
			return true
		}
		if user.EmailVerificationToken != nil && existing.EmailVerificationToken != nil &&
			*existing.EmailVerificationToken == *user.EmailVerificationToken {
			return true
		}
	}
	return false
}

// MemorySessionRepository serializes writers per identity with one mutex per
// session set. The registry lock is held only to look up, create or drop a
// set, so unrelated identities never wait on each other's rotations. Empty
// sets are dropped from the registry.
type MemorySessionRepository struct {
	mu   sync.Mutex
	sets map[string]*sessionSet
}

type sessionSet struct {
	mu      sync.Mutex
	tokens  map[string]struct{}
	dropped bool
}

// NewMemorySessionRepository returns an empty in-memory registry.
func NewMemorySessionRepository() *MemorySessionRepository {
	return &MemorySessionRepository{sets: make(map[string]*sessionSet)}
}

// acquire returns the locked set of userID, creating it only when create is
// set. It returns nil when the identity has no set.
func (r *MemorySessionRepository) acquire(userID string, create bool) *sessionSet {
	for {
		r.mu.Lock()
		s, ok := r.sets[userID]
		if !ok {
			if !create {
				r.mu.Unlock()
				return nil
			}
			s = &sessionSet{tokens: make(map[string]struct{})}
			r.sets[userID] = s
		}
		r.mu.Unlock()

		s.mu.Lock()
		if !s.dropped {
			return s
		}
		s.mu.Unlock()
	}
}

// release unlocks s, dropping it from the registry first when it is empty.
func (r *MemorySessionRepository) release(userID string, s *sessionSet) {
	if len(s.tokens) == 0 && !s.dropped {
		s.dropped = true
		r.mu.Lock()
		if r.sets[userID] == s {
			delete(r.sets, userID)
		}
		r.mu.Unlock()
	}
	s.mu.Unlock()
}

func (r *MemorySessionRepository) Add(_ context.Context, userID, token string, _ time.Duration) error {
	s := r.acquire(userID, true)
	defer r.release(userID, s)
	s.tokens[token] = struct{}{}
	return nil
}

func (r *MemorySessionRepository) Swap(_ context.Context, userID, oldToken, newToken string, _ time.Duration) (bool, error) {
	s := r.acquire(userID, false)
	if s == nil {
		return false, nil
	}
	defer r.release(userID, s)

	if _, ok := s.tokens[oldToken]; !ok {
		return false, nil
	}
	delete(s.tokens, oldToken)
	s.tokens[newToken] = struct{}{}
	return true, nil
}

func (r *MemorySessionRepository) RemoveIfPresent(_ context.Context, userID, token string) (bool, error) {
	s := r.acquire(userID, false)
	if s == nil {
		return false, nil
	}
	defer r.release(userID, s)

	if _, ok := s.tokens[token]; !ok {
		return false, nil
	}
	delete(s.tokens, token)
	return true, nil
}

func (r *MemorySessionRepository) Contains(_ context.Context, userID, token string) (bool, error) {
	s := r.acquire(userID, false)
	if s == nil {
		return false, nil
	}
	defer r.release(userID, s)
	_, ok := s.tokens[token]
	return ok, nil
}

func (r *MemorySessionRepository) List(_ context.Context, userID string) ([]string, error) {
	s := r.acquire(userID, false)
	if s == nil {
		return []string{}, nil
	}
	defer r.release(userID, s)

	tokens := make([]string, 0, len(s.tokens))
	for token := range s.tokens {
		tokens = append(tokens, token)
	}
	sort.Strings(tokens)
	return tokens, nil
}

func (r *MemorySessionRepository) Clear(_ context.Context, userID string) error {
	s := r.acquire(userID, false)
	if s == nil {
		return nil
	}
	s.tokens = make(map[string]struct{})
	r.release(userID, s)
	return nil
}
