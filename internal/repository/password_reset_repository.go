package repository

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PasswordResetToken is a stored reset request. Only the digest of the mailed
// token is kept.
type PasswordResetToken struct {
	ID        string
	UserID    string
	TokenHash string
	ExpiresAt time.Time
	UsedAt    *time.Time
	CreatedAt time.Time
}

// Usable reports whether the token is unused and unexpired at now.
func (t *PasswordResetToken) Usable(now time.Time) bool {
	return t.UsedAt == nil && now.Before(t.ExpiresAt)
}

// PasswordResetRepository manages password reset token persistence.
type PasswordResetRepository interface {
	Create(ctx context.Context, token *PasswordResetToken) error
	GetByHash(ctx context.Context, tokenHash string) (*PasswordResetToken, error)
	// MarkUsed consumes the token. It returns false when the token was already
	// used, so two concurrent confirmations cannot both succeed.
	MarkUsed(ctx context.Context, id string) (bool, error)
}

type passwordResetRepository struct {
	pool *pgxpool.Pool
}

// NewPasswordResetRepository returns a Postgres-backed implementation.
func NewPasswordResetRepository(pool *pgxpool.Pool) PasswordResetRepository {
	return &passwordResetRepository{pool: pool}
}

func (r *passwordResetRepository) Create(ctx context.Context, token *PasswordResetToken) error {
	const query = `
        INSERT INTO password_reset_tokens (user_id, token_hash, expires_at)
        VALUES ($1, $2, $3)
        RETURNING id, created_at`
	err := r.pool.QueryRow(ctx, query,
		token.UserID,
		token.TokenHash,
		token.ExpiresAt,
	).Scan(&token.ID, &token.CreatedAt)
	return mapPgError(err)
}

func (r *passwordResetRepository) GetByHash(ctx context.Context, tokenHash string) (*PasswordResetToken, error) {
	const query = `
        SELECT id, user_id, token_hash, expires_at, used_at, created_at
        FROM password_reset_tokens WHERE token_hash=$1`
	var token PasswordResetToken
	if err := r.pool.QueryRow(ctx, query, tokenHash).Scan(
		&token.ID,
		&token.UserID,
		&token.TokenHash,
		&token.ExpiresAt,
		&token.UsedAt,
		&token.CreatedAt,
	); err != nil {
		return nil, mapPgError(err)
	}
	return &token, nil
}

func (r *passwordResetRepository) MarkUsed(ctx context.Context, id string) (bool, error) {
	const query = `
        UPDATE password_reset_tokens SET used_at=NOW()
        WHERE id=$1 AND used_at IS NULL`
	tag, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return false, mapPgError(err)
	}
	return tag.RowsAffected() == 1, nil
}

// MemoryPasswordResetRepository is the in-process PasswordResetRepository.
type MemoryPasswordResetRepository struct {
	mu     sync.Mutex
	tokens map[string]PasswordResetToken
}

// NewMemoryPasswordResetRepository returns an empty store.
func NewMemoryPasswordResetRepository() *MemoryPasswordResetRepository {
	return &MemoryPasswordResetRepository{tokens: make(map[string]PasswordResetToken)}
}

func (r *MemoryPasswordResetRepository) Create(_ context.Context, token *PasswordResetToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.tokens {
		if existing.TokenHash == token.TokenHash {
			return ErrDuplicate
		}
	}
	token.ID = uuid.NewString()
	token.CreatedAt = time.Now().UTC()
	r.tokens[token.ID] = *token
	return nil
}

func (r *MemoryPasswordResetRepository) GetByHash(_ context.Context, tokenHash string) (*PasswordResetToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.tokens {
		if existing.TokenHash == tokenHash {
			token := existing
			return &token, nil
		}
	}
	return nil, ErrNotFound
}

func (r *MemoryPasswordResetRepository) MarkUsed(_ context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	token, ok := r.tokens[id]
	if !ok {
		return false, ErrNotFound
	}
	if token.UsedAt != nil {
		return false, nil
	}
	now := time.Now().UTC()
	token.UsedAt = &now
	r.tokens[id] = token
	return true, nil
}
