package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SessionRepository tracks the live refresh tokens of each identity.
//
// Swap and RemoveIfPresent are atomic per identity: of several concurrent
// calls presenting the same token, exactly one observes it as present.
// The ttl arguments bound how long a backend may retain the set; stores that
// keep the set on the identity row ignore them.
type SessionRepository interface {
	Add(ctx context.Context, userID, token string, ttl time.Duration) error
	// Swap replaces oldToken with newToken if and only if oldToken is present.
	Swap(ctx context.Context, userID, oldToken, newToken string, ttl time.Duration) (bool, error)
	RemoveIfPresent(ctx context.Context, userID, token string) (bool, error)
	Contains(ctx context.Context, userID, token string) (bool, error)
	List(ctx context.Context, userID string) ([]string, error)
	Clear(ctx context.Context, userID string) error
}

type sessionRepository struct {
	pool *pgxpool.Pool
}

// NewSessionRepository returns a registry stored in users.session_tokens.
func NewSessionRepository(pool *pgxpool.Pool) SessionRepository {
	return &sessionRepository{pool: pool}
}

func (r *sessionRepository) Add(ctx context.Context, userID, token string, _ time.Duration) error {
	const query = `
        UPDATE users SET session_tokens = CASE
                WHEN $2 = ANY(session_tokens) THEN session_tokens
                ELSE array_append(session_tokens, $2)
            END,
            updated_at = NOW()
        WHERE id=$1`

	cmd, err := r.pool.Exec(ctx, query, userID, token)
	if err != nil {
		return mapPgError(err)
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Swap relies on the row lock taken by UPDATE: a concurrent swap of the same
// token blocks, then re-evaluates the membership predicate against the
// committed row and matches nothing.
func (r *sessionRepository) Swap(ctx context.Context, userID, oldToken, newToken string, _ time.Duration) (bool, error) {
	const query = `
        UPDATE users SET session_tokens = array_append(array_remove(session_tokens, $2), $3),
            updated_at = NOW()
        WHERE id=$1 AND $2 = ANY(session_tokens)`

	cmd, err := r.pool.Exec(ctx, query, userID, oldToken, newToken)
	if err != nil {
		return false, mapPgError(err)
	}
	return cmd.RowsAffected() == 1, nil
}

func (r *sessionRepository) RemoveIfPresent(ctx context.Context, userID, token string) (bool, error) {
	const query = `
        UPDATE users SET session_tokens = array_remove(session_tokens, $2), updated_at = NOW()
        WHERE id=$1 AND $2 = ANY(session_tokens)`

	cmd, err := r.pool.Exec(ctx, query, userID, token)
	if err != nil {
		return false, mapPgError(err)
	}
	return cmd.RowsAffected() == 1, nil
}

func (r *sessionRepository) Contains(ctx context.Context, userID, token string) (bool, error) {
	var present bool
	err := r.pool.QueryRow(ctx, `SELECT $2 = ANY(session_tokens) FROM users WHERE id=$1`, userID, token).Scan(&present)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, mapPgError(err)
	}
	return present, nil
}

func (r *sessionRepository) List(ctx context.Context, userID string) ([]string, error) {
	var tokens []string
	err := r.pool.QueryRow(ctx, `SELECT session_tokens FROM users WHERE id=$1`, userID).Scan(&tokens)
	if errors.Is(err, pgx.ErrNoRows) {
		return []string{}, nil
	}
	if err != nil {
		return nil, mapPgError(err)
	}
	return tokens, nil
}

func (r *sessionRepository) Clear(ctx context.Context, userID string) error {
	_, err := r.pool.Exec(ctx, `UPDATE users SET session_tokens='{}', updated_at=NOW() WHERE id=$1`, userID)
	return mapPgError(err)
}
