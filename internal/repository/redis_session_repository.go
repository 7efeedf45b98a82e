package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const swapSessionScript = `
if redis.call("SREM", KEYS[1], ARGV[1]) == 0 then
  return 0
end
redis.call("SADD", KEYS[1], ARGV[2])
redis.call("PEXPIRE", KEYS[1], ARGV[3])
return 1
`

var swapSessionLua = redis.NewScript(swapSessionScript)

type redisSessionRepository struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisSessionRepository keeps one Redis set per identity. Each write
// resets the key TTL, so a set outlives its newest token by at most ttl.
func NewRedisSessionRepository(client redis.UniversalClient, prefix string) SessionRepository {
	return &redisSessionRepository{client: client, prefix: prefix}
}

func (r *redisSessionRepository) key(userID string) string {
	return r.prefix + ":" + userID
}

func (r *redisSessionRepository) Add(ctx context.Context, userID, token string, ttl time.Duration) error {
	key := r.key(userID)
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SAdd(ctx, key, token)
		pipe.PExpire(ctx, key, ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

func (r *redisSessionRepository) Swap(ctx context.Context, userID, oldToken, newToken string, ttl time.Duration) (bool, error) {
	swapped, err := swapSessionLua.Run(ctx, r.client, []string{r.key(userID)},
		oldToken, newToken, ttl.Milliseconds()).Int64()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return swapped == 1, nil
}

func (r *redisSessionRepository) RemoveIfPresent(ctx context.Context, userID, token string) (bool, error) {
	removed, err := r.client.SRem(ctx, r.key(userID), token).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return removed == 1, nil
}

func (r *redisSessionRepository) Contains(ctx context.Context, userID, token string) (bool, error) {
	present, err := r.client.SIsMember(ctx, r.key(userID), token).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return present, nil
}

func (r *redisSessionRepository) List(ctx context.Context, userID string) ([]string, error) {
	tokens, err := r.client.SMembers(ctx, r.key(userID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return tokens, nil
}

func (r *redisSessionRepository) Clear(ctx context.Context, userID string) error {
	if err := r.client.Del(ctx, r.key(userID)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}
