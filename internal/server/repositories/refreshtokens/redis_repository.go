package refreshtokens

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/kiwes/internal/server/models"
	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "refresh_token:"

// RedisRepository keeps refresh token slots as Redis strings whose TTL
// matches the token expiry, so expired slots disappear on their own.
type RedisRepository struct {
	client   redis.Cmdable
	digester *Digester
	now      func() time.Time
}

func NewRedisRepository(client redis.Cmdable, d *Digester) *RedisRepository {
	return &RedisRepository{client: client, digester: d, now: time.Now}
}

func (r *RedisRepository) key(userID string) string {
	return redisKeyPrefix + userID
}

// Save overwrites the user's key with the new digest.
func (r *RedisRepository) Save(ctx context.Context, token *models.RefreshToken) error {
	ttl := token.ExpiresAt.Sub(r.now())
	if ttl <= 0 {
		return fmt.Errorf("refresh token for %s already expired", token.UserID)
	}
	digest := hex.EncodeToString(r.digester.Sum(token.Token))
	if err := r.client.Set(ctx, r.key(token.UserID), digest, ttl).Err(); err != nil {
		return fmt.Errorf("redis error: %w", err)
	}
	return nil
}

func (r *RedisRepository) IsCurrent(ctx context.Context, token string, userID string) (bool, error) {
	val, err := r.client.Get(ctx, r.key(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("redis error: %w", err)
	}
	digest, err := hex.DecodeString(val)
	if err != nil {
		return false, nil
	}
	return r.digester.Matches(token, digest), nil
}

func (r *RedisRepository) Delete(ctx context.Context, userID string) error {
	if err := r.client.Del(ctx, r.key(userID)).Err(); err != nil {
		return fmt.Errorf("redis error: %w", err)
	}
	return nil
}
