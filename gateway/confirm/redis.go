package confirm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var _ TokenStore = (*RedisTokenStore)(nil)

// RedisTokenStore persists confirmation tokens in Redis so multiple gateway
// replicas can share one token space. GETDEL makes consumption atomic, and
// the key TTL bounds storage even if a token is never validated.
type RedisTokenStore struct {
	client *redis.Client
	prefix string
}

func NewRedisTokenStore(client *redis.Client, prefix string) *RedisTokenStore {
	if prefix == "" {
		prefix = "toolgate:confirm:"
	}
	return &RedisTokenStore{
		client: client,
		prefix: prefix,
	}
}

type redisRecord struct {
	SignatureHash string    `json:"h"`
	ExpiresAt     time.Time `json:"exp"`
}

func (s *RedisTokenStore) Put(ctx context.Context, token string, rec Record) error {
	payload, err := json.Marshal(redisRecord{
		SignatureHash: rec.SignatureHash,
		ExpiresAt:     rec.ExpiresAt,
	})
	if err != nil {
		return fmt.Errorf("marshal token record: %w", err)
	}
	ttl := time.Until(rec.ExpiresAt)
	if ttl <= 0 {
		return nil // already expired, nothing to store
	}
	if err := s.client.Set(ctx, s.prefix+token, payload, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (s *RedisTokenStore) Consume(ctx context.Context, token string) (Record, error) {
	payload, err := s.client.GetDel(ctx, s.prefix+token).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Record{}, ErrTokenNotFound
		}
		return Record{}, fmt.Errorf("redis getdel: %w", err)
	}
	var rec redisRecord
	if err := json.Unmarshal([]byte(payload), &rec); err != nil {
		return Record{}, fmt.Errorf("unmarshal token record: %w", err)
	}
	return Record{
		SignatureHash: rec.SignatureHash,
		ExpiresAt:     rec.ExpiresAt,
	}, nil
}
