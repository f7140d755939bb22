package idempotency

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	recordPrefix = "academy:idempotency:rec:"
	lockPrefix   = "academy:idempotency:lock:"
)

// releaseScript deletes a lock only while it still holds the caller's token,
// so a lock that expired and was taken by another replica survives.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisStore keeps each record as a JSON string with its TTL. Locks carry a
// token unique to the store so replicas never release each other's locks.
type RedisStore struct {
	client *redis.Client
	token  string
	log    *slog.Logger
}

var _ Store = (*RedisStore)(nil)

func NewRedisStore(client *redis.Client, log *slog.Logger) *RedisStore {
	if log == nil {
		log = slog.Default()
	}

	return &RedisStore{
		client: client,
		token:  uuid.NewString(),
		log:    log,
	}
}

func (s *RedisStore) Lock(ctx context.Context, key string, lockTTL time.Duration) (bool, error) {
	ok, err := s.client.SetNX(ctx, lockPrefix+key, s.token, lockTTL).Result()
	if err != nil {
		return false, fmt.Errorf("acquire idempotency lock: %w", err)
	}
	return ok, nil
}

func (s *RedisStore) ReleaseLock(ctx context.Context, key string) error {
	if err := releaseScript.Run(ctx, s.client, []string{lockPrefix + key}, s.token).Err(); err != nil {
		return fmt.Errorf("release idempotency lock: %w", err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, key string) (*Record, error) {
	data, err := s.client.Get(ctx, recordPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get idempotency record: %w", err)
	}

	var record Record
	if err := json.Unmarshal(data, &record); err != nil {
		// A corrupt record must not block the key forever.
		s.log.Warn("dropping unreadable idempotency record", slog.String("key", key), slog.Any("error", err))
		return nil, s.Delete(ctx, key)
	}
	return &record, nil
}

func (s *RedisStore) Set(ctx context.Context, key string, record *Record, ttl time.Duration) error {
	if record == nil {
		return nil
	}

	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode idempotency record: %w", err)
	}
	if err := s.client.Set(ctx, recordPrefix+key, data, ttl).Err(); err != nil {
		return fmt.Errorf("store idempotency record: %w", err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, recordPrefix+key).Err(); err != nil {
		return fmt.Errorf("delete idempotency record: %w", err)
	}
	return nil
}
