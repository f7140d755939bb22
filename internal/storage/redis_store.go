package storage

import (
	"context"
	"errors"
	"log/slog"

	"github.com/Proton-105/sawti-academy/pkg/redis"
)

const defaultNamespace = "academy"

// RedisStore keeps each slot under "<namespace>:<slot>" without expiry.
type RedisStore struct {
	kv        redis.KV
	namespace string
	log       *slog.Logger
}

func NewRedisStore(kv redis.KV, namespace string, log *slog.Logger) *RedisStore {
	if namespace == "" {
		namespace = defaultNamespace
	}
	if log == nil {
		log = slog.Default()
	}

	return &RedisStore{
		kv:        kv,
		namespace: namespace,
		log:       log,
	}
}

func (s *RedisStore) Load(ctx context.Context) (*Snapshot, error) {
	return loadSnapshot(ctx, s)
}

func (s *RedisStore) Save(ctx context.Context, slot Slot, value any) error {
	return saveSlot(ctx, s, slot, value)
}

func (s *RedisStore) Delete(ctx context.Context, slot Slot) error {
	return deleteSlot(ctx, s, slot)
}

func (s *RedisStore) key(slot Slot) string {
	return s.namespace + ":" + string(slot)
}

func (s *RedisStore) read(ctx context.Context, slot Slot) ([]byte, error) {
	data, err := s.kv.Get(ctx, s.key(slot))
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}

		s.log.Error("failed to read slot from redis", slog.String("slot", string(slot)), slog.Any("error", err))
		return nil, err
	}

	return []byte(data), nil
}

func (s *RedisStore) write(ctx context.Context, slot Slot, data []byte) error {
	if err := s.kv.Set(ctx, s.key(slot), data, 0); err != nil {
		s.log.Error("failed to write slot to redis", slog.String("slot", string(slot)), slog.Any("error", err))
		return err
	}
	return nil
}

func (s *RedisStore) remove(ctx context.Context, slot Slot) error {
	if err := s.kv.Delete(ctx, s.key(slot)); err != nil {
		s.log.Error("failed to delete slot from redis", slog.String("slot", string(slot)), slog.Any("error", err))
		return err
	}
	return nil
}
