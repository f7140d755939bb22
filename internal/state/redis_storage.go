package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	stateKeyPrefix  = "academy:console:state:"
	defaultStateTTL = 30 * time.Minute
	scanBatch       = 100
)

// RedisStorage keeps one JSON document per chat. Keys expire after ttl, so
// an abandoned rejection prompt resets itself.
type RedisStorage struct {
	client *redis.Client
	ttl    time.Duration
	log    *slog.Logger
}

var _ Storage = (*RedisStorage)(nil)

func NewRedisStorage(client *redis.Client, ttl time.Duration, log *slog.Logger) *RedisStorage {
	if log == nil {
		log = slog.Default()
	}
	if ttl <= 0 {
		ttl = defaultStateTTL
	}
	return &RedisStorage{client: client, ttl: ttl, log: log}
}

func (s *RedisStorage) GetState(ctx context.Context, chatID int64) (*UserState, error) {
	raw, err := s.client.Get(ctx, stateKey(chatID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrStateNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read state of chat %d: %w", chatID, err)
	}

	st, err := decodeState(raw)
	if err != nil {
		return nil, fmt.Errorf("chat %d: %w", chatID, err)
	}
	return st, nil
}

func (s *RedisStorage) SetState(ctx context.Context, chatID int64, st *UserState) error {
	st.UpdatedAt = time.Now().UTC()
	raw, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("encode conversation state: %w", err)
	}

	if err := s.client.Set(ctx, stateKey(chatID), raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("write state of chat %d: %w", chatID, err)
	}
	return nil
}

func (s *RedisStorage) ClearState(ctx context.Context, chatID int64) error {
	if err := s.client.Del(ctx, stateKey(chatID)).Err(); err != nil {
		return fmt.Errorf("clear state of chat %d: %w", chatID, err)
	}
	return nil
}

// GetAllStates lists every stored conversation, reading keys in batches.
// Entries that expire mid-scan or fail to decode are skipped.
func (s *RedisStorage) GetAllStates(ctx context.Context) ([]*UserState, error) {
	var (
		out   []*UserState
		batch []string
	)

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		values, err := s.client.MGet(ctx, batch...).Result()
		if err != nil {
			return fmt.Errorf("read conversation states: %w", err)
		}
		for i, v := range values {
			raw, ok := v.(string)
			if !ok {
				continue
			}
			st, err := decodeState([]byte(raw))
			if err != nil {
				s.log.Warn("skipping undecodable conversation state", slog.String("key", batch[i]), slog.Any("error", err))
				continue
			}
			out = append(out, st)
		}
		batch = batch[:0]
		return nil
	}

	iter := s.client.Scan(ctx, 0, stateKeyPrefix+"*", scanBatch).Iterator()
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == scanBatch {
			if err := flush(); err != nil {
				return nil, err
			}
		}
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("scan conversation states: %w", err)
	}
	if err := flush(); err != nil {
		return nil, err
	}
	return out, nil
}

func decodeState(raw []byte) (*UserState, error) {
	var st UserState
	if err := json.Unmarshal(raw, &st); err != nil {
		return nil, fmt.Errorf("decode conversation state: %w", err)
	}
	return &st, nil
}

func stateKey(chatID int64) string {
	return stateKeyPrefix + strconv.FormatInt(chatID, 10)
}
