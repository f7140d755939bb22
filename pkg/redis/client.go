// Package redis wraps go-redis for the academy: the slot store, locks,
// rate limits, idempotency records and the asynq queue share one config.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	redis "github.com/redis/go-redis/v9"
)

// Nil is returned by Get when the key does not exist.
const Nil = redis.Nil

const (
	defaultConnectAttempts = 3
	connectBackoff         = 500 * time.Millisecond
)

type Config struct {
	Addr            string        `mapstructure:"addr"`
	Password        string        `mapstructure:"password"`
	DB              int           `mapstructure:"db"`
	PoolSize        int           `mapstructure:"pool_size"`
	MinIdleConns    int           `mapstructure:"min_idle_conns"`
	PoolTimeout     time.Duration `mapstructure:"pool_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	MaxRetries      int           `mapstructure:"max_retries"`
	MinRetryBackoff time.Duration `mapstructure:"min_retry_backoff"`
	MaxRetryBackoff time.Duration `mapstructure:"max_retry_backoff"`
	// ConnectAttempts bounds the pings made by New before giving up.
	ConnectAttempts int `mapstructure:"connect_attempts"`
}

func (cfg Config) Options() *redis.Options {
	return &redis.Options{
		Addr:            cfg.Addr,
		Password:        cfg.Password,
		DB:              cfg.DB,
		PoolSize:        cfg.PoolSize,
		MinIdleConns:    cfg.MinIdleConns,
		PoolTimeout:     cfg.PoolTimeout,
		ConnMaxIdleTime: cfg.IdleTimeout,
		MaxRetries:      cfg.MaxRetries,
		MinRetryBackoff: cfg.MinRetryBackoff,
		MaxRetryBackoff: cfg.MaxRetryBackoff,
	}
}

// AsynqOpt points the job queue at the same server and database.
func (cfg Config) AsynqOpt() asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	}
}

// KV is the string key/value subset used by the slot store.
type KV interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// Client embeds the go-redis client and implements KV on top of it.
type Client struct {
	*redis.Client
}

// New connects and pings, retrying with a growing pause so the process can
// start alongside its Redis container.
func New(ctx context.Context, cfg Config) (*Client, error) {
	attempts := cfg.ConnectAttempts
	if attempts <= 0 {
		attempts = defaultConnectAttempts
	}

	rdb := redis.NewClient(cfg.Options())
	var err error
	for i := 1; ; i++ {
		if err = rdb.Ping(ctx).Err(); err == nil {
			return &Client{rdb}, nil
		}
		if i >= attempts {
			break
		}

		select {
		case <-ctx.Done():
			_ = rdb.Close()
			return nil, fmt.Errorf("connect to redis at %s: %w", cfg.Addr, ctx.Err())
		case <-time.After(time.Duration(i) * connectBackoff):
		}
	}

	_ = rdb.Close()
	return nil, fmt.Errorf("connect to redis at %s: %w", cfg.Addr, err)
}

func (c *Client) Get(ctx context.Context, key string) (string, error) {
	return c.Client.Get(ctx, key).Result()
}

func (c *Client) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	return c.Client.Set(ctx, key, value, ttl).Err()
}

func (c *Client) Delete(ctx context.Context, key string) error {
	return c.Client.Del(ctx, key).Err()
}
