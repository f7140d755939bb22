package health

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/telebot.v3"
)

func TestChecker_Check(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	tests := []struct {
		name        string
		checks      map[string]Checkable
		wantHealthy bool
		wantFailed  []string
	}{
		{
			name:        "no checks",
			checks:      nil,
			wantHealthy: true,
		},
		{
			name: "redis reachable",
			checks: map[string]Checkable{
				"redis": NewRedisChecker(client),
			},
			wantHealthy: true,
		},
		{
			name: "one failing component",
			checks: map[string]Checkable{
				"redis": NewRedisChecker(client),
				"store": CheckFunc(func(context.Context) error { return errors.New("store down") }),
			},
			wantHealthy: false,
			wantFailed:  []string{"store"},
		},
		{
			name: "nil dependencies",
			checks: map[string]Checkable{
				"db":       NewDBChecker(nil),
				"redis":    NewRedisChecker(nil),
				"telegram": NewTelegramChecker(nil),
			},
			wantHealthy: false,
			wantFailed:  []string{"db", "redis", "telegram"},
		},
		{
			name: "bot without identity",
			checks: map[string]Checkable{
				"telegram": NewTelegramChecker(&telebot.Bot{}),
			},
			wantHealthy: false,
			wantFailed:  []string{"telegram"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checker := NewChecker(nil, time.Second)
			for name, check := range tt.checks {
				checker.AddCheck(name, check)
			}

			report := checker.Check(context.Background())
			assert.Equal(t, tt.wantHealthy, report.Healthy)
			assert.Equal(t, tt.wantFailed, report.Failed())
			assert.Len(t, report.Components, len(tt.checks))
		})
	}
}

func TestChecker_Timeout(t *testing.T) {
	checker := NewChecker(nil, 20*time.Millisecond)
	checker.AddCheck("slow", CheckFunc(func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}))

	report := checker.Check(context.Background())
	require.False(t, report.Healthy)
	assert.Equal(t, StatusFailing, report.Components["slow"].Status)
	assert.Equal(t, context.DeadlineExceeded.Error(), report.Components["slow"].Error)
}

func TestRedisChecker_ServerGone(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })

	checker := NewRedisChecker(client)
	require.NoError(t, checker.HealthCheck(context.Background()))

	mr.Close()
	assert.Error(t, checker.HealthCheck(context.Background()))
}

func TestChecker_AddCheckIgnoresInvalid(t *testing.T) {
	checker := NewChecker(nil, 0)
	checker.AddCheck("", CheckFunc(func(context.Context) error { return nil }))
	checker.AddCheck("nil", nil)

	report := checker.Check(context.Background())
	assert.True(t, report.Healthy)
	assert.Empty(t, report.Components)
}

func TestChecker_OptionalComponentDegrades(t *testing.T) {
	checker := NewChecker(nil, time.Second)
	checker.AddCheck("store", CheckFunc(func(context.Context) error { return nil }))
	checker.AddOptional("telegram", CheckFunc(func(context.Context) error { return ErrBotNotStarted }))

	report := checker.Check(context.Background())
	assert.True(t, report.Healthy)
	assert.Empty(t, report.Failed())
	assert.Equal(t, []string{"telegram"}, report.Degraded())
	assert.Equal(t, ErrBotNotStarted.Error(), report.Components["telegram"].Error)
	assert.Equal(t, StatusOK, report.Components["store"].Status)
	assert.Empty(t, report.Components["store"].Error)
}
