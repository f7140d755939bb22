package logger

import (
	"fmt"
	"time"

	"github.com/getsentry/sentry-go"
)

const sentryFlushTimeout = 2 * time.Second

// InitSentry initializes the global Sentry hub. The returned func flushes
// buffered events and should run on shutdown.
func InitSentry(dsn, environment, release string) (func(), error) {
	err := sentry.Init(sentry.ClientOptions{
		Dsn:              dsn,
		Environment:      environment,
		Release:          release,
		AttachStacktrace: true,
	})
	if err != nil {
		return func() {}, fmt.Errorf("init sentry: %w", err)
	}

	return func() { sentry.Flush(sentryFlushTimeout) }, nil
}
