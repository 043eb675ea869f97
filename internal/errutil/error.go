// internal/errutil/error.go
package errutil

import (
	"context"
	"fmt"

	"github.com/getsentry/sentry-go"

	"github-sync-service/internal/logging"
)

// Configure initializes Sentry. Without a DSN, errors are only logged.
func Configure(dsn, environment string) error {
	if dsn == "" {
		return nil
	}
	if err := sentry.Init(sentry.ClientOptions{
		Dsn:         dsn,
		Environment: environment,
	}); err != nil {
		return fmt.Errorf("failed to initialize sentry: %w", err)
	}
	return nil
}

// HandleError logs err with the context's logger and reports it to Sentry.
func HandleError(ctx context.Context, msg string, err error, attrs ...any) {
	// Sending error to Sentry
	hub := sentry.CurrentHub().Clone()
	hub.ConfigureScope(func(scope *sentry.Scope) {
		scope.SetExtra("message", msg)
		for i := 0; i+1 < len(attrs); i += 2 {
			scope.SetExtra(fmt.Sprintf("%v", attrs[i]), attrs[i+1])
		}
	})
	evID := hub.CaptureException(err)

	args := append([]any{"error", err, "sentry.EventID", evID}, attrs...)
	logging.From(ctx).Error(msg, args...)
}
