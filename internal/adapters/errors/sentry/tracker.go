package sentry

import (
	"context"
	"time"

	"github.com/getsentry/sentry-go"

	"tradelens/pkg/errors"
)

const flushTimeout = 2 * time.Second

var _ errors.Tracker = (*Tracker)(nil)

// Tracker reports errors and messages to Sentry
type Tracker struct {
	hub *sentry.Hub
}

// New initializes the Sentry SDK and returns a tracker bound to its hub
func New(dsn, environment, release string) (*Tracker, error) {
	err := sentry.Init(sentry.ClientOptions{
		Dsn:              dsn,
		Environment:      environment,
		Release:          release,
		AttachStacktrace: true,
	})
	if err != nil {
		return nil, errors.Wrap(err, "init sentry")
	}

	return &Tracker{hub: sentry.CurrentHub()}, nil
}

// CaptureError sends err with tags; the user id from ctx is attached when present
func (t *Tracker) CaptureError(ctx context.Context, err error, tags map[string]string) error {
	if err == nil {
		return nil
	}
	hub := t.scoped(ctx, tags)
	hub.CaptureException(err)
	return nil
}

// CaptureMessage sends a plain message at the given level
func (t *Tracker) CaptureMessage(ctx context.Context, message string, level errors.Level, tags map[string]string) error {
	hub := t.scoped(ctx, tags)
	hub.ConfigureScope(func(scope *sentry.Scope) {
		scope.SetLevel(convertLevel(level))
	})
	hub.CaptureMessage(message)
	return nil
}

func (t *Tracker) SetUser(ctx context.Context, userID string, email string, username string) {
	t.hub.ConfigureScope(func(scope *sentry.Scope) {
		scope.SetUser(sentry.User{ID: userID, Email: email, Username: username})
	})
}

func (t *Tracker) AddBreadcrumb(ctx context.Context, message string, category string, level errors.Level, data map[string]interface{}) {
	t.hub.AddBreadcrumb(&sentry.Breadcrumb{
		Message:  message,
		Category: category,
		Level:    convertLevel(level),
		Data:     data,
	}, &sentry.BreadcrumbHint{})
}

// Flush blocks until queued events are sent or the flush timeout passes.
// The SDK reports a timeout as false; that is not treated as an error.
func (t *Tracker) Flush(ctx context.Context) error {
	timeout := flushTimeout
	if deadline, ok := ctx.Deadline(); ok {
		if left := time.Until(deadline); left < timeout {
			timeout = left
		}
	}
	sentry.Flush(timeout)
	return nil
}

func (t *Tracker) scoped(ctx context.Context, tags map[string]string) *sentry.Hub {
	hub := t.hub.Clone()
	hub.ConfigureScope(func(scope *sentry.Scope) {
		scope.SetTag("service", "tradelens")
		for k, v := range tags {
			scope.SetTag(k, v)
		}
		if userID := errors.UserIDFromContext(ctx); userID != "" {
			scope.SetUser(sentry.User{ID: userID})
		}
	})
	return hub
}

func convertLevel(level errors.Level) sentry.Level {
	switch level {
	case errors.LevelDebug:
		return sentry.LevelDebug
	case errors.LevelWarning:
		return sentry.LevelWarning
	case errors.LevelError:
		return sentry.LevelError
	case errors.LevelFatal:
		return sentry.LevelFatal
	default:
		return sentry.LevelInfo
	}
}
