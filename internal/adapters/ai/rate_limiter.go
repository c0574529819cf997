package ai

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"

	"tradelens/pkg/errors"
)

// RateLimiter gates outgoing model requests.
type RateLimiter interface {
	// Wait blocks until request can proceed or context is cancelled.
	Wait(ctx context.Context) error

	// Limit returns the configured rate in requests per minute, or -1 when unlimited.
	Limit() float64
}

// Limiter is a token bucket limiter shared by all calls to one provider.
type Limiter struct {
	limiter  *rate.Limiter
	provider ProviderName
	perMin   float64
}

// NewLimiter creates a limiter allowing reqPerMinute sustained requests with
// the given burst. A non-positive burst defaults to 10% of the rate.
func NewLimiter(provider ProviderName, reqPerMinute int, burst int) *Limiter {
	if burst <= 0 {
		burst = reqPerMinute / 10
		if burst < 1 {
			burst = 1
		}
	}

	return &Limiter{
		limiter:  rate.NewLimiter(rate.Limit(float64(reqPerMinute)/60.0), burst),
		provider: provider,
		perMin:   float64(reqPerMinute),
	}
}

// Wait blocks for a token. A cancelled context, or one whose deadline would
// expire before a token frees up, yields a *RateLimitError.
func (l *Limiter) Wait(ctx context.Context) error {
	if err := l.limiter.Wait(ctx); err != nil {
		return &RateLimitError{Provider: l.provider, Limit: l.perMin, Err: err}
	}
	return nil
}

func (l *Limiter) Limit() float64 {
	return l.perMin
}

// NoOpLimiter never blocks. Used in tests and when limiting is disabled.
type NoOpLimiter struct{}

func NewNoOpLimiter() *NoOpLimiter {
	return &NoOpLimiter{}
}

func (l *NoOpLimiter) Wait(context.Context) error { return nil }

func (l *NoOpLimiter) Limit() float64 { return -1 }

// RateLimitError wraps rate limit related errors with provider context.
// It matches errors.ErrRateLimited under errors.Is.
type RateLimitError struct {
	Provider ProviderName
	Limit    float64
	Err      error
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit error for provider %s (limit: %.0f req/min): %v", e.Provider, e.Limit, e.Err)
}

func (e *RateLimitError) Unwrap() error {
	return e.Err
}

func (e *RateLimitError) Is(target error) bool {
	return target == errors.ErrRateLimited
}
