package remote

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// RetryConfig holds the configuration for exponential backoff.
type RetryConfig struct {
	MaxRetries      int
	BaseDelay       time.Duration
	MaxDelay        time.Duration
	BackoffMultiple float64
}

// DefaultRetryConfig returns the retry defaults used by the catalog client.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:      3,
		BaseDelay:       200 * time.Millisecond,
		MaxDelay:        5 * time.Second,
		BackoffMultiple: 2.0,
	}
}

// StatusError is returned by HTTP clients for non-2xx responses so that the
// retry loop can decide whether the call is worth repeating.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("unexpected status %d", e.StatusCode)
	}
	return fmt.Sprintf("unexpected status %d: %s", e.StatusCode, e.Body)
}

// Retryable reports whether err is transient: network failures, 429 and 5xx.
// Context cancellation and an open breaker are never retried.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, ErrCircuitOpen) {
		return false
	}

	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode == http.StatusTooManyRequests || se.StatusCode >= 500
	}
	return true
}

func (c RetryConfig) delay(attempt int) time.Duration {
	d := time.Duration(float64(c.BaseDelay) * math.Pow(c.BackoffMultiple, float64(attempt)))
	if d > c.MaxDelay {
		d = c.MaxDelay
	}
	return d
}

// Retry calls fn until it succeeds, returns a non-retryable error, or
// MaxRetries retries have been spent. The last error is returned.
func Retry(ctx context.Context, cfg RetryConfig, lg zerolog.Logger, name string, fn func(attempt int) error) error {
	var lastErr error
	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			d := cfg.delay(attempt - 1)
			lg.Debug().
				Str("call", name).
				Int("attempt", attempt+1).
				Dur("delay", d).
				Msg("retrying")

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(d):
			}
		}

		lastErr = fn(attempt)
		if lastErr == nil {
			if attempt > 0 {
				lg.Debug().Str("call", name).Int("attempt", attempt+1).Msg("succeeded after retry")
			}
			return nil
		}
		if !Retryable(lastErr) {
			return lastErr
		}
		lg.Warn().Err(lastErr).Str("call", name).Int("attempt", attempt+1).Msg("transient failure")
	}
	return fmt.Errorf("%s: retries exhausted: %w", name, lastErr)
}
