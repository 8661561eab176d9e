package embedder

import (
	"context"
	"errors"
	"net/http"
	"time"
)

// RetryConfig configures exponential backoff retry behavior
type RetryConfig struct {
	MaxRetries int           // Total attempts
	BaseDelay  time.Duration // Delay before the second attempt
	MaxDelay   time.Duration
	Multiplier float64
}

// DefaultRetryConfig returns the API retry defaults
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries: MaxRetries,
		BaseDelay:  time.Duration(InitialBackoffMs) * time.Millisecond,
		MaxDelay:   time.Duration(MaxBackoffMs) * time.Millisecond,
		Multiplier: BackoffMultiplier,
	}
}

// retryable reports whether another attempt could succeed. Client errors
// other than timeouts and rate limits are final.
func retryable(err error) bool {
	var se *statusError
	if errors.As(err, &se) {
		if se.code == http.StatusTooManyRequests || se.code == http.StatusRequestTimeout {
			return true
		}
		return se.code >= 500
	}
	return true
}

// retryWithBackoff calls fn until it succeeds, returns a final error, or the
// attempts run out. Context cancellation stops immediately.
func retryWithBackoff[T any](ctx context.Context, config RetryConfig, fn func() (T, error)) (T, error) {
	var (
		zero    T
		lastErr error
	)
	attempts := max(1, config.MaxRetries)
	backoff := config.BaseDelay

	for attempt := 0; attempt < attempts; attempt++ {
		result, err := fn()
		if err == nil {
			return result, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return zero, ctx.Err()
		}
		if !retryable(err) || attempt == attempts-1 {
			break
		}

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(backoff):
			backoff = time.Duration(float64(backoff) * config.Multiplier)
			if config.MaxDelay > 0 && backoff > config.MaxDelay {
				backoff = config.MaxDelay
			}
		}
	}

	return zero, lastErr
}
