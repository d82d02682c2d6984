// internal/rag/retry.go
package rag

import (
	"context"
	"math/rand"
	"time"

	"github.com/ragline/ragline/internal/logging"
)

const (
	retryMaxDelay   = 30 * time.Second
	retryMultiplier = 2.0
)

// retryWithBackoff runs op up to attempts times, doubling the delay after
// each failure with jitter to spread concurrent retries. The last error is
// returned once attempts are exhausted or the context is cancelled.
func retryWithBackoff(ctx context.Context, attempts int, baseDelay time.Duration, op func() error) error {
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	delay := baseDelay
	for attempt := 1; attempt <= attempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if attempt == attempts {
			break
		}

		jittered := time.Duration(float64(delay) * (0.5 + rand.Float64()*0.5))
		logging.LogEvent("[RETRY] Attempt %d/%d failed: %v; retrying in %s", attempt, attempts, lastErr, jittered.Truncate(time.Millisecond))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(jittered):
		}

		delay = time.Duration(float64(delay) * retryMultiplier)
		if delay > retryMaxDelay {
			delay = retryMaxDelay
		}
	}
	return lastErr
}
