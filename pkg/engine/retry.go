package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

// withRetry runs fn up to attempts times with doubling backoff. It is
// used around store writes so a transient database blip does not lose a
// scan mid-flight.
func withRetry(ctx context.Context, attempts int, baseDelay time.Duration, log *logrus.Entry, op string, fn func() error) error {
	if attempts < 1 {
		attempts = 1
	}

	var err error
	delay := baseDelay
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		if attempt == attempts {
			break
		}
		log.WithError(err).Warnf("%s failed, retrying in %s (attempt %d/%d)", op, delay, attempt, attempts)

		select {
		case <-ctx.Done():
			return fmt.Errorf("%s aborted: %w", op, ctx.Err())
		case <-time.After(delay):
		}
		delay *= 2
	}
	return fmt.Errorf("%s failed after %d attempts: %w", op, attempts, err)
}
