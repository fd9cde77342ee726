// Package retry runs an operation under exponential backoff with jitter,
// honoring server supplied retry-after hints.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"github.com/rtuszik/discogsdash/internal/apierr"
	"github.com/rtuszik/discogsdash/internal/constants"
	"github.com/rtuszik/discogsdash/internal/logger"
)

// ErrRetriesExhausted matches every *ExhaustedError.
var ErrRetriesExhausted = errors.New("retries exhausted")

// ExhaustedError is returned once the attempt budget is spent on retryable failures.
type ExhaustedError struct {
	Op       string
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("%s: gave up after %d attempts: %v", e.Op, e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error {
	return e.Err
}

func (e *ExhaustedError) Is(target error) bool {
	return target == ErrRetriesExhausted
}

// Hinted is implemented by errors that carry a server requested wait.
type Hinted interface {
	RetryAfterHint() time.Duration
}

// Policy configures Do. The zero value of optional fields falls back to
// sensible behavior: IsRetryable defaults to apierr.IsRetryable, Sleep to a
// context aware timer and Logger to a discarding logger.
type Policy struct {
	MaxRetries      int
	BaseDelay       time.Duration
	MaxDelay        time.Duration
	Multiplier      float64
	Jitter          time.Duration
	RateLimitBuffer time.Duration

	IsRetryable func(error) bool
	Sleep       func(ctx context.Context, d time.Duration) error
	Logger      *logger.Logger
	OnRetry     func(attempt int, delay time.Duration, err error)
}

// DefaultPolicy returns the production retry settings.
func DefaultPolicy() Policy {
	return Policy{
		MaxRetries:      constants.DefaultRetryCount,
		BaseDelay:       constants.DefaultRetryBase,
		MaxDelay:        constants.DefaultRetryMax,
		Multiplier:      constants.DefaultRetryMultiplier,
		Jitter:          constants.DefaultRetryJitter,
		RateLimitBuffer: constants.DefaultRateLimitBuffer,
	}
}

// Backoff returns the wait before retry n (n >= 1) for the given error.
func (p Policy) Backoff(n int, err error) time.Duration {
	mult := p.Multiplier
	if mult < 1 {
		mult = 1
	}
	d := float64(p.BaseDelay) * math.Pow(mult, float64(n-1))
	if p.Jitter > 0 {
		d += float64(rand.Int64N(int64(p.Jitter)))
	}
	var delay time.Duration
	switch {
	case p.MaxDelay > 0 && d > float64(p.MaxDelay):
		delay = p.MaxDelay
	case d > float64(math.MaxInt64):
		delay = time.Duration(math.MaxInt64)
	default:
		delay = time.Duration(d)
	}

	var h Hinted
	if errors.As(err, &h) {
		if s := h.RetryAfterHint(); s > 0 && s+p.RateLimitBuffer > delay {
			delay = s + p.RateLimitBuffer
		}
	}
	return delay
}

// Do invokes fn until it succeeds, fails with a non-retryable error, or the
// retry budget runs out. At most MaxRetries+1 attempts are made.
func Do[T any](ctx context.Context, p Policy, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T

	isRetryable := p.IsRetryable
	if isRetryable == nil {
		isRetryable = apierr.IsRetryable
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = sleepContext
	}
	log := p.Logger
	if log == nil {
		log = logger.Discard()
	}

	attempts := p.MaxRetries + 1
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		result, err := fn(ctx)
		if err == nil {
			if attempt > 1 {
				log.Debug("Operation succeeded after retry", "op", op, "attempt", attempt)
			}
			return result, nil
		}

		if !isRetryable(err) {
			return zero, err
		}
		lastErr = err

		if attempt == attempts {
			break
		}

		delay := p.Backoff(attempt, err)
		log.Warn("Retryable failure, backing off",
			"op", op,
			"attempt", attempt,
			"max_attempts", attempts,
			"delay", delay,
			"error", err,
		)
		if p.OnRetry != nil {
			p.OnRetry(attempt, delay, err)
		}

		if err := sleep(ctx, delay); err != nil {
			return zero, err
		}
	}

	log.Error("Retries exhausted", "op", op, "attempts", attempts, "error", lastErr)
	return zero, &ExhaustedError{Op: op, Attempts: attempts, Err: lastErr}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
