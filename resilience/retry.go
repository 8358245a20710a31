package resilience

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"time"
)

// Backoff describes how long to wait between connection attempts.
type Backoff struct {
	// Attempts is the total number of tries, including the first.
	Attempts int
	// Initial is the delay after the first failure.
	Initial time.Duration
	// Max caps a single delay.
	Max time.Duration
	// Factor multiplies the delay after every failure.
	Factor float64
	// Jitter spreads each delay by up to this fraction in either direction.
	Jitter float64
}

// ConnectBackoff is the policy used when opening backing services at startup.
func ConnectBackoff(attempts int) Backoff {
	return Backoff{
		Attempts: attempts,
		Initial:  time.Second,
		Max:      10 * time.Second,
		Factor:   2,
		Jitter:   0.1,
	}
}

// Delay returns the wait after the given failed attempt (1-based).
func (b Backoff) Delay(attempt int) time.Duration {
	d := float64(b.Initial) * math.Pow(b.Factor, float64(attempt-1))
	if b.Jitter > 0 {
		d += (rand.Float64()*2 - 1) * d * b.Jitter
	}
	if b.Max > 0 && d > float64(b.Max) {
		d = float64(b.Max)
	}
	if d < 0 {
		d = float64(b.Initial)
	}
	return time.Duration(d)
}

func (b Backoff) normalized() Backoff {
	if b.Attempts < 1 {
		b.Attempts = 1
	}
	if b.Initial <= 0 {
		b.Initial = 100 * time.Millisecond
	}
	if b.Factor < 1 {
		b.Factor = 1
	}
	return b
}

// Attempt is reported to the OnRetry callback before each wait.
type Attempt struct {
	Number int
	Err    error
	Wait   time.Duration
}

// Retry calls fn until it succeeds, the attempts run out or ctx is done.
// Context errors returned by fn are never retried.
func Retry[T any](ctx context.Context, b Backoff, onRetry func(Attempt), fn func(context.Context) (T, error)) (T, error) {
	var zero T
	b = b.normalized()

	var lastErr error
	for attempt := 1; attempt <= b.Attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, fmt.Errorf("canceled after %d attempts: %w", attempt-1, err)
		}

		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return zero, err
		}
		if attempt == b.Attempts {
			break
		}

		wait := b.Delay(attempt)
		if onRetry != nil {
			onRetry(Attempt{Number: attempt, Err: err, Wait: wait})
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, fmt.Errorf("canceled during retry: %w", ctx.Err())
		case <-timer.C:
		}
	}
	return zero, fmt.Errorf("gave up after %d attempts: %w", b.Attempts, lastErr)
}

// Do is Retry for functions without a result.
func Do(ctx context.Context, b Backoff, onRetry func(Attempt), fn func(context.Context) error) error {
	_, err := Retry(ctx, b, onRetry, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}
