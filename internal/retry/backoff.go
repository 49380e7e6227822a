// Package retry re-issues failed oracle requests with a doubling delay.
//
// There is no attempt limit: a request is retried until it
// succeeds, its epoch goes stale, or the context ends.
package retry

import (
	"context"
	"errors"
	"math"
	"time"
)

// DefaultInitialDelay matches the client's historical first wait.
const DefaultInitialDelay = time.Second

// ErrStale is returned when the owning epoch was superseded while retrying.
var ErrStale = errors.New("retry: request superseded by a newer query")

// Backoff yields Initial, 2*Initial, 4*Initial, ... for consecutive failures.
// Max > 0 clamps the delay; Max == 0 leaves it unbounded. Not safe for
// concurrent use; each request stream owns its own Backoff.
type Backoff struct {
	Initial time.Duration
	Max     time.Duration

	failures int
}

// Next records one more failure and returns the delay to wait before the
// next attempt: Initial * 2^(n-1) for the n-th consecutive failure.
func (b *Backoff) Next() time.Duration {
	b.failures++
	return Delay(b.Initial, b.Max, b.failures)
}

// Reset forgets consecutive failures after a success.
func (b *Backoff) Reset() { b.failures = 0 }

// Failures returns the number of consecutive failures recorded.
func (b *Backoff) Failures() int { return b.failures }

// Delay returns initial * 2^(n-1), saturating instead of overflowing.
func Delay(initial, max time.Duration, n int) time.Duration {
	if initial <= 0 {
		initial = DefaultInitialDelay
	}
	if n < 1 {
		n = 1
	}
	d := initial
	for i := 1; i < n; i++ {
		if d > math.MaxInt64/2 {
			d = math.MaxInt64
			break
		}
		d *= 2
	}
	if max > 0 && d > max {
		d = max
	}
	return d
}

// Sleeper waits for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// Sleep is the real-clock Sleeper.
func Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
