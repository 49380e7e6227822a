package retry

import (
	"context"
	"time"
)

// Policy drives one request until it succeeds.
type Policy struct {
	Initial time.Duration
	Max     time.Duration // 0 = unbounded
	Sleep   Sleeper       // nil = real clock

	// Retryable decides whether err is worth another attempt. nil retries
	// every error. The caller's context ending always stops the loop; a
	// per-request timeout (http.Client.Timeout) does not.
	Retryable func(error) bool
}

// Attempt describes a failed attempt about to be retried.
type Attempt struct {
	N     int // consecutive failure count, starting at 1
	Delay time.Duration
	Err   error
}

// Do runs op until it returns nil. Between attempts it waits with doubling
// delay. live is consulted before every wait and after it; once it reports
// false the loop stops with ErrStale and op is not called again.
func (p Policy) Do(ctx context.Context, live func() bool, op func(context.Context) error, onRetry func(Attempt)) error {
	sleep := p.Sleep
	if sleep == nil {
		sleep = Sleep
	}
	b := Backoff{Initial: p.Initial, Max: p.Max}
	for {
		if live != nil && !live() {
			return ErrStale
		}
		err := op(ctx)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !p.retryable(err) {
			return err
		}
		if live != nil && !live() {
			return ErrStale
		}
		d := b.Next()
		if onRetry != nil {
			onRetry(Attempt{N: b.Failures(), Delay: d, Err: err})
		}
		if serr := sleep(ctx, d); serr != nil {
			return serr
		}
	}
}

func (p Policy) retryable(err error) bool {
	if p.Retryable == nil {
		return true
	}
	return p.Retryable(err)
}
