package retry

import (
	"context"
	"math"
	"math/rand"
	"time"

	"github.com/pkg/errors"

	"github.com/code-payments/code-boost/pkg/retry/backoff"
)

// Strategy decides whether an action that failed with err after attempts
// tries should be tried again. Strategies may delay, but must give up when ctx
// is done.
type Strategy func(ctx context.Context, attempts uint, err error) bool

// Limit allows at most maxAttempts tries in total.
func Limit(maxAttempts uint) Strategy {
	return func(_ context.Context, attempts uint, _ error) bool {
		return attempts < maxAttempts
	}
}

// RetriableErrors only retries errors that match one of retriableErrors,
// including wrapped ones.
func RetriableErrors(retriableErrors ...error) Strategy {
	return RetriableIf(func(err error) bool {
		for _, e := range retriableErrors {
			if errors.Is(err, e) {
				return true
			}
		}
		return false
	})
}

// RetriableIf only retries errors for which fn returns true.
func RetriableIf(fn func(err error) bool) Strategy {
	return func(_ context.Context, _ uint, err error) bool {
		return fn(err)
	}
}

// Backoff sleeps for the delay strategy provides, capped at maxBackoff.
func Backoff(strategy backoff.Strategy, maxBackoff time.Duration) Strategy {
	return BackoffWithJitter(strategy, maxBackoff, 0)
}

// BackoffWithJitter is Backoff with the capped delay randomly moved by up to
// jitter, as a fraction of the delay. A 100ms delay with a jitter of 0.1 sleeps
// between 90ms and 110ms.
func BackoffWithJitter(strategy backoff.Strategy, maxBackoff time.Duration, jitter float64) Strategy {
	return func(ctx context.Context, attempts uint, _ error) bool {
		delay := math.Min(float64(maxBackoff), float64(strategy(attempts)))
		if jitter > 0 {
			delay *= 1 + (rand.Float64()*2-1)*jitter
		}
		return sleeperImpl.Sleep(ctx, time.Duration(delay))
	}
}

type sleeper interface {
	// Sleep returns false if ctx was done before d elapsed.
	Sleep(ctx context.Context, d time.Duration) bool
}

type realSleeper struct{}

func (realSleeper) Sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}

var sleeperImpl sleeper = realSleeper{}
