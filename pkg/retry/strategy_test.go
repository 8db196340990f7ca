package retry

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"

	"github.com/code-payments/code-boost/pkg/retry/backoff"
)

func TestLimit(t *testing.T) {
	ctx := context.Background()
	strategy := Limit(2)

	assert.True(t, strategy(ctx, 1, errors.New("test")))
	assert.False(t, strategy(ctx, 2, errors.New("test")))

	counter, err := Retry(ctx, func() error {
		return errors.New("test")
	}, Limit(2))

	assert.EqualError(t, err, "test")
	assert.Equal(t, uint(2), counter)
}

func TestRetriableErrors(t *testing.T) {
	ctx := context.Background()
	retriableErrors := []error{
		errors.New("retriableA"),
		errors.New("retriableB"),
	}

	strategy := RetriableErrors(retriableErrors...)
	for _, err := range retriableErrors {
		assert.True(t, strategy(ctx, 1, err))
		assert.True(t, strategy(ctx, 1, errors.Wrap(err, "wrapper")))
	}
	assert.False(t, strategy(ctx, 2, errors.New("unexpected")))
}

func TestRetriableIf(t *testing.T) {
	ctx := context.Background()
	transient := errors.New("transient")

	strategy := RetriableIf(func(err error) bool {
		return errors.Is(err, transient)
	})
	assert.True(t, strategy(ctx, 1, errors.Wrap(transient, "wrapped")))
	assert.False(t, strategy(ctx, 1, errors.New("permanent")))
}

func TestBackoff(t *testing.T) {
	ts := &testSleeper{}
	sleeperImpl = ts

	strategy := Backoff(backoff.Linear(100*time.Millisecond), 250*time.Millisecond)
	for i := uint(1); i <= 4; i++ {
		assert.True(t, strategy(context.Background(), i, errors.New("test-error")))
	}

	assert.Equal(t, []time.Duration{
		100 * time.Millisecond,
		200 * time.Millisecond,
		250 * time.Millisecond,
		250 * time.Millisecond,
	}, ts.sleepTimes)
}

func TestBackoff_Cancelled(t *testing.T) {
	sleeperImpl = realSleeper{}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	assert.False(t, Backoff(backoff.Constant(time.Minute), time.Minute)(ctx, 1, errors.New("err")))
	assert.True(t, time.Since(start) < time.Second)
}

func TestBackoffWithJitter(t *testing.T) {
	iterations := 10000
	delay := time.Millisecond

	ts := &testSleeper{}
	sleeperImpl = ts
	strategy := BackoffWithJitter(backoff.Constant(delay), delay, 0.1)

	for i := 0; i < iterations; i++ {
		assert.True(t, strategy(context.Background(), 1, errors.New("err")))
	}

	for _, d := range ts.sleepTimes {
		assert.True(t, d >= 900*time.Microsecond && d <= 1100*time.Microsecond, d)
	}

	// The mean stays on the delay.
	assert.InDelta(t, float64(delay), float64(ts.Mean()), 0.01*float64(delay))

	// Uniform over +/-10%, so the mean absolute deviation is 5%.
	assert.InDelta(t, 0.05*float64(delay), float64(ts.AbsDeviation()), 0.005*float64(delay))
}

type testSleeper struct {
	sleepTimes []time.Duration
}

func (t *testSleeper) Sleep(ctx context.Context, d time.Duration) bool {
	t.sleepTimes = append(t.sleepTimes, d)
	return ctx.Err() == nil
}

func (t *testSleeper) Mean() time.Duration {
	var total time.Duration
	for _, d := range t.sleepTimes {
		total += d
	}
	return total / time.Duration(len(t.sleepTimes))
}

func (t *testSleeper) AbsDeviation() time.Duration {
	mean := t.Mean()

	var dev float64
	for _, d := range t.sleepTimes {
		dev += math.Abs(float64(d - mean))
	}
	return time.Duration(dev / float64(len(t.sleepTimes)))
}
