package testutil

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWaitFor(t *testing.T) {
	var polls int32
	require.NoError(t, WaitFor(time.Second, time.Millisecond, func() bool {
		return atomic.AddInt32(&polls, 1) == 3
	}))
	assert.EqualValues(t, 3, polls)

	start := time.Now()
	err := WaitFor(20*time.Millisecond, 5*time.Millisecond, func() bool {
		return false
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "within 20ms")
	assert.True(t, time.Since(start) >= 20*time.Millisecond)

	err = WaitFor(5*time.Millisecond, 10*time.Millisecond, func() bool {
		return true
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "greater than interval")
}
