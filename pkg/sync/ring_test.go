package sync

import (
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func namedEntries(prefix string, n int) map[string]int {
	entries := make(map[string]int, n)
	for i := 0; i < n; i++ {
		entries[fmt.Sprintf("%s%d", prefix, i)] = i
	}
	return entries
}

func TestRing_Consistency(t *testing.T) {
	r := newRing(namedEntries("entry", 64), 200)
	other := newRing(namedEntries("entry", 64), 200)

	for i := 0; i < 256; i++ {
		key := []byte(fmt.Sprintf("buyer%d", i))
		stripe := r.stripe(key)

		assert.True(t, stripe >= 0 && stripe < 64)
		assert.Equal(t, stripe, other.stripe(key))
		for j := 0; j < 16; j++ {
			assert.Equal(t, stripe, r.stripe(key))
		}
	}
}

func TestRing_Distribution(t *testing.T) {
	entryCount := 5
	iterations := 500000
	marginOfError := 0.1
	expected := iterations / entryCount

	r := newRing(namedEntries("entry", entryCount), 200)

	hits := make(map[int]int)
	for i := 0; i < iterations; i++ {
		hits[r.stripe([]byte(fmt.Sprintf("key%d", i)))]++
	}

	assert.Len(t, hits, entryCount)
	for stripe, count := range hits {
		assert.True(t, math.Abs(float64(count-expected)) <= marginOfError*float64(expected), "stripe %d: %d hits", stripe, count)
	}
}

func TestRing_SingleEntry(t *testing.T) {
	r := newRing(namedEntries("lock", 1), 1)
	for i := 0; i < 64; i++ {
		assert.Equal(t, 0, r.stripe([]byte(fmt.Sprintf("key%d", i))))
	}
}
