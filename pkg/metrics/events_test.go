package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type outcome int

func (o outcome) String() string {
	return "succeeded"
}

func TestEventAttributes(t *testing.T) {
	var nilErr error

	actual := eventAttributes(map[string]interface{}{
		"flow_id":  "abc",
		"attempts": uint(2),
		"lamports": uint64(3_000_000),
		"ok":       true,
		"outcome":  outcome(0),
		"error":    errors.New("rejected"),
		"no_error": nilErr,
		"elapsed":  2 * time.Second,
		"bytes":    []byte{1, 2},
	})

	assert.Equal(t, map[string]interface{}{
		"flow_id":  "abc",
		"attempts": uint(2),
		"lamports": uint64(3_000_000),
		"ok":       true,
		"outcome":  "succeeded",
		"error":    "rejected",
		"elapsed":  "2s",
		"bytes":    "[1 2]",
	}, actual)

	assert.Empty(t, eventAttributes(nil))
}
