package memory

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/code-payments/code-boost/pkg/config"
)

func TestConfig(t *testing.T) {
	c := NewConfig(nil)
	_, err := c.Get(context.Background())
	assert.Equal(t, config.ErrNoValue, err)

	expected := "value"
	c.Set(expected)
	val, err := c.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, expected, val)

	c.Set(nil)
	_, err = c.Get(context.Background())
	assert.Equal(t, config.ErrNoValue, err)

	induced := errors.New("induced")
	c.InduceError(induced)
	_, err = c.Get(context.Background())
	assert.Equal(t, induced, err)

	c.InduceError(nil)
	_, err = c.Get(context.Background())
	assert.Equal(t, config.ErrNoValue, err)

	c.Shutdown()
	_, err = c.Get(context.Background())
	assert.Equal(t, config.ErrShutdown, err)
}
