package wrapper

import (
	"context"
	"math"
	"strconv"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/code-payments/code-boost/pkg/config"
	"github.com/code-payments/code-boost/pkg/config/memory"
)

func TestBoolConfig(t *testing.T) {
	defaultValue := true
	overridenValue := false
	mock := memory.NewConfig(nil)
	wrapper := NewBoolConfig(mock, defaultValue)

	// Return the default value when no override is set
	val, err := wrapper.GetSafe(context.Background())
	require.NoError(t, err)
	assert.Equal(t, defaultValue, val)
	assert.Equal(t, defaultValue, wrapper.Get(context.Background()))

	// The overriden value is returned when set
	mock.Set(overridenValue)
	val, err = wrapper.GetSafe(context.Background())
	require.NoError(t, err)
	assert.Equal(t, overridenValue, val)
	assert.Equal(t, overridenValue, wrapper.Get(context.Background()))

	// The last observed config value is returned on error
	mock.InduceError(errors.New("induced"))
	val, err = wrapper.GetSafe(context.Background())
	require.Error(t, err)
	assert.Equal(t, overridenValue, val)
	assert.Equal(t, overridenValue, wrapper.Get(context.Background()))

	// Verify conversion from a byte array
	mock.InduceError(nil)
	mock.Set([]byte(strconv.FormatBool(defaultValue)))
	val, err = wrapper.GetSafe(context.Background())
	require.NoError(t, err)
	assert.Equal(t, defaultValue, val)
	assert.Equal(t, defaultValue, wrapper.Get(context.Background()))

	// Invalid byte array value
	mock.Set([]byte("cannot convert"))
	val, err = wrapper.GetSafe(context.Background())
	require.Error(t, err)
	assert.Equal(t, defaultValue, val)
	assert.Equal(t, defaultValue, wrapper.Get(context.Background()))

	// Return an unsupported source value type
	mock.Set("not supported")
	val, err = wrapper.GetSafe(context.Background())
	assert.Equal(t, err, ErrUnsuportedConversion)
	assert.Equal(t, defaultValue, val)
	assert.Equal(t, defaultValue, wrapper.Get(context.Background()))

	// Shutdown the config via the wrapper
	wrapper.Shutdown()
	_, err = wrapper.GetSafe(context.Background())
	assert.Equal(t, config.ErrShutdown, err)
}

func TestUint64Config(t *testing.T) {
	defaultValue := uint64(math.MaxUint64)
	overridenValue := uint64(0)
	mock := memory.NewConfig(nil)
	wrapper := NewUint64Config(mock, defaultValue)

	assert.Equal(t, defaultValue, wrapper.Get(context.Background()))

	mock.Set(overridenValue)
	assert.Equal(t, overridenValue, wrapper.Get(context.Background()))

	mock.Set([]byte("42"))
	assert.EqualValues(t, 42, wrapper.Get(context.Background()))

	// Negative values don't convert, and the last value is kept.
	mock.Set([]byte("-1"))
	val, err := wrapper.GetSafe(context.Background())
	assert.Error(t, err)
	assert.EqualValues(t, 42, val)

	mock.Set(int64(1))
	_, err = wrapper.GetSafe(context.Background())
	assert.Equal(t, ErrUnsuportedConversion, err)
}

func TestDurationConfig(t *testing.T) {
	defaultValue := 2 * time.Second
	mock := memory.NewConfig(nil)
	wrapper := NewDurationConfig(mock, defaultValue)

	assert.Equal(t, defaultValue, wrapper.Get(context.Background()))

	mock.Set(time.Minute)
	assert.Equal(t, time.Minute, wrapper.Get(context.Background()))

	mock.Set([]byte("250ms"))
	assert.Equal(t, 250*time.Millisecond, wrapper.Get(context.Background()))

	mock.Set([]byte("soon"))
	val, err := wrapper.GetSafe(context.Background())
	assert.Error(t, err)
	assert.Equal(t, 250*time.Millisecond, val)

	mock.Set(nil)
	assert.Equal(t, defaultValue, wrapper.Get(context.Background()))
}

func TestStringConfig(t *testing.T) {
	mock := memory.NewConfig(nil)
	wrapper := NewStringConfig(mock, "default")

	assert.Equal(t, "default", wrapper.Get(context.Background()))

	mock.Set("override")
	assert.Equal(t, "override", wrapper.Get(context.Background()))

	mock.Set([]byte("bytes"))
	assert.Equal(t, "bytes", wrapper.Get(context.Background()))

	mock.Set(1)
	val, err := wrapper.GetSafe(context.Background())
	assert.Equal(t, ErrUnsuportedConversion, err)
	assert.Equal(t, "bytes", val)
}

func TestNew(t *testing.T) {
	type pair struct{ a, b int }

	mock := memory.NewConfig(nil)
	wrapper := New(mock, pair{1, 2}, func(raw interface{}) (pair, error) {
		v, ok := raw.(int)
		if !ok {
			return pair{}, ErrUnsuportedConversion
		}
		return pair{v, v}, nil
	})

	assert.Equal(t, pair{1, 2}, wrapper.Get(context.Background()))

	mock.Set(7)
	assert.Equal(t, pair{7, 7}, wrapper.Get(context.Background()))
}
