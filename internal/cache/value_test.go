package cache_test

import (
	"testing"
	"time"

	"codeberg.org/mutker/nvidiamon/internal/cache"
	"codeberg.org/mutker/nvidiamon/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetFetchesAtMostOncePerTTL(t *testing.T) {
	calls := 0
	fetch := func() (int, error) {
		calls++
		return calls, nil
	}

	v := cache.NewValue[int](time.Hour)

	for i := 0; i < 10; i++ {
		got, err := v.Get(fetch)
		require.NoError(t, err)
		assert.Equal(t, 1, got)
	}

	assert.Equal(t, 1, calls)
}

func TestGetRefetchesAfterTTL(t *testing.T) {
	calls := 0
	fetch := func() (int, error) {
		calls++
		return calls, nil
	}

	v := cache.NewValue[int](50 * time.Millisecond)

	got, err := v.Get(fetch)
	require.NoError(t, err)
	assert.Equal(t, 1, got)

	time.Sleep(80 * time.Millisecond)

	got, err = v.Get(fetch)
	require.NoError(t, err)
	assert.Equal(t, 2, got)
	assert.Equal(t, 2, calls)
}

func TestGetKeepsValueOnFetchFailure(t *testing.T) {
	errFactory := errors.New()
	calls := 0
	failing := false
	fetch := func() (string, error) {
		calls++
		if failing {
			return "", errFactory.New(errors.ErrUnavailable)
		}
		return "fresh", nil
	}

	v := cache.NewValue[string](50 * time.Millisecond)

	got, err := v.Get(fetch)
	require.NoError(t, err)
	assert.Equal(t, "fresh", got)

	time.Sleep(80 * time.Millisecond)
	failing = true

	// Expired and the refresh fails: the stale value comes back with
	// the error, and the deadline must not advance.
	got, err = v.Get(fetch)
	require.Error(t, err)
	assert.Equal(t, "fresh", got)
	assert.Equal(t, 2, calls)

	// A retry happens immediately rather than after another TTL.
	failing = false
	got, err = v.Get(fetch)
	require.NoError(t, err)
	assert.Equal(t, "fresh", got)
	assert.Equal(t, 3, calls)
}

func TestPeekDoesNotFetch(t *testing.T) {
	v := cache.NewValue[int](time.Hour)

	_, ok := v.Peek()
	assert.False(t, ok)

	_, err := v.Get(func() (int, error) { return 42, nil })
	require.NoError(t, err)

	got, ok := v.Peek()
	assert.True(t, ok)
	assert.Equal(t, 42, got)
}

func TestInvalidateForcesRefresh(t *testing.T) {
	calls := 0
	fetch := func() (int, error) {
		calls++
		return calls, nil
	}

	v := cache.NewValue[int](time.Hour)

	_, err := v.Get(fetch)
	require.NoError(t, err)

	v.Invalidate()

	got, err := v.Get(fetch)
	require.NoError(t, err)
	assert.Equal(t, 2, got)
	assert.Equal(t, 2, calls)
}
