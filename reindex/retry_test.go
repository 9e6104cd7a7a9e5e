package reindex

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetryWithBackoff(t *testing.T) {
	t.Run("no retry needed", func(t *testing.T) {
		calls := 0
		err := RetryWithBackoff(context.Background(), func() error {
			calls++
			return nil
		}, 3, time.Millisecond)
		require.NoError(t, err)
		assert.Equal(t, 1, calls)
	})

	t.Run("succeeds after transient failures", func(t *testing.T) {
		calls := 0
		err := RetryWithBackoff(context.Background(), func() error {
			calls++
			if calls < 3 {
				return errors.New("transient")
			}
			return nil
		}, 5, time.Millisecond)
		require.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("returns last error when attempts run out", func(t *testing.T) {
		calls := 0
		persistent := errors.New("persistent")
		err := RetryWithBackoff(context.Background(), func() error {
			calls++
			return persistent
		}, 3, time.Millisecond)
		require.ErrorIs(t, err, persistent)
		assert.Equal(t, 3, calls, "stops at the attempt limit")
	})

	t.Run("cancellation stops further attempts", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		calls := 0
		err := RetryWithBackoff(ctx, func() error {
			calls++
			if calls == 2 {
				cancel()
			}
			return errors.New("still failing")
		}, 10, time.Millisecond)
		require.ErrorIs(t, err, context.Canceled)
		assert.LessOrEqual(t, calls, 2)
	})

	t.Run("delays grow between attempts", func(t *testing.T) {
		calls := 0
		var gaps []time.Duration
		last := time.Now()
		err := RetryWithBackoff(context.Background(), func() error {
			calls++
			if calls > 1 {
				gaps = append(gaps, time.Since(last))
			}
			last = time.Now()
			if calls < 4 {
				return errors.New("not yet")
			}
			return nil
		}, 5, 10*time.Millisecond)
		require.NoError(t, err)
		require.Len(t, gaps, 3)

		// Doubling should dominate scheduler jitter at this scale
		assert.Greater(t, gaps[1], gaps[0])
		assert.Greater(t, gaps[2], gaps[1])
	})

	t.Run("rejects non-positive attempt limits", func(t *testing.T) {
		for _, limit := range []int{0, -1} {
			calls := 0
			err := RetryWithBackoff(context.Background(), func() error {
				calls++
				return nil
			}, limit, time.Millisecond)
			assert.ErrorIs(t, err, ErrInvalidMaxAttempts)
			assert.Zero(t, calls, "limit %d must not run the operation", limit)
		}
	})
}
