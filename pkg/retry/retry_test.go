package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWaitUntil(t *testing.T) {
	ctx := context.Background()

	t.Run("succeeds on first attempt", func(t *testing.T) {
		calls := 0
		err := WaitUntil(ctx, time.Millisecond, 5, func(ctx context.Context) (bool, error) {
			calls++
			return true, nil
		})
		require.NoError(t, err)
		assert.Equal(t, 1, calls)
	})

	t.Run("succeeds after several attempts", func(t *testing.T) {
		calls := 0
		err := WaitUntil(ctx, time.Millisecond, 5, func(ctx context.Context) (bool, error) {
			calls++
			return calls == 3, nil
		})
		require.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("exhausts the budget", func(t *testing.T) {
		calls := 0
		err := WaitUntil(ctx, time.Millisecond, 4, func(ctx context.Context) (bool, error) {
			calls++
			return false, nil
		})
		assert.ErrorIs(t, err, ErrBudgetExhausted)
		assert.Equal(t, 4, calls)
	})

	t.Run("probe error stops immediately", func(t *testing.T) {
		boom := errors.New("boom")
		calls := 0
		err := WaitUntil(ctx, time.Millisecond, 5, func(ctx context.Context) (bool, error) {
			calls++
			return false, boom
		})
		assert.ErrorIs(t, err, boom)
		assert.Equal(t, 1, calls)
	})

	t.Run("respects context cancellation", func(t *testing.T) {
		cancelled, cancel := context.WithCancel(ctx)
		cancel()
		err := WaitUntil(cancelled, time.Minute, 5, func(ctx context.Context) (bool, error) {
			return false, nil
		})
		assert.ErrorIs(t, err, context.Canceled)
	})
}
