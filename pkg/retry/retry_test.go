package retry_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prismlabs/prism/pkg/prismerr"
	"github.com/prismlabs/prism/pkg/retry"
)

func fastConfig() retry.Config {
	return retry.Config{
		MaxAttempts:    3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
		BackoffFactor:  2,
	}
}

func TestDoSucceedsWithoutRetryingOnFirstSuccess(t *testing.T) {
	calls := 0
	err := retry.Do(context.Background(), fastConfig(), "op", func(context.Context) error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestDoRetriesUntilSuccess(t *testing.T) {
	calls := 0
	err := retry.Do(context.Background(), fastConfig(), "op", func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("not yet")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDoReturnsUnitErrorAfterExhaustingAttempts(t *testing.T) {
	calls := 0
	cause := errors.New("still failing")
	err := retry.Do(context.Background(), fastConfig(), "downloading page image", func(context.Context) error {
		calls++
		return cause
	})

	require.Error(t, err)
	assert.Equal(t, 3, calls)

	var unitErr *prismerr.UnitError
	require.ErrorAs(t, err, &unitErr)
	assert.Equal(t, "downloading page image", unitErr.Op)
	assert.ErrorIs(t, err, cause)
}

func TestDoStopsEarlyWhenContextIsCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := retry.Do(ctx, fastConfig(), "op", func(context.Context) error {
		calls++
		return errors.New("boom")
	})

	require.Error(t, err)
	assert.Equal(t, 0, calls, "an already-canceled context must fail before ever calling fn")
}
