package retry

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	platformerrors "github.com/jmgilman/go/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errFlaky = errors.New("flaky")

type blockedError struct{ host string }

func (e *blockedError) Error() string { return "blocked by " + e.host }

func TestDo_SucceedsFirstTry(t *testing.T) {
	var calls atomic.Int32
	got, err := Do(context.Background(), New(WithMaxRetries(3)), func(ctx context.Context, st State) (int, error) {
		calls.Add(1)
		assert.False(t, st.IsRetry())
		return 7, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 7, got)
	assert.EqualValues(t, 1, calls.Load())
}

func TestDo_RetryBound(t *testing.T) {
	for _, maxRetry := range []int{0, 1, 3} {
		var calls atomic.Int32
		var exhausted atomic.Bool

		p := New(
			WithMaxRetries(maxRetry),
			WithOnExhausted(func(ctx context.Context, st State, err error) {
				exhausted.Store(true)
				assert.True(t, st.IsLast())
			}),
		)
		_, err := Do(context.Background(), p, func(ctx context.Context, st State) (int, error) {
			calls.Add(1)
			return 0, errFlaky
		})

		assert.EqualValues(t, maxRetry+1, calls.Load(), "max_retry=%d", maxRetry)
		assert.True(t, exhausted.Load())

		var ex *ExhaustedError
		require.ErrorAs(t, err, &ex)
		assert.Equal(t, maxRetry+1, ex.Attempts)
		assert.ErrorIs(t, err, errFlaky)
	}
}

func TestDo_RecoversAfterFailures(t *testing.T) {
	var seen []State
	got, err := Do(context.Background(), New(WithMaxRetries(2)), func(ctx context.Context, st State) (string, error) {
		seen = append(seen, st)
		if st.Attempt < 2 {
			return "", errFlaky
		}
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", got)
	require.Len(t, seen, 3)
	assert.Nil(t, seen[0].LastErr)
	assert.ErrorIs(t, seen[1].LastErr, errFlaky)
	assert.True(t, seen[2].IsLast())
}

func TestDo_MustRaiseBypassesRetry(t *testing.T) {
	var calls atomic.Int32
	p := New(WithMaxRetries(5), WithMustRaise(As[*blockedError]()))

	_, err := Do(context.Background(), p, func(ctx context.Context, st State) (int, error) {
		calls.Add(1)
		return 0, &blockedError{host: "example.com"}
	})

	assert.EqualValues(t, 1, calls.Load())
	var mr *MustRaiseError
	require.ErrorAs(t, err, &mr)
	assert.True(t, p.IsMustRaise(err))

	var be *blockedError
	assert.ErrorAs(t, err, &be)
}

func TestDo_CancellationIsNotRetried(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var calls atomic.Int32

	_, err := Do(ctx, New(WithMaxRetries(5)), func(ctx context.Context, st State) (int, error) {
		calls.Add(1)
		cancel()
		return 0, ctx.Err()
	})

	assert.EqualValues(t, 1, calls.Load())
	assert.ErrorIs(t, err, context.Canceled)
	var ex *ExhaustedError
	assert.False(t, errors.As(err, &ex))
}

func TestDo_CanceledErrorFromTaskIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	_, err := Do(context.Background(), New(WithMaxRetries(5)), func(ctx context.Context, st State) (int, error) {
		calls.Add(1)
		return 0, context.Canceled
	})
	assert.EqualValues(t, 1, calls.Load())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDo_WaitObservesContext(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := Do(ctx, New(WithMaxRetries(3), WithWait(time.Hour)), func(ctx context.Context, st State) (int, error) {
		return 0, errFlaky
	})

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)
}

func TestDo_WaitsBetweenAttempts(t *testing.T) {
	start := time.Now()
	_, _ = Do(context.Background(), New(WithMaxRetries(2), WithWait(20*time.Millisecond)), func(ctx context.Context, st State) (int, error) {
		return 0, errFlaky
	})
	assert.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond)
}

func TestDo_PanicIsRecoveredAndRetried(t *testing.T) {
	var calls atomic.Int32
	got, err := Do(context.Background(), New(WithMaxRetries(1)), func(ctx context.Context, st State) (int, error) {
		if calls.Add(1) == 1 {
			panic("boom")
		}
		return 42, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, got)
	assert.EqualValues(t, 2, calls.Load())
}

func TestDo_PanicErrorCarriesStack(t *testing.T) {
	_, err := Do(context.Background(), New(), func(ctx context.Context, st State) (int, error) {
		panic("kaput")
	})
	var pe *PanicError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "kaput", pe.Value)
	assert.Contains(t, pe.Error(), "stack trace")
}

func TestDo_RetryableRestriction(t *testing.T) {
	retryable := platformerrors.New(platformerrors.CodeNetwork, "connection reset")
	permanent := platformerrors.New(platformerrors.CodeInvalidInput, "bad url")

	var calls atomic.Int32
	p := New(WithMaxRetries(3), WithRetryable(Classified()))

	_, err := Do(context.Background(), p, func(ctx context.Context, st State) (int, error) {
		calls.Add(1)
		return 0, permanent
	})
	var pe *PermanentError
	assert.ErrorAs(t, err, &pe)
	assert.EqualValues(t, 1, calls.Load())

	calls.Store(0)
	_, err = Do(context.Background(), p, func(ctx context.Context, st State) (int, error) {
		calls.Add(1)
		return 0, retryable
	})
	var ex *ExhaustedError
	assert.ErrorAs(t, err, &ex)
	assert.EqualValues(t, 4, calls.Load())
}

func TestDo_HooksRunPerErrorKind(t *testing.T) {
	var resets, retries atomic.Int32
	p := New(
		WithMaxRetries(2),
		WithHook(Is(errFlaky), func(ctx context.Context, st State, err error) { resets.Add(1) }),
		WithOnRetry(func(ctx context.Context, st State, err error) { retries.Add(1) }),
	)

	_, _ = Do(context.Background(), p, func(ctx context.Context, st State) (int, error) {
		if st.Attempt == 0 {
			return 0, errFlaky
		}
		return 0, errors.New("other")
	})

	// hooks run only between attempts, never after the last one
	assert.EqualValues(t, 1, resets.Load())
	assert.EqualValues(t, 2, retries.Load())
}

func TestDo_ReturnPartialWhenNotRaising(t *testing.T) {
	p := New(WithMaxRetries(1), WithRaiseOnExhausted(false))
	got, err := Do(context.Background(), p, func(ctx context.Context, st State) ([]int, error) {
		return []int{st.Attempt}, errFlaky
	})
	require.NoError(t, err)
	assert.Equal(t, []int{1}, got)
}

func TestExhaustedError_Platform(t *testing.T) {
	ex := &ExhaustedError{Attempts: 3, Err: errFlaky}
	pe := ex.Platform()
	assert.Equal(t, platformerrors.CodeExecutionFailed, pe.Code())
	assert.Equal(t, 3, pe.Context()["attempts"])
	assert.ErrorIs(t, pe, errFlaky)
}
