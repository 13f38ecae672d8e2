package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/maheshrc27/packflow/internal/models"
	"github.com/stretchr/testify/require"
)

func TestDecide(t *testing.T) {
	rl := &models.RateLimitedError{RetryAfter: 3 * time.Second}

	require.Equal(t, RetryDecision{}, Decide(nil, 1, 5))
	require.Equal(t, RetryDecision{}, Decide(errors.New("bad request"), 1, 5))
	require.Equal(t, RetryDecision{Retry: true, Wait: 4 * time.Second}, Decide(rl, 1, 5))
	require.Equal(t, RetryDecision{Retry: true, Wait: 4 * time.Second}, Decide(rl, 4, 5))
	require.Equal(t, RetryDecision{}, Decide(rl, 5, 5))

	wrapped := errors.Join(errors.New("send video"), rl)
	require.True(t, Decide(wrapped, 1, 5).Retry)
}

type recordingSleeper struct {
	waits []time.Duration
}

func (s *recordingSleeper) sleep(_ context.Context, d time.Duration) error {
	s.waits = append(s.waits, d)
	return nil
}

func TestRetryPolicy_Do(t *testing.T) {
	ctx := context.Background()

	t.Run("succeeds after rate limits", func(t *testing.T) {
		sl := &recordingSleeper{}
		p := RetryPolicy{MaxAttempts: 5, Sleep: sl.sleep}
		calls := 0

		err := p.Do(ctx, "send", func(context.Context) error {
			calls++
			if calls < 3 {
				return &models.RateLimitedError{RetryAfter: time.Second}
			}
			return nil
		})
		require.NoError(t, err)
		require.Equal(t, 3, calls)
		require.Equal(t, []time.Duration{2 * time.Second, 2 * time.Second}, sl.waits)
	})

	t.Run("budget exhausted", func(t *testing.T) {
		sl := &recordingSleeper{}
		p := RetryPolicy{MaxAttempts: 5, Sleep: sl.sleep}
		calls := 0

		err := p.Do(ctx, "send", func(context.Context) error {
			calls++
			return &models.RateLimitedError{RetryAfter: 0}
		})
		_, limited := models.AsRateLimited(err)
		require.True(t, limited)
		require.Equal(t, 5, calls)
		require.Len(t, sl.waits, 4)
	})

	t.Run("other errors are not retried", func(t *testing.T) {
		sl := &recordingSleeper{}
		p := RetryPolicy{MaxAttempts: 5, Sleep: sl.sleep}
		calls := 0
		boom := errors.New("file too big")

		err := p.Do(ctx, "send", func(context.Context) error {
			calls++
			return boom
		})
		require.ErrorIs(t, err, boom)
		require.Equal(t, 1, calls)
		require.Empty(t, sl.waits)
	})

	t.Run("cancelled context stops waiting", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		p := NewRetryPolicy(5)

		err := p.Do(cctx, "send", func(context.Context) error {
			return &models.RateLimitedError{RetryAfter: time.Hour}
		})
		require.ErrorIs(t, err, context.Canceled)
	})
}
