package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/maheshrc27/packflow/internal/models"
)

// RetryDecision is the outcome of inspecting a failed attempt.
type RetryDecision struct {
	Retry bool
	Wait  time.Duration
}

// Decide reports whether a failed attempt should be repeated. Only rate limit
// errors are retried; the wait is the provider's delay plus one second.
func Decide(err error, attempt, maxAttempts int) RetryDecision {
	if err == nil || attempt >= maxAttempts {
		return RetryDecision{}
	}
	wait, ok := models.AsRateLimited(err)
	if !ok {
		return RetryDecision{}
	}
	return RetryDecision{Retry: true, Wait: wait + time.Second}
}

type SleepFunc func(ctx context.Context, d time.Duration) error

type RetryPolicy struct {
	MaxAttempts int
	Sleep       SleepFunc
}

func NewRetryPolicy(maxAttempts int) RetryPolicy {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return RetryPolicy{MaxAttempts: maxAttempts, Sleep: SleepContext}
}

// Do runs fn until it succeeds, returns a non rate limit error, or the attempt
// budget is spent. The last error is returned.
func (p RetryPolicy) Do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	sleep := p.Sleep
	if sleep == nil {
		sleep = SleepContext
	}

	for attempt := 1; ; attempt++ {
		err := fn(ctx)
		decision := Decide(err, attempt, p.MaxAttempts)
		if !decision.Retry {
			if err != nil && attempt > 1 {
				slog.Warn("giving up after retries", "op", op, "attempts", attempt, "error", err)
			}
			return err
		}

		slog.Info("rate limited, waiting", "op", op, "attempt", attempt, "wait", decision.Wait.String())
		if err := sleep(ctx, decision.Wait); err != nil {
			return err
		}
	}
}

func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
