package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/pilot/pkg/domain/types"
)

func fastPolicy(attempts int) Policy {
	return Policy{
		MaxAttempts: attempts,
		BaseDelay:   time.Millisecond,
		MaxDelay:    2 * time.Millisecond,
	}
}

func TestDoRetriesTransientErrors(t *testing.T) {
	calls := 0
	err := fastPolicy(3).Do(context.Background(), "test", func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return goerr.New("throttled", goerr.T(types.ErrTagTransient))
		}
		return nil
	})
	gt.NoError(t, err).Required()
	gt.Value(t, calls).Equal(3)
}

func TestDoDoesNotRetryPermanentErrors(t *testing.T) {
	calls := 0
	permanent := errors.New("bad request")
	err := fastPolicy(3).Do(context.Background(), "test", func(ctx context.Context) error {
		calls++
		return permanent
	})
	gt.Value(t, calls).Equal(1)
	gt.Value(t, errors.Is(err, permanent)).Equal(true)
}

func TestDoExhaustionTagsChunkFailure(t *testing.T) {
	calls := 0
	err := fastPolicy(2).Do(context.Background(), "test", func(ctx context.Context) error {
		calls++
		return goerr.New("still throttled", goerr.T(types.ErrTagTransient))
	})
	gt.Value(t, calls).Equal(2)
	gt.Value(t, err).NotNil()
	gt.Value(t, goerr.HasTag(err, types.ErrTagChunkFailure)).Equal(true)
}

func TestDoStopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	policy := Policy{MaxAttempts: 5, BaseDelay: time.Hour}
	err := policy.Do(ctx, "test", func(ctx context.Context) error {
		calls++
		cancel()
		return goerr.New("flaky", goerr.T(types.ErrTagTransient))
	})
	gt.Value(t, calls).Equal(1)
	gt.Value(t, errors.Is(err, context.Canceled)).Equal(true)
}

func TestBackoffCurve(t *testing.T) {
	p := Policy{MaxAttempts: 5, BaseDelay: time.Second, MaxDelay: 5 * time.Second}
	gt.Value(t, p.backoff(0)).Equal(time.Second)
	gt.Value(t, p.backoff(1)).Equal(2 * time.Second)
	gt.Value(t, p.backoff(2)).Equal(4 * time.Second)
	gt.Value(t, p.backoff(3)).Equal(5 * time.Second)
	gt.Value(t, p.backoff(10)).Equal(5 * time.Second)
}

func TestRateLimiterWindow(t *testing.T) {
	clock := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(2, 0, 0)
	rl.now = func() time.Time { return clock }

	ok, _ := rl.Allow()
	gt.Value(t, ok).Equal(true)
	rl.Record(true)
	ok, _ = rl.Allow()
	gt.Value(t, ok).Equal(true)
	rl.Record(true)

	ok, wait := rl.Allow()
	gt.Value(t, ok).Equal(false)
	gt.Number(t, int64(wait)).Greater(0)

	// The window slides: a minute later both calls have expired
	clock = clock.Add(61 * time.Second)
	ok, _ = rl.Allow()
	gt.Value(t, ok).Equal(true)
}

func TestRateLimiterBreaker(t *testing.T) {
	clock := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(0, 3, time.Minute)
	rl.now = func() time.Time { return clock }

	for i := 0; i < 3; i++ {
		rl.Record(false)
	}
	gt.Value(t, rl.BreakerOpen()).Equal(true)
	ok, wait := rl.Allow()
	gt.Value(t, ok).Equal(false)
	gt.Value(t, wait).Equal(time.Minute)

	// Cooldown elapsed: half-open allows the next attempt
	clock = clock.Add(time.Minute)
	gt.Value(t, rl.BreakerOpen()).Equal(false)
	ok, _ = rl.Allow()
	gt.Value(t, ok).Equal(true)

	// A success keeps the breaker closed
	rl.Record(true)
	gt.Value(t, rl.BreakerOpen()).Equal(false)
}

func TestRateLimiterSuccessResetsFailureRun(t *testing.T) {
	rl := NewRateLimiter(0, 3, time.Minute)
	rl.Record(false)
	rl.Record(false)
	rl.Record(true)
	rl.Record(false)
	rl.Record(false)
	gt.Value(t, rl.BreakerOpen()).Equal(false)
}
