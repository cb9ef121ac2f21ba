package retry

import (
	"context"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/pilot/pkg/domain/types"
	"github.com/secmon-lab/pilot/pkg/utils/logging"
)

// Policy is a bounded retry budget with exponential backoff. The curve
// shape is deliberately simple (base doubling, capped); both knobs are
// configuration, not constants.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	RateLimiter *RateLimiter
}

// DefaultPolicy mirrors the provider defaults: 3 attempts, 1s base, 30s cap
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 3,
		BaseDelay:   time.Second,
		MaxDelay:    30 * time.Second,
	}
}

// Do runs fn under the policy. Only errors tagged transient are retried;
// any other error aborts immediately. When the budget is exhausted the last
// error is returned tagged as an irrecoverable chunk failure.
func (p Policy) Do(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	logger := logging.From(ctx)

	attempts := p.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if p.RateLimiter != nil {
			if ok, wait := p.RateLimiter.Allow(); !ok {
				logger.Warn("rate limited, waiting", "call", name, "wait", wait.String())
				if err := sleep(ctx, wait); err != nil {
					return err
				}
			}
		}

		err := fn(ctx)
		if p.RateLimiter != nil {
			p.RateLimiter.Record(err == nil)
		}
		if err == nil {
			return nil
		}
		lastErr = err

		if !goerr.HasTag(err, types.ErrTagTransient) {
			return err
		}
		if attempt == attempts-1 {
			break
		}

		delay := p.backoff(attempt)
		logger.Warn("transient provider error, backing off",
			"call", name,
			"attempt", attempt+1,
			"max_attempts", attempts,
			"delay", delay.String(),
			"error", err.Error(),
		)
		if err := sleep(ctx, delay); err != nil {
			return err
		}
	}

	return goerr.Wrap(lastErr, "retry budget exhausted",
		goerr.T(types.ErrTagChunkFailure),
		goerr.V("call", name),
		goerr.V("attempts", attempts),
	)
}

func (p Policy) backoff(attempt int) time.Duration {
	delay := p.BaseDelay
	if delay <= 0 {
		delay = time.Second
	}
	for i := 0; i < attempt; i++ {
		delay *= 2
		if p.MaxDelay > 0 && delay >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	if p.MaxDelay > 0 && delay > p.MaxDelay {
		delay = p.MaxDelay
	}
	return delay
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
