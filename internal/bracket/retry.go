package bracket

import (
	"context"
	"time"

	"go.uber.org/zap"

	exchange "github.com/SubhajL/online-trading-sub002/pkg/exchanges/common"
)

// backoff returns base * 2^attempt capped at max.
func backoff(base, max time.Duration, attempt int) time.Duration {
	if base <= 0 {
		return 0
	}
	if attempt < 0 {
		return base
	}
	if attempt > 30 {
		return max
	}
	d := base * time.Duration(1<<attempt)
	if max > 0 && d > max {
		return max
	}
	return d
}

// retry runs fn until it succeeds, fails with a non-transient error, or the
// retry budget is spent. Each attempt gets its own timeout. Exhaustion is
// reported as *TimeoutError.
func (s *Service) retry(ctx context.Context, op string, fn func(ctx context.Context, attempt int) error) (int, error) {
	var lastErr error
	attempts := 0
	for attempt := 0; attempt <= s.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			wait := backoff(s.cfg.RetryBaseDelay, s.cfg.RetryMaxDelay, attempt-1)
			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return attempts, ctx.Err()
			case <-timer.C:
			}
		}

		attempts++
		err := s.attempt(ctx, attempt, fn)
		if err == nil {
			return attempts, nil
		}
		if !exchange.IsTransient(err) || ctx.Err() != nil {
			return attempts, err
		}
		lastErr = err
		s.logger.Warn("transient exchange error, retrying",
			zap.String("op", op),
			zap.Int("attempt", attempts),
			zap.Error(err))
	}
	return attempts, &TimeoutError{Op: op, Attempts: attempts, Err: lastErr}
}

func (s *Service) attempt(ctx context.Context, attempt int, fn func(ctx context.Context, attempt int) error) error {
	if s.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
	}
	return fn(ctx, attempt)
}
