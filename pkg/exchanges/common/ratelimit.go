package common

import (
	"context"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"
)

// RateLimiter follows the request weight Binance reports in
// X-MBX-USED-WEIGHT-* headers and holds requests back once the window is
// nearly spent. The venue, not this process, is the source of truth.
type RateLimiter struct {
	mu          sync.RWMutex
	used        int
	limit       int
	windowStart time.Time
	window      time.Duration
	holdAt      float64 // percent of limit at which Wait blocks
	logger      *zap.Logger
}

// NewRateLimiter tracks a weight budget of limit per window (6000/min for
// spot, 2400/min for USDT-M futures).
func NewRateLimiter(limit int, window time.Duration, logger *zap.Logger) *RateLimiter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RateLimiter{
		limit:       limit,
		window:      window,
		windowStart: time.Now(),
		holdAt:      90,
		logger:      logger,
	}
}

// UpdateFromHeader records the used weight from a response header. Empty or
// malformed values are ignored.
func (rl *RateLimiter) UpdateFromHeader(headerValue string) {
	weight, err := strconv.Atoi(headerValue)
	if err != nil || rl.limit <= 0 {
		return
	}

	rl.mu.Lock()
	// A lower reading than before means the venue rolled its window.
	if weight < rl.used || time.Since(rl.windowStart) >= rl.window {
		rl.windowStart = time.Now()
	}
	rl.used = weight
	rl.mu.Unlock()

	pct := float64(weight) / float64(rl.limit) * 100
	switch {
	case pct >= 95:
		rl.logger.Error("request weight near ban threshold",
			zap.Int("used", weight), zap.Int("limit", rl.limit), zap.Float64("pct", pct))
	case pct >= 80:
		rl.logger.Warn("request weight high",
			zap.Int("used", weight), zap.Int("limit", rl.limit), zap.Float64("pct", pct))
	}
}

// GetUsage returns the weight used in the current window.
func (rl *RateLimiter) GetUsage() (used int, limit int, percentage float64) {
	rl.mu.RLock()
	defer rl.mu.RUnlock()
	if rl.limit <= 0 || time.Since(rl.windowStart) >= rl.window {
		return 0, rl.limit, 0
	}
	return rl.used, rl.limit, float64(rl.used) / float64(rl.limit) * 100
}

// Wait returns immediately while usage is below the hold threshold. Above
// it, Wait blocks until the window rolls over or ctx ends.
func (rl *RateLimiter) Wait(ctx context.Context) error {
	rl.mu.RLock()
	elapsed := time.Since(rl.windowStart)
	hold := rl.limit > 0 && elapsed < rl.window &&
		float64(rl.used)/float64(rl.limit)*100 >= rl.holdAt
	remaining := rl.window - elapsed
	rl.mu.RUnlock()
	if !hold {
		return nil
	}

	rl.logger.Warn("holding request until weight window resets", zap.Duration("wait", remaining))
	timer := time.NewTimer(remaining)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
