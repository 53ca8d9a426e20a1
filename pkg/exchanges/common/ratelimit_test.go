package common

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRateLimiterUsage(t *testing.T) {
	rl := NewRateLimiter(1000, time.Minute, nil)

	rl.UpdateFromHeader("")
	rl.UpdateFromHeader("abc")
	if used, _, _ := rl.GetUsage(); used != 0 {
		t.Fatalf("used=%d after bad headers, expected 0", used)
	}

	rl.UpdateFromHeader("250")
	used, limit, pct := rl.GetUsage()
	if used != 250 || limit != 1000 || pct != 25 {
		t.Fatalf("usage=(%d,%d,%v), expected (250,1000,25)", used, limit, pct)
	}
	if err := rl.Wait(context.Background()); err != nil {
		t.Fatalf("Wait below threshold: %v", err)
	}
}

func TestRateLimiterWaitHoldsNearLimit(t *testing.T) {
	rl := NewRateLimiter(100, time.Hour, nil)
	rl.UpdateFromHeader("95")

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := rl.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Wait err=%v, expected deadline exceeded", err)
	}

	// The venue reporting less weight means a new window.
	rl.UpdateFromHeader("3")
	if err := rl.Wait(context.Background()); err != nil {
		t.Fatalf("Wait after window roll: %v", err)
	}
}

func TestRateLimiterWindowExpiry(t *testing.T) {
	rl := NewRateLimiter(100, 10*time.Millisecond, nil)
	rl.UpdateFromHeader("99")
	time.Sleep(15 * time.Millisecond)
	if used, _, _ := rl.GetUsage(); used != 0 {
		t.Fatalf("used=%d after window expiry, expected 0", used)
	}
	if err := rl.Wait(context.Background()); err != nil {
		t.Fatalf("Wait after expiry: %v", err)
	}
}
