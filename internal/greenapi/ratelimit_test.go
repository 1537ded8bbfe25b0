package greenapi

import (
	"context"
	"testing"
	"time"
)

func TestLimiterEnforcesInterval(t *testing.T) {
	l := NewLimiter(50 * time.Millisecond)
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 3; i++ {
		if err := l.Wait(ctx); err != nil {
			t.Fatalf("Wait: %v", err)
		}
	}
	elapsed := time.Since(start)

	// First request is immediate (burst 1); two more wait an interval each.
	if elapsed < 100*time.Millisecond {
		t.Errorf("3 requests took %v, want >= 100ms", elapsed)
	}
}

func TestLimiterZeroIntervalDoesNotPace(t *testing.T) {
	l := NewLimiter(0)
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 100; i++ {
		if err := l.Wait(ctx); err != nil {
			t.Fatalf("Wait: %v", err)
		}
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("100 requests took %v with pacing disabled", elapsed)
	}
}

func TestThrottleBlocksRequests(t *testing.T) {
	l := NewLimiter(0)
	l.Throttle(60 * time.Millisecond)

	if !l.Throttled() {
		t.Fatal("expected throttled state")
	}

	start := time.Now()
	if err := l.Wait(context.Background()); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 50*time.Millisecond {
		t.Errorf("Wait returned after %v, want to sit out the throttle window", elapsed)
	}
}

func TestThrottleNeverShortens(t *testing.T) {
	l := NewLimiter(0)
	l.Throttle(200 * time.Millisecond)
	l.Throttle(10 * time.Millisecond)

	l.mu.Lock()
	remaining := time.Until(l.throttledUntil)
	l.mu.Unlock()

	if remaining < 100*time.Millisecond {
		t.Errorf("throttle window shortened to %v", remaining)
	}
}

func TestThrottledWaitHonorsContext(t *testing.T) {
	l := NewLimiter(0)
	l.Throttle(10 * time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if err := l.Wait(ctx); err == nil {
		t.Error("expected context deadline error")
	}
}
