package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestWait_SameKey_EnforcesMinDelay(t *testing.T) {
	pacer := NewPacer(100 * time.Millisecond)
	ctx := context.Background()

	// First call should return immediately.
	if err := pacer.Wait(ctx, "adzuna"); err != nil {
		t.Fatalf("first wait: %v", err)
	}

	start := time.Now()
	if err := pacer.Wait(ctx, "adzuna"); err != nil {
		t.Fatalf("second wait: %v", err)
	}
	elapsed := time.Since(start)

	// Should have waited at least ~100ms (allow 80ms for timer jitter).
	if elapsed < 80*time.Millisecond {
		t.Errorf("expected >= 80ms wait, got %v", elapsed)
	}
}

func TestWait_DifferentKeys_NoCrossBlocking(t *testing.T) {
	pacer := NewPacer(500 * time.Millisecond)
	ctx := context.Background()

	if err := pacer.Wait(ctx, "adzuna"); err != nil {
		t.Fatalf("adzuna wait: %v", err)
	}

	// Immediately wait on another key — should NOT block.
	start := time.Now()
	if err := pacer.Wait(ctx, "serpapi"); err != nil {
		t.Fatalf("serpapi wait: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 250*time.Millisecond {
		t.Errorf("expected serpapi wait to be near-instant, got %v", elapsed)
	}
}

func TestWait_ContextCancellation(t *testing.T) {
	pacer := NewPacer(5 * time.Second) // long delay

	// First call to seed the limiter.
	if err := pacer.Wait(context.Background(), "adzuna"); err != nil {
		t.Fatalf("first wait: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel() // cancel immediately

	if err := pacer.Wait(ctx, "adzuna"); err == nil {
		t.Fatal("expected error from cancelled context, got nil")
	}
}

func TestWait_ZeroDelayNeverBlocks(t *testing.T) {
	pacer := NewPacer(0)
	ctx := context.Background()

	start := time.Now()
	for range 5 {
		if err := pacer.Wait(ctx, "adzuna"); err != nil {
			t.Fatalf("wait: %v", err)
		}
	}
	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Errorf("zero-delay pacer blocked for %v", elapsed)
	}
}
