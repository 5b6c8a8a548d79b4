// internal/platform/rate/rate_test.go
package rate

import (
	"context"
	"testing"
	"time"
)

func TestAllowConsumesBurst(t *testing.T) {
	l := New(1, 3)

	for i := 0; i < 3; i++ {
		if !l.Allow() {
			t.Fatalf("allow %d should succeed with full bucket", i)
		}
	}
	if l.Allow() {
		t.Error("bucket should be empty after consuming burst")
	}
}

func TestRefill(t *testing.T) {
	l := New(100, 1) // 100 tokens/s: refill in ~10ms

	if !l.Allow() {
		t.Fatal("first token should be available")
	}
	if l.Allow() {
		t.Fatal("bucket should be empty")
	}

	time.Sleep(25 * time.Millisecond)

	if !l.Allow() {
		t.Error("token should have refilled after waiting")
	}
}

func TestWaitRespectsCancellation(t *testing.T) {
	l := New(0.1, 1) // un token cada 10s
	l.Allow()        // vaciar bucket

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	err := l.Wait(ctx)
	if err == nil {
		t.Fatal("Wait should fail once context expires")
	}
	if err != context.DeadlineExceeded {
		t.Errorf("got %v, want context.DeadlineExceeded", err)
	}
}

func TestWaitProceedsWithTokens(t *testing.T) {
	l := New(10, 2)

	ctx := context.Background()
	if err := l.Wait(ctx); err != nil {
		t.Fatalf("Wait with available tokens should not fail: %v", err)
	}
}

func TestClampedConstruction(t *testing.T) {
	l := New(-5, 0)
	if l.Rate() != 1 || l.Burst() != 1 {
		t.Errorf("invalid params should clamp to 1/1, got %v/%v", l.Rate(), l.Burst())
	}
}

func TestReset(t *testing.T) {
	l := New(0.001, 2)
	l.Allow()
	l.Allow()

	l.Reset()
	if l.Tokens() < 2 {
		t.Errorf("reset should refill bucket, tokens=%v", l.Tokens())
	}
}
