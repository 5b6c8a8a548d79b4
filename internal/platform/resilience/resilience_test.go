package resilience

import (
	"testing"
	"time"
)

func TestRetryPolicyDelayGrows(t *testing.T) {
	p := RetryPolicy{Base: 100 * time.Millisecond, Multiplier: 2.0, Jitter: 0, Max: 10 * time.Second}

	d1 := p.Delay(1)
	d2 := p.Delay(2)
	d3 := p.Delay(3)

	if d1 != 100*time.Millisecond {
		t.Errorf("attempt 1: expected 100ms, got %v", d1)
	}
	if d2 != 200*time.Millisecond {
		t.Errorf("attempt 2: expected 200ms, got %v", d2)
	}
	if d3 != 400*time.Millisecond {
		t.Errorf("attempt 3: expected 400ms, got %v", d3)
	}
}

func TestRetryPolicyCapped(t *testing.T) {
	p := RetryPolicy{Base: 1 * time.Second, Multiplier: 2.0, Jitter: 0, Max: 5 * time.Second}

	if d := p.Delay(10); d != 5*time.Second {
		t.Errorf("expected cap at 5s, got %v", d)
	}
}

func TestRetryPolicyJitterBounded(t *testing.T) {
	p := RetryPolicy{Base: 100 * time.Millisecond, Multiplier: 2.0, Jitter: 0.5, Max: 10 * time.Second}

	for i := 0; i < 50; i++ {
		d := p.Delay(1)
		if d < 100*time.Millisecond || d > 150*time.Millisecond {
			t.Fatalf("jittered delay out of bounds: %v", d)
		}
	}
}

func TestRetryPolicyNormalize(t *testing.T) {
	p := RetryPolicy{}.Normalize()

	if p.Base != 1*time.Second {
		t.Errorf("expected default base 1s, got %v", p.Base)
	}
	if p.Multiplier != 2.0 {
		t.Errorf("expected default multiplier 2.0, got %v", p.Multiplier)
	}
	if p.Max != 60*time.Second {
		t.Errorf("expected default max 60s, got %v", p.Max)
	}
}

func TestCircuitBreakerOpensAfterThreshold(t *testing.T) {
	cb := NewCircuitBreaker("whois", 3, 1*time.Second, 2)

	if cb.State() != StateClosed {
		t.Fatal("expected closed initially")
	}

	cb.RecordFailure()
	cb.RecordFailure()
	if cb.State() != StateClosed {
		t.Error("should stay closed below threshold")
	}

	cb.RecordFailure()
	if cb.State() != StateOpen {
		t.Error("should open at threshold")
	}
	if cb.Allow() {
		t.Error("open circuit should reject")
	}
}

func TestCircuitBreakerHalfOpenRecovery(t *testing.T) {
	cb := NewCircuitBreaker("whois", 1, 10*time.Millisecond, 2)

	cb.RecordFailure()
	if cb.State() != StateOpen {
		t.Fatal("expected open")
	}

	time.Sleep(20 * time.Millisecond)

	if !cb.Allow() {
		t.Fatal("expected half-open probe allowed after cooldown")
	}
	if cb.State() != StateHalfOpen {
		t.Fatalf("expected half-open, got %v", cb.State())
	}

	cb.RecordSuccess()
	cb.RecordSuccess()
	if cb.State() != StateClosed {
		t.Errorf("expected closed after %d successes, got %v", 2, cb.State())
	}
}

func TestCircuitBreakerHalfOpenFailureReopens(t *testing.T) {
	cb := NewCircuitBreaker("whois", 1, 10*time.Millisecond, 3)

	cb.RecordFailure()
	time.Sleep(20 * time.Millisecond)
	cb.Allow()

	cb.RecordFailure()
	if cb.State() != StateOpen {
		t.Errorf("failure in half-open should re-open, got %v", cb.State())
	}
}

func TestCircuitBreakerSuccessResetsFailures(t *testing.T) {
	cb := NewCircuitBreaker("whois", 3, time.Second, 2)

	cb.RecordFailure()
	cb.RecordFailure()
	cb.RecordSuccess()
	cb.RecordFailure()
	cb.RecordFailure()

	if cb.State() != StateClosed {
		t.Error("success should reset the failure count")
	}
}

func TestBreakerSetPerModule(t *testing.T) {
	bs := NewBreakerSet(1, time.Second, 2)

	whois := bs.For("whois")
	resolve := bs.For("resolve")

	whois.RecordFailure()

	if whois.State() != StateOpen {
		t.Error("whois breaker should be open")
	}
	if resolve.State() != StateClosed {
		t.Error("resolve breaker should be unaffected")
	}
	if bs.For("whois") != whois {
		t.Error("For should return the same breaker instance")
	}
	if len(bs.Stats()) != 2 {
		t.Errorf("expected 2 breakers in stats, got %d", len(bs.Stats()))
	}
}
