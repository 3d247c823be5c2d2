package middleware

import (
	"testing"
	"time"
)

func TestRateLimiterAllowsUnderLimit(t *testing.T) {
	rl := NewRateLimiter(3, time.Minute, time.Minute)

	for i := 0; i < 2; i++ {
		rl.RecordAttempt("10.0.0.1", false)
	}
	allowed, remaining, _ := rl.Check("10.0.0.1")
	if !allowed {
		t.Fatal("expected attempts under the limit to be allowed")
	}
	if remaining != 1 {
		t.Errorf("remaining = %d, want 1", remaining)
	}
}

func TestRateLimiterLocksAfterMaxAttempts(t *testing.T) {
	rl := NewRateLimiter(3, time.Minute, time.Minute)

	for i := 0; i < 3; i++ {
		rl.RecordAttempt("10.0.0.2", false)
	}
	allowed, _, lockDuration := rl.Check("10.0.0.2")
	if allowed {
		t.Fatal("expected lockout after max failed attempts")
	}
	if lockDuration <= 0 {
		t.Errorf("lockDuration = %v, want positive", lockDuration)
	}
}

func TestRateLimiterClearsOnSuccess(t *testing.T) {
	rl := NewRateLimiter(3, time.Minute, time.Minute)

	rl.RecordAttempt("10.0.0.3", false)
	rl.RecordAttempt("10.0.0.3", false)
	rl.RecordAttempt("10.0.0.3", true)

	allowed, remaining, _ := rl.Check("10.0.0.3")
	if !allowed || remaining != 3 {
		t.Errorf("after success: allowed=%v remaining=%d, want full budget", allowed, remaining)
	}
}

func TestRateLimiterIsolatesIPs(t *testing.T) {
	rl := NewRateLimiter(1, time.Minute, time.Minute)

	rl.RecordAttempt("10.0.0.4", false)
	if allowed, _, _ := rl.Check("10.0.0.4"); allowed {
		t.Error("locked IP still allowed")
	}
	if allowed, _, _ := rl.Check("10.0.0.5"); !allowed {
		t.Error("unrelated IP blocked")
	}
}
