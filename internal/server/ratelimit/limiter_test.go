package ratelimit

import (
	"testing"
	"time"

	"golang.org/x/time/rate"
)

func TestLimiterAllow(t *testing.T) {
	t.Run("burst is honored", func(t *testing.T) {
		l := NewLimiter(5, time.Minute, 5)
		defer l.Close()
		for i := range 5 {
			result := l.Allow("ip:1.2.3.4")
			if !result.Allowed {
				t.Errorf("Request %d should be allowed", i+1)
			}
			if result.Limit != 5 {
				t.Errorf("Limit = %d, want 5", result.Limit)
			}
		}
		result := l.Allow("ip:1.2.3.4")
		if result.Allowed {
			t.Error("Request over burst should be rejected")
		}
		if result.RetryAfter < time.Second {
			t.Errorf("RetryAfter = %v, want >= 1s", result.RetryAfter)
		}
		if result.Remaining != 0 {
			t.Errorf("Remaining = %d, want 0", result.Remaining)
		}
	})

	t.Run("keys are independent", func(t *testing.T) {
		l := NewLimiter(3, time.Minute, 3)
		defer l.Close()
		for range 3 {
			l.Allow("ip:1.1.1.1")
		}
		if l.Allow("ip:1.1.1.1").Allowed {
			t.Error("Exhausted key should be rejected")
		}
		if !l.Allow("ip:2.2.2.2").Allowed {
			t.Error("Fresh key should be allowed")
		}
	})

	t.Run("allowed result fields", func(t *testing.T) {
		l := NewLimiter(10, time.Minute, 10)
		defer l.Close()
		result := l.Allow("ip:5.6.7.8")
		if !result.Allowed {
			t.Fatal("First request should be allowed")
		}
		if result.Remaining < 0 || result.Remaining > 10 {
			t.Errorf("Remaining = %d, out of range", result.Remaining)
		}
		if result.ResetAt.IsZero() {
			t.Error("ResetAt should be set")
		}
		if result.RetryAfter != 0 {
			t.Errorf("RetryAfter = %v, want 0 when allowed", result.RetryAfter)
		}
	})

	t.Run("nil limiter allows everything", func(t *testing.T) {
		var l *Limiter
		defer l.Close()
		for range 1000 {
			if !l.Allow("ip:any").Allowed {
				t.Fatal("Nil limiter rejected a request")
			}
		}
	})
}

func TestCleanup(t *testing.T) {
	l := NewLimiter(60, time.Minute, 60)
	defer l.Close()
	l.mu.Lock()
	// A full untouched bucket last seen an hour ago.
	l.buckets["stale"] = &bucket{
		limiter:  rate.NewLimiter(l.rate, l.burst),
		lastSeen: time.Now().Add(-time.Hour),
	}
	l.mu.Unlock()

	l.cleanup()

	l.mu.Lock()
	_, exists := l.buckets["stale"]
	l.mu.Unlock()
	if exists {
		t.Error("Stale full bucket should have been removed")
	}
}
