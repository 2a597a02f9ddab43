package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestWriteHeaders(t *testing.T) {
	t.Run("allowed", func(t *testing.T) {
		w := httptest.NewRecorder()
		WriteHeaders(w, Result{
			Allowed:   true,
			Limit:     60,
			Remaining: 42,
			ResetAt:   time.Unix(1700000000, 0),
		})
		if got := w.Header().Get("X-RateLimit-Limit"); got != "60" {
			t.Errorf("X-RateLimit-Limit = %q", got)
		}
		if got := w.Header().Get("X-RateLimit-Remaining"); got != "42" {
			t.Errorf("X-RateLimit-Remaining = %q", got)
		}
		if got := w.Header().Get("X-RateLimit-Reset"); got != "1700000000" {
			t.Errorf("X-RateLimit-Reset = %q", got)
		}
		if got := w.Header().Get("Retry-After"); got != "" {
			t.Errorf("Retry-After = %q, want unset", got)
		}
	})

	t.Run("rejected sets Retry-After", func(t *testing.T) {
		w := httptest.NewRecorder()
		WriteHeaders(w, Result{Limit: 60, RetryAfter: 3 * time.Second})
		if got := w.Header().Get("Retry-After"); got != "3" {
			t.Errorf("Retry-After = %q, want 3", got)
		}
	})
}

func TestResponseWriter(t *testing.T) {
	result := Result{Allowed: true, Limit: 60, Remaining: 10, ResetAt: time.Unix(1700000000, 0)}

	t.Run("headers precede WriteHeader", func(t *testing.T) {
		rec := httptest.NewRecorder()
		rw := NewResponseWriter(rec, result)
		rw.WriteHeader(http.StatusAccepted)
		if rec.Code != http.StatusAccepted {
			t.Errorf("Code = %d", rec.Code)
		}
		if got := rec.Header().Get("X-RateLimit-Limit"); got != "60" {
			t.Errorf("X-RateLimit-Limit = %q", got)
		}
	})

	t.Run("headers precede Write", func(t *testing.T) {
		rec := httptest.NewRecorder()
		rw := NewResponseWriter(rec, result)
		if _, err := rw.Write([]byte("body")); err != nil {
			t.Fatal(err)
		}
		if got := rec.Header().Get("X-RateLimit-Remaining"); got != "10" {
			t.Errorf("X-RateLimit-Remaining = %q", got)
		}
		if rec.Body.String() != "body" {
			t.Errorf("Body = %q", rec.Body.String())
		}
	})

	t.Run("headers written once", func(t *testing.T) {
		rec := httptest.NewRecorder()
		rw := NewResponseWriter(rec, result)
		rw.WriteHeader(http.StatusOK)
		if _, err := rw.Write([]byte("x")); err != nil {
			t.Fatal(err)
		}
		if got := rec.Header().Values("X-RateLimit-Limit"); len(got) != 1 {
			t.Errorf("X-RateLimit-Limit written %d times", len(got))
		}
	})
}
