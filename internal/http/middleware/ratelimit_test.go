package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestRateLimiterAllowRefills(t *testing.T) {
	rl := NewRateLimiter(1, 2)
	defer rl.Close()

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	if !rl.Allow("a") || !rl.Allow("a") {
		t.Fatalf("expected burst of 2 to be allowed")
	}
	if rl.Allow("a") {
		t.Fatalf("expected third request to be limited")
	}
	if !rl.Allow("b") {
		t.Fatalf("expected other client to be unaffected")
	}

	now = now.Add(1500 * time.Millisecond)
	if !rl.Allow("a") {
		t.Fatalf("expected bucket to refill")
	}
}

func TestRateLimiterEvictsStaleBuckets(t *testing.T) {
	rl := NewRateLimiter(1, 1)
	defer rl.Close()

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }
	rl.Allow("a")

	rl.evict(now.Add(time.Minute))
	rl.mu.Lock()
	n := len(rl.buckets)
	rl.mu.Unlock()
	if n != 0 {
		t.Fatalf("expected stale bucket to be evicted, got %d", n)
	}
	rl.Close()
}

func TestRateLimitMiddleware(t *testing.T) {
	rl := NewRateLimiter(0, 1)
	defer rl.Close()

	handler := rl.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	send := func() int {
		req := httptest.NewRequest(http.MethodPost, "/ai/ask", nil)
		req.Header.Set("X-Real-Ip", "10.0.0.1")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	if code := send(); code != http.StatusOK {
		t.Fatalf("expected first request to pass, got %d", code)
	}
	if code := send(); code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", code)
	}
}
