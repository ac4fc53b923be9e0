package ratelimit

import (
	"net/http/httptest"
	"testing"
	"time"
)

func newTestLimiter(t *testing.T, requests int, window time.Duration, burst int) (*Limiter, *time.Time) {
	t.Helper()
	l := NewLimiter(requests, window, burst)
	t.Cleanup(l.Close)
	now := time.Unix(1_700_000_000, 0)
	l.now = func() time.Time { return now }
	return l, &now
}

func TestLimiter_Allow(t *testing.T) {
	l, now := newTestLimiter(t, 60, time.Minute, 3)
	for i := range 3 {
		r := l.Allow("ip:a:read")
		if !r.Allowed {
			t.Fatalf("request %d denied within burst", i)
		}
		if r.Remaining != 2-i {
			t.Errorf("request %d Remaining = %d, want %d", i, r.Remaining, 2-i)
		}
	}
	r := l.Allow("ip:a:read")
	if r.Allowed {
		t.Fatal("request over burst allowed")
	}
	if r.RetryAfter != time.Second {
		t.Errorf("RetryAfter = %v, want 1s", r.RetryAfter)
	}
	if r.Limit != 60 {
		t.Errorf("Limit = %d, want 60", r.Limit)
	}

	if !l.Allow("ip:b:read").Allowed {
		t.Error("other key shares the bucket")
	}

	*now = now.Add(time.Second)
	if !l.Allow("ip:a:read").Allowed {
		t.Error("bucket did not refill")
	}
}

func TestLimiter_Cleanup(t *testing.T) {
	l, now := newTestLimiter(t, 60, time.Minute, 1)
	l.Allow("k")
	*now = now.Add(11 * time.Minute)
	l.cleanup()
	l.mu.Lock()
	n := len(l.buckets)
	l.mu.Unlock()
	if n != 0 {
		t.Errorf("%d buckets left after cleanup, want 0", n)
	}
	l.Close()
	l.Close()
}

func TestConfig_Match(t *testing.T) {
	cfg := NewConfig(100, 10, 0)
	defer cfg.Close()
	tests := []struct {
		method, path, want string
	}{
		{"GET", "/health", ""},
		{"GET", "/api/v1/health", ""},
		{"GET", "/api/v1/data/users", "read"},
		{"POST", "/api/v1/upload/csv", "write"},
		{"POST", "/api/v1/batch-upload", "write"},
		{"POST", "/api/v1/llm/text", ""},
		{"OPTIONS", "/api/v1/data/users", ""},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			tier := cfg.Match(tt.method, tt.path)
			got := ""
			if tier != nil {
				got = tier.Name
			}
			if got != tt.want {
				t.Errorf("Match(%s, %s) = %q, want %q", tt.method, tt.path, got, tt.want)
			}
		})
	}
	var nilCfg *Config
	if nilCfg.Match("GET", "/x") != nil {
		t.Error("nil config should not limit")
	}
}

func TestWriteHeaders(t *testing.T) {
	w := httptest.NewRecorder()
	WriteHeaders(w, Result{Allowed: true, Limit: 60, Remaining: 45, ResetAt: time.Unix(1706012345, 0)})
	if got := w.Header().Get("X-RateLimit-Limit"); got != "60" {
		t.Errorf("X-RateLimit-Limit = %s, want 60", got)
	}
	if got := w.Header().Get("X-RateLimit-Remaining"); got != "45" {
		t.Errorf("X-RateLimit-Remaining = %s, want 45", got)
	}
	if got := w.Header().Get("X-RateLimit-Reset"); got != "1706012345" {
		t.Errorf("X-RateLimit-Reset = %s, want 1706012345", got)
	}
	if got := w.Header().Get("Retry-After"); got != "" {
		t.Errorf("Retry-After = %s, want unset", got)
	}

	w = httptest.NewRecorder()
	rw := NewResponseWriter(w, Result{Limit: 1, RetryAfter: 30 * time.Second})
	rw.WriteHeader(429)
	if got := w.Header().Get("Retry-After"); got != "30" {
		t.Errorf("Retry-After = %s, want 30", got)
	}
	if rw.Unwrap() != w {
		t.Error("Unwrap() did not return the wrapped writer")
	}
}

func TestBuildKey(t *testing.T) {
	if got := BuildKey(ScopeIP, "1.2.3.4", "read"); got != "ip:1.2.3.4:read" {
		t.Errorf("BuildKey = %q", got)
	}
}
