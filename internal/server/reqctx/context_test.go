package reqctx

import (
	"net/http"
	"testing"

	"github.com/maruel/ksid"
)

func TestGetClientIP(t *testing.T) {
	tests := []struct {
		name       string
		headers    map[string]string
		remoteAddr string
		want       string
	}{
		{"X-Forwarded-For single IP", map[string]string{"X-Forwarded-For": "203.0.113.195"}, "127.0.0.1:8080", "203.0.113.195"},
		{"X-Forwarded-For multiple IPs", map[string]string{"X-Forwarded-For": "203.0.113.195, 70.41.3.18"}, "127.0.0.1:8080", "203.0.113.195"},
		{"X-Forwarded-For with spaces", map[string]string{"X-Forwarded-For": "  203.0.113.195  "}, "127.0.0.1:8080", "203.0.113.195"},
		{"X-Real-IP", map[string]string{"X-Real-IP": "203.0.113.195"}, "127.0.0.1:8080", "203.0.113.195"},
		{"X-Forwarded-For wins over X-Real-IP", map[string]string{"X-Forwarded-For": "203.0.113.195", "X-Real-IP": "10.0.0.1"}, "127.0.0.1:8080", "203.0.113.195"},
		{"RemoteAddr with port", nil, "192.168.1.1:12345", "192.168.1.1"},
		{"RemoteAddr without port", nil, "192.168.1.1", "192.168.1.1"},
		{"IPv6 RemoteAddr with port", nil, "[::1]:8080", "::1"},
		{"IPv6 RemoteAddr without port", nil, "[::1]", "::1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := http.NewRequest(http.MethodGet, "/", http.NoBody)
			if err != nil {
				t.Fatal(err)
			}
			req.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			if got := GetClientIP(req); got != tt.want {
				t.Errorf("GetClientIP() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestContextValues(t *testing.T) {
	ctx := t.Context()
	if ClientIP(ctx) != "" || UserAgent(ctx) != "" || CountryCode(ctx) != "" || !RequestID(ctx).IsZero() {
		t.Fatal("empty context should yield zero values")
	}
	id := ksid.NewID()
	ctx = WithClientIP(ctx, "10.0.0.1")
	ctx = WithUserAgent(ctx, "curl/8")
	ctx = WithCountryCode(ctx, "CA")
	ctx = WithRequestID(ctx, id)
	if got := ClientIP(ctx); got != "10.0.0.1" {
		t.Errorf("ClientIP() = %q, want %q", got, "10.0.0.1")
	}
	if got := UserAgent(ctx); got != "curl/8" {
		t.Errorf("UserAgent() = %q, want %q", got, "curl/8")
	}
	if got := CountryCode(ctx); got != "CA" {
		t.Errorf("CountryCode() = %q, want %q", got, "CA")
	}
	if got := RequestID(ctx); got != id {
		t.Errorf("RequestID() = %v, want %v", got, id)
	}
}
