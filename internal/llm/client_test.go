package llm

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
	"unicode/utf8"
)

func TestClient_Complete(t *testing.T) {
	var got map[string]any
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" || r.Method != http.MethodPost {
			t.Errorf("request = %s %s", r.Method, r.URL.Path)
		}
		auth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Error(err)
		}
		_, _ = w.Write([]byte(`{"id":"x","choices":[{"message":{"role":"assistant","content":"hi there"}}]}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/v1/", "secret", Defaults{Model: "m1", MaxTokens: 64, Temperature: 0.5, TopP: 0.9}, time.Second)
	topK := 7
	text, full, err := c.Text(t.Context(), "hello", Request{TopK: &topK})
	if err != nil {
		t.Fatalf("Text: %v", err)
	}
	if text != "hi there" {
		t.Errorf("text = %q, want %q", text, "hi there")
	}
	if full["id"] != "x" {
		t.Errorf("full response = %v", full)
	}
	if auth != "Bearer secret" {
		t.Errorf("Authorization = %q", auth)
	}
	if got["model"] != "m1" || got["max_tokens"] != float64(64) || got["top_k"] != float64(7) || got["top_p"] != 0.9 {
		t.Errorf("upstream body = %v", got)
	}
	msgs, _ := got["messages"].([]any)
	if len(msgs) != 1 {
		t.Fatalf("messages = %v", got["messages"])
	}
	if m := msgs[0].(map[string]any); m["role"] != "user" || m["content"] != "hello" {
		t.Errorf("message = %v", m)
	}
}

func TestClient_NoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()
	c := NewClient(srv.URL, "", Defaults{Model: "m"}, time.Second)
	text, full, err := c.Text(t.Context(), "x", Request{})
	if err != nil {
		t.Fatal(err)
	}
	if text != "" || full == nil {
		t.Errorf("Text = %q, %v", text, full)
	}
}

func TestClient_Errors(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantDetail string
	}{
		{"openai error object", http.StatusBadRequest, `{"error":{"message":"bad model"}}`, "bad model"},
		{"error string", http.StatusTooManyRequests, `{"error":"slow down"}`, "slow down"},
		{"detail", http.StatusUnprocessableEntity, `{"detail":"missing field"}`, "missing field"},
		{"plain text", http.StatusBadGateway, "upstream down\n", "upstream down"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()
			c := NewClient(srv.URL, "", Defaults{Model: "m"}, time.Second)
			_, err := c.Complete(t.Context(), Request{Messages: []Message{{Role: "user", Content: "x"}}})
			var ue *UpstreamError
			if !errors.As(err, &ue) {
				t.Fatalf("error = %v, want *UpstreamError", err)
			}
			if ue.Status != tt.status || ue.Detail != tt.wantDetail {
				t.Errorf("UpstreamError = %d %q, want %d %q", ue.Status, ue.Detail, tt.status, tt.wantDetail)
			}
		})
	}

	t.Run("unreachable", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		srv.Close()
		c := NewClient(srv.URL, "", Defaults{Model: "m"}, time.Second)
		_, err := c.Complete(t.Context(), Request{Messages: []Message{{Role: "user", Content: "x"}}})
		var ue *UpstreamError
		if !errors.As(err, &ue) || ue.Status != 0 || ue.Err == nil {
			t.Fatalf("error = %#v, want *UpstreamError without status", err)
		}
	})
	t.Run("invalid body", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("not json"))
		}))
		defer srv.Close()
		c := NewClient(srv.URL, "", Defaults{Model: "m"}, time.Second)
		_, err := c.Complete(t.Context(), Request{Messages: []Message{{Role: "user", Content: "x"}}})
		var ue *UpstreamError
		if !errors.As(err, &ue) || ue.Status != http.StatusOK {
			t.Fatalf("error = %v, want *UpstreamError", err)
		}
	})
	t.Run("disabled", func(t *testing.T) {
		c := NewClient("", "", Defaults{}, time.Second)
		if _, err := c.Complete(t.Context(), Request{Messages: []Message{{Role: "user"}}}); !errors.Is(err, ErrDisabled) {
			t.Errorf("error = %v, want ErrDisabled", err)
		}
	})
	t.Run("no messages", func(t *testing.T) {
		c := NewClient("http://127.0.0.1:1", "", Defaults{}, time.Second)
		if _, err := c.Complete(t.Context(), Request{}); err == nil {
			t.Error("expected error")
		}
	})
}

func TestErrorDetail_Truncates(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"ascii", strings.Repeat("a", 600)},
		{"two byte runes", strings.Repeat("é", 300)},
		{"offset runes", "a" + strings.Repeat("€", 300)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := errorDetail([]byte(tt.body))
			if len(got) > maxDetail || len(got) < maxDetail-3 {
				t.Errorf("len = %d", len(got))
			}
			if !utf8.ValidString(got) {
				t.Errorf("detail is not valid UTF-8: %q", got[len(got)-4:])
			}
			if !strings.HasPrefix(tt.body, got) {
				t.Error("detail is not a prefix of the body")
			}
		})
	}
}
