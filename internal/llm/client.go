// Package llm proxies chat completion requests to an OpenAI-compatible
// endpoint.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"
)

// ErrDisabled is returned when no upstream is configured.
var ErrDisabled = errors.New("llm endpoint not configured")

// Message is one chat turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request is a chat completion request. Nil fields take the client defaults.
type Request struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	MaxTokens   *int      `json:"max_tokens,omitempty"`
	Temperature *float64  `json:"temperature,omitempty"`
	TopP        *float64  `json:"top_p,omitempty"`
	TopK        *int      `json:"top_k,omitempty"`
}

// Defaults are applied to unset Request fields.
type Defaults struct {
	Model       string
	MaxTokens   int
	Temperature float64
	TopP        float64
	TopK        int
}

// UpstreamError is a failed exchange with the upstream endpoint: a non-2xx
// reply, or no usable reply at all when Status is 0.
type UpstreamError struct {
	Status int
	Detail string
	Err    error
}

func (e *UpstreamError) Error() string {
	if e.Status == 0 {
		return "llm request failed: " + e.Detail
	}
	return fmt.Sprintf("llm upstream returned %d: %s", e.Status, e.Detail)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

func transportError(err error) *UpstreamError {
	return &UpstreamError{Detail: err.Error(), Err: err}
}

// Client talks to one upstream endpoint. It is safe for concurrent use.
type Client struct {
	baseURL  string
	apiKey   string
	defaults Defaults
	hc       *http.Client
}

// NewClient returns a client for baseURL, e.g. "http://host:8000/v1".
func NewClient(baseURL, apiKey string, defaults Defaults, timeout time.Duration) *Client {
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		apiKey:   apiKey,
		defaults: defaults,
		hc:       &http.Client{Timeout: timeout},
	}
}

// Complete sends req and returns the decoded upstream response as is.
func (c *Client) Complete(ctx context.Context, req Request) (map[string]any, error) {
	if c == nil || c.baseURL == "" {
		return nil, ErrDisabled
	}
	if len(req.Messages) == 0 {
		return nil, errors.New("messages is required")
	}
	c.applyDefaults(&req)
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	hreq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	hreq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		hreq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	start := time.Now()
	resp, err := c.hc.Do(hreq)
	if err != nil {
		return nil, transportError(err)
	}
	defer func() { _ = resp.Body.Close() }()
	data, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return nil, transportError(fmt.Errorf("failed to read response: %w", err))
	}
	slog.DebugContext(ctx, "llm", "model", req.Model, "status", resp.StatusCode, "dur", time.Since(start).Round(time.Millisecond))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &UpstreamError{Status: resp.StatusCode, Detail: errorDetail(data)}
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, &UpstreamError{Status: resp.StatusCode, Detail: "invalid response: " + err.Error(), Err: err}
	}
	return out, nil
}

// Text sends prompt as a single user message and returns the first choice's
// content with the full response. The text is empty when there is no choice.
func (c *Client) Text(ctx context.Context, prompt string, opts Request) (string, map[string]any, error) {
	opts.Messages = []Message{{Role: "user", Content: prompt}}
	resp, err := c.Complete(ctx, opts)
	if err != nil {
		return "", nil, err
	}
	return firstContent(resp), resp, nil
}

func (c *Client) applyDefaults(req *Request) {
	d := c.defaults
	if req.Model == "" {
		req.Model = d.Model
	}
	if req.MaxTokens == nil && d.MaxTokens > 0 {
		req.MaxTokens = &d.MaxTokens
	}
	if req.Temperature == nil {
		req.Temperature = &d.Temperature
	}
	if req.TopP == nil && d.TopP > 0 {
		req.TopP = &d.TopP
	}
	if req.TopK == nil && d.TopK > 0 {
		req.TopK = &d.TopK
	}
}

func firstContent(resp map[string]any) string {
	choices, _ := resp["choices"].([]any)
	if len(choices) == 0 {
		return ""
	}
	choice, _ := choices[0].(map[string]any)
	msg, _ := choice["message"].(map[string]any)
	s, _ := msg["content"].(string)
	return s
}

const maxDetail = 512

// errorDetail extracts the upstream error message when the body is JSON.
func errorDetail(data []byte) string {
	var v struct {
		Error  json.RawMessage `json:"error"`
		Detail string          `json:"detail"`
	}
	if json.Unmarshal(data, &v) == nil {
		var msg string
		var obj struct {
			Message string `json:"message"`
		}
		switch {
		case json.Unmarshal(v.Error, &msg) == nil && msg != "":
			return msg
		case json.Unmarshal(v.Error, &obj) == nil && obj.Message != "":
			return obj.Message
		case v.Detail != "":
			return v.Detail
		}
	}
	s := strings.TrimSpace(string(data))
	if len(s) > maxDetail {
		i := maxDetail
		for i > 0 && !utf8.RuneStart(s[i]) {
			i--
		}
		s = s[:i]
	}
	return s
}
