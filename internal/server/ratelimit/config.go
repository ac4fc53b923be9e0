// Defines rate limit tiers and routing rules.

package ratelimit

import (
	"strings"
	"time"
)

// Scope defines how rate limit keys are determined.
type Scope int

const (
	// ScopeIP uses client IP address as the rate limit key.
	ScopeIP Scope = iota
)

// Tier defines a rate limit tier with its limiter and scope.
type Tier struct {
	Name    string
	Limiter *Limiter
	Scope   Scope
}

// Config holds the limiters of each tier. A nil tier is unlimited.
type Config struct {
	Read  *Tier
	Write *Tier
	LLM   *Tier
}

// NewConfig creates a Config from per-minute budgets. A budget of 0 disables
// the tier. Bursts are a sixth of the budget, at least 1.
func NewConfig(readPerMin, writePerMin, llmPerMin int) *Config {
	return &Config{
		Read:  newTier("read", readPerMin),
		Write: newTier("write", writePerMin),
		LLM:   newTier("llm", llmPerMin),
	}
}

func newTier(name string, perMin int) *Tier {
	if perMin <= 0 {
		return nil
	}
	return &Tier{
		Name:    name,
		Limiter: NewLimiter(perMin, time.Minute, max(perMin/6, 1)),
		Scope:   ScopeIP,
	}
}

// Match returns the tier for a request, or nil when it is not rate limited.
func (c *Config) Match(method, path string) *Tier {
	if c == nil || isHealth(path) {
		return nil
	}
	switch method {
	case "GET", "HEAD":
		return c.Read
	case "POST":
		if strings.HasPrefix(path, "/api/v1/llm/") {
			return c.LLM
		}
		return c.Write
	case "PUT", "PATCH", "DELETE":
		return c.Write
	}
	return nil
}

// Close stops all limiter cleanup goroutines.
func (c *Config) Close() {
	if c == nil {
		return
	}
	for _, t := range []*Tier{c.Read, c.Write, c.LLM} {
		if t != nil {
			t.Limiter.Close()
		}
	}
}

func isHealth(path string) bool {
	return path == "/health" || path == "/api/v1/health"
}
