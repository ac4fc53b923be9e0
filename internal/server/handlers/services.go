// Defines shared service dependencies for handlers.

package handlers

import (
	"github.com/maruel/tabserve/internal/ingest"
	"github.com/maruel/tabserve/internal/llm"
	"github.com/maruel/tabserve/internal/storage"
	"github.com/maruel/tabserve/internal/tabular"
)

// Services holds all service dependencies for handlers.
type Services struct {
	Engine *tabular.Engine
	Store  *storage.Store
	Ingest *ingest.Ingester
	LLM    *llm.Client // may be nil
}

// Config holds configuration values needed by handlers.
type Config struct {
	storage.ServerConfig
	// DataDir is the absolute directory dataset names resolve in.
	DataDir string
	Version string
}

// pageLimit applies the default page size and checks the upper bound.
func (c *Config) pageLimit(limit *int) (int, error) {
	if limit == nil {
		return c.DefaultPageSize, nil
	}
	if *limit > c.MaxPageSize {
		return 0, invalidLimit(c.MaxPageSize)
	}
	return *limit, nil
}
