// Package server implements the HTTP server and routing logic.
package server

import (
	"net/http"

	"github.com/maruel/tabserve/internal/server/handlers"
	"github.com/maruel/tabserve/internal/server/ipgeo"
	"github.com/maruel/tabserve/internal/server/metrics"
	"github.com/maruel/tabserve/internal/server/ratelimit"
)

// NewRouter creates and configures the HTTP router.
// Serves the JSON API at /api/v1/*, health checks and Prometheus metrics.
// limiters, geo and m may be nil.
func NewRouter(svc *handlers.Services, cfg *handlers.Config, limiters *ratelimit.Config, geo *ipgeo.Checker, m *metrics.Metrics) http.Handler {
	mux := &http.ServeMux{}
	hh := handlers.NewHealthHandler(cfg.Version)
	dh := &handlers.DataHandler{Svc: svc, Cfg: cfg}
	th := &handlers.TableHandler{Svc: svc, Cfg: cfg}
	uh := &handlers.UploadHandler{Svc: svc, Cfg: cfg}
	doch := &handlers.DocumentHandler{Svc: svc, Cfg: cfg}
	lh := &handlers.LLMHandler{Svc: svc}
	sh := &handlers.SchemaHandler{}

	// Health check
	mux.Handle("GET /health", Wrap(hh.Health, cfg, limiters))
	mux.Handle("GET /api/v1/health", Wrap(hh.Health, cfg, limiters))

	// File-backed datasets
	mux.Handle("GET /api/v1/datasets", Wrap(dh.ListDatasets, cfg, limiters))
	mux.Handle("GET /api/v1/data/{name}", Wrap(dh.Query, cfg, limiters))
	mux.Handle("GET /api/v1/data/{name}/count", Wrap(dh.Count, cfg, limiters))
	mux.Handle("GET /api/v1/data/{name}/schema", Wrap(dh.Schema, cfg, limiters))
	mux.Handle("GET /api/v1/data/{name}/jsonschema", Wrap(dh.JSONSchema, cfg, limiters))

	// Request body schemas
	mux.Handle("GET /api/v1/schema/{type}", Wrap(sh.RequestSchema, cfg, limiters))

	// Imports
	mux.Handle("POST /api/v1/upload/csv", WrapRaw(uh.UploadCSV, cfg, limiters))
	mux.Handle("POST /api/v1/upload/json", WrapRaw(uh.UploadJSON, cfg, limiters))
	mux.Handle("POST /api/v1/batch-upload", Wrap(uh.BatchUpload, cfg, limiters))
	mux.Handle("POST /api/v1/docx-batch-upload", Wrap(uh.DocxBatchUpload, cfg, limiters))

	// Imported tables
	mux.Handle("GET /api/v1/tables", Wrap(th.ListTables, cfg, limiters))
	mux.Handle("GET /api/v1/tables/{table}", Wrap(th.QueryTable, cfg, limiters))
	mux.Handle("GET /api/v1/collections", Wrap(th.ListCollections, cfg, limiters))
	mux.Handle("GET /api/v1/collections/{id}", Wrap(th.GetCollection, cfg, limiters))
	mux.Handle("GET /api/v1/collections/{id}/tables", Wrap(th.ListCollectionTables, cfg, limiters))

	// Documents
	mux.Handle("GET /api/v1/docx-documents", Wrap(doch.ListDocuments, cfg, limiters))
	mux.Handle("GET /api/v1/docx-documents/{id}", Wrap(doch.GetDocument, cfg, limiters))

	// LLM proxy
	mux.Handle("POST /api/v1/llm/completion", Wrap(lh.Completion, cfg, limiters))
	mux.Handle("POST /api/v1/llm/text", Wrap(lh.Text, cfg, limiters))

	var h http.Handler = mux
	if m != nil {
		mux.Handle("GET /metrics", m.Handler())
		h = m.Middleware(mux)
	}
	return RequestMetadata(geo)(h)
}
