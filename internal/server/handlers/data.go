// Serves queries over the CSV and JSON files of the data directory.

package handlers

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/invopop/jsonschema"
	"github.com/maruel/tabserve/internal/server/dto"
	"github.com/maruel/tabserve/internal/tabular"
)

// DataHandler handles dataset requests.
type DataHandler struct {
	Svc *Services
	Cfg *Config
}

// resolve maps a dataset name to a file inside the data directory. A name
// without a .csv or .json suffix tries <name>.csv then <name>.json.
func (h *DataHandler) resolve(name string) (string, error) {
	candidates := []string{name}
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv", ".json":
	default:
		candidates = []string{name + ".csv", name + ".json"}
	}
	root := h.Cfg.DataDir
	for _, c := range candidates {
		if filepath.IsAbs(c) || !filepath.IsLocal(c) {
			return "", dto.InvalidPath(name)
		}
		p := filepath.Join(root, c)
		fi, err := os.Stat(p)
		if err != nil || !fi.Mode().IsRegular() {
			continue
		}
		if !confined(root, p) {
			return "", dto.InvalidPath(name)
		}
		return p, nil
	}
	return "", dto.DatasetNotFound(name)
}

// confined reports whether p, symlinks followed, lies inside root. It fails
// closed when either side cannot be resolved.
func confined(root, p string) bool {
	real, err := filepath.EvalSymlinks(p)
	if err != nil {
		return false
	}
	rootReal, err := filepath.EvalSymlinks(root)
	if err != nil {
		return false
	}
	rel, err := filepath.Rel(rootReal, real)
	return err == nil && filepath.IsLocal(rel)
}

// Query returns one filtered, sorted page of a dataset.
func (h *DataHandler) Query(ctx context.Context, req *dto.QueryDataRequest) (*dto.PageResponse, error) {
	limit, err := h.Cfg.pageLimit(req.Limit)
	if err != nil {
		return nil, err
	}
	path, err := h.resolve(req.Name)
	if err != nil {
		return nil, err
	}
	p := tabular.Params{Limit: limit, Sort: req.Sort, Filter: req.Filter}
	if req.Offset != nil {
		p.Offset = *req.Offset
	}
	page, err := h.Svc.Engine.Query(path, p)
	if err != nil {
		return nil, apiError(err)
	}
	return pageToResponse(page), nil
}

// Count returns the number of rows matching the filter.
func (h *DataHandler) Count(ctx context.Context, req *dto.CountDataRequest) (*int, error) {
	path, err := h.resolve(req.Name)
	if err != nil {
		return nil, err
	}
	n, err := h.Svc.Engine.Count(path, req.Filter)
	if err != nil {
		return nil, apiError(err)
	}
	return &n, nil
}

// Schema returns the columns of a dataset.
func (h *DataHandler) Schema(ctx context.Context, req *dto.DatasetSchemaRequest) (*dto.SchemaResponse, error) {
	path, err := h.resolve(req.Name)
	if err != nil {
		return nil, err
	}
	s, err := h.Svc.Engine.Schema(path)
	if err != nil {
		return nil, apiError(err)
	}
	return schemaToResponse(s), nil
}

// JSONSchema returns the JSON Schema of one record of a dataset.
func (h *DataHandler) JSONSchema(ctx context.Context, req *dto.DatasetSchemaRequest) (*jsonschema.Schema, error) {
	path, err := h.resolve(req.Name)
	if err != nil {
		return nil, err
	}
	s, err := h.Svc.Engine.JSONSchema(path)
	if err != nil {
		return nil, apiError(err)
	}
	return s, nil
}

// ListDatasets lists the CSV and JSON files of the data directory in file
// name order.
func (h *DataHandler) ListDatasets(ctx context.Context, req *dto.ListDatasetsRequest) (*dto.DatasetList, error) {
	entries, err := os.ReadDir(h.Cfg.DataDir)
	if err != nil {
		return nil, dto.InternalWithError("failed to read data directory", err)
	}
	out := dto.DatasetList{}
	for _, e := range entries {
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if !e.Type().IsRegular() || (ext != ".csv" && ext != ".json") {
			continue
		}
		info := dto.DatasetInfo{Name: strings.TrimSuffix(e.Name(), filepath.Ext(e.Name())), Path: e.Name()}
		if n, err := h.Svc.Engine.Rows(filepath.Join(h.Cfg.DataDir, e.Name())); err == nil {
			info.Rows = &n
		}
		out = append(out, info)
	}
	return &out, nil
}
