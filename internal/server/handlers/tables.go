// Serves imported tables and the collections grouping them.

package handlers

import (
	"context"
	"errors"

	"github.com/maruel/tabserve/internal/server/dto"
	"github.com/maruel/tabserve/internal/storage"
	"github.com/maruel/tabserve/internal/tabular"
)

// TableHandler handles table and collection requests.
type TableHandler struct {
	Svc *Services
	Cfg *Config
}

// ListTables lists every imported table.
func (h *TableHandler) ListTables(ctx context.Context, req *dto.ListTablesRequest) (*dto.TableList, error) {
	tables, err := h.Svc.Store.ListTables(ctx, 0)
	if err != nil {
		return nil, apiError(err)
	}
	return tablesToResponse(tables), nil
}

// QueryTable returns one filtered, sorted page of an imported table.
func (h *TableHandler) QueryTable(ctx context.Context, req *dto.QueryTableRequest) (*dto.PageResponse, error) {
	limit, err := h.Cfg.pageLimit(req.Limit)
	if err != nil {
		return nil, err
	}
	p := tabular.Params{Limit: limit, Sort: req.Sort, Filter: req.Filter}
	if req.Offset != nil {
		p.Offset = *req.Offset
	}
	page, err := h.Svc.Store.QueryTable(ctx, req.Table, p, h.Cfg.MaxPageSize)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, dto.TableNotFound(req.Table)
	}
	if err != nil {
		return nil, apiError(err)
	}
	return pageToResponse(page), nil
}

// ListCollections lists every collection.
func (h *TableHandler) ListCollections(ctx context.Context, req *dto.ListCollectionsRequest) (*dto.CollectionList, error) {
	colls, err := h.Svc.Store.ListCollections(ctx)
	if err != nil {
		return nil, apiError(err)
	}
	out := make(dto.CollectionList, len(colls))
	for i := range colls {
		out[i] = collectionToResponse(&colls[i])
	}
	return &out, nil
}

// GetCollection returns one collection.
func (h *TableHandler) GetCollection(ctx context.Context, req *dto.GetCollectionRequest) (*dto.CollectionResponse, error) {
	c, err := h.Svc.Store.GetCollection(ctx, req.ID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, dto.NotFound("collection")
	}
	if err != nil {
		return nil, apiError(err)
	}
	resp := collectionToResponse(c)
	return &resp, nil
}

// ListCollectionTables lists the tables imported into one collection.
func (h *TableHandler) ListCollectionTables(ctx context.Context, req *dto.GetCollectionRequest) (*dto.TableList, error) {
	if _, err := h.Svc.Store.GetCollection(ctx, req.ID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, dto.NotFound("collection")
		}
		return nil, apiError(err)
	}
	tables, err := h.Svc.Store.ListTables(ctx, req.ID)
	if err != nil {
		return nil, apiError(err)
	}
	return tablesToResponse(tables), nil
}
