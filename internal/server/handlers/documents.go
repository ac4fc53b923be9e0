// Serves the text extracted from uploaded documents.

package handlers

import (
	"context"
	"errors"

	"github.com/maruel/ksid"
	"github.com/maruel/tabserve/internal/server/dto"
	"github.com/maruel/tabserve/internal/storage"
)

// defaultDocumentLimit is the page size of ListDocuments when unset.
const defaultDocumentLimit = 100

// DocumentHandler handles document requests.
type DocumentHandler struct {
	Svc *Services
	Cfg *Config
}

// ListDocuments returns a page of documents, optionally narrowed to a
// collection or an exact file name.
func (h *DocumentHandler) ListDocuments(ctx context.Context, req *dto.ListDocumentsRequest) (*dto.DocumentListResponse, error) {
	f := storage.DocumentFilter{Filename: req.Filename, Limit: defaultDocumentLimit}
	if req.CollectionID != "" {
		id, err := ksid.Parse(req.CollectionID)
		if err != nil {
			return nil, dto.InvalidField("collection_id", err.Error())
		}
		f.CollectionID = id
	}
	if req.Skip != nil {
		f.Skip = *req.Skip
	}
	if req.Limit != nil {
		if *req.Limit > h.Cfg.MaxPageSize {
			return nil, invalidLimit(h.Cfg.MaxPageSize)
		}
		f.Limit = *req.Limit
	}
	out := &dto.DocumentListResponse{Documents: []dto.DocumentResponse{}}
	if f.Limit == 0 {
		// Count only; a zero limit means "all" to the store.
		_, total, err := h.Svc.Store.ListDocuments(ctx, storage.DocumentFilter{CollectionID: f.CollectionID, Filename: f.Filename, Limit: 1})
		if err != nil {
			return nil, apiError(err)
		}
		out.Total = total
		return out, nil
	}
	docs, total, err := h.Svc.Store.ListDocuments(ctx, f)
	if err != nil {
		return nil, apiError(err)
	}
	out.Total = total
	for i := range docs {
		out.Documents = append(out.Documents, documentToResponse(&docs[i]))
	}
	return out, nil
}

// GetDocument returns one document.
func (h *DocumentHandler) GetDocument(ctx context.Context, req *dto.GetDocumentRequest) (*dto.DocumentResponse, error) {
	d, err := h.Svc.Store.GetDocument(ctx, req.ID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, dto.NotFound("document")
	}
	if err != nil {
		return nil, apiError(err)
	}
	resp := documentToResponse(d)
	return &resp, nil
}
