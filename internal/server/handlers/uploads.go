// Handles file uploads and batch imports of server-side files.

package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/maruel/ksid"
	"github.com/maruel/tabserve/internal/ingest"
	"github.com/maruel/tabserve/internal/server/dto"
)

// maxMemoryMultipart is the part of a multipart form kept in memory; the
// rest spills to temporary files.
const maxMemoryMultipart = 10 << 20

// UploadHandler handles imports into the relational store.
type UploadHandler struct {
	Svc *Services
	Cfg *Config
}

// UploadCSV imports an uploaded CSV file (multipart/form-data).
// This is a raw http.HandlerFunc because it handles multipart forms.
func (h *UploadHandler) UploadCSV(w http.ResponseWriter, r *http.Request) {
	h.upload(w, r, ingest.TypeCSV)
}

// UploadJSON imports an uploaded JSON file (multipart/form-data).
func (h *UploadHandler) UploadJSON(w http.ResponseWriter, r *http.Request) {
	h.upload(w, r, ingest.TypeJSON)
}

// upload reads the "file" part and the optional "table_name" and
// "collection" fields, which may also be passed as query parameters.
func (h *UploadHandler) upload(w http.ResponseWriter, r *http.Request, fileType string) {
	ctx := r.Context()
	if err := r.ParseMultipartForm(maxMemoryMultipart); err != nil {
		if maxErr := (*http.MaxBytesError)(nil); errors.As(err, &maxErr) {
			writeErrorResponse(w, dto.PayloadTooLarge(maxErr.Limit))
			return
		}
		writeErrorResponse(w, dto.BadRequest("invalid multipart form"))
		return
	}
	defer func() {
		if err := r.MultipartForm.RemoveAll(); err != nil {
			slog.WarnContext(ctx, "Failed to remove multipart files", "err", err)
		}
	}()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeErrorResponse(w, dto.MissingField("file"))
		return
	}
	defer func() { _ = file.Close() }()
	if !strings.EqualFold(filepath.Ext(header.Filename), "."+fileType) {
		writeErrorResponse(w, dto.InvalidField("file", "only ."+fileType+" files are accepted"))
		return
	}

	var collectionID ksid.ID
	if name := r.FormValue("collection"); name != "" {
		c, err := h.Svc.Store.EnsureCollection(ctx, name, "")
		if err != nil {
			slog.ErrorContext(ctx, "Failed to get collection", "collection", name, "err", err)
			writeErrorResponse(w, err)
			return
		}
		collectionID = c.ID
	}

	info, err := h.Svc.Ingest.Import(ctx, file, fileType, header.Filename, r.FormValue("table_name"), collectionID)
	if err != nil {
		slog.ErrorContext(ctx, "Upload failed", "file", header.Filename, "err", err)
		writeErrorResponse(w, err)
		return
	}
	writeJSON(w, tableToResponse(info))
}

// BatchUpload imports server-side CSV and JSON files into one collection.
// Per-file failures are reported in the results, not as an error.
func (h *UploadHandler) BatchUpload(ctx context.Context, req *dto.BatchUploadRequest) (*dto.BatchUploadResponse, error) {
	files := make([]ingest.FileSpec, len(req.FilesInfo))
	for i, f := range req.FilesInfo {
		files[i] = ingest.FileSpec{FilePath: f.FilePath, TableName: f.TableName, FileType: f.FileType}
	}
	res, err := h.Svc.Ingest.Batch(ctx, req.CollectionName, req.CollectionDescription, files)
	if err != nil {
		return nil, apiError(err)
	}
	return batchToResponse(res), nil
}

// DocxBatchUpload extracts the text of server-side .docx files into one
// collection.
func (h *UploadHandler) DocxBatchUpload(ctx context.Context, req *dto.DocxBatchUploadRequest) (*dto.DocxBatchUploadResponse, error) {
	res, err := h.Svc.Ingest.BatchDocx(ctx, req.CollectionName, req.FilePaths)
	if err != nil {
		return nil, apiError(err)
	}
	return docxBatchToResponse(res), nil
}
