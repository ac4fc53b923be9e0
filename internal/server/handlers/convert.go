package handlers

import (
	"encoding/json"
	"time"

	"github.com/maruel/ksid"
	"github.com/maruel/tabserve/internal/ingest"
	"github.com/maruel/tabserve/internal/server/dto"
	"github.com/maruel/tabserve/internal/storage"
	"github.com/maruel/tabserve/internal/tabular"
)

// --- Time and ID formatting ---

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func formatID(id ksid.ID) string {
	if id.IsZero() {
		return ""
	}
	return id.String()
}

// --- Service to DTO conversions ---

func pageToResponse(p *tabular.Page) *dto.PageResponse {
	items := make([]json.Marshaler, len(p.Items))
	for i, r := range p.Items {
		items[i] = r
	}
	return &dto.PageResponse{Total: p.Total, Limit: p.Limit, Offset: p.Offset, Items: items}
}

func schemaToResponse(s *tabular.Schema) *dto.SchemaResponse {
	fields := make([]dto.FieldInfo, len(s.Fields))
	for i, f := range s.Fields {
		fields[i] = dto.FieldInfo{Name: f.Name, DType: string(f.DType)}
	}
	return &dto.SchemaResponse{Name: s.Name, Fields: fields}
}

func columnsToDTO(cols []storage.ColumnInfo) []dto.ColumnInfo {
	if cols == nil {
		return nil
	}
	out := make([]dto.ColumnInfo, len(cols))
	for i, c := range cols {
		out[i] = dto.ColumnInfo{Name: c.Name, Type: c.Type, DType: string(c.DType)}
	}
	return out
}

func tableToResponse(t *storage.TableInfo) dto.TableInfoResponse {
	return dto.TableInfoResponse{
		TableName:        t.TableName,
		OriginalFilename: t.OriginalFilename,
		Columns:          columnsToDTO(t.Columns),
		RowCount:         t.RowCount,
		CollectionID:     formatID(t.CollectionID),
		CreatedAt:        formatTime(t.Created),
	}
}

func tablesToResponse(tables []storage.TableInfo) *dto.TableList {
	out := make(dto.TableList, len(tables))
	for i := range tables {
		out[i] = tableToResponse(&tables[i])
	}
	return &out
}

func collectionToResponse(c *storage.Collection) dto.CollectionResponse {
	return dto.CollectionResponse{
		ID:          c.ID.String(),
		Name:        c.Name,
		Description: c.Description,
		CreatedAt:   formatTime(c.Created),
	}
}

func documentToResponse(d *storage.Document) dto.DocumentResponse {
	return dto.DocumentResponse{
		ID:           d.ID.String(),
		CollectionID: formatID(d.CollectionID),
		Filename:     d.Filename,
		Content:      d.Content,
		CreatedAt:    formatTime(d.Created),
	}
}

func batchToResponse(res *ingest.BatchResult) *dto.BatchUploadResponse {
	out := &dto.BatchUploadResponse{
		Collection: collectionToResponse(res.Collection),
		Results:    make([]dto.FileResult, len(res.Results)),
	}
	for i, r := range res.Results {
		out.Results[i] = dto.FileResult{
			FilePath:  r.FilePath,
			TableName: r.TableName,
			Status:    r.Status,
			Columns:   columnsToDTO(r.Columns),
			Error:     r.Error,
		}
	}
	return out
}

func docxBatchToResponse(res *ingest.DocxBatchResult) *dto.DocxBatchUploadResponse {
	out := &dto.DocxBatchUploadResponse{
		CollectionID: res.Collection.ID.String(),
		Results:      make([]dto.DocResult, len(res.Results)),
		Summary: dto.BatchSummary{
			Total:   res.Summary.Total,
			Success: res.Summary.Success,
			Failed:  res.Summary.Failed,
		},
	}
	for i, r := range res.Results {
		out.Results[i] = dto.DocResult{
			FilePath:   r.FilePath,
			Status:     r.Status,
			DocumentID: formatID(r.DocumentID),
			Filename:   r.Filename,
			Error:      r.Error,
		}
	}
	return out
}
