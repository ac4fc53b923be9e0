package dto

import "encoding/json"

// HealthResponse is a response from the health check endpoint.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

// --- Datasets ---

// FieldInfo is one column of a dataset schema.
type FieldInfo struct {
	Name  string `json:"name"`
	DType string `json:"dtype" jsonschema:"enum=int64,enum=float64,enum=bool,enum=object"`
}

// SchemaResponse lists the columns of a dataset in file order.
type SchemaResponse struct {
	Name   string      `json:"name"`
	Fields []FieldInfo `json:"fields"`
}

// PageResponse is one page of a query. Items are records keyed by column
// name in column order.
type PageResponse struct {
	Total  int              `json:"total"`
	Limit  int              `json:"limit"`
	Offset int              `json:"offset"`
	Items  []json.Marshaler `json:"items"`
}

// DatasetInfo describes one file of the data directory. Rows is null when
// the file cannot be loaded.
type DatasetInfo struct {
	Name string `json:"name"`
	Path string `json:"path"`
	Rows *int   `json:"rows"`
}

// DatasetList is the response of the dataset listing.
type DatasetList []DatasetInfo

// --- Tables ---

// ColumnInfo describes one imported column.
type ColumnInfo struct {
	Name  string `json:"name"`
	Type  string `json:"type" jsonschema:"enum=int,enum=float,enum=str"`
	DType string `json:"dtype"`
}

// TableInfoResponse is the catalog entry of an imported table.
type TableInfoResponse struct {
	TableName        string       `json:"table_name"`
	OriginalFilename string       `json:"original_filename,omitempty"`
	Columns          []ColumnInfo `json:"columns"`
	RowCount         int          `json:"row_count"`
	CollectionID     string       `json:"collection_id,omitempty"`
	CreatedAt        string       `json:"created_at"`
}

// TableList is the response of the table listings.
type TableList []TableInfoResponse

// --- Collections ---

// CollectionResponse describes a collection.
type CollectionResponse struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	CreatedAt   string `json:"created_at"`
}

// CollectionList is the response of the collection listing.
type CollectionList []CollectionResponse

// --- Batch ingestion ---

// FileResult reports one file of a batch upload.
type FileResult struct {
	FilePath  string       `json:"file_path"`
	TableName string       `json:"table_name,omitempty"`
	Status    string       `json:"status" jsonschema:"enum=success,enum=error"`
	Columns   []ColumnInfo `json:"columns,omitempty"`
	Error     string       `json:"error,omitempty"`
}

// BatchUploadResponse is the outcome of a batch upload.
type BatchUploadResponse struct {
	Collection CollectionResponse `json:"collection"`
	Results    []FileResult       `json:"results"`
}

// DocResult reports one document of a docx batch upload.
type DocResult struct {
	FilePath   string `json:"file_path"`
	Status     string `json:"status" jsonschema:"enum=success,enum=error"`
	DocumentID string `json:"document_id,omitempty"`
	Filename   string `json:"filename,omitempty"`
	Error      string `json:"error,omitempty"`
}

// BatchSummary counts the outcomes of a batch.
type BatchSummary struct {
	Total   int `json:"total"`
	Success int `json:"success"`
	Failed  int `json:"failed"`
}

// DocxBatchUploadResponse is the outcome of a docx batch upload.
type DocxBatchUploadResponse struct {
	CollectionID string       `json:"collection_id"`
	Results      []DocResult  `json:"results"`
	Summary      BatchSummary `json:"summary"`
}

// --- Documents ---

// DocumentResponse is one extracted document.
type DocumentResponse struct {
	ID           string `json:"id"`
	CollectionID string `json:"collection_id,omitempty"`
	Filename     string `json:"filename"`
	Content      string `json:"content"`
	CreatedAt    string `json:"created_at"`
}

// DocumentListResponse is one page of extracted documents.
type DocumentListResponse struct {
	Total     int                `json:"total"`
	Documents []DocumentResponse `json:"documents"`
}

// --- LLM ---

// CompletionResponse is the upstream response, passed through unchanged.
type CompletionResponse map[string]any

// TextResponse is the first choice's content with the full upstream response.
type TextResponse struct {
	Text         string         `json:"text"`
	FullResponse map[string]any `json:"full_response"`
}
