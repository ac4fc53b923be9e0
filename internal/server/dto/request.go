package dto

import (
	"strconv"

	"github.com/maruel/ksid"
)

// validatePage checks the optional limit and offset of a paginated request.
// The upper bound on limit depends on the server configuration and is
// checked by the handler.
func validatePage(limit, offset *int) error {
	if limit != nil && *limit < 0 {
		return InvalidField("limit", "must be >= 0")
	}
	if offset != nil && *offset < 0 {
		return InvalidField("offset", "must be >= 0")
	}
	return nil
}

// --- Health ---

// HealthRequest is a request to check server health.
type HealthRequest struct{}

// Validate is a no-op for HealthRequest.
func (r *HealthRequest) Validate() error {
	return nil
}

// --- Datasets ---

// QueryDataRequest is a request for one page of a file-backed dataset.
type QueryDataRequest struct {
	Name   string `path:"name" json:"-"`
	Limit  *int   `query:"limit" json:"-"`
	Offset *int   `query:"offset" json:"-"`
	Sort   string `query:"sort" json:"-"`
	Filter string `query:"filter" json:"-"`
}

// Validate validates the query request fields.
func (r *QueryDataRequest) Validate() error {
	if r.Name == "" {
		return MissingField("name")
	}
	return validatePage(r.Limit, r.Offset)
}

// CountDataRequest is a request for the number of rows matching a filter.
type CountDataRequest struct {
	Name   string `path:"name" json:"-"`
	Filter string `query:"filter" json:"-"`
}

// Validate validates the count request fields.
func (r *CountDataRequest) Validate() error {
	if r.Name == "" {
		return MissingField("name")
	}
	return nil
}

// DatasetSchemaRequest is a request for the column list of a dataset.
type DatasetSchemaRequest struct {
	Name string `path:"name" json:"-"`
}

// Validate validates the schema request fields.
func (r *DatasetSchemaRequest) Validate() error {
	if r.Name == "" {
		return MissingField("name")
	}
	return nil
}

// ListDatasetsRequest is a request to list the files of the data directory.
type ListDatasetsRequest struct{}

// Validate is a no-op for ListDatasetsRequest.
func (r *ListDatasetsRequest) Validate() error {
	return nil
}

// RequestSchemaRequest is a request for the JSON schema of an API body type.
type RequestSchemaRequest struct {
	Type string `path:"type" json:"-"`
}

// Validate validates the request schema request fields.
func (r *RequestSchemaRequest) Validate() error {
	if r.Type == "" {
		return MissingField("type")
	}
	return nil
}

// --- Tables ---

// ListTablesRequest is a request to list imported tables.
type ListTablesRequest struct{}

// Validate is a no-op for ListTablesRequest.
func (r *ListTablesRequest) Validate() error {
	return nil
}

// QueryTableRequest is a request for one page of an imported table.
type QueryTableRequest struct {
	Table  string `path:"table" json:"-"`
	Limit  *int   `query:"limit" json:"-"`
	Offset *int   `query:"offset" json:"-"`
	Sort   string `query:"sort" json:"-"`
	Filter string `query:"filter" json:"-"`
}

// Validate validates the table query request fields.
func (r *QueryTableRequest) Validate() error {
	if r.Table == "" {
		return MissingField("table")
	}
	return validatePage(r.Limit, r.Offset)
}

// --- Collections ---

// ListCollectionsRequest is a request to list collections.
type ListCollectionsRequest struct{}

// Validate is a no-op for ListCollectionsRequest.
func (r *ListCollectionsRequest) Validate() error {
	return nil
}

// GetCollectionRequest is a request for one collection or its tables.
type GetCollectionRequest struct {
	ID ksid.ID `path:"id" json:"-"`
}

// Validate validates the collection request fields.
func (r *GetCollectionRequest) Validate() error {
	if r.ID.IsZero() {
		return InvalidField("id", "must be a valid collection ID")
	}
	return nil
}

// --- Batch ingestion ---

// FileInfo names one server-side file of a batch upload.
type FileInfo struct {
	FilePath  string `json:"file_path" jsonschema:"description=Path on the server, relative to the import root or absolute inside it"`
	TableName string `json:"table_name,omitempty" jsonschema:"description=Target table; generated from the file name when empty"`
	FileType  string `json:"file_type,omitempty" jsonschema:"enum=csv,enum=json,description=Defaults to the file extension"`
}

// BatchUploadRequest imports several server-side files into one collection.
type BatchUploadRequest struct {
	CollectionName        string     `json:"collection_name" jsonschema:"description=Collection to create or reuse"`
	CollectionDescription string     `json:"collection_description,omitempty"`
	FilesInfo             []FileInfo `json:"files_info" jsonschema:"minItems=1"`
}

// Validate validates the batch upload request fields.
func (r *BatchUploadRequest) Validate() error {
	if r.CollectionName == "" {
		return MissingField("collection_name")
	}
	if len(r.FilesInfo) == 0 {
		return MissingField("files_info")
	}
	for i, f := range r.FilesInfo {
		if f.FilePath == "" {
			return MissingField("files_info[" + strconv.Itoa(i) + "].file_path")
		}
	}
	return nil
}

// DocxBatchUploadRequest extracts the text of several server-side documents.
type DocxBatchUploadRequest struct {
	FilePaths      []string `json:"file_paths" jsonschema:"minItems=1"`
	CollectionName string   `json:"collection_name"`
}

// Validate validates the docx batch upload request fields.
func (r *DocxBatchUploadRequest) Validate() error {
	if r.CollectionName == "" {
		return MissingField("collection_name")
	}
	if len(r.FilePaths) == 0 {
		return MissingField("file_paths")
	}
	return nil
}

// --- Documents ---

// ListDocumentsRequest is a request to list extracted documents.
type ListDocumentsRequest struct {
	CollectionID string `query:"collection_id" json:"-"`
	Filename     string `query:"filename" json:"-"`
	Skip         *int   `query:"skip" json:"-"`
	Limit        *int   `query:"limit" json:"-"`
}

// Validate validates the list documents request fields.
func (r *ListDocumentsRequest) Validate() error {
	if r.CollectionID != "" {
		if _, err := ksid.Parse(r.CollectionID); err != nil {
			return InvalidField("collection_id", "must be a valid collection ID")
		}
	}
	return validatePage(r.Limit, r.Skip)
}

// GetDocumentRequest is a request for one extracted document.
type GetDocumentRequest struct {
	ID ksid.ID `path:"id" json:"-"`
}

// Validate validates the get document request fields.
func (r *GetDocumentRequest) Validate() error {
	if r.ID.IsZero() {
		return InvalidField("id", "must be a valid document ID")
	}
	return nil
}

// --- LLM ---

// Message is one chat turn.
type Message struct {
	Role    string `json:"role" jsonschema:"enum=system,enum=user,enum=assistant"`
	Content string `json:"content"`
}

// CompletionRequest is forwarded to the upstream chat completion endpoint.
// Unset sampling fields take the configured defaults.
type CompletionRequest struct {
	Model       string    `json:"model,omitempty"`
	Messages    []Message `json:"messages" jsonschema:"minItems=1"`
	MaxTokens   *int      `json:"max_tokens,omitempty"`
	Temperature *float64  `json:"temperature,omitempty"`
	TopP        *float64  `json:"top_p,omitempty"`
	TopK        *int      `json:"top_k,omitempty"`
}

// Validate validates the completion request fields.
func (r *CompletionRequest) Validate() error {
	if len(r.Messages) == 0 {
		return MissingField("messages")
	}
	for i, m := range r.Messages {
		if m.Role == "" {
			return MissingField("messages[" + strconv.Itoa(i) + "].role")
		}
	}
	return validateSampling(r.MaxTokens, r.Temperature, r.TopP)
}

// TextRequest sends a single prompt.
type TextRequest struct {
	Prompt      string   `json:"prompt"`
	Model       string   `json:"model,omitempty"`
	MaxTokens   *int     `json:"max_tokens,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`
	TopP        *float64 `json:"top_p,omitempty"`
	TopK        *int     `json:"top_k,omitempty"`
}

// Validate validates the text request fields.
func (r *TextRequest) Validate() error {
	if r.Prompt == "" {
		return MissingField("prompt")
	}
	return validateSampling(r.MaxTokens, r.Temperature, r.TopP)
}

func validateSampling(maxTokens *int, temperature, topP *float64) error {
	if maxTokens != nil && *maxTokens <= 0 {
		return InvalidField("max_tokens", "must be > 0")
	}
	if temperature != nil && (*temperature < 0 || *temperature > 2) {
		return InvalidField("temperature", "must be in [0, 2]")
	}
	if topP != nil && (*topP <= 0 || *topP > 1) {
		return InvalidField("top_p", "must be in (0, 1]")
	}
	return nil
}
