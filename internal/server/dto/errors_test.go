package dto

import (
	"errors"
	"net/http"
	"testing"
)

func TestAPIError(t *testing.T) {
	t.Run("NewAPIError", func(t *testing.T) {
		err := NewAPIError(http.StatusNotFound, ErrorCodeNotFound, "resource not found")
		if err.StatusCode() != http.StatusNotFound {
			t.Errorf("StatusCode() = %d, want %d", err.StatusCode(), http.StatusNotFound)
		}
		if err.Code() != ErrorCodeNotFound {
			t.Errorf("Code() = %s, want %s", err.Code(), ErrorCodeNotFound)
		}
		if err.Error() != "resource not found" {
			t.Errorf("Error() = %q, want %q", err.Error(), "resource not found")
		}
		if err.Details() == nil {
			t.Error("Details() = nil, want non-nil map")
		}
	})
	t.Run("WithDetails initializes nil map", func(t *testing.T) {
		err := (&APIError{statusCode: http.StatusBadRequest, code: ErrorCodeValidationFailed, message: "x"}).
			WithDetails(map[string]any{"key": "value"})
		if err.Details()["key"] != "value" {
			t.Errorf("Details() = %v", err.Details())
		}
	})
	t.Run("Wrap", func(t *testing.T) {
		orig := errors.New("original error")
		err := NewAPIError(http.StatusInternalServerError, ErrorCodeInternal, "wrapped error").Wrap(orig)
		if !errors.Is(err, orig) {
			t.Error("errors.Is(err, orig) = false")
		}
		if err.Error() != "wrapped error: original error" {
			t.Errorf("Error() = %q", err.Error())
		}
	})
}

func TestErrorConstructors(t *testing.T) {
	cause := errors.New("cause")
	tests := []struct {
		name       string
		err        *APIError
		wantStatus int
		wantCode   ErrorCode
	}{
		{"NotFound", NotFound("thing"), http.StatusNotFound, ErrorCodeNotFound},
		{"DatasetNotFound", DatasetNotFound("users"), http.StatusNotFound, ErrorCodeDatasetNotFound},
		{"TableNotFound", TableNotFound("t"), http.StatusNotFound, ErrorCodeTableNotFound},
		{"BadRequest", BadRequest("bad"), http.StatusBadRequest, ErrorCodeValidationFailed},
		{"MissingField", MissingField("name"), http.StatusBadRequest, ErrorCodeMissingField},
		{"InvalidField", InvalidField("limit", "too big"), http.StatusBadRequest, ErrorCodeValidationFailed},
		{"InvalidFilter", InvalidFilter(cause), http.StatusBadRequest, ErrorCodeInvalidFilter},
		{"UnsupportedOperator", UnsupportedOperator(cause), http.StatusInternalServerError, ErrorCodeUnsupportedOperator},
		{"DatasetLoadFailed", DatasetLoadFailed(cause), http.StatusUnprocessableEntity, ErrorCodeDatasetLoadFailed},
		{"InvalidPath", InvalidPath("../x"), http.StatusBadRequest, ErrorCodeInvalidPath},
		{"Conflict", Conflict("dup"), http.StatusConflict, ErrorCodeConflict},
		{"Upstream", Upstream(429, "slow down"), http.StatusBadGateway, ErrorCodeUpstream},
		{"NotConfigured", NotConfigured("llm"), http.StatusServiceUnavailable, ErrorCodeNotConfigured},
		{"PayloadTooLarge", PayloadTooLarge(10), http.StatusRequestEntityTooLarge, ErrorCodePayloadTooLarge},
		{"RateLimitExceeded", RateLimitExceeded(3), http.StatusTooManyRequests, ErrorCodeRateLimited},
		{"Internal", Internal("x"), http.StatusInternalServerError, ErrorCodeInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.StatusCode() != tt.wantStatus {
				t.Errorf("StatusCode() = %d, want %d", tt.err.StatusCode(), tt.wantStatus)
			}
			if tt.err.Code() != tt.wantCode {
				t.Errorf("Code() = %s, want %s", tt.err.Code(), tt.wantCode)
			}
		})
	}
	if got := Upstream(429, "x").Details()["upstream_status"]; got != 429 {
		t.Errorf("Upstream details = %v", got)
	}
	if _, ok := Upstream(0, "refused").Details()["upstream_status"]; ok {
		t.Error("Upstream without a reply reports a status")
	}
	if got := RateLimitExceeded(3).Details()["retry_after"]; got != 3 {
		t.Errorf("RateLimitExceeded details = %v", got)
	}
}

func TestValidate(t *testing.T) {
	neg, one := -1, 1
	tooHot := 3.0
	tests := []struct {
		name    string
		req     Validatable
		wantErr bool
	}{
		{"query ok", &QueryDataRequest{Name: "users", Limit: &one}, false},
		{"query no name", &QueryDataRequest{}, true},
		{"query negative limit", &QueryDataRequest{Name: "users", Limit: &neg}, true},
		{"query negative offset", &QueryDataRequest{Name: "users", Offset: &neg}, true},
		{"table negative limit", &QueryTableRequest{Table: "t", Limit: &neg}, true},
		{"collection zero id", &GetCollectionRequest{}, true},
		{"batch ok", &BatchUploadRequest{CollectionName: "c", FilesInfo: []FileInfo{{FilePath: "a.csv"}}}, false},
		{"batch no files", &BatchUploadRequest{CollectionName: "c"}, true},
		{"batch empty path", &BatchUploadRequest{CollectionName: "c", FilesInfo: []FileInfo{{}}}, true},
		{"docx no collection", &DocxBatchUploadRequest{FilePaths: []string{"a.docx"}}, true},
		{"documents bad collection", &ListDocumentsRequest{CollectionID: "!"}, true},
		{"documents negative skip", &ListDocumentsRequest{Skip: &neg}, true},
		{"completion ok", &CompletionRequest{Messages: []Message{{Role: "user", Content: "hi"}}}, false},
		{"completion no messages", &CompletionRequest{}, true},
		{"completion no role", &CompletionRequest{Messages: []Message{{Content: "hi"}}}, true},
		{"text no prompt", &TextRequest{}, true},
		{"text bad temperature", &TextRequest{Prompt: "x", Temperature: &tooHot}, true},
		{"text bad max tokens", &TextRequest{Prompt: "x", MaxTokens: &neg}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
