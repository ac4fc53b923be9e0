// Maps service errors to API errors and writes error responses.

package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/maruel/tabserve/internal/ingest"
	"github.com/maruel/tabserve/internal/llm"
	"github.com/maruel/tabserve/internal/server/dto"
	"github.com/maruel/tabserve/internal/storage"
	"github.com/maruel/tabserve/internal/tabular"
)

// apiError classifies err into a dto.APIError. Errors that already carry a
// status pass through unchanged.
func apiError(err error) error {
	if err == nil {
		return nil
	}
	var ews dto.ErrorWithStatus
	var upstream *llm.UpstreamError
	switch {
	case errors.As(err, &ews):
		return err
	case errors.Is(err, tabular.ErrInvalidFilterSyntax):
		return dto.InvalidFilter(err)
	case errors.Is(err, tabular.ErrUnsupportedOperator):
		return dto.UnsupportedOperator(err)
	case errors.Is(err, ingest.ErrUnsupportedType), errors.Is(err, ingest.ErrEmpty),
		errors.Is(err, storage.ErrInvalidTableName), errors.Is(err, storage.ErrReservedColumn):
		return dto.BadRequest(err.Error())
	case errors.Is(err, ingest.ErrOutsideRoot):
		return dto.NewAPIError(http.StatusBadRequest, dto.ErrorCodeInvalidPath, err.Error())
	case errors.Is(err, tabular.ErrDatasetLoad):
		return dto.DatasetLoadFailed(err)
	case errors.Is(err, storage.ErrTableExists):
		return dto.Conflict(err.Error())
	case errors.Is(err, llm.ErrDisabled):
		return dto.NotConfigured("LLM endpoint")
	case errors.As(err, &upstream):
		return dto.Upstream(upstream.Status, upstream.Detail)
	}
	return dto.InternalWithError("internal error", err)
}

func invalidLimit(maxPageSize int) error {
	return dto.InvalidField("limit", "must be <= "+strconv.Itoa(maxPageSize))
}

// writeErrorResponse writes an APIError as a JSON response.
// Use this in raw http.HandlerFunc handlers that don't use server.Wrap.
func writeErrorResponse(w http.ResponseWriter, err error) {
	statusCode := http.StatusInternalServerError
	errorCode := dto.ErrorCodeInternal
	message := "internal error"
	var details map[string]any

	var ewsErr dto.ErrorWithStatus
	if errors.As(apiError(err), &ewsErr) {
		statusCode = ewsErr.StatusCode()
		errorCode = ewsErr.Code()
		message = ewsErr.Error()
		details = ewsErr.Details()
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	response := dto.ErrorResponse{
		Error: dto.ErrorDetails{
			Code:    errorCode,
			Message: message,
		},
		Details: details,
	}
	if err := json.NewEncoder(w).Encode(response); err != nil {
		slog.Error("Failed to encode error response", "error", err)
	}
}

// writeJSON writes v with status 200.
func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}
