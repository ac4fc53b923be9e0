// Publishes the JSON Schema of the request bodies.

package handlers

import (
	"context"
	"reflect"
	"slices"
	"strings"

	"github.com/invopop/jsonschema"
	"github.com/maruel/tabserve/internal/server/dto"
)

// requestBodies maps a schema name to the request body it describes.
var requestBodies = map[string]reflect.Type{
	"batch-upload":      reflect.TypeFor[dto.BatchUploadRequest](),
	"docx-batch-upload": reflect.TypeFor[dto.DocxBatchUploadRequest](),
	"llm-completion":    reflect.TypeFor[dto.CompletionRequest](),
	"llm-text":          reflect.TypeFor[dto.TextRequest](),
}

// SchemaHandler handles request schema requests.
type SchemaHandler struct{}

// RequestSchema returns the JSON Schema of a request body.
func (h *SchemaHandler) RequestSchema(ctx context.Context, req *dto.RequestSchemaRequest) (*jsonschema.Schema, error) {
	t, ok := requestBodies[req.Type]
	if !ok {
		names := make([]string, 0, len(requestBodies))
		for k := range requestBodies {
			names = append(names, k)
		}
		slices.Sort(names)
		return nil, dto.NotFound("schema").WithDetail("available", strings.Join(names, ","))
	}
	r := jsonschema.Reflector{Anonymous: true, DoNotReference: true}
	return r.ReflectFromType(t), nil
}
