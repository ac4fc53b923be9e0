// Describes a dataset's records as a JSON Schema document.

package tabular

import (
	"math"

	"github.com/invopop/jsonschema"
)

// JSONSchema returns a JSON Schema for one record of the dataset at path.
// Columns holding at least one null accept null as well.
func (e *Engine) JSONSchema(path string) (*jsonschema.Schema, error) {
	ds, err := e.cache.Load(path)
	if err != nil {
		return nil, err
	}
	return RecordSchema(ds), nil
}

// RecordSchema builds the JSON Schema of a row of ds. Each property lists the
// JSON types its cells actually encode to, so text columns holding numbers or
// booleans accept them too.
func RecordSchema(ds *Dataset) *jsonschema.Schema {
	props := jsonschema.NewProperties()
	var required []string
	for i, c := range ds.Columns {
		seen := map[string]bool{}
		nullable := false
		for _, row := range ds.Rows {
			if t := cellJSONType(row[i]); t == "null" {
				nullable = true
			} else {
				seen[t] = true
			}
		}
		if seen["integer"] && seen["number"] {
			delete(seen, "integer")
		}
		var types []string
		for _, t := range []string{"integer", "number", "boolean", "string"} {
			if seen[t] {
				types = append(types, t)
			}
		}
		if len(types) == 0 {
			types = append(types, jsonType(c.Type))
		}
		if nullable {
			types = append(types, "null")
		} else {
			required = append(required, c.Name)
		}
		if len(types) == 1 {
			props.Set(c.Name, &jsonschema.Schema{Type: types[0]})
			continue
		}
		alts := make([]*jsonschema.Schema, len(types))
		for j, t := range types {
			alts[j] = &jsonschema.Schema{Type: t}
		}
		props.Set(c.Name, &jsonschema.Schema{AnyOf: alts})
	}
	return &jsonschema.Schema{
		Version:              jsonschema.Version,
		Title:                ds.Name,
		Type:                 "object",
		Properties:           props,
		Required:             required,
		AdditionalProperties: jsonschema.FalseSchema,
	}
}

// cellJSONType is the JSON type v encodes to.
func cellJSONType(v Value) string {
	switch v.Kind() {
	case KindInt:
		return "integer"
	case KindFloat:
		if math.IsInf(v.Float64(), 0) {
			return "null"
		}
		return "number"
	case KindBool:
		return "boolean"
	case KindText:
		return "string"
	default:
		return "null"
	}
}

func jsonType(t ColumnType) string {
	switch t {
	case TypeInteger:
		return "integer"
	case TypeFloat:
		return "number"
	case TypeBoolean:
		return "boolean"
	default:
		return "string"
	}
}
