// Parses CSV and JSON files into datasets with per-column type inference.

package tabular

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// naStrings are the cell spellings read as null.
var naStrings = map[string]bool{
	"":         true,
	"#N/A":     true,
	"#N/A N/A": true,
	"#NA":      true,
	"-1.#IND":  true,
	"-1.#QNAN": true,
	"-NaN":     true,
	"-nan":     true,
	"1.#IND":   true,
	"1.#QNAN":  true,
	"<NA>":     true,
	"N/A":      true,
	"NA":       true,
	"NULL":     true,
	"NaN":      true,
	"None":     true,
	"n/a":      true,
	"nan":      true,
	"null":     true,
}

// LoadFile parses the file at path, picking the format from its extension.
// Any failure is returned as a *LoadError.
func LoadFile(path string) (*Dataset, error) {
	f, err := os.Open(path) //nolint:gosec // G304: callers confine path to the data directory
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}
	defer func() { _ = f.Close() }()
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	var ds *Dataset
	if strings.EqualFold(filepath.Ext(path), ".json") {
		ds, err = LoadJSON(f, name)
	} else {
		ds, err = LoadCSV(f, name)
	}
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}
	return ds, nil
}

// LoadCSV parses a CSV stream whose first record is the header.
//
// Short records are padded with nulls. A record with more fields than the
// header is an error.
func LoadCSV(r io.Reader, name string) (*Dataset, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("no columns to parse from file")
		}
		return nil, err
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}
	names := dedupNames(header)
	var raw [][]string
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if len(rec) > len(names) {
			return nil, fmt.Errorf("line %d: expected %d fields, saw %d", line, len(names), len(rec))
		}
		raw = append(raw, rec)
	}

	ds := &Dataset{Name: name, Columns: make([]Column, len(names)), Rows: make([][]Value, len(raw))}
	for i := range ds.Rows {
		ds.Rows[i] = make([]Value, len(names))
	}
	cells := make([]string, len(raw))
	for c, n := range names {
		for i, rec := range raw {
			if c < len(rec) {
				cells[i] = rec[c]
			} else {
				cells[i] = ""
			}
		}
		typ, vals := inferColumn(cells)
		ds.Columns[c] = Column{Name: n, Type: typ}
		for i, v := range vals {
			ds.Rows[i][c] = v
		}
	}
	return ds, nil
}

// dedupNames suffixes repeated header names with ".1", ".2", ...
func dedupNames(header []string) []string {
	out := make([]string, len(header))
	used := make(map[string]bool, len(header))
	counts := make(map[string]int, len(header))
	for i, h := range header {
		n := h
		for used[n] {
			counts[h]++
			n = h + "." + strconv.Itoa(counts[h])
		}
		used[n] = true
		out[i] = n
	}
	return out
}

// inferColumn picks the narrowest type that fits every non-null cell.
func inferColumn(cells []string) (ColumnType, []Value) {
	vals := make([]Value, len(cells))
	if len(cells) == 0 {
		return TypeText, vals
	}
	nulls := 0
	allInt, allFloat, allBool := true, true, true
	for _, s := range cells {
		if naStrings[s] {
			nulls++
			continue
		}
		t := strings.TrimSpace(s)
		if allInt {
			if _, err := strconv.ParseInt(t, 10, 64); err != nil {
				allInt = false
			}
		}
		if allFloat {
			if _, err := strconv.ParseFloat(t, 64); err != nil {
				allFloat = false
			}
		}
		if allBool {
			if _, ok := parseBool(t); !ok {
				allBool = false
			}
		}
	}
	if nulls == len(cells) {
		return TypeFloat, vals
	}
	switch {
	case allInt && nulls == 0:
		for i, s := range cells {
			n, _ := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
			vals[i] = Int(n)
		}
		return TypeInteger, vals
	case allInt || allFloat:
		for i, s := range cells {
			if naStrings[s] {
				continue
			}
			f, _ := strconv.ParseFloat(strings.TrimSpace(s), 64)
			vals[i] = Float(f)
		}
		return TypeFloat, vals
	case allBool:
		for i, s := range cells {
			if naStrings[s] {
				continue
			}
			b, _ := parseBool(strings.TrimSpace(s))
			vals[i] = Bool(b)
		}
		if nulls == 0 {
			return TypeBoolean, vals
		}
		return TypeText, vals
	}
	for i, s := range cells {
		if !naStrings[s] {
			vals[i] = Text(s)
		}
	}
	return TypeText, vals
}

func parseBool(s string) (bool, bool) {
	switch s {
	case "True", "true", "TRUE":
		return true, true
	case "False", "false", "FALSE":
		return false, true
	}
	return false, false
}

// LoadJSON parses a JSON array of objects, or a single object, into a dataset.
//
// Columns are the union of keys in first-seen order; missing keys are null.
// Nested arrays and objects are kept as their JSON text.
func LoadJSON(r io.Reader, name string) (*Dataset, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	var objs []map[string]Value
	index := map[string]int{}
	var names []string
	addKey := func(k string) {
		if _, ok := index[k]; !ok {
			index[k] = len(names)
			names = append(names, k)
		}
	}
	switch tok {
	case json.Delim('['):
		for dec.More() {
			t, err := dec.Token()
			if err != nil {
				return nil, fmt.Errorf("invalid JSON: %w", err)
			}
			if t != json.Delim('{') {
				return nil, fmt.Errorf("row %d: expected an object", len(objs))
			}
			obj, err := readObject(dec, addKey)
			if err != nil {
				return nil, fmt.Errorf("row %d: %w", len(objs), err)
			}
			objs = append(objs, obj)
		}
		if _, err := dec.Token(); err != nil {
			return nil, fmt.Errorf("invalid JSON: %w", err)
		}
	case json.Delim('{'):
		obj, err := readObject(dec, addKey)
		if err != nil {
			return nil, err
		}
		objs = append(objs, obj)
	default:
		return nil, errors.New("expected a JSON array of objects or a JSON object")
	}

	ds := &Dataset{Name: name, Columns: make([]Column, len(names)), Rows: make([][]Value, len(objs))}
	for i, obj := range objs {
		row := make([]Value, len(names))
		for k, v := range obj {
			row[index[k]] = v
		}
		ds.Rows[i] = row
	}
	for c, n := range names {
		ds.Columns[c] = Column{Name: n, Type: narrowJSONColumn(ds.Rows, c)}
	}
	return ds, nil
}

func readObject(dec *json.Decoder, addKey func(string)) (map[string]Value, error) {
	obj := map[string]Value{}
	for dec.More() {
		t, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := t.(string)
		if !ok {
			return nil, errors.New("expected an object key")
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, err
		}
		v, err := jsonValue(raw)
		if err != nil {
			return nil, fmt.Errorf("key %q: %w", key, err)
		}
		addKey(key)
		obj[key] = v
	}
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return obj, nil
}

func jsonValue(raw json.RawMessage) (Value, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return Value{}, nil
	}
	switch raw[0] {
	case 'n':
		return Null(), nil
	case 't':
		return Bool(true), nil
	case 'f':
		return Bool(false), nil
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return Value{}, err
		}
		return Text(s), nil
	case '[', '{':
		var buf bytes.Buffer
		if err := json.Compact(&buf, raw); err != nil {
			return Value{}, err
		}
		return Text(buf.String()), nil
	}
	s := string(raw)
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return Int(n), nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return Value{}, err
	}
	return Float(f), nil
}

// narrowJSONColumn types column c and widens integers to floats where needed.
func narrowJSONColumn(rows [][]Value, c int) ColumnType {
	if len(rows) == 0 {
		return TypeText
	}
	var nulls, ints, floats, bools int
	for _, row := range rows {
		switch row[c].Kind() {
		case KindNull:
			nulls++
		case KindInt:
			ints++
		case KindFloat:
			floats++
		case KindBool:
			bools++
		}
	}
	switch {
	case nulls == len(rows):
		return TypeFloat
	case ints == len(rows):
		return TypeInteger
	case ints+floats+nulls == len(rows):
		for _, row := range rows {
			if row[c].Kind() == KindInt {
				row[c] = Float(float64(row[c].Int64()))
			}
		}
		return TypeFloat
	case bools == len(rows):
		return TypeBoolean
	}
	return TypeText
}
