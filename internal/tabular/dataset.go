// Defines the in-memory table and its row view.

package tabular

import (
	"bytes"
	"encoding/json"
	"slices"
)

// ColumnType is the inferred scalar type of a column.
type ColumnType string

// Column types. The string values are the dtype tags reported by Schema.
const (
	TypeInteger ColumnType = "int64"
	TypeFloat   ColumnType = "float64"
	TypeBoolean ColumnType = "bool"
	TypeText    ColumnType = "object"
)

// Column describes one column of a Dataset.
type Column struct {
	Name string
	Type ColumnType
}

// Dataset is a rectangular table. It is read-only once loaded.
type Dataset struct {
	Name    string
	Columns []Column
	Rows    [][]Value
}

// ColumnIndex returns the position of the named column, or -1.
func (d *Dataset) ColumnIndex(name string) int {
	return slices.IndexFunc(d.Columns, func(c Column) bool { return c.Name == name })
}

// ColumnNames returns the column names in order.
func (d *Dataset) ColumnNames() []string {
	names := make([]string, len(d.Columns))
	for i, c := range d.Columns {
		names[i] = c.Name
	}
	return names
}

// Len returns the number of rows.
func (d *Dataset) Len() int { return len(d.Rows) }

// Record returns row i as an ordered column to value mapping.
func (d *Dataset) Record(i int) Record {
	return Record{columns: d.Columns, values: d.Rows[i]}
}

// Record is one row keyed by column name. Its JSON encoding preserves column
// order.
type Record struct {
	columns []Column
	values  []Value
}

// NewRecord pairs columns with values. Both must have the same length.
func NewRecord(columns []Column, values []Value) Record {
	return Record{columns: columns, values: values}
}

// Get returns the value of the named column.
func (r Record) Get(name string) (Value, bool) {
	for i, c := range r.columns {
		if c.Name == name {
			return r.values[i], true
		}
	}
	return Value{}, false
}

// Values returns the cells in column order.
func (r Record) Values() []Value { return r.values }

// MarshalJSON implements json.Marshaler.
func (r Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, c := range r.columns {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(c.Name)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		v, err := r.values[i].MarshalJSON()
		if err != nil {
			return nil, err
		}
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
