// Imports datasets as SQL tables and maintains the table_info catalog.

package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/maruel/ksid"
	"github.com/maruel/tabserve/internal/tabular"
)

// Storage types of an imported column.
const (
	SQLInt   = "int"
	SQLFloat = "float"
	SQLStr   = "str"
)

// ColumnInfo describes one imported column. Type is the storage type, DType
// the inferred dataset type used to rebuild values on read.
type ColumnInfo struct {
	Name  string             `json:"name"`
	Type  string             `json:"type"`
	DType tabular.ColumnType `json:"dtype"`
}

// TableInfo is the catalog entry of an imported table.
type TableInfo struct {
	TableName        string
	OriginalFilename string
	Columns          []ColumnInfo
	RowCount         int
	CollectionID     ksid.ID
	Created          time.Time
}

// hasID reports whether the imported data carries its own id column.
func (t *TableInfo) hasID() bool {
	for _, c := range t.Columns {
		if c.Name == "id" {
			return true
		}
	}
	return false
}

// resultColumns lists the columns returned when reading the table back.
func (t *TableInfo) resultColumns() []tabular.Column {
	var cols []tabular.Column
	if !t.hasID() {
		cols = append(cols, tabular.Column{Name: "id", Type: tabular.TypeInteger})
	}
	for _, c := range t.Columns {
		cols = append(cols, tabular.Column{Name: c.Name, Type: c.DType})
	}
	return cols
}

// ordColumn is the hidden column holding each row's position in the source
// file. It breaks sort ties and orders unsorted pages, whatever the id column
// holds.
const ordColumn = "_ord"

var tableNameRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// reservedTables are the catalog tables that imports must not overwrite.
var reservedTables = map[string]bool{
	"collections":    true,
	"table_info":     true,
	"docx_documents": true,
}

// ValidateTableName checks that name is usable as an imported table name.
func ValidateTableName(name string) error {
	if !tableNameRe.MatchString(name) || len(name) > 128 {
		return fmt.Errorf("%w %q: must match %s", ErrInvalidTableName, name, tableNameRe)
	}
	lower := strings.ToLower(name)
	if reservedTables[lower] || strings.HasPrefix(lower, "sqlite_") {
		return fmt.Errorf("%w %q: reserved", ErrInvalidTableName, name)
	}
	return nil
}

// ColumnStorageType maps an inferred dataset type to its storage type.
// Booleans are stored as 0 and 1.
func ColumnStorageType(t tabular.ColumnType) string {
	switch t {
	case tabular.TypeInteger, tabular.TypeBoolean:
		return SQLInt
	case tabular.TypeFloat:
		return SQLFloat
	default:
		return SQLStr
	}
}

func sqlDecl(storage string) string {
	switch storage {
	case SQLInt:
		return "INTEGER"
	case SQLFloat:
		return "REAL"
	default:
		return "TEXT"
	}
}

// ImportTable creates table name from ds and registers it in the catalog, all
// in one transaction. A column called "id" becomes the primary key; without
// one an auto-incrementing id is added.
func (s *Store) ImportTable(ctx context.Context, name, originalFilename string, collectionID ksid.ID, ds *tabular.Dataset) (*TableInfo, error) {
	if err := ValidateTableName(name); err != nil {
		return nil, err
	}
	info := &TableInfo{
		TableName:        name,
		OriginalFilename: originalFilename,
		Columns:          make([]ColumnInfo, len(ds.Columns)),
		RowCount:         ds.Len(),
		CollectionID:     collectionID,
		Created:          time.Now().UTC(),
	}
	for i, c := range ds.Columns {
		if strings.EqualFold(c.Name, ordColumn) {
			return nil, fmt.Errorf("%w %q", ErrReservedColumn, c.Name)
		}
		info.Columns[i] = ColumnInfo{Name: c.Name, Type: ColumnStorageType(c.Type), DType: c.Type}
	}
	colsJSON, err := json.Marshal(info.Columns)
	if err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin import of %q: %w", name, err)
	}
	defer func() { _ = tx.Rollback() }()

	var n int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM sqlite_master WHERE name = ? COLLATE NOCASE`, name).Scan(&n); err != nil {
		return nil, fmt.Errorf("failed to check table %q: %w", name, err)
	}
	if n != 0 {
		return nil, fmt.Errorf("%w: %q", ErrTableExists, name)
	}
	if _, err := tx.ExecContext(ctx, createTableSQL(info)); err != nil {
		return nil, fmt.Errorf("failed to create table %q: %w", name, err)
	}

	if len(ds.Columns) > 0 {
		quoted := make([]string, len(ds.Columns)+1)
		quoted[0] = quoteIdent(ordColumn)
		for i, c := range ds.Columns {
			quoted[i+1] = quoteIdent(c.Name)
		}
		stmt, err := tx.PrepareContext(ctx, fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
			quoteIdent(name), strings.Join(quoted, ", "), strings.TrimSuffix(strings.Repeat("?, ", len(quoted)), ", ")))
		if err != nil {
			return nil, fmt.Errorf("failed to prepare insert into %q: %w", name, err)
		}
		defer func() { _ = stmt.Close() }()
		args := make([]any, len(quoted))
		for r, row := range ds.Rows {
			args[0] = int64(r)
			for i, v := range row {
				args[i+1] = toSQL(v, ds.Columns[i].Type)
			}
			if _, err := stmt.ExecContext(ctx, args...); err != nil {
				return nil, fmt.Errorf("failed to insert row %d into %q: %w", r+1, name, err)
			}
		}
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO table_info (table_name, original_filename, columns_info, row_count, collection_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		name, originalFilename, string(colsJSON), info.RowCount, idToDB(collectionID), formatTime(info.Created)); err != nil {
		return nil, fmt.Errorf("failed to register table %q: %w", name, err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit import of %q: %w", name, err)
	}
	return info, nil
}

func createTableSQL(info *TableInfo) string {
	var defs []string
	if !info.hasID() {
		defs = append(defs, `"id" INTEGER PRIMARY KEY AUTOINCREMENT`)
	}
	for _, c := range info.Columns {
		d := quoteIdent(c.Name) + " " + sqlDecl(c.Type)
		if c.Name == "id" {
			d += " PRIMARY KEY"
		}
		defs = append(defs, d)
	}
	defs = append(defs, quoteIdent(ordColumn)+" INTEGER NOT NULL")
	return fmt.Sprintf("CREATE TABLE %s (%s)", quoteIdent(info.TableName), strings.Join(defs, ", "))
}

const tableInfoColumns = `table_name, original_filename, columns_info, row_count, collection_id, created_at`

// GetTable returns the catalog entry of table name.
func (s *Store) GetTable(ctx context.Context, name string) (*TableInfo, error) {
	return scanTableInfo(s.db.QueryRowContext(ctx,
		`SELECT `+tableInfoColumns+` FROM table_info WHERE table_name = ?`, name))
}

// ListTables returns the catalog entries in creation order. A non-zero
// collectionID restricts the list to that collection.
func (s *Store) ListTables(ctx context.Context, collectionID ksid.ID) ([]TableInfo, error) {
	q := `SELECT ` + tableInfoColumns + ` FROM table_info`
	var args []any
	if !collectionID.IsZero() {
		q += ` WHERE collection_id = ?`
		args = append(args, idToDB(collectionID))
	}
	q += ` ORDER BY created_at, table_name`
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}
	defer func() { _ = rows.Close() }()
	out := []TableInfo{}
	for rows.Next() {
		t, err := scanTableInfo(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

func scanTableInfo(row scanner) (*TableInfo, error) {
	var colsJSON, created string
	var collectionID sql.NullInt64
	t := &TableInfo{}
	if err := row.Scan(&t.TableName, &t.OriginalFilename, &colsJSON, &t.RowCount, &collectionID, &created); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to read table info: %w", err)
	}
	if err := json.Unmarshal([]byte(colsJSON), &t.Columns); err != nil {
		return nil, fmt.Errorf("corrupt columns_info for %q: %w", t.TableName, err)
	}
	t.CollectionID = idFromDB(collectionID)
	t.Created = parseTime(created)
	return t, nil
}
