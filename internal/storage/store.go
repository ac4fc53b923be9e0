// Opens the SQLite database holding ingested tables, collections and documents.

// Package storage persists ingested tables, their collections and extracted
// documents in a SQLite database.
//
// Every imported file becomes its own SQL table; the table_info catalog
// records its origin and column types so that the table can later be queried
// with the same filter and sort grammar as files on disk.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/maruel/ksid"
	_ "modernc.org/sqlite" // registers the "sqlite" driver
)

var (
	// ErrNotFound is returned when a row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrTableExists is returned when importing into a table name already in use.
	ErrTableExists = errors.New("table already exists")
	// ErrInvalidTableName is returned for names unusable as an SQL table.
	ErrInvalidTableName = errors.New("invalid table name")
	// ErrReservedColumn is returned when a dataset uses a column name the store
	// keeps for itself.
	ErrReservedColumn = errors.New("reserved column name")
)

const schema = `
CREATE TABLE IF NOT EXISTS collections (
	id          INTEGER PRIMARY KEY,
	name        TEXT NOT NULL UNIQUE,
	description TEXT NOT NULL DEFAULT '',
	created_at  TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS table_info (
	table_name        TEXT PRIMARY KEY,
	original_filename TEXT NOT NULL DEFAULT '',
	columns_info      TEXT NOT NULL,
	row_count         INTEGER NOT NULL DEFAULT 0,
	collection_id     INTEGER REFERENCES collections(id),
	created_at        TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS table_info_collection ON table_info(collection_id);
CREATE TABLE IF NOT EXISTS docx_documents (
	id            INTEGER PRIMARY KEY,
	collection_id INTEGER REFERENCES collections(id),
	filename      TEXT NOT NULL,
	content       TEXT NOT NULL DEFAULT '',
	created_at    TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS docx_documents_collection ON docx_documents(collection_id);
`

var registerOnce sync.Once

// Store is the SQLite-backed persistence layer. It is safe for concurrent use;
// writes are serialized on a single connection.
type Store struct {
	db *sql.DB
}

// Open opens or creates the database at path and ensures the catalog tables
// exist.
func Open(ctx context.Context, path string) (*Store, error) {
	var regErr error
	registerOnce.Do(func() { regErr = registerFunctions() })
	if regErr != nil {
		return nil, fmt.Errorf("failed to register SQL functions: %w", regErr)
	}
	dsn := path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// quoteIdent quotes a SQL identifier.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}

func idFromDB(v sql.NullInt64) ksid.ID {
	if !v.Valid {
		return 0
	}
	return ksid.ID(uint64(v.Int64)) //nolint:gosec // G115: ids are stored as their int64 bit pattern
}

func idToDB(id ksid.ID) any {
	if id.IsZero() {
		return nil
	}
	return int64(id) //nolint:gosec // G115: ids fit in 63 bits
}
