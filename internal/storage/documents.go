// Stores the text extracted from uploaded documents.

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/maruel/ksid"
)

// Document is the extracted text of one uploaded file.
type Document struct {
	ID           ksid.ID
	CollectionID ksid.ID
	Filename     string
	Content      string
	Created      time.Time
}

// DocumentFilter narrows ListDocuments. Zero fields do not filter.
type DocumentFilter struct {
	CollectionID ksid.ID
	Filename     string
	Skip         int
	Limit        int
}

// CreateDocument stores d and assigns its ID and creation time.
func (s *Store) CreateDocument(ctx context.Context, d *Document) error {
	if d.Filename == "" {
		return errors.New("document filename is required")
	}
	d.ID = ksid.NewID()
	d.Created = time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO docx_documents (id, collection_id, filename, content, created_at) VALUES (?, ?, ?, ?, ?)`,
		idToDB(d.ID), idToDB(d.CollectionID), d.Filename, d.Content, formatTime(d.Created))
	if err != nil {
		return fmt.Errorf("failed to store document %q: %w", d.Filename, err)
	}
	return nil
}

// GetDocument returns the document with the given id.
func (s *Store) GetDocument(ctx context.Context, id ksid.ID) (*Document, error) {
	return scanDocument(s.db.QueryRowContext(ctx,
		`SELECT id, collection_id, filename, content, created_at FROM docx_documents WHERE id = ?`, idToDB(id)))
}

// ListDocuments returns the window of documents matching f, oldest first, and
// the number of matching documents before the window is applied. A
// non-positive Limit returns every document past Skip.
func (s *Store) ListDocuments(ctx context.Context, f DocumentFilter) ([]Document, int, error) {
	where := ""
	var args []any
	and := func(cond string, arg any) {
		if where == "" {
			where = " WHERE " + cond
		} else {
			where += " AND " + cond
		}
		args = append(args, arg)
	}
	if !f.CollectionID.IsZero() {
		and("collection_id = ?", idToDB(f.CollectionID))
	}
	if f.Filename != "" {
		and("filename = ?", f.Filename)
	}
	var total int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM docx_documents"+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count documents: %w", err)
	}
	limit := f.Limit
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, collection_id, filename, content, created_at FROM docx_documents"+where+" ORDER BY id LIMIT ? OFFSET ?",
		append(args, limit, max(f.Skip, 0))...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list documents: %w", err)
	}
	defer func() { _ = rows.Close() }()
	out := []Document{}
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *d)
	}
	return out, total, rows.Err()
}

func scanDocument(row scanner) (*Document, error) {
	var id, collectionID sql.NullInt64
	var created string
	d := &Document{}
	if err := row.Scan(&id, &collectionID, &d.Filename, &d.Content, &created); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to read document: %w", err)
	}
	d.ID = idFromDB(id)
	d.CollectionID = idFromDB(collectionID)
	d.Created = parseTime(created)
	return d, nil
}
