// Manages collections, the named groups that imported tables and documents belong to.

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/maruel/ksid"
)

// Collection groups tables and documents imported together.
type Collection struct {
	ID          ksid.ID
	Name        string
	Description string
	Created     time.Time
}

// CreateCollection inserts a new collection. The name must be unique.
func (s *Store) CreateCollection(ctx context.Context, name, description string) (*Collection, error) {
	if name == "" {
		return nil, errors.New("collection name is required")
	}
	c := &Collection{ID: ksid.NewID(), Name: name, Description: description, Created: time.Now().UTC()}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO collections (id, name, description, created_at) VALUES (?, ?, ?, ?)`,
		idToDB(c.ID), c.Name, c.Description, formatTime(c.Created))
	if err != nil {
		return nil, fmt.Errorf("failed to create collection %q: %w", name, err)
	}
	return c, nil
}

// EnsureCollection returns the collection called name, creating it with
// description when it does not exist yet. An existing collection keeps its
// description.
func (s *Store) EnsureCollection(ctx context.Context, name, description string) (*Collection, error) {
	if name == "" {
		return nil, errors.New("collection name is required")
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO collections (id, name, description, created_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(name) DO NOTHING`,
		idToDB(ksid.NewID()), name, description, formatTime(time.Now()))
	if err != nil {
		return nil, fmt.Errorf("failed to create collection %q: %w", name, err)
	}
	return s.CollectionByName(ctx, name)
}

// GetCollection returns the collection with the given id.
func (s *Store) GetCollection(ctx context.Context, id ksid.ID) (*Collection, error) {
	return scanCollection(s.db.QueryRowContext(ctx,
		`SELECT id, name, description, created_at FROM collections WHERE id = ?`, idToDB(id)))
}

// CollectionByName returns the collection with the given name.
func (s *Store) CollectionByName(ctx context.Context, name string) (*Collection, error) {
	return scanCollection(s.db.QueryRowContext(ctx,
		`SELECT id, name, description, created_at FROM collections WHERE name = ?`, name))
}

// ListCollections returns every collection, oldest first.
func (s *Store) ListCollections(ctx context.Context) ([]Collection, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, description, created_at FROM collections ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list collections: %w", err)
	}
	defer func() { _ = rows.Close() }()
	out := []Collection{}
	for rows.Next() {
		c, err := scanCollection(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanCollection(row scanner) (*Collection, error) {
	var id sql.NullInt64
	var created string
	c := &Collection{}
	if err := row.Scan(&id, &c.Name, &c.Description, &created); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to read collection: %w", err)
	}
	c.ID = idFromDB(id)
	c.Created = parseTime(created)
	return c, nil
}
