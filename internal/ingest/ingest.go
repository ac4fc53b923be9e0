// Package ingest imports CSV, JSON and DOCX files into the relational store.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/maruel/ksid"
	"github.com/maruel/tabserve/internal/docx"
	"github.com/maruel/tabserve/internal/storage"
	"github.com/maruel/tabserve/internal/tabular"
	"github.com/panjf2000/ants/v2"
)

// File types accepted by imports.
const (
	TypeCSV  = "csv"
	TypeJSON = "json"
)

var (
	// ErrOutsideRoot is returned for server-side paths outside the import root.
	ErrOutsideRoot = errors.New("path outside import root")
	// ErrUnsupportedType is returned for file types other than csv and json.
	ErrUnsupportedType = errors.New("unsupported file type")
	// ErrEmpty is returned when a JSON document holds no records.
	ErrEmpty = errors.New("no records")
)

// Ingester imports files into a Store. Batch imports run on a bounded worker
// pool shared by all requests.
type Ingester struct {
	store *storage.Store
	root  string
	pool  *ants.Pool
}

// New returns an ingester writing to store. Server-side paths must resolve
// inside root; workers bounds concurrent imports.
func New(store *storage.Store, root string, workers int) (*Ingester, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		abs = resolved
	}
	pool, err := ants.NewPool(max(workers, 1), ants.WithPanicHandler(func(v any) {
		slog.Error("ingest worker panic", "panic", v)
	}))
	if err != nil {
		return nil, fmt.Errorf("failed to create worker pool: %w", err)
	}
	return &Ingester{store: store, root: abs, pool: pool}, nil
}

// Close waits up to timeout for running imports and releases the pool.
func (in *Ingester) Close(timeout time.Duration) error {
	return in.pool.ReleaseTimeout(timeout)
}

// Root returns the directory server-side paths are confined to.
func (in *Ingester) Root() string { return in.root }

// ResolvePath returns the canonical form of p, which must lie inside the
// import root. Relative paths are taken relative to the root.
func (in *Ingester) ResolvePath(p string) (string, error) {
	if p == "" {
		return "", errors.New("file path is required")
	}
	if !filepath.IsAbs(p) {
		p = filepath.Join(in.root, p)
	}
	resolved, err := filepath.EvalSymlinks(filepath.Clean(p))
	if err != nil {
		return "", err
	}
	rel, err := filepath.Rel(in.root, resolved)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrOutsideRoot, p)
	}
	return resolved, nil
}

// DetectType maps an explicit type or, when empty, the file extension to a
// file type. Anything unknown defaults to csv, like an unlabelled upload.
func DetectType(fileType, path string) (string, error) {
	t := strings.ToLower(strings.TrimSpace(fileType))
	if t == "" {
		if strings.EqualFold(filepath.Ext(path), ".json") {
			return TypeJSON, nil
		}
		return TypeCSV, nil
	}
	if t != TypeCSV && t != TypeJSON {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedType, fileType)
	}
	return t, nil
}

// TableName derives a fresh table name from a file name: the sanitized stem
// followed by a unique suffix.
func TableName(filename string) string {
	stem := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	var b strings.Builder
	for _, r := range strings.ToLower(stem) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_' {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	s := strings.Trim(b.String(), "_")
	if s == "" || (s[0] >= '0' && s[0] <= '9') {
		s = "t_" + s
	}
	if len(s) > 64 {
		s = s[:64]
	}
	return s + "_" + strconv.FormatUint(uint64(ksid.NewID()), 36)
}

// Import parses r as fileType and stores it as tableName, generated from
// filename when empty.
func (in *Ingester) Import(ctx context.Context, r io.Reader, fileType, filename, tableName string, collectionID ksid.ID) (*storage.TableInfo, error) {
	var ds *tabular.Dataset
	var err error
	switch fileType {
	case TypeCSV:
		ds, err = tabular.LoadCSV(r, filename)
	case TypeJSON:
		ds, err = tabular.LoadJSON(r, filename)
		if err == nil && ds.Len() == 0 {
			err = ErrEmpty
		}
	default:
		err = fmt.Errorf("%w: %q", ErrUnsupportedType, fileType)
	}
	if err != nil {
		return nil, &tabular.LoadError{Path: filename, Err: err}
	}
	if tableName == "" {
		tableName = TableName(filename)
	}
	info, err := in.store.ImportTable(ctx, tableName, filename, collectionID, ds)
	if err != nil {
		return nil, err
	}
	slog.InfoContext(ctx, "ingest", "table", info.TableName, "file", filename, "rows", info.RowCount)
	return info, nil
}

// ImportFile imports the server-side file at path.
func (in *Ingester) ImportFile(ctx context.Context, path, fileType, tableName string, collectionID ksid.ID) (*storage.TableInfo, error) {
	resolved, err := in.ResolvePath(path)
	if err != nil {
		return nil, err
	}
	fileType, err = DetectType(fileType, resolved)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(resolved) //nolint:gosec // G304: confined to the import root by ResolvePath
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	return in.Import(ctx, f, fileType, filepath.Base(resolved), tableName, collectionID)
}

// FileSpec is one file of a batch import.
type FileSpec struct {
	FilePath  string
	TableName string
	FileType  string
}

// Result statuses.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// FileResult reports the outcome of one file of a batch.
type FileResult struct {
	FilePath  string
	TableName string
	Status    string
	Columns   []storage.ColumnInfo
	Error     string
}

// BatchResult is the outcome of Batch.
type BatchResult struct {
	Collection *storage.Collection
	Results    []FileResult
}

// Batch imports files into the collection called name, creating it when
// needed. Files are imported concurrently; a failing file does not stop the
// others. Results are in input order.
func (in *Ingester) Batch(ctx context.Context, name, description string, files []FileSpec) (*BatchResult, error) {
	coll, err := in.store.EnsureCollection(ctx, name, description)
	if err != nil {
		return nil, err
	}
	res := &BatchResult{Collection: coll, Results: make([]FileResult, len(files))}
	in.run(len(files), func(i int) {
		f := files[i]
		r := &res.Results[i]
		r.FilePath = f.FilePath
		r.Status = StatusError
		info, err := in.ImportFile(ctx, f.FilePath, f.FileType, f.TableName, coll.ID)
		if err != nil {
			r.Error = err.Error()
			return
		}
		r.Status = StatusSuccess
		r.TableName = info.TableName
		r.Columns = info.Columns
	})
	return res, nil
}

// DocResult reports the outcome of one document of a batch.
type DocResult struct {
	FilePath   string
	Status     string
	DocumentID ksid.ID
	Filename   string
	Error      string
}

// Summary counts batch outcomes.
type Summary struct {
	Total   int
	Success int
	Failed  int
}

// DocxBatchResult is the outcome of BatchDocx.
type DocxBatchResult struct {
	Collection *storage.Collection
	Results    []DocResult
	Summary    Summary
}

// BatchDocx extracts the text of each document and stores it in the
// collection called name.
func (in *Ingester) BatchDocx(ctx context.Context, name string, paths []string) (*DocxBatchResult, error) {
	coll, err := in.store.EnsureCollection(ctx, name, "")
	if err != nil {
		return nil, err
	}
	res := &DocxBatchResult{Collection: coll, Results: make([]DocResult, len(paths))}
	in.run(len(paths), func(i int) {
		r := &res.Results[i]
		r.FilePath = paths[i]
		r.Status = StatusError
		resolved, err := in.ResolvePath(paths[i])
		if err != nil {
			r.Error = err.Error()
			return
		}
		text, err := docx.ExtractFile(resolved)
		if err != nil {
			r.Error = err.Error()
			return
		}
		d := &storage.Document{CollectionID: coll.ID, Filename: filepath.Base(resolved), Content: text}
		if err := in.store.CreateDocument(ctx, d); err != nil {
			r.Error = err.Error()
			return
		}
		r.Status = StatusSuccess
		r.DocumentID = d.ID
		r.Filename = d.Filename
	})
	res.Summary.Total = len(res.Results)
	for _, r := range res.Results {
		if r.Status == StatusSuccess {
			res.Summary.Success++
		} else {
			res.Summary.Failed++
		}
	}
	return res, nil
}

// run calls fn(0..n-1) on the pool and waits for all of them.
func (in *Ingester) run(n int, fn func(i int)) {
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		if err := in.pool.Submit(func() {
			defer wg.Done()
			fn(i)
		}); err != nil {
			// Pool closed or overloaded; run inline rather than drop the file.
			slog.Warn("ingest pool submit failed", "err", err)
			fn(i)
			wg.Done()
		}
	}
	wg.Wait()
}
