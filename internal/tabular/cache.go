// Caches parsed datasets keyed by file path, invalidated by modification time.

package tabular

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// StatFunc returns the modification time of the file at path.
type StatFunc func(path string) (time.Time, error)

// LoadFunc parses the file at path.
type LoadFunc func(path string) (*Dataset, error)

// StatModTime is the default StatFunc.
func StatModTime(path string) (time.Time, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return time.Time{}, err
	}
	return fi.ModTime(), nil
}

// Cache holds one parsed dataset per canonical file path.
//
// An entry is served only while the file's modification time equals the one
// recorded at load; otherwise the file is reloaded in full and the entry is
// swapped. Concurrent misses on the same path share a single load.
//
// Entries are never evicted, so memory grows with the number of distinct
// files queried.
type Cache struct {
	stat  StatFunc
	load  LoadFunc
	group singleflight.Group

	mu      sync.Mutex
	entries map[string]*cachedDataset
}

type cachedDataset struct {
	ds    *Dataset
	mtime time.Time
}

// NewCache returns an empty cache. Nil functions default to StatModTime and
// LoadFile.
func NewCache(stat StatFunc, load LoadFunc) *Cache {
	if stat == nil {
		stat = StatModTime
	}
	if load == nil {
		load = LoadFile
	}
	return &Cache{stat: stat, load: load, entries: make(map[string]*cachedDataset)}
}

// Load returns the dataset stored at path, reading it if needed.
//
// Failures are returned as *LoadError and leave no entry behind.
func (c *Cache) Load(path string) (*Dataset, error) {
	key, err := canonicalPath(path)
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}
	if ds, ok, err := c.lookup(key); err != nil || ok {
		return ds, err
	}
	v, err, _ := c.group.Do(key, func() (any, error) {
		// Another caller may have finished the load while this one waited.
		if ds, ok, err := c.lookup(key); err != nil || ok {
			return ds, err
		}
		mtime, err := c.stat(key)
		if err != nil {
			return nil, &LoadError{Path: key, Err: err}
		}
		ds, err := c.load(key)
		if err != nil {
			c.mu.Lock()
			delete(c.entries, key)
			c.mu.Unlock()
			var le *LoadError
			if errors.As(err, &le) {
				return nil, err
			}
			return nil, &LoadError{Path: key, Err: err}
		}
		c.mu.Lock()
		c.entries[key] = &cachedDataset{ds: ds, mtime: mtime}
		c.mu.Unlock()
		return ds, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Dataset), nil
}

// lookup returns the cached dataset when it is still fresh.
func (c *Cache) lookup(key string) (*Dataset, bool, error) {
	mtime, err := c.stat(key)
	if err != nil {
		return nil, false, &LoadError{Path: key, Err: err}
	}
	c.mu.Lock()
	e := c.entries[key]
	c.mu.Unlock()
	if e != nil && e.mtime.Equal(mtime) {
		return e.ds, true, nil
	}
	return nil, false, nil
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// canonicalPath makes path absolute and resolves symlinks so that two
// spellings of the same file share an entry.
func canonicalPath(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	return filepath.EvalSymlinks(abs)
}
