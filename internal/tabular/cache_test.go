package tabular

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func writeFile(t *testing.T, path, content string, mtime time.Time) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.Chtimes(path, mtime, mtime); err != nil {
		t.Fatal(err)
	}
}

func TestCache_ReloadsOnModification(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "data.csv")
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	writeFile(t, p, "a\n1\n", t0)

	var loads atomic.Int32
	c := NewCache(nil, func(path string) (*Dataset, error) {
		loads.Add(1)
		return LoadFile(path)
	})

	ds1, err := c.Load(p)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	ds2, err := c.Load(p)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if ds1 != ds2 {
		t.Error("unmodified file should be served from the cache")
	}
	if n := loads.Load(); n != 1 {
		t.Errorf("loads = %d, want 1", n)
	}

	writeFile(t, p, "a\n1\n2\n", t0.Add(time.Second))
	ds3, err := c.Load(p)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if ds3.Len() != 2 {
		t.Errorf("Len() = %d after modification, want 2", ds3.Len())
	}
	if n := loads.Load(); n != 2 {
		t.Errorf("loads = %d, want 2", n)
	}
	if c.Len() != 1 {
		t.Errorf("Len() = %d, want a single entry", c.Len())
	}
}

func TestCache_CanonicalPath(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "data.csv")
	writeFile(t, p, "a\n1\n", time.Now())
	link := filepath.Join(dir, "link.csv")
	if err := os.Symlink(p, link); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}
	c := NewCache(nil, nil)
	for _, path := range []string{p, filepath.Join(dir, ".", "data.csv"), link} {
		if _, err := c.Load(path); err != nil {
			t.Fatalf("Load(%q): %v", path, err)
		}
	}
	if c.Len() != 1 {
		t.Errorf("Len() = %d, want 1", c.Len())
	}
}

func TestCache_InjectedStat(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "data.csv")
	writeFile(t, p, "a\n1\n", time.Now())

	var mu sync.Mutex
	mtime := time.Unix(100, 0)
	stat := func(string) (time.Time, error) {
		mu.Lock()
		defer mu.Unlock()
		return mtime, nil
	}
	var loads atomic.Int32
	c := NewCache(stat, func(string) (*Dataset, error) {
		loads.Add(1)
		return &Dataset{Name: "fake"}, nil
	})
	for range 3 {
		if _, err := c.Load(p); err != nil {
			t.Fatal(err)
		}
	}
	mu.Lock()
	mtime = time.Unix(200, 0)
	mu.Unlock()
	if _, err := c.Load(p); err != nil {
		t.Fatal(err)
	}
	if n := loads.Load(); n != 2 {
		t.Errorf("loads = %d, want 2", n)
	}
}

func TestCache_Errors(t *testing.T) {
	dir := t.TempDir()
	c := NewCache(nil, nil)

	t.Run("missing file", func(t *testing.T) {
		_, err := c.Load(filepath.Join(dir, "missing.csv"))
		if !errors.Is(err, ErrDatasetLoad) {
			t.Fatalf("error = %v, want ErrDatasetLoad", err)
		}
	})
	t.Run("unparseable file leaves no entry", func(t *testing.T) {
		p := filepath.Join(dir, "bad.csv")
		writeFile(t, p, "a\n1,2\n", time.Now())
		_, err := c.Load(p)
		var le *LoadError
		if !errors.As(err, &le) {
			t.Fatalf("error = %v, want *LoadError", err)
		}
		if c.Len() != 0 {
			t.Errorf("Len() = %d, want 0", c.Len())
		}
	})
}

func TestCache_ConcurrentMisses(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "data.csv")
	writeFile(t, p, "a\n1\n", time.Now())

	var loads atomic.Int32
	release := make(chan struct{})
	c := NewCache(nil, func(path string) (*Dataset, error) {
		loads.Add(1)
		<-release
		return LoadFile(path)
	})
	var wg sync.WaitGroup
	for range 8 {
		wg.Go(func() {
			if _, err := c.Load(p); err != nil {
				t.Error(err)
			}
		})
	}
	// Let the goroutines pile up on the in-flight load.
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()
	if n := loads.Load(); n != 1 {
		t.Errorf("loads = %d, want 1", n)
	}
}
