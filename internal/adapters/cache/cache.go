// Package cache implements the persistent process-execution cache, keyed by
// request fingerprint.
package cache

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"go.trai.ch/forge/internal/core/domain"
	"go.trai.ch/forge/internal/core/ports"
	"go.trai.ch/zerr"
)

var _ ports.ActionCache = (*Cache)(nil)

// Cache stores one JSON file per fingerprint under dir, with the same
// write-to-temp-then-rename discipline as the blob store. Entries are written
// once and never mutated; reclamation runs out-of-band.
type Cache struct {
	dir string
}

// New creates an action cache rooted at dir, creating it if necessary.
func New(dir string) (*Cache, error) {
	if err := os.MkdirAll(dir, domain.DirPerm); err != nil {
		return nil, zerr.Wrap(err, domain.ErrCacheWriteFailed.Error())
	}
	return &Cache{dir: dir}, nil
}

// Get returns the cached result for the fingerprint, or nil on a miss.
func (c *Cache) Get(fingerprint string) (*domain.ProcessResult, error) {
	data, err := os.ReadFile(c.entryPath(fingerprint))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, zerr.Wrap(err, domain.ErrCacheReadFailed.Error())
	}

	var result domain.ProcessResult
	if err := json.Unmarshal(data, &result); err != nil {
		// A corrupt entry is a miss, not a fatal error: the execution can
		// simply rerun and overwrite it.
		return nil, nil
	}
	return &result, nil
}

// Put stores the result for the fingerprint. Concurrent writers of the same
// fingerprint store interchangeable results, so last-rename-wins is safe.
func (c *Cache) Put(fingerprint string, result domain.ProcessResult) error {
	data, err := json.Marshal(result)
	if err != nil {
		return zerr.Wrap(err, domain.ErrCacheWriteFailed.Error())
	}

	path := c.entryPath(fingerprint)
	if err := os.MkdirAll(filepath.Dir(path), domain.DirPerm); err != nil {
		return zerr.Wrap(err, domain.ErrCacheWriteFailed.Error())
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return zerr.Wrap(err, domain.ErrCacheWriteFailed.Error())
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return zerr.Wrap(err, domain.ErrCacheWriteFailed.Error())
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return zerr.Wrap(err, domain.ErrCacheWriteFailed.Error())
	}

	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return zerr.Wrap(err, domain.ErrCacheWriteFailed.Error())
	}
	return nil
}

// Reclaim removes entries older than maxAge, then evicts least-recently-used
// entries until the cache fits maxBytes. Zero values disable the respective
// bound.
func (c *Cache) Reclaim(maxBytes int64, maxAge time.Duration) error {
	type entry struct {
		path    string
		size    int64
		modTime time.Time
	}

	var entries []entry
	err := filepath.Walk(c.dir, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return err
		}
		entries = append(entries, entry{path: path, size: info.Size(), modTime: info.ModTime()})
		return nil
	})
	if err != nil {
		return zerr.Wrap(err, domain.ErrCacheReadFailed.Error())
	}

	now := time.Now()
	var total int64
	kept := entries[:0]
	for _, e := range entries {
		if maxAge > 0 && now.Sub(e.modTime) > maxAge {
			_ = os.Remove(e.path)
			continue
		}
		total += e.size
		kept = append(kept, e)
	}

	if maxBytes <= 0 || total <= maxBytes {
		return nil
	}

	// Oldest first until we fit.
	sort.Slice(kept, func(i, j int) bool { return kept[i].modTime.Before(kept[j].modTime) })
	for _, e := range kept {
		if total <= maxBytes {
			break
		}
		if err := os.Remove(e.path); err == nil {
			total -= e.size
		}
	}
	return nil
}

func (c *Cache) entryPath(fingerprint string) string {
	return filepath.Join(c.dir, fingerprint[:2], fingerprint+".json")
}
