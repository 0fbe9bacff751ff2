// Package idcache remembers the destination identifiers returned by the chat
// platform for previously uploaded media, keyed by canonical source URI.
package idcache

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/memohai/mediadrop/internal/media"
)

// FileName is the cache file created inside the cache directory.
const FileName = "tg_id_cache.json"

type table struct {
	Tracks map[string]string `json:"tracks"`
	Videos map[string]string `json:"videos"`
}

func newTable() table {
	return table{Tracks: map[string]string{}, Videos: map[string]string{}}
}

func (t table) namespace(kind media.Kind) map[string]string {
	if kind == media.Audio {
		return t.Tracks
	}
	return t.Videos
}

// Cache is a concurrent URI to destination id table persisted as one JSON file.
type Cache struct {
	path string

	mu    sync.RWMutex
	table table

	flushMu sync.Mutex
}

// Entry is one row of a snapshot.
type Entry struct {
	Kind media.Kind
	URI  string
	ID   string
}

// Open loads the table stored at path. A missing file yields an empty
// cache; any other read or decode error is returned.
func Open(path string) (*Cache, error) {
	c := &Cache{path: path, table: newTable()}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return c, nil
		}
		return nil, fmt.Errorf("read id cache: %w", err)
	}
	var t table
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("decode id cache %s: %w", path, err)
	}
	if t.Tracks != nil {
		c.table.Tracks = t.Tracks
	}
	if t.Videos != nil {
		c.table.Videos = t.Videos
	}
	return c, nil
}

// Path returns the file the cache is flushed to.
func (c *Cache) Path() string { return c.path }

// Get returns the destination id recorded for uri in the kind namespace.
func (c *Cache) Get(uri string, kind media.Kind) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	id, ok := c.table.namespace(kind)[uri]
	return id, ok
}

// Set records id for uri, replacing any previous value.
func (c *Cache) Set(uri string, kind media.Kind, id string) {
	c.mu.Lock()
	c.table.namespace(kind)[uri] = id
	c.mu.Unlock()
}

// Len reports the number of entries per namespace.
func (c *Cache) Len() (tracks, videos int) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.table.Tracks), len(c.table.Videos)
}

// Snapshot returns every entry sorted by kind then URI.
func (c *Cache) Snapshot() []Entry {
	c.mu.RLock()
	entries := make([]Entry, 0, len(c.table.Tracks)+len(c.table.Videos))
	for uri, id := range c.table.Tracks {
		entries = append(entries, Entry{Kind: media.Audio, URI: uri, ID: id})
	}
	for uri, id := range c.table.Videos {
		entries = append(entries, Entry{Kind: media.Video, URI: uri, ID: id})
	}
	c.mu.RUnlock()
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Kind != entries[j].Kind {
			return entries[i].Kind < entries[j].Kind
		}
		return entries[i].URI < entries[j].URI
	})
	return entries
}

// Flush writes the whole table to disk. The file is replaced atomically so
// a crash mid-write leaves the previous contents intact.
func (c *Cache) Flush() error {
	c.flushMu.Lock()
	defer c.flushMu.Unlock()

	c.mu.RLock()
	data, err := json.Marshal(c.table)
	c.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("encode id cache: %w", err)
	}

	dir := filepath.Dir(c.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(c.path)+".*")
	if err != nil {
		return fmt.Errorf("create temp cache file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write id cache: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close id cache: %w", err)
	}
	if err := os.Rename(tmpName, c.path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("replace id cache: %w", err)
	}
	return nil
}
