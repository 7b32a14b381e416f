// Package cache remembers files that were checked clean so that an unchanged
// file is skipped on the next run with the same configuration.
package cache

import (
	"bytes"
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/vmihailenco/msgpack/v5"
	"go.uber.org/zap"

	"arbor/internal/logging"
)

// Current schema version - increment when payload format changes
const schemaVersion uint16 = 1

// payload is the on-disk form.
type payload struct {
	Schema uint16
	Config uint64            // отпечаток конфигурации
	Files  map[string]uint64 // путь -> xxhash содержимого
}

// Cache is a file-backed set of (path, content hash) pairs valid for one
// configuration fingerprint. A nil *Cache is a disabled cache.
// Thread-safe for concurrent access.
type Cache struct {
	mu     sync.RWMutex
	path   string
	config uint64
	files  map[string]uint64
	dirty  bool
	log    *zap.Logger
}

// Open loads the cache at path. A missing or unreadable file, another schema
// or another configuration fingerprint yields an empty cache.
func Open(path string, config uint64, log *zap.Logger) (*Cache, error) {
	c := &Cache{
		path:   path,
		config: config,
		files:  make(map[string]uint64),
		log:    logging.Or(log).Named(logging.ComponentCache),
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return c, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read cache: %w", err)
	}
	var p payload
	if err := msgpack.Unmarshal(data, &p); err != nil {
		c.log.Warn("cache file is corrupt, starting over", zap.String("path", path), zap.Error(err))
		c.dirty = true
		return c, nil
	}
	if p.Schema != schemaVersion || p.Config != config {
		c.log.Info("configuration changed, cache reset", zap.String("path", path))
		c.dirty = true
		return c, nil
	}
	if p.Files != nil {
		c.files = p.Files
	}
	return c, nil
}

// InCache reports whether path was clean with content hash h.
func (c *Cache) InCache(path string, h uint64) bool {
	if c == nil {
		return false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	got, ok := c.files[path]
	return ok && got == h
}

// Put records path as clean.
func (c *Cache) Put(path string, h uint64) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if got, ok := c.files[path]; !ok || got != h {
		c.files[path] = h
		c.dirty = true
	}
}

// Remove forgets path, e.g. after it produced events.
func (c *Cache) Remove(path string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.files[path]; ok {
		delete(c.files, path)
		c.dirty = true
	}
}

// Len returns the number of cached files.
func (c *Cache) Len() int {
	if c == nil {
		return 0
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.files)
}

// Persist writes the cache if it changed. The file is replaced atomically.
func (c *Cache) Persist() error {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.dirty {
		return nil
	}

	data, err := msgpack.Marshal(&payload{Schema: schemaVersion, Config: c.config, Files: c.files})
	if err != nil {
		return fmt.Errorf("encode cache: %w", err)
	}
	dir := filepath.Dir(c.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	f, err := os.CreateTemp(dir, ".arbor-cache-*")
	if err != nil {
		return err
	}
	tmp := f.Name()
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	// Атомарная замена
	if err := os.Rename(tmp, c.path); err != nil {
		os.Remove(tmp)
		return err
	}
	c.dirty = false
	c.log.Debug("cache persisted", zap.String("path", c.path), zap.Int("files", len(c.files)))
	return nil
}

// Fingerprint hashes v. The value is first reduced to plain msgpack data
// and then written with map keys in sorted order at every level, so equal
// values always give equal fingerprints.
func Fingerprint(v any) (uint64, error) {
	raw, err := msgpack.Marshal(v)
	if err != nil {
		return 0, fmt.Errorf("fingerprint: %w", err)
	}
	var plain any
	if err := msgpack.Unmarshal(raw, &plain); err != nil {
		return 0, fmt.Errorf("fingerprint: %w", err)
	}
	var buf bytes.Buffer
	if err := encodeSorted(msgpack.NewEncoder(&buf), plain); err != nil {
		return 0, fmt.Errorf("fingerprint: %w", err)
	}
	return xxhash.Sum64(buf.Bytes()), nil
}

func encodeSorted(enc *msgpack.Encoder, v any) error {
	switch v := v.(type) {
	case map[string]any:
		if err := enc.EncodeMapLen(len(v)); err != nil {
			return err
		}
		for _, k := range slices.Sorted(maps.Keys(v)) {
			if err := enc.EncodeString(k); err != nil {
				return err
			}
			if err := encodeSorted(enc, v[k]); err != nil {
				return err
			}
		}
		return nil
	case []any:
		if err := enc.EncodeArrayLen(len(v)); err != nil {
			return err
		}
		for _, e := range v {
			if err := encodeSorted(enc, e); err != nil {
				return err
			}
		}
		return nil
	}
	return enc.Encode(v)
}
