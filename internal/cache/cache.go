// Package cache provides a content-addressed disk cache for enrichment
// results. Identical prompts against the same model are common during
// development and in tests; caching them keeps iteration cheap and
// deterministic.
package cache

import (
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// ErrMiss is returned by Get when the key has no cached entry.
var ErrMiss = errors.New("cache: miss")

// Store is the minimal cache contract used by the enrichment layer.
type Store interface {
	// Get returns the cached bytes for key, or ErrMiss.
	Get(key string) ([]byte, error)

	// Put stores data under key, replacing any previous entry.
	Put(key string, data []byte) error
}

// Key builds a cache key from its parts. Parts are joined verbatim, so any
// value that identifies the request (model, prompt, language pair) should be
// included.
func Key(parts ...string) string {
	return strings.Join(parts, ":")
}

// Disk is a file-backed Store. Keys are hashed with MD5 so arbitrary prompt
// text maps to a flat directory of fixed-length file names.
type Disk struct {
	dir string
}

// Compile-time assertion.
var _ Store = (*Disk)(nil)

// NewDisk creates the cache directory if needed and returns a Disk store.
func NewDisk(dir string) (*Disk, error) {
	if dir == "" {
		return nil, errors.New("cache: dir must not be empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("cache: create dir %q: %w", dir, err)
	}
	return &Disk{dir: dir}, nil
}

func (d *Disk) path(key string) string {
	sum := md5.Sum([]byte(key))
	return filepath.Join(d.dir, hex.EncodeToString(sum[:])+".json")
}

// Get implements Store.
func (d *Disk) Get(key string) ([]byte, error) {
	data, err := os.ReadFile(d.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrMiss
	}
	if err != nil {
		return nil, fmt.Errorf("cache: read %q: %w", key, err)
	}
	return data, nil
}

// Put implements Store. The write goes through a temp file and rename so a
// crashed process never leaves a truncated entry behind.
func (d *Disk) Put(key string, data []byte) error {
	path := d.path(key)
	tmp, err := os.CreateTemp(d.dir, "put-*")
	if err != nil {
		return fmt.Errorf("cache: temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("cache: write %q: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("cache: close temp: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("cache: rename %q: %w", key, err)
	}
	return nil
}

// Null is a Store that caches nothing. Used when caching is disabled.
type Null struct{}

var _ Store = Null{}

// Get always reports a miss.
func (Null) Get(string) ([]byte, error) { return nil, ErrMiss }

// Put discards the data.
func (Null) Put(string, []byte) error { return nil }
