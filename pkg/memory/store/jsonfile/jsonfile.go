// Package jsonfile persists the memory store as a single JSON document on
// disk. Every save rewrites the whole file; the write goes to a temp file in
// the same directory and is renamed into place so readers never observe a
// half-written document.
package jsonfile

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/papercomputeco/engram/pkg/memory"
)

// DefaultPath is where the document lives when no path is configured,
// relative to the working directory.
const DefaultPath = "data/memory.json"

var _ memory.Persister = (*Driver)(nil)

// Driver implements memory.Persister against a JSON file.
type Driver struct {
	path string
}

// NewDriver creates a persister for the given file path. The file need not
// exist yet; the parent directory is created on first save.
func NewDriver(path string) (*Driver, error) {
	if path == "" {
		path = DefaultPath
	}
	return &Driver{path: path}, nil
}

// Path returns the backing file path.
func (d *Driver) Path() string {
	return d.path
}

// Load reads and decodes the document. A missing file is an empty store, not
// an error. A file that exists but cannot be decoded is an error; the caller
// decides whether to start empty.
func (d *Driver) Load(_ context.Context) (*memory.Store, error) {
	data, err := os.ReadFile(d.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading %s: %w", d.path, err)
	}

	var store memory.Store
	if err := json.Unmarshal(data, &store); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", d.path, err)
	}

	return &store, nil
}

// Save rewrites the full document atomically.
func (d *Driver) Save(_ context.Context, store *memory.Store) error {
	doc, err := json.MarshalIndent(store, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding store: %w", err)
	}

	dir := filepath.Dir(d.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(d.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(doc); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing temp file: %w", err)
	}

	if err := os.Rename(tmpPath, d.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("replacing %s: %w", d.path, err)
	}

	return nil
}

// Close is a no-op; the file is only held open during saves.
func (d *Driver) Close() error {
	return nil
}
