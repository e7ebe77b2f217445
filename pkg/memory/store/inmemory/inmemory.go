// Package inmemory provides a memory-only persister. Documents survive a
// process's lifetime and nothing more. Useful for tests and ephemeral runs.
package inmemory

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/papercomputeco/engram/pkg/memory"
)

var _ memory.Persister = (*Driver)(nil)

// Driver implements memory.Persister against a serialized in-process copy.
type Driver struct {
	// mu guards doc across concurrent save/load cycles
	mu sync.RWMutex

	// doc is the last saved document, serialized so loads hand back an
	// independent copy rather than aliasing the service's live store
	doc []byte
}

// NewDriver creates a new in-memory persister with no document.
func NewDriver() *Driver {
	return &Driver{}
}

// Load returns a copy of the last saved store, or nil if nothing was saved.
func (d *Driver) Load(_ context.Context) (*memory.Store, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.doc == nil {
		return nil, nil
	}

	var store memory.Store
	if err := json.Unmarshal(d.doc, &store); err != nil {
		return nil, fmt.Errorf("decoding stored document: %w", err)
	}

	return &store, nil
}

// Save snapshots the full store.
func (d *Driver) Save(_ context.Context, store *memory.Store) error {
	doc, err := json.Marshal(store)
	if err != nil {
		return fmt.Errorf("encoding store: %w", err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.doc = doc

	return nil
}

// Close is a no-op.
func (d *Driver) Close() error {
	return nil
}
