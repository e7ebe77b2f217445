package memory

import "context"

// Persister is the persistence port for the memory store. The service owns
// the in-memory document and calls Save with the full document after every
// mutation; Load runs once at construction.
//
// Implementations perform a full-document rewrite on Save. There is no
// transaction log and no partial update — this bounds the system to
// single-process, low-concurrency use, which is the target scale.
type Persister interface {
	// Load reconstructs the store. A missing backing document yields
	// (nil, nil), which callers treat as empty. Read and parse failures are
	// returned; the service logs them and starts empty rather than crashing.
	Load(ctx context.Context) (*Store, error)

	// Save durably replaces the backing document with the given store.
	Save(ctx context.Context, store *Store) error

	// Close releases driver resources.
	Close() error
}
