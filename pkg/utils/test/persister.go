package testutils

import (
	"context"
	"errors"

	"github.com/papercomputeco/engram/pkg/memory"
)

// MockPersister is a test persister that records saves and returns a
// configurable store on load.
type MockPersister struct {
	// LoadStore is returned by Load.
	LoadStore *memory.Store

	// SaveCount is incremented on every Save.
	SaveCount int

	// LastSaved holds the store passed to the most recent Save.
	LastSaved *memory.Store

	// FailLoad causes Load to return an error.
	FailLoad bool

	// FailSave causes Save to return an error.
	FailSave bool
}

// NewMockPersister creates a new mock persister.
func NewMockPersister() *MockPersister {
	return &MockPersister{}
}

func (m *MockPersister) Load(_ context.Context) (*memory.Store, error) {
	if m.FailLoad {
		return nil, errors.New("mock load failure")
	}
	return m.LoadStore, nil
}

func (m *MockPersister) Save(_ context.Context, store *memory.Store) error {
	m.SaveCount++
	m.LastSaved = store
	if m.FailSave {
		return errors.New("mock save failure")
	}
	return nil
}

func (m *MockPersister) Close() error {
	return nil
}
