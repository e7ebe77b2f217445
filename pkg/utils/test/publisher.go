package testutils

import (
	"context"
	"errors"
	"sync"

	"github.com/papercomputeco/engram/pkg/eventstream"
)

// MockPublisher is a test publisher that records published mutation events.
type MockPublisher struct {
	// FailPublish causes PublishMutation to return an error.
	FailPublish bool

	// Block, when non-nil, makes PublishMutation wait until the channel is
	// closed. Entered is closed when the first publish starts waiting, so a
	// test can synchronize on the publish being in flight.
	Block   chan struct{}
	Entered chan struct{}

	mu     sync.Mutex
	events []*eventstream.MemoryMutatedEvent

	enterOnce sync.Once
}

// NewMockPublisher creates a new mock publisher.
func NewMockPublisher() *MockPublisher {
	return &MockPublisher{
		events: make([]*eventstream.MemoryMutatedEvent, 0),
	}
}

func (m *MockPublisher) PublishMutation(_ context.Context, event *eventstream.MemoryMutatedEvent) error {
	if m.Block != nil {
		if m.Entered != nil {
			m.enterOnce.Do(func() { close(m.Entered) })
		}
		<-m.Block
	}

	if m.FailPublish {
		return errors.New("mock publish failure")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	return nil
}

// Events returns a copy of every event passed to PublishMutation.
func (m *MockPublisher) Events() []*eventstream.MemoryMutatedEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*eventstream.MemoryMutatedEvent(nil), m.events...)
}

func (m *MockPublisher) Close() error {
	return nil
}
