package eventstream

import (
	"time"

	"github.com/google/uuid"
)

const (
	// SchemaVersionV1 is the first version of the event payload schema.
	SchemaVersionV1 = 1

	// EventTypeMemoryMutated is emitted after a memory bucket mutation is applied.
	EventTypeMemoryMutated = "engram.memory.mutated"
)

// Mutation op names carried in MemoryMutatedEvent.Op.
const (
	OpProfileSet = "profile.set"
	OpNodeUpsert = "node.upsert"
	OpNodeDelete = "node.delete"
	OpReset      = "reset"
)

// MemoryMutatedEvent is a transport-neutral event payload for an applied
// memory mutation. Consumers can use it to mirror the store, invalidate
// caches, or audit writes.
type MemoryMutatedEvent struct {
	SchemaVersion int       `json:"schema_version"`
	EventType     string    `json:"event_type"`
	EventID       string    `json:"event_id"`
	EmittedAt     time.Time `json:"emitted_at"`
	UID           string    `json:"uid"`
	Op            string    `json:"op"`
	NodeID        string    `json:"node_id,omitempty"`
}

// NewMemoryMutatedEvent builds a v1 mutation event with a fresh event ID.
func NewMemoryMutatedEvent(uid, op, nodeID string) *MemoryMutatedEvent {
	return &MemoryMutatedEvent{
		SchemaVersion: SchemaVersionV1,
		EventType:     EventTypeMemoryMutated,
		EventID:       uuid.NewString(),
		EmittedAt:     time.Now().UTC(),
		UID:           uid,
		Op:            op,
		NodeID:        nodeID,
	}
}
