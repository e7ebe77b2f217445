// Package memory implements the per-user memory store: a durable record of a
// free-text profile plus named memory nodes, each carrying raw text and a
// derived embedding used for retrieval.
//
// The [Service] owns the in-memory document and mediates every read and
// write. Buckets are created lazily on first reference. Every mutation is
// followed by a best-effort full-document Save through the injected
// [Persister]; persistence failures are logged and never surfaced, so an
// operation's in-memory effect always wins over its on-disk copy.
//
// Input handling is deliberately permissive: unknown node fields are
// preserved verbatim, malformed optional fields fall back to defaults, and
// the only hard client errors are a missing uid or node id.
package memory

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/papercomputeco/engram/pkg/embeddings"
	"github.com/papercomputeco/engram/pkg/eventstream"
	"github.com/papercomputeco/engram/pkg/eventstream/nop"
	"github.com/papercomputeco/engram/pkg/utils"
)

// DefaultMaxResults caps query matches when no limit is configured.
const DefaultMaxResults = 8

// timeLayout is ISO-8601 UTC with millisecond precision.
const timeLayout = "2006-01-02T15:04:05.000Z07:00"

// Config holds configuration for the memory service.
type Config struct {
	// MaxResults is the hard cap on matches returned by Query.
	// Defaults to DefaultMaxResults if zero.
	MaxResults int
}

// Service owns the canonical mapping of users to buckets and nodes.
type Service struct {
	config    Config
	embedder  embeddings.Embedder
	persister Persister
	publisher eventstream.Publisher
	logger    *zap.Logger

	mu    sync.RWMutex
	store *Store
}

// NewService constructs the service and loads the store through the
// persister. A load failure is logged and the service starts empty — the
// store favors availability over strict durability.
func NewService(
	ctx context.Context,
	config Config,
	embedder embeddings.Embedder,
	persister Persister,
	publisher eventstream.Publisher,
	logger *zap.Logger,
) (*Service, error) {
	if embedder == nil {
		return nil, errors.New("embedder is required")
	}
	if persister == nil {
		return nil, errors.New("persister is required")
	}
	if logger == nil {
		return nil, errors.New("logger is required")
	}
	if publisher == nil {
		publisher = nop.NewPublisher()
	}

	if config.MaxResults <= 0 {
		config.MaxResults = DefaultMaxResults
	}

	s := &Service{
		config:    config,
		embedder:  embedder,
		persister: persister,
		publisher: publisher,
		logger:    logger,
	}

	store, err := persister.Load(ctx)
	if err != nil {
		logger.Error("failed to load memory store, starting empty", zap.Error(err))
		store = nil
	}
	if store == nil {
		store = NewStore()
	}
	store.Normalize()
	s.store = store

	return s, nil
}

// Reload replaces the in-memory store with a fresh Load from the persister.
// Used when the backing document changes outside the process.
func (s *Service) Reload(ctx context.Context) error {
	store, err := s.persister.Load(ctx)
	if err != nil {
		return fmt.Errorf("reloading memory store: %w", err)
	}
	if store == nil {
		store = NewStore()
	}
	store.Normalize()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.store = store

	return nil
}

// Close releases the persister and publisher.
func (s *Service) Close() error {
	perr := s.persister.Close()
	if err := s.publisher.Close(); err != nil && perr == nil {
		perr = err
	}
	return perr
}

// ProfileUpdate is a partial update of a bucket's profile. Nil fields keep
// the existing value.
type ProfileUpdate struct {
	MemoryVersion *string
	Text          *string
}

// Profile returns the bucket's profile, creating the bucket if needed.
func (s *Service) Profile(_ context.Context, uid string) (Profile, error) {
	if uid == "" {
		return Profile{}, ErrUIDRequired
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.bucket(uid).Profile, nil
}

// SetProfile applies a partial profile update and persists.
func (s *Service) SetProfile(ctx context.Context, uid string, update ProfileUpdate) error {
	if uid == "" {
		return ErrUIDRequired
	}

	s.mu.Lock()

	bucket := s.bucket(uid)

	memoryVersion := bucket.Profile.MemoryVersion
	if update.MemoryVersion != nil && *update.MemoryVersion != "" {
		memoryVersion = *update.MemoryVersion
	}
	if memoryVersion == "" {
		memoryVersion = DefaultMemoryVersion
	}

	text := bucket.Profile.Text
	if update.Text != nil {
		text = *update.Text
	}

	bucket.Profile = Profile{MemoryVersion: memoryVersion, Text: text}

	snapshot := s.store.Clone()
	s.mu.Unlock()

	s.persist(ctx, snapshot)
	s.publish(ctx, eventstream.NewMemoryMutatedEvent(uid, eventstream.OpProfileSet, ""))

	return nil
}

// ListNodes returns every node in the bucket with the vector stripped.
// Order is not guaranteed to match insertion.
func (s *Service) ListNodes(_ context.Context, uid string) ([]map[string]any, error) {
	if uid == "" {
		return nil, ErrUIDRequired
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	bucket := s.bucket(uid)

	nodes := make([]map[string]any, 0, len(bucket.Nodes))
	for _, node := range bucket.Nodes {
		nodes = append(nodes, node.Public())
	}

	return nodes, nil
}

// NodePatch is the caller-supplied portion of an upsert. Reserved fields the
// caller sent with unexpected types are treated as absent; everything beyond
// the reserved fields rides along in Extra.
type NodePatch struct {
	ID        string
	Content   string
	CreatedAt string
	Extra     map[string]json.RawMessage
}

// NodePatchFromRaw builds a patch from a decoded JSON object, defaulting
// reserved fields that are missing or not strings.
func NodePatchFromRaw(raw map[string]json.RawMessage) NodePatch {
	patch := NodePatch{}

	if v, ok := raw["id"]; ok {
		_ = json.Unmarshal(v, &patch.ID)
	}
	if v, ok := raw["content"]; ok {
		_ = json.Unmarshal(v, &patch.Content)
	}
	if v, ok := raw["created_at"]; ok {
		_ = json.Unmarshal(v, &patch.CreatedAt)
	}

	for k, v := range raw {
		if reservedNodeFields[k] {
			continue
		}
		if patch.Extra == nil {
			patch.Extra = make(map[string]json.RawMessage)
		}
		patch.Extra[k] = v
	}

	return patch
}

// UpsertNode inserts or overwrites a node, recomputing its embedding from the
// new content, and persists. Returns the stored node with the vector stripped.
func (s *Service) UpsertNode(ctx context.Context, uid string, patch NodePatch) (map[string]any, error) {
	if uid == "" {
		return nil, ErrUIDRequired
	}

	vec, err := s.embedder.Embed(ctx, patch.Content)
	if err != nil {
		return nil, fmt.Errorf("embedding node content: %w", err)
	}

	s.mu.Lock()

	bucket := s.bucket(uid)

	id := patch.ID
	if id == "" {
		id = newNodeID()
	}

	createdAt := patch.CreatedAt
	if createdAt == "" {
		createdAt = nowISO()
	}

	node := &Node{
		ID:        id,
		Content:   patch.Content,
		CreatedAt: createdAt,
		UpdatedAt: nowISO(),
		Vector:    vec,
		Extra:     patch.Extra,
	}
	bucket.Nodes[id] = node

	snapshot := s.store.Clone()
	s.mu.Unlock()

	s.logger.Debug("upserted memory node",
		zap.String("uid", uid),
		zap.String("node_id", id),
		zap.String("content", utils.Truncate(patch.Content, 80)),
	)

	s.persist(ctx, snapshot)
	s.publish(ctx, eventstream.NewMemoryMutatedEvent(uid, eventstream.OpNodeUpsert, id))

	return node.Public(), nil
}

// DeleteNode removes a node if present and persists. Deleting an absent node
// is not an error.
func (s *Service) DeleteNode(ctx context.Context, uid, nodeID string) error {
	if uid == "" {
		return ErrUIDRequired
	}
	if nodeID == "" {
		return ErrNodeIDRequired
	}

	s.mu.Lock()

	bucket := s.bucket(uid)
	delete(bucket.Nodes, nodeID)

	snapshot := s.store.Clone()
	s.mu.Unlock()

	s.persist(ctx, snapshot)
	s.publish(ctx, eventstream.NewMemoryMutatedEvent(uid, eventstream.OpNodeDelete, nodeID))

	return nil
}

// Reset blanks the profile text and removes every node, preserving the
// profile's memoryVersion. Persists.
func (s *Service) Reset(ctx context.Context, uid string) error {
	if uid == "" {
		return ErrUIDRequired
	}

	s.mu.Lock()

	bucket := s.bucket(uid)
	bucket.Profile = Profile{MemoryVersion: bucket.Profile.MemoryVersion, Text: ""}
	bucket.Nodes = make(map[string]*Node)

	snapshot := s.store.Clone()
	s.mu.Unlock()

	s.persist(ctx, snapshot)
	s.publish(ctx, eventstream.NewMemoryMutatedEvent(uid, eventstream.OpReset, ""))

	return nil
}

// bucket returns the bucket for uid, creating it lazily. Callers must hold
// the write lock; uid must be non-empty.
func (s *Service) bucket(uid string) *Bucket {
	bucket, ok := s.store.Users[uid]
	if !ok {
		bucket = NewBucket()
		s.store.Users[uid] = bucket
	}
	return bucket
}

// persist writes a store snapshot through the persistence port. Called after
// the service lock is released so a slow Save or publish never blocks other
// operations; concurrent mutations may persist out of order, last write wins.
// Failures are logged, never surfaced — the in-memory mutation already
// succeeded.
func (s *Service) persist(ctx context.Context, snapshot *Store) {
	if err := s.persister.Save(ctx, snapshot); err != nil {
		s.logger.Error("failed to persist memory store", zap.Error(err))
	}
}

// publish emits a mutation event, best effort.
func (s *Service) publish(ctx context.Context, event *eventstream.MemoryMutatedEvent) {
	if err := s.publisher.PublishMutation(ctx, event); err != nil {
		s.logger.Warn("failed to publish mutation event",
			zap.String("op", event.Op),
			zap.Error(err),
		)
	}
}

// newNodeID generates a node identifier, preferring a UUID and falling back
// to random hex.
func newNodeID() string {
	if id, err := uuid.NewRandom(); err == nil {
		return "mem_" + id.String()
	}

	b := make([]byte, 16)
	_, _ = rand.Read(b)
	return "mem_" + hex.EncodeToString(b)
}

// nowISO returns the current UTC time in ISO-8601 with millisecond precision.
func nowISO() string {
	return time.Now().UTC().Format(timeLayout)
}

// sortMatches orders matches by score descending, tie-broken by node ID
// ascending so equal scores come back in a stable, documented order.
func sortMatches(matches []Match) {
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].ID < matches[j].ID
	})
}
