package memory

import "encoding/json"

// DefaultMemoryVersion tags profiles created before the caller ever set one.
const DefaultMemoryVersion = "v4"

// Store is the root document: a mapping from user identifier to Bucket.
type Store struct {
	Users map[string]*Bucket `json:"users"`
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{Users: make(map[string]*Bucket)}
}

// Normalize repairs nil maps and missing profiles after loading a document
// written by an older process or edited by hand. Loaded data is trusted as
// little as possible; the invariant that every bucket has a profile and a
// node map must hold before any operation runs.
func (s *Store) Normalize() {
	if s.Users == nil {
		s.Users = make(map[string]*Bucket)
	}

	for uid, bucket := range s.Users {
		if bucket == nil {
			s.Users[uid] = NewBucket()
			continue
		}
		if bucket.Profile.MemoryVersion == "" {
			bucket.Profile.MemoryVersion = DefaultMemoryVersion
		}
		if bucket.Nodes == nil {
			bucket.Nodes = make(map[string]*Node)
		}
	}
}

// Clone returns a copy of the store suitable for reading outside the
// service lock. Bucket and node maps are copied; *Node values are shared,
// which is safe because nodes are replaced wholesale on upsert and never
// edited in place.
func (s *Store) Clone() *Store {
	out := &Store{Users: make(map[string]*Bucket, len(s.Users))}
	for uid, bucket := range s.Users {
		nodes := make(map[string]*Node, len(bucket.Nodes))
		for id, node := range bucket.Nodes {
			nodes[id] = node
		}
		out.Users[uid] = &Bucket{Profile: bucket.Profile, Nodes: nodes}
	}
	return out
}

// Bucket is the per-user container of profile and memory nodes.
type Bucket struct {
	Profile Profile          `json:"profile"`
	Nodes   map[string]*Node `json:"nodes"`
}

// NewBucket returns a bucket with the default profile and no nodes.
func NewBucket() *Bucket {
	return &Bucket{
		Profile: Profile{MemoryVersion: DefaultMemoryVersion},
		Nodes:   make(map[string]*Node),
	}
}

// Profile is the free-text portion of a bucket.
type Profile struct {
	MemoryVersion string `json:"memoryVersion"`
	Text          string `json:"text"`
}

// Node is a single stored text fact with its derived embedding.
//
// A node is an open record: callers may attach arbitrary extra fields and the
// store preserves them verbatim. The embedding vector is internal — it is
// persisted, but stripped from every API response via Public().
type Node struct {
	ID        string
	Content   string
	CreatedAt string
	UpdatedAt string
	Vector    []float32

	// Extra holds caller-supplied fields beyond the reserved ones,
	// round-tripped without interpretation.
	Extra map[string]json.RawMessage
}

// reservedNodeFields are managed by the store and always win over
// caller-supplied values of the same name.
var reservedNodeFields = map[string]bool{
	"id":         true,
	"content":    true,
	"created_at": true,
	"updated_at": true,
	"vector":     true,
}

// MarshalJSON flattens the node into a single object: extra fields first,
// reserved fields on top.
func (n *Node) MarshalJSON() ([]byte, error) {
	out := make(map[string]json.RawMessage, len(n.Extra)+5)
	for k, v := range n.Extra {
		out[k] = v
	}

	if err := putJSON(out, "id", n.ID); err != nil {
		return nil, err
	}
	if err := putJSON(out, "content", n.Content); err != nil {
		return nil, err
	}
	if err := putJSON(out, "created_at", n.CreatedAt); err != nil {
		return nil, err
	}
	if err := putJSON(out, "updated_at", n.UpdatedAt); err != nil {
		return nil, err
	}
	if n.Vector != nil {
		if err := putJSON(out, "vector", n.Vector); err != nil {
			return nil, err
		}
	}

	return json.Marshal(out)
}

// UnmarshalJSON splits an object into reserved fields and Extra. Reserved
// fields with unexpected types are left zero-valued rather than failing the
// whole document.
func (n *Node) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	if v, ok := raw["id"]; ok {
		_ = json.Unmarshal(v, &n.ID)
	}
	if v, ok := raw["content"]; ok {
		_ = json.Unmarshal(v, &n.Content)
	}
	if v, ok := raw["created_at"]; ok {
		_ = json.Unmarshal(v, &n.CreatedAt)
	}
	if v, ok := raw["updated_at"]; ok {
		_ = json.Unmarshal(v, &n.UpdatedAt)
	}
	if v, ok := raw["vector"]; ok {
		_ = json.Unmarshal(v, &n.Vector)
	}

	n.Extra = nil
	for k, v := range raw {
		if reservedNodeFields[k] {
			continue
		}
		if n.Extra == nil {
			n.Extra = make(map[string]json.RawMessage)
		}
		n.Extra[k] = v
	}

	return nil
}

// Public returns the node as a caller-facing object with the vector stripped.
func (n *Node) Public() map[string]any {
	out := make(map[string]any, len(n.Extra)+4)
	for k, v := range n.Extra {
		var decoded any
		if err := json.Unmarshal(v, &decoded); err == nil {
			out[k] = decoded
		}
	}
	out["id"] = n.ID
	out["content"] = n.Content
	out["created_at"] = n.CreatedAt
	out["updated_at"] = n.UpdatedAt
	return out
}

func putJSON(m map[string]json.RawMessage, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	m[key] = raw
	return nil
}
