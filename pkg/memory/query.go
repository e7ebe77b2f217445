package memory

import (
	"context"
	"fmt"

	"github.com/papercomputeco/engram/pkg/vector"
)

// ProfileMatchID is the synthetic match ID returned when a bucket has no
// nodes and the profile text stands in for them.
const ProfileMatchID = "profile"

// Match is a single retrieval result. Node carries the stored node with the
// vector stripped; it is nil for the synthetic profile match.
type Match struct {
	ID      string         `json:"id"`
	Content string         `json:"content,omitempty"`
	Score   float32        `json:"score"`
	Node    map[string]any `json:"node,omitempty"`
}

// Query embeds the query text and ranks the bucket's nodes by similarity.
// Only positive scores are returned, ordered best first, capped at the lesser
// of topK and the configured maximum. A bucket with no nodes but a non-empty
// profile yields a single synthetic profile match instead.
func (s *Service) Query(ctx context.Context, uid, query string, topK int) ([]Match, error) {
	if uid == "" {
		return nil, ErrUIDRequired
	}

	s.mu.Lock()
	bucket := s.bucket(uid)

	// Snapshot under the lock so embedding runs unlocked.
	profileText := bucket.Profile.Text
	nodes := make([]*Node, 0, len(bucket.Nodes))
	for _, node := range bucket.Nodes {
		nodes = append(nodes, node)
	}
	s.mu.Unlock()

	if len(nodes) == 0 {
		if profileText != "" {
			return []Match{{ID: ProfileMatchID, Content: profileText, Score: 1}}, nil
		}
		return []Match{}, nil
	}

	queryVec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	matches := make([]Match, 0, len(nodes))
	for _, node := range nodes {
		score := vector.Dot(queryVec, node.Vector)
		if score <= 0 {
			continue
		}
		matches = append(matches, Match{
			ID:      node.ID,
			Content: node.Content,
			Score:   score,
			Node:    node.Public(),
		})
	}

	sortMatches(matches)

	limit := s.config.MaxResults
	if topK > 0 && topK < limit {
		limit = topK
	}
	if len(matches) > limit {
		matches = matches[:limit]
	}

	return matches, nil
}
