package memory

import "errors"

// ErrUIDRequired is returned when an operation receives an empty user identifier.
// An empty uid never creates a bucket.
var ErrUIDRequired = errors.New("uid required")

// ErrNodeIDRequired is returned when a node delete receives an empty node identifier.
var ErrNodeIDRequired = errors.New("nodeId required")
