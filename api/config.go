// Package api provides the JSON-over-HTTP server for the per-user memory
// store: profile get/set, node CRUD, reset, and similarity query.
package api

// DefaultListenAddr is the address the server binds when none is configured.
const DefaultListenAddr = ":8787"

// MaxBodyBytes caps inbound request bodies. Larger payloads are rejected
// with a 400 before any handler runs.
const MaxBodyBytes = 2 * 1024 * 1024

// Config is the API server configuration.
type Config struct {
	// ListenAddr is the address to listen on (e.g., ":8787")
	ListenAddr string
}
