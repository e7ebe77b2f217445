package config

import (
	"fmt"
	"strconv"
)

// Config represents the persistent engram configuration stored as config.toml
// in the .engram/ directory. The TOML layout uses sections for logical grouping.
type Config struct {
	Version     int               `toml:"version"`
	API         APIConfig         `toml:"api"`
	Store       StoreConfig       `toml:"store"`
	Embedding   EmbeddingConfig   `toml:"embedding"`
	Query       QueryConfig       `toml:"query"`
	EventStream EventStreamConfig `toml:"event_stream"`
	MCP         MCPConfig         `toml:"mcp"`
	Client      ClientConfig      `toml:"client"`
}

// APIConfig holds API server settings.
type APIConfig struct {
	Listen string `toml:"listen,omitempty"`
}

// StoreConfig holds persistence settings.
type StoreConfig struct {
	// Provider is one of "jsonfile", "memory", "sqlite", "postgres".
	Provider string `toml:"provider,omitempty"`

	// Path is the document path for the jsonfile provider, or the database
	// file for sqlite.
	Path string `toml:"path,omitempty"`

	// DSN is the connection string for the postgres provider.
	DSN string `toml:"dsn,omitempty"`

	// Watch reloads the store when the jsonfile document changes on disk.
	Watch bool `toml:"watch,omitempty"`
}

// EmbeddingConfig holds embedding settings.
type EmbeddingConfig struct {
	Dimensions uint `toml:"dimensions,omitempty"`
}

// QueryConfig holds retrieval settings.
type QueryConfig struct {
	MaxResults uint `toml:"max_results,omitempty"`
}

// EventStreamConfig holds mutation event publishing settings.
type EventStreamConfig struct {
	// Provider is "none" or "kafka".
	Provider string `toml:"provider,omitempty"`
	Brokers  string `toml:"brokers,omitempty"`
	Topic    string `toml:"topic,omitempty"`
}

// MCPConfig holds MCP server settings.
type MCPConfig struct {
	Enabled bool `toml:"enabled,omitempty"`
}

// ClientConfig holds settings for CLI commands that connect to a running
// server. Values are full URLs (scheme + host + port).
type ClientConfig struct {
	APITarget string `toml:"api_target,omitempty"`
}

// configKeyInfo maps a user-facing dotted key name to a getter and setter on *Config.
type configKeyInfo struct {
	get func(c *Config) string
	set func(c *Config, v string) error
}

// configKeys is the authoritative map of all supported config keys.
// Keys use dotted notation matching the TOML section structure.
var configKeys = map[string]configKeyInfo{
	"api.listen": {
		get: func(c *Config) string { return c.API.Listen },
		set: func(c *Config, v string) error { c.API.Listen = v; return nil },
	},
	"store.provider": {
		get: func(c *Config) string { return c.Store.Provider },
		set: func(c *Config, v string) error { c.Store.Provider = v; return nil },
	},
	"store.path": {
		get: func(c *Config) string { return c.Store.Path },
		set: func(c *Config, v string) error { c.Store.Path = v; return nil },
	},
	"store.dsn": {
		get: func(c *Config) string { return c.Store.DSN },
		set: func(c *Config, v string) error { c.Store.DSN = v; return nil },
	},
	"store.watch": {
		get: func(c *Config) string { return strconv.FormatBool(c.Store.Watch) },
		set: func(c *Config, v string) error {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("invalid value for store.watch: %w", err)
			}
			c.Store.Watch = b
			return nil
		},
	},
	"embedding.dimensions": {
		get: func(c *Config) string {
			if c.Embedding.Dimensions == 0 {
				return ""
			}
			return strconv.FormatUint(uint64(c.Embedding.Dimensions), 10)
		},
		set: func(c *Config, v string) error {
			n, err := strconv.ParseUint(v, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid value for embedding.dimensions: %w", err)
			}
			c.Embedding.Dimensions = uint(n)
			return nil
		},
	},
	"query.max_results": {
		get: func(c *Config) string {
			if c.Query.MaxResults == 0 {
				return ""
			}
			return strconv.FormatUint(uint64(c.Query.MaxResults), 10)
		},
		set: func(c *Config, v string) error {
			n, err := strconv.ParseUint(v, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid value for query.max_results: %w", err)
			}
			c.Query.MaxResults = uint(n)
			return nil
		},
	},
	"event_stream.provider": {
		get: func(c *Config) string { return c.EventStream.Provider },
		set: func(c *Config, v string) error { c.EventStream.Provider = v; return nil },
	},
	"event_stream.brokers": {
		get: func(c *Config) string { return c.EventStream.Brokers },
		set: func(c *Config, v string) error { c.EventStream.Brokers = v; return nil },
	},
	"event_stream.topic": {
		get: func(c *Config) string { return c.EventStream.Topic },
		set: func(c *Config, v string) error { c.EventStream.Topic = v; return nil },
	},
	"mcp.enabled": {
		get: func(c *Config) string { return strconv.FormatBool(c.MCP.Enabled) },
		set: func(c *Config, v string) error {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("invalid value for mcp.enabled: %w", err)
			}
			c.MCP.Enabled = b
			return nil
		},
	},
	"client.api_target": {
		get: func(c *Config) string { return c.Client.APITarget },
		set: func(c *Config, v string) error { c.Client.APITarget = v; return nil },
	},
}
