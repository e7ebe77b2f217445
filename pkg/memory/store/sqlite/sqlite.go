// Package sqlite persists the memory store in a SQLite database, one row
// per user bucket. Saves rewrite the whole table in a transaction, matching
// the full-document semantics of the other persisters.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/mattn/go-sqlite3" // registers the "sqlite3" driver

	"github.com/papercomputeco/engram/pkg/memory"
)

const schema = `
CREATE TABLE IF NOT EXISTS memory_buckets (
	uid TEXT PRIMARY KEY,
	doc TEXT NOT NULL
);
`

var _ memory.Persister = (*Driver)(nil)

// Driver implements memory.Persister using SQLite.
type Driver struct {
	db *sql.DB
}

// NewDriver opens (or creates) the database at dbPath. ":memory:" gives an
// ephemeral database.
func NewDriver(dbPath string) (*Driver, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &Driver{db: db}, nil
}

// Load reads every bucket row into a store. An empty table is an empty store.
func (d *Driver) Load(ctx context.Context) (*memory.Store, error) {
	rows, err := d.db.QueryContext(ctx, "SELECT uid, doc FROM memory_buckets")
	if err != nil {
		return nil, fmt.Errorf("querying buckets: %w", err)
	}
	defer rows.Close()

	store := memory.NewStore()
	for rows.Next() {
		var uid, doc string
		if err := rows.Scan(&uid, &doc); err != nil {
			return nil, fmt.Errorf("scanning bucket row: %w", err)
		}

		var bucket memory.Bucket
		if err := json.Unmarshal([]byte(doc), &bucket); err != nil {
			return nil, fmt.Errorf("decoding bucket for %s: %w", uid, err)
		}
		store.Users[uid] = &bucket
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating bucket rows: %w", err)
	}

	return store, nil
}

// Save replaces the table contents with the given store.
func (d *Driver) Save(ctx context.Context, store *memory.Store) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM memory_buckets"); err != nil {
		return fmt.Errorf("clearing buckets: %w", err)
	}

	for uid, bucket := range store.Users {
		doc, err := json.Marshal(bucket)
		if err != nil {
			return fmt.Errorf("encoding bucket for %s: %w", uid, err)
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO memory_buckets (uid, doc) VALUES (?, ?)",
			uid, string(doc),
		); err != nil {
			return fmt.Errorf("inserting bucket for %s: %w", uid, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	return nil
}

// Close closes the underlying database.
func (d *Driver) Close() error {
	return d.db.Close()
}
