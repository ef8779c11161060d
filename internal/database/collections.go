package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// CollectionStore keeps each collection as one JSON row in the collections
// table. It satisfies store.Backend.
type CollectionStore struct {
	db *sql.DB
}

// NewCollectionStore creates a CollectionStore on an open, migrated database.
func NewCollectionStore(db *sql.DB) *CollectionStore {
	return &CollectionStore{db: db}
}

// Get returns the raw bytes stored for name, or nil when nothing was stored.
func (c *CollectionStore) Get(ctx context.Context, name string) ([]byte, error) {
	var data string
	err := c.db.QueryRowContext(ctx, `SELECT data FROM collections WHERE name = ?`, name).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get collection %s: %w", name, err)
	}
	return []byte(data), nil
}

// Put replaces the stored bytes for name in a single statement.
func (c *CollectionStore) Put(ctx context.Context, name string, data []byte) error {
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO collections (name, data, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		name, string(data), time.Now().UTC().Format(TimeLayout),
	)
	if err != nil {
		return fmt.Errorf("failed to put collection %s: %w", name, err)
	}
	return nil
}
