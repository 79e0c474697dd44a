package storage

import (
	"context"

	"github.com/dshills/semlaunch/pkg/types"
)

// Store persists the path <-> id <-> embedding state table that the vector
// cache and the scheduler share.
//
// Ids are assigned once per unique path and never change while the row
// exists. States only move up the richness order.
type Store interface {
	// InsertOrUpdate records that path has been embedded at state and returns
	// the path's id. A row already at a richer state keeps it.
	InsertOrUpdate(ctx context.Context, path string, state types.EmbeddingState) (types.ID, error)

	// GetIDByPath returns ErrNotFound when the path has no row.
	GetIDByPath(ctx context.Context, path string) (types.ID, error)

	// GetPathByID returns ErrNotFound when the id has no row.
	GetPathByID(ctx context.Context, id types.ID) (string, error)

	// GetStateByPath returns ErrNotFound when the path has no row.
	GetStateByPath(ctx context.Context, path string) (types.EmbeddingState, error)

	GetItemByID(ctx context.Context, id types.ID) (*Item, error)
	GetStatus(ctx context.Context) (*Status, error)

	Close() error
}

// Item is one row of the items table.
type Item struct {
	ID    types.ID
	Path  string
	State types.EmbeddingState
}

// Status contains row counts per richness tier.
type Status struct {
	Items      int
	None       int
	Name       int
	Paragraphs int
	SizeMB     float64
}
