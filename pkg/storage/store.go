package storage

import (
	"context"

	"moveout/pkg/models"
)

// SchemaVersion is the on-disk layout version. Version 1 had no drafts collection.
const SchemaVersion = 2

// Store is the durable persistence boundary for published items and the
// single draft slot. Every method returns only after the write is durable.
type Store interface {
	// Put inserts or overwrites an item by ID.
	Put(ctx context.Context, item *models.SaleItem) error
	// Get returns one item or ErrItemNotFound.
	Get(ctx context.Context, id string) (*models.SaleItem, error)
	// GetAll returns every published item in no particular order.
	GetAll(ctx context.Context) ([]*models.SaleItem, error)
	// Update performs an atomic read-modify-write of one item.
	Update(ctx context.Context, id string, fn func(*models.SaleItem) error) (*models.SaleItem, error)
	// Delete removes an item; deleting a missing ID is not an error.
	Delete(ctx context.Context, id string) error

	// PutDraft overwrites the draft slot.
	PutDraft(ctx context.Context, item *models.SaleItem) error
	// GetLatestDraft returns the draft, or nil when the slot is empty.
	GetLatestDraft(ctx context.Context) (*models.SaleItem, error)
	// ClearDrafts empties the draft collection unconditionally.
	ClearDrafts(ctx context.Context) error

	Close() error
}

// ChangeOp describes an external modification of the items collection
type ChangeOp string

const (
	ChangeWrite  ChangeOp = "write"
	ChangeRemove ChangeOp = "remove"
)

// Change is reported for modifications the store did not make itself
type Change struct {
	ID string
	Op ChangeOp
}

// Watchable stores report changes made behind their back (e.g. sync tools).
type Watchable interface {
	Watch(onChange func(Change)) error
}

// Quarantiner stores can move an unreadable record aside.
type Quarantiner interface {
	Quarantine(id string) error
}

// Backupper stores can produce an archive of their contents.
type Backupper interface {
	Backup(ctx context.Context) (string, error)
}
