package repository

import (
	"context"

	"github.com/heap-dump/pkg/model"
)

// DefaultListLimit caps ListDumps when no limit is given.
const DefaultListLimit = 50

// DumpRepository defines dump history operations.
type DumpRepository interface {
	// SaveDump inserts a record, replacing one with the same ID.
	SaveDump(ctx context.Context, rec *model.DumpRecord) error

	// GetDump retrieves a record by ID.
	GetDump(ctx context.Context, id string) (*model.DumpRecord, error)

	// ListDumps returns the newest records, optionally for one scene.
	ListDumps(ctx context.Context, scene string, limit int) ([]*model.DumpRecord, error)

	// DeleteDump removes a record by ID.
	DeleteDump(ctx context.Context, id string) error
}
