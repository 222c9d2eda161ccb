// Package store is the record-store adapter: uniform create/read/update/
// delete/query operations over named logical tables. Business logic only
// ever sees logical table and field names; the translation to backend
// identifiers lives in the individual adapters and nowhere else.
package store

import (
	"context"
	"errors"
)

// Logical table names.
const (
	TableServiceRequests = "ServiceRequests"
	TableGarages         = "Garages"
	TableGarageReplies   = "GarageReplies"
)

// ErrNotFound reports that a record id does not exist in the table. Callers
// must be able to tell "no result" apart from a failed request, so adapters
// never return ErrNotFound for transport errors.
var ErrNotFound = errors.New("store: record not found")

// Record is one row, addressed by logical field names regardless of how the
// backend identifies fields.
type Record struct {
	ID     string
	Fields map[string]any
}

// Store is the uniform contract over the tabular backend. All operations
// are network calls on the Baserow adapter and may fail transiently; the
// local adapter backs tests and dev mode.
type Store interface {
	Create(ctx context.Context, table string, fields map[string]any) (Record, error)
	Get(ctx context.Context, table, id string) (Record, error)
	Query(ctx context.Context, table string, filter *Filter) ([]Record, error)
	Update(ctx context.Context, table, id string, fields map[string]any) (Record, error)
	Delete(ctx context.Context, table, id string) error
}
