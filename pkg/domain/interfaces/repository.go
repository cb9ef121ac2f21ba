package interfaces

import (
	"context"

	"github.com/secmon-lab/pilot/pkg/domain/model"
)

// MemoryStore is the durable, queryable record of past sessions and uploaded
// reference documents. Writes are append-only; a query never observes a
// record in two different versions mid-write. Implementations must tolerate
// an empty store and return empty result sets rather than errors.
type MemoryStore interface {
	// Put appends a record. The record's ID is generated when empty.
	Put(ctx context.Context, record *model.MemoryRecord) (model.RecordID, error)

	// Query returns records ranked by similarity to the query. Embedding is
	// optional; implementations fall back to text matching when it is nil.
	// Ties are broken by recency, most recent first.
	Query(ctx context.Context, text string, embedding []float32, scope model.QueryScope, limit int) ([]*model.MemoryRecord, error)

	// List returns all records of the given kind, most recent first
	List(ctx context.Context, kind model.RecordKind) ([]*model.MemoryRecord, error)

	// Close releases the store. Opened at process start, closed at shutdown.
	Close() error
}
