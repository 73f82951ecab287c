package store

import (
	"context"

	"github.com/keithsngth/wise-funnel-analysis/internal/domain"
)

// EventStore defines the interface for event storage operations. The dataset
// is loaded as a single static batch and never mutated afterwards.
type EventStore interface {
	// InitSchema creates the destination table if it does not exist, either
	// from a schema file supplied at construction or from the built-in DDL.
	InitSchema(ctx context.Context) error

	// Truncate removes all rows from the destination table while keeping
	// its structure, for replace-mode loads.
	Truncate(ctx context.Context) error

	// InsertBatch appends a batch of events and returns how many were written.
	InsertBatch(ctx context.Context, events []domain.Event) (int, error)

	// LoadFunnelEvents returns only the rows whose event name maps to a
	// funnel stage. Unmapped event names never reach the aggregators, so no
	// undefined stage ordinal can corrupt a window partition.
	LoadFunnelEvents(ctx context.Context) ([]domain.Event, error)

	// Ping checks that the backing database is reachable.
	Ping(ctx context.Context) error

	// Close releases the underlying connection.
	Close() error
}
