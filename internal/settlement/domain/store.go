package settlement

import (
	"context"
	"time"
)

// RecordStore persists settlement records. InsertPending is the
// concurrency gate: it atomically inserts a pending record if and only
// if no record exists for the key, and reports whether this caller won.
type RecordStore interface {
	// InsertPending inserts a pending record for the key if absent. It
	// returns the record now stored for the key and whether this call
	// inserted it.
	InsertPending(ctx context.Context, key, quoteID string, now time.Time) (*Record, bool, error)

	// ResetFailed atomically moves a failed record back to pending for a
	// new quote, returning ErrStatusConflict if the record is no longer
	// failed.
	ResetFailed(ctx context.Context, key, quoteID string, now time.Time) (*Record, error)

	// MarkCommitted moves a pending record to committed with its receipt.
	MarkCommitted(ctx context.Context, key, receiptID string, now time.Time) error

	// MarkFailed moves a pending record to failed with a reason.
	MarkFailed(ctx context.Context, key, reason string, now time.Time) error

	// FindByKey returns the record for the key.
	FindByKey(ctx context.Context, key string) (*Record, error)

	// ListPendingOlderThan returns pending records created before the
	// cutoff, for the reconciliation sweep.
	ListPendingOlderThan(ctx context.Context, cutoff time.Time, limit int) ([]Record, error)
}
