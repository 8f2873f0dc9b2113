package settlement

import "time"

// Status is the settlement record lifecycle state.
type Status string

const (
	// StatusPending marks a claimed settlement whose ledger outcome is
	// not yet known. Ambiguous outcomes stay here until reconciled.
	StatusPending Status = "pending"
	// StatusCommitted marks a settlement whose transfer is on the ledger.
	StatusCommitted Status = "committed"
	// StatusFailed marks a definitively failed settlement. A failed
	// record can be superseded by a retry.
	StatusFailed Status = "failed"
)

// Valid reports whether the status is a known lifecycle state.
func (s Status) Valid() bool {
	return s == StatusPending || s == StatusCommitted || s == StatusFailed
}

// Terminal reports whether the status admits no further transitions
// other than supersession of a failed record.
func (s Status) Terminal() bool {
	return s == StatusCommitted || s == StatusFailed
}

// Record tracks one settlement attempt per idempotency key. The key is
// derived from the quote's rail identity, so all submissions of the same
// logical payment converge on one record.
type Record struct {
	IdempotencyKey string
	QuoteID        string
	Status         Status
	ReceiptID      string
	FailureReason  string
	CreatedAt      time.Time
	UpdatedAt      time.Time
	CommittedAt    time.Time
}
