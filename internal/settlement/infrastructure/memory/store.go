// Package memory holds the in-memory settlement record store used by
// tests and local runs.
package memory

import (
	"context"
	"sync"
	"time"

	settlement "lnwallet-cloud/internal/settlement/domain"
)

// RecordStore keeps settlement records in a map guarded by a mutex. The
// insert-if-absent and status transitions happen under one lock, which
// gives the same atomicity the SQL store gets from its constraints.
type RecordStore struct {
	mu      sync.Mutex
	records map[string]*settlement.Record
}

// NewRecordStore constructs an empty store.
func NewRecordStore() *RecordStore {
	return &RecordStore{records: make(map[string]*settlement.Record)}
}

// InsertPending inserts a pending record if the key is absent.
func (s *RecordStore) InsertPending(_ context.Context, key, quoteID string, now time.Time) (*settlement.Record, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.records[key]; ok {
		copied := *existing
		return &copied, false, nil
	}
	record := &settlement.Record{
		IdempotencyKey: key,
		QuoteID:        quoteID,
		Status:         settlement.StatusPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	s.records[key] = record
	copied := *record
	return &copied, true, nil
}

// ResetFailed moves a failed record back to pending for a new quote.
func (s *RecordStore) ResetFailed(_ context.Context, key, quoteID string, now time.Time) (*settlement.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.records[key]
	if !ok {
		return nil, settlement.ErrRecordNotFound
	}
	if record.Status != settlement.StatusFailed {
		return nil, settlement.ErrStatusConflict
	}
	record.Status = settlement.StatusPending
	record.QuoteID = quoteID
	record.ReceiptID = ""
	record.FailureReason = ""
	record.UpdatedAt = now
	copied := *record
	return &copied, nil
}

// MarkCommitted moves a pending record to committed.
func (s *RecordStore) MarkCommitted(_ context.Context, key, receiptID string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.records[key]
	if !ok {
		return settlement.ErrRecordNotFound
	}
	if record.Status != settlement.StatusPending {
		return settlement.ErrStatusConflict
	}
	record.Status = settlement.StatusCommitted
	record.ReceiptID = receiptID
	record.CommittedAt = now
	record.UpdatedAt = now
	return nil
}

// MarkFailed moves a pending record to failed.
func (s *RecordStore) MarkFailed(_ context.Context, key, reason string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.records[key]
	if !ok {
		return settlement.ErrRecordNotFound
	}
	if record.Status != settlement.StatusPending {
		return settlement.ErrStatusConflict
	}
	record.Status = settlement.StatusFailed
	record.FailureReason = reason
	record.UpdatedAt = now
	return nil
}

// FindByKey returns the record for the key.
func (s *RecordStore) FindByKey(_ context.Context, key string) (*settlement.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.records[key]
	if !ok {
		return nil, settlement.ErrRecordNotFound
	}
	copied := *record
	return &copied, nil
}

// ListPendingOlderThan returns pending records created before the cutoff.
func (s *RecordStore) ListPendingOlderThan(_ context.Context, cutoff time.Time, limit int) ([]settlement.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var result []settlement.Record
	for _, record := range s.records {
		if record.Status != settlement.StatusPending {
			continue
		}
		if !record.CreatedAt.Before(cutoff) {
			continue
		}
		result = append(result, *record)
		if limit > 0 && len(result) >= limit {
			break
		}
	}
	return result, nil
}
