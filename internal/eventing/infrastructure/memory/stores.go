// Package memory holds in-memory eventing stores for tests and local runs.
package memory

import (
	"context"
	"sync"

	"lnwallet-cloud/internal/eventing"
)

// OutboxStore keeps outbox records in memory.
type OutboxStore struct {
	mu      sync.Mutex
	records []outboxRecord
}

type outboxRecord struct {
	id     string
	env    eventing.Envelope
	status string
}

// NewOutboxStore constructs an empty outbox store.
func NewOutboxStore() *OutboxStore {
	return &OutboxStore{}
}

// Insert appends a pending record.
func (s *OutboxStore) Insert(_ context.Context, env eventing.Envelope) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := eventing.NewEventID()
	s.records = append(s.records, outboxRecord{id: id, env: env, status: "pending"})
	return id, nil
}

// ListPending returns pending records in insertion order.
func (s *OutboxStore) ListPending(_ context.Context, limit int) ([]eventing.OutboxRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var result []eventing.OutboxRecord
	for _, record := range s.records {
		if record.status != "pending" {
			continue
		}
		result = append(result, eventing.OutboxRecord{ID: record.id, Envelope: record.env})
		if limit > 0 && len(result) >= limit {
			break
		}
	}
	return result, nil
}

// MarkSent marks a record sent.
func (s *OutboxStore) MarkSent(_ context.Context, id string) error {
	return s.setStatus(id, "sent")
}

// MarkFailed marks a record failed.
func (s *OutboxStore) MarkFailed(_ context.Context, id string) error {
	return s.setStatus(id, "failed")
}

func (s *OutboxStore) setStatus(id, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.records {
		if s.records[i].id == id {
			s.records[i].status = status
			return nil
		}
	}
	return nil
}

// ProcessedStore tracks consumed event ids in memory.
type ProcessedStore struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

// NewProcessedStore constructs an empty processed store.
func NewProcessedStore() *ProcessedStore {
	return &ProcessedStore{seen: make(map[string]struct{})}
}

// HasProcessed reports whether the consumer handled the event.
func (s *ProcessedStore) HasProcessed(_ context.Context, eventID, consumerName string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.seen[eventID+"/"+consumerName]
	return ok, nil
}

// MarkProcessed records the event as handled.
func (s *ProcessedStore) MarkProcessed(_ context.Context, eventID, consumerName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seen[eventID+"/"+consumerName] = struct{}{}
	return nil
}
