package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"lnwallet-cloud/internal/eventing"
)

const defaultDLQTable = "event_dlq"

// DLQStore records undeliverable events.
type DLQStore struct {
	db    *sql.DB
	table string
}

// NewDLQStore constructs a dead letter store.
func NewDLQStore(db *sql.DB, opts ...DLQOption) *DLQStore {
	store := &DLQStore{db: db, table: defaultDLQTable}
	for _, opt := range opts {
		opt(store)
	}
	return store
}

// DLQOption configures the dead letter store.
type DLQOption func(*DLQStore)

// WithDLQTable overrides the table name.
func WithDLQTable(table string) DLQOption {
	return func(store *DLQStore) {
		if table != "" {
			store.table = table
		}
	}
}

// RecordFailure stores the envelope and the delivery error.
func (s *DLQStore) RecordFailure(ctx context.Context, env eventing.Envelope, cause error) error {
	if s == nil || s.db == nil {
		return errors.New("dlq store: nil db")
	}
	payload, err := json.Marshal(env)
	if err != nil {
		return err
	}
	reason := ""
	if cause != nil {
		reason = cause.Error()
	}
	query := fmt.Sprintf(`
INSERT INTO %s (id, event_id, event_type, payload, reason, failed_at)
VALUES ($1, $2, $3, $4, $5, $6)`, s.table)
	_, err = s.db.ExecContext(ctx, query,
		eventing.NewEventID(), env.EventID, env.EventType, payload, reason, time.Now().UTC())
	return err
}
