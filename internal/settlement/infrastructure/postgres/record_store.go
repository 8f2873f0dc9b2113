// Package postgres persists settlement records in PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	settlement "lnwallet-cloud/internal/settlement/domain"
)

const defaultRecordsTable = "settlement_records"

// RecordStore stores settlement records, one row per idempotency key.
// The primary key on idempotency_key makes InsertPending atomic, and
// every transition guards on the expected current status so a racing
// writer loses cleanly instead of overwriting.
type RecordStore struct {
	db    *sql.DB
	table string
}

// Option customizes the store.
type Option func(*RecordStore)

// WithRecordsTable overrides the default table name.
func WithRecordsTable(table string) Option {
	return func(s *RecordStore) { s.table = table }
}

// NewRecordStore constructs the store.
func NewRecordStore(db *sql.DB, opts ...Option) (*RecordStore, error) {
	if db == nil {
		return nil, errors.New("record store: nil db")
	}
	s := &RecordStore{db: db, table: defaultRecordsTable}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// InsertPending inserts a pending record if the key is absent.
func (s *RecordStore) InsertPending(ctx context.Context, key, quoteID string, now time.Time) (*settlement.Record, bool, error) {
	query := fmt.Sprintf(`
		INSERT INTO %s (idempotency_key, quote_id, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $4)
		ON CONFLICT (idempotency_key) DO NOTHING`, s.table)
	res, err := s.db.ExecContext(ctx, query, key, quoteID, settlement.StatusPending, now)
	if err != nil {
		return nil, false, fmt.Errorf("insert pending %s: %w", key, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, false, fmt.Errorf("insert pending %s: %w", key, err)
	}

	record, err := s.FindByKey(ctx, key)
	if err != nil {
		return nil, false, err
	}
	return record, affected == 1, nil
}

// ResetFailed moves a failed record back to pending for a new quote.
func (s *RecordStore) ResetFailed(ctx context.Context, key, quoteID string, now time.Time) (*settlement.Record, error) {
	query := fmt.Sprintf(`
		UPDATE %s
		SET status = $1, quote_id = $2, receipt_id = NULL, failure_reason = NULL, updated_at = $3
		WHERE idempotency_key = $4 AND status = $5`, s.table)
	res, err := s.db.ExecContext(ctx, query,
		settlement.StatusPending, quoteID, now, key, settlement.StatusFailed)
	if err != nil {
		return nil, fmt.Errorf("reset failed %s: %w", key, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("reset failed %s: %w", key, err)
	}
	if affected == 0 {
		if _, findErr := s.FindByKey(ctx, key); errors.Is(findErr, settlement.ErrRecordNotFound) {
			return nil, settlement.ErrRecordNotFound
		}
		return nil, settlement.ErrStatusConflict
	}
	return s.FindByKey(ctx, key)
}

// MarkCommitted moves a pending record to committed.
func (s *RecordStore) MarkCommitted(ctx context.Context, key, receiptID string, now time.Time) error {
	query := fmt.Sprintf(`
		UPDATE %s
		SET status = $1, receipt_id = $2, committed_at = $3, updated_at = $3
		WHERE idempotency_key = $4 AND status = $5`, s.table)
	return s.transition(ctx, query, key,
		settlement.StatusCommitted, receiptID, now, key, settlement.StatusPending)
}

// MarkFailed moves a pending record to failed.
func (s *RecordStore) MarkFailed(ctx context.Context, key, reason string, now time.Time) error {
	query := fmt.Sprintf(`
		UPDATE %s
		SET status = $1, failure_reason = $2, updated_at = $3
		WHERE idempotency_key = $4 AND status = $5`, s.table)
	return s.transition(ctx, query, key,
		settlement.StatusFailed, reason, now, key, settlement.StatusPending)
}

func (s *RecordStore) transition(ctx context.Context, query, key string, args ...any) error {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("transition %s: %w", key, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("transition %s: %w", key, err)
	}
	if affected == 0 {
		if _, findErr := s.FindByKey(ctx, key); errors.Is(findErr, settlement.ErrRecordNotFound) {
			return settlement.ErrRecordNotFound
		}
		return settlement.ErrStatusConflict
	}
	return nil
}

// FindByKey returns the record for the key.
func (s *RecordStore) FindByKey(ctx context.Context, key string) (*settlement.Record, error) {
	query := fmt.Sprintf(`
		SELECT idempotency_key, quote_id, status, receipt_id, failure_reason,
		       created_at, updated_at, committed_at
		FROM %s
		WHERE idempotency_key = $1`, s.table)
	record, err := scanRecord(s.db.QueryRowContext(ctx, query, key))
	if err != nil {
		return nil, fmt.Errorf("find record %s: %w", key, err)
	}
	return record, nil
}

// ListPendingOlderThan returns pending records created before the cutoff.
func (s *RecordStore) ListPendingOlderThan(ctx context.Context, cutoff time.Time, limit int) ([]settlement.Record, error) {
	query := fmt.Sprintf(`
		SELECT idempotency_key, quote_id, status, receipt_id, failure_reason,
		       created_at, updated_at, committed_at
		FROM %s
		WHERE status = $1 AND created_at < $2
		ORDER BY created_at ASC
		LIMIT $3`, s.table)
	rows, err := s.db.QueryContext(ctx, query, settlement.StatusPending, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("list pending: %w", err)
	}
	defer rows.Close()

	var result []settlement.Record
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("list pending: %w", err)
		}
		result = append(result, *record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list pending: %w", err)
	}
	return result, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*settlement.Record, error) {
	var (
		record        settlement.Record
		status        string
		receiptID     sql.NullString
		failureReason sql.NullString
		committedAt   sql.NullTime
	)
	err := row.Scan(
		&record.IdempotencyKey, &record.QuoteID, &status, &receiptID, &failureReason,
		&record.CreatedAt, &record.UpdatedAt, &committedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, settlement.ErrRecordNotFound
	}
	if err != nil {
		return nil, err
	}
	record.Status = settlement.Status(status)
	record.ReceiptID = receiptID.String
	record.FailureReason = failureReason.String
	if committedAt.Valid {
		record.CommittedAt = committedAt.Time.UTC()
	}
	record.CreatedAt = record.CreatedAt.UTC()
	record.UpdatedAt = record.UpdatedAt.UTC()
	return &record, nil
}
