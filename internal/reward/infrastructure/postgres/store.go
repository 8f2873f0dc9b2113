// Package postgres persists reward claims in PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	reward "lnwallet-cloud/internal/reward/domain"
)

const defaultClaimsTable = "reward_claims"

// ClaimStore stores claims with a primary key on (account_id,
// reward_id), which makes Insert the atomic double-payout gate.
type ClaimStore struct {
	db    *sql.DB
	table string
}

// Option customizes the store.
type Option func(*ClaimStore)

// WithClaimsTable overrides the default table name.
func WithClaimsTable(table string) Option {
	return func(s *ClaimStore) { s.table = table }
}

// NewClaimStore constructs the store.
func NewClaimStore(db *sql.DB, opts ...Option) (*ClaimStore, error) {
	if db == nil {
		return nil, errors.New("claim store: nil db")
	}
	s := &ClaimStore{db: db, table: defaultClaimsTable}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Insert inserts the claim if absent.
func (s *ClaimStore) Insert(ctx context.Context, claim reward.Claim) (*reward.Claim, bool, error) {
	query := fmt.Sprintf(`
		INSERT INTO %s (account_id, reward_id, idempotency_key, awarded_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (account_id, reward_id) DO NOTHING`, s.table)
	res, err := s.db.ExecContext(ctx, query,
		claim.AccountID, claim.RewardID, claim.IdempotencyKey, claim.AwardedAt)
	if err != nil {
		return nil, false, fmt.Errorf("insert claim %s/%s: %w", claim.AccountID, claim.RewardID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, false, fmt.Errorf("insert claim %s/%s: %w", claim.AccountID, claim.RewardID, err)
	}
	stored, err := s.Find(ctx, claim.AccountID, claim.RewardID)
	if err != nil {
		return nil, false, err
	}
	return stored, affected == 1, nil
}

// Delete removes the claim.
func (s *ClaimStore) Delete(ctx context.Context, accountID, rewardID string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE account_id = $1 AND reward_id = $2`, s.table)
	if _, err := s.db.ExecContext(ctx, query, accountID, rewardID); err != nil {
		return fmt.Errorf("delete claim %s/%s: %w", accountID, rewardID, err)
	}
	return nil
}

// Find returns the claim for account and reward.
func (s *ClaimStore) Find(ctx context.Context, accountID, rewardID string) (*reward.Claim, error) {
	query := fmt.Sprintf(`
		SELECT account_id, reward_id, idempotency_key, awarded_at
		FROM %s
		WHERE account_id = $1 AND reward_id = $2`, s.table)
	var claim reward.Claim
	err := s.db.QueryRowContext(ctx, query, accountID, rewardID).Scan(
		&claim.AccountID, &claim.RewardID, &claim.IdempotencyKey, &claim.AwardedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, reward.ErrClaimNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find claim %s/%s: %w", accountID, rewardID, err)
	}
	claim.AwardedAt = claim.AwardedAt.UTC()
	return &claim, nil
}
