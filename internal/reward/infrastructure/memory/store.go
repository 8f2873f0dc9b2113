// Package memory holds the in-memory claim store used by tests and
// local runs.
package memory

import (
	"context"
	"sync"

	reward "lnwallet-cloud/internal/reward/domain"
)

// ClaimStore keeps reward claims in a map guarded by a mutex.
type ClaimStore struct {
	mu     sync.Mutex
	claims map[string]*reward.Claim
}

// NewClaimStore constructs an empty store.
func NewClaimStore() *ClaimStore {
	return &ClaimStore{claims: make(map[string]*reward.Claim)}
}

func claimKey(accountID, rewardID string) string {
	return accountID + "/" + rewardID
}

// Insert inserts the claim if absent.
func (s *ClaimStore) Insert(_ context.Context, claim reward.Claim) (*reward.Claim, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := claimKey(claim.AccountID, claim.RewardID)
	if existing, ok := s.claims[key]; ok {
		copied := *existing
		return &copied, false, nil
	}
	stored := claim
	s.claims[key] = &stored
	copied := stored
	return &copied, true, nil
}

// Delete removes the claim, if present.
func (s *ClaimStore) Delete(_ context.Context, accountID, rewardID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.claims, claimKey(accountID, rewardID))
	return nil
}

// Find returns the claim for account and reward.
func (s *ClaimStore) Find(_ context.Context, accountID, rewardID string) (*reward.Claim, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	claim, ok := s.claims[claimKey(accountID, rewardID)]
	if !ok {
		return nil, reward.ErrClaimNotFound
	}
	copied := *claim
	return &copied, nil
}
