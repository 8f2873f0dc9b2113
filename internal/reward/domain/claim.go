package reward

import (
	"context"
	"time"
)

// Claim marks one reward as awarded to one account. Its insertion is
// the sole gate against double payouts: whoever inserts the claim owns
// the settlement, everyone else sees an existing claim.
type Claim struct {
	AccountID      string
	RewardID       string
	IdempotencyKey string
	AwardedAt      time.Time
}

// ClaimStore persists reward claims keyed by account and reward id.
type ClaimStore interface {
	// Insert atomically inserts the claim if absent. It returns the
	// claim now stored and whether this call inserted it.
	Insert(ctx context.Context, claim Claim) (*Claim, bool, error)

	// Delete removes the claim, compensating a failed settlement so the
	// reward can be retried.
	Delete(ctx context.Context, accountID, rewardID string) error

	// Find returns the claim for account and reward.
	Find(ctx context.Context, accountID, rewardID string) (*Claim, error)
}

// Schedule is the reward amount table, in satoshis per reward id.
type Schedule struct {
	RewardsSats map[string]uint64 `yaml:"rewards_sats"`
}

// AmountSats returns the configured payout for a reward id.
func (s Schedule) AmountSats(rewardID string) (uint64, bool) {
	amount, ok := s.RewardsSats[rewardID]
	if !ok || amount == 0 {
		return 0, false
	}
	return amount, true
}
