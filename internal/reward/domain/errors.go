package reward

import "errors"

var (
	// ErrMissingPhoneMetadata is returned when the account has no
	// verified phone carrier classification.
	ErrMissingPhoneMetadata = errors.New("reward: missing phone metadata")
	// ErrNonValidCarrierType is returned when the account's phone line
	// type is not eligible, e.g. VOIP numbers.
	ErrNonValidCarrierType = errors.New("reward: carrier type not eligible")
	// ErrUnknownReward is returned when the reward id is not configured.
	ErrUnknownReward = errors.New("reward: unknown reward")
	// ErrInsufficientFunderBalance is returned when the funder wallet
	// cannot cover the reward.
	ErrInsufficientFunderBalance = errors.New("reward: insufficient funder balance")
	// ErrNoWalletExists is returned when the account has no wallet to
	// receive the reward.
	ErrNoWalletExists = errors.New("reward: recipient has no wallet")
	// ErrClaimNotFound is returned when no claim matches account and reward.
	ErrClaimNotFound = errors.New("reward: claim not found")
)
