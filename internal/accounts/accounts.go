package accounts

import (
	"context"
	"errors"

	"lnwallet-cloud/internal/money"
)

// Tier selects the fee schedule applied to an account.
type Tier string

const (
	TierStandard Tier = "standard"
	TierPro      Tier = "pro"
)

// CarrierType classifies the line behind a verified phone number.
type CarrierType string

const (
	CarrierTypeMobile   CarrierType = "mobile"
	CarrierTypeLandline CarrierType = "landline"
	CarrierTypeVoip     CarrierType = "voip"
)

// PhoneCarrier holds carrier lookup results from the verification vendor.
type PhoneCarrier struct {
	Type              CarrierType
	Name              string
	MobileCountryCode string
	MobileNetworkCode string
	ErrorCode         string
}

// PhoneMetadata is the persisted carrier classification for an account.
type PhoneMetadata struct {
	Carrier     PhoneCarrier
	CountryCode string
}

// Wallet is a read-only projection of a custody wallet.
type Wallet struct {
	ID        string
	AccountID string
	Currency  money.Currency
}

// Account is a read-only projection of a customer account. Phone is
// the verified number in E.164 form, empty if none is on file.
type Account struct {
	ID            string
	Phone         string
	Tier          Tier
	WalletIDs     []string
	PhoneMetadata *PhoneMetadata
}

var (
	// ErrAccountNotFound is returned when no account matches the id.
	ErrAccountNotFound = errors.New("accounts: account not found")
	// ErrWalletNotFound is returned when no wallet matches the id.
	ErrWalletNotFound = errors.New("accounts: wallet not found")
)

// Repository resolves accounts and wallets owned by the account service.
type Repository interface {
	FindAccountByID(ctx context.Context, id string) (*Account, error)
	FindWalletByID(ctx context.Context, id string) (*Wallet, error)
}
