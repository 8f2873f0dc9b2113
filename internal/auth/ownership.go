package auth

import (
	"context"
	"errors"

	"lnwallet-cloud/internal/accounts"
)

var (
	// ErrWalletMismatch indicates the wallet belongs to another account.
	ErrWalletMismatch = errors.New("wallet mismatch")
	// ErrNotFound indicates the wallet does not exist.
	ErrNotFound = errors.New("resource not found")
)

// WalletOwnerChecker validates wallet ownership.
type WalletOwnerChecker interface {
	EnsureWalletOwner(ctx context.Context, accountID, walletID string) error
}

// OwnerChecker checks wallet ownership against the account directory.
type OwnerChecker struct {
	directory accounts.Repository
}

// NewOwnerChecker constructs an OwnerChecker.
func NewOwnerChecker(directory accounts.Repository) *OwnerChecker {
	if directory == nil {
		return nil
	}
	return &OwnerChecker{directory: directory}
}

// EnsureWalletOwner verifies the wallet belongs to the account. Support
// and admin callers are expected to bypass this check at the handler.
func (c *OwnerChecker) EnsureWalletOwner(ctx context.Context, accountID, walletID string) error {
	if c == nil || c.directory == nil {
		return nil
	}
	if accountID == "" || walletID == "" {
		return nil
	}
	wallet, err := c.directory.FindWalletByID(ctx, walletID)
	if errors.Is(err, accounts.ErrWalletNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	if wallet.AccountID != accountID {
		return ErrWalletMismatch
	}
	return nil
}
