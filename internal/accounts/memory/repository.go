package memory

import (
	"context"
	"sync"

	"lnwallet-cloud/internal/accounts"
)

// Repository is an in-memory account/wallet directory.
type Repository struct {
	mu       sync.RWMutex
	accounts map[string]*accounts.Account
	wallets  map[string]*accounts.Wallet
}

// NewRepository constructs a repository.
func NewRepository() *Repository {
	return &Repository{
		accounts: make(map[string]*accounts.Account),
		wallets:  make(map[string]*accounts.Wallet),
	}
}

// PutAccount stores an account projection.
func (r *Repository) PutAccount(account *accounts.Account) {
	if account == nil {
		return
	}
	copied := *account
	copied.WalletIDs = append([]string(nil), account.WalletIDs...)
	if account.PhoneMetadata != nil {
		meta := *account.PhoneMetadata
		copied.PhoneMetadata = &meta
	}
	r.mu.Lock()
	r.accounts[account.ID] = &copied
	r.mu.Unlock()
}

// PutWallet stores a wallet projection.
func (r *Repository) PutWallet(wallet *accounts.Wallet) {
	if wallet == nil {
		return
	}
	copied := *wallet
	r.mu.Lock()
	r.wallets[wallet.ID] = &copied
	r.mu.Unlock()
}

// SavePhoneMetadata stores the carrier classification for an account.
func (r *Repository) SavePhoneMetadata(ctx context.Context, accountID string, metadata *accounts.PhoneMetadata) error {
	_ = ctx
	if metadata == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	account, ok := r.accounts[accountID]
	if !ok {
		return accounts.ErrAccountNotFound
	}
	meta := *metadata
	account.PhoneMetadata = &meta
	return nil
}

// FindAccountByID loads an account.
func (r *Repository) FindAccountByID(ctx context.Context, id string) (*accounts.Account, error) {
	_ = ctx
	r.mu.RLock()
	account := r.accounts[id]
	r.mu.RUnlock()
	if account == nil {
		return nil, accounts.ErrAccountNotFound
	}
	copied := *account
	copied.WalletIDs = append([]string(nil), account.WalletIDs...)
	if account.PhoneMetadata != nil {
		meta := *account.PhoneMetadata
		copied.PhoneMetadata = &meta
	}
	return &copied, nil
}

// FindWalletByID loads a wallet.
func (r *Repository) FindWalletByID(ctx context.Context, id string) (*accounts.Wallet, error) {
	_ = ctx
	r.mu.RLock()
	wallet := r.wallets[id]
	r.mu.RUnlock()
	if wallet == nil {
		return nil, accounts.ErrWalletNotFound
	}
	copied := *wallet
	return &copied, nil
}
