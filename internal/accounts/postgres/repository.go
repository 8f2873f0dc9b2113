package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"lnwallet-cloud/internal/accounts"
	"lnwallet-cloud/internal/money"
)

const (
	defaultAccountsTable = "accounts"
	defaultWalletsTable  = "wallets"
)

// Repository is a Postgres account/wallet directory.
type Repository struct {
	db            *sql.DB
	accountsTable string
	walletsTable  string
}

// Option configures the repository.
type Option func(*Repository)

// WithAccountsTable overrides the accounts table name.
func WithAccountsTable(table string) Option {
	return func(r *Repository) {
		if table != "" {
			r.accountsTable = table
		}
	}
}

// WithWalletsTable overrides the wallets table name.
func WithWalletsTable(table string) Option {
	return func(r *Repository) {
		if table != "" {
			r.walletsTable = table
		}
	}
}

// NewRepository constructs a repository.
func NewRepository(db *sql.DB, opts ...Option) *Repository {
	r := &Repository{
		db:            db,
		accountsTable: defaultAccountsTable,
		walletsTable:  defaultWalletsTable,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// FindAccountByID loads an account with its wallet ids and phone metadata.
func (r *Repository) FindAccountByID(ctx context.Context, id string) (*accounts.Account, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("accounts repo: nil db")
	}
	if id == "" {
		return nil, accounts.ErrAccountNotFound
	}

	query := fmt.Sprintf(`
SELECT id, tier, phone, carrier_type, carrier_name, country_code
FROM %s
WHERE id = $1`, r.accountsTable)

	var account accounts.Account
	var phone, carrierType, carrierName, countryCode sql.NullString
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&account.ID, &account.Tier, &phone, &carrierType, &carrierName, &countryCode,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, accounts.ErrAccountNotFound
		}
		return nil, err
	}
	account.Phone = phone.String
	if carrierType.Valid {
		account.PhoneMetadata = &accounts.PhoneMetadata{
			Carrier: accounts.PhoneCarrier{
				Type: accounts.CarrierType(carrierType.String),
				Name: carrierName.String,
			},
			CountryCode: countryCode.String,
		}
	}

	walletQuery := fmt.Sprintf(`
SELECT id FROM %s WHERE account_id = $1 ORDER BY created_at ASC`, r.walletsTable)
	rows, err := r.db.QueryContext(ctx, walletQuery, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var walletID string
		if err := rows.Scan(&walletID); err != nil {
			return nil, err
		}
		account.WalletIDs = append(account.WalletIDs, walletID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &account, nil
}

// SavePhoneMetadata stores the carrier classification for an account.
func (r *Repository) SavePhoneMetadata(ctx context.Context, accountID string, metadata *accounts.PhoneMetadata) error {
	if r == nil || r.db == nil {
		return errors.New("accounts repo: nil db")
	}
	if metadata == nil {
		return nil
	}

	query := fmt.Sprintf(`
UPDATE %s
SET carrier_type = $2, carrier_name = $3, country_code = $4
WHERE id = $1`, r.accountsTable)

	result, err := r.db.ExecContext(ctx, query, accountID,
		string(metadata.Carrier.Type), metadata.Carrier.Name, metadata.CountryCode)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return accounts.ErrAccountNotFound
	}
	return nil
}

// FindWalletByID loads a wallet projection.
func (r *Repository) FindWalletByID(ctx context.Context, id string) (*accounts.Wallet, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("accounts repo: nil db")
	}
	if id == "" {
		return nil, accounts.ErrWalletNotFound
	}

	query := fmt.Sprintf(`
SELECT id, account_id, currency FROM %s WHERE id = $1`, r.walletsTable)

	var wallet accounts.Wallet
	var currency string
	err := r.db.QueryRowContext(ctx, query, id).Scan(&wallet.ID, &wallet.AccountID, &currency)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, accounts.ErrWalletNotFound
		}
		return nil, err
	}
	wallet.Currency = money.Currency(currency)
	return &wallet, nil
}
