// Package postgres persists payment flow quotes in PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"lnwallet-cloud/internal/money"
	paymentflow "lnwallet-cloud/internal/paymentflow/domain"
)

// QuoteRepository stores quotes in a single table, one row per quote,
// keyed by the rail-identity idempotency key.
type QuoteRepository struct {
	db    *sql.DB
	table string
}

// Option customizes the repository.
type Option func(*QuoteRepository)

// WithQuotesTable overrides the default table name.
func WithQuotesTable(table string) Option {
	return func(r *QuoteRepository) { r.table = table }
}

// NewQuoteRepository constructs the repository.
func NewQuoteRepository(db *sql.DB, opts ...Option) (*QuoteRepository, error) {
	if db == nil {
		return nil, errors.New("quote repository: nil db")
	}
	r := &QuoteRepository{db: db, table: "payment_flow_quotes"}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Save inserts the quote. A duplicate key overwrites nothing: the first
// quote for a rail identity wins and later saves are no-ops.
func (r *QuoteRepository) Save(ctx context.Context, quote *paymentflow.Quote) error {
	if quote == nil {
		return paymentflow.ErrNilQuote
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (
			idempotency_key, quote_id, payment_hash, intraledger_hash, rail,
			sender_wallet_id, sender_account_id, sender_currency,
			recipient_wallet_id, recipient_account_id, recipient_currency,
			input_amount_minor, input_currency,
			btc_amount_minor, usd_amount_minor, btc_fee_minor, usd_fee_minor,
			description, cached_route, created_at, expires_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)
		ON CONFLICT (idempotency_key) DO NOTHING`, r.table)

	_, err := r.db.ExecContext(ctx, query,
		quote.IdempotencyKey(), quote.ID(),
		nullString(quote.PaymentHash()), nullString(quote.IntraLedgerHash()), string(quote.Rail()),
		quote.SenderWalletID(), quote.SenderAccountID(), string(quote.SenderCurrency()),
		nullString(quote.RecipientWalletID()), nullString(quote.RecipientAccountID()),
		nullString(string(quote.RecipientCurrency())),
		quote.InputAmount().Amount(), string(quote.InputAmount().Currency()),
		quote.BtcAmount().Amount(), quote.UsdAmount().Amount(),
		quote.BtcProtocolAndBankFee().Amount(), quote.UsdProtocolAndBankFee().Amount(),
		quote.Description(), quote.CachedRoute(), quote.CreatedAt(), quote.ExpiresAt(),
	)
	if err != nil {
		return fmt.Errorf("save quote %s: %w", quote.ID(), err)
	}
	return nil
}

// FindByIdempotencyKey returns the quote for the key.
func (r *QuoteRepository) FindByIdempotencyKey(ctx context.Context, key string) (*paymentflow.Quote, error) {
	query := fmt.Sprintf(`
		SELECT quote_id, payment_hash, intraledger_hash, rail,
		       sender_wallet_id, sender_account_id, sender_currency,
		       recipient_wallet_id, recipient_account_id, recipient_currency,
		       input_amount_minor, input_currency,
		       btc_amount_minor, usd_amount_minor, btc_fee_minor, usd_fee_minor,
		       description, cached_route, created_at, expires_at
		FROM %s
		WHERE idempotency_key = $1`, r.table)

	var (
		p                               paymentflow.QuoteParams
		paymentHash, intraLedgerHash    sql.NullString
		recipientWallet, recipientAcct  sql.NullString
		recipientCurrency               sql.NullString
		rail, senderCurrency, inputCur  string
		inputMinor, btcMinor, usdMinor  uint64
		btcFeeMinor, usdFeeMinor        uint64
	)
	err := r.db.QueryRowContext(ctx, query, key).Scan(
		&p.ID, &paymentHash, &intraLedgerHash, &rail,
		&p.SenderWalletID, &p.SenderAccountID, &senderCurrency,
		&recipientWallet, &recipientAcct, &recipientCurrency,
		&inputMinor, &inputCur,
		&btcMinor, &usdMinor, &btcFeeMinor, &usdFeeMinor,
		&p.Description, &p.CachedRoute, &p.CreatedAt, &p.ExpiresAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, paymentflow.ErrQuoteNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find quote %s: %w", key, err)
	}

	p.PaymentHash = paymentHash.String
	p.IntraLedgerHash = intraLedgerHash.String
	p.Rail = paymentflow.Rail(rail)
	p.SenderCurrency = money.Currency(senderCurrency)
	p.RecipientWalletID = recipientWallet.String
	p.RecipientAccountID = recipientAcct.String
	p.RecipientCurrency = money.Currency(recipientCurrency.String)

	if p.InputAmount, err = money.New(inputMinor, money.Currency(inputCur)); err != nil {
		return nil, fmt.Errorf("quote %s: %w", key, err)
	}
	if p.BtcAmount, err = money.New(btcMinor, money.BTC); err != nil {
		return nil, fmt.Errorf("quote %s: %w", key, err)
	}
	if p.UsdAmount, err = money.New(usdMinor, money.USD); err != nil {
		return nil, fmt.Errorf("quote %s: %w", key, err)
	}
	if p.BtcFee, err = money.New(btcFeeMinor, money.BTC); err != nil {
		return nil, fmt.Errorf("quote %s: %w", key, err)
	}
	if p.UsdFee, err = money.New(usdFeeMinor, money.USD); err != nil {
		return nil, fmt.Errorf("quote %s: %w", key, err)
	}
	return paymentflow.NewQuote(p)
}

// Delete removes the quote for the key.
func (r *QuoteRepository) Delete(ctx context.Context, key string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE idempotency_key = $1`, r.table)
	if _, err := r.db.ExecContext(ctx, query, key); err != nil {
		return fmt.Errorf("delete quote %s: %w", key, err)
	}
	return nil
}

// DeleteExpired removes quotes whose validity window ended at or before now.
func (r *QuoteRepository) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	query := fmt.Sprintf(`DELETE FROM %s WHERE expires_at <= $1`, r.table)
	res, err := r.db.ExecContext(ctx, query, now)
	if err != nil {
		return 0, fmt.Errorf("delete expired quotes: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete expired quotes: %w", err)
	}
	return int(n), nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
