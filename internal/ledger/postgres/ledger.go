package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/oklog/ulid/v2"

	"lnwallet-cloud/internal/ledger"
	"lnwallet-cloud/internal/money"
)

const uniqueViolation = "23505"

// Ledger is the Postgres ledger of record. Balances live in the wallets
// table; every applied transfer writes a receipt row (unique on the
// idempotency key) and a debit/credit journal pair.
type Ledger struct {
	db *sql.DB
}

// NewLedger constructs the ledger.
func NewLedger(db *sql.DB) *Ledger {
	return &Ledger{db: db}
}

// BalanceForWallet returns the available balance.
func (l *Ledger) BalanceForWallet(ctx context.Context, walletID string) (money.Money, error) {
	if l == nil || l.db == nil {
		return money.Money{}, errors.New("ledger: nil db")
	}
	var balance uint64
	var currency string
	err := l.db.QueryRowContext(ctx,
		`SELECT balance_minor, currency FROM wallets WHERE id = $1`, walletID,
	).Scan(&balance, &currency)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return money.Money{}, ledger.ErrWalletNotFound
		}
		return money.Money{}, err
	}
	return money.New(balance, money.Currency(currency))
}

// FunderWalletID returns the wallet holding the singleton funder
// capability. The capability is a unique row, not an account role flag.
func (l *Ledger) FunderWalletID(ctx context.Context) (string, error) {
	if l == nil || l.db == nil {
		return "", errors.New("ledger: nil db")
	}
	var walletID string
	err := l.db.QueryRowContext(ctx,
		`SELECT wallet_id FROM wallet_capabilities WHERE capability = 'funder'`,
	).Scan(&walletID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ledger.ErrNoFunderWallet
		}
		return "", err
	}
	return walletID, nil
}

// ReceiptByKey returns the receipt recorded for an idempotency key.
func (l *Ledger) ReceiptByKey(ctx context.Context, key string) (*ledger.Receipt, error) {
	if l == nil || l.db == nil {
		return nil, errors.New("ledger: nil db")
	}
	return scanReceipt(l.db.QueryRowContext(ctx, `
SELECT id, idempotency_key, from_wallet_id, COALESCE(to_wallet_id, ''),
       COALESCE(external_rail, ''), amount_minor, fee_minor, currency, created_at
FROM ledger_receipts
WHERE idempotency_key = $1`, key))
}

// Transfer applies the instruction in one transaction, idempotent on the
// instruction's key. Wallet rows are locked in id order to avoid
// deadlocks between opposing transfers.
func (l *Ledger) Transfer(ctx context.Context, instruction ledger.Instruction) (*ledger.Receipt, error) {
	if l == nil || l.db == nil {
		return nil, errors.New("ledger: nil db")
	}
	if err := instruction.Validate(); err != nil {
		return nil, err
	}

	tx, err := l.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead})
	if err != nil {
		return nil, wrapAmbiguous(err)
	}
	defer tx.Rollback()

	receiptID := ulid.Make().String()
	now := time.Now().UTC()

	// Receipt reservation doubles as the idempotency gate: a second
	// submission of the same key hits the unique constraint and the
	// prior receipt is returned unchanged.
	_, err = tx.ExecContext(ctx, `
INSERT INTO ledger_receipts (
	id, idempotency_key, from_wallet_id, to_wallet_id, external_rail,
	amount_minor, fee_minor, currency, created_at
) VALUES ($1,$2,$3,NULLIF($4,''),NULLIF($5,''),$6,$7,$8,$9)`,
		receiptID, instruction.IdempotencyKey, instruction.FromWalletID,
		instruction.ToWalletID, instruction.ExternalRail,
		instruction.Amount.Amount(), instruction.Fee.Amount(),
		string(instruction.Amount.Currency()), now)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return l.ReceiptByKey(ctx, instruction.IdempotencyKey)
		}
		return nil, wrapAmbiguous(err)
	}

	total, err := instruction.Amount.Add(instruction.Fee)
	if err != nil {
		return nil, err
	}

	// Each wallet row must hold the currency of the leg that touches it;
	// minor units of different currencies never mix in one balance.
	credit := instruction.RecipientCredit()
	expected := map[string]money.Currency{
		instruction.FromWalletID: total.Currency(),
	}
	if instruction.ToWalletID != "" {
		expected[instruction.ToWalletID] = credit.Currency()
	}
	if instruction.FeeWalletID != "" && !instruction.Fee.IsZero() {
		expected[instruction.FeeWalletID] = instruction.Fee.Currency()
	}

	walletIDs := lockOrder(instruction)
	balances := make(map[string]uint64, len(walletIDs))
	for _, walletID := range walletIDs {
		var balance uint64
		var currency string
		err = tx.QueryRowContext(ctx,
			`SELECT balance_minor, currency FROM wallets WHERE id = $1 FOR UPDATE`, walletID,
		).Scan(&balance, &currency)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, ledger.ErrWalletNotFound
			}
			return nil, wrapAmbiguous(err)
		}
		if money.Currency(currency) != expected[walletID] {
			return nil, ledger.ErrCurrencyMismatch
		}
		balances[walletID] = balance
	}

	if balances[instruction.FromWalletID] < total.Amount() {
		return nil, ledger.ErrInsufficientFunds
	}

	if err := applyDelta(ctx, tx, instruction.FromWalletID, receiptID, -int64(total.Amount())); err != nil {
		return nil, wrapAmbiguous(err)
	}
	if instruction.ToWalletID != "" {
		if err := applyDelta(ctx, tx, instruction.ToWalletID, receiptID, int64(credit.Amount())); err != nil {
			return nil, wrapAmbiguous(err)
		}
	}
	if instruction.FeeWalletID != "" && !instruction.Fee.IsZero() {
		if err := applyDelta(ctx, tx, instruction.FeeWalletID, receiptID, int64(instruction.Fee.Amount())); err != nil {
			return nil, wrapAmbiguous(err)
		}
	}

	if err := tx.Commit(); err != nil {
		// A failed commit has an unknown outcome; the sweep decides.
		return nil, fmt.Errorf("%w: commit: %v", ledger.ErrUnresolved, err)
	}

	return &ledger.Receipt{
		ID:             receiptID,
		IdempotencyKey: instruction.IdempotencyKey,
		FromWalletID:   instruction.FromWalletID,
		ToWalletID:     instruction.ToWalletID,
		ExternalRail:   instruction.ExternalRail,
		Amount:         instruction.Amount,
		Fee:            instruction.Fee,
		CreatedAt:      now,
	}, nil
}

func applyDelta(ctx context.Context, tx *sql.Tx, walletID, receiptID string, delta int64) error {
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO journal_entries (receipt_id, wallet_id, delta_minor) VALUES ($1,$2,$3)`,
		receiptID, walletID, delta); err != nil {
		return err
	}
	_, err := tx.ExecContext(ctx,
		`UPDATE wallets SET balance_minor = balance_minor + $1 WHERE id = $2`,
		delta, walletID)
	return err
}

// lockOrder returns the wallets touched by the instruction sorted by id.
func lockOrder(instruction ledger.Instruction) []string {
	ids := []string{instruction.FromWalletID}
	if instruction.ToWalletID != "" {
		ids = append(ids, instruction.ToWalletID)
	}
	if instruction.FeeWalletID != "" && !instruction.Fee.IsZero() {
		ids = append(ids, instruction.FeeWalletID)
	}
	for i := 1; i < len(ids); i++ {
		for j := i; j > 0 && ids[j] < ids[j-1]; j-- {
			ids[j], ids[j-1] = ids[j-1], ids[j]
		}
	}
	return ids
}

func wrapAmbiguous(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %v", ledger.ErrUnresolved, err)
	}
	return err
}

func scanReceipt(row *sql.Row) (*ledger.Receipt, error) {
	var receipt ledger.Receipt
	var amount, fee uint64
	var currency string
	err := row.Scan(&receipt.ID, &receipt.IdempotencyKey, &receipt.FromWalletID,
		&receipt.ToWalletID, &receipt.ExternalRail, &amount, &fee, &currency, &receipt.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ledger.ErrReceiptNotFound
		}
		return nil, err
	}
	receipt.Amount = money.MustNew(amount, money.Currency(currency))
	receipt.Fee = money.MustNew(fee, money.Currency(currency))
	return &receipt, nil
}
