package ledger

import (
	"context"
	"errors"
	"time"

	"lnwallet-cloud/internal/money"
)

var (
	// ErrWalletNotFound is returned when a wallet id does not exist.
	ErrWalletNotFound = errors.New("ledger: wallet not found")
	// ErrInsufficientFunds is returned when a transfer would drive the
	// sender balance below zero.
	ErrInsufficientFunds = errors.New("ledger: insufficient funds")
	// ErrReceiptNotFound is returned when no transfer matches the key.
	ErrReceiptNotFound = errors.New("ledger: receipt not found")
	// ErrCurrencyMismatch is returned when instruction legs disagree on currency.
	ErrCurrencyMismatch = errors.New("ledger: currency mismatch")
	// ErrUnresolved is returned when the outcome of a transfer is unknown,
	// e.g. a timeout mid-commit. Callers must not treat it as failure;
	// the reconciliation sweep resolves it.
	ErrUnresolved = errors.New("ledger: transfer outcome unresolved")
	// ErrNoFunderWallet is returned when the funder capability row is missing.
	ErrNoFunderWallet = errors.New("ledger: no funder wallet assigned")
)

// Instruction describes a single atomic transfer: debit the sender for
// amount plus fee, credit the recipient (or hand off to an external
// rail), and credit the fee wallet with the fee. When the recipient
// wallet holds a different currency than the sender, CreditAmount
// carries the credit leg in the recipient currency; left zero, the
// recipient is credited with Amount.
type Instruction struct {
	IdempotencyKey string
	FromWalletID   string
	ToWalletID     string // internal credit leg; empty for external rails
	ExternalRail   string // rail name when funds leave the ledger
	FeeWalletID    string // bank wallet collecting the fee; empty drops the fee leg
	Amount         money.Money
	CreditAmount   money.Money // recipient-currency credit; zero means Amount
	Fee            money.Money
}

// RecipientCredit returns the amount the credit leg applies to the
// recipient wallet.
func (i Instruction) RecipientCredit() money.Money {
	if i.CreditAmount.Currency().Valid() {
		return i.CreditAmount
	}
	return i.Amount
}

// Receipt is the durable proof of an applied transfer.
type Receipt struct {
	ID             string
	IdempotencyKey string
	FromWalletID   string
	ToWalletID     string
	ExternalRail   string
	Amount         money.Money
	Fee            money.Money
	CreatedAt      time.Time
}

// LedgerOfRecord owns wallet balances. This core never mutates balances
// directly; it only issues transfer instructions. Transfer is idempotent
// on the instruction's idempotency key.
type LedgerOfRecord interface {
	Transfer(ctx context.Context, instruction Instruction) (*Receipt, error)
	BalanceForWallet(ctx context.Context, walletID string) (money.Money, error)
	ReceiptByKey(ctx context.Context, key string) (*Receipt, error)
	FunderWalletID(ctx context.Context) (string, error)
}

// Validate checks an instruction's internal consistency.
func (i Instruction) Validate() error {
	if i.IdempotencyKey == "" {
		return errors.New("ledger: empty idempotency key")
	}
	if i.FromWalletID == "" {
		return errors.New("ledger: empty sender wallet")
	}
	if (i.ToWalletID == "") == (i.ExternalRail == "") {
		return errors.New("ledger: exactly one of recipient wallet and external rail required")
	}
	if i.Amount.Currency() != i.Fee.Currency() {
		return ErrCurrencyMismatch
	}
	if i.Amount.IsZero() {
		return errors.New("ledger: zero amount")
	}
	if i.CreditAmount.Currency().Valid() {
		if i.ToWalletID == "" {
			return errors.New("ledger: credit amount without recipient wallet")
		}
		if i.CreditAmount.IsZero() {
			return errors.New("ledger: zero credit amount")
		}
	}
	return nil
}
