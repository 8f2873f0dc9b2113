package memory

import (
	"context"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"lnwallet-cloud/internal/ledger"
	"lnwallet-cloud/internal/money"
)

// Ledger is an in-memory ledger of record for tests and local runs.
type Ledger struct {
	mu             sync.Mutex
	balances       map[string]money.Money
	receipts       map[string]*ledger.Receipt // by idempotency key
	funderWalletID string
}

// NewLedger constructs an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{
		balances: make(map[string]money.Money),
		receipts: make(map[string]*ledger.Receipt),
	}
}

// CreateWallet registers a wallet with an opening balance.
func (l *Ledger) CreateWallet(walletID string, balance money.Money) {
	l.mu.Lock()
	l.balances[walletID] = balance
	l.mu.Unlock()
}

// SetFunderWallet assigns the singleton funder capability.
func (l *Ledger) SetFunderWallet(walletID string) {
	l.mu.Lock()
	l.funderWalletID = walletID
	l.mu.Unlock()
}

// FunderWalletID returns the funder wallet id.
func (l *Ledger) FunderWalletID(ctx context.Context) (string, error) {
	_ = ctx
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.funderWalletID == "" {
		return "", ledger.ErrNoFunderWallet
	}
	return l.funderWalletID, nil
}

// BalanceForWallet returns the available balance.
func (l *Ledger) BalanceForWallet(ctx context.Context, walletID string) (money.Money, error) {
	_ = ctx
	l.mu.Lock()
	defer l.mu.Unlock()
	balance, ok := l.balances[walletID]
	if !ok {
		return money.Money{}, ledger.ErrWalletNotFound
	}
	return balance, nil
}

// ReceiptByKey returns the receipt recorded for an idempotency key.
func (l *Ledger) ReceiptByKey(ctx context.Context, key string) (*ledger.Receipt, error) {
	_ = ctx
	l.mu.Lock()
	defer l.mu.Unlock()
	receipt, ok := l.receipts[key]
	if !ok {
		return nil, ledger.ErrReceiptNotFound
	}
	copied := *receipt
	return &copied, nil
}

// Transfer applies the instruction atomically, idempotent on its key.
func (l *Ledger) Transfer(ctx context.Context, instruction ledger.Instruction) (*ledger.Receipt, error) {
	_ = ctx
	if err := instruction.Validate(); err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if existing, ok := l.receipts[instruction.IdempotencyKey]; ok {
		copied := *existing
		return &copied, nil
	}

	fromBalance, ok := l.balances[instruction.FromWalletID]
	if !ok {
		return nil, ledger.ErrWalletNotFound
	}
	total, err := instruction.Amount.Add(instruction.Fee)
	if err != nil {
		return nil, err
	}
	if fromBalance.Currency() != total.Currency() {
		return nil, ledger.ErrCurrencyMismatch
	}
	if cmp, err := fromBalance.Cmp(total); err != nil {
		return nil, err
	} else if cmp < 0 {
		return nil, ledger.ErrInsufficientFunds
	}

	// Every leg is checked against its wallet before any delta is
	// applied; a rejected transfer must leave all balances untouched.
	credit := instruction.RecipientCredit()
	if instruction.ToWalletID != "" {
		toBalance, ok := l.balances[instruction.ToWalletID]
		if !ok {
			return nil, ledger.ErrWalletNotFound
		}
		if toBalance.Currency() != credit.Currency() {
			return nil, ledger.ErrCurrencyMismatch
		}
	}
	feeLeg := instruction.FeeWalletID != "" && !instruction.Fee.IsZero()
	if feeLeg {
		feeBalance, ok := l.balances[instruction.FeeWalletID]
		if !ok {
			return nil, ledger.ErrWalletNotFound
		}
		if feeBalance.Currency() != instruction.Fee.Currency() {
			return nil, ledger.ErrCurrencyMismatch
		}
	}

	debited, err := fromBalance.Sub(total)
	if err != nil {
		return nil, err
	}
	l.balances[instruction.FromWalletID] = debited

	if instruction.ToWalletID != "" {
		credited, err := l.balances[instruction.ToWalletID].Add(credit)
		if err != nil {
			return nil, err
		}
		l.balances[instruction.ToWalletID] = credited
	}
	if feeLeg {
		credited, err := l.balances[instruction.FeeWalletID].Add(instruction.Fee)
		if err != nil {
			return nil, err
		}
		l.balances[instruction.FeeWalletID] = credited
	}

	receipt := &ledger.Receipt{
		ID:             ulid.Make().String(),
		IdempotencyKey: instruction.IdempotencyKey,
		FromWalletID:   instruction.FromWalletID,
		ToWalletID:     instruction.ToWalletID,
		ExternalRail:   instruction.ExternalRail,
		Amount:         instruction.Amount,
		Fee:            instruction.Fee,
		CreatedAt:      time.Now().UTC(),
	}
	l.receipts[instruction.IdempotencyKey] = receipt
	copied := *receipt
	return &copied, nil
}
