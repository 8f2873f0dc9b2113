package memory

import (
	"context"
	"errors"
	"sync"
	"testing"

	"lnwallet-cloud/internal/ledger"
	"lnwallet-cloud/internal/money"
)

func TestTransfer_DebitsSenderAndCreditsRecipient(t *testing.T) {
	ctx := context.Background()
	l := NewLedger()
	l.CreateWallet("w-alice", money.MustNew(100_000, money.BTC))
	l.CreateWallet("w-bob", money.MustNew(0, money.BTC))
	l.CreateWallet("w-bank", money.MustNew(0, money.BTC))

	receipt, err := l.Transfer(ctx, ledger.Instruction{
		IdempotencyKey: "key-1",
		FromWalletID:   "w-alice",
		ToWalletID:     "w-bob",
		FeeWalletID:    "w-bank",
		Amount:         money.MustNew(50_000, money.BTC),
		Fee:            money.MustNew(500, money.BTC),
	})
	if err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if receipt.IdempotencyKey != "key-1" {
		t.Fatalf("receipt key mismatch: %s", receipt.IdempotencyKey)
	}

	alice, _ := l.BalanceForWallet(ctx, "w-alice")
	bob, _ := l.BalanceForWallet(ctx, "w-bob")
	bank, _ := l.BalanceForWallet(ctx, "w-bank")
	if alice.Amount() != 49_500 {
		t.Fatalf("sender balance mismatch: got=%d want=49500", alice.Amount())
	}
	if bob.Amount() != 50_000 {
		t.Fatalf("recipient balance mismatch: got=%d want=50000", bob.Amount())
	}
	if bank.Amount() != 500 {
		t.Fatalf("fee wallet balance mismatch: got=%d want=500", bank.Amount())
	}
}

func TestTransfer_NeverDrivesBalanceNegative(t *testing.T) {
	ctx := context.Background()
	l := NewLedger()
	l.CreateWallet("w-alice", money.MustNew(1_000, money.BTC))
	l.CreateWallet("w-bob", money.MustNew(0, money.BTC))

	_, err := l.Transfer(ctx, ledger.Instruction{
		IdempotencyKey: "key-over",
		FromWalletID:   "w-alice",
		ToWalletID:     "w-bob",
		Amount:         money.MustNew(1_000, money.BTC),
		Fee:            money.MustNew(10, money.BTC),
	})
	if !errors.Is(err, ledger.ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}

	alice, _ := l.BalanceForWallet(ctx, "w-alice")
	if alice.Amount() != 1_000 {
		t.Fatalf("failed transfer must not move funds: got=%d", alice.Amount())
	}
}

func TestTransfer_IdempotentOnKey(t *testing.T) {
	ctx := context.Background()
	l := NewLedger()
	l.CreateWallet("w-alice", money.MustNew(100_000, money.BTC))
	l.CreateWallet("w-bob", money.MustNew(0, money.BTC))

	instruction := ledger.Instruction{
		IdempotencyKey: "key-dup",
		FromWalletID:   "w-alice",
		ToWalletID:     "w-bob",
		Amount:         money.MustNew(10_000, money.BTC),
		Fee:            money.MustNew(0, money.BTC),
	}

	var wg sync.WaitGroup
	receipts := make([]*ledger.Receipt, 8)
	for i := 0; i < len(receipts); i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			receipt, err := l.Transfer(ctx, instruction)
			if err != nil {
				t.Errorf("transfer %d: %v", i, err)
				return
			}
			receipts[i] = receipt
		}(i)
	}
	wg.Wait()

	alice, _ := l.BalanceForWallet(ctx, "w-alice")
	if alice.Amount() != 90_000 {
		t.Fatalf("duplicate submissions must debit once: got=%d want=90000", alice.Amount())
	}
	for _, receipt := range receipts {
		if receipt == nil || receipt.ID != receipts[0].ID {
			t.Fatalf("all callers must observe the same receipt")
		}
	}
}

func TestTransfer_CrossCurrencyCreditsRecipientCurrency(t *testing.T) {
	ctx := context.Background()
	l := NewLedger()
	l.CreateWallet("w-alice", money.MustNew(100_000, money.BTC))
	l.CreateWallet("w-carol", money.MustNew(0, money.USD))
	l.CreateWallet("w-bank", money.MustNew(0, money.BTC))

	_, err := l.Transfer(ctx, ledger.Instruction{
		IdempotencyKey: "key-fx",
		FromWalletID:   "w-alice",
		ToWalletID:     "w-carol",
		FeeWalletID:    "w-bank",
		Amount:         money.MustNew(50_000, money.BTC),
		CreditAmount:   money.MustNew(3_000, money.USD),
		Fee:            money.MustNew(500, money.BTC),
	})
	if err != nil {
		t.Fatalf("transfer: %v", err)
	}

	alice, _ := l.BalanceForWallet(ctx, "w-alice")
	carol, _ := l.BalanceForWallet(ctx, "w-carol")
	bank, _ := l.BalanceForWallet(ctx, "w-bank")
	if alice.Amount() != 49_500 {
		t.Fatalf("sender balance mismatch: got=%d want=49500", alice.Amount())
	}
	if carol.Amount() != 3_000 || carol.Currency() != money.USD {
		t.Fatalf("recipient credit mismatch: got=%d %s want=3000 USD", carol.Amount(), carol.Currency())
	}
	if bank.Amount() != 500 {
		t.Fatalf("fee wallet balance mismatch: got=%d want=500", bank.Amount())
	}
}

func TestTransfer_CurrencyMismatchRejectedWithoutPartialDebit(t *testing.T) {
	ctx := context.Background()
	l := NewLedger()
	l.CreateWallet("w-alice", money.MustNew(100_000, money.BTC))
	l.CreateWallet("w-carol", money.MustNew(0, money.USD))

	// A satoshi credit leg against a USD wallet must be refused before
	// the sender is touched.
	_, err := l.Transfer(ctx, ledger.Instruction{
		IdempotencyKey: "key-mismatch",
		FromWalletID:   "w-alice",
		ToWalletID:     "w-carol",
		Amount:         money.MustNew(50_000, money.BTC),
		Fee:            money.MustNew(0, money.BTC),
	})
	if !errors.Is(err, ledger.ErrCurrencyMismatch) {
		t.Fatalf("expected ErrCurrencyMismatch, got %v", err)
	}

	alice, _ := l.BalanceForWallet(ctx, "w-alice")
	carol, _ := l.BalanceForWallet(ctx, "w-carol")
	if alice.Amount() != 100_000 {
		t.Fatalf("rejected transfer must not debit the sender: got=%d", alice.Amount())
	}
	if carol.Amount() != 0 {
		t.Fatalf("rejected transfer must not credit the recipient: got=%d", carol.Amount())
	}

	if _, err := l.ReceiptByKey(ctx, "key-mismatch"); !errors.Is(err, ledger.ErrReceiptNotFound) {
		t.Fatalf("rejected transfer must leave no receipt, got %v", err)
	}
}

func TestTransfer_MissingFeeWalletFailsWholeTransfer(t *testing.T) {
	ctx := context.Background()
	l := NewLedger()
	l.CreateWallet("w-alice", money.MustNew(100_000, money.BTC))
	l.CreateWallet("w-bob", money.MustNew(0, money.BTC))

	_, err := l.Transfer(ctx, ledger.Instruction{
		IdempotencyKey: "key-nofee",
		FromWalletID:   "w-alice",
		ToWalletID:     "w-bob",
		FeeWalletID:    "w-ghost",
		Amount:         money.MustNew(50_000, money.BTC),
		Fee:            money.MustNew(500, money.BTC),
	})
	if !errors.Is(err, ledger.ErrWalletNotFound) {
		t.Fatalf("expected ErrWalletNotFound, got %v", err)
	}

	alice, _ := l.BalanceForWallet(ctx, "w-alice")
	bob, _ := l.BalanceForWallet(ctx, "w-bob")
	if alice.Amount() != 100_000 || bob.Amount() != 0 {
		t.Fatalf("fee leg failure must not move funds: sender=%d recipient=%d", alice.Amount(), bob.Amount())
	}
}

func TestTransfer_ExternalRailHasNoCreditLeg(t *testing.T) {
	ctx := context.Background()
	l := NewLedger()
	l.CreateWallet("w-alice", money.MustNew(100_000, money.BTC))

	_, err := l.Transfer(ctx, ledger.Instruction{
		IdempotencyKey: "key-ln",
		FromWalletID:   "w-alice",
		ExternalRail:   "lightning",
		Amount:         money.MustNew(20_000, money.BTC),
		Fee:            money.MustNew(200, money.BTC),
	})
	if err != nil {
		t.Fatalf("transfer: %v", err)
	}

	alice, _ := l.BalanceForWallet(ctx, "w-alice")
	if alice.Amount() != 79_800 {
		t.Fatalf("sender balance mismatch: got=%d want=79800", alice.Amount())
	}
}
