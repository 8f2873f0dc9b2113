package integration

import (
	"context"
	"errors"
	"io"
	"log"
	"sync"
	"testing"
	"time"

	"lnwallet-cloud/internal/ledger"
	ledgermem "lnwallet-cloud/internal/ledger/memory"
	"lnwallet-cloud/internal/money"
	paymentflow "lnwallet-cloud/internal/paymentflow/domain"
	"lnwallet-cloud/internal/settlement/application"
	settlement "lnwallet-cloud/internal/settlement/domain"
	settlementmem "lnwallet-cloud/internal/settlement/infrastructure/memory"
)

type fixedClock struct{ now time.Time }

func (c *fixedClock) Now() time.Time { return c.now }

var testNow = time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC)

func testQuote(t *testing.T, hash string, expiresAt time.Time) *paymentflow.Quote {
	t.Helper()
	quote, err := paymentflow.NewQuote(paymentflow.QuoteParams{
		ID:                 "quote-" + hash,
		IntraLedgerHash:    hash,
		Rail:               paymentflow.RailIntraLedger,
		SenderWalletID:     "wallet-alice",
		SenderAccountID:    "acct-alice",
		SenderCurrency:     money.BTC,
		RecipientWalletID:  "wallet-bob",
		RecipientAccountID: "acct-bob",
		RecipientCurrency:  money.BTC,
		InputAmount:        money.MustNew(50_000, money.BTC),
		BtcAmount:          money.MustNew(50_000, money.BTC),
		UsdAmount:          money.MustNew(3_000, money.USD),
		BtcFee:             money.MustNew(500, money.BTC),
		UsdFee:             money.MustNew(30, money.USD),
		CreatedAt:          testNow.Add(-time.Minute),
		ExpiresAt:          expiresAt,
	})
	if err != nil {
		t.Fatalf("quote: %v", err)
	}
	return quote
}

func newLedger() *ledgermem.Ledger {
	led := ledgermem.NewLedger()
	led.CreateWallet("wallet-alice", money.MustNew(100_000, money.BTC))
	led.CreateWallet("wallet-bob", money.MustNew(0, money.BTC))
	led.CreateWallet("wallet-bank", money.MustNew(0, money.BTC))
	return led
}

func newSettler(t *testing.T, records settlement.RecordStore, led ledger.LedgerOfRecord, clock application.Clock) *application.Settler {
	t.Helper()
	settler, err := application.NewSettler(records, led, nil, "wallet-bank", clock, log.New(io.Discard, "", 0))
	if err != nil {
		t.Fatalf("settler: %v", err)
	}
	return settler
}

func TestSettleCommitsOnce(t *testing.T) {
	led := newLedger()
	records := settlementmem.NewRecordStore()
	clock := &fixedClock{now: testNow}
	settler := newSettler(t, records, led, clock)

	quote := testQuote(t, "hash-commit", testNow.Add(time.Minute))
	record, err := settler.Settle(context.Background(), quote)
	if err != nil {
		t.Fatalf("settle: %v", err)
	}
	if record.Status != settlement.StatusCommitted {
		t.Fatalf("status mismatch: got=%s want=%s", record.Status, settlement.StatusCommitted)
	}
	if record.ReceiptID == "" {
		t.Fatalf("committed record missing receipt id")
	}

	// Sender debited amount plus fee, recipient credited the amount,
	// bank wallet collected the fee.
	assertBalance(t, led, "wallet-alice", 49_500)
	assertBalance(t, led, "wallet-bob", 50_000)
	assertBalance(t, led, "wallet-bank", 500)
}

func TestSettleCreditsRecipientInItsOwnCurrency(t *testing.T) {
	led := newLedger()
	led.CreateWallet("wallet-carol", money.MustNew(0, money.USD))
	records := settlementmem.NewRecordStore()
	clock := &fixedClock{now: testNow}
	settler := newSettler(t, records, led, clock)

	quote, err := paymentflow.NewQuote(paymentflow.QuoteParams{
		ID:                 "quote-fx",
		IntraLedgerHash:    "hash-fx",
		Rail:               paymentflow.RailIntraLedger,
		SenderWalletID:     "wallet-alice",
		SenderAccountID:    "acct-alice",
		SenderCurrency:     money.BTC,
		RecipientWalletID:  "wallet-carol",
		RecipientAccountID: "acct-carol",
		RecipientCurrency:  money.USD,
		InputAmount:        money.MustNew(50_000, money.BTC),
		BtcAmount:          money.MustNew(50_000, money.BTC),
		UsdAmount:          money.MustNew(3_000, money.USD),
		BtcFee:             money.MustNew(500, money.BTC),
		UsdFee:             money.MustNew(30, money.USD),
		CreatedAt:          testNow.Add(-time.Minute),
		ExpiresAt:          testNow.Add(time.Minute),
	})
	if err != nil {
		t.Fatalf("quote: %v", err)
	}

	record, err := settler.Settle(context.Background(), quote)
	if err != nil {
		t.Fatalf("settle: %v", err)
	}
	if record.Status != settlement.StatusCommitted {
		t.Fatalf("status mismatch: got=%s want=%s", record.Status, settlement.StatusCommitted)
	}

	// The sender pays sats, the USD recipient receives the quote's
	// frozen cents value.
	assertBalance(t, led, "wallet-alice", 49_500)
	assertBalance(t, led, "wallet-carol", 3_000)
	assertBalance(t, led, "wallet-bank", 500)
}

func TestSettleConcurrentAtMostOnce(t *testing.T) {
	led := newLedger()
	records := settlementmem.NewRecordStore()
	clock := &fixedClock{now: testNow}
	settler := newSettler(t, records, led, clock)

	quote := testQuote(t, "hash-race", testNow.Add(time.Minute))

	const submitters = 8
	var wg sync.WaitGroup
	results := make([]*settlement.Record, submitters)
	for i := 0; i < submitters; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			record, err := settler.Settle(context.Background(), quote)
			if err != nil {
				t.Errorf("settle %d: %v", i, err)
				return
			}
			results[i] = record
		}(i)
	}
	wg.Wait()

	// The ledger moved money exactly once.
	assertBalance(t, led, "wallet-alice", 49_500)
	assertBalance(t, led, "wallet-bob", 50_000)

	final, err := records.FindByKey(context.Background(), quote.IdempotencyKey())
	if err != nil {
		t.Fatalf("find record: %v", err)
	}
	if final.Status != settlement.StatusCommitted {
		t.Fatalf("status mismatch: got=%s want=%s", final.Status, settlement.StatusCommitted)
	}
	for i, record := range results {
		if record == nil {
			t.Fatalf("submitter %d got no record", i)
		}
	}
}

func TestSettleExpiredQuoteFailsWithoutTransfer(t *testing.T) {
	led := newLedger()
	records := settlementmem.NewRecordStore()
	clock := &fixedClock{now: testNow}
	settler := newSettler(t, records, led, clock)

	quote := testQuote(t, "hash-expired", testNow.Add(-time.Second))
	record, err := settler.Settle(context.Background(), quote)
	if !errors.Is(err, settlement.ErrQuoteExpired) {
		t.Fatalf("expected ErrQuoteExpired, got %v", err)
	}
	if record.Status != settlement.StatusFailed {
		t.Fatalf("status mismatch: got=%s want=%s", record.Status, settlement.StatusFailed)
	}
	assertBalance(t, led, "wallet-alice", 100_000)
}

func TestSettleFailedRecordSuperseded(t *testing.T) {
	led := newLedger()
	records := settlementmem.NewRecordStore()
	clock := &fixedClock{now: testNow}
	settler := newSettler(t, records, led, clock)

	expired := testQuote(t, "hash-retry", testNow.Add(-time.Second))
	if _, err := settler.Settle(context.Background(), expired); !errors.Is(err, settlement.ErrQuoteExpired) {
		t.Fatalf("expected ErrQuoteExpired, got %v", err)
	}

	// A fresh quote for the same rail identity supersedes the failure.
	fresh := testQuote(t, "hash-retry", testNow.Add(time.Minute))
	record, err := settler.Settle(context.Background(), fresh)
	if err != nil {
		t.Fatalf("settle retry: %v", err)
	}
	if record.Status != settlement.StatusCommitted {
		t.Fatalf("status mismatch: got=%s want=%s", record.Status, settlement.StatusCommitted)
	}
	assertBalance(t, led, "wallet-alice", 49_500)
}

type unresolvedLedger struct {
	*ledgermem.Ledger
}

func (l unresolvedLedger) Transfer(context.Context, ledger.Instruction) (*ledger.Receipt, error) {
	return nil, ledger.ErrUnresolved
}

func TestSettleUnresolvedStaysPending(t *testing.T) {
	led := newLedger()
	records := settlementmem.NewRecordStore()
	clock := &fixedClock{now: testNow}
	settler := newSettler(t, records, unresolvedLedger{led}, clock)

	quote := testQuote(t, "hash-unresolved", testNow.Add(time.Minute))
	_, err := settler.Settle(context.Background(), quote)
	if !errors.Is(err, ledger.ErrUnresolved) {
		t.Fatalf("expected ErrUnresolved, got %v", err)
	}

	record, err := records.FindByKey(context.Background(), quote.IdempotencyKey())
	if err != nil {
		t.Fatalf("find record: %v", err)
	}
	if record.Status != settlement.StatusPending {
		t.Fatalf("ambiguous outcome must stay pending, got %s", record.Status)
	}
}

func TestSweeperFinalizesPending(t *testing.T) {
	led := newLedger()
	records := settlementmem.NewRecordStore()
	clock := &fixedClock{now: testNow}

	// One pending record whose transfer did land on the ledger, and one
	// whose transfer never happened.
	landed := testQuote(t, "hash-landed", testNow.Add(time.Minute))
	if _, _, err := records.InsertPending(context.Background(), landed.IdempotencyKey(), landed.ID(), testNow.Add(-10*time.Minute)); err != nil {
		t.Fatalf("insert pending: %v", err)
	}
	if _, err := led.Transfer(context.Background(), ledger.Instruction{
		IdempotencyKey: landed.IdempotencyKey(),
		FromWalletID:   "wallet-alice",
		ToWalletID:     "wallet-bob",
		Amount:         money.MustNew(50_000, money.BTC),
		Fee:            money.MustNew(500, money.BTC),
	}); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if _, _, err := records.InsertPending(context.Background(), "hash-lost", "quote-lost", testNow.Add(-10*time.Minute)); err != nil {
		t.Fatalf("insert pending: %v", err)
	}

	sweeper, err := application.NewSweeper(records, led, 5*time.Minute, 10, clock, log.New(io.Discard, "", 0))
	if err != nil {
		t.Fatalf("sweeper: %v", err)
	}
	finalized, err := sweeper.Sweep(context.Background())
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if finalized != 2 {
		t.Fatalf("finalized count mismatch: got=%d want=2", finalized)
	}

	committed, err := records.FindByKey(context.Background(), landed.IdempotencyKey())
	if err != nil {
		t.Fatalf("find landed: %v", err)
	}
	if committed.Status != settlement.StatusCommitted {
		t.Fatalf("landed status mismatch: got=%s want=%s", committed.Status, settlement.StatusCommitted)
	}

	failed, err := records.FindByKey(context.Background(), "hash-lost")
	if err != nil {
		t.Fatalf("find lost: %v", err)
	}
	if failed.Status != settlement.StatusFailed {
		t.Fatalf("lost status mismatch: got=%s want=%s", failed.Status, settlement.StatusFailed)
	}
}

func assertBalance(t *testing.T, led ledger.LedgerOfRecord, walletID string, want uint64) {
	t.Helper()
	balance, err := led.BalanceForWallet(context.Background(), walletID)
	if err != nil {
		t.Fatalf("balance %s: %v", walletID, err)
	}
	if balance.Amount() != want {
		t.Fatalf("balance mismatch for %s: got=%d want=%d", walletID, balance.Amount(), want)
	}
}
