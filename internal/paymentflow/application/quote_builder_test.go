package application

import (
	"context"
	"errors"
	"io"
	"log"
	"testing"
	"time"

	"lnwallet-cloud/internal/accounts"
	accountsmem "lnwallet-cloud/internal/accounts/memory"
	ledgermem "lnwallet-cloud/internal/ledger/memory"
	"lnwallet-cloud/internal/money"
	paymentflow "lnwallet-cloud/internal/paymentflow/domain"
	flowmem "lnwallet-cloud/internal/paymentflow/infrastructure/memory"
	"lnwallet-cloud/internal/pricing"
)

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

// testSchedule charges 1% on every rail with no minimum.
func testSchedule() paymentflow.FeeSchedule {
	return paymentflow.FeeSchedule{
		Rails: map[paymentflow.Rail]paymentflow.RailFees{
			paymentflow.RailIntraLedger: {DefaultBps: 100},
			paymentflow.RailLightning:   {DefaultBps: 100},
			paymentflow.RailOnChain:     {DefaultBps: 100},
		},
	}
}

type fixture struct {
	builder *QuoteBuilder
	ledger  *ledgermem.Ledger
	quotes  *flowmem.QuoteRepository
	clock   fixedClock
}

func newFixture(t *testing.T, rates pricing.RateProvider) *fixture {
	t.Helper()

	directory := accountsmem.NewRepository()
	directory.PutAccount(&accounts.Account{ID: "acct-alice", Tier: accounts.TierStandard, WalletIDs: []string{"wallet-alice"}})
	directory.PutAccount(&accounts.Account{ID: "acct-bob", Tier: accounts.TierStandard, WalletIDs: []string{"wallet-bob"}})
	directory.PutWallet(&accounts.Wallet{ID: "wallet-alice", AccountID: "acct-alice", Currency: money.BTC})
	directory.PutWallet(&accounts.Wallet{ID: "wallet-bob", AccountID: "acct-bob", Currency: money.BTC})

	led := ledgermem.NewLedger()
	led.CreateWallet("wallet-alice", money.MustNew(100_000, money.BTC))
	led.CreateWallet("wallet-bob", money.MustNew(0, money.BTC))

	policy, err := paymentflow.NewBasisPointsFeePolicy(testSchedule())
	if err != nil {
		t.Fatalf("fee policy: %v", err)
	}

	quotes := flowmem.NewQuoteRepository()
	clock := fixedClock{now: time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC)}
	builder, err := NewQuoteBuilder(directory, rates, led, policy, quotes, 2*time.Minute, clock, log.New(io.Discard, "", 0))
	if err != nil {
		t.Fatalf("builder: %v", err)
	}
	return &fixture{builder: builder, ledger: led, quotes: quotes, clock: clock}
}

// testRates quotes $60,000 per BTC: 6,000,000 cents per 100,000,000 sats.
func testRates(t *testing.T) pricing.RateProvider {
	t.Helper()
	provider, err := pricing.NewFixedRateProvider(6_000_000, 100_000_000, pricing.SystemClock{})
	if err != nil {
		t.Fatalf("rate provider: %v", err)
	}
	return provider
}

func TestBuildQuoteIntraLedger(t *testing.T) {
	fx := newFixture(t, testRates(t))

	quote, err := fx.builder.BuildQuote(context.Background(), BuildRequest{
		SenderWalletID:    "wallet-alice",
		RecipientWalletID: "wallet-bob",
		Amount:            money.MustNew(50_000, money.BTC),
	})
	if err != nil {
		t.Fatalf("build quote: %v", err)
	}

	if quote.Rail() != paymentflow.RailIntraLedger {
		t.Fatalf("rail mismatch: got=%s want=%s", quote.Rail(), paymentflow.RailIntraLedger)
	}
	if quote.PaymentHash() != "" {
		t.Fatalf("intraledger quote must not carry a payment hash")
	}
	if quote.IntraLedgerHash() == "" {
		t.Fatalf("intraledger quote missing intraledger hash")
	}
	if got := quote.BtcAmount().Amount(); got != 50_000 {
		t.Fatalf("btc amount mismatch: got=%d want=50000", got)
	}
	// 50,000 sats at $60k/BTC = 3,000 cents.
	if got := quote.UsdAmount().Amount(); got != 3_000 {
		t.Fatalf("usd amount mismatch: got=%d want=3000", got)
	}
	// 1% of 50,000 sats.
	if got := quote.BtcProtocolAndBankFee().Amount(); got != 500 {
		t.Fatalf("btc fee mismatch: got=%d want=500", got)
	}
	if got := quote.UsdProtocolAndBankFee().Amount(); got != 30 {
		t.Fatalf("usd fee mismatch: got=%d want=30", got)
	}
	if got, want := quote.ExpiresAt(), fx.clock.now.Add(2*time.Minute); !got.Equal(want) {
		t.Fatalf("expiry mismatch: got=%v want=%v", got, want)
	}

	// The quote is persisted under its rail identity immediately.
	stored, err := fx.quotes.FindByIdempotencyKey(context.Background(), quote.IdempotencyKey())
	if err != nil {
		t.Fatalf("stored quote: %v", err)
	}
	if stored.ID() != quote.ID() {
		t.Fatalf("stored quote id mismatch: got=%s want=%s", stored.ID(), quote.ID())
	}
}

func TestBuildQuoteLightningRequiresPaymentHash(t *testing.T) {
	fx := newFixture(t, testRates(t))

	_, err := fx.builder.BuildQuote(context.Background(), BuildRequest{
		SenderWalletID: "wallet-alice",
		Rail:           paymentflow.RailLightning,
		Amount:         money.MustNew(10_000, money.BTC),
	})
	if !errors.Is(err, paymentflow.ErrRailIdentity) {
		t.Fatalf("expected ErrRailIdentity, got %v", err)
	}
}

func TestBuildQuoteAmbiguousFiatInvoice(t *testing.T) {
	fx := newFixture(t, testRates(t))

	// A USD-denominated request against an off-ledger rail with no
	// agreed cents value is rejected, not guessed at.
	_, err := fx.builder.BuildQuote(context.Background(), BuildRequest{
		SenderWalletID: "wallet-alice",
		Rail:           paymentflow.RailLightning,
		PaymentHash:    "a1b2c3",
		Amount:         money.MustNew(3_000, money.USD),
	})
	if !errors.Is(err, paymentflow.ErrInsufficientQuoteData) {
		t.Fatalf("expected ErrInsufficientQuoteData, got %v", err)
	}

	cents := uint64(3_000)
	quote, err := fx.builder.BuildQuote(context.Background(), BuildRequest{
		SenderWalletID: "wallet-alice",
		Rail:           paymentflow.RailLightning,
		PaymentHash:    "a1b2c3",
		Amount:         money.MustNew(3_000, money.USD),
		AgreedCents:    &cents,
	})
	if err != nil {
		t.Fatalf("build quote with agreed cents: %v", err)
	}
	if got := quote.BtcAmount().Amount(); got != 50_000 {
		t.Fatalf("btc amount mismatch: got=%d want=50000", got)
	}
	if got := quote.IdempotencyKey(); got != "a1b2c3" {
		t.Fatalf("idempotency key mismatch: got=%s want=a1b2c3", got)
	}
}

func TestBuildQuoteInsufficientBalance(t *testing.T) {
	fx := newFixture(t, testRates(t))

	// 100,000 sats principal needs 1,000 sats fee on top.
	_, err := fx.builder.BuildQuote(context.Background(), BuildRequest{
		SenderWalletID:    "wallet-alice",
		RecipientWalletID: "wallet-bob",
		Amount:            money.MustNew(100_000, money.BTC),
	})
	if !errors.Is(err, paymentflow.ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}
}

func TestBuildQuoteStaleRateRejected(t *testing.T) {
	stale, err := money.NewRate(money.BTC, money.USD, 6_000_000, 100_000_000,
		time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("rate: %v", err)
	}
	guarded, err := pricing.NewFreshnessCheckedProvider(
		staticRateProvider{rate: stale}, 30*time.Second, pricing.SystemClock{})
	if err != nil {
		t.Fatalf("freshness provider: %v", err)
	}
	fx := newFixture(t, guarded)

	_, err = fx.builder.BuildQuote(context.Background(), BuildRequest{
		SenderWalletID:    "wallet-alice",
		RecipientWalletID: "wallet-bob",
		Amount:            money.MustNew(50_000, money.BTC),
	})
	if !errors.Is(err, pricing.ErrStaleRate) {
		t.Fatalf("expected ErrStaleRate, got %v", err)
	}
}

type staticRateProvider struct{ rate money.Rate }

func (p staticRateProvider) GetRate(context.Context, money.Currency, money.Currency) (money.Rate, error) {
	return p.rate, nil
}

func TestRequoteGetsNewIdentity(t *testing.T) {
	fx := newFixture(t, testRates(t))

	first, err := fx.builder.BuildQuote(context.Background(), BuildRequest{
		SenderWalletID:    "wallet-alice",
		RecipientWalletID: "wallet-bob",
		Amount:            money.MustNew(50_000, money.BTC),
	})
	if err != nil {
		t.Fatalf("first quote: %v", err)
	}
	second, err := fx.builder.BuildQuote(context.Background(), BuildRequest{
		SenderWalletID:    "wallet-alice",
		RecipientWalletID: "wallet-bob",
		Amount:            money.MustNew(50_000, money.BTC),
	})
	if err != nil {
		t.Fatalf("second quote: %v", err)
	}

	if first.ID() == second.ID() {
		t.Fatalf("re-quote must produce a new quote id")
	}
	if first.IdempotencyKey() == second.IdempotencyKey() {
		t.Fatalf("re-quote must produce a new intraledger hash")
	}
}

func TestQuoteImmutabilityOfCachedRoute(t *testing.T) {
	fx := newFixture(t, testRates(t))

	route := []byte(`{"hops":3}`)
	quote, err := fx.builder.BuildQuote(context.Background(), BuildRequest{
		SenderWalletID: "wallet-alice",
		Rail:           paymentflow.RailLightning,
		PaymentHash:    "deadbeef",
		Amount:         money.MustNew(10_000, money.BTC),
		CachedRoute:    route,
	})
	if err != nil {
		t.Fatalf("build quote: %v", err)
	}

	// Mutating the caller's slice or the returned copy must not leak
	// into the quote.
	route[0] = 'X'
	returned := quote.CachedRoute()
	returned[0] = 'Y'
	if got := string(quote.CachedRoute()); got != `{"hops":3}` {
		t.Fatalf("cached route mutated: got=%q", got)
	}
}

func TestBuildQuoteZeroBtcAmountRejected(t *testing.T) {
	// At $1B per BTC a 1-cent request floors to zero sats.
	provider, err := pricing.NewFixedRateProvider(100_000_000_000, 100_000_000, pricing.SystemClock{})
	if err != nil {
		t.Fatalf("rate provider: %v", err)
	}
	fx := newFixture(t, provider)

	cents := uint64(1)
	_, err = fx.builder.BuildQuote(context.Background(), BuildRequest{
		SenderWalletID: "wallet-alice",
		Rail:           paymentflow.RailLightning,
		PaymentHash:    "cafe01",
		Amount:         money.MustNew(1, money.USD),
		AgreedCents:    &cents,
	})
	if !errors.Is(err, paymentflow.ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
}
