package application

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log"
	"time"

	"github.com/oklog/ulid/v2"

	"lnwallet-cloud/internal/accounts"
	"lnwallet-cloud/internal/money"
	paymentflow "lnwallet-cloud/internal/paymentflow/domain"
	"lnwallet-cloud/internal/pricing"
)

// BalanceReader exposes the ledger-of-record's read-only balance view.
type BalanceReader interface {
	BalanceForWallet(ctx context.Context, walletID string) (money.Money, error)
}

// Clock returns the current time.
type Clock interface {
	Now() time.Time
}

// SystemClock uses time.Now.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }

// BuildRequest describes a payment to quote. Amount is the user's
// requested amount in its original currency. For off-ledger rails the
// invoice's payment hash is required; when such an invoice is
// BTC-denominated but quoted in fiat, AgreedCents pins the dealer price.
type BuildRequest struct {
	SenderWalletID    string
	RecipientWalletID string
	Rail              paymentflow.Rail
	PaymentHash       string
	Amount            money.Money
	AgreedCents       *uint64
	Description       string
	CachedRoute       []byte
}

// QuoteBuilder produces immutable payment flow quotes.
type QuoteBuilder struct {
	directory accounts.Repository
	rates     pricing.RateProvider
	balances  BalanceReader
	fees      paymentflow.FeePolicy
	quotes    paymentflow.Repository
	ttl       time.Duration
	clock     Clock
	logger    *log.Logger
}

// NewQuoteBuilder constructs the builder.
func NewQuoteBuilder(
	directory accounts.Repository,
	rates pricing.RateProvider,
	balances BalanceReader,
	fees paymentflow.FeePolicy,
	quotes paymentflow.Repository,
	ttl time.Duration,
	clock Clock,
	logger *log.Logger,
) (*QuoteBuilder, error) {
	if directory == nil {
		return nil, errors.New("quote builder: nil account directory")
	}
	if rates == nil {
		return nil, errors.New("quote builder: nil rate provider")
	}
	if balances == nil {
		return nil, errors.New("quote builder: nil balance reader")
	}
	if fees == nil {
		return nil, errors.New("quote builder: nil fee policy")
	}
	if quotes == nil {
		return nil, errors.New("quote builder: nil quote repository")
	}
	if ttl <= 0 {
		return nil, errors.New("quote builder: non-positive quote ttl")
	}
	if clock == nil {
		clock = SystemClock{}
	}
	if logger == nil {
		logger = log.Default()
	}
	return &QuoteBuilder{
		directory: directory,
		rates:     rates,
		balances:  balances,
		fees:      fees,
		quotes:    quotes,
		ttl:       ttl,
		clock:     clock,
		logger:    logger,
	}, nil
}

// BuildQuote freezes a cross-currency price for the requested payment
// and persists it immediately, so a crash between quoting and settling
// leaves an auditable record rather than a lost quote.
func (b *QuoteBuilder) BuildQuote(ctx context.Context, req BuildRequest) (*paymentflow.Quote, error) {
	if req.Amount.IsZero() {
		return nil, paymentflow.ErrInvalidAmount
	}
	if !req.Amount.Currency().Valid() {
		return nil, money.ErrInvalidCurrency
	}

	senderWallet, err := b.directory.FindWalletByID(ctx, req.SenderWalletID)
	if err != nil {
		return nil, err
	}
	senderAccount, err := b.directory.FindAccountByID(ctx, senderWallet.AccountID)
	if err != nil {
		return nil, err
	}

	rail, recipient, err := b.classifyRail(ctx, req)
	if err != nil {
		return nil, err
	}

	// A BTC-denominated invoice quoted with a fiat amount needs a
	// dealer-agreed cents value; without it the quote is ambiguous.
	if rail != paymentflow.RailIntraLedger && req.Amount.Currency() == money.USD {
		if req.AgreedCents == nil {
			return nil, paymentflow.ErrInsufficientQuoteData
		}
		if *req.AgreedCents != req.Amount.Amount() {
			return nil, paymentflow.ErrInsufficientQuoteData
		}
	}

	rate, err := b.rates.GetRate(ctx, money.BTC, money.USD)
	if err != nil {
		return nil, err
	}

	btcAmount, err := rate.Convert(req.Amount, money.BTC)
	if err != nil {
		return nil, err
	}
	usdAmount, err := rate.Convert(req.Amount, money.USD)
	if err != nil {
		return nil, err
	}
	if btcAmount.IsZero() {
		return nil, paymentflow.ErrInvalidAmount
	}
	// A cross-currency intraledger credit that floors to zero would debit
	// the sender and pay the recipient nothing.
	if rail == paymentflow.RailIntraLedger && recipient.Currency == money.USD && usdAmount.IsZero() {
		return nil, paymentflow.ErrInvalidAmount
	}

	fee, err := b.fees.Fee(req.Amount, rail, senderAccount.Tier)
	if err != nil {
		return nil, err
	}
	// The fee's other-currency representation rounds up so reporting
	// never understates what the ledger retains.
	btcFee, err := rate.ConvertRoundUp(fee, money.BTC)
	if err != nil {
		return nil, err
	}
	usdFee, err := rate.ConvertRoundUp(fee, money.USD)
	if err != nil {
		return nil, err
	}

	debitAmount, debitFee := btcAmount, btcFee
	if senderWallet.Currency == money.USD {
		debitAmount, debitFee = usdAmount, usdFee
	}
	debitTotal, err := debitAmount.Add(debitFee)
	if err != nil {
		return nil, err
	}
	available, err := b.balances.BalanceForWallet(ctx, senderWallet.ID)
	if err != nil {
		return nil, err
	}
	if cmp, err := available.Cmp(debitTotal); err != nil {
		return nil, err
	} else if cmp < 0 {
		return nil, paymentflow.ErrInsufficientBalance
	}

	now := b.clock.Now()
	quoteID := ulid.Make().String()
	params := paymentflow.QuoteParams{
		ID:              quoteID,
		Rail:            rail,
		SenderWalletID:  senderWallet.ID,
		SenderAccountID: senderAccount.ID,
		SenderCurrency:  senderWallet.Currency,
		InputAmount:     req.Amount,
		BtcAmount:       btcAmount,
		UsdAmount:       usdAmount,
		BtcFee:          btcFee,
		UsdFee:          usdFee,
		Description:     req.Description,
		CachedRoute:     req.CachedRoute,
		CreatedAt:       now,
		ExpiresAt:       now.Add(b.ttl),
	}
	if rail == paymentflow.RailIntraLedger {
		params.IntraLedgerHash = intraLedgerHash(quoteID)
		params.RecipientWalletID = recipient.ID
		params.RecipientAccountID = recipient.AccountID
		params.RecipientCurrency = recipient.Currency
	} else {
		params.PaymentHash = req.PaymentHash
	}

	quote, err := paymentflow.NewQuote(params)
	if err != nil {
		return nil, err
	}
	if err := b.quotes.Save(ctx, quote); err != nil {
		return nil, err
	}

	b.logger.Printf("quote built: id=%s rail=%s key=%s btc=%d usd=%d fee_btc=%d",
		quote.ID(), quote.Rail(), quote.IdempotencyKey(),
		quote.BtcAmount().Amount(), quote.UsdAmount().Amount(),
		quote.BtcProtocolAndBankFee().Amount())
	return quote, nil
}

// classifyRail assigns the rail: a recipient that resolves to an
// internal wallet settles intraledger; anything else settles on the
// requested external rail identified by its payment hash.
func (b *QuoteBuilder) classifyRail(ctx context.Context, req BuildRequest) (paymentflow.Rail, *accounts.Wallet, error) {
	if req.RecipientWalletID != "" {
		recipient, err := b.directory.FindWalletByID(ctx, req.RecipientWalletID)
		if err != nil {
			return "", nil, err
		}
		return paymentflow.RailIntraLedger, recipient, nil
	}

	rail := req.Rail
	if rail == "" || rail == paymentflow.RailIntraLedger {
		return "", nil, paymentflow.ErrUnknownRail
	}
	if !rail.Valid() {
		return "", nil, paymentflow.ErrUnknownRail
	}
	if req.PaymentHash == "" {
		return "", nil, paymentflow.ErrRailIdentity
	}
	return rail, nil, nil
}

func intraLedgerHash(quoteID string) string {
	sum := sha256.Sum256([]byte("intraledger:" + quoteID))
	return hex.EncodeToString(sum[:])
}
