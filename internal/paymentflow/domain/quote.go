package paymentflow

import (
	"time"

	"lnwallet-cloud/internal/money"
)

// Rail identifies the settlement channel for a payment.
type Rail string

const (
	// RailIntraLedger settles between two wallets on this ledger.
	RailIntraLedger Rail = "intraledger"
	// RailLightning settles over a routed off-chain payment.
	RailLightning Rail = "lightning"
	// RailOnChain settles with an on-chain transaction.
	RailOnChain Rail = "onchain"
)

// Valid reports whether the rail is supported.
func (r Rail) Valid() bool {
	return r == RailIntraLedger || r == RailLightning || r == RailOnChain
}

// QuoteParams carries everything needed to construct a quote.
type QuoteParams struct {
	ID              string
	PaymentHash     string
	IntraLedgerHash string
	Rail            Rail

	SenderWalletID  string
	SenderAccountID string
	SenderCurrency  money.Currency

	RecipientWalletID  string
	RecipientAccountID string
	RecipientCurrency  money.Currency

	InputAmount money.Money
	BtcAmount   money.Money
	UsdAmount   money.Money
	BtcFee      money.Money
	UsdFee      money.Money

	Description string
	CachedRoute []byte

	CreatedAt time.Time
	ExpiresAt time.Time
}

// Quote is a frozen cross-currency price for a payment. It is immutable
// after construction; a re-quote produces a new instance with a new
// identity. The cached route is an opaque blob owned by the off-ledger
// rail and is persisted and returned unchanged.
type Quote struct {
	id              string
	paymentHash     string
	intraLedgerHash string
	rail            Rail

	senderWalletID  string
	senderAccountID string
	senderCurrency  money.Currency

	recipientWalletID  string
	recipientAccountID string
	recipientCurrency  money.Currency

	inputAmount money.Money
	btcAmount   money.Money
	usdAmount   money.Money
	btcFee      money.Money
	usdFee      money.Money

	description string
	cachedRoute []byte

	createdAt time.Time
	expiresAt time.Time
}

// NewQuote validates params and constructs an immutable quote.
func NewQuote(p QuoteParams) (*Quote, error) {
	if p.ID == "" {
		return nil, ErrNilQuote
	}
	if !p.Rail.Valid() {
		return nil, ErrUnknownRail
	}
	if (p.PaymentHash == "") == (p.IntraLedgerHash == "") {
		return nil, ErrRailIdentity
	}
	if p.Rail == RailIntraLedger && p.IntraLedgerHash == "" {
		return nil, ErrRailIdentity
	}
	if p.Rail != RailIntraLedger && p.PaymentHash == "" {
		return nil, ErrRailIdentity
	}
	if p.SenderWalletID == "" || p.SenderAccountID == "" {
		return nil, ErrInsufficientQuoteData
	}
	if !p.SenderCurrency.Valid() {
		return nil, money.ErrInvalidCurrency
	}
	if p.InputAmount.IsZero() || p.BtcAmount.IsZero() {
		return nil, ErrInvalidAmount
	}
	if p.BtcAmount.Currency() != money.BTC || p.UsdAmount.Currency() != money.USD {
		return nil, money.ErrCurrencyMismatch
	}
	if p.BtcFee.Currency() != money.BTC || p.UsdFee.Currency() != money.USD {
		return nil, money.ErrCurrencyMismatch
	}
	if p.CreatedAt.IsZero() || !p.ExpiresAt.After(p.CreatedAt) {
		return nil, ErrInsufficientQuoteData
	}

	return &Quote{
		id:                 p.ID,
		paymentHash:        p.PaymentHash,
		intraLedgerHash:    p.IntraLedgerHash,
		rail:               p.Rail,
		senderWalletID:     p.SenderWalletID,
		senderAccountID:    p.SenderAccountID,
		senderCurrency:     p.SenderCurrency,
		recipientWalletID:  p.RecipientWalletID,
		recipientAccountID: p.RecipientAccountID,
		recipientCurrency:  p.RecipientCurrency,
		inputAmount:        p.InputAmount,
		btcAmount:          p.BtcAmount,
		usdAmount:          p.UsdAmount,
		btcFee:             p.BtcFee,
		usdFee:             p.UsdFee,
		description:        p.Description,
		cachedRoute:        append([]byte(nil), p.CachedRoute...),
		createdAt:          p.CreatedAt,
		expiresAt:          p.ExpiresAt,
	}, nil
}

// ID returns the quote identity.
func (q *Quote) ID() string { return q.id }

// Rail returns the settlement rail.
func (q *Quote) Rail() Rail { return q.rail }

// PaymentHash returns the off-ledger rail identity, if any.
func (q *Quote) PaymentHash() string { return q.paymentHash }

// IntraLedgerHash returns the intraledger rail identity, if any.
func (q *Quote) IntraLedgerHash() string { return q.intraLedgerHash }

// IdempotencyKey derives the settlement idempotency key from the rail
// identity, never from a random value, so re-submitting the same logical
// payment collides on the same key.
func (q *Quote) IdempotencyKey() string {
	if q.paymentHash != "" {
		return q.paymentHash
	}
	return q.intraLedgerHash
}

// SenderWalletID returns the sender wallet id.
func (q *Quote) SenderWalletID() string { return q.senderWalletID }

// SenderAccountID returns the sender account id.
func (q *Quote) SenderAccountID() string { return q.senderAccountID }

// SenderCurrency returns the sender wallet currency.
func (q *Quote) SenderCurrency() money.Currency { return q.senderCurrency }

// RecipientWalletID returns the recipient wallet id, empty for external rails.
func (q *Quote) RecipientWalletID() string { return q.recipientWalletID }

// RecipientAccountID returns the recipient account id, empty for external rails.
func (q *Quote) RecipientAccountID() string { return q.recipientAccountID }

// RecipientCurrency returns the recipient wallet currency, empty for external rails.
func (q *Quote) RecipientCurrency() money.Currency { return q.recipientCurrency }

// InputAmount returns the amount the user originally specified.
func (q *Quote) InputAmount() money.Money { return q.inputAmount }

// BtcAmount returns the economic amount in satoshis.
func (q *Quote) BtcAmount() money.Money { return q.btcAmount }

// UsdAmount returns the economic amount in cents.
func (q *Quote) UsdAmount() money.Money { return q.usdAmount }

// BtcProtocolAndBankFee returns the fee in satoshis.
func (q *Quote) BtcProtocolAndBankFee() money.Money { return q.btcFee }

// UsdProtocolAndBankFee returns the fee in cents.
func (q *Quote) UsdProtocolAndBankFee() money.Money { return q.usdFee }

// Description returns the invoice description, if any.
func (q *Quote) Description() string { return q.description }

// CachedRoute returns a copy of the opaque routing blob.
func (q *Quote) CachedRoute() []byte {
	return append([]byte(nil), q.cachedRoute...)
}

// CreatedAt returns the quote timestamp.
func (q *Quote) CreatedAt() time.Time { return q.createdAt }

// ExpiresAt returns the end of the quote's validity window.
func (q *Quote) ExpiresAt() time.Time { return q.expiresAt }

// Expired reports whether the quote is no longer settleable.
func (q *Quote) Expired(now time.Time) bool {
	return !now.Before(q.expiresAt)
}

// DebitTotal returns amount plus fee in the sender wallet currency.
func (q *Quote) DebitTotal() (money.Money, error) {
	amount, fee := q.AmountsInSenderCurrency()
	return amount.Add(fee)
}

// AmountsInSenderCurrency returns the principal and fee in the sender
// wallet currency.
func (q *Quote) AmountsInSenderCurrency() (amount, fee money.Money) {
	if q.senderCurrency == money.USD {
		return q.usdAmount, q.usdFee
	}
	return q.btcAmount, q.btcFee
}

// AmountInRecipientCurrency returns the principal in the recipient
// wallet currency. Only meaningful for intraledger quotes.
func (q *Quote) AmountInRecipientCurrency() money.Money {
	if q.recipientCurrency == money.USD {
		return q.usdAmount
	}
	return q.btcAmount
}
