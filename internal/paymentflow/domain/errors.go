package paymentflow

import "errors"

var (
	// ErrInvalidAmount is returned when the requested amount is zero.
	ErrInvalidAmount = errors.New("paymentflow: invalid amount")
	// ErrInsufficientQuoteData is returned when the currency/amount
	// combination is ambiguous, e.g. a BTC-denominated invoice quoted
	// with a fiat amount and no agreed cents value.
	ErrInsufficientQuoteData = errors.New("paymentflow: insufficient quote data")
	// ErrRailIdentity is returned unless exactly one of payment hash and
	// intraledger hash is set.
	ErrRailIdentity = errors.New("paymentflow: exactly one rail identity required")
	// ErrInsufficientBalance is returned when the sender cannot cover
	// amount plus fee at quote time.
	ErrInsufficientBalance = errors.New("paymentflow: insufficient balance")
	// ErrQuoteNotFound is returned when no quote matches the key.
	ErrQuoteNotFound = errors.New("paymentflow: quote not found")
	// ErrNilQuote is returned when persisting a nil quote.
	ErrNilQuote = errors.New("paymentflow: nil quote")
	// ErrUnknownRail is returned for an unsupported settlement rail.
	ErrUnknownRail = errors.New("paymentflow: unknown rail")
)
