package settlement

import "errors"

var (
	// ErrNilQuote is returned when settling a nil quote.
	ErrNilQuote = errors.New("settlement: nil quote")
	// ErrQuoteExpired is returned when the quote's validity window has passed.
	ErrQuoteExpired = errors.New("settlement: quote expired")
	// ErrRecordNotFound is returned when no settlement record matches the key.
	ErrRecordNotFound = errors.New("settlement: record not found")
	// ErrStatusConflict is returned when a status transition races with
	// another writer and loses.
	ErrStatusConflict = errors.New("settlement: status conflict")
)
