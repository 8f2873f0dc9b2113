package money

import "errors"

var (
	// ErrInvalidCurrency is returned when a currency is not BTC or USD.
	ErrInvalidCurrency = errors.New("money: invalid currency")
	// ErrCurrencyMismatch is returned when two amounts have different currencies.
	ErrCurrencyMismatch = errors.New("money: currency mismatch")
	// ErrNegativeResult is returned when a subtraction would go below zero.
	ErrNegativeResult = errors.New("money: negative result")
	// ErrAmountOverflow is returned when an amount exceeds the 64-bit minor-unit range.
	ErrAmountOverflow = errors.New("money: amount overflow")
	// ErrInvalidRate is returned when a rate has a zero numerator or denominator.
	ErrInvalidRate = errors.New("money: invalid rate")
	// ErrUnsupportedConversion is returned when a rate cannot convert between the given currencies.
	ErrUnsupportedConversion = errors.New("money: unsupported conversion")
)
