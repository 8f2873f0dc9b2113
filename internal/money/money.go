package money

import "fmt"

// Currency identifies one of the two ledger currencies.
type Currency string

const (
	// BTC amounts are denominated in satoshis.
	BTC Currency = "BTC"
	// USD amounts are denominated in cents.
	USD Currency = "USD"
)

// Valid reports whether the currency is supported.
func (c Currency) Valid() bool {
	return c == BTC || c == USD
}

// MinorUnit returns the name of the currency's smallest unit.
func (c Currency) MinorUnit() string {
	switch c {
	case BTC:
		return "sat"
	case USD:
		return "cent"
	default:
		return ""
	}
}

// Money is a non-negative amount of minor units in a single currency.
// All arithmetic is integer; there is no fractional representation.
type Money struct {
	amount   uint64
	currency Currency
}

// New constructs an amount in minor units.
func New(amount uint64, currency Currency) (Money, error) {
	if !currency.Valid() {
		return Money{}, ErrInvalidCurrency
	}
	return Money{amount: amount, currency: currency}, nil
}

// MustNew is New for statically known values; it panics on an invalid currency.
func MustNew(amount uint64, currency Currency) Money {
	m, err := New(amount, currency)
	if err != nil {
		panic(err)
	}
	return m
}

// Zero returns a zero amount in the given currency.
func Zero(currency Currency) Money {
	return Money{amount: 0, currency: currency}
}

// Amount returns the amount in minor units.
func (m Money) Amount() uint64 { return m.amount }

// Currency returns the amount's currency.
func (m Money) Currency() Currency { return m.currency }

// IsZero reports whether the amount is zero.
func (m Money) IsZero() bool { return m.amount == 0 }

// Add returns m + other.
func (m Money) Add(other Money) (Money, error) {
	if m.currency != other.currency {
		return Money{}, ErrCurrencyMismatch
	}
	sum := m.amount + other.amount
	if sum < m.amount {
		return Money{}, ErrAmountOverflow
	}
	return Money{amount: sum, currency: m.currency}, nil
}

// Sub returns m - other, failing if the result would be negative.
func (m Money) Sub(other Money) (Money, error) {
	if m.currency != other.currency {
		return Money{}, ErrCurrencyMismatch
	}
	if other.amount > m.amount {
		return Money{}, ErrNegativeResult
	}
	return Money{amount: m.amount - other.amount, currency: m.currency}, nil
}

// Cmp compares two amounts of the same currency: -1, 0 or +1.
func (m Money) Cmp(other Money) (int, error) {
	if m.currency != other.currency {
		return 0, ErrCurrencyMismatch
	}
	switch {
	case m.amount < other.amount:
		return -1, nil
	case m.amount > other.amount:
		return 1, nil
	default:
		return 0, nil
	}
}

// Equal reports whether two amounts have the same currency and value.
func (m Money) Equal(other Money) bool {
	return m.currency == other.currency && m.amount == other.amount
}

// String renders the amount for logs, e.g. "50000 sat".
func (m Money) String() string {
	unit := m.currency.MinorUnit()
	if unit == "" {
		unit = string(m.currency)
	}
	return fmt.Sprintf("%d %s", m.amount, unit)
}
