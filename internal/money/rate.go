package money

import (
	"math/big"
	"time"
)

// Rate is an exchange rate snapshot expressed as an integer ratio:
// one base minor unit is worth num/den quote minor units. Keeping the
// ratio in integers avoids binary floating-point drift entirely.
//
// Rounding rule: Convert rounds down, ConvertRoundUp rounds up. Debits
// and credits both use Convert, so any conversion remainder stays with
// the ledger; fees use ConvertRoundUp for the same reason. This is a
// deliberate design choice, not a library default.
type Rate struct {
	base  Currency
	quote Currency
	num   uint64
	den   uint64
	asOf  time.Time
}

// NewRate constructs a rate snapshot. num and den must be positive.
func NewRate(base, quote Currency, num, den uint64, asOf time.Time) (Rate, error) {
	if !base.Valid() || !quote.Valid() || base == quote {
		return Rate{}, ErrInvalidCurrency
	}
	if num == 0 || den == 0 {
		return Rate{}, ErrInvalidRate
	}
	return Rate{base: base, quote: quote, num: num, den: den, asOf: asOf}, nil
}

// Base returns the base currency.
func (r Rate) Base() Currency { return r.base }

// Quote returns the quote currency.
func (r Rate) Quote() Currency { return r.quote }

// AsOf returns the snapshot timestamp.
func (r Rate) AsOf() time.Time { return r.asOf }

// Ratio returns the integer ratio num/den.
func (r Rate) Ratio() (num, den uint64) { return r.num, r.den }

// Inverse returns the rate in the opposite direction.
func (r Rate) Inverse() Rate {
	return Rate{base: r.quote, quote: r.base, num: r.den, den: r.num, asOf: r.asOf}
}

// Convert converts an amount to the target currency, rounding down.
func (r Rate) Convert(m Money, to Currency) (Money, error) {
	return r.convert(m, to, false)
}

// ConvertRoundUp converts an amount to the target currency, rounding up.
func (r Rate) ConvertRoundUp(m Money, to Currency) (Money, error) {
	return r.convert(m, to, true)
}

func (r Rate) convert(m Money, to Currency, roundUp bool) (Money, error) {
	if !to.Valid() {
		return Money{}, ErrInvalidCurrency
	}
	if m.Currency() == to {
		return m, nil
	}

	var num, den uint64
	switch {
	case m.Currency() == r.base && to == r.quote:
		num, den = r.num, r.den
	case m.Currency() == r.quote && to == r.base:
		num, den = r.den, r.num
	default:
		return Money{}, ErrUnsupportedConversion
	}

	// The intermediate product can exceed 64 bits for large amounts,
	// so the multiplication runs through big.Int.
	product := new(big.Int).Mul(
		new(big.Int).SetUint64(m.Amount()),
		new(big.Int).SetUint64(num),
	)
	quotient, remainder := new(big.Int).QuoRem(
		product,
		new(big.Int).SetUint64(den),
		new(big.Int),
	)
	if roundUp && remainder.Sign() > 0 {
		quotient.Add(quotient, big.NewInt(1))
	}
	if !quotient.IsUint64() {
		return Money{}, ErrAmountOverflow
	}
	return Money{amount: quotient.Uint64(), currency: to}, nil
}
