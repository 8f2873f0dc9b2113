package pricing

import (
	"context"
	"errors"
	"time"

	"lnwallet-cloud/internal/money"
)

// FreshnessCheckedProvider rejects rate snapshots older than a window.
type FreshnessCheckedProvider struct {
	inner  RateProvider
	window time.Duration
	clock  Clock
}

// NewFreshnessCheckedProvider wraps a provider with a freshness guard.
func NewFreshnessCheckedProvider(inner RateProvider, window time.Duration, clock Clock) (*FreshnessCheckedProvider, error) {
	if inner == nil {
		return nil, errors.New("pricing: nil rate provider")
	}
	if window <= 0 {
		return nil, errors.New("pricing: non-positive freshness window")
	}
	if clock == nil {
		clock = SystemClock{}
	}
	return &FreshnessCheckedProvider{inner: inner, window: window, clock: clock}, nil
}

// GetRate fetches a rate and fails with ErrStaleRate when it is too old.
func (p *FreshnessCheckedProvider) GetRate(ctx context.Context, base, quote money.Currency) (money.Rate, error) {
	rate, err := p.inner.GetRate(ctx, base, quote)
	if err != nil {
		return money.Rate{}, err
	}
	if p.clock.Now().Sub(rate.AsOf()) > p.window {
		return money.Rate{}, ErrStaleRate
	}
	return rate, nil
}
