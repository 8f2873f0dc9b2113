package pricing

import (
	"context"
	"errors"
	"sync"
	"time"

	"lnwallet-cloud/internal/money"
)

// CachedRateProvider serves recent snapshots from memory so every quote
// does not hit the price service. The TTL must stay below the freshness
// window enforced downstream.
type CachedRateProvider struct {
	inner RateProvider
	ttl   time.Duration
	clock Clock

	mu    sync.RWMutex
	rates map[string]money.Rate
}

// NewCachedRateProvider wraps a provider with a TTL cache.
func NewCachedRateProvider(inner RateProvider, ttl time.Duration, clock Clock) (*CachedRateProvider, error) {
	if inner == nil {
		return nil, errors.New("pricing: nil rate provider")
	}
	if ttl <= 0 {
		return nil, errors.New("pricing: non-positive cache ttl")
	}
	if clock == nil {
		clock = SystemClock{}
	}
	return &CachedRateProvider{
		inner: inner,
		ttl:   ttl,
		clock: clock,
		rates: make(map[string]money.Rate),
	}, nil
}

// GetRate returns a cached snapshot when fresh enough, refetching otherwise.
func (p *CachedRateProvider) GetRate(ctx context.Context, base, quote money.Currency) (money.Rate, error) {
	key := string(base) + "/" + string(quote)

	p.mu.RLock()
	cached, ok := p.rates[key]
	p.mu.RUnlock()
	if ok && p.clock.Now().Sub(cached.AsOf()) <= p.ttl {
		return cached, nil
	}

	rate, err := p.inner.GetRate(ctx, base, quote)
	if err != nil {
		return money.Rate{}, err
	}

	p.mu.Lock()
	p.rates[key] = rate
	p.mu.Unlock()
	return rate, nil
}
