package pricing

import (
	"context"
	"errors"
	"testing"
	"time"

	"lnwallet-cloud/internal/money"
)

type fixedClock struct {
	now time.Time
}

func (c fixedClock) Now() time.Time { return c.now }

type stampedProvider struct {
	asOf  time.Time
	calls int
}

func (p *stampedProvider) GetRate(ctx context.Context, base, quote money.Currency) (money.Rate, error) {
	_ = ctx
	p.calls++
	return money.NewRate(base, quote, 6_000_000, 100_000_000, p.asOf)
}

func TestFreshnessChecked_RejectsStaleRate(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)

	inner := &stampedProvider{asOf: now.Add(-2 * time.Minute)}
	provider, err := NewFreshnessCheckedProvider(inner, time.Minute, fixedClock{now: now})
	if err != nil {
		t.Fatalf("new provider: %v", err)
	}

	if _, err := provider.GetRate(ctx, money.BTC, money.USD); !errors.Is(err, ErrStaleRate) {
		t.Fatalf("expected ErrStaleRate, got %v", err)
	}

	inner.asOf = now.Add(-30 * time.Second)
	if _, err := provider.GetRate(ctx, money.BTC, money.USD); err != nil {
		t.Fatalf("fresh rate rejected: %v", err)
	}
}

func TestCachedProvider_ServesWithinTTL(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)

	inner := &stampedProvider{asOf: now}
	cached, err := NewCachedRateProvider(inner, time.Minute, fixedClock{now: now})
	if err != nil {
		t.Fatalf("new cached provider: %v", err)
	}

	for i := 0; i < 3; i++ {
		if _, err := cached.GetRate(ctx, money.BTC, money.USD); err != nil {
			t.Fatalf("get rate: %v", err)
		}
	}
	if inner.calls != 1 {
		t.Fatalf("expected 1 upstream call, got %d", inner.calls)
	}
}

func TestFixedProvider_StampsCallTime(t *testing.T) {
	now := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)
	provider, err := NewFixedRateProvider(3, 50, fixedClock{now: now})
	if err != nil {
		t.Fatalf("new fixed provider: %v", err)
	}

	rate, err := provider.GetRate(context.Background(), money.BTC, money.USD)
	if err != nil {
		t.Fatalf("get rate: %v", err)
	}
	if !rate.AsOf().Equal(now) {
		t.Fatalf("asOf mismatch: got=%s want=%s", rate.AsOf(), now)
	}
}
