package money

import (
	"errors"
	"testing"
	"time"
)

// 60,000 USD per BTC: 6,000,000 cents per 100,000,000 sats.
func testRate(t *testing.T) Rate {
	t.Helper()
	rate, err := NewRate(BTC, USD, 6_000_000, 100_000_000, time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("new rate: %v", err)
	}
	return rate
}

func TestNewRate_RejectsZeroRatio(t *testing.T) {
	if _, err := NewRate(BTC, USD, 0, 1, time.Now()); !errors.Is(err, ErrInvalidRate) {
		t.Fatalf("expected ErrInvalidRate, got %v", err)
	}
	if _, err := NewRate(BTC, BTC, 1, 1, time.Now()); !errors.Is(err, ErrInvalidCurrency) {
		t.Fatalf("expected ErrInvalidCurrency, got %v", err)
	}
}

func TestConvert_RoundsDown(t *testing.T) {
	rate := testRate(t)

	// 33 sats at 0.06 cents/sat = 1.98 cents -> 1 cent.
	got, err := rate.Convert(MustNew(33, BTC), USD)
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	if got.Amount() != 1 {
		t.Fatalf("floor mismatch: got=%d want=1", got.Amount())
	}

	up, err := rate.ConvertRoundUp(MustNew(33, BTC), USD)
	if err != nil {
		t.Fatalf("convert round up: %v", err)
	}
	if up.Amount() != 2 {
		t.Fatalf("ceil mismatch: got=%d want=2", up.Amount())
	}
}

func TestConvert_BothDirections(t *testing.T) {
	rate := testRate(t)

	usd, err := rate.Convert(MustNew(50_000, BTC), USD)
	if err != nil {
		t.Fatalf("convert to usd: %v", err)
	}
	if usd.Amount() != 3_000 {
		t.Fatalf("usd mismatch: got=%d want=3000", usd.Amount())
	}

	btc, err := rate.Convert(MustNew(3_000, USD), BTC)
	if err != nil {
		t.Fatalf("convert to btc: %v", err)
	}
	if btc.Amount() != 50_000 {
		t.Fatalf("btc mismatch: got=%d want=50000", btc.Amount())
	}
}

func TestConvert_RoundTripWithinOneMinorUnit(t *testing.T) {
	rate := testRate(t)

	for _, sats := range []uint64{1, 17, 33, 999, 50_000, 123_456_789, 2_100_000_000_000_000} {
		usd, err := rate.Convert(MustNew(sats, BTC), USD)
		if err != nil {
			t.Fatalf("convert %d sats: %v", sats, err)
		}
		back, err := rate.Convert(usd, BTC)
		if err != nil {
			t.Fatalf("convert back: %v", err)
		}

		// Each floor loses at most one quote minor unit, which maps
		// back to at most den/num base units; with this rate the
		// round trip can be short by up to ~17 sats but never over.
		if back.Amount() > sats {
			t.Fatalf("round trip gained value: start=%d end=%d", sats, back.Amount())
		}
		num, den := rate.Ratio()
		maxLoss := den/num + 1
		if sats-back.Amount() > maxLoss {
			t.Fatalf("round trip lost too much: start=%d end=%d maxLoss=%d", sats, back.Amount(), maxLoss)
		}
	}
}

func TestConvert_LargeAmountsDoNotOverflow(t *testing.T) {
	rate := testRate(t)

	// All bitcoin that will ever exist, in sats.
	got, err := rate.Convert(MustNew(2_100_000_000_000_000, BTC), USD)
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	if got.Amount() != 126_000_000_000_000 {
		t.Fatalf("large convert mismatch: got=%d", got.Amount())
	}
}

func TestConvert_UnsupportedPair(t *testing.T) {
	rate := testRate(t)
	if _, err := rate.Convert(MustNew(10, BTC), BTC); err != nil {
		t.Fatalf("same-currency convert should be identity, got %v", err)
	}
	inv := rate.Inverse()
	if inv.Base() != USD || inv.Quote() != BTC {
		t.Fatalf("inverse pair mismatch: %s/%s", inv.Base(), inv.Quote())
	}
}
