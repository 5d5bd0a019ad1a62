package circuit

import (
	"math"
	"testing"
)

func TestBreaker_TripsOnConsecutiveLosses(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxConsecutiveLosses = 3
	b := New(cfg)

	for i := 0; i < 3; i++ {
		b.RecordTrade(-1.0)
	}

	if b.State() != StateOpen {
		t.Fatalf("state = %s, want open", b.State())
	}
	if ok, _ := b.CanTrade(); ok {
		t.Fatalf("expected CanTrade to refuse once tripped")
	}
}

func TestBreaker_WinningTradeResetsConsecutiveLosses(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxConsecutiveLosses = 3
	b := New(cfg)

	b.RecordTrade(-1.0)
	b.RecordTrade(-1.0)
	b.RecordTrade(2.0)

	if ok, reason := b.CanTrade(); !ok {
		t.Fatalf("expected CanTrade to allow after a winner, got refused: %s", reason)
	}
}

func TestBreaker_TripsOnDailyLossLimit(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxDailyLossPct = 4.0
	cfg.MaxLossPerHourPct = 100
	cfg.MaxConsecutiveLosses = 100
	b := New(cfg)

	b.RecordTrade(-2.0)
	b.RecordTrade(-2.5)

	if b.State() != StateOpen {
		t.Fatalf("state = %s, want open after exceeding daily loss limit", b.State())
	}
}

func TestBreaker_DisabledAlwaysAllows(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Enabled = false
	b := New(cfg)

	for i := 0; i < 50; i++ {
		b.RecordTrade(-5.0)
	}
	if ok, _ := b.CanTrade(); !ok {
		t.Fatalf("disabled breaker must always allow trading")
	}
}

func TestBreaker_IgnoresNonFinitePnL(t *testing.T) {
	b := New(DefaultConfig())
	b.RecordTrade(math.NaN())
	if b.State() != StateClosed {
		t.Fatalf("NaN PnL must not affect breaker state")
	}
}
