package stoploss

import (
	"testing"

	"github.com/kvantix/perpfutures-core/internal/exchange"
)

func flatCandles(n int, low, high float64) []exchange.Candle {
	out := make([]exchange.Candle, n)
	for i := range out {
		out[i] = exchange.Candle{Low: low, High: high, Close: (low + high) / 2}
	}
	return out
}

func TestCalculate_LongStopBelowEntry(t *testing.T) {
	candles := flatCandles(40, 95, 105)
	r := Calculate("BTCUSDT", exchange.SideLong, 100, candles, DefaultConfig())
	if r.StopPrice >= 100 {
		t.Fatalf("long stop %v should be below entry 100", r.StopPrice)
	}
	if r.DistancePercent <= 0 {
		t.Fatalf("distance percent should be positive, got %v", r.DistancePercent)
	}
}

func TestCalculate_ShortStopAboveEntry(t *testing.T) {
	candles := flatCandles(40, 95, 105)
	r := Calculate("BTCUSDT", exchange.SideShort, 100, candles, DefaultConfig())
	if r.StopPrice <= 100 {
		t.Fatalf("short stop %v should be above entry 100", r.StopPrice)
	}
}

func TestStructuralStopPrice_DiscardedWhenWrongSide(t *testing.T) {
	// All lows above entry for a long stop candidate would be wrong-side.
	candles := flatCandles(20, 110, 120)
	stop, found := structuralStopPrice(exchange.SideLong, 100, candles, 20, 0.1)
	if found {
		t.Fatalf("expected structural stop discarded as wrong-side, got %v", stop)
	}
}

func TestSelectHybridStop_PicksTighter(t *testing.T) {
	// Long: entry 100, ATR stop at 95 (distance 5), structural at 98 (distance 2) -> structural tighter.
	stop, _ := selectHybridStop(exchange.SideLong, 100, 95, 98, true)
	if stop != 98 {
		t.Fatalf("expected tighter structural stop 98, got %v", stop)
	}
}

func TestQualityScore_ClampedToRange(t *testing.T) {
	q := qualityScore(2.0, 2.0, true)
	if q != 100 {
		t.Fatalf("expected max quality 100 for ideal ranges + structural, got %v", q)
	}
	q2 := qualityScore(10, 10, false)
	if q2 != 50 {
		t.Fatalf("expected base 50 quality outside all bonus ranges, got %v", q2)
	}
}

func TestVolatilityLevel_Buckets(t *testing.T) {
	cases := []struct {
		pct  float64
		want VolatilityLevel
	}{
		{1.0, VolatilityLow},
		{2.0, VolatilityMedium},
		{4.0, VolatilityHigh},
		{6.0, VolatilityExtreme},
	}
	for _, c := range cases {
		if got := volatilityLevel(c.pct); got != c.want {
			t.Fatalf("volatilityLevel(%v) = %v, want %v", c.pct, got, c.want)
		}
	}
}

func TestShouldOpenPosition_RejectsOnEachGate(t *testing.T) {
	ok, _ := ShouldOpenPosition(Result{DistancePercent: 10, Volatility: VolatilityLow, QualityScore: 80}, 5, 40)
	if ok {
		t.Fatalf("expected rejection on excessive stop distance")
	}
	ok, _ = ShouldOpenPosition(Result{DistancePercent: 1, Volatility: VolatilityExtreme, QualityScore: 80}, 5, 40)
	if ok {
		t.Fatalf("expected rejection on extreme volatility")
	}
	ok, _ = ShouldOpenPosition(Result{DistancePercent: 1, Volatility: VolatilityLow, QualityScore: 10}, 5, 40)
	if ok {
		t.Fatalf("expected rejection on low quality score")
	}
	ok, _ = ShouldOpenPosition(Result{DistancePercent: 1, Volatility: VolatilityLow, QualityScore: 80}, 5, 40)
	if !ok {
		t.Fatalf("expected acceptance when all gates pass")
	}
}

func TestUpdateTrailing_RejectsUnfavourableMove(t *testing.T) {
	candles := flatCandles(40, 95, 105)
	// A long position whose current stop is already tighter than what a
	// fresh calculation at this price would produce should reject.
	_, accepted, _ := UpdateTrailing(exchange.SideLong, 99, 100, candles, DefaultConfig())
	if accepted {
		t.Fatalf("expected unfavourable trailing move to be rejected")
	}
}

func TestUpdateTrailing_AcceptsFavourableMove(t *testing.T) {
	candles := flatCandles(40, 95, 105)
	newStop, accepted, _ := UpdateTrailing(exchange.SideLong, 50, 100, candles, DefaultConfig())
	if !accepted {
		t.Fatalf("expected favourable trailing move (stop far below price) to be accepted")
	}
	if newStop <= 50 {
		t.Fatalf("expected new stop %v to improve on 50", newStop)
	}
}
