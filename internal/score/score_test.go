package score

import (
	"testing"

	"github.com/kvantix/perpfutures-core/internal/regime"
	"github.com/kvantix/perpfutures-core/internal/strategy"
)

func TestScore_WaitActionUsesFloor(t *testing.T) {
	result := strategy.Result{Symbol: "BTCUSDT", Action: strategy.ActionWait}
	analysis := regime.Analysis{State: regime.UptrendOversold}
	s := Score(result, analysis, 1.0, 5, LiquidityMajor)
	if s.Total != 55 {
		t.Fatalf("wait floor for uptrend_oversold = %d, want 55", s.Total)
	}
	if s.Breakdown != (Breakdown{}) {
		t.Fatalf("expected empty breakdown for wait action, got %+v", s.Breakdown)
	}
}

func TestScore_ActiveActionComputesBreakdown(t *testing.T) {
	result := strategy.Result{
		Symbol: "BTCUSDT", Action: strategy.ActionLong,
		Strategy: strategy.KindTrendFollowing, SignalStrength: 1.0,
	}
	analysis := regime.Analysis{
		State:          regime.UptrendContinuation,
		TimeframeAlign: regime.Alignment{Score: 1.0},
	}
	s := Score(result, analysis, 1.0, 4, LiquidityMajor)
	if s.Total <= 0 || s.Total > 100 {
		t.Fatalf("total out of bounds: %d", s.Total)
	}
	if s.Breakdown.Signal != 30 {
		t.Fatalf("Signal = %v, want 30", s.Breakdown.Signal)
	}
	if s.Breakdown.TrendConsistency != 25 {
		t.Fatalf("TrendConsistency = %v, want 25", s.Breakdown.TrendConsistency)
	}
}

func TestVolatilityFit_PeakInNeutralBand(t *testing.T) {
	if got := volatilityFit(1.0); got != 1.0 {
		t.Fatalf("volatilityFit(1.0) = %v, want 1.0", got)
	}
	if got := volatilityFit(3.0); got != 0.3 {
		t.Fatalf("volatilityFit(3.0) = %v, want floor 0.3", got)
	}
}

func TestRiskReward_DampedOutsideLeverageBand(t *testing.T) {
	inBand := riskReward(regime.UptrendOversold, 4)
	outOfBand := riskReward(regime.UptrendOversold, 10)
	if outOfBand >= inBand {
		t.Fatalf("expected leverage outside [3,5] to damp risk_reward: in=%v out=%v", inBand, outOfBand)
	}
}

func TestConfidenceBucket(t *testing.T) {
	if confidenceBucket(80) != ConfidenceHigh {
		t.Fatalf("80 should be high confidence")
	}
	if confidenceBucket(65) != ConfidenceMedium {
		t.Fatalf("65 should be medium confidence")
	}
	if confidenceBucket(10) != ConfidenceLow {
		t.Fatalf("10 should be low confidence")
	}
}

func TestRank_FiltersExcludesAndTruncates(t *testing.T) {
	results := []Result{
		{Symbol: "A", Total: 80},
		{Symbol: "B", Total: 30},
		{Symbol: "C", Total: 90, HasOpenPosition: true},
		{Symbol: "D", Total: 70},
	}
	ranked := Rank(results, 40, 2, false)
	if len(ranked) != 2 {
		t.Fatalf("expected 2 results after filter+truncate, got %d", len(ranked))
	}
	if ranked[0].Symbol != "A" || ranked[1].Symbol != "D" {
		t.Fatalf("unexpected rank order: %+v", ranked)
	}
}

func TestRank_IncludesOpenPositionWhenOptedIn(t *testing.T) {
	results := []Result{{Symbol: "C", Total: 90, HasOpenPosition: true}}
	ranked := Rank(results, 40, 5, true)
	if len(ranked) != 1 {
		t.Fatalf("expected open-position symbol included, got %d results", len(ranked))
	}
}
