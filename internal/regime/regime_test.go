package regime

import (
	"testing"

	"github.com/kvantix/perpfutures-core/internal/candle"
	"github.com/kvantix/perpfutures-core/internal/exchange"
)

func withClose(ind candle.Indicators, close float64) candle.Indicators {
	ind.Candles = []exchange.Candle{{Close: close}}
	return ind
}

func TestTrendScore_ClampingEachTerm(t *testing.T) {
	ind := withClose(candle.Indicators{
		EMA20: 110, EMA50: 100, // (10/100)*1000 = 100 -> clamp 40
		MACD:               1000, // 1000/close*10000, close=200 -> 50000 -> clamp 30
		DeviationFromEMA20: 50,   // *2 = 100 -> clamp 20
		RSI7:               100,  // (100-50)/5 = 10 -> clamp 10 (already within bound)
	}, 200)

	got := TrendScore(ind)
	want := 40.0 + 30.0 + 20.0 + 10.0
	if got != want {
		t.Fatalf("TrendScore = %v, want %v", got, want)
	}
}

func TestTrendScore_ZeroEMA50AndCloseSkipTerms(t *testing.T) {
	ind := withClose(candle.Indicators{EMA20: 10, EMA50: 0, MACD: 5, RSI7: 50}, 0)
	got := TrendScore(ind)
	if got != 0 {
		t.Fatalf("TrendScore with zero denominators = %v, want 0", got)
	}
}

func TestClassifyTrend(t *testing.T) {
	up := candle.Indicators{EMA20: 110, EMA50: 100, MACD: 1}
	if got := classifyTrend(up); got != TrendingUp {
		t.Fatalf("classifyTrend(up) = %v, want trending_up", got)
	}
	down := candle.Indicators{EMA20: 90, EMA50: 100, MACD: -1}
	if got := classifyTrend(down); got != TrendingDown {
		t.Fatalf("classifyTrend(down) = %v, want trending_down", got)
	}
	mixed := candle.Indicators{EMA20: 110, EMA50: 100, MACD: -1}
	if got := classifyTrend(mixed); got != Ranging {
		t.Fatalf("classifyTrend(mixed signals) = %v, want ranging", got)
	}
}

func TestClassifyMomentum(t *testing.T) {
	th := DefaultMomentumThresholds
	cases := []struct {
		rsi  float64
		want MomentumState
	}{
		{10, OversoldExtreme},
		{25, OversoldMild},
		{50, Neutral},
		{75, OverboughtMild},
		{90, OverboughtExtreme},
	}
	for _, c := range cases {
		if got := classifyMomentum(c.rsi, th); got != c.want {
			t.Fatalf("classifyMomentum(%v) = %v, want %v", c.rsi, got, c.want)
		}
	}
}

func TestClassifyVolatility(t *testing.T) {
	if got := classifyVolatility(0.5); got != LowVol {
		t.Fatalf("classifyVolatility(0.5) = %v, want low_vol", got)
	}
	if got := classifyVolatility(1.0); got != NormalVol {
		t.Fatalf("classifyVolatility(1.0) = %v, want normal_vol", got)
	}
	if got := classifyVolatility(2.0); got != HighVol {
		t.Fatalf("classifyVolatility(2.0) = %v, want high_vol", got)
	}
}

func TestLookupRegime_UptrendOversoldIsHighConfidence(t *testing.T) {
	state, conf := lookupRegime(TrendingUp, OversoldExtreme)
	if state != UptrendOversold || conf != 0.9 {
		t.Fatalf("lookupRegime(up, oversold_extreme) = (%v, %v), want (uptrend_oversold, 0.9)", state, conf)
	}
}

func TestLookupRegime_DefaultNoClearSignal(t *testing.T) {
	state, conf := lookupRegime(Ranging, OversoldMild)
	if state != NoClearSignal || conf != 0.3 {
		t.Fatalf("lookupRegime(ranging, oversold_mild) = (%v, %v), want (no_clear_signal, 0.3)", state, conf)
	}
}

func TestConfirmsTurn_BumpsConfidenceOnAgreement(t *testing.T) {
	if !confirmsTurn(1, UptrendContinuation) {
		t.Fatalf("expected upward MACD turn to confirm an uptrend-continuation regime")
	}
	if confirmsTurn(1, DowntrendContinuation) {
		t.Fatalf("upward MACD turn should not confirm a downtrend regime")
	}
	if !confirmsTurn(-1, DowntrendOverbought) {
		t.Fatalf("expected downward MACD turn to confirm a downtrend-overbought regime")
	}
}

func TestClassify_FullPipelineConfidenceBump(t *testing.T) {
	primary := candle.Indicators{EMA20: 110, EMA50: 100, MACD: 1, MACDTurn: 1, DeviationFromEMA20: 0.01}
	primary.Candles = []exchange.Candle{{Close: 111}}
	confirm := candle.Indicators{RSI7: 25, EMA20: 110, EMA50: 100, MACD: 1}
	confirm.Candles = []exchange.Candle{{Close: 111}}
	filter := candle.Indicators{ATRRatio: 1.0, EMA20: 110, EMA50: 100, MACD: 1}
	filter.Candles = []exchange.Candle{{Close: 111}}

	analysis := Classify("BTCUSDT", primary, confirm, filter, DefaultMomentumThresholds)
	if analysis.State != UptrendContinuation {
		t.Fatalf("State = %v, want uptrend_continuation", analysis.State)
	}
	if analysis.Confidence <= 0.7 {
		t.Fatalf("Confidence = %v, want > 0.7 after MACD-turn bump", analysis.Confidence)
	}
	if !analysis.TimeframeAlign.Aligned {
		t.Fatalf("expected aligned timeframes for three concordant frames, got score %v", analysis.TimeframeAlign.Score)
	}
}

func TestSameSign(t *testing.T) {
	if !sameSign(1, 2) || !sameSign(-1, -2) {
		t.Fatalf("expected same-sign values to agree")
	}
	if sameSign(1, -1) {
		t.Fatalf("expected opposite-sign values to disagree")
	}
	if !sameSign(0, 0) {
		t.Fatalf("expected both-zero to agree")
	}
}
