package strategy

import (
	"testing"

	"github.com/kvantix/perpfutures-core/internal/candle"
	"github.com/kvantix/perpfutures-core/internal/exchange"
	"github.com/kvantix/perpfutures-core/internal/regime"
)

func candlesUpTo(n int, close float64) []exchange.Candle {
	out := make([]exchange.Candle, n)
	for i := range out {
		out[i] = exchange.Candle{Close: close, High: close + 1, Low: close - 1}
	}
	out[n-1].Close = close
	return out
}

func TestRoute_NoClearSignalWaits(t *testing.T) {
	analysis := regime.Analysis{State: regime.NoClearSignal}
	result := Route("BTCUSDT", analysis, candle.Indicators{}, candle.Indicators{}, 10)
	if result.Action != ActionWait {
		t.Fatalf("Action = %v, want wait", result.Action)
	}
}

func TestTrendFollowing_RequiresFilterEMAAlignment(t *testing.T) {
	analysis := regime.Analysis{State: regime.UptrendContinuation, TimeframeAlign: regime.Alignment{Score: 0.8}}
	confirm := candle.Indicators{RSI7: 50, EMA20: 100, EMA50: 90, Candles: candlesUpTo(25, 100)}
	filter := candle.Indicators{EMA20: 90, EMA50: 100} // bearish filter should block a long
	result := TrendFollowing("BTCUSDT", analysis, confirm, filter, exchange.SideLong, 10)
	if result.Action != ActionWait {
		t.Fatalf("expected wait when filter EMA disagrees, got %v", result.Action)
	}
}

func TestTrendFollowing_SteadyContinuationSignal(t *testing.T) {
	analysis := regime.Analysis{State: regime.UptrendContinuation, TimeframeAlign: regime.Alignment{Score: 0.8}}
	confirm := candle.Indicators{RSI7: 55, EMA20: 100, EMA50: 90, Candles: candlesUpTo(25, 100)}
	filter := candle.Indicators{EMA20: 105, EMA50: 95, ATRRatio: 1.0}
	result := TrendFollowing("BTCUSDT", analysis, confirm, filter, exchange.SideLong, 10)
	if result.Action != ActionLong {
		t.Fatalf("expected long action, got %v", result.Action)
	}
	if result.SignalStrength != 0.5 {
		t.Fatalf("expected steady-continuation strength 0.5, got %v", result.SignalStrength)
	}
	if result.Leverage < 2 || result.Leverage > 10 {
		t.Fatalf("leverage %d out of bounds [2,10]", result.Leverage)
	}
}

func TestMeanReversion_VetoesOnAcceleratingBearishFilter(t *testing.T) {
	analysis := regime.Analysis{State: regime.RangingOversold, TimeframeAlign: regime.Alignment{Score: 0.5}}
	confirm := candle.Indicators{RSI7: 20, Candles: candlesUpTo(25, 100)}
	filter := candle.Indicators{EMA20: 90, EMA50: 100, MACD: -60}
	result := MeanReversion("BTCUSDT", analysis, confirm, filter, exchange.SideLong, 10)
	if result.Action != ActionWait {
		t.Fatalf("expected veto wait, got %v", result.Action)
	}
}

func TestMeanReversion_ExtremeOversoldScalesStrength(t *testing.T) {
	analysis := regime.Analysis{State: regime.RangingOversold, TimeframeAlign: regime.Alignment{Score: 0.5}}
	confirm := candle.Indicators{RSI7: 20, EMA20: 100, EMA50: 100, Candles: candlesUpTo(25, 100)}
	filter := candle.Indicators{EMA20: 100, EMA50: 100, ATRRatio: 1.0}
	result := MeanReversion("BTCUSDT", analysis, confirm, filter, exchange.SideLong, 10)
	if result.Action != ActionLong {
		t.Fatalf("expected long, got %v", result.Action)
	}
	if result.SignalStrength <= 0 || result.SignalStrength > 1 {
		t.Fatalf("signal strength out of [0,1]: %v", result.SignalStrength)
	}
}

func TestBreakout_RequiresMinimumHistory(t *testing.T) {
	analysis := regime.Analysis{State: regime.UptrendContinuation, TimeframeAlign: regime.Alignment{Score: 0.8}}
	confirm := candle.Indicators{RSI7: 50, Candles: candlesUpTo(5, 100), RecentHigh: 101}
	filter := candle.Indicators{}
	result := Breakout("BTCUSDT", analysis, confirm, filter, exchange.SideLong, 10)
	if result.Action != ActionWait {
		t.Fatalf("expected wait with insufficient candles, got %v", result.Action)
	}
}

func TestBreakout_FiresAboveResistanceWithVolume(t *testing.T) {
	analysis := regime.Analysis{State: regime.UptrendContinuation, TimeframeAlign: regime.Alignment{Score: 0.8}}
	confirm := candle.Indicators{
		RSI7: 60, EMA20: 100, EMA50: 90, RecentHigh: 100, VolumeRatio: 2.0,
		Candles: candlesUpTo(25, 101),
	}
	filter := candle.Indicators{MACD: 5, ATRRatio: 1.0}
	result := Breakout("BTCUSDT", analysis, confirm, filter, exchange.SideLong, 10)
	if result.Action != ActionLong {
		t.Fatalf("expected long breakout, got %v", result.Action)
	}
}

func TestApplyVolatilityAdjustment(t *testing.T) {
	if got := applyVolatilityAdjustment(0.5, 0.5); got <= 0.5 {
		t.Fatalf("low volatility should boost strength, got %v", got)
	}
	if got := applyVolatilityAdjustment(0.5, 2.0); got >= 0.5 {
		t.Fatalf("high volatility should dampen strength, got %v", got)
	}
}

func TestRecommendedLeverage_ClampsToRange(t *testing.T) {
	if got := recommendedLeverage(5, 0.01, 10); got != 2 {
		t.Fatalf("recommendedLeverage floor = %d, want 2", got)
	}
	if got := recommendedLeverage(5, 10, 10); got != 10 {
		t.Fatalf("recommendedLeverage cap = %d, want 10", got)
	}
}
