// Package strategy routes a classified regime to one of three trading
// strategies (trend-following, mean-reversion, breakout), grounded on the
// teacher's internal/confluence/scorer.go weighted-factor shape but driven
// by the regime state machine instead of pattern/FVG/volume confluence.
package strategy

import (
	"math"

	"github.com/kvantix/perpfutures-core/internal/candle"
	"github.com/kvantix/perpfutures-core/internal/exchange"
	"github.com/kvantix/perpfutures-core/internal/regime"
)

// Action is the strategy's recommended action.
type Action string

const (
	ActionLong  Action = "long"
	ActionShort Action = "short"
	ActionWait  Action = "wait"
)

// Kind names which of the three strategies produced a Result.
type Kind string

const (
	KindTrendFollowing Kind = "trend_following"
	KindMeanReversion  Kind = "mean_reversion"
	KindBreakout       Kind = "breakout"
	KindNone           Kind = "none"
)

// Result is the strategy_result record.
type Result struct {
	Symbol         string
	Strategy       Kind
	Action         Action
	Side           exchange.Side
	SignalStrength float64 // [0,1]
	Leverage       int
	Reasoning      string
}

// Route selects a strategy from the classified regime: uptrend_* goes long
// and downtrend_* goes short through the trend family (trend-following or
// breakout, as bestOfTrendFamily picks), ranging_oversold/ranging_overbought
// go to mean-reversion, everything else waits.
func Route(symbol string, analysis regime.Analysis, confirm, filter candle.Indicators, maxLeverage int) Result {
	switch analysis.State {
	case regime.UptrendOversold, regime.UptrendContinuation, regime.UptrendOverbought:
		return bestOfTrendFamily(symbol, analysis, confirm, filter, exchange.SideLong, maxLeverage)
	case regime.DowntrendOverbought, regime.DowntrendContinuation, regime.DowntrendOversold:
		return bestOfTrendFamily(symbol, analysis, confirm, filter, exchange.SideShort, maxLeverage)
	case regime.RangingOversold:
		return MeanReversion(symbol, analysis, confirm, filter, exchange.SideLong, maxLeverage)
	case regime.RangingOverbought:
		return MeanReversion(symbol, analysis, confirm, filter, exchange.SideShort, maxLeverage)
	default:
		return waitResult(symbol)
	}
}

// bestOfTrendFamily evaluates both trend-following and breakout for a
// trending regime and prefers whichever produces the higher signal
// strength, falling back to trend-following's wait when neither fires.
// Breakout is treated as a higher-conviction variant of the same
// directional thesis as trend-following rather than a separately-routed
// regime, since nothing else distinguishes which regimes should prefer it.
func bestOfTrendFamily(symbol string, analysis regime.Analysis, confirm, filter candle.Indicators, side exchange.Side, maxLeverage int) Result {
	tf := TrendFollowing(symbol, analysis, confirm, filter, side, maxLeverage)
	bo := Breakout(symbol, analysis, confirm, filter, side, maxLeverage)
	if bo.Action != ActionWait && bo.SignalStrength > tf.SignalStrength {
		return bo
	}
	return tf
}

func waitResult(symbol string) Result {
	return Result{Symbol: symbol, Strategy: KindNone, Action: ActionWait}
}

// signalStrength computes the weighted aggregate: RSI extremity 25, MACD
// differential 20, EMA alignment 25, price-EMA deviation 15, multi-timeframe
// consistency 15; then applies the volatility adjustment from the filter
// frame's ATR ratio.
func signalStrength(confirm, filter candle.Indicators, align float64, bullish bool) float64 {
	score := 0.0

	rsiDistance := math.Abs(confirm.RSI7 - 50)
	score += 25 * math.Min(1, rsiDistance/50)

	macdSign := confirm.MACD > 0
	if macdSign == bullish {
		score += 20 * math.Min(1, math.Abs(confirm.MACDHistogram))
	}

	emaAligned := (confirm.EMA20 > confirm.EMA50) == bullish
	if emaAligned {
		score += 25
	}

	score += 15 * math.Min(1, math.Abs(confirm.DeviationFromEMA20)*10)
	score += 15 * align

	strength := score / 100
	return applyVolatilityAdjustment(strength, filter.ATRRatio)
}

// applyVolatilityAdjustment scales signal strength by the filter frame's ATR
// ratio: 1.2x below 0.8, unchanged in [0.8,1.2], 0.825x up to 1.8 and 0.65x
// above, capped at 1.0.
func applyVolatilityAdjustment(strength, atrRatio float64) float64 {
	var mult float64
	switch {
	case atrRatio < 0.8:
		mult = 1.2
	case atrRatio <= 1.2:
		mult = 1.0
	case atrRatio <= 1.8:
		mult = 0.825
	default:
		mult = 0.65
	}
	return math.Min(1.0, strength*mult)
}

// recommendedLeverage clamps base*strength into [2, maxLeverage]; the
// volatility multiplier is already folded into strength by signalStrength.
func recommendedLeverage(base, strength float64, maxLeverage int) int {
	lev := int(math.Round(base * strength))
	if lev < 2 {
		lev = 2
	}
	if lev > maxLeverage {
		lev = maxLeverage
	}
	return lev
}
