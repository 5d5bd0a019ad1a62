package strategy

import (
	"github.com/kvantix/perpfutures-core/internal/candle"
	"github.com/kvantix/perpfutures-core/internal/exchange"
	"github.com/kvantix/perpfutures-core/internal/regime"
)

const trendFollowingBaseLeverage = 5

// TrendFollowing is the trending-regime trend-following strategy.
// Long requires the filter frame's EMA20>EMA50. A steady-continuation
// signal fires when the regime is uptrend_continuation and confirm's
// RSI7 sits in [45,65]; otherwise a pullback entry requires confirm's
// RSI7<40 and price not too far below EMA20. Short is the mirror.
func TrendFollowing(symbol string, analysis regime.Analysis, confirm, filter candle.Indicators, side exchange.Side, maxLeverage int) Result {
	bullish := side == exchange.SideLong

	if bullish && !(filter.EMA20 > filter.EMA50) {
		return waitResult(symbol)
	}
	if !bullish && !(filter.EMA20 < filter.EMA50) {
		return waitResult(symbol)
	}

	lastClose := lastCloseOf(confirm)

	var strength float64
	var reasoning string
	switch {
	case bullish && analysis.State == regime.UptrendContinuation && confirm.RSI7 >= 45 && confirm.RSI7 <= 65:
		strength = 0.5
		reasoning = "steady continuation, confirm RSI7 in neutral band"
	case !bullish && analysis.State == regime.DowntrendContinuation && confirm.RSI7 >= 35 && confirm.RSI7 <= 55:
		strength = 0.5
		reasoning = "steady continuation, confirm RSI7 in neutral band"
	case bullish && confirm.RSI7 < 40 && lastClose >= 0.995*confirm.EMA20:
		strength = signalStrength(confirm, filter, analysis.TimeframeAlign.Score, true)
		reasoning = "pullback entry, confirm RSI7 oversold near EMA20"
	case !bullish && confirm.RSI7 > 60 && lastClose <= 1.005*confirm.EMA20:
		strength = signalStrength(confirm, filter, analysis.TimeframeAlign.Score, false)
		reasoning = "pullback entry, confirm RSI7 overbought near EMA20"
	default:
		return waitResult(symbol)
	}

	action := ActionLong
	if !bullish {
		action = ActionShort
	}

	return Result{
		Symbol:         symbol,
		Strategy:       KindTrendFollowing,
		Action:         action,
		Side:           side,
		SignalStrength: strength,
		Leverage:       recommendedLeverage(trendFollowingBaseLeverage, strength, maxLeverage),
		Reasoning:      reasoning,
	}
}

func lastCloseOf(ind candle.Indicators) float64 {
	if len(ind.Candles) == 0 {
		return 0
	}
	return ind.Candles[len(ind.Candles)-1].Close
}
