package strategy

import (
	"math"

	"github.com/kvantix/perpfutures-core/internal/candle"
	"github.com/kvantix/perpfutures-core/internal/exchange"
	"github.com/kvantix/perpfutures-core/internal/regime"
)

const meanReversionBaseLeverage = 3

// MeanReversion is the ranging-regime mean-reversion strategy. Long
// requires confirm's RSI7<35, with bonus weight for a lower-Bollinger
// touch or an upward MACD histogram pivot, vetoed when the filter frame
// is bearish-and-accelerating (EMA20<EMA50 ∧ MACD<-50). Extreme oversold
// (RSI7<25) scales signal_strength by 1.2, capped. Short is the mirror.
func MeanReversion(symbol string, analysis regime.Analysis, confirm, filter candle.Indicators, side exchange.Side, maxLeverage int) Result {
	bullish := side == exchange.SideLong

	if bullish {
		if !(confirm.RSI7 < 35) {
			return waitResult(symbol)
		}
		if filter.EMA20 < filter.EMA50 && filter.MACD < -50 {
			return waitResult(symbol)
		}
	} else {
		if !(confirm.RSI7 > 65) {
			return waitResult(symbol)
		}
		if filter.EMA20 > filter.EMA50 && filter.MACD > 50 {
			return waitResult(symbol)
		}
	}

	strength := signalStrength(confirm, filter, analysis.TimeframeAlign.Score, bullish)

	last := lastCloseOf(confirm)
	if bullish && last <= confirm.BBLower {
		strength = math.Min(1.0, strength+0.1)
	}
	if !bullish && last >= confirm.BBUpper {
		strength = math.Min(1.0, strength+0.1)
	}

	if bullish && confirm.MACDTurn > 0 {
		strength = math.Min(1.0, strength+0.1)
	}
	if !bullish && confirm.MACDTurn < 0 {
		strength = math.Min(1.0, strength+0.1)
	}

	if bullish && confirm.RSI7 < 25 {
		strength = math.Min(1.0, strength*1.2)
	}
	if !bullish && confirm.RSI7 > 75 {
		strength = math.Min(1.0, strength*1.2)
	}

	action := ActionLong
	if !bullish {
		action = ActionShort
	}

	return Result{
		Symbol:         symbol,
		Strategy:       KindMeanReversion,
		Action:         action,
		Side:           side,
		SignalStrength: strength,
		Leverage:       recommendedLeverage(meanReversionBaseLeverage, strength, maxLeverage),
		Reasoning:      "mean reversion off RSI extreme",
	}
}
