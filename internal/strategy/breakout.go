package strategy

import (
	"math"

	"github.com/kvantix/perpfutures-core/internal/candle"
	"github.com/kvantix/perpfutures-core/internal/exchange"
	"github.com/kvantix/perpfutures-core/internal/regime"
)

const breakoutBaseLeverage = 4

// Breakout is the high-conviction breakout strategy. Long requires at
// least 20 candles and close above 0.998·resistance (the 20-candle high).
// Volume confirmation (volume/avg_volume ≥ 1.5) scales signal_strength by
// 1.25, capped; RSI7 must lie in [35,75] or the signal is penalised/waits.
// Filter's MACD>0 is a soft confirmation. Short is the mirror off support.
func Breakout(symbol string, analysis regime.Analysis, confirm, filter candle.Indicators, side exchange.Side, maxLeverage int) Result {
	if len(confirm.Candles) < 20 {
		return waitResult(symbol)
	}
	bullish := side == exchange.SideLong
	last := lastCloseOf(confirm)

	if bullish {
		resistance := confirm.RecentHigh
		if !(last > 0.998*resistance) {
			return waitResult(symbol)
		}
	} else {
		support := confirm.RecentLow
		if !(last < 1.002*support) {
			return waitResult(symbol)
		}
	}

	if confirm.RSI7 < 35 || confirm.RSI7 > 75 {
		return waitResult(symbol)
	}

	strength := signalStrength(confirm, filter, analysis.TimeframeAlign.Score, bullish)

	if confirm.VolumeRatio >= 1.5 {
		strength = math.Min(1.0, strength*1.25)
		if confirm.VolumeRatio >= 2.5 {
			strength = math.Min(1.0, strength+0.05)
		}
	}

	if bullish && filter.MACD > 0 {
		strength = math.Min(1.0, strength+0.05)
	}
	if !bullish && filter.MACD < 0 {
		strength = math.Min(1.0, strength+0.05)
	}

	action := ActionLong
	if !bullish {
		action = ActionShort
	}

	return Result{
		Symbol:         symbol,
		Strategy:       KindBreakout,
		Action:         action,
		Side:           side,
		SignalStrength: strength,
		Leverage:       recommendedLeverage(breakoutBaseLeverage, strength, maxLeverage),
		Reasoning:      "breakout beyond recent range with volume confirmation",
	}
}
