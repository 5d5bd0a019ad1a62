// Package candle computes the per-timeframe indicator set the regime
// classifier and strategy router consume, grounded on the teacher's
// internal/strategy/indicators.go (SMA/EMA/RSI/MACD/Bollinger/ATR) but
// reworked into pure functions over exchange.Candle sequences, with a
// genuine EMA-of-MACD-history signal line in place of the teacher's
// `macdLine * 0.8` approximation.
package candle

import (
	"math"

	"github.com/kvantix/perpfutures-core/internal/exchange"
)

// Indicators is the derived, never-persisted per-timeframe indicator set.
type Indicators struct {
	EMA20, EMA50              float64
	MACD, MACDSignal          float64
	MACDHistogram             float64
	MACDTurn                  int // -1, 0, +1
	RSI7, RSI14               float64
	BBUpper, BBMiddle, BBLower float64
	BBBandwidth               float64
	ATR, ATRRatio             float64
	Volume, AvgVolume         float64
	VolumeRatio               float64
	PriceChange20             float64
	DeviationFromEMA20        float64
	DeviationFromEMA50        float64
	RecentHigh, RecentLow     float64
	ResistanceLevels          []float64 // up to 3
	SupportLevels             []float64 // up to 3
	Candles                   []exchange.Candle
}

const (
	macdFast   = 12
	macdSlow   = 26
	macdSignal = 9
)

// Calculate builds the full Indicators set from an oldest-first candle
// sequence. Every numeric field is finite by construction; defaults apply
// when the window is too short for a given calculation.
func Calculate(candles []exchange.Candle) Indicators {
	ind := Indicators{Candles: candles}
	if len(candles) == 0 {
		ind.RSI7, ind.RSI14 = 50, 50
		ind.ATRRatio, ind.VolumeRatio = 1, 1
		return ind
	}

	closes := closesOf(candles)

	ind.EMA20 = EMA(closes, 20)
	ind.EMA50 = EMA(closes, 50)

	ind.RSI7 = RSI(closes, 7)
	ind.RSI14 = RSI(closes, 14)

	macdLine, signalLine, histogram, turn := MACD(closes, macdFast, macdSlow, macdSignal)
	ind.MACD, ind.MACDSignal, ind.MACDHistogram, ind.MACDTurn = macdLine, signalLine, histogram, turn

	upper, middle, lower := BollingerBands(closes, 20, 2.0)
	ind.BBUpper, ind.BBMiddle, ind.BBLower = upper, middle, lower
	if middle != 0 {
		ind.BBBandwidth = (upper - lower) / middle
	}

	ind.ATR = ATR(candles, 14)
	last := closes[len(closes)-1]
	if last != 0 {
		ind.ATRRatio = ind.ATR / last
	} else {
		ind.ATRRatio = 1
	}

	ind.Volume = candles[len(candles)-1].Volume
	ind.AvgVolume = averageVolume(candles, 20)
	if ind.AvgVolume > 0 {
		ind.VolumeRatio = ind.Volume / ind.AvgVolume
	} else {
		ind.VolumeRatio = 1
	}

	if len(closes) > 20 {
		prior := closes[len(closes)-21]
		if prior != 0 {
			ind.PriceChange20 = (last - prior) / prior
		}
	}

	if ind.EMA20 != 0 {
		ind.DeviationFromEMA20 = (last - ind.EMA20) / ind.EMA20
	}
	if ind.EMA50 != 0 {
		ind.DeviationFromEMA50 = (last - ind.EMA50) / ind.EMA50
	}

	ind.RecentHigh, ind.RecentLow = recentHighLow(candles, 20)
	ind.ResistanceLevels, ind.SupportLevels = supportResistance(candles, 3)

	finalizeFinite(&ind)
	return ind
}

func closesOf(candles []exchange.Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Close
	}
	return out
}

// EMA computes the exponential moving average of the trailing `period`
// values, seeded with the SMA of the first `period` values exactly as the
// teacher does (internal/strategy/indicators.go CalculateEMA), returning 0
// when there isn't enough history.
func EMA(values []float64, period int) float64 {
	series := emaSeries(values, period)
	if len(series) == 0 {
		return 0
	}
	return series[len(series)-1]
}

// emaSeries returns the EMA value at every index from `period-1` onward,
// letting callers (like MACD's signal line) take a true EMA of a derived
// series instead of a single snapshot.
func emaSeries(values []float64, period int) []float64 {
	if len(values) < period || period <= 0 {
		return nil
	}
	sma := 0.0
	for i := 0; i < period; i++ {
		sma += values[i]
	}
	sma /= float64(period)

	multiplier := 2.0 / float64(period+1)
	series := make([]float64, 0, len(values)-period+1)
	ema := sma
	series = append(series, ema)
	for i := period; i < len(values); i++ {
		ema = (values[i] * multiplier) + (ema * (1 - multiplier))
		series = append(series, ema)
	}
	return series
}

// RSI computes the Relative Strength Index from the simple average gain and
// loss over the trailing `period` changes, defaulting to the neutral value
// 50 when there isn't enough history.
func RSI(closes []float64, period int) float64 {
	if len(closes) < period+1 {
		return 50
	}
	gains, losses := 0.0, 0.0
	start := len(closes) - period
	for i := start; i < len(closes); i++ {
		change := closes[i] - closes[i-1]
		if change > 0 {
			gains += change
		} else {
			losses += -change
		}
	}
	avgGain := gains / float64(period)
	avgLoss := losses / float64(period)
	if avgLoss == 0 {
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - (100 / (1 + rs))
}

// MACD computes the MACD line, a genuine EMA-based signal line (the EMA of
// the MACD line's own history, not a crude fraction of the current MACD
// value), the histogram, and a turn indicator. The turn is +1 when the
// histogram's last three values pivot upward from below zero, -1 for the
// mirrored downward pivot, else 0.
func MACD(closes []float64, fast, slow, signal int) (macdLine, signalLine, histogram float64, turn int) {
	if len(closes) < slow+signal {
		return 0, 0, 0, 0
	}

	fastSeries := emaSeries(closes, fast)
	slowSeries := emaSeries(closes, slow)

	// Align both series to the same trailing window (slowSeries is shorter
	// since it needs more warm-up candles).
	offset := len(fastSeries) - len(slowSeries)
	macdSeries := make([]float64, len(slowSeries))
	for i := range slowSeries {
		macdSeries[i] = fastSeries[i+offset] - slowSeries[i]
	}

	signalSeries := emaSeries(macdSeries, signal)
	if len(signalSeries) == 0 {
		return macdSeries[len(macdSeries)-1], 0, 0, 0
	}

	macdLine = macdSeries[len(macdSeries)-1]
	signalLine = signalSeries[len(signalSeries)-1]
	histogram = macdLine - signalLine

	// Recompute the trailing 3 histogram values to detect the pivot.
	histSeries := make([]float64, len(signalSeries))
	macdOffset := len(macdSeries) - len(signalSeries)
	for i := range signalSeries {
		histSeries[i] = macdSeries[i+macdOffset] - signalSeries[i]
	}
	turn = pivotTurn(histSeries)
	return macdLine, signalLine, histogram, turn
}

func pivotTurn(hist []float64) int {
	n := len(hist)
	if n < 3 {
		return 0
	}
	h0, h1, h2 := hist[n-3], hist[n-2], hist[n-1]
	if h0 < 0 && h1 < h0 && h2 > h1 {
		return 1
	}
	if h0 > 0 && h1 > h0 && h2 < h1 {
		return -1
	}
	return 0
}

// BollingerBands computes the middle (SMA), upper, and lower bands over the
// trailing `period` closes.
func BollingerBands(closes []float64, period int, stdDevMultiplier float64) (upper, middle, lower float64) {
	if len(closes) < period {
		return 0, 0, 0
	}
	start := len(closes) - period
	sum := 0.0
	for i := start; i < len(closes); i++ {
		sum += closes[i]
	}
	middle = sum / float64(period)

	variance := 0.0
	for i := start; i < len(closes); i++ {
		diff := closes[i] - middle
		variance += diff * diff
	}
	stdDev := math.Sqrt(variance / float64(period))
	upper = middle + stdDev*stdDevMultiplier
	lower = middle - stdDev*stdDevMultiplier
	return upper, middle, lower
}

// ATR computes Wilder's Average True Range: the simple mean of the first
// `period` true ranges seeds the average, and every later true range is
// folded in as (prev*(period-1) + tr) / period.
func ATR(candles []exchange.Candle, period int) float64 {
	if len(candles) < period+1 {
		return 0
	}
	trSum, atr := 0.0, 0.0
	for i := 1; i < len(candles); i++ {
		high, low := candles[i].High, candles[i].Low
		prevClose := candles[i-1].Close
		tr := math.Max(high-low, math.Max(math.Abs(high-prevClose), math.Abs(low-prevClose)))
		if i <= period {
			trSum += tr
			atr = trSum / float64(period)
			continue
		}
		atr = (atr*float64(period-1) + tr) / float64(period)
	}
	return atr
}

func averageVolume(candles []exchange.Candle, period int) float64 {
	if len(candles) < period {
		period = len(candles)
	}
	if period == 0 {
		return 0
	}
	start := len(candles) - period
	sum := 0.0
	for i := start; i < len(candles); i++ {
		sum += candles[i].Volume
	}
	return sum / float64(period)
}

func recentHighLow(candles []exchange.Candle, window int) (high, low float64) {
	if len(candles) == 0 {
		return 0, 0
	}
	if window > len(candles) {
		window = len(candles)
	}
	start := len(candles) - window
	high, low = candles[start].High, candles[start].Low
	for i := start + 1; i < len(candles); i++ {
		if candles[i].High > high {
			high = candles[i].High
		}
		if candles[i].Low < low {
			low = candles[i].Low
		}
	}
	return high, low
}

// supportResistance retains up to `max` local extrema from the full
// candle sequence, where a local high/low is strictly greater/less than
// both its immediate neighbours.
func supportResistance(candles []exchange.Candle, max int) (resistance, support []float64) {
	for i := 1; i < len(candles)-1; i++ {
		h := candles[i].High
		if h > candles[i-1].High && h > candles[i+1].High {
			resistance = append(resistance, h)
		}
		l := candles[i].Low
		if l < candles[i-1].Low && l < candles[i+1].Low {
			support = append(support, l)
		}
	}
	if len(resistance) > max {
		resistance = resistance[len(resistance)-max:]
	}
	if len(support) > max {
		support = support[len(support)-max:]
	}
	return resistance, support
}

// finalizeFinite clamps every field to a finite default if a division or
// intermediate calculation produced NaN/Inf, so downstream consumers never
// see a non-finite indicator value.
func finalizeFinite(ind *Indicators) {
	fix := func(v, def float64) float64 {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return def
		}
		return v
	}
	ind.EMA20 = fix(ind.EMA20, 0)
	ind.EMA50 = fix(ind.EMA50, 0)
	ind.MACD = fix(ind.MACD, 0)
	ind.MACDSignal = fix(ind.MACDSignal, 0)
	ind.MACDHistogram = fix(ind.MACDHistogram, 0)
	ind.RSI7 = fix(ind.RSI7, 50)
	ind.RSI14 = fix(ind.RSI14, 50)
	ind.ATR = fix(ind.ATR, 0)
	ind.ATRRatio = fix(ind.ATRRatio, 1)
	ind.VolumeRatio = fix(ind.VolumeRatio, 1)
	ind.DeviationFromEMA20 = fix(ind.DeviationFromEMA20, 0)
	ind.DeviationFromEMA50 = fix(ind.DeviationFromEMA50, 0)
	ind.PriceChange20 = fix(ind.PriceChange20, 0)
}
