// Package regime classifies a symbol's market regime from three
// timeframes of candle.Indicators (primary/confirm/filter), grounded on
// the teacher's multi-timeframe trend caching in
// internal/autopilot/ginie_trend_filters.go, generalized from a cached
// bullish/bearish/sideways string into a full state-machine regime,
// momentum, and volatility classification.
package regime

import (
	"math"
	"time"

	"github.com/kvantix/perpfutures-core/internal/candle"
)

// TrendStrength is the primary-timeframe directional classification.
type TrendStrength string

const (
	TrendingUp   TrendStrength = "trending_up"
	TrendingDown TrendStrength = "trending_down"
	Ranging      TrendStrength = "ranging"
)

// MomentumState is the confirm-timeframe RSI classification.
type MomentumState string

const (
	OversoldExtreme   MomentumState = "oversold_extreme"
	OversoldMild      MomentumState = "oversold_mild"
	Neutral           MomentumState = "neutral"
	OverboughtMild    MomentumState = "overbought_mild"
	OverboughtExtreme MomentumState = "overbought_extreme"
)

// VolatilityState is the filter-timeframe ATR-ratio classification.
type VolatilityState string

const (
	LowVol    VolatilityState = "low_vol"
	NormalVol VolatilityState = "normal_vol"
	HighVol   VolatilityState = "high_vol"
)

// Regime is the state-machine label produced by the (trend, momentum)
// lookup table.
type Regime string

const (
	UptrendOversold      Regime = "uptrend_oversold"
	DowntrendOverbought  Regime = "downtrend_overbought"
	DowntrendOversold    Regime = "downtrend_oversold"
	UptrendOverbought    Regime = "uptrend_overbought"
	UptrendContinuation  Regime = "uptrend_continuation"
	DowntrendContinuation Regime = "downtrend_continuation"
	RangingOversold      Regime = "ranging_oversold"
	RangingOverbought    Regime = "ranging_overbought"
	RangingNeutral       Regime = "ranging_neutral"
	NoClearSignal        Regime = "no_clear_signal"
)

// TrendScores carries the three timeframes' trend scores together, the
// way they travel through the pipeline as a unit.
type TrendScores struct {
	Primary, Confirm, Filter float64
}

// Alignment is the timeframe-consistency input the scorer reads.
type Alignment struct {
	Aligned bool
	Score   float64 // [0,1]
}

// Analysis is the full regime_analysis record.
type Analysis struct {
	Symbol           string
	State            Regime
	TrendStrength    TrendStrength
	MomentumState    MomentumState
	VolatilityState  VolatilityState
	Confidence       float64
	TrendScores      TrendScores
	TimeframeAlign   Alignment
	Timestamp        time.Time
}

// Momentum threshold configuration; exported so callers can override it
// from config rather than baking fixed RSI cutoffs into the classifier.
type MomentumThresholds struct {
	ExtremeLow, MildLow   float64
	MildHigh, ExtremeHigh float64
}

// DefaultMomentumThresholds holds the classifier's baseline RSI cutoffs.
var DefaultMomentumThresholds = MomentumThresholds{
	ExtremeLow: 20, MildLow: 30,
	MildHigh: 70, ExtremeHigh: 80,
}

// TrendScore computes S_tf ∈ [-100, 100] for one timeframe's indicators: a
// clamped weighted sum of EMA separation, MACD-over-price, EMA20
// deviation, and RSI7 distance from neutral.
func TrendScore(ind candle.Indicators) float64 {
	s := 0.0
	if ind.EMA50 != 0 {
		s += clamp((ind.EMA20-ind.EMA50)/ind.EMA50*1000, -40, 40)
	}
	if last := lastClose(ind); last != 0 {
		s += clamp(ind.MACD/last*10000, -30, 30)
	}
	s += clamp(ind.DeviationFromEMA20*2, -20, 20)
	s += clamp((ind.RSI7-50)/5, -10, 10)
	return math.Round(s)
}

func lastClose(ind candle.Indicators) float64 {
	if len(ind.Candles) == 0 {
		return 0
	}
	return ind.Candles[len(ind.Candles)-1].Close
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Classify runs the full regime-classification pipeline over the three
// timeframes, producing a regime Analysis.
func Classify(symbol string, primary, confirm, filter candle.Indicators, thresholds MomentumThresholds) Analysis {
	scores := TrendScores{
		Primary: TrendScore(primary),
		Confirm: TrendScore(confirm),
		Filter:  TrendScore(filter),
	}

	trend := classifyTrend(primary)
	momentum := classifyMomentum(confirm.RSI7, thresholds)
	volatility := classifyVolatility(filter.ATRRatio)

	state, confidence := lookupRegime(trend, momentum)
	if confirmsTurn(primary.MACDTurn, state) {
		confidence = math.Min(1.0, confidence+0.1)
	}

	align := timeframeAlignment(primary, confirm, filter)

	return Analysis{
		Symbol:          symbol,
		State:           state,
		TrendStrength:   trend,
		MomentumState:   momentum,
		VolatilityState: volatility,
		Confidence:      confidence,
		TrendScores:     scores,
		TimeframeAlign:  align,
		Timestamp:       time.Now(),
	}
}

func classifyTrend(primary candle.Indicators) TrendStrength {
	switch {
	case primary.EMA20 > primary.EMA50 && primary.MACD > 0:
		return TrendingUp
	case primary.EMA20 < primary.EMA50 && primary.MACD < 0:
		return TrendingDown
	default:
		return Ranging
	}
}

func classifyMomentum(rsi7 float64, t MomentumThresholds) MomentumState {
	switch {
	case rsi7 <= t.ExtremeLow:
		return OversoldExtreme
	case rsi7 <= t.MildLow:
		return OversoldMild
	case rsi7 >= t.ExtremeHigh:
		return OverboughtExtreme
	case rsi7 >= t.MildHigh:
		return OverboughtMild
	default:
		return Neutral
	}
}

func classifyVolatility(atrRatio float64) VolatilityState {
	switch {
	case atrRatio > 1.5:
		return HighVol
	case atrRatio < 0.7:
		return LowVol
	default:
		return NormalVol
	}
}

// lookupRegime implements the (trend, momentum) → (regime, confidence)
// state machine table.
func lookupRegime(trend TrendStrength, momentum MomentumState) (Regime, float64) {
	switch {
	case trend == TrendingUp && momentum == OversoldExtreme:
		return UptrendOversold, 0.9
	case trend == TrendingDown && momentum == OverboughtExtreme:
		return DowntrendOverbought, 0.9
	case trend == TrendingDown && momentum == OversoldExtreme:
		return DowntrendOversold, 0.6
	case trend == TrendingUp && momentum == OverboughtExtreme:
		return UptrendOverbought, 0.6
	case trend == TrendingUp && (momentum == OversoldMild || momentum == Neutral):
		return UptrendContinuation, 0.7
	case trend == TrendingDown && (momentum == OverboughtMild || momentum == Neutral):
		return DowntrendContinuation, 0.7
	case trend == TrendingDown && momentum == OversoldMild:
		return DowntrendOversold, 0.5
	case trend == TrendingUp && momentum == OverboughtMild:
		return UptrendOverbought, 0.5
	case trend == Ranging && momentum == OversoldExtreme:
		return RangingOversold, 0.8
	case trend == Ranging && momentum == OverboughtExtreme:
		return RangingOverbought, 0.8
	case trend == Ranging && momentum == Neutral:
		return RangingNeutral, 0.5
	default:
		return NoClearSignal, 0.3
	}
}

// confirmsTurn reports whether MACDTurn agrees with the regime's
// directional bias; a confirming turn bumps the classifier's confidence.
func confirmsTurn(turn int, state Regime) bool {
	bullish := map[Regime]bool{
		UptrendOversold: true, UptrendContinuation: true, RangingOversold: true,
	}
	bearish := map[Regime]bool{
		DowntrendOverbought: true, DowntrendContinuation: true, RangingOverbought: true,
	}
	if turn > 0 && bullish[state] {
		return true
	}
	if turn < 0 && bearish[state] {
		return true
	}
	return false
}

// timeframeAlignment feeds the scoring package's trend-consistency factor: a
// weighted mean of pairwise trend consistency between (primary, confirm) at
// 60% and (confirm, filter) at 40%, each pairwise term scoring 40%
// EMA-direction agreement, 30% MACD-sign agreement, 15%+15% internal
// consistency within each frame.
func timeframeAlignment(primary, confirm, filter candle.Indicators) Alignment {
	pc := pairwiseConsistency(primary, confirm)
	cf := pairwiseConsistency(confirm, filter)
	score := pc*0.6 + cf*0.4
	return Alignment{Aligned: score >= 0.5, Score: score}
}

func pairwiseConsistency(a, b candle.Indicators) float64 {
	score := 0.0
	if sameSign(a.EMA20-a.EMA50, b.EMA20-b.EMA50) {
		score += 0.40
	}
	if sameSign(a.MACD, b.MACD) {
		score += 0.30
	}
	score += 0.15 * internalConsistency(a)
	score += 0.15 * internalConsistency(b)
	return score
}

// internalConsistency is 1.0 when a frame's own EMA alignment agrees with
// its own MACD sign, 0 otherwise.
func internalConsistency(ind candle.Indicators) float64 {
	if sameSign(ind.EMA20-ind.EMA50, ind.MACD) {
		return 1.0
	}
	return 0.0
}

func sameSign(a, b float64) bool {
	if a == 0 || b == 0 {
		return a == b
	}
	return (a > 0) == (b > 0)
}
