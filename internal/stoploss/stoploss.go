// Package stoploss computes and maintains protective stop prices,
// grounded on the teacher's internal/autopilot/dynamic_sltp.go
// (CalculateDynamicSLTP, CalculateSymbolVolatility, GetVolatilityLevel,
// clamp) but replacing the LLM-blended ATR-only approach with a hybrid
// ATR/structural selection and a trailing-stop monotonic guard that never
// lets a stop move against the position.
package stoploss

import (
	"fmt"
	"math"

	"github.com/kvantix/perpfutures-core/internal/candle"
	"github.com/kvantix/perpfutures-core/internal/exchange"
)

// Config mirrors the teacher's DynamicSLTPConfig shape, extended with
// structural-stop and quality-gate parameters.
type Config struct {
	ATRPeriod        int
	ATRMultiplier    float64
	LookbackPeriod   int
	BufferPercent    float64
	MinStopPercent   float64
	MaxStopPercent   float64
	MinQualityScore  float64
}

// DefaultConfig holds the engine's baseline ATR and quality-gate tuning.
func DefaultConfig() Config {
	return Config{
		ATRPeriod:       14,
		ATRMultiplier:   1.5,
		LookbackPeriod:  20,
		BufferPercent:   0.1,
		MinStopPercent:  0.5,
		MaxStopPercent:  5.0,
		MinQualityScore: 40,
	}
}

// VolatilityLevel is GetVolatilityLevel's derived classification, renamed
// to low/medium/high/extreme buckets.
type VolatilityLevel string

const (
	VolatilityLow     VolatilityLevel = "low"
	VolatilityMedium  VolatilityLevel = "medium"
	VolatilityHigh    VolatilityLevel = "high"
	VolatilityExtreme VolatilityLevel = "extreme"
)

// Result is the computed stop_loss record.
type Result struct {
	StopPrice        float64
	DistancePercent  float64
	ATRPercent       float64
	QualityScore     float64
	Volatility       VolatilityLevel
	StructuralFound  bool
	Reasoning        string
}

// Calculate derives the hybrid ATR/structural stop for a fresh entry.
// candles must be oldest-first and at least
// max(atr_period+1, lookback_period)+10 long for best accuracy; shorter
// windows degrade gracefully via candle.ATR's own insufficient-history
// default.
func Calculate(symbol string, side exchange.Side, entryPrice float64, candles []exchange.Candle, cfg Config) Result {
	atr := candle.ATR(candles, cfg.ATRPeriod)
	if atr == 0 {
		atr = entryPrice * 0.01
	}
	atrPct := (atr / entryPrice) * 100

	atrStop := atrStopPrice(side, entryPrice, atr, cfg.ATRMultiplier)
	structStop, structFound := structuralStopPrice(side, entryPrice, candles, cfg.LookbackPeriod, cfg.BufferPercent)

	stop, reasoning := selectHybridStop(side, entryPrice, atrStop, structStop, structFound)

	distancePct := math.Abs(entryPrice-stop) / entryPrice * 100
	if isWrongSide(side, entryPrice, stop) {
		stop = floorStop(side, entryPrice, cfg.MinStopPercent)
		distancePct = cfg.MinStopPercent
		reasoning = "fallback to min_stop_pct floor: " + reasoning
	}

	quality := qualityScore(atrPct, distancePct, structFound)
	volatility := volatilityLevel(atrPct)

	return Result{
		StopPrice:       stop,
		DistancePercent: distancePct,
		ATRPercent:      atrPct,
		QualityScore:    quality,
		Volatility:      volatility,
		StructuralFound: structFound,
		Reasoning:       fmt.Sprintf("%s for %s %s", reasoning, symbol, side),
	}
}

func atrStopPrice(side exchange.Side, entry, atr, multiplier float64) float64 {
	if side == exchange.SideLong {
		return entry - atr*multiplier
	}
	return entry + atr*multiplier
}

// structuralStopPrice finds the lowest local low (long) or highest local
// high (short) over lookback candles, offset by bufferPct, discarding it
// if it lands on the wrong side of entry.
func structuralStopPrice(side exchange.Side, entry float64, candles []exchange.Candle, lookback int, bufferPct float64) (float64, bool) {
	if len(candles) == 0 {
		return 0, false
	}
	window := candles
	if lookback < len(candles) {
		window = candles[len(candles)-lookback:]
	}

	if side == exchange.SideLong {
		low := window[0].Low
		for _, c := range window {
			if c.Low < low {
				low = c.Low
			}
		}
		stop := low * (1 - bufferPct/100)
		if stop >= entry {
			return 0, false
		}
		return stop, true
	}

	high := window[0].High
	for _, c := range window {
		if c.High > high {
			high = c.High
		}
	}
	stop := high * (1 + bufferPct/100)
	if stop <= entry {
		return 0, false
	}
	return stop, true
}

// selectHybridStop picks the tighter (closer to entry) of the ATR and
// structural stops when both exist.
func selectHybridStop(side exchange.Side, entry, atrStop, structStop float64, structFound bool) (float64, string) {
	if !structFound {
		return atrStop, "ATR stop (no structural level found)"
	}
	atrDist := math.Abs(entry - atrStop)
	structDist := math.Abs(entry - structStop)
	if atrDist <= structDist {
		return atrStop, "ATR stop (tighter than structural)"
	}
	return structStop, "structural stop (tighter than ATR)"
}

func isWrongSide(side exchange.Side, entry, stop float64) bool {
	if side == exchange.SideLong {
		return stop >= entry
	}
	return stop <= entry
}

func floorStop(side exchange.Side, entry, minStopPct float64) float64 {
	if side == exchange.SideLong {
		return entry * (1 - minStopPct/100)
	}
	return entry * (1 + minStopPct/100)
}

// qualityScore is an additive quality formula clamped to [0,100].
func qualityScore(atrPct, distancePct float64, structuralFound bool) float64 {
	score := 50.0
	switch {
	case atrPct >= 1.5 && atrPct <= 3.0:
		score += 20
	case atrPct < 1.5:
		score += 10
	}
	switch {
	case distancePct >= 1.5 && distancePct <= 3.0:
		score += 20
	case distancePct < 1.5:
		score += 10
	}
	if structuralFound {
		score += 10
	}
	if score > 100 {
		score = 100
	}
	if score < 0 {
		score = 0
	}
	return score
}

func volatilityLevel(atrPct float64) VolatilityLevel {
	switch {
	case atrPct < 1.5:
		return VolatilityLow
	case atrPct < 3.0:
		return VolatilityMedium
	case atrPct < 5.0:
		return VolatilityHigh
	default:
		return VolatilityExtreme
	}
}

// ShouldOpenPosition is the open-gate: reject when the stop is too far,
// volatility is extreme, or quality is too low.
func ShouldOpenPosition(r Result, maxStopPercent float64, minQualityScore float64) (bool, string) {
	if r.DistancePercent > maxStopPercent {
		return false, "stop distance exceeds max_stop_pct"
	}
	if r.Volatility == VolatilityExtreme {
		return false, "volatility level is extreme"
	}
	if r.QualityScore < minQualityScore {
		return false, "quality score below threshold"
	}
	return true, ""
}

// UpdateTrailing recomputes the stop from the current price as the new
// pivot and accepts the move only if it strictly improves in the
// favourable direction; the engine never widens stops.
func UpdateTrailing(side exchange.Side, currentStop, currentPrice float64, candles []exchange.Candle, cfg Config) (newStop float64, accepted bool, reason string) {
	candidate := Calculate("", side, currentPrice, candles, cfg)
	if side == exchange.SideLong {
		if candidate.StopPrice > currentStop {
			return candidate.StopPrice, true, "trailing stop raised"
		}
		return currentStop, false, "candidate stop did not improve on current stop"
	}
	if candidate.StopPrice < currentStop {
		return candidate.StopPrice, true, "trailing stop lowered"
	}
	return currentStop, false, "candidate stop did not improve on current stop"
}
