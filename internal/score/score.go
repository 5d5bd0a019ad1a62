// Package score ranks strategy_result/regime_analysis pairs into a 0-100
// opportunity score, grounded on the teacher's
// internal/confluence/scorer.go weighted-breakdown-then-total shape.
package score

import (
	"math"
	"sort"

	"github.com/kvantix/perpfutures-core/internal/regime"
	"github.com/kvantix/perpfutures-core/internal/strategy"
)

// Breakdown is the per-factor contribution to a Result's total, empty for
// wait actions.
type Breakdown struct {
	Signal          float64
	TrendConsistency float64
	VolatilityFit   float64
	RiskReward      float64
	Liquidity       float64
}

// ConfidenceBucket buckets the total score for display.
type ConfidenceBucket string

const (
	ConfidenceHigh   ConfidenceBucket = "high"
	ConfidenceMedium ConfidenceBucket = "medium"
	ConfidenceLow    ConfidenceBucket = "low"
)

// Result is the opportunity_score record.
type Result struct {
	Symbol     string
	Strategy   strategy.Kind
	Action     strategy.Action
	Total      int
	Breakdown  Breakdown
	Confidence ConfidenceBucket
	HasOpenPosition bool
}

// LiquidityTier classifies a symbol for the liquidity sub-score.
type LiquidityTier string

const (
	LiquidityMajor     LiquidityTier = "major"
	LiquiditySecondTier LiquidityTier = "second_tier"
	LiquidityOther     LiquidityTier = "other"
)

// waitFloorScore assigns a small floor score to wait actions by regime, so a
// clear-but-unactionable setup still surfaces above a genuinely flat one.
func waitFloorScore(state regime.Regime) int {
	switch state {
	case regime.UptrendOversold, regime.DowntrendOverbought:
		return 55 // missed extreme
	case regime.UptrendContinuation, regime.DowntrendContinuation:
		return 45 // clear continuation, but strategy didn't fire
	case regime.RangingNeutral:
		return 30
	default:
		return 0
	}
}

// Score computes the opportunity_score for one strategy_result against its
// originating regime analysis. filterATRRatio is the filter-frame's ATR
// ratio feeding the volatility_fit sub-score.
func Score(result strategy.Result, analysis regime.Analysis, filterATRRatio float64, leverage int, tier LiquidityTier) Result {
	if result.Action == strategy.ActionWait {
		total := waitFloorScore(analysis.State)
		return Result{
			Symbol:     result.Symbol,
			Strategy:   result.Strategy,
			Action:     result.Action,
			Total:      total,
			Confidence: confidenceBucket(total),
		}
	}

	b := Breakdown{
		Signal:           30 * result.SignalStrength,
		TrendConsistency: 25 * analysis.TimeframeAlign.Score,
		VolatilityFit:    20 * volatilityFit(filterATRRatio),
		RiskReward:       15 * riskReward(analysis.State, leverage),
		Liquidity:        10 * liquidityFactor(tier),
	}
	total := int(math.Round(b.Signal + b.TrendConsistency + b.VolatilityFit + b.RiskReward + b.Liquidity))

	return Result{
		Symbol:     result.Symbol,
		Strategy:   result.Strategy,
		Action:     result.Action,
		Total:      total,
		Breakdown:  b,
		Confidence: confidenceBucket(total),
	}
}

// volatilityFit scores how close the filter frame's ATR ratio sits to a
// calm 1.0x baseline: full credit within [0.8,1.2], tapering to no lower
// than 0.3 outside that band.
func volatilityFit(atrRatio float64) float64 {
	if atrRatio >= 0.8 && atrRatio <= 1.2 {
		return 1.0
	}
	distance := math.Min(math.Abs(atrRatio-0.8), math.Abs(atrRatio-1.2))
	fit := 1.0 - distance*0.5
	if fit < 0.3 {
		return 0.3
	}
	return fit
}

// riskReward implements g(regime, leverage): 0.9 for the extreme reversal
// regimes, 0.7 for continuation, 0.8 for ranging-extreme, damped when
// leverage strays outside [3,5].
func riskReward(state regime.Regime, leverage int) float64 {
	var base float64
	switch state {
	case regime.UptrendOversold, regime.DowntrendOverbought:
		base = 0.9
	case regime.UptrendContinuation, regime.DowntrendContinuation:
		base = 0.7
	case regime.RangingOversold, regime.RangingOverbought:
		base = 0.8
	default:
		base = 0.6
	}
	if leverage < 3 || leverage > 5 {
		base *= 0.85
	}
	return base
}

// liquidityFactor implements h(symbol).
func liquidityFactor(tier LiquidityTier) float64 {
	switch tier {
	case LiquidityMajor:
		return 1.0
	case LiquiditySecondTier:
		return 0.8
	default:
		return 0.6
	}
}

func confidenceBucket(total int) ConfidenceBucket {
	switch {
	case total >= 75:
		return ConfidenceHigh
	case total >= 60:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

// Rank filters by minScore, excludes symbols with an open position unless
// includeOpen is set, sorts descending by total, and truncates to
// maxResults.
func Rank(results []Result, minScore, maxResults int, includeOpen bool) []Result {
	filtered := make([]Result, 0, len(results))
	for _, r := range results {
		if r.Total < minScore {
			continue
		}
		if r.HasOpenPosition && !includeOpen {
			continue
		}
		filtered = append(filtered, r)
	}
	sort.SliceStable(filtered, func(i, j int) bool {
		return filtered[i].Total > filtered[j].Total
	})
	if maxResults > 0 && len(filtered) > maxResults {
		filtered = filtered[:maxResults]
	}
	return filtered
}
