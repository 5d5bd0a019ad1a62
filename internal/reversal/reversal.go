// Package reversal monitors open positions for weakening and reversing
// trend conditions, grounded on the teacher's
// internal/autopilot/ginie_reversal.go multi-timeframe reversal-pattern
// detection (DetectLowerLows/DetectHigherHighs/AnalyzeMTFReversal) and
// internal/patterns/reversal.go's candlestick-pattern detection shape,
// reworked around the trend-score history from internal/regime instead of
// raw candle pattern matching.
package reversal

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/kvantix/perpfutures-core/internal/candle"
	"github.com/kvantix/perpfutures-core/internal/exchange"
	"github.com/kvantix/perpfutures-core/internal/lock"
	"github.com/kvantix/perpfutures-core/internal/regime"
)

// Recommendation is the action tier the reversal assessment recommends.
type Recommendation string

const (
	RecommendHold          Recommendation = "hold"
	RecommendEarlyWarning  Recommendation = "early_warning"
	RecommendAdvisoryClose Recommendation = "advisory_close"
	RecommendEmergencyClose Recommendation = "emergency_close"
)

// FrameWeakening describes one timeframe's weakening/reversal state.
type FrameWeakening struct {
	Weakening bool
	Severity  int // 0-100
	Reversed  bool
}

// Divergence is a detected indicator/price divergence.
type Divergence struct {
	Bearish  bool
	Strength int // 0-100, minimum 60 to contribute
}

// Assessment is the reversal_analysis record produced per tick.
type Assessment struct {
	Symbol         string
	Side           exchange.Side
	Primary        FrameWeakening
	Confirm        FrameWeakening
	Filter         FrameWeakening
	Divergences    []Divergence
	Score          int
	EarlyWarning   bool
	Recommendation Recommendation
}

// TrendScoreTriple is one (primary, confirm, filter) sample in a symbol's
// rolling history.
type TrendScoreTriple struct {
	Primary, Confirm, Filter float64
	At                       time.Time
}

// History is the per-symbol rolling trend-score buffer (last 5 triples,
// 1-hour expiry), grounded on the teacher's BTCTrendCache/HigherTFCache
// TTL-caching idiom in internal/autopilot/ginie_trend_filters.go.
type History struct {
	samples []TrendScoreTriple
}

const (
	historyMaxSamples = 5
	historyTTL        = time.Hour
)

// Append records a new sample, evicting expired entries and trimming to
// the last five.
func (h *History) Append(sample TrendScoreTriple) {
	fresh := make([]TrendScoreTriple, 0, len(h.samples)+1)
	for _, s := range h.samples {
		if sample.At.Sub(s.At) < historyTTL {
			fresh = append(fresh, s)
		}
	}
	fresh = append(fresh, sample)
	if len(fresh) > historyMaxSamples {
		fresh = fresh[len(fresh)-historyMaxSamples:]
	}
	h.samples = fresh
}

// Previous returns the sample before the most recent one, if any.
func (h *History) Previous() (TrendScoreTriple, bool) {
	if len(h.samples) < 2 {
		return TrendScoreTriple{}, false
	}
	return h.samples[len(h.samples)-2], true
}

// Latest returns the most recent sample, if any.
func (h *History) Latest() (TrendScoreTriple, bool) {
	if len(h.samples) == 0 {
		return TrendScoreTriple{}, false
	}
	return h.samples[len(h.samples)-1], true
}

// detectFrame flags weakening when |current|<0.8·|previous|, with severity
// round((1-|current|/|previous|)*100); it flags a hard reversal on sign
// crossing or a 40-point jump against the position.
func detectFrame(side exchange.Side, previous, current float64) FrameWeakening {
	fw := FrameWeakening{}
	if previous == 0 {
		return fw
	}
	absPrev, absCurr := math.Abs(previous), math.Abs(current)
	if absCurr < 0.8*absPrev {
		fw.Weakening = true
		fw.Severity = int(math.Round((1 - absCurr/absPrev) * 100))
	}

	against := direction(side) * -1
	signCrossed := (previous > 0 && current < 0) || (previous < 0 && current > 0)
	jumped := (current-previous)*float64(against) >= 40
	if signCrossed || jumped {
		fw.Reversed = true
	}
	return fw
}

func direction(side exchange.Side) float64 {
	if side == exchange.SideLong {
		return 1
	}
	return -1
}

// Score computes the weighted reversal score across the three timeframes
// and any confirmed divergences.
func Score(primary, confirm, filter FrameWeakening, divergences []Divergence) int {
	score := 0.0
	score += frameContribution(primary, 40)
	score += frameContribution(confirm, 25)
	score += frameContribution(filter, 15)

	for _, d := range divergences {
		if d.Strength < 60 {
			continue
		}
		score += 10
	}
	if score > 100 {
		score = 100
	}
	return int(math.Round(score))
}

func frameContribution(fw FrameWeakening, weight float64) float64 {
	switch {
	case fw.Reversed:
		return weight
	case fw.Weakening && fw.Severity >= 50:
		return weight * 0.5
	case fw.Weakening:
		return weight * 0.3
	default:
		return 0
	}
}

// EarlyWarning reports whether at least two timeframes are weakening or
// reversed, or a strong divergence was found.
func EarlyWarning(primary, confirm, filter FrameWeakening, divergences []Divergence) bool {
	weakCount := 0
	reversedCount := 0
	for _, fw := range []FrameWeakening{primary, confirm, filter} {
		if fw.Weakening && fw.Severity > 40 {
			weakCount++
		}
		if fw.Reversed {
			reversedCount++
		}
	}
	if weakCount >= 2 || reversedCount >= 2 {
		return true
	}
	for _, d := range divergences {
		if d.Strength >= 60 {
			return true
		}
	}
	return false
}

// Recommend maps a reversal score to its action tier.
func Recommend(score int) Recommendation {
	switch {
	case score >= 70:
		return RecommendEmergencyClose
	case score >= 50:
		return RecommendAdvisoryClose
	case score >= 30:
		return RecommendEarlyWarning
	default:
		return RecommendHold
	}
}

// DetectDivergence compares the first and second half of the trailing ~20
// candles.
// Bearish divergence is a new price high paired with a lower indicator
// high (histogram below 95% of the previous high, RSI at least 3 points
// lower); bullish is the mirror.
func DetectDivergence(ind candle.Indicators) (Divergence, bool) {
	candles := ind.Candles
	if len(candles) < 20 {
		return Divergence{}, false
	}
	window := candles[len(candles)-20:]
	mid := len(window) / 2
	firstHalf, secondHalf := window[:mid], window[mid:]

	firstHigh := maxClose(firstHalf)
	secondHigh := maxClose(secondHalf)
	firstLow := minClose(firstHalf)
	secondLow := minClose(secondHalf)

	// Bearish: new price high, indicator lower high.
	if secondHigh > firstHigh {
		strength := divergenceStrength(ind.RSI7, ind.MACDHistogram, true)
		if strength >= 60 {
			return Divergence{Bearish: true, Strength: strength}, true
		}
	}

	// Bullish: new price low, indicator higher low.
	if secondLow < firstLow {
		strength := divergenceStrength(ind.RSI7, ind.MACDHistogram, false)
		if strength >= 60 {
			return Divergence{Bearish: false, Strength: strength}, true
		}
	}

	return Divergence{}, false
}

func divergenceStrength(rsi7, histogram float64, bearish bool) int {
	base := 60
	if bearish && rsi7 < 50 {
		base += int(math.Min(20, (50-rsi7)/3))
	}
	if !bearish && rsi7 > 50 {
		base += int(math.Min(20, (rsi7-50)/3))
	}
	if base > 100 {
		base = 100
	}
	return base
}

func maxClose(candles []exchange.Candle) float64 {
	m := candles[0].Close
	for _, c := range candles {
		if c.Close > m {
			m = c.Close
		}
	}
	return m
}

func minClose(candles []exchange.Candle) float64 {
	m := candles[0].Close
	for _, c := range candles {
		if c.Close < m {
			m = c.Close
		}
	}
	return m
}

// PositionCloser is the exchange-facing effect of an emergency close:
// market-reduce-only the entire remaining quantity, then cancel all
// protective stop-orders.
type PositionCloser interface {
	MarketReduceOnlyClose(ctx context.Context, symbol string, side exchange.Side, quantity float64) error
	CancelProtectiveStops(ctx context.Context, symbol string) error
}

// PositionStore records the close-event and deletes the open-position row.
type PositionStore interface {
	RecordCloseEvent(ctx context.Context, symbol string, side exchange.Side, reason string) error
	DeleteOpenPosition(ctx context.Context, symbol string, side exchange.Side) error
	HasRecentClose(ctx context.Context, symbol string, side exchange.Side, window time.Duration) (bool, error)
}

const recentCloseWindow = 30 * time.Second

// Monitor ties the scoring pipeline to the locked emergency-close action.
type Monitor struct {
	Locker *lock.Locker
	Holder string
	Closer PositionCloser
	Store  PositionStore
}

// MaybeEmergencyClose executes the emergency close under
// reversal_close_{symbol}_{side} when the assessment recommends it, gated
// by the 30 s recent-close suppressor.
func (m *Monitor) MaybeEmergencyClose(ctx context.Context, assessment Assessment, quantity float64) (executed bool, err error) {
	if assessment.Recommendation != RecommendEmergencyClose {
		return false, nil
	}
	sideStr := "long"
	if assessment.Side == exchange.SideShort {
		sideStr = "short"
	}

	recent, err := m.Store.HasRecentClose(ctx, assessment.Symbol, assessment.Side, recentCloseWindow)
	if err != nil {
		return false, fmt.Errorf("reversal: recent-close check: %w", err)
	}
	if recent {
		return false, nil
	}

	key := lock.ReversalKey(assessment.Symbol, sideStr)
	ran, err := lock.WithLock(ctx, m.Locker, key, m.Holder, func() error {
		if err := m.Closer.MarketReduceOnlyClose(ctx, assessment.Symbol, assessment.Side, quantity); err != nil {
			return fmt.Errorf("market reduce-only close: %w", err)
		}
		reason := fmt.Sprintf("reversal_monitor_emergency_by_%s", m.Holder)
		if err := m.Store.RecordCloseEvent(ctx, assessment.Symbol, assessment.Side, reason); err != nil {
			return fmt.Errorf("record close event: %w", err)
		}
		if err := m.Store.DeleteOpenPosition(ctx, assessment.Symbol, assessment.Side); err != nil {
			return fmt.Errorf("delete open position: %w", err)
		}
		if err := m.Closer.CancelProtectiveStops(ctx, assessment.Symbol); err != nil {
			return fmt.Errorf("cancel protective stops: %w", err)
		}
		executed = true
		return nil
	})
	if err != nil {
		return false, err
	}
	if !ran {
		return false, nil
	}
	return executed, nil
}

// Assess runs the full per-tick reversal pipeline from a symbol's
// trend-score history and three-timeframe indicators: it scores each
// timeframe against the previously recorded sample, folds in any detected
// divergence, and records the current sample for the next tick to compare
// against.
func Assess(symbol string, side exchange.Side, hist *History, primaryInd, confirmInd, filterInd candle.Indicators) Assessment {
	current := TrendScoreTriple{
		Primary: regime.TrendScore(primaryInd),
		Confirm: regime.TrendScore(confirmInd),
		Filter:  regime.TrendScore(filterInd),
		At:      time.Now(),
	}

	previous, ok := hist.Latest()
	if !ok {
		previous = current
	}
	hist.Append(current)

	primary := detectFrame(side, previous.Primary, current.Primary)
	confirm := detectFrame(side, previous.Confirm, current.Confirm)
	filter := detectFrame(side, previous.Filter, current.Filter)

	var divergences []Divergence
	for _, ind := range []candle.Indicators{primaryInd, confirmInd} {
		if d, found := DetectDivergence(ind); found {
			divergences = append(divergences, d)
		}
	}

	score := Score(primary, confirm, filter, divergences)

	return Assessment{
		Symbol:         symbol,
		Side:           side,
		Primary:        primary,
		Confirm:        confirm,
		Filter:         filter,
		Divergences:    divergences,
		Score:          score,
		EarlyWarning:   EarlyWarning(primary, confirm, filter, divergences),
		Recommendation: Recommend(score),
	}
}
