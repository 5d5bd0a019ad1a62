package reversal

import (
	"testing"
	"time"

	"github.com/kvantix/perpfutures-core/internal/candle"
	"github.com/kvantix/perpfutures-core/internal/exchange"
)

func TestHistory_AppendTrimsToFiveAndExpiresStale(t *testing.T) {
	h := &History{}
	base := time.Unix(0, 0)
	for i := 0; i < 7; i++ {
		h.Append(TrendScoreTriple{Primary: float64(i), At: base.Add(time.Duration(i) * time.Minute)})
	}
	if len(h.samples) != 5 {
		t.Fatalf("expected history trimmed to 5, got %d", len(h.samples))
	}
	if h.samples[0].Primary != 2 {
		t.Fatalf("expected oldest retained sample to be index 2, got %v", h.samples[0].Primary)
	}
}

func TestHistory_ExpiresEntriesOlderThanOneHour(t *testing.T) {
	h := &History{}
	base := time.Unix(0, 0)
	h.Append(TrendScoreTriple{Primary: 1, At: base})
	h.Append(TrendScoreTriple{Primary: 2, At: base.Add(2 * time.Hour)})
	if len(h.samples) != 1 {
		t.Fatalf("expected stale sample expired, got %d entries", len(h.samples))
	}
}

func TestDetectFrame_WeakeningSeverity(t *testing.T) {
	fw := detectFrame(exchange.SideLong, 50, 30)
	if !fw.Weakening {
		t.Fatalf("expected weakening when current < 0.8*previous")
	}
	if fw.Severity != 40 {
		t.Fatalf("severity = %d, want 40", fw.Severity)
	}
}

func TestDetectFrame_SignCrossingIsReversal(t *testing.T) {
	fw := detectFrame(exchange.SideLong, 20, -5)
	if !fw.Reversed {
		t.Fatalf("expected sign-crossing to be flagged as reversed")
	}
}

func TestDetectFrame_NoChangeIsNeutral(t *testing.T) {
	fw := detectFrame(exchange.SideLong, 50, 49)
	if fw.Weakening || fw.Reversed {
		t.Fatalf("expected neutral frame for a small move, got %+v", fw)
	}
}

func TestScore_ReversedPrimaryDominates(t *testing.T) {
	score := Score(FrameWeakening{Reversed: true}, FrameWeakening{}, FrameWeakening{}, nil)
	if score != 40 {
		t.Fatalf("Score with only primary reversed = %d, want 40", score)
	}
}

func TestScore_CapsAtHundred(t *testing.T) {
	score := Score(
		FrameWeakening{Reversed: true}, FrameWeakening{Reversed: true}, FrameWeakening{Reversed: true},
		[]Divergence{{Strength: 80}, {Strength: 90}},
	)
	if score != 100 {
		t.Fatalf("Score should cap at 100, got %d", score)
	}
}

func TestEarlyWarning_TwoWeakeningFrames(t *testing.T) {
	primary := FrameWeakening{Weakening: true, Severity: 50}
	confirm := FrameWeakening{Weakening: true, Severity: 45}
	filter := FrameWeakening{}
	if !EarlyWarning(primary, confirm, filter, nil) {
		t.Fatalf("expected early warning with two frames weakening >40%%")
	}
}

func TestEarlyWarning_SingleWeakFrameInsufficient(t *testing.T) {
	primary := FrameWeakening{Weakening: true, Severity: 50}
	if EarlyWarning(primary, FrameWeakening{}, FrameWeakening{}, nil) {
		t.Fatalf("expected no early warning with only one weakening frame")
	}
}

func TestRecommend_Tiers(t *testing.T) {
	cases := []struct {
		score int
		want  Recommendation
	}{
		{10, RecommendHold},
		{35, RecommendEarlyWarning},
		{55, RecommendAdvisoryClose},
		{75, RecommendEmergencyClose},
	}
	for _, c := range cases {
		if got := Recommend(c.score); got != c.want {
			t.Fatalf("Recommend(%d) = %v, want %v", c.score, got, c.want)
		}
	}
}

func syntheticDivergenceCandles(n int, firstHalfPeak, secondHalfPeak float64) []exchange.Candle {
	out := make([]exchange.Candle, n)
	for i := 0; i < n; i++ {
		peak := firstHalfPeak
		if i >= n/2 {
			peak = secondHalfPeak
		}
		out[i] = exchange.Candle{Close: peak}
	}
	return out
}

func TestDetectDivergence_RequiresMinimumHistory(t *testing.T) {
	ind := candle.Indicators{Candles: syntheticDivergenceCandles(10, 100, 110), RSI7: 40}
	_, found := DetectDivergence(ind)
	if found {
		t.Fatalf("expected no divergence with fewer than 20 candles")
	}
}

// TestAssess_SecondCallSeesFirstCallsHistory exercises Assess the way the
// monitor loop actually drives it: repeated calls against the same
// *History, one tick apart. A cold first call has nothing to compare
// against and must stay neutral; the second call must compare against the
// trend score the first call recorded, not against itself.
func TestAssess_SecondCallSeesFirstCallsHistory(t *testing.T) {
	hist := &History{}

	strongUptrend := candle.Indicators{EMA20: 110, EMA50: 100}
	sharpDowntrend := candle.Indicators{EMA20: 90, EMA50: 100}

	first := Assess("BTCUSDT", exchange.SideLong, hist, strongUptrend, strongUptrend, strongUptrend)
	if first.Primary.Reversed || first.Primary.Weakening {
		t.Fatalf("expected a neutral cold-start assessment, got %+v", first.Primary)
	}
	if len(hist.samples) != 1 {
		t.Fatalf("expected Assess to record the first sample, got %d", len(hist.samples))
	}

	second := Assess("BTCUSDT", exchange.SideLong, hist, sharpDowntrend, sharpDowntrend, sharpDowntrend)
	if len(hist.samples) != 2 {
		t.Fatalf("expected Assess to record the second sample, got %d", len(hist.samples))
	}
	if !second.Primary.Reversed {
		t.Fatalf("expected the trend flip against the first call's recorded score to be flagged reversed, got %+v", second.Primary)
	}
	if second.Recommendation != RecommendEmergencyClose {
		t.Fatalf("expected a reversal across all three frames to recommend emergency close, got %v (score %d)", second.Recommendation, second.Score)
	}
}

func TestDetectDivergence_BearishOnNewHighWithWeakRSI(t *testing.T) {
	ind := candle.Indicators{
		Candles: syntheticDivergenceCandles(20, 100, 110),
		RSI7:    30,
	}
	d, found := DetectDivergence(ind)
	if !found {
		t.Fatalf("expected bearish divergence detected")
	}
	if !d.Bearish {
		t.Fatalf("expected divergence flagged bearish")
	}
}
