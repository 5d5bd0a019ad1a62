package candle

import (
	"math"
	"testing"
	"time"

	"github.com/kvantix/perpfutures-core/internal/exchange"
)

func syntheticCandles(n int, start, step float64) []exchange.Candle {
	out := make([]exchange.Candle, n)
	price := start
	for i := 0; i < n; i++ {
		price += step
		out[i] = exchange.Candle{
			OpenTime: time.Unix(int64(i)*60, 0),
			Open:     price,
			High:     price + 1,
			Low:      price - 1,
			Close:    price,
			Volume:   100 + float64(i),
		}
	}
	return out
}

func TestCalculate_EmptyCandlesDefaults(t *testing.T) {
	ind := Calculate(nil)
	if ind.RSI7 != 50 || ind.RSI14 != 50 {
		t.Fatalf("expected neutral RSI defaults, got %v / %v", ind.RSI7, ind.RSI14)
	}
	if ind.ATRRatio != 1 || ind.VolumeRatio != 1 {
		t.Fatalf("expected ratio defaults of 1, got atr=%v vol=%v", ind.ATRRatio, ind.VolumeRatio)
	}
}

func TestCalculate_AllFieldsFinite(t *testing.T) {
	candles := syntheticCandles(60, 100, 0.5)
	ind := Calculate(candles)

	fields := []float64{
		ind.EMA20, ind.EMA50, ind.MACD, ind.MACDSignal, ind.MACDHistogram,
		ind.RSI7, ind.RSI14, ind.BBUpper, ind.BBMiddle, ind.BBLower,
		ind.BBBandwidth, ind.ATR, ind.ATRRatio, ind.Volume, ind.AvgVolume,
		ind.VolumeRatio, ind.PriceChange20, ind.DeviationFromEMA20,
		ind.DeviationFromEMA50, ind.RecentHigh, ind.RecentLow,
	}
	for i, f := range fields {
		if math.IsNaN(f) || math.IsInf(f, 0) {
			t.Fatalf("field index %d is not finite: %v", i, f)
		}
	}
	if ind.RSI7 < 0 || ind.RSI7 > 100 {
		t.Fatalf("RSI7 out of bounds: %v", ind.RSI7)
	}
	if ind.RSI14 < 0 || ind.RSI14 > 100 {
		t.Fatalf("RSI14 out of bounds: %v", ind.RSI14)
	}
	if len(ind.ResistanceLevels) > 3 {
		t.Fatalf("expected at most 3 resistance levels, got %d", len(ind.ResistanceLevels))
	}
	if len(ind.SupportLevels) > 3 {
		t.Fatalf("expected at most 3 support levels, got %d", len(ind.SupportLevels))
	}
}

func TestMACD_SignalIsTrueEMANotFixedFraction(t *testing.T) {
	closes := make([]float64, 60)
	price := 100.0
	for i := range closes {
		price += 0.3
		closes[i] = price
	}
	macdLine, signalLine, _, _ := MACD(closes, macdFast, macdSlow, macdSignal)
	if signalLine == macdLine*0.8 {
		t.Fatalf("signal line must not equal the crude macdLine*0.8 approximation")
	}
}

func TestRSI_DefaultsWhenInsufficientHistory(t *testing.T) {
	if got := RSI([]float64{100, 101, 102}, 14); got != 50 {
		t.Fatalf("RSI with insufficient history = %v, want 50", got)
	}
}

func TestRSI_AllGainsIsHundred(t *testing.T) {
	closes := make([]float64, 15)
	for i := range closes {
		closes[i] = 100 + float64(i)
	}
	if got := RSI(closes, 14); got != 100 {
		t.Fatalf("all-gains RSI = %v, want 100", got)
	}
}

func TestATR_InsufficientHistoryDefaultsZero(t *testing.T) {
	candles := syntheticCandles(5, 100, 1)
	if got := ATR(candles, 14); got != 0 {
		t.Fatalf("ATR with insufficient history = %v, want 0", got)
	}
}

func TestSupportResistance_LocalExtremaOnly(t *testing.T) {
	candles := []exchange.Candle{
		{High: 10, Low: 5},
		{High: 15, Low: 3}, // local high and low
		{High: 8, Low: 6},
		{High: 20, Low: 1}, // local high and low
		{High: 9, Low: 4},
	}
	resistance, support := supportResistance(candles, 3)
	if len(resistance) != 2 || resistance[0] != 15 || resistance[1] != 20 {
		t.Fatalf("unexpected resistance levels: %v", resistance)
	}
	if len(support) != 2 || support[0] != 3 || support[1] != 1 {
		t.Fatalf("unexpected support levels: %v", support)
	}
}

func TestPivotTurn(t *testing.T) {
	if got := pivotTurn([]float64{-1, -2, -0.5}); got != 1 {
		t.Fatalf("expected upward pivot +1, got %d", got)
	}
	if got := pivotTurn([]float64{1, 2, 0.5}); got != -1 {
		t.Fatalf("expected downward pivot -1, got %d", got)
	}
	if got := pivotTurn([]float64{1, 2, 3}); got != 0 {
		t.Fatalf("expected no pivot, got %d", got)
	}
}
