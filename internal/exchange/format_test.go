package exchange

import (
	"math"
	"testing"
)

func TestQuantizeSize(t *testing.T) {
	cases := []struct {
		name               string
		size, min, max     float64
		want               float64
	}{
		{"rounds down to step", 1.27, 0.1, 0, 1.2},
		{"floors below min clamps to min", 0.04, 0.1, 0, 0.1},
		{"clamps to max", 500, 0.1, 100, 100},
		{"zero min passes through", 1.2345, 0, 0, 1.2345},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := QuantizeSize(c.size, c.min, c.max)
			if diff := got - c.want; diff > 1e-9 || diff < -1e-9 {
				t.Fatalf("QuantizeSize(%v,%v,%v) = %v, want %v", c.size, c.min, c.max, got, c.want)
			}
		})
	}
}

func TestClampToMarkBand(t *testing.T) {
	if got := ClampToMarkBand(100, 0, 0.015); got != 100 {
		t.Fatalf("expected passthrough with zero mark, got %v", got)
	}
	if got := ClampToMarkBand(110, 100, 0.015); math.Abs(got-101.5) > 1e-9 {
		t.Fatalf("expected clamp to upper band 101.5, got %v", got)
	}
	if got := ClampToMarkBand(90, 100, 0.015); got != 98.5 {
		t.Fatalf("expected clamp to lower band 98.5, got %v", got)
	}
	if got := ClampToMarkBand(100.5, 100, 0.015); got != 100.5 {
		t.Fatalf("expected passthrough within band, got %v", got)
	}
}

func TestQuantizePrice(t *testing.T) {
	got := QuantizePrice(100.127, 0.01, 2)
	if got != "100.13" {
		t.Fatalf("QuantizePrice = %q, want %q", got, "100.13")
	}
}

func TestTTLCacheExpiry(t *testing.T) {
	c := newTTLCache[string, int](0)
	c.Set("a", 1)
	if _, ok := c.Get("a"); ok {
		t.Fatalf("expected zero-ttl cache to always report stale")
	}
}

func TestValidateOrDeriveStop(t *testing.T) {
	t.Run("already ordered long passes through", func(t *testing.T) {
		p := SetStopParams{Side: SideLong, StopPrice: 95, TakeProfit: 110, MarkPrice: 100}
		stop, tp, err := validateOrDeriveStop(p)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if stop != 95 || tp != 110 {
			t.Fatalf("expected passthrough, got stop=%v tp=%v", stop, tp)
		}
	})

	t.Run("violated long re-derives from mark", func(t *testing.T) {
		p := SetStopParams{Side: SideLong, StopPrice: 105, TakeProfit: 110, MarkPrice: 100}
		stop, _, err := validateOrDeriveStop(p)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		want := 100 * (1 - atrSafetyDistance)
		if stop != want {
			t.Fatalf("expected re-derived stop %v, got %v", want, stop)
		}
	})

	t.Run("short ordering", func(t *testing.T) {
		p := SetStopParams{Side: SideShort, StopPrice: 105, TakeProfit: 95, MarkPrice: 100}
		stop, tp, err := validateOrDeriveStop(p)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if stop != 105 || tp != 95 {
			t.Fatalf("expected passthrough, got stop=%v tp=%v", stop, tp)
		}
	})
}
