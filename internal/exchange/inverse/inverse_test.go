package inverse

import (
	"testing"

	"github.com/kvantix/perpfutures-core/internal/exchange"
)

func TestNormalizeSymbol(t *testing.T) {
	a := &Adapter{}
	if got := a.NormalizeSymbol("BTC"); got != "BTCUSD_PERP" {
		t.Fatalf("NormalizeSymbol(BTC) = %q, want BTCUSD_PERP", got)
	}
	if got := a.NormalizeSymbol("BTCUSD_PERP"); got != "BTCUSD_PERP" {
		t.Fatalf("NormalizeSymbol(BTCUSD_PERP) = %q, want BTCUSD_PERP", got)
	}
	if got := a.ExtractSymbol("BTCUSD_PERP"); got != "BTC" {
		t.Fatalf("ExtractSymbol(BTCUSD_PERP) = %q, want BTC", got)
	}
}

func TestMapOrderStatus(t *testing.T) {
	if got := mapOrderStatus("FILLED"); got != exchange.OrderStatusFilled {
		t.Fatalf("mapOrderStatus(FILLED) = %q, want filled", got)
	}
	if got := mapOrderStatus("bogus"); got != exchange.OrderStatusRejected {
		t.Fatalf("mapOrderStatus(bogus) = %q, want rejected", got)
	}
}

// TestQuantityAndPnL_SpecExample mirrors the worked example: BTC on the
// inverse adapter with multiplier 0.0001, price 60000, margin 500,
// leverage 10 sizes to 833 contracts; a 1000-point move nets 83.3 USDT.
func TestQuantityAndPnL_SpecExample(t *testing.T) {
	qty := quantityFromMultiplier(500, 60000, 10, 0.0001)
	if qty != 833 {
		t.Fatalf("quantity = %v, want 833", qty)
	}
	pnl := pnlFromMultiplier(60000, 61000, qty, 0.0001, exchange.SideLong)
	if diff := pnl - 83.3; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("pnl = %v, want 83.3", pnl)
	}
}
