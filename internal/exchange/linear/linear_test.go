package linear

import (
	"context"
	"testing"

	"github.com/kvantix/perpfutures-core/internal/exchange"
)

func TestNormalizeSymbol(t *testing.T) {
	a := &Adapter{quoteAsset: "USDT"}
	if got := a.NormalizeSymbol("BTC"); got != "BTCUSDT" {
		t.Fatalf("NormalizeSymbol(BTC) = %q, want BTCUSDT", got)
	}
	if got := a.NormalizeSymbol("BTCUSDT"); got != "BTCUSDT" {
		t.Fatalf("NormalizeSymbol(BTCUSDT) = %q, want BTCUSDT", got)
	}
	if got := a.ExtractSymbol("ETHUSDT"); got != "ETH" {
		t.Fatalf("ExtractSymbol(ETHUSDT) = %q, want ETH", got)
	}
}

func TestPnL_LongAndShort(t *testing.T) {
	a := &Adapter{}
	long, err := a.PnL(context.Background(), "BTCUSDT", 100, 110, 2, exchange.SideLong)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if long != 20 {
		t.Fatalf("long PnL = %v, want 20", long)
	}
	short, err := a.PnL(context.Background(), "BTCUSDT", 100, 110, 2, exchange.SideShort)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if short != -20 {
		t.Fatalf("short PnL = %v, want -20", short)
	}
}

func TestMapOrderStatus(t *testing.T) {
	cases := map[string]exchange.OrderStatus{
		"NEW":              exchange.OrderStatusOpen,
		"PARTIALLY_FILLED": exchange.OrderStatusPartiallyFilled,
		"FILLED":           exchange.OrderStatusFilled,
		"CANCELED":         exchange.OrderStatusCancelled,
		"EXPIRED":          exchange.OrderStatusExpired,
		"REJECTED":         exchange.OrderStatusRejected,
		"UNKNOWN_FUTURE":   exchange.OrderStatusRejected,
	}
	for raw, want := range cases {
		if got := mapOrderStatus(raw); got != want {
			t.Errorf("mapOrderStatus(%q) = %q, want %q", raw, got, want)
		}
	}
}

func TestDecimalsOf(t *testing.T) {
	if got := decimalsOf("0.0010000"); got != 3 {
		t.Fatalf("decimalsOf = %d, want 3", got)
	}
	if got := decimalsOf("1"); got != 0 {
		t.Fatalf("decimalsOf = %d, want 0", got)
	}
}
