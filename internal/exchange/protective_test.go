package exchange

import (
	"context"
	"testing"

	"github.com/kvantix/perpfutures-core/internal/logging"
)

type fakePlacer struct {
	cancelCalls  int
	placedOrders []struct {
		contract  string
		price     float64
		orderType PriceOrderType
	}
	failType PriceOrderType
}

func (f *fakePlacer) placeStopOrder(ctx context.Context, contract string, side Side, quantity, stopPrice float64, orderType PriceOrderType) (string, error) {
	if orderType == f.failType {
		return "", errFake
	}
	f.placedOrders = append(f.placedOrders, struct {
		contract  string
		price     float64
		orderType PriceOrderType
	}{contract, stopPrice, orderType})
	return "order-" + string(orderType), nil
}

func (f *fakePlacer) cancelStopOrders(ctx context.Context, contract string) error {
	f.cancelCalls++
	return nil
}

func (f *fakePlacer) listStopOrders(ctx context.Context, contract string) ([]PriceOrder, error) {
	return nil, nil
}

var errFake = fakeErr("placement failed")

type fakeErr string

func (e fakeErr) Error() string { return string(e) }

func TestApplyProtectiveStop_BothLegsSucceed(t *testing.T) {
	f := &fakePlacer{}
	params := SetStopParams{Symbol: "BTCUSDT", Side: SideLong, Quantity: 1, StopPrice: 95, TakeProfit: 110, MarkPrice: 100}
	result, err := ApplyProtectiveStop(context.Background(), f, logging.Nop(), params, 0.1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.OK {
		t.Fatalf("expected OK result, got %+v", result)
	}
	if f.cancelCalls != 1 {
		t.Fatalf("expected cancelStopOrders called once, got %d", f.cancelCalls)
	}
	if len(f.placedOrders) != 2 {
		t.Fatalf("expected both legs placed, got %d", len(f.placedOrders))
	}
}

func TestApplyProtectiveStop_PreservesSuccessfulLeg(t *testing.T) {
	f := &fakePlacer{failType: PriceOrderTakeProfit}
	params := SetStopParams{Symbol: "BTCUSDT", Side: SideLong, Quantity: 1, StopPrice: 95, TakeProfit: 110, MarkPrice: 100}
	result, err := ApplyProtectiveStop(context.Background(), f, logging.Nop(), params, 0.1)
	if err != nil {
		t.Fatalf("unexpected top-level error: %v", err)
	}
	if result.OK {
		t.Fatalf("expected partial failure, not OK")
	}
	if result.StopOrderID == "" {
		t.Fatalf("expected stop leg to be preserved")
	}
	if result.TPOrderID != "" {
		t.Fatalf("expected tp leg to be empty after failure")
	}
}

func TestApplyProtectiveStop_StopLegFailsTakeProfitPlaced(t *testing.T) {
	f := &fakePlacer{failType: PriceOrderStopLoss}
	// Only the stop leg fails; the take-profit leg is still placed and its
	// order id reported, with no top-level error.
	params := SetStopParams{Symbol: "BTCUSDT", Side: SideLong, Quantity: 1, StopPrice: 95, TakeProfit: 110, MarkPrice: 100}
	result, err := ApplyProtectiveStop(context.Background(), f, logging.Nop(), params, 0.1)
	if err != nil {
		t.Fatalf("unexpected top-level error: %v", err)
	}
	if result.StopOrderID != "" {
		t.Fatalf("expected stop leg to have failed")
	}
	if result.TPOrderID == "" {
		t.Fatalf("expected tp leg to succeed")
	}
}
