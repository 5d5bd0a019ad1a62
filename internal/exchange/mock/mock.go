// Package mock provides an in-memory exchange.Adapter double for tests,
// grounded on the teacher's internal/binance/futures_mock_client.go
// (scripted responses, no network I/O).
package mock

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/kvantix/perpfutures-core/internal/exchange"
)

// Adapter is a scriptable, in-memory Adapter. Tests preload Candles,
// Tickers, and ContractInfos, then assert against PlacedOrders/StopCalls
// after exercising the component under test.
type Adapter struct {
	mu sync.Mutex

	KindValue     exchange.Kind
	Candles_      map[string][]exchange.Candle
	Tickers       map[string]exchange.Ticker
	Contracts     map[string]exchange.ContractInfo
	Account_      exchange.Account
	Positions_    []exchange.PositionView
	FundingRates  map[string]exchange.FundingRate

	PlacedOrders []exchange.OrderParams
	StopCalls    []exchange.SetStopParams
	CancelledStops []string

	// NextOrderStatus lets a test script a specific fill outcome for the
	// next PlaceOrder call; defaults to immediately filled.
	NextOrderStatus exchange.OrderStatus

	// PlaceOrderErr, when set, is returned by the next PlaceOrder call.
	PlaceOrderErr error
}

// New builds an empty mock adapter for the given margining model.
func New(kind exchange.Kind) *Adapter {
	return &Adapter{
		KindValue:       kind,
		Candles_:        map[string][]exchange.Candle{},
		Tickers:         map[string]exchange.Ticker{},
		Contracts:       map[string]exchange.ContractInfo{},
		FundingRates:    map[string]exchange.FundingRate{},
		NextOrderStatus: exchange.OrderStatusFilled,
	}
}

func (a *Adapter) Kind() exchange.Kind { return a.KindValue }

func (a *Adapter) NormalizeSymbol(userSymbol string) string { return userSymbol }
func (a *Adapter) ExtractSymbol(contract string) string     { return contract }

func (a *Adapter) Ticker(ctx context.Context, contract string, includeMarkPrice bool) (exchange.Ticker, error) {
	t, ok := a.Tickers[contract]
	if !ok {
		return exchange.Ticker{}, fmt.Errorf("mock: no ticker for %s", contract)
	}
	return t, nil
}

func (a *Adapter) Candles(ctx context.Context, contract string, interval exchange.Interval, limit int) ([]exchange.Candle, error) {
	c := a.Candles_[contract]
	if len(c) > limit {
		c = c[len(c)-limit:]
	}
	return c, nil
}

func (a *Adapter) Account(ctx context.Context) (exchange.Account, error) { return a.Account_, nil }

func (a *Adapter) Positions(ctx context.Context) ([]exchange.PositionView, error) {
	return a.Positions_, nil
}

func (a *Adapter) PlaceOrder(ctx context.Context, params exchange.OrderParams) (exchange.OrderResponse, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.PlacedOrders = append(a.PlacedOrders, params)
	if a.PlaceOrderErr != nil {
		return exchange.OrderResponse{}, a.PlaceOrderErr
	}
	clientID := params.ClientID
	if clientID == "" {
		clientID = uuid.NewString()
	}
	side := exchange.SideLong
	if params.Size < 0 {
		side = exchange.SideShort
	}
	return exchange.OrderResponse{
		OrderID:      uuid.NewString(),
		ClientID:     clientID,
		Symbol:       params.Symbol,
		Status:       a.NextOrderStatus,
		Side:         side,
		Size:         params.Size,
		Price:        params.Price,
		AvgFillPrice: params.Price,
		FilledSize:   params.Size,
		ReduceOnly:   params.ReduceOnly,
	}, nil
}

func (a *Adapter) SetLeverage(ctx context.Context, contract string, leverage int) error { return nil }

func (a *Adapter) FundingRate(ctx context.Context, contract string) (exchange.FundingRate, error) {
	return a.FundingRates[contract], nil
}

func (a *Adapter) ContractInfo(ctx context.Context, contract string) (exchange.ContractInfo, error) {
	info, ok := a.Contracts[contract]
	if !ok {
		return exchange.ContractInfo{}, fmt.Errorf("mock: no contract info for %s", contract)
	}
	return info, nil
}

func (a *Adapter) GetMyTrades(ctx context.Context, contract string, limit int) ([]exchange.Trade, error) {
	return nil, nil
}

func (a *Adapter) GetOrder(ctx context.Context, contract, orderID string) (exchange.OrderResponse, error) {
	return exchange.OrderResponse{OrderID: orderID, Symbol: contract, Status: a.NextOrderStatus}, nil
}

func (a *Adapter) CancelOrder(ctx context.Context, contract, orderID string) error { return nil }

func (a *Adapter) GetOpenOrders(ctx context.Context, contract string) ([]exchange.OrderResponse, error) {
	return nil, nil
}

func (a *Adapter) SetPositionStopLoss(ctx context.Context, params exchange.SetStopParams) (exchange.SetStopResult, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.StopCalls = append(a.StopCalls, params)
	return exchange.SetStopResult{OK: true, StopOrderID: uuid.NewString(), TPOrderID: uuid.NewString()}, nil
}

func (a *Adapter) CancelPositionStopLoss(ctx context.Context, contract string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.CancelledStops = append(a.CancelledStops, contract)
	return nil
}

func (a *Adapter) GetPositionStopOrders(ctx context.Context, contract string) ([]exchange.PriceOrder, error) {
	return nil, nil
}

func (a *Adapter) QuantityFromUSDT(ctx context.Context, contract string, margin, price float64, leverage int) (float64, error) {
	if price <= 0 {
		return 0, nil
	}
	info := a.Contracts[contract]
	multiplier := info.QuantoMultiplier
	if multiplier <= 0 {
		multiplier = 1
	}
	return (margin * float64(leverage)) / (multiplier * price), nil
}

func (a *Adapter) PnL(ctx context.Context, contract string, entry, exit, quantity float64, side exchange.Side) (float64, error) {
	info := a.Contracts[contract]
	multiplier := info.QuantoMultiplier
	if multiplier <= 0 {
		multiplier = 1
	}
	diff := exit - entry
	if side == exchange.SideShort {
		diff = -diff
	}
	return quantity * multiplier * diff, nil
}
