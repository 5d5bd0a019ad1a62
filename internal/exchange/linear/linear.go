// Package linear implements exchange.Adapter for USDT-margined ("linear")
// perpetual futures, grounded on the teacher's FuturesClientImpl
// (internal/binance/futures_client.go) against the Binance USDT-M futures
// REST surface (/fapi/*).
package linear

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/kvantix/perpfutures-core/internal/exchange"
	"github.com/kvantix/perpfutures-core/internal/logging"
)

// Adapter is the linear-contract exchange.Adapter implementation.
type Adapter struct {
	t          *exchange.Transport
	log        *logging.Logger
	quoteAsset string // "USDT"
}

// New builds a linear Adapter whose transport rate limiter runs at a fixed
// 15 req/s with a burst of 30; Binance USDT-M futures allows roughly 2400
// request-weight per minute, which that budget respects in practice.
func New(creds exchange.Credentials, log *logging.Logger) *Adapter {
	return &Adapter{
		t:          exchange.NewTransport("linear", creds, 15, 30, log),
		log:        log,
		quoteAsset: "USDT",
	}
}

func (a *Adapter) Kind() exchange.Kind { return exchange.KindLinear }

func (a *Adapter) NormalizeSymbol(userSymbol string) string {
	s := strings.ToUpper(userSymbol)
	if strings.HasSuffix(s, a.quoteAsset) {
		return s
	}
	return s + a.quoteAsset
}

func (a *Adapter) ExtractSymbol(contract string) string {
	return strings.TrimSuffix(strings.ToUpper(contract), a.quoteAsset)
}

func (a *Adapter) Ticker(ctx context.Context, contract string, includeMarkPrice bool) (exchange.Ticker, error) {
	if cached, ok := a.t.CachedTicker(contract, includeMarkPrice); ok {
		return cached, nil
	}
	values := url.Values{"symbol": {contract}}
	body, err := a.t.Do(ctx, http.MethodGet, "/fapi/v1/ticker/24hr", values, false)
	if err != nil {
		return exchange.Ticker{}, err
	}
	var raw struct {
		LastPrice          string `json:"lastPrice"`
		Volume             string `json:"volume"`
		HighPrice          string `json:"highPrice"`
		LowPrice           string `json:"lowPrice"`
		PriceChangePercent string `json:"priceChangePercent"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return exchange.Ticker{}, fmt.Errorf("decode ticker: %w", err)
	}
	t := exchange.Ticker{
		Last:      parseFloat(raw.LastPrice),
		Volume24h: parseFloat(raw.Volume),
		High24h:   parseFloat(raw.HighPrice),
		Low24h:    parseFloat(raw.LowPrice),
		Change24h: parseFloat(raw.PriceChangePercent),
	}
	if includeMarkPrice {
		mark, err := a.markPrice(ctx, contract)
		if err != nil {
			return exchange.Ticker{}, err
		}
		t.MarkPrice = mark
	}
	a.t.CacheTicker(contract, includeMarkPrice, t)
	return t, nil
}

func (a *Adapter) markPrice(ctx context.Context, contract string) (float64, error) {
	values := url.Values{"symbol": {contract}}
	body, err := a.t.Do(ctx, http.MethodGet, "/fapi/v1/premiumIndex", values, false)
	if err != nil {
		return 0, err
	}
	var raw struct {
		MarkPrice string `json:"markPrice"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return 0, fmt.Errorf("decode mark price: %w", err)
	}
	return parseFloat(raw.MarkPrice), nil
}

func (a *Adapter) Candles(ctx context.Context, contract string, interval exchange.Interval, limit int) ([]exchange.Candle, error) {
	values := url.Values{
		"symbol":   {contract},
		"interval": {string(interval)},
		"limit":    {strconv.Itoa(limit)},
	}
	body, err := a.t.Do(ctx, http.MethodGet, "/fapi/v1/klines", values, false)
	if err != nil {
		return nil, err
	}
	var raw [][]any
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("decode klines: %w", err)
	}
	candles := make([]exchange.Candle, 0, len(raw))
	for _, row := range raw {
		if len(row) < 6 {
			continue
		}
		openTimeMs, _ := row[0].(float64)
		candles = append(candles, exchange.Candle{
			OpenTime: time.UnixMilli(int64(openTimeMs)),
			Open:     parseFloat(fmt.Sprint(row[1])),
			High:     parseFloat(fmt.Sprint(row[2])),
			Low:      parseFloat(fmt.Sprint(row[3])),
			Close:    parseFloat(fmt.Sprint(row[4])),
			Volume:   parseFloat(fmt.Sprint(row[5])),
		})
	}
	return candles, nil
}

func (a *Adapter) Account(ctx context.Context) (exchange.Account, error) {
	body, err := a.t.Do(ctx, http.MethodGet, "/fapi/v2/account", nil, true)
	if err != nil {
		return exchange.Account{}, err
	}
	var raw struct {
		TotalWalletBalance    string `json:"totalWalletBalance"`
		AvailableBalance      string `json:"availableBalance"`
		TotalPositionInitialMargin string `json:"totalPositionInitialMargin"`
		TotalOpenOrderInitialMargin string `json:"totalOpenOrderInitialMargin"`
		TotalUnrealizedProfit string `json:"totalUnrealizedProfit"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return exchange.Account{}, fmt.Errorf("decode account: %w", err)
	}
	return exchange.Account{
		Currency:       a.quoteAsset,
		Total:          parseFloat(raw.TotalWalletBalance),
		Available:      parseFloat(raw.AvailableBalance),
		PositionMargin: parseFloat(raw.TotalPositionInitialMargin),
		OrderMargin:    parseFloat(raw.TotalOpenOrderInitialMargin),
		UnrealizedPnL:  parseFloat(raw.TotalUnrealizedProfit),
	}, nil
}

func (a *Adapter) Positions(ctx context.Context) ([]exchange.PositionView, error) {
	body, err := a.t.Do(ctx, http.MethodGet, "/fapi/v2/positionRisk", nil, true)
	if err != nil {
		return nil, err
	}
	var raw []struct {
		Symbol           string `json:"symbol"`
		PositionAmt      string `json:"positionAmt"`
		EntryPrice       string `json:"entryPrice"`
		MarkPrice        string `json:"markPrice"`
		UnRealizedProfit string `json:"unRealizedProfit"`
		Leverage         string `json:"leverage"`
		LiquidationPrice string `json:"liquidationPrice"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("decode positions: %w", err)
	}
	var out []exchange.PositionView
	for _, p := range raw {
		amt := parseFloat(p.PositionAmt)
		if amt == 0 {
			continue
		}
		side := exchange.SideLong
		if amt < 0 {
			side = exchange.SideShort
			amt = -amt
		}
		signedAmt := amt
		if side == exchange.SideShort {
			signedAmt = -amt
		}
		out = append(out, exchange.PositionView{
			Symbol:           p.Symbol,
			Size:             signedAmt,
			EntryPrice:       parseFloat(p.EntryPrice),
			MarkPrice:        parseFloat(p.MarkPrice),
			UnrealizedPnL:    parseFloat(p.UnRealizedProfit),
			Leverage:         int(parseFloat(p.Leverage)),
			LiquidationPrice: parseFloat(p.LiquidationPrice),
		})
	}
	return out, nil
}

func (a *Adapter) PlaceOrder(ctx context.Context, params exchange.OrderParams) (exchange.OrderResponse, error) {
	side := "BUY"
	positionSide := "LONG"
	quantity := params.Size
	if params.Size < 0 {
		side = "SELL"
		positionSide = "SHORT"
		quantity = -params.Size
	}
	if params.ReduceOnly {
		// on a reduce-only close, side flips relative to the position being closed
		if side == "BUY" {
			side, positionSide = "SELL", "SHORT"
		} else {
			side, positionSide = "BUY", "LONG"
		}
	}

	values := url.Values{
		"symbol":       {params.Symbol},
		"side":         {side},
		"positionSide": {positionSide},
		"quantity":     {strconv.FormatFloat(quantity, 'f', -1, 64)},
		"newClientOrderId": {params.ClientID},
	}
	if params.Price > 0 {
		values.Set("type", "LIMIT")
		values.Set("price", strconv.FormatFloat(params.Price, 'f', -1, 64))
		values.Set("timeInForce", strings.ToUpper(string(params.TimeInForce)))
	} else {
		values.Set("type", "MARKET")
	}
	if params.ReduceOnly {
		values.Set("reduceOnly", "true")
	}

	body, err := a.t.Do(ctx, http.MethodPost, "/fapi/v1/order", values, true)
	if err != nil {
		return exchange.OrderResponse{}, err
	}
	return decodeOrderResponse(body)
}

func decodeOrderResponse(body []byte) (exchange.OrderResponse, error) {
	var raw struct {
		OrderID       int64  `json:"orderId"`
		ClientOrderID string `json:"clientOrderId"`
		Symbol        string `json:"symbol"`
		Status        string `json:"status"`
		Side          string `json:"side"`
		OrigQty       string `json:"origQty"`
		Price         string `json:"price"`
		AvgPrice      string `json:"avgPrice"`
		ExecutedQty   string `json:"executedQty"`
		ReduceOnly    bool   `json:"reduceOnly"`
		UpdateTime    int64  `json:"updateTime"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return exchange.OrderResponse{}, fmt.Errorf("decode order response: %w", err)
	}
	side := exchange.SideLong
	if raw.Side == "SELL" {
		side = exchange.SideShort
	}
	return exchange.OrderResponse{
		OrderID:      strconv.FormatInt(raw.OrderID, 10),
		ClientID:     raw.ClientOrderID,
		Symbol:       raw.Symbol,
		Status:       mapOrderStatus(raw.Status),
		Side:         side,
		Size:         parseFloat(raw.OrigQty),
		Price:        parseFloat(raw.Price),
		AvgFillPrice: parseFloat(raw.AvgPrice),
		FilledSize:   parseFloat(raw.ExecutedQty),
		ReduceOnly:   raw.ReduceOnly,
		UpdatedAt:    time.UnixMilli(raw.UpdateTime),
	}, nil
}

// mapOrderStatus replaces the teacher's duck-typed string comparisons
// scattered across position_tracker.go with a single sum-typed mapping.
func mapOrderStatus(raw string) exchange.OrderStatus {
	switch raw {
	case "NEW":
		return exchange.OrderStatusOpen
	case "PARTIALLY_FILLED":
		return exchange.OrderStatusPartiallyFilled
	case "FILLED":
		return exchange.OrderStatusFilled
	case "CANCELED":
		return exchange.OrderStatusCancelled
	case "EXPIRED":
		return exchange.OrderStatusExpired
	case "REJECTED":
		return exchange.OrderStatusRejected
	default:
		return exchange.OrderStatusRejected
	}
}

func (a *Adapter) SetLeverage(ctx context.Context, contract string, leverage int) error {
	values := url.Values{"symbol": {contract}, "leverage": {strconv.Itoa(leverage)}}
	_, err := a.t.Do(ctx, http.MethodPost, "/fapi/v1/leverage", values, true)
	return err
}

func (a *Adapter) FundingRate(ctx context.Context, contract string) (exchange.FundingRate, error) {
	if cached, ok := a.t.CachedFunding(contract); ok {
		return cached, nil
	}
	values := url.Values{"symbol": {contract}}
	body, err := a.t.Do(ctx, http.MethodGet, "/fapi/v1/premiumIndex", values, false)
	if err != nil {
		return exchange.FundingRate{}, err
	}
	var raw struct {
		LastFundingRate string `json:"lastFundingRate"`
		NextFundingTime int64  `json:"nextFundingTime"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return exchange.FundingRate{}, fmt.Errorf("decode funding rate: %w", err)
	}
	fr := exchange.FundingRate{
		Symbol:      contract,
		Rate:        parseFloat(raw.LastFundingRate),
		NextFunding: time.UnixMilli(raw.NextFundingTime),
	}
	a.t.CacheFunding(contract, fr)
	return fr, nil
}

func (a *Adapter) ContractInfo(ctx context.Context, contract string) (exchange.ContractInfo, error) {
	if cached, ok := a.t.CachedContractInfo(contract); ok {
		return cached, nil
	}
	body, err := a.t.Do(ctx, http.MethodGet, "/fapi/v1/exchangeInfo", nil, false)
	if err != nil {
		return exchange.ContractInfo{}, err
	}
	var raw struct {
		Symbols []struct {
			Symbol     string `json:"symbol"`
			Filters    []struct {
				FilterType string `json:"filterType"`
				TickSize   string `json:"tickSize"`
				MinQty     string `json:"minQty"`
				MaxQty     string `json:"maxQty"`
			} `json:"filters"`
		} `json:"symbols"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return exchange.ContractInfo{}, fmt.Errorf("decode exchange info: %w", err)
	}
	for _, s := range raw.Symbols {
		if s.Symbol != contract {
			continue
		}
		info := exchange.ContractInfo{Symbol: contract, Kind: exchange.KindLinear, QuantoMultiplier: 1}
		for _, f := range s.Filters {
			switch f.FilterType {
			case "PRICE_FILTER":
				info.TickSize = parseFloat(f.TickSize)
				info.PriceDecimals = decimalsOf(f.TickSize)
			case "LOT_SIZE":
				info.MinOrderSize = parseFloat(f.MinQty)
				info.MaxOrderSize = parseFloat(f.MaxQty)
			}
		}
		a.t.CacheContractInfo(contract, info)
		return info, nil
	}
	return exchange.ContractInfo{}, fmt.Errorf("contract %s not found", contract)
}

func (a *Adapter) GetMyTrades(ctx context.Context, contract string, limit int) ([]exchange.Trade, error) {
	values := url.Values{"symbol": {contract}, "limit": {strconv.Itoa(limit)}}
	body, err := a.t.Do(ctx, http.MethodGet, "/fapi/v1/userTrades", values, true)
	if err != nil {
		return nil, err
	}
	var raw []struct {
		OrderID  int64  `json:"orderId"`
		Symbol   string `json:"symbol"`
		Price    string `json:"price"`
		Qty      string `json:"qty"`
		Side     string `json:"side"`
		Commission string `json:"commission"`
		Time     int64  `json:"time"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("decode trades: %w", err)
	}
	out := make([]exchange.Trade, 0, len(raw))
	for _, t := range raw {
		side := exchange.SideLong
		if t.Side == "SELL" {
			side = exchange.SideShort
		}
		out = append(out, exchange.Trade{
			OrderID:   strconv.FormatInt(t.OrderID, 10),
			Symbol:    t.Symbol,
			Side:      side,
			Price:     parseFloat(t.Price),
			Quantity:  parseFloat(t.Qty),
			Fee:       parseFloat(t.Commission),
			Timestamp: time.UnixMilli(t.Time),
		})
	}
	return out, nil
}

func (a *Adapter) GetOrder(ctx context.Context, contract, orderID string) (exchange.OrderResponse, error) {
	values := url.Values{"symbol": {contract}, "orderId": {orderID}}
	body, err := a.t.Do(ctx, http.MethodGet, "/fapi/v1/order", values, true)
	if err != nil {
		return exchange.OrderResponse{}, err
	}
	return decodeOrderResponse(body)
}

func (a *Adapter) CancelOrder(ctx context.Context, contract, orderID string) error {
	values := url.Values{"symbol": {contract}, "orderId": {orderID}}
	_, err := a.t.Do(ctx, http.MethodDelete, "/fapi/v1/order", values, true)
	if exchange.IsNotFound(err) {
		return nil
	}
	return err
}

func (a *Adapter) GetOpenOrders(ctx context.Context, contract string) ([]exchange.OrderResponse, error) {
	values := url.Values{}
	if contract != "" {
		values.Set("symbol", contract)
	}
	body, err := a.t.Do(ctx, http.MethodGet, "/fapi/v1/openOrders", values, true)
	if err != nil {
		return nil, err
	}
	var raw []json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("decode open orders: %w", err)
	}
	out := make([]exchange.OrderResponse, 0, len(raw))
	for _, r := range raw {
		o, err := decodeOrderResponse(r)
		if err != nil {
			continue
		}
		out = append(out, o)
	}
	return out, nil
}

func (a *Adapter) SetPositionStopLoss(ctx context.Context, params exchange.SetStopParams) (exchange.SetStopResult, error) {
	info, err := a.ContractInfo(ctx, params.Symbol)
	if err != nil {
		return exchange.SetStopResult{}, err
	}
	return exchange.ApplyProtectiveStop(ctx, a, a.log, params, info.TickSize)
}

func (a *Adapter) CancelPositionStopLoss(ctx context.Context, contract string) error {
	return exchange.CancelProtectiveStop(ctx, a, contract)
}

func (a *Adapter) GetPositionStopOrders(ctx context.Context, contract string) ([]exchange.PriceOrder, error) {
	return a.listStopOrders(ctx, contract)
}

// placeStopOrder, cancelStopOrders, and listStopOrders implement
// exchange.ProtectiveOrderPlacer.
func (a *Adapter) placeStopOrder(ctx context.Context, contract string, side exchange.Side, quantity, stopPrice float64, orderType exchange.PriceOrderType) (string, error) {
	orderSide := "SELL"
	positionSide := "LONG"
	if side == exchange.SideShort {
		orderSide = "BUY"
		positionSide = "SHORT"
	}
	binanceType := "STOP_MARKET"
	if orderType == exchange.PriceOrderTakeProfit {
		binanceType = "TAKE_PROFIT_MARKET"
	}
	values := url.Values{
		"symbol":       {contract},
		"side":         {orderSide},
		"positionSide": {positionSide},
		"type":         {binanceType},
		"stopPrice":    {strconv.FormatFloat(stopPrice, 'f', -1, 64)},
		"closePosition": {"true"},
		"workingType":  {"MARK_PRICE"},
	}
	body, err := a.t.Do(ctx, http.MethodPost, "/fapi/v1/order", values, true)
	if err != nil {
		return "", err
	}
	resp, err := decodeOrderResponse(body)
	if err != nil {
		return "", err
	}
	return resp.OrderID, nil
}

func (a *Adapter) cancelStopOrders(ctx context.Context, contract string) error {
	values := url.Values{"symbol": {contract}}
	_, err := a.t.Do(ctx, http.MethodDelete, "/fapi/v1/allOpenOrders", values, true)
	return err
}

func (a *Adapter) listStopOrders(ctx context.Context, contract string) ([]exchange.PriceOrder, error) {
	values := url.Values{"symbol": {contract}}
	body, err := a.t.Do(ctx, http.MethodGet, "/fapi/v1/openOrders", values, true)
	if err != nil {
		return nil, err
	}
	var raw []struct {
		OrderID   int64  `json:"orderId"`
		Symbol    string `json:"symbol"`
		Side      string `json:"side"`
		Type      string `json:"type"`
		StopPrice string `json:"stopPrice"`
		OrigQty   string `json:"origQty"`
		Status    string `json:"status"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("decode open orders: %w", err)
	}
	var out []exchange.PriceOrder
	for _, o := range raw {
		var t exchange.PriceOrderType
		switch o.Type {
		case "STOP_MARKET", "STOP":
			t = exchange.PriceOrderStopLoss
		case "TAKE_PROFIT_MARKET", "TAKE_PROFIT":
			t = exchange.PriceOrderTakeProfit
		default:
			continue
		}
		side := exchange.SideLong
		if o.Side == "SELL" {
			side = exchange.SideShort
		}
		out = append(out, exchange.PriceOrder{
			OrderID:      strconv.FormatInt(o.OrderID, 10),
			Symbol:       o.Symbol,
			Side:         side,
			Type:         t,
			TriggerPrice: parseFloat(o.StopPrice),
			Quantity:     parseFloat(o.OrigQty),
			Status:       o.Status,
		})
	}
	return out, nil
}

// QuantityFromUSDT converts a USDT margin amount into contract quantity:
// quantity = floor_to_step((margin * leverage) / price, min_size).
func (a *Adapter) QuantityFromUSDT(ctx context.Context, contract string, margin, price float64, leverage int) (float64, error) {
	if price <= 0 {
		return 0, nil
	}
	info, err := a.ContractInfo(ctx, contract)
	if err != nil {
		return 0, err
	}
	raw := (margin * float64(leverage)) / price
	return exchange.QuantizeSize(raw, info.MinOrderSize, info.MaxOrderSize), nil
}

// PnL computes linear PnL: q * (exit - entry), signed by side.
func (a *Adapter) PnL(ctx context.Context, contract string, entry, exit, quantity float64, side exchange.Side) (float64, error) {
	diff := exit - entry
	if side == exchange.SideShort {
		diff = -diff
	}
	return quantity * diff, nil
}

func parseFloat(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return v
}

func decimalsOf(tickSize string) int {
	idx := strings.Index(tickSize, ".")
	if idx < 0 {
		return 0
	}
	frac := strings.TrimRight(tickSize[idx+1:], "0")
	return len(frac)
}
