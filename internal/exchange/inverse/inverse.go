// Package inverse implements exchange.Adapter for coin-margined ("inverse")
// perpetual futures, grounded on the teacher's FuturesClientImpl
// (internal/binance/futures_client.go) adapted to the COIN-M futures REST
// surface (/dapi/*) and its quanto-multiplier contract sizing.
package inverse

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/kvantix/perpfutures-core/internal/exchange"
	"github.com/kvantix/perpfutures-core/internal/logging"
)

// Adapter is the inverse-contract exchange.Adapter implementation.
type Adapter struct {
	t   *exchange.Transport
	log *logging.Logger
}

// New builds an inverse Adapter.
func New(creds exchange.Credentials, log *logging.Logger) *Adapter {
	return &Adapter{
		t:   exchange.NewTransport("inverse", creds, 15, 30, log),
		log: log,
	}
}

func (a *Adapter) Kind() exchange.Kind { return exchange.KindInverse }

// NormalizeSymbol maps "BTC" to the COIN-M perpetual contract identifier
// "BTCUSD_PERP", the quarterly-contract naming scheme's perpetual member.
func (a *Adapter) NormalizeSymbol(userSymbol string) string {
	s := strings.ToUpper(userSymbol)
	if strings.HasSuffix(s, "USD_PERP") {
		return s
	}
	s = strings.TrimSuffix(s, "USD")
	return s + "USD_PERP"
}

func (a *Adapter) ExtractSymbol(contract string) string {
	s := strings.ToUpper(contract)
	s = strings.TrimSuffix(s, "_PERP")
	return strings.TrimSuffix(s, "USD")
}

func (a *Adapter) Ticker(ctx context.Context, contract string, includeMarkPrice bool) (exchange.Ticker, error) {
	if cached, ok := a.t.CachedTicker(contract, includeMarkPrice); ok {
		return cached, nil
	}
	values := url.Values{"symbol": {contract}}
	body, err := a.t.Do(ctx, http.MethodGet, "/dapi/v1/ticker/24hr", values, false)
	if err != nil {
		return exchange.Ticker{}, err
	}
	var raw []struct {
		LastPrice          string `json:"lastPrice"`
		Volume             string `json:"volume"`
		HighPrice          string `json:"highPrice"`
		LowPrice           string `json:"lowPrice"`
		PriceChangePercent string `json:"priceChangePercent"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return exchange.Ticker{}, fmt.Errorf("decode ticker: %w", err)
	}
	if len(raw) == 0 {
		return exchange.Ticker{}, fmt.Errorf("no ticker data for %s", contract)
	}
	r := raw[0]
	t := exchange.Ticker{
		Last:      parseFloat(r.LastPrice),
		Volume24h: parseFloat(r.Volume),
		High24h:   parseFloat(r.HighPrice),
		Low24h:    parseFloat(r.LowPrice),
		Change24h: parseFloat(r.PriceChangePercent),
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
	body, err := a.t.Do(ctx, http.MethodGet, "/dapi/v1/premiumIndex", values, false)
	if err != nil {
		return 0, err
	}
	var raw []struct {
		MarkPrice string `json:"markPrice"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return 0, fmt.Errorf("decode mark price: %w", err)
	}
	if len(raw) == 0 {
		return 0, fmt.Errorf("no mark price for %s", contract)
	}
	return parseFloat(raw[0].MarkPrice), nil
}

func (a *Adapter) Candles(ctx context.Context, contract string, interval exchange.Interval, limit int) ([]exchange.Candle, error) {
	values := url.Values{
		"symbol":   {contract},
		"interval": {string(interval)},
		"limit":    {strconv.Itoa(limit)},
	}
	body, err := a.t.Do(ctx, http.MethodGet, "/dapi/v1/klines", values, false)
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
	body, err := a.t.Do(ctx, http.MethodGet, "/dapi/v1/account", nil, true)
	if err != nil {
		return exchange.Account{}, err
	}
	var raw struct {
		Assets []struct {
			Asset                  string `json:"asset"`
			WalletBalance          string `json:"walletBalance"`
			AvailableBalance       string `json:"availableBalance"`
			PositionInitialMargin  string `json:"positionInitialMargin"`
			OpenOrderInitialMargin string `json:"openOrderInitialMargin"`
			UnrealizedProfit       string `json:"unrealizedProfit"`
		} `json:"assets"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return exchange.Account{}, fmt.Errorf("decode account: %w", err)
	}
	acct := exchange.Account{Currency: "multi-asset"}
	for _, asset := range raw.Assets {
		bal := parseFloat(asset.WalletBalance)
		if bal == 0 {
			continue
		}
		acct.Currency = asset.Asset
		acct.Total += bal
		acct.Available += parseFloat(asset.AvailableBalance)
		acct.PositionMargin += parseFloat(asset.PositionInitialMargin)
		acct.OrderMargin += parseFloat(asset.OpenOrderInitialMargin)
		acct.UnrealizedPnL += parseFloat(asset.UnrealizedProfit)
	}
	return acct, nil
}

func (a *Adapter) Positions(ctx context.Context) ([]exchange.PositionView, error) {
	body, err := a.t.Do(ctx, http.MethodGet, "/dapi/v1/positionRisk", nil, true)
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
		out = append(out, exchange.PositionView{
			Symbol:           p.Symbol,
			Size:             amt, // already signed: contracts count, positive long, negative short
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
		if side == "BUY" {
			side, positionSide = "SELL", "SHORT"
		} else {
			side, positionSide = "BUY", "LONG"
		}
	}

	values := url.Values{
		"symbol":           {params.Symbol},
		"side":             {side},
		"positionSide":     {positionSide},
		"quantity":         {strconv.FormatFloat(math.Trunc(quantity), 'f', 0, 64)}, // inverse contracts are whole-count
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

	body, err := a.t.Do(ctx, http.MethodPost, "/dapi/v1/order", values, true)
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
	_, err := a.t.Do(ctx, http.MethodPost, "/dapi/v1/leverage", values, true)
	return err
}

func (a *Adapter) FundingRate(ctx context.Context, contract string) (exchange.FundingRate, error) {
	if cached, ok := a.t.CachedFunding(contract); ok {
		return cached, nil
	}
	values := url.Values{"symbol": {contract}}
	body, err := a.t.Do(ctx, http.MethodGet, "/dapi/v1/premiumIndex", values, false)
	if err != nil {
		return exchange.FundingRate{}, err
	}
	var raw []struct {
		LastFundingRate string `json:"lastFundingRate"`
		NextFundingTime int64  `json:"nextFundingTime"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return exchange.FundingRate{}, fmt.Errorf("decode funding rate: %w", err)
	}
	if len(raw) == 0 {
		return exchange.FundingRate{}, fmt.Errorf("no funding rate for %s", contract)
	}
	fr := exchange.FundingRate{
		Symbol:      contract,
		Rate:        parseFloat(raw[0].LastFundingRate),
		NextFunding: time.UnixMilli(raw[0].NextFundingTime),
	}
	a.t.CacheFunding(contract, fr)
	return fr, nil
}

func (a *Adapter) ContractInfo(ctx context.Context, contract string) (exchange.ContractInfo, error) {
	if cached, ok := a.t.CachedContractInfo(contract); ok {
		return cached, nil
	}
	body, err := a.t.Do(ctx, http.MethodGet, "/dapi/v1/exchangeInfo", nil, false)
	if err != nil {
		return exchange.ContractInfo{}, err
	}
	var raw struct {
		Symbols []struct {
			Symbol         string `json:"symbol"`
			ContractType   string `json:"contractType"`
			ContractSize   float64 `json:"contractSize"`
			Filters        []struct {
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
		if s.Symbol != contract || s.ContractType != "PERPETUAL" {
			continue
		}
		multiplier := s.ContractSize
		if multiplier == 0 {
			multiplier = 100 // Binance COIN-M perpetuals default to 100 USD/contract
		}
		info := exchange.ContractInfo{Symbol: contract, Kind: exchange.KindInverse, QuantoMultiplier: multiplier}
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
	return exchange.ContractInfo{}, fmt.Errorf("perpetual contract %s not found", contract)
}

func (a *Adapter) GetMyTrades(ctx context.Context, contract string, limit int) ([]exchange.Trade, error) {
	values := url.Values{"symbol": {contract}, "limit": {strconv.Itoa(limit)}}
	body, err := a.t.Do(ctx, http.MethodGet, "/dapi/v1/userTrades", values, true)
	if err != nil {
		return nil, err
	}
	var raw []struct {
		OrderID    int64  `json:"orderId"`
		Symbol     string `json:"symbol"`
		Price      string `json:"price"`
		Qty        string `json:"qty"`
		Side       string `json:"side"`
		Commission string `json:"commission"`
		Time       int64  `json:"time"`
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
	body, err := a.t.Do(ctx, http.MethodGet, "/dapi/v1/order", values, true)
	if err != nil {
		return exchange.OrderResponse{}, err
	}
	return decodeOrderResponse(body)
}

func (a *Adapter) CancelOrder(ctx context.Context, contract, orderID string) error {
	values := url.Values{"symbol": {contract}, "orderId": {orderID}}
	_, err := a.t.Do(ctx, http.MethodDelete, "/dapi/v1/order", values, true)
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
	body, err := a.t.Do(ctx, http.MethodGet, "/dapi/v1/openOrders", values, true)
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
		"symbol":        {contract},
		"side":          {orderSide},
		"positionSide":  {positionSide},
		"type":          {binanceType},
		"stopPrice":     {strconv.FormatFloat(stopPrice, 'f', -1, 64)},
		"closePosition": {"true"},
		"workingType":   {"MARK_PRICE"},
	}
	body, err := a.t.Do(ctx, http.MethodPost, "/dapi/v1/order", values, true)
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
	_, err := a.t.Do(ctx, http.MethodDelete, "/dapi/v1/allOpenOrders", values, true)
	return err
}

func (a *Adapter) listStopOrders(ctx context.Context, contract string) ([]exchange.PriceOrder, error) {
	values := url.Values{"symbol": {contract}}
	body, err := a.t.Do(ctx, http.MethodGet, "/dapi/v1/openOrders", values, true)
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

// QuantityFromUSDT sizes an inverse position as an integer contract count:
// quantity = floor((margin * leverage) / (multiplier * price)).
func (a *Adapter) QuantityFromUSDT(ctx context.Context, contract string, margin, price float64, leverage int) (float64, error) {
	if price <= 0 {
		return 0, nil
	}
	info, err := a.ContractInfo(ctx, contract)
	if err != nil {
		return 0, err
	}
	if info.QuantoMultiplier <= 0 {
		return 0, fmt.Errorf("contract %s has no quanto multiplier", contract)
	}
	return quantityFromMultiplier(margin, price, leverage, info.QuantoMultiplier), nil
}

// PnL computes inverse PnL: q * multiplier * (exit - entry), signed by side.
func (a *Adapter) PnL(ctx context.Context, contract string, entry, exit, quantity float64, side exchange.Side) (float64, error) {
	info, err := a.ContractInfo(ctx, contract)
	if err != nil {
		return 0, err
	}
	return pnlFromMultiplier(entry, exit, quantity, info.QuantoMultiplier, side), nil
}

// quantityFromMultiplier implements quantity = floor((margin * leverage) /
// (multiplier * price)), split out from QuantityFromUSDT so it's testable
// without a network-backed ContractInfo lookup.
func quantityFromMultiplier(margin, price float64, leverage int, multiplier float64) float64 {
	return math.Floor((margin * float64(leverage)) / (multiplier * price))
}

// pnlFromMultiplier implements pnl = q * multiplier * (exit - entry),
// sign-flipped for short, split out from PnL for the same reason.
func pnlFromMultiplier(entry, exit, quantity, multiplier float64, side exchange.Side) float64 {
	diff := exit - entry
	if side == exchange.SideShort {
		diff = -diff
	}
	return quantity * multiplier * diff
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
