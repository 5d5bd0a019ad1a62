// Package exchange defines the uniform capability contract (Adapter) over
// heterogeneous perpetual-futures exchanges, plus the two concrete variants
// the trading core ships with: linear (USDT-margined) and inverse
// (coin-margined). It generalizes the teacher's binance.FuturesClient
// interface (single exchange, single margining model) into a
// variant-agnostic contract with explicit sum types for order status and a
// product type carrying every optional field an order response can have —
// replacing the teacher's duck-typed string comparisons.
package exchange

import "time"

// Kind names which margining model a contract trades under.
type Kind string

const (
	KindLinear  Kind = "linear"
	KindInverse Kind = "inverse"
)

// Interval is a supported candle interval.
type Interval string

const (
	Interval1m  Interval = "1m"
	Interval3m  Interval = "3m"
	Interval5m  Interval = "5m"
	Interval15m Interval = "15m"
	Interval30m Interval = "30m"
	Interval1h  Interval = "1h"
	Interval4h  Interval = "4h"
	Interval1d  Interval = "1d"
)

// Side is a position or order direction.
type Side string

const (
	SideLong  Side = "long"
	SideShort Side = "short"
)

// OrderStatus is the sum type every adapter variant must normalize its
// exchange-specific order states into.
type OrderStatus string

const (
	OrderStatusOpen            OrderStatus = "open"
	OrderStatusFilled          OrderStatus = "filled"
	OrderStatusPartiallyFilled OrderStatus = "partially_filled"
	OrderStatusCancelled       OrderStatus = "cancelled"
	OrderStatusExpired         OrderStatus = "expired"
	OrderStatusRejected        OrderStatus = "rejected"
)

// PriceOrderType distinguishes the two protective order kinds.
type PriceOrderType string

const (
	PriceOrderStopLoss   PriceOrderType = "stop_loss"
	PriceOrderTakeProfit PriceOrderType = "take_profit"
)

// TimeInForce mirrors the handful of values every futures exchange supports.
type TimeInForce string

const (
	TimeInForceGTC TimeInForce = "gtc"
	TimeInForceIOC TimeInForce = "ioc"
	TimeInForceFOK TimeInForce = "fok"
)

// ContractInfo is cached for the process lifetime once fetched.
type ContractInfo struct {
	Symbol           string
	Kind             Kind
	QuantoMultiplier float64 // contract size for inverse; the linear variant sets 1
	TickSize         float64
	MinOrderSize     float64
	MaxOrderSize     float64
	PriceDecimals    int
	MinLeverage      int
	MaxLeverage      int
}

// Candle is the canonical OHLCV bar. Sequences are always oldest-first.
type Candle struct {
	OpenTime time.Time
	Open     float64
	High     float64
	Low      float64
	Close    float64
	Volume   float64
}

// Ticker is the result of Adapter.Ticker.
type Ticker struct {
	Last       float64
	MarkPrice  float64 // zero when not requested/available
	IndexPrice float64 // zero when not requested/available
	Volume24h  float64
	High24h    float64
	Low24h     float64
	Change24h  float64
}

// Account is the result of Adapter.Account.
type Account struct {
	Currency       string
	Total          float64
	Available      float64
	PositionMargin float64
	OrderMargin    float64
	UnrealizedPnL  float64
}

// PositionView is a single exchange-reported position. Size carries sign:
// positive long, negative short.
type PositionView struct {
	Symbol           string
	Size             float64
	EntryPrice       float64
	MarkPrice        float64
	LiquidationPrice float64
	UnrealizedPnL    float64
	Leverage         int
}

// OrderParams is the input to Adapter.PlaceOrder. Size is signed: positive
// opens/increases long exposure, negative opens/increases short exposure,
// following the exchange's own signed-size convention.
type OrderParams struct {
	Symbol       string
	Size         float64
	Price        float64 // 0 => market order, ioc
	TimeInForce  TimeInForce
	ReduceOnly   bool
	AutoSize     bool
	ClientID     string // idempotency key; generated if empty
}

// OrderResponse is the normalized product type every variant returns from
// PlaceOrder, GetOrder, and friends.
type OrderResponse struct {
	OrderID       string
	ClientID      string
	Symbol        string
	Status        OrderStatus
	Side          Side
	Size          float64
	Price         float64
	AvgFillPrice  float64
	FilledSize    float64
	ReduceOnly    bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// PriceOrder is a registered protective stop/take-profit order.
type PriceOrder struct {
	OrderID      string
	Symbol       string
	Side         Side
	Type         PriceOrderType
	TriggerPrice float64
	OrderPrice   float64 // 0 => market-on-trigger
	Quantity     float64
	Status       string
}

// SetStopParams is the input to Adapter.SetPositionStopLoss. Both legs are
// always validated and submitted: a zero StopPrice or TakeProfit does not
// leave its leg untouched, it goes through the ordering check and is placed
// like any other price.
type SetStopParams struct {
	Symbol     string
	Side       Side
	Quantity   float64
	StopPrice  float64
	TakeProfit float64
	MarkPrice  float64
}

// SetStopResult reports what actually got registered, since the contract
// requires never silently dropping a leg that did succeed.
type SetStopResult struct {
	OK           bool
	StopOrderID  string
	TPOrderID    string
	Message      string
}

// FundingRate is the result of Adapter.FundingRate.
type FundingRate struct {
	Symbol      string
	Rate        float64
	NextFunding time.Time
}

// Trade is a fill reported back by the exchange's trade history.
type Trade struct {
	OrderID   string
	Symbol    string
	Side      Side
	Price     float64
	Quantity  float64
	Fee       float64
	Timestamp time.Time
}
