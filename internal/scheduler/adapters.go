package scheduler

import (
	"context"
	"time"

	"github.com/kvantix/perpfutures-core/internal/exchange"
	"github.com/kvantix/perpfutures-core/internal/partialtp"
	"github.com/kvantix/perpfutures-core/internal/store"
)

// exchangeOrderCloser adapts exchange.Adapter to partialtp.OrderCloser, the
// narrow exchange-facing surface the executor needs for a completed stage:
// a reduce-only market close and a stop migration. It also persists the
// migrated stop to the store, since open_positions.stop_loss is the
// baseline the next trailing-stop tick reads back; partial-TP stages
// measure from entry_stop_loss, which this leaves as recorded at open.
type exchangeOrderCloser struct {
	adapter exchange.Adapter
	store   *store.Store
}

func (o *exchangeOrderCloser) ReduceOnlyClose(ctx context.Context, symbol string, side exchange.Side, qty float64) error {
	size := qty
	if side == exchange.SideLong {
		size = -qty
	}
	_, err := o.adapter.PlaceOrder(ctx, exchange.OrderParams{Symbol: symbol, Size: size, ReduceOnly: true})
	return err
}

func (o *exchangeOrderCloser) MigrateStop(ctx context.Context, symbol string, side exchange.Side, mode partialtp.StopMode, price float64) error {
	if _, err := o.adapter.SetPositionStopLoss(ctx, exchange.SetStopParams{
		Symbol:    symbol,
		Side:      side,
		StopPrice: price,
	}); err != nil {
		return err
	}
	return o.store.UpdatePositionStopLoss(ctx, symbol, string(side), price)
}

// exchangePositionCloser adapts exchange.Adapter to reversal.PositionCloser.
type exchangePositionCloser struct {
	adapter exchange.Adapter
}

func (c *exchangePositionCloser) MarketReduceOnlyClose(ctx context.Context, symbol string, side exchange.Side, quantity float64) error {
	size := quantity
	if side == exchange.SideLong {
		size = -quantity
	}
	_, err := c.adapter.PlaceOrder(ctx, exchange.OrderParams{Symbol: symbol, Size: size, ReduceOnly: true})
	return err
}

func (c *exchangePositionCloser) CancelProtectiveStops(ctx context.Context, symbol string) error {
	return c.adapter.CancelPositionStopLoss(ctx, symbol)
}

// storeRecentCloseChecker adapts *store.Store to partialtp.RecentCloseChecker.
type storeRecentCloseChecker struct {
	store *store.Store
}

func (c *storeRecentCloseChecker) HasRecentClose(ctx context.Context, symbol string, side exchange.Side, window time.Duration) (bool, error) {
	return c.store.HasRecentClose(ctx, symbol, string(side), window)
}

// storePartialTPHistory adapts *store.Store to partialtp.StageHistory.
type storePartialTPHistory struct {
	store *store.Store
}

func (h *storePartialTPHistory) StageRecorded(ctx context.Context, symbol string, side exchange.Side, stage int) (bool, error) {
	return h.store.PartialTPStageRecorded(ctx, symbol, string(side), stage)
}

func (h *storePartialTPHistory) RecordStage(ctx context.Context, symbol string, side exchange.Side, stage int, qty, price float64) error {
	return h.store.RecordPartialTP(ctx, store.PartialTPRecord{
		Symbol:   symbol,
		Side:     string(side),
		Stage:    stage,
		Quantity: qty,
		Price:    price,
		At:       time.Now(),
	})
}

// storeReversalPositionStore adapts *store.Store to reversal.PositionStore.
type storeReversalPositionStore struct {
	store *store.Store
}

func (r *storeReversalPositionStore) RecordCloseEvent(ctx context.Context, symbol string, side exchange.Side, reason string) error {
	return r.store.RecordCloseEvent(ctx, store.CloseEvent{
		Symbol: symbol,
		Side:   string(side),
		Reason: reason,
		At:     time.Now(),
	})
}

func (r *storeReversalPositionStore) DeleteOpenPosition(ctx context.Context, symbol string, side exchange.Side) error {
	return r.store.DeleteOpenPosition(ctx, symbol, string(side))
}

func (r *storeReversalPositionStore) HasRecentClose(ctx context.Context, symbol string, side exchange.Side, window time.Duration) (bool, error) {
	return r.store.HasRecentClose(ctx, symbol, string(side), window)
}
