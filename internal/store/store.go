// Package store persists positions, orders, trades, close-events,
// partial-TP history, account snapshots, and the equity curve, grounded
// on the teacher's internal/database/repository_futures.go raw pgx/v5 SQL
// style (no ORM). Every read and write goes to Postgres; the Redis client
// kept on Store (after internal/database/redis_position_state.go) is not
// used by any method.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

// Store wraps a Postgres pool (source of truth) and a Redis client,
// mirroring the teacher's *DB/*redis split between internal/database/db.go
// and redis_position_state.go; no Store method reads or writes the Redis
// client.
type Store struct {
	pool  *pgxpool.Pool
	redis *redis.Client
}

// New builds a Store over an already-connected pool and client.
func New(pool *pgxpool.Pool, redisClient *redis.Client) *Store {
	return &Store{pool: pool, redis: redisClient}
}

// Position is the schema-invariant open_position row. EntryStopLoss is the
// immutable stop recorded at open, the R-multiple baseline the partial-TP
// stages measure against; StopLoss is the live protective stop and moves as
// trailing and partial-TP migrate it.
type Position struct {
	ID            int64
	Symbol        string
	Side          string
	EntryPrice    float64
	Quantity      float64
	Leverage      int
	StopLoss      float64
	EntryStopLoss float64
	TakeProfit    float64
	Strategy      string
	OpenedAt      time.Time
}

// Order is the price-order row tracking SL/TP order state.
type Order struct {
	ID         int64
	PositionID int64
	Symbol     string
	OrderID    string
	Kind       string // stop_loss, take_profit
	Price      float64
	Quantity   float64
	Status     string
}

// Trade is an append-only fill record.
type Trade struct {
	ID         int64
	PositionID int64
	Symbol     string
	Side       string
	Type       string // open, close
	Price      float64
	Quantity   float64
	Fee        float64
	At         time.Time
}

// CloseEvent records why and how a position was closed.
type CloseEvent struct {
	ID        int64
	Symbol    string
	Side      string
	Reason    string
	PnL       float64
	At        time.Time
}

// PartialTPRecord is one completed partial-TP stage. It is keyed by
// (symbol, side, stage) rather than position_id so the partial-TP
// executor's StageHistory check survives the position row's eventual
// deletion on full close and needs no join back to open_positions.
type PartialTPRecord struct {
	ID       int64
	Symbol   string
	Side     string
	Stage    int
	Quantity float64
	Price    float64
	At       time.Time
}

// EquityPoint is one equity-curve sample.
type EquityPoint struct {
	At        time.Time
	Equity    float64
	Drawdown  float64
	IsPeak    bool
}

// OpenPosition inserts the position, the opening trade, and the two
// protective price-orders atomically. On any failure past the position
// insert, it compensates by cancelling whichever orders were already
// placed on the exchange (via the caller-supplied cancel func) and rolling
// back the transaction, so no partial DB rows survive.
func (s *Store) OpenPosition(ctx context.Context, pos Position, openTrade Trade, slOrder, tpOrder Order, cancelPlaced func(context.Context) error) (positionID int64, err error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("store: begin open_position tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
			if cancelPlaced != nil {
				_ = cancelPlaced(ctx)
			}
		}
	}()

	const insertPosition = `
		INSERT INTO open_positions (symbol, side, entry_price, quantity, leverage, stop_loss, entry_stop_loss, take_profit, strategy, opened_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10) RETURNING id`
	if err = tx.QueryRow(ctx, insertPosition,
		pos.Symbol, pos.Side, pos.EntryPrice, pos.Quantity, pos.Leverage, pos.StopLoss, pos.EntryStopLoss, pos.TakeProfit, pos.Strategy, pos.OpenedAt,
	).Scan(&positionID); err != nil {
		return 0, fmt.Errorf("store: insert open_position: %w", err)
	}

	const insertTrade = `
		INSERT INTO trades (position_id, symbol, side, type, price, quantity, fee, at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`
	if _, err = tx.Exec(ctx, insertTrade, positionID, openTrade.Symbol, openTrade.Side, "open", openTrade.Price, openTrade.Quantity, openTrade.Fee, openTrade.At); err != nil {
		return 0, fmt.Errorf("store: insert open trade: %w", err)
	}

	const insertOrder = `
		INSERT INTO price_orders (position_id, symbol, order_id, kind, price, quantity, status)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`
	if _, err = tx.Exec(ctx, insertOrder, positionID, pos.Symbol, slOrder.OrderID, "stop_loss", slOrder.Price, slOrder.Quantity, slOrder.Status); err != nil {
		return 0, fmt.Errorf("store: insert stop-loss order: %w", err)
	}
	if _, err = tx.Exec(ctx, insertOrder, positionID, pos.Symbol, tpOrder.OrderID, "take_profit", tpOrder.Price, tpOrder.Quantity, tpOrder.Status); err != nil {
		return 0, fmt.Errorf("store: insert take-profit order: %w", err)
	}

	if err = tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("store: commit open_position tx: %w", err)
	}
	return positionID, nil
}

// ClosePositionFull deletes the position row, inserts a close-event and the
// closing trade, and marks price-orders cancelled, atomically.
func (s *Store) ClosePositionFull(ctx context.Context, positionID int64, closeEvent CloseEvent, closeTrade Trade) (err error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("store: begin close_position_full tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	if _, err = tx.Exec(ctx, `DELETE FROM open_positions WHERE id = $1`, positionID); err != nil {
		return fmt.Errorf("store: delete open_position: %w", err)
	}
	const insertClose = `
		INSERT INTO close_events (symbol, side, reason, pnl, at)
		VALUES ($1,$2,$3,$4,$5)`
	if _, err = tx.Exec(ctx, insertClose, closeEvent.Symbol, closeEvent.Side, closeEvent.Reason, closeEvent.PnL, closeEvent.At); err != nil {
		return fmt.Errorf("store: insert close_event: %w", err)
	}
	const insertTrade = `
		INSERT INTO trades (position_id, symbol, side, type, price, quantity, fee, at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`
	if _, err = tx.Exec(ctx, insertTrade, positionID, closeTrade.Symbol, closeTrade.Side, "close", closeTrade.Price, closeTrade.Quantity, closeTrade.Fee, closeTrade.At); err != nil {
		return fmt.Errorf("store: insert close trade: %w", err)
	}
	if _, err = tx.Exec(ctx, `UPDATE price_orders SET status = 'cancelled' WHERE position_id = $1 AND status != 'cancelled'`, positionID); err != nil {
		return fmt.Errorf("store: cancel price_orders: %w", err)
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("store: commit close_position_full tx: %w", err)
	}
	return nil
}

// UpdatePositionStopLoss persists a trailing-stop or partial-TP stop
// migration against the live open_positions row. EntryStopLoss is never
// touched here — it stays the immutable snapshot taken at open.
func (s *Store) UpdatePositionStopLoss(ctx context.Context, symbol, side string, newStop float64) error {
	const q = `UPDATE open_positions SET stop_loss = $1 WHERE symbol = $2 AND side = $3`
	if _, err := s.pool.Exec(ctx, q, newStop, symbol, side); err != nil {
		return fmt.Errorf("store: update position stop_loss: %w", err)
	}
	return nil
}

// RecordPartialTP is idempotent on (symbol, side, stage) — a conflicting
// insert is a no-op, matching the "stages execute in order and never
// twice" invariant for partial-TP rows.
func (s *Store) RecordPartialTP(ctx context.Context, rec PartialTPRecord) error {
	const q = `
		INSERT INTO partial_tp_history (symbol, side, stage, quantity, price, at)
		VALUES ($1,$2,$3,$4,$5,$6)
		ON CONFLICT (symbol, side, stage) DO NOTHING`
	_, err := s.pool.Exec(ctx, q, rec.Symbol, rec.Side, rec.Stage, rec.Quantity, rec.Price, rec.At)
	if err != nil {
		return fmt.Errorf("store: record partial tp: %w", err)
	}
	return nil
}

// PartialTPStageRecorded reports whether a given stage already has a row,
// backing the partial-TP executor's StageHistory.StageRecorded check.
func (s *Store) PartialTPStageRecorded(ctx context.Context, symbol, side string, stage int) (bool, error) {
	const q = `SELECT EXISTS(SELECT 1 FROM partial_tp_history WHERE symbol = $1 AND side = $2 AND stage = $3)`
	var exists bool
	if err := s.pool.QueryRow(ctx, q, symbol, side, stage).Scan(&exists); err != nil {
		return false, fmt.Errorf("store: partial tp stage recorded: %w", err)
	}
	return exists, nil
}

// RecordCloseEvent is a standalone insert used by the reversal monitor's
// emergency close, outside the ClosePositionFull transaction since the
// caller there handles position deletion itself.
func (s *Store) RecordCloseEvent(ctx context.Context, event CloseEvent) error {
	const q = `INSERT INTO close_events (symbol, side, reason, pnl, at) VALUES ($1,$2,$3,$4,$5)`
	_, err := s.pool.Exec(ctx, q, event.Symbol, event.Side, event.Reason, event.PnL, event.At)
	if err != nil {
		return fmt.Errorf("store: record close event: %w", err)
	}
	return nil
}

// DeleteOpenPosition removes the open_positions row for (symbol, side),
// the other half of the reversal monitor's emergency-close effect.
func (s *Store) DeleteOpenPosition(ctx context.Context, symbol, side string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM open_positions WHERE symbol = $1 AND side = $2`, symbol, side)
	if err != nil {
		return fmt.Errorf("store: delete open_position by symbol/side: %w", err)
	}
	return nil
}

// HasRecentClose answers the recent-close primitive shared by the
// partial-TP and reversal-monitor recent-close guards.
func (s *Store) HasRecentClose(ctx context.Context, symbol, side string, window time.Duration) (bool, error) {
	const q = `
		SELECT EXISTS(
			SELECT 1 FROM close_events
			WHERE symbol = $1 AND side = $2 AND at > $3
			AND (reason LIKE '%partial_close%' OR reason LIKE '%reversal%')
		)`
	var exists bool
	cutoff := time.Now().Add(-window)
	if err := s.pool.QueryRow(ctx, q, symbol, side, cutoff).Scan(&exists); err != nil {
		return false, fmt.Errorf("store: has_recent_close: %w", err)
	}
	return exists, nil
}

// RecordEquityPoint appends an equity-curve sample and reports whether it
// is a new peak.
func (s *Store) RecordEquityPoint(ctx context.Context, equity float64, at time.Time) (EquityPoint, error) {
	var peakEquity float64
	err := s.pool.QueryRow(ctx, `SELECT COALESCE(MAX(equity), 0) FROM equity_curve`).Scan(&peakEquity)
	if err != nil {
		return EquityPoint{}, fmt.Errorf("store: read peak equity: %w", err)
	}

	point := computeEquityPoint(peakEquity, equity, at)

	const q = `INSERT INTO equity_curve (at, equity, drawdown, is_peak) VALUES ($1,$2,$3,$4)`
	if _, err := s.pool.Exec(ctx, q, point.At, point.Equity, point.Drawdown, point.IsPeak); err != nil {
		return EquityPoint{}, fmt.Errorf("store: insert equity point: %w", err)
	}
	return point, nil
}

// computeEquityPoint is the pure peak/drawdown arithmetic behind
// RecordEquityPoint, split out so it can be exercised without a database.
func computeEquityPoint(peakEquity, equity float64, at time.Time) EquityPoint {
	isPeak := equity > peakEquity
	drawdown := 0.0
	if peakEquity > 0 && !isPeak {
		drawdown = (peakEquity - equity) / peakEquity
	}
	return EquityPoint{At: at, Equity: equity, Drawdown: drawdown, IsPeak: isPeak}
}

// OpenPositions lists every currently-open position row.
func (s *Store) OpenPositions(ctx context.Context) ([]Position, error) {
	const q = `SELECT id, symbol, side, entry_price, quantity, leverage, stop_loss, entry_stop_loss, take_profit, strategy, opened_at FROM open_positions`
	rows, err := s.pool.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("store: list open_positions: %w", err)
	}
	defer rows.Close()

	var out []Position
	for rows.Next() {
		var p Position
		if err := rows.Scan(&p.ID, &p.Symbol, &p.Side, &p.EntryPrice, &p.Quantity, &p.Leverage, &p.StopLoss, &p.EntryStopLoss, &p.TakeProfit, &p.Strategy, &p.OpenedAt); err != nil {
			return nil, fmt.Errorf("store: scan open_position: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// OrphanPriceOrders finds active-status price-orders with no matching open
// position (a startup integrity check run during reconciliation).
func (s *Store) OrphanPriceOrders(ctx context.Context) ([]Order, error) {
	const q = `
		SELECT po.id, po.position_id, po.symbol, po.order_id, po.kind, po.price, po.quantity, po.status
		FROM price_orders po
		LEFT JOIN open_positions op ON op.id = po.position_id
		WHERE po.status = 'active' AND op.id IS NULL`
	rows, err := s.pool.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("store: orphan price_orders: %w", err)
	}
	defer rows.Close()

	var out []Order
	for rows.Next() {
		var o Order
		if err := rows.Scan(&o.ID, &o.PositionID, &o.Symbol, &o.OrderID, &o.Kind, &o.Price, &o.Quantity, &o.Status); err != nil {
			return nil, fmt.Errorf("store: scan orphan order: %w", err)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}
