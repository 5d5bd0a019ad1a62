package store

import (
	"context"
	"fmt"
	"time"
)

// Migrate applies the persisted-state schema, grounded on the teacher's
// internal/database/db_futures_migration.go pattern: a slice of idempotent
// `CREATE TABLE IF NOT EXISTS`/`CREATE INDEX IF NOT EXISTS` statements
// executed in order, run from the `db init` CLI command rather than a
// separate migration runner.
func (s *Store) Migrate(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS open_positions (
			id SERIAL PRIMARY KEY,
			symbol VARCHAR(20) NOT NULL,
			side VARCHAR(10) NOT NULL,
			entry_price DOUBLE PRECISION NOT NULL,
			quantity DOUBLE PRECISION NOT NULL,
			leverage INTEGER NOT NULL,
			stop_loss DOUBLE PRECISION NOT NULL,
			entry_stop_loss DOUBLE PRECISION NOT NULL,
			take_profit DOUBLE PRECISION NOT NULL DEFAULT 0,
			strategy VARCHAR(30) NOT NULL,
			opened_at TIMESTAMPTZ NOT NULL,
			UNIQUE (symbol, side)
		)`,
		`CREATE TABLE IF NOT EXISTS trades (
			id SERIAL PRIMARY KEY,
			position_id BIGINT,
			symbol VARCHAR(20) NOT NULL,
			side VARCHAR(10) NOT NULL,
			type VARCHAR(20) NOT NULL,
			price DOUBLE PRECISION NOT NULL,
			quantity DOUBLE PRECISION NOT NULL,
			fee DOUBLE PRECISION NOT NULL DEFAULT 0,
			at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_trades_position_id ON trades(position_id)`,
		`CREATE TABLE IF NOT EXISTS price_orders (
			id SERIAL PRIMARY KEY,
			position_id BIGINT NOT NULL,
			symbol VARCHAR(20) NOT NULL,
			order_id VARCHAR(64) NOT NULL UNIQUE,
			kind VARCHAR(20) NOT NULL,
			price DOUBLE PRECISION NOT NULL DEFAULT 0,
			quantity DOUBLE PRECISION NOT NULL,
			status VARCHAR(20) NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_price_orders_position_id ON price_orders(position_id)`,
		`CREATE INDEX IF NOT EXISTS idx_price_orders_status ON price_orders(status)`,
		`CREATE TABLE IF NOT EXISTS close_events (
			id SERIAL PRIMARY KEY,
			symbol VARCHAR(20) NOT NULL,
			side VARCHAR(10) NOT NULL,
			reason VARCHAR(40) NOT NULL,
			pnl DOUBLE PRECISION NOT NULL DEFAULT 0,
			at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_close_events_symbol_side_at ON close_events(symbol, side, at DESC)`,
		`CREATE TABLE IF NOT EXISTS partial_tp_history (
			id SERIAL PRIMARY KEY,
			symbol VARCHAR(20) NOT NULL,
			side VARCHAR(10) NOT NULL,
			stage INTEGER NOT NULL,
			quantity DOUBLE PRECISION NOT NULL,
			price DOUBLE PRECISION NOT NULL,
			at TIMESTAMPTZ NOT NULL,
			UNIQUE (symbol, side, stage)
		)`,
		`CREATE TABLE IF NOT EXISTS equity_curve (
			id SERIAL PRIMARY KEY,
			at TIMESTAMPTZ NOT NULL,
			equity DOUBLE PRECISION NOT NULL,
			drawdown DOUBLE PRECISION NOT NULL DEFAULT 0,
			is_peak BOOLEAN NOT NULL DEFAULT FALSE
		)`,
		`CREATE INDEX IF NOT EXISTS idx_equity_curve_at ON equity_curve(at DESC)`,
		`CREATE TABLE IF NOT EXISTS account_history (
			id SERIAL PRIMARY KEY,
			balance DOUBLE PRECISION NOT NULL,
			available DOUBLE PRECISION NOT NULL,
			at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS system_config (
			key VARCHAR(128) PRIMARY KEY,
			holder VARCHAR(128) NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)`,
	}

	for _, stmt := range statements {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("store: migrate: %w", err)
		}
	}
	return nil
}

// SeedInitialAccount inserts the initial account_history row `db init`
// requires, skipping the insert if a row already exists so re-running init
// is harmless.
func (s *Store) SeedInitialAccount(ctx context.Context, initialBalance float64, at time.Time) error {
	var exists bool
	if err := s.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM account_history)`).Scan(&exists); err != nil {
		return fmt.Errorf("store: seed initial account: check existing: %w", err)
	}
	if exists {
		return nil
	}
	const q = `INSERT INTO account_history (balance, available, at) VALUES ($1, $1, $2)`
	if _, err := s.pool.Exec(ctx, q, initialBalance, at); err != nil {
		return fmt.Errorf("store: seed initial account: %w", err)
	}
	return nil
}
