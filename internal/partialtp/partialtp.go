// Package partialtp executes staged R-multiple take-profits on an open
// position, grounded on the teacher's R-multiple/cycle bookkeeping in
// internal/autopilot/scalp_reentry_logic.go (checkScalpReentryTP,
// executeTPSell, calculateNewBreakeven) but made distributed-lock-safe via
// internal/lock, since the teacher's version assumes a single in-process
// autopilot instance and this one may run several schedulers against the
// same position.
package partialtp

import (
	"context"
	"fmt"
	"time"

	"github.com/kvantix/perpfutures-core/internal/exchange"
	"github.com/kvantix/perpfutures-core/internal/lock"
)

// StopMode is the protective-stop regime a position enters after each
// completed stage.
type StopMode string

const (
	StopModeOriginal  StopMode = "original"
	StopModeBreakeven StopMode = "breakeven"
	StopModeRiskFree  StopMode = "risk_free_runner"
	StopModeTrailing  StopMode = "trailing"
)

// StageFractions are the remaining-quantity fractions taken at stages 1..3,
// configurable per caller.
type StageFractions struct {
	Stage1, Stage2, Stage3 float64
}

// DefaultStageFractions is the 33%/33%/34% split used when no caller-supplied
// fractions are configured.
var DefaultStageFractions = StageFractions{Stage1: 0.33, Stage2: 0.33, Stage3: 0.34}

// Position is the minimal state the executor needs about an open position.
type Position struct {
	Symbol         string
	Side           exchange.Side
	EntryPrice     float64
	EntryStopLoss  float64
	RemainingQty   float64
	CompletedStages map[int]bool
}

// RMultiple returns R = |entry - entry_stop_loss|, the unit each stage's
// target price is measured in.
func (p Position) RMultiple() float64 {
	return abs(p.EntryPrice - p.EntryStopLoss)
}

// TargetPrice returns the trigger price for stage n (1..3), signed by side.
func (p Position) TargetPrice(stage int) float64 {
	r := p.RMultiple()
	if p.Side == exchange.SideLong {
		return p.EntryPrice + float64(stage)*r
	}
	return p.EntryPrice - float64(stage)*r
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

// RecentCloseChecker guards against firing a stage against a position that
// just had a partial-close or reversal close-event recorded for it: whether
// such a close-event for (symbol, side) happened within the last window.
type RecentCloseChecker interface {
	HasRecentClose(ctx context.Context, symbol string, side exchange.Side, window time.Duration) (bool, error)
}

// StageHistory answers whether a given stage has already been recorded,
// guarding against double-execution on a crash-recovery restart.
type StageHistory interface {
	StageRecorded(ctx context.Context, symbol string, side exchange.Side, stage int) (bool, error)
	RecordStage(ctx context.Context, symbol string, side exchange.Side, stage int, qty, price float64) error
}

// OrderCloser places the reduce-only market close and migrates the
// protective stop, the two exchange-facing effects of a completed stage.
type OrderCloser interface {
	ReduceOnlyClose(ctx context.Context, symbol string, side exchange.Side, qty float64) error
	MigrateStop(ctx context.Context, symbol string, side exchange.Side, mode StopMode, price float64) error
}

// Executor runs the staged partial-TP protocol for one position at a time.
type Executor struct {
	Locker    *lock.Locker
	Holder    string
	Closes    RecentCloseChecker
	History   StageHistory
	Orders    OrderCloser
	Fractions StageFractions
}

const recentCloseWindow = 30 * time.Second

// TryStage attempts to execute the given stage (1, 2, or 3) if price has
// reached its trigger, running the full guard sequence in order: recent-close
// suppression, distributed lock, position-still-exists and
// not-already-recorded checks, then close + record + stop migration.
func (e *Executor) TryStage(ctx context.Context, pos Position, stage int, currentPrice float64) (executed bool, err error) {
	if !triggered(pos, stage, currentPrice) {
		return false, nil
	}

	sideStr := sideString(pos.Side)
	recent, err := e.Closes.HasRecentClose(ctx, pos.Symbol, pos.Side, recentCloseWindow)
	if err != nil {
		return false, fmt.Errorf("partialtp: recent-close check: %w", err)
	}
	if recent {
		return false, nil
	}

	key := lock.StageKey(pos.Symbol, sideStr, stage)
	ran, err := lock.WithLock(ctx, e.Locker, key, e.Holder, func() error {
		already, err := e.History.StageRecorded(ctx, pos.Symbol, pos.Side, stage)
		if err != nil {
			return fmt.Errorf("stage history check: %w", err)
		}
		if already {
			return nil
		}
		if pos.RemainingQty <= 0 {
			return nil
		}

		qty := stageQuantity(pos.RemainingQty, stage, e.Fractions)
		if err := e.Orders.ReduceOnlyClose(ctx, pos.Symbol, pos.Side, qty); err != nil {
			return fmt.Errorf("reduce-only close: %w", err)
		}
		if err := e.History.RecordStage(ctx, pos.Symbol, pos.Side, stage, qty, currentPrice); err != nil {
			return fmt.Errorf("record stage: %w", err)
		}
		if err := migrateStop(ctx, e.Orders, pos, stage, currentPrice); err != nil {
			return fmt.Errorf("migrate stop: %w", err)
		}
		executed = true
		return nil
	})
	if err != nil {
		return false, err
	}
	if !ran {
		return false, nil
	}
	return executed, nil
}

func triggered(pos Position, stage int, currentPrice float64) bool {
	target := pos.TargetPrice(stage)
	if pos.Side == exchange.SideLong {
		return currentPrice >= target
	}
	return currentPrice <= target
}

// stageQuantity applies the configured fraction of the quantity remaining
// at the time this stage fires.
func stageQuantity(remaining float64, stage int, f StageFractions) float64 {
	switch stage {
	case 1:
		return remaining * f.Stage1
	case 2:
		return remaining * f.Stage2
	default:
		return remaining * f.Stage3
	}
}

// migrateStop moves the protective stop for the stage just completed: stage 1
// to break-even, stage 2 to a risk-free 1R runner, stage 3 to trailing.
func migrateStop(ctx context.Context, orders OrderCloser, pos Position, stage int, currentPrice float64) error {
	switch stage {
	case 1:
		return orders.MigrateStop(ctx, pos.Symbol, pos.Side, StopModeBreakeven, pos.EntryPrice)
	case 2:
		return orders.MigrateStop(ctx, pos.Symbol, pos.Side, StopModeRiskFree, pos.TargetPrice(1))
	default:
		return orders.MigrateStop(ctx, pos.Symbol, pos.Side, StopModeTrailing, currentPrice)
	}
}

func sideString(side exchange.Side) string {
	if side == exchange.SideLong {
		return "long"
	}
	return "short"
}
