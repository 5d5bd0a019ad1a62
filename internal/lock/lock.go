// Package lock implements the lease-based, holder-identity-scoped
// distributed lock shared by the partial-TP executor and the reversal
// monitor, grounded on the teacher's internal/autopilot/instance_control.go
// SETNX/TTL instance-claim pattern (NewInstanceControl, TakeControl,
// ReleaseControl) generalized from a single singleton-instance claim into a
// keyed, reusable mutex, and backed by a Postgres row rather than Redis so
// the lease lives in the same system_config table as the rest of the
// persisted state instead of a separate cache the rest of the schema
// doesn't depend on.
package lock

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kvantix/perpfutures-core/internal/metrics"
)

// ErrHeld is returned by TryAcquire when another holder's lease is still
// live.
var ErrHeld = errors.New("lock: held by another holder")

const defaultLease = 30 * time.Second

// Locker is the shared distributed-lock primitive. Each lease is a row in
// system_config keyed by a namespaced lock key, carrying the current
// holder's identity and the timestamp of its last refresh.
type Locker struct {
	pool *pgxpool.Pool
}

// New builds a Locker over an already-connected pool (the same pool the
// store uses, since the lock table lives alongside the rest of the
// persisted state).
func New(pool *pgxpool.Pool) *Locker {
	return &Locker{pool: pool}
}

func recordKey(key string) string {
	return "lock:" + key
}

// TryAcquire inserts the lease row if absent, refreshes it in place if it
// already belongs to holder, fails if a different holder's lease is still
// within its window, and otherwise preempts a lease that has outlived its
// window, returning preemptedStale so the caller can log it.
func (l *Locker) TryAcquire(ctx context.Context, key, holder string) (acquired bool, preemptedStale bool, err error) {
	rk := recordKey(key)
	now := time.Now()

	const insert = `
		INSERT INTO system_config (key, holder, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (key) DO NOTHING`
	tag, err := l.pool.Exec(ctx, insert, rk, holder, now)
	if err != nil {
		return false, false, fmt.Errorf("lock: acquire %s: %w", key, err)
	}
	if tag.RowsAffected() == 1 {
		return true, false, nil
	}

	var currentHolder string
	var updatedAt time.Time
	const selectRow = `SELECT holder, updated_at FROM system_config WHERE key = $1`
	if err := l.pool.QueryRow(ctx, selectRow, rk).Scan(&currentHolder, &updatedAt); err != nil {
		return false, false, fmt.Errorf("lock: inspect %s: %w", key, err)
	}

	if currentHolder == holder {
		const refresh = `UPDATE system_config SET updated_at = $1 WHERE key = $2 AND holder = $3`
		if _, err := l.pool.Exec(ctx, refresh, now, rk, holder); err != nil {
			return false, false, fmt.Errorf("lock: refresh %s: %w", key, err)
		}
		return true, false, nil
	}

	if now.Sub(updatedAt) < defaultLease {
		return false, false, nil
	}

	// Stale: the lease outlived its window (crashed holder, clock skew) —
	// preempt it, guarding against a racing holder doing the same thing
	// between our SELECT and this UPDATE.
	const preempt = `UPDATE system_config SET holder = $1, updated_at = $2 WHERE key = $3 AND holder = $4`
	tag, err = l.pool.Exec(ctx, preempt, holder, now, rk, currentHolder)
	if err != nil {
		return false, false, fmt.Errorf("lock: preempt %s: %w", key, err)
	}
	if tag.RowsAffected() == 0 {
		return false, false, nil
	}
	return true, true, nil
}

// Release deletes the lease row only if holder still matches it, so a
// holder never releases a lease another holder has since acquired.
func (l *Locker) Release(ctx context.Context, key, holder string) error {
	rk := recordKey(key)
	const q = `DELETE FROM system_config WHERE key = $1 AND holder = $2`
	if _, err := l.pool.Exec(ctx, q, rk, holder); err != nil {
		return fmt.Errorf("lock: release %s: %w", key, err)
	}
	return nil
}

// StageKey builds the partial-TP stage lock key:
// partial_tp_{symbol}_{side}_stage{n}.
func StageKey(symbol, side string, stage int) string {
	return fmt.Sprintf("partial_tp_%s_%s_stage%d", symbol, side, stage)
}

// ReversalKey builds the reversal-monitor emergency-close lock key:
// reversal_close_{symbol}_{side}.
func ReversalKey(symbol, side string) string {
	return fmt.Sprintf("reversal_close_%s_%s", symbol, side)
}

// WithLock acquires key for holder, runs fn, and releases the lock
// afterward regardless of fn's outcome. Returns (false, nil) without
// running fn if the lock could not be acquired.
func WithLock(ctx context.Context, l *Locker, key, holder string, fn func() error) (ran bool, err error) {
	acquired, _, err := l.TryAcquire(ctx, key, holder)
	if err != nil {
		return false, err
	}
	if !acquired {
		metrics.LockContentions.WithLabelValues(lockPurpose(key)).Inc()
		return false, nil
	}
	defer func() {
		_ = l.Release(ctx, key, holder)
	}()
	return true, fn()
}

// lockPurpose maps a StageKey/ReversalKey to a low-cardinality metrics
// label ("partial_tp" or "reversal_close") instead of the per-symbol key
// itself.
func lockPurpose(key string) string {
	switch {
	case strings.HasPrefix(key, "partial_tp_"):
		return "partial_tp"
	case strings.HasPrefix(key, "reversal_close_"):
		return "reversal_close"
	default:
		return "other"
	}
}
