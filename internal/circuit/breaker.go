// Package circuit implements the account-level kill-switch referenced by
// the configuration surface's circuit-breaker settings: a closed/open/
// half-open state machine that halts new entries once losses or trade
// frequency cross configured thresholds, grounded on the teacher's
// internal/circuit/breaker.go state machine, stripped of its multi-tenant
// WebSocket-broadcast and per-user callback hooks (this core runs a single
// account, so State/TripReason is enough for the scheduler's own logging).
package circuit

import (
	"fmt"
	"math"
	"sync"
	"time"
)

// State is one of the three circuit-breaker states.
type State string

const (
	StateClosed   State = "closed"
	StateOpen     State = "open"
	StateHalfOpen State = "half_open"
)

// Config holds the kill-switch thresholds.
type Config struct {
	Enabled              bool
	MaxLossPerHourPct    float64
	MaxConsecutiveLosses int
	CooldownMinutes      int
	MaxTradesPerMinute   int
	MaxDailyLossPct      float64
	MaxDailyTrades       int
}

// DefaultConfig returns conservative defaults.
func DefaultConfig() Config {
	return Config{
		Enabled:              true,
		MaxLossPerHourPct:    3.0,
		MaxConsecutiveLosses: 5,
		CooldownMinutes:      30,
		MaxTradesPerMinute:   10,
		MaxDailyLossPct:      5.0,
		MaxDailyTrades:       100,
	}
}

// Breaker tracks rolling loss/trade-rate counters and trips trading off
// once any threshold is crossed, recovering into half-open after the
// cooldown and fully closing on the first winning trade after that.
type Breaker struct {
	cfg Config

	mu                sync.Mutex
	state             State
	consecutiveLosses int
	hourlyLossPct     float64
	dailyLossPct      float64
	tradesLastMinute  int
	dailyTrades       int
	tripReason        string
	lastTripAt        time.Time
	hourlyResetAt     time.Time
	dailyResetAt      time.Time
	minuteResetAt     time.Time
}

// New builds a Breaker in the closed state.
func New(cfg Config) *Breaker {
	now := time.Now()
	return &Breaker{
		cfg:           cfg,
		state:         StateClosed,
		hourlyResetAt: now.Add(time.Hour),
		dailyResetAt:  now.Truncate(24 * time.Hour).Add(24 * time.Hour),
		minuteResetAt: now.Add(time.Minute),
	}
}

// CanTrade reports whether a new position may be opened, and why not.
func (b *Breaker) CanTrade() (bool, string) {
	if !b.cfg.Enabled {
		return true, ""
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.resetCountersIfNeeded(time.Now())

	if b.state == StateOpen {
		elapsed := time.Since(b.lastTripAt)
		cooldown := time.Duration(b.cfg.CooldownMinutes) * time.Minute
		if elapsed < cooldown {
			return false, fmt.Sprintf("circuit breaker open, cooldown remaining %v (%s)",
				(cooldown - elapsed).Round(time.Second), b.tripReason)
		}
		b.state = StateHalfOpen
	}

	switch {
	case b.hourlyLossPct >= b.cfg.MaxLossPerHourPct:
		return false, fmt.Sprintf("hourly loss limit reached: %.2f%% >= %.2f%%", b.hourlyLossPct, b.cfg.MaxLossPerHourPct)
	case b.dailyLossPct >= b.cfg.MaxDailyLossPct:
		return false, fmt.Sprintf("daily loss limit reached: %.2f%% >= %.2f%%", b.dailyLossPct, b.cfg.MaxDailyLossPct)
	case b.consecutiveLosses >= b.cfg.MaxConsecutiveLosses:
		return false, fmt.Sprintf("max consecutive losses reached: %d", b.consecutiveLosses)
	case b.tradesLastMinute >= b.cfg.MaxTradesPerMinute:
		return false, fmt.Sprintf("rate limit reached: %d trades/minute", b.tradesLastMinute)
	case b.dailyTrades >= b.cfg.MaxDailyTrades:
		return false, fmt.Sprintf("daily trade limit reached: %d trades", b.dailyTrades)
	}
	return true, ""
}

// RecordTrade folds a closed trade's PnL percentage into the rolling
// counters and trips the breaker if a threshold is now crossed.
func (b *Breaker) RecordTrade(pnlPercent float64) {
	if !b.cfg.Enabled || math.IsNaN(pnlPercent) || math.IsInf(pnlPercent, 0) {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()
	b.resetCountersIfNeeded(now)
	b.tradesLastMinute++
	b.dailyTrades++

	if pnlPercent < 0 {
		b.consecutiveLosses++
		b.hourlyLossPct += -pnlPercent
		b.dailyLossPct += -pnlPercent
	} else {
		b.consecutiveLosses = 0
		if b.state == StateHalfOpen {
			b.state = StateClosed
			b.tripReason = ""
		}
	}

	var reason string
	switch {
	case b.consecutiveLosses >= b.cfg.MaxConsecutiveLosses:
		reason = fmt.Sprintf("consecutive losses: %d", b.consecutiveLosses)
	case b.hourlyLossPct >= b.cfg.MaxLossPerHourPct:
		reason = fmt.Sprintf("hourly loss: %.2f%%", b.hourlyLossPct)
	case b.dailyLossPct >= b.cfg.MaxDailyLossPct:
		reason = fmt.Sprintf("daily loss: %.2f%%", b.dailyLossPct)
	}
	if reason != "" {
		b.state = StateOpen
		b.lastTripAt = now
		b.tripReason = reason
	}
}

func (b *Breaker) resetCountersIfNeeded(now time.Time) {
	if now.After(b.minuteResetAt) {
		b.tradesLastMinute = 0
		b.minuteResetAt = now.Add(time.Minute)
	}
	if now.After(b.hourlyResetAt) {
		b.hourlyLossPct = 0
		b.hourlyResetAt = now.Add(time.Hour)
	}
	if now.After(b.dailyResetAt) {
		b.dailyLossPct = 0
		b.dailyTrades = 0
		b.dailyResetAt = now.Truncate(24 * time.Hour).Add(24 * time.Hour)
	}
}

// State returns the current breaker state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// TripReason returns why the breaker last tripped, empty if it hasn't.
func (b *Breaker) TripReason() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.tripReason
}
