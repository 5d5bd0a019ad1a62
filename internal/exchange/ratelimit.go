package exchange

import (
	"context"

	"golang.org/x/time/rate"
)

// Limiter bounds in-flight requests to an exchange, replacing the teacher's
// hand-rolled weight-budget tracker (internal/binance/rate_limiter.go) with
// golang.org/x/time/rate's token bucket, which already expresses the same
// "burst of N, refill at rate R" behavior idiomatically.
type Limiter struct {
	l *rate.Limiter
}

// NewLimiter builds a limiter allowing `burst` requests immediately and
// `perSecond` requests/second thereafter.
func NewLimiter(perSecond float64, burst int) *Limiter {
	return &Limiter{l: rate.NewLimiter(rate.Limit(perSecond), burst)}
}

// Wait blocks until a request slot is available or ctx is cancelled.
func (l *Limiter) Wait(ctx context.Context) error {
	return l.l.Wait(ctx)
}
