package store

import (
	"testing"
	"time"
)

// Exercises the pure peak/drawdown arithmetic without a database, matching
// the teacher's own split between DB-independent unit tests and the
// integration tests in internal/database/repository_settlement_test.go
// that require a live Postgres instance.

func TestComputeEquityPoint_NewPeakHasZeroDrawdown(t *testing.T) {
	at := time.Unix(0, 0)
	p := computeEquityPoint(1000, 1200, at)
	if !p.IsPeak {
		t.Fatalf("expected new high to be flagged as peak")
	}
	if p.Drawdown != 0 {
		t.Fatalf("expected zero drawdown at a new peak, got %v", p.Drawdown)
	}
}

func TestComputeEquityPoint_BelowPeakComputesDrawdown(t *testing.T) {
	p := computeEquityPoint(1000, 900, time.Unix(0, 0))
	if p.IsPeak {
		t.Fatalf("expected below-peak equity to not be flagged as peak")
	}
	if p.Drawdown != 0.1 {
		t.Fatalf("drawdown = %v, want 0.1", p.Drawdown)
	}
}

func TestComputeEquityPoint_FirstSampleWithZeroPriorPeakIsPeak(t *testing.T) {
	p := computeEquityPoint(0, 500, time.Unix(0, 0))
	if !p.IsPeak {
		t.Fatalf("expected the very first sample to count as a new peak")
	}
	if p.Drawdown != 0 {
		t.Fatalf("expected zero drawdown on the first sample, got %v", p.Drawdown)
	}
}
