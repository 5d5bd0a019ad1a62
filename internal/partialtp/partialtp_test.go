package partialtp

import (
	"context"
	"testing"
	"time"

	"github.com/kvantix/perpfutures-core/internal/exchange"
)

type fakeCloses struct{ recent bool }

func (f *fakeCloses) HasRecentClose(ctx context.Context, symbol string, side exchange.Side, window time.Duration) (bool, error) {
	return f.recent, nil
}

type fakeHistory struct {
	recorded map[int]bool
	calls    []int
}

func newFakeHistory() *fakeHistory { return &fakeHistory{recorded: map[int]bool{}} }

func (f *fakeHistory) StageRecorded(ctx context.Context, symbol string, side exchange.Side, stage int) (bool, error) {
	return f.recorded[stage], nil
}

func (f *fakeHistory) RecordStage(ctx context.Context, symbol string, side exchange.Side, stage int, qty, price float64) error {
	f.recorded[stage] = true
	f.calls = append(f.calls, stage)
	return nil
}

type fakeOrders struct {
	closedQty  float64
	closeCalls int
	lastMode   StopMode
}

func (f *fakeOrders) ReduceOnlyClose(ctx context.Context, symbol string, side exchange.Side, qty float64) error {
	f.closedQty = qty
	f.closeCalls++
	return nil
}

func (f *fakeOrders) MigrateStop(ctx context.Context, symbol string, side exchange.Side, mode StopMode, price float64) error {
	f.lastMode = mode
	return nil
}

func TestRMultiple_AbsoluteDistance(t *testing.T) {
	pos := Position{EntryPrice: 100, EntryStopLoss: 95}
	if pos.RMultiple() != 5 {
		t.Fatalf("RMultiple = %v, want 5", pos.RMultiple())
	}
}

func TestTargetPrice_LongAndShort(t *testing.T) {
	long := Position{Side: exchange.SideLong, EntryPrice: 100, EntryStopLoss: 95}
	if got := long.TargetPrice(2); got != 110 {
		t.Fatalf("long TargetPrice(2) = %v, want 110", got)
	}
	short := Position{Side: exchange.SideShort, EntryPrice: 100, EntryStopLoss: 105}
	if got := short.TargetPrice(2); got != 90 {
		t.Fatalf("short TargetPrice(2) = %v, want 90", got)
	}
}

func TestStageQuantity_UsesConfiguredFractions(t *testing.T) {
	f := StageFractions{Stage1: 0.5, Stage2: 0.3, Stage3: 0.2}
	if got := stageQuantity(100, 1, f); got != 50 {
		t.Fatalf("stage 1 quantity = %v, want 50", got)
	}
	if got := stageQuantity(100, 3, f); got != 20 {
		t.Fatalf("stage 3 quantity = %v, want 20", got)
	}
}

func TestTriggered_LongRequiresPriceAboveTarget(t *testing.T) {
	pos := Position{Side: exchange.SideLong, EntryPrice: 100, EntryStopLoss: 95}
	if triggered(pos, 1, 104) {
		t.Fatalf("expected not triggered below target")
	}
	if !triggered(pos, 1, 105) {
		t.Fatalf("expected triggered at or above target")
	}
}
