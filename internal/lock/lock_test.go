package lock

import "testing"

func TestStageKey_Format(t *testing.T) {
	if got := StageKey("BTCUSDT", "long", 2); got != "partial_tp_BTCUSDT_long_stage2" {
		t.Fatalf("StageKey = %q", got)
	}
}

func TestReversalKey_Format(t *testing.T) {
	if got := ReversalKey("BTCUSDT", "short"); got != "reversal_close_BTCUSDT_short" {
		t.Fatalf("ReversalKey = %q", got)
	}
}

func TestRecordKey_Namespaced(t *testing.T) {
	if got := recordKey("partial_tp_BTCUSDT_long_stage1"); got != "lock:partial_tp_BTCUSDT_long_stage1" {
		t.Fatalf("recordKey = %q", got)
	}
}

func TestLockPurpose_KnownPrefixes(t *testing.T) {
	if got := lockPurpose(StageKey("BTCUSDT", "long", 1)); got != "partial_tp" {
		t.Fatalf("lockPurpose(stage key) = %q, want partial_tp", got)
	}
	if got := lockPurpose(ReversalKey("BTCUSDT", "short")); got != "reversal_close" {
		t.Fatalf("lockPurpose(reversal key) = %q, want reversal_close", got)
	}
	if got := lockPurpose("something_else"); got != "other" {
		t.Fatalf("lockPurpose(unknown) = %q, want other", got)
	}
}
