package scheduler

import (
	"testing"

	"github.com/kvantix/perpfutures-core/internal/exchange"
	"github.com/kvantix/perpfutures-core/internal/score"
	"github.com/kvantix/perpfutures-core/internal/strategy"
)

func TestClosingSize_LongClosesWithNegativeSize(t *testing.T) {
	if got := closingSize(exchange.SideLong, 2.5); got != -2.5 {
		t.Fatalf("closingSize(long, 2.5) = %v, want -2.5", got)
	}
}

func TestClosingSize_ShortClosesWithPositiveSize(t *testing.T) {
	if got := closingSize(exchange.SideShort, 2.5); got != 2.5 {
		t.Fatalf("closingSize(short, 2.5) = %v, want 2.5", got)
	}
}

func TestLiquidityTierFor_MajorPairs(t *testing.T) {
	for _, sym := range []string{"BTC", "ETH"} {
		if got := liquidityTierFor(sym); got != score.LiquidityMajor {
			t.Fatalf("liquidityTierFor(%s) = %v, want LiquidityMajor", sym, got)
		}
	}
}

func TestLiquidityTierFor_SecondTierPairs(t *testing.T) {
	for _, sym := range []string{"SOL", "BNB", "XRP", "ADA", "DOGE"} {
		if got := liquidityTierFor(sym); got != score.LiquiditySecondTier {
			t.Fatalf("liquidityTierFor(%s) = %v, want LiquiditySecondTier", sym, got)
		}
	}
}

func TestLiquidityTierFor_DefaultsToOther(t *testing.T) {
	if got := liquidityTierFor("SHIB"); got != score.LiquidityOther {
		t.Fatalf("liquidityTierFor(SHIB) = %v, want LiquidityOther", got)
	}
}

func TestOrderKey_DistinguishesStrategyOnSameSymbol(t *testing.T) {
	a := orderKey(score.Result{Symbol: "BTC", Strategy: strategy.Kind("trend")})
	b := orderKey(score.Result{Symbol: "BTC", Strategy: strategy.Kind("reversion")})
	if a == b {
		t.Fatalf("expected distinct keys for different strategies on the same symbol, got %q twice", a)
	}
}

func TestOrderKey_StableForIdenticalResult(t *testing.T) {
	a := orderKey(score.Result{Symbol: "ETH", Strategy: strategy.Kind("trend")})
	b := orderKey(score.Result{Symbol: "ETH", Strategy: strategy.Kind("trend")})
	if a != b {
		t.Fatalf("expected identical keys for identical symbol/strategy pairs, got %q and %q", a, b)
	}
}

func TestDefaultHolder_NonEmpty(t *testing.T) {
	if h := defaultHolder(); h == "" {
		t.Fatalf("expected a non-empty default holder identity")
	}
}

func TestDefaultConfig_MatchesDocumentedDefaults(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.MaxPositions != 5 {
		t.Fatalf("MaxPositions = %d, want 5", cfg.MaxPositions)
	}
	if cfg.MaxLeverage != 10 {
		t.Fatalf("MaxLeverage = %d, want 10", cfg.MaxLeverage)
	}
	if cfg.MaxHoldingHours != 36 {
		t.Fatalf("MaxHoldingHours = %v, want 36", cfg.MaxHoldingHours)
	}
	if !cfg.EnableTrailingStop {
		t.Fatalf("expected trailing stop enabled by default")
	}
	if cfg.MinOpportunityScore != 60 {
		t.Fatalf("MinOpportunityScore = %d, want 60", cfg.MinOpportunityScore)
	}
}
