package exchange

import (
	"context"
	"fmt"

	"github.com/kvantix/perpfutures-core/internal/errs"
	"github.com/kvantix/perpfutures-core/internal/logging"
)

// ProtectiveOrderPlacer is the subset of Adapter the shared stop-loss
// contract below drives; both the linear and inverse adapters satisfy it
// and delegate their SetPositionStopLoss/CancelPositionStopLoss to
// ApplyProtectiveStop/CancelProtectiveStop so the validation and retry
// policy lives in exactly one place instead of being duplicated per
// variant, the way the teacher duplicated signed-request plumbing across
// futures_client.go and futures_client_cached.go.
type ProtectiveOrderPlacer interface {
	placeStopOrder(ctx context.Context, contract string, side Side, quantity, stopPrice float64, orderType PriceOrderType) (string, error)
	cancelStopOrders(ctx context.Context, contract string) error
	listStopOrders(ctx context.Context, contract string) ([]PriceOrder, error)
}

const (
	atrSafetyDistance   = 0.015 // 1.5% clear of mark when re-deriving a violated stop
	minMarkDistanceWarn = 0.003 // 0.3% minimum distance from mark, warn-only
)

// ApplyProtectiveStop implements the shared protective-stop contract:
//
//  1. cancel any existing protective orders for the contract
//  2. validate stop/mark/take-profit ordering for the position's side
//     (long: stop < mark < takeProfit; short: takeProfit < mark < stop)
//  3. on a single ordering violation, re-derive the stop from the mark
//     price with a 1.5% safety distance and retry once
//  4. warn (never reject) if the stop sits under 0.3% of the mark
//  5. quantize both prices to the contract's tick size
//  6. submit both legs as reduce-only trigger orders
//  7. if one leg fails after a successful placement of the other, the
//     successful leg is preserved and reported back, not rolled back
//
// Transport-level timeouts are retried with Transport's exponential backoff
// (1s, 2s, 4s; see backoffDelay in transport.go); validation failures are
// not retried beyond the one re-derivation attempt.
func ApplyProtectiveStop(ctx context.Context, p ProtectiveOrderPlacer, log *logging.Logger, params SetStopParams, tickSize float64) (SetStopResult, error) {
	if err := p.cancelStopOrders(ctx, params.Symbol); err != nil {
		log.Warnf("cancel existing protective orders for %s: %v", params.Symbol, err)
	}

	stopPrice, tpPrice, err := validateOrDeriveStop(params)
	if err != nil {
		return SetStopResult{}, errs.Wrap(errs.CategoryPriceValidation, "protective", "%v", err)
	}

	if params.MarkPrice > 0 {
		dist := distanceFromMark(stopPrice, params.MarkPrice)
		if dist < minMarkDistanceWarn {
			log.Warnf("stop for %s sits only %.3f%% from mark %.8f, below the %.1f%% guideline",
				params.Symbol, dist*100, params.MarkPrice, minMarkDistanceWarn*100)
		}
	}

	stopPrice = QuantizePriceValue(stopPrice, tickSize)
	tpPrice = QuantizePriceValue(tpPrice, tickSize)

	result := SetStopResult{}

	stopID, stopErr := p.placeStopOrder(ctx, params.Symbol, params.Side, params.Quantity, stopPrice, PriceOrderStopLoss)
	if stopErr != nil {
		log.Errorf(stopErr, "place stop-loss for %s failed", params.Symbol)
	} else {
		result.StopOrderID = stopID
	}

	tpID, tpErr := p.placeStopOrder(ctx, params.Symbol, params.Side, params.Quantity, tpPrice, PriceOrderTakeProfit)
	if tpErr != nil {
		log.Errorf(tpErr, "place take-profit for %s failed", params.Symbol)
	} else {
		result.TPOrderID = tpID
	}

	switch {
	case stopErr != nil && tpErr != nil:
		return result, errs.Wrap(errs.CategoryTransport, "protective", "both legs failed for %s: stop=%v tp=%v", params.Symbol, stopErr, tpErr)
	case stopErr != nil:
		result.Message = fmt.Sprintf("take-profit placed, stop-loss failed: %v", stopErr)
		return result, nil
	case tpErr != nil:
		result.Message = fmt.Sprintf("stop-loss placed, take-profit failed: %v", tpErr)
		return result, nil
	}

	result.OK = true
	return result, nil
}

// CancelProtectiveStop cancels every protective order on the contract.
func CancelProtectiveStop(ctx context.Context, p ProtectiveOrderPlacer, contract string) error {
	return p.cancelStopOrders(ctx, contract)
}

func validateOrDeriveStop(params SetStopParams) (stopPrice, tpPrice float64, err error) {
	stopPrice, tpPrice = params.StopPrice, params.TakeProfit
	ordered := isOrdered(params.Side, stopPrice, params.MarkPrice, tpPrice)
	if ordered || params.MarkPrice <= 0 {
		return stopPrice, tpPrice, nil
	}

	switch params.Side {
	case SideLong:
		stopPrice = params.MarkPrice * (1 - atrSafetyDistance)
	case SideShort:
		stopPrice = params.MarkPrice * (1 + atrSafetyDistance)
	default:
		return 0, 0, fmt.Errorf("unknown side %q", params.Side)
	}

	if !isOrdered(params.Side, stopPrice, params.MarkPrice, tpPrice) {
		return 0, 0, fmt.Errorf("stop/mark/take-profit ordering still invalid after re-derivation: stop=%.8f mark=%.8f tp=%.8f",
			stopPrice, params.MarkPrice, tpPrice)
	}
	return stopPrice, tpPrice, nil
}

func isOrdered(side Side, stop, mark, tp float64) bool {
	switch side {
	case SideLong:
		return stop < mark && mark < tp
	case SideShort:
		return tp < mark && mark < stop
	default:
		return false
	}
}

func distanceFromMark(price, mark float64) float64 {
	if mark == 0 {
		return 0
	}
	d := (price - mark) / mark
	if d < 0 {
		d = -d
	}
	return d
}
