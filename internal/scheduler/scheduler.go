// Package scheduler runs the periodic trading tick and the shorter
// monitor loop that wires every other package together, grounded
// on the teacher's internal/autopilot/controller.go runLoop/evaluateSymbol
// shape (a ticker-driven loop selecting on a stop channel, evaluating each
// watch-listed symbol, then deciding and executing) and its
// internal/bot/bot.go goroutine-per-concern Start method.
package scheduler

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/kvantix/perpfutures-core/internal/candle"
	"github.com/kvantix/perpfutures-core/internal/circuit"
	"github.com/kvantix/perpfutures-core/internal/exchange"
	"github.com/kvantix/perpfutures-core/internal/lock"
	"github.com/kvantix/perpfutures-core/internal/logging"
	"github.com/kvantix/perpfutures-core/internal/metrics"
	"github.com/kvantix/perpfutures-core/internal/partialtp"
	"github.com/kvantix/perpfutures-core/internal/regime"
	"github.com/kvantix/perpfutures-core/internal/reversal"
	"github.com/kvantix/perpfutures-core/internal/score"
	"github.com/kvantix/perpfutures-core/internal/stoploss"
	"github.com/kvantix/perpfutures-core/internal/store"
	"github.com/kvantix/perpfutures-core/internal/strategy"
)

// TimeframeTriple names the three candle intervals a trading_strategy
// config value resolves to, feeding the primary/confirm/filter frames the
// regime classifier and strategy router expect.
type TimeframeTriple struct {
	Primary exchange.Interval
	Confirm exchange.Interval
	Filter  exchange.Interval
}

// Config bundles every tunable the scheduler itself reads.
// It is intentionally a plain struct rather than a pointer to the
// process-wide config so callers can build it from whichever config
// loader they prefer.
type Config struct {
	Symbols                   []string
	Timeframes                TimeframeTriple
	TickInterval              time.Duration
	MonitorInterval           time.Duration
	MaxPositions              int
	MaxLeverage               int
	MaxHoldingHours           float64
	MaxConcurrency            int64
	MinOpportunityScore       int
	MaxOpportunities          int
	EnableTrailingStop        bool
	StopConfig                stoploss.Config
	StageFractions            partialtp.StageFractions
	AccountDrawdownWarningPct float64
	InitialBalance            float64
	Holder                    string
	Circuit                   circuit.Config
}

// DefaultConfig returns the scheduler's out-of-the-box tuning.
func DefaultConfig() Config {
	return Config{
		TickInterval:        5 * time.Minute,
		MonitorInterval:     30 * time.Second,
		MaxPositions:        5,
		MaxLeverage:         10,
		MaxHoldingHours:     36,
		MaxConcurrency:      4,
		MinOpportunityScore: 60,
		MaxOpportunities:    5,
		EnableTrailingStop:  true,
		StopConfig:          stoploss.DefaultConfig(),
		StageFractions:      partialtp.DefaultStageFractions,
		Holder:              defaultHolder(),
		Circuit:             circuit.DefaultConfig(),
	}
}

func defaultHolder() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "unknown-host"
	}
	return fmt.Sprintf("%s-%d", host, os.Getpid())
}

// openPosition mirrors the subset of store.Position the scheduler
// actively reasons about during a tick.
type openPosition struct {
	store.Position
}

// Scheduler owns one tick loop and one monitor loop over a fixed
// watch-list, coordinating the regime/strategy/score/stoploss pipeline,
// the partial-TP executor, and the reversal monitor through a shared
// Store and distributed Locker so the two monitor-loop consumers never
// step on each other's stage/emergency-close locks.
type Scheduler struct {
	cfg     Config
	adapter exchange.Adapter
	store   *store.Store
	locker  *lock.Locker
	log     *logging.Logger

	partialTP *partialtp.Executor
	reversalM *reversal.Monitor
	breaker   *circuit.Breaker

	mu       sync.Mutex
	histories map[string]*reversal.History // keyed by symbol+side
}

// New wires every collaborator into a Scheduler. orders and closer adapt
// the exchange.Adapter to the small interfaces partialtp and reversal
// depend on.
func New(cfg Config, adapter exchange.Adapter, st *store.Store, locker *lock.Locker, log *logging.Logger) *Scheduler {
	orders := &exchangeOrderCloser{adapter: adapter, store: st}
	closer := &exchangePositionCloser{adapter: adapter}

	s := &Scheduler{
		cfg:       cfg,
		adapter:   adapter,
		store:     st,
		locker:    locker,
		log:       log,
		histories: make(map[string]*reversal.History),
		breaker:   circuit.New(cfg.Circuit),
	}

	s.partialTP = &partialtp.Executor{
		Locker:    locker,
		Holder:    cfg.Holder,
		Closes:    &storeRecentCloseChecker{store: st},
		History:   &storePartialTPHistory{store: st},
		Orders:    orders,
		Fractions: cfg.StageFractions,
	}
	s.reversalM = &reversal.Monitor{
		Locker: locker,
		Holder: cfg.Holder,
		Closer: closer,
		Store:  &storeReversalPositionStore{store: st},
	}
	return s
}

// Run starts the tick loop and the monitor loop and blocks until ctx is
// cancelled, at which point it drains in-flight work and returns: a
// graceful-shutdown signal drains in-flight ticks, releases all locks
// (each WithLock call's defer), and lets the current equity-curve write
// finish before the process exits.
func (s *Scheduler) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		s.runTickLoop(ctx)
	}()
	go func() {
		defer wg.Done()
		s.runMonitorLoop(ctx)
	}()

	wg.Wait()
	return ctx.Err()
}

func (s *Scheduler) runTickLoop(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.TickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			tickCtx, cancel := context.WithTimeout(ctx, s.cfg.TickInterval)
			start := time.Now()
			if err := s.runTick(tickCtx); err != nil {
				s.log.Error(err, "tick failed")
				metrics.RecordError("", "scheduler.tick")
			}
			metrics.TickDuration.WithLabelValues("main").Observe(time.Since(start).Seconds())
			cancel()
		}
	}
}

func (s *Scheduler) runMonitorLoop(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.MonitorInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			monCtx, cancel := context.WithTimeout(ctx, s.cfg.MonitorInterval)
			start := time.Now()
			if err := s.runMonitor(monCtx); err != nil {
				s.log.Error(err, "monitor pass failed")
				metrics.RecordError("", "scheduler.monitor")
			}
			metrics.TickDuration.WithLabelValues("monitor").Observe(time.Since(start).Seconds())
			cancel()
		}
	}
}

// runTick runs one pass through the five-step tick: equity snapshot,
// reconcile, trailing/max-holding maintenance, scan, open.
func (s *Scheduler) runTick(ctx context.Context) error {
	// Step 1: refresh account snapshot, append to equity curve.
	account, err := s.adapter.Account(ctx)
	if err != nil {
		s.log.Fields(map[string]any{"error": err}).Warn("account refresh failed")
	} else {
		point, err := s.store.RecordEquityPoint(ctx, account.Total, time.Now())
		if err != nil {
			s.log.Fields(map[string]any{"error": err}).Warn("equity point record failed")
		} else {
			metrics.AccountDrawdown.Set(point.Drawdown * 100)
			if point.Drawdown > 0 {
				s.checkDrawdownWarning(point.Drawdown)
			}
		}
	}

	// Step 2: reconcile exchange positions with the store.
	open, err := s.reconcilePositions(ctx)
	if err != nil {
		return fmt.Errorf("scheduler: reconcile positions: %w", err)
	}
	metrics.OpenPositions.Set(float64(len(open)))

	// Step 3: per open position, attempt a trailing-stop update and
	// enforce the max-holding-time kill-switch. Partial-TP and reversal
	// close are the monitor loop's job.
	for _, pos := range open {
		if s.cfg.EnableTrailingStop {
			s.updateTrailing(ctx, pos)
		}
		s.enforceMaxHolding(ctx, pos)
	}

	// Step 4/5: budget new positions, rank opportunities, open the
	// top survivor.
	budget := s.cfg.MaxPositions - len(open)
	if budget <= 0 {
		return nil
	}
	if ok, reason := s.breaker.CanTrade(); !ok {
		s.log.Fields(map[string]any{"reason": reason}).Warn("circuit breaker open, skipping new entries this tick")
		return nil
	}
	opportunities, err := s.scan(ctx, open)
	if err != nil {
		return fmt.Errorf("scheduler: scan: %w", err)
	}
	for i := 0; i < budget && i < len(opportunities); i++ {
		opp := opportunities[i]
		if opp.Result.Action == strategy.ActionWait {
			continue
		}
		if err := s.openFlow(ctx, opp); err != nil {
			s.log.Fields(map[string]any{"symbol": opp.Result.Symbol, "error": err}).Warn("open flow failed")
		}
	}
	return nil
}

func (s *Scheduler) checkDrawdownWarning(drawdown float64) {
	if s.cfg.AccountDrawdownWarningPct <= 0 {
		return
	}
	if drawdown*100 >= s.cfg.AccountDrawdownWarningPct {
		s.log.Fields(map[string]any{"drawdown_pct": drawdown*100}).Warn("account drawdown warning threshold reached")
	}
	// no_new_position and force_close thresholds are reserved but
	// disabled by default; reinstating them is an operator decision, not
	// something this loop guesses at.
}

// reconcilePositions treats the exchange as authoritative for existence
// and the store as authoritative for metadata.
func (s *Scheduler) reconcilePositions(ctx context.Context) ([]openPosition, error) {
	exchangePositions, err := s.adapter.Positions(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch exchange positions: %w", err)
	}
	storedPositions, err := s.store.OpenPositions(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch stored positions: %w", err)
	}

	bySymbol := make(map[string]store.Position, len(storedPositions))
	for _, p := range storedPositions {
		bySymbol[p.Symbol+p.Side] = p
	}

	var reconciled []openPosition
	for _, ev := range exchangePositions {
		side := exchange.SideLong
		if ev.Size < 0 {
			side = exchange.SideShort
		}
		if meta, ok := bySymbol[ev.Symbol+string(side)]; ok {
			reconciled = append(reconciled, openPosition{meta})
		} else {
			s.log.Fields(map[string]any{"symbol": ev.Symbol, "side": side}).Warn("phantom position: exchange reports a position the store does not track")
		}
	}

	orphans, err := s.store.OrphanPriceOrders(ctx)
	if err != nil {
		return nil, fmt.Errorf("orphan price-order scan: %w", err)
	}
	for _, o := range orphans {
		s.log.Fields(map[string]any{"order_id": o.OrderID, "position_id": o.PositionID}).Warn("orphan price-order: no matching open position")
		if err := s.adapter.CancelOrder(ctx, o.Symbol, o.OrderID); err != nil {
			s.log.Fields(map[string]any{"order_id": o.OrderID, "error": err}).Warn("failed to cancel orphan price-order")
		}
	}
	return reconciled, nil
}

func (s *Scheduler) updateTrailing(ctx context.Context, pos openPosition) {
	candles, err := s.adapter.Candles(ctx, pos.Symbol, s.cfg.Timeframes.Primary, 50)
	if err != nil {
		s.log.Fields(map[string]any{"symbol": pos.Symbol, "error": err}).Warn("trailing-stop candle fetch failed")
		return
	}
	ticker, err := s.adapter.Ticker(ctx, pos.Symbol, false)
	if err != nil {
		s.log.Fields(map[string]any{"symbol": pos.Symbol, "error": err}).Warn("trailing-stop ticker fetch failed")
		return
	}
	side := exchange.Side(pos.Side)
	newStop, accepted, reason := stoploss.UpdateTrailing(side, pos.StopLoss, ticker.Last, candles, s.cfg.StopConfig)
	if !accepted {
		return
	}
	if _, err := s.adapter.SetPositionStopLoss(ctx, exchange.SetStopParams{
		Symbol:    pos.Symbol,
		Side:      side,
		Quantity:  pos.Quantity,
		StopPrice: newStop,
		MarkPrice: ticker.MarkPrice,
	}); err != nil {
		s.log.Fields(map[string]any{"symbol": pos.Symbol, "error": err}).Warn("trailing-stop exchange update failed")
		return
	}
	if err := s.store.UpdatePositionStopLoss(ctx, pos.Symbol, pos.Side, newStop); err != nil {
		s.log.Fields(map[string]any{"symbol": pos.Symbol, "error": err}).Warn("trailing-stop persist failed, next tick will re-derive from the stale stop")
	}
	s.log.Fields(map[string]any{"symbol": pos.Symbol, "reason": reason, "new_stop": newStop}).Info("trailing stop migrated")
}

func (s *Scheduler) enforceMaxHolding(ctx context.Context, pos openPosition) {
	if s.cfg.MaxHoldingHours <= 0 {
		return
	}
	age := time.Since(pos.OpenedAt).Hours()
	if age < s.cfg.MaxHoldingHours {
		return
	}
	s.log.Fields(map[string]any{"symbol": pos.Symbol, "age_hours": age}).Warn("max holding time exceeded, forcing close")
	if err := s.closePositionNow(ctx, pos, "max_holding_time_exceeded"); err != nil {
		s.log.Fields(map[string]any{"symbol": pos.Symbol, "error": err}).Warn("forced close failed")
	}
}

func (s *Scheduler) closePositionNow(ctx context.Context, pos openPosition, reason string) error {
	side := exchange.Side(pos.Side)
	closeOrder, err := s.adapter.PlaceOrder(ctx, exchange.OrderParams{
		Symbol:     pos.Symbol,
		Size:       closingSize(side, pos.Quantity),
		ReduceOnly: true,
	})
	if err != nil {
		return fmt.Errorf("reduce-only close: %w", err)
	}
	if err := s.adapter.CancelPositionStopLoss(ctx, pos.Symbol); err != nil {
		s.log.Fields(map[string]any{"symbol": pos.Symbol, "error": err}).Warn("cancel protective orders after forced close failed")
	}

	pnlPct := pnlPercent(side, pos.EntryPrice, closeOrder.AvgFillPrice)
	s.breaker.RecordTrade(pnlPct)

	return s.store.ClosePositionFull(ctx, pos.ID,
		store.CloseEvent{Symbol: pos.Symbol, Side: pos.Side, Reason: reason, PnL: pnlPct, At: time.Now()},
		store.Trade{Symbol: pos.Symbol, Side: pos.Side, Quantity: pos.Quantity, Price: closeOrder.AvgFillPrice, At: time.Now()},
	)
}

func closingSize(side exchange.Side, quantity float64) float64 {
	if side == exchange.SideShort {
		return quantity
	}
	return -quantity
}

// pnlPercent returns the signed return of a closed position, feeding the
// circuit breaker's loss-rate counters.
func pnlPercent(side exchange.Side, entryPrice, exitPrice float64) float64 {
	if entryPrice == 0 {
		return 0
	}
	move := (exitPrice - entryPrice) / entryPrice * 100
	if side == exchange.SideShort {
		return -move
	}
	return move
}

// opportunity bundles a ranked score.Result with enough context to drive
// openFlow.
type opportunity struct {
	Result strategy.Result
	Score  score.Result
}

// scan runs the classify-route-score pipeline over the watch-list with
// bounded concurrency, so the tick never opens more in-flight requests than
// the exchange rate limit tolerates, grounded on the teacher's
// evaluateSymbol-per-symbol loop generalized from sequential to a
// semaphore-bounded fan-out.
func (s *Scheduler) scan(ctx context.Context, open []openPosition) ([]opportunity, error) {
	openSet := make(map[string]bool, len(open))
	for _, p := range open {
		openSet[p.Symbol+p.Side] = true
	}

	sem := semaphore.NewWeighted(s.cfg.MaxConcurrency)
	results := make([]opportunity, len(s.cfg.Symbols))
	found := make([]bool, len(s.cfg.Symbols))

	var wg sync.WaitGroup
	for i, symbol := range s.cfg.Symbols {
		i, symbol := i, symbol
		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer sem.Release(1)
			opp, ok, err := s.evaluateSymbol(ctx, symbol, openSet)
			if err != nil {
				s.log.Fields(map[string]any{"symbol": symbol, "error": err}).Warn("symbol evaluation failed")
				return
			}
			if ok {
				results[i] = opp
				found[i] = true
			}
		}()
	}
	wg.Wait()

	byOrderKey := make(map[string]opportunity)
	var scores []score.Result
	for i, ok := range found {
		if !ok {
			continue
		}
		opp := results[i]
		key := orderKey(opp.Score)
		byOrderKey[key] = opp
		scores = append(scores, opp.Score)
	}

	ranked := score.Rank(scores, s.cfg.MinOpportunityScore, s.cfg.MaxOpportunities, false)
	opportunities := make([]opportunity, 0, len(ranked))
	for _, sc := range ranked {
		opportunities = append(opportunities, byOrderKey[orderKey(sc)])
	}
	return opportunities, nil
}

// orderKey disambiguates opportunities that share a symbol but evaluated
// to a different strategy across repeated scans; in practice one symbol
// yields one opportunity per tick, but the key avoids silently colliding
// two results that happen to land on the same score.Total.
func orderKey(sc score.Result) string {
	return sc.Symbol + "|" + string(sc.Strategy)
}

func (s *Scheduler) evaluateSymbol(ctx context.Context, symbol string, openSet map[string]bool) (opportunity, bool, error) {
	primaryCandles, err := s.adapter.Candles(ctx, symbol, s.cfg.Timeframes.Primary, 60)
	if err != nil {
		return opportunity{}, false, fmt.Errorf("primary candles: %w", err)
	}
	confirmCandles, err := s.adapter.Candles(ctx, symbol, s.cfg.Timeframes.Confirm, 60)
	if err != nil {
		return opportunity{}, false, fmt.Errorf("confirm candles: %w", err)
	}
	filterCandles, err := s.adapter.Candles(ctx, symbol, s.cfg.Timeframes.Filter, 60)
	if err != nil {
		return opportunity{}, false, fmt.Errorf("filter candles: %w", err)
	}

	primaryInd := candle.Calculate(primaryCandles)
	confirmInd := candle.Calculate(confirmCandles)
	filterInd := candle.Calculate(filterCandles)

	analysis := regime.Classify(symbol, primaryInd, confirmInd, filterInd, regime.DefaultMomentumThresholds)
	result := strategy.Route(symbol, analysis, confirmInd, filterInd, s.cfg.MaxLeverage)

	tier := liquidityTierFor(symbol)
	sc := score.Score(result, analysis, filterInd.ATRRatio, result.Leverage, tier)
	sc.HasOpenPosition = openSet[symbol+string(result.Side)]

	return opportunity{Result: result, Score: sc}, true, nil
}

// liquidityTierFor is a deliberately small, explicit allow-list rather
// than a fetched metric: liquidity is a scoring input with no specified
// data source, so the major-pairs set is treated as a static
// operator-maintained classification (see DESIGN.md Open Questions).
func liquidityTierFor(symbol string) score.LiquidityTier {
	switch symbol {
	case "BTC", "ETH":
		return score.LiquidityMajor
	case "SOL", "BNB", "XRP", "ADA", "DOGE":
		return score.LiquiditySecondTier
	default:
		return score.LiquidityOther
	}
}

// openFlow validates the stop, sizes the position, sets leverage, places
// the entry, polls the fill, recomputes the stop at the fill price,
// registers protective orders, and persists it all
// transactionally via internal/store.
func (s *Scheduler) openFlow(ctx context.Context, opp opportunity) error {
	symbol := opp.Result.Symbol
	side := opp.Result.Side

	if ok, reason := s.breaker.CanTrade(); !ok {
		return fmt.Errorf("circuit breaker: %s", reason)
	}

	ticker, err := s.adapter.Ticker(ctx, symbol, true)
	if err != nil {
		return fmt.Errorf("ticker: %w", err)
	}
	primaryCandles, err := s.adapter.Candles(ctx, symbol, s.cfg.Timeframes.Primary, 60)
	if err != nil {
		return fmt.Errorf("candles for stop calc: %w", err)
	}

	stopResult := stoploss.Calculate(symbol, side, ticker.Last, primaryCandles, s.cfg.StopConfig)
	ok, reason := stoploss.ShouldOpenPosition(stopResult, s.cfg.StopConfig.MaxStopPercent, s.cfg.StopConfig.MinQualityScore)
	if !ok {
		return fmt.Errorf("stop-loss open-gate rejected: %s", reason)
	}

	account, err := s.adapter.Account(ctx)
	if err != nil {
		return fmt.Errorf("account: %w", err)
	}
	margin := account.Available * 0.1 // conservative per-position sizing; risk-budgeted sizing is out of scope here
	quantity, err := s.adapter.QuantityFromUSDT(ctx, symbol, margin, ticker.Last, opp.Result.Leverage)
	if err != nil {
		return fmt.Errorf("quantity sizing: %w", err)
	}
	if quantity <= 0 {
		return fmt.Errorf("sized quantity is zero")
	}

	if err := s.adapter.SetLeverage(ctx, symbol, opp.Result.Leverage); err != nil {
		s.log.Fields(map[string]any{"symbol": symbol, "error": err}).Warn("set leverage failed, proceeding with existing leverage")
	}

	entrySize := quantity
	if side == exchange.SideShort {
		entrySize = -quantity
	}
	entryOrder, err := s.adapter.PlaceOrder(ctx, exchange.OrderParams{Symbol: symbol, Size: entrySize})
	if err != nil {
		return fmt.Errorf("place entry order: %w", err)
	}

	filled, err := s.pollFill(ctx, symbol, entryOrder.OrderID)
	if err != nil {
		return fmt.Errorf("poll entry fill: %w", err)
	}

	finalStop := stoploss.Calculate(symbol, side, filled.AvgFillPrice, primaryCandles, s.cfg.StopConfig)
	setResult, err := s.adapter.SetPositionStopLoss(ctx, exchange.SetStopParams{
		Symbol:     symbol,
		Side:       side,
		Quantity:   quantity,
		StopPrice:  finalStop.StopPrice,
		TakeProfit: 0,
		MarkPrice:  ticker.MarkPrice,
	})
	cancelPlaced := func(ctx context.Context) error {
		return s.adapter.CancelPositionStopLoss(ctx, symbol)
	}
	if err != nil || !setResult.OK {
		if err == nil {
			err = fmt.Errorf("protective orders not fully registered: %s", setResult.Message)
		}
		s.log.Fields(map[string]any{"symbol": symbol, "error": err}).Warn("bare position: protective stops not registered")
	}

	_, err = s.store.OpenPosition(ctx,
		store.Position{
			Symbol:        symbol,
			Side:          string(side),
			EntryPrice:    filled.AvgFillPrice,
			Quantity:      quantity,
			Leverage:      opp.Result.Leverage,
			StopLoss:      finalStop.StopPrice,
			EntryStopLoss: finalStop.StopPrice,
			Strategy:      string(opp.Result.Strategy),
			OpenedAt:      time.Now(),
		},
		store.Trade{Symbol: symbol, Side: string(side), Quantity: quantity, Price: filled.AvgFillPrice, At: time.Now()},
		store.Order{Symbol: symbol, OrderID: setResult.StopOrderID, Kind: "stop_loss", Price: finalStop.StopPrice, Quantity: quantity, Status: "active"},
		store.Order{Symbol: symbol, OrderID: setResult.TPOrderID, Kind: "take_profit", Quantity: quantity, Status: "active"},
		cancelPlaced,
	)
	if err != nil {
		return fmt.Errorf("persist opened position: %w", err)
	}
	metrics.PositionsOpened.WithLabelValues(string(opp.Result.Strategy)).Inc()
	s.log.Fields(map[string]any{"symbol": symbol, "side": side, "strategy": opp.Result.Strategy, "score": opp.Score.Total}).Info("position opened")
	return nil
}

func (s *Scheduler) pollFill(ctx context.Context, symbol, orderID string) (exchange.OrderResponse, error) {
	deadline := time.Now().Add(30 * time.Second)
	for {
		order, err := s.adapter.GetOrder(ctx, symbol, orderID)
		if err != nil {
			return exchange.OrderResponse{}, err
		}
		if order.Status == exchange.OrderStatusFilled {
			return order, nil
		}
		if time.Now().After(deadline) {
			return order, fmt.Errorf("entry order did not fill within 30s")
		}
		select {
		case <-ctx.Done():
			return exchange.OrderResponse{}, ctx.Err()
		case <-time.After(500 * time.Millisecond):
		}
	}
}

// runMonitor runs the shorter monitor loop: per open position, check each
// partial-TP stage and assess reversal risk.
func (s *Scheduler) runMonitor(ctx context.Context) error {
	open, err := s.store.OpenPositions(ctx)
	if err != nil {
		return fmt.Errorf("scheduler: list open positions for monitor: %w", err)
	}

	for _, pos := range open {
		side := exchange.Side(pos.Side)
		ticker, err := s.adapter.Ticker(ctx, pos.Symbol, false)
		if err != nil {
			s.log.Fields(map[string]any{"symbol": pos.Symbol, "error": err}).Warn("monitor ticker fetch failed")
			continue
		}

		ptPos := partialtp.Position{
			Symbol:        pos.Symbol,
			Side:          side,
			EntryPrice:    pos.EntryPrice,
			EntryStopLoss: pos.EntryStopLoss,
			RemainingQty:  pos.Quantity,
		}
		for stage := 1; stage <= 3; stage++ {
			executed, err := s.partialTP.TryStage(ctx, ptPos, stage, ticker.Last)
			if err != nil {
				s.log.Fields(map[string]any{"symbol": pos.Symbol, "stage": stage, "error": err}).Warn("partial-tp stage check failed")
				continue
			}
			if executed {
				metrics.PartialTPExecuted.WithLabelValues(fmt.Sprintf("%d", stage)).Inc()
				s.log.Fields(map[string]any{"symbol": pos.Symbol, "stage": stage}).Info("partial-tp stage executed")
			}
		}

		if err := s.assessReversal(ctx, pos, side); err != nil {
			s.log.Fields(map[string]any{"symbol": pos.Symbol, "error": err}).Warn("reversal assessment failed")
		}
	}
	return nil
}

func (s *Scheduler) assessReversal(ctx context.Context, pos store.Position, side exchange.Side) error {
	primaryCandles, err := s.adapter.Candles(ctx, pos.Symbol, s.cfg.Timeframes.Primary, 30)
	if err != nil {
		return err
	}
	confirmCandles, err := s.adapter.Candles(ctx, pos.Symbol, s.cfg.Timeframes.Confirm, 30)
	if err != nil {
		return err
	}
	filterCandles, err := s.adapter.Candles(ctx, pos.Symbol, s.cfg.Timeframes.Filter, 30)
	if err != nil {
		return err
	}

	hist := s.historyFor(pos.Symbol, side)
	assessment := reversal.Assess(pos.Symbol, side, hist,
		candle.Calculate(primaryCandles), candle.Calculate(confirmCandles), candle.Calculate(filterCandles))

	if assessment.Recommendation == reversal.RecommendEmergencyClose {
		executed, err := s.reversalM.MaybeEmergencyClose(ctx, assessment, pos.Quantity)
		if err != nil {
			return err
		}
		if executed {
			metrics.ReversalEmergencyCloses.Inc()
			if len(primaryCandles) > 0 {
				s.breaker.RecordTrade(pnlPercent(side, pos.EntryPrice, primaryCandles[len(primaryCandles)-1].Close))
			}
			s.log.Fields(map[string]any{"symbol": pos.Symbol, "score": assessment.Score}).Warn("reversal monitor closed position")
		}
	} else if assessment.Recommendation == reversal.RecommendAdvisoryClose {
		s.log.Fields(map[string]any{"symbol": pos.Symbol, "score": assessment.Score}).Warn("reversal advisory: manual review recommended")
	}
	return nil
}

func (s *Scheduler) historyFor(symbol string, side exchange.Side) *reversal.History {
	key := symbol + string(side)
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.histories[key]
	if !ok {
		h = &reversal.History{}
		s.histories[key] = h
	}
	return h
}
