package trader

import (
	"context"
	"fmt"
	"strings"
	"time"

	"kestrel/internal/gateway/exchange"
	"kestrel/internal/gateway/notifier"
	"kestrel/internal/logger"
	"kestrel/internal/strategy"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TradeRecorder persists completed entry/exit records. The executor only
// needs the entry half; the monitor closes records.
type TradeRecorder interface {
	RecordEntry(ctx context.Context, rec TradeRecord) error
}

// TradeRecord is the persistent view of one trade handed to the recorder.
type TradeRecord struct {
	CycleID         string
	Symbol          string
	Side            string
	Quantity        float64
	EntryPrice      float64
	Leverage        int
	StopLossPrice   float64
	TakeProfitPrice float64
	Confidence      float64
	Momentum        float64
	OpenedAt        time.Time
}

// ExecutorConfig carries the venue- and risk-parameters of the entry path.
type ExecutorConfig struct {
	QuantityStep     float64
	SafetyFraction   float64
	StopLossPoints   float64       // adverse distance from entry, price points
	TakeProfitPoints float64       // favorable distance from entry, price points
	SettleDelay      time.Duration // wait after flatten/cancel before re-reads

	// BracketResolver, when set, supplies per-symbol bracket distances and
	// takes precedence over the static points above.
	BracketResolver func(symbol string) (stopPoints, takeProfitPoints float64, ok bool)
}

func (c ExecutorConfig) withDefaults() ExecutorConfig {
	out := c
	if out.SafetyFraction <= 0 || out.SafetyFraction > 1 {
		out.SafetyFraction = strategy.DefaultSafetyFraction
	}
	if out.SettleDelay <= 0 {
		out.SettleDelay = 2 * time.Second
	}
	return out
}

// Executor runs the entry state machine. One instance serves all symbols;
// the per-symbol guard in Book makes cycles for the same symbol mutually
// exclusive while cycles for different symbols stay independent.
type Executor struct {
	exch    exchange.Exchange
	book    *Book
	sink    *notifier.Sink
	journal *Journal
	trades  TradeRecorder
	cfg     ExecutorConfig
}

func NewExecutor(exch exchange.Exchange, book *Book, sink *notifier.Sink, journal *Journal, trades TradeRecorder, cfg ExecutorConfig) *Executor {
	return &Executor{
		exch:    exch,
		book:    book,
		sink:    sink,
		journal: journal,
		trades:  trades,
		cfg:     cfg.withDefaults(),
	}
}

// HandleSignal drives one full cycle for the symbol. It returns
// ErrCycleInFlight / ErrPositionOpen on guard rejection, a
// *CriticalExposureError when the entry filled but the bracket could not be
// placed, and plain errors for aborts before any fill existed.
func (e *Executor) HandleSignal(ctx context.Context, symbol string, sig strategy.Signal) error {
	if sig.Action == strategy.ActionNone {
		return nil
	}
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return fmt.Errorf("executor: symbol is required")
	}

	if !e.book.Acquire(symbol) {
		logger.Warnf("executor: %s signal rejected, cycle in flight", symbol)
		e.appendEvent("", symbol, StateIdle, "signal rejected: cycle in flight")
		return ErrCycleInFlight
	}
	defer e.book.Release(symbol)

	if _, open := e.book.Position(symbol); open {
		logger.Warnf("executor: %s signal rejected, position already open", symbol)
		e.appendEvent("", symbol, StateIdle, "signal rejected: position open")
		return ErrPositionOpen
	}

	cycleID := uuid.NewString()
	logger.Infof("executor: %s cycle %s started action=%s lev=%d conf=%.1f",
		symbol, cycleID, sig.Action, sig.Leverage, sig.Confidence)
	e.appendEvent(cycleID, symbol, StateFlattening, fmt.Sprintf("action=%s leverage=%d", sig.Action, sig.Leverage))

	if err := e.flatten(ctx, symbol); err != nil {
		return e.abort(cycleID, symbol, fmt.Errorf("flatten: %w", err))
	}

	e.appendEvent(cycleID, symbol, StateSizing, "")
	qty, entryBalance, err := e.size(ctx, symbol, sig.Leverage)
	if err != nil {
		return e.abort(cycleID, symbol, fmt.Errorf("sizing: %w", err))
	}

	e.appendEvent(cycleID, symbol, StateEntrySubmitted, fmt.Sprintf("qty=%.8f", qty))
	fill, err := e.enter(ctx, symbol, sig, qty)
	if err != nil {
		// No position was created; safe to abort.
		return e.abort(cycleID, symbol, fmt.Errorf("entry: %w", err))
	}

	e.appendEvent(cycleID, symbol, StateBracketPlacing, fmt.Sprintf("entry=%.8f", fill.AvgPrice))
	stopPoints, targetPoints := e.cfg.StopLossPoints, e.cfg.TakeProfitPoints
	if e.cfg.BracketResolver != nil {
		if s, t, ok := e.cfg.BracketResolver(symbol); ok {
			stopPoints, targetPoints = s, t
		}
	}
	stopPrice, targetPrice := bracketPrices(sig.Action, fill.AvgPrice, stopPoints, targetPoints)
	if err := e.placeBracket(ctx, symbol, sig.Action, fill.Quantity, stopPrice, targetPrice); err != nil {
		return e.escalateExposure(ctx, cycleID, symbol, sig.Action, fill, err)
	}

	pos := Position{
		CycleID:         cycleID,
		Symbol:          symbol,
		Side:            sig.Action,
		Size:            fill.Quantity,
		EntryPrice:      fill.AvgPrice,
		Leverage:        sig.Leverage,
		TakeProfitPrice: targetPrice,
		StopLossPrice:   stopPrice,
		Confidence:      sig.Confidence,
		EntryBalance:    entryBalance,
		OpenedAt:        time.Now(),
	}
	e.book.SetPosition(pos)
	e.appendEvent(cycleID, symbol, StateOpen,
		fmt.Sprintf("size=%.8f entry=%.8f sl=%.8f tp=%.8f", pos.Size, pos.EntryPrice, pos.StopLossPrice, pos.TakeProfitPrice))

	if e.trades != nil {
		rec := TradeRecord{
			CycleID:         cycleID,
			Symbol:          symbol,
			Side:            string(sig.Action),
			Quantity:        pos.Size,
			EntryPrice:      pos.EntryPrice,
			Leverage:        pos.Leverage,
			StopLossPrice:   pos.StopLossPrice,
			TakeProfitPrice: pos.TakeProfitPrice,
			Confidence:      sig.Confidence,
			Momentum:        sig.Snapshot.Momentum,
			OpenedAt:        pos.OpenedAt,
		}
		if err := e.trades.RecordEntry(ctx, rec); err != nil {
			logger.Warnf("executor: trade record failed for %s: %v", symbol, err)
		}
	}

	e.sink.Notify(notifier.CategoryEntry, fmt.Sprintf("Entered %s %s", strings.ToUpper(string(sig.Action)), symbol),
		notifier.MessageSection{Title: "Order", Lines: []string{
			fmt.Sprintf("size: %.6f @ %.2f", pos.Size, pos.EntryPrice),
			fmt.Sprintf("leverage: %dx", pos.Leverage),
			fmt.Sprintf("stop: %.2f / target: %.2f", pos.StopLossPrice, pos.TakeProfitPrice),
			fmt.Sprintf("confidence: %.0f", sig.Confidence),
		}},
	)
	logger.Infof("executor: %s cycle %s open size=%.8f entry=%.8f", symbol, cycleID, pos.Size, pos.EntryPrice)
	return nil
}

// flatten closes any prior exposure and clears resting orders so the new
// cycle starts from a known-flat venue state.
func (e *Executor) flatten(ctx context.Context, symbol string) error {
	positions, err := e.exch.ListOpenPositions(ctx)
	if err != nil {
		return fmt.Errorf("list positions: %w", err)
	}
	for _, live := range positions {
		if !strings.EqualFold(live.Symbol, symbol) || live.Amount <= 0 {
			continue
		}
		closeSide := exchange.SideSell
		if live.Side == "short" {
			closeSide = exchange.SideBuy
		}
		_, err := e.exch.SubmitMarketOrder(ctx, exchange.MarketOrderRequest{
			Symbol:     symbol,
			Side:       closeSide,
			Quantity:   live.Amount,
			ReduceOnly: true,
		})
		if err != nil {
			return fmt.Errorf("close prior %s exposure: %w", live.Side, err)
		}
		logger.Infof("executor: flattened prior %s %s size=%.8f", live.Side, symbol, live.Amount)
	}
	if err := e.exch.CancelAllOrders(ctx, symbol); err != nil {
		return fmt.Errorf("cancel orders: %w", err)
	}
	// Let the venue process the cancellations before state is re-read.
	return sleepWithContext(ctx, e.cfg.SettleDelay)
}

// size refreshes the account balance and converts it into an order quantity
// at the current mark price. The full balance stamp is kept so realized PnL
// can be derived at close time without per-fill accounting.
func (e *Executor) size(ctx context.Context, symbol string, leverage int) (qty, entryBalance float64, err error) {
	bal, err := e.exch.Balance(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("refresh balance: %w", err)
	}
	e.book.SetBalance(bal.Total)

	mark, err := e.exch.MarkPrice(ctx, symbol)
	if err != nil {
		return 0, 0, fmt.Errorf("mark price: %w", err)
	}
	qty, err = strategy.OrderQuantity(bal.Available, leverage, mark, e.cfg.QuantityStep, e.cfg.SafetyFraction)
	if err != nil {
		return 0, 0, err
	}
	return qty, bal.Total, nil
}

func (e *Executor) enter(ctx context.Context, symbol string, sig strategy.Signal, qty float64) (*exchange.OrderFill, error) {
	if err := e.exch.SetLeverage(ctx, symbol, sig.Leverage); err != nil {
		return nil, fmt.Errorf("set leverage: %w", err)
	}
	return e.exch.SubmitMarketOrder(ctx, exchange.MarketOrderRequest{
		Symbol:   symbol,
		Side:     entrySideFor(sig.Action),
		Quantity: qty,
	})
}

// placeBracket submits both protective legs, retrying each once. The caller
// escalates on failure since the entry has already filled.
func (e *Executor) placeBracket(ctx context.Context, symbol string, action strategy.Action, qty, stopPrice, targetPrice float64) error {
	if stopPrice <= 0 || targetPrice <= 0 {
		return fmt.Errorf("bracket prices degenerate: sl=%.8f tp=%.8f", stopPrice, targetPrice)
	}
	closeSide := entrySideFor(action).Opposite()
	stopReq := exchange.TriggerOrderRequest{Symbol: symbol, Side: closeSide, Quantity: qty, TriggerPrice: stopPrice}
	if err := retryOnce(func() error { return e.exch.SubmitStopOrder(ctx, stopReq) }); err != nil {
		return fmt.Errorf("stop-loss leg: %w", err)
	}
	targetReq := exchange.TriggerOrderRequest{Symbol: symbol, Side: closeSide, Quantity: qty, TriggerPrice: targetPrice}
	if err := retryOnce(func() error { return e.exch.SubmitTakeProfitOrder(ctx, targetReq) }); err != nil {
		return fmt.Errorf("take-profit leg: %w", err)
	}
	return nil
}

// escalateExposure handles the one failure that must never be folded into
// catch-log-continue: entry filled, bracket absent. The compensating flatten
// is explicit and auditable; the critical alert fires either way.
func (e *Executor) escalateExposure(ctx context.Context, cycleID, symbol string, action strategy.Action, fill *exchange.OrderFill, cause error) error {
	logger.Errorf("executor: %s cycle %s CRITICAL bracket failure: %v", symbol, cycleID, cause)

	flattened := false
	_, closeErr := e.exch.SubmitMarketOrder(ctx, exchange.MarketOrderRequest{
		Symbol:     symbol,
		Side:       entrySideFor(action).Opposite(),
		Quantity:   fill.Quantity,
		ReduceOnly: true,
	})
	if closeErr == nil {
		flattened = true
		if err := e.exch.CancelAllOrders(ctx, symbol); err != nil {
			logger.Warnf("executor: %s cancel after emergency flatten failed: %v", symbol, err)
		}
	} else {
		logger.Errorf("executor: %s emergency flatten FAILED: %v", symbol, closeErr)
	}

	expErr := &CriticalExposureError{Symbol: symbol, CycleID: cycleID, Flattened: flattened, Err: cause}
	e.appendEvent(cycleID, symbol, StateAborted, expErr.Error())

	statusLine := "compensating flatten succeeded, no exposure remains"
	if !flattened {
		statusLine = "FLATTEN FAILED - MANUAL INTERVENTION REQUIRED"
	}
	e.sink.Notify(notifier.CategoryCritical, fmt.Sprintf("UNPROTECTED POSITION on %s", symbol),
		notifier.MessageSection{Title: "Critical exposure", Lines: []string{
			fmt.Sprintf("entry filled %.6f @ %.2f, bracket placement failed", fill.Quantity, fill.AvgPrice),
			fmt.Sprintf("cause: %v", cause),
			statusLine,
			fmt.Sprintf("cycle: %s", cycleID),
		}},
	)
	return expErr
}

func (e *Executor) abort(cycleID, symbol string, cause error) error {
	logger.Errorf("executor: %s cycle %s aborted: %v", symbol, cycleID, cause)
	e.appendEvent(cycleID, symbol, StateAborted, cause.Error())
	e.sink.Notify(notifier.CategoryError, fmt.Sprintf("Entry aborted for %s", symbol),
		notifier.MessageSection{Lines: []string{cause.Error()}})
	return cause
}

func (e *Executor) appendEvent(cycleID, symbol string, state CycleState, detail string) {
	if e.journal == nil {
		return
	}
	if err := e.journal.Append(CycleEvent{CycleID: cycleID, Symbol: symbol, State: state, Detail: detail}); err != nil {
		logger.Warnf("executor: journal append failed: %v", err)
	}
}

// bracketPrices computes the protective prices: the stop sits on the adverse
// side of entry, the target on the favorable side.
func bracketPrices(action strategy.Action, entry, stopPoints, targetPoints float64) (stop, target float64) {
	entryDec := decimal.NewFromFloat(entry)
	slDec := decimal.NewFromFloat(stopPoints)
	tpDec := decimal.NewFromFloat(targetPoints)
	if action == strategy.ActionShort {
		stop, _ = entryDec.Add(slDec).Float64()
		target, _ = entryDec.Sub(tpDec).Float64()
		return stop, target
	}
	stop, _ = entryDec.Sub(slDec).Float64()
	target, _ = entryDec.Add(tpDec).Float64()
	return stop, target
}

func entrySideFor(action strategy.Action) exchange.Side {
	if action == strategy.ActionShort {
		return exchange.SideSell
	}
	return exchange.SideBuy
}

func retryOnce(fn func() error) error {
	if err := fn(); err == nil {
		return nil
	}
	return fn()
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
