package trader

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"kestrel/internal/gateway/exchange"
	"kestrel/internal/gateway/notifier"
	"kestrel/internal/logger"
	"kestrel/internal/pkg/circuit"
)

// TradeCloser records the exit half of a trade.
type TradeCloser interface {
	RecordExit(ctx context.Context, cycleID string, realizedPnL float64, closedAt time.Time) error
}

type MonitorParams struct {
	Exchange        exchange.Exchange
	Book            *Book
	Sink            *notifier.Sink
	Journal         *Journal
	Trades          TradeCloser
	SignificantMove float64 // unrealized PnL delta (stake units) that triggers a report
	Breaker         *circuit.Breaker
}

// Monitor reconciles the local book against the venue. It never guesses:
// a failed read keeps the position as-is and a zero-amount read is the only
// thing that closes one.
type Monitor struct {
	exch            exchange.Exchange
	book            *Book
	sink            *notifier.Sink
	journal         *Journal
	trades          TradeCloser
	significantMove float64
	breaker         *circuit.Breaker

	lastReportMu sync.Mutex
	lastReport   map[string]float64 // symbol -> unrealized PnL at last report
}

func NewMonitor(p MonitorParams) *Monitor {
	if p.SignificantMove <= 0 {
		p.SignificantMove = 10
	}
	if p.Breaker == nil {
		p.Breaker = circuit.NewBreaker("position-monitor", 0, 0)
	}
	return &Monitor{
		exch:            p.Exchange,
		book:            p.Book,
		sink:            p.Sink,
		journal:         p.Journal,
		trades:          p.Trades,
		significantMove: p.SignificantMove,
		breaker:         p.Breaker,
		lastReport:      make(map[string]float64),
	}
}

// Tick runs one reconciliation pass over every symbol the book believes is
// open. Symbols with an entry cycle in flight are skipped rather than
// waited on.
func (m *Monitor) Tick(ctx context.Context) {
	symbols := m.book.OpenSymbols()
	if len(symbols) == 0 {
		return
	}
	if !m.breaker.Allow() {
		logger.Warnf("monitor: venue breaker open, skipping pass")
		return
	}

	live, err := m.exch.ListOpenPositions(ctx)
	if err != nil {
		m.breaker.RecordFailure()
		logger.Warnf("monitor: position query failed, keeping book unchanged: %v", err)
		return
	}
	m.breaker.RecordSuccess()

	bySymbol := make(map[string]exchange.Position, len(live))
	for _, p := range live {
		bySymbol[strings.ToUpper(p.Symbol)] = p
	}

	for _, symbol := range symbols {
		if !m.book.Acquire(symbol) {
			continue
		}
		m.reconcile(ctx, symbol, bySymbol)
		m.book.Release(symbol)
	}
}

func (m *Monitor) reconcile(ctx context.Context, symbol string, live map[string]exchange.Position) {
	tracked, ok := m.book.Position(symbol)
	if !ok {
		return
	}

	venue, found := live[symbol]
	if found && venue.Amount > 0 {
		m.book.UpdateUnrealized(symbol, venue.UnrealizedPnL)
		m.maybeReport(symbol, tracked, venue)
		return
	}

	// Venue reports flat: stop or target fired, or the position was closed
	// out of band. Derive realized PnL from the balance delta against the
	// entry stamp; fills are not tracked individually.
	realized := 0.0
	bal, err := m.exch.Balance(ctx)
	if err != nil {
		logger.Warnf("monitor: %s closed but balance query failed: %v", symbol, err)
	} else {
		m.book.SetBalance(bal.Total)
		realized = bal.Total - tracked.EntryBalance
	}

	if !m.book.ClearPosition(symbol) {
		return // already cleared by a concurrent pass
	}

	if err := m.exch.CancelAllOrders(ctx, symbol); err != nil {
		logger.Warnf("monitor: %s leftover order cancel failed: %v", symbol, err)
	}

	if m.trades != nil {
		if err := m.trades.RecordExit(ctx, tracked.CycleID, realized, time.Now()); err != nil {
			logger.Warnf("monitor: %s exit record failed: %v", symbol, err)
		}
	}
	if m.journal != nil {
		detail := fmt.Sprintf("closed, realized=%.4f", realized)
		if err := m.journal.Append(CycleEvent{CycleID: tracked.CycleID, Symbol: symbol, State: StateIdle, Detail: detail}); err != nil {
			logger.Warnf("monitor: journal append failed: %v", err)
		}
	}

	m.lastReportMu.Lock()
	delete(m.lastReport, symbol)
	m.lastReportMu.Unlock()

	outcome := "LOSS"
	if realized >= 0 {
		outcome = "PROFIT"
	}
	m.sink.Notify(notifier.CategoryReport, fmt.Sprintf("Position closed: %s (%s)", symbol, outcome),
		notifier.MessageSection{Title: "Result", Lines: []string{
			fmt.Sprintf("side: %s, size: %.6f @ %.2f", tracked.Side, tracked.Size, tracked.EntryPrice),
			fmt.Sprintf("realized PnL: %+.4f", realized),
			fmt.Sprintf("held: %s", time.Since(tracked.OpenedAt).Round(time.Second)),
		}},
	)
	logger.Infof("monitor: %s closed, realized=%.4f cycle=%s", symbol, realized, tracked.CycleID)
}

// maybeReport sends a diagnostic snapshot when the unrealized PnL has moved
// past the configured threshold since the last report for that symbol.
func (m *Monitor) maybeReport(symbol string, tracked Position, venue exchange.Position) {
	m.lastReportMu.Lock()
	last, seen := m.lastReport[symbol]
	moved := !seen || math.Abs(venue.UnrealizedPnL-last) >= m.significantMove
	if moved {
		m.lastReport[symbol] = venue.UnrealizedPnL
	}
	m.lastReportMu.Unlock()
	if !moved || (!seen && math.Abs(venue.UnrealizedPnL) < m.significantMove) {
		return
	}

	m.sink.Notify(notifier.CategoryReport, fmt.Sprintf("Position update: %s", symbol),
		notifier.MessageSection{Title: "Status", Lines: []string{
			fmt.Sprintf("side: %s, size: %.6f @ %.2f", tracked.Side, tracked.Size, tracked.EntryPrice),
			fmt.Sprintf("mark: %.2f, unrealized: %+.4f", venue.MarkPrice, venue.UnrealizedPnL),
			fmt.Sprintf("stop: %.2f / target: %.2f", tracked.StopLossPrice, tracked.TakeProfitPrice),
		}},
	)
}
