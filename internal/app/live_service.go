package app

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"kestrel/internal/config"
	"kestrel/internal/gateway/exchange"
	"kestrel/internal/gateway/notifier"
	"kestrel/internal/indicator"
	"kestrel/internal/logger"
	"kestrel/internal/market"
	"kestrel/internal/profile"
	"kestrel/internal/scheduler"
	"kestrel/internal/store/tradelog"
	"kestrel/internal/strategy"
	"kestrel/internal/trader"

	"golang.org/x/sync/errgroup"
)

// LiveService runs the daily evaluation loop and the position monitor.
type LiveService struct {
	cfg      *config.Config
	exch     exchange.Exchange
	book     *trader.Book
	executor *trader.Executor
	monitor  *trader.Monitor
	sink     *notifier.Sink
	journal  *trader.Journal
	trades   *tradelog.Store
	profiles *profile.Loader

	lastMu     sync.RWMutex
	lastSignal strategy.Signal
	lastAt     time.Time
	haveSignal bool
}

// Run blocks until ctx is cancelled. The entry scheduler, the monitor
// ticker and the daily report each run in their own goroutine.
func (s *LiveService) Run(ctx context.Context) error {
	loc, err := time.LoadLocation(s.cfg.Trading.Timezone)
	if err != nil {
		return fmt.Errorf("load timezone: %w", err)
	}
	entryHour, entryMinute, err := scheduler.ParseClock(s.cfg.Trading.EntryAt)
	if err != nil {
		return fmt.Errorf("parse entry_at: %w", err)
	}

	group, ctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		entry := scheduler.NewDailyScheduler(ctx, entryHour, entryMinute, loc)
		entry.Start(func() {
			if err := s.EvaluateOnce(ctx); err != nil {
				logger.Errorf("evaluation run failed: %v", err)
			}
		})
		return nil
	})

	group.Go(func() error {
		tick := scheduler.NewIntervalScheduler(ctx,
			time.Duration(s.cfg.Monitor.IntervalSeconds)*time.Second)
		tick.RunImmediately = s.cfg.Monitor.StartupReconciliation
		tick.Start(func() { s.monitor.Tick(ctx) })
		return nil
	})

	if s.cfg.Monitor.ReportAt != "" {
		reportHour, reportMinute, err := scheduler.ParseClock(s.cfg.Monitor.ReportAt)
		if err != nil {
			return fmt.Errorf("parse report_at: %w", err)
		}
		group.Go(func() error {
			report := scheduler.NewDailyScheduler(ctx, reportHour, reportMinute, loc)
			report.Start(func() { s.sendDailyReport(ctx) })
			return nil
		})
	}

	return group.Wait()
}

// EvaluateOnce fetches the candle window, computes the indicator snapshot,
// evaluates the signal and hands any actionable one to the executor.
func (s *LiveService) EvaluateOnce(ctx context.Context) error {
	symbol := s.cfg.Trading.Symbol
	interval := s.cfg.Strategy.CandleInterval

	candles, err := s.exch.RecentCandles(ctx, symbol, interval, s.cfg.Strategy.Lookback)
	if err != nil {
		s.sink.Notify(notifier.CategoryError, fmt.Sprintf("Candle fetch failed for %s", symbol),
			notifier.MessageSection{Lines: []string{err.Error()}})
		return fmt.Errorf("fetch candles: %w", err)
	}

	snap := indicator.Compute(market.Closes(candles), indicator.Config{
		FastPeriod:     s.cfg.Strategy.FastPeriod,
		MidPeriod:      s.cfg.Strategy.MidPeriod,
		SlowPeriod:     s.cfg.Strategy.SlowPeriod,
		MomentumPeriod: s.cfg.Strategy.MomentumPeriod,
	})
	sig := strategy.Evaluate(snap, s.paramsFor(symbol))

	s.lastMu.Lock()
	s.lastSignal = sig
	s.lastAt = time.Now()
	s.haveSignal = true
	s.lastMu.Unlock()

	logger.Infof("evaluation: %s action=%s momentum=%.2f price=%.2f samples=%d sufficient=%t",
		symbol, sig.Action, snap.Momentum, snap.Price, snap.Samples, snap.Sufficient)

	if sig.Action == strategy.ActionNone {
		return nil
	}
	err = s.executor.HandleSignal(ctx, symbol, sig)
	switch {
	case err == nil:
		return nil
	case err == trader.ErrCycleInFlight || err == trader.ErrPositionOpen:
		logger.Warnf("evaluation: %s signal dropped: %v", symbol, err)
		return nil
	default:
		return err
	}
}

// LastSignal implements the live HTTP status source.
func (s *LiveService) LastSignal() (strategy.Signal, time.Time, bool) {
	s.lastMu.RLock()
	defer s.lastMu.RUnlock()
	return s.lastSignal, s.lastAt, s.haveSignal
}

// paramsFor layers the per-symbol profile override over the static strategy
// configuration. Zero profile fields leave the base value untouched.
func (s *LiveService) paramsFor(symbol string) strategy.Params {
	base := strategy.Params{
		BaseLeverage:     s.cfg.Strategy.BaseLeverage,
		HighLeverage:     s.cfg.Strategy.HighLeverage,
		EntryPrecision:   s.cfg.Strategy.EntryPrecision,
		LongMomentumMin:  s.cfg.Strategy.LongMomentumMin,
		LongMomentumMax:  s.cfg.Strategy.LongMomentumMax,
		ShortMomentumMin: s.cfg.Strategy.ShortMomentumMin,
		ShortMomentumMax: s.cfg.Strategy.ShortMomentumMax,
		LongExtremeBelow: s.cfg.Strategy.LongExtremeBelow,
		ShortExtremeOver: s.cfg.Strategy.ShortExtremeOver,
	}
	if s.profiles == nil {
		return base
	}
	def := s.profiles.Snapshot().ForSymbol(symbol)
	if def.Name == "" {
		return base
	}
	return overlayParams(base, def.Params())
}

func overlayParams(base, over strategy.Params) strategy.Params {
	if over.BaseLeverage > 0 {
		base.BaseLeverage = over.BaseLeverage
	}
	if over.HighLeverage > 0 {
		base.HighLeverage = over.HighLeverage
	}
	if over.EntryPrecision > 0 {
		base.EntryPrecision = over.EntryPrecision
	}
	if over.LongMomentumMin > 0 {
		base.LongMomentumMin = over.LongMomentumMin
	}
	if over.LongMomentumMax > 0 {
		base.LongMomentumMax = over.LongMomentumMax
	}
	if over.ShortMomentumMin > 0 {
		base.ShortMomentumMin = over.ShortMomentumMin
	}
	if over.ShortMomentumMax > 0 {
		base.ShortMomentumMax = over.ShortMomentumMax
	}
	if over.LongExtremeBelow > 0 {
		base.LongExtremeBelow = over.LongExtremeBelow
	}
	if over.ShortExtremeOver > 0 {
		base.ShortExtremeOver = over.ShortExtremeOver
	}
	return base
}

func (s *LiveService) sendDailyReport(ctx context.Context) {
	if s.trades == nil {
		return
	}
	since := time.Now().AddDate(0, 0, -1)
	sum, err := s.trades.SummarySince(ctx, since)
	if err != nil {
		logger.Warnf("daily report query failed: %v", err)
		return
	}
	lines := []string{
		fmt.Sprintf("trades: %d (wins %d / losses %d)", sum.Trades, sum.Wins, sum.Losses),
		fmt.Sprintf("realized PnL: %+.4f", sum.RealizedPnL),
		fmt.Sprintf("balance: %.4f", s.book.Balance()),
	}
	if open := s.book.OpenSymbols(); len(open) > 0 {
		lines = append(lines, fmt.Sprintf("open: %s", strings.Join(open, ", ")))
	}
	s.sink.Notify(notifier.CategoryReport, "Daily summary",
		notifier.MessageSection{Title: "Last 24h", Lines: lines})
}

func (s *LiveService) Close() {
	if s.journal != nil {
		if err := s.journal.Close(); err != nil {
			logger.Warnf("journal close failed: %v", err)
		}
	}
	if s.trades != nil {
		if err := s.trades.Close(); err != nil {
			logger.Warnf("trade log close failed: %v", err)
		}
	}
}
