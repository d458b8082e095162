package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"kestrel/internal/config"
	"kestrel/internal/gateway/binance"
	"kestrel/internal/gateway/exchange"
	"kestrel/internal/gateway/notifier"
	"kestrel/internal/logger"
	"kestrel/internal/pkg/circuit"
	"kestrel/internal/profile"
	"kestrel/internal/store/tradelog"
	"kestrel/internal/strategy"
	"kestrel/internal/trader"
	livehttp "kestrel/internal/transport/http/live"
)

func buildApp(ctx context.Context, cfg *config.Config) (*App, error) {
	exch, err := binance.New(binance.Config{
		APIKey:       cfg.Market.APIKey,
		APISecret:    cfg.Market.APISecret,
		RESTBaseURL:  cfg.Market.RESTBaseURL,
		HTTPTimeout:  time.Duration(cfg.Market.HTTPTimeoutSeconds) * time.Second,
		StakeAsset:   cfg.Market.StakeAsset,
		ProxyEnabled: cfg.Market.ProxyEnabled,
		RESTProxyURL: cfg.Market.RESTProxyURL,
	})
	if err != nil {
		return nil, fmt.Errorf("build exchange gateway: %w", err)
	}

	var sink *notifier.Sink
	if cfg.Notify.Telegram.Enabled {
		sink = notifier.NewSink(notifier.NewTelegram(cfg.Notify.Telegram.BotToken, cfg.Notify.Telegram.ChatID))
	} else {
		sink = notifier.NewSink(nil)
	}

	journal, err := trader.NewJournal(cfg.Store.JournalPath)
	if err != nil {
		return nil, fmt.Errorf("open cycle journal: %w", err)
	}
	trades, err := tradelog.NewStore(cfg.Store.TradeLogPath)
	if err != nil {
		return nil, fmt.Errorf("open trade log: %w", err)
	}

	var profiles *profile.Loader
	if path := strings.TrimSpace(cfg.Strategy.ProfilesPath); path != "" {
		profiles, err = profile.NewLoader(path)
		if err != nil {
			return nil, fmt.Errorf("load strategy profiles: %w", err)
		}
		profiles.Subscribe(func(snap profile.Snapshot) {
			logger.Infof("strategy profiles active: version=%d profiles=%d", snap.Version, len(snap.Profiles))
		})
	}

	book := trader.NewBook()

	execCfg := trader.ExecutorConfig{
		QuantityStep:     cfg.Trading.QuantityStep,
		SafetyFraction:   cfg.Trading.SafetyFraction,
		StopLossPoints:   cfg.Trading.StopLossPoints,
		TakeProfitPoints: cfg.Trading.TakeProfitPoints,
		SettleDelay:      time.Duration(cfg.Trading.SettleDelaySeconds) * time.Second,
	}
	if profiles != nil {
		execCfg.BracketResolver = func(symbol string) (float64, float64, bool) {
			def := profiles.Snapshot().ForSymbol(symbol)
			if def.Name == "" || def.StopLossPoints <= 0 || def.TakeProfitPoints <= 0 {
				return 0, 0, false
			}
			return def.StopLossPoints, def.TakeProfitPoints, true
		}
	}
	executor := trader.NewExecutor(exch, book, sink, journal, trades, execCfg)

	monitor := trader.NewMonitor(trader.MonitorParams{
		Exchange:        exch,
		Book:            book,
		Sink:            sink,
		Journal:         journal,
		Trades:          trades,
		SignificantMove: cfg.Monitor.SignificantMoveUSD,
		Breaker: circuit.NewBreaker("position-monitor",
			cfg.Monitor.BreakerThreshold,
			time.Duration(cfg.Monitor.BreakerTimeoutSeconds)*time.Second),
	})

	if cfg.Monitor.StartupReconciliation {
		if err := restoreBook(ctx, exch, book); err != nil {
			logger.Warnf("startup reconciliation failed, starting with empty book: %v", err)
		}
	}

	live := &LiveService{
		cfg:      cfg,
		exch:     exch,
		book:     book,
		executor: executor,
		monitor:  monitor,
		sink:     sink,
		journal:  journal,
		trades:   trades,
		profiles: profiles,
	}

	httpSrv, err := livehttp.NewServer(livehttp.ServerConfig{
		Addr:    cfg.App.HTTPAddr,
		Book:    book,
		Trades:  trades,
		Signals: live,
	})
	if err != nil {
		return nil, fmt.Errorf("build live http server: %w", err)
	}

	return &App{cfg: cfg, live: live, liveHTTP: httpSrv, sink: sink}, nil
}

// restoreBook rebuilds in-memory position state from the venue so a restart
// does not orphan an open position. The entry balance stamp is approximated
// with the current balance; realized PnL for such positions reflects the
// move after restart only.
func restoreBook(ctx context.Context, exch exchange.Exchange, book *trader.Book) error {
	bal, err := exch.Balance(ctx)
	if err != nil {
		return fmt.Errorf("balance: %w", err)
	}
	book.SetBalance(bal.Total)

	positions, err := exch.ListOpenPositions(ctx)
	if err != nil {
		return fmt.Errorf("positions: %w", err)
	}
	for _, p := range positions {
		if p.Amount <= 0 {
			continue
		}
		side := strategy.ActionLong
		if p.Side == "short" {
			side = strategy.ActionShort
		}
		book.SetPosition(trader.Position{
			CycleID:       fmt.Sprintf("recovered-%s-%d", strings.ToLower(p.Symbol), time.Now().Unix()),
			Symbol:        strings.ToUpper(p.Symbol),
			Side:          side,
			Size:          p.Amount,
			EntryPrice:    p.EntryPrice,
			Leverage:      int(p.Leverage),
			UnrealizedPnL: p.UnrealizedPnL,
			EntryBalance:  bal.Total,
			OpenedAt:      time.Now(),
		})
		logger.Infof("recovered open position: %s %s size=%.8f entry=%.8f", p.Side, p.Symbol, p.Amount, p.EntryPrice)
	}
	return nil
}
