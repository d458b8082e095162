package app

import (
	"context"
	"fmt"

	"kestrel/internal/config"
	"kestrel/internal/gateway/notifier"
	"kestrel/internal/logger"
	livehttp "kestrel/internal/transport/http/live"

	"golang.org/x/sync/errgroup"
)

// App wires configuration into the running services.
type App struct {
	cfg      *config.Config
	live     *LiveService
	liveHTTP *livehttp.Server
	sink     *notifier.Sink
}

func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	logger.SetLevel(cfg.App.LogLevel)
	return buildApp(ctx, cfg)
}

// Run starts the HTTP server and the live service and blocks until either
// fails or ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.cfg == nil {
		return fmt.Errorf("app not initialized")
	}

	a.sink.Notify(notifier.CategoryStartup, "Kestrel started",
		notifier.MessageSection{Title: "Config", Lines: []string{
			fmt.Sprintf("env: %s", a.cfg.App.Env),
			fmt.Sprintf("symbol: %s @ %s", a.cfg.Trading.Symbol, a.cfg.Strategy.CandleInterval),
			fmt.Sprintf("entry at: %s %s", a.cfg.Trading.EntryAt, a.cfg.Trading.Timezone),
		}},
	)
	logger.Infof("effective configuration:\n%s", a.cfg.Summary())

	group, ctx := errgroup.WithContext(ctx)

	if a.liveHTTP != nil {
		group.Go(func() error {
			if err := a.liveHTTP.Start(ctx); err != nil {
				return fmt.Errorf("live http server error: %w", err)
			}
			return nil
		})
	}

	group.Go(func() error {
		defer a.live.Close()
		return a.live.Run(ctx)
	})

	return group.Wait()
}

// LiveService exposes the underlying service for replay harnesses.
func (a *App) LiveService() *LiveService {
	if a == nil {
		return nil
	}
	return a.live
}
