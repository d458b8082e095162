package config

import (
	"fmt"
	"strings"
	"time"

	"kestrel/internal/scheduler"
)

func validate(c *Config) error {
	if err := c.Market.validate(); err != nil {
		return err
	}
	if err := c.Trading.validate(); err != nil {
		return err
	}
	if err := c.Strategy.validate(); err != nil {
		return err
	}
	if err := c.Notify.validate(); err != nil {
		return err
	}
	return nil
}

func (m *MarketConfig) validate() error {
	if strings.TrimSpace(m.APIKey) == "" {
		return fmt.Errorf("market.api_key is required")
	}
	if strings.TrimSpace(m.APISecret) == "" {
		return fmt.Errorf("market.api_secret is required")
	}
	if m.ProxyEnabled && strings.TrimSpace(m.RESTProxyURL) == "" {
		return fmt.Errorf("market.rest_proxy_url required when proxy is enabled")
	}
	return nil
}

func (t *TradingConfig) validate() error {
	if strings.TrimSpace(t.Symbol) == "" {
		return fmt.Errorf("trading.symbol is required")
	}
	if t.StopLossPoints <= 0 {
		return fmt.Errorf("trading.stop_loss_points must be > 0")
	}
	if t.TakeProfitPoints <= 0 {
		return fmt.Errorf("trading.take_profit_points must be > 0")
	}
	if _, _, err := scheduler.ParseClock(t.EntryAt); err != nil {
		return fmt.Errorf("trading.entry_at: %w", err)
	}
	if _, err := time.LoadLocation(t.Timezone); err != nil {
		return fmt.Errorf("trading.timezone: %w", err)
	}
	return nil
}

func (s *StrategyConfig) validate() error {
	if _, ok := scheduler.ParseIntervalDuration(s.CandleInterval); !ok {
		return fmt.Errorf("strategy.candle_interval %q is not a valid interval", s.CandleInterval)
	}
	slow := s.SlowPeriod
	if slow <= 0 {
		slow = 200
	}
	if s.Lookback < slow {
		return fmt.Errorf("strategy.lookback (%d) must cover the slow period (%d)", s.Lookback, slow)
	}
	return nil
}

func (n *NotifyConfig) validate() error {
	if !n.Telegram.Enabled {
		return nil
	}
	if strings.TrimSpace(n.Telegram.BotToken) == "" {
		return fmt.Errorf("notify.telegram.bot_token required when telegram is enabled")
	}
	if strings.TrimSpace(n.Telegram.ChatID) == "" {
		return fmt.Errorf("notify.telegram.chat_id required when telegram is enabled")
	}
	return nil
}
