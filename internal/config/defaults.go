package config

const (
	defaultAppEnv           = "dev"
	defaultAppLogLevel      = "info"
	defaultAppHTTPAddr      = ":9991"
	defaultAppLogPath       = "/data/logs/kestrel-live.log"
	defaultMarketREST       = "https://fapi.binance.com"
	defaultStakeAsset       = "USDT"
	defaultHTTPTimeout      = 15
	defaultQuantityStep     = 0.001
	defaultSafetyFraction   = 0.95
	defaultSettleDelay      = 2
	defaultEntryAt          = "00:05"
	defaultTimezone         = "UTC"
	defaultCandleInterval   = "30m"
	defaultLookback         = 250
	defaultMonitorInterval  = 30
	defaultSignificantMove  = 10.0
	defaultBreakerThreshold = 3
	defaultBreakerTimeout   = 60
	defaultTradeLogPath     = "/data/live/trades.db"
	defaultJournalPath      = "/data/live/journal.db"
)

func (c *Config) applyDefaults() {
	c.App.applyDefaults()
	c.Market.applyDefaults()
	c.Trading.applyDefaults()
	c.Strategy.applyDefaults()
	c.Monitor.applyDefaults()
	c.Store.applyDefaults()
}

func (a *AppConfig) applyDefaults() {
	if a.Env == "" {
		a.Env = defaultAppEnv
	}
	if a.LogLevel == "" {
		a.LogLevel = defaultAppLogLevel
	}
	if a.HTTPAddr == "" {
		a.HTTPAddr = defaultAppHTTPAddr
	}
	if a.LogPath == "" {
		a.LogPath = defaultAppLogPath
	}
}

func (m *MarketConfig) applyDefaults() {
	if m.RESTBaseURL == "" {
		m.RESTBaseURL = defaultMarketREST
	}
	if m.StakeAsset == "" {
		m.StakeAsset = defaultStakeAsset
	}
	if m.HTTPTimeoutSeconds <= 0 {
		m.HTTPTimeoutSeconds = defaultHTTPTimeout
	}
}

func (t *TradingConfig) applyDefaults() {
	if t.QuantityStep <= 0 {
		t.QuantityStep = defaultQuantityStep
	}
	if t.SafetyFraction <= 0 || t.SafetyFraction > 1 {
		t.SafetyFraction = defaultSafetyFraction
	}
	if t.SettleDelaySeconds <= 0 {
		t.SettleDelaySeconds = defaultSettleDelay
	}
	if t.EntryAt == "" {
		t.EntryAt = defaultEntryAt
	}
	if t.Timezone == "" {
		t.Timezone = defaultTimezone
	}
}

func (s *StrategyConfig) applyDefaults() {
	if s.CandleInterval == "" {
		s.CandleInterval = defaultCandleInterval
	}
	if s.Lookback <= 0 {
		s.Lookback = defaultLookback
	}
	// Period, leverage and band fields stay zero here; the strategy package
	// fills its own defaults so config and profiles can both omit them.
}

func (m *MonitorConfig) applyDefaults() {
	if m.IntervalSeconds <= 0 {
		m.IntervalSeconds = defaultMonitorInterval
	}
	if m.SignificantMoveUSD <= 0 {
		m.SignificantMoveUSD = defaultSignificantMove
	}
	if m.BreakerThreshold <= 0 {
		m.BreakerThreshold = defaultBreakerThreshold
	}
	if m.BreakerTimeoutSeconds <= 0 {
		m.BreakerTimeoutSeconds = defaultBreakerTimeout
	}
}

func (s *StoreConfig) applyDefaults() {
	if s.TradeLogPath == "" {
		s.TradeLogPath = defaultTradeLogPath
	}
	if s.JournalPath == "" {
		s.JournalPath = defaultJournalPath
	}
}
