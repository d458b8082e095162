package config

// Config is the top-level configuration carrier.
type Config struct {
	App      AppConfig      `toml:"app"`
	Market   MarketConfig   `toml:"market"`
	Trading  TradingConfig  `toml:"trading"`
	Strategy StrategyConfig `toml:"strategy"`
	Monitor  MonitorConfig  `toml:"monitor"`
	Notify   NotifyConfig   `toml:"notify"`
	Store    StoreConfig    `toml:"store"`
}

type AppConfig struct {
	Env      string `toml:"env"`
	LogLevel string `toml:"log_level"`
	HTTPAddr string `toml:"http_addr"`
	LogPath  string `toml:"log_path"`
}

type MarketConfig struct {
	APIKey             string `toml:"api_key"`
	APISecret          string `toml:"api_secret"`
	RESTBaseURL        string `toml:"rest_base_url"`
	StakeAsset         string `toml:"stake_asset"`
	HTTPTimeoutSeconds int    `toml:"http_timeout_seconds"`
	ProxyEnabled       bool   `toml:"proxy_enabled"`
	RESTProxyURL       string `toml:"rest_proxy_url"`
}

type TradingConfig struct {
	Symbol             string  `toml:"symbol"`
	QuantityStep       float64 `toml:"quantity_step"`
	SafetyFraction     float64 `toml:"safety_fraction"`
	StopLossPoints     float64 `toml:"stop_loss_points"`
	TakeProfitPoints   float64 `toml:"take_profit_points"`
	SettleDelaySeconds int     `toml:"settle_delay_seconds"`
	EntryAt            string  `toml:"entry_at"` // "HH:MM" local to Timezone
	Timezone           string  `toml:"timezone"`
}

type StrategyConfig struct {
	CandleInterval   string  `toml:"candle_interval"`
	Lookback         int     `toml:"lookback"`
	FastPeriod       int     `toml:"fast_period"`
	MidPeriod        int     `toml:"mid_period"`
	SlowPeriod       int     `toml:"slow_period"`
	MomentumPeriod   int     `toml:"momentum_period"`
	BaseLeverage     int     `toml:"base_leverage"`
	HighLeverage     int     `toml:"high_leverage"`
	EntryPrecision   float64 `toml:"entry_precision"`
	LongMomentumMin  float64 `toml:"long_momentum_min"`
	LongMomentumMax  float64 `toml:"long_momentum_max"`
	ShortMomentumMin float64 `toml:"short_momentum_min"`
	ShortMomentumMax float64 `toml:"short_momentum_max"`
	LongExtremeBelow float64 `toml:"long_extreme_below"`
	ShortExtremeOver float64 `toml:"short_extreme_over"`
	ProfilesPath     string  `toml:"profiles_path"`
}

type MonitorConfig struct {
	IntervalSeconds       int     `toml:"interval_seconds"`
	SignificantMoveUSD    float64 `toml:"significant_move_usd"`
	BreakerThreshold      int     `toml:"breaker_threshold"`
	BreakerTimeoutSeconds int     `toml:"breaker_timeout_seconds"`
	ReportAt              string  `toml:"report_at"` // daily summary, "HH:MM"
	StartupReconciliation bool    `toml:"startup_reconciliation"`
}

type NotifyConfig struct {
	Telegram TelegramConfig `toml:"telegram"`
}

type TelegramConfig struct {
	Enabled  bool   `toml:"enabled"`
	BotToken string `toml:"bot_token"`
	ChatID   string `toml:"chat_id"`
}

type StoreConfig struct {
	TradeLogPath string `toml:"trade_log_path"`
	JournalPath  string `toml:"journal_path"`
}
