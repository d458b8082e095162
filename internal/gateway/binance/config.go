package binance

import (
	"strings"
	"time"
)

type Config struct {
	APIKey      string
	APISecret   string
	RESTBaseURL string
	HTTPTimeout time.Duration

	// StakeAsset is the settlement currency whose balance backs sizing.
	StakeAsset string

	ProxyEnabled bool
	RESTProxyURL string
}

func (c *Config) withDefaults() Config {
	out := *c
	out.RESTBaseURL = strings.TrimSpace(out.RESTBaseURL)
	if out.RESTBaseURL == "" {
		out.RESTBaseURL = "https://fapi.binance.com"
	}
	if out.HTTPTimeout <= 0 {
		out.HTTPTimeout = 15 * time.Second
	}
	out.StakeAsset = strings.ToUpper(strings.TrimSpace(out.StakeAsset))
	if out.StakeAsset == "" {
		out.StakeAsset = "USDT"
	}
	out.RESTProxyURL = strings.TrimSpace(out.RESTProxyURL)
	return out
}
