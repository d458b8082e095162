package config

import (
	"fmt"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

func Load(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config path cannot be empty")
	}
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config file failed (%s): %w", path, err)
	}
	var cfg Config
	if err := v.Unmarshal(&cfg, func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "toml"
		dc.WeaklyTypedInput = true
	}); err != nil {
		return nil, fmt.Errorf("parsing config failed: %w", err)
	}
	cfg.applyDefaults()
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Summary renders the effective configuration as YAML with credentials
// masked, for the startup log and notification.
func (c *Config) Summary() string {
	masked := *c
	masked.Market.APIKey = maskSecret(masked.Market.APIKey)
	masked.Market.APISecret = maskSecret(masked.Market.APISecret)
	masked.Notify.Telegram.BotToken = maskSecret(masked.Notify.Telegram.BotToken)
	out, err := yaml.Marshal(&masked)
	if err != nil {
		return fmt.Sprintf("config summary unavailable: %v", err)
	}
	return string(out)
}

func maskSecret(s string) string {
	if len(s) <= 6 {
		if s == "" {
			return ""
		}
		return "***"
	}
	return s[:3] + "..." + s[len(s)-3:]
}
