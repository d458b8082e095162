package profile

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"kestrel/internal/logger"
	"kestrel/internal/strategy"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Definition is one symbol profile: tunable strategy parameters plus the
// bracket distances that belong to the symbol rather than the account.
type Definition struct {
	Name             string   `mapstructure:"-"`
	Symbols          []string `mapstructure:"symbols"`
	BaseLeverage     int      `mapstructure:"base_leverage"`
	HighLeverage     int      `mapstructure:"high_leverage"`
	EntryPrecision   float64  `mapstructure:"entry_precision"`
	LongMomentumMin  float64  `mapstructure:"long_momentum_min"`
	LongMomentumMax  float64  `mapstructure:"long_momentum_max"`
	ShortMomentumMin float64  `mapstructure:"short_momentum_min"`
	ShortMomentumMax float64  `mapstructure:"short_momentum_max"`
	LongExtremeBelow float64  `mapstructure:"long_extreme_below"`
	ShortExtremeOver float64  `mapstructure:"short_extreme_over"`
	StopLossPoints   float64  `mapstructure:"stop_loss_points"`
	TakeProfitPoints float64  `mapstructure:"take_profit_points"`
	Default          bool     `mapstructure:"default"`

	symbolsUpper []string
}

// Params converts the profile into strategy parameters; zero fields fall
// back to the built-in defaults inside the strategy package.
func (d Definition) Params() strategy.Params {
	return strategy.Params{
		BaseLeverage:     d.BaseLeverage,
		HighLeverage:     d.HighLeverage,
		EntryPrecision:   d.EntryPrecision,
		LongMomentumMin:  d.LongMomentumMin,
		LongMomentumMax:  d.LongMomentumMax,
		ShortMomentumMin: d.ShortMomentumMin,
		ShortMomentumMax: d.ShortMomentumMax,
		LongExtremeBelow: d.LongExtremeBelow,
		ShortExtremeOver: d.ShortExtremeOver,
	}
}

type fileConfig struct {
	Profiles map[string]Definition `mapstructure:"profiles"`
}

// Snapshot is a read-only view of the loaded profiles. Version increments
// on every successful reload.
type Snapshot struct {
	Version  int64
	LoadedAt time.Time
	Profiles map[string]Definition
}

// ForSymbol resolves the profile for a symbol: an explicit symbol match
// wins, then the profile marked default, then the zero Definition.
func (s Snapshot) ForSymbol(symbol string) Definition {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	var fallback Definition
	for _, def := range s.Profiles {
		for _, sym := range def.symbolsUpper {
			if sym == symbol {
				return def
			}
		}
		if def.Default {
			fallback = def
		}
	}
	return fallback
}

// ChangeListener is called with the new snapshot after each reload.
type ChangeListener func(Snapshot)

// Loader reads symbol profiles from a YAML file and watches it for edits,
// so momentum bands and leverage tiers can be tuned without a restart.
type Loader struct {
	path string
	v    *viper.Viper

	mu        sync.RWMutex
	snapshot  Snapshot
	listeners []ChangeListener
}

func NewLoader(path string) (*Loader, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("profile loader requires path")
	}
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read profile config failed: %w", err)
	}
	loader := &Loader{path: path, v: v}
	if err := loader.reload(); err != nil {
		return nil, err
	}
	v.OnConfigChange(func(evt fsnotify.Event) {
		if err := loader.reload(); err != nil {
			logger.Errorf("profile reload failed (%s): %v", evt.Name, err)
			return
		}
		loader.notify()
	})
	v.WatchConfig()
	return loader, nil
}

func (l *Loader) Snapshot() Snapshot {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return cloneSnapshot(l.snapshot)
}

// Subscribe registers a listener and delivers the current snapshot to it
// once, asynchronously.
func (l *Loader) Subscribe(fn ChangeListener) {
	if fn == nil {
		return
	}
	l.mu.Lock()
	l.listeners = append(l.listeners, fn)
	snap := cloneSnapshot(l.snapshot)
	l.mu.Unlock()
	go safeNotify(fn, snap)
}

func (l *Loader) notify() {
	l.mu.RLock()
	snap := cloneSnapshot(l.snapshot)
	listeners := append([]ChangeListener(nil), l.listeners...)
	l.mu.RUnlock()
	for _, fn := range listeners {
		if fn == nil {
			continue
		}
		go safeNotify(fn, snap)
	}
}

func safeNotify(fn ChangeListener, snap Snapshot) {
	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("profile listener panic: %v", r)
		}
	}()
	fn(snap)
}

func (l *Loader) reload() error {
	var fileCfg fileConfig
	if err := l.v.Unmarshal(&fileCfg); err != nil {
		return fmt.Errorf("parse profile config failed: %w", err)
	}
	normalized := make(map[string]Definition, len(fileCfg.Profiles))
	for name, def := range fileCfg.Profiles {
		normalized[name] = normalizeDefinition(name, def)
	}
	l.mu.Lock()
	l.snapshot = Snapshot{
		Version:  l.snapshot.Version + 1,
		LoadedAt: time.Now(),
		Profiles: normalized,
	}
	l.mu.Unlock()
	logger.Infof("profile loader reloaded %d profiles from %s", len(normalized), filepath.Base(l.path))
	return nil
}

func normalizeDefinition(name string, def Definition) Definition {
	def.Name = name
	def.symbolsUpper = def.symbolsUpper[:0]
	for _, sym := range def.Symbols {
		s := strings.ToUpper(strings.TrimSpace(sym))
		if s != "" {
			def.symbolsUpper = append(def.symbolsUpper, s)
		}
	}
	return def
}

func cloneSnapshot(in Snapshot) Snapshot {
	out := Snapshot{Version: in.Version, LoadedAt: in.LoadedAt}
	if in.Profiles != nil {
		out.Profiles = make(map[string]Definition, len(in.Profiles))
		for k, v := range in.Profiles {
			v.Symbols = append([]string(nil), v.Symbols...)
			v.symbolsUpper = append([]string(nil), v.symbolsUpper...)
			out.Profiles[k] = v
		}
	}
	return out
}
