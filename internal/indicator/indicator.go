// Package indicator turns an ordered close-price series into a fixed-shape
// technical snapshot: three EMA trend lines, a Wilder RSI momentum reading
// and the latest close.
package indicator

import (
	talib "github.com/markcheno/go-talib"
)

const (
	// NeutralMomentum is reported when the series is too short to compute RSI.
	NeutralMomentum = 50.0
)

// Config controls the periods used for the snapshot.
type Config struct {
	FastPeriod     int // EMA fast, default 7
	MidPeriod      int // EMA mid, default 100
	SlowPeriod     int // EMA slow, default 200
	MomentumPeriod int // RSI, default 14
}

func (c Config) withDefaults() Config {
	out := c
	if out.FastPeriod <= 0 {
		out.FastPeriod = 7
	}
	if out.MidPeriod <= 0 {
		out.MidPeriod = 100
	}
	if out.SlowPeriod <= 0 {
		out.SlowPeriod = 200
	}
	if out.MomentumPeriod <= 0 {
		out.MomentumPeriod = 14
	}
	return out
}

// Snapshot is immutable once produced. Sufficient=false means the input was
// shorter than the slow period; all fields hold neutral fallbacks and callers
// must treat the snapshot as "no signal", never as an error.
type Snapshot struct {
	FastTrend  float64
	MidTrend   float64
	SlowTrend  float64
	Momentum   float64
	Price      float64
	Samples    int
	Sufficient bool
}

// Compute is a pure function of the close series (oldest first).
func Compute(closes []float64, cfg Config) Snapshot {
	cfg = cfg.withDefaults()
	snap := Snapshot{Momentum: NeutralMomentum, Samples: len(closes)}
	if len(closes) > 0 {
		snap.Price = closes[len(closes)-1]
	}
	if len(closes) < cfg.SlowPeriod {
		return snap
	}
	snap.FastTrend = lastValue(talib.Ema(closes, cfg.FastPeriod))
	snap.MidTrend = lastValue(talib.Ema(closes, cfg.MidPeriod))
	snap.SlowTrend = lastValue(talib.Ema(closes, cfg.SlowPeriod))
	snap.Momentum = lastValue(talib.Rsi(closes, cfg.MomentumPeriod))
	snap.Sufficient = true
	return snap
}

func lastValue(series []float64) float64 {
	if len(series) == 0 {
		return 0
	}
	return series[len(series)-1]
}
