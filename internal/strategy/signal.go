// Package strategy holds the pure decision logic: snapshot evaluation and
// position sizing. Nothing here talks to the exchange.
package strategy

import (
	"math"

	"kestrel/internal/indicator"
)

// Action is the direction a signal asks for.
type Action string

const (
	ActionNone  Action = "none"
	ActionLong  Action = "long"
	ActionShort Action = "short"
)

// Params are the tunable thresholds of the decision engine. Zero values are
// replaced by the defaults documented on each field.
type Params struct {
	BaseLeverage int // default 5
	HighLeverage int // default 10

	// EntryPrecision is the max |price-fast|/fast distance, default 0.003.
	EntryPrecision float64

	LongMomentumMin  float64 // default 30
	LongMomentumMax  float64 // default 50
	ShortMomentumMin float64 // default 50
	ShortMomentumMax float64 // default 70

	// Extreme readings switch to the high leverage tier.
	LongExtremeBelow float64 // default 35
	ShortExtremeOver float64 // default 65
}

func (p Params) withDefaults() Params {
	out := p
	if out.BaseLeverage <= 0 {
		out.BaseLeverage = 5
	}
	if out.HighLeverage <= 0 {
		out.HighLeverage = 10
	}
	if out.EntryPrecision <= 0 {
		out.EntryPrecision = 0.003
	}
	if out.LongMomentumMin <= 0 {
		out.LongMomentumMin = 30
	}
	if out.LongMomentumMax <= 0 {
		out.LongMomentumMax = 50
	}
	if out.ShortMomentumMin <= 0 {
		out.ShortMomentumMin = 50
	}
	if out.ShortMomentumMax <= 0 {
		out.ShortMomentumMax = 70
	}
	if out.LongExtremeBelow <= 0 {
		out.LongExtremeBelow = 35
	}
	if out.ShortExtremeOver <= 0 {
		out.ShortExtremeOver = 65
	}
	return out
}

// Signal is created fresh on every evaluation and never mutated.
type Signal struct {
	Action     Action
	Leverage   int
	Confidence float64
	Snapshot   indicator.Snapshot
}

// Evaluate runs the decision sequence: trend alignment (long checked first),
// entry precision, momentum band. The first failing check short-circuits to
// ActionNone. Degenerate numeric input never produces a directional trade.
func Evaluate(snap indicator.Snapshot, p Params) Signal {
	p = p.withDefaults()
	none := Signal{Action: ActionNone, Snapshot: snap}

	if !snap.Sufficient {
		return none
	}
	if snap.Price <= 0 || snap.FastTrend <= 0 || snap.MidTrend <= 0 || snap.SlowTrend <= 0 {
		return none
	}
	if math.IsNaN(snap.Momentum) || math.IsInf(snap.Momentum, 0) {
		return none
	}

	action := ActionNone
	switch {
	case snap.Price > snap.FastTrend && snap.FastTrend > snap.MidTrend && snap.MidTrend > snap.SlowTrend:
		action = ActionLong
	case snap.Price < snap.FastTrend && snap.FastTrend < snap.MidTrend && snap.MidTrend < snap.SlowTrend:
		action = ActionShort
	default:
		return none
	}

	distance := math.Abs(snap.Price-snap.FastTrend) / snap.FastTrend
	if distance > p.EntryPrecision {
		return none
	}

	switch action {
	case ActionLong:
		if snap.Momentum < p.LongMomentumMin || snap.Momentum > p.LongMomentumMax {
			return none
		}
	case ActionShort:
		if snap.Momentum < p.ShortMomentumMin || snap.Momentum > p.ShortMomentumMax {
			return none
		}
	}

	leverage := p.BaseLeverage
	if action == ActionLong && snap.Momentum < p.LongExtremeBelow {
		leverage = p.HighLeverage
	}
	if action == ActionShort && snap.Momentum > p.ShortExtremeOver {
		leverage = p.HighLeverage
	}

	return Signal{
		Action:     action,
		Leverage:   leverage,
		Confidence: confidence(snap, p, distance),
		Snapshot:   snap,
	}
}

// confidence is diagnostic only; it never gates a trade.
func confidence(snap indicator.Snapshot, p Params, distance float64) float64 {
	spreadPct := math.Abs(snap.FastTrend-snap.SlowTrend) / snap.SlowTrend * 100
	spreadScore := math.Min(30, spreadPct*10)

	momentumScore := math.Abs(snap.Momentum-50) * 2

	precisionPct := p.EntryPrecision * 100
	proximityScore := 0.0
	if precisionPct > 0 {
		proximityScore = math.Max(0, 20*(1-(distance*100)/precisionPct))
	}

	score := spreadScore + momentumScore + proximityScore
	return math.Max(0, math.Min(100, score))
}
