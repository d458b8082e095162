package indicator

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func linearCloses(n int, start, step float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = start + float64(i)*step
	}
	return out
}

func TestComputeInsufficientSeries(t *testing.T) {
	closes := linearCloses(150, 100, 1)
	snap := Compute(closes, Config{})

	assert.False(t, snap.Sufficient)
	assert.Equal(t, 150, snap.Samples)
	assert.Equal(t, NeutralMomentum, snap.Momentum)
	assert.Equal(t, closes[len(closes)-1], snap.Price)
	assert.Zero(t, snap.FastTrend)
	assert.Zero(t, snap.SlowTrend)
}

func TestComputeEmptySeries(t *testing.T) {
	snap := Compute(nil, Config{})

	assert.False(t, snap.Sufficient)
	assert.Zero(t, snap.Samples)
	assert.Zero(t, snap.Price)
	assert.Equal(t, NeutralMomentum, snap.Momentum)
}

func TestComputeUptrendOrdering(t *testing.T) {
	closes := linearCloses(250, 100, 0.5)
	snap := Compute(closes, Config{})

	assert.True(t, snap.Sufficient)
	assert.Equal(t, 250, snap.Samples)
	assert.Equal(t, closes[len(closes)-1], snap.Price)

	// In a steady rise the faster average tracks price more closely.
	assert.Greater(t, snap.Price, snap.FastTrend)
	assert.Greater(t, snap.FastTrend, snap.MidTrend)
	assert.Greater(t, snap.MidTrend, snap.SlowTrend)

	assert.GreaterOrEqual(t, snap.Momentum, 0.0)
	assert.LessOrEqual(t, snap.Momentum, 100.0)
}

func TestComputeExactSlowPeriodBoundary(t *testing.T) {
	closes := linearCloses(200, 100, 1)
	snap := Compute(closes, Config{})
	assert.True(t, snap.Sufficient)

	snap = Compute(closes[:199], Config{})
	assert.False(t, snap.Sufficient)
}

func TestComputeCustomPeriods(t *testing.T) {
	closes := linearCloses(60, 50, 0.1)
	snap := Compute(closes, Config{FastPeriod: 3, MidPeriod: 10, SlowPeriod: 50, MomentumPeriod: 5})

	assert.True(t, snap.Sufficient)
	assert.Greater(t, snap.FastTrend, snap.SlowTrend)
}
