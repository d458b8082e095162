package scheduler

import (
	"context"
	"testing"
	"time"

	"kestrel/internal/market"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseIntervalDuration(t *testing.T) {
	cases := map[string]time.Duration{
		"1m":  time.Minute,
		"30m": 30 * time.Minute,
		"1h":  time.Hour,
		"4h":  4 * time.Hour,
		"1d":  24 * time.Hour,
		"1w":  7 * 24 * time.Hour,
		"1D":  24 * time.Hour,
	}
	for in, want := range cases {
		got, ok := ParseIntervalDuration(in)
		assert.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}

	for _, in := range []string{"", "d", "0m", "-1h", "1x", "abc"} {
		_, ok := ParseIntervalDuration(in)
		assert.False(t, ok, in)
	}
}

func TestParseClock(t *testing.T) {
	h, m, err := ParseClock("00:05")
	require.NoError(t, err)
	assert.Equal(t, 0, h)
	assert.Equal(t, 5, m)

	h, m, err = ParseClock("23:59")
	require.NoError(t, err)
	assert.Equal(t, 23, h)
	assert.Equal(t, 59, m)

	for _, in := range []string{"", "24:00", "12:60", "12", "a:b"} {
		_, _, err := ParseClock(in)
		assert.Error(t, err, in)
	}
}

func TestDailySchedulerNextRun(t *testing.T) {
	s := NewDailyScheduler(context.Background(), 0, 5, time.UTC)

	before := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)
	next := s.nextRun(before)
	assert.Equal(t, time.Date(2024, 3, 10, 0, 5, 0, 0, time.UTC), next)

	after := time.Date(2024, 3, 10, 0, 5, 0, 0, time.UTC)
	next = s.nextRun(after)
	assert.Equal(t, time.Date(2024, 3, 11, 0, 5, 0, 0, time.UTC), next)
}

func TestDailySchedulerStopsOnContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s := NewDailyScheduler(ctx, 23, 59, time.UTC)

	done := make(chan struct{})
	go func() {
		s.Start(func() {})
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop on context cancel")
	}
}

func TestIntervalSchedulerRunImmediately(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s := NewIntervalScheduler(ctx, time.Hour)
	s.RunImmediately = true

	ran := make(chan struct{}, 1)
	done := make(chan struct{})
	go func() {
		s.Start(func() { ran <- struct{}{} })
		close(done)
	}()

	select {
	case <-ran:
	case <-time.After(2 * time.Second):
		t.Fatal("immediate run did not fire")
	}
	cancel()
	<-done
}

func klineAt(openMs int64) market.Candle {
	return market.Candle{OpenTime: openMs, Close: 100}
}

func TestDropUnclosedKline(t *testing.T) {
	interval := time.Hour
	now := time.Date(2024, 3, 10, 12, 30, 0, 0, time.UTC)

	closed := klineAt(now.Add(-2 * time.Hour).UnixMilli())
	open := klineAt(now.Add(-30 * time.Minute).UnixMilli())

	// Last candle still in progress gets dropped.
	out := dropUnclosedKlineAt([]market.Candle{closed, open}, interval, now, DefaultKlineGrace)
	require.Len(t, out, 1)
	assert.Equal(t, closed.OpenTime, out[0].OpenTime)

	// A fully closed tail survives.
	out = dropUnclosedKlineAt([]market.Candle{closed}, interval, now, DefaultKlineGrace)
	assert.Len(t, out, 1)

	// A candle that closed within the grace window is still dropped.
	justClosed := klineAt(now.Add(-time.Hour).Add(-5 * time.Second).UnixMilli())
	out = dropUnclosedKlineAt([]market.Candle{justClosed}, interval, now, DefaultKlineGrace)
	assert.Len(t, out, 0)

	// Empty input passes through.
	assert.Empty(t, dropUnclosedKlineAt(nil, interval, now, DefaultKlineGrace))
}
