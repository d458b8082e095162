package trader

import (
	"context"
	"errors"
	"testing"
	"time"

	"kestrel/internal/gateway/exchange"
	"kestrel/internal/gateway/notifier"
	"kestrel/internal/strategy"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func testExecutorConfig() ExecutorConfig {
	return ExecutorConfig{
		QuantityStep:     0.001,
		SafetyFraction:   0.95,
		StopLossPoints:   1500,
		TakeProfitPoints: 3000,
		SettleDelay:      time.Millisecond,
	}
}

func longSignal() strategy.Signal {
	return strategy.Signal{Action: strategy.ActionLong, Leverage: 5, Confidence: 70}
}

func isEntry(req exchange.MarketOrderRequest) bool      { return !req.ReduceOnly }
func isReduceOnly(req exchange.MarketOrderRequest) bool { return req.ReduceOnly }

func TestHandleSignalHappyPath(t *testing.T) {
	exch := new(MockExchange)
	rec := new(MockRecorder)
	book := NewBook()
	exec := NewExecutor(exch, book, notifier.NewSink(nil), nil, rec, testExecutorConfig())

	exch.On("ListOpenPositions", mock.Anything).Return([]exchange.Position{}, nil)
	exch.On("CancelAllOrders", mock.Anything, "BTCUSDT").Return(nil)
	exch.On("Balance", mock.Anything).Return(exchange.Balance{Total: 1000, Available: 1000}, nil)
	exch.On("MarkPrice", mock.Anything, "BTCUSDT").Return(42000.0, nil)
	exch.On("SetLeverage", mock.Anything, "BTCUSDT", 5).Return(nil)
	exch.On("SubmitMarketOrder", mock.Anything, mock.MatchedBy(isEntry)).
		Return(&exchange.OrderFill{Symbol: "BTCUSDT", Quantity: 0.113, AvgPrice: 42000}, nil)
	exch.On("SubmitStopOrder", mock.Anything, mock.Anything).Return(nil)
	exch.On("SubmitTakeProfitOrder", mock.Anything, mock.Anything).Return(nil)
	rec.On("RecordEntry", mock.Anything, mock.Anything).Return(nil)

	err := exec.HandleSignal(context.Background(), "BTCUSDT", longSignal())
	require.NoError(t, err)

	pos, ok := book.Position("BTCUSDT")
	require.True(t, ok)
	assert.Equal(t, strategy.ActionLong, pos.Side)
	assert.Equal(t, 0.113, pos.Size)
	assert.Equal(t, 42000.0, pos.EntryPrice)
	assert.Equal(t, 40500.0, pos.StopLossPrice)
	assert.Equal(t, 45000.0, pos.TakeProfitPrice)
	assert.Equal(t, 1000.0, pos.EntryBalance)
	assert.NotEmpty(t, pos.CycleID)

	exch.AssertNumberOfCalls(t, "SubmitMarketOrder", 1)
	rec.AssertCalled(t, "RecordEntry", mock.Anything, mock.Anything)

	// Guard released after the cycle.
	assert.True(t, book.Acquire("BTCUSDT"))
	book.Release("BTCUSDT")
}

func TestHandleSignalShortBracketSides(t *testing.T) {
	exch := new(MockExchange)
	book := NewBook()
	exec := NewExecutor(exch, book, notifier.NewSink(nil), nil, nil, testExecutorConfig())

	exch.On("ListOpenPositions", mock.Anything).Return([]exchange.Position{}, nil)
	exch.On("CancelAllOrders", mock.Anything, "BTCUSDT").Return(nil)
	exch.On("Balance", mock.Anything).Return(exchange.Balance{Total: 1000, Available: 1000}, nil)
	exch.On("MarkPrice", mock.Anything, "BTCUSDT").Return(42000.0, nil)
	exch.On("SetLeverage", mock.Anything, "BTCUSDT", 10).Return(nil)
	exch.On("SubmitMarketOrder", mock.Anything, mock.MatchedBy(func(req exchange.MarketOrderRequest) bool {
		return req.Side == exchange.SideSell && !req.ReduceOnly
	})).Return(&exchange.OrderFill{Symbol: "BTCUSDT", Quantity: 0.226, AvgPrice: 42000}, nil)
	exch.On("SubmitStopOrder", mock.Anything, mock.MatchedBy(func(req exchange.TriggerOrderRequest) bool {
		return req.Side == exchange.SideBuy && req.TriggerPrice == 43500
	})).Return(nil)
	exch.On("SubmitTakeProfitOrder", mock.Anything, mock.MatchedBy(func(req exchange.TriggerOrderRequest) bool {
		return req.Side == exchange.SideBuy && req.TriggerPrice == 39000
	})).Return(nil)

	sig := strategy.Signal{Action: strategy.ActionShort, Leverage: 10}
	require.NoError(t, exec.HandleSignal(context.Background(), "BTCUSDT", sig))

	pos, ok := book.Position("BTCUSDT")
	require.True(t, ok)
	assert.Equal(t, 43500.0, pos.StopLossPrice)
	assert.Equal(t, 39000.0, pos.TakeProfitPrice)
}

func TestHandleSignalFlattensPriorExposure(t *testing.T) {
	exch := new(MockExchange)
	book := NewBook()
	exec := NewExecutor(exch, book, notifier.NewSink(nil), nil, nil, testExecutorConfig())

	prior := exchange.Position{Symbol: "BTCUSDT", Side: "short", Amount: 0.05}
	exch.On("ListOpenPositions", mock.Anything).Return([]exchange.Position{prior}, nil)
	// Closing the prior short buys reduce-only.
	exch.On("SubmitMarketOrder", mock.Anything, mock.MatchedBy(func(req exchange.MarketOrderRequest) bool {
		return req.ReduceOnly && req.Side == exchange.SideBuy && req.Quantity == 0.05
	})).Return(&exchange.OrderFill{}, nil).Once()
	exch.On("CancelAllOrders", mock.Anything, "BTCUSDT").Return(nil)
	exch.On("Balance", mock.Anything).Return(exchange.Balance{Total: 1000, Available: 1000}, nil)
	exch.On("MarkPrice", mock.Anything, "BTCUSDT").Return(42000.0, nil)
	exch.On("SetLeverage", mock.Anything, "BTCUSDT", 5).Return(nil)
	exch.On("SubmitMarketOrder", mock.Anything, mock.MatchedBy(isEntry)).
		Return(&exchange.OrderFill{Quantity: 0.113, AvgPrice: 42000}, nil)
	exch.On("SubmitStopOrder", mock.Anything, mock.Anything).Return(nil)
	exch.On("SubmitTakeProfitOrder", mock.Anything, mock.Anything).Return(nil)

	require.NoError(t, exec.HandleSignal(context.Background(), "BTCUSDT", longSignal()))
	exch.AssertNumberOfCalls(t, "SubmitMarketOrder", 2)
}

func TestHandleSignalNoneIsNoOp(t *testing.T) {
	exch := new(MockExchange)
	exec := NewExecutor(exch, NewBook(), notifier.NewSink(nil), nil, nil, testExecutorConfig())

	err := exec.HandleSignal(context.Background(), "BTCUSDT", strategy.Signal{Action: strategy.ActionNone})
	assert.NoError(t, err)
	exch.AssertNotCalled(t, "SubmitMarketOrder", mock.Anything, mock.Anything)
}

func TestHandleSignalRejectsWhileCycleInFlight(t *testing.T) {
	exch := new(MockExchange)
	book := NewBook()
	exec := NewExecutor(exch, book, notifier.NewSink(nil), nil, nil, testExecutorConfig())

	require.True(t, book.Acquire("BTCUSDT"))
	defer book.Release("BTCUSDT")

	err := exec.HandleSignal(context.Background(), "BTCUSDT", longSignal())
	assert.ErrorIs(t, err, ErrCycleInFlight)
	exch.AssertNotCalled(t, "SubmitMarketOrder", mock.Anything, mock.Anything)
}

func TestHandleSignalRejectsWhilePositionOpen(t *testing.T) {
	exch := new(MockExchange)
	book := NewBook()
	book.SetPosition(Position{Symbol: "BTCUSDT", Size: 0.1})
	exec := NewExecutor(exch, book, notifier.NewSink(nil), nil, nil, testExecutorConfig())

	err := exec.HandleSignal(context.Background(), "BTCUSDT", longSignal())
	assert.ErrorIs(t, err, ErrPositionOpen)
	exch.AssertNotCalled(t, "SubmitMarketOrder", mock.Anything, mock.Anything)
}

func TestHandleSignalSizingAbort(t *testing.T) {
	exch := new(MockExchange)
	book := NewBook()
	exec := NewExecutor(exch, book, notifier.NewSink(nil), nil, nil, testExecutorConfig())

	exch.On("ListOpenPositions", mock.Anything).Return([]exchange.Position{}, nil)
	exch.On("CancelAllOrders", mock.Anything, "BTCUSDT").Return(nil)
	exch.On("Balance", mock.Anything).Return(exchange.Balance{}, errors.New("venue down"))

	err := exec.HandleSignal(context.Background(), "BTCUSDT", longSignal())
	assert.Error(t, err)
	exch.AssertNotCalled(t, "SubmitMarketOrder", mock.Anything, mock.Anything)

	_, ok := book.Position("BTCUSDT")
	assert.False(t, ok)
}

func TestHandleSignalZeroQuantityAbort(t *testing.T) {
	exch := new(MockExchange)
	book := NewBook()
	exec := NewExecutor(exch, book, notifier.NewSink(nil), nil, nil, testExecutorConfig())

	exch.On("ListOpenPositions", mock.Anything).Return([]exchange.Position{}, nil)
	exch.On("CancelAllOrders", mock.Anything, "BTCUSDT").Return(nil)
	// A dust balance sizes below one quantity step.
	exch.On("Balance", mock.Anything).Return(exchange.Balance{Total: 1, Available: 1}, nil)
	exch.On("MarkPrice", mock.Anything, "BTCUSDT").Return(42000.0, nil)

	err := exec.HandleSignal(context.Background(), "BTCUSDT", strategy.Signal{Action: strategy.ActionLong, Leverage: 1})
	assert.Error(t, err)
	exch.AssertNotCalled(t, "SubmitMarketOrder", mock.Anything, mock.Anything)
}

func TestHandleSignalBracketFailureEscalates(t *testing.T) {
	exch := new(MockExchange)
	book := NewBook()
	exec := NewExecutor(exch, book, notifier.NewSink(nil), nil, nil, testExecutorConfig())

	exch.On("ListOpenPositions", mock.Anything).Return([]exchange.Position{}, nil)
	exch.On("CancelAllOrders", mock.Anything, "BTCUSDT").Return(nil)
	exch.On("Balance", mock.Anything).Return(exchange.Balance{Total: 1000, Available: 1000}, nil)
	exch.On("MarkPrice", mock.Anything, "BTCUSDT").Return(42000.0, nil)
	exch.On("SetLeverage", mock.Anything, "BTCUSDT", 5).Return(nil)
	exch.On("SubmitMarketOrder", mock.Anything, mock.MatchedBy(isEntry)).
		Return(&exchange.OrderFill{Quantity: 0.113, AvgPrice: 42000}, nil)
	exch.On("SubmitStopOrder", mock.Anything, mock.Anything).Return(errors.New("rate limited"))
	// Emergency close of the naked entry.
	exch.On("SubmitMarketOrder", mock.Anything, mock.MatchedBy(isReduceOnly)).
		Return(&exchange.OrderFill{}, nil)

	err := exec.HandleSignal(context.Background(), "BTCUSDT", longSignal())
	require.Error(t, err)

	var exposure *CriticalExposureError
	require.ErrorAs(t, err, &exposure)
	assert.True(t, exposure.Flattened)
	assert.Equal(t, "BTCUSDT", exposure.Symbol)

	// Stop leg retried exactly once before escalation.
	exch.AssertNumberOfCalls(t, "SubmitStopOrder", 2)
	exch.AssertNotCalled(t, "SubmitTakeProfitOrder", mock.Anything, mock.Anything)

	_, ok := book.Position("BTCUSDT")
	assert.False(t, ok)
}

func TestHandleSignalBracketFailureFlattenFails(t *testing.T) {
	exch := new(MockExchange)
	book := NewBook()
	exec := NewExecutor(exch, book, notifier.NewSink(nil), nil, nil, testExecutorConfig())

	exch.On("ListOpenPositions", mock.Anything).Return([]exchange.Position{}, nil)
	exch.On("CancelAllOrders", mock.Anything, "BTCUSDT").Return(nil)
	exch.On("Balance", mock.Anything).Return(exchange.Balance{Total: 1000, Available: 1000}, nil)
	exch.On("MarkPrice", mock.Anything, "BTCUSDT").Return(42000.0, nil)
	exch.On("SetLeverage", mock.Anything, "BTCUSDT", 5).Return(nil)
	exch.On("SubmitMarketOrder", mock.Anything, mock.MatchedBy(isEntry)).
		Return(&exchange.OrderFill{Quantity: 0.113, AvgPrice: 42000}, nil)
	exch.On("SubmitStopOrder", mock.Anything, mock.Anything).Return(errors.New("rate limited"))
	exch.On("SubmitMarketOrder", mock.Anything, mock.MatchedBy(isReduceOnly)).
		Return(nil, errors.New("venue down"))

	err := exec.HandleSignal(context.Background(), "BTCUSDT", longSignal())

	var exposure *CriticalExposureError
	require.ErrorAs(t, err, &exposure)
	assert.False(t, exposure.Flattened)
}

func TestHandleSignalBracketResolverOverride(t *testing.T) {
	exch := new(MockExchange)
	book := NewBook()
	cfg := testExecutorConfig()
	cfg.BracketResolver = func(symbol string) (float64, float64, bool) {
		return 500, 900, true
	}
	exec := NewExecutor(exch, book, notifier.NewSink(nil), nil, nil, cfg)

	exch.On("ListOpenPositions", mock.Anything).Return([]exchange.Position{}, nil)
	exch.On("CancelAllOrders", mock.Anything, "BTCUSDT").Return(nil)
	exch.On("Balance", mock.Anything).Return(exchange.Balance{Total: 1000, Available: 1000}, nil)
	exch.On("MarkPrice", mock.Anything, "BTCUSDT").Return(42000.0, nil)
	exch.On("SetLeverage", mock.Anything, "BTCUSDT", 5).Return(nil)
	exch.On("SubmitMarketOrder", mock.Anything, mock.MatchedBy(isEntry)).
		Return(&exchange.OrderFill{Quantity: 0.113, AvgPrice: 42000}, nil)
	exch.On("SubmitStopOrder", mock.Anything, mock.Anything).Return(nil)
	exch.On("SubmitTakeProfitOrder", mock.Anything, mock.Anything).Return(nil)

	require.NoError(t, exec.HandleSignal(context.Background(), "BTCUSDT", longSignal()))

	pos, _ := book.Position("BTCUSDT")
	assert.Equal(t, 41500.0, pos.StopLossPrice)
	assert.Equal(t, 42900.0, pos.TakeProfitPrice)
}
