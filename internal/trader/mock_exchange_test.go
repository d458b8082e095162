package trader

import (
	"context"
	"time"

	"kestrel/internal/gateway/exchange"
	"kestrel/internal/market"

	"github.com/stretchr/testify/mock"
)

type MockExchange struct {
	mock.Mock
}

func (m *MockExchange) Name() string { return "mock" }

func (m *MockExchange) RecentCandles(ctx context.Context, symbol, interval string, limit int) ([]market.Candle, error) {
	args := m.Called(ctx, symbol, interval, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]market.Candle), args.Error(1)
}

func (m *MockExchange) MarkPrice(ctx context.Context, symbol string) (float64, error) {
	args := m.Called(ctx, symbol)
	return args.Get(0).(float64), args.Error(1)
}

func (m *MockExchange) SetLeverage(ctx context.Context, symbol string, leverage int) error {
	args := m.Called(ctx, symbol, leverage)
	return args.Error(0)
}

func (m *MockExchange) SubmitMarketOrder(ctx context.Context, req exchange.MarketOrderRequest) (*exchange.OrderFill, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*exchange.OrderFill), args.Error(1)
}

func (m *MockExchange) SubmitStopOrder(ctx context.Context, req exchange.TriggerOrderRequest) error {
	args := m.Called(ctx, req)
	return args.Error(0)
}

func (m *MockExchange) SubmitTakeProfitOrder(ctx context.Context, req exchange.TriggerOrderRequest) error {
	args := m.Called(ctx, req)
	return args.Error(0)
}

func (m *MockExchange) CancelAllOrders(ctx context.Context, symbol string) error {
	args := m.Called(ctx, symbol)
	return args.Error(0)
}

func (m *MockExchange) ListOpenPositions(ctx context.Context) ([]exchange.Position, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]exchange.Position), args.Error(1)
}

func (m *MockExchange) Balance(ctx context.Context) (exchange.Balance, error) {
	args := m.Called(ctx)
	return args.Get(0).(exchange.Balance), args.Error(1)
}

type MockRecorder struct {
	mock.Mock
}

func (m *MockRecorder) RecordEntry(ctx context.Context, rec TradeRecord) error {
	args := m.Called(ctx, rec)
	return args.Error(0)
}

func (m *MockRecorder) RecordExit(ctx context.Context, cycleID string, realizedPnL float64, closedAt time.Time) error {
	args := m.Called(ctx, cycleID, realizedPnL, closedAt)
	return args.Error(0)
}
