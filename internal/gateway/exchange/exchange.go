// Package exchange defines the venue capability set the core depends on.
// Wire protocol, authentication and rate limits belong to the concrete
// gateway implementations.
package exchange

import (
	"context"

	"kestrel/internal/market"
)

type Exchange interface {
	Name() string

	// RecentCandles returns closed klines oldest first.
	RecentCandles(ctx context.Context, symbol, interval string, limit int) ([]market.Candle, error)

	MarkPrice(ctx context.Context, symbol string) (float64, error)

	SetLeverage(ctx context.Context, symbol string, leverage int) error

	// SubmitMarketOrder places an immediate entry/exit order and reports the fill.
	SubmitMarketOrder(ctx context.Context, req MarketOrderRequest) (*OrderFill, error)

	// SubmitStopOrder places a reduce-only stop-market order (the adverse leg).
	SubmitStopOrder(ctx context.Context, req TriggerOrderRequest) error

	// SubmitTakeProfitOrder places a reduce-only take-profit-market order.
	SubmitTakeProfitOrder(ctx context.Context, req TriggerOrderRequest) error

	CancelAllOrders(ctx context.Context, symbol string) error

	ListOpenPositions(ctx context.Context) ([]Position, error)

	Balance(ctx context.Context) (Balance, error)
}
