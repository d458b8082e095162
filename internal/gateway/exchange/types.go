package exchange

import "time"

// Side of an order or position.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// Opposite returns the closing side for an entry side.
func (s Side) Opposite() Side {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

// Position is a live position as reported by the venue.
type Position struct {
	Symbol        string
	Side          string  // "long" or "short"
	Amount        float64 // absolute quantity, 0 when flat
	EntryPrice    float64
	Leverage      float64
	MarkPrice     float64
	UnrealizedPnL float64
	UpdatedAt     time.Time
}

// Balance is the account equity view in the stake currency.
type Balance struct {
	Asset     string
	Total     float64
	Available float64
	UpdatedAt time.Time
}

// MarketOrderRequest asks for an immediate fill.
type MarketOrderRequest struct {
	Symbol     string
	Side       Side
	Quantity   float64
	ReduceOnly bool
}

// OrderFill reports the executed entry.
type OrderFill struct {
	OrderID  int64
	Symbol   string
	Side     Side
	Quantity float64
	AvgPrice float64
	FilledAt time.Time
}

// TriggerOrderRequest describes one protective bracket leg. The order is
// always reduce-only and on the opposite side of the entry.
type TriggerOrderRequest struct {
	Symbol       string
	Side         Side
	Quantity     float64
	TriggerPrice float64
}
