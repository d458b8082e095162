package strategy

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// DefaultSafetyFraction reserves a margin buffer so an entry never commits
// the whole account.
const DefaultSafetyFraction = 0.95

// OrderQuantity sizes an entry: notional = balance x safety x leverage,
// quantity = notional / price, floored to the venue quantity step. Rounding
// is always down so the order cannot over-commit margin. A zero or negative
// result is an error the caller must abort on, never a silent zero order.
func OrderQuantity(balance float64, leverage int, price, step, safety float64) (float64, error) {
	if balance <= 0 {
		return 0, fmt.Errorf("sizer: balance must be positive, got %.8f", balance)
	}
	if leverage <= 0 {
		return 0, fmt.Errorf("sizer: leverage must be positive, got %d", leverage)
	}
	if price <= 0 {
		return 0, fmt.Errorf("sizer: price must be positive, got %.8f", price)
	}
	if step <= 0 {
		return 0, fmt.Errorf("sizer: quantity step must be positive, got %.8f", step)
	}
	if safety <= 0 || safety > 1 {
		safety = DefaultSafetyFraction
	}

	notional := decimal.NewFromFloat(balance).
		Mul(decimal.NewFromFloat(safety)).
		Mul(decimal.NewFromInt(int64(leverage)))
	raw := notional.Div(decimal.NewFromFloat(price))

	stepDec := decimal.NewFromFloat(step)
	qty := raw.Div(stepDec).Floor().Mul(stepDec)

	out, _ := qty.Float64()
	if out <= 0 {
		return 0, fmt.Errorf("sizer: computed quantity %s below venue step %.8f", qty.String(), step)
	}
	return out, nil
}
