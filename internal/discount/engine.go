// Package discount maps coupon codes to discount amounts.
package discount

import (
	"github.com/shopspring/decimal"
)

// CodeSave10 is the storefront's standing ten percent coupon.
const CodeSave10 = "SAVE10"

// DefaultRates is the coupon table used when no override is configured.
func DefaultRates() map[string]decimal.Decimal {
	return map[string]decimal.Decimal{
		CodeSave10: decimal.New(10, -2),
	}
}

// Engine computes discounts from a fixed code table. It holds no mutable
// state, so Compute is safe to call after every cart mutation.
type Engine struct {
	rates map[string]decimal.Decimal
}

// NewEngine copies rates into a new engine; a nil table selects DefaultRates.
func NewEngine(rates map[string]decimal.Decimal) *Engine {
	if rates == nil {
		rates = DefaultRates()
	}
	copied := make(map[string]decimal.Decimal, len(rates))
	for code, rate := range rates {
		copied[code] = rate
	}
	return &Engine{rates: copied}
}

// Compute returns subtotal × rate for a recognized code and zero otherwise.
// Matching is exact and case-sensitive.
func (e *Engine) Compute(code string, subtotal decimal.Decimal) decimal.Decimal {
	rate, ok := e.rate(code)
	if !ok {
		return decimal.Zero
	}
	amount := subtotal.Mul(rate)
	if amount.IsNegative() {
		return decimal.Zero
	}
	return amount
}

// Recognizes reports whether code appears in the table.
func (e *Engine) Recognizes(code string) bool {
	_, ok := e.rate(code)
	return ok
}

func (e *Engine) rate(code string) (decimal.Decimal, bool) {
	if e == nil || code == "" {
		return decimal.Zero, false
	}
	rate, ok := e.rates[code]
	return rate, ok
}

var defaultEngine = NewEngine(nil)

// Compute applies the default table.
func Compute(code string, subtotal decimal.Decimal) decimal.Decimal {
	return defaultEngine.Compute(code, subtotal)
}
