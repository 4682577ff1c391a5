// Package pricing turns cart lines into order totals. It has no I/O.
package pricing

import (
	"fmt"

	"checkout-service/internal/domain"

	"github.com/shopspring/decimal"
)

// PriceScale is the number of fractional digits a unit price may carry. It
// matches the precision of the ledger's money columns.
const PriceScale = 4

type Config struct {
	TaxRate               decimal.Decimal
	FreeShippingThreshold decimal.Decimal
	ShippingFee           decimal.Decimal
}

type Line struct {
	UnitPrice decimal.Decimal
	Quantity  int
}

type Totals struct {
	Subtotal decimal.Decimal
	Tax      decimal.Decimal
	Shipping decimal.Decimal
	Total    decimal.Decimal
}

type Calculator struct {
	cfg Config
}

func NewCalculator(cfg Config) *Calculator {
	return &Calculator{cfg: cfg}
}

// Calculate sums the lines, applies tax and the flat shipping fee below the
// free-shipping threshold. Only Total is rounded, to 2 places.
func (c *Calculator) Calculate(lines []Line) (Totals, error) {
	if len(lines) == 0 {
		return Totals{}, fmt.Errorf("%w: cart is empty", domain.ErrValidation)
	}

	subtotal := decimal.Zero
	for i, l := range lines {
		if l.Quantity <= 0 {
			return Totals{}, fmt.Errorf("%w: line %d: quantity must be positive", domain.ErrValidation, i)
		}
		if l.UnitPrice.IsNegative() {
			return Totals{}, fmt.Errorf("%w: line %d: price must not be negative", domain.ErrValidation, i)
		}
		if !l.UnitPrice.Equal(l.UnitPrice.Truncate(PriceScale)) {
			return Totals{}, fmt.Errorf("%w: line %d: price has more than %d decimal places", domain.ErrValidation, i, PriceScale)
		}
		subtotal = subtotal.Add(l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity))))
	}
	if !subtotal.IsPositive() {
		return Totals{}, fmt.Errorf("%w: subtotal must be positive", domain.ErrValidation)
	}

	tax := subtotal.Mul(c.cfg.TaxRate)
	shipping := c.cfg.ShippingFee
	if subtotal.GreaterThanOrEqual(c.cfg.FreeShippingThreshold) {
		shipping = decimal.Zero
	}

	return Totals{
		Subtotal: subtotal,
		Tax:      tax,
		Shipping: shipping,
		Total:    subtotal.Add(tax).Add(shipping).Round(2),
	}, nil
}
