// Package billing computes bill totals. All rounding happens here, once per
// derived figure, so callers never accumulate float error across steps.
package billing

import (
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Line is one billed cart line: a unit price and a quantity.
type Line struct {
	ItemID   string          `json:"item_id,omitempty"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Quantity int32           `json:"quantity"`
	Veg      bool            `json:"veg,omitempty"`
}

// Total returns the line total (price × quantity), rounded to two decimals.
func (l Line) Total() decimal.Decimal {
	return l.Price.Mul(decimal.NewFromInt32(l.Quantity)).Round(2)
}

// Bill is the computed money breakdown for a set of lines.
type Bill struct {
	Lines               []Line
	Subtotal            decimal.Decimal
	ServiceChargePct    decimal.Decimal
	ServiceChargeAmount decimal.Decimal
	Total               decimal.Decimal
}

// Subtotal sums price × quantity over the lines. An empty cart yields zero.
func Subtotal(lines []Line) decimal.Decimal {
	sum := decimal.Zero
	for _, l := range lines {
		sum = sum.Add(l.Price.Mul(decimal.NewFromInt32(l.Quantity)))
	}
	return sum.Round(2)
}

// ServiceCharge returns subtotal × pct / 100, rounded to two decimals.
func ServiceCharge(subtotal, pct decimal.Decimal) decimal.Decimal {
	return subtotal.Mul(pct).Div(hundred).Round(2)
}

// Compute derives the full bill from lines and a service-charge percentage.
func Compute(lines []Line, pct decimal.Decimal) Bill {
	subtotal := Subtotal(lines)
	charge := ServiceCharge(subtotal, pct)
	return Bill{
		Lines:               lines,
		Subtotal:            subtotal,
		ServiceChargePct:    pct,
		ServiceChargeAmount: charge,
		Total:               subtotal.Add(charge).Round(2),
	}
}
