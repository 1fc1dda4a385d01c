package services

import (
	"github.com/shopspring/decimal"

	"github.com/tbourn/go-pickup-backend/internal/domain"
)

// Pricing turns priced line items into order totals. All amounts are
// integer minor units; only the tax multiplication goes through decimal.
type Pricing struct {
	TaxRate         decimal.Decimal
	ServiceFeeCents int64
	Currency        string
}

// Totals is the money breakdown of an order.
type Totals struct {
	SubtotalCents int64
	TaxCents      int64
	FeeCents      int64
	TipCents      int64
	TotalCents    int64
}

// Price computes totals for items whose LineTotalCents are already set.
// Tax rounds half away from zero to the minor unit.
func (p Pricing) Price(items []domain.OrderItem, tipCents int64) Totals {
	var subtotal int64
	for _, it := range items {
		subtotal += it.LineTotalCents
	}
	tax := decimal.NewFromInt(subtotal).Mul(p.TaxRate).Round(0).IntPart()
	if tax < 0 {
		tax = 0
	}
	fee := p.ServiceFeeCents
	if fee < 0 {
		fee = 0
	}
	return Totals{
		SubtotalCents: subtotal,
		TaxCents:      tax,
		FeeCents:      fee,
		TipCents:      tipCents,
		TotalCents:    subtotal + tax + fee + tipCents,
	}
}

func (p Pricing) currency() string {
	if p.Currency == "" {
		return "USD"
	}
	return p.Currency
}
