package services

import (
	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"quoteflow/internal/domain"
)

const moneyPlaces = 2

var hundred = decimal.NewFromInt(100)

// CalculateTotals turns line items into net, VAT and gross totals rounded to two places
// (half away from zero). Sums are taken at full precision and rounded once; gross is the
// sum of the rounded net and VAT so the three figures always add up.
// Inputs must already be validated: no negative quantities, prices or rates.
func CalculateTotals(items []domain.DraftItemInput) domain.QuoteTotals {
	net := lo.Reduce(items, func(acc decimal.Decimal, it domain.DraftItemInput, _ int) decimal.Decimal {
		return acc.Add(it.Quantity.Mul(it.UnitPriceNet))
	}, decimal.Zero)
	vat := lo.Reduce(items, func(acc decimal.Decimal, it domain.DraftItemInput, _ int) decimal.Decimal {
		return acc.Add(it.Quantity.Mul(it.UnitPriceNet).Mul(it.VATRate).Div(hundred))
	}, decimal.Zero)

	net = net.Round(moneyPlaces)
	vat = vat.Round(moneyPlaces)
	return domain.QuoteTotals{
		Net:   net,
		VAT:   vat,
		Gross: net.Add(vat),
	}
}

// lineNetTotal is qty * unit price, rounded for display on the item row.
func lineNetTotal(it domain.DraftItemInput) decimal.Decimal {
	return it.Quantity.Mul(it.UnitPriceNet).Round(moneyPlaces)
}
