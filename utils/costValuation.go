package utils

import "github.com/shopspring/decimal"

// Currency precision. Every monetary value that leaves the ledger goes through
// RoundMoney; unit costs go through RoundUnitCost. Nothing else rounds money.
const (
	MoneyPrecision    int32 = 2
	UnitCostPrecision int32 = 4
	percentPrecision  int32 = 2

	// QuantityPrecision matches the decimal(20,4) quantity columns.
	QuantityPrecision int32 = 4
)

var hundred = decimal.NewFromInt(100)

// RoundMoney rounds half away from zero (half-up for positive amounts) to 2dp.
func RoundMoney(v decimal.Decimal) decimal.Decimal {
	return v.Round(MoneyPrecision)
}

func RoundUnitCost(v decimal.Decimal) decimal.Decimal {
	return v.Round(UnitCostPrecision)
}

// RoundQuantity rounds half away from zero to the stored quantity scale.
func RoundQuantity(v decimal.Decimal) decimal.Decimal {
	return v.Round(QuantityPrecision)
}

// FitsQuantityScale reports whether v can be stored without losing digits.
func FitsQuantityScale(v decimal.Decimal) bool {
	return v.Equal(RoundQuantity(v))
}

// ProportionalValue values the unconsumed part of a lot.
//
// An untouched lot is worth exactly its stored total_cost. Scaling total_cost by
// remaining/initial would introduce drift even when the ratio is 1.
func ProportionalValue(totalCost, quantityRemaining, quantityInitial decimal.Decimal) decimal.Decimal {
	if quantityInitial.IsZero() {
		return decimal.Zero
	}
	if quantityRemaining.Equal(quantityInitial) {
		return totalCost
	}
	// multiply before dividing so the only rounding happens at the end
	return RoundMoney(totalCost.Mul(quantityRemaining).Div(quantityInitial))
}

// WeightedAverageCost returns totalValue/totalQuantity at unit-cost precision,
// or fallbackCost when there is no quantity to average over.
func WeightedAverageCost(totalValue, totalQuantity, fallbackCost decimal.Decimal) decimal.Decimal {
	if totalQuantity.LessThanOrEqual(decimal.Zero) {
		return fallbackCost
	}
	return RoundUnitCost(totalValue.Div(totalQuantity))
}

// Margin returns the absolute margin and the margin as a percentage of salePrice.
// A nil cost counts as zero.
func Margin(salePrice decimal.Decimal, cost *decimal.Decimal) (decimal.Decimal, decimal.Decimal) {
	c := decimal.Zero
	if cost != nil {
		c = *cost
	}
	absolute := salePrice.Sub(c)
	if salePrice.IsZero() {
		return RoundMoney(absolute), decimal.Zero
	}
	percentage := absolute.Div(salePrice).Mul(hundred).Round(percentPrecision)
	return RoundMoney(absolute), percentage
}

// AttributedCost is the cost of drawing quantity units from a lot priced at costPerUnit.
func AttributedCost(quantity, costPerUnit decimal.Decimal) decimal.Decimal {
	return RoundMoney(quantity.Mul(costPerUnit))
}
