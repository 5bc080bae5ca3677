// Package deal decides whether an enriched sale qualifies as a deal.
package deal

import (
	"github.com/shopspring/decimal"

	"skinport-sniper/internal/market"
)

// Reason tags a skip decision.
type Reason string

const (
	ReasonPriceFloor            Reason = "price_floor"
	ReasonNoHistory             Reason = "no_history"
	ReasonInvalidSuggestedPrice Reason = "invalid_suggested_price"
	ReasonBelowDiscount         Reason = "below_discount_threshold"
	ReasonNotBelowAverage       Reason = "not_below_average"
)

var hundred = decimal.NewFromInt(100)

// Policy holds the qualification thresholds in major currency units.
type Policy struct {
	MinSalePrice   decimal.Decimal
	MinDiscountPct decimal.Decimal
}

// DefaultPolicy skips sales at or below 100 and discounts under 20%.
func DefaultPolicy() Policy {
	return Policy{
		MinSalePrice:   decimal.NewFromInt(100),
		MinDiscountPct: decimal.NewFromInt(20),
	}
}

// Decision is the outcome of Evaluate. Reason is empty when Notify is set.
type Decision struct {
	Notify   bool
	Reason   Reason
	Sale     market.SaleEvent
	Stats    market.HistoricalStats
	Discount decimal.Decimal
	Avg7d    decimal.Decimal
}

// BelowFloor reports whether the sale price is at or under the price floor.
func (p Policy) BelowFloor(sale market.SaleEvent) bool {
	return sale.SalePriceMajor().LessThanOrEqual(p.MinSalePrice)
}

// Discount returns the percentage the sale sits below its suggested price.
// ok is false when the suggested price is not positive.
func Discount(sale market.SaleEvent) (decimal.Decimal, bool) {
	suggested := sale.SuggestedPriceMajor()
	if !suggested.IsPositive() {
		return decimal.Zero, false
	}
	return suggested.Sub(sale.SalePriceMajor()).Div(suggested).Mul(hundred), true
}

// Evaluate applies the policy. It performs no I/O and does not modify its inputs.
func (p Policy) Evaluate(sale market.SaleEvent, stats market.HistoricalStats) Decision {
	decision := Decision{Sale: sale, Stats: stats}

	if p.BelowFloor(sale) {
		return decision.skip(ReasonPriceFloor)
	}

	avg, ok := stats.Avg7d()
	if !ok {
		return decision.skip(ReasonNoHistory)
	}
	decision.Avg7d = avg

	discount, ok := Discount(sale)
	if !ok {
		return decision.skip(ReasonInvalidSuggestedPrice)
	}
	decision.Discount = discount

	if discount.LessThan(p.MinDiscountPct) {
		return decision.skip(ReasonBelowDiscount)
	}
	if sale.SalePriceMajor().GreaterThanOrEqual(avg) {
		return decision.skip(ReasonNotBelowAverage)
	}

	decision.Notify = true
	return decision
}

func (d Decision) skip(reason Reason) Decision {
	d.Reason = reason
	return d
}
