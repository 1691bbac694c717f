// Package pricing derives the money view of a cart. Compute is the single
// place discount math happens; it is pure, synchronous, and never fails —
// malformed inputs degrade toward zero so a checkout total is always
// available.
package pricing

import (
	"strings"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/aquastore/cart-pricing/internal/model"
)

var hundred = decimal.NewFromInt(100)

// Compute recomputes the full price breakdown for the given line items and
// optionally applied coupon. Identical inputs always yield an identical
// breakdown, and the result satisfies:
//
//	0 <= DiscountAmount <= EligibleSubtotal <= Subtotal
//	FinalTotal = max(0, Subtotal - DiscountAmount)
func Compute(items []model.CartLineItem, coupon *model.AppliedCoupon) model.PriceBreakdown {
	subtotal := lo.Reduce(items, func(acc decimal.Decimal, it model.CartLineItem, _ int) decimal.Decimal {
		return acc.Add(it.LineTotal())
	}, decimal.Zero)

	if coupon == nil {
		return model.PriceBreakdown{
			Subtotal:         subtotal,
			EligibleSubtotal: decimal.Zero,
			DiscountAmount:   decimal.Zero,
			FinalTotal:       subtotal,
		}
	}

	eligible := eligibleSubtotal(items, coupon)
	discount := discountAmount(coupon.Coupon, eligible)

	return model.PriceBreakdown{
		Subtotal:         subtotal,
		EligibleSubtotal: eligible,
		DiscountAmount:   discount,
		FinalTotal:       decimal.Max(decimal.Zero, subtotal.Sub(discount)),
	}
}

// eligibleSubtotal sums the line totals of items the coupon applies to.
// Membership is tested against the evaluator's flattened identifier union
// (or the raw applicability list for a coupon reattached from persisted
// state), so no resolution happens here.
func eligibleSubtotal(items []model.CartLineItem, coupon *model.AppliedCoupon) decimal.Decimal {
	if coupon.Coupon.Scope == model.ScopeStorewide {
		return lo.Reduce(items, func(acc decimal.Decimal, it model.CartLineItem, _ int) decimal.Decimal {
			return acc.Add(it.LineTotal())
		}, decimal.Zero)
	}

	idx := coupon.IdentifierIndex()
	matching := lo.Filter(items, func(it model.CartLineItem, _ int) bool {
		for _, id := range []string{it.CanonicalID, it.Slug, it.LegacyShortID} {
			if id == "" {
				continue
			}
			if _, ok := idx[strings.ToLower(id)]; ok {
				return true
			}
		}
		return false
	})
	return lo.Reduce(matching, func(acc decimal.Decimal, it model.CartLineItem, _ int) decimal.Decimal {
		return acc.Add(it.LineTotal())
	}, decimal.Zero)
}

// discountAmount applies the coupon's type to the eligible subtotal. The
// result is clamped to [0, eligible]: a flat discount never exceeds what it
// can discount, and out-of-convention percentage values cannot push the
// remainder negative.
func discountAmount(c model.Coupon, eligible decimal.Decimal) decimal.Decimal {
	var d decimal.Decimal
	switch c.DiscountType {
	case model.DiscountPercentage:
		d = eligible.Mul(c.DiscountValue).Div(hundred)
	case model.DiscountFlat:
		d = c.DiscountValue
	default:
		return decimal.Zero
	}
	return decimal.Min(decimal.Max(d, decimal.Zero), eligible)
}
