package model

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DiscountType distinguishes percentage coupons from flat-amount coupons.
type DiscountType string

const (
	DiscountPercentage DiscountType = "percentage"
	DiscountFlat       DiscountType = "flat"
)

// CouponScope states what a coupon may discount. Historically this was
// inferred from an empty applicable-products list, which different parts of
// the old storefront read in opposite ways; it is now an explicit column.
type CouponScope string

const (
	// ScopeProducts limits the coupon to the identifiers it lists. An empty
	// list applies to nothing.
	ScopeProducts CouponScope = "products"
	// ScopeStorewide applies the coupon to every cart item.
	ScopeStorewide CouponScope = "storewide"
)

// Coupon is a promotional code record. ApplicableIdentifiers may mix
// canonical product IDs, slugs, and legacy short codes.
type Coupon struct {
	Code                  string          `json:"code"`
	DiscountType          DiscountType    `json:"discount_type"`
	DiscountValue         decimal.Decimal `json:"discount_value"`
	Scope                 CouponScope     `json:"scope"`
	ApplicableIdentifiers []string        `json:"applicable_products"`
	StartDate             *time.Time      `json:"start_date,omitempty"`
	EndDate               *time.Time      `json:"end_date,omitempty"`
	IsActive              bool            `json:"is_active"`
	CreatedAt             time.Time       `json:"-"`
}

// AppliedCoupon is the session's snapshot of a validated coupon plus the
// flattened identifier union the evaluator matched against the cart, so
// pricing can test membership without repeating resolution.
type AppliedCoupon struct {
	Coupon             Coupon   `json:"coupon"`
	MatchedIdentifiers []string `json:"matched_identifiers"`
}

// IdentifierIndex returns a lowercase membership set over the matched
// identifiers, falling back to the coupon's raw applicability list when the
// coupon was reattached from persisted state without re-evaluation.
func (a AppliedCoupon) IdentifierIndex() map[string]struct{} {
	ids := a.MatchedIdentifiers
	if len(ids) == 0 {
		ids = a.Coupon.ApplicableIdentifiers
	}
	idx := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		idx[strings.ToLower(id)] = struct{}{}
	}
	return idx
}

// NormalizeCode canonicalizes a user-entered coupon code: trimmed,
// uppercased.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
