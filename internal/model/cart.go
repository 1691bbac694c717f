package model

import "github.com/shopspring/decimal"

// CartLineItem is a single entry in a cart session. CanonicalID is the
// product store's primary key for current entries; carts persisted by the
// older storefront may carry a legacy short code in that field instead.
type CartLineItem struct {
	CanonicalID   string `json:"canonical_id"`
	Slug          string `json:"slug,omitempty"`
	LegacyShortID string `json:"legacy_short_id,omitempty"`
	UnitPrice     Price  `json:"unit_price"`
	SalePrice     *Price `json:"sale_price,omitempty"`
	Quantity      int    `json:"quantity"`
	StockLimit    int    `json:"stock_limit,omitempty"` // 0 means unknown
}

// EffectivePrice is the charged unit price: the sale price when one is set,
// otherwise the unit price.
func (i CartLineItem) EffectivePrice() decimal.Decimal {
	if i.SalePrice != nil {
		return i.SalePrice.Decimal
	}
	return i.UnitPrice.Decimal
}

// LineTotal is EffectivePrice multiplied by quantity.
func (i CartLineItem) LineTotal() decimal.Decimal {
	return i.EffectivePrice().Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// PriceBreakdown is the derived money view of a cart. It is recomputed after
// every cart or coupon mutation and never stored.
type PriceBreakdown struct {
	Subtotal         decimal.Decimal `json:"subtotal"`
	EligibleSubtotal decimal.Decimal `json:"eligible_subtotal"`
	DiscountAmount   decimal.Decimal `json:"discount_amount"`
	FinalTotal       decimal.Decimal `json:"final_total"`
}

// EmptyBreakdown is the breakdown of an empty cart.
func EmptyBreakdown() PriceBreakdown {
	return PriceBreakdown{
		Subtotal:         decimal.Zero,
		EligibleSubtotal: decimal.Zero,
		DiscountAmount:   decimal.Zero,
		FinalTotal:       decimal.Zero,
	}
}
