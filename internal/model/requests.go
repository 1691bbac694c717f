package model

// AddItemRequest is the DTO for adding a product to the cart.
type AddItemRequest struct {
	CanonicalID string `json:"canonical_id" validate:"required,notblank,max=255"`
	Slug        string `json:"slug" validate:"max=255"`
	UnitPrice   Price  `json:"unit_price"`
	SalePrice   *Price `json:"sale_price"`
	Quantity    int    `json:"quantity" validate:"required,gte=1"`
	StockLimit  int    `json:"stock_limit" validate:"gte=0"`
}

// UpdateQuantityRequest is the DTO for changing a line item's quantity.
// A quantity below 1 removes the line.
type UpdateQuantityRequest struct {
	Quantity int `json:"quantity"`
}

// ApplyCouponRequest is the DTO for applying a promotional code.
type ApplyCouponRequest struct {
	Code string `json:"code" validate:"required,notblank,max=64"`
}

// CartResponse is the API view of a cart session.
type CartResponse struct {
	Items     []CartLineItem `json:"items"`
	Coupon    *AppliedCoupon `json:"coupon,omitempty"`
	Breakdown PriceBreakdown `json:"breakdown"`
}
