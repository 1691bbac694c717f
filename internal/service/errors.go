package service

import "errors"

var (
	// ErrEmptyCode is returned when a coupon code is blank after normalization
	ErrEmptyCode = errors.New("coupon code is empty")

	// ErrEvaluationSuperseded is returned when a newer coupon application
	// cancelled this one before it finished
	ErrEvaluationSuperseded = errors.New("coupon evaluation superseded")
)

// ReasonCode identifies why a coupon failed validation. Reasons are
// user-facing results, not errors; infrastructure failures surface as
// ordinary errors instead.
type ReasonCode string

const (
	ReasonNotFound      ReasonCode = "not_found"
	ReasonNotYetActive  ReasonCode = "not_yet_active"
	ReasonExpired       ReasonCode = "expired"
	ReasonNotApplicable ReasonCode = "not_applicable"
)

// Message is the storefront copy rendered for each reason.
func (r ReasonCode) Message() string {
	switch r {
	case ReasonNotFound:
		return "coupon not found"
	case ReasonNotYetActive:
		return "coupon is not active yet"
	case ReasonExpired:
		return "coupon has expired"
	case ReasonNotApplicable:
		return "coupon is not applicable to the items in your cart"
	default:
		return "coupon is not valid"
	}
}
