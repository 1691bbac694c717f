package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"github.com/aquastore/cart-pricing/internal/model"
)

// CouponFinder defines the coupon store lookup used by the evaluator.
// Implementations return (nil, nil) when no active coupon matches the code.
type CouponFinder interface {
	FindActiveByCode(ctx context.Context, code string) (*model.Coupon, error)
}

// IdentifierResolver produces complete identifier sets for cart items.
type IdentifierResolver interface {
	Resolve(ctx context.Context, items []model.CartLineItem) []model.IdentifierSet
}

// EvaluationResult is the structured outcome of a coupon evaluation. Valid
// results carry the coupon and the flattened union of every identifier of
// every matched item; invalid results carry a reason the UI can render.
type EvaluationResult struct {
	Valid              bool          `json:"valid"`
	Reason             ReasonCode    `json:"reason,omitempty"`
	Coupon             *model.Coupon `json:"coupon,omitempty"`
	MatchedIdentifiers []string      `json:"matched_identifiers,omitempty"`
}

// Invalid builds a failed result for the given reason.
func Invalid(reason ReasonCode) *EvaluationResult {
	return &EvaluationResult{Reason: reason}
}

// Evaluator validates promotional codes against the current date and cart
// contents. It is stateless; identical inputs always produce identical
// results.
type Evaluator struct {
	coupons  CouponFinder
	resolver IdentifierResolver
	now      func() time.Time
}

// NewEvaluator creates an Evaluator with the real clock.
func NewEvaluator(coupons CouponFinder, resolver IdentifierResolver) *Evaluator {
	return &Evaluator{coupons: coupons, resolver: resolver, now: time.Now}
}

// NewEvaluatorWithClock creates an Evaluator with a fixed clock.
// Primarily used for testing date windows.
func NewEvaluatorWithClock(coupons CouponFinder, resolver IdentifierResolver, now func() time.Time) *Evaluator {
	return &Evaluator{coupons: coupons, resolver: resolver, now: now}
}

// Evaluate validates a raw code against the cart. An error is returned only
// for infrastructure failures (the coupon store being unreachable); every
// business outcome, including "not found", is an EvaluationResult.
func (e *Evaluator) Evaluate(ctx context.Context, rawCode string, items []model.CartLineItem) (*EvaluationResult, error) {
	code := model.NormalizeCode(rawCode)
	if code == "" {
		return nil, ErrEmptyCode
	}

	coupon, err := e.coupons.FindActiveByCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("find coupon %s: %w", code, err)
	}
	if coupon == nil {
		return Invalid(ReasonNotFound), nil
	}

	if reason, ok := e.checkDateWindow(coupon); !ok {
		return Invalid(reason), nil
	}

	sets := e.resolver.Resolve(ctx, items)
	matched := matchIdentifiers(coupon, sets)
	if len(matched) == 0 {
		return Invalid(ReasonNotApplicable), nil
	}

	log.Debug().
		Str("code", coupon.Code).
		Int("matched_identifiers", len(matched)).
		Msg("coupon evaluated")

	return &EvaluationResult{
		Valid:              true,
		Coupon:             coupon,
		MatchedIdentifiers: matched,
	}, nil
}

// checkDateWindow applies the coupon's start/end bounds at day granularity:
// both "now" and the bounds are truncated to midnight, so a coupon stays
// valid through the entirety of its end date. A missing bound is no
// constraint on that side.
func (e *Evaluator) checkDateWindow(c *model.Coupon) (ReasonCode, bool) {
	today := truncateToDay(e.now())
	if c.StartDate != nil && truncateToDay(*c.StartDate).After(today) {
		return ReasonNotYetActive, false
	}
	if c.EndDate != nil && truncateToDay(*c.EndDate).Before(today) {
		return ReasonExpired, false
	}
	return "", true
}

func truncateToDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// matchIdentifiers computes the flattened identifier union over every cart
// item the coupon applies to. The union is deliberately over-inclusive (it
// carries canonical IDs, slugs, legacy codes, and cross-resolved variants of
// each matched item) so the pricing reducer can match by plain
// set-membership without repeating resolution.
func matchIdentifiers(c *model.Coupon, sets []model.IdentifierSet) []string {
	if c.Scope == model.ScopeStorewide {
		return flattenSets(sets)
	}

	applicable := make(map[string]struct{}, len(c.ApplicableIdentifiers))
	for _, id := range c.ApplicableIdentifiers {
		if id != "" {
			applicable[strings.ToLower(id)] = struct{}{}
		}
	}
	// Scope "products" with nothing listed applies to nothing.
	if len(applicable) == 0 {
		return nil
	}

	matched := lo.Filter(sets, func(s model.IdentifierSet, _ int) bool {
		for _, v := range s.Values() {
			if _, ok := applicable[strings.ToLower(v)]; ok {
				return true
			}
		}
		return false
	})
	return flattenSets(matched)
}

func flattenSets(sets []model.IdentifierSet) []string {
	return lo.Uniq(lo.FlatMap(sets, func(s model.IdentifierSet, _ int) []string {
		return s.Values()
	}))
}
