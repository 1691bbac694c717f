// Package session owns the per-user cart state: line items, the applied
// coupon snapshot, and the derived price breakdown. All mutations go through
// the Manager, which recomputes the breakdown after every change and re-runs
// the coupon evaluator while a coupon is applied, so the applicability
// snapshot can never go stale against the cart.
package session

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	cache "github.com/patrickmn/go-cache"
	"github.com/rs/zerolog/log"

	"github.com/aquastore/cart-pricing/internal/model"
	"github.com/aquastore/cart-pricing/internal/pricing"
	"github.com/aquastore/cart-pricing/internal/service"
)

var (
	// ErrItemNotFound is returned when a mutation targets a line item that
	// isn't in the cart
	ErrItemNotFound = errors.New("cart item not found")

	// ErrStockExceeded is returned when a quantity would exceed the item's
	// known stock limit
	ErrStockExceeded = errors.New("requested quantity exceeds available stock")
)

// CouponEvaluator is the evaluator surface the session manager depends on.
type CouponEvaluator interface {
	Evaluate(ctx context.Context, code string, items []model.CartLineItem) (*service.EvaluationResult, error)
}

// Session is one user's cart. All fields are guarded by mu; access goes
// through the Manager.
type Session struct {
	mu         sync.Mutex
	id         string
	items      []model.CartLineItem
	coupon     *model.AppliedCoupon
	breakdown  model.PriceBreakdown
	cancelEval context.CancelFunc
}

// Manager hands out sessions from a TTL store and serializes mutations per
// session.
type Manager struct {
	sessions  *cache.Cache
	evaluator CouponEvaluator
}

// NewManager creates a Manager whose sessions expire after ttl of
// inactivity.
func NewManager(evaluator CouponEvaluator, ttl time.Duration) *Manager {
	return &Manager{
		sessions:  cache.New(ttl, 10*time.Minute),
		evaluator: evaluator,
	}
}

// session returns the live session for id, creating it if needed.
func (m *Manager) session(id string) *Session {
	if v, ok := m.sessions.Get(id); ok {
		return v.(*Session)
	}
	s := &Session{id: id, breakdown: model.EmptyBreakdown()}
	if err := m.sessions.Add(id, s, cache.DefaultExpiration); err != nil {
		// Lost the create race; the stored one wins.
		if v, ok := m.sessions.Get(id); ok {
			return v.(*Session)
		}
	}
	return s
}

// touch slides the session's expiration.
func (m *Manager) touch(s *Session) {
	m.sessions.SetDefault(s.id, s)
}

// Get returns the current cart view, creating an empty session if none
// exists.
func (m *Manager) Get(sessionID string) model.CartResponse {
	s := m.session(sessionID)
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot()
}

// AddItem adds a line item, merging quantities when the product is already
// in the cart. The stock limit is enforced when known.
func (m *Manager) AddItem(ctx context.Context, sessionID string, item model.CartLineItem) (model.CartResponse, error) {
	s := m.session(sessionID)
	s.mu.Lock()
	defer s.mu.Unlock()

	if i := s.indexOf(item.CanonicalID); i >= 0 {
		// The incoming line carries the freshest stock figure.
		if item.StockLimit > 0 {
			s.items[i].StockLimit = item.StockLimit
		}
		next := s.items[i].Quantity + item.Quantity
		if s.items[i].StockLimit > 0 && next > s.items[i].StockLimit {
			return s.snapshot(), ErrStockExceeded
		}
		s.items[i].Quantity = next
	} else {
		if item.StockLimit > 0 && item.Quantity > item.StockLimit {
			return s.snapshot(), ErrStockExceeded
		}
		s.items = append(s.items, item)
	}

	m.afterMutation(ctx, s)
	m.touch(s)
	return s.snapshot(), nil
}

// UpdateQuantity sets a line item's quantity. A quantity below 1 removes
// the line, mirroring how the storefront's stepper control behaves.
func (m *Manager) UpdateQuantity(ctx context.Context, sessionID, canonicalID string, quantity int) (model.CartResponse, error) {
	s := m.session(sessionID)
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(canonicalID)
	if i < 0 {
		return s.snapshot(), ErrItemNotFound
	}
	if quantity < 1 {
		s.items = slices.Delete(s.items, i, i+1)
	} else {
		if s.items[i].StockLimit > 0 && quantity > s.items[i].StockLimit {
			return s.snapshot(), ErrStockExceeded
		}
		s.items[i].Quantity = quantity
	}

	m.afterMutation(ctx, s)
	m.touch(s)
	return s.snapshot(), nil
}

// RemoveItem removes a line item from the cart.
func (m *Manager) RemoveItem(ctx context.Context, sessionID, canonicalID string) (model.CartResponse, error) {
	s := m.session(sessionID)
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(canonicalID)
	if i < 0 {
		return s.snapshot(), ErrItemNotFound
	}
	s.items = slices.Delete(s.items, i, i+1)

	m.afterMutation(ctx, s)
	m.touch(s)
	return s.snapshot(), nil
}

// ApplyCoupon evaluates a code against the cart and, when valid, attaches
// the resulting snapshot. A second apply issued before the first resolves
// cancels the first, so a stale result can never overwrite a newer one.
func (m *Manager) ApplyCoupon(ctx context.Context, sessionID, code string) (*service.EvaluationResult, model.CartResponse, error) {
	s := m.session(sessionID)

	s.mu.Lock()
	if s.cancelEval != nil {
		s.cancelEval()
	}
	evalCtx, cancel := context.WithCancel(ctx)
	s.cancelEval = cancel
	items := slices.Clone(s.items)
	s.mu.Unlock()

	result, err := m.evaluator.Evaluate(evalCtx, code, items)

	s.mu.Lock()
	defer s.mu.Unlock()
	if ctx.Err() != nil {
		// The request itself went away; a newer apply may own cancelEval
		// now, so leave it alone.
		return nil, s.snapshot(), ctx.Err()
	}
	if evalCtx.Err() != nil {
		return nil, s.snapshot(), service.ErrEvaluationSuperseded
	}
	cancel()
	s.cancelEval = nil

	if err != nil {
		return nil, s.snapshot(), err
	}
	if result.Valid {
		s.coupon = &model.AppliedCoupon{
			Coupon:             *result.Coupon,
			MatchedIdentifiers: result.MatchedIdentifiers,
		}
		s.breakdown = pricing.Compute(s.items, s.coupon)
	}
	m.touch(s)
	return result, s.snapshot(), nil
}

// RemoveCoupon detaches any applied coupon and recomputes the breakdown.
func (m *Manager) RemoveCoupon(sessionID string) model.CartResponse {
	s := m.session(sessionID)
	s.mu.Lock()
	defer s.mu.Unlock()

	s.coupon = nil
	s.breakdown = pricing.Compute(s.items, nil)
	m.touch(s)
	return s.snapshot()
}

// afterMutation runs with s.mu held. Emptying the cart detaches the coupon;
// otherwise an applied coupon is re-evaluated against the new contents so
// the applicability snapshot tracks the cart. If the store is unreachable
// the old snapshot is kept and pricing proceeds against it.
func (m *Manager) afterMutation(ctx context.Context, s *Session) {
	if len(s.items) == 0 {
		s.coupon = nil
	}
	if s.coupon != nil {
		result, err := m.evaluator.Evaluate(ctx, s.coupon.Coupon.Code, s.items)
		switch {
		case err != nil:
			log.Warn().Err(err).Str("code", s.coupon.Coupon.Code).
				Msg("coupon re-evaluation failed, keeping previous applicability")
		case !result.Valid:
			s.coupon = nil
		default:
			s.coupon = &model.AppliedCoupon{
				Coupon:             *result.Coupon,
				MatchedIdentifiers: result.MatchedIdentifiers,
			}
		}
	}
	s.breakdown = pricing.Compute(s.items, s.coupon)
}

func (s *Session) indexOf(canonicalID string) int {
	return slices.IndexFunc(s.items, func(it model.CartLineItem) bool {
		return it.CanonicalID == canonicalID
	})
}

// snapshot copies the session state for callers. Must hold s.mu.
func (s *Session) snapshot() model.CartResponse {
	resp := model.CartResponse{
		Items:     slices.Clone(s.items),
		Breakdown: s.breakdown,
	}
	if resp.Items == nil {
		resp.Items = []model.CartLineItem{}
	}
	if s.coupon != nil {
		c := *s.coupon
		resp.Coupon = &c
	}
	return resp
}
