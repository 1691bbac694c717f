package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aquastore/cart-pricing/internal/model"
	"github.com/aquastore/cart-pricing/internal/service"
)

// mockEvaluator is a mock implementation of CouponEvaluator.
type mockEvaluator struct {
	evaluateFn func(ctx context.Context, code string, items []model.CartLineItem) (*service.EvaluationResult, error)

	mu    sync.Mutex
	calls int
}

func (m *mockEvaluator) Evaluate(ctx context.Context, code string, items []model.CartLineItem) (*service.EvaluationResult, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	if m.evaluateFn != nil {
		return m.evaluateFn(ctx, code, items)
	}
	return service.Invalid(service.ReasonNotFound), nil
}

// slugMatchingEvaluator approves the coupon for items whose slug is in the
// applicability list, mirroring the real evaluator's matching.
func slugMatchingEvaluator(identifiers ...string) *mockEvaluator {
	applicable := make(map[string]struct{}, len(identifiers))
	for _, id := range identifiers {
		applicable[id] = struct{}{}
	}
	return &mockEvaluator{
		evaluateFn: func(ctx context.Context, code string, items []model.CartLineItem) (*service.EvaluationResult, error) {
			var matched []string
			for _, it := range items {
				if _, ok := applicable[it.Slug]; ok {
					matched = append(matched, it.Slug)
				}
			}
			if len(matched) == 0 {
				return service.Invalid(service.ReasonNotApplicable), nil
			}
			return &service.EvaluationResult{
				Valid: true,
				Coupon: &model.Coupon{
					Code:                  model.NormalizeCode(code),
					DiscountType:          model.DiscountPercentage,
					DiscountValue:         decimal.NewFromInt(10),
					Scope:                 model.ScopeProducts,
					ApplicableIdentifiers: identifiers,
					IsActive:              true,
				},
				MatchedIdentifiers: matched,
			}, nil
		},
	}
}

func aerator(qty int) model.CartLineItem {
	return model.CartLineItem{
		CanonicalID: "c0a8012e-0b4e-4a3f-9a1d-2f6b8c9d0e1f",
		Slug:        "2hp-aqualion-a3",
		UnitPrice:   model.PriceFromFloat(15000),
		Quantity:    qty,
	}
}

func pump(qty int) model.CartLineItem {
	return model.CartLineItem{
		CanonicalID: "7d1f4a6e-3c2b-4f8d-b5e9-0a1b2c3d4e5f",
		Slug:        "water-pump-wp15",
		UnitPrice:   model.PriceFromFloat(9000),
		Quantity:    qty,
	}
}

func TestManager_GetCreatesEmptySession(t *testing.T) {
	m := NewManager(&mockEvaluator{}, time.Hour)

	cart := m.Get("sess-1")

	assert.Empty(t, cart.Items)
	assert.Nil(t, cart.Coupon)
	assert.True(t, cart.Breakdown.FinalTotal.IsZero())
}

func TestManager_AddItem(t *testing.T) {
	m := NewManager(&mockEvaluator{}, time.Hour)

	cart, err := m.AddItem(context.Background(), "sess-1", aerator(2))

	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
	assert.True(t, cart.Breakdown.Subtotal.Equal(decimal.NewFromInt(30000)))
	assert.True(t, cart.Breakdown.FinalTotal.Equal(decimal.NewFromInt(30000)))
}

func TestManager_AddItem_MergesQuantity(t *testing.T) {
	m := NewManager(&mockEvaluator{}, time.Hour)
	ctx := context.Background()

	_, err := m.AddItem(ctx, "sess-1", aerator(1))
	require.NoError(t, err)
	cart, err := m.AddItem(ctx, "sess-1", aerator(2))
	require.NoError(t, err)

	require.Len(t, cart.Items, 1)
	assert.Equal(t, 3, cart.Items[0].Quantity)
}

func TestManager_AddItem_StockLimit(t *testing.T) {
	m := NewManager(&mockEvaluator{}, time.Hour)
	item := aerator(2)
	item.StockLimit = 3
	ctx := context.Background()

	_, err := m.AddItem(ctx, "sess-1", item)
	require.NoError(t, err)
	_, err = m.AddItem(ctx, "sess-1", item)

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrStockExceeded)

	// Quantity unchanged after the rejected add
	cart := m.Get("sess-1")
	assert.Equal(t, 2, cart.Items[0].Quantity)
}

func TestManager_AddItem_MergeAdoptsFreshStockLimit(t *testing.T) {
	m := NewManager(&mockEvaluator{}, time.Hour)
	ctx := context.Background()
	item := aerator(2)
	item.StockLimit = 10
	_, err := m.AddItem(ctx, "sess-1", item)
	require.NoError(t, err)

	// The storefront now reports a tighter limit; the merge must honor it.
	item = aerator(2)
	item.StockLimit = 3
	_, err = m.AddItem(ctx, "sess-1", item)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrStockExceeded)

	item = aerator(1)
	item.StockLimit = 3
	cart, err := m.AddItem(ctx, "sess-1", item)
	require.NoError(t, err)
	assert.Equal(t, 3, cart.Items[0].Quantity)
	assert.Equal(t, 3, cart.Items[0].StockLimit)
}

func TestManager_UpdateQuantity(t *testing.T) {
	m := NewManager(&mockEvaluator{}, time.Hour)
	ctx := context.Background()
	_, err := m.AddItem(ctx, "sess-1", aerator(2))
	require.NoError(t, err)

	cart, err := m.UpdateQuantity(ctx, "sess-1", aerator(0).CanonicalID, 5)

	require.NoError(t, err)
	assert.Equal(t, 5, cart.Items[0].Quantity)
	assert.True(t, cart.Breakdown.Subtotal.Equal(decimal.NewFromInt(75000)))
}

func TestManager_UpdateQuantity_BelowOneRemovesLine(t *testing.T) {
	m := NewManager(&mockEvaluator{}, time.Hour)
	ctx := context.Background()
	_, err := m.AddItem(ctx, "sess-1", aerator(2))
	require.NoError(t, err)

	cart, err := m.UpdateQuantity(ctx, "sess-1", aerator(0).CanonicalID, 0)

	require.NoError(t, err)
	assert.Empty(t, cart.Items)
	assert.True(t, cart.Breakdown.Subtotal.IsZero())
}

func TestManager_UpdateQuantity_UnknownItem(t *testing.T) {
	m := NewManager(&mockEvaluator{}, time.Hour)

	_, err := m.UpdateQuantity(context.Background(), "sess-1", "nope", 2)

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrItemNotFound)
}

func TestManager_ApplyCoupon_Valid(t *testing.T) {
	m := NewManager(slugMatchingEvaluator("2hp-aqualion-a3"), time.Hour)
	ctx := context.Background()
	_, err := m.AddItem(ctx, "sess-1", aerator(2))
	require.NoError(t, err)

	result, cart, err := m.ApplyCoupon(ctx, "sess-1", "SAVE10")

	require.NoError(t, err)
	assert.True(t, result.Valid)
	require.NotNil(t, cart.Coupon)
	assert.True(t, cart.Breakdown.DiscountAmount.Equal(decimal.NewFromInt(3000)))
	assert.True(t, cart.Breakdown.FinalTotal.Equal(decimal.NewFromInt(27000)))
}

func TestManager_ApplyCoupon_InvalidLeavesCartUnchanged(t *testing.T) {
	m := NewManager(&mockEvaluator{}, time.Hour)
	ctx := context.Background()
	_, err := m.AddItem(ctx, "sess-1", aerator(2))
	require.NoError(t, err)

	result, cart, err := m.ApplyCoupon(ctx, "sess-1", "BOGUS")

	require.NoError(t, err)
	assert.False(t, result.Valid)
	assert.Nil(t, cart.Coupon)
	assert.True(t, cart.Breakdown.FinalTotal.Equal(decimal.NewFromInt(30000)))
}

func TestManager_ApplyCoupon_ReapplyIdempotent(t *testing.T) {
	m := NewManager(slugMatchingEvaluator("2hp-aqualion-a3"), time.Hour)
	ctx := context.Background()
	_, err := m.AddItem(ctx, "sess-1", aerator(2))
	require.NoError(t, err)

	_, first, err := m.ApplyCoupon(ctx, "sess-1", "SAVE10")
	require.NoError(t, err)
	_, second, err := m.ApplyCoupon(ctx, "sess-1", "SAVE10")
	require.NoError(t, err)

	assert.True(t, first.Breakdown.DiscountAmount.Equal(second.Breakdown.DiscountAmount))
	assert.True(t, first.Breakdown.FinalTotal.Equal(second.Breakdown.FinalTotal))
}

func TestManager_CartMutationReevaluatesCoupon(t *testing.T) {
	eval := slugMatchingEvaluator("2hp-aqualion-a3")
	m := NewManager(eval, time.Hour)
	ctx := context.Background()
	_, err := m.AddItem(ctx, "sess-1", aerator(2))
	require.NoError(t, err)
	_, _, err = m.ApplyCoupon(ctx, "sess-1", "SAVE10")
	require.NoError(t, err)

	// Adding a second, non-matching item keeps the coupon but leaves the
	// new line out of the eligible subtotal.
	cart, err := m.AddItem(ctx, "sess-1", pump(1))
	require.NoError(t, err)
	require.NotNil(t, cart.Coupon)
	assert.True(t, cart.Breakdown.Subtotal.Equal(decimal.NewFromInt(39000)))
	assert.True(t, cart.Breakdown.EligibleSubtotal.Equal(decimal.NewFromInt(30000)))
	assert.True(t, cart.Breakdown.DiscountAmount.Equal(decimal.NewFromInt(3000)))
}

func TestManager_RemovingMatchingItemDetachesCoupon(t *testing.T) {
	m := NewManager(slugMatchingEvaluator("2hp-aqualion-a3"), time.Hour)
	ctx := context.Background()
	_, err := m.AddItem(ctx, "sess-1", aerator(2))
	require.NoError(t, err)
	_, err = m.AddItem(ctx, "sess-1", pump(1))
	require.NoError(t, err)
	_, _, err = m.ApplyCoupon(ctx, "sess-1", "SAVE10")
	require.NoError(t, err)

	cart, err := m.RemoveItem(ctx, "sess-1", aerator(0).CanonicalID)

	require.NoError(t, err)
	assert.Nil(t, cart.Coupon, "coupon no longer applies, so it detaches")
	assert.True(t, cart.Breakdown.DiscountAmount.IsZero())
	assert.True(t, cart.Breakdown.FinalTotal.Equal(decimal.NewFromInt(9000)))
}

func TestManager_EmptyingCartDetachesCoupon(t *testing.T) {
	eval := slugMatchingEvaluator("2hp-aqualion-a3")
	m := NewManager(eval, time.Hour)
	ctx := context.Background()
	_, err := m.AddItem(ctx, "sess-1", aerator(2))
	require.NoError(t, err)
	_, _, err = m.ApplyCoupon(ctx, "sess-1", "SAVE10")
	require.NoError(t, err)
	evalCallsBefore := eval.calls

	cart, err := m.RemoveItem(ctx, "sess-1", aerator(0).CanonicalID)

	require.NoError(t, err)
	assert.Empty(t, cart.Items)
	assert.Nil(t, cart.Coupon)
	assert.Equal(t, evalCallsBefore, eval.calls, "no re-evaluation for an emptied cart")
}

func TestManager_ReevaluationFailureKeepsPreviousApplicability(t *testing.T) {
	applied := false
	eval := &mockEvaluator{}
	eval.evaluateFn = func(ctx context.Context, code string, items []model.CartLineItem) (*service.EvaluationResult, error) {
		if applied {
			return nil, assert.AnError
		}
		return slugMatchingEvaluator("2hp-aqualion-a3").evaluateFn(ctx, code, items)
	}
	m := NewManager(eval, time.Hour)
	ctx := context.Background()
	_, err := m.AddItem(ctx, "sess-1", aerator(2))
	require.NoError(t, err)
	_, _, err = m.ApplyCoupon(ctx, "sess-1", "SAVE10")
	require.NoError(t, err)
	applied = true

	cart, err := m.AddItem(ctx, "sess-1", pump(1))

	require.NoError(t, err)
	require.NotNil(t, cart.Coupon, "store failure keeps the previous snapshot")
	assert.True(t, cart.Breakdown.DiscountAmount.Equal(decimal.NewFromInt(3000)))
}

func TestManager_RemoveCoupon(t *testing.T) {
	m := NewManager(slugMatchingEvaluator("2hp-aqualion-a3"), time.Hour)
	ctx := context.Background()
	_, err := m.AddItem(ctx, "sess-1", aerator(2))
	require.NoError(t, err)
	_, _, err = m.ApplyCoupon(ctx, "sess-1", "SAVE10")
	require.NoError(t, err)

	cart := m.RemoveCoupon("sess-1")

	assert.Nil(t, cart.Coupon)
	assert.True(t, cart.Breakdown.DiscountAmount.IsZero())
	assert.True(t, cart.Breakdown.FinalTotal.Equal(decimal.NewFromInt(30000)))
}

func TestManager_SupersededApplyDoesNotOverwrite(t *testing.T) {
	firstStarted := make(chan struct{})
	release := make(chan struct{})
	eval := &mockEvaluator{}
	eval.evaluateFn = func(ctx context.Context, code string, items []model.CartLineItem) (*service.EvaluationResult, error) {
		if code == "SLOW" {
			close(firstStarted)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-release:
			}
		}
		return slugMatchingEvaluator("2hp-aqualion-a3").evaluateFn(ctx, code, items)
	}
	m := NewManager(eval, time.Hour)
	ctx := context.Background()
	_, err := m.AddItem(ctx, "sess-1", aerator(2))
	require.NoError(t, err)

	errCh := make(chan error, 1)
	go func() {
		_, _, err := m.ApplyCoupon(ctx, "sess-1", "SLOW")
		errCh <- err
	}()
	<-firstStarted

	// Second apply cancels the in-flight one.
	result, cart, err := m.ApplyCoupon(ctx, "sess-1", "SAVE10")
	require.NoError(t, err)
	assert.True(t, result.Valid)
	require.NotNil(t, cart.Coupon)
	assert.Equal(t, "SAVE10", cart.Coupon.Coupon.Code)

	firstErr := <-errCh
	require.Error(t, firstErr)
	assert.ErrorIs(t, firstErr, service.ErrEvaluationSuperseded)

	// The stale result never lands.
	close(release)
	final := m.Get("sess-1")
	require.NotNil(t, final.Coupon)
	assert.Equal(t, "SAVE10", final.Coupon.Coupon.Code)
}

func TestManager_ApplyCoupon_ClientDisconnectIsNotSupersede(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	eval := &mockEvaluator{}
	disconnected := false
	eval.evaluateFn = func(evalCtx context.Context, code string, items []model.CartLineItem) (*service.EvaluationResult, error) {
		if !disconnected {
			// The client goes away mid-evaluation.
			disconnected = true
			cancel()
			<-evalCtx.Done()
			return nil, evalCtx.Err()
		}
		return service.Invalid(service.ReasonNotFound), nil
	}
	m := NewManager(eval, time.Hour)
	_, err := m.AddItem(context.Background(), "sess-1", aerator(2))
	require.NoError(t, err)

	_, _, err = m.ApplyCoupon(ctx, "sess-1", "SAVE10")

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, service.ErrEvaluationSuperseded)

	// A later apply on the same session still works.
	result, cart, err := m.ApplyCoupon(context.Background(), "sess-1", "SAVE10")
	require.NoError(t, err)
	assert.False(t, result.Valid)
	assert.Nil(t, cart.Coupon)
}

func TestManager_SessionsAreIsolated(t *testing.T) {
	m := NewManager(&mockEvaluator{}, time.Hour)
	ctx := context.Background()

	_, err := m.AddItem(ctx, "sess-1", aerator(1))
	require.NoError(t, err)

	other := m.Get("sess-2")
	assert.Empty(t, other.Items)
}
