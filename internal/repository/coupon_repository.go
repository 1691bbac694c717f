package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aquastore/cart-pricing/internal/model"
)

// CouponPoolInterface defines the database operations needed by
// CouponRepository. This allows for easier testing with mocks.
type CouponPoolInterface interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// CouponRepository provides data access for coupons using pgx.
type CouponRepository struct {
	pool CouponPoolInterface
}

// NewCouponRepository creates a new CouponRepository with the given pool.
func NewCouponRepository(pool *pgxpool.Pool) *CouponRepository {
	return &CouponRepository{pool: pool}
}

// NewCouponRepositoryWithPool creates a new CouponRepository with a custom
// pool interface. This is primarily used for testing.
func NewCouponRepositoryWithPool(pool CouponPoolInterface) *CouponRepository {
	return &CouponRepository{pool: pool}
}

// FindActiveByCode retrieves an active coupon by its normalized code.
// Returns nil, nil if no active coupon matches (service layer handles this).
//
// applicable_products is the authoritative text-array column. Rows written
// before the array column existed have it NULL and keep their applicability
// in the coupon_products join table, so a NULL array triggers the legacy
// fallback query.
func (r *CouponRepository) FindActiveByCode(ctx context.Context, code string) (*model.Coupon, error) {
	query := `SELECT code, discount_type, discount_value, scope, applicable_products,
	                 start_date, end_date, is_active, created_at
	          FROM coupons WHERE code = $1 AND is_active = TRUE`

	var coupon model.Coupon
	var applicable *[]string
	err := r.pool.QueryRow(ctx, query, code).Scan(
		&coupon.Code,
		&coupon.DiscountType,
		&coupon.DiscountValue,
		&coupon.Scope,
		&applicable,
		&coupon.StartDate,
		&coupon.EndDate,
		&coupon.IsActive,
		&coupon.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil // Not found - let service handle
		}
		return nil, fmt.Errorf("find coupon by code %s: %w", code, err)
	}

	if applicable != nil {
		coupon.ApplicableIdentifiers = *applicable
	} else {
		ids, err := r.legacyApplicableProducts(ctx, code)
		if err != nil {
			return nil, err
		}
		coupon.ApplicableIdentifiers = ids
	}
	return &coupon, nil
}

// legacyApplicableProducts reads the pre-migration join table.
func (r *CouponRepository) legacyApplicableProducts(ctx context.Context, code string) ([]string, error) {
	query := `SELECT product_identifier FROM coupon_products WHERE coupon_code = $1`

	rows, err := r.pool.Query(ctx, query, code)
	if err != nil {
		return nil, fmt.Errorf("get legacy products for coupon %s: %w", code, err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan legacy product identifier: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate legacy product rows: %w", err)
	}

	// Return empty slice, not nil
	if ids == nil {
		ids = []string{}
	}
	return ids, nil
}
