package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ProductPoolInterface defines the database operations needed by
// ProductRepository.
type ProductPoolInterface interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// ProductRepository provides the batched canonical-ID-to-slug lookup used by
// the identifier resolver.
type ProductRepository struct {
	pool ProductPoolInterface
}

// NewProductRepository creates a new ProductRepository with the given pool.
func NewProductRepository(pool *pgxpool.Pool) *ProductRepository {
	return &ProductRepository{pool: pool}
}

// NewProductRepositoryWithPool creates a new ProductRepository with a custom
// pool interface. This is primarily used for testing.
func NewProductRepositoryWithPool(pool ProductPoolInterface) *ProductRepository {
	return &ProductRepository{pool: pool}
}

// GetSlugsByIDs resolves canonical product IDs to slugs in one round-trip.
// IDs that don't exist are omitted from the result map, not errors.
func (r *ProductRepository) GetSlugsByIDs(ctx context.Context, ids []string) (map[string]string, error) {
	if len(ids) == 0 {
		return map[string]string{}, nil
	}

	query := `SELECT id, slug FROM products WHERE id = ANY($1)`

	rows, err := r.pool.Query(ctx, query, ids)
	if err != nil {
		return nil, fmt.Errorf("get slugs for %d ids: %w", len(ids), err)
	}
	defer rows.Close()

	slugs := make(map[string]string, len(ids))
	for rows.Next() {
		var id, slug string
		if err := rows.Scan(&id, &slug); err != nil {
			return nil, fmt.Errorf("scan product slug: %w", err)
		}
		slugs[id] = slug
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate product rows: %w", err)
	}
	return slugs, nil
}
