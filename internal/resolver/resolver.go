// Package resolver reconciles the three identifier spaces a cart item can
// arrive with: the product store's canonical UUID, the URL slug, and the
// legacy short code from the old static listing. It is the only place that
// knows how to cross between them; callers work with complete
// IdentifierSets and never look anything up themselves.
package resolver

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/aquastore/cart-pricing/internal/catalog"
	"github.com/aquastore/cart-pricing/internal/model"
)

// SlugLookup is the product store's batch canonical-ID-to-slug query.
// IDs with no match are simply omitted from the result map.
type SlugLookup interface {
	GetSlugsByIDs(ctx context.Context, ids []string) (map[string]string, error)
}

// Resolver derives IdentifierSets from cart line items using the static
// catalog plus at most one batched product store lookup per call.
type Resolver struct {
	catalog  *catalog.Catalog
	products SlugLookup
}

// New creates a Resolver over the given catalog and product store.
func New(c *catalog.Catalog, products SlugLookup) *Resolver {
	return &Resolver{catalog: c, products: products}
}

// IsCanonicalID reports whether s looks like a product store primary key
// (UUID v4). Legacy short codes are short alphanumeric tokens and never
// parse as UUIDs.
func IsCanonicalID(s string) bool {
	u, err := uuid.Parse(s)
	return err == nil && u.Version() == 4
}

// Resolve produces one IdentifierSet per item, in item order. Canonical IDs
// missing a slug are resolved through a single batched store lookup; a
// failed lookup degrades to empty slugs for the affected items and is never
// an error. Fields with no known mapping stay empty.
func (r *Resolver) Resolve(ctx context.Context, items []model.CartLineItem) []model.IdentifierSet {
	sets := make([]model.IdentifierSet, len(items))
	var pending []string

	for i, item := range items {
		set := model.IdentifierSet{
			Slug:          item.Slug,
			LegacyShortID: item.LegacyShortID,
		}
		switch {
		case IsCanonicalID(item.CanonicalID):
			set.CanonicalID = item.CanonicalID
			if set.Slug == "" {
				pending = append(pending, item.CanonicalID)
			}
		case item.CanonicalID != "":
			// Legacy-persisted carts stored the short code in the canonical
			// ID field. Recognize it through the catalog instead of erroring.
			if set.LegacyShortID == "" {
				if _, ok := r.catalog.SlugForLegacy(item.CanonicalID); ok {
					set.LegacyShortID = item.CanonicalID
				} else {
					set.CanonicalID = item.CanonicalID
				}
			} else {
				set.CanonicalID = item.CanonicalID
			}
		}
		sets[i] = set
	}

	if len(pending) > 0 {
		slugs, err := r.products.GetSlugsByIDs(ctx, pending)
		if err != nil {
			log.Warn().Err(err).Int("ids", len(pending)).
				Msg("slug lookup degraded, matching continues with partial identifiers")
		} else {
			for i := range sets {
				if sets[i].Slug == "" && sets[i].CanonicalID != "" {
					sets[i].Slug = slugs[sets[i].CanonicalID]
				}
			}
		}
	}

	for i := range sets {
		r.fillFromCatalog(&sets[i])
	}
	return sets
}

// fillFromCatalog completes whichever of slug / legacy short code is missing
// when the catalog links the other.
func (r *Resolver) fillFromCatalog(set *model.IdentifierSet) {
	if set.Slug != "" && set.LegacyShortID == "" {
		if code, ok := r.catalog.LegacyShortID(set.Slug); ok {
			set.LegacyShortID = code
		}
	}
	if set.LegacyShortID != "" && set.Slug == "" {
		if slug, ok := r.catalog.SlugForLegacy(set.LegacyShortID); ok {
			set.Slug = slug
		}
	}
}
