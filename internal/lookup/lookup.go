// Package lookup is the read-only query surface over registry records.
//
// Listing is driven by the source's total count: ids are dense from 1, so
// a page is a descending walk from the count cursor rather than a fixed
// scan window. The lookup never mutates registry state.
package lookup

import (
	"context"
	stderrors "errors"
	"fmt"

	"github.com/chaintrace/registry/internal/errors"
	"github.com/chaintrace/registry/internal/registry"
	"github.com/chaintrace/registry/pkg/logger"
)

// DefaultLimit is the page size applied when the caller does not set one.
const DefaultLimit = 20

// MaxLimit caps a single page.
const MaxLimit = 100

// Source is a read-only view of registry records. Both the store adapter
// and the chain contract binding satisfy it.
type Source interface {
	GetProduct(ctx context.Context, id uint64) (registry.Product, error)
	TotalProducts(ctx context.Context) (uint64, error)
}

// Lister is an optional Source refinement for sources that can page
// natively instead of walking ids.
type Lister interface {
	ListProducts(ctx context.Context, offset, limit int) ([]registry.Product, error)
}

// Page is one listing result.
type Page struct {
	Products []registry.Product `json:"products"`
	Total    uint64             `json:"total"`
	Offset   int                `json:"offset"`
	Limit    int                `json:"limit"`
}

// Lookup serves Get, List and Count over a Source with an optional
// read-through cache.
type Lookup struct {
	source Source
	cache  *Cache
	log    *logger.Logger
}

// New creates a lookup over the given source.
func New(source Source, log *logger.Logger) *Lookup {
	if log == nil {
		log = logger.NewDefault("lookup")
	}
	return &Lookup{source: source, log: log}
}

// WithCache attaches a read-through cache.
func (l *Lookup) WithCache(cache *Cache) *Lookup {
	l.cache = cache
	return l
}

// Get returns the product at id. Missing records surface as NotFound.
func (l *Lookup) Get(ctx context.Context, id uint64) (registry.Product, error) {
	if id == 0 {
		return registry.Product{}, errors.Validation("product id must be positive")
	}

	if l.cache != nil {
		if p, ok := l.cache.GetProduct(ctx, id); ok {
			return p, nil
		}
	}

	p, err := l.source.GetProduct(ctx, id)
	if err != nil {
		return registry.Product{}, err
	}

	if l.cache != nil {
		l.cache.SetProduct(ctx, p)
	}
	return p, nil
}

// Count returns the number of registered products.
func (l *Lookup) Count(ctx context.Context) (uint64, error) {
	return l.source.TotalProducts(ctx)
}

// List returns a page of products in descending id order.
func (l *Lookup) List(ctx context.Context, offset, limit int) (Page, error) {
	if offset < 0 {
		return Page{}, errors.Validation("offset must not be negative")
	}
	if limit < 0 {
		return Page{}, errors.Validation("limit must not be negative")
	}
	if limit == 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}

	total, err := l.source.TotalProducts(ctx)
	if err != nil {
		return Page{}, fmt.Errorf("count products: %w", err)
	}

	page := Page{Products: []registry.Product{}, Total: total, Offset: offset, Limit: limit}
	if uint64(offset) >= total {
		return page, nil
	}

	if lister, ok := l.source.(Lister); ok {
		products, err := lister.ListProducts(ctx, offset, limit)
		if err != nil {
			return Page{}, fmt.Errorf("list products: %w", err)
		}
		page.Products = products
		return page, nil
	}

	// Dense ids: walk down from the count cursor. A missing id inside
	// the window ends the page early rather than failing the listing.
	id := total - uint64(offset)
	for id >= 1 && len(page.Products) < limit {
		p, err := l.Get(ctx, id)
		if err != nil {
			if errors.IsNotFound(err) {
				break
			}
			return Page{}, fmt.Errorf("list product %d: %w", id, err)
		}
		page.Products = append(page.Products, p)
		id--
	}
	return page, nil
}

// StoreSource adapts a registry.Store to the Source interface.
type StoreSource struct {
	store registry.Store
}

// NewStoreSource wraps a store as a lookup source.
func NewStoreSource(store registry.Store) *StoreSource {
	return &StoreSource{store: store}
}

// GetProduct implements Source.
func (s *StoreSource) GetProduct(ctx context.Context, id uint64) (registry.Product, error) {
	p, err := s.store.GetProduct(ctx, id)
	if err != nil {
		if stderrors.Is(err, registry.ErrNoRecord) {
			return registry.Product{}, errors.NotFound(fmt.Sprintf("product %d does not exist", id))
		}
		return registry.Product{}, err
	}
	return p, nil
}

// TotalProducts implements Source.
func (s *StoreSource) TotalProducts(ctx context.Context) (uint64, error) {
	return s.store.CountProducts(ctx)
}

// ListProducts implements Lister.
func (s *StoreSource) ListProducts(ctx context.Context, offset, limit int) ([]registry.Product, error) {
	return s.store.ListProducts(ctx, offset, limit)
}
