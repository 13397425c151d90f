package registry

import (
	"context"
	"errors"
)

// Store errors. Stores return these sentinels (possibly wrapped) so the
// service can map them onto the caller-facing taxonomy.
var (
	// ErrNoRecord reports a lookup of an id with no record. A missing
	// product is never reported as a zero-valued record.
	ErrNoRecord = errors.New("no product record")

	// ErrStatusConflict reports a compare-and-set whose expected status
	// no longer matches the stored one.
	ErrStatusConflict = errors.New("product status conflict")
)

// Store is the persistence contract for the registry. The id sequence is
// owned by the store: ids are assigned once, monotonically, never reused.
//
// Registry state is mutated only through CreateProduct and
// UpdateProductStatus; the lookup layer holds a read-only view.
type Store interface {
	// CreateProduct persists p with the next sequential id and returns
	// the stored record. p.ID is ignored on input.
	CreateProduct(ctx context.Context, p Product) (Product, error)

	// GetProduct returns the record at id, or ErrNoRecord.
	GetProduct(ctx context.Context, id uint64) (Product, error)

	// UpdateProductStatus moves the product at id from status `from` to
	// status `to`. Returns ErrNoRecord if absent and ErrStatusConflict
	// if the stored status is not `from`. All other fields are left
	// untouched.
	UpdateProductStatus(ctx context.Context, id uint64, from, to Status) (Product, error)

	// CountProducts returns the number of known products.
	CountProducts(ctx context.Context) (uint64, error)

	// ListProducts returns up to limit products in descending id order,
	// skipping the first offset.
	ListProducts(ctx context.Context, offset, limit int) ([]Product, error)
}
