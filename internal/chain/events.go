package chain

import (
	"fmt"

	"github.com/chaintrace/registry/internal/registry"
)

// ProductMintedEvent is the ProductMinted(id, owner, batchId) notification.
type ProductMintedEvent struct {
	ProductID uint64
	Owner     string
	BatchID   string
}

// ProductStatusChangedEvent is the ProductStatusChanged(id, status) notification.
type ProductStatusChangedEvent struct {
	ProductID uint64
	Status    registry.Status
}

// ParseProductMinted decodes a ProductMinted notification state.
func ParseProductMinted(n Notification) (*ProductMintedEvent, error) {
	items, err := ParseArray(n.State)
	if err != nil {
		return nil, fmt.Errorf("parse %s state: %w", EventProductMinted, err)
	}
	if len(items) < 3 {
		return nil, fmt.Errorf("%s: expected 3 items, got %d", EventProductMinted, len(items))
	}

	id, err := ParseInteger(items[0])
	if err != nil {
		return nil, fmt.Errorf("parse id: %w", err)
	}
	owner, err := ParseHash160(items[1])
	if err != nil {
		return nil, fmt.Errorf("parse owner: %w", err)
	}
	batchID, err := ParseString(items[2])
	if err != nil {
		return nil, fmt.Errorf("parse batchId: %w", err)
	}

	return &ProductMintedEvent{
		ProductID: id.Uint64(),
		Owner:     owner,
		BatchID:   batchID,
	}, nil
}

// ParseProductStatusChanged decodes a ProductStatusChanged notification state.
func ParseProductStatusChanged(n Notification) (*ProductStatusChangedEvent, error) {
	items, err := ParseArray(n.State)
	if err != nil {
		return nil, fmt.Errorf("parse %s state: %w", EventProductStatusChanged, err)
	}
	if len(items) < 2 {
		return nil, fmt.Errorf("%s: expected 2 items, got %d", EventProductStatusChanged, len(items))
	}

	id, err := ParseInteger(items[0])
	if err != nil {
		return nil, fmt.Errorf("parse id: %w", err)
	}
	status, err := ParseInteger(items[1])
	if err != nil {
		return nil, fmt.Errorf("parse status: %w", err)
	}

	return &ProductStatusChangedEvent{
		ProductID: id.Uint64(),
		Status:    registry.Status(status.Uint64()),
	}, nil
}
