package registry

import (
	"context"
	"sync"

	"github.com/chaintrace/registry/internal/events"
)

// MemoryStore is an in-memory Store used by tests and by standalone mode.
type MemoryStore struct {
	mu       sync.RWMutex
	products map[uint64]Product
	nextID   uint64
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		products: make(map[uint64]Product),
		nextID:   1,
	}
}

func (s *MemoryStore) CreateProduct(ctx context.Context, p Product) (Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p.ID = s.nextID
	s.nextID++
	s.products[p.ID] = p
	return p, nil
}

func (s *MemoryStore) GetProduct(ctx context.Context, id uint64) (Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.products[id]
	if !ok {
		return Product{}, ErrNoRecord
	}
	return p, nil
}

func (s *MemoryStore) UpdateProductStatus(ctx context.Context, id uint64, from, to Status) (Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.products[id]
	if !ok {
		return Product{}, ErrNoRecord
	}
	if p.Status != from {
		return Product{}, ErrStatusConflict
	}
	p.Status = to
	s.products[id] = p
	return p, nil
}

func (s *MemoryStore) CountProducts(ctx context.Context) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return uint64(len(s.products)), nil
}

func (s *MemoryStore) ListProducts(ctx context.Context, offset, limit int) ([]Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	// Ids are dense and sequential, so a descending walk from the
	// highest id is an ordered scan.
	var result []Product
	skipped := 0
	for id := s.nextID - 1; id >= 1; id-- {
		p, ok := s.products[id]
		if !ok {
			continue
		}
		if skipped < offset {
			skipped++
			continue
		}
		result = append(result, p)
		if len(result) == limit {
			break
		}
	}
	return result, nil
}

// CapturingPublisher records published events for test assertions.
type CapturingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

// NewCapturingPublisher creates an empty capturing publisher.
func NewCapturingPublisher() *CapturingPublisher {
	return &CapturingPublisher{}
}

// Publish implements events.Publisher.
func (c *CapturingPublisher) Publish(ev events.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
}

// Events returns a copy of the captured events.
func (c *CapturingPublisher) Events() []events.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]events.Event, len(c.events))
	copy(out, c.events)
	return out
}
