package registry

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync"

	"github.com/chaintrace/registry/internal/errors"
	"github.com/chaintrace/registry/internal/events"
	"github.com/chaintrace/registry/internal/metrics"
	"github.com/chaintrace/registry/pkg/logger"
)

// Service owns the authoritative id -> Product mapping and enforces the
// transition guards. All mutations go through Create, Verify and Finalize;
// a transition either commits fully or leaves the product untouched.
type Service struct {
	store   Store
	log     *logger.Logger
	events  events.Publisher
	metrics *metrics.Metrics
	locks   keyedLocks
}

// New constructs the registry service over the given store.
func New(store Store, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("registry")
	}
	return &Service{
		store:  store,
		log:    log,
		events: events.Discard{},
	}
}

// WithEvents sets the publisher notified on lifecycle transitions.
func (s *Service) WithEvents(pub events.Publisher) *Service {
	if pub != nil {
		s.events = pub
	}
	return s
}

// WithMetrics sets the transition metrics recorder.
func (s *Service) WithMetrics(m *metrics.Metrics) *Service {
	s.metrics = m
	return s
}

// Create registers a new product. Only manufacturers may create.
// The store assigns the next sequential id; owner is the caller identity.
func (s *Service) Create(ctx context.Context, caller Caller, in CreateInput) (Product, error) {
	if err := s.guardRole(caller, RoleManufacturer, "create"); err != nil {
		s.count("create", "unauthorized")
		return Product{}, err
	}
	if err := in.Validate(); err != nil {
		s.count("create", "invalid")
		return Product{}, err
	}
	in = in.Normalized()

	created, err := s.store.CreateProduct(ctx, Product{
		BatchID:       in.BatchID,
		Certification: in.Certification,
		Origin:        in.Origin,
		CreatedAt:     in.CreatedAt,
		Owner:         caller.ID,
		Status:        StatusCreated,
	})
	if err != nil {
		s.count("create", "error")
		return Product{}, fmt.Errorf("create product: %w", err)
	}

	s.log.WithContext(ctx).
		WithField("product_id", created.ID).
		WithField("batch_id", created.BatchID).
		WithField("owner", created.Owner).
		Info("product created")
	s.count("create", "ok")
	s.events.Publish(events.Event{
		Type:      events.TypeProductCreated,
		ProductID: created.ID,
		Status:    created.Status.String(),
		Owner:     created.Owner,
	})

	return created, nil
}

// Verify moves a product from Created to Verified. Distributors only.
func (s *Service) Verify(ctx context.Context, caller Caller, id uint64) (Product, error) {
	return s.transition(ctx, caller, id, RoleDistributor, StatusCreated, StatusVerified, "verify", events.TypeProductVerified)
}

// Finalize moves a product from Verified to Finalized. Retailers only.
func (s *Service) Finalize(ctx context.Context, caller Caller, id uint64) (Product, error) {
	return s.transition(ctx, caller, id, RoleRetailer, StatusVerified, StatusFinalized, "finalize", events.TypeProductFinalized)
}

// Get returns the product at id. A missing record is a hard NotFound,
// never a zero-valued product.
func (s *Service) Get(ctx context.Context, id uint64) (Product, error) {
	if id == 0 {
		return Product{}, errors.Validation("product id must be positive")
	}

	p, err := s.store.GetProduct(ctx, id)
	if err != nil {
		if stderrors.Is(err, ErrNoRecord) {
			return Product{}, errors.NotFound(fmt.Sprintf("product %d does not exist", id))
		}
		return Product{}, fmt.Errorf("get product %d: %w", id, err)
	}
	return p, nil
}

// transition applies one guarded status change. Transitions on the same id
// are serialized: a concurrent caller waits until the first completes and
// then has its guard evaluated against the committed state.
func (s *Service) transition(ctx context.Context, caller Caller, id uint64, requiredRole Role, from, to Status, op string, evType events.Type) (Product, error) {
	if err := s.guardRole(caller, requiredRole, op); err != nil {
		s.count(op, "unauthorized")
		return Product{}, err
	}
	if id == 0 {
		s.count(op, "invalid")
		return Product{}, errors.Validation("product id must be positive")
	}

	unlock := s.locks.lock(id)
	defer unlock()

	current, err := s.store.GetProduct(ctx, id)
	if err != nil {
		if stderrors.Is(err, ErrNoRecord) {
			s.count(op, "not_found")
			return Product{}, errors.NotFound(fmt.Sprintf("product %d does not exist", id))
		}
		s.count(op, "error")
		return Product{}, fmt.Errorf("%s product %d: %w", op, id, err)
	}
	if current.Status != from {
		s.count(op, "invalid_transition")
		return Product{}, errors.InvalidTransition(fmt.Sprintf(
			"cannot %s product %d: status is %s, expected %s", op, id, current.Status, from))
	}

	updated, err := s.store.UpdateProductStatus(ctx, id, from, to)
	if err != nil {
		switch {
		case stderrors.Is(err, ErrNoRecord):
			s.count(op, "not_found")
			return Product{}, errors.NotFound(fmt.Sprintf("product %d does not exist", id))
		case stderrors.Is(err, ErrStatusConflict):
			// Another writer won the race outside our lock domain
			// (e.g. a second instance against the same database).
			s.count(op, "invalid_transition")
			return Product{}, errors.InvalidTransition(fmt.Sprintf(
				"cannot %s product %d: status changed concurrently", op, id))
		default:
			s.count(op, "error")
			return Product{}, fmt.Errorf("%s product %d: %w", op, id, err)
		}
	}

	s.log.WithContext(ctx).
		WithField("product_id", id).
		WithField("from", from.String()).
		WithField("to", to.String()).
		Info("product status changed")
	s.count(op, "ok")
	s.events.Publish(events.Event{
		Type:      evType,
		ProductID: id,
		Status:    updated.Status.String(),
		Owner:     updated.Owner,
	})

	return updated, nil
}

func (s *Service) guardRole(caller Caller, required Role, op string) error {
	if !caller.Role.Valid() {
		return errors.Unauthorized(fmt.Sprintf("role %q may not %s products", caller.Role, op))
	}
	if caller.Role != required {
		return errors.Unauthorized(fmt.Sprintf("only a %s may %s products", required, op))
	}
	return nil
}

func (s *Service) count(op, outcome string) {
	if s.metrics != nil {
		s.metrics.RecordTransition(op, outcome)
	}
}

// keyedLocks serializes transitions per product id. Entries are
// reference-counted and removed when the last holder releases.
type keyedLocks struct {
	mu      sync.Mutex
	entries map[uint64]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func (k *keyedLocks) lock(id uint64) (unlock func()) {
	k.mu.Lock()
	if k.entries == nil {
		k.entries = make(map[uint64]*lockEntry)
	}
	e, ok := k.entries[id]
	if !ok {
		e = &lockEntry{}
		k.entries[id] = e
	}
	e.refs++
	k.mu.Unlock()

	e.mu.Lock()
	return func() {
		e.mu.Unlock()
		k.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(k.entries, id)
		}
		k.mu.Unlock()
	}
}
