package lookup

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"

	svcerr "github.com/chaintrace/registry/internal/errors"
	"github.com/chaintrace/registry/internal/events"
	"github.com/chaintrace/registry/internal/registry"
	"github.com/chaintrace/registry/pkg/logger"
)

func seededStore(t *testing.T, n int) registry.Store {
	t.Helper()
	store := registry.NewMemoryStore()
	for i := 1; i <= n; i++ {
		_, err := store.CreateProduct(context.Background(), registry.Product{
			BatchID:       fmt.Sprintf("BATCH-%d", i),
			Certification: "ISO-9001",
			Origin:        "Lyon",
			CreatedAt:     1735689600,
			Owner:         "mfg-1",
			Status:        registry.StatusCreated,
		})
		if err != nil {
			t.Fatalf("seed product %d: %v", i, err)
		}
	}
	return store
}

func TestGet(t *testing.T) {
	l := New(NewStoreSource(seededStore(t, 3)), logger.NewDefault("test"))

	p, err := l.Get(context.Background(), 2)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if p.BatchID != "BATCH-2" {
		t.Errorf("BatchID = %q, want BATCH-2", p.BatchID)
	}
}

func TestGetMissingIsNotFound(t *testing.T) {
	l := New(NewStoreSource(seededStore(t, 1)), logger.NewDefault("test"))

	_, err := l.Get(context.Background(), 99)
	if !svcerr.IsNotFound(err) {
		t.Fatalf("expected not_found, got %v", err)
	}
}

func TestGetZeroIDIsValidation(t *testing.T) {
	l := New(NewStoreSource(seededStore(t, 1)), logger.NewDefault("test"))

	_, err := l.Get(context.Background(), 0)
	if !svcerr.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestListDescendingWithOffset(t *testing.T) {
	l := New(NewStoreSource(seededStore(t, 5)), logger.NewDefault("test"))

	page, err := l.List(context.Background(), 1, 2)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if page.Total != 5 {
		t.Errorf("Total = %d, want 5", page.Total)
	}
	if len(page.Products) != 2 {
		t.Fatalf("len = %d, want 2", len(page.Products))
	}
	if page.Products[0].ID != 4 || page.Products[1].ID != 3 {
		t.Errorf("ids = %d,%d, want 4,3", page.Products[0].ID, page.Products[1].ID)
	}
}

func TestListOffsetBeyondTotal(t *testing.T) {
	l := New(NewStoreSource(seededStore(t, 2)), logger.NewDefault("test"))

	page, err := l.List(context.Background(), 10, 5)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(page.Products) != 0 {
		t.Errorf("len = %d, want 0", len(page.Products))
	}
	if page.Total != 2 {
		t.Errorf("Total = %d, want 2", page.Total)
	}
}

func TestListClampsLimit(t *testing.T) {
	l := New(NewStoreSource(seededStore(t, 1)), logger.NewDefault("test"))

	page, err := l.List(context.Background(), 0, MaxLimit+50)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if page.Limit != MaxLimit {
		t.Errorf("Limit = %d, want %d", page.Limit, MaxLimit)
	}

	if _, err := l.List(context.Background(), -1, 0); !svcerr.IsValidation(err) {
		t.Errorf("negative offset: expected validation error, got %v", err)
	}
}

// countSource is a Source without native listing, like the chain binding.
type countSource struct {
	products map[uint64]registry.Product
}

func (s *countSource) GetProduct(_ context.Context, id uint64) (registry.Product, error) {
	p, ok := s.products[id]
	if !ok {
		return registry.Product{}, svcerr.NotFound("missing")
	}
	return p, nil
}

func (s *countSource) TotalProducts(context.Context) (uint64, error) {
	return uint64(len(s.products)), nil
}

func TestListWalksDenseIDsWithoutLister(t *testing.T) {
	src := &countSource{products: map[uint64]registry.Product{
		1: {ID: 1}, 2: {ID: 2}, 3: {ID: 3}, 4: {ID: 4},
	}}
	l := New(src, logger.NewDefault("test"))

	page, err := l.List(context.Background(), 1, 2)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(page.Products) != 2 {
		t.Fatalf("len = %d, want 2", len(page.Products))
	}
	if page.Products[0].ID != 3 || page.Products[1].ID != 2 {
		t.Errorf("ids = %d,%d, want 3,2", page.Products[0].ID, page.Products[1].ID)
	}
}

// sparseSource reports a total beyond its highest stored id, as a source
// can after records disappear under the count cursor.
type sparseSource struct {
	countSource
	total uint64
}

func (s *sparseSource) TotalProducts(context.Context) (uint64, error) {
	return s.total, nil
}

func TestListEndsPageEarlyOnMissingID(t *testing.T) {
	src := &sparseSource{
		countSource: countSource{products: map[uint64]registry.Product{
			4: {ID: 4}, 5: {ID: 5},
		}},
		total: 5,
	}
	l := New(src, logger.NewDefault("test"))

	page, err := l.List(context.Background(), 0, 5)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(page.Products) != 2 {
		t.Fatalf("len = %d, want 2 (walk stops at the first missing id)", len(page.Products))
	}
	if page.Products[0].ID != 5 || page.Products[1].ID != 4 {
		t.Errorf("ids = %d,%d, want 5,4", page.Products[0].ID, page.Products[1].ID)
	}
}

func testCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return NewCache(rdb, time.Minute, logger.NewDefault("test")), mr
}

func TestCacheReadThrough(t *testing.T) {
	cache, _ := testCache(t)
	store := seededStore(t, 1)
	l := New(NewStoreSource(store), logger.NewDefault("test")).WithCache(cache)

	ctx := context.Background()
	if _, err := l.Get(ctx, 1); err != nil {
		t.Fatalf("Get: %v", err)
	}

	// Now served from cache even if the store record changes underneath.
	if _, err := store.UpdateProductStatus(ctx, 1, registry.StatusCreated, registry.StatusVerified); err != nil {
		t.Fatalf("UpdateProductStatus: %v", err)
	}
	p, err := l.Get(ctx, 1)
	if err != nil {
		t.Fatalf("Get cached: %v", err)
	}
	if p.Status != registry.StatusCreated {
		t.Fatalf("expected cached Created record, got %s", p.Status)
	}

	// Invalidation exposes the committed state.
	cache.Invalidate(ctx, 1)
	p, err = l.Get(ctx, 1)
	if err != nil {
		t.Fatalf("Get after invalidate: %v", err)
	}
	if p.Status != registry.StatusVerified {
		t.Errorf("status = %s, want Verified", p.Status)
	}
}

func TestCacheWatchEventsInvalidates(t *testing.T) {
	cache, _ := testCache(t)
	store := seededStore(t, 1)
	l := New(NewStoreSource(store), logger.NewDefault("test")).WithCache(cache)
	hub := events.NewHub()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go cache.WatchEvents(ctx, hub)

	// Let the watcher subscribe before publishing.
	for i := 0; i < 100 && hub.SubscriberCount() == 0; i++ {
		time.Sleep(time.Millisecond)
	}

	if _, err := l.Get(ctx, 1); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if _, err := store.UpdateProductStatus(ctx, 1, registry.StatusCreated, registry.StatusVerified); err != nil {
		t.Fatalf("UpdateProductStatus: %v", err)
	}

	hub.Publish(events.Event{Type: events.TypeProductVerified, ProductID: 1, Status: "Verified"})

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		p, err := l.Get(ctx, 1)
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if p.Status == registry.StatusVerified {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("cache entry was not invalidated by the event")
}
