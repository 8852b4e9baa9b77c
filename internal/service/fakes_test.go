package service

import (
	"context"
	"errors"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/GTDGit/gtd_storefront/internal/cache"
	"github.com/GTDGit/gtd_storefront/internal/models"
	"github.com/GTDGit/gtd_storefront/internal/utils"
	"github.com/GTDGit/gtd_storefront/pkg/storefront"
)

type fakeCatalog struct {
	mu       sync.Mutex
	products map[string]*models.Product
}

func newFakeCatalog(products ...*models.Product) *fakeCatalog {
	c := &fakeCatalog{products: make(map[string]*models.Product)}
	for _, p := range products {
		c.products[p.ID] = p
	}
	return c
}

func (c *fakeCatalog) GetProduct(ctx context.Context, id string) (*models.Product, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.products[id]
	if !ok {
		return nil, utils.ErrProductNotFound
	}
	cp := *p
	return &cp, nil
}

// batchCatalog serves GetProducts from the wrapped catalog and counts batches.
type batchCatalog struct {
	*fakeCatalog
	batches int
}

func (c *batchCatalog) GetProducts(ctx context.Context, ids []string) (map[string]*models.Product, error) {
	c.mu.Lock()
	c.batches++
	c.mu.Unlock()
	out := make(map[string]*models.Product, len(ids))
	for _, id := range ids {
		if p, err := c.GetProduct(ctx, id); err == nil {
			out[id] = p
		}
	}
	return out, nil
}

// gatedStore is a MemoryStore whose reads can be held or failed.
type gatedStore struct {
	*cache.MemoryStore

	mu       sync.Mutex
	gate     chan struct{}
	entered  chan struct{}
	failGets int
}

func newGatedStore() *gatedStore {
	return &gatedStore{MemoryStore: cache.NewMemoryStore(), entered: make(chan struct{}, 1)}
}

// holdNextGet makes the next Get signal entered and wait until the returned
// channel is closed.
func (s *gatedStore) holdNextGet() chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gate = make(chan struct{})
	return s.gate
}

func (s *gatedStore) Get(ctx context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	gate := s.gate
	s.gate = nil
	fail := s.failGets > 0
	if fail {
		s.failGets--
	}
	s.mu.Unlock()

	if gate != nil {
		s.entered <- struct{}{}
		<-gate
	}
	if fail {
		return nil, errors.New("store unavailable")
	}
	return s.MemoryStore.Get(ctx, key)
}

// fakeRemote records calls and serves a scripted collection.
type fakeRemote struct {
	mu       sync.Mutex
	items    []storefront.RemoteLine
	addResp  func(productID, size string, quantity int) *storefront.AddResponse
	err      error
	fetchErr error
	// block, when set, is received from before any call returns.
	block chan struct{}
	calls []string
}

func (r *fakeRemote) record(call string) error {
	r.mu.Lock()
	r.calls = append(r.calls, call)
	block := r.block
	err := r.err
	r.mu.Unlock()
	if block != nil {
		<-block
	}
	return err
}

func (r *fakeRemote) Fetch(ctx context.Context) (*storefront.CollectionResponse, error) {
	if err := r.record("fetch"); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fetchErr != nil {
		return nil, r.fetchErr
	}
	items := make([]storefront.RemoteLine, len(r.items))
	copy(items, r.items)
	return &storefront.CollectionResponse{Items: items}, nil
}

func (r *fakeRemote) Add(ctx context.Context, productID, size string, quantity int) (*storefront.AddResponse, error) {
	if err := r.record("add"); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.addResp != nil {
		return r.addResp(productID, size, quantity), nil
	}
	return &storefront.AddResponse{}, nil
}

func (r *fakeRemote) Update(ctx context.Context, productID, size string, quantity int) error {
	return r.record("update")
}

func (r *fakeRemote) Remove(ctx context.Context, productID, size string) error {
	return r.record("remove")
}

func (r *fakeRemote) Clear(ctx context.Context) error {
	return r.record("clear")
}

func (r *fakeRemote) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.calls))
	copy(out, r.calls)
	return out
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []models.CollectionKind
}

func (n *recordingNotifier) NotifyCollectionChanged(sessionID string, kind models.CollectionKind, line *models.Line, removed bool, totals models.Totals) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, kind)
}

func (n *recordingNotifier) Count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.events)
}

func intPtr(n int) *int { return &n }

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

// shoe is a variant product with sizeStock {7:2, 8:0}.
func shoe() *models.Product {
	return &models.Product{
		ID:        "shoe",
		Name:      "Runner",
		Price:     dec("120"),
		Sizes:     models.StringList{"7", "8"},
		SizeStock: models.VariantStock{"7": 2, "8": 0},
		IsActive:  true,
	}
}

// mug is a plain product with scalar stock 5.
func mug() *models.Product {
	return &models.Product{
		ID:       "mug",
		Name:     "Mug",
		Price:    dec("10"),
		Stock:    intPtr(5),
		IsActive: true,
	}
}

func newTestCollection(kind models.CollectionKind, store cache.Store, products ...*models.Product) (*CollectionService, *recordingNotifier) {
	n := &recordingNotifier{}
	svc := NewCollectionService(kind, "s1", newFakeCatalog(products...), NewStockResolver(), NewPriceResolver(false), store, n)
	return svc, n
}
