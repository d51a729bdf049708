package cart

import (
	"context"
	"sync"

	"github.com/0x360x36/miauhome.cl/internal/catalog"
	"github.com/0x360x36/miauhome.cl/pkg/auth"
	"github.com/0x360x36/miauhome.cl/pkg/backend"
	pkgerrors "github.com/0x360x36/miauhome.cl/pkg/errors"
	"github.com/0x360x36/miauhome.cl/pkg/guest"
)

func ptr[T any](v T) *T { return &v }

var (
	productA   = catalog.Product{ID: 1, Name: "Rascador", Price: 1000}
	productB   = catalog.Product{ID: 2, Name: "Cama", Price: 1200}
	variationX = catalog.Variation{ID: 9, ProductID: 2, Name: "Grande", Price: ptr(int64(1500))}
)

type memStore struct {
	mu      sync.Mutex
	data    map[string][]byte
	saves   int
	loadErr error
	saveErr error
}

func newMemStore() *memStore {
	return &memStore{data: map[string][]byte{}}
}

func (s *memStore) Load(_ context.Context, profileID string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loadErr != nil {
		return nil, s.loadErr
	}
	data, ok := s.data[profileID]
	if !ok {
		return nil, guest.ErrNotFound
	}
	return data, nil
}

func (s *memStore) Save(_ context.Context, profileID string, payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	s.saves++
	s.data[profileID] = append([]byte(nil), payload...)
	return nil
}

func (s *memStore) Delete(_ context.Context, profileID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, profileID)
	return nil
}

func (s *memStore) Ping(context.Context) error { return nil }

func (s *memStore) has(profileID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.data[profileID]
	return ok
}

// fakeServer behaves like the store backend's cart endpoints for one user.
type fakeServer struct {
	mu       sync.Mutex
	nextID   int64
	items    []backend.CartItem
	catalog  map[int64]backend.Product
	calls    int
	tokens   []string
	err      error
	notFound bool
	// failCall makes only the n-th call (1-based) fail with failErr.
	failCall int
	failErr  error
}

func newFakeServer(products ...catalog.Product) *fakeServer {
	s := &fakeServer{nextID: 100, catalog: map[int64]backend.Product{}}
	for _, p := range products {
		s.catalog[p.ID] = backend.Product{ID: p.ID, Name: p.Name, Price: p.Price}
	}
	return s
}

func (s *fakeServer) seed(productID int64, variation *catalog.Variation, qty int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	item := backend.CartItem{ID: s.nextID, ProductID: productID, Quantity: qty, Product: s.catalog[productID]}
	if variation != nil {
		item.VariationID = ptr(variation.ID)
		item.Variation = &backend.Variation{ID: variation.ID, ProductID: variation.ProductID, Name: variation.Name, Price: variation.Price}
	}
	s.items = append(s.items, item)
}

func (s *fakeServer) snapshot() *backend.Cart {
	items := make([]backend.CartItem, len(s.items))
	copy(items, s.items)
	return &backend.Cart{ID: 1, Items: items}
}

func (s *fakeServer) enter(token string) error {
	s.calls++
	s.tokens = append(s.tokens, token)
	if s.failCall > 0 && s.calls == s.failCall {
		return s.failErr
	}
	return s.err
}

func (s *fakeServer) LoadCart(_ context.Context, token string) (*backend.Cart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(token); err != nil {
		return nil, err
	}
	return s.snapshot(), nil
}

func (s *fakeServer) AddItem(_ context.Context, token string, req backend.AddItemRequest) (*backend.Cart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(token); err != nil {
		return nil, err
	}
	for i := range s.items {
		it := s.items[i]
		sameVariation := (it.VariationID == nil && req.VariationID == nil) ||
			(it.VariationID != nil && req.VariationID != nil && *it.VariationID == *req.VariationID)
		if it.ProductID == req.ProductID && sameVariation {
			s.items[i].Quantity += req.Quantity
			return s.snapshot(), nil
		}
	}
	s.nextID++
	item := backend.CartItem{ID: s.nextID, ProductID: req.ProductID, VariationID: req.VariationID, Quantity: req.Quantity, Product: s.catalog[req.ProductID]}
	if req.VariationID != nil && *req.VariationID == variationX.ID {
		item.Variation = &backend.Variation{ID: variationX.ID, ProductID: variationX.ProductID, Name: variationX.Name, Price: variationX.Price}
	}
	s.items = append(s.items, item)
	return s.snapshot(), nil
}

func (s *fakeServer) RemoveItem(_ context.Context, token string, productID int64, variationID *int64) (*backend.Cart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(token); err != nil {
		return nil, err
	}
	if s.notFound {
		s.items = nil
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "Item not found in cart")
	}
	kept := s.items[:0]
	for _, it := range s.items {
		sameVariation := (it.VariationID == nil && variationID == nil) ||
			(it.VariationID != nil && variationID != nil && *it.VariationID == *variationID)
		if it.ProductID == productID && sameVariation {
			continue
		}
		kept = append(kept, it)
	}
	s.items = kept
	return s.snapshot(), nil
}

func (s *fakeServer) quantityOf(productID int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, it := range s.items {
		if it.ProductID == productID {
			return it.Quantity
		}
	}
	return 0
}

func (s *fakeServer) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type testHarness struct {
	store   *memStore
	server  *fakeServer
	manager *Manager
	expired int
}

func newHarness(t interface{ Fatalf(string, ...any) }, identity *auth.Identity, policy LoginPolicy) *testHarness {
	h := &testHarness{store: newMemStore(), server: newFakeServer(productA, productB)}
	guestBackend, err := NewGuestBackend(h.store, "guest-1", nil)
	if err != nil {
		t.Fatalf("guest backend: %v", err)
	}
	manager, err := NewManager(Options{
		Guest: guestBackend,
		Remote: func(id *auth.Identity) (Backend, error) {
			return NewRemoteBackend(h.server, id)
		},
		Identity:       identity,
		Policy:         policy,
		OnUnauthorized: func(context.Context) { h.expired++ },
	})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	h.manager = manager
	return h
}
