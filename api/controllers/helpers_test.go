package controllers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/0x360x36/miauhome.cl/api/middleware"
	"github.com/0x360x36/miauhome.cl/internal/cart"
	"github.com/0x360x36/miauhome.cl/internal/session"
	"github.com/0x360x36/miauhome.cl/pkg/auth"
	"github.com/0x360x36/miauhome.cl/pkg/backend"
	pkgerrors "github.com/0x360x36/miauhome.cl/pkg/errors"
	"github.com/0x360x36/miauhome.cl/pkg/guest"
	"github.com/0x360x36/miauhome.cl/pkg/logger"
	"github.com/go-chi/chi/v5"
)

var testLogger = logger.New(logger.Options{ServiceName: "test", Level: logger.ParseLevel("debug"), Output: io.Discard})

type memStore struct {
	mu   sync.Mutex
	data map[string][]byte
}

func (s *memStore) Load(_ context.Context, id string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.data[id]
	if !ok {
		return nil, guest.ErrNotFound
	}
	return d, nil
}

func (s *memStore) Save(_ context.Context, id string, p []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[id] = p
	return nil
}

func (s *memStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, id)
	return nil
}

func (s *memStore) Ping(context.Context) error { return nil }

// stubBackend plays the store backend for catalog and authenticated carts.
type stubBackend struct {
	products map[int64]backend.Product
	cartErr  error
	cartCall int
}

func (s *stubBackend) Product(_ context.Context, id int64) (*backend.Product, error) {
	p, ok := s.products[id]
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "Product not found")
	}
	return &p, nil
}

func (s *stubBackend) Products(context.Context) ([]backend.Product, error) {
	out := make([]backend.Product, 0, len(s.products))
	for _, id := range []int64{1, 2} {
		if p, ok := s.products[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *stubBackend) LoadCart(context.Context, string) (*backend.Cart, error) {
	s.cartCall++
	if s.cartErr != nil {
		return nil, s.cartErr
	}
	return &backend.Cart{ID: 1}, nil
}

func (s *stubBackend) AddItem(context.Context, string, backend.AddItemRequest) (*backend.Cart, error) {
	s.cartCall++
	if s.cartErr != nil {
		return nil, s.cartErr
	}
	return &backend.Cart{ID: 1}, nil
}

func (s *stubBackend) RemoveItem(context.Context, string, int64, *int64) (*backend.Cart, error) {
	s.cartCall++
	if s.cartErr != nil {
		return nil, s.cartErr
	}
	return &backend.Cart{ID: 1}, nil
}

func int64Ptr(v int64) *int64 { return &v }

func newStubBackend() *stubBackend {
	return &stubBackend{products: map[int64]backend.Product{
		1: {ID: 1, Name: "Rascador", Price: 1000},
		2: {ID: 2, Name: "Cama", Price: 1200, Variations: []backend.Variation{
			{ID: 9, ProductID: 2, Name: "XL", Price: int64Ptr(1500)},
		}},
	}}
}

func newSessions(t *testing.T, remote cart.RemoteClient) *session.Registry {
	t.Helper()
	store := &memStore{data: map[string][]byte{}}
	reg, err := session.NewRegistry(func(profileID string, expired func(context.Context)) (*cart.Manager, error) {
		gb, err := cart.NewGuestBackend(store, profileID, nil)
		if err != nil {
			return nil, err
		}
		return cart.NewManager(cart.Options{
			Guest: gb,
			Remote: func(id *auth.Identity) (cart.Backend, error) {
				return cart.NewRemoteBackend(remote, id)
			},
			OnUnauthorized: expired,
		})
	}, 0, nil)
	if err != nil {
		t.Fatalf("new registry: %v", err)
	}
	return reg
}

type requestOpts struct {
	guestID  string
	identity *auth.Identity
	params   map[string]string
	accept   string
}

func serve(handler http.HandlerFunc, method, target, body string, opts requestOpts) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if opts.accept != "" {
		req.Header.Set("Accept", opts.accept)
	}
	ctx := req.Context()
	if opts.guestID != "" {
		ctx = middleware.WithGuestID(ctx, opts.guestID)
	}
	if opts.identity != nil {
		ctx = middleware.WithIdentity(ctx, opts.identity)
	}
	routeCtx := chi.NewRouteContext()
	for k, v := range opts.params {
		routeCtx.URLParams.Add(k, v)
	}
	ctx = context.WithValue(ctx, chi.RouteCtxKey, routeCtx)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req.WithContext(ctx))
	return rec
}

type snapshotEnvelope struct {
	Data cart.Snapshot `json:"data"`
}

func decodeSnapshot(t *testing.T, rec *httptest.ResponseRecorder) cart.Snapshot {
	t.Helper()
	var env snapshotEnvelope
	if err := json.NewDecoder(rec.Body).Decode(&env); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	return env.Data
}

type errorEnvelope struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorEnvelope {
	t.Helper()
	var env errorEnvelope
	if err := json.NewDecoder(rec.Body).Decode(&env); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	return env
}
