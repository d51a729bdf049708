// Package session keeps one cart manager per visitor of the storefront edge.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/0x360x36/miauhome.cl/internal/cart"
	"github.com/0x360x36/miauhome.cl/pkg/auth"
	"github.com/0x360x36/miauhome.cl/pkg/logger"
	"golang.org/x/sync/singleflight"
)

// ManagerFactory builds an uninitialized manager for a guest profile. expired is
// invoked when the store backend rejects the visitor's credential.
type ManagerFactory func(profileID string, expired func(ctx context.Context)) (*cart.Manager, error)

type entry struct {
	manager  *cart.Manager
	lastSeen time.Time
	expired  bool
}

// Registry resolves visitors to their cart manager and keeps the manager's
// identity in step with the bearer presented on each request.
type Registry struct {
	mu      sync.Mutex
	entries map[string]*entry
	group   singleflight.Group
	factory ManagerFactory
	idleTTL time.Duration
	now     func() time.Time
	logg    *logger.Logger
}

func NewRegistry(factory ManagerFactory, idleTTL time.Duration, logg *logger.Logger) (*Registry, error) {
	if factory == nil {
		return nil, errors.New("manager factory is required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &Registry{
		entries: map[string]*entry{},
		factory: factory,
		idleTTL: idleTTL,
		now:     time.Now,
		logg:    logg,
	}, nil
}

// Session is the per-request view of a visitor.
type Session struct {
	Manager *cart.Manager
	expired func() bool
}

// Expired reports whether the backend rejected the visitor's credential since
// the last time the flag was read, and clears it.
func (s *Session) Expired() bool {
	if s == nil || s.expired == nil {
		return false
	}
	return s.expired()
}

// Get returns the visitor's manager, creating and initializing it on first use
// and applying login/logout when the presented identity changed.
func (r *Registry) Get(ctx context.Context, profileID string, identity *auth.Identity) (*Session, error) {
	e, err := r.lookup(ctx, profileID, identity)
	if err != nil {
		return nil, err
	}
	if err := r.reconcile(ctx, e.manager, identity); err != nil {
		return nil, err
	}
	return &Session{Manager: e.manager, expired: func() bool { return r.consumeExpired(profileID) }}, nil
}

func (r *Registry) lookup(ctx context.Context, profileID string, identity *auth.Identity) (*entry, error) {
	r.mu.Lock()
	if e, ok := r.entries[profileID]; ok {
		e.lastSeen = r.now()
		r.mu.Unlock()
		return e, nil
	}
	r.mu.Unlock()

	v, err, _ := r.group.Do(profileID, func() (interface{}, error) {
		r.mu.Lock()
		if e, ok := r.entries[profileID]; ok {
			r.mu.Unlock()
			return e, nil
		}
		r.mu.Unlock()

		manager, err := r.factory(profileID, func(context.Context) { r.markExpired(profileID) })
		if err != nil {
			return nil, err
		}
		// identity is applied by reconcile; the first load is the guest cart
		if err := manager.Initialize(ctx); err != nil {
			return nil, err
		}
		e := &entry{manager: manager, lastSeen: r.now()}
		r.mu.Lock()
		r.entries[profileID] = e
		r.mu.Unlock()
		r.logg.Debug(r.logg.WithGuestID(ctx, profileID), "cart session created")
		return e, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*entry), nil
}

func (r *Registry) reconcile(ctx context.Context, manager *cart.Manager, identity *auth.Identity) error {
	current := manager.Identity()
	switch {
	case identity == nil && current != nil:
		return manager.Logout(ctx)
	case identity != nil && (current == nil || current.Token != identity.Token):
		return manager.Login(ctx, identity)
	}
	return nil
}

func (r *Registry) markExpired(profileID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entries[profileID]; ok {
		e.expired = true
	}
}

func (r *Registry) consumeExpired(profileID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[profileID]
	if !ok || !e.expired {
		return false
	}
	e.expired = false
	return true
}

// Forget drops the visitor's manager. The guest store keeps the device cart.
func (r *Registry) Forget(profileID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, profileID)
}

// Len is the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Sweep evicts sessions idle for longer than the idle TTL and returns how
// many were dropped.
func (r *Registry) Sweep(ctx context.Context) int {
	if r.idleTTL <= 0 {
		return 0
	}
	cutoff := r.now().Add(-r.idleTTL)
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for id, e := range r.entries {
		if e.lastSeen.Before(cutoff) {
			delete(r.entries, id)
			n++
		}
	}
	if n > 0 {
		r.logg.Info(r.logg.WithField(ctx, "evicted", n), "idle cart sessions evicted")
	}
	return n
}
