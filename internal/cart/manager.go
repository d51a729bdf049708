package cart

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/0x360x36/miauhome.cl/internal/catalog"
	"github.com/0x360x36/miauhome.cl/pkg/auth"
	pkgerrors "github.com/0x360x36/miauhome.cl/pkg/errors"
	"github.com/0x360x36/miauhome.cl/pkg/logger"
)

// LoginPolicy decides what happens to the guest cart when a shopper signs in.
type LoginPolicy string

const (
	// LoginReplace adopts the server cart and leaves the guest cart untouched.
	LoginReplace LoginPolicy = "replace"
	// LoginMerge replays guest lines onto the server cart, then clears them.
	LoginMerge LoginPolicy = "merge"
)

// ParseLoginPolicy maps a configuration value onto a policy.
func ParseLoginPolicy(v string) (LoginPolicy, error) {
	switch LoginPolicy(v) {
	case LoginReplace, "":
		return LoginReplace, nil
	case LoginMerge:
		return LoginMerge, nil
	default:
		return "", fmt.Errorf("unknown login policy %q", v)
	}
}

const opLogin = "login"

// RemoteFactory builds the authenticated adapter for an identity.
type RemoteFactory func(identity *auth.Identity) (Backend, error)

// Observer receives one sample per cart operation.
type Observer interface {
	ObserveOperation(operation, mode string, err error)
}

// Options wires a Manager.
type Options struct {
	Guest          Backend
	Remote         RemoteFactory
	Identity       *auth.Identity
	Policy         LoginPolicy
	OnUnauthorized func(ctx context.Context)
	Observer       Observer
	Logger         *logger.Logger
}

// Manager owns the cart of one shopper and routes every operation to the
// persistence adapter matching the current identity.
type Manager struct {
	mu sync.Mutex

	guest          Backend
	remote         RemoteFactory
	active         Backend
	identity       *auth.Identity
	items          Items
	policy         LoginPolicy
	onUnauthorized func(ctx context.Context)
	observer       Observer
	logg           *logger.Logger
}

func NewManager(opts Options) (*Manager, error) {
	if opts.Guest == nil {
		return nil, errors.New("guest backend is required")
	}
	if opts.Remote == nil {
		return nil, errors.New("remote backend factory is required")
	}
	if opts.Policy == "" {
		opts.Policy = LoginReplace
	}
	if opts.Logger == nil {
		opts.Logger = logger.Nop()
	}
	m := &Manager{
		guest:          opts.Guest,
		remote:         opts.Remote,
		active:         opts.Guest,
		items:          Items{},
		policy:         opts.Policy,
		onUnauthorized: opts.OnUnauthorized,
		observer:       opts.Observer,
		logg:           opts.Logger,
	}
	if opts.Identity != nil {
		active, err := opts.Remote(opts.Identity)
		if err != nil {
			return nil, err
		}
		m.identity = opts.Identity
		m.active = active
	}
	return m, nil
}

// Initialize loads the cart of the current regime and adopts it verbatim.
func (m *Manager) Initialize(ctx context.Context) error {
	return m.run(ctx, "initialize", func(ctx context.Context) error {
		items, err := m.active.Load(ctx)
		if err != nil {
			return err
		}
		m.items = items
		return nil
	})
}

// AddItem adds quantity units of product (optionally a variation of it).
func (m *Manager) AddItem(ctx context.Context, product catalog.Product, variation *catalog.Variation, quantity int) error {
	return m.run(ctx, "add_item", func(ctx context.Context) error {
		if err := validateAdd(product, variation, quantity); err != nil {
			return err
		}
		items, err := m.active.Add(ctx, m.items.Clone(), product, variation, quantity)
		if err != nil {
			return err
		}
		m.items = items
		return nil
	})
}

// RemoveItem removes the whole line of the (product, variation) pair. Removing
// a line that is not in the cart succeeds without touching persistence.
func (m *Manager) RemoveItem(ctx context.Context, productID int64, variationID *int64) error {
	return m.run(ctx, "remove_item", func(ctx context.Context) error {
		if m.items.Index(productID, variationID) < 0 {
			return nil
		}
		items, err := m.active.Remove(ctx, m.items.Clone(), productID, variationID)
		if err != nil {
			return err
		}
		m.items = items
		return nil
	})
}

// Clear empties the in-memory cart and the guest store entry. The server cart
// is never touched.
func (m *Manager) Clear(ctx context.Context) error {
	return m.run(ctx, "clear", func(ctx context.Context) error {
		m.items = Items{}
		return m.guest.Clear(ctx)
	})
}

// Login switches to the authenticated regime according to the login policy.
// Identity, adapter and lines are committed only once the server cart has been
// read, so a failed login leaves the previous regime in place and the next
// request retries it.
func (m *Manager) Login(ctx context.Context, identity *auth.Identity) error {
	if identity == nil || identity.Token == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "identity is required")
	}
	return m.run(ctx, opLogin, func(ctx context.Context) error {
		remote, err := m.remote(identity)
		if err != nil {
			return err
		}

		var items Items
		if m.policy == LoginMerge {
			items, err = m.mergeGuestInto(ctx, remote)
		} else {
			items, err = remote.Load(ctx)
		}
		if err != nil {
			return err
		}
		m.identity = identity
		m.active = remote
		m.items = items
		return nil
	})
}

// mergeGuestInto replays the guest lines onto the server cart. Every line the
// server acknowledges is removed from the guest store right away, so a login
// retried after a partial failure only replays what is still pending.
func (m *Manager) mergeGuestInto(ctx context.Context, remote Backend) (Items, error) {
	pending, err := m.guest.Load(ctx)
	if err != nil {
		return nil, err
	}
	var items Items
	for len(pending) > 0 {
		line := pending[0]
		added, err := remote.Add(ctx, nil, line.Product, line.Variation, line.Quantity)
		if err != nil {
			m.logg.Warn(m.logg.WithFields(ctx, map[string]any{"product_id": line.productKey(), "pending_lines": len(pending)}), "merging guest line into server cart failed")
			m.adoptGuest(pending)
			return nil, err
		}
		items = added
		if pending, err = m.guest.Remove(ctx, pending, line.productKey(), line.variationKey()); err != nil {
			m.logg.Error(ctx, "trimming merged guest line failed", err)
			return nil, err
		}
	}
	if items == nil {
		if items, err = remote.Load(ctx); err != nil {
			return nil, err
		}
	}
	if err := m.guest.Clear(ctx); err != nil {
		m.logg.Error(ctx, "clearing merged guest cart failed", err)
	}
	return items, nil
}

// adoptGuest mirrors the guest store into memory while the guest regime is
// still the active one.
func (m *Manager) adoptGuest(items Items) {
	if m.identity == nil {
		m.items = items
	}
}

// Logout drops the identity and restores the device-local guest cart.
func (m *Manager) Logout(ctx context.Context) error {
	return m.run(ctx, "logout", func(ctx context.Context) error {
		return m.dropIdentity(ctx)
	})
}

func (m *Manager) dropIdentity(ctx context.Context) error {
	m.identity = nil
	m.active = m.guest
	items, err := m.guest.Load(ctx)
	if err != nil {
		m.items = Items{}
		return err
	}
	m.items = items
	return nil
}

// Total is the sum of price times quantity over the current lines.
func (m *Manager) Total() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.items.Total()
}

// Items returns a copy of the current lines.
func (m *Manager) Items() Items {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.items.Clone()
}

// Snapshot returns the read model of the cart.
func (m *Manager) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Snapshot{
		Items:         m.items.Clone(),
		Total:         m.items.Total(),
		Count:         m.items.Count(),
		State:         stateOf(m.items),
		Mode:          m.active.Mode(),
		Authenticated: m.identity != nil,
	}
}

func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return stateOf(m.items)
}

func (m *Manager) Authenticated() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.identity != nil
}

// Identity returns the current bearer identity, nil for guests.
func (m *Manager) Identity() *auth.Identity {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.identity == nil {
		return nil
	}
	id := *m.identity
	return &id
}

// run serializes fn with every other mutation, records the outcome and tears
// the session down when the backend rejects the credential.
func (m *Manager) run(ctx context.Context, operation string, fn func(ctx context.Context) error) error {
	m.mu.Lock()
	mode := m.active.Mode()
	ctx = m.logg.WithCartMode(ctx, string(mode))
	err := fn(ctx)
	expired := (m.identity != nil || operation == opLogin) && pkgerrors.HasCode(err, pkgerrors.CodeUnauthorized)
	if expired {
		m.logg.Warn(ctx, "store backend rejected credential, reverting to guest cart")
		if dropErr := m.dropIdentity(ctx); dropErr != nil {
			m.logg.Error(ctx, "restoring guest cart failed", dropErr)
		}
	}
	m.mu.Unlock()

	if m.observer != nil {
		m.observer.ObserveOperation(operation, string(mode), err)
	}
	if err != nil && !expired {
		m.logg.Warn(m.logg.WithFields(ctx, map[string]any{"operation": operation, "error": err.Error()}), "cart operation failed")
	}
	if expired && m.onUnauthorized != nil {
		m.onUnauthorized(ctx)
	}
	return err
}

func validateAdd(product catalog.Product, variation *catalog.Variation, quantity int) error {
	if quantity <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1").
			WithDetails(map[string]any{"quantity": quantity})
	}
	if err := validate.Struct(product); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid product")
	}
	if variation != nil {
		if err := validate.Struct(variation); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid variation")
		}
		if variation.ProductID != 0 && variation.ProductID != product.ID {
			return pkgerrors.New(pkgerrors.CodeValidation, "variation does not belong to product")
		}
	}
	return nil
}
