package cart

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"

	"github.com/0x360x36/miauhome.cl/internal/catalog"
	pkgerrors "github.com/0x360x36/miauhome.cl/pkg/errors"
	"github.com/0x360x36/miauhome.cl/pkg/guest"
	"github.com/0x360x36/miauhome.cl/pkg/logger"
)

type guestPayload struct {
	Items Items `json:"items"`
}

// GuestBackend keeps the cart of an anonymous profile in a device-local store.
type GuestBackend struct {
	store     guest.Store
	profileID string
	logg      *logger.Logger
	newID     func() ItemID
}

// NewGuestBackend binds a store to one guest profile.
func NewGuestBackend(store guest.Store, profileID string, logg *logger.Logger) (*GuestBackend, error) {
	if store == nil {
		return nil, errors.New("guest store is required")
	}
	if err := guest.ValidateProfileID(profileID); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid guest profile")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &GuestBackend{store: store, profileID: profileID, logg: logg, newID: NewLocalItemID}, nil
}

func (b *GuestBackend) Mode() Mode { return ModeGuest }

// Load never fails: a missing, unreadable or corrupt entry is an empty cart.
func (b *GuestBackend) Load(ctx context.Context) (Items, error) {
	ctx = b.logg.WithGuestID(ctx, b.profileID)
	data, err := b.store.Load(ctx, b.profileID)
	if errors.Is(err, guest.ErrNotFound) {
		return Items{}, nil
	}
	if err != nil {
		b.logg.Error(ctx, "guest cart read failed, starting empty", err)
		return Items{}, nil
	}
	items, err := decodeGuestItems(data)
	if err != nil {
		b.logg.Warn(b.logg.WithField(ctx, "error", err.Error()), "guest cart payload corrupt, starting empty")
		return Items{}, nil
	}
	return items, nil
}

func (b *GuestBackend) Add(ctx context.Context, current Items, product catalog.Product, variation *catalog.Variation, quantity int) (Items, error) {
	next := current.Merge(product, variation, quantity, b.newID)
	if err := b.persist(ctx, next); err != nil {
		return nil, err
	}
	return next, nil
}

func (b *GuestBackend) Remove(ctx context.Context, current Items, productID int64, variationID *int64) (Items, error) {
	next := current.Without(productID, variationID)
	if err := b.persist(ctx, next); err != nil {
		return nil, err
	}
	return next, nil
}

func (b *GuestBackend) Clear(ctx context.Context) error {
	if err := b.store.Delete(ctx, b.profileID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "delete guest cart")
	}
	return nil
}

func (b *GuestBackend) persist(ctx context.Context, items Items) error {
	if items == nil {
		items = Items{}
	}
	data, err := json.Marshal(guestPayload{Items: items})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode guest cart")
	}
	if err := b.store.Save(ctx, b.profileID, data); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "save guest cart")
	}
	return nil
}

// decodeGuestItems accepts the {"items": [...]} envelope and the bare array
// written by the browser storefront.
func decodeGuestItems(data []byte) (Items, error) {
	data = bytes.TrimSpace(data)
	var items Items
	if len(data) > 0 && data[0] == '[' {
		if err := json.Unmarshal(data, &items); err != nil {
			return nil, err
		}
	} else {
		var payload guestPayload
		if err := json.Unmarshal(data, &payload); err != nil {
			return nil, err
		}
		items = payload.Items
	}

	out := make(Items, 0, len(items))
	for _, item := range items {
		if item.Quantity <= 0 || item.Product.ID <= 0 || item.Product.Price < 0 {
			continue
		}
		if item.Variation != nil && item.Variation.Price != nil && *item.Variation.Price < 0 {
			continue
		}
		if item.ProductID == 0 {
			item.ProductID = item.Product.ID
		}
		if item.Variation != nil && item.VariationID == nil {
			id := item.Variation.ID
			item.VariationID = &id
		}
		if item.ID == "" {
			item.ID = NewLocalItemID()
		}
		out = append(out, item)
	}
	return out, nil
}
