package cart

import (
	"context"
	"errors"

	"github.com/0x360x36/miauhome.cl/internal/catalog"
	"github.com/0x360x36/miauhome.cl/pkg/auth"
	"github.com/0x360x36/miauhome.cl/pkg/backend"
	pkgerrors "github.com/0x360x36/miauhome.cl/pkg/errors"
)

// RemoteClient is the subset of the store backend used for authenticated carts.
type RemoteClient interface {
	LoadCart(ctx context.Context, token string) (*backend.Cart, error)
	AddItem(ctx context.Context, token string, req backend.AddItemRequest) (*backend.Cart, error)
	RemoveItem(ctx context.Context, token string, productID int64, variationID *int64) (*backend.Cart, error)
}

// RemoteBackend persists the cart on the store backend under a bearer identity.
type RemoteBackend struct {
	client   RemoteClient
	identity *auth.Identity
}

func NewRemoteBackend(client RemoteClient, identity *auth.Identity) (*RemoteBackend, error) {
	if client == nil {
		return nil, errors.New("remote cart client is required")
	}
	if identity == nil || identity.Token == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "authenticated cart requires a bearer token")
	}
	return &RemoteBackend{client: client, identity: identity}, nil
}

func (b *RemoteBackend) Mode() Mode { return ModeAuthenticated }

func (b *RemoteBackend) Load(ctx context.Context) (Items, error) {
	cart, err := b.client.LoadCart(ctx, b.identity.Token)
	if err != nil {
		return nil, err
	}
	return fromRemote(cart), nil
}

func (b *RemoteBackend) Add(ctx context.Context, _ Items, product catalog.Product, variation *catalog.Variation, quantity int) (Items, error) {
	req := backend.AddItemRequest{ProductID: product.ID, Quantity: quantity}
	if variation != nil {
		id := variation.ID
		req.VariationID = &id
	}
	cart, err := b.client.AddItem(ctx, b.identity.Token, req)
	if err != nil {
		return nil, err
	}
	return fromRemote(cart), nil
}

// Remove treats a server "not found" as already removed and reloads.
func (b *RemoteBackend) Remove(ctx context.Context, _ Items, productID int64, variationID *int64) (Items, error) {
	cart, err := b.client.RemoveItem(ctx, b.identity.Token, productID, variationID)
	if pkgerrors.HasCode(err, pkgerrors.CodeNotFound) {
		return b.Load(ctx)
	}
	if err != nil {
		return nil, err
	}
	return fromRemote(cart), nil
}

// Clear only concerns device-local state; the server cart is emptied by the
// backend itself once an order is paid.
func (b *RemoteBackend) Clear(context.Context) error {
	return nil
}

func fromRemote(cart *backend.Cart) Items {
	items := Items{}
	if cart == nil {
		return items
	}
	for _, remote := range cart.Items {
		line := LineItem{
			ID:          ServerItemID(remote.ID),
			ProductID:   remote.ProductID,
			VariationID: remote.VariationID,
			Quantity:    remote.Quantity,
			Product:     catalog.FromBackend(remote.Product),
		}
		if line.Product.ID == 0 {
			line.Product.ID = remote.ProductID
		}
		if remote.Variation != nil {
			v := catalog.VariationFromBackend(*remote.Variation)
			line.Variation = &v
		}
		items = append(items, line)
	}
	return items
}
