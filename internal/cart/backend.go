package cart

import (
	"context"

	"github.com/0x360x36/miauhome.cl/internal/catalog"
)

// Mode names the persistence regime of a cart.
type Mode string

const (
	ModeGuest         Mode = "guest"
	ModeAuthenticated Mode = "authenticated"
)

// Backend is the persistence adapter behind a Manager. Every mutation returns
// the full resulting cart; callers adopt it verbatim.
type Backend interface {
	Mode() Mode
	Load(ctx context.Context) (Items, error)
	Add(ctx context.Context, current Items, product catalog.Product, variation *catalog.Variation, quantity int) (Items, error)
	Remove(ctx context.Context, current Items, productID int64, variationID *int64) (Items, error)
	Clear(ctx context.Context) error
}
