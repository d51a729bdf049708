package controllers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/0x360x36/miauhome.cl/api/responses"
	"github.com/0x360x36/miauhome.cl/api/validators"
	"github.com/0x360x36/miauhome.cl/internal/catalog"
	"github.com/0x360x36/miauhome.cl/pkg/backend"
	pkgerrors "github.com/0x360x36/miauhome.cl/pkg/errors"
	"github.com/0x360x36/miauhome.cl/pkg/logger"
)

// ProductReader resolves catalog entries on the store backend.
type ProductReader interface {
	Product(ctx context.Context, id int64) (*backend.Product, error)
}

// CartGet returns the visitor's cart.
func CartGet(sessions SessionResolver, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := resolveSession(w, r, sessions, logg)
		if !ok {
			return
		}
		flagExpired(w, sess)
		responses.WriteSuccess(w, sess.Manager.Snapshot())
	}
}

type addItemRequest struct {
	ProductID   int64  `json:"product_id" validate:"required,gt=0"`
	VariationID *int64 `json:"variation_id,omitempty" validate:"omitempty,gt=0"`
	Quantity    *int   `json:"quantity,omitempty" validate:"omitempty,gte=1"`
}

// CartAddItem resolves the product (and variation) and adds it to the cart.
func CartAddItem(sessions SessionResolver, products ProductReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if products == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog unavailable"))
			return
		}

		var payload addItemRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		quantity := 1
		if payload.Quantity != nil {
			quantity = *payload.Quantity
		}

		sess, ok := resolveSession(w, r, sessions, logg)
		if !ok {
			return
		}

		remote, err := products.Product(r.Context(), payload.ProductID)
		if err != nil {
			writeSessionError(w, r, sess, err, logg)
			return
		}
		product := catalog.FromBackend(*remote)

		var variation *catalog.Variation
		if payload.VariationID != nil {
			v, found := product.Variation(*payload.VariationID)
			if !found {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Newf(pkgerrors.CodeNotFound, "variation %d not found for product %d", *payload.VariationID, product.ID))
				return
			}
			variation = v
		}

		if err := sess.Manager.AddItem(r.Context(), product, variation, quantity); err != nil {
			writeSessionError(w, r, sess, err, logg)
			return
		}
		responses.WriteSuccess(w, sess.Manager.Snapshot())
	}
}

// CartRemoveItem removes the line of a product (and optional variation).
func CartRemoveItem(sessions SessionResolver, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		productID, err := validators.ParseID(chi.URLParam(r, "productID"), "product_id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		variationID, err := validators.ParseOptionalQueryID(r, "variation_id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		sess, ok := resolveSession(w, r, sessions, logg)
		if !ok {
			return
		}
		if err := sess.Manager.RemoveItem(r.Context(), productID, variationID); err != nil {
			writeSessionError(w, r, sess, err, logg)
			return
		}
		responses.WriteSuccess(w, sess.Manager.Snapshot())
	}
}

// CartClear empties the cart held by the edge and the guest store entry.
func CartClear(sessions SessionResolver, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := resolveSession(w, r, sessions, logg)
		if !ok {
			return
		}
		if err := sess.Manager.Clear(r.Context()); err != nil {
			writeSessionError(w, r, sess, err, logg)
			return
		}
		responses.WriteSuccess(w, sess.Manager.Snapshot())
	}
}
