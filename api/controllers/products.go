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

// CatalogReader lists and resolves products on the store backend.
type CatalogReader interface {
	ProductReader
	Products(ctx context.Context) ([]backend.Product, error)
}

func ProductsList(reader CatalogReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if reader == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog unavailable"))
			return
		}
		remote, err := reader.Products(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		products := make([]catalog.Product, 0, len(remote))
		for _, p := range remote {
			products = append(products, catalog.FromBackend(p))
		}
		responses.WriteSuccess(w, products)
	}
}

func ProductDetail(reader CatalogReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if reader == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog unavailable"))
			return
		}
		id, err := validators.ParseID(chi.URLParam(r, "productID"), "product_id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		remote, err := reader.Product(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, catalog.FromBackend(*remote))
	}
}
