package backend

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	pkgerrors "github.com/0x360x36/miauhome.cl/pkg/errors"
)

// Product fetches a single catalog entry with its variations.
func (c *Client) Product(ctx context.Context, id int64) (*Product, error) {
	if id <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	resp, err := c.do(ctx, request{
		endpoint: "get_product",
		method:   http.MethodGet,
		path:     "/products/" + strconv.FormatInt(id, 10),
	})
	if err != nil {
		return nil, err
	}

	var product Product
	if err := decode("get_product", resp, &product); err != nil {
		return nil, err
	}
	if err := validatePayload("get_product", &product); err != nil {
		return nil, err
	}
	return &product, nil
}

// Products lists the active catalog.
func (c *Client) Products(ctx context.Context) ([]Product, error) {
	resp, err := c.do(ctx, request{
		endpoint: "list_products",
		method:   http.MethodGet,
		path:     "/products",
	})
	if err != nil {
		return nil, err
	}

	var products []Product
	if err := decode("list_products", resp, &products); err != nil {
		return nil, err
	}
	for i := range products {
		if err := validatePayload(fmt.Sprintf("list_products[%d]", i), &products[i]); err != nil {
			return nil, err
		}
	}
	return products, nil
}
