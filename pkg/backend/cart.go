package backend

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	pkgerrors "github.com/0x360x36/miauhome.cl/pkg/errors"
)

// LoadCart fetches the authenticated shopper's cart.
func (c *Client) LoadCart(ctx context.Context, token string) (*Cart, error) {
	resp, err := c.do(ctx, request{
		endpoint: "load_cart",
		method:   http.MethodGet,
		path:     "/cart",
		token:    token,
	})
	if err != nil {
		return nil, err
	}
	return decodeCart("load_cart", resp)
}

// AddItem adds quantity units of a product/variation and returns the updated cart.
func (c *Client) AddItem(ctx context.Context, token string, req AddItemRequest) (*Cart, error) {
	if req.ProductID <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	if req.Quantity <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}
	resp, err := c.do(ctx, request{
		endpoint: "add_item",
		method:   http.MethodPost,
		path:     "/cart/items",
		token:    token,
		payload:  req,
	})
	if err != nil {
		return nil, err
	}
	return decodeCart("add_item", resp)
}

// RemoveItem deletes the line for productID (and variationID when set).
func (c *Client) RemoveItem(ctx context.Context, token string, productID int64, variationID *int64) (*Cart, error) {
	var query url.Values
	if variationID != nil {
		query = url.Values{"variation_id": []string{strconv.FormatInt(*variationID, 10)}}
	}
	resp, err := c.do(ctx, request{
		endpoint: "remove_item",
		method:   http.MethodDelete,
		path:     fmt.Sprintf("/cart/items/%d", productID),
		query:    query,
		token:    token,
	})
	if err != nil {
		return nil, err
	}
	return decodeCart("remove_item", resp)
}

func decodeCart(what string, resp *rawResponse) (*Cart, error) {
	var cart Cart
	if err := decode(what, resp, &cart); err != nil {
		return nil, err
	}
	if err := validatePayload(what, &cart); err != nil {
		return nil, err
	}
	return &cart, nil
}
