package backend

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	pkgerrors "github.com/0x360x36/miauhome.cl/pkg/errors"
)

// BeginCheckout opens a payment session. The bearer token is optional.
func (c *Client) BeginCheckout(ctx context.Context, token string, req CheckoutRequest) (*CheckoutSession, error) {
	resp, err := c.do(ctx, request{
		endpoint: "begin_checkout",
		method:   http.MethodPost,
		path:     "/checkout",
		token:    token,
		payload:  req,
	})
	if err != nil {
		return nil, err
	}

	var session CheckoutSession
	if err := decode("begin_checkout", resp, &session); err != nil {
		return nil, err
	}
	if err := validatePayload("begin_checkout", &session); err != nil {
		return nil, err
	}
	return &session, nil
}

// ConfirmCheckout asks the backend for the verdict on a payment token.
func (c *Client) ConfirmCheckout(ctx context.Context, paymentToken string) (*Confirmation, error) {
	paymentToken = strings.TrimSpace(paymentToken)
	if paymentToken == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment token is required")
	}
	resp, err := c.do(ctx, request{
		endpoint: "confirm_checkout",
		method:   http.MethodGet,
		path:     "/checkout/confirm",
		query:    url.Values{"token_ws": []string{paymentToken}},
	})
	if err != nil {
		return nil, err
	}

	var confirmation Confirmation
	if err := decode("confirm_checkout", resp, &confirmation); err != nil {
		return nil, err
	}
	if err := validatePayload("confirm_checkout", &confirmation); err != nil {
		return nil, err
	}
	if !confirmation.Amount.IsInteger() || confirmation.Amount.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeParse, "confirm_checkout amount is not a whole non-negative number")
	}
	return &confirmation, nil
}
