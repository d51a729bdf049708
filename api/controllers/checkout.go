package controllers

import (
	"context"
	"net/http"
	"strings"

	"github.com/0x360x36/miauhome.cl/api/responses"
	"github.com/0x360x36/miauhome.cl/api/validators"
	"github.com/0x360x36/miauhome.cl/internal/checkout"
	pkgerrors "github.com/0x360x36/miauhome.cl/pkg/errors"
	"github.com/0x360x36/miauhome.cl/pkg/logger"
)

// CheckoutService opens and settles payment sessions for a cart.
type CheckoutService interface {
	Begin(ctx context.Context, c checkout.Cart, contact *checkout.Contact) (*checkout.Redirect, error)
	Confirm(ctx context.Context, c checkout.Cart, paymentToken string) (*checkout.OrderSummary, error)
}

type beginCheckoutRequest struct {
	Email   string `json:"email"`
	Address string `json:"address"`
}

// CheckoutBegin opens a payment session and answers with the auto-submitting
// form that hands the browser to the payment provider. Clients asking for JSON
// get the url and token instead.
func CheckoutBegin(sessions SessionResolver, svc CheckoutService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		var contact *checkout.Contact
		if r.ContentLength != 0 {
			var payload beginCheckoutRequest
			if err := validators.DecodeJSONBody(r, &payload); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			if payload.Email != "" || payload.Address != "" {
				contact = &checkout.Contact{Email: payload.Email, Address: payload.Address}
			}
		}

		sess, ok := resolveSession(w, r, sessions, logg)
		if !ok {
			return
		}
		redirect, err := svc.Begin(r.Context(), sess.Manager, contact)
		if err != nil {
			writeSessionError(w, r, sess, err, logg)
			return
		}
		if wantsJSON(r) {
			responses.WriteSuccess(w, redirect)
			return
		}
		redirect.ServeHTTP(w, r)
	}
}

// CheckoutResult settles the token the payment provider returned with.
func CheckoutResult(sessions SessionResolver, svc CheckoutService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}
		sess, ok := resolveSession(w, r, sessions, logg)
		if !ok {
			return
		}
		token := strings.TrimSpace(r.URL.Query().Get("token_ws"))
		summary, err := svc.Confirm(r.Context(), sess.Manager, token)
		if err != nil {
			writeSessionError(w, r, sess, err, logg)
			return
		}
		responses.WriteSuccess(w, summary)
	}
}

func wantsJSON(r *http.Request) bool {
	accept := r.Header.Get("Accept")
	return strings.Contains(accept, "application/json") && !strings.Contains(accept, "text/html")
}
