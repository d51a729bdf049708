package checkout

import (
	"context"
	"errors"
	"reflect"
	"strings"

	"github.com/0x360x36/miauhome.cl/internal/cart"
	"github.com/0x360x36/miauhome.cl/pkg/auth"
	"github.com/0x360x36/miauhome.cl/pkg/backend"
	pkgerrors "github.com/0x360x36/miauhome.cl/pkg/errors"
	"github.com/0x360x36/miauhome.cl/pkg/logger"
	"github.com/go-playground/validator/v10"
)

// StatusAuthorized is the only confirmation status that completes an order.
const StatusAuthorized = "AUTHORIZED"

// Contact is required from guests so the order can be delivered.
type Contact struct {
	Email   string `json:"email" validate:"required,email"`
	Address string `json:"address" validate:"required,max=300"`
}

// OrderSummary describes a confirmed payment.
type OrderSummary struct {
	Status       string `json:"status"`
	BuyOrder     string `json:"buy_order"`
	Amount       int64  `json:"amount"`
	VCI          string `json:"vci,omitempty"`
	ResponseCode *int   `json:"response_code,omitempty"`
}

// Gateway is the part of the store backend that runs payments.
type Gateway interface {
	BeginCheckout(ctx context.Context, token string, req backend.CheckoutRequest) (*backend.CheckoutSession, error)
	ConfirmCheckout(ctx context.Context, paymentToken string) (*backend.Confirmation, error)
}

// Cart is what checkout needs from a cart session.
type Cart interface {
	Items() cart.Items
	Identity() *auth.Identity
	Clear(ctx context.Context) error
}

// Observer receives checkout stage outcomes.
type Observer interface {
	ObserveCheckout(stage string, err error)
}

type Service struct {
	gateway  Gateway
	guard    AttemptGuard
	observer Observer
	logg     *logger.Logger
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		tag := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if tag == "" {
			return f.Name
		}
		return tag
	})
	return v
}

func NewService(gateway Gateway, guard AttemptGuard, observer Observer, logg *logger.Logger) (*Service, error) {
	if gateway == nil {
		return nil, errors.New("checkout gateway is required")
	}
	if guard == nil {
		guard = NewMemoryGuard(0)
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &Service{gateway: gateway, guard: guard, observer: observer, logg: logg}, nil
}

// Begin opens a payment session for the current cart. The cart is never
// modified here.
func (s *Service) Begin(ctx context.Context, c Cart, contact *Contact) (redirect *Redirect, err error) {
	defer func() { s.observe("begin", err) }()

	items := c.Items()
	if len(items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
	}

	req := backend.CheckoutRequest{TotalAmount: items.Total()}
	token := ""
	if identity := c.Identity(); identity != nil {
		token = identity.Token
	} else {
		if contact == nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "email and shipping address are required").
				WithDetails(map[string]string{"email": "is required", "address": "is required"})
		}
		normalized := Contact{Email: strings.TrimSpace(contact.Email), Address: strings.TrimSpace(contact.Address)}
		if err := validate.Struct(normalized); err != nil {
			return nil, contactError(err)
		}
		req.GuestEmail = &normalized.Email
		req.GuestAddress = &normalized.Address
	}

	session, err := s.gateway.BeginCheckout(ctx, token, req)
	if err != nil {
		return nil, err
	}
	s.logg.Info(s.logg.WithField(ctx, "total_amount", req.TotalAmount), "checkout session opened")
	return &Redirect{URL: session.URL, Token: session.Token}, nil
}

// Confirm settles a payment token. On AUTHORIZED the cart is cleared; every
// other verdict leaves it untouched.
func (s *Service) Confirm(ctx context.Context, c Cart, paymentToken string) (summary *OrderSummary, err error) {
	defer func() { s.observe("confirm", err) }()

	paymentToken = strings.TrimSpace(paymentToken)
	if paymentToken == "" {
		return nil, pkgerrors.New(pkgerrors.CodePayment, "payment token missing, the payment was cancelled or not completed")
	}

	confirmation, err := s.gateway.ConfirmCheckout(ctx, paymentToken)
	if err != nil {
		return nil, err
	}
	summary = &OrderSummary{
		Status:       confirmation.Status,
		BuyOrder:     confirmation.BuyOrder,
		Amount:       confirmation.Amount.IntPart(),
		VCI:          confirmation.VCI,
		ResponseCode: confirmation.ResponseCode,
	}
	ctx = s.logg.WithFields(ctx, map[string]any{"buy_order": summary.BuyOrder, "payment_status": summary.Status})

	first, err := s.guard.Claim(ctx, paymentToken, summary.Status)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "record payment attempt")
	}
	if !first {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "payment already processed")
	}

	if summary.Status != StatusAuthorized {
		s.logg.Warn(ctx, "payment not authorized")
		return nil, pkgerrors.New(pkgerrors.CodePayment, "payment was rejected").
			WithDetails(map[string]any{"status": summary.Status, "buy_order": summary.BuyOrder})
	}

	if err := c.Clear(ctx); err != nil {
		s.logg.Error(ctx, "clearing cart after payment failed", err)
	}
	s.logg.Info(ctx, "payment authorized")
	return summary, nil
}

func (s *Service) observe(stage string, err error) {
	if s.observer != nil {
		s.observer.ObserveCheckout(stage, err)
	}
}

func contactError(err error) error {
	details := map[string]string{}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		for _, fe := range verrs {
			switch fe.Tag() {
			case "required":
				details[fe.Field()] = "is required"
			case "email":
				details[fe.Field()] = "must be a valid email"
			default:
				details[fe.Field()] = "is invalid"
			}
		}
	}
	return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid contact information").WithDetails(details)
}
