package backend

import (
	"reflect"
	"strings"

	pkgerrors "github.com/0x360x36/miauhome.cl/pkg/errors"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// Variation is a purchasable variant of a product as served by the backend.
type Variation struct {
	ID            int64   `json:"id" validate:"required"`
	ProductID     int64   `json:"product_id"`
	Name          string  `json:"name"`
	VariationType *string `json:"variation_type,omitempty" validate:"omitempty,oneof=color size material"`
	Price         *int64  `json:"price,omitempty" validate:"omitempty,gte=0"`
	Stock         int     `json:"stock"`
}

// ProductImage is an additional gallery image.
type ProductImage struct {
	ID       int64  `json:"id"`
	ImageURL string `json:"image_url"`
}

// Product is the catalog entry embedded in cart lines and product reads.
type Product struct {
	ID          int64          `json:"id" validate:"required"`
	Name        string         `json:"name" validate:"required"`
	Description string         `json:"description"`
	Price       int64          `json:"price" validate:"gte=0"`
	ImageURL    string         `json:"image_url"`
	Category    string         `json:"category"`
	Stock       int            `json:"stock"`
	IsActive    *bool          `json:"is_active,omitempty"`
	Variations  []Variation    `json:"variations,omitempty" validate:"dive"`
	Images      []ProductImage `json:"images,omitempty"`
}

// CartItem is one server-side cart line.
type CartItem struct {
	ID          int64      `json:"id" validate:"required"`
	ProductID   int64      `json:"product_id" validate:"required"`
	VariationID *int64     `json:"variation_id,omitempty"`
	Quantity    int        `json:"quantity" validate:"gte=1"`
	Product     Product    `json:"product"`
	Variation   *Variation `json:"variation,omitempty"`
}

// Cart is the authoritative cart returned by every cart endpoint.
type Cart struct {
	ID    int64      `json:"id"`
	Items []CartItem `json:"items" validate:"dive"`
}

// AddItemRequest is the body of POST /cart/items.
type AddItemRequest struct {
	ProductID   int64  `json:"product_id"`
	VariationID *int64 `json:"variation_id,omitempty"`
	Quantity    int    `json:"quantity"`
}

// CheckoutRequest is the body of POST /checkout.
type CheckoutRequest struct {
	TotalAmount  int64   `json:"total_amount"`
	GuestEmail   *string `json:"guest_email,omitempty"`
	GuestAddress *string `json:"guest_address,omitempty"`
}

// CheckoutSession is the payment redirect target.
type CheckoutSession struct {
	URL   string `json:"url" validate:"required,url"`
	Token string `json:"token" validate:"required"`
}

// Confirmation is the payment provider verdict relayed by the backend.
type Confirmation struct {
	Status       string          `json:"status" validate:"required"`
	BuyOrder     string          `json:"buy_order"`
	Amount       decimal.Decimal `json:"amount"`
	VCI          string          `json:"vci,omitempty"`
	ResponseCode *int            `json:"response_code,omitempty"`
}

var schema = newSchemaValidator()

func newSchemaValidator() *validator.Validate {
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

func validatePayload(what string, payload any) error {
	if err := schema.Struct(payload); err != nil {
		details := map[string]string{}
		if errs, ok := err.(validator.ValidationErrors); ok {
			for _, fe := range errs {
				details[fe.Namespace()] = fe.Tag()
			}
		}
		return pkgerrors.Wrap(pkgerrors.CodeParse, err, what+" payload failed schema validation").WithDetails(details)
	}
	return nil
}
