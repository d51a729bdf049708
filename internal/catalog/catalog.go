// Package catalog holds the product reference data a cart line points at.
package catalog

import (
	"github.com/0x360x36/miauhome.cl/pkg/backend"
)

// Variation is a concrete option of a product (color, size or material).
type Variation struct {
	ID        int64   `json:"id"`
	ProductID int64   `json:"product_id"`
	Name      string  `json:"name"`
	Type      *string `json:"variation_type,omitempty"`
	Price     *int64  `json:"price,omitempty" validate:"omitempty,gte=0"`
	Stock     int     `json:"stock"`
}

// Product is immutable from the cart's point of view.
type Product struct {
	ID          int64       `json:"id" validate:"required"`
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Price       int64       `json:"price" validate:"gte=0"`
	ImageURL    string      `json:"image_url"`
	Category    string      `json:"category"`
	Stock       int         `json:"stock"`
	Variations  []Variation `json:"variations,omitempty"`
}

// EffectivePrice is the unit price of a line: the variation's price when it has
// one, the product's base price otherwise.
func EffectivePrice(product Product, variation *Variation) int64 {
	if variation != nil && variation.Price != nil {
		return *variation.Price
	}
	return product.Price
}

// Variation looks up one of the product's variations by id.
func (p Product) Variation(id int64) (*Variation, bool) {
	for i := range p.Variations {
		if p.Variations[i].ID == id {
			v := p.Variations[i]
			return &v, true
		}
	}
	return nil, false
}

// FromBackend converts a backend product payload.
func FromBackend(p backend.Product) Product {
	product := Product{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Price:       p.Price,
		ImageURL:    p.ImageURL,
		Category:    p.Category,
		Stock:       p.Stock,
	}
	if len(p.Variations) > 0 {
		product.Variations = make([]Variation, 0, len(p.Variations))
		for _, v := range p.Variations {
			product.Variations = append(product.Variations, VariationFromBackend(v))
		}
	}
	return product
}

// VariationFromBackend converts a backend variation payload.
func VariationFromBackend(v backend.Variation) Variation {
	return Variation{
		ID:        v.ID,
		ProductID: v.ProductID,
		Name:      v.Name,
		Type:      v.VariationType,
		Price:     v.Price,
		Stock:     v.Stock,
	}
}
