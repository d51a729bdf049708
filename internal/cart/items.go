package cart

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/0x360x36/miauhome.cl/internal/catalog"
	"github.com/google/uuid"
)

// ItemID identifies a line: the server's integer id in authenticated mode or a
// locally generated "local-<uuid>" in guest mode.
type ItemID string

// NewLocalItemID returns a fresh guest line id.
func NewLocalItemID() ItemID {
	return ItemID("local-" + uuid.NewString())
}

func ServerItemID(id int64) ItemID {
	return ItemID(strconv.FormatInt(id, 10))
}

func (id ItemID) MarshalJSON() ([]byte, error) {
	if n, err := strconv.ParseInt(string(id), 10, 64); err == nil {
		return []byte(strconv.FormatInt(n, 10)), nil
	}
	return json.Marshal(string(id))
}

func (id *ItemID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ItemID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("item id must be a number or string: %w", err)
	}
	if _, err := n.Int64(); err != nil {
		return fmt.Errorf("item id must be an integer: %w", err)
	}
	*id = ItemID(n.String())
	return nil
}

// LineItem is one product (or product variation) in the cart.
type LineItem struct {
	ID          ItemID             `json:"id"`
	ProductID   int64              `json:"product_id"`
	VariationID *int64             `json:"variation_id,omitempty"`
	Quantity    int                `json:"quantity"`
	Product     catalog.Product    `json:"product"`
	Variation   *catalog.Variation `json:"variation,omitempty"`
}

// UnitPrice is the effective price of one unit of the line.
func (l LineItem) UnitPrice() int64 {
	return catalog.EffectivePrice(l.Product, l.Variation)
}

// Subtotal is UnitPrice times Quantity.
func (l LineItem) Subtotal() int64 {
	return l.UnitPrice() * int64(l.Quantity)
}

func (l LineItem) variationKey() *int64 {
	if l.Variation != nil {
		id := l.Variation.ID
		return &id
	}
	return l.VariationID
}

// Matches reports whether the line is the (product, variation) pair given.
func (l LineItem) Matches(productID int64, variationID *int64) bool {
	if l.productKey() != productID {
		return false
	}
	own := l.variationKey()
	if own == nil || variationID == nil {
		return own == nil && variationID == nil
	}
	return *own == *variationID
}

func (l LineItem) productKey() int64 {
	if l.Product.ID != 0 {
		return l.Product.ID
	}
	return l.ProductID
}

// Items is the ordered line collection.
type Items []LineItem

// Total sums price times quantity over every line.
func (items Items) Total() int64 {
	var total int64
	for _, item := range items {
		total += item.Subtotal()
	}
	return total
}

// Count is the number of units across all lines.
func (items Items) Count() int {
	n := 0
	for _, item := range items {
		n += item.Quantity
	}
	return n
}

// Index returns the position of the matching line or -1.
func (items Items) Index(productID int64, variationID *int64) int {
	for i, item := range items {
		if item.Matches(productID, variationID) {
			return i
		}
	}
	return -1
}

// Clone copies the slice and the per-line pointers.
func (items Items) Clone() Items {
	if items == nil {
		return Items{}
	}
	out := make(Items, len(items))
	for i, item := range items {
		if item.VariationID != nil {
			v := *item.VariationID
			item.VariationID = &v
		}
		if item.Variation != nil {
			v := *item.Variation
			item.Variation = &v
		}
		out[i] = item
	}
	return out
}

// Merge adds quantity of the pair, bumping an existing line or appending a new
// one with the id produced by newID. The receiver is not modified.
func (items Items) Merge(product catalog.Product, variation *catalog.Variation, quantity int, newID func() ItemID) Items {
	var variationID *int64
	if variation != nil {
		id := variation.ID
		variationID = &id
	}
	out := items.Clone()
	if idx := out.Index(product.ID, variationID); idx >= 0 {
		out[idx].Quantity += quantity
		return out
	}
	line := LineItem{
		ID:          newID(),
		ProductID:   product.ID,
		VariationID: variationID,
		Quantity:    quantity,
		Product:     product,
	}
	if variation != nil {
		v := *variation
		line.Variation = &v
	}
	return append(out, line)
}

// Without drops the matching line. The receiver is not modified.
func (items Items) Without(productID int64, variationID *int64) Items {
	out := make(Items, 0, len(items))
	for _, item := range items.Clone() {
		if item.Matches(productID, variationID) {
			continue
		}
		out = append(out, item)
	}
	return out
}

// State is the coarse state of a cart.
type State string

const (
	StateEmpty     State = "empty"
	StatePopulated State = "populated"
)

// Snapshot is the read model handed to presentation code.
type Snapshot struct {
	Items         Items `json:"items"`
	Total         int64 `json:"total"`
	Count         int   `json:"count"`
	State         State `json:"state"`
	Mode          Mode  `json:"mode"`
	Authenticated bool  `json:"authenticated"`
}

func stateOf(items Items) State {
	if len(items) == 0 {
		return StateEmpty
	}
	return StatePopulated
}
