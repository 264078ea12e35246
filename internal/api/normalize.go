package api

import (
	"encoding/json"
	"fmt"

	"github.com/roach88/caffinity/internal/money"
)

// The cart endpoint has returned three different payload shapes over
// the backend's lifetime:
//
//   - a wrapper object: {"cartItems": [...]} (sometimes {"items": [...]})
//   - a bare list: [...]
//
// and individual items appear either flat
// ({"id":1,"name":"Latte","price":"₱130.00","quantity":1}) or with
// the product nested ({"id":1,"product":{...},"quantity":1,"price":130}).
// Prices arrive as JSON numbers or currency-prefixed strings.
//
// NormalizeCart is the single boundary where all of that is collapsed
// into []CartItem. Nothing outside this file inspects raw cart JSON.

type rawCartWrapper struct {
	CartItems []rawCartItem `json:"cartItems"`
	Items     []rawCartItem `json:"items"`
}

type rawCartItem struct {
	ID        int64           `json:"id"`
	CartID    int64           `json:"cartItemId"`
	ProductID int64           `json:"productId"`
	Name      string          `json:"name"`
	Category  string          `json:"category"`
	ImageURL  string          `json:"imageUrl"`
	Price     json.RawMessage `json:"price"`
	UnitPrice json.RawMessage `json:"unitPrice"`
	Quantity  int             `json:"quantity"`
	Product   *rawProduct     `json:"product"`
}

type rawProduct struct {
	ID       int64           `json:"id"`
	Name     string          `json:"name"`
	Category string          `json:"category"`
	ImageURL string          `json:"imageUrl"`
	Price    json.RawMessage `json:"price"`
}

// NormalizeCart converts a raw cart payload into the canonical item
// list. Wrapper and bare-list payloads are accepted; item fields are
// resolved across the flat and nested variants.
func NormalizeCart(data []byte) ([]CartItem, error) {
	var raws []rawCartItem

	switch firstToken(data) {
	case '[':
		if err := json.Unmarshal(data, &raws); err != nil {
			return nil, fmt.Errorf("decode cart list: %w", err)
		}
	case '{':
		var w rawCartWrapper
		if err := json.Unmarshal(data, &w); err != nil {
			return nil, fmt.Errorf("decode cart wrapper: %w", err)
		}
		raws = w.CartItems
		if raws == nil {
			raws = w.Items
		}
	case 0:
		// Empty body: the clear endpoint acks with no content.
		return []CartItem{}, nil
	default:
		return nil, fmt.Errorf("decode cart: unexpected payload %q", truncate(data, 40))
	}

	items := make([]CartItem, 0, len(raws))
	for i, r := range raws {
		item, err := r.normalize()
		if err != nil {
			return nil, fmt.Errorf("cart item %d: %w", i, err)
		}
		items = append(items, item)
	}
	return items, nil
}

func (r rawCartItem) normalize() (CartItem, error) {
	item := CartItem{
		ID:        r.ID,
		ProductID: r.ProductID,
		Name:      r.Name,
		Category:  r.Category,
		ImageURL:  r.ImageURL,
		Quantity:  r.Quantity,
	}
	if item.ID == 0 {
		item.ID = r.CartID
	}

	priceRaw := r.UnitPrice
	if len(priceRaw) == 0 {
		priceRaw = r.Price
	}

	// Nested product wins for identity and snapshot fields the flat
	// form left blank.
	if p := r.Product; p != nil {
		if item.ProductID == 0 {
			item.ProductID = p.ID
		}
		if item.Name == "" {
			item.Name = p.Name
		}
		if item.Category == "" {
			item.Category = p.Category
		}
		if item.ImageURL == "" {
			item.ImageURL = p.ImageURL
		}
		if len(priceRaw) == 0 {
			priceRaw = p.Price
		}
	}

	price, err := money.ParseJSON(priceRaw)
	if err != nil {
		return CartItem{}, err
	}
	item.UnitPrice = price

	if item.ProductID == 0 {
		// Legacy flat rows carried the product id in "id".
		item.ProductID = r.ID
	}
	return item, nil
}

// firstToken returns the first non-whitespace byte of data, or 0 when
// the payload is empty.
func firstToken(data []byte) byte {
	for _, b := range data {
		switch b {
		case ' ', '\t', '\r', '\n':
			continue
		}
		return b
	}
	return 0
}

func truncate(data []byte, n int) string {
	if len(data) <= n {
		return string(data)
	}
	return string(data[:n]) + "..."
}
