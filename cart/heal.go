package cart

import (
	"bytes"
	"encoding/json"
	"math"
	"strings"

	"gofalre.io/bulls/models"
)

// UnknownProduct is shown for line items stored without a name.
const UnknownProduct = "Unknown Product"

// Heal rebuilds a cart from its persisted form without trusting any of it.
// Corrupt input yields an empty cart, bad prices read as 0, bad quantities
// as 1, and the stored total is ignored in favour of a recomputed one.
func Heal(raw []byte) *models.Cart {
	cart := models.NewCart()
	if len(bytes.TrimSpace(raw)) == 0 {
		return cart
	}

	var stored map[string]json.RawMessage
	if err := json.Unmarshal(raw, &stored); err != nil {
		return cart
	}
	var elems []json.RawMessage
	if err := json.Unmarshal(stored["items"], &elems); err != nil {
		return cart
	}

	for _, elem := range elems {
		item, ok := healItem(elem)
		if !ok {
			continue
		}
		// 同一商品只保留一筆，數量相加
		if i := cart.IndexOf(item.ID); i >= 0 {
			cart.Items[i].Quantity = addQuantity(cart.Items[i].Quantity, item.Quantity)
			continue
		}
		cart.Items = append(cart.Items, item)
	}

	cart.Recalculate()
	return cart
}

func healItem(elem json.RawMessage) (models.CartLineItem, bool) {
	var fields map[string]any
	dec := json.NewDecoder(bytes.NewReader(elem))
	dec.UseNumber()
	if err := dec.Decode(&fields); err != nil || fields == nil {
		return models.CartLineItem{}, false
	}

	var id string
	switch v := fields["id"].(type) {
	case string:
		id = v
	case json.Number:
		id = v.String()
	}
	if strings.TrimSpace(id) == "" {
		return models.CartLineItem{}, false
	}

	name, _ := fields["model"].(string)
	if strings.TrimSpace(name) == "" {
		name = UnknownProduct
	}

	return models.CartLineItem{
		ID:       id,
		Model:    name,
		Price:    unitPrice(fields["price"]),
		Quantity: models.ParseQuantity(fields["quantity"]),
	}, true
}

func unitPrice(v any) float64 {
	price := models.ParseNumber(v)
	if price < 0 {
		return 0
	}
	return price
}

func addQuantity(a, b int) int {
	if a > math.MaxInt32-b {
		return math.MaxInt32
	}
	return a + b
}
