package models

import (
	"github.com/shopspring/decimal"
)

// Cart 代表購物車，Total 永遠由 Items 計算而來
type Cart struct {
	Items []CartLineItem `json:"items"`
	Total float64        `json:"total"`
}

// CartLineItem 代表購物車中的單個商品項目
type CartLineItem struct {
	ID       string  `json:"id"`
	Model    string  `json:"model"`
	Price    float64 `json:"price"`
	Quantity int     `json:"quantity"`
}

func NewCart() *Cart {
	return &Cart{Items: []CartLineItem{}}
}

func (ci CartLineItem) Subtotal() decimal.Decimal {
	return decimal.NewFromFloat(ci.Price).Mul(decimal.NewFromInt(int64(ci.Quantity)))
}

// Recalculate sets Total to the sum of price × quantity over Items.
func (c *Cart) Recalculate() {
	total := decimal.Zero
	for _, item := range c.Items {
		total = total.Add(item.Subtotal())
	}
	c.Total, _ = total.Float64()
}

func (c *Cart) IndexOf(productID string) int {
	for i := range c.Items {
		if c.Items[i].ID == productID {
			return i
		}
	}
	return -1
}

// ItemCount 回傳所有項目數量的總和，而不是項目筆數
func (c *Cart) ItemCount() int {
	count := 0
	for _, item := range c.Items {
		count += item.Quantity
	}
	return count
}

func (c *Cart) Empty() bool {
	return len(c.Items) == 0
}
