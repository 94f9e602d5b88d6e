package models

import (
	"net/mail"
	"sort"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v79"

	"gofalre.io/bulls/models/enum"
)

// OrderCurrency 商店只以捷克克朗計價
const OrderCurrency = stripe.CurrencyCZK

// OrderRequest 代表訂單表單的客戶資料
type OrderRequest struct {
	FullName string `json:"fullName"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Address  string `json:"address"`
	City     string `json:"city"`
	ZipCode  string `json:"zipCode"`
	Country  string `json:"country"`
	Notes    string `json:"notes,omitempty"`
}

// Order 代表訂單
type Order struct {
	ID         string           `json:"id"`
	FullName   string           `json:"fullName"`
	Email      string           `json:"email"`
	Phone      string           `json:"phone"`
	Address    string           `json:"address"`
	City       string           `json:"city"`
	ZipCode    string           `json:"zipCode"`
	Country    string           `json:"country"`
	Notes      string           `json:"notes,omitempty"`
	Items      []CartLineItem   `json:"items"`
	TotalPrice float64          `json:"totalPrice"`
	Currency   stripe.Currency  `json:"currency"`
	Status     enum.OrderStatus `json:"status"`
	CreatedBy  string           `json:"createdBy"`
	CreatedAt  time.Time        `json:"createdAt"`
	UpdatedAt  time.Time        `json:"updatedAt"`
}

func (r *OrderRequest) Normalize() {
	r.FullName = strings.TrimSpace(r.FullName)
	r.Email = strings.TrimSpace(r.Email)
	r.Phone = strings.TrimSpace(r.Phone)
	r.Address = strings.TrimSpace(r.Address)
	r.City = strings.TrimSpace(r.City)
	r.ZipCode = strings.TrimSpace(r.ZipCode)
	r.Country = strings.TrimSpace(r.Country)
	r.Notes = strings.TrimSpace(r.Notes)
}

func (r *OrderRequest) Validate() error {
	required := []struct {
		field string
		value string
	}{
		{"fullName", r.FullName},
		{"email", r.Email},
		{"phone", r.Phone},
		{"address", r.Address},
		{"city", r.City},
		{"zipCode", r.ZipCode},
		{"country", r.Country},
	}
	for _, f := range required {
		if strings.TrimSpace(f.value) == "" {
			return NewValidationError(f.field, "is required")
		}
	}
	if _, err := mail.ParseAddress(r.Email); err != nil {
		return NewValidationError("email", "is not a valid email address")
	}
	return nil
}

// NewOrder 從表單與購物車建立待處理訂單
func NewOrder(req *OrderRequest, cart *Cart, createdBy string) *Order {
	if createdBy == "" {
		createdBy = "guest"
	}
	items := make([]CartLineItem, len(cart.Items))
	copy(items, cart.Items)

	return &Order{
		FullName:   req.FullName,
		Email:      req.Email,
		Phone:      req.Phone,
		Address:    req.Address,
		City:       req.City,
		ZipCode:    req.ZipCode,
		Country:    req.Country,
		Notes:      req.Notes,
		Items:      items,
		TotalPrice: cart.Total,
		Currency:   OrderCurrency,
		Status:     enum.OrderStatusPending,
		CreatedBy:  createdBy,
	}
}

// orderPatchFields 是後台可修改的訂單欄位，true 代表不可為空
var orderPatchFields = map[string]bool{
	"fullName": true,
	"email":    true,
	"phone":    true,
	"address":  true,
	"city":     true,
	"zipCode":  true,
	"country":  true,
	"notes":    false,
	"status":   true,
}

// NormalizeOrderPatch checks an operator's partial order update and returns
// the trimmed fields to store. Items, totals and bookkeeping fields cannot
// be patched.
func NormalizeOrderPatch(fields map[string]any) (map[string]any, error) {
	if len(fields) == 0 {
		return nil, NewValidationError("", "nothing to update")
	}

	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)

	patch := make(map[string]any, len(fields))
	for _, name := range names {
		required, ok := orderPatchFields[name]
		if !ok {
			return nil, NewValidationError(name, "cannot be updated")
		}
		value, ok := fields[name].(string)
		if !ok {
			return nil, NewValidationError(name, "must be a string")
		}
		value = strings.TrimSpace(value)
		if required && value == "" {
			return nil, NewValidationError(name, "is required")
		}

		switch name {
		case "email":
			if _, err := mail.ParseAddress(value); err != nil {
				return nil, NewValidationError("email", "is not a valid email address")
			}
		case "status":
			if !enum.OrderStatus(value).Valid() {
				return nil, NewValidationError("status", "unknown order status")
			}
		}
		patch[name] = value
	}
	return patch, nil
}
