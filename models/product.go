package models

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"gofalre.io/bulls/models/enum"
)

// FieldKind 描述商品欄位的型別，用於編輯時的轉換與排序
type FieldKind int

const (
	FieldText FieldKind = iota
	FieldNumber
	FieldCategory
)

// ProductFields lists the editable product fields and their kinds.
var ProductFields = map[string]FieldKind{
	"model":         FieldText,
	"category":      FieldCategory,
	"price":         FieldNumber,
	"discountPrice": FieldNumber,
	"actionPrice":   FieldNumber,
	"discount":      FieldNumber,
	"action":        FieldNumber,
	"battery":       FieldText,
	"motor":         FieldText,
	"range":         FieldText,
	"weight":        FieldNumber,
	"code":          FieldText,
	"quantity":      FieldNumber,
	"description":   FieldText,
	"imageUrl":      FieldText,
}

// Product 代表遠端商品文件。未知欄位保留在 Extra 中，寫回時不會遺失。
type Product struct {
	ID            string
	Model         string
	Category      enum.ProductCategory
	Price         Number
	DiscountPrice Number
	ActionPrice   Number
	Discount      Number
	Action        Number
	Battery       string
	Motor         string
	Range         string
	Weight        Number
	Code          string
	Quantity      Number
	Description   string
	ImageURL      string
	CreatedAt     *time.Time
	UpdatedAt     *time.Time
	Extra         map[string]any
}

// ProductDraft 是新增商品表單的內容
type ProductDraft struct {
	Model         string               `json:"model"`
	Category      enum.ProductCategory `json:"category"`
	Price         Number               `json:"price"`
	DiscountPrice Number               `json:"discountPrice"`
	ActionPrice   Number               `json:"actionPrice"`
	Discount      Number               `json:"discount"`
	Action        Number               `json:"action"`
	Battery       string               `json:"battery"`
	Motor         string               `json:"motor"`
	Code          string               `json:"code"`
}

func (d *ProductDraft) Validate() error {
	if strings.TrimSpace(d.Model) == "" {
		return NewValidationError("model", "Product model is required")
	}
	if !d.Category.Valid() {
		return NewValidationError("category", fmt.Sprintf("unknown category %q", d.Category))
	}
	return nil
}

func (d *ProductDraft) Product() *Product {
	return &Product{
		Model:         strings.TrimSpace(d.Model),
		Category:      d.Category,
		Price:         d.Price,
		DiscountPrice: d.DiscountPrice,
		ActionPrice:   d.ActionPrice,
		Discount:      d.Discount,
		Action:        d.Action,
		Battery:       d.Battery,
		Motor:         d.Motor,
		Code:          d.Code,
	}
}

// Get returns the value of a product field by its document name.
// Unknown fields are looked up in Extra.
func (p *Product) Get(field string) (any, bool) {
	switch field {
	case "id":
		return p.ID, true
	case "model":
		return p.Model, true
	case "category":
		return string(p.Category), true
	case "price":
		return float64(p.Price), true
	case "discountPrice":
		return float64(p.DiscountPrice), true
	case "actionPrice":
		return float64(p.ActionPrice), true
	case "discount":
		return float64(p.Discount), true
	case "action":
		return float64(p.Action), true
	case "battery":
		return p.Battery, true
	case "motor":
		return p.Motor, true
	case "range":
		return p.Range, true
	case "weight":
		return float64(p.Weight), true
	case "code":
		return p.Code, true
	case "quantity":
		return float64(p.Quantity), true
	case "description":
		return p.Description, true
	case "imageUrl":
		return p.ImageURL, true
	}
	v, ok := p.Extra[field]
	return v, ok
}

// Set assigns a field, coercing the value to the field's kind.
func (p *Product) Set(field string, v any) {
	switch field {
	case "id":
		p.ID = text(v)
	case "model":
		p.Model = text(v)
	case "category":
		p.Category = enum.ProductCategory(text(v))
	case "price":
		p.Price = Number(ParseNumber(v))
	case "discountPrice":
		p.DiscountPrice = Number(ParseNumber(v))
	case "actionPrice":
		p.ActionPrice = Number(ParseNumber(v))
	case "discount":
		p.Discount = Number(ParseNumber(v))
	case "action":
		p.Action = Number(ParseNumber(v))
	case "battery":
		p.Battery = text(v)
	case "motor":
		p.Motor = text(v)
	case "range":
		p.Range = text(v)
	case "weight":
		p.Weight = Number(ParseNumber(v))
	case "code":
		p.Code = text(v)
	case "quantity":
		p.Quantity = Number(ParseNumber(v))
	case "description":
		p.Description = text(v)
	case "imageUrl":
		p.ImageURL = text(v)
	case "createdAt":
		p.CreatedAt = timestamp(v)
	case "updatedAt":
		p.UpdatedAt = timestamp(v)
	default:
		if p.Extra == nil {
			p.Extra = make(map[string]any)
		}
		p.Extra[field] = v
	}
}

// Apply merges a partial field patch into the product.
func (p *Product) Apply(patch map[string]any) {
	for field, v := range patch {
		p.Set(field, v)
	}
}

func (p *Product) Clone() *Product {
	c := *p
	if p.Extra != nil {
		c.Extra = make(map[string]any, len(p.Extra))
		for k, v := range p.Extra {
			c.Extra[k] = v
		}
	}
	return &c
}

// Document returns the stored representation without the id.
func (p *Product) Document() map[string]any {
	doc := make(map[string]any, len(ProductFields)+len(p.Extra))
	for k, v := range p.Extra {
		doc[k] = v
	}
	for field := range ProductFields {
		v, _ := p.Get(field)
		doc[field] = v
	}
	if p.CreatedAt != nil {
		doc["createdAt"] = p.CreatedAt.UTC().Format(time.RFC3339Nano)
	}
	if p.UpdatedAt != nil {
		doc["updatedAt"] = p.UpdatedAt.UTC().Format(time.RFC3339Nano)
	}
	return doc
}

func (p *Product) MarshalJSON() ([]byte, error) {
	doc := p.Document()
	doc["id"] = p.ID
	return json.Marshal(doc)
}

func (p *Product) UnmarshalJSON(data []byte) error {
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}
	*p = Product{}
	p.Apply(doc)
	return nil
}

func text(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		return fmt.Sprint(x)
	}
}

func timestamp(v any) *time.Time {
	switch x := v.(type) {
	case time.Time:
		return &x
	case *time.Time:
		return x
	case string:
		t, err := time.Parse(time.RFC3339Nano, x)
		if err != nil {
			return nil
		}
		return &t
	}
	return nil
}
