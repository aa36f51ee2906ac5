package catalog

import (
	"errors"
	"net/url"
	"strconv"
	"time"
)

// ErrNotFound is returned when a product SKU does not exist in the catalog.
var ErrNotFound = errors.New("product not found")

const (
	DefaultLimit = 100
	MaxLimit     = 1000
)

// Product is a catalog entry. Margin is computed by the store from price and
// cost and is read-only here.
type Product struct {
	ID             int64             `json:"id,omitempty"`
	SKU            string            `json:"sku"`
	Name           string            `json:"name"`
	Category       string            `json:"category,omitempty"`
	Subcategory    string            `json:"subcategory,omitempty"`
	Manufacturer   string            `json:"manufacturer,omitempty"`
	Price          *float64          `json:"price"`
	Cost           *float64          `json:"cost,omitempty"`
	Margin         *float64          `json:"margin,omitempty"`
	InStock        bool              `json:"in_stock"`
	StockQuantity  int               `json:"stock_quantity,omitempty"`
	Description    string            `json:"description,omitempty"`
	Specifications map[string]string `json:"specifications,omitempty"`
	Compatibility  []string          `json:"compatibility,omitempty"`
	UpdatedAt      time.Time         `json:"updated_at,omitzero"`
}

// Stats summarizes the catalog.
type Stats struct {
	TotalProducts int `json:"total_products" db:"total_products"`
	InStock       int `json:"in_stock" db:"in_stock"`
	Categories    int `json:"categories" db:"categories"`
}

// Filter narrows a product listing. Zero values mean "no constraint".
type Filter struct {
	Category string
	InStock  *bool
	Query    string
	Limit    int
}

// Normalize clamps Limit into [1, MaxLimit], using DefaultLimit when unset.
func (f Filter) Normalize() Filter {
	switch {
	case f.Limit <= 0:
		f.Limit = DefaultLimit
	case f.Limit > MaxLimit:
		f.Limit = MaxLimit
	}
	return f
}

// Values encodes the filter as query parameters for GET /api/products.
func (f Filter) Values() url.Values {
	v := url.Values{}
	if f.Category != "" {
		v.Set("category", f.Category)
	}
	if f.InStock != nil {
		v.Set("in_stock", strconv.FormatBool(*f.InStock))
	}
	if f.Query != "" {
		v.Set("q", f.Query)
	}
	if f.Limit > 0 {
		v.Set("limit", strconv.Itoa(f.Limit))
	}
	return v
}

// Projection is the reduced product shape sent to the language model.
type Projection struct {
	SKU      string   `json:"sku"`
	Name     string   `json:"name"`
	Category string   `json:"category"`
	Price    *float64 `json:"price"`
	InStock  bool     `json:"in_stock"`
}

// Project reduces p to its prompt projection.
func (p Product) Project() Projection {
	return Projection{
		SKU:      p.SKU,
		Name:     p.Name,
		Category: p.Category,
		Price:    p.Price,
		InStock:  p.InStock,
	}
}
