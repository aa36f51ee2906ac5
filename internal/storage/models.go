package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/reliabledashboard/partsrelay/internal/catalog"
)

var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = catalog.ErrNotFound

	// ErrInvalidProduct is returned when a product is missing its SKU or name.
	ErrInvalidProduct = errors.New("invalid product")
)

// productColumns lists the readable product columns in scan order.
const productColumns = `id, sku, name, category, subcategory, manufacturer, price, cost, margin,
	in_stock, stock_quantity, description, specifications, compatibility, updated_at`

type productRow struct {
	ID             int64           `db:"id"`
	SKU            string          `db:"sku"`
	Name           string          `db:"name"`
	Category       sql.NullString  `db:"category"`
	Subcategory    sql.NullString  `db:"subcategory"`
	Manufacturer   sql.NullString  `db:"manufacturer"`
	Price          sql.NullFloat64 `db:"price"`
	Cost           sql.NullFloat64 `db:"cost"`
	Margin         sql.NullFloat64 `db:"margin"`
	InStock        bool            `db:"in_stock"`
	StockQuantity  sql.NullInt64   `db:"stock_quantity"`
	Description    sql.NullString  `db:"description"`
	Specifications sql.NullString  `db:"specifications"`
	Compatibility  sql.NullString  `db:"compatibility"`
	UpdatedAt      dbTime          `db:"updated_at"`
}

func (r productRow) toProduct() (catalog.Product, error) {
	p := catalog.Product{
		ID:            r.ID,
		SKU:           r.SKU,
		Name:          r.Name,
		Category:      r.Category.String,
		Subcategory:   r.Subcategory.String,
		Manufacturer:  r.Manufacturer.String,
		Price:         nullFloat(r.Price),
		Cost:          nullFloat(r.Cost),
		Margin:        nullFloat(r.Margin),
		InStock:       r.InStock,
		StockQuantity: int(r.StockQuantity.Int64),
		Description:   r.Description.String,
		UpdatedAt:     time.Time(r.UpdatedAt),
	}
	if r.Specifications.Valid && r.Specifications.String != "" {
		if err := json.Unmarshal([]byte(r.Specifications.String), &p.Specifications); err != nil {
			return catalog.Product{}, fmt.Errorf("decoding specifications for %s: %w", r.SKU, err)
		}
	}
	if r.Compatibility.Valid && r.Compatibility.String != "" {
		if err := json.Unmarshal([]byte(r.Compatibility.String), &p.Compatibility); err != nil {
			return catalog.Product{}, fmt.Errorf("decoding compatibility for %s: %w", r.SKU, err)
		}
	}
	return p, nil
}

func nullFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullFloatArg(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

// jsonArg encodes v for a JSON/TEXT column, or NULL when empty.
func jsonArg(v any, empty bool) (sql.NullString, error) {
	if empty {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}

// dbTime scans timestamps from either driver: Postgres returns time.Time,
// SQLite returns the stored RFC 3339 text.
type dbTime time.Time

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05",
}

func (t *dbTime) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*t = dbTime(time.Time{})
		return nil
	case time.Time:
		*t = dbTime(v)
		return nil
	case string:
		return t.parse(v)
	case []byte:
		return t.parse(string(v))
	default:
		return fmt.Errorf("cannot scan %T into timestamp", src)
	}
}

func (t *dbTime) parse(s string) error {
	for _, layout := range timeLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			*t = dbTime(parsed)
			return nil
		}
	}
	return fmt.Errorf("parsing timestamp %q", s)
}
