package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/reliabledashboard/partsrelay/internal/catalog"
)

// ListProducts returns products matching f ordered by id.
func (s *Store) ListProducts(ctx context.Context, f catalog.Filter) ([]catalog.Product, error) {
	f = f.Normalize()

	var (
		conds []string
		args  []any
	)
	if f.Category != "" {
		conds = append(conds, "category = ?")
		args = append(args, f.Category)
	}
	if f.InStock != nil {
		conds = append(conds, "in_stock = ?")
		args = append(args, *f.InStock)
	}
	if q := strings.TrimSpace(f.Query); q != "" {
		cond, arg := s.searchClause(q)
		conds = append(conds, cond)
		args = append(args, arg)
	}

	query := "SELECT " + productColumns + " FROM products"
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY id ASC LIMIT ?"
	args = append(args, f.Limit)

	var rows []productRow
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("selecting products: %w", err)
	}

	products := make([]catalog.Product, 0, len(rows))
	for _, r := range rows {
		p, err := r.toProduct()
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, nil
}

// searchClause matches the generated search column of each dialect.
func (s *Store) searchClause(q string) (string, any) {
	if s.driver == DriverPostgres {
		return "search_vector @@ plainto_tsquery('english', ?)", q
	}
	return "search_text LIKE ?", "%" + strings.ToLower(q) + "%"
}

// GetProduct returns the product with the given SKU or ErrNotFound.
func (s *Store) GetProduct(ctx context.Context, sku string) (catalog.Product, error) {
	var r productRow
	err := s.db.GetContext(ctx, &r, s.db.Rebind("SELECT "+productColumns+" FROM products WHERE sku = ?"), sku)
	if errors.Is(err, sql.ErrNoRows) {
		return catalog.Product{}, ErrNotFound
	}
	if err != nil {
		return catalog.Product{}, fmt.Errorf("selecting product %s: %w", sku, err)
	}
	return r.toProduct()
}

const upsertProductSQL = `
	INSERT INTO products (sku, name, category, subcategory, manufacturer, price, cost,
		in_stock, stock_quantity, description, specifications, compatibility, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT (sku) DO UPDATE SET
		name = excluded.name,
		category = excluded.category,
		subcategory = excluded.subcategory,
		manufacturer = excluded.manufacturer,
		price = excluded.price,
		cost = excluded.cost,
		in_stock = excluded.in_stock,
		stock_quantity = excluded.stock_quantity,
		description = excluded.description,
		specifications = excluded.specifications,
		compatibility = excluded.compatibility,
		updated_at = excluded.updated_at`

// UpsertProducts inserts or updates products by SKU in a single transaction
// and returns how many were written. Margin and search fields are recomputed
// by the database.
func (s *Store) UpsertProducts(ctx context.Context, products []catalog.Product) (int, error) {
	for i, p := range products {
		if strings.TrimSpace(p.SKU) == "" || strings.TrimSpace(p.Name) == "" {
			return 0, fmt.Errorf("product %d: sku and name are required: %w", i, ErrInvalidProduct)
		}
	}
	if len(products) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning upsert transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PreparexContext(ctx, tx.Rebind(upsertProductSQL))
	if err != nil {
		return 0, fmt.Errorf("preparing upsert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC().Format(time.RFC3339Nano)
	for _, p := range products {
		specs, err := jsonArg(p.Specifications, len(p.Specifications) == 0)
		if err != nil {
			return 0, fmt.Errorf("encoding specifications for %s: %w", p.SKU, err)
		}
		compat, err := jsonArg(p.Compatibility, len(p.Compatibility) == 0)
		if err != nil {
			return 0, fmt.Errorf("encoding compatibility for %s: %w", p.SKU, err)
		}

		if _, err := stmt.ExecContext(ctx,
			strings.TrimSpace(p.SKU), p.Name,
			nullString(p.Category), nullString(p.Subcategory), nullString(p.Manufacturer),
			nullFloatArg(p.Price), nullFloatArg(p.Cost),
			p.InStock, sql.NullInt64{Int64: int64(p.StockQuantity), Valid: p.StockQuantity != 0},
			nullString(p.Description), specs, compat, now,
		); err != nil {
			return 0, fmt.Errorf("upserting %s: %w", p.SKU, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing upsert: %w", err)
	}
	return len(products), nil
}

// Stats returns catalog-wide counters.
func (s *Store) Stats(ctx context.Context) (catalog.Stats, error) {
	var st catalog.Stats
	err := s.db.GetContext(ctx, &st, `
		SELECT
			COUNT(*) AS total_products,
			COALESCE(SUM(CASE WHEN in_stock THEN 1 ELSE 0 END), 0) AS in_stock,
			COUNT(DISTINCT category) AS categories
		FROM products`)
	if err != nil {
		return catalog.Stats{}, fmt.Errorf("computing stats: %w", err)
	}
	return st, nil
}
