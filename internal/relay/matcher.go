package relay

import (
	"strings"

	"github.com/reliabledashboard/partsrelay/internal/catalog"
)

// Match returns the products whose name, category, manufacturer or SKU
// contains query, case-insensitively, in catalog order. A limit <= 0 returns
// every match. The result is never nil.
func Match(products []catalog.Product, query string, limit int) []catalog.Product {
	out := []catalog.Product{}
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return out
	}
	for _, p := range products {
		if !matches(p, q) {
			continue
		}
		out = append(out, p)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

// MatchCount reports how many products Match would return without a limit.
func MatchCount(products []catalog.Product, query string) int {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return 0
	}
	n := 0
	for _, p := range products {
		if matches(p, q) {
			n++
		}
	}
	return n
}

func matches(p catalog.Product, lowerQuery string) bool {
	for _, field := range []string{p.Name, p.Category, p.Manufacturer, p.SKU} {
		if strings.Contains(strings.ToLower(field), lowerQuery) {
			return true
		}
	}
	return false
}

// MapSKUs resolves skus to products by exact SKU match. The result follows the
// order of skus; unknown and repeated SKUs are skipped. The result is never
// nil.
func MapSKUs(products []catalog.Product, skus []string) []catalog.Product {
	bySKU := make(map[string]int, len(products))
	for i, p := range products {
		if _, ok := bySKU[p.SKU]; !ok {
			bySKU[p.SKU] = i
		}
	}

	out := []catalog.Product{}
	seen := make(map[string]bool, len(skus))
	for _, sku := range skus {
		if seen[sku] {
			continue
		}
		i, ok := bySKU[sku]
		if !ok {
			continue
		}
		seen[sku] = true
		out = append(out, products[i])
	}
	return out
}
