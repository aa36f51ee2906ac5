package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultTimeout = 10 * time.Second

// Client reads products and stats from the catalog HTTP API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a Client for the catalog API rooted at baseURL.
// A non-positive timeout selects the 10s default.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// ListProducts returns products matching f in catalog order.
func (c *Client) ListProducts(ctx context.Context, f Filter) ([]Product, error) {
	path := "/api/products"
	if q := f.Values().Encode(); q != "" {
		path += "?" + q
	}

	var products []Product
	if err := c.get(ctx, path, &products); err != nil {
		return nil, fmt.Errorf("listing products: %w", err)
	}
	if products == nil {
		products = []Product{}
	}
	return products, nil
}

// GetProduct returns the product with the given SKU, or ErrNotFound.
func (c *Client) GetProduct(ctx context.Context, sku string) (Product, error) {
	var p Product
	if err := c.get(ctx, "/api/products/"+url.PathEscape(sku), &p); err != nil {
		return Product{}, fmt.Errorf("getting product %s: %w", sku, err)
	}
	return p, nil
}

// Stats returns catalog-wide counters.
func (c *Client) Stats(ctx context.Context) (Stats, error) {
	var s Stats
	if err := c.get(ctx, "/api/stats", &s); err != nil {
		return Stats{}, fmt.Errorf("getting stats: %w", err)
	}
	return s, nil
}

func (c *Client) get(ctx context.Context, path string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}
