package catalog

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestListProducts_QueryParams(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/products" {
			t.Errorf("path = %q, want /api/products", r.URL.Path)
		}
		gotQuery = r.URL.RawQuery
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `[{"sku":"WP3149400","name":"Range Burner Igniter","category":"Range","price":24.5,"in_stock":true}]`)
	}))
	defer srv.Close()

	inStock := true
	c := NewClient(srv.URL+"/", time.Second)
	products, err := c.ListProducts(context.Background(), Filter{Category: "Range", InStock: &inStock, Limit: 10})
	if err != nil {
		t.Fatalf("ListProducts: %v", err)
	}

	if gotQuery != "category=Range&in_stock=true&limit=10" {
		t.Errorf("query = %q", gotQuery)
	}
	if len(products) != 1 {
		t.Fatalf("len(products) = %d, want 1", len(products))
	}
	p := products[0]
	if p.SKU != "WP3149400" || !p.InStock || p.Price == nil || *p.Price != 24.5 {
		t.Errorf("product = %+v", p)
	}
}

func TestListProducts_NullBodyIsEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `null`)
	}))
	defer srv.Close()

	products, err := NewClient(srv.URL, 0).ListProducts(context.Background(), Filter{})
	if err != nil {
		t.Fatalf("ListProducts: %v", err)
	}
	if products == nil || len(products) != 0 {
		t.Errorf("products = %#v, want empty non-nil slice", products)
	}
}

func TestListProducts_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprint(w, `{"error":{"message":"boom"}}`)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, time.Second).ListProducts(context.Background(), Filter{})
	if err == nil {
		t.Fatal("expected error for HTTP 500")
	}
}

func TestListProducts_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := NewClient(url, time.Second).ListProducts(context.Background(), Filter{})
	if err == nil {
		t.Fatal("expected error for closed server")
	}
}

func TestGetProduct_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/products/MISSING-1" {
			t.Errorf("path = %q", r.URL.Path)
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, time.Second).GetProduct(context.Background(), "MISSING-1")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestStats(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"total_products":12,"in_stock":7,"categories":3}`)
	}))
	defer srv.Close()

	s, err := NewClient(srv.URL, time.Second).Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if s != (Stats{TotalProducts: 12, InStock: 7, Categories: 3}) {
		t.Errorf("stats = %+v", s)
	}
}

func TestFilterNormalize(t *testing.T) {
	tests := []struct {
		in, want int
	}{
		{0, DefaultLimit},
		{-3, DefaultLimit},
		{50, 50},
		{5000, MaxLimit},
	}
	for _, tt := range tests {
		if got := (Filter{Limit: tt.in}).Normalize().Limit; got != tt.want {
			t.Errorf("Normalize(%d).Limit = %d, want %d", tt.in, got, tt.want)
		}
	}
}
