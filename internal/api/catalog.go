package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/reliabledashboard/partsrelay/internal/catalog"
	"github.com/reliabledashboard/partsrelay/internal/storage"
)

const maxUpsertBodySize = 10 << 20 // 10MB

// CatalogStore is the storage surface the catalog API needs.
type CatalogStore interface {
	ListProducts(ctx context.Context, f catalog.Filter) ([]catalog.Product, error)
	GetProduct(ctx context.Context, sku string) (catalog.Product, error)
	UpsertProducts(ctx context.Context, products []catalog.Product) (int, error)
	Stats(ctx context.Context) (catalog.Stats, error)
	Ping(ctx context.Context) error
}

type CatalogDeps struct {
	Store CatalogStore
	Token string // bearer token for writes; empty disables them
}

// NewCatalogHandler serves the catalog read API and the bulk upsert endpoint.
func NewCatalogHandler(deps CatalogDeps) http.Handler {
	r := chi.NewRouter()

	r.Get("/health", handleHealth(deps))
	r.Get("/api/stats", handleStats(deps))
	r.Get("/api/products", handleListProducts(deps))
	r.Get("/api/products/{sku}", handleGetProduct(deps))
	r.With(BearerAuth(deps.Token)).Post("/api/products", handleUpsertProducts(deps))

	return r
}

func handleHealth(deps CatalogDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := deps.Store.Ping(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status":   "unhealthy",
				"database": "disconnected",
				"error":    err.Error(),
			})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{
			"status":   "healthy",
			"database": "connected",
		})
	}
}

func handleStats(deps CatalogDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats, err := deps.Store.Stats(r.Context())
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to compute stats: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, stats)
	}
}

func handleListProducts(deps CatalogDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		f := catalog.Filter{
			Category: q.Get("category"),
			Query:    q.Get("q"),
			Limit:    parseIntParam(r, "limit", catalog.DefaultLimit, catalog.MaxLimit),
		}
		if s := q.Get("in_stock"); s != "" {
			v, err := strconv.ParseBool(s)
			if err != nil {
				httpError(w, http.StatusBadRequest, "invalid_request_error", "in_stock must be true or false")
				return
			}
			f.InStock = &v
		}

		products, err := deps.Store.ListProducts(r.Context(), f)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list products: %v", err)
			return
		}
		if products == nil {
			products = []catalog.Product{}
		}
		writeJSON(w, http.StatusOK, products)
	}
}

func handleGetProduct(deps CatalogDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sku := chi.URLParam(r, "sku")
		p, err := deps.Store.GetProduct(r.Context(), sku)
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found_error", "product %s not found", sku)
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to get product: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, p)
	}
}

type upsertResponse struct {
	Upserted int `json:"upserted"`
}

func handleUpsertProducts(deps CatalogDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxUpsertBodySize)
		defer r.Body.Close()

		var products []catalog.Product
		if err := json.NewDecoder(r.Body).Decode(&products); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if len(products) == 0 {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "at least one product is required")
			return
		}

		n, err := deps.Store.UpsertProducts(r.Context(), products)
		if errors.Is(err, storage.ErrInvalidProduct) {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to upsert products: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, upsertResponse{Upserted: n})
	}
}
