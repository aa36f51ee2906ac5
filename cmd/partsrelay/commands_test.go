package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/fatih/color"

	"github.com/reliabledashboard/partsrelay/internal/catalog"
	"github.com/reliabledashboard/partsrelay/internal/history"
	"github.com/reliabledashboard/partsrelay/internal/relay"
	"github.com/reliabledashboard/partsrelay/internal/storage"
)

type recordedRequest struct {
	Method string
	Path   string
	Body   string
	Auth   string
}

type testServer struct {
	server   *httptest.Server
	mu       sync.Mutex
	requests []recordedRequest
}

func newTestServer(t *testing.T, responses map[string]string) *testServer {
	t.Helper()
	ts := &testServer{}

	ts.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body bytes.Buffer
		body.ReadFrom(r.Body)

		ts.mu.Lock()
		ts.requests = append(ts.requests, recordedRequest{
			Method: r.Method,
			Path:   r.URL.RequestURI(),
			Body:   body.String(),
			Auth:   r.Header.Get("Authorization"),
		})
		ts.mu.Unlock()

		key := r.Method + " " + r.URL.Path
		if resp, ok := responses[key]; ok {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(resp))
			return
		}

		w.WriteHeader(404)
		w.Write([]byte(`{"error":{"message":"not found","type":"not_found_error"}}`))
	}))

	t.Cleanup(ts.server.Close)
	return ts
}

func (ts *testServer) client() *apiClient {
	return &apiClient{
		baseURL:    ts.server.URL,
		token:      "test-token",
		httpClient: ts.server.Client(),
	}
}

func (ts *testServer) recorded() []recordedRequest {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return append([]recordedRequest(nil), ts.requests...)
}

// useClient points commands run through rootCmd at ts.
func useClient(t *testing.T, ts *testServer) {
	t.Helper()
	old := newAPIClient
	newAPIClient = func() (*apiClient, error) { return ts.client(), nil }
	t.Cleanup(func() { newAPIClient = old })
}

func runRoot(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetArgs(nil)
	})
	err := rootCmd.Execute()
	return out.String(), err
}

var ctx = context.Background()

func TestAskQuery(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"POST /api/ai": `{"answer":"Try the inlet valve.","recommendedProducts":[{"sku":"WP3149400","name":"Water Inlet Valve","price":24.5,"in_stock":true}],"relatedSuggestions":["Show dishwasher parts"]}`,
	})

	resp, err := askQuery(ctx, ts.client(), "inlet valve")
	if err != nil {
		t.Fatalf("askQuery: %v", err)
	}
	if resp.Answer != "Try the inlet valve." {
		t.Errorf("answer = %q", resp.Answer)
	}
	if len(resp.RecommendedProducts) != 1 || resp.RecommendedProducts[0].SKU != "WP3149400" {
		t.Errorf("products = %+v", resp.RecommendedProducts)
	}

	reqs := ts.recorded()
	if len(reqs) != 1 {
		t.Fatalf("expected 1 request, got %d", len(reqs))
	}
	r := reqs[0]
	if r.Method != "POST" || r.Path != "/api/ai" {
		t.Errorf("request = %s %s", r.Method, r.Path)
	}
	if r.Auth != "Bearer test-token" {
		t.Errorf("auth = %q, want Bearer test-token", r.Auth)
	}
	var body map[string]string
	if err := json.Unmarshal([]byte(r.Body), &body); err != nil {
		t.Fatalf("body parse error: %v", err)
	}
	if body["query"] != "inlet valve" {
		t.Errorf("body.query = %q", body["query"])
	}
}

func TestAskQuery_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"query is required","answer":"","recommendedProducts":[],"relatedSuggestions":[]}`))
	}))
	defer srv.Close()

	client := &apiClient{baseURL: srv.URL, httpClient: srv.Client()}
	_, err := askQuery(ctx, client, " ")
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "400") || !strings.Contains(err.Error(), "query is required") {
		t.Errorf("error = %q", err)
	}
}

func TestAskCommand_MissingArgs(t *testing.T) {
	_, err := runRoot(t, "ask")
	if err == nil {
		t.Fatal("expected error for missing query")
	}
}

func TestPrintAnswer(t *testing.T) {
	color.NoColor = true
	price := 24.5

	var buf bytes.Buffer
	printAnswer(&buf, relay.Response{
		Answer: "Found it.",
		RecommendedProducts: []catalog.Product{
			{SKU: "WP3149400", Name: "Water Inlet Valve", Price: &price, InStock: true},
			{SKU: "DA97-07365G", Name: "Ice Maker Assembly"},
		},
		RelatedSuggestions: []string{"Show dishwasher parts"},
	})

	out := buf.String()
	for _, want := range []string{"Found it.", "WP3149400", "$24.50", "DA97-07365G", "n/a", "(out of stock)", "- Show dishwasher parts"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestImportProducts_Batches(t *testing.T) {
	var (
		mu      sync.Mutex
		batches []int
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/products" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		var products []catalog.Product
		if err := json.NewDecoder(r.Body).Decode(&products); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		mu.Lock()
		batches = append(batches, len(products))
		mu.Unlock()
		json.NewEncoder(w).Encode(map[string]int{"upserted": len(products)})
	}))
	defer srv.Close()

	products := make([]catalog.Product, 250)
	for i := range products {
		products[i] = catalog.Product{SKU: fmt.Sprintf("SKU-%03d", i), Name: "part"}
	}

	client := &apiClient{baseURL: srv.URL, token: "test-token", httpClient: srv.Client()}
	n, err := importProducts(ctx, client, products, 100, io.Discard)
	if err != nil {
		t.Fatalf("importProducts: %v", err)
	}
	if n != 250 {
		t.Errorf("upserted = %d, want 250", n)
	}
	if len(batches) != 3 {
		t.Fatalf("batches = %v, want 3 requests", batches)
	}
	sum := 0
	for _, b := range batches {
		if b > 100 {
			t.Errorf("batch of %d exceeds batch size", b)
		}
		sum += b
	}
	if sum != 250 {
		t.Errorf("products sent = %d, want 250", sum)
	}
}

func TestImportProducts_Unauthorized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":{"message":"invalid bearer token","type":"authentication_error"}}`))
	}))
	defer srv.Close()

	client := &apiClient{baseURL: srv.URL, token: "wrong", httpClient: srv.Client()}
	_, err := importProducts(ctx, client, []catalog.Product{{SKU: "A", Name: "a"}}, 0, io.Discard)
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "invalid bearer token") {
		t.Errorf("error = %q, want server message", err)
	}
}

func TestReadProductsFile(t *testing.T) {
	dir := t.TempDir()

	good := filepath.Join(dir, "products.json")
	os.WriteFile(good, []byte(`[{"sku":"WP3149400","name":"Water Inlet Valve","price":24.5}]`), 0o644)
	products, err := readProductsFile(good)
	if err != nil {
		t.Fatalf("readProductsFile: %v", err)
	}
	if len(products) != 1 || products[0].SKU != "WP3149400" {
		t.Errorf("products = %+v", products)
	}

	bad := filepath.Join(dir, "object.json")
	os.WriteFile(bad, []byte(`{"sku":"WP3149400"}`), 0o644)
	if _, err := readProductsFile(bad); err == nil {
		t.Error("expected error for non-array file")
	}

	if _, err := readProductsFile(filepath.Join(dir, "missing.json")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestImportCommand_RequiresFile(t *testing.T) {
	_, err := runRoot(t, "catalog", "import")
	if err == nil || !strings.Contains(err.Error(), "--file") {
		t.Fatalf("error = %v, want --file required", err)
	}
}

func TestCatalogGetCommand(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"GET /api/products/WP3149400": `{"sku":"WP3149400","name":"Water Inlet Valve","price":24.5,"in_stock":true}`,
	})
	useClient(t, ts)

	out, err := runRoot(t, "catalog", "get", "WP3149400")
	if err != nil {
		t.Fatalf("catalog get: %v", err)
	}
	if !strings.Contains(out, `"sku": "WP3149400"`) {
		t.Errorf("output = %s", out)
	}

	_, err = runRoot(t, "catalog", "get", "NOPE")
	if err == nil || !strings.Contains(err.Error(), "404") {
		t.Errorf("error = %v, want 404", err)
	}
}

func TestHistoryCommand(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"GET /api/ai/history": `[{"id":"1","query":"inlet valve","source":"fallback","results":2,"created_at":"2026-01-02T03:04:05Z"}]`,
	})
	useClient(t, ts)

	color.NoColor = true
	out, err := runRoot(t, "history", "--limit", "5")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if !strings.Contains(out, "inlet valve") || !strings.Contains(out, "fallback") {
		t.Errorf("output = %s", out)
	}
	reqs := ts.recorded()
	if len(reqs) != 1 || reqs[0].Path != "/api/ai/history?limit=5" {
		t.Errorf("requests = %+v", reqs)
	}
}

func TestErrorMessage(t *testing.T) {
	tests := []struct {
		body string
		want string
	}{
		{`{"error":{"message":"product not found","type":"not_found_error"}}`, "product not found"},
		{`{"error":"query is required"}`, "query is required"},
		{`plain text failure`, "plain text failure"},
		{`{"other":1}`, `{"other":1}`},
	}
	for _, tt := range tests {
		if got := errorMessage([]byte(tt.body)); got != tt.want {
			t.Errorf("errorMessage(%s) = %q, want %q", tt.body, got, tt.want)
		}
	}
}

func TestNoColor(t *testing.T) {
	old := color.NoColor
	defer func() { color.NoColor = old }()

	color.NoColor = true
	if got := bold.Sprint("test"); strings.Contains(got, "\033[") {
		t.Errorf("NoColor=true should not emit ANSI codes, got %q", got)
	}

	color.NoColor = false
	if got := bold.Sprint("test"); !strings.Contains(got, "\033[") {
		t.Errorf("NoColor=false should emit ANSI codes, got %q", got)
	}
}

func TestRouter_EndToEnd(t *testing.T) {
	store, err := storage.Open(storage.Options{Driver: storage.DriverSQLite, DSN: ":memory:"})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	price := 24.5
	if _, err := store.UpsertProducts(ctx, []catalog.Product{
		{SKU: "WP3149400", Name: "Water Inlet Valve", Manufacturer: "Whirlpool", Price: &price, InStock: true},
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	a := &app{
		store:   store,
		relay:   relay.New(relay.Config{Products: store}),
		history: history.Nop{},
	}
	srv := httptest.NewServer(newRouter(a, "test-token"))
	defer srv.Close()

	client := &apiClient{baseURL: srv.URL, token: "test-token", httpClient: srv.Client()}

	resp, err := askQuery(ctx, client, "whirlpool")
	if err != nil {
		t.Fatalf("askQuery: %v", err)
	}
	if len(resp.RecommendedProducts) != 1 || resp.RecommendedProducts[0].SKU != "WP3149400" {
		t.Errorf("products = %+v", resp.RecommendedProducts)
	}
	if !strings.Contains(resp.Answer, "Found 1 products") {
		t.Errorf("answer = %q", resp.Answer)
	}

	n, err := importProducts(ctx, client, []catalog.Product{{SKU: "WD21X10224", Name: "Heating Element"}}, 10, io.Discard)
	if err != nil || n != 1 {
		t.Fatalf("importProducts = %d, %v", n, err)
	}

	statsResp, err := client.get(ctx, "/api/stats")
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	var stats catalog.Stats
	if err := decodeJSON(statsResp, &stats); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	if stats.TotalProducts != 2 {
		t.Errorf("total products = %d, want 2", stats.TotalProducts)
	}
}
