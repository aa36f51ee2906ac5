// Package relay answers natural-language product questions. It consults a
// language model when one is configured and falls back to a deterministic
// substring matcher whenever the model is absent, fails, or names no known
// products.
package relay

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/reliabledashboard/partsrelay/internal/catalog"
	"github.com/reliabledashboard/partsrelay/internal/llm"
)

const (
	DefaultSampleSize      = 10
	DefaultMaxResults      = 5
	DefaultSuggestionCount = 3
	DefaultCatalogTimeout  = 10 * time.Second
	DefaultModelTimeout    = 30 * time.Second
)

// Answer sources reported in Trace.Source.
const (
	SourceModel        = "model"
	SourceModelMatcher = "model+matcher"
	SourceModelText    = "model-text"
	SourceFallback     = "fallback"
)

// DefaultSuggestions pads the suggestion list when the model provides fewer
// than SuggestionCount, and replaces it entirely on malformed replies.
var DefaultSuggestions = []string{
	"Show in-stock parts in this category",
	"Compare prices across manufacturers",
	"Find compatible replacement parts",
	"Which parts have the highest margin?",
	"List parts that are out of stock",
}

// ProductSource lists catalog products. Satisfied by *catalog.Client and
// *storage.Store.
type ProductSource interface {
	ListProducts(ctx context.Context, f catalog.Filter) ([]catalog.Product, error)
}

// Config holds everything the relay needs. Zero numeric fields select the
// package defaults. A nil Completer means no model credential is configured.
type Config struct {
	Completer          llm.Completer
	Products           ProductSource
	SampleSize         int
	MaxResults         int
	SuggestionCount    int
	CatalogTimeout     time.Duration
	ModelTimeout       time.Duration
	DefaultSuggestions []string
}

// Response is the relay's answer. Slices are never nil.
type Response struct {
	Answer              string            `json:"answer"`
	RecommendedProducts []catalog.Product `json:"recommendedProducts"`
	RelatedSuggestions  []string          `json:"relatedSuggestions"`
}

// Trace records how a response was produced.
type Trace struct {
	CatalogSize int
	CatalogErr  error
	ModelUsed   bool
	ModelErr    error
	Malformed   bool
	Source      string
	Duration    time.Duration
}

// Relay is safe for concurrent use; it keeps no per-request state.
type Relay struct {
	cfg Config
}

// New applies defaults to cfg and returns a Relay.
func New(cfg Config) *Relay {
	if cfg.SampleSize <= 0 {
		cfg.SampleSize = DefaultSampleSize
	}
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = DefaultMaxResults
	}
	if cfg.SuggestionCount <= 0 {
		cfg.SuggestionCount = DefaultSuggestionCount
	}
	if cfg.CatalogTimeout <= 0 {
		cfg.CatalogTimeout = DefaultCatalogTimeout
	}
	if cfg.ModelTimeout <= 0 {
		cfg.ModelTimeout = DefaultModelTimeout
	}
	if len(cfg.DefaultSuggestions) < cfg.SuggestionCount {
		cfg.DefaultSuggestions = DefaultSuggestions
	}
	return &Relay{cfg: cfg}
}

// HasModel reports whether a model is configured.
func (r *Relay) HasModel() bool {
	return r.cfg.Completer != nil
}

// Ask answers query. The only error it returns is ErrInvalidInput; upstream
// failures degrade to the fallback matcher and are reported in the Trace.
func (r *Relay) Ask(ctx context.Context, query string) (Response, Trace, error) {
	q := strings.TrimSpace(query)
	if q == "" {
		return Response{}, Trace{}, ErrInvalidInput
	}

	start := time.Now()
	var tr Trace

	products, err := r.fetchProducts(ctx)
	if err != nil {
		slog.Warn("catalog fetch failed, continuing with empty catalog", "error", err)
		tr.CatalogErr = err
		products = []catalog.Product{}
	}
	tr.CatalogSize = len(products)

	resp, ok := r.consultModel(ctx, q, products, &tr)
	if !ok {
		resp = r.fallback(q, products)
		tr.Source = SourceFallback
	}

	tr.Duration = time.Since(start)
	slog.Debug("relay answered",
		"source", tr.Source,
		"catalog_size", tr.CatalogSize,
		"recommended", len(resp.RecommendedProducts),
		"duration_ms", tr.Duration.Milliseconds(),
	)
	return resp, tr, nil
}

func (r *Relay) fetchProducts(ctx context.Context) ([]catalog.Product, error) {
	if r.cfg.Products == nil {
		return nil, fmt.Errorf("%w: no product source configured", ErrUpstreamUnavailable)
	}
	ctx, cancel := context.WithTimeout(ctx, r.cfg.CatalogTimeout)
	defer cancel()

	products, err := r.cfg.Products.ListProducts(ctx, catalog.Filter{Limit: catalog.MaxLimit})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	if products == nil {
		products = []catalog.Product{}
	}
	return products, nil
}

// consultModel returns false when the model is absent or unavailable and the
// caller should use the fallback.
func (r *Relay) consultModel(ctx context.Context, q string, products []catalog.Product, tr *Trace) (Response, bool) {
	if r.cfg.Completer == nil {
		return Response{}, false
	}
	tr.ModelUsed = true

	raw, err := r.complete(ctx, q, products)
	if err != nil {
		slog.Warn("model call failed, using fallback matcher", "error", err)
		tr.ModelErr = err
		return Response{}, false
	}

	reply, err := ParseModelReply(raw)
	if err != nil {
		slog.Warn("model reply malformed, returning raw text", "error", err)
		tr.ModelErr = err
		tr.Malformed = true
		tr.Source = SourceModelText
		return Response{
			Answer:              strings.TrimSpace(raw),
			RecommendedProducts: []catalog.Product{},
			RelatedSuggestions:  r.suggestions(nil),
		}, true
	}

	recs := MapSKUs(products, reply.ProductSKUs)
	tr.Source = SourceModel
	if len(recs) == 0 {
		recs = Match(products, q, r.cfg.MaxResults)
		tr.Source = SourceModelMatcher
	} else if len(recs) > r.cfg.MaxResults {
		recs = recs[:r.cfg.MaxResults]
	}

	return Response{
		Answer:              strings.TrimSpace(reply.Answer),
		RecommendedProducts: recs,
		RelatedSuggestions:  r.suggestions(reply.Suggestions),
	}, true
}

func (r *Relay) complete(ctx context.Context, q string, products []catalog.Product) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.ModelTimeout)
	defer cancel()

	prompt := BuildPrompt(q, sampleOf(products, r.cfg.SampleSize))
	raw, err := r.cfg.Completer.Complete(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	if strings.TrimSpace(raw) == "" {
		return "", fmt.Errorf("%w: empty completion", ErrUpstreamUnavailable)
	}
	return raw, nil
}

func (r *Relay) fallback(q string, products []catalog.Product) Response {
	return Response{
		Answer:              FallbackAnswer(q, MatchCount(products, q), Match(products, q, 1)),
		RecommendedProducts: Match(products, q, r.cfg.MaxResults),
		RelatedSuggestions:  r.suggestions(nil),
	}
}

// FallbackAnswer renders the matcher's templated answer. top holds at most
// the first match.
func FallbackAnswer(query string, count int, top []catalog.Product) string {
	if count == 0 || len(top) == 0 {
		return fmt.Sprintf("No products matched %q. Try a part number, manufacturer or category.", query)
	}
	p := top[0]
	return fmt.Sprintf("Found %d products matching %q. Top match: %s (SKU: %s) at %s.",
		count, query, p.Name, p.SKU, formatPrice(p.Price))
}

func formatPrice(price *float64) string {
	if price == nil {
		return "price unavailable"
	}
	return fmt.Sprintf("$%.2f", *price)
}

// suggestions keeps up to SuggestionCount distinct non-empty model
// suggestions and pads from the default pool.
func (r *Relay) suggestions(fromModel []string) []string {
	out := make([]string, 0, r.cfg.SuggestionCount)
	seen := make(map[string]bool)
	add := func(s string) {
		s = strings.TrimSpace(s)
		key := strings.ToLower(s)
		if s == "" || seen[key] || len(out) == r.cfg.SuggestionCount {
			return
		}
		seen[key] = true
		out = append(out, s)
	}
	for _, s := range fromModel {
		add(s)
	}
	for _, s := range r.cfg.DefaultSuggestions {
		add(s)
	}
	return out
}
