package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/reliabledashboard/partsrelay/internal/catalog"
	"github.com/reliabledashboard/partsrelay/internal/history"
	"github.com/reliabledashboard/partsrelay/internal/relay"
)

const (
	maxAskBodySize  = 64 << 10 // 64KB
	recordTimeout   = 2 * time.Second
	failureAnswer   = "Sorry, the product assistant could not process that request."
	defaultHistoryN = 20
	maxHistoryN     = 100
)

// Asker answers product questions.
type Asker interface {
	Ask(ctx context.Context, query string) (relay.Response, relay.Trace, error)
}

type RelayDeps struct {
	Relay   Asker
	History history.Recorder // optional; nil disables recording
}

type askRequest struct {
	Query string `json:"query"`
}

type askFailure struct {
	Error               string            `json:"error"`
	Answer              string            `json:"answer"`
	RecommendedProducts []catalog.Product `json:"recommendedProducts"`
	RelatedSuggestions  []string          `json:"relatedSuggestions"`
}

// NewRelayHandler serves POST / (ask) and GET /history. It is mounted at
// /api/ai.
func NewRelayHandler(deps RelayDeps) http.Handler {
	if deps.History == nil {
		deps.History = history.Nop{}
	}

	r := chi.NewRouter()
	r.Post("/", handleAsk(deps))
	r.Get("/history", handleHistory(deps))
	return r
}

func handleAsk(deps RelayDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxAskBodySize)
		defer r.Body.Close()

		var req askRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			askError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		resp, tr, err := deps.Relay.Ask(r.Context(), req.Query)
		if errors.Is(err, relay.ErrInvalidInput) {
			askError(w, http.StatusBadRequest, err.Error())
			return
		}
		if err != nil {
			slog.Error("relay failed", "error", err)
			askError(w, http.StatusInternalServerError, "internal error")
			return
		}

		writeJSON(w, http.StatusOK, resp)

		ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), recordTimeout)
		defer cancel()
		entry := history.Entry{Query: strings.TrimSpace(req.Query), Source: tr.Source, Results: len(resp.RecommendedProducts)}
		if err := deps.History.Record(ctx, entry); err != nil {
			slog.Warn("recording query history failed", "error", err)
		}
	}
}

func askError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, askFailure{
		Error:               msg,
		Answer:              failureAnswer,
		RecommendedProducts: []catalog.Product{},
		RelatedSuggestions:  []string{},
	})
}

func handleHistory(deps RelayDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		n := parseIntParam(r, "limit", defaultHistoryN, maxHistoryN)

		entries, err := deps.History.Recent(r.Context(), n)
		if err != nil {
			httpError(w, http.StatusBadGateway, "api_error", "failed to read history: %v", err)
			return
		}
		if entries == nil {
			entries = []history.Entry{}
		}
		writeJSON(w, http.StatusOK, entries)
	}
}
