package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/reliabledashboard/partsrelay/internal/api"
	"github.com/reliabledashboard/partsrelay/internal/catalog"
	"github.com/reliabledashboard/partsrelay/internal/config"
	"github.com/reliabledashboard/partsrelay/internal/history"
	"github.com/reliabledashboard/partsrelay/internal/llm"
	"github.com/reliabledashboard/partsrelay/internal/relay"
	"github.com/reliabledashboard/partsrelay/internal/storage"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the catalog API and product assistant (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show server and dependency status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showStatus(cmd.Context())
	},
}

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the MCP tools over stdio",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMCP()
	},
}

func setupLogging(lc config.LogConfig) {
	level := slog.LevelInfo
	switch strings.ToLower(lc.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler = slog.NewTextHandler(os.Stderr, opts)
	if strings.EqualFold(lc.Format, "json") {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
}

// app holds the long-lived components shared by serve and mcp.
type app struct {
	store   *storage.Store
	relay   *relay.Relay
	history history.Recorder
}

func openApp(ctx context.Context, cfg config.Config) (*app, error) {
	store, err := storage.Open(storage.Options{
		Driver:  cfg.Storage.Driver,
		DSN:     cfg.Storage.DSN,
		DataDir: cfg.Storage.DataDir,
	})
	if err != nil {
		return nil, fmt.Errorf("opening storage: %w", err)
	}

	completer, err := llm.New(ctx, llm.Options{
		Provider: cfg.LLM.Provider,
		APIKey:   cfg.LLM.APIKey,
		Model:    cfg.LLM.Model,
		BaseURL:  cfg.LLM.BaseURL,
		Timeout:  cfg.LLM.Timeout,
	})
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("building llm client: %w", err)
	}
	switch c := completer.(type) {
	case nil:
		slog.Warn("no llm api key configured, answers use keyword matching only", "provider", cfg.LLM.Provider)
	case *llm.Ollama:
		if err := c.CheckReady(ctx); err != nil {
			slog.Warn("ollama not ready, answers fall back to keyword matching until it is", "error", err)
		}
	}

	var products relay.ProductSource = store
	if cfg.Catalog.BaseURL != "" {
		products = catalog.NewClient(cfg.Catalog.BaseURL, cfg.Catalog.Timeout)
		slog.Info("relay reads catalog over http", "base_url", cfg.Catalog.BaseURL)
	}

	rel := relay.New(relay.Config{
		Completer:      completer,
		Products:       products,
		CatalogTimeout: cfg.Catalog.Timeout,
		ModelTimeout:   cfg.LLM.Timeout,
	})

	rec, err := history.New(history.RedisOptions{
		Addr:       cfg.History.RedisAddr,
		MaxEntries: cfg.History.MaxEntries,
	})
	if err != nil {
		slog.Warn("history disabled", "error", err)
		rec = history.Nop{}
	}

	return &app{store: store, relay: rel, history: rec}, nil
}

func (a *app) Close() {
	if err := a.history.Close(); err != nil {
		slog.Warn("closing history", "error", err)
	}
	if err := a.store.Close(); err != nil {
		slog.Warn("closing storage", "error", err)
	}
}

func newRouter(a *app, token string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(api.RequestLogger)
	r.Use(api.CORS)

	r.Mount("/api/ai", api.NewRelayHandler(api.RelayDeps{Relay: a.relay, History: a.history}))
	r.Mount("/", api.NewCatalogHandler(api.CatalogDeps{Store: a.store, Token: token}))
	return r
}

func runServer() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	setupLogging(cfg.Log)
	slog.Info("starting partsrelay", "version", version)

	if cfg.Server.APIToken == "" {
		slog.Warn("no api token configured, POST /api/products is disabled")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := openApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	srv := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           newRouter(a, cfg.Server.APIToken),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("listening", "addr", srv.Addr, "model", a.relay.HasModel())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		slog.Info("shutting down")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func runMCP() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	// stdout carries the MCP transport; logs stay on stderr.
	setupLogging(cfg.Log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := openApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	mcpSrv := api.NewMCPServer(api.MCPDeps{Relay: a.relay, Store: a.store}, version)
	slog.Info("MCP server started (stdio transport)")
	if err := server.NewStdioServer(mcpSrv).Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("mcp server: %w", err)
	}
	return nil
}

func showStatus(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		printError("config error: %v", err)
		return nil
	}

	baseURL := cfg.Server.BaseURL()
	client := &http.Client{Timeout: 2 * time.Second}

	running := false
	resp, err := client.Get(baseURL + "/health")
	if err != nil {
		printStatus("Server", "stopped")
	} else {
		var health map[string]string
		json.NewDecoder(resp.Body).Decode(&health)
		resp.Body.Close()
		if resp.StatusCode == http.StatusOK {
			running = true
			printStatus("Server", "running at %s", baseURL)
		} else {
			printStatus("Server", "unhealthy (HTTP %d, database %s)", resp.StatusCode, health["database"])
		}
	}

	if running {
		statsResp, err := client.Get(baseURL + "/api/stats")
		if err == nil {
			var stats catalog.Stats
			if decodeJSON(statsResp, &stats) == nil {
				printStatus("Products", "%d (%d in stock, %d categories)", stats.TotalProducts, stats.InStock, stats.Categories)
			}
		}
	}

	printStatus("Storage", "%s", cfg.Storage.Driver)
	if cfg.Catalog.BaseURL != "" {
		printStatus("Catalog source", "%s", cfg.Catalog.BaseURL)
	} else {
		printStatus("Catalog source", "local store")
	}

	switch {
	case cfg.LLM.Provider == llm.ProviderOllama:
		o := llm.NewOllama(cfg.LLM.BaseURL, cfg.LLM.Model, cfg.LLM.Timeout)
		if err := o.CheckReady(ctx); err != nil {
			printStatus("Model", "ollama %s (%v)", o.Model(), err)
		} else {
			printStatus("Model", "ollama %s ready", o.Model())
		}
	case cfg.LLM.APIKey == "":
		printStatus("Model", "%s (no api key, keyword matching only)", cfg.LLM.Provider)
	default:
		model := cfg.LLM.Model
		if model == "" {
			model = "default"
		}
		printStatus("Model", "%s %s", cfg.LLM.Provider, model)
	}

	if cfg.History.RedisAddr != "" {
		printStatus("History", "redis at %s", cfg.History.RedisAddr)
	} else {
		printStatus("History", "disabled")
	}
	return nil
}
