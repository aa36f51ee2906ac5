package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"
	"sync/atomic"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/reliabledashboard/partsrelay/internal/catalog"
	"github.com/reliabledashboard/partsrelay/internal/config"
	"github.com/reliabledashboard/partsrelay/internal/history"
	"github.com/reliabledashboard/partsrelay/internal/relay"
)

const importConcurrency = 4

// --- ask ---

var askCmd = &cobra.Command{
	Use:   "ask <query...>",
	Short: "Ask the product assistant a question",
	Long: `Ask the product assistant a question about the parts catalog.

Examples:
  partsrelay ask "whirlpool water inlet valve"
  partsrelay ask which samsung parts are in stock`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		query := strings.Join(args, " ")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := askQuery(cmd.Context(), client, query)
		if err != nil {
			return err
		}
		printAnswer(cmd.OutOrStdout(), resp)
		return nil
	},
}

func askQuery(ctx context.Context, client *apiClient, query string) (relay.Response, error) {
	var out relay.Response
	resp, err := client.post(ctx, "/api/ai", map[string]string{"query": query})
	if err != nil {
		return out, err
	}
	if err := decodeJSON(resp, &out); err != nil {
		return out, err
	}
	return out, nil
}

func printAnswer(w io.Writer, r relay.Response) {
	fmt.Fprintf(w, "%s\n", r.Answer)

	if len(r.RecommendedProducts) > 0 {
		fmt.Fprintf(w, "\n%s\n", bold.Sprint("Products"))
		for _, p := range r.RecommendedProducts {
			fmt.Fprintf(w, "  %s  %s  %s%s\n", cyan.Sprint(p.SKU), p.Name, priceLabel(p.Price), stockLabel(p.InStock))
		}
	}

	if len(r.RelatedSuggestions) > 0 {
		fmt.Fprintf(w, "\n%s\n", bold.Sprint("Try also"))
		for _, s := range r.RelatedSuggestions {
			fmt.Fprintf(w, "  - %s\n", s)
		}
	}
}

func priceLabel(p *float64) string {
	if p == nil {
		return "n/a"
	}
	return fmt.Sprintf("$%.2f", *p)
}

func stockLabel(inStock bool) string {
	if inStock {
		return ""
	}
	return yellow.Sprint("  (out of stock)")
}

// --- catalog ---

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Read or load the product catalog",
}

var catalogImportCmd = &cobra.Command{
	Use:   "import",
	Short: "Bulk upsert products from a JSON file",
	Long: `Bulk upsert products from a JSON array file. Requires server.api_token.

Examples:
  partsrelay catalog import --file products.json
  partsrelay catalog import --file products.json --batch 250`,
	RunE: func(cmd *cobra.Command, args []string) error {
		file, _ := cmd.Flags().GetString("file")
		batch, _ := cmd.Flags().GetInt("batch")
		if file == "" {
			return fmt.Errorf("--file is required")
		}

		products, err := readProductsFile(file)
		if err != nil {
			return err
		}
		if len(products) == 0 {
			printWarning("%s contains no products", file)
			return nil
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		printStep("Importing %d products from %s", len(products), file)
		n, err := importProducts(cmd.Context(), client, products, batch, os.Stderr)
		if err != nil {
			return err
		}
		printSuccess("Upserted %d products", n)
		return nil
	},
}

func readProductsFile(path string) ([]catalog.Product, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading file: %w", err)
	}
	var products []catalog.Product
	if err := json.Unmarshal(data, &products); err != nil {
		return nil, fmt.Errorf("parsing %s: expected a JSON array of products: %w", path, err)
	}
	return products, nil
}

// importProducts uploads products in batches of batchSize, at most
// importConcurrency at a time. The first failing batch cancels the rest.
func importProducts(ctx context.Context, client *apiClient, products []catalog.Product, batchSize int, progress io.Writer) (int, error) {
	if batchSize <= 0 {
		batchSize = 100
	}

	bar := progressbar.NewOptions(len(products),
		progressbar.OptionSetWriter(progress),
		progressbar.OptionSetDescription("importing"),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionSetItsString("products"),
		progressbar.OptionSetRenderBlankState(true),
	)

	var total atomic.Int64
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(importConcurrency)

	for start := 0; start < len(products); start += batchSize {
		end := min(start+batchSize, len(products))
		batch := products[start:end]
		g.Go(func() error {
			resp, err := client.post(ctx, "/api/products", batch)
			if err != nil {
				return err
			}
			var out struct {
				Upserted int `json:"upserted"`
			}
			if err := decodeJSON(resp, &out); err != nil {
				return fmt.Errorf("batch %d-%d: %w", start, end-1, err)
			}
			total.Add(int64(out.Upserted))
			bar.Add(len(batch))
			return nil
		})
	}

	err := g.Wait()
	bar.Finish()
	fmt.Fprintln(progress)
	return int(total.Load()), err
}

var catalogStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show catalog statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/api/stats")
		if err != nil {
			return err
		}
		var stats catalog.Stats
		if err := decodeJSON(resp, &stats); err != nil {
			return err
		}

		printStatus("Products", "%d", stats.TotalProducts)
		printStatus("In stock", "%d", stats.InStock)
		printStatus("Categories", "%d", stats.Categories)
		return nil
	},
}

var catalogGetCmd = &cobra.Command{
	Use:   "get <sku>",
	Short: "Show a single product as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/api/products/"+url.PathEscape(args[0]))
		if err != nil {
			return err
		}
		var p catalog.Product
		if err := decodeJSON(resp, &p); err != nil {
			return err
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(p)
	},
}

func init() {
	catalogImportCmd.Flags().String("file", "", "JSON file containing an array of products")
	catalogImportCmd.Flags().Int("batch", 100, "products per request")
	catalogCmd.AddCommand(catalogImportCmd)
	catalogCmd.AddCommand(catalogStatsCmd)
	catalogCmd.AddCommand(catalogGetCmd)
}

// --- history ---

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent assistant queries",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), fmt.Sprintf("/api/ai/history?limit=%d", limit))
		if err != nil {
			return err
		}
		var entries []history.Entry
		if err := decodeJSON(resp, &entries); err != nil {
			return err
		}

		if len(entries) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No history recorded.")
			return nil
		}
		for _, e := range entries {
			query := e.Query
			if len(query) > 80 {
				query = query[:80] + "..."
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s  %-13s  %2d  %s\n",
				cyan.Sprint(e.CreatedAt.Local().Format("2006-01-02 15:04")),
				e.Source,
				e.Results,
				query,
			)
		}
		return nil
	},
}

func init() {
	historyCmd.Flags().Int("limit", 20, "maximum number of entries to list")
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		for _, k := range config.ShowAll(cfg) {
			fmt.Fprintf(cmd.OutOrStdout(), "  %s = %s\n", bold.Sprint(k.Key), k.Value)
		}
		printStatus("Config file", "%s", config.ConfigFilePath())
		printStatus("Secrets file", "%s", config.SecretsFilePath())
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long: "Set a configuration value in the config file. Valid keys:\n  " +
		strings.Join(config.ValidKeys(), "\n  "),
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		if err := config.SetKey(key, value); err != nil {
			return err
		}

		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}
