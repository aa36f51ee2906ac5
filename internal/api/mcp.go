package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/reliabledashboard/partsrelay/internal/relay"
	"github.com/reliabledashboard/partsrelay/internal/storage"
)

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Relay Asker
	Store CatalogStore
}

// NewMCPServer creates an MCP server exposing the product assistant and
// catalog lookups.
func NewMCPServer(deps MCPDeps, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"partsrelay",
		version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("partsrelay: appliance-parts catalog search and product assistant."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("ask_parts",
			mcp.WithDescription("Ask the product assistant a natural-language question about the parts catalog."),
			mcp.WithString("query", mcp.Description("Question or search phrase"), mcp.Required()),
		),
		mcpAskParts(deps),
	)

	s.AddTool(
		mcp.NewTool("lookup_product",
			mcp.WithDescription("Fetch one catalog product by SKU."),
			mcp.WithString("sku", mcp.Description("Exact product SKU"), mcp.Required()),
		),
		mcpLookupProduct(deps),
	)

	s.AddTool(
		mcp.NewTool("catalog_stats",
			mcp.WithDescription("Return total products, in-stock count and category count."),
		),
		mcpCatalogStats(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"catalog://stats",
			"Catalog Stats",
			mcp.WithResourceDescription("Catalog summary counts as JSON"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceStats(deps),
	)

	return s
}

func mcpAskParts(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query, err := req.RequireString("query")
		if err != nil {
			return mcpError("query is required"), nil
		}

		resp, _, err := deps.Relay.Ask(ctx, query)
		if errors.Is(err, relay.ErrInvalidInput) {
			return mcpError("query must not be empty"), nil
		}
		if err != nil {
			return mcpError(fmt.Sprintf("ask failed: %v", err)), nil
		}
		return mcpJSON(resp)
	}
}

func mcpLookupProduct(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		sku, err := req.RequireString("sku")
		if err != nil {
			return mcpError("sku is required"), nil
		}

		p, err := deps.Store.GetProduct(ctx, sku)
		if errors.Is(err, storage.ErrNotFound) {
			return mcpError(fmt.Sprintf("product %s not found", sku)), nil
		}
		if err != nil {
			return mcpError(fmt.Sprintf("lookup failed: %v", err)), nil
		}
		return mcpJSON(p)
	}
}

func mcpCatalogStats(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		stats, err := deps.Store.Stats(ctx)
		if err != nil {
			return mcpError(fmt.Sprintf("stats failed: %v", err)), nil
		}
		return mcpJSON(stats)
	}
}

func mcpResourceStats(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		stats, err := deps.Store.Stats(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to get stats: %w", err)
		}

		b, err := json.Marshal(stats)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal stats: %w", err)
		}

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
	}
}

func mcpJSON(v any) (*mcp.CallToolResult, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return mcpError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcpText(string(b)), nil
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
