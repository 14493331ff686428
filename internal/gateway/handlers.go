package gateway

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/pleaseai/mcp-please/internal/logger"
	"github.com/pleaseai/mcp-please/internal/search"
	"github.com/pleaseai/mcp-please/internal/toolsdata"
)

// defaultTopK and defaultThreshold mirror the CLI's own search defaults so
// the gateway and "please search" behave identically when a caller omits them.
const (
	defaultTopK      = 10
	defaultThreshold = 0.0
)

// handler holds the Server reference each meta-tool call routes through.
type handler struct {
	server *Server
}

// registerMetaTools adds search_tools, list_tools, get_tool, and
// tool_search_info to mcpServer (spec §4.L). call_tool is intentionally not
// registered here; execution is routed through the CLI.
func registerMetaTools(mcpServer *server.MCPServer, h *handler) {
	mcpServer.AddTool(mcp.Tool{
		Name:        "search_tools",
		Description: "Search the federated tool index by query text, returning ranked tool matches.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"query": map[string]any{
					"type":        "string",
					"description": "Search query text",
				},
				"mode": map[string]any{
					"type":        "string",
					"description": "Search mode: regex, bm25, embedding, or hybrid",
					"enum":        []any{"regex", "bm25", "embedding", "hybrid"},
				},
				"top_k": map[string]any{
					"type":        "integer",
					"description": "Maximum number of results to return",
				},
				"threshold": map[string]any{
					"type":        "number",
					"description": "Minimum score a result must exceed to be included",
				},
			},
			Required: []string{"query"},
		},
	}, h.searchTools)

	mcpServer.AddTool(mcp.Tool{
		Name:        "list_tools",
		Description: "List every tool in the merged index, paginated.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"limit": map[string]any{
					"type":        "integer",
					"description": "Maximum number of tools to return",
				},
				"offset": map[string]any{
					"type":        "integer",
					"description": "Number of tools to skip before collecting results",
				},
			},
		},
	}, h.listTools)

	mcpServer.AddTool(mcp.Tool{
		Name:        "get_tool",
		Description: "Return a tool's full schema and a CLI-usage template for invoking it outside MCP.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"name": map[string]any{
					"type":        "string",
					"description": "Fully-qualified (prefixed) tool name",
				},
			},
			Required: []string{"name"},
		},
	}, h.getTool)

	mcpServer.AddTool(mcp.Tool{
		Name:        "tool_search_info",
		Description: "Return index metadata and which search modes are currently available.",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]any{},
		},
	}, h.toolSearchInfo)
}

// searchToolsArgs mirrors search_tools' input schema.
type searchToolsArgs struct {
	Query     string  `json:"query"`
	Mode      string  `json:"mode,omitempty"`
	TopK      int     `json:"top_k,omitempty"`
	Threshold float64 `json:"threshold,omitempty"`
}

func (h *handler) searchTools(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	requestID := uuid.NewString()
	var args searchToolsArgs
	if err := request.BindArguments(&args); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid arguments: %v", err)), nil
	}
	logger.Debugw("gateway: search_tools", "requestId", requestID, "query", args.Query, "mode", args.Mode)

	merged, err := h.server.cache.Get()
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("loading index: %v", err)), nil
	}

	orch, err := OrchestratorFor(merged)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	mode := search.Mode(args.Mode)
	if mode == "" {
		mode = search.ModeBM25
	}
	topK := args.TopK
	if topK <= 0 {
		topK = defaultTopK
	}

	result, err := orch.Search(ctx, mode, merged.Tools, search.Query{
		Text:      args.Query,
		TopK:      topK,
		Threshold: args.Threshold,
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultStructuredOnly(map[string]any{
		"tools":        searchResults(result.Hits),
		"total":        len(result.Hits),
		"searchTimeMs": result.Duration.Milliseconds(),
	}), nil
}

// searchResult is the per-hit shape returned to the host by search_tools
// (spec §4.J "{name, title?, description, score, matchType}").
type searchResult struct {
	Name        string  `json:"name"`
	Title       string  `json:"title,omitempty"`
	Description string  `json:"description,omitempty"`
	Score       float64 `json:"score"`
	MatchType   string  `json:"matchType"`
}

func searchResults(hits []search.Hit) []searchResult {
	out := make([]searchResult, 0, len(hits))
	for _, h := range hits {
		out = append(out, searchResult{
			Name:        h.Tool.Tool.Name,
			Title:       h.Tool.Tool.Title,
			Description: h.Tool.Tool.Description,
			Score:       h.Score,
			MatchType:   h.MatchType,
		})
	}
	return out
}

type listToolsArgs struct {
	Limit  int `json:"limit,omitempty"`
	Offset int `json:"offset,omitempty"`
}

type toolSummary struct {
	Name        string `json:"name"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
}

func (h *handler) listTools(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args listToolsArgs
	if err := request.BindArguments(&args); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid arguments: %v", err)), nil
	}

	merged, err := h.server.cache.Get()
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("loading index: %v", err)), nil
	}

	offset := args.Offset
	if offset < 0 {
		offset = 0
	}
	if offset > len(merged.Tools) {
		offset = len(merged.Tools)
	}
	end := len(merged.Tools)
	if args.Limit > 0 && offset+args.Limit < end {
		end = offset + args.Limit
	}

	page := merged.Tools[offset:end]
	summaries := make([]toolSummary, 0, len(page))
	for _, t := range page {
		summaries = append(summaries, toolSummary{Name: t.Tool.Name, Title: t.Tool.Title, Description: t.Tool.Description})
	}

	return mcp.NewToolResultStructuredOnly(map[string]any{
		"tools":  summaries,
		"total":  len(merged.Tools),
		"limit":  args.Limit,
		"offset": offset,
	}), nil
}

type getToolArgs struct {
	Name string `json:"name"`
}

func (h *handler) getTool(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args getToolArgs
	if err := request.BindArguments(&args); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid arguments: %v", err)), nil
	}

	merged, err := h.server.cache.Get()
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("loading index: %v", err)), nil
	}

	var found *toolsdata.ToolDefinition
	for _, t := range merged.Tools {
		if t.Tool.Name == args.Name {
			def := t.Tool
			found = &def
			break
		}
	}
	if found == nil {
		return mcp.NewToolResultError(fmt.Sprintf("no tool named %q in the index", args.Name)), nil
	}

	return mcp.NewToolResultStructuredOnly(map[string]any{
		"tool":         found,
		"cliUsage":     UsageTemplate(*found),
	}), nil
}

func (h *handler) toolSearchInfo(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	merged, err := h.server.cache.Get()
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("loading index: %v", err)), nil
	}

	return mcp.NewToolResultStructuredOnly(map[string]any{
		"totalTools":    len(merged.Tools),
		"hasEmbeddings": merged.HasEmbeddings,
		"embeddingTag":  merged.EmbeddingTag,
		"availableModes": AvailableModes(merged),
		"bm25Stats":     merged.Stats,
	}), nil
}
