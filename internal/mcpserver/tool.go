package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/mgomes/nestfind/internal/search"
)

// SearchResponse is the JSON body of a nest_search result.
type SearchResponse struct {
	Query   string          `json:"query"`
	Results []IndexResponse `json:"results"`
	Total   int             `json:"total"`
}

type IndexResponse struct {
	Index      string        `json:"index"`
	TotalPages int           `json:"total_pages"`
	Hits       []HitResponse `json:"hits"`
}

type HitResponse struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	URL    string `json:"url,omitempty"`
	Action string `json:"action,omitempty"`
	Target string `json:"target,omitempty"`
	Fields any    `json:"fields"`
}

// AddSearchTool registers nest_search with s.
func AddSearchTool(s *server.MCPServer, fetcher search.Fetcher, opts search.Options, log *slog.Logger) {
	tool := mcp.NewTool(
		"nest_search",
		mcp.WithDescription("Search community chapters, projects, members, organizations and events. Returns hits grouped by index with the page or link each hit opens."),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Search text (e.g., 'zap', 'london chapter')")),
		mcp.WithArray("indexes",
			mcp.Description("Restrict the search to these indexes: chapters, projects, users, organizations, events. Leave empty to search all.")),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
	)

	s.AddTool(tool, createSearchHandler(fetcher, opts, log))
}

func createSearchHandler(fetcher search.Fetcher, opts search.Options, log *slog.Logger) func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if log == nil {
		log = slog.Default()
	}
	if len(opts.IndexNames) == 0 {
		opts.IndexNames = search.DefaultIndexNames
	}
	if opts.PageSize <= 0 {
		opts.PageSize = search.DefaultPageSize
	}

	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		argsMap, ok := request.Params.Arguments.(map[string]interface{})
		if !ok {
			return mcp.NewToolResultError("invalid arguments format"), nil
		}

		query, ok := argsMap["query"].(string)
		if !ok || search.NormalizeQuery(query) == "" {
			return mcp.NewToolResultError("query parameter is required"), nil
		}

		indexNames := opts.IndexNames
		if raw, ok := argsMap["indexes"].([]interface{}); ok && len(raw) > 0 {
			indexNames = make([]string, 0, len(raw))
			for _, v := range raw {
				name, ok := v.(string)
				if !ok || !slices.Contains(opts.IndexNames, name) {
					return mcp.NewToolResultError(fmt.Sprintf("unknown index %v", v)), nil
				}
				indexNames = append(indexNames, name)
			}
		}

		d := search.NewDispatcher(fetcher, indexNames, opts.PageSize, opts.FetchTimeout, log)
		set, err := search.Once(ctx, d, query)
		if err != nil {
			return nil, fmt.Errorf("search failed: %w", err)
		}

		return marshalToolResponse(NewSearchResponse(search.NormalizeQuery(query), set))
	}
}

// NewSearchResponse flattens set into its JSON form, resolving each hit's
// navigation action.
func NewSearchResponse(query string, set search.SuggestionSet) *SearchResponse {
	resp := &SearchResponse{
		Query:   query,
		Results: make([]IndexResponse, 0, len(set.Results)),
		Total:   set.HitCount(),
	}

	for _, r := range set.Results {
		ir := IndexResponse{
			Index:      r.IndexName,
			TotalPages: r.TotalPages,
			Hits:       make([]HitResponse, 0, len(r.Hits)),
		}
		for _, h := range r.Hits {
			hr := HitResponse{
				ID:     h.ID(),
				Name:   h.DisplayName(),
				URL:    h.Link(),
				Fields: h,
			}
			if action, err := search.Resolve(h, r.IndexName); err == nil {
				hr.Action = action.Kind.String()
				hr.Target = action.Target
			}
			ir.Hits = append(ir.Hits, hr)
		}
		resp.Results = append(resp.Results, ir)
	}
	return resp
}

func marshalToolResponse(response interface{}) (*mcp.CallToolResult, error) {
	jsonData, err := json.Marshal(response)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal response: %w", err)
	}
	return mcp.NewToolResultText(string(jsonData)), nil
}
