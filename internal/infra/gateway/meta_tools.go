package gateway

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"capgate/internal/registry"
)

type discoverInput struct {
	Type    string `json:"type,omitempty" jsonschema:"one of categories, active, stats, recommendations, tree (default categories)"`
	Context string `json:"context,omitempty" jsonschema:"free-text task description, required for recommendations"`
}

type activateInput struct {
	Tools         []string `json:"tools,omitempty" jsonschema:"tool names to activate"`
	Categories    []string `json:"categories,omitempty" jsonschema:"category ids to activate, e.g. speech"`
	SubCategories []string `json:"subCategories,omitempty" jsonschema:"category/sub pairs to activate, e.g. speech/synthesis"`
	Layers        []string `json:"layers,omitempty" jsonschema:"named layers to activate"`
	Exclusive     bool     `json:"exclusive,omitempty" jsonschema:"deactivate every non-default tool outside this request"`
}

type deactivateInput struct {
	Tools         []string `json:"tools,omitempty" jsonschema:"tool names to deactivate"`
	Categories    []string `json:"categories,omitempty" jsonschema:"category ids to deactivate"`
	SubCategories []string `json:"subCategories,omitempty" jsonschema:"category/sub pairs to deactivate"`
	Layers        []string `json:"layers,omitempty" jsonschema:"named layers to deactivate"`
	All           bool     `json:"all,omitempty" jsonschema:"deactivate everything except default tools and layers"`
	Cascade       *bool    `json:"cascade,omitempty" jsonschema:"also remove dependencies nothing else needs"`
}

type searchFilterInput struct {
	Categories []string `json:"categories,omitempty" jsonschema:"restrict to these category ids"`
	Tags       []string `json:"tags,omitempty" jsonschema:"match tools carrying any of these tags"`
	Active     *bool    `json:"active,omitempty" jsonschema:"restrict to active or inactive tools"`
}

type searchInput struct {
	Query  string             `json:"query,omitempty" jsonschema:"text matched against names, tags and descriptions"`
	Filter *searchFilterInput `json:"filter,omitempty" jsonschema:"optional result filter"`
	Limit  int                `json:"limit,omitempty" jsonschema:"maximum results (default 25)"`
}

func (g *Gateway) registerMetaTools() {
	mcp.AddTool(g.server, &mcp.Tool{
		Name:        DiscoverToolName,
		Description: "Explore the tool catalog without loading it. Types: categories, active, stats, recommendations (needs context), tree.",
	}, g.handleDiscover)
	mcp.AddTool(g.server, &mcp.Tool{
		Name:        ActivateToolName,
		Description: "Make tools visible by name, category, sub-category or layer. Dependencies are pulled in and the context budget is enforced.",
	}, g.handleActivate)
	mcp.AddTool(g.server, &mcp.Tool{
		Name:        DeactivateToolName,
		Description: "Hide tools by name, category, sub-category or layer to free context budget.",
	}, g.handleDeactivate)
	mcp.AddTool(g.server, &mcp.Tool{
		Name:        SearchToolName,
		Description: "Search the full catalog, including inactive tools, by name, tag or description.",
	}, g.handleSearch)
}

func (g *Gateway) handleDiscover(ctx context.Context, _ *mcp.CallToolRequest, in discoverInput) (*mcp.CallToolResult, any, error) {
	resp := g.registry.Discover(ctx, registry.DiscoverRequest{
		Type:    registry.DiscoverKind(in.Type),
		Context: in.Context,
	})
	return jsonResult(resp, resp.Success)
}

func (g *Gateway) handleActivate(ctx context.Context, _ *mcp.CallToolRequest, in activateInput) (*mcp.CallToolResult, any, error) {
	resp := g.registry.Activate(ctx, registry.ActivateRequest{
		Tools:         in.Tools,
		Categories:    in.Categories,
		SubCategories: in.SubCategories,
		Layers:        in.Layers,
		Exclusive:     in.Exclusive,
	})
	return jsonResult(resp, resp.Success)
}

func (g *Gateway) handleDeactivate(ctx context.Context, _ *mcp.CallToolRequest, in deactivateInput) (*mcp.CallToolResult, any, error) {
	resp := g.registry.Deactivate(ctx, registry.DeactivateRequest{
		Tools:         in.Tools,
		Categories:    in.Categories,
		SubCategories: in.SubCategories,
		Layers:        in.Layers,
		All:           in.All,
		Cascade:       in.Cascade,
	})
	return jsonResult(resp, resp.Success)
}

func (g *Gateway) handleSearch(ctx context.Context, _ *mcp.CallToolRequest, in searchInput) (*mcp.CallToolResult, any, error) {
	req := registry.SearchRequest{Query: in.Query, Limit: in.Limit}
	if in.Filter != nil {
		req.Filter = registry.SearchFilter{
			Categories: in.Filter.Categories,
			Tags:       in.Filter.Tags,
			Active:     in.Filter.Active,
		}
	}
	resp := g.registry.Search(ctx, req)
	return jsonResult(resp, resp.Success)
}
