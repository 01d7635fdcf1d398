package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"capgate/internal/domain"
	"capgate/internal/infra/telemetry"
	"capgate/internal/registry"
)

const (
	DiscoverToolName   = "discover"
	ActivateToolName   = "activate"
	DeactivateToolName = "deactivate"
	SearchToolName     = "search"
)

// Registry is the part of the tool registry the gateway drives.
type Registry interface {
	Discover(ctx context.Context, req registry.DiscoverRequest) registry.DiscoverResponse
	Activate(ctx context.Context, req registry.ActivateRequest) registry.ActivateResponse
	Deactivate(ctx context.Context, req registry.DeactivateRequest) registry.DeactivateResponse
	Search(ctx context.Context, req registry.SearchRequest) registry.SearchResponse
	RecordCall(ctx context.Context, name string) error
	Active() []domain.ToolDescriptor
	OnChange(listener registry.ChangeListener)
}

type Options struct {
	Name    string
	Version string
}

// Gateway serves the registry over MCP: four meta tools plus whatever
// catalog tools are active.
type Gateway struct {
	logger   *zap.Logger
	registry Registry
	server   *mcp.Server
	tools    *toolRegistry
}

func NewGateway(reg Registry, opts Options, logger *zap.Logger) *Gateway {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Name == "" {
		opts.Name = "capgate"
	}
	if opts.Version == "" {
		opts.Version = "dev"
	}
	g := &Gateway{
		logger:   logger.Named("gateway").With(zap.String(telemetry.FieldLogSource, telemetry.LogSourceGateway)),
		registry: reg,
	}
	g.server = mcp.NewServer(&mcp.Implementation{
		Name:    opts.Name,
		Version: opts.Version,
	}, &mcp.ServerOptions{HasTools: true})

	g.registerMetaTools()
	g.tools = newToolRegistry(g.server, g.toolHandler, MetaToolNames(), g.logger)
	reg.OnChange(func(event registry.ChangeEvent) {
		g.sync(event.Active)
	})
	g.sync(reg.Active())
	return g
}

// MetaToolNames lists the always-visible tools.
func MetaToolNames() []string {
	return []string{DiscoverToolName, ActivateToolName, DeactivateToolName, SearchToolName}
}

// Server exposes the underlying MCP server.
func (g *Gateway) Server() *mcp.Server {
	return g.server
}

// Visible lists the catalog tools currently registered on the server.
func (g *Gateway) Visible() []string {
	return g.tools.Registered()
}

// ETag fingerprints the visible catalog tools; it changes whenever the list
// a client would fetch changes.
func (g *Gateway) ETag() string {
	return g.tools.ETag()
}

// Run serves the stdio transport until ctx ends or the client disconnects.
func (g *Gateway) Run(ctx context.Context) error {
	g.logger.Info("gateway starting (stdio transport)")
	err := g.server.Run(ctx, &mcp.StdioTransport{})
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (g *Gateway) sync(active []domain.ToolDescriptor) {
	added, removed := g.tools.Sync(active)
	if len(added) == 0 && len(removed) == 0 {
		return
	}
	g.logger.Debug("visible tools updated",
		telemetry.EventField(telemetry.EventToolSync),
		zap.Strings("added", added),
		zap.Strings("removed", removed),
		zap.String("etag", g.tools.ETag()),
	)
}

func (g *Gateway) toolHandler(desc domain.ToolDescriptor) mcp.ToolHandler {
	name := desc.Name
	handler := desc.Handler
	return func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		start := time.Now()
		ctx, _ = telemetry.EnsureRequestMeta(ctx, name)
		logger := telemetry.LoggerWithRequest(ctx, g.logger)

		if err := g.registry.RecordCall(ctx, name); err != nil {
			return errorResult(err), nil
		}
		if handler == nil {
			return errorResult(domain.E(domain.CodeFailedPrecond, "call tool", name+" has no handler", nil)), nil
		}
		var args json.RawMessage
		if req != nil && req.Params != nil {
			args = req.Params.Arguments
		}
		out, err := handler(ctx, args)
		logger.Debug("tool call finished",
			telemetry.EventField(telemetry.EventToolCall),
			telemetry.ToolField(name),
			telemetry.DurationField(time.Since(start)),
			zap.Bool("ok", err == nil),
		)
		if err != nil {
			return errorResult(err), nil
		}
		return &mcp.CallToolResult{Content: []mcp.Content{&mcp.TextContent{Text: out}}}, nil
	}
}

func errorResult(err error) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{&mcp.TextContent{Text: err.Error()}},
	}
}

func jsonResult(value any, ok bool) (*mcp.CallToolResult, any, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, nil, err
	}
	return &mcp.CallToolResult{
		IsError: !ok,
		Content: []mcp.Content{&mcp.TextContent{Text: string(raw)}},
	}, nil, nil
}
