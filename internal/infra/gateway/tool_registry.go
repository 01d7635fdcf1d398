package gateway

import (
	"sort"
	"sync"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"capgate/internal/domain"
	"capgate/internal/infra/hashutil"
	"capgate/internal/infra/mcpcodec"
)

// toolRegistry mirrors the registry's active set onto the MCP server.
type toolRegistry struct {
	server     *mcp.Server
	handler    func(desc domain.ToolDescriptor) mcp.ToolHandler
	logger     *zap.Logger
	mu         sync.Mutex
	reserved   map[string]struct{}
	registered map[string]*mcp.Tool
	etag       string
}

func newToolRegistry(server *mcp.Server, handler func(desc domain.ToolDescriptor) mcp.ToolHandler, reserved []string, logger *zap.Logger) *toolRegistry {
	if logger == nil {
		logger = zap.NewNop()
	}
	reservedSet := make(map[string]struct{}, len(reserved))
	for _, name := range reserved {
		reservedSet[name] = struct{}{}
	}
	return &toolRegistry{
		server:     server,
		handler:    handler,
		logger:     logger.Named("tool_registry"),
		reserved:   reservedSet,
		registered: make(map[string]*mcp.Tool),
	}
}

// Sync registers newly active tools and removes the ones no longer active.
// It returns the names added and removed.
func (r *toolRegistry) Sync(active []domain.ToolDescriptor) (added, removed []string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	next := make(map[string]*mcp.Tool, len(active))
	for _, desc := range active {
		if desc.Name == "" {
			continue
		}
		if _, ok := r.reserved[desc.Name]; ok {
			r.logger.Warn("skip tool shadowing a meta tool", zap.String("tool", desc.Name))
			continue
		}
		if tool, ok := r.registered[desc.Name]; ok {
			next[desc.Name] = tool
			continue
		}
		if desc.InputSchema != nil && !mcpcodec.IsObjectSchema(desc.InputSchema) {
			r.logger.Warn("replace non-object input schema", zap.String("tool", desc.Name))
		}
		tool := mcpcodec.ToolToMCP(desc)
		r.server.AddTool(tool, r.handler(desc))
		next[desc.Name] = tool
		added = append(added, desc.Name)
	}

	for name := range r.registered {
		if _, ok := next[name]; !ok {
			removed = append(removed, name)
		}
	}
	if len(removed) > 0 {
		sort.Strings(removed)
		r.server.RemoveTools(removed...)
	}

	r.registered = next
	if len(added) > 0 || len(removed) > 0 || r.etag == "" {
		r.etag = hashutil.ToolETag(r.logger, r.sortedTools())
	}
	return added, removed
}

// ETag fingerprints the registered catalog tools.
func (r *toolRegistry) ETag() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.etag
}

func (r *toolRegistry) sortedTools() []*mcp.Tool {
	names := make([]string, 0, len(r.registered))
	for name := range r.registered {
		names = append(names, name)
	}
	sort.Strings(names)
	tools := make([]*mcp.Tool, 0, len(names))
	for _, name := range names {
		tools = append(tools, r.registered[name])
	}
	return tools
}

// Registered lists the catalog tools currently on the server.
func (r *toolRegistry) Registered() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.registered))
	for name := range r.registered {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
