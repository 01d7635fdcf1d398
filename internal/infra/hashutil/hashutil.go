package hashutil

import (
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"capgate/internal/infra/mcpcodec"
)

// ToolETag returns an ETag for a tool list and logs on failure.
func ToolETag(logger *zap.Logger, tools []*mcp.Tool) string {
	return hashWithLogger(logger, "tool", func() (string, error) {
		return mcpcodec.HashTools(tools)
	})
}

func hashWithLogger(logger *zap.Logger, label string, fn func() (string, error)) string {
	etag, err := fn()
	if err != nil {
		if logger != nil {
			logger.Warn(fmt.Sprintf("%s hash failed", label), zap.Error(err))
		}
		return ""
	}
	return etag
}
