package mcpcodec

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"capgate/internal/domain"
)

// Keys of the catalog metadata carried in a listed tool's _meta.
const (
	MetaCategory        = "capgate/category"
	MetaSubCategory     = "capgate/subCategory"
	MetaTags            = "capgate/tags"
	MetaEstimatedTokens = "capgate/estimatedTokens"
	MetaDependsOn       = "capgate/dependsOn"
)

// ToolToMCP converts a catalog descriptor to the tool a client lists. Input
// schemas that are not objects become an empty object schema.
func ToolToMCP(desc domain.ToolDescriptor) *mcp.Tool {
	schema := desc.InputSchema
	if !IsObjectSchema(schema) {
		schema = &jsonschema.Schema{Type: "object"}
	}
	return &mcp.Tool{
		Meta:        metaFor(desc),
		Annotations: annotationsFor(desc),
		Description: desc.Description,
		InputSchema: schema,
		Name:        desc.Name,
	}
}

// IsObjectSchema reports whether schema describes a JSON object.
func IsObjectSchema(schema *jsonschema.Schema) bool {
	if schema == nil {
		return false
	}
	return strings.EqualFold(schema.Type, "object")
}

// MarshalTool encodes a tool as MCP JSON.
func MarshalTool(tool *mcp.Tool) ([]byte, error) {
	if tool == nil {
		return nil, fmt.Errorf("tool is nil")
	}
	return json.Marshal(tool)
}

// HashTools returns a deterministic hash for an ordered tool list.
func HashTools(tools []*mcp.Tool) (string, error) {
	hasher := sha256.New()
	for i, tool := range tools {
		raw, err := MarshalTool(tool)
		if err != nil {
			return "", fmt.Errorf("marshal tool %d: %w", i, err)
		}
		_, _ = hasher.Write(raw)
		_, _ = hasher.Write([]byte{0})
	}
	return hex.EncodeToString(hasher.Sum(nil)), nil
}

func metaFor(desc domain.ToolDescriptor) mcp.Meta {
	meta := mcp.Meta{
		MetaCategory:        desc.Category.String(),
		MetaEstimatedTokens: desc.EstimatedTokens,
	}
	if desc.SubCategory != "" {
		meta[MetaSubCategory] = desc.SubCategory
	}
	if len(desc.Tags) > 0 {
		meta[MetaTags] = append([]string(nil), desc.Tags...)
	}
	if len(desc.DependsOn) > 0 {
		meta[MetaDependsOn] = append([]string(nil), desc.DependsOn...)
	}
	return meta
}

// annotationsFor derives hints from well-known tags.
func annotationsFor(desc domain.ToolDescriptor) *mcp.ToolAnnotations {
	readOnly := desc.HasTag("status") || desc.HasTag("list") || desc.HasTag("search")
	if !readOnly {
		return nil
	}
	return &mcp.ToolAnnotations{ReadOnlyHint: true, IdempotentHint: true}
}
