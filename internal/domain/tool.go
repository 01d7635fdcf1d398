package domain

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"
)

// ToolFunc performs the work behind a catalog tool. The registry never inspects it.
type ToolFunc func(ctx context.Context, args json.RawMessage) (string, error)

// ToolDescriptor is the immutable identity of a catalog tool.
// Activation state lives in the catalog store, not here.
type ToolDescriptor struct {
	Name            string             `json:"name"`
	Description     string             `json:"description"`
	InputSchema     *jsonschema.Schema `json:"inputSchema,omitempty"`
	Category        Category           `json:"category"`
	SubCategory     string             `json:"subCategory,omitempty"`
	Tags            []string           `json:"tags,omitempty"`
	EstimatedTokens int                `json:"estimatedTokens"`
	LoadByDefault   bool               `json:"loadByDefault,omitempty"`
	Priority        int                `json:"priority"`
	DependsOn       []string           `json:"dependsOn,omitempty"`
	Handler         ToolFunc           `json:"-"`
}

// SubCategoryRef returns the descriptor's sub-category reference, if any.
func (d ToolDescriptor) SubCategoryRef() (SubCategoryRef, bool) {
	if d.SubCategory == "" {
		return SubCategoryRef{}, false
	}
	return SubCategoryRef{Category: d.Category, Name: d.SubCategory}, true
}

// HasTag reports whether the descriptor carries tag (case-insensitive).
func (d ToolDescriptor) HasTag(tag string) bool {
	tag = strings.ToLower(strings.TrimSpace(tag))
	for _, t := range d.Tags {
		if strings.ToLower(t) == tag {
			return true
		}
	}
	return false
}

// ObjectSchema returns the input schema, defaulting to an empty object schema.
func (d ToolDescriptor) ObjectSchema() *jsonschema.Schema {
	if d.InputSchema == nil {
		return &jsonschema.Schema{Type: "object"}
	}
	return d.InputSchema
}

// bytesPerToken approximates how many serialized bytes one context token covers.
const bytesPerToken = 4

// EstimateTokens derives a weight from the serialized name, description and schema.
// Declared weights win; this only fills descriptors registered without one.
func EstimateTokens(d ToolDescriptor) int {
	size := len(d.Name) + len(d.Description)
	if d.InputSchema != nil {
		if raw, err := json.Marshal(d.InputSchema); err == nil {
			size += len(raw)
		}
	}
	tokens := (size + bytesPerToken - 1) / bytesPerToken
	if tokens < 1 {
		tokens = 1
	}
	return tokens
}
