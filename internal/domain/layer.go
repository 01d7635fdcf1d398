package domain

// Layer groups tools, categories and sub-categories under one activation name.
type Layer struct {
	Name           string           `json:"name" yaml:"name"`
	Description    string           `json:"description" yaml:"description"`
	Categories     []Category       `json:"categories,omitempty" yaml:"categories"`
	SubCategories  []SubCategoryRef `json:"subCategories,omitempty" yaml:"-"`
	Tools          []string         `json:"tools,omitempty" yaml:"tools"`
	ExclusiveGroup string           `json:"exclusiveGroup,omitempty" yaml:"exclusiveGroup"`
	DependsOn      []string         `json:"dependsOn,omitempty" yaml:"dependsOn"`
	Default        bool             `json:"default,omitempty" yaml:"default"`
}

// SubCategoryLayerName is the implicit layer name for a sub-category activation.
func SubCategoryLayerName(ref SubCategoryRef) string {
	return ref.String()
}

// LayerStatus reports a layer and whether it is currently active.
type LayerStatus struct {
	Name           string `json:"name"`
	ExclusiveGroup string `json:"exclusiveGroup,omitempty"`
	Active         bool   `json:"active"`
	Default        bool   `json:"default,omitempty"`
	Implicit       bool   `json:"implicit,omitempty"`
	ToolCount      int    `json:"toolCount"`
}
