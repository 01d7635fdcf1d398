package registry

import (
	"errors"

	"capgate/internal/domain"
)

// ActivateRequest names what the client wants visible.
type ActivateRequest struct {
	Tools         []string `json:"tools,omitempty"`
	Categories    []string `json:"categories,omitempty"`
	SubCategories []string `json:"subCategories,omitempty"`
	Layers        []string `json:"layers,omitempty"`
	Exclusive     bool     `json:"exclusive,omitempty"`
}

func (r ActivateRequest) empty() bool {
	return len(r.Tools) == 0 && len(r.Categories) == 0 && len(r.SubCategories) == 0 && len(r.Layers) == 0
}

// DeactivateRequest names what the client wants hidden.
type DeactivateRequest struct {
	Tools         []string `json:"tools,omitempty"`
	Categories    []string `json:"categories,omitempty"`
	SubCategories []string `json:"subCategories,omitempty"`
	Layers        []string `json:"layers,omitempty"`
	All           bool     `json:"all,omitempty"`
	// Cascade overrides the profile's cascade cleanup setting.
	Cascade *bool `json:"cascade,omitempty"`
}

func (r DeactivateRequest) empty() bool {
	return !r.All && len(r.Tools) == 0 && len(r.Categories) == 0 && len(r.SubCategories) == 0 && len(r.Layers) == 0
}

// Failure is a structured, conversational error.
type Failure struct {
	Code        domain.ErrorCode `json:"code"`
	Message     string           `json:"message"`
	Suggestions []string         `json:"suggestions,omitempty"`
	Valid       []string         `json:"valid,omitempty"`
}

// ActivateResponse reports the outcome of an activation.
type ActivateResponse struct {
	Success       bool                    `json:"success"`
	Activated     []string                `json:"activated"`
	Deactivated   []string                `json:"deactivated,omitempty"`
	Evicted       []string                `json:"evicted,omitempty"`
	Dependencies  []string                `json:"dependencies,omitempty"`
	Layers        []string                `json:"activeLayers,omitempty"`
	ContextWeight int                     `json:"contextWeight"`
	Budget        domain.BudgetState      `json:"budget"`
	Condition     *domain.BudgetCondition `json:"budgetCondition,omitempty"`
	Warnings      []string                `json:"warnings,omitempty"`
	Message       string                  `json:"message,omitempty"`
	Failure       *Failure                `json:"failure,omitempty"`
}

// DeactivateResponse reports the outcome of a deactivation.
type DeactivateResponse struct {
	Success           bool               `json:"success"`
	Deactivated       []string           `json:"deactivated"`
	DeactivatedLayers []string           `json:"deactivatedLayers,omitempty"`
	ContextWeight     int                `json:"contextWeight"`
	Budget            domain.BudgetState `json:"budget"`
	Message           string             `json:"message,omitempty"`
	Failure           *Failure           `json:"failure,omitempty"`
}

// SearchFilter narrows search results.
type SearchFilter struct {
	Categories []string `json:"categories,omitempty"`
	Tags       []string `json:"tags,omitempty"`
	Active     *bool    `json:"active,omitempty"`
}

// SearchRequest is a text search over the catalog.
type SearchRequest struct {
	Query  string       `json:"query"`
	Filter SearchFilter `json:"filter,omitempty"`
	Limit  int          `json:"limit,omitempty"`
}

// MatchKind says which field matched a search query.
type MatchKind string

const (
	MatchExactName   MatchKind = "exact"
	MatchName        MatchKind = "name"
	MatchTag         MatchKind = "tag"
	MatchDescription MatchKind = "description"
	MatchFilter      MatchKind = "filter"
)

// ToolSummary is the client view of one tool.
type ToolSummary struct {
	Name            string   `json:"name"`
	Description     string   `json:"description,omitempty"`
	Category        string   `json:"category"`
	SubCategory     string   `json:"subCategory,omitempty"`
	Tags            []string `json:"tags,omitempty"`
	EstimatedTokens int      `json:"estimatedTokens"`
	Priority        int      `json:"priority"`
	Active          bool     `json:"active"`
	Default         bool     `json:"default,omitempty"`
}

// SearchResult is one ranked search hit.
type SearchResult struct {
	ToolSummary
	Match MatchKind `json:"match"`
}

// SearchResponse lists ranked search hits.
type SearchResponse struct {
	Success bool           `json:"success"`
	Query   string         `json:"query"`
	Results []SearchResult `json:"results"`
	Total   int            `json:"total"`
	Failure *Failure       `json:"failure,omitempty"`
}

// DiscoverKind selects a discovery view.
type DiscoverKind string

const (
	DiscoverCategories      DiscoverKind = "categories"
	DiscoverActive          DiscoverKind = "active"
	DiscoverStats           DiscoverKind = "stats"
	DiscoverRecommendations DiscoverKind = "recommendations"
	DiscoverTree            DiscoverKind = "tree"
)

// DiscoverKinds lists every discovery view.
func DiscoverKinds() []string {
	return []string{
		string(DiscoverCategories),
		string(DiscoverActive),
		string(DiscoverStats),
		string(DiscoverRecommendations),
		string(DiscoverTree),
	}
}

// DiscoverRequest selects a view; Context feeds recommendations.
type DiscoverRequest struct {
	Type    DiscoverKind `json:"type"`
	Context string       `json:"context,omitempty"`
}

// CategorySummary describes one category with its activation status.
type CategorySummary struct {
	ID                    string   `json:"id"`
	DisplayName           string   `json:"displayName"`
	Description           string   `json:"description"`
	Status                string   `json:"status"`
	ToolCount             int      `json:"toolCount"`
	ActiveCount           int      `json:"activeCount"`
	EstimatedTokens       int      `json:"estimatedTokens"`
	DefaultActive         bool     `json:"defaultActive,omitempty"`
	SubCategories         []string `json:"subCategories,omitempty"`
	RequiredCredentials   []string `json:"requiredCredentials,omitempty"`
	CredentialsConfigured bool     `json:"credentialsConfigured"`
}

// ActiveSummary lists the visible tools.
type ActiveSummary struct {
	Tools         []ToolSummary `json:"tools"`
	Layers        []string      `json:"layers,omitempty"`
	ContextWeight int           `json:"contextWeight"`
}

// Stats aggregates budget, layer, catalog and audit figures.
type Stats struct {
	Profile      string                `json:"profile"`
	Mode         string                `json:"mode"`
	Budget       domain.BudgetState    `json:"budget"`
	TotalTools   int                   `json:"totalTools"`
	ActiveTools  int                   `json:"activeTools"`
	DefaultTools int                   `json:"defaultTools"`
	Categories   int                   `json:"categories"`
	Layers       []domain.LayerStatus  `json:"layers,omitempty"`
	MaxLayers    int                   `json:"maxActiveLayers,omitempty"`
	AuditEntries int                   `json:"auditEntries"`
	Patterns     []domain.UsagePattern `json:"patterns,omitempty"`
}

// Recommendation is a ranked tool suggestion for a free-text hint.
type Recommendation struct {
	Name        string   `json:"name"`
	Category    string   `json:"category"`
	SubCategory string   `json:"subCategory,omitempty"`
	Score       int      `json:"score"`
	Active      bool     `json:"active"`
	Matched     []string `json:"matched"`
	Hint        string   `json:"hint,omitempty"`
}

// TreeTool is a leaf of the catalog tree.
type TreeTool struct {
	Name            string `json:"name"`
	Active          bool   `json:"active"`
	EstimatedTokens int    `json:"estimatedTokens"`
}

// TreeSubCategory groups tools of one sub-category.
type TreeSubCategory struct {
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Hint        string     `json:"hint"`
	Tools       []TreeTool `json:"tools"`
}

// TreeCategory is one branch of the catalog tree.
type TreeCategory struct {
	ID            string            `json:"id"`
	DisplayName   string            `json:"displayName"`
	Hint          string            `json:"hint"`
	SubCategories []TreeSubCategory `json:"subCategories,omitempty"`
	Tools         []TreeTool        `json:"tools,omitempty"`
}

// DiscoverResponse carries exactly one populated view.
type DiscoverResponse struct {
	Success         bool              `json:"success"`
	Type            DiscoverKind      `json:"type"`
	Categories      []CategorySummary `json:"categories,omitempty"`
	Active          *ActiveSummary    `json:"active,omitempty"`
	Stats           *Stats            `json:"stats,omitempty"`
	Recommendations []Recommendation  `json:"recommendations,omitempty"`
	Tree            []TreeCategory    `json:"tree,omitempty"`
	Failure         *Failure          `json:"failure,omitempty"`
}

func failureFrom(err error, def domain.ErrorCode) *Failure {
	f := &Failure{
		Code:        domain.CodeFrom(err, def),
		Message:     err.Error(),
		Suggestions: domain.Suggestions(err),
	}
	var (
		cat   *domain.UnknownCategoryError
		sub   *domain.UnknownSubCategoryError
		layer *domain.UnknownLayerError
	)
	switch {
	case errors.As(err, &sub):
		f.Valid = sub.Valid
	case errors.As(err, &cat):
		f.Valid = cat.Valid
	case errors.As(err, &layer):
		f.Valid = layer.Valid
	}
	return f
}

func summarize(desc domain.ToolDescriptor, active bool) ToolSummary {
	return ToolSummary{
		Name:            desc.Name,
		Description:     desc.Description,
		Category:        desc.Category.String(),
		SubCategory:     desc.SubCategory,
		Tags:            desc.Tags,
		EstimatedTokens: desc.EstimatedTokens,
		Priority:        desc.Priority,
		Active:          active,
		Default:         desc.LoadByDefault,
	}
}
