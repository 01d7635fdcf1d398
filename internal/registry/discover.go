package registry

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"capgate/internal/domain"
	"capgate/internal/infra/telemetry"
)

// Discover returns one view of the catalog. Unknown kinds are reported as a
// failure listing the valid ones.
func (r *Registry) Discover(ctx context.Context, req DiscoverRequest) DiscoverResponse {
	start := time.Now()
	ctx, _ = telemetry.EnsureRequestMeta(ctx, "discover")
	kind := DiscoverKind(strings.ToLower(strings.TrimSpace(string(req.Type))))
	if kind == "" {
		kind = DiscoverCategories
	}
	resp := DiscoverResponse{Type: kind}

	switch kind {
	case DiscoverCategories:
		resp.Categories = r.categorySummaries()
	case DiscoverActive:
		resp.Active = r.activeSummary()
	case DiscoverStats:
		resp.Stats = r.stats()
	case DiscoverRecommendations:
		if strings.TrimSpace(req.Context) == "" {
			resp.Failure = &Failure{
				Code:        domain.CodeInvalidArgument,
				Message:     "recommendations need a context describing the task",
				Suggestions: []string{"use discover({type:'recommendations', context:'narrate a product video'})"},
			}
			r.observe("discover", start, false)
			return resp
		}
		resp.Recommendations = r.recommend(req.Context)
		if resp.Recommendations == nil {
			resp.Recommendations = []Recommendation{}
		}
	case DiscoverTree:
		resp.Tree = r.tree()
	default:
		resp.Failure = &Failure{
			Code:        domain.CodeInvalidArgument,
			Message:     fmt.Sprintf("unknown discover type %q", req.Type),
			Suggestions: []string{"valid types: " + strings.Join(DiscoverKinds(), ", ")},
			Valid:       DiscoverKinds(),
		}
		r.observe("discover", start, false)
		return resp
	}
	resp.Success = true

	requestID, traceID := telemetry.AuditIDs(ctx)
	r.audit.Record(domain.AuditEntry{
		Kind:      domain.AuditDiscover,
		Subjects:  []string{string(kind)},
		Weight:    r.budget.State().TotalWeight,
		RequestID: requestID,
		TraceID:   traceID,
	})
	r.observe("discover", start, true)
	return resp
}

func (r *Registry) categorySummaries() []CategorySummary {
	out := make([]CategorySummary, 0, len(domain.Categories()))
	for _, category := range domain.Categories() {
		info := category.Info()
		tools := r.store.ByCategory(category)
		summary := CategorySummary{
			ID:                    category.String(),
			DisplayName:           info.DisplayName,
			Description:           info.Description,
			ToolCount:             len(tools),
			DefaultActive:         info.DefaultActive,
			SubCategories:         category.SubCategoryNames(),
			RequiredCredentials:   info.RequiredCredentials,
			CredentialsConfigured: credentialsConfigured(info.RequiredCredentials),
		}
		for _, desc := range tools {
			summary.EstimatedTokens += desc.EstimatedTokens
			if r.store.IsActive(desc.Name) {
				summary.ActiveCount++
			}
		}
		summary.Status = categoryStatus(summary.ToolCount, summary.ActiveCount)
		out = append(out, summary)
	}
	return out
}

func categoryStatus(total, active int) string {
	switch {
	case total == 0:
		return "empty"
	case active == 0:
		return "inactive"
	case active == total:
		return "active"
	default:
		return "partial"
	}
}

func credentialsConfigured(names []string) bool {
	for _, name := range names {
		if value, ok := os.LookupEnv(name); !ok || strings.TrimSpace(value) == "" {
			return false
		}
	}
	return true
}

func (r *Registry) activeSummary() *ActiveSummary {
	active := r.store.Active()
	summary := &ActiveSummary{
		Tools:  make([]ToolSummary, 0, len(active)),
		Layers: r.ActiveLayers(),
	}
	for _, desc := range active {
		summary.Tools = append(summary.Tools, summarize(desc, true))
		summary.ContextWeight += desc.EstimatedTokens
	}
	return summary
}

func (r *Registry) stats() *Stats {
	all := r.store.All()
	state := r.budget.State()
	profile := r.Profile()
	stats := &Stats{
		Profile:      string(profile.Name),
		Mode:         r.Mode(),
		Budget:       state,
		TotalTools:   len(all),
		ActiveTools:  state.ActiveItems,
		Categories:   len(domain.Categories()),
		AuditEntries: r.audit.Len(),
		Patterns:     r.audit.Patterns(),
	}
	for _, desc := range all {
		if desc.LoadByDefault {
			stats.DefaultTools++
		}
	}
	if profile.Layers.Enabled {
		stats.Layers = r.LayerStatuses()
		stats.MaxLayers = profile.Layers.MaxActiveLayers
	}
	return stats
}

func (r *Registry) tree() []TreeCategory {
	out := make([]TreeCategory, 0, len(domain.Categories()))
	for _, category := range domain.Categories() {
		node := TreeCategory{
			ID:          category.String(),
			DisplayName: category.Info().DisplayName,
			Hint:        fmt.Sprintf("activate({categories:['%s']})", category),
		}
		bySub := make(map[string][]TreeTool)
		for _, desc := range r.store.ByCategory(category) {
			leaf := TreeTool{
				Name:            desc.Name,
				Active:          r.store.IsActive(desc.Name),
				EstimatedTokens: desc.EstimatedTokens,
			}
			if desc.SubCategory == "" {
				node.Tools = append(node.Tools, leaf)
				continue
			}
			bySub[desc.SubCategory] = append(bySub[desc.SubCategory], leaf)
		}
		for _, sub := range category.SubCategories() {
			tools := bySub[sub.Name]
			if tools == nil {
				tools = []TreeTool{}
			}
			node.SubCategories = append(node.SubCategories, TreeSubCategory{
				Name:        sub.Name,
				Description: sub.Description,
				Hint:        fmt.Sprintf("activate({subCategories:['%s/%s']})", category, sub.Name),
				Tools:       tools,
			})
		}
		out = append(out, node)
	}
	return out
}
