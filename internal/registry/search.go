package registry

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode"

	"capgate/internal/domain"
	"capgate/internal/infra/telemetry"
)

var matchRank = map[MatchKind]int{
	MatchExactName:   0,
	MatchName:        1,
	MatchTag:         2,
	MatchDescription: 3,
	MatchFilter:      4,
}

// Search matches query case-insensitively against names, tags and
// descriptions. Results are ordered by match kind, then ascending priority,
// then name.
func (r *Registry) Search(ctx context.Context, req SearchRequest) SearchResponse {
	start := time.Now()
	ctx, _ = telemetry.EnsureRequestMeta(ctx, "search")
	query := strings.TrimSpace(req.Query)
	resp := SearchResponse{Query: query, Results: []SearchResult{}}

	filter, err := parseFilter(req.Filter)
	if err != nil {
		resp.Failure = failureFrom(err, domain.CodeInvalidArgument)
		r.observe("search", start, false)
		return resp
	}
	if query == "" && filter.empty() {
		resp.Failure = &Failure{
			Code:        domain.CodeInvalidArgument,
			Message:     "query is required",
			Suggestions: []string{"use discover({type:'tree'}) to browse every tool"},
		}
		r.observe("search", start, false)
		return resp
	}

	needle := strings.ToLower(query)
	var results []SearchResult
	for _, desc := range r.store.All() {
		active := r.store.IsActive(desc.Name)
		if !filter.accepts(desc, active) {
			continue
		}
		kind, ok := matchTool(desc, needle)
		if !ok {
			continue
		}
		results = append(results, SearchResult{ToolSummary: summarize(desc, active), Match: kind})
	}
	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if matchRank[a.Match] != matchRank[b.Match] {
			return matchRank[a.Match] < matchRank[b.Match]
		}
		if a.Priority != b.Priority {
			return a.Priority < b.Priority
		}
		return a.Name < b.Name
	})

	resp.Success = true
	resp.Total = len(results)
	limit := req.Limit
	if limit <= 0 {
		limit = domain.DefaultSearchLimit
	}
	if len(results) > limit {
		results = results[:limit]
	}
	if results != nil {
		resp.Results = results
	}

	requestID, traceID := telemetry.AuditIDs(ctx)
	r.audit.Record(domain.AuditEntry{
		Kind:       domain.AuditSearch,
		Subjects:   []string{query},
		Categories: req.Filter.Categories,
		Weight:     r.budget.State().TotalWeight,
		RequestID:  requestID,
		TraceID:    traceID,
	})
	r.observe("search", start, true)
	return resp
}

func matchTool(desc domain.ToolDescriptor, needle string) (MatchKind, bool) {
	if needle == "" {
		return MatchFilter, true
	}
	name := strings.ToLower(desc.Name)
	if name == needle {
		return MatchExactName, true
	}
	if strings.Contains(name, needle) {
		return MatchName, true
	}
	for _, tag := range desc.Tags {
		if strings.Contains(strings.ToLower(tag), needle) {
			return MatchTag, true
		}
	}
	if strings.Contains(strings.ToLower(desc.Description), needle) {
		return MatchDescription, true
	}
	return "", false
}

type searchFilter struct {
	categories map[domain.Category]struct{}
	tags       []string
	active     *bool
}

func parseFilter(f SearchFilter) (searchFilter, error) {
	out := searchFilter{active: f.Active}
	for _, raw := range f.Categories {
		category, ok := domain.ParseCategory(raw)
		if !ok {
			return out, &domain.UnknownCategoryError{Name: raw, Valid: domain.CategoryIDs()}
		}
		if out.categories == nil {
			out.categories = make(map[domain.Category]struct{})
		}
		out.categories[category] = struct{}{}
	}
	for _, tag := range f.Tags {
		if tag = strings.ToLower(strings.TrimSpace(tag)); tag != "" {
			out.tags = append(out.tags, tag)
		}
	}
	return out, nil
}

func (f searchFilter) empty() bool {
	return len(f.categories) == 0 && len(f.tags) == 0 && f.active == nil
}

// accepts applies every filter; a tag filter matches when the tool has any of the tags.
func (f searchFilter) accepts(desc domain.ToolDescriptor, active bool) bool {
	if f.categories != nil {
		if _, ok := f.categories[desc.Category]; !ok {
			return false
		}
	}
	if f.active != nil && *f.active != active {
		return false
	}
	if len(f.tags) == 0 {
		return true
	}
	for _, tag := range f.tags {
		if desc.HasTag(tag) {
			return true
		}
	}
	return false
}

// recommend scores every tool against the keywords of hint.
func (r *Registry) recommend(hint string) []Recommendation {
	tokens := keywords(hint)
	if len(tokens) == 0 {
		return nil
	}
	type scored struct {
		Recommendation
		priority int
	}
	var out []scored
	for _, desc := range r.store.All() {
		score, matched := scoreTool(desc, tokens)
		if score == 0 {
			continue
		}
		active := r.store.IsActive(desc.Name)
		rec := Recommendation{
			Name:        desc.Name,
			Category:    desc.Category.String(),
			SubCategory: desc.SubCategory,
			Score:       score,
			Active:      active,
			Matched:     matched,
		}
		if !active {
			rec.Hint = fmt.Sprintf("activate({tools:['%s']})", desc.Name)
		}
		out = append(out, scored{Recommendation: rec, priority: desc.Priority})
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.priority != b.priority {
			return a.priority > b.priority
		}
		return a.Name < b.Name
	})
	if len(out) > domain.DefaultRecommendationLimit {
		out = out[:domain.DefaultRecommendationLimit]
	}
	recs := make([]Recommendation, 0, len(out))
	for _, item := range out {
		recs = append(recs, item.Recommendation)
	}
	return recs
}

func scoreTool(desc domain.ToolDescriptor, tokens []string) (int, []string) {
	category := desc.Category.String()
	display := strings.ToLower(desc.Category.Info().DisplayName)
	nameTokens := keywords(desc.Name)
	description := strings.ToLower(desc.Description)

	score := 0
	var matched []string
	for _, token := range tokens {
		points := 0
		for _, tag := range desc.Tags {
			if strings.EqualFold(tag, token) {
				points += 3
				break
			}
		}
		if strings.Contains(category, token) || strings.Contains(display, token) ||
			(desc.SubCategory != "" && strings.Contains(desc.SubCategory, token)) {
			points += 2
		}
		for _, part := range nameTokens {
			if part == token {
				points += 2
				break
			}
		}
		if strings.Contains(description, token) {
			points++
		}
		if points > 0 {
			score += points
			matched = append(matched, token)
		}
	}
	return score, matched
}

var stopWords = map[string]struct{}{
	"the": {}, "and": {}, "for": {}, "with": {}, "from": {}, "into": {}, "that": {}, "this": {},
	"some": {}, "want": {}, "need": {}, "make": {}, "please": {},
}

// keywords lowercases text and splits it on anything that is not a letter or digit.
func keywords(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	var out []string
	for _, field := range fields {
		if len(field) < 3 {
			continue
		}
		if _, stop := stopWords[field]; stop {
			continue
		}
		out = append(out, field)
	}
	return unique(out)
}
