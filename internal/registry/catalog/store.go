package catalog

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"capgate/internal/domain"
)

// Usage is the recency bookkeeping the store keeps for one tool.
type Usage struct {
	Active       bool
	ActivatedSeq uint64
	UsedSeq      uint64
	Calls        int
}

type record struct {
	desc  domain.ToolDescriptor
	usage Usage
}

// Store indexes every registered tool and owns its active flag.
// It never checks budgets or dependencies.
type Store struct {
	mu         sync.RWMutex
	logger     *zap.Logger
	records    map[string]*record
	order      []string
	byCategory map[domain.Category][]string
	byTag      map[string][]string
	seq        uint64
}

// NewStore constructs an empty catalog store.
func NewStore(logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		logger:     logger.Named("catalog"),
		records:    make(map[string]*record),
		byCategory: make(map[domain.Category][]string),
		byTag:      make(map[string][]string),
	}
}

// Register adds a descriptor. Load-by-default tools start active.
func (s *Store) Register(desc domain.ToolDescriptor) error {
	desc.Name = strings.TrimSpace(desc.Name)
	if desc.Name == "" {
		return domain.ErrEmptyToolName
	}
	if !desc.Category.Valid() {
		return fmt.Errorf("tool %s: %w", desc.Name, domain.ErrInvalidCategory)
	}
	if desc.SubCategory != "" && !desc.Category.HasSubCategory(desc.SubCategory) {
		return fmt.Errorf("tool %s: %w", desc.Name, &domain.UnknownSubCategoryError{
			Category: desc.Category,
			Name:     desc.SubCategory,
			Valid:    desc.Category.SubCategoryNames(),
		})
	}
	if desc.EstimatedTokens < 0 {
		return fmt.Errorf("tool %s: %w", desc.Name, domain.ErrInvalidWeight)
	}
	if desc.EstimatedTokens == 0 {
		desc.EstimatedTokens = domain.EstimateTokens(desc)
	}
	desc.Tags = append([]string(nil), desc.Tags...)
	desc.DependsOn = append([]string(nil), desc.DependsOn...)

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.records[desc.Name]; exists {
		return &domain.DuplicateNameError{Name: desc.Name}
	}
	rec := &record{desc: desc}
	if desc.LoadByDefault {
		s.seq++
		rec.usage.Active = true
		rec.usage.ActivatedSeq = s.seq
	}
	s.records[desc.Name] = rec
	s.order = append(s.order, desc.Name)
	s.byCategory[desc.Category] = append(s.byCategory[desc.Category], desc.Name)
	for _, tag := range desc.Tags {
		key := strings.ToLower(strings.TrimSpace(tag))
		if key == "" {
			continue
		}
		s.byTag[key] = appendUnique(s.byTag[key], desc.Name)
	}
	s.logger.Debug("tool registered",
		zap.String("tool", desc.Name),
		zap.Stringer("category", desc.Category),
		zap.Int("tokens", desc.EstimatedTokens),
		zap.Bool("default", desc.LoadByDefault),
	)
	return nil
}

// RegisterAll registers descriptors in order and stops at the first failure.
func (s *Store) RegisterAll(descs []domain.ToolDescriptor) error {
	for _, desc := range descs {
		if err := s.Register(desc); err != nil {
			return err
		}
	}
	return nil
}

// Get returns the descriptor registered under name.
func (s *Store) Get(name string) (domain.ToolDescriptor, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[name]
	if !ok {
		return domain.ToolDescriptor{}, false
	}
	return rec.desc, true
}

// Has reports whether name is registered.
func (s *Store) Has(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.records[name]
	return ok
}

// ByCategory lists the tools of one category in registration order.
func (s *Store) ByCategory(category domain.Category) []domain.ToolDescriptor {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collect(s.byCategory[category])
}

// BySubCategory lists the tools of one sub-category in registration order.
func (s *Store) BySubCategory(ref domain.SubCategoryRef) []domain.ToolDescriptor {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.ToolDescriptor, 0)
	for _, name := range s.byCategory[ref.Category] {
		if rec := s.records[name]; rec.desc.SubCategory == ref.Name {
			out = append(out, rec.desc)
		}
	}
	return out
}

// ByTag lists the tools carrying tag, compared case-insensitively.
func (s *Store) ByTag(tag string) []domain.ToolDescriptor {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collect(s.byTag[strings.ToLower(strings.TrimSpace(tag))])
}

// All lists every tool in registration order.
func (s *Store) All() []domain.ToolDescriptor {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collect(s.order)
}

// Active lists the active tools in registration order.
func (s *Store) Active() []domain.ToolDescriptor {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.ToolDescriptor, 0)
	for _, name := range s.order {
		if rec := s.records[name]; rec.usage.Active {
			out = append(out, rec.desc)
		}
	}
	return out
}

// ActiveNames lists the active tool names in registration order.
func (s *Store) ActiveNames() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0)
	for _, name := range s.order {
		if s.records[name].usage.Active {
			out = append(out, name)
		}
	}
	return out
}

// IsActive reports whether name is registered and active.
func (s *Store) IsActive(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[name]
	return ok && rec.usage.Active
}

// ActiveWeight sums the estimated tokens of every active tool.
func (s *Store) ActiveWeight() (weight int, count int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, rec := range s.records {
		if rec.usage.Active {
			weight += rec.desc.EstimatedTokens
			count++
		}
	}
	return weight, count
}

// Len returns the number of registered tools.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}

// SetActive flips the active flag and returns its previous value.
// Activation stamps a new activation sequence.
func (s *Store) SetActive(name string, active bool) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[name]
	if !ok {
		return false, &domain.UnknownToolError{Names: []string{name}}
	}
	previous := rec.usage.Active
	if previous == active {
		return previous, nil
	}
	rec.usage.Active = active
	if active {
		s.seq++
		rec.usage.ActivatedSeq = s.seq
	}
	return previous, nil
}

// Touch records a use of name and reports whether it was found.
func (s *Store) Touch(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[name]
	if !ok {
		return false
	}
	s.seq++
	rec.usage.UsedSeq = s.seq
	rec.usage.Calls++
	return true
}

// Usage returns the recency bookkeeping for name.
func (s *Store) Usage(name string) (Usage, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[name]
	if !ok {
		return Usage{}, false
	}
	return rec.usage, true
}

// Tags returns every indexed tag, sorted.
func (s *Store) Tags() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.byTag))
	for tag := range s.byTag {
		out = append(out, tag)
	}
	sort.Strings(out)
	return out
}

func (s *Store) collect(names []string) []domain.ToolDescriptor {
	out := make([]domain.ToolDescriptor, 0, len(names))
	for _, name := range names {
		out = append(out, s.records[name].desc)
	}
	return out
}

func appendUnique(list []string, value string) []string {
	for _, existing := range list {
		if existing == value {
			return list
		}
	}
	return append(list, value)
}
