package domain

import (
	"fmt"
	"strings"
)

// Category is the closed set of capability domains a tool can belong to.
type Category uint8

const (
	// CategoryCore holds the always-on discovery and session tools.
	CategoryCore Category = iota
	// CategoryVideoCreation holds composition editing and rendering tools.
	CategoryVideoCreation
	// CategorySpeech holds speech synthesis and voice management tools.
	CategorySpeech
	// CategoryImageGeneration holds image generation and editing tools.
	CategoryImageGeneration
	// CategoryAudioLibrary holds music and sound-effect search tools.
	CategoryAudioLibrary
	// CategoryProcess holds external process lifecycle tools.
	CategoryProcess
	// CategorySourceEditing holds source snippet rewriting tools.
	CategorySourceEditing

	categoryCount
)

var categoryIDs = [categoryCount]string{
	CategoryCore:            "core",
	CategoryVideoCreation:   "video-creation",
	CategorySpeech:          "speech",
	CategoryImageGeneration: "image-generation",
	CategoryAudioLibrary:    "audio-library",
	CategoryProcess:         "process",
	CategorySourceEditing:   "source-editing",
}

// Categories returns every category in declaration order.
func Categories() []Category {
	out := make([]Category, 0, categoryCount)
	for c := Category(0); c < categoryCount; c++ {
		out = append(out, c)
	}
	return out
}

// CategoryIDs returns every category id in declaration order.
func CategoryIDs() []string {
	out := make([]string, 0, categoryCount)
	for _, c := range Categories() {
		out = append(out, c.String())
	}
	return out
}

func (c Category) String() string {
	if !c.Valid() {
		return fmt.Sprintf("category(%d)", uint8(c))
	}
	return categoryIDs[c]
}

// Valid reports whether c is a declared category.
func (c Category) Valid() bool {
	return c < categoryCount
}

// ParseCategory resolves a category id, ignoring case and surrounding space.
func ParseCategory(raw string) (Category, bool) {
	id := strings.ToLower(strings.TrimSpace(raw))
	for c := Category(0); c < categoryCount; c++ {
		if categoryIDs[c] == id {
			return c, true
		}
	}
	return 0, false
}

func (c Category) MarshalText() ([]byte, error) {
	if !c.Valid() {
		return nil, fmt.Errorf("invalid category %d", uint8(c))
	}
	return []byte(c.String()), nil
}

func (c *Category) UnmarshalText(text []byte) error {
	parsed, ok := ParseCategory(string(text))
	if !ok {
		return &UnknownCategoryError{Name: string(text), Valid: CategoryIDs()}
	}
	*c = parsed
	return nil
}

// CategoryInfo is the static catalog entry for a category.
type CategoryInfo struct {
	ID                  Category `json:"id"`
	DisplayName         string   `json:"displayName"`
	Description         string   `json:"description"`
	DefaultActive       bool     `json:"defaultActive"`
	RequiredCredentials []string `json:"requiredCredentials,omitempty"`
	EstimatedTokens     int      `json:"estimatedTokens"`
}

// SubCategoryInfo describes one sub-category inside a category.
type SubCategoryInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

var categoryInfo = [categoryCount]CategoryInfo{
	CategoryCore: {
		ID:              CategoryCore,
		DisplayName:     "Core",
		Description:     "Discovery, activation and session helpers that are always available.",
		DefaultActive:   true,
		EstimatedTokens: 900,
	},
	CategoryVideoCreation: {
		ID:              CategoryVideoCreation,
		DisplayName:     "Video Creation",
		Description:     "Build video compositions and render them to files.",
		EstimatedTokens: 2400,
	},
	CategorySpeech: {
		ID:                  CategorySpeech,
		DisplayName:         "Speech",
		Description:         "Text-to-speech synthesis and voice catalog lookups.",
		RequiredCredentials: []string{"ELEVENLABS_API_KEY"},
		EstimatedTokens:     1300,
	},
	CategoryImageGeneration: {
		ID:                  CategoryImageGeneration,
		DisplayName:         "Image Generation",
		Description:         "Generate and edit still images from prompts.",
		RequiredCredentials: []string{"OPENAI_API_KEY"},
		EstimatedTokens:     1200,
	},
	CategoryAudioLibrary: {
		ID:                  CategoryAudioLibrary,
		DisplayName:         "Audio Library",
		Description:         "Search royalty-free music and sound effects.",
		RequiredCredentials: []string{"FREESOUND_API_KEY"},
		EstimatedTokens:     800,
	},
	CategoryProcess: {
		ID:              CategoryProcess,
		DisplayName:     "Processes",
		Description:     "Start, inspect and stop external helper processes.",
		EstimatedTokens: 700,
	},
	CategorySourceEditing: {
		ID:              CategorySourceEditing,
		DisplayName:     "Source Editing",
		Description:     "Parse and rewrite small source snippets.",
		EstimatedTokens: 600,
	},
}

var subCategoryTable = [categoryCount][]SubCategoryInfo{
	CategoryCore: {
		{Name: "session", Description: "Session state and health."},
	},
	CategoryVideoCreation: {
		{Name: "composition", Description: "Create and edit composition timelines."},
		{Name: "rendering", Description: "Render compositions and track render jobs."},
	},
	CategorySpeech: {
		{Name: "synthesis", Description: "Convert text into narrated audio."},
		{Name: "voices", Description: "List and inspect available voices."},
	},
	CategoryImageGeneration: {
		{Name: "generate", Description: "Create images from prompts."},
		{Name: "edit", Description: "Edit or upscale existing images."},
	},
	CategoryAudioLibrary: {
		{Name: "search", Description: "Search and download library audio."},
	},
	CategoryProcess: {
		{Name: "lifecycle", Description: "Spawn, list and kill processes."},
	},
	CategorySourceEditing: {
		{Name: "rewrite", Description: "Rewrite snippets through a parser."},
	},
}

// Info returns the static catalog entry for c.
func (c Category) Info() CategoryInfo {
	if !c.Valid() {
		return CategoryInfo{ID: c, DisplayName: c.String()}
	}
	info := categoryInfo[c]
	info.RequiredCredentials = append([]string(nil), info.RequiredCredentials...)
	return info
}

// SubCategories returns the sub-categories declared for c.
func (c Category) SubCategories() []SubCategoryInfo {
	if !c.Valid() {
		return nil
	}
	return append([]SubCategoryInfo(nil), subCategoryTable[c]...)
}

// SubCategoryNames returns the sub-category names declared for c.
func (c Category) SubCategoryNames() []string {
	subs := c.SubCategories()
	out := make([]string, 0, len(subs))
	for _, sub := range subs {
		out = append(out, sub.Name)
	}
	return out
}

// HasSubCategory reports whether name is declared under c.
func (c Category) HasSubCategory(name string) bool {
	if !c.Valid() {
		return false
	}
	for _, sub := range subCategoryTable[c] {
		if sub.Name == name {
			return true
		}
	}
	return false
}

// SubCategoryRef names one sub-category of one category.
type SubCategoryRef struct {
	Category Category `json:"category"`
	Name     string   `json:"name"`
}

func (r SubCategoryRef) String() string {
	return r.Category.String() + "/" + r.Name
}

// ParseSubCategoryRef parses "category/sub" and validates both parts.
func ParseSubCategoryRef(raw string) (SubCategoryRef, error) {
	trimmed := strings.TrimSpace(raw)
	catPart, subPart, ok := strings.Cut(trimmed, "/")
	if !ok {
		catPart, subPart, ok = strings.Cut(trimmed, ":")
	}
	category, known := ParseCategory(catPart)
	if !known {
		return SubCategoryRef{}, &UnknownCategoryError{Name: catPart, Valid: CategoryIDs()}
	}
	sub := strings.ToLower(strings.TrimSpace(subPart))
	if !ok || sub == "" || !category.HasSubCategory(sub) {
		return SubCategoryRef{}, &UnknownSubCategoryError{
			Category: category,
			Name:     sub,
			Valid:    category.SubCategoryNames(),
		}
	}
	return SubCategoryRef{Category: category, Name: sub}, nil
}
