package builtin

import (
	_ "embed"
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"capgate/internal/domain"
)

//go:embed layers.yaml
var layersYAML []byte

type rawLayerFile struct {
	Layers []rawLayer `yaml:"layers"`
}

type rawLayer struct {
	Name           string   `yaml:"name"`
	Description    string   `yaml:"description"`
	Categories     []string `yaml:"categories"`
	SubCategories  []string `yaml:"subCategories"`
	Tools          []string `yaml:"tools"`
	ExclusiveGroup string   `yaml:"exclusiveGroup"`
	DependsOn      []string `yaml:"dependsOn"`
	Default        bool     `yaml:"default"`
}

// Layers parses the embedded layer definitions.
func Layers() ([]domain.Layer, error) {
	return ParseLayers(layersYAML)
}

// ParseLayers decodes a layer file. Every problem is reported, joined with "; ".
func ParseLayers(raw []byte) ([]domain.Layer, error) {
	var file rawLayerFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse layers: %w", err)
	}

	var problems []string
	layers := make([]domain.Layer, 0, len(file.Layers))
	for i, rl := range file.Layers {
		layer := domain.Layer{
			Name:           strings.TrimSpace(rl.Name),
			Description:    strings.TrimSpace(rl.Description),
			Tools:          rl.Tools,
			ExclusiveGroup: strings.TrimSpace(rl.ExclusiveGroup),
			DependsOn:      rl.DependsOn,
			Default:        rl.Default,
		}
		for _, id := range rl.Categories {
			category, ok := domain.ParseCategory(id)
			if !ok {
				problems = append(problems, fmt.Sprintf("layers[%d] %s: unknown category %q", i, layer.Name, id))
				continue
			}
			layer.Categories = append(layer.Categories, category)
		}
		for _, rawRef := range rl.SubCategories {
			ref, err := domain.ParseSubCategoryRef(rawRef)
			if err != nil {
				problems = append(problems, fmt.Sprintf("layers[%d] %s: %v", i, layer.Name, err))
				continue
			}
			layer.SubCategories = append(layer.SubCategories, ref)
		}
		layers = append(layers, layer)
	}
	if len(problems) > 0 {
		return nil, errors.New(strings.Join(problems, "; "))
	}
	return layers, nil
}
