package recommendations

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed genres.yaml
var defaultGenreSimilarity []byte

// GenreSimilarity maps a genre name to related genre names. It is read-only after loading.
type GenreSimilarity struct {
	related map[string][]string
}

// ParseGenreSimilarity decodes a YAML mapping of genre name to related names
func ParseGenreSimilarity(data []byte) (*GenreSimilarity, error) {
	related := make(map[string][]string)
	if err := yaml.Unmarshal(data, &related); err != nil {
		return nil, fmt.Errorf("failed to parse genre similarity: %w", err)
	}
	return &GenreSimilarity{related: related}, nil
}

// DefaultGenreSimilarity returns the embedded table
func DefaultGenreSimilarity() *GenreSimilarity {
	gs, err := ParseGenreSimilarity(defaultGenreSimilarity)
	if err != nil {
		panic(err)
	}
	return gs
}

// LoadGenreSimilarity reads the table from path, or the embedded default when path is empty
func LoadGenreSimilarity(path string) (*GenreSimilarity, error) {
	if path == "" {
		return DefaultGenreSimilarity(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read genre similarity file: %w", err)
	}
	return ParseGenreSimilarity(data)
}

// Related returns a copy of the genres related to name
func (g *GenreSimilarity) Related(name string) []string {
	if g == nil {
		return nil
	}
	return append([]string(nil), g.related[name]...)
}

// Expand returns the related genre names of favorites that are not favorites themselves
func (g *GenreSimilarity) Expand(favorites []string) []string {
	seen := make(map[string]bool, len(favorites))
	for _, f := range favorites {
		seen[f] = true
	}

	var expanded []string
	for _, f := range favorites {
		for _, r := range g.Related(f) {
			if !seen[r] {
				seen[r] = true
				expanded = append(expanded, r)
			}
		}
	}
	return expanded
}
