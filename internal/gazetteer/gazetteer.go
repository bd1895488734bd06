// Package gazetteer maps districts entered by subscribers to the market regions
// prices are published for.
package gazetteer

import (
	_ "embed"
	"fmt"
	"os"
	"strings"
	"unicode"

	"gopkg.in/yaml.v3"
)

// DefaultRegion is used for accounts whose stored district is not in the table.
const DefaultRegion = "Southern Region"

//go:embed districts.yaml
var defaultData []byte

type document struct {
	Regions map[string][]string `yaml:"regions"`
}

// Gazetteer is a read-only district → region lookup.
type Gazetteer struct {
	regions map[string]string
}

// New builds a gazetteer from a district → region map. Keys are canonicalised.
func New(districts map[string]string) *Gazetteer {
	g := &Gazetteer{regions: make(map[string]string, len(districts))}
	for d, r := range districts {
		g.regions[Canonical(d)] = r
	}
	return g
}

// Parse reads the YAML format of districts.yaml.
func Parse(data []byte) (*Gazetteer, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse gazetteer: %w", err)
	}
	if len(doc.Regions) == 0 {
		return nil, fmt.Errorf("gazetteer has no regions")
	}

	districts := make(map[string]string)
	for region, names := range doc.Regions {
		for _, d := range names {
			districts[d] = region
		}
	}
	return New(districts), nil
}

// Load reads a gazetteer file from disk.
func Load(path string) (*Gazetteer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read gazetteer %s: %w", path, err)
	}
	return Parse(data)
}

// Default returns the embedded Malawi district table.
func Default() *Gazetteer {
	g, err := Parse(defaultData)
	if err != nil {
		panic(err)
	}
	return g
}

// Region returns the region of a district, matched case-insensitively.
func (g *Gazetteer) Region(district string) (string, bool) {
	r, ok := g.regions[Canonical(district)]
	return r, ok
}

// RegionOrDefault is Region falling back to DefaultRegion.
func (g *Gazetteer) RegionOrDefault(district string) string {
	if r, ok := g.Region(district); ok {
		return r
	}
	return DefaultRegion
}

// Canonical title-cases every word of a district name ("nkhata bay" → "Nkhata Bay").
func Canonical(district string) string {
	words := strings.Fields(district)
	for i, w := range words {
		rs := []rune(strings.ToLower(w))
		rs[0] = unicode.ToUpper(rs[0])
		words[i] = string(rs)
	}
	return strings.Join(words, " ")
}
