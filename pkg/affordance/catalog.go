package affordance

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Capability tags shared by the built-in widgets.
const (
	CapDisplayMetric  = "display-metric"
	CapVisualizeTrend = "visualize-trend"
	CapTabularData    = "tabular-data"
	CapFilterData     = "filter-data"
	CapDisplayContent = "display-content"
	CapFeatureContent = "feature-content"
	CapDisplayProduct = "display-product"
	CapSummarizeCart  = "summarize-cart"
	CapNavigate       = "navigate"
)

// DefaultCatalog returns the descriptors of the built-in widgets.
func DefaultCatalog() []Widget {
	return []Widget{
		{Kind: "kpi", Descriptor: Descriptor{
			Capabilities: []string{CapDisplayMetric},
			Contexts:     []string{"dashboard", "ecommerce"},
			Goals:        []string{"kpi-focus", "compare"},
			Priority:     10,
		}},
		{Kind: "chart", Descriptor: Descriptor{
			Capabilities: []string{CapVisualizeTrend, CapDisplayMetric},
			Contexts:     []string{"dashboard"},
			Goals:        []string{"kpi-focus", "compare"},
			Priority:     8,
		}},
		{Kind: "data-table", Descriptor: Descriptor{
			Capabilities: []string{CapTabularData, CapFilterData},
			Contexts:     []string{"dashboard", "ecommerce"},
			Goals:        []string{"compare", "browse"},
			Priority:     6,
		}},
		{Kind: "filter-bar", Descriptor: Descriptor{
			Capabilities: []string{CapFilterData},
			Contexts:     []string{"dashboard", "blog", "ecommerce"},
			Goals:        []string{"browse", "compare"},
			Priority:     4,
		}},
		{Kind: "article", Descriptor: Descriptor{
			Capabilities: []string{CapDisplayContent},
			Contexts:     []string{"blog"},
			Goals:        []string{"read", "browse", "content-focus"},
			Priority:     10,
		}},
		{Kind: "hero", Descriptor: Descriptor{
			Capabilities: []string{CapFeatureContent, CapDisplayContent},
			Contexts:     []string{"blog", "ecommerce"},
			Goals:        []string{"read", "browse", "content-focus"},
			Priority:     5,
		}},
		{Kind: "product", Descriptor: Descriptor{
			Capabilities: []string{CapDisplayProduct},
			Contexts:     []string{"ecommerce"},
			Goals:        []string{"browse", "compare", "checkout"},
			Priority:     10,
		}},
		{Kind: "cart-summary", Descriptor: Descriptor{
			Capabilities: []string{CapSummarizeCart},
			Contexts:     []string{"ecommerce"},
			Goals:        []string{"checkout"},
			Priority:     7,
		}},
		{Kind: "nav", Descriptor: Descriptor{
			Capabilities: []string{CapNavigate},
			Contexts:     []string{"dashboard", "blog", "ecommerce"},
			Goals:        []string{"browse", "read", "kpi-focus", "compare", "checkout", "content-focus"},
			Priority:     1,
		}},
	}
}

// Catalog is the on-disk form of a widget list.
type Catalog struct {
	Widgets []Widget `yaml:"widgets"`
}

// LoadCatalog reads a YAML widget catalog. A missing file yields no widgets.
func LoadCatalog(path string) ([]Widget, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}
	widgets, err := ParseCatalog(data)
	if err != nil {
		return nil, fmt.Errorf("catalog %s: %w", path, err)
	}
	return widgets, nil
}

// ParseCatalog parses YAML catalog data. Descriptors are validated when
// they are registered, not here.
func ParseCatalog(data []byte) ([]Widget, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	return c.Widgets, nil
}

// Merge overlays extra onto base. A widget in extra replaces the base widget
// of the same kind in place; new kinds are appended in their given order.
func Merge(base, extra []Widget) []Widget {
	out := make([]Widget, len(base), len(base)+len(extra))
	copy(out, base)
	index := make(map[string]int, len(out))
	for i, w := range out {
		index[w.Kind] = i
	}
	for _, w := range extra {
		if i, ok := index[w.Kind]; ok {
			out[i] = w
			continue
		}
		index[w.Kind] = len(out)
		out = append(out, w)
	}
	return out
}
