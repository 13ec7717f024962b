package layout

import (
	"math"
	"regexp"
	"strings"
)

// Widget kinds whose item counts the guard checks.
const (
	KindKPI     = "kpi"
	KindArticle = "article"
	KindProduct = "product"
)

// CountSource tells which strategy produced an item count.
type CountSource int

const (
	// SourceNone: the kind has no explicit count and no inference rule.
	SourceNone CountSource = iota
	// SourceExplicitVariations: metadata.variations["<kind>Count"].
	SourceExplicitVariations
	// SourceExplicitMetadata: metadata["<kind>Count"].
	SourceExplicitMetadata
	// SourceInferred: reconstructed from regions or slots.
	SourceInferred
)

func (s CountSource) String() string {
	switch s {
	case SourceExplicitVariations:
		return "variations"
	case SourceExplicitMetadata:
		return "metadata"
	case SourceInferred:
		return "inferred"
	default:
		return "none"
	}
}

// Explicit reports whether the count came from a number the generator declared.
func (s CountSource) Explicit() bool {
	return s == SourceExplicitVariations || s == SourceExplicitMetadata
}

var (
	kpiPattern     = regexp.MustCompile(`(?i)kpi|metric|stat`)
	articlePattern = regexp.MustCompile(`(?i)article|post|entry|story|content-card|content`)
	productPattern = regexp.MustCompile(`(?i)product|sku|item|tile|price|thumb|card`)
)

// HasExplicitCount reports whether the layout declares a finite count for kind.
func (l Layout) HasExplicitCount(kind string) bool {
	_, src := explicitCount(l, kind)
	return src.Explicit()
}

// Count returns the number of items of kind in the layout.
//
// Explicit counts win: metadata.variations first, then top-level metadata.
// Without either, the count is inferred from structure. For kpi, regions
// are matched first and slots only when no region matches. Fractional
// explicit counts truncate toward zero.
func Count(l Layout, kind string) (int, CountSource) {
	if n, src := explicitCount(l, kind); src.Explicit() {
		return n, src
	}
	return inferCount(l, kind)
}

func explicitCount(l Layout, kind string) (int, CountSource) {
	key := kind + "Count"
	if v, ok := l.Metadata.Variations[key]; ok && finite(v) {
		return int(v), SourceExplicitVariations
	}
	if v, ok := l.Metadata.Counts[key]; ok && finite(v) {
		return int(v), SourceExplicitMetadata
	}
	return 0, SourceNone
}

func inferCount(l Layout, kind string) (int, CountSource) {
	switch kind {
	case KindKPI:
		if n := countRegions(l.Structure.Regions, kpiPattern); n > 0 {
			return n, SourceInferred
		}
		return countSlots(l.Slots, kpiPattern), SourceInferred
	case KindArticle:
		return countSlots(l.Slots, articlePattern), SourceInferred
	case KindProduct:
		return countSlots(l.Slots, productPattern), SourceInferred
	default:
		return 0, SourceNone
	}
}

func countRegions(regions []Region, re *regexp.Regexp) int {
	n := 0
	for _, r := range regions {
		if re.MatchString(strings.Join([]string{r.Name, r.Role, r.Type}, " ")) {
			n++
		}
	}
	return n
}

func countSlots(slots []Slot, re *regexp.Regexp) int {
	n := 0
	for _, s := range slots {
		if re.MatchString(strings.Join([]string{s.Component, s.Type, s.Kind, s.Role}, " ")) {
			n++
		}
	}
	return n
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Fingerprint is the part of a layout the determinism check compares.
type Fingerprint struct {
	StructureType string `json:"structure_type"`
	Cols          int    `json:"cols"`
	Slots         int    `json:"slots"`
	KPI           int    `json:"kpi"`
	Article       int    `json:"article"`
	Product       int    `json:"product"`
}

// FingerprintOf extracts the comparable metrics of a layout.
func FingerprintOf(l Layout) Fingerprint {
	kpi, _ := Count(l, KindKPI)
	article, _ := Count(l, KindArticle)
	product, _ := Count(l, KindProduct)
	return Fingerprint{
		StructureType: l.Structure.Type,
		Cols:          l.Grid.Cols,
		Slots:         len(l.Slots),
		KPI:           kpi,
		Article:       article,
		Product:       product,
	}
}
