package guard

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/cgast/affordkit/pkg/layout"
)

// Range is an inclusive bound. A nil endpoint leaves that side open.
type Range struct {
	Lo *int `yaml:"lo,omitempty" json:"lo,omitempty"`
	Hi *int `yaml:"hi,omitempty" json:"hi,omitempty"`
}

// Between returns the closed range [lo, hi].
func Between(lo, hi int) Range {
	return Range{Lo: &lo, Hi: &hi}
}

// Constrained reports whether either endpoint is set.
func (r Range) Constrained() bool {
	return r.Lo != nil || r.Hi != nil
}

// Contains reports whether v satisfies every present endpoint.
func (r Range) Contains(v int) bool {
	if r.Lo != nil && v < *r.Lo {
		return false
	}
	if r.Hi != nil && v > *r.Hi {
		return false
	}
	return true
}

func (r Range) String() string {
	end := func(p *int) string {
		if p == nil {
			return "*"
		}
		return strconv.Itoa(*p)
	}
	return "[" + end(r.Lo) + "," + end(r.Hi) + "]"
}

// Bounds are the expected metric ranges of one scenario.
type Bounds struct {
	Cols  Range `yaml:"cols" json:"cols"`
	Slots Range `yaml:"slots" json:"slots"`
	Items Range `yaml:"items" json:"items"`
}

type namedRange struct {
	label string
	r     Range
}

func (b Bounds) each(kind string) []namedRange {
	return []namedRange{{"cols", b.Cols}, {"slots", b.Slots}, {kind, b.Items}}
}

// Case is one scenario of the guard matrix. Items counts widgets of Kind.
type Case struct {
	Name   string `yaml:"name" json:"name"`
	Domain string `yaml:"domain" json:"domain"`
	Action int    `yaml:"action" json:"action"`
	Kind   string `yaml:"kind" json:"kind"`
	Bounds Bounds `yaml:"bounds" json:"bounds"`
}

// Intent returns the fixed intent the case is generated with.
func (c Case) Intent() layout.Intent {
	return IntentFor(c.Domain)
}

// DeterminismAction is the action level the determinism check replays.
const DeterminismAction = 6

// DefaultMatrix returns the baseline scenarios.
func DefaultMatrix() []Case {
	return []Case{
		{Name: "dashboard a0", Domain: "dashboard", Action: 0, Kind: layout.KindKPI,
			Bounds: Bounds{Cols: Between(2, 2), Slots: Between(3, 6), Items: Between(1, 4)}},
		{Name: "dashboard a8", Domain: "dashboard", Action: 8, Kind: layout.KindKPI,
			Bounds: Bounds{Cols: Between(3, 5), Slots: Between(8, 12), Items: Between(6, 10)}},
		{Name: "blog a0", Domain: "blog", Action: 0, Kind: layout.KindArticle,
			Bounds: Bounds{Cols: Between(1, 3), Items: Between(1, 3)}},
		{Name: "blog a6", Domain: "blog", Action: 6, Kind: layout.KindArticle,
			Bounds: Bounds{Cols: Between(2, 4), Items: Between(6, 8)}},
		{Name: "ecommerce a0", Domain: "ecommerce", Action: 0, Kind: layout.KindProduct,
			Bounds: Bounds{Cols: Between(3, 4), Items: Between(3, 4)}},
		{Name: "ecommerce a8", Domain: "ecommerce", Action: 8, Kind: layout.KindProduct,
			Bounds: Bounds{Cols: Between(3, 5), Items: Between(10, 12)}},
	}
}

var domainGoals = map[string]string{
	"dashboard": "kpi-focus",
	"blog":      "content-focus",
	"ecommerce": "browse",
}

// IntentFor returns the intent used for every scenario of a domain. Domains
// outside the baseline get an empty goal.
func IntentFor(domain string) layout.Intent {
	return layout.Intent{
		Domain:  domain,
		Goal:    domainGoals[domain],
		Density: "medium",
		Device:  "desktop",
	}
}

type matrixFile struct {
	Cases []Case `yaml:"cases"`
}

// LoadMatrix reads a scenario table from a YAML file.
func LoadMatrix(path string) ([]Case, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read matrix: %w", err)
	}
	return ParseMatrix(data)
}

// ParseMatrix parses and validates a YAML scenario table.
func ParseMatrix(data []byte) ([]Case, error) {
	var f matrixFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse matrix: %w", err)
	}
	if err := ValidateMatrix(f.Cases); err != nil {
		return nil, err
	}
	return f.Cases, nil
}

// ValidateMatrix checks that cases are named uniquely and that every range
// is well formed.
func ValidateMatrix(cases []Case) error {
	if len(cases) == 0 {
		return errors.New("matrix: no cases")
	}
	var errs []error
	seen := make(map[string]bool, len(cases))
	for i, c := range cases {
		name := strings.TrimSpace(c.Name)
		switch {
		case name == "":
			errs = append(errs, fmt.Errorf("matrix: case %d: name is required", i))
		case seen[name]:
			errs = append(errs, fmt.Errorf("matrix: duplicate case %q", name))
		}
		seen[name] = true
		if c.Domain == "" {
			errs = append(errs, fmt.Errorf("matrix: case %q: domain is required", c.Name))
		}
		if c.Bounds.Items.Constrained() && c.Kind == "" {
			errs = append(errs, fmt.Errorf("matrix: case %q: items bound needs a kind", c.Name))
		}
		for _, b := range c.Bounds.each(c.Kind) {
			if b.r.Lo != nil && b.r.Hi != nil && *b.r.Lo > *b.r.Hi {
				errs = append(errs, fmt.Errorf("matrix: case %q: %s range %s is empty", c.Name, b.label, b.r))
			}
		}
	}
	return errors.Join(errs...)
}
