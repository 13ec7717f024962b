// Package layout holds the value types exchanged with a layout generator:
// the caller's Intent going in and the Layout description coming out.
package layout

import (
	"encoding/json"
	"maps"
)

// Intent describes the caller's situation. It is a value type; a generator
// must treat two equal intents identically.
type Intent struct {
	Domain  string `json:"domain"`
	Goal    string `json:"goal"`
	Density string `json:"density"`
	Device  string `json:"device"`
}

// Map returns the intent as a string map, the shape scripted generators
// receive.
func (i Intent) Map() map[string]string {
	return map[string]string{
		"domain":  i.Domain,
		"goal":    i.Goal,
		"density": i.Density,
		"device":  i.Device,
	}
}

// Layout is a generator's output.
type Layout struct {
	Structure Structure `json:"structure"`
	Grid      Grid      `json:"grid"`
	Slots     []Slot    `json:"slots"` // render order
	Metadata  Metadata  `json:"metadata"`
}

// Structure names the layout archetype and optional region grouping.
type Structure struct {
	Type    string   `json:"type"`
	Regions []Region `json:"regions,omitempty"`
}

// Grid carries the column count.
type Grid struct {
	Cols int `json:"cols"`
}

// Slot identifies the widget occupying one grid position. At least one
// field is populated.
type Slot struct {
	Component string `json:"component,omitempty"`
	Type      string `json:"type,omitempty"`
	Kind      string `json:"kind,omitempty"`
	Role      string `json:"role,omitempty"`
}

// Region is a named grouping some structures use instead of flat slots.
type Region struct {
	Name string `json:"name,omitempty"`
	Role string `json:"role,omitempty"`
	Type string `json:"type,omitempty"`
}

// Metadata holds the numeric entries a generator reported.
type Metadata struct {
	// Variations maps keys such as "kpiCount" to item counts.
	Variations map[string]float64
	// Counts holds top-level "<kind>Count" entries.
	Counts map[string]float64
}

// MarshalJSON flattens Counts into the metadata object next to
// "variations", the shape Decode reads back.
func (m Metadata) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(m.Counts)+1)
	for k, v := range m.Counts {
		out[k] = v
	}
	if len(m.Variations) > 0 {
		out["variations"] = maps.Clone(m.Variations)
	}
	return json.Marshal(out)
}
