package layout

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
)

// Issue records a malformed field found while decoding. Issues never abort
// decoding; the affected value defaults to zero.
type Issue struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (i Issue) String() string {
	return fmt.Sprintf("%s: %s", i.Field, i.Message)
}

// Decode reads loosely typed generator output. Missing or non-numeric
// numbers decode as 0 and are reported as issues.
func Decode(data []byte) (Layout, []Issue) {
	var l Layout
	var issues []Issue

	if !gjson.ValidBytes(data) {
		return l, []Issue{{Field: "layout", Message: "invalid JSON"}}
	}
	root := gjson.ParseBytes(data)
	if !root.IsObject() {
		return l, []Issue{{Field: "layout", Message: fmt.Sprintf("expected object, got %s", root.Type)}}
	}

	l.Structure.Type = root.Get("structure.type").String()
	for i, r := range root.Get("structure.regions").Array() {
		if !r.IsObject() {
			issues = append(issues, Issue{Field: fmt.Sprintf("structure.regions[%d]", i), Message: "expected object"})
			continue
		}
		l.Structure.Regions = append(l.Structure.Regions, Region{
			Name: r.Get("name").String(),
			Role: r.Get("role").String(),
			Type: r.Get("type").String(),
		})
	}

	cols := root.Get("grid.cols")
	switch {
	case !cols.Exists():
		issues = append(issues, Issue{Field: "grid.cols", Message: "missing"})
	case cols.Type != gjson.Number:
		issues = append(issues, Issue{Field: "grid.cols", Message: fmt.Sprintf("not a number: %s", cols.Raw)})
	default:
		l.Grid.Cols = int(cols.Int())
	}

	slots := root.Get("slots")
	switch {
	case !slots.Exists():
		issues = append(issues, Issue{Field: "slots", Message: "missing"})
	case !slots.IsArray():
		issues = append(issues, Issue{Field: "slots", Message: "not an array"})
	default:
		for _, s := range slots.Array() {
			l.Slots = append(l.Slots, decodeSlot(s))
		}
	}

	meta := root.Get("metadata")
	if meta.IsObject() {
		meta.ForEach(func(key, value gjson.Result) bool {
			name := key.String()
			if name == "variations" {
				issues = append(issues, decodeVariations(value, &l.Metadata)...)
				return true
			}
			if !strings.HasSuffix(name, "Count") {
				return true
			}
			if value.Type != gjson.Number {
				issues = append(issues, Issue{Field: "metadata." + name, Message: fmt.Sprintf("not a number: %s", value.Raw)})
				return true
			}
			if l.Metadata.Counts == nil {
				l.Metadata.Counts = make(map[string]float64)
			}
			l.Metadata.Counts[name] = value.Float()
			return true
		})
	}

	return l, issues
}

// decodeSlot accepts either an object or a bare string naming the component.
func decodeSlot(s gjson.Result) Slot {
	if s.Type == gjson.String {
		return Slot{Component: s.String()}
	}
	return Slot{
		Component: s.Get("component").String(),
		Type:      s.Get("type").String(),
		Kind:      s.Get("kind").String(),
		Role:      s.Get("role").String(),
	}
}

func decodeVariations(v gjson.Result, m *Metadata) []Issue {
	if !v.IsObject() {
		return []Issue{{Field: "metadata.variations", Message: "not an object"}}
	}
	var issues []Issue
	v.ForEach(func(key, value gjson.Result) bool {
		name := key.String()
		if value.Type != gjson.Number {
			if strings.HasSuffix(name, "Count") {
				issues = append(issues, Issue{Field: "metadata.variations." + name, Message: fmt.Sprintf("not a number: %s", value.Raw)})
			}
			return true
		}
		if m.Variations == nil {
			m.Variations = make(map[string]float64)
		}
		m.Variations[name] = value.Float()
		return true
	})
	return issues
}

// FromMap decodes the map a scripted generator returns.
func FromMap(m map[string]any) (Layout, []Issue, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return Layout{}, nil, fmt.Errorf("encode layout: %w", err)
	}
	l, issues := Decode(data)
	return l, issues, nil
}
