package main

import "fmt"

// Generate returns a layout inside every baseline bound. Action levels of
// six and above switch to the dense variant.
func Generate(intent map[string]string, action int, catalog []map[string]interface{}) (map[string]interface{}, error) {
	dense := action >= 6

	var kind, structure string
	var cols, items int
	var extras []string
	switch intent["domain"] {
	case "dashboard":
		kind, structure = "kpi", "kpi-grid"
		cols, items, extras = 2, 3, []string{"chart"}
		if dense {
			cols, items, extras = 4, 8, []string{"chart", "data-table"}
		}
	case "blog":
		kind, structure = "article", "feed"
		cols, items, extras = 2, 3, []string{"nav"}
		if dense {
			cols, items = 3, 6
		}
	case "ecommerce":
		kind, structure = "product", "catalog"
		cols, items, extras = 3, 4, []string{"nav"}
		if dense {
			cols, items = 4, 12
		}
	default:
		return nil, fmt.Errorf("unsupported domain %q", intent["domain"])
	}

	known := false
	for _, w := range catalog {
		if w["kind"] == kind {
			known = true
		}
	}
	if !known {
		return nil, fmt.Errorf("widget %q is not registered", kind)
	}

	slots := []interface{}{}
	for i := 0; i < items; i++ {
		slots = append(slots, map[string]interface{}{"component": kind + "-card", "kind": kind})
	}
	for _, e := range extras {
		slots = append(slots, map[string]interface{}{"component": e, "kind": e})
	}

	return map[string]interface{}{
		"structure": map[string]interface{}{"type": structure},
		"grid":      map[string]interface{}{"cols": cols},
		"slots":     slots,
		"metadata": map[string]interface{}{
			"variations": map[string]interface{}{kind + "Count": items},
		},
	}, nil
}
