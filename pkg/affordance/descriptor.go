// Package affordance describes what each widget can display, where it
// applies and which user goals it serves. Layout generators query the
// registry to rank and select widgets; the registry itself has no
// generation logic.
package affordance

import (
	"fmt"
	"slices"
	"strings"
)

// Descriptor is the declarative affordance metadata of one widget kind.
type Descriptor struct {
	Capabilities []string `yaml:"capabilities" json:"capabilities"`
	Contexts     []string `yaml:"contexts" json:"contexts"`
	Goals        []string `yaml:"goals" json:"goals"`
	Priority     int      `yaml:"priority" json:"priority"` // higher wins among widgets sharing a capability
}

// Widget pairs a descriptor with the kind it is registered under.
type Widget struct {
	Kind       string `yaml:"kind" json:"kind"`
	Descriptor `yaml:",inline"`
}

// ValidationError represents a single descriptor validation failure.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationResult holds all validation errors for a descriptor.
type ValidationResult struct {
	Errors []ValidationError
}

// Valid returns true if no validation errors were found.
func (r ValidationResult) Valid() bool {
	return len(r.Errors) == 0
}

// Error returns a combined error message from all validation errors.
func (r ValidationResult) Error() string {
	if r.Valid() {
		return ""
	}
	msgs := make([]string, len(r.Errors))
	for i, e := range r.Errors {
		msgs[i] = e.Error()
	}
	return fmt.Sprintf("invalid descriptor: %s", strings.Join(msgs, "; "))
}

// Validate checks the descriptor invariants: every tag set is non-empty,
// holds no blank tags, and the priority is non-negative.
func (d Descriptor) Validate() ValidationResult {
	var result ValidationResult

	checkSet := func(field string, tags []string) {
		if len(tags) == 0 {
			result.Errors = append(result.Errors, ValidationError{Field: field, Message: "required"})
			return
		}
		for i, tag := range tags {
			if strings.TrimSpace(tag) == "" {
				result.Errors = append(result.Errors, ValidationError{
					Field:   fmt.Sprintf("%s[%d]", field, i),
					Message: "empty tag",
				})
			}
		}
	}

	checkSet("capabilities", d.Capabilities)
	checkSet("contexts", d.Contexts)
	checkSet("goals", d.Goals)

	if d.Priority < 0 {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "priority",
			Message: fmt.Sprintf("must be non-negative, got %d", d.Priority),
		})
	}

	return result
}

// Supports reports whether the descriptor lists every non-empty criterion.
func (d Descriptor) Supports(capability, context, goal string) bool {
	if capability != "" && !slices.Contains(d.Capabilities, capability) {
		return false
	}
	if context != "" && !slices.Contains(d.Contexts, context) {
		return false
	}
	if goal != "" && !slices.Contains(d.Goals, goal) {
		return false
	}
	return true
}

// clone returns a deep copy so registered descriptors stay immutable.
func (d Descriptor) clone() Descriptor {
	return Descriptor{
		Capabilities: slices.Clone(d.Capabilities),
		Contexts:     slices.Clone(d.Contexts),
		Goals:        slices.Clone(d.Goals),
		Priority:     d.Priority,
	}
}
