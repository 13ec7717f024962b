package affordance

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

var (
	// ErrDuplicateRegistration is returned when a kind is registered twice.
	ErrDuplicateRegistration = errors.New("affordance: duplicate registration")
	// ErrNotFound is returned when a kind has not been registered.
	ErrNotFound = errors.New("affordance: kind not found")
)

// Registry holds registered widget descriptors, keyed by kind. It is
// populated once at start-up and read many times afterwards.
type Registry struct {
	mu          sync.RWMutex
	descriptors map[string]Descriptor
	order       []string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		descriptors: make(map[string]Descriptor),
	}
}

// Init builds a registry from an enumerated list of widgets. It stops at the
// first widget that fails to register.
func Init(widgets []Widget) (*Registry, error) {
	reg := NewRegistry()
	for _, w := range widgets {
		if err := reg.Register(w.Kind, w.Descriptor); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

// Register stores a descriptor under kind. Returns ErrDuplicateRegistration
// if the kind is already registered, or the validation failures of an
// invalid descriptor.
func (r *Registry) Register(kind string, d Descriptor) error {
	kind = strings.TrimSpace(kind)
	if kind == "" {
		return fmt.Errorf("affordance: kind is required")
	}
	if vr := d.Validate(); !vr.Valid() {
		return fmt.Errorf("affordance: %s: %w", kind, vr)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.descriptors[kind]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateRegistration, kind)
	}
	r.descriptors[kind] = d.clone()
	r.order = append(r.order, kind)
	return nil
}

// Lookup returns the descriptor registered under kind.
func (r *Registry) Lookup(kind string) (Descriptor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d, ok := r.descriptors[kind]
	if !ok {
		return Descriptor{}, fmt.Errorf("%w: %s", ErrNotFound, kind)
	}
	return d.clone(), nil
}

// All returns every registered widget in registration order.
func (r *Registry) All() []Widget {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Widget, 0, len(r.order))
	for _, kind := range r.order {
		result = append(result, Widget{Kind: kind, Descriptor: r.descriptors[kind].clone()})
	}
	return result
}

// Kinds returns all registered kinds in registration order.
func (r *Registry) Kinds() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	kinds := make([]string, len(r.order))
	copy(kinds, r.order)
	return kinds
}

// Len returns the number of registered widgets.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// Query selects widgets by affordance. Empty fields match anything.
type Query struct {
	Capability string `json:"capability,omitempty"`
	Context    string `json:"context,omitempty"`
	Goal       string `json:"goal,omitempty"`
}

// Match returns the widgets satisfying q, highest priority first. Widgets
// with equal priority keep their registration order.
func (r *Registry) Match(q Query) []Widget {
	var result []Widget
	for _, w := range r.All() {
		if w.Supports(q.Capability, q.Context, q.Goal) {
			result = append(result, w)
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Priority > result[j].Priority
	})
	return result
}
