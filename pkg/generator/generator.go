// Package generator defines the layout generator contract and locates a
// generator implementation at run time.
//
// A generator must be a pure function of (intent, action): two calls with
// equal arguments return layouts with the same structure type, column
// count, slot count and per-kind item counts. It must not block beyond its
// context or have side effects.
package generator

import (
	"context"

	"github.com/cgast/affordkit/pkg/layout"
)

// Generator produces a layout for an intent at a given action level. A
// higher action level asks for a denser layout.
type Generator interface {
	Generate(ctx context.Context, intent layout.Intent, action int) (layout.Layout, error)
}

// Func adapts a plain function to Generator.
type Func func(ctx context.Context, intent layout.Intent, action int) (layout.Layout, error)

// Generate calls f.
func (f Func) Generate(ctx context.Context, intent layout.Intent, action int) (layout.Layout, error) {
	return f(ctx, intent, action)
}

// Factory returns a ready generator instance.
type Factory func() (Generator, error)

// Static returns a factory that always yields g.
func Static(g Generator) Factory {
	return func() (Generator, error) { return g, nil }
}

// IssueReporter is implemented by generators whose raw output is decoded
// leniently. The guard records the issues on the affected case.
type IssueReporter interface {
	GenerateWithIssues(ctx context.Context, intent layout.Intent, action int) (layout.Layout, []layout.Issue, error)
}
