package generator

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"

	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"

	"github.com/cgast/affordkit/pkg/affordance"
	"github.com/cgast/affordkit/pkg/layout"
)

const (
	scriptFuncName = "Generate"
	scriptFileName = "generator.go"
)

var (
	intentType  = reflect.TypeOf(map[string]string{})
	catalogType = reflect.TypeOf([]map[string]any{})
	errorType   = reflect.TypeOf((*error)(nil)).Elem()
)

// ScriptGenerator runs a Generate function interpreted from Go source.
//
// The script is a package main file defining one of
//
//	func Generate(intent map[string]string, action int) (map[string]any, error)
//	func Generate(intent map[string]string, action int, catalog []map[string]any) (map[string]any, error)
//
// The error result is optional. The three-argument form receives the
// affordance catalog in registration order.
type ScriptGenerator struct {
	path    string
	fn      reflect.Value
	catalog []map[string]any

	// Interpreted functions are not assumed to be safe for concurrent calls.
	mu sync.Mutex
}

// LoadScript interprets the script at path. A directory resolves to its
// generator.go.
func LoadScript(ctx context.Context, path string, catalog []affordance.Widget) (*ScriptGenerator, error) {
	path, err := scriptPath(path)
	if err != nil {
		return nil, err
	}

	code, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("generator: read %s: %w", path, err)
	}
	if len(strings.TrimSpace(string(code))) == 0 {
		return nil, fmt.Errorf("generator: %s is empty", path)
	}

	i := interp.New(interp.Options{})
	i.Use(stdlib.Symbols)
	if _, err := i.EvalWithContext(ctx, string(code)); err != nil {
		return nil, fmt.Errorf("generator: interpret %s: %w", path, err)
	}
	fn, err := i.EvalWithContext(ctx, scriptFuncName)
	if err != nil {
		return nil, fmt.Errorf("generator: %s must define %s(): %w", path, scriptFuncName, err)
	}
	if err := checkScriptFunc(fn); err != nil {
		return nil, fmt.Errorf("generator: %s: %w", path, err)
	}

	return &ScriptGenerator{
		path:    path,
		fn:      fn,
		catalog: catalogMaps(catalog),
	}, nil
}

// Path returns the script file the generator was loaded from.
func (g *ScriptGenerator) Path() string {
	return g.path
}

// Generate calls the script and decodes its result. Malformed fields are
// decoded leniently; use GenerateWithIssues to see them.
func (g *ScriptGenerator) Generate(ctx context.Context, intent layout.Intent, action int) (layout.Layout, error) {
	l, _, err := g.GenerateWithIssues(ctx, intent, action)
	return l, err
}

// GenerateWithIssues is Generate plus the decoding issues of the result.
func (g *ScriptGenerator) GenerateWithIssues(ctx context.Context, intent layout.Intent, action int) (layout.Layout, []layout.Issue, error) {
	if err := ctx.Err(); err != nil {
		return layout.Layout{}, nil, err
	}

	args := []reflect.Value{
		reflect.ValueOf(intent.Map()),
		reflect.ValueOf(action).Convert(g.fn.Type().In(1)),
	}
	if g.fn.Type().NumIn() == 3 {
		args = append(args, reflect.ValueOf(g.catalog))
	}

	results, err := g.call(args)
	if err != nil {
		return layout.Layout{}, nil, err
	}
	if len(results) == 2 && !results[1].IsNil() {
		if e, ok := results[1].Interface().(error); ok && e != nil {
			return layout.Layout{}, nil, fmt.Errorf("generator: %s: %w", g.path, e)
		}
	}

	if results[0].IsNil() {
		return layout.Layout{}, []layout.Issue{{Field: "layout", Message: "script returned nil"}}, nil
	}
	data, err := json.Marshal(results[0].Interface())
	if err != nil {
		return layout.Layout{}, nil, fmt.Errorf("generator: %s: encode layout: %w", g.path, err)
	}
	l, issues := layout.Decode(data)
	return l, issues, nil
}

func (g *ScriptGenerator) call(args []reflect.Value) (results []reflect.Value, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("generator: %s panicked: %v", g.path, r)
		}
	}()
	return g.fn.Call(args), nil
}

func scriptPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", fmt.Errorf("generator: empty script path")
	}
	info, err := os.Stat(trimmed)
	if err != nil {
		return "", fmt.Errorf("generator: stat %s: %w", trimmed, err)
	}
	if info.IsDir() {
		return filepath.Join(trimmed, scriptFileName), nil
	}
	if filepath.Ext(trimmed) != ".go" {
		return "", fmt.Errorf("generator: %s is not a .go file", trimmed)
	}
	return trimmed, nil
}

func checkScriptFunc(fn reflect.Value) error {
	if !fn.IsValid() || fn.Kind() != reflect.Func {
		return fmt.Errorf("%s is not a function", scriptFuncName)
	}
	t := fn.Type()
	if t.NumIn() < 2 || t.NumIn() > 3 {
		return fmt.Errorf("%s must take (map[string]string, int[, []map[string]any])", scriptFuncName)
	}
	if !intentType.AssignableTo(t.In(0)) || t.In(1).Kind() != reflect.Int {
		return fmt.Errorf("%s must take (map[string]string, int[, []map[string]any])", scriptFuncName)
	}
	if t.NumIn() == 3 && !catalogType.AssignableTo(t.In(2)) {
		return fmt.Errorf("%s third argument must be []map[string]any", scriptFuncName)
	}
	if t.NumOut() == 0 || t.NumOut() > 2 || t.Out(0).Kind() != reflect.Map {
		return fmt.Errorf("%s must return (map[string]any[, error])", scriptFuncName)
	}
	if t.NumOut() == 2 && !t.Out(1).Implements(errorType) {
		return fmt.Errorf("%s second result must be an error", scriptFuncName)
	}
	return nil
}

func catalogMaps(widgets []affordance.Widget) []map[string]any {
	out := make([]map[string]any, 0, len(widgets))
	for _, w := range widgets {
		out = append(out, map[string]any{
			"kind":         w.Kind,
			"capabilities": w.Capabilities,
			"contexts":     w.Contexts,
			"goals":        w.Goals,
			"priority":     w.Priority,
		})
	}
	return out
}
