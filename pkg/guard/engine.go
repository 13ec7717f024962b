// Package guard runs the Baseline Guard: it drives a layout generator
// through a fixed scenario matrix, checks the extracted metrics against
// expected bounds, replays one scenario to check determinism and records
// the aggregate outcome.
package guard

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/cgast/affordkit/pkg/events"
	"github.com/cgast/affordkit/pkg/generator"
	"github.com/cgast/affordkit/pkg/layout"
	"github.com/cgast/affordkit/pkg/store"
)

// State is the lifecycle position of an Engine.
type State int

const (
	StateIdle State = iota
	StateRunning
	StateReported
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateReported:
		return "reported"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Source locates the generator under test. *generator.Resolver implements it.
type Source interface {
	Resolve(ctx context.Context) (generator.Resolved, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context) (generator.Resolved, error)

func (f SourceFunc) Resolve(ctx context.Context) (generator.Resolved, error) { return f(ctx) }

// Option configures the Engine.
type Option func(*Engine)

// WithConcurrency evaluates up to n checks at once. Results keep matrix
// order regardless.
func WithConcurrency(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.concurrency = n
		}
	}
}

// WithStore persists the last-run record to s.
func WithStore(s store.Store) Option {
	return func(e *Engine) { e.store = s }
}

// WithBus publishes progress events to b.
func WithBus(b events.EventBus) Option {
	return func(e *Engine) { e.bus = b }
}

func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

func WithTracer(t trace.Tracer) Option {
	return func(e *Engine) {
		if t != nil {
			e.tracer = t
		}
	}
}

// WithClock overrides the time source used for report timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithMatrix replaces the baseline scenarios.
func WithMatrix(cases []Case) Option {
	return func(e *Engine) {
		e.matrix = append([]Case(nil), cases...)
	}
}

// Engine runs the guard. Runs are serialized; each one resets the state to
// running and ends in reported.
type Engine struct {
	source      Source
	matrix      []Case
	concurrency int
	store       store.Store
	bus         events.EventBus
	logger      *zap.Logger
	tracer      trace.Tracer
	now         func() time.Time

	runMu sync.Mutex
	mu    sync.RWMutex
	state State
	last  *Report
}

// NewEngine creates an engine that tests the generator located by source.
func NewEngine(source Source, opts ...Option) *Engine {
	e := &Engine{
		source:      source,
		matrix:      DefaultMatrix(),
		concurrency: 1,
		logger:      zap.NewNop(),
		tracer:      otel.Tracer("github.com/cgast/affordkit/pkg/guard"),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// State returns the current lifecycle state.
func (e *Engine) State() State {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state
}

// Last returns the report of the most recent run, if any.
func (e *Engine) Last() (Report, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.last == nil {
		return Report{}, false
	}
	return *e.last, true
}

func (e *Engine) setState(s State) {
	e.mu.Lock()
	e.state = s
	e.mu.Unlock()
}

// Run executes the matrix and the determinism check. A generator that
// cannot be resolved aborts the run with ErrGeneratorUnavailable; nothing is
// persisted in that case. Failing cases never abort the run. The returned
// error is otherwise non-nil only when the last-run record cannot be saved.
func (e *Engine) Run(ctx context.Context) (Report, error) {
	e.runMu.Lock()
	defer e.runMu.Unlock()

	e.setState(StateRunning)
	start := e.now()
	report := Report{RunID: uuid.NewString(), At: start}

	ctx, span := e.tracer.Start(ctx, "guard.run", trace.WithAttributes(
		attribute.String("guard.run_id", report.RunID),
		attribute.Int("guard.cases", len(e.matrix)),
	))
	defer span.End()

	log := e.logger.With(zap.String("run_id", report.RunID))
	e.publish(report.RunID, events.EventRunStart, len(e.matrix))

	resolved, err := e.resolve(ctx)
	if err != nil {
		if !errors.Is(err, generator.ErrGeneratorUnavailable) {
			err = fmt.Errorf("%w: %w", generator.ErrGeneratorUnavailable, err)
		}
		report.Unavailable = err.Error()
		report.Duration = e.now().Sub(start)
		span.RecordError(err)
		span.SetStatus(codes.Error, "generator unavailable")
		log.Error("generator unavailable", zap.Error(err))
		e.publish(report.RunID, events.EventGeneratorUnavailable, report.Unavailable)
		e.publish(report.RunID, events.EventRunEnd, events.RunData{Pass: false})
		e.finish(report)
		return report, err
	}
	report.Source = resolved.Source
	span.SetAttributes(attribute.String("guard.generator", resolved.Source))
	log.Debug("generator resolved", zap.String("source", resolved.Source))
	e.publish(report.RunID, events.EventGeneratorResolved, resolved.Source)

	report.Cases = make([]CaseResult, len(e.matrix))
	var det DeterminismResult

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)
	for i, c := range e.matrix {
		g.Go(func() error {
			cr := e.runCase(gctx, resolved.Generator, c)
			report.Cases[i] = cr
			e.publish(report.RunID, events.EventCaseResult, events.CaseData{
				Name: cr.Case.Name, Pass: cr.Pass, Failed: cr.Violations,
			})
			return nil
		})
	}
	g.Go(func() error {
		det = e.checkDeterminism(gctx, resolved.Generator)
		return nil
	})
	_ = g.Wait() // checks record failures instead of returning them

	report.Pass = det.Pass
	for _, cr := range report.Cases {
		report.Pass = report.Pass && cr.Pass
		if !cr.Pass {
			log.Warn("case failed",
				zap.String("case", cr.Case.Name),
				zap.Strings("violations", cr.Violations),
				zap.String("error", cr.Err))
		}
	}
	report.Determinism = &det
	e.publish(report.RunID, events.EventDeterminism, det.Pass)
	report.Duration = e.now().Sub(start)

	span.SetAttributes(attribute.Bool("guard.pass", report.Pass))
	if !report.Pass {
		span.SetStatus(codes.Error, "baseline guard failed")
	}
	log.Info("guard run finished",
		zap.Bool("pass", report.Pass),
		zap.Int("cases", len(report.Cases)),
		zap.Duration("duration", report.Duration))
	e.publish(report.RunID, events.EventRunEnd, events.RunData{Pass: report.Pass, Cases: len(report.Cases)})

	var saveErr error
	if e.store != nil {
		rec := store.LastRun{At: report.At.UnixMilli(), Pass: report.Pass}
		if err := store.SaveLastRun(e.store, rec); err != nil {
			saveErr = fmt.Errorf("guard: %w", err)
			log.Error("persist last run", zap.Error(err))
		}
	}

	e.finish(report)
	return report, saveErr
}

func (e *Engine) finish(r Report) {
	e.mu.Lock()
	e.last = &r
	e.state = StateReported
	e.mu.Unlock()
}

func (e *Engine) resolve(ctx context.Context) (generator.Resolved, error) {
	ctx, span := e.tracer.Start(ctx, "guard.resolve")
	defer span.End()

	if e.source == nil {
		return generator.Resolved{}, errors.New("no generator source configured")
	}
	res, err := e.source.Resolve(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return generator.Resolved{}, err
	}
	if res.Generator == nil {
		return generator.Resolved{}, fmt.Errorf("source %q returned no generator", res.Source)
	}
	return res, nil
}

// generate calls g, collecting decode issues when g reports them.
func generate(ctx context.Context, g generator.Generator, intent layout.Intent, action int) (layout.Layout, []layout.Issue, error) {
	if r, ok := g.(generator.IssueReporter); ok {
		return r.GenerateWithIssues(ctx, intent, action)
	}
	l, err := g.Generate(ctx, intent, action)
	return l, nil, err
}

func (e *Engine) runCase(ctx context.Context, g generator.Generator, c Case) CaseResult {
	ctx, span := e.tracer.Start(ctx, "guard.case", trace.WithAttributes(
		attribute.String("guard.case", c.Name),
		attribute.String("guard.domain", c.Domain),
		attribute.Int("guard.action", c.Action),
	))
	defer span.End()

	result := evaluate(ctx, g, c)
	span.SetAttributes(attribute.Bool("guard.pass", result.Pass))
	if !result.Pass {
		span.SetStatus(codes.Error, "case failed")
	}
	e.logger.Debug("case evaluated",
		zap.String("case", c.Name),
		zap.Bool("pass", result.Pass),
		zap.Int("cols", result.Observed.Cols),
		zap.Int("slots", result.Observed.Slots),
		zap.Int("items", result.Observed.Items),
		zap.String("item_source", result.Observed.ItemSource))
	return result
}

// evaluate generates one case and checks every constrained bound.
func evaluate(ctx context.Context, g generator.Generator, c Case) CaseResult {
	result := CaseResult{Case: c}

	l, issues, err := generate(ctx, g, c.Intent(), c.Action)
	if err != nil {
		result.Err = fmt.Sprintf("generate: %v", err)
		return result
	}

	items, src := layout.Count(l, c.Kind)
	result.Observed = Observation{
		Cols:       l.Grid.Cols,
		Slots:      len(l.Slots),
		Items:      items,
		ItemSource: src.String(),
		Issues:     issues,
	}

	observed := []int{result.Observed.Cols, result.Observed.Slots, result.Observed.Items}
	for i, b := range c.Bounds.each(c.Kind) {
		if !b.r.Contains(observed[i]) {
			result.Violations = append(result.Violations, fmt.Sprintf("%s %d outside %s", b.label, observed[i], b.r))
		}
	}
	for _, is := range issues {
		if malformed(is, c) {
			result.Violations = append(result.Violations, "malformed "+is.String())
		}
	}

	result.Pass = len(result.Violations) == 0
	return result
}

// malformed reports whether a decode issue touches a required field one of
// the case's bounds reads. Unusable explicit counts are not malformed: item
// counting falls through to structural inference, so those issues are only
// recorded on the observation.
func malformed(is layout.Issue, c Case) bool {
	switch is.Field {
	case "layout":
		return true
	case "grid.cols":
		return c.Bounds.Cols.Constrained()
	case "slots":
		return c.Bounds.Slots.Constrained()
	default:
		return false
	}
}

// checkDeterminism generates the dashboard intent twice and compares the
// fingerprints. Both calls are required; neither is a retry.
func (e *Engine) checkDeterminism(ctx context.Context, g generator.Generator) DeterminismResult {
	ctx, span := e.tracer.Start(ctx, "guard.determinism")
	defer span.End()

	d := DeterminismResult{Intent: IntentFor("dashboard"), Action: DeterminismAction}

	first, _, err := generate(ctx, g, d.Intent, d.Action)
	if err != nil {
		d.Err = fmt.Sprintf("first call: %v", err)
		span.SetStatus(codes.Error, d.Err)
		return d
	}
	second, _, err := generate(ctx, g, d.Intent, d.Action)
	if err != nil {
		d.Err = fmt.Sprintf("second call: %v", err)
		span.SetStatus(codes.Error, d.Err)
		return d
	}

	d.First = layout.FingerprintOf(first)
	d.Second = layout.FingerprintOf(second)
	d.Pass = d.First == d.Second
	span.SetAttributes(attribute.Bool("guard.pass", d.Pass))
	if !d.Pass {
		span.SetStatus(codes.Error, "non-deterministic output")
	}
	return d
}

func (e *Engine) publish(runID string, typ events.EventType, data any) {
	if e.bus == nil {
		return
	}
	ev := events.NewEvent(typ, data)
	ev.Timestamp = e.now()
	ev.RunID = runID
	e.bus.Publish(ev)
}
