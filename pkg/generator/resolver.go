package generator

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/cgast/affordkit/pkg/affordance"
)

// ErrGeneratorUnavailable is returned when no generator could be resolved
// within the resolution timeout.
var ErrGeneratorUnavailable = errors.New("generator unavailable")

// DefaultTimeout bounds a whole resolution attempt.
const DefaultTimeout = 5 * time.Second

// PathChecker vets candidate script paths before they are interpreted.
// *sandbox.Sandbox satisfies it.
type PathChecker interface {
	CheckPath(path string) error
	CheckFileSize(size int64) error
}

// Resolved is a located generator and where it came from.
type Resolved struct {
	Generator Generator
	Source    string // "factory" or the script path
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithFactory injects a generator factory. It is tried before any script.
func WithFactory(f Factory) ResolverOption {
	return func(r *Resolver) {
		r.factory = f
	}
}

// WithCandidates sets the ordered script locations to try.
func WithCandidates(paths ...string) ResolverOption {
	return func(r *Resolver) {
		r.candidates = append(r.candidates, paths...)
	}
}

// WithTimeout bounds resolution. Non-positive values keep the default.
func WithTimeout(d time.Duration) ResolverOption {
	return func(r *Resolver) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithSandbox restricts which script paths may be loaded.
func WithSandbox(c PathChecker) ResolverOption {
	return func(r *Resolver) {
		r.checker = c
	}
}

// WithCatalog passes the affordance catalog to scripted generators.
func WithCatalog(widgets []affordance.Widget) ResolverOption {
	return func(r *Resolver) {
		r.catalog = widgets
	}
}

// WithResolverLogger sets the logger used for resolution attempts.
func WithResolverLogger(l *zap.Logger) ResolverOption {
	return func(r *Resolver) {
		if l != nil {
			r.logger = l
		}
	}
}

// Resolver locates a generator: the injected factory first, then each
// candidate script in order, stopping at the first success.
type Resolver struct {
	factory    Factory
	candidates []string
	timeout    time.Duration
	checker    PathChecker
	catalog    []affordance.Widget
	logger     *zap.Logger
}

// NewResolver creates a resolver with the given options.
func NewResolver(opts ...ResolverOption) *Resolver {
	r := &Resolver{
		timeout: DefaultTimeout,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Candidates returns the configured script locations.
func (r *Resolver) Candidates() []string {
	out := make([]string, len(r.candidates))
	copy(out, r.candidates)
	return out
}

// Resolve returns the first generator that loads. It gives up once the
// timeout elapses or ctx is done, returning ErrGeneratorUnavailable.
func (r *Resolver) Resolve(ctx context.Context) (Resolved, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	type outcome struct {
		resolved Resolved
		err      error
	}
	done := make(chan outcome, 1)
	go func() {
		res, err := r.attempt(ctx)
		done <- outcome{resolved: res, err: err}
	}()

	select {
	case out := <-done:
		if out.err != nil {
			return Resolved{}, out.err
		}
		r.logger.Debug("generator resolved", zap.String("source", out.resolved.Source))
		return out.resolved, nil
	case <-ctx.Done():
		return Resolved{}, fmt.Errorf("%w: gave up after %s: %w", ErrGeneratorUnavailable, r.timeout, ctx.Err())
	}
}

func (r *Resolver) attempt(ctx context.Context) (Resolved, error) {
	var errs []error

	if r.factory != nil {
		g, err := r.factory()
		switch {
		case err != nil:
			errs = append(errs, fmt.Errorf("factory: %w", err))
		case g == nil:
			errs = append(errs, errors.New("factory returned nil generator"))
		default:
			return Resolved{Generator: g, Source: "factory"}, nil
		}
	}

	for _, path := range r.candidates {
		if err := ctx.Err(); err != nil {
			return Resolved{}, err
		}
		g, err := r.loadCandidate(ctx, path)
		if err != nil {
			r.logger.Debug("generator candidate rejected", zap.String("path", path), zap.Error(err))
			errs = append(errs, err)
			continue
		}
		return Resolved{Generator: g, Source: g.Path()}, nil
	}

	if len(errs) == 0 {
		errs = append(errs, errors.New("no factory or candidate locations configured"))
	}
	return Resolved{}, fmt.Errorf("%w: %w", ErrGeneratorUnavailable, errors.Join(errs...))
}

func (r *Resolver) loadCandidate(ctx context.Context, path string) (*ScriptGenerator, error) {
	resolved, err := scriptPath(path)
	if err != nil {
		return nil, err
	}
	if r.checker != nil {
		if err := r.checker.CheckPath(resolved); err != nil {
			return nil, fmt.Errorf("generator: %w", err)
		}
		info, err := os.Stat(resolved)
		if err != nil {
			return nil, fmt.Errorf("generator: stat %s: %w", resolved, err)
		}
		if err := r.checker.CheckFileSize(info.Size()); err != nil {
			return nil, fmt.Errorf("generator: %s: %w", resolved, err)
		}
	}
	return LoadScript(ctx, resolved, r.catalog)
}
