package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/cgast/affordkit/internal/config"
	"github.com/cgast/affordkit/internal/logging"
	"github.com/cgast/affordkit/internal/notify"
	"github.com/cgast/affordkit/internal/sandbox"
	"github.com/cgast/affordkit/internal/telemetry"
	"github.com/cgast/affordkit/pkg/affordance"
	"github.com/cgast/affordkit/pkg/events"
	"github.com/cgast/affordkit/pkg/generator"
	"github.com/cgast/affordkit/pkg/guard"
	"github.com/cgast/affordkit/pkg/store"
)

// app holds the state shared by all commands: flags, the loaded config and
// the process-wide logger.
type app struct {
	workspace  string
	configPath string
	verbose    bool

	cfg      config.Config
	logger   *zap.Logger
	shutdown telemetry.Shutdown
}

func (a *app) setup(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	root, err := filepath.Abs(a.workspace)
	if err != nil {
		return fmt.Errorf("resolve root: %w", err)
	}
	a.workspace = root

	path := a.configPath
	if path == "" {
		path = config.DefaultPath(root)
	}
	cfg, err := config.LoadConfig(path)
	if err != nil {
		return err
	}
	a.cfg = cfg

	logger, err := logging.New(cfg.LogLevel, a.verbose)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	a.logger = logger

	shutdown, err := telemetry.Setup(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.Endpoint)
	if err != nil {
		a.logger.Warn("tracing disabled", zap.Error(err))
		shutdown = nil
	}
	a.shutdown = shutdown
	return nil
}

// teardown flushes traces and logs. It is safe to call more than once.
func (a *app) teardown(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = context.WithoutCancel(ctx)
	if a.shutdown != nil {
		if err := a.shutdown(ctx); err != nil && a.logger != nil {
			a.logger.Warn("flush traces", zap.Error(err))
		}
		a.shutdown = nil
	}
	if a.logger != nil {
		_ = a.logger.Sync()
	}
}

// path resolves p against the project root.
func (a *app) path(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(a.workspace, p)
}

func (a *app) paths(ps []string) []string {
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = a.path(p)
	}
	return out
}

// catalog returns the built-in widgets overlaid with the project catalog.
func (a *app) catalog() ([]affordance.Widget, error) {
	extra, err := affordance.LoadCatalog(a.path(a.cfg.CatalogPath))
	if err != nil {
		return nil, err
	}
	return affordance.Merge(affordance.DefaultCatalog(), extra), nil
}

func (a *app) registry(bus events.EventBus) (*affordance.Registry, error) {
	widgets, err := a.catalog()
	if err != nil {
		return nil, err
	}
	reg, err := affordance.Init(widgets)
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}
	if bus != nil {
		bus.Publish(events.NewEvent(events.EventCatalogLoaded, reg.Kinds()))
	}
	a.logger.Debug("catalog loaded", zap.Int("widgets", reg.Len()))
	return reg, nil
}

func (a *app) openStore() (*store.BoltStore, error) {
	path := a.path(a.cfg.StorePath)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}
	return store.Open(path)
}

// engineOptions carries per-invocation overrides of the guard config.
type engineOptions struct {
	matrixPath  string
	concurrency int
}

func (a *app) engine(reg *affordance.Registry, st store.Store, bus events.EventBus, o engineOptions) (*guard.Engine, error) {
	sbCfg := a.cfg.Sandbox.Sandbox()
	sbCfg.AllowedDirs = a.paths(sbCfg.AllowedDirs)
	sbCfg.DeniedDirs = a.paths(sbCfg.DeniedDirs)
	sb, err := sandbox.New(sbCfg)
	if err != nil {
		return nil, err
	}

	resolver := generator.NewResolver(
		generator.WithCandidates(a.paths(a.cfg.Generator.Candidates)...),
		generator.WithTimeout(a.cfg.Generator.Timeout),
		generator.WithSandbox(sb),
		generator.WithCatalog(reg.All()),
		generator.WithResolverLogger(a.logger.Named("generator")),
	)

	concurrency := a.cfg.Guard.Concurrency
	if o.concurrency > 0 {
		concurrency = o.concurrency
	}
	opts := []guard.Option{
		guard.WithBus(bus),
		guard.WithLogger(a.logger.Named("guard")),
		guard.WithConcurrency(concurrency),
	}
	if st != nil {
		opts = append(opts, guard.WithStore(st))
	}

	matrixPath := a.cfg.MatrixPath
	if o.matrixPath != "" {
		matrixPath = o.matrixPath
	}
	if matrixPath != "" {
		cases, err := guard.LoadMatrix(a.path(matrixPath))
		if err != nil {
			return nil, err
		}
		opts = append(opts, guard.WithMatrix(cases))
	}
	return guard.NewEngine(resolver, opts...), nil
}

// notifier returns nil when GitHub notification is not configured.
func (a *app) notifier() (notify.Notifier, error) {
	gh := a.cfg.Notify.GitHub
	if !gh.Enabled() {
		return nil, nil
	}
	owner, repo, err := gh.OwnerRepo()
	if err != nil {
		return nil, err
	}
	opts := []notify.Option{notify.WithLogger(a.logger.Named("notify"))}
	if gh.BaseURL != "" {
		opts = append(opts, notify.WithBaseURL(gh.BaseURL))
	}
	n, err := notify.NewGitHub(gh.Token, owner, repo, gh.Labels, opts...)
	if err != nil {
		return nil, err
	}
	return n, nil
}
