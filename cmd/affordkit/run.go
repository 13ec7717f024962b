package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/cgast/affordkit/internal/inspector"
	"github.com/cgast/affordkit/internal/watch"
	"github.com/cgast/affordkit/pkg/events"
	"github.com/cgast/affordkit/pkg/guard"
)

// runFlags are shared by run and watch.
type runFlags struct {
	engineOptions
	json     bool
	plain    bool
	progress bool
	noNotify bool
	inspect  string
}

func (f *runFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.matrixPath, "matrix", "", "Scenario matrix YAML replacing the built-in cases")
	cmd.Flags().IntVar(&f.concurrency, "concurrency", 0, "Checks evaluated at once (default from config)")
	cmd.Flags().BoolVar(&f.json, "json", false, "Print the report as JSON")
	cmd.Flags().BoolVar(&f.plain, "plain", false, "Print the report without styling")
	cmd.Flags().BoolVar(&f.progress, "progress", false, "Print each check to stderr as it finishes")
	cmd.Flags().BoolVar(&f.noNotify, "no-notify", false, "Do not file a GitHub issue on failure")
}

func newRunCmd(a *app) *cobra.Command {
	var f runFlags
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the Baseline Guard once",
		Long: `Resolve the project's layout generator, drive it through the scenario
matrix and the determinism check, and print the grouped report. The exit
status is 1 when any check fails or no generator can be resolved.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			defer a.teardown(ctx)

			bus := events.NewMemoryBus()
			reg, err := a.registry(bus)
			if err != nil {
				return err
			}
			st, err := a.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			eng, err := a.engine(reg, st, bus, f.engineOptions)
			if err != nil {
				return err
			}
			_, err = a.guardOnce(ctx, cmd.OutOrStdout(), cmd.ErrOrStderr(), eng, bus, f)
			return err
		},
	}
	f.bind(cmd)
	return cmd
}

// guardOnce runs eng, prints the report and files a notification for a
// failed run. It returns errGuardFailed when the run completed but failed.
func (a *app) guardOnce(ctx context.Context, out, errOut io.Writer, eng *guard.Engine, bus *events.MemoryBus, f runFlags) (guard.Report, error) {
	stop := func() {}
	if f.progress {
		stop = streamProgress(bus, errOut)
	}
	report, runErr := eng.Run(ctx)
	stop()

	if err := writeReport(out, report, f); err != nil {
		return report, err
	}
	if !f.noNotify {
		a.notifyFailure(ctx, report)
	}
	if runErr != nil {
		return report, runErr
	}
	if !report.Pass {
		return report, errGuardFailed
	}
	return report, nil
}

// streamProgress prints check results as they are published until the
// returned stop func is called.
func streamProgress(bus *events.MemoryBus, w io.Writer) (stop func()) {
	ch := bus.Subscribe(events.EventCaseResult, events.EventDeterminism, events.EventGeneratorResolved)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for ev := range ch {
			if line := progressLine(ev); line != "" {
				fmt.Fprintln(w, line)
			}
		}
	}()
	return func() {
		bus.Unsubscribe(ch)
		<-done
	}
}

func progressLine(ev events.Event) string {
	switch data := ev.Data.(type) {
	case events.CaseData:
		if data.Pass {
			return "PASS " + data.Name
		}
		if len(data.Failed) == 0 {
			return "FAIL " + data.Name
		}
		return "FAIL " + data.Name + ": " + strings.Join(data.Failed, "; ")
	case bool:
		if ev.Type != events.EventDeterminism {
			return ""
		}
		if data {
			return "PASS determinism"
		}
		return "FAIL determinism"
	case string:
		if ev.Type == events.EventGeneratorResolved {
			return "generator " + data
		}
	}
	return ""
}

func writeReport(w io.Writer, r guard.Report, f runFlags) error {
	switch {
	case f.json:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	case f.plain:
		for _, line := range r.Lines() {
			if _, err := fmt.Fprintln(w, line); err != nil {
				return err
			}
		}
		return nil
	default:
		return r.Render(w)
	}
}

// notifyFailure files or updates the GitHub issue for a failed run.
// Notification problems are logged, never returned.
func (a *app) notifyFailure(ctx context.Context, r guard.Report) {
	if r.Pass {
		return
	}
	n, err := a.notifier()
	if err != nil {
		a.logger.Warn("notify disabled", zap.Error(err))
		return
	}
	if n == nil {
		return
	}
	res, err := n.Notify(ctx, r)
	if err != nil {
		a.logger.Warn("notify failed", zap.Error(err))
		return
	}
	a.logger.Info("failure reported",
		zap.Int("issue", res.Number),
		zap.String("url", res.URL),
		zap.Bool("commented", res.Commented))
}

func newWatchCmd(a *app) *cobra.Command {
	var f runFlags
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Re-run the Baseline Guard whenever the generator or catalog changes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			defer a.teardown(ctx)

			bus := events.NewMemoryBus()
			st, err := a.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			out, errOut := cmd.OutOrStdout(), cmd.ErrOrStderr()
			latest := &inspector.Latest{}
			runOnce := func(ctx context.Context) {
				// the catalog may have changed, so rebuild everything
				reg, err := a.registry(bus)
				if err != nil {
					a.logger.Error("load catalog", zap.Error(err))
					return
				}
				eng, err := a.engine(reg, st, bus, f.engineOptions)
				if err != nil {
					a.logger.Error("build engine", zap.Error(err))
					return
				}
				report, err := a.guardOnce(ctx, out, errOut, eng, bus, f)
				latest.Set(report)
				if err != nil && !errors.Is(err, errGuardFailed) {
					a.logger.Error("guard run", zap.Error(err))
				}
			}
			runOnce(ctx)

			g, gctx := errgroup.WithContext(ctx)
			if f.inspect != "" {
				reg, err := a.registry(nil)
				if err != nil {
					return err
				}
				srv := inspector.New(bus, latest, reg, inspector.WithLogger(a.logger.Named("inspector")))
				g.Go(func() error { return srv.Run(gctx, f.inspect) })
			}

			w := watch.New(a.watchTargets(f),
				watch.WithDebounce(a.cfg.Guard.WatchDebounce),
				watch.WithLogger(a.logger.Named("watch")))
			g.Go(func() error {
				return w.Run(gctx, func(ctx context.Context, changed []string) {
					a.logger.Info("change detected", zap.Strings("paths", changed))
					runOnce(ctx)
				})
			})
			return g.Wait()
		},
	}
	f.bind(cmd)
	cmd.Flags().StringVar(&f.inspect, "inspect", "", "Serve the HTTP inspector on this address, e.g. localhost:7878")
	return cmd
}

// watchTargets lists the generator, catalog and matrix files. Config
// changes need a restart.
func (a *app) watchTargets(f runFlags) []string {
	targets := a.paths(a.cfg.Generator.Candidates)
	targets = append(targets, a.path(a.cfg.CatalogPath))
	matrix := a.cfg.MatrixPath
	if f.matrixPath != "" {
		matrix = f.matrixPath
	}
	if matrix != "" {
		targets = append(targets, a.path(matrix))
	}
	return targets
}
