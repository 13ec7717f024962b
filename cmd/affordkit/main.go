// Command affordkit inspects the widget affordance registry and runs the
// Baseline Guard against a project's layout generator.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// errGuardFailed signals a completed run with failing checks. The report
// has already been printed, so main only sets the exit status.
var errGuardFailed = errors.New("baseline guard failed")

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "affordkit",
		Short: "Widget affordances and the Baseline Guard for layout generators",
		Long: `affordkit describes what each widget can do, where it applies and
which user goals it serves, and verifies that a layout generator keeps
producing structurally sane layouts for a fixed set of scenarios.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd.Context())
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			a.teardown(cmd.Context())
		},
	}

	root.PersistentFlags().StringVarP(&a.workspace, "root", "r", ".", "Project root")
	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "Config file (default <root>/.affordkit/config.yaml)")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "Enable debug logging")

	root.AddCommand(
		newRunCmd(a),
		newWatchCmd(a),
		newLastCmd(a),
		newWidgetsCmd(a),
		newInitCmd(a),
		newServeCmd(a),
	)
	return root
}
