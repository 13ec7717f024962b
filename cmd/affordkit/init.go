package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/cgast/affordkit/internal/config"
)

// catalogTemplate is written by init. Entries extend or replace the
// built-in widgets by kind.
const catalogTemplate = `# Project widgets. Each entry adds a widget kind or replaces the
# built-in widget of the same kind.
#
# widgets:
#   - kind: review-stars
#     capabilities: [display-rating]
#     contexts: [ecommerce]
#     goals: [compare]
#     priority: 3
widgets: []
`

func newInitCmd(a *app) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default config and widget catalog under .affordkit/",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()

			cfgPath := a.configPath
			if cfgPath == "" {
				cfgPath = config.DefaultPath(a.workspace)
			}
			if exists(cfgPath) && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", cfgPath)
			}
			if err := config.Write(cfgPath, config.DefaultConfig()); err != nil {
				return err
			}
			fmt.Fprintf(out, "Created %s\n", cfgPath)

			catPath := a.path(config.DefaultConfig().CatalogPath)
			if !exists(catPath) {
				if err := os.MkdirAll(filepath.Dir(catPath), 0755); err != nil {
					return fmt.Errorf("create catalog dir: %w", err)
				}
				if err := os.WriteFile(catPath, []byte(catalogTemplate), 0644); err != nil {
					return fmt.Errorf("write catalog: %w", err)
				}
				fmt.Fprintf(out, "Created %s\n", catPath)
			}

			fmt.Fprintln(out)
			fmt.Fprintln(out, "Next steps:")
			fmt.Fprintf(out, "  1. Put the layout generator at one of: %v\n", config.DefaultConfig().Generator.Candidates)
			fmt.Fprintln(out, "  2. Run: affordkit run")
			return nil
		},
	}
	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite an existing config")
	return cmd
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
