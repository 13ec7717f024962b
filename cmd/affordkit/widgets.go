package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cgast/affordkit/pkg/affordance"
)

func newWidgetsCmd(a *app) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "widgets",
		Short: "Inspect the widget affordance registry",
	}
	cmd.PersistentFlags().BoolVar(&asJSON, "json", false, "Print JSON")

	list := &cobra.Command{
		Use:   "list",
		Short: "List registered widgets in registration order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := a.registry(nil)
			if err != nil {
				return err
			}
			return printWidgets(cmd.OutOrStdout(), reg.All(), asJSON)
		},
	}

	describe := &cobra.Command{
		Use:   "describe <kind>",
		Short: "Show the affordance descriptor of one widget",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := a.registry(nil)
			if err != nil {
				return err
			}
			d, err := reg.Lookup(args[0])
			if err != nil {
				return err
			}
			w := affordance.Widget{Kind: args[0], Descriptor: d}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), w)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Kind:         %s\n", w.Kind)
			fmt.Fprintf(out, "Priority:     %d\n", w.Priority)
			fmt.Fprintf(out, "Capabilities: %s\n", strings.Join(w.Capabilities, ", "))
			fmt.Fprintf(out, "Contexts:     %s\n", strings.Join(w.Contexts, ", "))
			fmt.Fprintf(out, "Goals:        %s\n", strings.Join(w.Goals, ", "))
			return nil
		},
	}

	var q affordance.Query
	match := &cobra.Command{
		Use:   "match",
		Short: "List widgets supporting a capability, context and goal",
		Long: `List the widgets whose descriptor supports every given tag, highest
priority first. Omitted tags match anything.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := a.registry(nil)
			if err != nil {
				return err
			}
			return printWidgets(cmd.OutOrStdout(), reg.Match(q), asJSON)
		},
	}
	match.Flags().StringVar(&q.Capability, "capability", "", "Required capability")
	match.Flags().StringVar(&q.Context, "context", "", "Required context")
	match.Flags().StringVar(&q.Goal, "goal", "", "Required goal")

	cmd.AddCommand(list, describe, match)
	return cmd
}

func printWidgets(w io.Writer, widgets []affordance.Widget, asJSON bool) error {
	if asJSON {
		if widgets == nil {
			widgets = []affordance.Widget{}
		}
		return writeJSON(w, widgets)
	}
	if len(widgets) == 0 {
		fmt.Fprintln(w, "No widgets match.")
		return nil
	}
	for _, wd := range widgets {
		fmt.Fprintf(w, "  %-16s %3d  %s\n", wd.Kind, wd.Priority, strings.Join(wd.Capabilities, ","))
	}
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
