package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/cgast/affordkit/pkg/store"
)

func newLastCmd(a *app) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "last",
		Short: "Show the outcome of the most recent guard run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := a.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			rec, ok, err := store.LoadLastRun(st)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if asJSON {
				if !ok {
					return writeJSON(out, nil)
				}
				return writeJSON(out, rec)
			}
			if !ok {
				fmt.Fprintln(out, "No guard run recorded.")
				return nil
			}
			status := "FAIL"
			if rec.Pass {
				status = "PASS"
			}
			fmt.Fprintf(out, "%s at %s\n", status, rec.Time().UTC().Format(time.RFC3339))
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the stored record as JSON")
	return cmd
}
