package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cgast/affordkit/pkg/events"
	"github.com/cgast/affordkit/pkg/protocol"
)

func newServeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve JSON-RPC 2.0 requests on stdin/stdout",
		Long: `Read newline-delimited JSON-RPC 2.0 requests from stdin and write one
response per line to stdout. Logs go to stderr.

Methods: guard.run, guard.last, widgets.list, widgets.describe, widgets.match`,
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

			eng, err := a.engine(reg, st, bus, engineOptions{})
			if err != nil {
				return err
			}

			h := protocol.NewHandler()
			protocol.RegisterMethods(h, protocol.Services{Engine: eng, Registry: reg, Store: st})
			a.logger.Info("serving", zap.Strings("methods", h.Methods()))
			return protocol.Serve(ctx, h, cmd.InOrStdin(), cmd.OutOrStdout(), a.logger.Named("rpc"))
		},
	}
}
