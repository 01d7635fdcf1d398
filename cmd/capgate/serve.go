package main

import (
	"github.com/spf13/cobra"

	"capgate/internal/app"
)

type serveOptions struct {
	metricsAddr string
	auditDB     string
	watch       bool
}

func newServeCmd(opts *cliOptions) *cobra.Command {
	serve := serveOptions{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the tool registry to an MCP client over stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := signalAwareContext(cmd.Context())
			defer cancel()

			cfg := opts.serveConfig()
			cfg.MetricsAddr = serve.metricsAddr
			cfg.AuditDBPath = serve.auditDB
			cfg.Watch = serve.watch

			application, cleanup, err := app.InitializeApplication(ctx, cfg, opts.logging())
			if err != nil {
				return err
			}
			defer cleanup()
			return application.Run()
		},
	}

	cmd.Flags().StringVar(&serve.metricsAddr, "metrics-addr", "", "serve /metrics and /healthz on this address")
	cmd.Flags().StringVar(&serve.auditDB, "audit-db", "", "persist the audit trail to this bbolt file")
	cmd.Flags().BoolVar(&serve.watch, "watch", false, "reload --config when it changes")
	return cmd
}
