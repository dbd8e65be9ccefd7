package commands

import (
	"context"

	"github.com/openfroyo/heatdriver/pkg/api"
	"github.com/openfroyo/heatdriver/pkg/openstack"
	"github.com/spf13/cobra"
)

func newServeCommand(version string) *cobra.Command {
	var address string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the driver HTTP API",
		Long: `Run the driver HTTP API until interrupted.

The server exposes lifecycle execution, execution polling and reference
discovery. The admin ping endpoint is mounted when admin.enabled is set and
the request listing endpoint when the journal is enabled.`,
		Example: `  # Serve with heatdriver.yaml from the working directory
  heatdriver serve

  # Override the listen address
  heatdriver serve --address :9000`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if address != "" {
				cfg.Server.Address = address
			}

			ctx := cmd.Context()
			a, err := newApp(ctx, cfg, version, appOptions{serving: true})
			if err != nil {
				return err
			}
			defer func() {
				if err := a.Close(context.WithoutCancel(ctx)); err != nil {
					a.logger.Error().Err(err).Msg("Shutdown failed")
				}
			}()

			opts := []api.Option{}
			if cfg.Admin.Enabled {
				opts = append(opts, api.WithPinger(openstack.NewPinger(a.locations)))
			}
			if a.journal != nil {
				opts = append(opts, api.WithJournal(a.journal), api.WithHealthCheck(a.store.HealthCheck))
			}
			if cfg.Metrics.Enabled {
				opts = append(opts, api.WithMetricsHandler(a.telemetry.Metrics.Handler()))
			}

			server := api.NewServer(api.Config{
				RateLimit:      cfg.Server.RateLimit,
				RateBurst:      cfg.Server.RateBurst,
				MaxUploadBytes: cfg.Server.MaxUploadBytes,
				MetricsPath:    cfg.Metrics.Path,
				ReadTimeout:    cfg.Server.ReadTimeout.Duration,
				WriteTimeout:   cfg.Server.WriteTimeout.Duration,
			}, a.orchestrator, a.logger, opts...)

			a.logger.Info().
				Str("address", cfg.Server.Address).
				Bool("admin", cfg.Admin.Enabled).
				Bool("journal", cfg.Journal.Enabled).
				Bool("policies", a.policies != nil).
				Msg("Starting heatdriver")

			return server.ListenAndServe(ctx, cfg.Server.Address)
		},
	}

	cmd.Flags().StringVar(&address, "address", "", "listen address (overrides server.address)")

	return cmd
}
