package commands

import (
	"context"
	"fmt"

	"github.com/openfroyo/heatdriver/pkg/stores"
	"github.com/spf13/cobra"
)

func newRequestsCommand(version string) *cobra.Command {
	var filter stores.RequestFilter

	cmd := &cobra.Command{
		Use:   "requests [REQUEST_ID]",
		Short: "List journaled lifecycle requests",
		Long: `List recent requests from the request journal, or show one request with its
events. Requires journal.enabled.`,
		Example: `  # Ten most recent Create requests
  heatdriver requests --operation Create --limit 10

  # One request with its poll history
  heatdriver requests 'Create::6f1c...::0b7e...'`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if !cfg.Journal.Enabled {
				return fmt.Errorf("the request journal is disabled (journal.enabled)")
			}
			ctx := cmd.Context()
			a, err := newApp(ctx, cfg, version, appOptions{})
			if err != nil {
				return err
			}
			defer a.Close(context.WithoutCancel(ctx))

			if len(args) == 1 {
				req, events, err := a.journal.Request(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), map[string]interface{}{
					"request": req,
					"events":  events,
				})
			}

			requests, err := a.journal.Recent(ctx, filter)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), requests)
		},
	}

	cmd.Flags().StringVar(&filter.Operation, "operation", "", "only this operation")
	cmd.Flags().StringVar(&filter.StackID, "stack-id", "", "only this stack")
	cmd.Flags().StringVar(&filter.Location, "location", "", "only this deployment location name")
	cmd.Flags().IntVar(&filter.Limit, "limit", 20, "maximum number of requests")
	cmd.Flags().IntVar(&filter.Offset, "offset", 0, "number of requests to skip")

	return cmd
}
