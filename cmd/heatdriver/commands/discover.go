package commands

import (
	"context"
	"fmt"

	"github.com/openfroyo/heatdriver/pkg/openstack"
	"github.com/spf13/cobra"
)

func newDiscoverCommand(version string) *cobra.Command {
	var (
		filesDir     string
		archive      string
		locationPath string
	)

	cmd := &cobra.Command{
		Use:   "discover INSTANCE_NAME",
		Short: "Find an existing resource by name",
		Long: `Find an existing resource described by discover.yaml in the driver files.

Prints {"result": null} when nothing matches the instance name.`,
		Example: `  heatdriver discover shared-net --files ./discover-files --location lab.yaml`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			location, err := readLocation(locationPath)
			if err != nil {
				return err
			}
			files, keep, err := openDriverFiles(filesDir, archive)
			if err != nil {
				return err
			}
			if files == nil {
				return fmt.Errorf("one of --files or --archive is required")
			}
			if !keep {
				defer files.RemoveAll()
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			a, err := newApp(ctx, cfg, version, appOptions{keepFiles: keep})
			if err != nil {
				return err
			}
			defer a.Close(context.WithoutCancel(ctx))

			resp, err := a.orchestrator.FindReference(ctx, args[0], files, location)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), resp)
		},
	}

	cmd.Flags().StringVar(&filesDir, "files", "", "driver files directory (used in place)")
	cmd.Flags().StringVar(&archive, "archive", "", "driver files zip archive")
	cmd.Flags().StringVar(&locationPath, "location", "", "deployment location file")
	_ = cmd.MarkFlagRequired("location")

	return cmd
}

func newPingCommand(version string) *cobra.Command {
	var locationPath string

	cmd := &cobra.Command{
		Use:     "ping",
		Short:   "Check that a deployment location's Heat API is reachable",
		Example: `  heatdriver ping --location lab.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			location, err := readLocation(locationPath)
			if err != nil {
				return err
			}
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			a, err := newApp(ctx, cfg, version, appOptions{})
			if err != nil {
				return err
			}
			defer a.Close(context.WithoutCancel(ctx))

			resp := openstack.NewPinger(a.locations).Ping(ctx, location)
			if err := printJSON(cmd.OutOrStdout(), resp); err != nil {
				return err
			}
			if !resp.Success {
				return fmt.Errorf("location %s is not reachable", location.Name)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&locationPath, "location", "", "deployment location file")
	_ = cmd.MarkFlagRequired("location")

	return cmd
}
