package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	configPath string
	envFile    string
	verbose    bool
)

// Execute runs the root command
func Execute(ctx context.Context, version, commit, buildDate string) error {
	rootCmd := newRootCommand(version, commit, buildDate)
	return rootCmd.ExecuteContext(ctx)
}

func newRootCommand(version, commit, buildDate string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "heatdriver",
		Short: "OpenStack Heat resource driver",
		Long: `heatdriver runs the lifecycle of infrastructure resources as OpenStack Heat
stacks.

Features:
  - Create, Adopt and Delete stacks from Heat or TOSCA templates
  - Stateless request ids that can be polled from any instance
  - Discovery of existing networks from TOSCA descriptions
  - Admission policies in Rego
  - Request journal in SQLite`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file path (default heatdriver.yaml when present)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file with HD_ overrides")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(newServeCommand(version))
	rootCmd.AddCommand(newExecuteCommand(version))
	rootCmd.AddCommand(newPollCommand(version))
	rootCmd.AddCommand(newDiscoverCommand(version))
	rootCmd.AddCommand(newPingCommand(version))
	rootCmd.AddCommand(newRequestsCommand(version))
	rootCmd.AddCommand(newStackNameCommand())
	rootCmd.AddCommand(newVersionCommand(version, commit, buildDate))

	return rootCmd
}
