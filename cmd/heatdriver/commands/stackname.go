package commands

import (
	"fmt"

	"github.com/openfroyo/heatdriver/pkg/engine"
	"github.com/spf13/cobra"
)

func newStackNameCommand() *cobra.Command {
	var resourceID, resourceName string

	cmd := &cobra.Command{
		Use:   "stack-name",
		Short: "Print the stack name used for a resource",
		Long: `Print the Heat stack name Create would use for a resource id and name.
Without either, a random name is printed.`,
		Example: `  heatdriver stack-name --resource-id 9f2b --resource-name web-1`,
		RunE: func(cmd *cobra.Command, args []string) error {
			name := engine.RandomStackName()
			if resourceID != "" && resourceName != "" {
				name = engine.StackName(resourceID, resourceName)
			}
			_, err := fmt.Fprintln(cmd.OutOrStdout(), name)
			return err
		},
	}

	cmd.Flags().StringVar(&resourceID, "resource-id", "", "resource id")
	cmd.Flags().StringVar(&resourceName, "resource-name", "", "resource name")

	return cmd
}

func newVersionCommand(version, commit, buildDate string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "heatdriver %s\ncommit: %s\nbuilt: %s\n", version, commit, buildDate)
			return err
		},
	}
}
