package commands

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/openfroyo/heatdriver/pkg/engine"
	"github.com/spf13/cobra"
)

func newExecuteCommand(version string) *cobra.Command {
	var (
		lifecycle    string
		filesDir     string
		archive      string
		locationPath string
		systemPath   string
		resourcePath string
		requestPath  string
		topologyPath string
	)

	cmd := &cobra.Command{
		Use:   "execute",
		Short: "Start a lifecycle operation",
		Long: `Start Create, Adopt or Delete against a deployment location and print the
request id to poll.

Property files are flat YAML or JSON documents. The deployment location file
holds name, type and properties (os_api_url, os_auth_* and friends).`,
		Example: `  # Create a stack from a directory holding heat.yaml
  heatdriver execute --lifecycle Create --files ./driver-files \
    --location lab.yaml --system-properties system.yaml

  # Delete a stack recorded in an associated topology
  heatdriver execute --lifecycle Delete --location lab.yaml --topology topology.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			location, err := readLocation(locationPath)
			if err != nil {
				return err
			}
			req := &engine.LifecycleRequest{Lifecycle: lifecycle, Location: location}
			if req.SystemProperties, err = readProperties(systemPath); err != nil {
				return err
			}
			if req.ResourceProperties, err = readProperties(resourcePath); err != nil {
				return err
			}
			if req.RequestProperties, err = readProperties(requestPath); err != nil {
				return err
			}
			if req.AssociatedTopology, err = readTopology(topologyPath); err != nil {
				return err
			}

			files, keep, err := openDriverFiles(filesDir, archive)
			if err != nil {
				return err
			}
			if files != nil && !keep {
				defer files.RemoveAll()
			}
			req.Files = files

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

			resp, err := a.orchestrator.ExecuteLifecycle(ctx, req)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), resp)
		},
	}

	cmd.Flags().StringVarP(&lifecycle, "lifecycle", "l", "", "lifecycle name: Create, Adopt or Delete")
	cmd.Flags().StringVar(&filesDir, "files", "", "driver files directory (used in place)")
	cmd.Flags().StringVar(&archive, "archive", "", "driver files zip archive")
	cmd.Flags().StringVar(&locationPath, "location", "", "deployment location file")
	cmd.Flags().StringVar(&systemPath, "system-properties", "", "system properties file")
	cmd.Flags().StringVar(&resourcePath, "resource-properties", "", "resource properties file")
	cmd.Flags().StringVar(&requestPath, "request-properties", "", "request properties file")
	cmd.Flags().StringVar(&topologyPath, "topology", "", "associated topology file")
	_ = cmd.MarkFlagRequired("lifecycle")
	_ = cmd.MarkFlagRequired("location")

	return cmd
}

var errStillInProgress = errors.New("execution in progress")

func newPollCommand(version string) *cobra.Command {
	var (
		locationPath string
		wait         bool
		interval     time.Duration
		maxInterval  time.Duration
		timeout      time.Duration
	)

	cmd := &cobra.Command{
		Use:   "poll REQUEST_ID",
		Short: "Report the status of a lifecycle request",
		Long: `Report the status of a lifecycle request once, or with --wait keep polling
with exponential backoff until it completes or fails.

The exit status is non-zero when the execution failed.`,
		Example: `  # Check once
  heatdriver poll 'Create::6f1c...::0b7e...' --location lab.yaml

  # Wait up to ten minutes
  heatdriver poll 'Create::6f1c...::0b7e...' --location lab.yaml --wait --timeout 10m`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			requestID := args[0]
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

			var exec *engine.LifecycleExecution
			poll := func() error {
				e, err := a.orchestrator.GetLifecycleExecution(ctx, requestID, location)
				if err != nil {
					return backoff.Permanent(err)
				}
				exec = e
				if wait && !e.Status.IsTerminal() {
					return errStillInProgress
				}
				return nil
			}

			b := backoff.NewExponentialBackOff()
			b.InitialInterval = interval
			b.MaxInterval = maxInterval
			b.MaxElapsedTime = timeout
			notify := func(_ error, next time.Duration) {
				a.logger.Info().Str("request_id", requestID).Dur("next_poll", next).Msg("Execution in progress")
			}

			if err := backoff.RetryNotify(poll, backoff.WithContext(b, ctx), notify); err != nil {
				if errors.Is(err, errStillInProgress) {
					return fmt.Errorf("request %s still in progress after %s", requestID, timeout)
				}
				return err
			}

			if err := printJSON(cmd.OutOrStdout(), exec); err != nil {
				return err
			}
			if exec.Status == engine.ExecutionFailed {
				return fmt.Errorf("execution failed: %s", failureDescription(exec))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&locationPath, "location", "", "deployment location file")
	cmd.Flags().BoolVarP(&wait, "wait", "w", false, "poll until the execution completes or fails")
	cmd.Flags().DurationVar(&interval, "interval", 2*time.Second, "initial wait between polls")
	cmd.Flags().DurationVar(&maxInterval, "max-interval", 30*time.Second, "longest wait between polls")
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Minute, "give up waiting after this long")
	_ = cmd.MarkFlagRequired("location")

	return cmd
}

func failureDescription(exec *engine.LifecycleExecution) string {
	if exec.FailureDetails == nil {
		return "no details"
	}
	return fmt.Sprintf("%s: %s", exec.FailureDetails.FailureCode, exec.FailureDetails.Description)
}
