package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/reflux-go/reflux/internal/harness"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Scenario string
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Run a scenario and report the final store and trace",
		Long: `Run a conformance scenario file against a fresh dispatcher on the
in-memory hub, evaluate its assertions and print the final store and the
devtools trace.

Exit codes:
  0 - scenario ran and all assertions passed
  1 - assertion failure or command error

Examples:
  reflux replay --scenario scenarios/counter.yaml
  reflux replay --scenario scenarios/counter.yaml --format json`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			sc, err := harness.LoadScenario(opts.Scenario)
			if err != nil {
				return err
			}
			result, err := harness.Run(sc)
			if err != nil {
				return err
			}
			if err := printResult(cmd.OutOrStdout(), opts.Format, sc, result); err != nil {
				return err
			}
			if !result.Pass {
				return fmt.Errorf("scenario %s: %d assertion(s) failed", sc.Name, len(result.Failures))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.Scenario, "scenario", "", "scenario file to run (required)")
	_ = cmd.MarkFlagRequired("scenario")

	return cmd
}
