package cli

import (
	_ "embed"
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	cueyaml "cuelang.org/go/encoding/yaml"
	"github.com/spf13/cobra"

	"github.com/reflux-go/reflux/internal/harness"
)

//go:embed schema.cue
var scenarioSchema string

// ValidateOptions holds flags for the validate command.
type ValidateOptions struct {
	*RootOptions
	Scenario string
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ValidateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate a scenario file against the schema",
		Long: `Validate a scenario YAML file against the embedded CUE schema and the
harness's structural checks, without running it.

Examples:
  reflux validate --scenario scenarios/counter.yaml`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateScenarioFile(opts.Scenario); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: valid\n", opts.Scenario)
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.Scenario, "scenario", "", "scenario file to validate (required)")
	_ = cmd.MarkFlagRequired("scenario")

	return cmd
}

// validateScenarioFile vets a scenario file against the CUE schema, then
// runs the harness's structural validation.
func validateScenarioFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read scenario: %w", err)
	}

	ctx := cuecontext.New()
	schema := ctx.CompileString(scenarioSchema)
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}
	def := schema.LookupPath(cue.ParsePath("#Scenario"))
	if err := def.Err(); err != nil {
		return fmt.Errorf("schema is missing #Scenario: %w", err)
	}

	file, err := cueyaml.Extract(path, data)
	if err != nil {
		return fmt.Errorf("parse scenario: %w", err)
	}
	value := ctx.BuildFile(file)
	if err := value.Err(); err != nil {
		return fmt.Errorf("build scenario: %w", err)
	}

	if err := def.Unify(value).Validate(cue.Final(), cue.Concrete(true)); err != nil {
		return fmt.Errorf("scenario does not match schema:\n%s", cueerrors.Details(err, nil))
	}

	// The CUE schema checks shapes; the harness checks cross-field rules
	// such as one-action-per-step.
	if _, err := harness.LoadScenario(path); err != nil {
		return err
	}
	return nil
}
