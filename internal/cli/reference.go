package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/bumpflow/internal/config"
	"github.com/roach88/bumpflow/internal/engine"
)

// NewReferenceCommand creates the reference command.
func NewReferenceCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reference",
		Short: "Show the reference point a decision would compare against",
		Long: `Resolve the policy for the current branch and discover the reference
point, without classifying commits or deciding a version.

Accepts the same inputs as decide.

Exit codes:
  0 - Reference point found
  1 - No reference point could be found
  2 - Command error

Examples:
  bumpflow reference
  bumpflow reference --base-branch develop --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReference(rootOpts, cmd)
		},
	}

	config.AddFlags(cmd.Flags())

	return cmd
}

func runReference(opts *RootOptions, cmd *cobra.Command) error {
	f := newFormatter(opts, cmd)

	_, in, err := loadInputs(opts, cmd)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeConfig, "invalid inputs", err)
	}
	policy, err := loadPolicy(in.PolicyFile)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodePolicy, "invalid policy document", err)
	}

	repo := opts.Overrides.repo(in.Dir)
	d, err := opts.Overrides.engine(repo).Discover(cmd.Context(), request(in, policy))
	if err != nil {
		return pipelineError(f, err)
	}

	if f.Format == "json" {
		return f.encode(CLIResponse{Status: "ok", Data: d, RunID: d.RunID})
	}
	printReference(f, d)
	return nil
}

func printReference(f *OutputFormatter, d *engine.Decision) {
	p := d.Reference
	fmt.Fprintf(f.Writer, "branch:    %s\n", orDash(d.Branch))
	fmt.Fprintf(f.Writer, "policy:    %s (%s)\n", d.Policy, d.Action.Source)
	fmt.Fprintf(f.Writer, "strategy:  %s\n", p.Strategy)
	fmt.Fprintf(f.Writer, "commit:    %s\n", p.ReferenceCommit)
	fmt.Fprintf(f.Writer, "version:   %s\n", p.ReferenceVersion)
	fmt.Fprintf(f.Writer, "finalize:  %t\n", p.ShouldFinalizeVersions)
	fmt.Fprintf(f.Writer, "force:     %t\n", p.ShouldForceBump)
	if f.Verbose {
		printOutcomes(f, d)
	}
}

func printOutcomes(f *OutputFormatter, d *engine.Decision) {
	fmt.Fprintln(f.Writer, "\nTactics:")
	for _, o := range d.Outcomes {
		mark := "✗"
		switch {
		case !o.Assessed:
			mark = "-"
		case o.Success:
			mark = "✓"
		}
		line := fmt.Sprintf("  %s %-9s %s", mark, o.Stage, o.Tactic)
		if o.Message != "" {
			line += ": " + o.Message
		}
		if o.Error != "" {
			line += ": " + o.Error
		}
		fmt.Fprintln(f.Writer, line)
	}
}
