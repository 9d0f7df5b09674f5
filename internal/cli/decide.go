package cli

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/bumpflow/internal/config"
	"github.com/roach88/bumpflow/internal/engine"
	"github.com/roach88/bumpflow/internal/store"
)

const keyOutputsFile = "outputs-file"

// NewDecideCommand creates the decide command.
func NewDecideCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "decide",
		Short: "Decide the next version",
		Long: `Decide whether and how to bump the package version of the repository.

Inputs come from flags, BUMPFLOW_* environment variables and .bumpflow.yaml,
in that order of precedence. A policy document (--policy) maps branches to
versioning strategies; without one, --strategy and friends apply.

Exit codes:
  0 - Decision made (including "no bump")
  1 - No reference point could be found
  2 - Command error (invalid inputs, policy or repository)

Examples:
  bumpflow decide
  bumpflow decide --base-branch main --strategy pre-release --prerelease-id beta
  bumpflow decide --policy .github/versioning.yaml --event-type pull_request --target-branch develop
  bumpflow decide --outputs-file "$GITHUB_OUTPUT" --audit-db .bumpflow/history.db`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDecide(rootOpts, cmd)
		},
	}

	config.AddFlags(cmd.Flags())
	cmd.Flags().String(keyOutputsFile, "", "append key=value outputs to this file (e.g. $GITHUB_OUTPUT)")

	return cmd
}

func runDecide(opts *RootOptions, cmd *cobra.Command) error {
	f := newFormatter(opts, cmd)

	v, in, err := loadInputs(opts, cmd)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeConfig, "invalid inputs", err)
	}
	policy, err := loadPolicy(in.PolicyFile)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodePolicy, "invalid policy document", err)
	}

	repo := opts.Overrides.repo(in.Dir)
	d, err := opts.Overrides.engine(repo).Decide(cmd.Context(), request(in, policy))
	if err != nil {
		return pipelineError(f, err)
	}
	f.VerboseLog("run %s decided %s", d.RunID, d.DecisionID)

	if in.AuditDB != "" {
		if err := record(cmd, in.AuditDB, d); err != nil {
			return f.Fail(ExitCommandError, ErrCodeStore, "failed to record decision", err)
		}
	}
	if path := v.GetString(keyOutputsFile); path != "" {
		if err := appendOutputs(path, d); err != nil {
			return f.Fail(ExitCommandError, ErrCodeGeneric, "failed to write outputs", err)
		}
	}

	if f.Format == "json" {
		return f.encode(CLIResponse{Status: "ok", Data: d, RunID: d.RunID})
	}
	printDecision(f.Writer, d)
	return nil
}

func record(cmd *cobra.Command, path string, d *engine.Decision) error {
	st, err := store.Open(path)
	if err != nil {
		return err
	}
	defer st.Close()
	return engine.Save(cmd.Context(), st, d)
}

// Outputs returns the decision as ordered key/value pairs, the format CI
// systems consume.
func Outputs(d *engine.Decision) [][2]string {
	return [][2]string{
		{"should-bump", strconv.FormatBool(d.ShouldBump)},
		{"next-version", d.NextVersion},
		{"current-version", d.CurrentVersion},
		{"bump", d.Bump.String()},
		{"tag", d.Tag},
		{"release-branch", d.ReleaseBranch},
		{"strategy", string(d.Policy)},
		{"reference-commit", d.Reference.ReferenceCommit},
		{"reference-version", d.Reference.ReferenceVersion},
		{"package-manager", d.PackageManager.String()},
		{"run-id", d.RunID},
		{"decision-id", d.DecisionID},
	}
}

func appendOutputs(path string, d *engine.Decision) error {
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	var b strings.Builder
	for _, kv := range Outputs(d) {
		fmt.Fprintf(&b, "%s=%s\n", kv[0], kv[1])
	}
	if _, err := file.WriteString(b.String()); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

func printDecision(w io.Writer, d *engine.Decision) {
	fmt.Fprintf(w, "branch:          %s\n", orDash(d.Branch))
	fmt.Fprintf(w, "policy:          %s (%s)\n", d.Policy, d.Action.Source)
	fmt.Fprintf(w, "reference:       %s %s at %s\n", d.Reference.Strategy, d.Reference.ReferenceVersion, shortHash(d.Reference.ReferenceCommit))
	fmt.Fprintf(w, "commits:         %d\n", len(d.Commits))
	bump := d.Bump.String()
	if d.Forced {
		bump += " (forced)"
	}
	fmt.Fprintf(w, "bump:            %s\n", bump)
	fmt.Fprintf(w, "current version: %s\n", d.CurrentVersion)
	fmt.Fprintf(w, "next version:    %s\n", orDash(d.NextVersion))
	fmt.Fprintf(w, "tag:             %s\n", orDash(d.Tag))
	fmt.Fprintf(w, "release branch:  %s\n", orDash(d.ReleaseBranch))
	fmt.Fprintf(w, "package manager: %s\n", d.PackageManager)
	if !d.ShouldBump {
		fmt.Fprintln(w, "✓ No version bump")
		return
	}
	fmt.Fprintf(w, "✓ Bump %s → %s\n", d.CurrentVersion, d.NextVersion)
}
