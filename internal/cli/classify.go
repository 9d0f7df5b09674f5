package cli

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/bumpflow/internal/commits"
	"github.com/roach88/bumpflow/internal/semver"
	"github.com/roach88/bumpflow/internal/tactic"
	"github.com/roach88/bumpflow/internal/vcs"
)

// ClassifyOptions holds flags for the classify command.
type ClassifyOptions struct {
	Dir      string
	Since    string
	Ref      string
	MaxCount int
}

// ClassifyResult is the data payload of classify.
type ClassifyResult struct {
	Since    string           `json:"since,omitempty"`
	Commits  []commits.Info   `json:"commits"`
	Bump     semver.BumpType  `json:"bump"`
	Outcomes []tactic.Outcome `json:"outcomes"`
}

// NewClassifyCommand creates the classify command.
func NewClassifyCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ClassifyOptions{}

	cmd := &cobra.Command{
		Use:   "classify",
		Short: "Classify commits and report their bump significance",
		Long: `Classify the commits in since..ref with the conventional-commit grammar,
falling back to keyword guessing, and report the most significant bump.

Exit codes:
  0 - Commits classified (including "no signal")
  2 - Command error (repository unreadable)

Examples:
  bumpflow classify --since v1.2.0
  bumpflow classify --since abc1234 --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runClassify(rootOpts, opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Dir, "dir", ".", "repository directory")
	cmd.Flags().StringVar(&opts.Since, "since", "", "exclude this revision and its ancestors")
	cmd.Flags().StringVar(&opts.Ref, "ref", "", "revision to walk from (default HEAD)")
	cmd.Flags().IntVar(&opts.MaxCount, "max-count", 0, "maximum number of commits (0 = unbounded)")

	return cmd
}

func runClassify(rootOpts *RootOptions, opts *ClassifyOptions, cmd *cobra.Command) error {
	f := newFormatter(rootOpts, cmd)
	if opts.MaxCount < 0 {
		return f.Fail(ExitCommandError, ErrCodeConfig, "max-count must not be negative", nil)
	}

	repo := rootOpts.Overrides.repo(opts.Dir)
	log, err := repo.Log(cmd.Context(), vcs.LogFilter{Ref: opts.Ref, Since: opts.Since, MaxCount: opts.MaxCount})
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeRepository, "failed to read commit log", err)
	}

	classifier := &commits.Classifier{Logger: slog.Default()}
	c, err := classifier.Classify(cmd.Context(), log, opts.Since)
	var exhausted *tactic.ExhaustedError
	if err != nil && !errors.As(err, &exhausted) {
		return f.Fail(ExitCommandError, ErrCodeGeneric, "classification failed", err)
	}
	f.VerboseLog("classified %d of %d commits", len(c.Commits), len(log))

	result := ClassifyResult{Since: opts.Since, Commits: c.Commits, Bump: c.Bump, Outcomes: c.Outcomes}
	if result.Commits == nil {
		result.Commits = []commits.Info{}
	}

	if f.Format == "json" {
		return f.Success(result)
	}

	for _, info := range result.Commits {
		kind := orDash(info.Type)
		if info.Breaking {
			kind += "!"
		}
		fmt.Fprintf(f.Writer, "%-9s %-7s %s\n", kind, shortHash(info.Hash), info.Header)
	}
	if result.Bump == semver.BumpNone {
		fmt.Fprintln(f.Writer, "✓ No bump signal")
		return nil
	}
	fmt.Fprintf(f.Writer, "✓ %d commits, %s bump\n", len(result.Commits), result.Bump)
	return nil
}
