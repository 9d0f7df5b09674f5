package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/bumpflow/internal/engine"
	"github.com/roach88/bumpflow/internal/flow"
	"github.com/roach88/bumpflow/internal/semver"
)

// MatchOptions holds flags for the match command.
type MatchOptions struct {
	Branch       string
	EventType    string
	TargetBranch string
}

// MatchCandidate is one flow whose conditions hold, with its score.
type MatchCandidate struct {
	Name  string `json:"name"`
	From  string `json:"from"`
	To    string `json:"to,omitempty"`
	Score int    `json:"score"`
}

// MatchResult is the data payload of match.
type MatchResult struct {
	Branch     string                   `json:"branch"`
	Candidates []MatchCandidate         `json:"candidates"`
	Winner     string                   `json:"winner,omitempty"`
	Action     flow.ActionConfiguration `json:"action"`
}

// NewMatchCommand creates the match command.
func NewMatchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &MatchOptions{}

	cmd := &cobra.Command{
		Use:   "match <policy-file>",
		Short: "Show which flow and settings a branch resolves to",
		Long: `Match a branch against the flows and branch rules of a policy document
and print the resolved action configuration. Unmatched branches resolve to
apply-bump defaults.

Exit codes:
  0 - Resolved
  1 - The policy could not be resolved for this branch
  2 - Command error (unreadable or invalid policy document)

Examples:
  bumpflow match versioning.yaml --branch feature/login
  bumpflow match versioning.yaml --branch feature/login --event-type pull_request --target-branch develop`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMatch(rootOpts, opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Branch, "branch", "", "branch to match (required)")
	cmd.Flags().StringVar(&opts.EventType, "event-type", "", "CI event type, e.g. push or pull_request")
	cmd.Flags().StringVar(&opts.TargetBranch, "target-branch", "", "target branch of a pull request")
	_ = cmd.MarkFlagRequired("branch")

	return cmd
}

func runMatch(rootOpts *RootOptions, opts *MatchOptions, path string, cmd *cobra.Command) error {
	f := newFormatter(rootOpts, cmd)

	cfg, err := loadPolicy(path)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodePolicy, "invalid policy document", err)
	}

	q := flow.Query{CurrentBranch: opts.Branch, EventType: opts.EventType, TargetBranch: opts.TargetBranch}
	defaults := flow.ActionConfiguration{
		Strategy:       semver.PolicyApplyBump,
		BranchTemplate: engine.DefaultBranchTemplate,
	}
	action, err := flow.Resolve(cfg, q, defaults)
	if err != nil {
		return f.Fail(ExitFailure, ErrCodePolicy, "policy could not be resolved", err)
	}

	result := MatchResult{Branch: opts.Branch, Candidates: []MatchCandidate{}, Action: action}
	for _, c := range flow.Candidates(cfg.Flows, q) {
		result.Candidates = append(result.Candidates, MatchCandidate{
			Name: c.Name, From: c.From, To: c.To, Score: flow.Score(&c, opts.Branch),
		})
	}
	if winner := flow.Match(cfg.Flows, q); winner != nil {
		result.Winner = winner.Name
	}

	if f.Format == "json" {
		return f.Success(result)
	}

	for _, c := range result.Candidates {
		mark := " "
		if c.Name == result.Winner {
			mark = "✓"
		}
		fmt.Fprintf(f.Writer, "%s %-20s from %-16s score %d\n", mark, c.Name, c.From, c.Score)
	}
	fmt.Fprintf(f.Writer, "source:          %s\n", action.Source)
	fmt.Fprintf(f.Writer, "strategy:        %s\n", action.Strategy)
	fmt.Fprintf(f.Writer, "base branch:     %s\n", orDash(action.BaseBranch))
	fmt.Fprintf(f.Writer, "prerelease id:   %s\n", orDash(action.PrereleaseID))
	fmt.Fprintf(f.Writer, "tag prereleases: %t\n", action.TagPrereleases)
	fmt.Fprintf(f.Writer, "create branch:   %t\n", action.CreateBranch)
	fmt.Fprintf(f.Writer, "branch template: %s\n", action.BranchTemplate)
	return nil
}
