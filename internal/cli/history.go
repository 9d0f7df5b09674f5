package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/bumpflow/internal/store"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	DB     string
	Branch string
	Limit  int
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{}

	cmd := &cobra.Command{
		Use:   "history [run-id]",
		Short: "List recorded decisions",
		Long: `List decisions recorded with decide --audit-db, newest first. With a
run ID, show that decision together with its tactic outcomes.

Exit codes:
  0 - Success
  1 - Run not found
  2 - Command error (database missing or unreadable)

Examples:
  bumpflow history --db .bumpflow/history.db
  bumpflow history --db .bumpflow/history.db --branch main --limit 5
  bumpflow history --db .bumpflow/history.db 01912f4e-0b7c-7d3a-9c4e-5f6a7b8c9d0e`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			runID := ""
			if len(args) == 1 {
				runID = args[0]
			}
			return runHistory(rootOpts, opts, runID, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.DB, "db", "", "decision history database (required)")
	cmd.Flags().StringVar(&opts.Branch, "branch", "", "only decisions for this branch")
	cmd.Flags().IntVar(&opts.Limit, "limit", 20, "maximum number of decisions")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runHistory(rootOpts *RootOptions, opts *HistoryOptions, runID string, cmd *cobra.Command) error {
	f := newFormatter(rootOpts, cmd)

	if _, err := os.Stat(opts.DB); err != nil {
		return f.Fail(ExitCommandError, ErrCodeNotFound, fmt.Sprintf("database not found: %s", opts.DB), err)
	}
	st, err := store.Open(opts.DB)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeStore, "failed to open database", err)
	}
	defer st.Close()

	if runID != "" {
		rec, err := st.GetDecision(cmd.Context(), runID)
		if errors.Is(err, store.ErrNotFound) {
			return f.Fail(ExitFailure, ErrCodeNotFound, fmt.Sprintf("run not found: %s", runID), err)
		}
		if err != nil {
			return f.Fail(ExitCommandError, ErrCodeStore, "failed to read decision", err)
		}
		if f.Format == "json" {
			return f.encode(CLIResponse{Status: "ok", Data: rec, RunID: rec.RunID})
		}
		printRecord(f, rec)
		return nil
	}

	records, err := st.ListDecisions(cmd.Context(), store.Filter{Branch: opts.Branch, Limit: opts.Limit})
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeStore, "failed to list decisions", err)
	}
	if f.Format == "json" {
		return f.Success(records)
	}
	if len(records) == 0 {
		fmt.Fprintln(f.Writer, "No decisions recorded")
		return nil
	}
	for _, r := range records {
		next := r.NextVersion
		if next == "" {
			next = "(no bump)"
		}
		fmt.Fprintf(f.Writer, "%s  %s  %-20s %-11s %s → %s\n",
			r.CreatedAt.Format("2006-01-02 15:04:05"), r.RunID, r.Branch, r.Strategy, r.CurrentVersion, next)
	}
	return nil
}

func printRecord(f *OutputFormatter, r store.Record) {
	fmt.Fprintf(f.Writer, "run:       %s\n", r.RunID)
	fmt.Fprintf(f.Writer, "decision:  %s\n", r.DecisionID)
	fmt.Fprintf(f.Writer, "created:   %s\n", r.CreatedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(f.Writer, "branch:    %s @ %s\n", orDash(r.Branch), shortHash(r.Head))
	fmt.Fprintf(f.Writer, "policy:    %s (%s)\n", r.Strategy, r.Source)
	fmt.Fprintf(f.Writer, "reference: %s at %s\n", r.ReferenceVersion, shortHash(r.ReferenceCommit))
	fmt.Fprintf(f.Writer, "bump:      %s\n", r.Bump)
	fmt.Fprintf(f.Writer, "version:   %s → %s\n", r.CurrentVersion, orDash(r.NextVersion))
	fmt.Fprintf(f.Writer, "tag:       %s\n", orDash(r.Tag))
	if len(r.Outcomes) == 0 {
		return
	}
	fmt.Fprintln(f.Writer, "\nTactics:")
	for _, o := range r.Outcomes {
		mark := "✗"
		switch {
		case !o.Assessed:
			mark = "-"
		case o.Success:
			mark = "✓"
		}
		fmt.Fprintf(f.Writer, "  %s %-9s %s\n", mark, o.Stage, o.Tactic)
	}
}
