package reference

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/roach88/bumpflow/internal/manifest"
	"github.com/roach88/bumpflow/internal/tactic"
	"github.com/roach88/bumpflow/internal/vcs"
)

// Strategy and tactic names.
const (
	StrategyBranch        = "branch-based"
	TacticLastVersion     = "last-version-commit"
	TacticDiffBased       = "diff-based-version-commit"
	versionLineRange      = `/"version":/,+1`
	versionFieldSubstring = `"version":`
)

// BranchStrategy finds the last commit on the base branch that changed the
// manifest version. It runs a Plan; exhaustion of the plan fails the
// strategy.
type BranchStrategy struct {
	Repo   vcs.Repository
	Reader *manifest.Reader
	Logger *slog.Logger
}

func (b *BranchStrategy) Name() string { return StrategyBranch }

func (b *BranchStrategy) Assess(s State) bool { return s.BaseBranch != "" }

func (b *BranchStrategy) Attempt(ctx context.Context, s State) tactic.Result[Point, State] {
	plan := tactic.NewPlan[Point, State]("branch-version-commit",
		&LastVersionCommitTactic{Repo: b.Repo, Reader: b.Reader},
		&DiffBasedVersionCommitTactic{Repo: b.Repo, Reader: b.Reader},
	).WithLogger(b.Logger)

	res, err := plan.Execute(ctx, s)
	final := res.State
	keep := func(State) State { return final }
	if err != nil {
		return tactic.Failed[Point, State](err).WithPatch(keep)
	}
	return tactic.Succeeded[Point, State](res.Value, "found by "+res.Tactic).WithPatch(keep)
}

// LastVersionCommitTactic asks for the line history of the manifest's
// version field. Newest hash wins.
type LastVersionCommitTactic struct {
	Repo   vcs.Repository
	Reader *manifest.Reader
}

func (t *LastVersionCommitTactic) Name() string { return TacticLastVersion }

func (t *LastVersionCommitTactic) Assess(State) bool { return true }

func (t *LastVersionCommitTactic) Attempt(ctx context.Context, s State) tactic.Result[Point, State] {
	log, err := t.Repo.Log(ctx, vcs.LogFilter{
		Ref:       s.BaseBranch,
		Path:      s.ManifestPath,
		LineRange: versionLineRange,
		MaxCount:  s.MaxCount,
	})
	if err == nil && len(log) == 0 {
		err = fmt.Errorf("no commit changed the version in %s within %d commits", s.ManifestPath, s.MaxCount)
	}
	if err != nil {
		return tactic.Failed[Point, State](err).WithPatch(attempted(TacticLastVersion, err))
	}
	p := branchPoint(ctx, t.Reader, s, log[0].Hash)
	return tactic.Succeeded[Point, State](p, "version line last changed at "+short(p.ReferenceCommit)).
		WithPatch(attempted(TacticLastVersion, nil))
}

// DiffBasedVersionCommitTactic diffs recent manifest commits newest first
// and stops at the first whose diff touches the version field. The scan is
// sequential: the first hit is the answer.
type DiffBasedVersionCommitTactic struct {
	Repo   vcs.Repository
	Reader *manifest.Reader
}

func (t *DiffBasedVersionCommitTactic) Name() string { return TacticDiffBased }

func (t *DiffBasedVersionCommitTactic) Assess(State) bool { return true }

func (t *DiffBasedVersionCommitTactic) Attempt(ctx context.Context, s State) tactic.Result[Point, State] {
	hash, err := t.scan(ctx, s)
	if err != nil {
		return tactic.Failed[Point, State](err).WithPatch(attempted(TacticDiffBased, err))
	}
	p := branchPoint(ctx, t.Reader, s, hash)
	return tactic.Succeeded[Point, State](p, "version diff found at "+short(hash)).
		WithPatch(attempted(TacticDiffBased, nil))
}

func (t *DiffBasedVersionCommitTactic) scan(ctx context.Context, s State) (string, error) {
	log, err := t.Repo.Log(ctx, vcs.LogFilter{Ref: s.BaseBranch, Path: s.ManifestPath, MaxCount: DiffScanLimit})
	if err != nil {
		return "", err
	}
	for _, c := range log {
		diff, err := t.Repo.Diff(ctx, vcs.ParentOf(c.Hash), s.ManifestPath)
		if err != nil {
			return "", fmt.Errorf("diff %s: %w", short(c.Hash), err)
		}
		if strings.Contains(diff, versionFieldSubstring) {
			return c.Hash, nil
		}
	}
	return "", fmt.Errorf("no version change in the last %d commits touching %s", len(log), s.ManifestPath)
}

func branchPoint(ctx context.Context, r *manifest.Reader, s State, hash string) Point {
	return Point{
		ReferenceCommit:        hash,
		ReferenceVersion:       r.VersionAtOrDefault(ctx, hash),
		ShouldFinalizeVersions: s.ShouldFinalize(),
		Strategy:               StrategyBranch,
	}
}
