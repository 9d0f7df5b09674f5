package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/bumpflow/internal/reference"
	"github.com/roach88/bumpflow/internal/tactic"
	"github.com/roach88/bumpflow/internal/vcs"
)

// Gather tactic names.
const (
	TacticHead   = "head"
	TacticBranch = "current-branch"
	TacticTags   = "tags"
)

// gatherState is the state of the gather maneuver. Each tactic patches only
// its own field, so the parallel merge is order-independent in effect.
type gatherState struct {
	Info reference.GitInfo
}

func gatherTactics(repo vcs.Repository) []tactic.Tactic[string, gatherState] {
	always := func(gatherState) bool { return true }
	return []tactic.Tactic[string, gatherState]{
		tactic.New(TacticHead, always, func(ctx context.Context, _ gatherState) tactic.Result[string, gatherState] {
			head, err := repo.RevParse(ctx, "HEAD")
			if err != nil {
				return tactic.Failed[string, gatherState](err)
			}
			return tactic.Succeeded[string, gatherState](head, "HEAD is "+head).
				WithPatch(func(s gatherState) gatherState { s.Info.Head = head; return s })
		}),
		tactic.New(TacticBranch, always, func(ctx context.Context, _ gatherState) tactic.Result[string, gatherState] {
			branch, err := repo.CurrentBranch(ctx)
			if err != nil {
				return tactic.Failed[string, gatherState](err)
			}
			return tactic.Succeeded[string, gatherState](branch, "on "+branch).
				WithPatch(func(s gatherState) gatherState { s.Info.Branch = branch; return s })
		}),
		tactic.New(TacticTags, always, func(ctx context.Context, _ gatherState) tactic.Result[string, gatherState] {
			tags, err := repo.Tags(ctx)
			if err != nil {
				return tactic.Failed[string, gatherState](err)
			}
			return tactic.Succeeded[string, gatherState]("", fmt.Sprintf("%d tags", len(tags))).
				WithPatch(func(s gatherState) gatherState { s.Info.Tags = tags; return s })
		}),
	}
}

// gather reads HEAD, the checked-out branch and the tag list concurrently.
// Individual failures are tolerated: an empty repository has no HEAD and a
// detached checkout has no branch, and later stages decide whether that
// matters.
func gather(ctx context.Context, repo vcs.Repository, logger *slog.Logger) (reference.GitInfo, []tactic.Outcome) {
	m := tactic.All[string, gatherState]("gather-git-info", gatherTactics(repo)...).WithLogger(logger)
	m.Parallel = true

	res, _ := m.Execute(ctx, gatherState{})
	if !res.Success {
		logger.Info("git info unavailable", "message", res.Message)
	}
	return res.State.Info, res.Outcomes
}
