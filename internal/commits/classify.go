package commits

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/roach88/bumpflow/internal/semver"
	"github.com/roach88/bumpflow/internal/tactic"
	"github.com/roach88/bumpflow/internal/vcs"
)

// State is the input threaded through the classification chain.
type State struct {
	Commits  []vcs.Commit
	SinceRef string // boundary commit, already counted by a previous release
}

// Tactic names.
const (
	TacticConventional = "conventional-commits"
	TacticBestGuess    = "best-guess"
)

// ConventionalTactic parses commits with the conventional-commit grammar.
// It fails when no commit carries a recognised type, so the chain can fall
// back to heuristics.
type ConventionalTactic struct{}

func (ConventionalTactic) Name() string { return TacticConventional }

func (ConventionalTactic) Assess(s State) bool { return len(s.Commits) > 0 }

func (ConventionalTactic) Attempt(_ context.Context, s State) tactic.Result[[]Info, State] {
	var infos []Info
	for _, c := range s.Commits {
		if s.SinceRef != "" && c.Hash == s.SinceRef {
			continue
		}
		info, ok := ParseConventional(c.Message)
		if !ok {
			continue
		}
		info.Hash = c.Hash
		infos = append(infos, info)
	}
	if len(infos) == 0 {
		return tactic.Failed[[]Info, State](errors.New("no conventional commits found"))
	}
	return tactic.Succeeded[[]Info, State](infos, fmt.Sprintf("parsed %d of %d commits", len(infos), len(s.Commits)))
}

// BestGuessTactic classifies every commit with lenient heuristics.
type BestGuessTactic struct{}

func (BestGuessTactic) Name() string { return TacticBestGuess }

func (BestGuessTactic) Assess(State) bool { return true }

func (BestGuessTactic) Attempt(_ context.Context, s State) tactic.Result[[]Info, State] {
	var infos []Info
	for _, c := range s.Commits {
		if s.SinceRef != "" && c.Hash == s.SinceRef {
			continue
		}
		info := ParseBestGuess(c.Message)
		info.Hash = c.Hash
		infos = append(infos, info)
	}
	if len(infos) == 0 {
		return tactic.Failed[[]Info, State](errors.New("no commits to classify"))
	}
	return tactic.Succeeded[[]Info, State](infos, fmt.Sprintf("guessed %d commits", len(infos)))
}

// Classification is the outcome of Classify.
type Classification struct {
	Commits  []Info
	Bump     semver.BumpType
	Outcomes []tactic.Outcome
}

// Classifier runs the conventional → best-guess chain.
type Classifier struct {
	Logger *slog.Logger
}

// Classify classifies commits since sinceRef. Exhaustion is returned as a
// *tactic.ExhaustedError together with a Classification carrying the audit
// trail and BumpNone.
func (c *Classifier) Classify(ctx context.Context, commits []vcs.Commit, sinceRef string) (Classification, error) {
	chain := tactic.One[[]Info, State]("classify-commits", ConventionalTactic{}, BestGuessTactic{})
	chain.Logger = c.Logger

	res, err := chain.Execute(ctx, State{Commits: commits, SinceRef: sinceRef})
	out := Classification{Outcomes: res.Outcomes, Bump: semver.BumpNone}
	if err != nil {
		return out, err
	}
	out.Commits = res.Value
	out.Bump = Significance(res.Value)
	return out, nil
}

// Significance reduces classified commits to a bump: any breaking commit is
// major, otherwise any feat is minor, otherwise patch. No commits means no
// signal.
func Significance(infos []Info) semver.BumpType {
	if len(infos) == 0 {
		return semver.BumpNone
	}
	bump := semver.BumpPatch
	for _, info := range infos {
		if info.Breaking {
			return semver.BumpMajor
		}
		if info.Type == "feat" {
			bump = semver.BumpMinor
		}
	}
	return bump
}
