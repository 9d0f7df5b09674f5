package reference

import (
	"context"
	"errors"
	"fmt"

	"github.com/roach88/bumpflow/internal/manifest"
	"github.com/roach88/bumpflow/internal/semver"
	"github.com/roach88/bumpflow/internal/tactic"
	"github.com/roach88/bumpflow/internal/vcs"
)

// StrategyTag names the tag-based strategy.
const StrategyTag = "tag-based"

// TagStrategy uses the highest semver tag as the reference.
type TagStrategy struct {
	Repo vcs.Repository
}

func (t *TagStrategy) Name() string { return StrategyTag }

func (t *TagStrategy) Assess(s State) bool { return s.BaseBranch == "" }

func (t *TagStrategy) Attempt(ctx context.Context, s State) tactic.Result[Point, State] {
	p, err := t.discover(ctx, s)
	if err != nil {
		return tactic.Failed[Point, State](err).WithPatch(attempted(StrategyTag, err))
	}
	msg := fmt.Sprintf("tag reference %s at %s", p.ReferenceVersion, short(p.ReferenceCommit))
	if p.ShouldForceBump {
		msg = "no tags; bootstrapping from oldest commit"
	}
	return tactic.Succeeded[Point, State](p, msg).WithPatch(attempted(StrategyTag, nil))
}

func (t *TagStrategy) discover(ctx context.Context, s State) (Point, error) {
	var names []string
	if s.GitInfo != nil && s.GitInfo.Tags != nil {
		names = s.GitInfo.Tags
	} else {
		var err error
		if names, err = t.Repo.Tags(ctx); err != nil {
			return Point{}, fmt.Errorf("list tags: %w", err)
		}
	}

	if tag, ok := semver.Highest(names); ok {
		commit, err := t.Repo.RevParse(ctx, tag.Name)
		if err != nil {
			return Point{}, fmt.Errorf("resolve tag %s: %w", tag.Name, err)
		}
		return Point{
			ReferenceCommit:        commit,
			ReferenceVersion:       tag.Version.String(),
			ShouldFinalizeVersions: s.ShouldFinalize(),
			Strategy:               StrategyTag,
		}, nil
	}

	log, err := t.Repo.Log(ctx, vcs.LogFilter{Ref: s.ActiveBranch, MaxCount: s.LookbackCommits})
	if err != nil {
		return Point{}, fmt.Errorf("list commits: %w", err)
	}
	if len(log) == 0 {
		return Point{}, errors.New("no tags and no commits")
	}
	return Point{
		ReferenceCommit:        log[len(log)-1].Hash,
		ReferenceVersion:       manifest.DefaultVersion,
		ShouldFinalizeVersions: s.ShouldFinalize(),
		ShouldForceBump:        true,
		Strategy:               StrategyTag,
	}, nil
}

func short(hash string) string {
	if len(hash) > 7 {
		return hash[:7]
	}
	return hash
}
