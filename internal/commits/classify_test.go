package commits

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/bumpflow/internal/semver"
	"github.com/roach88/bumpflow/internal/tactic"
	"github.com/roach88/bumpflow/internal/vcs"
)

func classifier() *Classifier {
	return &Classifier{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

func log(messages ...string) []vcs.Commit {
	commits := make([]vcs.Commit, len(messages))
	for i, m := range messages {
		commits[i] = vcs.Commit{Hash: string(rune('a' + i)), Message: m}
	}
	return commits
}

func TestClassify_FeatWinsOverFix(t *testing.T) {
	res, err := classifier().Classify(context.Background(), log("fix: a", "feat: b", "chore: c"), "")
	require.NoError(t, err)
	assert.Equal(t, semver.BumpMinor, res.Bump)
	assert.Len(t, res.Commits, 3)
	assert.Equal(t, TacticConventional, res.Outcomes[0].Tactic)
}

func TestClassify_BreakingFooterEscalatesInAnyOrder(t *testing.T) {
	orders := [][]string{
		{"fix: a", "feat: b", "chore: c\n\nBREAKING CHANGE: dropped node 16"},
		{"chore: c\n\nBREAKING CHANGE: dropped node 16", "fix: a", "feat: b"},
		{"feat: b", "chore: c\n\nBREAKING CHANGE: dropped node 16", "fix: a"},
	}
	for _, messages := range orders {
		res, err := classifier().Classify(context.Background(), log(messages...), "")
		require.NoError(t, err)
		assert.Equal(t, semver.BumpMajor, res.Bump)
	}
}

func TestClassify_SkipsSinceRef(t *testing.T) {
	commits := log("feat: new thing", "fix: the tagged release commit")
	res, err := classifier().Classify(context.Background(), commits, commits[0].Hash)
	require.NoError(t, err)
	require.Len(t, res.Commits, 1)
	assert.Equal(t, "fix", res.Commits[0].Type)
	assert.Equal(t, semver.BumpPatch, res.Bump)
}

func TestClassify_FallsBackToBestGuess(t *testing.T) {
	res, err := classifier().Classify(context.Background(), log("Added login page", "Fixed typo"), "")
	require.NoError(t, err)
	require.Len(t, res.Outcomes, 2)
	assert.False(t, res.Outcomes[0].Success)
	assert.True(t, res.Outcomes[1].Success)
	assert.Equal(t, semver.BumpMinor, res.Bump)
}

func TestClassify_EmptyIsExhausted(t *testing.T) {
	res, err := classifier().Classify(context.Background(), nil, "")
	require.Error(t, err)
	assert.True(t, tactic.IsExhausted(err))
	assert.Equal(t, semver.BumpNone, res.Bump)
}

func TestClassify_OnlySinceRefIsExhausted(t *testing.T) {
	commits := log("feat: released already")
	_, err := classifier().Classify(context.Background(), commits, commits[0].Hash)
	require.Error(t, err)
}

func TestSignificance(t *testing.T) {
	assert.Equal(t, semver.BumpNone, Significance(nil))
	assert.Equal(t, semver.BumpPatch, Significance([]Info{{Type: "docs"}}))
	assert.Equal(t, semver.BumpMinor, Significance([]Info{{Type: "fix"}, {Type: "feat"}}))
	assert.Equal(t, semver.BumpMajor, Significance([]Info{{Type: "feat"}, {Type: "fix", Breaking: true}}))
}
