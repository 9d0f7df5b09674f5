package engine

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/bumpflow/internal/flow"
	"github.com/roach88/bumpflow/internal/reference"
	"github.com/roach88/bumpflow/internal/semver"
	"github.com/roach88/bumpflow/internal/store"
	"github.com/roach88/bumpflow/internal/testutil"
)

func pkg(version string) string {
	return "{\n  \"name\": \"demo\",\n  \"version\": \"" + version + "\"\n}\n"
}

func newTestEngine(repo *testutil.Repo) *Engine {
	return New(repo,
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithIDGenerator(testutil.NewFixedIDGenerator("run-1")),
		WithClock(testutil.NewDeterministicClock().Next),
	)
}

func applyBump() flow.ActionConfiguration {
	return flow.ActionConfiguration{Strategy: semver.PolicyApplyBump}
}

func stages(d *Decision) []string {
	var out []string
	for _, o := range d.Outcomes {
		if len(out) == 0 || out[len(out)-1] != o.Stage {
			out = append(out, o.Stage)
		}
	}
	return out
}

func TestDecide_TagBasedMinor(t *testing.T) {
	repo := testutil.NewRepo("main")
	released := repo.Commit("chore: release 1.0.0", testutil.Files{"package.json": pkg("1.0.0")})
	repo.Tag("v1.0.0")
	repo.Commit("feat: add widgets", testutil.Files{"src/widget.js": "x"})

	d, err := newTestEngine(repo).Decide(context.Background(), Request{Defaults: applyBump()})
	require.NoError(t, err)

	assert.Equal(t, "run-1", d.RunID)
	assert.Equal(t, testutil.Epoch, d.CreatedAt)
	assert.Equal(t, "main", d.Branch)
	assert.Equal(t, reference.StrategyTag, d.Reference.Strategy)
	assert.Equal(t, released, d.Reference.ReferenceCommit)
	assert.Equal(t, "1.0.0", d.CurrentVersion)
	assert.Equal(t, semver.BumpMinor, d.Bump)
	assert.Equal(t, "1.1.0", d.NextVersion)
	assert.True(t, d.ShouldBump)
	assert.Equal(t, "v1.1.0", d.Tag)
	assert.Empty(t, d.ReleaseBranch)
	assert.Equal(t, flow.SourceDefault, d.Action.Source)
	assert.Equal(t, []string{StageGather, StageReference, StageClassify}, stages(d))
	assert.Len(t, d.DecisionID, 64)
}

func TestDecide_ColdStartForcesPatch(t *testing.T) {
	repo := testutil.NewRepo("main")
	repo.Commit("initial import", testutil.Files{"README.md": "hello"})

	d, err := newTestEngine(repo).Decide(context.Background(), Request{Defaults: applyBump()})
	require.NoError(t, err)

	assert.True(t, d.Reference.ShouldForceBump)
	assert.True(t, d.Forced)
	assert.Empty(t, d.Commits)
	assert.Equal(t, "0.0.0", d.CurrentVersion)
	assert.Equal(t, semver.BumpPatch, d.Bump)
	assert.Equal(t, "0.0.1", d.NextVersion)

	var classify []store.StageOutcome
	for _, o := range d.Outcomes {
		if o.Stage == StageClassify {
			classify = append(classify, o)
		}
	}
	require.Len(t, classify, 2)
	assert.False(t, classify[1].Success)
}

func TestDecide_BranchBasedPrerelease(t *testing.T) {
	repo := testutil.NewRepo("main")
	repo.Commit("chore(release): 1.0.0", testutil.Files{"package.json": pkg("1.0.0")})
	repo.Branch("develop")
	repo.Checkout("develop")
	repo.Commit("feat: shiny", testutil.Files{"src/a.js": "a"})

	defaults := flow.ActionConfiguration{
		Strategy:     semver.PolicyPrerelease,
		BaseBranch:   "main",
		PrereleaseID: "beta",
	}
	d, err := newTestEngine(repo).Decide(context.Background(), Request{Defaults: defaults})
	require.NoError(t, err)

	assert.Equal(t, "develop", d.Branch)
	assert.Equal(t, reference.StrategyBranch, d.Reference.Strategy)
	assert.False(t, d.Reference.ShouldFinalizeVersions)
	assert.Equal(t, "1.1.0-beta.1", d.NextVersion)
	assert.Empty(t, d.Tag, "prerelease tags are off")

	defaults.TagPrereleases = true
	d, err = newTestEngine(repo).Decide(context.Background(), Request{Defaults: defaults})
	require.NoError(t, err)
	assert.Equal(t, "v1.1.0-beta.1", d.Tag)
}

func TestDecide_FinalizesPrereleaseOnBaseBranch(t *testing.T) {
	repo := testutil.NewRepo("main")
	repo.Commit("chore: release 1.1.0-beta.2", testutil.Files{"package.json": pkg("1.1.0-beta.2")})
	repo.Commit("fix: typo", testutil.Files{"README.md": "fixed"})

	d, err := newTestEngine(repo).Decide(context.Background(), Request{
		Defaults: flow.ActionConfiguration{
			Strategy:     semver.PolicyApplyBump,
			BaseBranch:   "main",
			CreateBranch: true,
		},
	})
	require.NoError(t, err)

	assert.True(t, d.Reference.ShouldFinalizeVersions)
	assert.Equal(t, semver.PolicyFinalize, d.Policy)
	assert.Equal(t, semver.PolicyApplyBump, d.Action.Strategy)
	assert.Equal(t, "1.1.0", d.NextVersion)
	assert.Equal(t, "v1.1.0", d.Tag)
	assert.Equal(t, "release/1.1.0", d.ReleaseBranch)
}

func TestDecide_DoNothingNeverBumps(t *testing.T) {
	repo := testutil.NewRepo("main")
	repo.Commit("feat!: rewrite", testutil.Files{"package.json": pkg("1.0.0")})
	repo.Tag("v1.0.0")
	repo.Commit("feat!: again", testutil.Files{"a": "1"})

	d, err := newTestEngine(repo).Decide(context.Background(), Request{
		Defaults: flow.ActionConfiguration{Strategy: semver.PolicyDoNothing},
	})
	require.NoError(t, err)
	assert.Equal(t, semver.BumpMajor, d.Bump)
	assert.False(t, d.ShouldBump)
	assert.Empty(t, d.NextVersion)
	assert.Empty(t, d.Tag)
}

func TestDecide_PolicyFlowSelectsPreset(t *testing.T) {
	repo := testutil.NewRepo("main")
	repo.Commit("chore: release", testutil.Files{"package.json": pkg("2.0.0")})
	repo.Tag("v2.0.0")
	repo.Commit("fix: bug", testutil.Files{"a": "1"})

	policy := &flow.VersioningConfig{
		Presets: map[string]flow.Preset{"beta": {Strategy: "pre-release", PrereleaseID: "rc"}},
		Flows: []flow.Flow{
			{Name: "features", From: "feature/*", To: "main", Versioning: "beta"},
		},
	}
	d, err := newTestEngine(repo).Decide(context.Background(), Request{
		CurrentBranch: "feature/login",
		Defaults:      applyBump(),
		Policy:        policy,
	})
	require.NoError(t, err)
	assert.Equal(t, "feature/login", d.Branch)
	assert.Equal(t, "flow:features", d.Action.Source)
	assert.Equal(t, semver.PolicyPrerelease, d.Policy)
	assert.Equal(t, "2.0.1-rc.1", d.NextVersion)
}

func TestDecide_DecisionIDIsContentAddressed(t *testing.T) {
	repo := testutil.NewRepo("main")
	repo.Commit("chore: release", testutil.Files{"package.json": pkg("1.0.0")})
	repo.Tag("v1.0.0")
	repo.Commit("fix: bug", testutil.Files{"a": "1"})

	a, err := New(repo).Decide(context.Background(), Request{Defaults: applyBump()})
	require.NoError(t, err)
	b, err := New(repo).Decide(context.Background(), Request{Defaults: applyBump()})
	require.NoError(t, err)

	assert.NotEqual(t, a.RunID, b.RunID)
	assert.Equal(t, a.DecisionID, b.DecisionID)

	repo.Commit("feat: more", testutil.Files{"a": "2"})
	c, err := New(repo).Decide(context.Background(), Request{Defaults: applyBump()})
	require.NoError(t, err)
	assert.NotEqual(t, a.DecisionID, c.DecisionID)
}

func TestDecide_Errors(t *testing.T) {
	t.Run("no reference", func(t *testing.T) {
		_, err := newTestEngine(testutil.NewRepo("main")).Decide(context.Background(), Request{Defaults: applyBump()})
		require.Error(t, err)
		assert.True(t, IsNoReference(err))
		assert.ErrorIs(t, err, reference.ErrNoReference)
	})

	t.Run("bad policy", func(t *testing.T) {
		repo := testutil.NewRepo("main")
		repo.Commit("init", testutil.Files{"a": "1"})
		policy := &flow.VersioningConfig{Flows: []flow.Flow{{Name: "all", From: "*", Versioning: "sideways"}}}
		_, err := newTestEngine(repo).Decide(context.Background(), Request{Defaults: applyBump(), Policy: policy})
		require.Error(t, err)
		assert.True(t, IsPolicyError(err))
		assert.False(t, IsNoReference(err))
	})
}

func TestDiscover_StopsAfterReference(t *testing.T) {
	repo := testutil.NewRepo("main")
	repo.Commit("chore: release", testutil.Files{"package.json": pkg("1.0.0")})
	repo.Tag("v1.0.0")
	repo.Commit("feat: x", testutil.Files{"a": "1"})

	d, err := newTestEngine(repo).Discover(context.Background(), Request{Defaults: applyBump()})
	require.NoError(t, err)
	assert.Equal(t, "1.0.0", d.Reference.ReferenceVersion)
	assert.Empty(t, d.NextVersion)
	assert.Equal(t, []string{StageGather, StageReference}, stages(d))
}

func TestSave_RoundTripsThroughStore(t *testing.T) {
	repo := testutil.NewRepo("main")
	repo.Commit("chore: release", testutil.Files{"package.json": pkg("1.0.0")})
	repo.Tag("v1.0.0")
	repo.Commit("feat: x", testutil.Files{"a": "1"})

	d, err := newTestEngine(repo).Decide(context.Background(), Request{Defaults: applyBump()})
	require.NoError(t, err)

	s, err := store.Open(":memory:")
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, Save(context.Background(), s, d))
	got, err := s.GetDecision(context.Background(), "run-1")
	require.NoError(t, err)
	assert.Equal(t, d.DecisionID, got.DecisionID)
	assert.Equal(t, "1.1.0", got.NextVersion)
	assert.Equal(t, d.Outcomes, got.Outcomes)
	assert.Contains(t, got.Payload, `"next_version":"1.1.0"`)
}

func TestRenderBranch(t *testing.T) {
	assert.Equal(t, "release/1.2.0", RenderBranch("", "1.2.0"))
	assert.Equal(t, "rel-1.2.0-x", RenderBranch("rel-{version}-x", "1.2.0"))
}
