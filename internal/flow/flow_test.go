package flow

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/bumpflow/internal/semver"
)

func TestMatchPattern(t *testing.T) {
	tests := []struct {
		pattern, branch string
		want            bool
	}{
		{"main", "main", true},
		{"main", "mainline", false},
		{"*", "anything/at/all", true},
		{"release/*", "release/1.0", true},
		{"release/*", "releases/1.0", false},
		{"v?.x", "v1.x", true},
		{"v?.x", "v10.x", false},
		{"feat.*", "featx", false},
		{"", "main", false},
	}
	for _, tc := range tests {
		t.Run(tc.pattern+"~"+tc.branch, func(t *testing.T) {
			assert.Equal(t, tc.want, MatchPattern(tc.pattern, tc.branch))
		})
	}
}

func TestMatch_SpecificPatternBeatsWildcardInAnyOrder(t *testing.T) {
	wild := Flow{Name: "wild", From: "*"}
	release := Flow{Name: "release", From: "release/*"}

	for _, flows := range [][]Flow{{wild, release}, {release, wild}} {
		f := Match(flows, Query{CurrentBranch: "release/1.0"})
		require.NotNil(t, f)
		assert.Equal(t, "release", f.Name)
	}
	assert.Equal(t, ScoreWildcard, Score(&wild, "release/1.0"))
	assert.Equal(t, ScorePattern, Score(&release, "release/1.0"))
}

func TestMatch_ExactAndBonuses(t *testing.T) {
	flows := []Flow{
		{Name: "pattern-full", From: "ma*", Versioning: "apply-bump", Base: "main"},
		{Name: "exact", From: "main"},
	}
	f := Match(flows, Query{CurrentBranch: "main"})
	require.NotNil(t, f)
	assert.Equal(t, "exact", f.Name)
	assert.Equal(t, ScorePattern+BonusVersioning+BonusBase, Score(&flows[0], "main"))
}

func TestMatch_TiesKeepFirst(t *testing.T) {
	flows := []Flow{{Name: "a", From: "feature/*"}, {Name: "b", From: "feat*"}}
	assert.Equal(t, "a", Match(flows, Query{CurrentBranch: "feature/x"}).Name)
}

func TestMatch_ExclusionOverridesPattern(t *testing.T) {
	flows := []Flow{{Name: "features", From: "feature/*", FromExclude: []string{"feature/wip-*"}}}
	assert.NotNil(t, Match(flows, Query{CurrentBranch: "feature/login"}))
	assert.Nil(t, Match(flows, Query{CurrentBranch: "feature/wip-login"}))
}

func TestMatch_DestinationSide(t *testing.T) {
	flows := []Flow{{Name: "sync", From: "release/*", To: "main"}}
	f := Match(flows, Query{CurrentBranch: "main"})
	require.NotNil(t, f)
	assert.Equal(t, ScoreExact, Score(f, "main"))
}

func TestMatch_TargetBranchDoesNotFilter(t *testing.T) {
	source := []Flow{{Name: "features", From: "feature/*", To: "develop", Versioning: "pre-release"}}
	f := Match(source, Query{CurrentBranch: "feature/x", TargetBranch: "main"})
	require.NotNil(t, f, "from side survives an unrelated target")
	assert.Equal(t, "features", f.Name)

	destination := []Flow{{Name: "sync", From: "*", To: "main"}}
	f = Match(destination, Query{CurrentBranch: "main", TargetBranch: "develop"})
	require.NotNil(t, f, "to side survives an unrelated target")
	assert.Equal(t, "sync", f.Name)

	both := append(source, destination...)
	got := Candidates(both, Query{CurrentBranch: "feature/x", TargetBranch: "release/1.0"})
	assert.Len(t, got, 2)
}

func TestMatch_TriggeredFiltersByEvent(t *testing.T) {
	flows := []Flow{{Name: "pr-only", From: "*", Triggered: []string{"pull_request"}}}
	assert.Nil(t, Match(flows, Query{CurrentBranch: "x", EventType: "push"}))
	assert.NotNil(t, Match(flows, Query{CurrentBranch: "x", EventType: "pull_request"}))
	assert.NotNil(t, Match(flows, Query{CurrentBranch: "x"}))
}

func TestMatch_NoneReturnsNil(t *testing.T) {
	assert.Nil(t, Match([]Flow{{Name: "x", From: "release/*"}}, Query{CurrentBranch: "main"}))
	assert.Nil(t, Match(nil, Query{CurrentBranch: "main"}))
}

func TestCandidates(t *testing.T) {
	flows := []Flow{{Name: "a", From: "*"}, {Name: "b", From: "main"}, {Name: "c", From: "dev"}}
	got := Candidates(flows, Query{CurrentBranch: "main"})
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].Name)
	assert.Equal(t, "b", got[1].Name)
}

var defaults = ActionConfiguration{Strategy: semver.PolicyApplyBump, BranchTemplate: "release/{version}"}

func TestResolve(t *testing.T) {
	cfg, err := LoadFile(filepath.Join("testdata", "policy.yaml"))
	require.NoError(t, err)

	tests := []struct {
		name  string
		query Query
		want  ActionConfiguration
	}{
		{
			name:  "preset through flow",
			query: Query{CurrentBranch: "feature/login", EventType: "pull_request"},
			want: ActionConfiguration{
				Strategy:       semver.PolicyPrerelease,
				BaseBranch:     "develop",
				TagPrereleases: true,
				BranchTemplate: "release/{version}",
				PrereleaseID:   "beta",
				Source:         "flow:features",
			},
		},
		{
			name:  "excluded branch falls to wildcard flow",
			query: Query{CurrentBranch: "feature/wip-x"},
			want: ActionConfiguration{
				Strategy:       semver.PolicyApplyBump,
				BranchTemplate: "release/{version}",
				Source:         "flow:anything",
			},
		},
		{
			name:  "release flow",
			query: Query{CurrentBranch: "release/2.0"},
			want: ActionConfiguration{
				Strategy:       semver.PolicyFinalize,
				BaseBranch:     "main",
				BranchTemplate: "release/{version}",
				Source:         "flow:release-branches",
			},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Resolve(cfg, tc.query, defaults)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestResolve_BranchRuleAndDefault(t *testing.T) {
	cfg := &VersioningConfig{Branches: []BranchRule{{Pattern: "hotfix/*", Versioning: "do-nothing", Base: "main"}}}

	got, err := Resolve(cfg, Query{CurrentBranch: "hotfix/1"}, defaults)
	require.NoError(t, err)
	assert.Equal(t, semver.PolicyDoNothing, got.Strategy)
	assert.Equal(t, "main", got.BaseBranch)
	assert.Equal(t, "branch:hotfix/*", got.Source)

	got, err = Resolve(cfg, Query{CurrentBranch: "main"}, defaults)
	require.NoError(t, err)
	assert.Equal(t, SourceDefault, got.Source)
	assert.Equal(t, semver.PolicyApplyBump, got.Strategy)

	got, err = Resolve(nil, Query{CurrentBranch: "main"}, defaults)
	require.NoError(t, err)
	assert.Equal(t, SourceDefault, got.Source)
}

func TestResolve_UnknownVersioning(t *testing.T) {
	cfg := &VersioningConfig{Flows: []Flow{{Name: "bad", From: "*", Versioning: "yolo"}}}
	_, err := Resolve(cfg, Query{CurrentBranch: "main"}, defaults)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `flow "bad"`)
}

func TestLoadFile_FormatsAgree(t *testing.T) {
	yamlCfg, err := LoadFile(filepath.Join("testdata", "policy.yaml"))
	require.NoError(t, err)
	tomlCfg, err := LoadFile(filepath.Join("testdata", "policy.toml"))
	require.NoError(t, err)
	cueCfg, err := LoadFile(filepath.Join("testdata", "policy.cue"))
	require.NoError(t, err)

	assert.Equal(t, yamlCfg, tomlCfg)
	assert.Equal(t, yamlCfg, cueCfg)
	assert.Len(t, yamlCfg.Flows, 3)
	assert.Equal(t, []string{"feature/wip-*"}, yamlCfg.Flows[2].FromExclude)
}

func TestLoadFile_JSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"flows":[{"name":"a","from":"main","versioning":"finalize"}]}`), 0644))
	cfg, err := LoadFile(path)
	require.NoError(t, err)
	require.Len(t, cfg.Flows, 1)
	assert.Equal(t, "finalize", cfg.Flows[0].Versioning)
}

func TestDecode_RejectsUnknownFields(t *testing.T) {
	_, err := Decode([]byte("flow:\n  - name: typo\n"), FormatYAML)
	assert.Error(t, err)

	_, err = Decode([]byte("[[flows]]\nname = \"a\"\nfrom = \"*\"\nbase_branch = \"main\"\n"), FormatTOML)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "base_branch")

	_, err = Decode([]byte(`flowz: []`), FormatCUE)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "flowz")
}

func TestDecode_EmptyYAML(t *testing.T) {
	cfg, err := Decode(nil, FormatYAML)
	require.NoError(t, err)
	assert.Empty(t, cfg.Flows)
}

func TestFormatOf(t *testing.T) {
	f, err := FormatOf("x/.bumpflow.YML")
	require.NoError(t, err)
	assert.Equal(t, FormatYAML, f)
	_, err = FormatOf("policy.ini")
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg, err := LoadFile(filepath.Join("testdata", "policy.yaml"))
	require.NoError(t, err)
	assert.Empty(t, Validate(cfg))

	bad := &VersioningConfig{
		Presets:  map[string]Preset{"p": {Strategy: "sideways"}},
		Branches: []BranchRule{{Pattern: ""}},
		Flows: []Flow{
			{Name: "a", From: "main"},
			{Name: "a", From: "feature /x", Versioning: "nope"},
			{From: "*", FromExclude: []string{""}},
		},
	}
	errs := Validate(bad)
	fields := make([]string, len(errs))
	for i, e := range errs {
		var ve *ValidationError
		require.ErrorAs(t, e, &ve)
		fields[i] = ve.Field
	}
	assert.Equal(t, []string{
		"presets.p.strategy",
		"branches[0].pattern",
		"flows[1].name",
		"flows[1].from",
		"flows[1].versioning",
		"flows[2].name",
		"flows[2].from-exclude[0]",
	}, fields)
}
