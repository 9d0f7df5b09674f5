package cli

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/roach88/bumpflow/internal/reference"
	"github.com/roach88/bumpflow/internal/store"
	"github.com/roach88/bumpflow/internal/testutil"
)

func pkg(version string) string {
	return "{\n  \"name\": \"demo\",\n  \"version\": \"" + version + "\"\n}\n"
}

// taggedRepo is released at v1.0.0 with one feature on top.
func taggedRepo() (*testutil.Repo, string) {
	repo := testutil.NewRepo("main")
	released := repo.Commit("chore: release 1.0.0", testutil.Files{"package.json": pkg("1.0.0")})
	repo.Tag("v1.0.0")
	repo.Commit("feat: add widgets", testutil.Files{"src/widget.js": "x"})
	return repo, released
}

func testOptions(format string, repo *testutil.Repo) *RootOptions {
	return &RootOptions{
		Format: format,
		Overrides: Overrides{
			Repo: repo,
			IDs:  testutil.NewFixedIDGenerator("run-1"),
			Now:  testutil.NewDeterministicClock().Next,
		},
	}
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestDecideCommand_JSON(t *testing.T) {
	repo, released := taggedRepo()
	out, err := execute(t, NewDecideCommand(testOptions("json", repo)), "--dir", t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "ok", gjson.Get(out, "status").String())
	assert.Equal(t, "run-1", gjson.Get(out, "run_id").String())
	assert.Equal(t, reference.StrategyTag, gjson.Get(out, "data.reference.strategy").String())
	assert.Equal(t, released, gjson.Get(out, "data.reference.reference_commit").String())
	assert.Equal(t, "minor", gjson.Get(out, "data.bump").String())
	assert.Equal(t, "1.0.0", gjson.Get(out, "data.current_version").String())
	assert.Equal(t, "1.1.0", gjson.Get(out, "data.next_version").String())
	assert.Equal(t, "v1.1.0", gjson.Get(out, "data.tag").String())
	assert.True(t, gjson.Get(out, "data.should_bump").Bool())
	assert.Equal(t, "npm", gjson.Get(out, "data.package_manager").String())
	assert.Equal(t, "default", gjson.Get(out, "data.action.source").String())
	assert.NotEmpty(t, gjson.Get(out, "data.outcomes.#.tactic").Array())
}

func TestDecideCommand_Text(t *testing.T) {
	repo, _ := taggedRepo()
	out, err := execute(t, NewDecideCommand(testOptions("text", repo)), "--dir", t.TempDir())
	require.NoError(t, err)

	assert.Contains(t, out, "branch:          main\n")
	assert.Contains(t, out, "policy:          apply-bump (default)\n")
	assert.Contains(t, out, "next version:    1.1.0\n")
	assert.Contains(t, out, "tag:             v1.1.0\n")
	assert.Contains(t, out, "release branch:  -\n")
	assert.Contains(t, out, "✓ Bump 1.0.0 → 1.1.0")
}

func TestDecideCommand_EnvironmentInputs(t *testing.T) {
	t.Setenv("BUMPFLOW_STRATEGY", "pre-release")
	t.Setenv("BUMPFLOW_PRERELEASE_ID", "rc")

	repo, _ := taggedRepo()
	out, err := execute(t, NewDecideCommand(testOptions("json", repo)), "--dir", t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "pre-release", gjson.Get(out, "data.policy").String())
	assert.Equal(t, "1.1.0-rc.1", gjson.Get(out, "data.next_version").String())
	assert.False(t, gjson.Get(out, "data.tag").Exists(), "prerelease tags are off")
}

func TestDecideCommand_OutputsAndAudit(t *testing.T) {
	dir := t.TempDir()
	outputs := filepath.Join(dir, "github_output")
	db := filepath.Join(dir, "history.db")
	writeFile(t, dir, "github_output", "existing=1\n")

	repo, released := taggedRepo()
	_, err := execute(t, NewDecideCommand(testOptions("text", repo)),
		"--dir", dir, "--outputs-file", outputs, "--audit-db", db)
	require.NoError(t, err)

	data, err := os.ReadFile(outputs)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	assert.Equal(t, "existing=1", lines[0], "outputs are appended")
	assert.Contains(t, lines, "should-bump=true")
	assert.Contains(t, lines, "next-version=1.1.0")
	assert.Contains(t, lines, "tag=v1.1.0")
	assert.Contains(t, lines, "release-branch=")
	assert.Contains(t, lines, "reference-commit="+released)
	assert.Contains(t, lines, "run-id=run-1")

	st, err := store.Open(db)
	require.NoError(t, err)
	defer st.Close()
	rec, err := st.GetDecision(context.Background(), "run-1")
	require.NoError(t, err)
	assert.Equal(t, "1.1.0", rec.NextVersion)
	assert.NotEmpty(t, rec.Outcomes)
}

func TestDecideCommand_NoReference(t *testing.T) {
	out, err := execute(t, NewDecideCommand(testOptions("json", testutil.NewRepo("main"))), "--dir", t.TempDir())
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Equal(t, "error", gjson.Get(out, "status").String())
	assert.Equal(t, ErrCodeNoReference, gjson.Get(out, "error.code").String())
}

func TestDecideCommand_InvalidInputs(t *testing.T) {
	repo, _ := taggedRepo()
	dir := t.TempDir()

	t.Run("strategy", func(t *testing.T) {
		out, err := execute(t, NewDecideCommand(testOptions("json", repo)), "--dir", dir, "--strategy", "sideways")
		require.Error(t, err)
		assert.Equal(t, ExitCommandError, GetExitCode(err))
		assert.Equal(t, ErrCodeConfig, gjson.Get(out, "error.code").String())
	})

	t.Run("policy", func(t *testing.T) {
		policy := writeFile(t, dir, "policy.yaml", "flows:\n  - name: all\n    from: \"*\"\n    versioning: sideways\n")
		out, err := execute(t, NewDecideCommand(testOptions("json", repo)), "--dir", dir, "--policy", policy)
		require.Error(t, err)
		assert.Equal(t, ExitCommandError, GetExitCode(err))
		assert.Equal(t, ErrCodePolicy, gjson.Get(out, "error.code").String())
	})
}

func TestDecideCommand_PolicyFlow(t *testing.T) {
	repo, _ := taggedRepo()
	repo.Branch("feature/login")
	repo.Checkout("feature/login")
	repo.Commit("feat: login form", testutil.Files{"src/login.js": "x"})
	dir := t.TempDir()
	policy := writeFile(t, dir, "policy.yaml", `presets:
  beta:
    strategy: pre-release
    prerelease-id: beta
    tag-prereleases: true
flows:
  - name: features
    from: feature/*
    versioning: beta
`)

	out, err := execute(t, NewDecideCommand(testOptions("json", repo)), "--dir", dir, "--policy", policy)
	require.NoError(t, err)
	assert.Equal(t, "feature/login", gjson.Get(out, "data.branch").String())
	assert.Equal(t, "flow:features", gjson.Get(out, "data.action.source").String())
	assert.Equal(t, "1.1.0-beta.1", gjson.Get(out, "data.next_version").String())
	assert.Equal(t, "v1.1.0-beta.1", gjson.Get(out, "data.tag").String())
}
