package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

const gitflowPolicy = `presets:
  beta:
    strategy: pre-release
    prerelease-id: beta
  release:
    strategy: finalize
    create-branch: true
branches:
  - pattern: hotfix/*
    versioning: apply-bump
flows:
  - name: features
    from: feature/*
    to: develop
    versioning: beta
    base: develop
  - name: any-to-develop
    from: "*"
    to: develop
    triggered: [pull_request]
    versioning: apply-bump
  - name: mainline
    from: main
    versioning: release
`

func TestMatchCommand_FlowWins(t *testing.T) {
	policy := writeFile(t, t.TempDir(), "policy.yaml", gitflowPolicy)
	out, err := execute(t, NewMatchCommand(&RootOptions{Format: "json"}), policy,
		"--branch", "feature/login", "--target-branch", "develop")
	require.NoError(t, err)

	assert.Equal(t, "features", gjson.Get(out, "data.winner").String())
	assert.Equal(t, int64(2), gjson.Get(out, "data.candidates.#").Int())
	assert.Greater(t, gjson.Get(out, "data.candidates.0.score").Int(), gjson.Get(out, "data.candidates.1.score").Int())
	assert.Equal(t, "flow:features", gjson.Get(out, "data.action.source").String())
	assert.Equal(t, "pre-release", gjson.Get(out, "data.action.strategy").String())
	assert.Equal(t, "beta", gjson.Get(out, "data.action.prerelease_id").String())
	assert.Equal(t, "develop", gjson.Get(out, "data.action.base_branch").String())
	assert.Equal(t, "release/{version}", gjson.Get(out, "data.action.branch_template").String())
}

func TestMatchCommand_BranchRuleAndDefault(t *testing.T) {
	policy := writeFile(t, t.TempDir(), "policy.yaml", gitflowPolicy)

	out, err := execute(t, NewMatchCommand(&RootOptions{Format: "json"}), policy, "--branch", "hotfix/urgent", "--event-type", "push", "--target-branch", "main")
	require.NoError(t, err)
	assert.False(t, gjson.Get(out, "data.winner").Exists())
	assert.Equal(t, int64(0), gjson.Get(out, "data.candidates.#").Int())
	assert.Equal(t, "branch:hotfix/*", gjson.Get(out, "data.action.source").String())

	out, err = execute(t, NewMatchCommand(&RootOptions{Format: "json"}), policy, "--branch", "experiments", "--event-type", "push")
	require.NoError(t, err)
	assert.Equal(t, "default", gjson.Get(out, "data.action.source").String())
	assert.Equal(t, "apply-bump", gjson.Get(out, "data.action.strategy").String())
}

func TestMatchCommand_TargetBranchKeepsCandidates(t *testing.T) {
	policy := writeFile(t, t.TempDir(), "policy.yaml", gitflowPolicy)
	out, err := execute(t, NewMatchCommand(&RootOptions{Format: "json"}), policy,
		"--branch", "feature/login", "--event-type", "pull_request", "--target-branch", "main")
	require.NoError(t, err)
	assert.Equal(t, []string{"features", "any-to-develop"}, stringsOf(gjson.Get(out, "data.candidates.#.name")))
	assert.Equal(t, "flow:features", gjson.Get(out, "data.action.source").String())
}

func TestMatchCommand_Text(t *testing.T) {
	policy := writeFile(t, t.TempDir(), "policy.yaml", gitflowPolicy)
	out, err := execute(t, NewMatchCommand(&RootOptions{Format: "text"}), policy, "--branch", "main")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ mainline")
	assert.Contains(t, out, "source:          flow:mainline\n")
	assert.Contains(t, out, "strategy:        finalize\n")
	assert.Contains(t, out, "create branch:   true\n")
}

func TestMatchCommand_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := execute(t, NewMatchCommand(&RootOptions{Format: "text"}), writeFile(t, dir, "policy.yaml", gitflowPolicy))
	require.Error(t, err, "--branch is required")

	invalid := writeFile(t, dir, "invalid.yaml", "flows:\n  - from: main\n")
	_, err = execute(t, NewMatchCommand(&RootOptions{Format: "text"}), invalid, "--branch", "main")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
