package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeScenario(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scenario.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadScenario_Valid(t *testing.T) {
	s, err := LoadScenario(filepath.Join("testdata", "scenarios", "hotfix_branch_rule.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "hotfix_branch_rule", s.Name)
	assert.Len(t, s.Steps, 5)
	assert.Equal(t, "do-nothing", s.Inputs.Strategy)
	assert.Equal(t, filepath.Join("testdata", "policies", "gitflow.yaml"), s.PolicyFile)
}

func TestLoadScenario_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name:    "unknown field",
			content: "name: x\ndescription: y\nstep: []\n",
			wantErr: "field step not found",
		},
		{
			name:    "missing name",
			content: "description: y\nsteps: [{commit: a}]\nexpect: {bump: none}\n",
			wantErr: "name is required",
		},
		{
			name:    "missing steps",
			content: "name: x\ndescription: y\nexpect: {bump: none}\n",
			wantErr: "steps list is required",
		},
		{
			name:    "nothing to check",
			content: "name: x\ndescription: y\nsteps: [{commit: a}]\n",
			wantErr: "expect or assertions is required",
		},
		{
			name:    "ambiguous step",
			content: "name: x\ndescription: y\nsteps: [{commit: a, tag: v1}]\nexpect: {bump: none}\n",
			wantErr: "mutually exclusive",
		},
		{
			name:    "files without commit",
			content: "name: x\ndescription: y\nsteps: [{tag: v1, files: {a: b}}]\nexpect: {bump: none}\n",
			wantErr: "require commit",
		},
		{
			name:    "duplicate id",
			content: "name: x\ndescription: y\nsteps: [{commit: a, id: r}, {commit: b, id: r}]\nexpect: {bump: none}\n",
			wantErr: "duplicate id",
		},
		{
			name:    "bad strategy",
			content: "name: x\ndescription: y\nsteps: [{commit: a}]\ninputs: {strategy: sideways}\nexpect: {bump: none}\n",
			wantErr: "inputs.strategy",
		},
		{
			name:    "missing policy file",
			content: "name: x\ndescription: y\nsteps: [{commit: a}]\npolicy_file: nope.yaml\nexpect: {bump: none}\n",
			wantErr: "policy file not found",
		},
		{
			name:    "unknown assertion",
			content: "name: x\ndescription: y\nsteps: [{commit: a}]\nassertions: [{type: vibes}]\n",
			wantErr: "unknown assertion type",
		},
		{
			name:    "order without tactics",
			content: "name: x\ndescription: y\nsteps: [{commit: a}]\nassertions: [{type: outcome_order, stage: reference}]\n",
			wantErr: "stage and tactics are required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadScenario(writeScenario(t, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "failed to read scenario file")
}
