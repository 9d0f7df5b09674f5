// Package flow holds the declarative versioning policy document and resolves
// it into the concrete ActionConfiguration used by a run.
//
// A document has three optional parts:
//
//	presets:   named bundles of action settings
//	branches:  ordered branch-pattern rules, first match wins
//	flows:     from/to rules scored by specificity, highest wins
//
// Resolution prefers the winning flow, then the first matching branch rule,
// then the caller's defaults.
package flow

import (
	"github.com/roach88/bumpflow/internal/semver"
)

// Flow is one declarative from/to rule.
type Flow struct {
	Name        string   `yaml:"name" toml:"name" json:"name"`
	From        string   `yaml:"from" toml:"from" json:"from"`
	To          string   `yaml:"to,omitempty" toml:"to" json:"to,omitempty"`
	Triggered   []string `yaml:"triggered,omitempty" toml:"triggered" json:"triggered,omitempty"`
	Versioning  string   `yaml:"versioning,omitempty" toml:"versioning" json:"versioning,omitempty"`
	Base        string   `yaml:"base,omitempty" toml:"base" json:"base,omitempty"`
	FromExclude []string `yaml:"from-exclude,omitempty" toml:"from-exclude" json:"from-exclude,omitempty"`
}

// Preset is a named bundle of action settings. Zero fields leave the
// defaults untouched.
type Preset struct {
	Strategy       string `yaml:"strategy" toml:"strategy" json:"strategy"`
	BaseBranch     string `yaml:"base-branch,omitempty" toml:"base-branch" json:"base-branch,omitempty"`
	BranchTemplate string `yaml:"branch-template,omitempty" toml:"branch-template" json:"branch-template,omitempty"`
	CreateBranch   *bool  `yaml:"create-branch,omitempty" toml:"create-branch" json:"create-branch,omitempty"`
	TagPrereleases *bool  `yaml:"tag-prereleases,omitempty" toml:"tag-prereleases" json:"tag-prereleases,omitempty"`
	PrereleaseID   string `yaml:"prerelease-id,omitempty" toml:"prerelease-id" json:"prerelease-id,omitempty"`
}

// BranchRule applies versioning to branches matching Pattern.
type BranchRule struct {
	Pattern    string `yaml:"pattern" toml:"pattern" json:"pattern"`
	Versioning string `yaml:"versioning,omitempty" toml:"versioning" json:"versioning,omitempty"`
	Base       string `yaml:"base,omitempty" toml:"base" json:"base,omitempty"`
}

// VersioningConfig is the policy document.
type VersioningConfig struct {
	Presets  map[string]Preset `yaml:"presets,omitempty" toml:"presets" json:"presets,omitempty"`
	Branches []BranchRule      `yaml:"branches,omitempty" toml:"branches" json:"branches,omitempty"`
	Flows    []Flow            `yaml:"flows,omitempty" toml:"flows" json:"flows,omitempty"`
}

// ActionConfiguration is the resolved policy for one run.
type ActionConfiguration struct {
	Strategy       semver.Policy `json:"strategy"`
	BaseBranch     string        `json:"base_branch,omitempty"`
	CreateBranch   bool          `json:"create_branch"`
	TagPrereleases bool          `json:"tag_prereleases"`
	BranchTemplate string        `json:"branch_template,omitempty"`
	PrereleaseID   string        `json:"prerelease_id,omitempty"`

	// Source names what produced this configuration: "flow:<name>",
	// "branch:<pattern>" or "default".
	Source string `json:"source"`
}

// Query is the branch context flows are matched against.
type Query struct {
	CurrentBranch string
	EventType     string
	TargetBranch  string // context only; never filters candidates
}
