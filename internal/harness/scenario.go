package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/bumpflow/internal/flow"
	"github.com/roach88/bumpflow/internal/semver"
)

// Scenario is one versioning test case.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Branch is the initial branch of the repository. Defaults to main.
	Branch string `yaml:"branch,omitempty"`

	// Steps build the repository history, in order.
	Steps []Step `yaml:"steps"`

	// Inputs are the run inputs.
	Inputs Inputs `yaml:"inputs"`

	// Policy is an inline policy document.
	Policy *flow.VersioningConfig `yaml:"policy,omitempty"`

	// PolicyFile is a policy document path, relative to the scenario file.
	// Mutually exclusive with Policy.
	PolicyFile string `yaml:"policy_file,omitempty"`

	// Expect is matched against the Snapshot (subset semantics).
	Expect map[string]any `yaml:"expect,omitempty"`

	// Assertions validate the outcome trail and recorded history.
	Assertions []Assertion `yaml:"assertions,omitempty"`

	// RunID is the fixed run ID. Defaults to "test-run-default".
	RunID string `yaml:"run_id,omitempty"`
}

// Step is one repository operation. Exactly one of Commit, Tag, Branch and
// Checkout is set.
type Step struct {
	Commit string `yaml:"commit,omitempty"`
	// Files changed by Commit.
	Files map[string]string `yaml:"files,omitempty"`
	// Version writes a package.json with this version as part of Commit.
	Version string `yaml:"version,omitempty"`
	// ID labels the commit. Defaults to c<N>.
	ID string `yaml:"id,omitempty"`

	Tag string `yaml:"tag,omitempty"`
	// At is the commit label or ref Tag points at. Defaults to HEAD.
	At string `yaml:"at,omitempty"`

	Branch   string `yaml:"branch,omitempty"`
	Checkout string `yaml:"checkout,omitempty"`
}

func (s Step) kinds() []string {
	var k []string
	if s.Commit != "" {
		k = append(k, "commit")
	}
	if s.Tag != "" {
		k = append(k, "tag")
	}
	if s.Branch != "" {
		k = append(k, "branch")
	}
	if s.Checkout != "" {
		k = append(k, "checkout")
	}
	return k
}

// Inputs mirror the CLI inputs of a run.
type Inputs struct {
	Strategy        string `yaml:"strategy,omitempty"`
	BaseBranch      string `yaml:"base_branch,omitempty"`
	BranchTemplate  string `yaml:"branch_template,omitempty"`
	TagPrereleases  bool   `yaml:"tag_prereleases,omitempty"`
	CreateBranch    bool   `yaml:"create_branch,omitempty"`
	PrereleaseID    string `yaml:"prerelease_id,omitempty"`
	CurrentBranch   string `yaml:"current_branch,omitempty"`
	EventType       string `yaml:"event_type,omitempty"`
	TargetBranch    string `yaml:"target_branch,omitempty"`
	Manifest        string `yaml:"manifest,omitempty"`
	PackageManager  string `yaml:"package_manager,omitempty"`
	LookbackCommits int    `yaml:"lookback_commits,omitempty"`
	MaxCount        int    `yaml:"max_count,omitempty"`
}

// Assertion validates the outcome trail or the recorded history.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Stage is the pipeline stage (outcome_*).
	Stage string `yaml:"stage,omitempty"`

	// Tactic is the tactic name (outcome_contains).
	Tactic string `yaml:"tactic,omitempty"`

	// Success, when set, must equal the outcome's success (outcome_contains).
	Success *bool `yaml:"success,omitempty"`

	// Tactics is the expected order (outcome_order).
	Tactics []string `yaml:"tactics,omitempty"`

	// Count is the expected number of outcomes (outcome_count).
	Count int `yaml:"count,omitempty"`

	// Expect is matched against the history row (recorded).
	Expect map[string]any `yaml:"expect,omitempty"`
}

// Assertion type constants.
const (
	AssertOutcomeContains = "outcome_contains"
	AssertOutcomeOrder    = "outcome_order"
	AssertOutcomeCount    = "outcome_count"
	AssertRecorded        = "recorded"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Strict fields catch typos like "assertion:" vs "assertions:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if scenario.PolicyFile != "" && !filepath.IsAbs(scenario.PolicyFile) {
		scenario.PolicyFile = filepath.Join(filepath.Dir(path), scenario.PolicyFile)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// LoadDir loads every *.yaml and *.yml scenario in dir, sorted by file name.
func LoadDir(dir string) ([]*Scenario, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario directory: %w", err)
	}
	var names []string
	for _, e := range entries {
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if !e.IsDir() && (ext == ".yaml" || ext == ".yml") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	scenarios := make([]*Scenario, 0, len(names))
	for _, name := range names {
		s, err := LoadScenario(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		scenarios = append(scenarios, s)
	}
	return scenarios, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}
	if len(s.Expect) == 0 && len(s.Assertions) == 0 {
		return fmt.Errorf("expect or assertions is required")
	}
	if s.Policy != nil && s.PolicyFile != "" {
		return fmt.Errorf("policy and policy_file are mutually exclusive")
	}
	if s.PolicyFile != "" {
		if _, err := os.Stat(s.PolicyFile); os.IsNotExist(err) {
			return fmt.Errorf("policy file not found: %s", s.PolicyFile)
		}
	}
	if s.Inputs.Strategy != "" {
		if _, err := semver.ParsePolicy(s.Inputs.Strategy); err != nil {
			return fmt.Errorf("inputs.strategy: %w", err)
		}
	}

	ids := map[string]bool{}
	for i, step := range s.Steps {
		switch k := step.kinds(); len(k) {
		case 0:
			return fmt.Errorf("steps[%d]: one of commit, tag, branch, checkout is required", i)
		case 1:
		default:
			return fmt.Errorf("steps[%d]: %s are mutually exclusive", i, strings.Join(k, ", "))
		}
		if step.Commit == "" && (len(step.Files) > 0 || step.Version != "" || step.ID != "") {
			return fmt.Errorf("steps[%d]: files, version and id require commit", i)
		}
		if step.Tag == "" && step.At != "" {
			return fmt.Errorf("steps[%d]: at requires tag", i)
		}
		if step.ID != "" {
			if ids[step.ID] {
				return fmt.Errorf("steps[%d]: duplicate id %q", i, step.ID)
			}
			ids[step.ID] = true
		}
	}

	for i, a := range s.Assertions {
		if err := validateAssertion(i, &a); err != nil {
			return err
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertOutcomeContains:
		if a.Stage == "" || a.Tactic == "" {
			return fmt.Errorf("assertions[%d]: stage and tactic are required for outcome_contains", index)
		}
	case AssertOutcomeOrder:
		if a.Stage == "" || len(a.Tactics) == 0 {
			return fmt.Errorf("assertions[%d]: stage and tactics are required for outcome_order", index)
		}
	case AssertOutcomeCount:
		if a.Stage == "" {
			return fmt.Errorf("assertions[%d]: stage is required for outcome_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for outcome_count", index)
		}
	case AssertRecorded:
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for recorded", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
