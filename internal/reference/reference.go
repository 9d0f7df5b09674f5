// Package reference discovers the baseline commit and version a run is
// compared against.
//
// Two strategies exist. Tag-based discovery is used when no base branch is
// configured: the highest semver tag wins, and a repository without tags
// bootstraps from its oldest recent commit at 0.0.0 with a forced bump.
// Branch-based discovery walks the base branch for the last commit that
// changed the manifest's version field, first with a line-history log and
// then by diffing commits one at a time.
//
// Strategy selection is an Any maneuver: the strategy whose Assess matches
// the configuration is the only one attempted.
package reference

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/roach88/bumpflow/internal/manifest"
	"github.com/roach88/bumpflow/internal/tactic"
	"github.com/roach88/bumpflow/internal/vcs"
)

// Defaults for the State tuning values.
const (
	DefaultLookbackCommits = 1000
	DefaultMaxCount        = 100
	DiffScanLimit          = 50
)

// ErrNoReference is returned when no strategy produced a reference point.
var ErrNoReference = errors.New("no reference point found")

// GitInfo is repository information gathered before discovery.
type GitInfo struct {
	Head   string   `json:"head"`
	Branch string   `json:"branch,omitempty"`
	Tags   []string `json:"tags,omitempty"`
}

// State is threaded through the discovery chain. Tactics never mutate it;
// they return patches.
type State struct {
	BaseBranch      string
	ActiveBranch    string // branch whose history is walked; defaults to CurrentBranch
	CurrentBranch   string
	ManifestPath    string
	LookbackCommits int
	MaxCount        int

	AttemptedStrategies []string
	LastError           string
	GitInfo             *GitInfo
}

// WithDefaults fills unset tuning values.
func (s State) WithDefaults() State {
	if s.ManifestPath == "" {
		s.ManifestPath = manifest.DefaultPath
	}
	if s.LookbackCommits <= 0 {
		s.LookbackCommits = DefaultLookbackCommits
	}
	if s.MaxCount <= 0 {
		s.MaxCount = DefaultMaxCount
	}
	if s.ActiveBranch == "" {
		s.ActiveBranch = s.CurrentBranch
	}
	return s
}

// ShouldFinalize reports whether this run evaluates the base branch itself.
func (s State) ShouldFinalize() bool {
	return s.BaseBranch != "" && s.CurrentBranch == s.BaseBranch
}

// Point is a discovered reference.
type Point struct {
	ReferenceCommit        string `json:"reference_commit"`
	ReferenceVersion       string `json:"reference_version"`
	ShouldFinalizeVersions bool   `json:"should_finalize_versions"`
	ShouldForceBump        bool   `json:"should_force_bump"`
	Strategy               string `json:"strategy"`
}

// attempted records name and the failure, if any.
func attempted(name string, err error) tactic.Patch[State] {
	return func(s State) State {
		s.AttemptedStrategies = append(append([]string(nil), s.AttemptedStrategies...), name)
		if err != nil {
			s.LastError = err.Error()
		}
		return s
	}
}

// Discovery is the outcome of Discover.
type Discovery struct {
	Point    Point            `json:"point"`
	State    State            `json:"-"`
	Outcomes []tactic.Outcome `json:"outcomes"`
}

// Discoverer selects and runs a discovery strategy.
type Discoverer struct {
	Repo   vcs.Repository
	Logger *slog.Logger
}

// NewDiscoverer creates a Discoverer over repo.
func NewDiscoverer(repo vcs.Repository, logger *slog.Logger) *Discoverer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Discoverer{Repo: repo, Logger: logger}
}

// Discover finds the reference point for state. Failure of the selected
// strategy is fatal and wraps ErrNoReference.
func (d *Discoverer) Discover(ctx context.Context, state State) (Discovery, error) {
	state = state.WithDefaults()
	reader := manifest.NewReader(d.Repo, state.ManifestPath)

	m := tactic.Any[Point, State]("reference-discovery",
		&BranchStrategy{Repo: d.Repo, Reader: reader, Logger: d.Logger},
		&TagStrategy{Repo: d.Repo},
	).WithLogger(d.Logger)

	res, _ := m.Execute(ctx, state)
	out := Discovery{State: res.State, Outcomes: res.Outcomes}
	if !res.Success {
		return out, fmt.Errorf("%w: %s", ErrNoReference, res.Message)
	}
	out.Point = res.Value
	d.Logger.Debug("reference point discovered",
		"strategy", out.Point.Strategy,
		"commit", out.Point.ReferenceCommit,
		"version", out.Point.ReferenceVersion)
	return out, nil
}
