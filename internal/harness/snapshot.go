package harness

import (
	"strings"

	"github.com/roach88/bumpflow/internal/engine"
	"github.com/roach88/bumpflow/internal/store"
)

// Snapshot is the hash-free view of a run used for expectations and golden
// files. Commits are named by their step labels.
type Snapshot struct {
	Scenario string `json:"scenario"`
	RunID    string `json:"run_id"`

	// Error is the engine error code when the run failed.
	Error string `json:"error,omitempty"`

	Branch         string             `json:"branch,omitempty"`
	Policy         string             `json:"policy,omitempty"`
	Source         string             `json:"source,omitempty"`
	Reference      *SnapshotReference `json:"reference,omitempty"`
	Commits        []SnapshotCommit   `json:"commits,omitempty"`
	Bump           string             `json:"bump,omitempty"`
	Forced         bool               `json:"forced,omitempty"`
	CurrentVersion string             `json:"current_version,omitempty"`
	NextVersion    string             `json:"next_version,omitempty"`
	ShouldBump     bool               `json:"should_bump"`
	Tag            string             `json:"tag,omitempty"`
	ReleaseBranch  string             `json:"release_branch,omitempty"`
	PackageManager string             `json:"package_manager,omitempty"`
	Outcomes       []SnapshotOutcome  `json:"outcomes,omitempty"`
}

// SnapshotReference is the discovered reference point.
type SnapshotReference struct {
	Strategy string `json:"strategy"`
	Commit   string `json:"commit"`
	Version  string `json:"version"`
	Finalize bool   `json:"finalize"`
	Force    bool   `json:"force"`
}

// SnapshotCommit is one classified commit.
type SnapshotCommit struct {
	Commit   string `json:"commit"`
	Type     string `json:"type,omitempty"`
	Breaking bool   `json:"breaking"`
}

// SnapshotOutcome is one tactic outcome without its free-text message.
type SnapshotOutcome struct {
	Stage    string `json:"stage"`
	Tactic   string `json:"tactic"`
	Assessed bool   `json:"assessed"`
	Applied  bool   `json:"applied"`
	Success  bool   `json:"success"`
}

// labeler maps commit hashes to scenario labels.
type labeler map[string]string

func (l labeler) label(hash string) string {
	if hash == "" {
		return ""
	}
	if name, ok := l[hash]; ok {
		return name
	}
	for h, name := range l {
		if strings.HasPrefix(h, hash) {
			return name
		}
	}
	return hash
}

func newSnapshot(s *Scenario, runID string, d *engine.Decision, labels labeler) Snapshot {
	snap := Snapshot{
		Scenario:       s.Name,
		RunID:          runID,
		Branch:         d.Branch,
		Policy:         string(d.Policy),
		Source:         d.Action.Source,
		Bump:           d.Bump.String(),
		Forced:         d.Forced,
		CurrentVersion: d.CurrentVersion,
		NextVersion:    d.NextVersion,
		ShouldBump:     d.ShouldBump,
		Tag:            d.Tag,
		ReleaseBranch:  d.ReleaseBranch,
		PackageManager: d.PackageManager.String(),
		Reference: &SnapshotReference{
			Strategy: d.Reference.Strategy,
			Commit:   labels.label(d.Reference.ReferenceCommit),
			Version:  d.Reference.ReferenceVersion,
			Finalize: d.Reference.ShouldFinalizeVersions,
			Force:    d.Reference.ShouldForceBump,
		},
	}
	for _, c := range d.Commits {
		snap.Commits = append(snap.Commits, SnapshotCommit{
			Commit:   labels.label(c.Hash),
			Type:     c.Type,
			Breaking: c.Breaking,
		})
	}
	snap.Outcomes = snapshotOutcomes(d.Outcomes)
	return snap
}

func snapshotOutcomes(outcomes []store.StageOutcome) []SnapshotOutcome {
	out := make([]SnapshotOutcome, 0, len(outcomes))
	for _, o := range outcomes {
		out = append(out, SnapshotOutcome{
			Stage:    o.Stage,
			Tactic:   o.Tactic,
			Assessed: o.Assessed,
			Applied:  o.Applied,
			Success:  o.Success,
		})
	}
	return out
}
