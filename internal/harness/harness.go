package harness

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/bumpflow/internal/engine"
	"github.com/roach88/bumpflow/internal/flow"
	"github.com/roach88/bumpflow/internal/manifest"
	"github.com/roach88/bumpflow/internal/semver"
	"github.com/roach88/bumpflow/internal/store"
	"github.com/roach88/bumpflow/internal/testutil"
)

// DefaultRunID is the run ID of scenarios that do not set one.
const DefaultRunID = "test-run-default"

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when every expectation and assertion holds.
	Pass bool `json:"pass"`

	// Errors contains validation error messages. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	Snapshot Snapshot `json:"snapshot"`

	// Decision is nil when the engine failed.
	Decision *engine.Decision `json:"-"`

	// Record is the decision history row, nil when the engine failed.
	Record *store.Record `json:"-"`
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// Run executes a scenario and returns the result.
//
// Each scenario runs against a fresh repository and a fresh in-memory
// history database. The returned error reports a broken scenario (bad
// steps, unreadable policy); engine failures are captured in
// Snapshot.Error so they can be expected.
func Run(scenario *Scenario) (*Result, error) {
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	repo, labels, err := build(scenario)
	if err != nil {
		return nil, err
	}

	req, err := request(scenario)
	if err != nil {
		return nil, err
	}

	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	runID := scenario.RunID
	if runID == "" {
		runID = DefaultRunID
	}
	eng := engine.New(repo,
		engine.WithLogger(logger),
		engine.WithIDGenerator(testutil.NewFixedIDGenerator(runID)),
		engine.WithClock(testutil.NewDeterministicClock().Next),
	)

	result := &Result{Pass: true}
	d, err := eng.Decide(ctx, req)
	if err != nil {
		var ee *engine.Error
		if !errors.As(err, &ee) {
			return nil, err
		}
		result.Snapshot = Snapshot{Scenario: scenario.Name, RunID: runID, Error: string(ee.Code)}
	} else {
		if err := engine.Save(ctx, st, d); err != nil {
			return nil, err
		}
		rec, err := st.GetDecision(ctx, d.RunID)
		if err != nil {
			return nil, err
		}
		result.Decision = d
		result.Record = &rec
		result.Snapshot = newSnapshot(scenario, runID, d, labels)
	}

	if len(scenario.Expect) > 0 {
		actual, err := toMap(result.Snapshot)
		if err != nil {
			return nil, err
		}
		for _, msg := range matchSubset("", scenario.Expect, actual) {
			result.AddError("expect: " + msg)
		}
	}
	for _, msg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(msg)
	}
	return result, nil
}

// build replays the scenario steps into a fresh repository.
func build(s *Scenario) (repo *testutil.Repo, labels labeler, err error) {
	// testutil.Repo panics on misuse such as tagging an unknown ref.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("steps: %v", r)
		}
	}()

	repo = testutil.NewRepo(s.Branch)
	labels = labeler{}
	byLabel := map[string]string{}
	resolve := func(ref string) string {
		if h, ok := byLabel[ref]; ok {
			return h
		}
		return ref
	}

	manifestPath := s.Inputs.Manifest
	if manifestPath == "" {
		manifestPath = manifest.DefaultPath
	}

	commits := 0
	for i, step := range s.Steps {
		switch {
		case step.Commit != "":
			commits++
			files := testutil.Files{}
			for p, c := range step.Files {
				files[p] = c
			}
			if step.Version != "" {
				files[manifestPath] = packageJSON(step.Version)
			}
			hash := repo.Commit(step.Commit, files)
			label := step.ID
			if label == "" {
				label = fmt.Sprintf("c%d", commits)
			}
			labels[hash] = label
			byLabel[label] = hash
		case step.Tag != "":
			at := step.At
			if at == "" {
				at = "HEAD"
			}
			repo.TagAt(step.Tag, resolve(at))
		case step.Branch != "":
			repo.Branch(step.Branch)
		case step.Checkout != "":
			repo.Checkout(resolve(step.Checkout))
		default:
			return nil, nil, fmt.Errorf("steps[%d]: empty step", i)
		}
	}
	return repo, labels, nil
}

func packageJSON(version string) string {
	return fmt.Sprintf("{\n  \"name\": \"scenario\",\n  \"version\": %q\n}\n", version)
}

// request turns scenario inputs into an engine request.
func request(s *Scenario) (engine.Request, error) {
	in := s.Inputs
	strategy := semver.PolicyApplyBump
	if in.Strategy != "" {
		p, err := semver.ParsePolicy(in.Strategy)
		if err != nil {
			return engine.Request{}, err
		}
		strategy = p
	}
	pm, err := manifest.ParsePackageManager(in.PackageManager)
	if err != nil {
		return engine.Request{}, err
	}

	policy := s.Policy
	if s.PolicyFile != "" {
		if policy, err = flow.LoadFile(s.PolicyFile); err != nil {
			return engine.Request{}, err
		}
	}

	return engine.Request{
		CurrentBranch: in.CurrentBranch,
		EventType:     in.EventType,
		TargetBranch:  in.TargetBranch,
		Defaults: flow.ActionConfiguration{
			Strategy:       strategy,
			BaseBranch:     in.BaseBranch,
			CreateBranch:   in.CreateBranch,
			TagPrereleases: in.TagPrereleases,
			BranchTemplate: in.BranchTemplate,
			PrereleaseID:   in.PrereleaseID,
		},
		Policy:          policy,
		Manifest:        in.Manifest,
		LookbackCommits: in.LookbackCommits,
		MaxCount:        in.MaxCount,
		PackageManager:  pm,
	}, nil
}

// toMap round-trips v through JSON so it can be compared with YAML values.
func toMap(v any) (map[string]any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}
