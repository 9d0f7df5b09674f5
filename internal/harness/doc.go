// Package harness runs versioning scenarios against an in-memory repository.
//
// # Scenario Format
//
// Scenarios are YAML files:
//
//	name: feature_prerelease
//	description: "A feature commit on develop yields a beta prerelease"
//	branch: main
//	steps:
//	  - commit: "chore(release): 1.0.0"
//	    version: "1.0.0"           # shorthand for a package.json change
//	    id: release
//	  - branch: develop
//	  - checkout: develop
//	  - commit: "feat: shiny"
//	    files: { src/a.js: "a" }
//	  - tag: v1.0.0
//	    at: release
//	inputs:
//	  strategy: pre-release
//	  base_branch: main
//	  prerelease_id: beta
//	policy:                        # or policy_file: relative/path.yaml
//	  flows:
//	    - { name: features, from: "feature/*", to: develop, versioning: beta }
//	expect:
//	  next_version: "1.1.0-beta.1"
//	  reference: { strategy: branch-based, commit: release }
//	assertions:
//	  - type: outcome_contains
//	    stage: reference
//	    tactic: branch-based
//	    success: true
//
// Expectations are a subset match against the scenario's Snapshot. Commit
// hashes never appear in snapshots: every commit is referred to by its step
// id, or c1, c2, ... in commit order.
//
// # Assertion Types
//
//   - outcome_contains: a tactic appears in a stage's outcome trail
//   - outcome_order: tactics appear in a stage in the given order
//   - outcome_count: a stage has exactly N outcomes
//   - recorded: the decision history row matches (subset)
//
// # Deterministic Testing
//
// Every scenario runs with a fresh testutil.Repo (deterministic commit
// dates and hashes), a fixed run ID and an in-memory SQLite history, so
// snapshots are byte-identical across runs and can be compared against
// golden files.
package harness
