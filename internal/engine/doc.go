// Package engine runs the version decision pipeline.
//
// A run is strictly sequential and deterministic:
//
//  1. Gather: HEAD, the checked-out branch and tags are read (an All
//     maneuver; the reads are independent and may run in parallel on
//     isolated state).
//  2. Flow: the policy document is resolved into an ActionConfiguration.
//  3. Reference: the baseline commit and version are discovered. Failure is
//     fatal to the run.
//  4. Classify: commits since the baseline are classified. Exhaustion
//     degrades to "no signal" instead of failing.
//  5. Decide: signal, policy and current version produce the next version,
//     tag and release branch names.
//
// Every tactic considered along the way is kept in Decision.Outcomes, tagged
// with its stage, so a decision can always be explained after the fact.
//
// Run IDs are UUIDv7 and unique per run. Decision IDs are content-addressed
// (see internal/canonical): two runs reaching the same decision from the
// same inputs share a DecisionID.
package engine
