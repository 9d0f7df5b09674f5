// Package tactic implements ordered-attempt execution.
//
// A Tactic is one way of producing a value. Maneuvers compose tactics with
// distinct failure semantics:
//
//   - One: fallback chain. Tactics are tried in order until one produces a
//     value; exhaustion is an error.
//   - Any: first match. Only the first applicable tactic is attempted; its
//     failure is the maneuver's failure.
//   - All: aggregate. Every applicable tactic is attempted; success means at
//     least one succeeded.
//
// Plan is the required-step form of One: exhaustion is a hard stop.
//
// State is threaded explicitly. A tactic never mutates shared memory; it
// returns a Patch which the maneuver applies before the next tactic runs,
// including after failed attempts.
//
// Execution is sequential and ordered. All may run in parallel only with
// isolated state copies whose patches are merged in list order.
package tactic
