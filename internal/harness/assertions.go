package harness

import (
	"fmt"
	"sort"
	"strings"
)

// AssertionError is returned when an assertion fails.
// It includes the stage's outcome trail to help debug the failure.
type AssertionError struct {
	Type     string            // Assertion type for categorization
	Expected string            // Human-readable expected outcome
	Actual   string            // Human-readable actual outcome
	Trail    []SnapshotOutcome // Outcomes of the asserted stage
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trail) > 0 {
		fmt.Fprintf(&buf, "\nOutcomes:\n")
		for i, o := range e.Trail {
			fmt.Fprintf(&buf, "  [%d] %s/%s assessed=%t applied=%t success=%t\n",
				i+1, o.Stage, o.Tactic, o.Assessed, o.Applied, o.Success)
		}
	}
	return buf.String()
}

// EvaluateAssertions runs every assertion against result and returns the
// failure messages.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errs []string
	for i, a := range assertions {
		var err error
		switch a.Type {
		case AssertOutcomeContains:
			err = assertOutcomeContains(result.Snapshot.Outcomes, a)
		case AssertOutcomeOrder:
			err = assertOutcomeOrder(result.Snapshot.Outcomes, a)
		case AssertOutcomeCount:
			err = assertOutcomeCount(result.Snapshot.Outcomes, a)
		case AssertRecorded:
			err = assertRecorded(result, a)
		default:
			err = fmt.Errorf("unknown assertion type %q", a.Type)
		}
		if err != nil {
			errs = append(errs, fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}
	return errs
}

func inStage(outcomes []SnapshotOutcome, stage string) []SnapshotOutcome {
	var out []SnapshotOutcome
	for _, o := range outcomes {
		if o.Stage == stage {
			out = append(out, o)
		}
	}
	return out
}

// assertOutcomeContains checks that the tactic was considered in the stage,
// with the expected success when one is given.
func assertOutcomeContains(outcomes []SnapshotOutcome, a Assertion) error {
	trail := inStage(outcomes, a.Stage)
	for _, o := range trail {
		if o.Tactic != a.Tactic {
			continue
		}
		if a.Success == nil || *a.Success == o.Success {
			return nil
		}
		return &AssertionError{
			Type:     AssertOutcomeContains,
			Expected: fmt.Sprintf("%s/%s success=%t", a.Stage, a.Tactic, *a.Success),
			Actual:   fmt.Sprintf("success=%t", o.Success),
			Trail:    trail,
		}
	}
	return &AssertionError{
		Type:     AssertOutcomeContains,
		Expected: fmt.Sprintf("tactic %s in stage %s", a.Tactic, a.Stage),
		Actual:   "not found in outcomes",
		Trail:    trail,
	}
}

// assertOutcomeOrder checks that tactics appear in the specified order.
// Tactics don't need to be consecutive.
func assertOutcomeOrder(outcomes []SnapshotOutcome, a Assertion) error {
	trail := inStage(outcomes, a.Stage)
	next := 0
	for _, o := range trail {
		if next < len(a.Tactics) && o.Tactic == a.Tactics[next] {
			next++
		}
	}
	if next == len(a.Tactics) {
		return nil
	}
	return &AssertionError{
		Type:     AssertOutcomeOrder,
		Expected: fmt.Sprintf("tactics in order: %v", a.Tactics),
		Actual:   fmt.Sprintf("missing or out of order: %s", a.Tactics[next]),
		Trail:    trail,
	}
}

// assertOutcomeCount checks the number of outcomes in the stage.
func assertOutcomeCount(outcomes []SnapshotOutcome, a Assertion) error {
	trail := inStage(outcomes, a.Stage)
	if len(trail) == a.Count {
		return nil
	}
	return &AssertionError{
		Type:     AssertOutcomeCount,
		Expected: fmt.Sprintf("%d outcomes in stage %s", a.Count, a.Stage),
		Actual:   fmt.Sprintf("%d outcomes", len(trail)),
		Trail:    trail,
	}
}

// assertRecorded checks the decision history row with subset semantics.
func assertRecorded(result *Result, a Assertion) error {
	if result.Record == nil {
		return &AssertionError{
			Type:     AssertRecorded,
			Expected: "a recorded decision",
			Actual:   fmt.Sprintf("no decision (error %s)", result.Snapshot.Error),
		}
	}
	actual, err := toMap(result.Record)
	if err != nil {
		return err
	}
	if msgs := matchSubset("", a.Expect, actual); len(msgs) > 0 {
		return &AssertionError{
			Type:     AssertRecorded,
			Expected: fmt.Sprintf("history row matching %v", a.Expect),
			Actual:   strings.Join(msgs, "; "),
		}
	}
	return nil
}

// matchSubset compares expected against actual: maps recursively on the
// expected keys only, lists element-wise with equal length, and scalars by
// their printed form so YAML and JSON typing differences don't matter.
func matchSubset(path string, expected, actual any) []string {
	switch exp := expected.(type) {
	case map[string]any:
		act, ok := actual.(map[string]any)
		if !ok {
			return []string{fmt.Sprintf("%s: expected an object, got %v", label(path), actual)}
		}
		keys := make([]string, 0, len(exp))
		for k := range exp {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		var msgs []string
		for _, k := range keys {
			sub := k
			if path != "" {
				sub = path + "." + k
			}
			v, ok := act[k]
			if !ok {
				if isZero(exp[k]) {
					continue
				}
				msgs = append(msgs, fmt.Sprintf("%s: missing, expected %v", sub, exp[k]))
				continue
			}
			msgs = append(msgs, matchSubset(sub, exp[k], v)...)
		}
		return msgs

	case []any:
		act, ok := actual.([]any)
		if !ok || len(act) != len(exp) {
			return []string{fmt.Sprintf("%s: expected %d items, got %v", label(path), len(exp), actual)}
		}
		var msgs []string
		for i := range exp {
			msgs = append(msgs, matchSubset(fmt.Sprintf("%s[%d]", path, i), exp[i], act[i])...)
		}
		return msgs

	default:
		if fmt.Sprint(expected) != fmt.Sprint(actual) {
			return []string{fmt.Sprintf("%s: expected %v, got %v", label(path), expected, actual)}
		}
		return nil
	}
}

// isZero reports whether v is what an omitted JSON field stands for.
func isZero(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		return x == ""
	case bool:
		return !x
	case int:
		return x == 0
	}
	return false
}

func label(path string) string {
	if path == "" {
		return "(root)"
	}
	return path
}
