package tactic

import (
	"context"
	"log/slog"
)

// Plan is a required sequential step: the simplified form of One used where
// exhaustion must stop the run.
//
// Patches are merged into the state even when a tactic fails, and panics in
// Attempt become failed results. Only exhaustion of the whole plan is
// reported as an error.
type Plan[T, S any] struct {
	Name    string
	Tactics []Tactic[T, S]
	Logger  *slog.Logger
}

// PlanResult is the outcome of a successful Plan.
type PlanResult[T, S any] struct {
	Value    T
	State    S
	Tactic   string
	Outcomes []Outcome
}

// NewPlan creates a plan over tactics.
func NewPlan[T, S any](name string, tactics ...Tactic[T, S]) *Plan[T, S] {
	return &Plan[T, S]{Name: name, Tactics: tactics}
}

// WithLogger sets the logger and returns p.
func (p *Plan[T, S]) WithLogger(l *slog.Logger) *Plan[T, S] {
	p.Logger = l
	return p
}

// Execute runs the plan. On exhaustion the returned state still carries all
// merged patches, and the error is a *PlanExhaustedError.
func (p *Plan[T, S]) Execute(ctx context.Context, state S) (PlanResult[T, S], error) {
	log := p.Logger
	if log == nil {
		log = slog.Default()
	}
	log = log.With("plan", p.Name)

	var out PlanResult[T, S]
	for _, t := range p.Tactics {
		if !t.Assess(state) {
			out.Outcomes = append(out.Outcomes, skipped(t.Name()))
			continue
		}

		r := attempt(ctx, t, state)
		state = apply(state, r.Patch)
		out.Outcomes = append(out.Outcomes, outcomeOf(t.Name(), r))

		if r.won() {
			out.Value = r.Value
			out.State = state
			out.Tactic = t.Name()
			return out, nil
		}
		log.Info("plan tactic failed", "tactic", t.Name(), "message", r.Message)
	}

	out.State = state
	return out, &PlanExhaustedError{Plan: p.Name, Tactics: len(p.Tactics), Attempts: out.Outcomes}
}
