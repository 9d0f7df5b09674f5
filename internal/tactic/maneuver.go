package tactic

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"
)

// Kind selects the failure semantics of a Maneuver.
type Kind int

const (
	// KindOne tries tactics in order and falls back to the next on failure.
	KindOne Kind = iota
	// KindAny attempts only the first applicable tactic.
	KindAny
	// KindAll attempts every applicable tactic and aggregates.
	KindAll
)

func (k Kind) String() string {
	switch k {
	case KindOne:
		return "one"
	case KindAny:
		return "any"
	case KindAll:
		return "all"
	default:
		return "unknown"
	}
}

// Outcome is one entry of a maneuver's audit trail.
type Outcome struct {
	Tactic   string `json:"tactic"`
	Assessed bool   `json:"assessed"`
	Applied  bool   `json:"applied"`
	Success  bool   `json:"success"`
	Message  string `json:"message,omitempty"`
	Error    string `json:"error,omitempty"`
}

func outcomeOf[T, S any](name string, r Result[T, S]) Outcome {
	o := Outcome{
		Tactic:   name,
		Assessed: true,
		Applied:  r.Applied,
		Success:  r.Success,
		Message:  r.Message,
	}
	if r.Err != nil {
		o.Error = r.Err.Error()
	}
	return o
}

func skipped(name string) Outcome {
	return Outcome{Tactic: name, Message: "not applicable"}
}

// ManeuverResult carries the winning value, the final state and the audit
// trail of every tactic considered.
type ManeuverResult[T, S any] struct {
	Maneuver string
	Kind     Kind
	Success  bool
	Value    T
	Values   []T // populated by All, in tactic order
	State    S
	Message  string
	Outcomes []Outcome
}

// Maneuver orchestrates an ordered list of tactics.
type Maneuver[T, S any] struct {
	Name    string
	Kind    Kind
	Tactics []Tactic[T, S]

	// Parallel runs All's tactics concurrently on isolated copies of the
	// state. Patches are merged afterwards in list order. Ignored by One
	// and Any.
	Parallel bool

	Logger *slog.Logger
}

// One creates a fallback-chain maneuver.
func One[T, S any](name string, tactics ...Tactic[T, S]) *Maneuver[T, S] {
	return &Maneuver[T, S]{Name: name, Kind: KindOne, Tactics: tactics}
}

// Any creates a first-match maneuver.
func Any[T, S any](name string, tactics ...Tactic[T, S]) *Maneuver[T, S] {
	return &Maneuver[T, S]{Name: name, Kind: KindAny, Tactics: tactics}
}

// All creates an aggregate maneuver.
func All[T, S any](name string, tactics ...Tactic[T, S]) *Maneuver[T, S] {
	return &Maneuver[T, S]{Name: name, Kind: KindAll, Tactics: tactics}
}

// WithLogger sets the logger and returns m.
func (m *Maneuver[T, S]) WithLogger(l *slog.Logger) *Maneuver[T, S] {
	m.Logger = l
	return m
}

func (m *Maneuver[T, S]) logger() *slog.Logger {
	if m.Logger == nil {
		return slog.Default()
	}
	return m.Logger
}

// Execute runs the maneuver against state.
//
// Only One returns a non-nil error (*ExhaustedError). Any and All report
// failure through ManeuverResult.Success.
func (m *Maneuver[T, S]) Execute(ctx context.Context, state S) (ManeuverResult[T, S], error) {
	switch m.Kind {
	case KindOne:
		return m.executeOne(ctx, state)
	case KindAny:
		return m.executeAny(ctx, state), nil
	case KindAll:
		if m.Parallel {
			return m.executeAllParallel(ctx, state), nil
		}
		return m.executeAll(ctx, state), nil
	default:
		return ManeuverResult[T, S]{}, fmt.Errorf("maneuver %s: unknown kind %d", m.Name, m.Kind)
	}
}

func (m *Maneuver[T, S]) result() ManeuverResult[T, S] {
	return ManeuverResult[T, S]{Maneuver: m.Name, Kind: m.Kind}
}

func (m *Maneuver[T, S]) executeOne(ctx context.Context, state S) (ManeuverResult[T, S], error) {
	log := m.logger().With("maneuver", m.Name, "kind", m.Kind.String())
	out := m.result()
	var lastErr error

	for _, t := range m.Tactics {
		if !t.Assess(state) {
			log.Debug("tactic not applicable", "tactic", t.Name())
			out.Outcomes = append(out.Outcomes, skipped(t.Name()))
			continue
		}

		r := attempt(ctx, t, state)
		state = apply(state, r.Patch)
		out.Outcomes = append(out.Outcomes, outcomeOf(t.Name(), r))

		if r.won() {
			log.Debug("tactic succeeded", "tactic", t.Name())
			out.Success = true
			out.Value = r.Value
			out.State = state
			out.Message = r.Message
			return out, nil
		}
		if r.Applied {
			log.Info("tactic failed, trying next", "tactic", t.Name(), "message", r.Message)
			if r.Err != nil {
				lastErr = r.Err
			}
		}
	}

	out.State = state
	err := &ExhaustedError{Maneuver: m.Name, Tactics: len(m.Tactics), LastErr: lastErr}
	out.Message = err.Error()
	return out, err
}

func (m *Maneuver[T, S]) executeAny(ctx context.Context, state S) ManeuverResult[T, S] {
	log := m.logger().With("maneuver", m.Name, "kind", m.Kind.String())
	out := m.result()

	for _, t := range m.Tactics {
		if !t.Assess(state) {
			out.Outcomes = append(out.Outcomes, skipped(t.Name()))
			continue
		}

		r := attempt(ctx, t, state)
		state = apply(state, r.Patch)
		out.Outcomes = append(out.Outcomes, outcomeOf(t.Name(), r))
		out.State = state

		// The first applicable tactic decides; a failure is not retried elsewhere.
		if r.won() {
			out.Success = true
			out.Value = r.Value
			out.Message = r.Message
			return out
		}
		log.Info("selected tactic failed", "tactic", t.Name(), "message", r.Message)
		out.Message = fmt.Sprintf("tactic %s failed: %s", t.Name(), r.Message)
		return out
	}

	out.State = state
	out.Message = fmt.Sprintf("no applicable tactic among %d", len(m.Tactics))
	return out
}

func (m *Maneuver[T, S]) executeAll(ctx context.Context, state S) ManeuverResult[T, S] {
	out := m.result()
	attempted, succeeded := 0, 0

	for _, t := range m.Tactics {
		if !t.Assess(state) {
			out.Outcomes = append(out.Outcomes, skipped(t.Name()))
			continue
		}
		r := attempt(ctx, t, state)
		state = apply(state, r.Patch)
		out.Outcomes = append(out.Outcomes, outcomeOf(t.Name(), r))
		attempted++
		if r.won() {
			succeeded++
			out.Values = append(out.Values, r.Value)
		}
	}

	out.State = state
	m.summarize(&out, attempted, succeeded)
	return out
}

func (m *Maneuver[T, S]) executeAllParallel(ctx context.Context, state S) ManeuverResult[T, S] {
	out := m.result()
	results := make([]Result[T, S], len(m.Tactics))
	assessed := make([]bool, len(m.Tactics))

	var g errgroup.Group
	for i, t := range m.Tactics {
		if !t.Assess(state) {
			continue
		}
		assessed[i] = true
		i, t := i, t
		g.Go(func() error {
			results[i] = attempt(ctx, t, state)
			return nil
		})
	}
	_ = g.Wait()

	attempted, succeeded := 0, 0
	for i, t := range m.Tactics {
		if !assessed[i] {
			out.Outcomes = append(out.Outcomes, skipped(t.Name()))
			continue
		}
		r := results[i]
		state = apply(state, r.Patch)
		out.Outcomes = append(out.Outcomes, outcomeOf(t.Name(), r))
		attempted++
		if r.won() {
			succeeded++
			out.Values = append(out.Values, r.Value)
		}
	}

	out.State = state
	m.summarize(&out, attempted, succeeded)
	return out
}

func (m *Maneuver[T, S]) summarize(out *ManeuverResult[T, S], attempted, succeeded int) {
	switch {
	case attempted == 0:
		out.Message = fmt.Sprintf("no applicable tactic among %d", len(m.Tactics))
	case succeeded == attempted:
		out.Success = true
		out.Message = fmt.Sprintf("all %d tactics succeeded", attempted)
	case succeeded > 0:
		out.Success = true
		out.Message = fmt.Sprintf("partial success: %d of %d tactics succeeded", succeeded, attempted)
	default:
		out.Message = fmt.Sprintf("all %d tactics failed", attempted)
	}
}
