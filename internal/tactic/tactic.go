package tactic

import (
	"context"
	"fmt"
)

// Patch transforms the state threaded through a maneuver.
//
// A patch returned by a failed attempt is still applied: failed tactics may
// report partial discoveries that the next tactic should see.
type Patch[S any] func(S) S

// Tactic is a named, stateless attempt at producing a T from state S.
//
// Assess must be cheap and free of side effects. Attempt may perform I/O.
type Tactic[T, S any] interface {
	Name() string
	Assess(state S) bool
	Attempt(ctx context.Context, state S) Result[T, S]
}

// Result is the outcome of a single Attempt.
//
// Three logical states exist: not applicable (Applied=false), applied and
// failed, applied and succeeded. Success implies Applied.
type Result[T, S any] struct {
	Applied  bool
	Success  bool
	Value    T
	HasValue bool
	Patch    Patch[S]
	Message  string
	Err      error
}

// Succeeded builds an applied, successful result carrying v.
func Succeeded[T, S any](v T, message string) Result[T, S] {
	return Result[T, S]{Applied: true, Success: true, Value: v, HasValue: true, Message: message}
}

// Failed builds an applied, failed result.
func Failed[T, S any](err error) Result[T, S] {
	r := Result[T, S]{Applied: true, Err: err}
	if err != nil {
		r.Message = err.Error()
	}
	return r
}

// NotApplicable builds a result for a tactic that declined to run.
func NotApplicable[T, S any](message string) Result[T, S] {
	return Result[T, S]{Message: message}
}

// WithPatch returns a copy of r carrying p.
func (r Result[T, S]) WithPatch(p Patch[S]) Result[T, S] {
	r.Patch = p
	return r
}

// won reports whether r is a usable success.
func (r Result[T, S]) won() bool {
	return r.Applied && r.Success && r.HasValue
}

// normalize enforces Success => Applied.
func (r Result[T, S]) normalize() Result[T, S] {
	if r.Success && !r.Applied {
		r.Applied = true
	}
	return r
}

// Func adapts plain functions into a Tactic.
type Func[T, S any] struct {
	TacticName string
	AssessFn   func(S) bool
	AttemptFn  func(context.Context, S) Result[T, S]
}

var _ Tactic[int, struct{}] = Func[int, struct{}]{}

// New creates a function-backed tactic. A nil assess always applies.
func New[T, S any](name string, assess func(S) bool, attempt func(context.Context, S) Result[T, S]) Func[T, S] {
	return Func[T, S]{TacticName: name, AssessFn: assess, AttemptFn: attempt}
}

func (f Func[T, S]) Name() string { return f.TacticName }

func (f Func[T, S]) Assess(state S) bool {
	if f.AssessFn == nil {
		return true
	}
	return f.AssessFn(state)
}

func (f Func[T, S]) Attempt(ctx context.Context, state S) Result[T, S] {
	if f.AttemptFn == nil {
		return Failed[T, S](fmt.Errorf("tactic %s: no attempt function", f.TacticName))
	}
	return f.AttemptFn(ctx, state)
}

// attempt runs t.Attempt, converting a panic into a failed result.
func attempt[T, S any](ctx context.Context, t Tactic[T, S], state S) (res Result[T, S]) {
	defer func() {
		if p := recover(); p != nil {
			res = Failed[T, S](&PanicError{Tactic: t.Name(), Value: p})
		}
	}()
	return t.Attempt(ctx, state).normalize()
}

// apply runs an optional patch.
func apply[S any](state S, p Patch[S]) S {
	if p == nil {
		return state
	}
	return p(state)
}
