package tactic

import (
	"errors"
	"fmt"
)

// ExhaustedError is returned by One when no tactic produced a value.
//
// Exhaustion of a One chain is a hard error: callers that treat the chain as
// optional must check IsExhausted and degrade themselves.
type ExhaustedError struct {
	// Maneuver is the name of the exhausted maneuver.
	Maneuver string

	// Tactics is the number of tactics in the chain.
	Tactics int

	// LastErr is the error from the last applied tactic, if any.
	LastErr error
}

func (e *ExhaustedError) Error() string {
	msg := fmt.Sprintf("%s: all %d tactics exhausted", e.Maneuver, e.Tactics)
	if e.LastErr != nil {
		return fmt.Sprintf("%s (last error: %v)", msg, e.LastErr)
	}
	return msg
}

func (e *ExhaustedError) Unwrap() error {
	return e.LastErr
}

// PlanExhaustedError is returned by Plan when every tactic failed.
// It signals a required step with no way forward.
type PlanExhaustedError struct {
	Plan     string
	Tactics  int
	Attempts []Outcome
}

func (e *PlanExhaustedError) Error() string {
	return fmt.Sprintf("plan %s: no tactic succeeded (%d tried)", e.Plan, e.Tactics)
}

// PanicError wraps a value recovered from a panicking Attempt.
type PanicError struct {
	Tactic string
	Value  any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("tactic %s panicked: %v", e.Tactic, e.Value)
}

// IsExhausted reports whether err is a One or Plan exhaustion.
func IsExhausted(err error) bool {
	var ee *ExhaustedError
	if errors.As(err, &ee) {
		return true
	}
	var pe *PlanExhaustedError
	return errors.As(err, &pe)
}
