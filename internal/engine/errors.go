package engine

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes pipeline errors.
type ErrorCode string

const (
	// ErrCodePolicy indicates the policy document could not be resolved.
	ErrCodePolicy ErrorCode = "POLICY_INVALID"

	// ErrCodeRepository indicates the repository could not be read.
	ErrCodeRepository ErrorCode = "REPOSITORY_UNREADABLE"

	// ErrCodeNoReference indicates no reference point could be found.
	ErrCodeNoReference ErrorCode = "NO_REFERENCE"

	// ErrCodeDecision indicates the decision could not be identified.
	ErrCodeDecision ErrorCode = "DECISION_FAILED"
)

// Stage names, used in errors and outcome trails.
const (
	StageGather    = "gather"
	StageFlow      = "flow"
	StageReference = "reference"
	StageClassify  = "classify"
	StageDecide    = "decide"
)

// Error is a pipeline failure with the stage it happened in.
type Error struct {
	Code    ErrorCode
	Stage   string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %s: %v", e.Code, e.Stage, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s: %s", e.Code, e.Stage, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func newError(code ErrorCode, stage, message string, err error) *Error {
	return &Error{Code: code, Stage: stage, Message: message, Err: err}
}

// IsNoReference reports whether err is a reference discovery failure.
// Uses errors.As to handle wrapped errors.
func IsNoReference(err error) bool {
	return hasCode(err, ErrCodeNoReference)
}

// IsPolicyError reports whether err is a policy resolution failure.
func IsPolicyError(err error) bool {
	return hasCode(err, ErrCodePolicy)
}

// IsRepositoryError reports whether err came from reading the repository.
func IsRepositoryError(err error) bool {
	return hasCode(err, ErrCodeRepository)
}

func hasCode(err error, code ErrorCode) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}
