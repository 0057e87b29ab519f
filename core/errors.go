package core

import "fmt"

// Code is a stable, machine-readable error code. Codes are part of the public
// contract: callers branch on them, human-readable reasons may change freely.
type Code string

const (
	// Validation errors. Rejected synchronously, no state is mutated.

	// CodeInvalidParticipants indicates an empty or unknown participant list.
	CodeInvalidParticipants Code = "InvalidParticipants"
	// CodeInvalidSettings indicates an unknown or out-of-range settings field.
	CodeInvalidSettings Code = "InvalidSettings"
	// CodeInvalidWeights indicates rubric weights that do not sum to 1.0.
	CodeInvalidWeights Code = "InvalidWeights"
	// CodeEmptySubset indicates a breakout created with no participants.
	CodeEmptySubset Code = "EmptySubset"
	// CodeUnknownParticipant indicates a participant outside the parent set.
	CodeUnknownParticipant Code = "UnknownParticipant"

	// Lifecycle errors. The caller must retry or pick a different target.

	// CodeSessionNotFound indicates the target session or breakout does not exist.
	CodeSessionNotFound Code = "SessionNotFound"
	// CodeSessionEnded indicates an operation on an already-ended session.
	CodeSessionEnded Code = "SessionEnded"
	// CodeTargetLocked indicates a turn is already in flight on the target.
	CodeTargetLocked Code = "TargetLocked"

	// Partial-failure outcomes surfaced as errors.

	// CodeRoundEmpty indicates a round in which no participant returned a
	// usable response.
	CodeRoundEmpty Code = "RoundEmpty"
)

// Error is the structured error every rejected operation returns: a stable
// code plus a human-readable reason, optionally wrapping a cause.
type Error struct {
	Code   Code
	Reason string
	Cause  error
}

// NewError builds an Error with a formatted reason.
func NewError(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Reason: fmt.Sprintf(format, args...)}
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Reason, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Reason)
}

// Unwrap exposes the wrapped cause for errors.Is / errors.As chains.
func (e *Error) Unwrap() error { return e.Cause }

// Is matches two Errors by code alone so sentinel comparisons like
// errors.Is(err, &Error{Code: CodeSessionEnded}) work regardless of reason.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// IsCode reports whether err is (or wraps) a quorum Error with the given code.
func IsCode(err error, code Code) bool {
	for err != nil {
		if qe, ok := err.(*Error); ok {
			return qe.Code == code
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
