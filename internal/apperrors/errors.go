// Package apperrors declares the stable, user-facing error-code taxonomy
// shared by validation, evolution, the scheduler and the HTTP/WebSocket
// surfaces. Codes are part of the wire contract: renaming one is a breaking
// change for any client that branches on Code.
package apperrors

import "fmt"

// Code is a stable machine-readable error identifier.
type Code string

const (
	CodeInvalidInput       Code = "INVALID_INPUT"
	CodeValidationFailed   Code = "VALIDATION_FAILED"
	CodeNotFound           Code = "NOT_FOUND"
	CodeAlreadyExists      Code = "ALREADY_EXISTS"
	CodeInvariantViolated  Code = "INVARIANT_VIOLATED"
	CodeInvalidState       Code = "INVALID_STATE"
	CodeCyclicDependency   Code = "CYCLIC_DEPENDENCY"
	CodeInvalidType        Code = "INVALID_TYPE"
	CodeCycleDetected      Code = "CYCLE_DETECTED"
	CodeTimeout            Code = "TIMEOUT"
	CodeInterrupted        Code = "INTERRUPTED"
	CodeApprovalTimeout    Code = "APPROVAL_TIMEOUT"
	CodeEvolutionRejected  Code = "EVOLUTION_REJECTED"
	CodeUnreachableNode    Code = "UNREACHABLE_NODE"
	CodeDuplicateName      Code = "DUPLICATE_NAME"
	CodeSchemaMismatch     Code = "SCHEMA_MISMATCH"
	CodeReservedPath       Code = "RESERVED_PATH"
	CodeNotDeletable       Code = "NOT_DELETABLE"

	// Workflow validator codes.
	CodeMissingInput      Code = "MISSING_INPUT"
	CodeDuplicateInput    Code = "DUPLICATE_INPUT"
	CodeMissingOutput     Code = "MISSING_OUTPUT"
	CodeDuplicateOutput   Code = "DUPLICATE_OUTPUT"
	CodeInputNotConnected  Code = "INPUT_NOT_CONNECTED"
	CodeOutputNotConnected Code = "OUTPUT_NOT_CONNECTED"
	CodeOrphanedNode       Code = "ORPHANED_NODE"
	CodeOutputNotReachable Code = "OUTPUT_NOT_REACHABLE"

	// Evolution applier code.
	CodeEvolutionApplyFailed Code = "EVOLUTION_APPLY_FAILED"

	// Evolution validator codes.
	CodeTooManyMutations     Code = "TOO_MANY_MUTATIONS"
	CodeScopeViolation       Code = "SCOPE_VIOLATION"
	CodeSelfMutationForbidden Code = "SELF_MUTATION_FORBIDDEN"
)

// Error is the concrete error type carrying a stable Code plus a
// human-readable message and optional wrapped cause.
type Error struct {
	Code    Code
	Message string
	Cause   error
}

func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is supports errors.Is(err, apperrors.New(code, "")) style comparisons by
// matching on Code alone.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// CodeOf extracts the Code from err if it (or something it wraps) is an
// *Error, and "" otherwise.
func CodeOf(err error) Code {
	var appErr *Error
	for err != nil {
		if ae, ok := err.(*Error); ok {
			appErr = ae
			break
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		err = u.Unwrap()
	}
	if appErr == nil {
		return ""
	}
	return appErr.Code
}
