// Package qvmerr defines the disjoint error kinds raised by the
// decompiler pipeline (spec.md §7).
package qvmerr

import "fmt"

// Kind distinguishes the error families the pipeline can raise. Kinds
// are disjoint: a given failure is exactly one kind, never a
// combination.
type Kind int

const (
	// AllocationFailure means an entity (function, variable, opcode,
	// opblock) could not be allocated. Fatal.
	AllocationFailure Kind = iota
	// TruncatedStream means an opcode stream or section ended mid-operand
	// or mid-header. Fatal.
	TruncatedStream
	// MalformedModule means enter/leave nesting, an unknown opcode, or a
	// negative stack size was found. Fatal.
	MalformedModule
	// UnbalancedStack means the lifter ended a function with a non-empty
	// work stack. Fatal.
	UnbalancedStack
	// UnresolvedJump means a JUMP_ADDRESS references an address with no
	// JUMP_POINT. Fatal.
	UnresolvedJump
	// NameTooLong means a rename request exceeded the bounded name
	// buffer. Recoverable: the rename is skipped.
	NameTooLong
	// VariableCutFailed means a cut target address was not inside any
	// known variable. Fatal.
	VariableCutFailed
)

func (k Kind) String() string {
	switch k {
	case AllocationFailure:
		return "AllocationFailure"
	case TruncatedStream:
		return "TruncatedStream"
	case MalformedModule:
		return "MalformedModule"
	case UnbalancedStack:
		return "UnbalancedStack"
	case UnresolvedJump:
		return "UnresolvedJump"
	case NameTooLong:
		return "NameTooLong"
	case VariableCutFailed:
		return "VariableCutFailed"
	default:
		return "UnknownError"
	}
}

// Fatal reports whether this kind short-circuits the pipeline. Only
// NameTooLong is recoverable.
func (k Kind) Fatal() bool {
	return k != NameTooLong
}

// Error is the single error type raised by every pipeline stage. Stage
// names the component that raised it ("decoder", "lifter", ...) so
// callers can tell where in the pipeline a fatal error short-circuited.
type Error struct {
	Kind    Kind
	Stage   string
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s: %s", e.Stage, e.Kind, e.Message)
}

func new_(kind Kind, stage, format string, args ...any) *Error {
	return &Error{Kind: kind, Stage: stage, Message: fmt.Sprintf(format, args...)}
}

// Allocation reports an AllocationFailure raised by stage.
func Allocation(stage, format string, args ...any) *Error {
	return new_(AllocationFailure, stage, format, args...)
}

// Truncated reports a TruncatedStream raised by stage.
func Truncated(stage, format string, args ...any) *Error {
	return new_(TruncatedStream, stage, format, args...)
}

// Malformed reports a MalformedModule raised by stage.
func Malformed(stage, format string, args ...any) *Error {
	return new_(MalformedModule, stage, format, args...)
}

// Unbalanced reports an UnbalancedStack raised by stage.
func Unbalanced(stage, format string, args ...any) *Error {
	return new_(UnbalancedStack, stage, format, args...)
}

// UnresolvedJmp reports an UnresolvedJump raised by stage.
func UnresolvedJmp(stage, format string, args ...any) *Error {
	return new_(UnresolvedJump, stage, format, args...)
}

// NameTooLongErr reports a recoverable NameTooLong raised by stage.
func NameTooLongErr(stage, format string, args ...any) *Error {
	return new_(NameTooLong, stage, format, args...)
}

// CutFailed reports a VariableCutFailed raised by stage.
func CutFailed(stage, format string, args ...any) *Error {
	return new_(VariableCutFailed, stage, format, args...)
}

// Is supports errors.Is(err, &qvmerr.Error{Kind: qvmerr.AllocationFailure})
// style checks by matching on Kind rather than identity.
func (e *Error) Is(target error) bool {
	other, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == other.Kind
}
