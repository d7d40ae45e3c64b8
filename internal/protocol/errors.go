package protocol

import (
	"errors"
	"fmt"
)

const (
	// Lookup failures.
	ErrWorldNotFound = "E_WORLD_NOT_FOUND"
	ErrNodeNotFound  = "E_NODE_NOT_FOUND"
	ErrMarchNotFound = "E_MARCH_NOT_FOUND"

	// State conflicts.
	ErrMarchConflict    = "E_MARCH_CONFLICT"
	ErrNodeDepleted     = "E_NODE_DEPLETED"
	ErrWorldNotJoinable = "E_WORLD_NOT_JOINABLE"

	// Corrupted state; never a user error.
	ErrInvariantViolation = "E_INVARIANT_VIOLATION"
	ErrInternal           = "E_INTERNAL"
)

var knownCodes = map[string]struct{}{
	ErrWorldNotFound:      {},
	ErrNodeNotFound:       {},
	ErrMarchNotFound:      {},
	ErrMarchConflict:      {},
	ErrNodeDepleted:       {},
	ErrWorldNotJoinable:   {},
	ErrInvariantViolation: {},
	ErrInternal:           {},
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}

// Error is a coded domain failure. Two errors match under errors.Is when their codes match.
type Error struct {
	Code     string
	Message  string
	Metadata map[string]string
	Cause    error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return e.Code + ": " + e.Message
}

func (e *Error) Unwrap() error { return e.Cause }

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

func New(code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WithMetadata attaches identifiers of the offending entity so callers can render them.
func WithMetadata(code, message string, metadata map[string]string) *Error {
	return &Error{Code: code, Message: message, Metadata: metadata}
}

func Wrap(code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// Sentinels for errors.Is checks.
var (
	WorldNotFound      = New(ErrWorldNotFound, "world not found")
	NodeNotFound       = New(ErrNodeNotFound, "neutral node not found")
	MarchNotFound      = New(ErrMarchNotFound, "gather march not found")
	MarchConflict      = New(ErrMarchConflict, "gather march already exists")
	NodeDepleted       = New(ErrNodeDepleted, "neutral node depleted")
	WorldNotJoinable   = New(ErrWorldNotJoinable, "world is not open for joining")
	InvariantViolation = New(ErrInvariantViolation, "invariant violation")
)

// CodeOf returns the code of the first *Error in err's chain, ErrInternal for any other
// non-nil error, and "" for nil.
func CodeOf(err error) string {
	if err == nil {
		return ""
	}
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Code
	}
	return ErrInternal
}

// IsFatal reports whether err signals corrupted state that callers must not retry.
func IsFatal(err error) bool {
	return CodeOf(err) == ErrInvariantViolation
}
