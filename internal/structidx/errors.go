package structidx

import (
	"errors"
	"fmt"
)

// Code identifies the kind of table defect.
type Code int

// Stable defect codes - do not change values.
const (
	CodeOutOfBounds        Code = 2001 // IDX2001: handle outside the backward sequence
	CodeInvariantViolation Code = 2002 // IDX2002: forward/backward out of sync
)

// String returns the code as "IDX2001" format.
func (c Code) String() string {
	return fmt.Sprintf("IDX%d", int(c))
}

// Error reports a broken table invariant. Every Error is a defect: the caller
// holds a stale or foreign handle, or the table itself is corrupted. Callers
// must not retry.
type Error struct {
	Code    Code
	Message string

	// Index is the offending handle, or -1 when no handle is involved.
	Index int
	// ForwardLen and BackwardLen are the sizes observed when the defect was found.
	ForwardLen  int
	BackwardLen int
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("defect %s: %s", e.Code, e.Message)
}

// Is matches ErrDefect and the per-code sentinels.
func (e *Error) Is(target error) bool {
	if target == ErrDefect {
		return true
	}
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

var (
	// ErrDefect matches every error returned by a Table.
	ErrDefect = errors.New("struct name table defect")

	// ErrOutOfBounds matches out-of-bounds handle errors.
	ErrOutOfBounds = &Error{Code: CodeOutOfBounds, Message: "index out of bounds", Index: -1}

	// ErrInvariantViolation matches forward/backward consistency errors.
	ErrInvariantViolation = &Error{Code: CodeInvariantViolation, Message: "invariant violation", Index: -1}
)

// IsDefect reports whether err signals broken table invariants.
func IsDefect(err error) bool {
	return errors.Is(err, ErrDefect)
}

// CodeOf extracts the defect code, or 0 when err is not a table defect.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return 0
}

func outOfBounds(what string, idx StructNameIndex, backwardLen int) *Error {
	return &Error{
		Code: CodeOutOfBounds,
		Message: fmt.Sprintf("index out of bounds when %s at index %d, backward map length: %d",
			what, idx, backwardLen),
		Index:       int(idx),
		ForwardLen:  -1,
		BackwardLen: backwardLen,
	}
}

func sizeMismatch(forwardLen, backwardLen int) *Error {
	return &Error{
		Code: CodeInvariantViolation,
		Message: fmt.Sprintf("index map size mismatch: forward map has length %d, but backward map has length %d",
			forwardLen, backwardLen),
		Index:       -1,
		ForwardLen:  forwardLen,
		BackwardLen: backwardLen,
	}
}

func evicted(idx StructNameIndex, forwardLen, backwardLen int) *Error {
	return &Error{
		Code:        CodeInvariantViolation,
		Message:     fmt.Sprintf("indexing map should never evict cached entries (new index %d)", idx),
		Index:       int(idx),
		ForwardLen:  forwardLen,
		BackwardLen: backwardLen,
	}
}

func indexOverflow(forwardLen, backwardLen int, err error) *Error {
	return &Error{
		Code:        CodeInvariantViolation,
		Message:     fmt.Sprintf("backward map length %d does not fit a struct name index: %v", backwardLen, err),
		Index:       -1,
		ForwardLen:  forwardLen,
		BackwardLen: backwardLen,
	}
}
