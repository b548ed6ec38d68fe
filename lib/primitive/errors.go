package primitive

import (
	"errors"
	"fmt"
)

// Error is the error type returned by this module for everything that is not
// an infrastructure failure. Infrastructure failures reported by the
// replication layer are passed through unmodified and never wrapped in Error.
type Error struct {
	Code RetCode // The return code
	Msg  string  // The error message.
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("PrimitiveError (code %s): %s", e.Code, e.Msg)
}

// NewError creates a new Error with the given code and message.
func NewError(code RetCode, msg string) *Error {
	return &Error{
		Code: code,
		Msg:  msg,
	}
}

// IsConfigurationError reports whether err (or any error it wraps) is a
// rejected requirement or tuning.
func IsConfigurationError(err error) bool {
	return hasCode(err, RetCInvalidConfiguration)
}

// IsClosed reports whether err signals a primitive closed by its recovery strategy.
func IsClosed(err error) bool {
	return hasCode(err, RetCClosed)
}

func hasCode(err error, code RetCode) bool {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Code == code
	}
	return false
}

// --------------------------------------------------------------------------
// Return Codes
// --------------------------------------------------------------------------

type RetCode uint64

const (
	RetCSuccess              RetCode = iota // 0: Operation succeeded.
	RetCInternalError                       // 1: Unexpected internal failure.
	RetCInvalidConfiguration                // 2: Unsupported or malformed requirement, tuning or policy.
	RetCClosed                              // 3: The primitive was closed.
	RetCTooManyConflicts                    // 4: The optional conflict ceiling was reached.
)

func (c RetCode) String() string {
	switch c {
	case RetCSuccess:
		return "Success"
	case RetCInternalError:
		return "InternalError"
	case RetCInvalidConfiguration:
		return "InvalidConfiguration"
	case RetCClosed:
		return "Closed"
	case RetCTooManyConflicts:
		return "TooManyConflicts"
	default:
		return "Unknown"
	}
}
