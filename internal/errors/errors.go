package errors

import (
	stdErrors "errors"
	"fmt"
)

// #region codes

// Code identifies a denial or failure class in the engine taxonomy.
type Code string

const (
	CodeInvalidRequest       Code = "INVALID_REQUEST"
	CodeUnknownAction        Code = "UNKNOWN_ACTION"
	CodeInsufficientTrust    Code = "INSUFFICIENT_TRUST"
	CodeOutOfSandbox         Code = "OUT_OF_SANDBOX"
	CodeSafetyNetUnavailable Code = "SAFETY_NET_UNAVAILABLE"
	CodeExecutionFailure     Code = "EXECUTION_FAILURE"
	CodeNotRollbackable      Code = "NOT_ROLLBACKABLE"
	CodeAlreadyRolledBack    Code = "ALREADY_ROLLED_BACK"

	// CodeCanceled marks a request withdrawn before the snapshot commit point.
	CodeCanceled Code = "CANCELED"
)

// #endregion codes

// #region error-type

// Error carries a taxonomy code alongside a human-readable message.
type Error struct {
	Code    Code
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.cause
}

// New creates a coded error.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf creates a coded error with a formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to an underlying error.
func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, cause: cause}
}

// #endregion error-type

// #region code-of

// CodeOf extracts the taxonomy code from err, or empty if err carries none.
func CodeOf(err error) Code {
	var e *Error
	if stdErrors.As(err, &e) {
		return e.Code
	}
	return ""
}

// Is reports whether err carries the given code.
func Is(err error, code Code) bool {
	return CodeOf(err) == code
}

// #endregion code-of
