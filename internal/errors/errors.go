package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents stable error codes for all failure modes
type ErrorCode string

const (
	// NotFound indicates a requested map, snapshot, or history entry does not exist
	NotFound ErrorCode = "NOT_FOUND"
	// InvalidFormat indicates stored data could not be parsed or failed validation
	InvalidFormat ErrorCode = "INVALID_FORMAT"
	// LockTimeout indicates a lock could not be acquired within its deadline
	LockTimeout ErrorCode = "LOCK_TIMEOUT"
	// IOFailure indicates filesystem reads or writes failed
	IOFailure ErrorCode = "IO_FAILURE"
	// HashMismatch indicates stored data belongs to a different project path.
	// Load still proceeds; callers surface this as a warning.
	HashMismatch ErrorCode = "HASH_MISMATCH"
	// InternalError indicates an unexpected error
	InternalError ErrorCode = "INTERNAL_ERROR"
)

// FixAction represents a suggested fix for an error
type FixAction struct {
	Command     string `json:"command"`
	Safe        bool   `json:"safe,omitempty"`
	Description string `json:"description,omitempty"`
}

// MapError represents a projmap error with a stable code and suggestions
type MapError struct {
	Code           ErrorCode   `json:"code"`
	Message        string      `json:"message"`
	Details        interface{} `json:"details,omitempty"`
	SuggestedFixes []FixAction `json:"suggestedFixes,omitempty"`
	cause          error       // Underlying error (not exported to JSON)
}

// New creates a MapError with the given code and message
func New(code ErrorCode, message string, cause error) *MapError {
	return &MapError{
		Code:           code,
		Message:        message,
		cause:          cause,
		SuggestedFixes: suggestedFixes(code),
	}
}

// Error implements the error interface
func (e *MapError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *MapError) Unwrap() error {
	return e.cause
}

// WithDetails adds details to the error
func (e *MapError) WithDetails(details interface{}) *MapError {
	e.Details = details
	return e
}

// CodeOf extracts the error code from err, or InternalError for plain errors.
func CodeOf(err error) ErrorCode {
	var me *MapError
	if stderrors.As(err, &me) {
		return me.Code
	}
	return InternalError
}

// HasCode reports whether err carries the given code anywhere in its chain.
func HasCode(err error, code ErrorCode) bool {
	return err != nil && CodeOf(err) == code
}

// IsNotFound reports whether err is a NotFound error.
func IsNotFound(err error) bool {
	return HasCode(err, NotFound)
}

// errorActions maps error codes to suggested fix actions
var errorActions = map[ErrorCode][]FixAction{
	NotFound: {
		{
			Command:     "projmap history list",
			Safe:        true,
			Description: "List stored map versions",
		},
	},
	LockTimeout: {
		{
			Command:     "projmap refresh",
			Safe:        true,
			Description: "Retry once the competing refresh finishes",
		},
	},
	InvalidFormat: {
		{
			Command:     "projmap refresh --full",
			Safe:        true,
			Description: "Rebuild maps from a full scan",
		},
	},
}

func suggestedFixes(code ErrorCode) []FixAction {
	return errorActions[code]
}
