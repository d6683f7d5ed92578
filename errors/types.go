package errors

import (
	"encoding/json"
	"fmt"
)

// ErrorCode represents a specific error condition
type ErrorCode string

const (
	// Configuration errors
	ErrCodeConfigNotFound ErrorCode = "CONFIG_NOT_FOUND"
	ErrCodeConfigInvalid  ErrorCode = "CONFIG_INVALID"

	// Server interaction errors
	ErrCodeTransport       ErrorCode = "TRANSPORT"
	ErrCodeFetchFailed     ErrorCode = "FETCH_FAILED"
	ErrCodeRequestRejected ErrorCode = "REQUEST_REJECTED"
	ErrCodeNotifyFailed    ErrorCode = "NOTIFY_FAILED"
	ErrCodeUpdateFailed    ErrorCode = "UPDATE_FAILED"

	// Policy errors
	ErrCodePolicyViolation ErrorCode = "POLICY_VIOLATION"

	// General errors
	ErrCodeInternal     ErrorCode = "INTERNAL_ERROR"
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"
)

// StratusError represents a structured error with context
type StratusError struct {
	Code    ErrorCode              `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
	Cause   error                  `json:"-"`
}

// Error implements the error interface
func (e *StratusError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap implements the errors.Unwrap interface
func (e *StratusError) Unwrap() error {
	return e.Cause
}

// WithDetail adds a detail to the error
func (e *StratusError) WithDetail(key string, value interface{}) *StratusError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// ToJSON converts the error to JSON
func (e *StratusError) ToJSON() string {
	data, _ := json.MarshalIndent(e, "", "  ")
	return string(data)
}

// New creates a new StratusError
func New(code ErrorCode, message string) *StratusError {
	return &StratusError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an existing error with a StratusError
func Wrap(err error, code ErrorCode, message string) *StratusError {
	return &StratusError{
		Code:    code,
		Message: message,
		Cause:   err,
	}
}

// Is checks if an error is a specific StratusError code
func Is(err error, code ErrorCode) bool {
	return GetCode(err) == code && code != ""
}

// GetCode extracts the error code from an error
func GetCode(err error) ErrorCode {
	if err == nil {
		return ""
	}

	stratusErr, ok := err.(*StratusError)
	if !ok {
		// Try to unwrap
		if unwrapper, ok := err.(interface{ Unwrap() error }); ok {
			return GetCode(unwrapper.Unwrap())
		}
		return ""
	}

	return stratusErr.Code
}

// As returns the first StratusError in err's chain.
func As(err error) (*StratusError, bool) {
	for err != nil {
		if stratusErr, ok := err.(*StratusError); ok {
			return stratusErr, true
		}
		unwrapper, ok := err.(interface{ Unwrap() error })
		if !ok {
			return nil, false
		}
		err = unwrapper.Unwrap()
	}
	return nil, false
}
