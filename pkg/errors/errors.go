package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents a unique error code
type ErrorCode int

// AppError represents an application error
type AppError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Err     error     `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Common error codes
const (
	ErrTransport ErrorCode = iota + 1000
	ErrDecode
	ErrFetch
	ErrMutation
	ErrNotConnected
	ErrInternal
)

// Error constructors
func Transport(message string, err error) *AppError {
	return &AppError{
		Code:    ErrTransport,
		Message: message,
		Err:     err,
	}
}

func Decode(message string, err error) *AppError {
	return &AppError{
		Code:    ErrDecode,
		Message: message,
		Err:     err,
	}
}

func Fetch(message string, err error) *AppError {
	return &AppError{
		Code:    ErrFetch,
		Message: message,
		Err:     err,
	}
}

func Mutation(message string, err error) *AppError {
	return &AppError{
		Code:    ErrMutation,
		Message: message,
		Err:     err,
	}
}

func NotConnected(op string) *AppError {
	return &AppError{
		Code:    ErrNotConnected,
		Message: fmt.Sprintf("%s requires an established connection", op),
	}
}

func Internal(err error) *AppError {
	return &AppError{
		Code:    ErrInternal,
		Message: "internal error",
		Err:     err,
	}
}

// HasCode reports whether err carries the given application error code.
func HasCode(err error, code ErrorCode) bool {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}
