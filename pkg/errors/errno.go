// Package errors provides a structured error code system for the service.
//
// It provides:
//
//   - Globally unique numeric error codes
//   - Stable machine-readable reason strings for API clients
//   - HTTP and gRPC status code mapping
//
// Usage:
//
//	// Using predefined errors
//	return errors.ErrInvalidParam.WithMessage("question is required")
//
//	// Wrapping underlying errors
//	return errors.ErrGeneration.WithCause(err)
//
//	// Creating custom errors
//	var ErrCustom = errors.Register(&errors.Errno{
//	    Code:     errors.MakeCode(errors.ServiceChat, errors.CategoryRequest, 9),
//	    Reason:   "CHAT_CUSTOM",
//	    HTTP:     http.StatusBadRequest,
//	    GRPCCode: codes.InvalidArgument,
//	    Message:  "Custom error",
//	})
package errors

import (
	"fmt"
	"net/http"
	"sync"

	"google.golang.org/grpc/codes"
)

// Errno represents a structured error with code, reason, and message.
type Errno struct {
	// Code is the unique numeric error code.
	Code int `json:"code"`

	// Reason is a stable machine-readable identifier such as
	// "CHAT_REQUEST_TIMEOUT". Clients switch on Reason, never on Message.
	Reason string `json:"reason"`

	// HTTP is the HTTP status code to return.
	HTTP int `json:"-"`

	// GRPCCode is the gRPC status code.
	GRPCCode codes.Code `json:"-"`

	// Message is the human-readable error message.
	Message string `json:"message"`

	// cause is the underlying error.
	cause error
}

// Error implements the error interface.
func (e *Errno) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("errno %d (%s): %s: %v", e.Code, e.Reason, e.Message, e.cause)
	}
	return fmt.Sprintf("errno %d (%s): %s", e.Code, e.Reason, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Errno) Unwrap() error {
	return e.cause
}

// WithCause creates a new Errno with the given cause.
func (e *Errno) WithCause(cause error) *Errno {
	clone := *e
	clone.cause = cause
	return &clone
}

// WithMessage creates a new Errno with a custom message.
func (e *Errno) WithMessage(msg string) *Errno {
	clone := *e
	clone.Message = msg
	return &clone
}

// WithMessagef creates a new Errno with a formatted message.
func (e *Errno) WithMessagef(format string, args ...interface{}) *Errno {
	clone := *e
	clone.Message = fmt.Sprintf(format, args...)
	return &clone
}

// HTTPStatus returns the HTTP status code.
func (e *Errno) HTTPStatus() int {
	if e.HTTP != 0 {
		return e.HTTP
	}
	return http.StatusInternalServerError
}

// GRPCStatus returns the gRPC status code.
func (e *Errno) GRPCStatus() codes.Code {
	if e.GRPCCode != codes.OK {
		return e.GRPCCode
	}
	return codes.Internal
}

// Is checks if this error matches the target error code.
func (e *Errno) Is(target error) bool {
	if t, ok := target.(*Errno); ok {
		return e.Code == t.Code
	}
	return false
}

// errnoRegistry stores all registered error codes for uniqueness validation.
var (
	errnoRegistry = make(map[int]*Errno)
	registryMu    sync.RWMutex
)

// Register registers an Errno and validates uniqueness.
// Panics if the code is already registered.
func Register(e *Errno) *Errno {
	registryMu.Lock()
	defer registryMu.Unlock()

	if existing, ok := errnoRegistry[e.Code]; ok {
		panic(fmt.Sprintf("errno code %d already registered: %s", e.Code, existing.Message))
	}
	errnoRegistry[e.Code] = e
	return e
}

// Lookup returns the registered Errno for the given code.
func Lookup(code int) (*Errno, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	e, ok := errnoRegistry[code]
	return e, ok
}

// FromError converts any error to Errno.
// If err is already an Errno, returns it directly.
// Otherwise, wraps it as ErrInternal.
func FromError(err error) *Errno {
	if err == nil {
		return nil
	}
	if e, ok := err.(*Errno); ok {
		return e
	}
	return ErrInternal.WithCause(err)
}

// IsCode checks if the error has the given error code.
func IsCode(err error, code int) bool {
	if e, ok := err.(*Errno); ok {
		return e.Code == code
	}
	return false
}

// GetCode returns the error code from an error.
// Returns -1 if the error is not an Errno.
func GetCode(err error) int {
	if e, ok := err.(*Errno); ok {
		return e.Code
	}
	return -1
}

// Reason returns the machine-readable reason from an error, or
// "INTERNAL_ERROR" for non-Errno errors.
func Reason(err error) string {
	if e, ok := err.(*Errno); ok {
		return e.Reason
	}
	return ErrInternal.Reason
}

// Format implements fmt.Formatter for better error formatting.
func (e *Errno) Format(s fmt.State, verb rune) {
	switch verb {
	case 'v':
		if s.Flag('+') {
			_, _ = fmt.Fprintf(s, "errno %d [%s, HTTP %d, gRPC %s]: %s", e.Code, e.Reason, e.HTTP, e.GRPCCode.String(), e.Message)
			if e.cause != nil {
				_, _ = fmt.Fprintf(s, "\ncaused by: %+v", e.cause)
			}
			return
		}
		fallthrough
	case 's':
		_, _ = fmt.Fprint(s, e.Error())
	case 'q':
		_, _ = fmt.Fprintf(s, "%q", e.Error())
	}
}
