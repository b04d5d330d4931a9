package errors

import (
	"fmt"
	"runtime"
	"strings"
)

// ErrorCode represents a structured error code
type ErrorCode string

const (
	// Configuration errors
	ErrCodeConfigLoad    ErrorCode = "CONFIG_LOAD"
	ErrCodeConfigParse   ErrorCode = "CONFIG_PARSE"
	ErrCodeConfigInvalid ErrorCode = "CONFIG_INVALID"

	// Authentication errors
	ErrCodeAuthExpired ErrorCode = "AUTH_EXPIRED"
	ErrCodeAuthInvalid ErrorCode = "AUTH_INVALID"

	// API errors
	ErrCodeValidation ErrorCode = "VALIDATION"
	ErrCodeNotFound   ErrorCode = "NOT_FOUND"
	ErrCodeServer     ErrorCode = "SERVER_ERROR"
	ErrCodeTransport  ErrorCode = "TRANSPORT"

	// Local storage errors
	ErrCodeStorageRead  ErrorCode = "STORAGE_READ"
	ErrCodeStorageWrite ErrorCode = "STORAGE_WRITE"

	// Generic errors
	ErrCodeInternal     ErrorCode = "INTERNAL"
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"
)

// Error represents a structured Vexa client error
type Error struct {
	Code        ErrorCode
	Message     string
	Underlying  error
	Context     map[string]any
	Stack       []Frame
	HTTPStatus  int
	UserMessage string
}

// Frame represents a stack frame
type Frame struct {
	Function string
	File     string
	Line     int
}

// New creates a new structured error
func New(code ErrorCode, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Context: make(map[string]any),
		Stack:   captureStack(2), // Skip New and caller
	}
}

// Wrap wraps an existing error with Vexa error context
func Wrap(err error, code ErrorCode, message string) *Error {
	if err == nil {
		return nil
	}

	return &Error{
		Code:       code,
		Message:    message,
		Underlying: err,
		Context:    make(map[string]any),
		Stack:      captureStack(2),
	}
}

// WithContext adds context key-value pairs to the error
func (e *Error) WithContext(key string, value any) *Error {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// WithHTTPStatus records the HTTP status that produced the error
func (e *Error) WithHTTPStatus(status int) *Error {
	e.HTTPStatus = status
	return e
}

// WithUserMessage sets the human-friendly message shown to users.
func (e *Error) WithUserMessage(message string) *Error {
	e.UserMessage = message
	return e
}

// Error implements the error interface
func (e *Error) Error() string {
	var sb strings.Builder

	// Error code and message
	sb.WriteString(fmt.Sprintf("[%s] %s", e.Code, e.Message))

	// Context if present
	if len(e.Context) > 0 {
		sb.WriteString(" {")
		first := true
		for k, v := range e.Context {
			if !first {
				sb.WriteString(", ")
			}
			sb.WriteString(fmt.Sprintf("%s: %v", k, v))
			first = false
		}
		sb.WriteString("}")
	}

	// Underlying error
	if e.Underlying != nil {
		sb.WriteString(fmt.Sprintf(": %v", e.Underlying))
	}

	return sb.String()
}

// Unwrap returns the underlying error for errors.Is/As
func (e *Error) Unwrap() error {
	return e.Underlying
}

// Display returns the message appropriate for end users.
func (e *Error) Display() string {
	if e.UserMessage != "" {
		return e.UserMessage
	}
	return e.Message
}

// StackTrace returns a formatted stack trace
func (e *Error) StackTrace() string {
	var sb strings.Builder

	sb.WriteString("Stack trace:\n")
	for i, frame := range e.Stack {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, frame.String()))
		sb.WriteString(fmt.Sprintf("     %s:%d\n", frame.File, frame.Line))
	}

	return sb.String()
}

// String formats a stack frame
func (f Frame) String() string {
	return f.Function
}

// captureStack captures the current call stack
func captureStack(skip int) []Frame {
	const maxDepth = 32
	var pcs [maxDepth]uintptr

	n := runtime.Callers(skip+1, pcs[:])
	frames := make([]Frame, 0, n)

	for i := 0; i < n; i++ {
		pc := pcs[i]
		fn := runtime.FuncForPC(pc)
		if fn == nil {
			continue
		}

		file, line := fn.FileLine(pc)

		frames = append(frames, Frame{
			Function: fn.Name(),
			File:     file,
			Line:     line,
		})
	}

	return frames
}

// IsCode checks if an error has a specific error code
func IsCode(err error, code ErrorCode) bool {
	if err == nil {
		return false
	}

	vexaErr, ok := err.(*Error)
	if !ok {
		return false
	}

	return vexaErr.Code == code
}

// GetCode extracts the error code from an error
func GetCode(err error) ErrorCode {
	if err == nil {
		return ""
	}

	vexaErr, ok := err.(*Error)
	if !ok {
		return ErrCodeInternal
	}

	return vexaErr.Code
}

// HTTPStatusOf extracts the HTTP status from an error, 0 when absent
func HTTPStatusOf(err error) int {
	if err == nil {
		return 0
	}

	vexaErr, ok := err.(*Error)
	if !ok {
		return 0
	}

	return vexaErr.HTTPStatus
}
