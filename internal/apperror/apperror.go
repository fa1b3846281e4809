// Package apperror defines the error taxonomy shared across the platform,
// gateway, and orchestrator. Handlers map Kind to an HTTP status and a
// generic client-facing message; internal detail is logged, never returned.
package apperror

import "fmt"

// Kind classifies an error for response-shaping and logging purposes.
type Kind string

const (
	Config      Kind = "config"
	Auth        Kind = "auth"
	NotFound    Kind = "not_found"
	Conflict    Kind = "conflict"
	Provider    Kind = "provider"
	ToolError   Kind = "tool_error"
	PolicyDenied Kind = "policy_denied"
	Timeout     Kind = "timeout"
	Storage     Kind = "storage"
	ChannelError Kind = "channel_error"
	Internal    Kind = "internal"
)

// Error wraps an underlying cause with a Kind and a client-safe message.
type Error struct {
	Kind    Kind
	Message string
	Detail  string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap allows errors.Is/errors.As to see through to Cause.
func (e *Error) Unwrap() error { return e.Cause }

// New builds an Error of the given kind.
func New(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

func Newf(kind Kind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// Is reports whether err carries the given Kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if err == nil {
		return false
	}
	if ae, ok := err.(*Error); ok {
		e = ae
	} else {
		return false
	}
	return e.Kind == kind
}
