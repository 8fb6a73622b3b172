// Package gatewayerr defines the gateway's error taxonomy and the
// heterogeneous-provider-error extractor.
//
// Setup faults raised by the resolver, the coordinator and the HTTP
// handlers are tagged with a Kind so the router can map them to a
// status. Faults inside a running Turn reach the caller as the terminal
// chunk's error string instead.
package gatewayerr

import "fmt"

// Kind is the closed set of user-facing error categories.
type Kind string

const (
	// KindSetup covers missing credentials, missing provider config,
	// missing model descriptor, or an otherwise invalid request config.
	KindSetup Kind = "setup"

	// KindRequest covers a non-OK HTTP status on the streaming call.
	KindRequest Kind = "request"

	// KindTransport covers network faults, broken connections, and
	// body read failures.
	KindTransport Kind = "transport"

	// KindParse covers malformed SSE or JSON on a stream line.
	KindParse Kind = "parse"

	// KindProviderStream covers an in-band error event the provider
	// itself sent (Anthropic type:"error", Gemini error field).
	KindProviderStream Kind = "provider_stream"

	// KindCancelled is a distinguished non-error terminal state used
	// only by user-initiated cancellation. It never carries a message.
	KindCancelled Kind = "cancelled"
)

// Error wraps a Kind with a user-facing message and an optional cause.
// Not every error that reaches the router is one: storage and request
// decode failures propagate as plain wrapped errors.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

// New builds an Error with no wrapped cause.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap builds an Error tagging an existing error with a Kind. The
// message is cause.Error() unless msg overrides it.
func Wrap(kind Kind, cause error, msg string) *Error {
	if msg == "" && cause != nil {
		msg = cause.Error()
	}
	return &Error{Kind: kind, Message: msg, Cause: cause}
}

// Error satisfies the error interface. Cancellation never surfaces as
// an "AbortError"-shaped string; callers that need to distinguish
// cancellation should check Kind == KindCancelled before formatting
// this as user-visible text.
func (e *Error) Error() string {
	if e.Kind == KindCancelled {
		return "stream cancelled"
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap exposes the wrapped cause for errors.Is/errors.As.
func (e *Error) Unwrap() error {
	return e.Cause
}
