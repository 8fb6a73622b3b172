// Package provider implements the six wire-protocol adapters (C4): each
// translates a uniform structured prompt + resolved parameters into a
// provider-specific HTTP request, and parses that provider's streaming
// wire format back into a uniform StreamEvent. The shared orchestration
// that drives an Adapter through one Turn — structured-prompt
// composition, the HTTP call, the line-by-line stream loop, and chunk
// dispatch — is not here; it lives in the coordinator package, which
// takes an Adapter interface value rather than an inherited base type.
package provider

import "github.com/devon-ng/gatewaycore/internal/params"

// HTTPRequest is the provider-agnostic shape an Adapter builds and the
// coordinator executes. Adapters never make the HTTP call themselves —
// that keeps cancellation, credential isolation, and error extraction
// in one place.
type HTTPRequest struct {
	Method  string
	URL     string
	Headers map[string]string
	Body    []byte
}

// StreamEventKind discriminates a StreamEvent's variant. Re-expressed
// as a tagged union (per the adapter's own ad-hoc discriminated object)
// so the stream loop can exhaustively switch on it instead of probing
// optional fields.
type StreamEventKind int

const (
	// EventContent carries one non-empty text fragment.
	EventContent StreamEventKind = iota
	// EventContentMulti carries a batch of text fragments, each treated
	// as an independent content event in order (Gemini's per-part form).
	EventContentMulti
	// EventDone signals the provider's own end-of-message marker. The
	// stream loop keeps reading bytes after this; it is an observation,
	// not a reason to stop (see the Design Notes' open question on this).
	EventDone
	// EventIgnore is a recognized-but-inert line: pings, role markers,
	// finish-reason-only payloads.
	EventIgnore
	// EventError is an in-band provider error (Anthropic's `type:"error"`,
	// Gemini's `error` field, or a line the adapter could not parse).
	EventError
)

// StreamEvent is the typed result of parsing one already-trimmed line of
// provider output. Only the field matching Kind is meaningful.
type StreamEvent struct {
	Kind    StreamEventKind
	Text    string   // EventContent
	Texts   []string // EventContentMulti
	Message string   // EventError
}

func contentEvent(text string) StreamEvent        { return StreamEvent{Kind: EventContent, Text: text} }
func contentMultiEvent(texts []string) StreamEvent { return StreamEvent{Kind: EventContentMulti, Texts: texts} }
func doneEvent() StreamEvent                       { return StreamEvent{Kind: EventDone} }
func ignoreEvent() StreamEvent                      { return StreamEvent{Kind: EventIgnore} }
func errorEvent(message string) StreamEvent {
	return StreamEvent{Kind: EventError, Message: message}
}

// Adapter is the uniform contract every provider-specific wire protocol
// satisfies (C4). Six concrete types implement it; none share a base
// struct — common behavior is generalized into the coordinator instead.
type Adapter interface {
	// Initialize caches the credentials for this instance. It is called
	// once per Turn, never persisted beyond it (P5).
	Initialize(apiKey string)

	// BuildRequest produces the streaming HTTP call for one turn, given
	// the already-composed structured prompt and the resolved parameter
	// set (§4.4 step b).
	BuildRequest(structuredPrompt string, p params.Resolved) (HTTPRequest, error)

	// BuildValidationRequest produces the minimal legal call used to
	// probe whether a set of credentials is accepted.
	BuildValidationRequest(p params.Resolved) (HTTPRequest, error)

	// ParseLine parses one non-empty, already-trimmed line of the
	// response body into a StreamEvent. It must never panic: any
	// malformed input becomes an EventError.
	ParseLine(line string) StreamEvent

	// ResetStreamState clears any state an adapter accumulates across
	// the lines of one stream. Default behavior is a no-op; only the
	// Gemini adapter currently needs it.
	ResetStreamState()
}
