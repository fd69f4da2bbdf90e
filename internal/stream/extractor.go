package stream

import (
	"strings"

	"github.com/tidwall/gjson"

	"drivechat/internal/domain"
)

// Event classification for one decoded line.
type EventKind int

const (
	// EventNone is an empty line, a keep-alive comment, or a metadata-only
	// payload. It produces no fragment and does not affect the session.
	EventNone EventKind = iota
	// EventFragment carries one piece of assistant text.
	EventFragment
	// EventDone is the logical end-of-stream sentinel. Reading continues;
	// the transport decides the actual end.
	EventDone
	// EventError is a terminal failure reported inside the stream.
	EventError
)

// Event is the result of extracting one line.
type Event struct {
	Kind     EventKind
	Fragment string
	Err      error
}

const (
	dataPrefix    = "data: "
	commentPrefix = ":"
	doneSentinel  = "[DONE]"
)

// contentProbe inspects a parsed payload for one known response shape and
// returns the content fragment if that shape matched with a non-empty
// string. Probes are pure and applied in priority order.
type contentProbe func(gjson.Result) (string, bool)

func probePath(path string) contentProbe {
	return func(v gjson.Result) (string, bool) {
		r := v.Get(path)
		if r.Type == gjson.String && r.Str != "" {
			return r.Str, true
		}
		return "", false
	}
}

// contentProbes lists the payload shapes seen across backends, most
// specific first: a chat-completion-style nested delta, then the flat
// content, text, and message fields.
var contentProbes = []contentProbe{
	probePath("choices.0.delta.content"),
	probePath("content"),
	probePath("text"),
	probePath("message"),
}

// ExtractLine classifies one complete line of stream text.
//
// Decision order: whitespace-only lines and comment lines are ignored;
// "data: " lines are unwrapped and checked for the [DONE] sentinel before
// JSON handling; any other non-empty line gets the same JSON handling
// without the prefix requirement, for transports that omit it. Non-JSON
// payloads on data lines pass through as raw text fragments.
func ExtractLine(line string) Event {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return Event{Kind: EventNone}
	}
	if strings.HasPrefix(trimmed, commentPrefix) {
		return Event{Kind: EventNone}
	}

	if strings.HasPrefix(trimmed, dataPrefix) {
		payload := strings.TrimSpace(trimmed[len(dataPrefix):])
		if payload == doneSentinel {
			return Event{Kind: EventDone}
		}
		return extractPayload(payload, true)
	}

	return extractPayload(trimmed, false)
}

// extractPayload parses one event payload. rawFallback controls whether an
// unparseable payload is surfaced as plain text (data lines) or dropped
// (bare lines, where anything can show up).
func extractPayload(payload string, rawFallback bool) Event {
	if payload == "" {
		return Event{Kind: EventNone}
	}

	if !gjson.Valid(payload) {
		if rawFallback {
			return Event{Kind: EventFragment, Fragment: payload}
		}
		return Event{Kind: EventNone}
	}

	parsed := gjson.Parse(payload)

	if errField := parsed.Get("error"); errField.Exists() {
		return Event{Kind: EventError, Err: remoteError(parsed, errField)}
	}

	for _, probe := range contentProbes {
		if fragment, ok := probe(parsed); ok {
			return Event{Kind: EventFragment, Fragment: fragment}
		}
	}

	// Metadata-only event (usage stats, role markers, empty deltas).
	return Event{Kind: EventNone}
}

// remoteError builds the terminal failure for an explicit error event.
func remoteError(parsed, errField gjson.Result) error {
	message := errField.String()
	if errField.IsObject() {
		if m := errField.Get("message"); m.Exists() {
			message = m.String()
		} else {
			message = errField.Raw
		}
	}
	return &domain.StreamRemoteError{
		Message: message,
		Details: parsed.Get("details").String(),
	}
}
