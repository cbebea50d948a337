// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import "fmt"

// =============================================================================
// EVENT KINDS
// =============================================================================

// Kind identifies the variant carried by an Event.
type Kind int

const (
	// KindContentDelta is an incremental content fragment.
	KindContentDelta Kind = iota
	// KindRawOutputUpdate is a full snapshot of the debug output.
	KindRawOutputUpdate
	// KindDone marks the end of the response.
	KindDone
	// KindMalformed is a frame that could not be understood.
	KindMalformed
)

// String returns the string representation of the kind.
func (k Kind) String() string {
	switch k {
	case KindContentDelta:
		return "content_delta"
	case KindRawOutputUpdate:
		return "raw_output_update"
	case KindDone:
		return "done"
	case KindMalformed:
		return "malformed"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// =============================================================================
// EVENT TYPE
// =============================================================================

// Event is one decoded protocol event.
//
// Text holds the delta for ContentDelta, the snapshot for RawOutputUpdate and
// the offending payload for Malformed. Done events carry optional FinalText
// and RawOutput; a nil pointer means the field was absent from the frame.
type Event struct {
	Kind Kind
	Text string

	FinalText *string
	RawOutput *string
}

// ContentDelta returns a content fragment event.
func ContentDelta(text string) Event {
	return Event{Kind: KindContentDelta, Text: text}
}

// RawOutputUpdate returns a raw output snapshot event.
func RawOutputUpdate(text string) Event {
	return Event{Kind: KindRawOutputUpdate, Text: text}
}

// Done returns a completion event with no final payload.
func Done() Event {
	return Event{Kind: KindDone}
}

// DoneWith returns a completion event carrying an authoritative final text
// and/or a trailing raw output snapshot. Either may be nil.
func DoneWith(finalText, rawOutput *string) Event {
	return Event{Kind: KindDone, FinalText: finalText, RawOutput: rawOutput}
}

// Malformed returns an event for a payload that failed to parse.
func Malformed(payload string) Event {
	return Event{Kind: KindMalformed, Text: payload}
}

// IsDone reports whether the event terminates the stream.
func (e Event) IsDone() bool {
	return e.Kind == KindDone
}

// String returns a short description suitable for logs.
func (e Event) String() string {
	switch e.Kind {
	case KindDone:
		return fmt.Sprintf("done(final=%t raw=%t)", e.FinalText != nil, e.RawOutput != nil)
	default:
		return fmt.Sprintf("%s(%d bytes)", e.Kind, len(e.Text))
	}
}
