// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

// =============================================================================
// DECODER CONSTANTS
// =============================================================================

const (
	// DoneSentinel is the payload that terminates a stream.
	DoneSentinel = "[DONE]"

	// MaxFrameSize is the largest line the decoder will buffer (1MB).
	// Longer lines are dropped and reported as Malformed.
	MaxFrameSize = 1 << 20

	// readBufferSize is the size of each read from the response body.
	readBufferSize = 4096
)

// ReadError wraps a failure of the underlying byte source mid-stream.
type ReadError struct {
	Err error
}

// Error implements the error interface.
func (e *ReadError) Error() string {
	return fmt.Sprintf("stream read failed: %v", e.Err)
}

// Unwrap returns the underlying error.
func (e *ReadError) Unwrap() error {
	return e.Err
}

// =============================================================================
// DECODER
// =============================================================================

// Decoder turns successive byte buffers into Events.
// A Decoder is not safe for concurrent use.
type Decoder struct {
	line      []byte   // incomplete line carried across Feed calls
	data      []string // data lines of the event being assembled
	discard   bool     // dropping the rest of an oversized line
	done      bool
	malformed int
}

// NewDecoder creates a new Decoder.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Feed consumes the next buffer and returns every event completed by it.
// Input after a Done event is ignored.
func (d *Decoder) Feed(p []byte) []Event {
	if d.done {
		return nil
	}

	var events []Event
	for len(p) > 0 && !d.done {
		i := bytes.IndexByte(p, '\n')
		if i < 0 {
			d.buffer(p, &events)
			break
		}
		if d.discard {
			d.discard = false
		} else {
			d.buffer(p[:i], &events)
			if !d.discard {
				events = d.handleLine(d.line, events)
			}
			d.discard = false
		}
		d.line = d.line[:0]
		p = p[i+1:]
	}

	if d.done {
		d.line = nil
		d.data = nil
	}
	return events
}

// Close flushes a trailing line and pending event at end of stream.
func (d *Decoder) Close() []Event {
	if d.done {
		return nil
	}
	var events []Event
	if len(d.line) > 0 && !d.discard {
		events = d.handleLine(d.line, events)
	}
	d.line = nil
	d.discard = false
	if !d.done {
		events = d.dispatch(events)
	}
	return events
}

// Done reports whether a Done event has been emitted.
func (d *Decoder) Done() bool {
	return d.done
}

// MalformedCount returns the number of Malformed events emitted so far.
func (d *Decoder) MalformedCount() int {
	return d.malformed
}

// buffer appends p to the pending line, switching to discard mode once the
// line grows past MaxFrameSize.
func (d *Decoder) buffer(p []byte, events *[]Event) {
	if d.discard {
		return
	}
	if len(d.line)+len(p) > MaxFrameSize {
		d.line = d.line[:0]
		d.discard = true
		d.malformed++
		*events = append(*events, Malformed("<frame exceeds max size>"))
		return
	}
	d.line = append(d.line, p...)
}

// handleLine processes one complete line of SSE framing.
func (d *Decoder) handleLine(line []byte, events []Event) []Event {
	line = bytes.TrimRight(line, "\r")

	// Empty line signals end of event
	if len(bytes.TrimSpace(line)) == 0 {
		return d.dispatch(events)
	}

	if bytes.HasPrefix(line, []byte("data:")) {
		d.data = append(d.data, strings.TrimSpace(string(line[5:])))
	}
	// Ignore other fields (event:, id:, retry:, comments starting with :)
	return events
}

// dispatch parses the assembled event, if any.
func (d *Decoder) dispatch(events []Event) []Event {
	if len(d.data) == 0 {
		return events
	}
	lines := d.data
	d.data = nil

	parsed := ParsePayload(strings.Join(lines, "\n"))

	// Servers that omit the blank separator between frames produce several
	// data lines in one event. Fall back to one frame per line.
	if len(lines) > 1 && len(parsed) == 1 && parsed[0].Kind == KindMalformed {
		parsed = parsed[:0]
		for _, l := range lines {
			parsed = append(parsed, ParsePayload(l)...)
		}
	}

	for _, ev := range parsed {
		if ev.Kind == KindMalformed {
			d.malformed++
		}
		events = append(events, ev)
		if ev.IsDone() {
			d.done = true
			break
		}
	}
	return events
}

// =============================================================================
// PAYLOAD PARSING
// =============================================================================

// frame is the object form of a payload.
type frame struct {
	Content   *string `json:"content"`
	RawOutput *string `json:"raw_output"`
	Done      bool    `json:"done"`
}

// ParsePayload converts one frame payload into events. Unknown shapes are
// normalized to a single Malformed event.
func ParsePayload(payload string) []Event {
	payload = strings.TrimSpace(payload)
	if payload == "" {
		return nil
	}
	if payload == DoneSentinel {
		return []Event{Done()}
	}

	data := []byte(payload)
	switch c := payload[0]; {
	case c == '{':
		var f frame
		if err := json.Unmarshal(data, &f); err != nil {
			return []Event{Malformed(payload)}
		}
		if f.Done {
			return []Event{DoneWith(f.Content, f.RawOutput)}
		}
		var events []Event
		if f.Content != nil {
			events = append(events, ContentDelta(*f.Content))
		}
		if f.RawOutput != nil {
			events = append(events, RawOutputUpdate(*f.RawOutput))
		}
		if len(events) == 0 {
			return []Event{Malformed(payload)}
		}
		return events

	case c == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return []Event{Malformed(payload)}
		}
		return []Event{ContentDelta(s)}

	case c == '-' || (c >= '0' && c <= '9'):
		// Legacy servers stream bare numbers; keep the literal text.
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return []Event{Malformed(payload)}
		}
		return []Event{ContentDelta(n.String())}
	}

	return []Event{Malformed(payload)}
}

// =============================================================================
// READ LOOP
// =============================================================================

// Decode reads r until end of stream, a Done event, or ctx cancellation,
// passing every event to fn in arrival order.
//
// Events decoded from a buffer that was read after cancellation are
// discarded. A stream that ends without Done is complete, not an error.
// If fn returns an error, decoding stops and that error is returned.
func Decode(ctx context.Context, r io.Reader, fn func(Event) error) error {
	d := NewDecoder()
	buf := make([]byte, readBufferSize)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		n, readErr := r.Read(buf)
		if n > 0 {
			events := d.Feed(buf[:n])
			if err := ctx.Err(); err != nil {
				return err
			}
			for _, ev := range events {
				if err := fn(ev); err != nil {
					return err
				}
			}
			if d.Done() {
				return nil
			}
		}

		if readErr != nil {
			if errors.Is(readErr, io.EOF) {
				for _, ev := range d.Close() {
					if err := fn(ev); err != nil {
						return err
					}
				}
				return nil
			}
			if err := ctx.Err(); err != nil {
				return err
			}
			return &ReadError{Err: readErr}
		}
	}
}
