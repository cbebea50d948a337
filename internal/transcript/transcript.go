// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package transcript

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/jeranaias/talkydino-tui/internal/stream"
)

// MaxMessages is the maximum number of messages kept in the transcript.
// When exceeded, the oldest finalized messages are pruned down to
// pruneTarget in one pass.
const MaxMessages = 1000

const pruneTarget = MaxMessages * 9 / 10

var (
	// ErrUnknownMessage is returned when an id is not in the transcript.
	ErrUnknownMessage = errors.New("message not found in transcript")
	// ErrFinalized is returned when mutating a finalized message.
	ErrFinalized = errors.New("message is finalized")
	// ErrNotAssistant is returned when applying stream events to a user message.
	ErrNotAssistant = errors.New("stream events only apply to assistant messages")
	// ErrInFlight is returned when a placeholder is requested while another
	// assistant message is still accumulating.
	ErrInFlight = errors.New("an assistant message is already in flight")
)

// entry is the mutable form of a Message.
// PERFORMANCE: strings.Builder avoids quadratic allocations during streaming
type entry struct {
	msg     Message
	content strings.Builder
}

func (e *entry) snapshot() Message {
	m := e.msg
	m.Content = e.content.String()
	return m
}

func (e *entry) finalize() {
	e.msg.Content = e.content.String()
	e.msg.Finalized = true
}

// =============================================================================
// TRANSCRIPT TYPE
// =============================================================================

// Transcript is the ordered chat history with O(1) lookup by message id.
type Transcript struct {
	mu       sync.RWMutex
	entries  []*entry
	index    map[string]int
	inflight string
	revision uint64
	now      func() time.Time
}

// New creates an empty transcript.
func New() *Transcript {
	return &Transcript{
		index: make(map[string]int),
		now:   time.Now,
	}
}

// =============================================================================
// APPEND OPERATIONS
// =============================================================================

// AppendUser appends a finalized user message.
func (t *Transcript) AppendUser(content string) Message {
	t.mu.Lock()
	defer t.mu.Unlock()

	e := t.newEntry(RoleUser, content)
	e.msg.Finalized = true
	t.push(e)
	return e.snapshot()
}

// AppendPlaceholder appends an empty assistant message that becomes the
// in-flight target for Apply.
func (t *Transcript) AppendPlaceholder() (Message, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.inflight != "" {
		return Message{}, ErrInFlight
	}
	e := t.newEntry(RoleAssistant, "")
	t.push(e)
	t.inflight = e.msg.ID
	return e.snapshot(), nil
}

// AppendHistory appends already-completed messages, e.g. loaded from the
// server on startup. Missing or duplicate ids are replaced.
func (t *Transcript) AppendHistory(msgs []Message) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, m := range msgs {
		if m.ID == "" {
			m.ID = generateID()
		}
		if _, dup := t.index[m.ID]; dup {
			m.ID = generateID()
		}
		if m.Timestamp.IsZero() {
			m.Timestamp = t.now()
		}
		m.Finalized = true

		e := &entry{msg: m}
		e.content.WriteString(m.Content)
		t.push(e)
	}
}

// =============================================================================
// REDUCER
// =============================================================================

// Apply applies one stream event to the in-flight message identified by id.
//
// ContentDelta appends, RawOutputUpdate replaces the raw output snapshot,
// Done optionally overrides content and raw output and then finalizes.
// Malformed events never change the transcript.
func (t *Transcript) Apply(id string, ev stream.Event) error {
	if ev.Kind == stream.KindMalformed {
		return nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	e, err := t.mutable(id)
	if err != nil {
		return err
	}

	switch ev.Kind {
	case stream.KindContentDelta:
		e.content.WriteString(ev.Text)
	case stream.KindRawOutputUpdate:
		e.msg.RawOutput = ev.Text
	case stream.KindDone:
		if ev.FinalText != nil {
			e.content.Reset()
			e.content.WriteString(*ev.FinalText)
		}
		if ev.RawOutput != nil {
			e.msg.RawOutput = *ev.RawOutput
		}
		t.finalize(e)
	default:
		return fmt.Errorf("unsupported event kind %s", ev.Kind)
	}

	t.revision++
	return nil
}

// Finalize completes the in-flight message with its accumulated content.
// Used when a stream ends without a Done event.
func (t *Transcript) Finalize(id string) (Message, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, err := t.mutable(id)
	if err != nil {
		return Message{}, err
	}
	t.finalize(e)
	t.revision++
	return e.snapshot(), nil
}

// Fail replaces the message content with a locally generated fallback and
// finalizes it.
func (t *Transcript) Fail(id, fallback string) (Message, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, err := t.mutable(id)
	if err != nil {
		return Message{}, err
	}
	e.content.Reset()
	e.content.WriteString(fallback)
	e.msg.Fallback = true
	t.finalize(e)
	t.revision++
	return e.snapshot(), nil
}

// Cancel finalizes the message with whatever content it has accumulated and
// marks it cancelled.
func (t *Transcript) Cancel(id string) (Message, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, err := t.mutable(id)
	if err != nil {
		return Message{}, err
	}
	e.msg.Cancelled = true
	t.finalize(e)
	t.revision++
	return e.snapshot(), nil
}

// Clear removes every message and forgets the in-flight id.
// It returns the id that was in flight, if any.
func (t *Transcript) Clear() string {
	t.mu.Lock()
	defer t.mu.Unlock()

	prev := t.inflight
	t.entries = nil
	t.index = make(map[string]int)
	t.inflight = ""
	t.revision++
	return prev
}

// =============================================================================
// READ OPERATIONS
// =============================================================================

// Get returns a snapshot of the message with the given id.
func (t *Transcript) Get(id string) (Message, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	i, ok := t.index[id]
	if !ok {
		return Message{}, false
	}
	return t.entries[i].snapshot(), true
}

// Messages returns a snapshot of the whole transcript in insertion order.
func (t *Transcript) Messages() []Message {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]Message, len(t.entries))
	for i, e := range t.entries {
		out[i] = e.snapshot()
	}
	return out
}

// Len returns the number of messages.
func (t *Transcript) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}

// InFlight returns the id of the message currently accumulating, if any.
func (t *Transcript) InFlight() (string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.inflight, t.inflight != ""
}

// Revision increases on every mutation. Readers compare it to skip redraws.
func (t *Transcript) Revision() uint64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.revision
}

// LastAssistant returns the most recent assistant message.
func (t *Transcript) LastAssistant() (Message, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	for i := len(t.entries) - 1; i >= 0; i-- {
		if t.entries[i].msg.Role == RoleAssistant {
			return t.entries[i].snapshot(), true
		}
	}
	return Message{}, false
}

// =============================================================================
// INTERNAL HELPERS
// =============================================================================

func (t *Transcript) newEntry(role Role, content string) *entry {
	e := &entry{msg: Message{
		ID:        generateID(),
		Role:      role,
		Timestamp: t.now(),
	}}
	e.content.WriteString(content)
	return e
}

// mutable looks up id and checks that stream events may be applied to it.
// Caller must hold t.mu.
func (t *Transcript) mutable(id string) (*entry, error) {
	i, ok := t.index[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownMessage, id)
	}
	e := t.entries[i]
	if e.msg.Role != RoleAssistant {
		return nil, ErrNotAssistant
	}
	if e.msg.Finalized {
		return nil, ErrFinalized
	}
	return e, nil
}

func (t *Transcript) finalize(e *entry) {
	e.finalize()
	if t.inflight == e.msg.ID {
		t.inflight = ""
	}
}

// push appends e and prunes old finalized messages. Caller must hold t.mu.
func (t *Transcript) push(e *entry) {
	t.index[e.msg.ID] = len(t.entries)
	t.entries = append(t.entries, e)
	t.revision++

	if len(t.entries) > MaxMessages {
		t.prune()
	}
}

// prune drops the oldest messages down to pruneTarget, never the in-flight
// one.
func (t *Transcript) prune() {
	excess := len(t.entries) - pruneTarget
	kept := make([]*entry, 0, pruneTarget+1)
	for _, e := range t.entries {
		if excess > 0 && e.msg.ID != t.inflight {
			excess--
			continue
		}
		kept = append(kept, e)
	}
	t.entries = kept
	t.index = make(map[string]int, len(kept))
	for i, e := range kept {
		t.index[e.msg.ID] = i
	}
}
