// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// HELPERS
// =============================================================================

// collect feeds input in chunks of the given size and returns all events.
func collect(input string, chunk int) []Event {
	d := NewDecoder()
	var events []Event
	for len(input) > 0 {
		n := chunk
		if n > len(input) {
			n = len(input)
		}
		events = append(events, d.Feed([]byte(input[:n]))...)
		input = input[n:]
	}
	return append(events, d.Close()...)
}

func contentOf(events []Event) string {
	var sb strings.Builder
	for _, ev := range events {
		if ev.Kind == KindContentDelta {
			sb.WriteString(ev.Text)
		}
	}
	return sb.String()
}

func kinds(events []Event) []Kind {
	out := make([]Kind, len(events))
	for i, ev := range events {
		out[i] = ev.Kind
	}
	return out
}

// errReader returns data and then a non-EOF error.
type errReader struct {
	data string
	err  error
}

func (r *errReader) Read(p []byte) (int, error) {
	if r.data == "" {
		return 0, r.err
	}
	n := copy(p, r.data)
	r.data = r.data[n:]
	return n, nil
}

// =============================================================================
// PAYLOAD TESTS
// =============================================================================

func TestParsePayload(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    []Kind
		text    string
	}{
		{"done sentinel", "[DONE]", []Kind{KindDone}, ""},
		{"legacy string", `"Hel"`, []Kind{KindContentDelta}, "Hel"},
		{"legacy number", `42`, []Kind{KindContentDelta}, "42"},
		{"legacy negative float", `-1.5`, []Kind{KindContentDelta}, "-1.5"},
		{"content object", `{"content":"hi"}`, []Kind{KindContentDelta}, "hi"},
		{"raw output object", `{"raw_output":"dbg"}`, []Kind{KindRawOutputUpdate}, "dbg"},
		{"content and raw output", `{"content":"a","raw_output":"b"}`, []Kind{KindContentDelta, KindRawOutputUpdate}, "a"},
		{"done object", `{"done":true}`, []Kind{KindDone}, ""},
		{"broken json", `{"content":`, []Kind{KindMalformed}, `{"content":`},
		{"unknown object", `{"foo":1}`, []Kind{KindMalformed}, `{"foo":1}`},
		{"null", `null`, []Kind{KindMalformed}, "null"},
		{"bool", `true`, []Kind{KindMalformed}, "true"},
		{"array", `["a"]`, []Kind{KindMalformed}, `["a"]`},
		{"content wrong type", `{"content":5}`, []Kind{KindMalformed}, `{"content":5}`},
		{"plain text", `hello`, []Kind{KindMalformed}, "hello"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			events := ParsePayload(tc.payload)
			require.Equal(t, tc.want, kinds(events))
			if len(events) > 0 && events[0].Kind != KindDone {
				assert.Equal(t, tc.text, events[0].Text)
			}
		})
	}
}

func TestParsePayload_DoneCarriesFinalAndRaw(t *testing.T) {
	events := ParsePayload(`{"done":true,"content":"Hello","raw_output":"trace"}`)
	require.Len(t, events, 1)
	ev := events[0]
	require.True(t, ev.IsDone())
	require.NotNil(t, ev.FinalText)
	require.NotNil(t, ev.RawOutput)
	assert.Equal(t, "Hello", *ev.FinalText)
	assert.Equal(t, "trace", *ev.RawOutput)
}

func TestParsePayload_DoneFalseIsDelta(t *testing.T) {
	events := ParsePayload(`{"done":false,"content":"x"}`)
	assert.Equal(t, []Kind{KindContentDelta}, kinds(events))
}

func TestParsePayload_Empty(t *testing.T) {
	assert.Empty(t, ParsePayload("   "))
}

// =============================================================================
// DECODER TESTS
// =============================================================================

func TestDecoder_SplitAtEveryBoundary(t *testing.T) {
	input := "data: \"He\"\n\ndata: {\"content\":\"llo\"}\n\ndata: [DONE]\n\n"
	for chunk := 1; chunk <= len(input); chunk++ {
		events := collect(input, chunk)
		require.Equal(t, []Kind{KindContentDelta, KindContentDelta, KindDone}, kinds(events), "chunk=%d", chunk)
		assert.Equal(t, "Hello", contentOf(events), "chunk=%d", chunk)
	}
}

func TestDecoder_MergedFramesInOneBuffer(t *testing.T) {
	d := NewDecoder()
	events := d.Feed([]byte("data: \"a\"\n\ndata: \"b\"\n\ndata: \"c\"\n\n"))
	assert.Equal(t, "abc", contentOf(events))
}

func TestDecoder_MalformedDoesNotStopDecoding(t *testing.T) {
	input := "data: \"one \"\n\ndata: {broken\n\ndata: \"two\"\n\n"
	d := NewDecoder()
	events := append(d.Feed([]byte(input)), d.Close()...)

	assert.Equal(t, []Kind{KindContentDelta, KindMalformed, KindContentDelta}, kinds(events))
	assert.Equal(t, "one two", contentOf(events))
	assert.Equal(t, 1, d.MalformedCount())
}

func TestDecoder_CRLFAndIgnoredFields(t *testing.T) {
	input := ": keepalive\r\nevent: message\r\nid: 7\r\ndata: \"x\"\r\n\r\n"
	events := collect(input, 3)
	assert.Equal(t, []Kind{KindContentDelta}, kinds(events))
	assert.Equal(t, "x", events[0].Text)
}

func TestDecoder_MultiLineDataJoined(t *testing.T) {
	input := "data: {\"content\":\ndata: \"joined\"}\n\n"
	events := collect(input, 5)
	require.Len(t, events, 1)
	assert.Equal(t, "joined", events[0].Text)
}

func TestDecoder_MissingBlankSeparatorFallsBackPerLine(t *testing.T) {
	input := "data: \"a\"\ndata: \"b\"\n\n"
	events := collect(input, 4)
	assert.Equal(t, "ab", contentOf(events))
}

func TestDecoder_IgnoresInputAfterDone(t *testing.T) {
	d := NewDecoder()
	events := d.Feed([]byte("data: \"a\"\n\ndata: [DONE]\n\ndata: \"late\"\n\n"))
	assert.Equal(t, []Kind{KindContentDelta, KindDone}, kinds(events))
	assert.True(t, d.Done())
	assert.Empty(t, d.Feed([]byte("data: \"more\"\n\n")))
	assert.Empty(t, d.Close())
}

func TestDecoder_FlushesTrailingEventWithoutNewline(t *testing.T) {
	events := collect("data: \"tail\"", 4)
	assert.Equal(t, "tail", contentOf(events))
}

func TestDecoder_OversizedFrameDropped(t *testing.T) {
	big := "data: \"" + strings.Repeat("x", MaxFrameSize) + "\"\n\n"
	input := big + "data: \"ok\"\n\n"
	events := collect(input, 64*1024)

	require.NotEmpty(t, events)
	assert.Equal(t, KindMalformed, events[0].Kind)
	assert.Equal(t, "ok", contentOf(events))
}

// =============================================================================
// READ LOOP TESTS
// =============================================================================

func TestDecode_ConcatenatesDeltasInOrder(t *testing.T) {
	body := strings.NewReader("data: \"He\"\n\ndata: \"llo\"\n\ndata: [DONE]\n\n")
	var got []Event
	err := Decode(context.Background(), body, func(ev Event) error {
		got = append(got, ev)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "Hello", contentOf(got))
	assert.True(t, got[len(got)-1].IsDone())
}

func TestDecode_EndWithoutDoneIsComplete(t *testing.T) {
	var got []Event
	err := Decode(context.Background(), strings.NewReader("data: \"x\"\n\n"), func(ev Event) error {
		got = append(got, ev)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []Kind{KindContentDelta}, kinds(got))
}

func TestDecode_CancelledBeforeRead(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := Decode(ctx, strings.NewReader("data: \"x\"\n\n"), func(Event) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}

func TestDecode_ReadErrorIsWrapped(t *testing.T) {
	boom := errors.New("connection reset")
	r := &errReader{data: "data: \"part\"\n\n", err: boom}

	var got []Event
	err := Decode(context.Background(), r, func(ev Event) error {
		got = append(got, ev)
		return nil
	})

	var readErr *ReadError
	require.ErrorAs(t, err, &readErr)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, "part", contentOf(got))
}

func TestDecode_CallbackErrorStops(t *testing.T) {
	stop := errors.New("stop")
	count := 0
	err := Decode(context.Background(), strings.NewReader("data: \"a\"\n\ndata: \"b\"\n\n"), func(Event) error {
		count++
		return stop
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 1, count)
}

func TestDecode_StopsReadingAfterDone(t *testing.T) {
	pr, pw := io.Pipe()
	go func() {
		pw.Write([]byte("data: \"a\"\n\ndata: [DONE]\n\n"))
		// Never closed: Decode must return without waiting for EOF.
	}()
	defer pw.Close()

	err := Decode(context.Background(), pr, func(Event) error { return nil })
	assert.NoError(t, err)
}

func TestKind_String(t *testing.T) {
	assert.Equal(t, "content_delta", KindContentDelta.String())
	assert.Equal(t, "done", KindDone.String())
	assert.Equal(t, "kind(9)", Kind(9).String())
}
