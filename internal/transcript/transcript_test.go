// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package transcript

import (
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/talkydino-tui/internal/stream"
)

func strPtr(s string) *string { return &s }

func newTurn(t *testing.T, input string) (*Transcript, Message) {
	t.Helper()
	tr := New()
	tr.AppendUser(input)
	bot, err := tr.AppendPlaceholder()
	require.NoError(t, err)
	return tr, bot
}

// =============================================================================
// REDUCER TESTS
// =============================================================================

func TestApply_DeltasConcatenateInOrder(t *testing.T) {
	tr, bot := newTurn(t, "hi")

	msgs := tr.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, RoleUser, msgs[0].Role)
	assert.Equal(t, "hi", msgs[0].Content)
	assert.Equal(t, RoleAssistant, msgs[1].Role)
	assert.Equal(t, "", msgs[1].Content)
	assert.True(t, msgs[1].IsStreaming())

	for _, chunk := range []string{"He", "llo", ", ", "world"} {
		require.NoError(t, tr.Apply(bot.ID, stream.ContentDelta(chunk)))
	}
	require.NoError(t, tr.Apply(bot.ID, stream.Done()))

	got, ok := tr.Get(bot.ID)
	require.True(t, ok)
	assert.Equal(t, "Hello, world", got.Content)
	assert.True(t, got.Finalized)
	assert.Equal(t, "hi", tr.Messages()[0].Content)
}

func TestApply_DoneFinalTextOverrides(t *testing.T) {
	tests := []struct {
		name   string
		deltas []string
		final  string
	}{
		{"duplicated chunks", []string{"He", "He", "llo"}, "Hello"},
		{"lost chunks", []string{"H"}, "Hello"},
		{"no deltas", nil, "Hello"},
		{"empty final", []string{"junk"}, ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tr, bot := newTurn(t, "hi")
			for _, d := range tc.deltas {
				require.NoError(t, tr.Apply(bot.ID, stream.ContentDelta(d)))
			}
			require.NoError(t, tr.Apply(bot.ID, stream.DoneWith(strPtr(tc.final), nil)))

			got, _ := tr.Get(bot.ID)
			assert.Equal(t, tc.final, got.Content)
		})
	}
}

func TestApply_RawOutputLastWriteWins(t *testing.T) {
	tr, bot := newTurn(t, "hi")

	require.NoError(t, tr.Apply(bot.ID, stream.RawOutputUpdate("partial")))
	require.NoError(t, tr.Apply(bot.ID, stream.RawOutputUpdate("partial full")))
	require.NoError(t, tr.Apply(bot.ID, stream.Done()))

	got, _ := tr.Get(bot.ID)
	assert.Equal(t, "partial full", got.RawOutput)
	assert.Equal(t, "", got.Content)
}

func TestApply_DoneRawOutputAttached(t *testing.T) {
	tr, bot := newTurn(t, "hi")
	require.NoError(t, tr.Apply(bot.ID, stream.RawOutputUpdate("old")))
	require.NoError(t, tr.Apply(bot.ID, stream.DoneWith(nil, strPtr("final trace"))))

	got, _ := tr.Get(bot.ID)
	assert.Equal(t, "final trace", got.RawOutput)
}

func TestApply_MalformedChangesNothing(t *testing.T) {
	tr, bot := newTurn(t, "hi")
	require.NoError(t, tr.Apply(bot.ID, stream.ContentDelta("a")))
	before := tr.Revision()

	require.NoError(t, tr.Apply(bot.ID, stream.Malformed("{oops")))
	require.NoError(t, tr.Apply(bot.ID, stream.ContentDelta("b")))

	got, _ := tr.Get(bot.ID)
	assert.Equal(t, "ab", got.Content)
	assert.Equal(t, before+1, tr.Revision())
}

func TestApply_FinalizedIsImmutable(t *testing.T) {
	tr, bot := newTurn(t, "hi")
	require.NoError(t, tr.Apply(bot.ID, stream.ContentDelta("done")))
	require.NoError(t, tr.Apply(bot.ID, stream.Done()))

	assert.ErrorIs(t, tr.Apply(bot.ID, stream.ContentDelta("more")), ErrFinalized)
	assert.ErrorIs(t, tr.Apply(bot.ID, stream.Done()), ErrFinalized)
	_, err := tr.Fail(bot.ID, "x")
	assert.ErrorIs(t, err, ErrFinalized)

	got, _ := tr.Get(bot.ID)
	assert.Equal(t, "done", got.Content)
}

func TestApply_Errors(t *testing.T) {
	tr := New()
	user := tr.AppendUser("hi")

	assert.ErrorIs(t, tr.Apply("missing", stream.ContentDelta("x")), ErrUnknownMessage)
	assert.ErrorIs(t, tr.Apply(user.ID, stream.ContentDelta("x")), ErrNotAssistant)
}

// =============================================================================
// IN-FLIGHT TESTS
// =============================================================================

func TestAppendPlaceholder_SingleInFlight(t *testing.T) {
	tr, bot := newTurn(t, "hi")

	id, ok := tr.InFlight()
	require.True(t, ok)
	assert.Equal(t, bot.ID, id)

	_, err := tr.AppendPlaceholder()
	assert.ErrorIs(t, err, ErrInFlight)
	assert.Equal(t, 2, tr.Len())

	require.NoError(t, tr.Apply(bot.ID, stream.Done()))
	_, ok = tr.InFlight()
	assert.False(t, ok)

	_, err = tr.AppendPlaceholder()
	assert.NoError(t, err)
}

func TestFail_SetsFallback(t *testing.T) {
	tr, bot := newTurn(t, "hi")
	require.NoError(t, tr.Apply(bot.ID, stream.ContentDelta("partial")))

	got, err := tr.Fail(bot.ID, "fallback text")
	require.NoError(t, err)
	assert.Equal(t, "fallback text", got.Content)
	assert.True(t, got.Fallback)
	assert.True(t, got.Finalized)
}

func TestCancel_KeepsPartialContent(t *testing.T) {
	tr, bot := newTurn(t, "hi")
	require.NoError(t, tr.Apply(bot.ID, stream.ContentDelta("par")))

	got, err := tr.Cancel(bot.ID)
	require.NoError(t, err)
	assert.Equal(t, "par", got.Content)
	assert.True(t, got.Cancelled)
	assert.ErrorIs(t, tr.Apply(bot.ID, stream.ContentDelta("tial")), ErrFinalized)
}

func TestClear_ForgetsInFlight(t *testing.T) {
	tr, bot := newTurn(t, "hi")

	assert.Equal(t, bot.ID, tr.Clear())
	assert.Equal(t, 0, tr.Len())
	_, ok := tr.InFlight()
	assert.False(t, ok)
	assert.ErrorIs(t, tr.Apply(bot.ID, stream.ContentDelta("x")), ErrUnknownMessage)
}

func TestFinalize_WithoutDone(t *testing.T) {
	tr, bot := newTurn(t, "hi")
	require.NoError(t, tr.Apply(bot.ID, stream.ContentDelta("implicit")))

	got, err := tr.Finalize(bot.ID)
	require.NoError(t, err)
	assert.Equal(t, "implicit", got.Content)
	assert.True(t, got.Finalized)
}

// =============================================================================
// HISTORY AND PRUNING TESTS
// =============================================================================

func TestAppendHistory(t *testing.T) {
	tr := New()
	tr.AppendHistory([]Message{
		{ID: "a", Role: RoleUser, Content: "old question"},
		{ID: "a", Role: RoleAssistant, Content: "old answer"},
		{Role: RoleAssistant, Content: "no id"},
	})

	msgs := tr.Messages()
	require.Len(t, msgs, 3)
	assert.Equal(t, "a", msgs[0].ID)
	assert.NotEqual(t, "a", msgs[1].ID)
	assert.NotEmpty(t, msgs[2].ID)
	for _, m := range msgs {
		assert.True(t, m.Finalized)
		assert.False(t, m.Timestamp.IsZero())
	}
	_, ok := tr.InFlight()
	assert.False(t, ok)
}

func TestPrune_KeepsInFlight(t *testing.T) {
	tr := New()
	bot, err := tr.AppendPlaceholder()
	require.NoError(t, err)
	for i := 0; i < MaxMessages+10; i++ {
		tr.AppendUser("filler")
	}

	// One prune at MaxMessages+1 entries, then ten more appends.
	assert.Equal(t, pruneTarget+10, tr.Len())
	require.NoError(t, tr.Apply(bot.ID, stream.ContentDelta("still here")))
	got, ok := tr.Get(bot.ID)
	require.True(t, ok)
	assert.Equal(t, "still here", got.Content)
}

func TestPrune_RunsInBatches(t *testing.T) {
	tr := New()
	for i := 0; i <= MaxMessages; i++ {
		tr.AppendUser("filler")
	}
	require.Equal(t, pruneTarget, tr.Len())
	first := tr.Messages()[0].ID

	for i := 0; i < MaxMessages-pruneTarget; i++ {
		tr.AppendUser("more")
	}
	assert.Equal(t, MaxMessages, tr.Len())
	assert.Equal(t, first, tr.Messages()[0].ID, "no prune until the cap is passed again")

	last := tr.AppendUser("over")
	assert.Equal(t, pruneTarget, tr.Len())
	got, ok := tr.Get(last.ID)
	require.True(t, ok)
	assert.Equal(t, "over", got.Content)
}

func TestConcurrentReaders(t *testing.T) {
	tr, bot := newTurn(t, "hi")

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_ = tr.Messages()
				_, _ = tr.Get(bot.ID)
			}
		}()
	}
	for i := 0; i < 100; i++ {
		require.NoError(t, tr.Apply(bot.ID, stream.ContentDelta("x")))
	}
	wg.Wait()

	got, _ := tr.Get(bot.ID)
	assert.Equal(t, strings.Repeat("x", 100), got.Content)
}

// =============================================================================
// MESSAGE TESTS
// =============================================================================

func TestStatsOf(t *testing.T) {
	assert.Equal(t, OutputStats{}, StatsOf(""))
	assert.Equal(t, OutputStats{Chars: 11, Words: 2, Lines: 1}, StatsOf("hello world"))
	assert.Equal(t, OutputStats{Chars: 8, Words: 4, Lines: 4}, StatsOf("a b\nc\n\nd"))
	assert.Equal(t, 3, StatsOf("dé!").Chars)
}

func TestMessage_Preview(t *testing.T) {
	m := Message{Content: "hello   wide\nworld"}
	assert.Equal(t, "hello wide world", m.Preview(50))
	assert.Equal(t, "hello...", m.Preview(8))
}

func TestParseRole(t *testing.T) {
	assert.Equal(t, RoleUser, ParseRole("USER"))
	assert.Equal(t, RoleAssistant, ParseRole("bot"))
	assert.Equal(t, "Dino", RoleAssistant.DisplayName())
}
