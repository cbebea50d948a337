// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strings"
	"testing"
	"time"

	"github.com/mattn/go-runewidth"
	"github.com/stretchr/testify/assert"

	"github.com/jeranaias/talkydino-tui/internal/transcript"
	"github.com/jeranaias/talkydino-tui/internal/ui/styles"
)

func TestWrap(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		width int
		want  string
	}{
		{"fits", "hello", 10, "hello"},
		{"word boundary", "hello world foo", 11, "hello world\nfoo"},
		{"long word", "abcdefghij", 4, "abcd\nefgh\nij"},
		{"keeps newlines", "a\nb", 10, "a\nb"},
		{"no width", "hello world", 0, "hello world"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Wrap(tc.text, tc.width))
		})
	}
}

func TestWrap_WideRunesFitWidth(t *testing.T) {
	out := Wrap("日本語のテキストはとても長いです", 7)
	for _, line := range strings.Split(out, "\n") {
		assert.LessOrEqual(t, runewidth.StringWidth(line), 7, line)
	}
	assert.Equal(t, "日本語のテキストはとても長いです", strings.ReplaceAll(out, "\n", ""))
}

func TestRenderMessage(t *testing.T) {
	theme := styles.NewTheme("dark")
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

	user := RenderMessage(theme, transcript.Message{
		Role: transcript.RoleUser, Content: "hi there", Timestamp: now, Finalized: true,
	}, MessageOptions{Width: 60, ShowTimestamp: true, Now: now})
	assert.Contains(t, user, "You")
	assert.Contains(t, user, "hi there")
	assert.Contains(t, user, "12:00")

	streaming := RenderMessage(theme, transcript.Message{
		Role: transcript.RoleAssistant, Content: "Hel",
	}, MessageOptions{Width: 60})
	assert.Contains(t, streaming, "Hel")
	assert.Contains(t, streaming, "_")

	fallback := RenderMessage(theme, transcript.Message{
		Role: transcript.RoleAssistant, Content: "demo reply", Finalized: true, Fallback: true,
	}, MessageOptions{Width: 60})
	assert.Contains(t, fallback, "offline reply")

	raw := RenderMessage(theme, transcript.Message{
		Role: transcript.RoleAssistant, Content: "ok", RawOutput: "trace", Finalized: true,
	}, MessageOptions{Width: 60, ShowRawBadge: true})
	assert.Contains(t, raw, "[raw 5 chars]")
}
