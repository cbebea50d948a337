// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/stretchr/testify/assert"

	"github.com/jeranaias/talkydino-tui/internal/session"
	"github.com/jeranaias/talkydino-tui/internal/ui/styles"
)

func TestStateLabel(t *testing.T) {
	tests := []struct {
		state session.State
		want  string
	}{
		{session.StateIdle, "Ready"},
		{session.StateAwaitingConnection, "Connecting"},
		{session.StateStreaming, "Streaming"},
		{session.StateFinalized, "Ready"},
		{session.StateErrorFallback, "Offline reply"},
	}
	for _, tc := range tests {
		_, got := StateLabel(tc.state)
		assert.Equal(t, tc.want, got, tc.state.String())
	}
}

func TestStatusBarView(t *testing.T) {
	sb := NewStatusBar(styles.NewTheme("dark"))
	sb.Width = 80
	sb.User = "Demo User"
	sb.Demo = true
	sb.State = session.StateStreaming
	sb.Shortcuts = []Shortcut{{"esc", "stop"}, {"^o", "memories"}}

	view := sb.View()
	assert.Contains(t, view, "Streaming")
	assert.Contains(t, view, "Demo User (demo)")
	assert.Contains(t, view, "memories")
	assert.LessOrEqual(t, lipgloss.Width(view), 80)

	sb.Message = "Copied raw output"
	assert.Contains(t, sb.View(), "Copied raw output")
}

func TestStatusBarDropsShortcutsWhenNarrow(t *testing.T) {
	sb := NewStatusBar(styles.NewTheme("dark"))
	sb.Width = 30
	sb.Shortcuts = []Shortcut{{"enter", "send a message to the dino"}}

	view := sb.View()
	assert.Contains(t, view, "Ready")
	assert.NotContains(t, view, "send a message")
}
