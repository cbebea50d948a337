// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/talkydino-tui/internal/ui/components"
)

// =============================================================================
// STATUS MESSAGES
// =============================================================================

// setStatus shows a transient status message and returns the command that
// clears it. A newer message keeps its own timer.
func (m *Model) setStatus(text string) tea.Cmd {
	m.statusID++
	m.statusMsg = text
	id := m.statusID
	return tea.Tick(statusTimeout, func(time.Time) tea.Msg {
		return StatusClearMsg{ID: id}
	})
}

func copiedStatus(chars int) string {
	if chars < 1000 {
		return fmt.Sprintf("Copied %d chars", chars)
	}
	return fmt.Sprintf("Copied %.1fK chars", float64(chars)/1000)
}

// =============================================================================
// CLIPBOARD
// =============================================================================

// copyToClipboard copies the given text to the system clipboard.
func copyToClipboard(text string) error {
	return clipboard.WriteAll(text)
}

// copyCmd copies text off the update loop.
func copyCmd(clip func(string) error, text string) tea.Cmd {
	return func() tea.Msg {
		return CopyResultMsg{Chars: utf8.RuneCountInString(text), Err: clip(text)}
	}
}

// =============================================================================
// HELPERS
// =============================================================================

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}

// requestTimeout bounds one panel or startup fetch.
func (m Model) requestTimeout() time.Duration {
	if t := m.cfg.API.Timeout(); t > 0 {
		return t
	}
	return defaultRequestTimeout
}

// shortcuts converts bindings to status bar hints.
func shortcuts(bindings []key.Binding) []components.Shortcut {
	out := make([]components.Shortcut, 0, len(bindings))
	for _, b := range bindings {
		h := b.Help()
		out = append(out, components.Shortcut{Key: h.Key, Desc: h.Desc})
	}
	return out
}

// helpLine renders bindings as a single hint line.
func helpLine(bindings []key.Binding) string {
	parts := make([]string, 0, len(bindings))
	for _, b := range bindings {
		h := b.Help()
		parts = append(parts, h.Key+" "+h.Desc)
	}
	return strings.Join(parts, "  ")
}
