// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/jeranaias/talkydino-tui/internal/session"
	"github.com/jeranaias/talkydino-tui/internal/ui/styles"
)

// =============================================================================
// STATUS BAR COMPONENT
// =============================================================================

// Shortcut is a key hint shown on the right of the status bar.
type Shortcut struct {
	Key  string
	Desc string
}

// StatusBar is the bottom line: turn state and user on the left, a
// transient message or key hints on the right.
type StatusBar struct {
	Width     int
	User      string
	Demo      bool
	State     session.State
	Message   string
	Shortcuts []Shortcut
	theme     *styles.Theme
}

// NewStatusBar creates a StatusBar.
func NewStatusBar(theme *styles.Theme) *StatusBar {
	return &StatusBar{Width: 80, theme: theme}
}

// StateLabel returns the indicator and label for a controller state.
func StateLabel(s session.State) (string, string) {
	switch s {
	case session.StateAwaitingConnection:
		return styles.StatusIndicators.Pending, "Connecting"
	case session.StateStreaming:
		return "~", "Streaming"
	case session.StateErrorFallback:
		return styles.StatusIndicators.Warning, "Offline reply"
	default:
		return styles.StatusIndicators.Success, "Ready"
	}
}

// View renders the status bar at its width.
func (s *StatusBar) View() string {
	icon, label := StateLabel(s.State)
	stateStyle := s.theme.StatusIdle
	switch {
	case s.State.Active():
		stateStyle = s.theme.StatusBusy
	case s.State == session.StateErrorFallback:
		stateStyle = s.theme.StatusError
	}

	left := stateStyle.Render(icon + " " + label)
	if s.User != "" {
		user := s.User
		if s.Demo {
			user += " (demo)"
		}
		left += "  " + s.theme.HeaderUser.Render(Truncate(user, 24))
	}

	inner := s.Width - 2 // StatusBar padding
	if inner < 10 {
		inner = 10
	}

	var right string
	if s.Message != "" {
		right = s.theme.StatusMessage.Render(s.Message)
	} else {
		right = s.renderShortcuts(inner - lipgloss.Width(left) - 2)
	}

	gap := inner - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 1 {
		// Drop the right side before wrapping the line.
		right = ""
		gap = inner - lipgloss.Width(left)
		if gap < 0 {
			gap = 0
		}
	}

	line := left + strings.Repeat(" ", gap) + right
	return s.theme.StatusBar.Width(s.Width).MaxWidth(s.Width).Render(line)
}

// renderShortcuts renders as many hints as fit in width columns.
func (s *StatusBar) renderShortcuts(width int) string {
	var parts []string
	used := 0
	for _, sc := range s.Shortcuts {
		w := runewidth.StringWidth(sc.Key) + 1 + runewidth.StringWidth(sc.Desc)
		if len(parts) > 0 {
			w += 3 // " | "
		}
		if used+w > width {
			break
		}
		used += w
		parts = append(parts, s.theme.ShortcutKey.Render(sc.Key)+" "+s.theme.ShortcutDesc.Render(sc.Desc))
	}
	return strings.Join(parts, s.theme.ShortcutDesc.Render(" | "))
}
