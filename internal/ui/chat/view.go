// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/talkydino-tui/internal/ui/components"
)

// =============================================================================
// VIEW RENDERING
// =============================================================================

// View renders the chat view.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}
	if m.showHelp {
		return m.renderHelpOverlay()
	}

	// Stack vertically: header, transcript and panel, input, status bar.
	return lipgloss.JoinVertical(lipgloss.Left,
		m.renderHeader(),
		m.renderBody(),
		m.renderInput(),
		m.renderStatusBar(),
	)
}

// renderHeader renders the brand, the user and, on the right, the spinner
// while a reply runs or the backend address.
func (m Model) renderHeader() string {
	left := m.theme.HeaderBrand.Render("TalkyDino")
	if m.userName != "" {
		left += "  " + m.theme.HeaderUser.Render(components.Truncate(m.userName, 32))
	}
	if m.demo {
		left += " " + m.theme.DemoBadge.Render("DEMO")
	}

	right := ""
	if m.spinner.IsActive() {
		right = m.spinner.View()
	} else if m.baseURL != "" {
		right = m.theme.Timestamp.Render(m.baseURL)
	}

	inner := m.width - 2 // Header padding
	gap := inner - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 1 {
		right = ""
		gap = max(inner-lipgloss.Width(left), 0)
	}
	return m.theme.Header.Width(m.width).MaxWidth(m.width).
		Render(left + strings.Repeat(" ", gap) + right)
}

// renderBody renders the transcript, the open panel, or both side by side.
func (m Model) renderBody() string {
	transcriptView := m.viewport.View()
	if m.panel == PanelNone {
		return transcriptView
	}

	frame := components.PanelFrame{
		Title:  m.panel.Title(),
		Status: m.panelStatus(m.panel),
		Body:   m.panelView.View(),
		Footer: helpLine(m.keys.PanelHelp(m.panel)),
		Width:  m.panelWidth,
		Height: m.bodyHeight,
	}.View(m.theme)

	if !m.split {
		return frame
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, transcriptView, frame)
}

func (m Model) renderInput() string {
	return m.theme.InputContainer.Width(m.width).MaxWidth(m.width).Render(m.input.View())
}

func (m Model) renderStatusBar() string {
	sb := *m.statusBar
	sb.Width = m.width
	sb.User = m.userName
	sb.Demo = m.demo
	sb.State = m.state
	sb.Message = m.statusMsg
	sb.Shortcuts = shortcuts(m.currentHelp())
	return sb.View()
}

// currentHelp returns the key hints for the current mode.
func (m Model) currentHelp() []key.Binding {
	switch {
	case m.panel.fetches():
		return m.keys.PanelHelp(m.panel)
	case m.streaming:
		return m.keys.StreamingHelp()
	default:
		return m.keys.ShortHelp()
	}
}

// welcome is shown while the transcript is empty.
func (m Model) welcome(width int) string {
	lines := []string{
		m.theme.HeaderBrand.Render("TalkyDino"),
		"",
		"Say hi to Dino. It remembers what you tell it.",
		"Press F1 for keys.",
	}
	if m.demo {
		lines = append(lines, "", "Offline demo: replies are generated locally.")
	}
	return m.theme.SystemBubble.Width(width).Render(strings.Join(lines, "\n"))
}

// renderHelpOverlay renders the full key reference centered on screen.
func (m Model) renderHelpOverlay() string {
	h := m.help
	h.ShowAll = true
	h.Width = max(m.width-6, 20)

	body := m.theme.PanelTitle.Render("Keys") + "\n\n" +
		h.View(m.keys) + "\n\n" +
		m.theme.PanelHint.Render("F1 or esc to close")

	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center,
		m.theme.Panel.Render(body))
}

// joinMessages separates rendered messages with a blank line.
func joinMessages(parts []string) string {
	return strings.Join(parts, "\n\n")
}
