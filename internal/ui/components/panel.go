// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/talkydino-tui/internal/ui/styles"
)

// =============================================================================
// PANEL FRAME
// =============================================================================

// PanelFrame draws a bordered side panel: a title row, a body, and a
// footer with key hints.
type PanelFrame struct {
	Title  string
	Status string // right side of the title row, e.g. "12 items"
	Body   string
	Footer string
	Width  int
	Height int
}

// View renders the frame at exactly Width x Height when both are set.
func (p PanelFrame) View(theme *styles.Theme) string {
	innerWidth := p.Width - 4 // border + padding
	if innerWidth < 10 {
		innerWidth = 10
	}

	title := theme.PanelTitle.Render(Truncate(p.Title, innerWidth))
	if p.Status != "" {
		status := theme.PanelMeta.Render(p.Status)
		gap := innerWidth - lipgloss.Width(title) - lipgloss.Width(status)
		if gap >= 1 {
			title += strings.Repeat(" ", gap) + status
		}
	}

	rows := []string{title, ""}
	if p.Body != "" {
		rows = append(rows, p.Body)
	}

	// Clip long lines instead of letting the border style wrap them.
	body := lipgloss.NewStyle().MaxWidth(innerWidth).Render(strings.Join(rows, "\n"))
	footer := theme.PanelHint.Render(Truncate(p.Footer, innerWidth))

	innerHeight := p.Height - 2 // border
	if innerHeight > 0 {
		footerHeight := 0
		if p.Footer != "" {
			footerHeight = 1
		}
		bodyLines := strings.Split(body, "\n")
		if avail := innerHeight - footerHeight; len(bodyLines) > avail && avail > 0 {
			bodyLines = bodyLines[:avail]
		}
		for len(bodyLines) < innerHeight-footerHeight {
			bodyLines = append(bodyLines, "")
		}
		body = strings.Join(bodyLines, "\n")
	}
	if p.Footer != "" {
		body += "\n" + footer
	}

	style := theme.Panel
	if p.Width > 0 {
		style = style.Width(p.Width - 2)
	}
	return style.Render(body)
}

// LoadingBody is the body shown while a panel fetches.
func LoadingBody(theme *styles.Theme, spinnerView string) string {
	if spinnerView == "" {
		return theme.PanelEmpty.Render("Loading...")
	}
	return spinnerView
}

// ErrorBody is the body shown when a panel fetch fails.
func ErrorBody(theme *styles.Theme, err error, width int) string {
	msg := "request failed"
	if err != nil {
		msg = err.Error()
	}
	return theme.PanelError.Render(Wrap(styles.StatusIndicators.Error+" "+msg, width)) +
		"\n\n" + theme.PanelHint.Render("press r to retry")
}

// EmptyBody is the body shown when a panel has nothing to list.
func EmptyBody(theme *styles.Theme, text string) string {
	return theme.PanelEmpty.Render(text)
}
