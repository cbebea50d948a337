// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// styles.go - Shared styles for the line-mode commands.
//
// Colors follow the TUI palette and switch off for piped output.
package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/talkydino-tui/internal/ui/styles"
)

// init configures lipgloss color profile based on terminal capabilities.
func init() {
	lipgloss.SetColorProfile(GetColorProfile())
}

// =============================================================================
// SHARED STYLES FOR ALL CLI COMMANDS
// =============================================================================

var (
	// TitleStyle is used for command titles and headers
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(styles.Fern)

	// SectionStyle is used for section headers within commands
	SectionStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(styles.TextPrimary).
			MarginTop(1)

	// LabelStyle is used for field labels
	LabelStyle = lipgloss.NewStyle().
			Foreground(styles.TextSecondary).
			Width(18)

	// ValueStyle is used for regular values and text
	ValueStyle = lipgloss.NewStyle().
			Foreground(styles.TextPrimary)

	// SuccessStyle is used for success messages and OK statuses
	SuccessStyle = lipgloss.NewStyle().
			Foreground(styles.Emerald).
			Bold(true)

	// ErrorStyle is used for error messages and failures
	ErrorStyle = lipgloss.NewStyle().
			Foreground(styles.Rose).
			Bold(true)

	// WarningStyle is used for warnings and the demo badge
	WarningStyle = lipgloss.NewStyle().
			Foreground(styles.Amber)

	// DimStyle is used for secondary information and hints
	DimStyle = lipgloss.NewStyle().
			Foreground(styles.TextMuted)

	// UserStyle labels the user's lines in chat
	UserStyle = lipgloss.NewStyle().
			Foreground(styles.Cyan).
			Bold(true)

	// DinoStyle labels Dino's lines in chat
	DinoStyle = lipgloss.NewStyle().
			Foreground(styles.Fern).
			Bold(true)

	// SeparatorStyle is used for visual separators
	SeparatorStyle = lipgloss.NewStyle().
			Foreground(styles.OverlayDim)
)

// =============================================================================
// HELPER FUNCTIONS FOR COMMON PATTERNS
// =============================================================================

// RenderSeparator renders a horizontal separator line.
func RenderSeparator(width int) string {
	if width <= 0 {
		width = 41
	}
	return SeparatorStyle.Render(strings.Repeat("=", width))
}

// RenderStatus renders a status indicator with appropriate color.
func RenderStatus(status string) string {
	switch strings.ToLower(status) {
	case "ok", "success", "pass", "healthy":
		return SuccessStyle.Render("[OK]")
	case "error", "fail", "failed", "unhealthy":
		return ErrorStyle.Render("[FAIL]")
	case "warning", "warn", "demo":
		return WarningStyle.Render("[WARN]")
	default:
		return DimStyle.Render("[" + strings.ToUpper(status) + "]")
	}
}

// printTitle writes a command title and separator.
func printTitle(w io.Writer, title string) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, TitleStyle.Render(title))
	fmt.Fprintln(w, RenderSeparator(41))
}

// printKV writes one aligned label and value line.
func printKV(w io.Writer, label string, value interface{}) {
	fmt.Fprintf(w, "  %s%s\n", LabelStyle.Render(label+":"), ValueStyle.Render(fmt.Sprint(value)))
}
