// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Theme modes accepted by NewTheme.
const (
	ModeAuto  = "auto"
	ModeDark  = "dark"
	ModeLight = "light"
)

// Theme holds all the styled components for the application.
// It detects the terminal's color capability and adjusts accordingly.
type Theme struct {
	// Terminal capabilities
	IsDark       bool
	HasTrueColor bool
	ColorProfile termenv.Profile
	Mode         string

	// Layout dimensions
	Width  int
	Height int

	// ==========================================================================
	// HEADER STYLES
	// ==========================================================================

	Header      lipgloss.Style
	HeaderBrand lipgloss.Style
	HeaderUser  lipgloss.Style
	DemoBadge   lipgloss.Style

	// ==========================================================================
	// MESSAGE STYLES
	// ==========================================================================

	UserLabel       lipgloss.Style
	UserBubble      lipgloss.Style
	AssistantLabel  lipgloss.Style
	AssistantBubble lipgloss.Style
	FallbackBubble  lipgloss.Style
	SystemBubble    lipgloss.Style
	Timestamp       lipgloss.Style
	Cursor          lipgloss.Style

	// ==========================================================================
	// INPUT AREA STYLES
	// ==========================================================================

	InputContainer   lipgloss.Style
	InputPrompt      lipgloss.Style
	InputPlaceholder lipgloss.Style

	// ==========================================================================
	// STATUS BAR STYLES
	// ==========================================================================

	StatusBar     lipgloss.Style
	StatusIdle    lipgloss.Style
	StatusBusy    lipgloss.Style
	StatusError   lipgloss.Style
	ShortcutKey   lipgloss.Style
	ShortcutDesc  lipgloss.Style
	StatusMessage lipgloss.Style

	// ==========================================================================
	// PANEL STYLES
	// ==========================================================================

	Panel        lipgloss.Style
	PanelTitle   lipgloss.Style
	PanelHint    lipgloss.Style
	PanelLabel   lipgloss.Style
	PanelValue   lipgloss.Style
	PanelMeta    lipgloss.Style
	PanelError   lipgloss.Style
	PanelEmpty   lipgloss.Style
	PanelSection lipgloss.Style

	Spinner lipgloss.Style
}

// NewTheme creates a theme for mode ("auto", "dark" or "light").
// Auto uses the terminal background reported by termenv.
func NewTheme(mode string) *Theme {
	colorProfile := termenv.ColorProfile()

	mode = strings.ToLower(strings.TrimSpace(mode))
	var isDark bool
	switch mode {
	case ModeDark:
		isDark = true
	case ModeLight:
		isDark = false
	default:
		mode = ModeAuto
		isDark = termenv.HasDarkBackground()
	}
	if mode != ModeAuto {
		lipgloss.SetHasDarkBackground(isDark)
	}

	t := &Theme{
		IsDark:       isDark,
		HasTrueColor: colorProfile == termenv.TrueColor,
		ColorProfile: colorProfile,
		Mode:         mode,
	}
	t.initStyles()
	return t
}

// initStyles initializes all the lip gloss styles.
func (t *Theme) initStyles() {
	// Header
	t.Header = lipgloss.NewStyle().
		Background(SurfaceDim).
		Foreground(TextSecondary).
		Padding(0, 1)

	t.HeaderBrand = lipgloss.NewStyle().
		Bold(true).
		Foreground(Fern)

	t.HeaderUser = lipgloss.NewStyle().
		Foreground(Cyan)

	t.DemoBadge = lipgloss.NewStyle().
		Bold(true).
		Foreground(TextInverse).
		Background(Amber).
		Padding(0, 1)

	// Messages
	t.UserLabel = lipgloss.NewStyle().
		Bold(true).
		Foreground(Cyan)

	t.UserBubble = lipgloss.NewStyle().
		Foreground(UserBubbleFg).
		BorderStyle(lipgloss.NormalBorder()).
		BorderLeft(true).
		BorderForeground(UserBubbleBorder).
		PaddingLeft(1)

	t.AssistantLabel = lipgloss.NewStyle().
		Bold(true).
		Foreground(Fern)

	t.AssistantBubble = lipgloss.NewStyle().
		Foreground(AssistantBubbleFg).
		BorderStyle(lipgloss.NormalBorder()).
		BorderLeft(true).
		BorderForeground(AssistantBubbleBorder).
		PaddingLeft(1)

	t.FallbackBubble = t.AssistantBubble.
		BorderForeground(FallbackBubbleBorder).
		Italic(true)

	t.SystemBubble = lipgloss.NewStyle().
		Foreground(SystemBubbleFg).
		Italic(true).
		Align(lipgloss.Center)

	t.Timestamp = lipgloss.NewStyle().
		Foreground(TextMuted)

	t.Cursor = lipgloss.NewStyle().
		Foreground(Fern).
		Blink(true)

	// Input area
	t.InputContainer = lipgloss.NewStyle().
		BorderStyle(lipgloss.NormalBorder()).
		BorderTop(true).
		BorderForeground(Overlay).
		Padding(0, 1)

	t.InputPrompt = lipgloss.NewStyle().
		Foreground(Fern).
		Bold(true)

	t.InputPlaceholder = lipgloss.NewStyle().
		Foreground(TextMuted).
		Italic(true)

	// Status bar
	t.StatusBar = lipgloss.NewStyle().
		Background(SurfaceDim).
		Foreground(TextSecondary).
		Padding(0, 1)

	t.StatusIdle = lipgloss.NewStyle().
		Foreground(Emerald).
		Bold(true)

	t.StatusBusy = lipgloss.NewStyle().
		Foreground(Amber).
		Bold(true)

	t.StatusError = lipgloss.NewStyle().
		Foreground(Rose).
		Bold(true)

	t.ShortcutKey = lipgloss.NewStyle().
		Foreground(Cyan).
		Bold(true)

	t.ShortcutDesc = lipgloss.NewStyle().
		Foreground(TextMuted)

	t.StatusMessage = lipgloss.NewStyle().
		Foreground(TextPrimary).
		Italic(true)

	// Panels
	t.Panel = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(Purple).
		Padding(0, 1)

	t.PanelTitle = lipgloss.NewStyle().
		Bold(true).
		Foreground(Purple)

	t.PanelHint = lipgloss.NewStyle().
		Foreground(TextMuted)

	t.PanelLabel = lipgloss.NewStyle().
		Bold(true).
		Foreground(TextPrimary)

	t.PanelValue = lipgloss.NewStyle().
		Foreground(TextSecondary)

	t.PanelMeta = lipgloss.NewStyle().
		Foreground(TextMuted)

	t.PanelError = lipgloss.NewStyle().
		Foreground(Rose)

	t.PanelEmpty = lipgloss.NewStyle().
		Foreground(TextMuted).
		Italic(true)

	t.PanelSection = lipgloss.NewStyle().
		Bold(true).
		Foreground(Cyan).
		Underline(true)

	t.Spinner = lipgloss.NewStyle().
		Foreground(Fern)
}

// SetSize updates the theme dimensions for responsive layouts.
func (t *Theme) SetSize(width, height int) {
	t.Width = width
	t.Height = height
}

// GetLayoutMode returns the current layout mode based on width.
func (t *Theme) GetLayoutMode() LayoutMode {
	if t.Width < 60 {
		return LayoutNarrow
	}
	if t.Width < 100 {
		return LayoutMedium
	}
	return LayoutWide
}

// LayoutMode represents the current responsive layout mode.
type LayoutMode int

const (
	LayoutNarrow LayoutMode = iota // < 60 columns
	LayoutMedium                   // 60-100 columns
	LayoutWide                     // > 100 columns
)
