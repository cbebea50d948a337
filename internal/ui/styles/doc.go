// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package styles provides the visual styling system for the talkydino TUI.

Colors (colors.go) are Lip Gloss AdaptiveColor values so one palette serves
light and dark terminals:

	Fern    - brand, assistant messages
	Cyan    - user messages, panel sections
	Purple  - panels
	Amber   - demo mode, fallback replies, busy state
	Rose    - errors

The Theme (theme.go) groups the styles used by the chat view and panels.
NewTheme takes the configured ui.theme value:

	theme := styles.NewTheme(cfg.UI.Theme) // "auto", "dark" or "light"
	if theme.IsDark {
		// dark palette in use
	}

StatusIndicators pair every state color with an ASCII marker ([OK], [X],
[!], [i]) so state stays readable without color.
*/
package styles
