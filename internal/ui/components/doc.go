// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package components provides reusable UI components for the talkydino TUI.

# Display Components

	RenderMessage (message.go)  - transcript messages, markdown for finished replies
	StatusBar (statusbar.go)     - turn state, user and key hints
	PanelFrame (panel.go)        - bordered side panel with loading/error/empty bodies
	Spinner (spinner.go)         - ASCII spinner with elapsed timer

# Rendering Helpers

	Markdown (markdown.go)       - glamour renderer cached per wrap width
	Highlight (highlight.go)     - chroma terminal highlighting for raw traces
	Wrap, Truncate (helpers.go)  - runewidth-aware wrapping and truncation

Width handling goes through go-runewidth so CJK text and emoji stay inside
their columns.
*/
package components
