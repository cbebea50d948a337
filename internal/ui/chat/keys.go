// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"github.com/charmbracelet/bubbles/key"
)

// =============================================================================
// KEY MAP DEFINITION
// =============================================================================

// KeyMap defines all keyboard bindings for the chat interface.
type KeyMap struct {
	Submit key.Binding
	Cancel key.Binding
	Clear  key.Binding
	Quit   key.Binding
	Help   key.Binding
	Copy   key.Binding

	// Panels
	Memories key.Binding
	History  key.Binding
	Debug    key.Binding
	Profile  key.Binding
	Inspect  key.Binding

	// Inside a panel
	Retry      key.Binding
	Regenerate key.Binding
	NextPage   key.Binding
	PrevPage   key.Binding

	// Scrolling
	Up       key.Binding
	Down     key.Binding
	PageUp   key.Binding
	PageDown key.Binding
}

// DefaultKeyMap returns the default key bindings. ctrl+m is the same byte
// as enter in most terminals, so memories live on ctrl+o.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Submit: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "send"),
		),
		Cancel: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "stop reply / close panel"),
		),
		Clear: key.NewBinding(
			key.WithKeys("ctrl+l"),
			key.WithHelp("C-l", "clear chat"),
		),
		Quit: key.NewBinding(
			key.WithKeys("ctrl+c"),
			key.WithHelp("C-c", "quit"),
		),
		Help: key.NewBinding(
			key.WithKeys("f1"),
			key.WithHelp("F1", "help"),
		),
		Copy: key.NewBinding(
			key.WithKeys("ctrl+y"),
			key.WithHelp("C-y", "copy raw output"),
		),
		Memories: key.NewBinding(
			key.WithKeys("ctrl+o"),
			key.WithHelp("C-o", "memories"),
		),
		History: key.NewBinding(
			key.WithKeys("ctrl+r"),
			key.WithHelp("C-r", "recent messages"),
		),
		Debug: key.NewBinding(
			key.WithKeys("ctrl+d"),
			key.WithHelp("C-d", "raw output"),
		),
		Profile: key.NewBinding(
			key.WithKeys("ctrl+p"),
			key.WithHelp("C-p", "profile"),
		),
		Inspect: key.NewBinding(
			key.WithKeys("ctrl+k"),
			key.WithHelp("C-k", "vector store"),
		),
		Retry: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "refresh"),
		),
		Regenerate: key.NewBinding(
			key.WithKeys("g"),
			key.WithHelp("g", "rebuild profile"),
		),
		NextPage: key.NewBinding(
			key.WithKeys("n", "right"),
			key.WithHelp("n", "next page"),
		),
		PrevPage: key.NewBinding(
			key.WithKeys("p", "left"),
			key.WithHelp("p", "prev page"),
		),
		Up: key.NewBinding(
			key.WithKeys("up"),
			key.WithHelp("up", "scroll up"),
		),
		Down: key.NewBinding(
			key.WithKeys("down"),
			key.WithHelp("down", "scroll down"),
		),
		PageUp: key.NewBinding(
			key.WithKeys("pgup"),
			key.WithHelp("PgUp", "page up"),
		),
		PageDown: key.NewBinding(
			key.WithKeys("pgdown"),
			key.WithHelp("PgDn", "page down"),
		),
	}
}

// =============================================================================
// KEY BINDING HELPERS
// =============================================================================

// ShortHelp returns the bindings shown in the status bar.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Submit, k.Memories, k.History, k.Debug, k.Profile, k.Inspect, k.Help, k.Quit}
}

// StreamingHelp returns the bindings shown while a reply streams.
func (k KeyMap) StreamingHelp() []key.Binding {
	return []key.Binding{k.Cancel, k.Debug, k.Quit}
}

// PanelHelp returns the bindings shown inside a panel.
func (k KeyMap) PanelHelp(kind PanelKind) []key.Binding {
	switch kind {
	case PanelMemories, PanelHistory:
		return []key.Binding{k.Retry, k.PrevPage, k.NextPage, k.Cancel}
	case PanelProfile:
		return []key.Binding{k.Retry, k.Regenerate, k.Cancel}
	case PanelDebug:
		return []key.Binding{k.Copy, k.Cancel}
	default:
		return []key.Binding{k.Retry, k.Cancel}
	}
}

// FullHelp returns the help overlay groups.
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Submit, k.Cancel, k.Clear, k.Copy, k.Quit},
		{k.Memories, k.History, k.Debug, k.Profile, k.Inspect},
		{k.Retry, k.Regenerate, k.PrevPage, k.NextPage},
		{k.Up, k.Down, k.PageUp, k.PageDown},
	}
}
