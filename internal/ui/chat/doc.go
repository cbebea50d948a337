// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package chat provides the main chat view of the TalkyDino TUI.

The view is a Bubble Tea model wrapped around a session.Controller. The
controller owns the transcript and runs each turn; the model renders it
and feeds keyboard input back in.

# Key Components

## Model (model.go)

The Model struct holds the view state:
  - Transcript viewport and the text input
  - Turn state mirrored from controller updates
  - Rendered output of finalized messages, cached per width
  - One optional side panel and its fetch state

## Streaming

Submit runs the turn in a tea.Cmd. The controller reports progress through
its OnEvent callback, which the program forwards as SessionUpdateMsg.
State changes render at once; content events are batched by renderThrottle
and flushed on a 30fps StreamTickMsg loop.

## Panels (panels.go)

Five panels share one slot: memories, recent messages, raw output, profile
and the vector store. Each loads and fails on its own. A reload bumps the
panel generation so late results of an older request are dropped. On
terminals at least 100 columns wide the panel sits next to the transcript;
on narrower ones it replaces it.

# Key Bindings

	Enter     send
	Esc       stop the reply, or close the panel
	Ctrl+O    memories
	Ctrl+R    recent messages
	Ctrl+D    raw output
	Ctrl+P    profile
	Ctrl+K    vector store
	Ctrl+Y    copy raw output
	Ctrl+L    clear the chat
	F1        help
	Ctrl+C    quit

Inside a data panel: r refreshes, g rebuilds the profile, n and p page.

# Usage

	ctrl := session.New(client, session.Options{OnEvent: forward})
	m := chat.New(chat.Options{Controller: ctrl, Backend: client, Config: cfg})
	p := tea.NewProgram(m, tea.WithAltScreen())
*/
package chat
