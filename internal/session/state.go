// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import "fmt"

// State is the controller state for the current or last turn.
type State int

const (
	// StateIdle means no turn has run since creation or Clear.
	StateIdle State = iota
	// StateAwaitingConnection means the request is sent and no event has arrived.
	StateAwaitingConnection
	// StateStreaming means events are being applied.
	StateStreaming
	// StateFinalized means the reply completed or was cancelled.
	StateFinalized
	// StateErrorFallback means the reply was replaced by the fallback text.
	StateErrorFallback
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaitingConnection:
		return "awaiting_connection"
	case StateStreaming:
		return "streaming"
	case StateFinalized:
		return "finalized"
	case StateErrorFallback:
		return "error_fallback"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Active reports whether a turn is in progress in this state.
func (s State) Active() bool {
	return s == StateAwaitingConnection || s == StateStreaming
}

// Terminal reports whether the state ends a turn.
func (s State) Terminal() bool {
	return s == StateFinalized || s == StateErrorFallback
}
