// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"time"

	"github.com/jeranaias/talkydino-tui/internal/api"
	"github.com/jeranaias/talkydino-tui/internal/config"
	"github.com/jeranaias/talkydino-tui/internal/session"
)

// =============================================================================
// STREAMING MESSAGES
// =============================================================================

// SessionUpdateMsg carries a controller update into the Bubble Tea loop.
// It is sent with program.Send from the streaming goroutine.
type SessionUpdateMsg struct {
	Update session.Update
}

// TurnCompleteMsg signals that a submitted turn has finished.
type TurnCompleteMsg struct {
	Result session.Result
}

// SubmitFailedMsg reports a submission the controller refused.
type SubmitFailedMsg struct {
	Err error
}

// StreamTickMsg drives batched re-rendering while a reply streams.
type StreamTickMsg struct {
	Time time.Time
}

// =============================================================================
// STARTUP MESSAGES
// =============================================================================

// StartupLoadedMsg carries the optional startup fetches. Either part may
// have failed independently.
type StartupLoadedMsg struct {
	WhoAmI     *api.WhoAmI
	WhoAmIErr  error
	History    []api.HistoryMessage
	HistoryErr error
}

// =============================================================================
// PANEL MESSAGES
// =============================================================================

// PanelLoadedMsg carries the result of a panel fetch. Gen identifies the
// request so stale results are dropped.
type PanelLoadedMsg struct {
	Kind PanelKind
	Gen  int
	Data any
	Err  error
}

// =============================================================================
// MISC MESSAGES
// =============================================================================

// ConfigReloadedMsg is sent when the config file changes on disk.
type ConfigReloadedMsg struct {
	Config *config.Config
	Err    error
}

// StatusClearMsg clears a transient status message if it is still current.
type StatusClearMsg struct {
	ID int
}

// CopyResultMsg reports the outcome of a clipboard copy.
type CopyResultMsg struct {
	Chars int
	Err   error
}
