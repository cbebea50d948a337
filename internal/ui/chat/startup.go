// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/sync/errgroup"

	"github.com/jeranaias/talkydino-tui/internal/api"
	"github.com/jeranaias/talkydino-tui/internal/transcript"
)

// =============================================================================
// STARTUP LOADS
// =============================================================================

// startupCmd resolves the backend identity and seeds the transcript with
// recent history. Both fetches are optional; the demo identity skips them.
func (m Model) startupCmd() tea.Cmd {
	if m.backend == nil || m.demo {
		return nil
	}
	seed := m.cfg.API.SeedHistory
	if m.tr.Len() > 0 {
		seed = 0
	}
	return loadStartupCmd(m.ctx, m.backend, seed, m.requestTimeout())
}

func loadStartupCmd(ctx context.Context, backend Backend, seed int, timeout time.Duration) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		var msg StartupLoadedMsg
		var g errgroup.Group
		g.Go(func() error {
			who, err := backend.WhoAmI(ctx)
			if err != nil {
				msg.WhoAmIErr = err
				return nil
			}
			msg.WhoAmI = &who
			return nil
		})
		if seed > 0 {
			g.Go(func() error {
				msg.History, msg.HistoryErr = backend.Messages(ctx, seed, 0)
				return nil
			})
		}
		_ = g.Wait()
		return msg
	}
}

// historyToTranscript converts server history, oldest first, into
// transcript messages.
func historyToTranscript(items []api.HistoryMessage) []transcript.Message {
	out := make([]transcript.Message, 0, len(items))
	for _, h := range items {
		out = append(out, transcript.Message{
			ID:        string(h.ID),
			Role:      transcript.ParseRole(h.Role),
			Content:   h.Content,
			Timestamp: h.Timestamp.Time,
			Remote:    true,
		})
	}
	return out
}
