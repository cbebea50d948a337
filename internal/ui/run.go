// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package ui wires the chat view to a Bubble Tea program.
package ui

import (
	"context"
	"errors"
	"fmt"
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/talkydino-tui/internal/api"
	"github.com/jeranaias/talkydino-tui/internal/auth"
	"github.com/jeranaias/talkydino-tui/internal/config"
	"github.com/jeranaias/talkydino-tui/internal/logging"
	"github.com/jeranaias/talkydino-tui/internal/session"
	"github.com/jeranaias/talkydino-tui/internal/ui/chat"
	"github.com/jeranaias/talkydino-tui/internal/ui/styles"
)

// Options configures Run.
type Options struct {
	Client  *api.Client
	Session *auth.Session
	Config  *config.Config
	// ConfigPath is watched for changes. Empty disables hot reload.
	ConfigPath string
}

// programRef lets the streaming goroutine reach the running program.
type programRef struct {
	mu sync.Mutex
	p  *tea.Program
}

func (r *programRef) set(p *tea.Program) {
	r.mu.Lock()
	r.p = p
	r.mu.Unlock()
}

// send drops messages that arrive before the program starts or after it
// exits.
func (r *programRef) send(msg tea.Msg) {
	r.mu.Lock()
	p := r.p
	r.mu.Unlock()
	if p != nil {
		p.Send(msg)
	}
}

// Run starts the full-screen chat and blocks until the user quits.
func Run(ctx context.Context, opts Options) error {
	if opts.Client == nil || opts.Session == nil {
		return errors.New("ui: client and session are required")
	}
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}
	log := logging.WithFields("component", "ui")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	ref := &programRef{}
	ctrl := session.New(opts.Client, session.Options{
		OnEvent: func(u session.Update) {
			ref.send(chat.SessionUpdateMsg{Update: u})
		},
		Invalidate: opts.Client.InvalidateTurn,
	})

	ident := opts.Session.Identity()
	m := chat.New(chat.Options{
		Context:    ctx,
		Controller: ctrl,
		Backend:    opts.Client,
		Config:     cfg,
		Theme:      styles.NewTheme(cfg.UI.Theme),
		UserName:   ident.Name(),
		Demo:       opts.Session.IsDemo(),
		BaseURL:    opts.Client.BaseURL(),
	})

	progOpts := []tea.ProgramOption{tea.WithContext(ctx), tea.WithMouseCellMotion()}
	if cfg.UI.AltScreen {
		progOpts = append(progOpts, tea.WithAltScreen())
	}
	p := tea.NewProgram(m, progOpts...)
	ref.set(p)
	defer ref.set(nil)

	if opts.ConfigPath != "" {
		_, err := config.Watch(ctx, opts.ConfigPath, func(c *config.Config, err error) {
			ref.send(chat.ConfigReloadedMsg{Config: c, Err: err})
		})
		if err != nil {
			log.Warn("CONFIG_WATCH_FAILED", "path", opts.ConfigPath, "error", err)
		}
	}

	log.Info("TUI_START", "uid", ident.UID, "demo", opts.Session.IsDemo())
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("failed to run TUI: %w", err)
	}
	ctrl.Cancel()
	log.Info("TUI_EXIT")
	return nil
}
