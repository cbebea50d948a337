// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// =============================================================================
// RENDER THROTTLE
// =============================================================================

const (
	defaultBatchSize = 15
	defaultMaxFPS    = 30
)

// renderThrottle batches transcript re-renders while a reply streams.
// The transcript already holds the accumulated text; the throttle only
// decides when the viewport is rebuilt from it.
//
// A render is due when either:
//  1. batchSize events arrived since the last render, or
//  2. minInterval has passed since the last render.
//
// It is owned by the Bubble Tea loop and needs no locking.
type renderThrottle struct {
	pending     int
	lastFlush   time.Time
	batchSize   int
	minInterval time.Duration
	now         func() time.Time
}

func newRenderThrottle() *renderThrottle {
	return newRenderThrottleWithConfig(defaultBatchSize, defaultMaxFPS)
}

func newRenderThrottleWithConfig(batchSize, maxFPS int) *renderThrottle {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	if maxFPS <= 0 || maxFPS > 60 {
		maxFPS = defaultMaxFPS
	}
	return &renderThrottle{
		batchSize:   batchSize,
		minInterval: time.Second / time.Duration(maxFPS),
		now:         time.Now,
		lastFlush:   time.Now(),
	}
}

// Mark records one applied event.
func (r *renderThrottle) Mark() {
	r.pending++
}

// Pending returns the number of events not yet rendered.
func (r *renderThrottle) Pending() int {
	return r.pending
}

// Due reports whether a render should happen now.
func (r *renderThrottle) Due() bool {
	if r.pending == 0 {
		return false
	}
	if r.pending >= r.batchSize {
		return true
	}
	return r.now().Sub(r.lastFlush) >= r.minInterval
}

// Flushed resets the counters after a render.
func (r *renderThrottle) Flushed() {
	r.pending = 0
	r.lastFlush = r.now()
}

// =============================================================================
// STREAMING TICK COMMAND
// =============================================================================

// streamTickCmd sends StreamTickMsg at ~30fps.
func streamTickCmd() tea.Cmd {
	return tea.Tick(time.Second/defaultMaxFPS, func(t time.Time) tea.Msg {
		return StreamTickMsg{Time: t}
	})
}
