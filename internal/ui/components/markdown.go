// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strings"
	"sync"

	"github.com/charmbracelet/glamour"

	"github.com/jeranaias/talkydino-tui/internal/ui/styles"
)

// =============================================================================
// MARKDOWN RENDERER
// =============================================================================

// Markdown renders markdown with glamour, keeping one renderer per wrap
// width. Safe for concurrent use.
type Markdown struct {
	mode string

	mu        sync.Mutex
	renderers map[int]*glamour.TermRenderer
}

// NewMarkdown creates a renderer for the theme mode ("auto", "dark" or
// "light").
func NewMarkdown(mode string) *Markdown {
	return &Markdown{mode: mode, renderers: make(map[int]*glamour.TermRenderer)}
}

// Render renders content wrapped at width. Content is returned unchanged
// when glamour cannot render it.
func (m *Markdown) Render(content string, width int) string {
	if m == nil || strings.TrimSpace(content) == "" {
		return content
	}
	if width < 20 {
		width = 20
	}

	r, err := m.renderer(width)
	if err != nil {
		return content
	}
	out, err := r.Render(content)
	if err != nil {
		return content
	}
	return strings.Trim(out, "\n")
}

func (m *Markdown) renderer(width int) (*glamour.TermRenderer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if r, ok := m.renderers[width]; ok {
		return r, nil
	}

	opts := []glamour.TermRendererOption{glamour.WithWordWrap(width)}
	switch m.mode {
	case styles.ModeDark:
		opts = append(opts, glamour.WithStandardStyle("dark"))
	case styles.ModeLight:
		opts = append(opts, glamour.WithStandardStyle("light"))
	default:
		opts = append(opts, glamour.WithAutoStyle())
	}

	r, err := glamour.NewTermRenderer(opts...)
	if err != nil {
		return nil, err
	}
	m.renderers[width] = r
	return r, nil
}
