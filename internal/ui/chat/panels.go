// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"golang.org/x/sync/errgroup"

	"github.com/jeranaias/talkydino-tui/internal/api"
	"github.com/jeranaias/talkydino-tui/internal/cache"
	"github.com/jeranaias/talkydino-tui/internal/logging"
	"github.com/jeranaias/talkydino-tui/internal/transcript"
	"github.com/jeranaias/talkydino-tui/internal/ui/components"
	"github.com/jeranaias/talkydino-tui/internal/ui/styles"
)

// =============================================================================
// PANEL KINDS
// =============================================================================

// PanelKind identifies a side panel.
type PanelKind int

const (
	PanelNone PanelKind = iota
	PanelMemories
	PanelHistory
	PanelDebug
	PanelProfile
	PanelInspect
)

// Title returns the panel heading.
func (k PanelKind) Title() string {
	switch k {
	case PanelMemories:
		return "Memories"
	case PanelHistory:
		return "Recent messages"
	case PanelDebug:
		return "Raw output"
	case PanelProfile:
		return "Profile"
	case PanelInspect:
		return "Vector store"
	default:
		return ""
	}
}

// fetches reports whether the panel loads data from the backend.
func (k PanelKind) fetches() bool {
	return k != PanelNone && k != PanelDebug
}

// pages reports whether the panel supports offset paging.
func (k PanelKind) pages() bool {
	return k == PanelMemories || k == PanelHistory
}

// cacheScope is the cache data type refreshed by r.
func (k PanelKind) cacheScope() string {
	switch k {
	case PanelMemories:
		return cache.TypeMemories
	case PanelHistory:
		return cache.TypeMessages
	case PanelProfile:
		return cache.TypeProfile
	case PanelInspect:
		return cache.TypeChroma
	default:
		return ""
	}
}

// =============================================================================
// BACKEND
// =============================================================================

// Backend is the part of the API client used by the chat view.
type Backend interface {
	Memories(ctx context.Context, limit, offset int) ([]api.Memory, error)
	Messages(ctx context.Context, limit, offset int) ([]api.HistoryMessage, error)
	WhoAmI(ctx context.Context) (api.WhoAmI, error)
	InspectChroma(ctx context.Context) (api.ChromaInspection, error)
	ProfileCard(ctx context.Context) (api.Profile, error)
	ProfileStats(ctx context.Context) (api.ProfileStats, error)
	RefreshProfileCard(ctx context.Context) (api.Profile, error)
	Invalidate(dataTypes ...string)
}

// profileData is the profile panel payload. Stats are optional.
type profileData struct {
	Profile  api.Profile
	Stats    *api.ProfileStats
	StatsErr error
}

// =============================================================================
// PANEL STATE
// =============================================================================

// panelState is the per-panel fetch state. Each panel loads and fails
// independently.
type panelState struct {
	loading bool
	loaded  bool
	stale   bool // a turn changed the data since it loaded
	err     error
	data    any
	gen     int
	offset  int
}

// panelRequest describes one fetch.
type panelRequest struct {
	kind       PanelKind
	gen        int
	limit      int
	offset     int
	force      bool // drop the cached scope first
	regenerate bool // ask the backend to rebuild the profile
}

// loadPanelCmd fetches the data for one panel.
func loadPanelCmd(ctx context.Context, backend Backend, timeout time.Duration, req panelRequest) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		if req.force {
			if scope := req.kind.cacheScope(); scope != "" {
				backend.Invalidate(scope)
			}
		}

		msg := PanelLoadedMsg{Kind: req.kind, Gen: req.gen}
		switch req.kind {
		case PanelMemories:
			msg.Data, msg.Err = backend.Memories(ctx, req.limit, req.offset)
		case PanelHistory:
			msg.Data, msg.Err = backend.Messages(ctx, req.limit, req.offset)
		case PanelInspect:
			msg.Data, msg.Err = backend.InspectChroma(ctx)
		case PanelProfile:
			msg.Data, msg.Err = loadProfile(ctx, backend, req.regenerate)
		}
		return msg
	}
}

// loadProfile fetches the card and its stats concurrently. A stats
// failure is kept on the payload; only a card failure fails the panel.
func loadProfile(ctx context.Context, backend Backend, regenerate bool) (profileData, error) {
	var (
		data  profileData
		stats api.ProfileStats
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		if regenerate {
			data.Profile, err = backend.RefreshProfileCard(gctx)
		} else {
			data.Profile, err = backend.ProfileCard(gctx)
		}
		return err
	})
	g.Go(func() error {
		var err error
		if stats, err = backend.ProfileStats(gctx); err != nil {
			data.StatsErr = err
			return nil
		}
		data.Stats = &stats
		return nil
	})

	if err := g.Wait(); err != nil {
		return profileData{}, err
	}
	return data, nil
}

// =============================================================================
// PANEL BODIES
// =============================================================================

func renderMemories(theme *styles.Theme, items []api.Memory, width int) string {
	if len(items) == 0 {
		return components.EmptyBody(theme, "No memories yet. Chat a bit and check back.")
	}
	var b strings.Builder
	for i, m := range items {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(theme.PanelLabel.Render(components.Truncate(m.Key, width)))
		b.WriteString("\n")
		b.WriteString(theme.PanelValue.Render(components.Wrap(m.Value, width)))
		b.WriteString("\n")
		b.WriteString(theme.PanelMeta.Render(fmt.Sprintf("salience %.2f | confidence %.2f", m.Salience, m.Confidence)))
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func renderHistory(theme *styles.Theme, items []api.HistoryMessage, width int, now time.Time) string {
	if len(items) == 0 {
		return components.EmptyBody(theme, "No messages yet.")
	}
	var b strings.Builder
	for i, h := range items {
		if i > 0 {
			b.WriteString("\n")
		}
		role := transcript.ParseRole(h.Role)
		label := theme.AssistantLabel
		if role == transcript.RoleUser {
			label = theme.UserLabel
		}
		head := label.Render(role.DisplayName())
		if ts := components.FormatClock(h.Timestamp.Time, now); ts != "" {
			head += " " + theme.Timestamp.Render(ts)
		}
		b.WriteString(head)
		b.WriteString("\n")
		b.WriteString(theme.PanelValue.Render(components.Truncate(components.OneLine(h.Content), width)))
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func renderProfile(theme *styles.Theme, data profileData, width int, now time.Time) string {
	var b strings.Builder

	if data.Stats != nil {
		st := data.Stats
		line := fmt.Sprintf("%d facts", st.TotalFacts)
		if st.Version != "" {
			line += " | v" + string(st.Version)
		}
		if st.Tokens > 0 {
			line += fmt.Sprintf(" | %d tokens", st.Tokens)
		}
		if ts := components.FormatClock(st.LastUpdated.Time, now); ts != "" {
			line += " | updated " + ts
		}
		b.WriteString(theme.PanelMeta.Render(line))
		b.WriteString("\n\n")
	} else if data.StatsErr != nil {
		b.WriteString(theme.PanelMeta.Render("stats unavailable"))
		b.WriteString("\n\n")
	}

	sections := data.Profile.SectionNames()
	if len(sections) == 0 {
		b.WriteString(components.EmptyBody(theme, "No profile yet. Press g to build one."))
		return b.String()
	}

	for i, section := range sections {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(theme.PanelSection.Render(strings.ToUpper(api.HumanizeName(section))))
		b.WriteString("\n")
		for _, f := range data.Profile.Fields(section) {
			name := theme.PanelLabel.Render(api.HumanizeName(f.Name) + ":")
			if f.IsValue() {
				val := f.Value
				if f.Confidence > 0 {
					val += fmt.Sprintf(" (%.0f%%)", f.Confidence*100)
				}
				b.WriteString(labeled(theme, name, val, width))
				b.WriteString("\n")
				continue
			}
			parts := make([]string, 0, len(f.Items))
			for _, it := range f.Items {
				p := api.HumanizeName(it.Name)
				if it.Confidence > 0 {
					p += fmt.Sprintf(" (%.0f%%)", it.Confidence*100)
				}
				parts = append(parts, p)
			}
			b.WriteString(labeled(theme, name, strings.Join(parts, ", "), width))
			b.WriteString("\n")
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func renderInspection(theme *styles.Theme, data api.ChromaInspection, width int, now time.Time) string {
	var b strings.Builder

	st := data.Stats
	status := styles.RenderWarning("collection missing")
	if st.Ready() {
		status = styles.RenderSuccess("ready")
	}
	b.WriteString(theme.PanelLabel.Render("Episodes: ") + theme.PanelValue.Render(fmt.Sprint(st.TotalEpisodes)))
	b.WriteString("  " + status + "\n")
	if st.CollectionName != "" {
		b.WriteString(theme.PanelMeta.Render("collection " + st.CollectionName))
		if st.ChromaMode != "" {
			b.WriteString(theme.PanelMeta.Render(" | mode " + st.ChromaMode))
		}
		b.WriteString("\n")
	}
	b.WriteString("\n")

	if len(data.Episodes) == 0 {
		b.WriteString(components.EmptyBody(theme, "No episodes stored yet."))
		return b.String()
	}

	for i, ep := range data.Episodes {
		if i > 0 {
			b.WriteString("\n")
		}
		head := fmt.Sprintf("Round %d", ep.RoundNumber)
		if ts := components.FormatClock(ep.Timestamp.Time, now); ts != "" {
			head += "  " + ts
		}
		meta := fmt.Sprintf("%d tokens", ep.Tokens)
		if ep.Similarity != nil {
			meta += fmt.Sprintf(" | sim %.2f", *ep.Similarity)
		}
		b.WriteString(theme.PanelLabel.Render(head) + "  " + theme.PanelMeta.Render(meta) + "\n")
		b.WriteString(theme.UserLabel.Render("You: ") + theme.PanelValue.Render(components.Truncate(components.OneLine(ep.UserMessage), width-5)) + "\n")
		b.WriteString(theme.AssistantLabel.Render("Dino: ") + theme.PanelValue.Render(components.Truncate(components.OneLine(ep.AIResponse), width-6)) + "\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// labeled renders "label value" with the value wrapped to the space left
// on the first line.
func labeled(theme *styles.Theme, label, value string, width int) string {
	avail := width - lipgloss.Width(label) - 1
	if avail < 10 {
		avail = 10
	}
	return label + " " + theme.PanelValue.Render(components.Wrap(value, avail))
}

// renderDebug shows the raw trace of msg with its size stats.
func renderDebug(theme *styles.Theme, msg transcript.Message, ok bool, width int, highlight bool) string {
	if !ok || !msg.HasRawOutput() {
		return components.EmptyBody(theme, "No raw output yet. It appears here while a reply streams.")
	}
	st := msg.RawStats()
	head := theme.PanelMeta.Render(fmt.Sprintf("%d chars | %d words | %d lines", st.Chars, st.Words, st.Lines))
	if msg.IsStreaming() {
		head += " " + styles.RenderInfo("live")
	}
	// Wrap before highlighting so escape codes never count toward width.
	body := components.Wrap(components.PrettyRaw(msg.RawOutput, false), width)
	if highlight {
		body = components.Highlight(body, components.RawLanguage(msg.RawOutput))
	}
	return head + "\n\n" + body
}

// =============================================================================
// PANEL ACTIONS
// =============================================================================

// togglePanel opens kind, or closes it when it is already open. Opening a
// panel that never loaded, or that a turn made stale, fetches it.
func (m Model) togglePanel(kind PanelKind) (tea.Model, tea.Cmd) {
	if m.panel == kind {
		return m.closePanel()
	}

	m.panel = kind
	if kind.fetches() {
		m.input.Blur()
	} else {
		m.input.Focus()
	}
	m.layout()
	m.refreshTranscript()
	m.panelView.GotoTop()

	st := m.panels[kind]
	if kind.fetches() && !st.loading && (!st.loaded || st.stale) {
		return m.loadPanel(kind, false, false)
	}
	m.refreshPanel()
	return m, nil
}

func (m Model) closePanel() (tea.Model, tea.Cmd) {
	m.panel = PanelNone
	cmd := m.input.Focus()
	m.layout()
	m.refreshTranscript()
	return m, cmd
}

// loadPanel starts a fetch for kind. Any earlier fetch still in flight is
// superseded by bumping the generation.
func (m Model) loadPanel(kind PanelKind, force, regenerate bool) (tea.Model, tea.Cmd) {
	if m.backend == nil || !kind.fetches() {
		m.refreshPanel()
		return m, nil
	}
	st := m.panels[kind]
	st.gen++
	st.loading = true
	st.err = nil
	m.refreshPanel()

	req := panelRequest{
		kind:       kind,
		gen:        st.gen,
		limit:      m.pageSize(kind),
		offset:     st.offset,
		force:      force,
		regenerate: regenerate,
	}
	return m, loadPanelCmd(m.ctx, m.backend, m.requestTimeout(), req)
}

func (m Model) handlePanelLoaded(msg PanelLoadedMsg) (tea.Model, tea.Cmd) {
	st, ok := m.panels[msg.Kind]
	if !ok || msg.Gen != st.gen {
		return m, nil
	}
	st.loading = false

	if msg.Err != nil {
		st.err = msg.Err
		logging.WithFields("component", "ui").Warn("PANEL_LOAD_FAILED",
			"panel", msg.Kind.Title(), "offset", st.offset, "error", msg.Err)
	} else {
		st.err = nil
		st.data = msg.Data
		st.loaded = true
		st.stale = false
	}

	if msg.Kind == m.panel {
		m.refreshPanel()
	}
	return m, nil
}

// refreshPanel re-renders the open panel body into its viewport.
func (m *Model) refreshPanel() {
	if m.panel == PanelNone {
		return
	}
	m.panelView.SetContent(m.panelBody(m.panel, m.panelView.Width))
}

func (m Model) panelBody(kind PanelKind, width int) string {
	if kind == PanelDebug {
		msg, ok := m.latestRaw()
		return renderDebug(m.theme, msg, ok, width, m.theme.ColorProfile != termenv.Ascii)
	}
	if m.backend == nil {
		return components.EmptyBody(m.theme, "Not connected to a backend.")
	}

	st := m.panels[kind]
	switch {
	case st.err != nil:
		return components.ErrorBody(m.theme, st.err, width)
	case !st.loaded:
		return components.LoadingBody(m.theme, "")
	}

	now := m.now()
	switch kind {
	case PanelMemories:
		items, _ := st.data.([]api.Memory)
		return renderMemories(m.theme, items, width)
	case PanelHistory:
		items, _ := st.data.([]api.HistoryMessage)
		return renderHistory(m.theme, items, width, now)
	case PanelProfile:
		data, _ := st.data.(profileData)
		return renderProfile(m.theme, data, width, now)
	case PanelInspect:
		data, _ := st.data.(api.ChromaInspection)
		return renderInspection(m.theme, data, width, now)
	}
	return ""
}

// panelStatus is the right side of the panel title row.
func (m Model) panelStatus(kind PanelKind) string {
	st := m.panels[kind]
	if st == nil {
		return ""
	}
	if st.loading {
		return "loading..."
	}
	if kind.pages() && st.loaded {
		return fmt.Sprintf("page %d", st.offset/m.pageSize(kind)+1)
	}
	return ""
}

// pageSize returns the configured page length of a paged panel.
func (m Model) pageSize(kind PanelKind) int {
	n := 0
	switch kind {
	case PanelMemories:
		n = m.cfg.API.MemoryLimit
	case PanelHistory:
		n = m.cfg.API.HistoryLimit
	}
	if n <= 0 {
		n = 12
	}
	return n
}

// panelLen returns the number of items in a paged payload.
func panelLen(data any) int {
	switch v := data.(type) {
	case []api.Memory:
		return len(v)
	case []api.HistoryMessage:
		return len(v)
	default:
		return 0
	}
}
