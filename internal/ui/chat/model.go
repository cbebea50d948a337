// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"errors"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/talkydino-tui/internal/config"
	"github.com/jeranaias/talkydino-tui/internal/logging"
	"github.com/jeranaias/talkydino-tui/internal/session"
	"github.com/jeranaias/talkydino-tui/internal/transcript"
	"github.com/jeranaias/talkydino-tui/internal/ui/components"
	"github.com/jeranaias/talkydino-tui/internal/ui/styles"
)

// =============================================================================
// LAYOUT CONSTANTS
// =============================================================================

const (
	headerHeight = 1
	inputHeight  = 2 // top border + input line
	statusHeight = 1

	// splitMinWidth is the narrowest terminal that shows a panel next to
	// the transcript instead of over it.
	splitMinWidth = 100
	minPanelWidth = 36

	defaultRequestTimeout = 10 * time.Second
	statusTimeout         = 4 * time.Second
)

// =============================================================================
// CHAT MODEL
// =============================================================================

// Options configures the chat Model.
type Options struct {
	// Context parents every backend request made by the view.
	Context    context.Context
	Controller *session.Controller
	// Backend serves the panels and startup loads. Nil disables both.
	Backend  Backend
	Config   *config.Config
	Theme    *styles.Theme
	UserName string
	Demo     bool
	BaseURL  string
	// Clipboard replaces the system clipboard. Intended for tests.
	Clipboard func(string) error
	Now       func() time.Time
}

// Model is the Bubble Tea model for the chat view.
type Model struct {
	ctx     context.Context
	ctrl    *session.Controller
	tr      *transcript.Transcript
	backend Backend
	cfg     *config.Config
	theme   *styles.Theme
	md      *components.Markdown
	keys    KeyMap
	help    help.Model
	clip    func(string) error
	now     func() time.Time

	// Dimensions
	width      int
	height     int
	bodyHeight int
	chatWidth  int
	panelWidth int
	split      bool

	// Components
	viewport  viewport.Model
	input     textinput.Model
	spinner   components.Spinner
	statusBar *components.StatusBar
	throttle  *renderThrottle

	// Identity
	userName string
	demo     bool
	baseURL  string

	// Turn state
	state     session.State
	streaming bool

	// Rendered finalized messages by id, valid for renderedWidth.
	rendered      map[string]string
	renderedWidth int

	// Panels
	panel     PanelKind
	panels    map[PanelKind]*panelState
	panelView viewport.Model

	statusMsg string
	statusID  int
	showHelp  bool
	quitting  bool
}

// New creates the chat model around a session controller.
func New(opts Options) Model {
	ctx := opts.Context
	if ctx == nil {
		ctx = context.Background()
	}
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}
	theme := opts.Theme
	if theme == nil {
		theme = styles.NewTheme(cfg.UI.Theme)
	}
	clip := opts.Clipboard
	if clip == nil {
		clip = copyToClipboard
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Say something to Dino..."
	ti.CharLimit = 4096
	ti.PromptStyle = theme.InputPrompt
	ti.PlaceholderStyle = theme.InputPlaceholder
	ti.Focus()

	vp := viewport.New(80, 20)
	vp.SetContent("")

	m := Model{
		ctx:       ctx,
		ctrl:      opts.Controller,
		tr:        opts.Controller.Transcript(),
		backend:   opts.Backend,
		cfg:       cfg,
		theme:     theme,
		keys:      DefaultKeyMap(),
		help:      help.New(),
		clip:      clip,
		now:       now,
		viewport:  vp,
		panelView: viewport.New(40, 10),
		input:     ti,
		spinner:   components.NewSpinner("Dino is thinking"),
		statusBar: components.NewStatusBar(theme),
		throttle:  newRenderThrottle(),
		userName:  opts.UserName,
		demo:      opts.Demo,
		baseURL:   opts.BaseURL,
		state:     opts.Controller.State(),
		rendered:  make(map[string]string),
		panels:    make(map[PanelKind]*panelState),
	}
	if cfg.UI.Markdown {
		m.md = components.NewMarkdown(cfg.UI.Theme)
	}
	for _, k := range []PanelKind{PanelMemories, PanelHistory, PanelDebug, PanelProfile, PanelInspect} {
		m.panels[k] = &panelState{}
	}
	if cfg.UI.ShowRawOutput {
		m.panel = PanelDebug
	}
	return m
}

// =============================================================================
// BUBBLE TEA INTERFACE
// =============================================================================

// Init starts the cursor blink and the startup loads.
func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.startupCmd())
}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		return m.handleResize(msg)

	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.MouseMsg:
		var cmd tea.Cmd
		if m.panel != PanelNone && !m.split {
			m.panelView, cmd = m.panelView.Update(msg)
		} else {
			m.viewport, cmd = m.viewport.Update(msg)
		}
		return m, cmd

	case SessionUpdateMsg:
		return m.handleSessionUpdate(msg)

	case TurnCompleteMsg:
		return m.handleTurnComplete(msg)

	case SubmitFailedMsg:
		return m.handleSubmitFailed(msg)

	case StreamTickMsg:
		return m.handleStreamTick(msg)

	case StartupLoadedMsg:
		return m.handleStartup(msg)

	case PanelLoadedMsg:
		return m.handlePanelLoaded(msg)

	case ConfigReloadedMsg:
		return m.handleConfigReloaded(msg)

	case CopyResultMsg:
		if msg.Err != nil {
			return m, m.setStatus("Copy failed: " + msg.Err.Error())
		}
		return m, m.setStatus(copiedStatus(msg.Chars))

	case StatusClearMsg:
		if msg.ID == m.statusID {
			m.statusMsg = ""
		}
		return m, nil
	}

	var cmds []tea.Cmd
	var cmd tea.Cmd
	m.spinner, cmd = m.spinner.Update(msg)
	cmds = append(cmds, cmd)
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

// =============================================================================
// RESIZE AND LAYOUT
// =============================================================================

func (m Model) handleResize(msg tea.WindowSizeMsg) (tea.Model, tea.Cmd) {
	m.width = msg.Width
	m.height = msg.Height
	m.theme.SetSize(m.width, m.height)
	m.layout()
	m.refreshTranscript()
	m.refreshPanel()
	return m, nil
}

// layout sizes the transcript, the open panel and the input. A panel sits
// beside the transcript on wide terminals and replaces it on narrow ones.
func (m *Model) layout() {
	m.bodyHeight = max(m.height-headerHeight-inputHeight-statusHeight, 3)

	m.split = m.panel != PanelNone && m.width >= splitMinWidth
	m.chatWidth = m.width
	m.panelWidth = 0
	switch {
	case m.split:
		m.panelWidth = max(m.width*2/5, minPanelWidth)
		m.chatWidth = m.width - m.panelWidth
	case m.panel != PanelNone:
		m.panelWidth = m.width
	}

	m.viewport.Width = max(m.chatWidth, 1)
	m.viewport.Height = m.bodyHeight

	// Frame border and padding take 4 columns; border, title row, gap and
	// footer take 5 rows.
	m.panelView.Width = max(m.panelWidth-4, 10)
	m.panelView.Height = max(m.bodyHeight-5, 1)

	// Container padding (2) + prompt (2) + cursor (1)
	m.input.Width = max(m.width-5, 10)
}

// messageWidth is the width available to one transcript message.
func (m Model) messageWidth() int {
	return max(m.chatWidth-2, 20)
}

// =============================================================================
// KEY HANDLING
// =============================================================================

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.ctrl.Cancel()
		m.quitting = true
		return m, tea.Quit
	case key.Matches(msg, m.keys.Help):
		m.showHelp = !m.showHelp
		return m, nil
	}

	if m.showHelp {
		if key.Matches(msg, m.keys.Cancel) {
			m.showHelp = false
		}
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.Clear):
		return m.clearTranscript()
	case key.Matches(msg, m.keys.Copy):
		return m.copyRawOutput()
	case key.Matches(msg, m.keys.Memories):
		return m.togglePanel(PanelMemories)
	case key.Matches(msg, m.keys.History):
		return m.togglePanel(PanelHistory)
	case key.Matches(msg, m.keys.Debug):
		return m.togglePanel(PanelDebug)
	case key.Matches(msg, m.keys.Profile):
		return m.togglePanel(PanelProfile)
	case key.Matches(msg, m.keys.Inspect):
		return m.togglePanel(PanelInspect)
	case key.Matches(msg, m.keys.Cancel):
		// A running reply is stopped before any panel closes.
		if m.streaming {
			return m.cancelStream()
		}
		if m.panel != PanelNone {
			return m.closePanel()
		}
		return m, nil
	}

	// Data panels take the keyboard. The raw output panel leaves the input
	// live so a reply can be watched while chatting.
	if m.panel.fetches() {
		return m.handlePanelKey(msg)
	}

	if key.Matches(msg, m.keys.Submit) {
		return m.submit()
	}
	if m.scroll(msg) {
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// handlePanelKey handles keys while a panel has focus.
func (m Model) handlePanelKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	kind := m.panel
	st := m.panels[kind]

	switch {
	case key.Matches(msg, m.keys.Retry) && kind.fetches():
		return m.loadPanel(kind, true, false)

	case key.Matches(msg, m.keys.Regenerate) && kind == PanelProfile:
		if st.loading {
			return m, nil
		}
		return m.loadPanel(kind, true, true)

	case key.Matches(msg, m.keys.NextPage) && kind.pages():
		size := m.pageSize(kind)
		if st.loading || !st.loaded || panelLen(st.data) < size {
			return m, nil
		}
		st.offset += size
		return m.loadPanel(kind, false, false)

	case key.Matches(msg, m.keys.PrevPage) && kind.pages():
		if st.loading || st.offset == 0 {
			return m, nil
		}
		st.offset = max(st.offset-m.pageSize(kind), 0)
		return m.loadPanel(kind, false, false)

	default:
		m.scroll(msg)
	}
	return m, nil
}

// scroll moves the open panel, or the transcript when no panel is open,
// and reports whether msg was a scroll key.
func (m *Model) scroll(msg tea.KeyMsg) bool {
	vp := &m.viewport
	if m.panel != PanelNone {
		vp = &m.panelView
	}
	switch {
	case key.Matches(msg, m.keys.Up):
		vp.LineUp(1)
	case key.Matches(msg, m.keys.Down):
		vp.LineDown(1)
	case key.Matches(msg, m.keys.PageUp):
		vp.ViewUp()
	case key.Matches(msg, m.keys.PageDown):
		vp.ViewDown()
	default:
		return false
	}
	return true
}

// =============================================================================
// TURNS
// =============================================================================

// submit sends the input as a new turn. A second submission while a reply
// streams is refused and the text stays in the input.
func (m Model) submit() (tea.Model, tea.Cmd) {
	text := m.input.Value()
	if isBlank(text) {
		return m, nil
	}
	if m.streaming || m.ctrl.Busy() {
		return m, m.setStatus("Dino is still replying. Press esc to stop.")
	}

	m.input.Reset()
	m.streaming = true
	m.state = session.StateAwaitingConnection
	m.spinner.SetMessage("Dino is thinking")
	m.viewport.GotoBottom()

	return m, tea.Batch(m.submitCmd(text), m.spinner.Start(), streamTickCmd())
}

// submitCmd runs one turn on the controller. Progress arrives as
// SessionUpdateMsg while it runs.
func (m Model) submitCmd(text string) tea.Cmd {
	ctx, ctrl := m.ctx, m.ctrl
	return func() tea.Msg {
		res, err := ctrl.Submit(ctx, text)
		if err != nil {
			return SubmitFailedMsg{Err: err}
		}
		return TurnCompleteMsg{Result: res}
	}
}

func (m Model) handleSessionUpdate(msg SessionUpdateMsg) (tea.Model, tea.Cmd) {
	u := msg.Update
	m.state = u.State
	if u.State == session.StateStreaming {
		m.spinner.SetMessage("Dino is typing")
	}

	// State changes render at once; stream events are batched.
	if u.Event == nil {
		m.refreshTranscript()
		return m, nil
	}
	m.throttle.Mark()
	if m.throttle.Due() {
		m.refreshTranscript()
	}
	return m, nil
}

func (m Model) handleStreamTick(_ StreamTickMsg) (tea.Model, tea.Cmd) {
	if m.throttle.Pending() > 0 {
		m.refreshTranscript()
	}
	if !m.streaming {
		return m, nil
	}
	return m, streamTickCmd()
}

func (m Model) handleTurnComplete(msg TurnCompleteMsg) (tea.Model, tea.Cmd) {
	res := msg.Result
	m.streaming = false
	m.state = res.State
	m.spinner.Stop()
	m.refreshTranscript()

	switch {
	case res.Cancelled:
		return m, m.setStatus("Reply stopped")
	case res.State == session.StateErrorFallback:
		if m.demo {
			return m, nil
		}
		return m, m.setStatus("Backend unreachable. Showing an offline reply.")
	}

	// The controller already dropped the cached scopes; mark the panels
	// so they refetch.
	for _, k := range []PanelKind{PanelMemories, PanelHistory, PanelInspect} {
		if st := m.panels[k]; st.loaded {
			st.stale = true
		}
	}
	if m.panel != PanelNone && m.panels[m.panel].stale {
		return m.loadPanel(m.panel, false, false)
	}
	return m, nil
}

func (m Model) handleSubmitFailed(msg SubmitFailedMsg) (tea.Model, tea.Cmd) {
	if !m.ctrl.Busy() {
		m.streaming = false
		m.spinner.Stop()
		m.state = m.ctrl.State()
	}
	switch {
	case errors.Is(msg.Err, session.ErrEmptyInput):
		return m, nil
	case errors.Is(msg.Err, session.ErrBusy):
		return m, m.setStatus("Dino is still replying. Press esc to stop.")
	default:
		return m, m.setStatus("Send failed: " + msg.Err.Error())
	}
}

func (m Model) cancelStream() (tea.Model, tea.Cmd) {
	if !m.ctrl.Cancel() {
		return m, nil
	}
	m.spinner.SetMessage("Stopping")
	return m, m.setStatus("Stopping reply...")
}

func (m Model) clearTranscript() (tea.Model, tea.Cmd) {
	m.ctrl.Clear()
	m.rendered = make(map[string]string)
	m.refreshTranscript()
	return m, m.setStatus("Chat cleared")
}

// copyRawOutput copies the latest raw trace, or the latest reply when the
// backend sent no trace.
func (m Model) copyRawOutput() (tea.Model, tea.Cmd) {
	text := ""
	if msg, ok := m.latestRaw(); ok && msg.HasRawOutput() {
		text = msg.RawOutput
	} else if msg, ok := m.tr.LastAssistant(); ok {
		text = msg.Content
	}
	if text == "" {
		return m, m.setStatus("Nothing to copy yet")
	}
	return m, copyCmd(m.clip, text)
}

// =============================================================================
// TRANSCRIPT RENDERING
// =============================================================================

// refreshTranscript rebuilds the viewport from the transcript. Finalized
// messages are rendered once per width.
func (m *Model) refreshTranscript() {
	m.throttle.Flushed()

	width := m.messageWidth()
	if width != m.renderedWidth || len(m.rendered) > 2*transcript.MaxMessages {
		m.rendered = make(map[string]string)
		m.renderedWidth = width
	}

	msgs := m.tr.Messages()
	if len(msgs) == 0 {
		m.viewport.SetContent(m.welcome(width))
		m.viewport.GotoTop()
		if m.panel == PanelDebug {
			m.refreshPanel()
		}
		return
	}

	opts := components.MessageOptions{
		Width:         width,
		Markdown:      m.md,
		ShowRawBadge:  true,
		ShowTimestamp: true,
		Now:           m.now(),
	}
	parts := make([]string, 0, len(msgs))
	for _, msg := range msgs {
		if out, ok := m.rendered[msg.ID]; ok && msg.Finalized {
			parts = append(parts, out)
			continue
		}
		out := components.RenderMessage(m.theme, msg, opts)
		if msg.Finalized {
			m.rendered[msg.ID] = out
		}
		parts = append(parts, out)
	}

	atBottom := m.viewport.AtBottom()
	m.viewport.SetContent(joinMessages(parts))
	if atBottom || m.streaming {
		m.viewport.GotoBottom()
	}

	if m.panel == PanelDebug {
		m.refreshPanel()
	}
}

// latestRaw returns the newest assistant message that is streaming or
// carries a raw trace.
func (m Model) latestRaw() (transcript.Message, bool) {
	msgs := m.tr.Messages()
	for i := len(msgs) - 1; i >= 0; i-- {
		msg := msgs[i]
		if msg.Role == transcript.RoleAssistant && (msg.HasRawOutput() || msg.IsStreaming()) {
			return msg, true
		}
	}
	return transcript.Message{}, false
}

// =============================================================================
// STARTUP
// =============================================================================

func (m Model) handleStartup(msg StartupLoadedMsg) (tea.Model, tea.Cmd) {
	log := logging.WithFields("component", "ui")

	if msg.WhoAmIErr != nil {
		log.Warn("WHOAMI_FAILED", "error", msg.WhoAmIErr)
	} else if msg.WhoAmI != nil && msg.WhoAmI.UID != "" {
		m.userName = msg.WhoAmI.UID
	}

	switch {
	case msg.HistoryErr != nil:
		log.Warn("HISTORY_SEED_FAILED", "error", msg.HistoryErr)
	case len(msg.History) > 0 && m.tr.Len() == 0:
		m.tr.AppendHistory(historyToTranscript(msg.History))
		log.Info("HISTORY_SEEDED", "messages", len(msg.History))
		m.refreshTranscript()
		m.viewport.GotoBottom()
	}
	return m, nil
}

// =============================================================================
// CONFIG RELOAD
// =============================================================================

// handleConfigReloaded applies the UI settings of a reloaded config. Page
// sizes take effect on the next panel load.
func (m Model) handleConfigReloaded(msg ConfigReloadedMsg) (tea.Model, tea.Cmd) {
	if msg.Err != nil {
		return m, m.setStatus("Config reload failed: " + msg.Err.Error())
	}
	if msg.Config == nil {
		return m, nil
	}

	prev := m.cfg
	m.cfg = msg.Config

	themeChanged := prev.UI.Theme != m.cfg.UI.Theme
	if themeChanged {
		m.theme = styles.NewTheme(m.cfg.UI.Theme)
		m.theme.SetSize(m.width, m.height)
		m.statusBar = components.NewStatusBar(m.theme)
		m.input.PromptStyle = m.theme.InputPrompt
		m.input.PlaceholderStyle = m.theme.InputPlaceholder
	}
	switch {
	case !m.cfg.UI.Markdown:
		m.md = nil
	case m.md == nil || themeChanged:
		m.md = components.NewMarkdown(m.cfg.UI.Theme)
	}

	m.rendered = make(map[string]string)
	m.refreshTranscript()
	m.refreshPanel()
	return m, m.setStatus("Config reloaded")
}

// =============================================================================
// ACCESSORS
// =============================================================================

// Panel returns the open panel.
func (m Model) Panel() PanelKind {
	return m.panel
}

// IsStreaming reports whether a submitted turn is still running.
func (m Model) IsStreaming() bool {
	return m.streaming
}

// UserName returns the name shown in the header.
func (m Model) UserName() string {
	return m.userName
}

// StatusMessage returns the transient status text.
func (m Model) StatusMessage() string {
	return m.statusMsg
}
