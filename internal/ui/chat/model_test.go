// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/talkydino-tui/internal/api"
	"github.com/jeranaias/talkydino-tui/internal/cache"
	"github.com/jeranaias/talkydino-tui/internal/config"
	"github.com/jeranaias/talkydino-tui/internal/session"
	"github.com/jeranaias/talkydino-tui/internal/transcript"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

type fakeBackend struct {
	mu          sync.Mutex
	memories    []api.Memory
	memErr      error
	history     []api.HistoryMessage
	who         api.WhoAmI
	profile     api.Profile
	statsErr    error
	refreshed   int
	invalidated []string
	offsets     []int
}

func (f *fakeBackend) Memories(_ context.Context, limit, offset int) ([]api.Memory, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.offsets = append(f.offsets, offset)
	return f.memories, f.memErr
}

func (f *fakeBackend) Messages(_ context.Context, limit, offset int) ([]api.HistoryMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.history, nil
}

func (f *fakeBackend) WhoAmI(context.Context) (api.WhoAmI, error) {
	return f.who, nil
}

func (f *fakeBackend) InspectChroma(context.Context) (api.ChromaInspection, error) {
	return api.ChromaInspection{}, nil
}

func (f *fakeBackend) ProfileCard(context.Context) (api.Profile, error) {
	return f.profile, nil
}

func (f *fakeBackend) ProfileStats(context.Context) (api.ProfileStats, error) {
	if f.statsErr != nil {
		return api.ProfileStats{}, f.statsErr
	}
	return api.ProfileStats{TotalFacts: 3}, nil
}

func (f *fakeBackend) RefreshProfileCard(context.Context) (api.Profile, error) {
	f.mu.Lock()
	f.refreshed++
	f.mu.Unlock()
	return f.profile, nil
}

func (f *fakeBackend) Invalidate(dataTypes ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.invalidated = append(f.invalidated, dataTypes...)
}

func staticStreamer(body string) session.Streamer {
	return session.StreamerFunc(func(context.Context, string) (io.ReadCloser, error) {
		return io.NopCloser(strings.NewReader(body)), nil
	})
}

const helloBody = "data: \"He\"\n\ndata: \"llo\"\n\ndata: [DONE]\n\n"

type testOpts struct {
	body    string
	fail    bool
	backend Backend
	demo    bool
	width   int
	copied  *string
}

func newTestModel(t *testing.T, o testOpts) Model {
	t.Helper()

	streamer := staticStreamer(o.body)
	if o.fail {
		streamer = session.StreamerFunc(func(context.Context, string) (io.ReadCloser, error) {
			return nil, errors.New("connection refused")
		})
	}
	ctrl := session.New(streamer, session.Options{})

	cfg := config.Default()
	cfg.UI.Markdown = false
	cfg.UI.Theme = "dark"

	clip := func(s string) error {
		if o.copied != nil {
			*o.copied = s
		}
		return nil
	}

	m := New(Options{
		Controller: ctrl,
		Backend:    o.backend,
		Config:     cfg,
		UserName:   "tester",
		Demo:       o.demo,
		Clipboard:  clip,
	})

	width := o.width
	if width == 0 {
		width = 120
	}
	m, _ = update(m, tea.WindowSizeMsg{Width: width, Height: 40})
	return m
}

func update(m Model, msg tea.Msg) (Model, tea.Cmd) {
	next, cmd := m.Update(msg)
	return next.(Model), cmd
}

func keyMsg(t tea.KeyType) tea.KeyMsg {
	return tea.KeyMsg{Type: t}
}

func runeKey(r rune) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}}
}

// runTurn runs a turn synchronously and feeds the result back.
func runTurn(t *testing.T, m Model, text string) Model {
	t.Helper()
	m.streaming = true
	msg := m.submitCmd(text)()
	require.IsType(t, TurnCompleteMsg{}, msg)
	m, _ = update(m, msg)
	return m
}

// loadPanel runs the fetch command of a panel key and applies the result.
func openPanel(t *testing.T, m Model, k tea.KeyMsg) Model {
	t.Helper()
	m, cmd := update(m, k)
	require.NotNil(t, cmd)
	m, _ = update(m, cmd())
	return m
}

// =============================================================================
// VIEW TESTS
// =============================================================================

func TestModel_ViewBeforeResize(t *testing.T) {
	ctrl := session.New(staticStreamer(""), session.Options{})
	m := New(Options{Controller: ctrl, Config: config.Default()})
	assert.Equal(t, "Loading...", m.View())
}

func TestModel_ViewShowsHeaderAndWelcome(t *testing.T) {
	m := newTestModel(t, testOpts{})
	view := m.View()
	assert.Contains(t, view, "TalkyDino")
	assert.Contains(t, view, "tester")
	assert.Contains(t, view, "Say hi to Dino")
}

func TestModel_DemoBadge(t *testing.T) {
	m := newTestModel(t, testOpts{demo: true})
	assert.Contains(t, m.View(), "DEMO")
}

func TestModel_HelpOverlayToggles(t *testing.T) {
	m := newTestModel(t, testOpts{})
	m, _ = update(m, keyMsg(tea.KeyF1))
	assert.Contains(t, m.View(), "F1 or esc to close")

	m, _ = update(m, keyMsg(tea.KeyEsc))
	assert.NotContains(t, m.View(), "F1 or esc to close")
}

// =============================================================================
// TURN TESTS
// =============================================================================

func TestModel_SubmitStartsTurn(t *testing.T) {
	m := newTestModel(t, testOpts{body: helloBody})
	m.input.SetValue("hi")

	m, cmd := update(m, keyMsg(tea.KeyEnter))
	assert.NotNil(t, cmd)
	assert.True(t, m.IsStreaming())
	assert.Equal(t, "", m.input.Value())
	assert.Equal(t, session.StateAwaitingConnection, m.state)
}

func TestModel_BlankSubmitIgnored(t *testing.T) {
	m := newTestModel(t, testOpts{})
	m.input.SetValue("   ")

	m, cmd := update(m, keyMsg(tea.KeyEnter))
	assert.Nil(t, cmd)
	assert.False(t, m.IsStreaming())
}

func TestModel_SubmitWhileStreamingRefused(t *testing.T) {
	m := newTestModel(t, testOpts{body: helloBody})
	m.input.SetValue("hi")
	m, _ = update(m, keyMsg(tea.KeyEnter))

	m.input.SetValue("again")
	m, _ = update(m, keyMsg(tea.KeyEnter))
	assert.Contains(t, m.StatusMessage(), "still replying")
	assert.Equal(t, "again", m.input.Value())
}

func TestModel_TurnCompleteRendersReply(t *testing.T) {
	m := newTestModel(t, testOpts{body: helloBody})
	m = runTurn(t, m, "hi")

	assert.False(t, m.IsStreaming())
	assert.Equal(t, session.StateFinalized, m.state)
	view := m.View()
	assert.Contains(t, view, "Hello")
	assert.Contains(t, view, "You")
	assert.Contains(t, view, "Dino")
}

func TestModel_FallbackTurnSetsStatus(t *testing.T) {
	m := newTestModel(t, testOpts{fail: true})
	m = runTurn(t, m, "hi")

	assert.Equal(t, session.StateErrorFallback, m.state)
	assert.Contains(t, m.StatusMessage(), "offline reply")
}

func TestModel_SessionUpdateStateChangeRenders(t *testing.T) {
	m := newTestModel(t, testOpts{})
	m.tr.AppendUser("typed elsewhere")

	m, _ = update(m, SessionUpdateMsg{Update: session.Update{State: session.StateIdle}})
	assert.Contains(t, m.View(), "typed elsewhere")
}

func TestModel_StreamTickStopsWhenIdle(t *testing.T) {
	m := newTestModel(t, testOpts{})
	_, cmd := update(m, StreamTickMsg{})
	assert.Nil(t, cmd)

	m.streaming = true
	_, cmd = update(m, StreamTickMsg{})
	assert.NotNil(t, cmd)
}

func TestModel_SubmitFailedBusy(t *testing.T) {
	m := newTestModel(t, testOpts{})
	m.streaming = true

	m, _ = update(m, SubmitFailedMsg{Err: session.ErrBusy})
	assert.False(t, m.IsStreaming(), "controller is idle, so the flag resets")
	assert.Contains(t, m.StatusMessage(), "still replying")
}

func TestModel_ClearEmptiesTranscript(t *testing.T) {
	m := newTestModel(t, testOpts{body: helloBody})
	m = runTurn(t, m, "hi")
	require.Equal(t, 2, m.tr.Len())

	m, _ = update(m, keyMsg(tea.KeyCtrlL))
	assert.Equal(t, 0, m.tr.Len())
	assert.Equal(t, "Chat cleared", m.StatusMessage())
	assert.Contains(t, m.View(), "Say hi to Dino")
}

func TestModel_CopyRawOutput(t *testing.T) {
	var copied string
	body := `data: {"content":"ok","raw_output":"trace-line"}` + "\n\ndata: [DONE]\n\n"
	m := newTestModel(t, testOpts{body: body, copied: &copied})
	m = runTurn(t, m, "hi")

	m, cmd := update(m, keyMsg(tea.KeyCtrlY))
	require.NotNil(t, cmd)
	m, _ = update(m, cmd())
	assert.Equal(t, "trace-line", copied)
	assert.Equal(t, "Copied 10 chars", m.StatusMessage())
}

func TestModel_CopyNothing(t *testing.T) {
	m := newTestModel(t, testOpts{})
	m, _ = update(m, keyMsg(tea.KeyCtrlY))
	assert.Equal(t, "Nothing to copy yet", m.StatusMessage())
}

func TestModel_StatusClearOnlyCurrent(t *testing.T) {
	m := newTestModel(t, testOpts{})
	m.setStatus("first")
	m.setStatus("second")

	m, _ = update(m, StatusClearMsg{ID: m.statusID - 1})
	assert.Equal(t, "second", m.StatusMessage())
	m, _ = update(m, StatusClearMsg{ID: m.statusID})
	assert.Equal(t, "", m.StatusMessage())
}

// =============================================================================
// PANEL TESTS
// =============================================================================

func TestModel_MemoriesPanelLoads(t *testing.T) {
	fb := &fakeBackend{memories: []api.Memory{{Key: "color", Value: "green", Salience: 1, Confidence: 1}}}
	m := newTestModel(t, testOpts{backend: fb})

	m = openPanel(t, m, keyMsg(tea.KeyCtrlO))
	assert.Equal(t, PanelMemories, m.Panel())
	assert.True(t, m.split)
	view := m.View()
	assert.Contains(t, view, "Memories")
	assert.Contains(t, view, "green")
}

func TestModel_PanelErrorThenRetry(t *testing.T) {
	fb := &fakeBackend{memErr: errors.New("boom")}
	m := newTestModel(t, testOpts{backend: fb})

	m = openPanel(t, m, keyMsg(tea.KeyCtrlO))
	view := m.View()
	assert.Contains(t, view, "boom")
	assert.Contains(t, view, "press r to retry")

	fb.mu.Lock()
	fb.memErr = nil
	fb.memories = []api.Memory{{Key: "pet", Value: "dog"}}
	fb.mu.Unlock()

	m = openPanel(t, m, runeKey('r'))
	assert.Contains(t, m.View(), "dog")
	assert.Contains(t, fb.invalidated, cache.TypeMemories)
}

func TestModel_StalePanelResultDropped(t *testing.T) {
	fb := &fakeBackend{memories: []api.Memory{{Key: "pet", Value: "dog"}}}
	m := newTestModel(t, testOpts{backend: fb})
	m = openPanel(t, m, keyMsg(tea.KeyCtrlO))

	m, _ = update(m, PanelLoadedMsg{Kind: PanelMemories, Gen: 0, Data: []api.Memory{{Key: "old", Value: "stale"}}})
	view := m.View()
	assert.Contains(t, view, "dog")
	assert.NotContains(t, view, "stale")
}

func TestModel_PanelPaging(t *testing.T) {
	page := make([]api.Memory, 12)
	for i := range page {
		page[i] = api.Memory{Key: "k", Value: "v"}
	}
	fb := &fakeBackend{memories: page}
	m := newTestModel(t, testOpts{backend: fb})
	m = openPanel(t, m, keyMsg(tea.KeyCtrlO))

	m = openPanel(t, m, runeKey('n'))
	assert.Equal(t, []int{0, 12}, fb.offsets)
	assert.Equal(t, "page 2", m.panelStatus(PanelMemories))

	m = openPanel(t, m, runeKey('p'))
	assert.Equal(t, []int{0, 12, 0}, fb.offsets)

	// A short page has no next page.
	fb.mu.Lock()
	fb.memories = page[:3]
	fb.mu.Unlock()
	m = openPanel(t, m, runeKey('r'))
	_, cmd := update(m, runeKey('n'))
	assert.Nil(t, cmd)
}

func TestModel_EscClosesPanelWhenIdle(t *testing.T) {
	m := newTestModel(t, testOpts{backend: &fakeBackend{}})
	m = openPanel(t, m, keyMsg(tea.KeyCtrlO))

	m, _ = update(m, keyMsg(tea.KeyEsc))
	assert.Equal(t, PanelNone, m.Panel())
	assert.True(t, m.input.Focused())
}

func TestModel_EscPrefersStream(t *testing.T) {
	m := newTestModel(t, testOpts{backend: &fakeBackend{}})
	m = openPanel(t, m, keyMsg(tea.KeyCtrlO))
	m.streaming = true

	m, _ = update(m, keyMsg(tea.KeyEsc))
	assert.Equal(t, PanelMemories, m.Panel())
}

func TestModel_ToggleKeyClosesPanel(t *testing.T) {
	m := newTestModel(t, testOpts{backend: &fakeBackend{}})
	m = openPanel(t, m, keyMsg(tea.KeyCtrlO))

	m, _ = update(m, keyMsg(tea.KeyCtrlO))
	assert.Equal(t, PanelNone, m.Panel())
}

func TestModel_NarrowPanelReplacesTranscript(t *testing.T) {
	m := newTestModel(t, testOpts{backend: &fakeBackend{}, width: 80})
	m = openPanel(t, m, keyMsg(tea.KeyCtrlO))

	assert.False(t, m.split)
	assert.Equal(t, 80, m.panelWidth)
	assert.NotContains(t, m.View(), "Say hi to Dino")
}

func TestModel_ProfileStatsFailureIsNotFatal(t *testing.T) {
	fb := &fakeBackend{
		profile: api.Profile{Sections: map[string]map[string]json.RawMessage{
			"basics": {"name": json.RawMessage(`{"value":"Rex","confidence":0.9}`)},
			"extra":  {"nickname": json.RawMessage(`"Rexy"`)},
		}},
		statsErr: errors.New("stats down"),
	}
	m := newTestModel(t, testOpts{backend: fb})
	m = openPanel(t, m, keyMsg(tea.KeyCtrlP))

	view := m.View()
	assert.Contains(t, view, "stats unavailable")
	assert.Contains(t, view, "Rex")
	assert.NotContains(t, view, "EXTRA", "a section with no decodable fields has no heading")

	m = openPanel(t, m, runeKey('g'))
	assert.Equal(t, 1, fb.refreshed)
	assert.Contains(t, fb.invalidated, cache.TypeProfile)
}

func TestModel_DebugPanelShowsRawOutput(t *testing.T) {
	body := `data: {"content":"ok","raw_output":"trace-line"}` + "\n\ndata: [DONE]\n\n"
	m := newTestModel(t, testOpts{body: body})
	m = runTurn(t, m, "hi")

	m, cmd := update(m, keyMsg(tea.KeyCtrlD))
	assert.Nil(t, cmd, "raw output panel has nothing to fetch")
	view := m.View()
	assert.Contains(t, view, "Raw output")
	assert.Contains(t, view, "trace-line")
	assert.True(t, m.input.Focused(), "input stays live beside the raw output")
}

func TestModel_TurnMarksPanelsStale(t *testing.T) {
	fb := &fakeBackend{memories: []api.Memory{{Key: "pet", Value: "dog"}}}
	m := newTestModel(t, testOpts{body: helloBody, backend: fb})
	m = openPanel(t, m, keyMsg(tea.KeyCtrlO))

	m.streaming = true
	msg := m.submitCmd("hi")()
	m, cmd := update(m, msg)
	require.NotNil(t, cmd, "open panel refetches after the turn")
	m, _ = update(m, cmd())
	assert.False(t, m.panels[PanelMemories].stale)
	assert.Equal(t, []int{0, 0}, fb.offsets)
}

func TestModel_NoBackendPanel(t *testing.T) {
	m := newTestModel(t, testOpts{})
	m, cmd := update(m, keyMsg(tea.KeyCtrlO))
	assert.Nil(t, cmd)
	assert.Contains(t, m.View(), "Not connected")
}

// =============================================================================
// STARTUP AND CONFIG TESTS
// =============================================================================

func TestModel_StartupSeedsHistory(t *testing.T) {
	fb := &fakeBackend{
		who: api.WhoAmI{UID: "u-123"},
		history: []api.HistoryMessage{
			{Role: "user", Content: "earlier question"},
			{Role: "assistant", Content: "earlier answer"},
		},
	}
	m := newTestModel(t, testOpts{backend: fb})

	cmd := m.startupCmd()
	require.NotNil(t, cmd)
	m, _ = update(m, cmd())

	assert.Equal(t, "u-123", m.UserName())
	msgs := m.tr.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, transcript.RoleUser, msgs[0].Role)
	assert.True(t, msgs[1].Remote)
	assert.Contains(t, m.View(), "earlier answer")
}

func TestModel_StartupSkipsHistoryWhenTranscriptHasMessages(t *testing.T) {
	fb := &fakeBackend{history: []api.HistoryMessage{{Role: "user", Content: "old"}}}
	m := newTestModel(t, testOpts{backend: fb})
	m.tr.AppendUser("new")

	m, _ = update(m, StartupLoadedMsg{History: fb.history})
	assert.Equal(t, 1, m.tr.Len())
}

func TestModel_DemoSkipsStartup(t *testing.T) {
	m := newTestModel(t, testOpts{backend: &fakeBackend{}, demo: true})
	assert.Nil(t, m.startupCmd())
}

func TestModel_ConfigReload(t *testing.T) {
	m := newTestModel(t, testOpts{})

	m, _ = update(m, ConfigReloadedMsg{Err: errors.New("bad toml")})
	assert.Contains(t, m.StatusMessage(), "Config reload failed")

	cfg := config.Default()
	cfg.UI.Theme = "dark"
	cfg.UI.Markdown = true
	m, _ = update(m, ConfigReloadedMsg{Config: cfg})
	assert.NotNil(t, m.md)
	assert.Equal(t, "Config reloaded", m.StatusMessage())

	cfg2 := config.Default()
	cfg2.UI.Markdown = false
	m, _ = update(m, ConfigReloadedMsg{Config: cfg2})
	assert.Nil(t, m.md)
}

func TestModel_QuitCancels(t *testing.T) {
	m := newTestModel(t, testOpts{})
	m, cmd := update(m, keyMsg(tea.KeyCtrlC))
	require.NotNil(t, cmd)
	assert.Equal(t, "", m.View())
}
