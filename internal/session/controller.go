// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/text/unicode/norm"

	"github.com/jeranaias/talkydino-tui/internal/logging"
	"github.com/jeranaias/talkydino-tui/internal/stream"
	"github.com/jeranaias/talkydino-tui/internal/transcript"
)

var (
	// ErrBusy is returned when a turn is already in flight.
	ErrBusy = errors.New("a reply is still streaming")

	// ErrEmptyInput is returned for blank submissions.
	ErrEmptyInput = errors.New("message is empty")
)

// FallbackText is the local reply used when the backend cannot be reached.
func FallbackText(input string) string {
	return fmt.Sprintf("I received your message: \"%s\". This is a demo response since the backend is not currently available. In a real setup, this would connect to your Talky Dino API.", input)
}

// Streamer opens the response stream for a message.
type Streamer interface {
	StreamChat(ctx context.Context, message string) (io.ReadCloser, error)
}

// StreamerFunc adapts a function to Streamer.
type StreamerFunc func(ctx context.Context, message string) (io.ReadCloser, error)

func (f StreamerFunc) StreamChat(ctx context.Context, message string) (io.ReadCloser, error) {
	return f(ctx, message)
}

// Update is sent to Options.OnEvent on every state or transcript change.
// Event is nil for pure state changes.
type Update struct {
	MessageID string
	State     State
	Event     *stream.Event
}

// Result is the outcome of a finished turn.
type Result struct {
	UserID      string
	AssistantID string
	State       State
	Text        string
	RawOutput   string
	Cancelled   bool
	Duration    time.Duration
	// Err is the transport or cancellation error, nil for a clean reply.
	Err error
}

// Options configures a Controller.
type Options struct {
	// OnEvent is called synchronously from the streaming goroutine.
	OnEvent func(Update)
	// OnComplete is called after each turn, once the controller is idle.
	OnComplete func(Result)
	// Invalidate is called after a reply completes so cached history and
	// memories are refetched.
	Invalidate func()
	// Fallback builds the reply text used on transport failure.
	Fallback func(input string) string
	// Transcript seeds the controller; nil creates an empty one.
	Transcript *transcript.Transcript
}

// =============================================================================
// CONTROLLER
// =============================================================================

// Controller drives chat turns against a Streamer.
type Controller struct {
	streamer Streamer
	tr       *transcript.Transcript
	opts     Options

	busy atomic.Bool

	mu     sync.Mutex
	state  State
	cancel context.CancelFunc
}

// New creates a Controller.
func New(streamer Streamer, opts Options) *Controller {
	tr := opts.Transcript
	if tr == nil {
		tr = transcript.New()
	}
	if opts.Fallback == nil {
		opts.Fallback = FallbackText
	}
	return &Controller{streamer: streamer, tr: tr, opts: opts}
}

// Transcript returns the transcript owned by the controller.
func (c *Controller) Transcript() *transcript.Transcript {
	return c.tr
}

// State returns the state of the current or last turn.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Busy reports whether a turn is in flight.
func (c *Controller) Busy() bool {
	return c.busy.Load()
}

// Cancel aborts the in-flight turn, if any. The partial reply is kept and
// marked cancelled.
func (c *Controller) Cancel() bool {
	c.mu.Lock()
	cancel := c.cancel
	c.mu.Unlock()
	if cancel == nil {
		return false
	}
	cancel()
	return true
}

// Clear cancels any in-flight turn and empties the transcript.
func (c *Controller) Clear() {
	c.Cancel()
	c.tr.Clear()
	c.mu.Lock()
	if !c.busy.Load() {
		c.state = StateIdle
	}
	c.mu.Unlock()
	c.notify(Update{State: c.State()})
}

// Submit runs one turn and blocks until it reaches a terminal state.
//
// Blank input returns ErrEmptyInput and a concurrent submission returns
// ErrBusy; neither touches the transcript. Transport failures are not
// returned as errors: the reply becomes the fallback text and Result.Err
// records the cause.
func (c *Controller) Submit(ctx context.Context, input string) (Result, error) {
	text := norm.NFC.String(strings.TrimSpace(input))
	if text == "" {
		return Result{}, ErrEmptyInput
	}
	if !c.busy.CompareAndSwap(false, true) {
		return Result{}, ErrBusy
	}

	start := time.Now()
	user := c.tr.AppendUser(text)
	bot, err := c.tr.AppendPlaceholder()
	if err != nil {
		c.busy.Store(false)
		return Result{}, fmt.Errorf("failed to start reply: %w", err)
	}

	turnCtx, cancel := context.WithCancel(logging.WithTurnID(ctx, bot.ID))
	defer cancel()
	c.mu.Lock()
	c.cancel = cancel
	c.mu.Unlock()

	res := Result{UserID: user.ID, AssistantID: bot.ID}
	log := logging.FromContext(turnCtx)
	log.Info("CHAT_TURN_START", "chars", len([]rune(text)))

	c.setState(StateAwaitingConnection, bot.ID)
	res = c.run(turnCtx, text, res)
	res.Duration = time.Since(start)

	log.Info("CHAT_TURN_END", "state", res.State.String(), "cancelled", res.Cancelled,
		"duration", res.Duration, "error", res.Err)

	c.mu.Lock()
	c.cancel = nil
	c.mu.Unlock()
	c.busy.Store(false)

	if res.State == StateFinalized && !res.Cancelled && c.opts.Invalidate != nil {
		c.opts.Invalidate()
	}
	if c.opts.OnComplete != nil {
		c.opts.OnComplete(res)
	}
	return res, nil
}

// run streams the reply and returns the terminal result.
func (c *Controller) run(ctx context.Context, text string, res Result) Result {
	log := logging.FromContext(ctx)

	body, err := c.streamer.StreamChat(ctx, text)
	if err != nil {
		if ctx.Err() != nil {
			return c.cancelled(res, ctx.Err())
		}
		log.Warn("CHAT_STREAM_OPEN_FAILED", "error", err)
		return c.fallback(res, text, err)
	}
	defer body.Close()

	// Closing the body unblocks a pending read when the turn is cancelled.
	stop := context.AfterFunc(ctx, func() { body.Close() })
	defer stop()

	c.setState(StateStreaming, res.AssistantID)

	err = stream.Decode(ctx, body, func(ev stream.Event) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if ev.Kind == stream.KindMalformed {
			log.Debug("CHAT_FRAME_MALFORMED", "payload", truncate(ev.Text, 200))
		}
		if err := c.tr.Apply(res.AssistantID, ev); err != nil {
			return err
		}
		c.notify(Update{MessageID: res.AssistantID, State: StateStreaming, Event: &ev})
		return nil
	})

	switch {
	case ctx.Err() != nil:
		return c.cancelled(res, ctx.Err())
	case errors.Is(err, transcript.ErrUnknownMessage):
		// Transcript cleared mid-stream.
		return c.cancelled(res, context.Canceled)
	case err != nil:
		log.Warn("CHAT_STREAM_FAILED", "error", err)
		return c.fallback(res, text, err)
	}

	msg, err := c.tr.Finalize(res.AssistantID)
	if errors.Is(err, transcript.ErrFinalized) {
		msg, _ = c.tr.Get(res.AssistantID)
	} else if err != nil {
		return c.cancelled(res, err)
	}
	res.State = StateFinalized
	res.Text = msg.Content
	res.RawOutput = msg.RawOutput
	c.setState(StateFinalized, res.AssistantID)
	return res
}

func (c *Controller) fallback(res Result, text string, cause error) Result {
	msg, err := c.tr.Fail(res.AssistantID, c.opts.Fallback(text))
	if err != nil {
		return c.cancelled(res, cause)
	}
	res.State = StateErrorFallback
	res.Text = msg.Content
	res.Err = cause
	c.setState(StateErrorFallback, res.AssistantID)
	return res
}

func (c *Controller) cancelled(res Result, cause error) Result {
	res.State = StateFinalized
	res.Cancelled = true
	res.Err = cause
	if msg, err := c.tr.Cancel(res.AssistantID); err == nil {
		res.Text = msg.Content
		res.RawOutput = msg.RawOutput
	}
	c.setState(StateFinalized, res.AssistantID)
	return res
}

func (c *Controller) setState(s State, id string) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
	c.notify(Update{MessageID: id, State: s})
}

func (c *Controller) notify(u Update) {
	if c.opts.OnEvent != nil {
		c.opts.OnEvent(u)
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
