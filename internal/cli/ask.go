// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// ask.go - The "ask" command: send one message and print the reply.
//
// On a terminal the reply is rendered as markdown once it completes; piped
// output streams the raw text as it arrives.
package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/jeranaias/talkydino-tui/internal/session"
	"github.com/jeranaias/talkydino-tui/internal/stream"
	"github.com/jeranaias/talkydino-tui/internal/ui/components"
)

// askBoolFlags never take a value.
var askBoolFlags = []string{"raw", "no-markdown"}

// maxStdinBytes bounds a message read from a pipe.
const maxStdinBytes = 64 * 1024

// =============================================================================
// ASK HANDLER
// =============================================================================

// HandleAskCommand handles the "ask" command.
func HandleAskCommand(ctx context.Context, args Args) error {
	p := NewArgParser(args.Raw, askBoolFlags...)

	message := args.Query
	if message == "" && !IsTTY() {
		data, err := io.ReadAll(io.LimitReader(bufio.NewReader(os.Stdin), maxStdinBytes))
		if err != nil {
			return NewCommandError("ask", "read", "could not read stdin", err)
		}
		message = strings.TrimSpace(string(data))
	}
	if strings.TrimSpace(message) == "" {
		return ErrMissingArgument("message", `talkydino ask "hello Dino"`)
	}

	return withEnv(ctx, args, func(env *Env) error {
		markdown := env.Config.UI.Markdown && !p.BoolFlag("no-markdown") && IsStdoutTTY()
		return runAsk(ctx, env, message, askOptions{
			markdown: markdown,
			raw:      p.BoolFlag("raw"),
		})
	})
}

type askOptions struct {
	markdown bool // buffer and render once complete
	raw      bool // print the raw model output afterwards
}

// runAsk runs one turn through a session controller.
func runAsk(ctx context.Context, env *Env, message string, opts askOptions) error {
	live := !env.Args.JSON && !opts.markdown
	w := &deltaWriter{w: env.Out}

	ctrl := session.New(env.Client, session.Options{
		OnEvent: func(u session.Update) {
			if live && u.Event != nil && u.Event.Kind == stream.KindContentDelta {
				w.write(u.Event.Text)
			}
		},
		Invalidate: env.Client.InvalidateTurn,
	})

	if opts.markdown {
		env.notice("%s", DimStyle.Render("Dino is thinking..."))
	}

	res, err := ctrl.Submit(ctx, message)
	if err != nil {
		return NewCommandError("ask", "send", "could not start the reply", err)
	}
	fallback := res.Err != nil && !res.Cancelled

	if env.Args.JSON {
		data := AskData{
			Message:    message,
			Reply:      res.Text,
			RawOutput:  res.RawOutput,
			Fallback:   fallback,
			Cancelled:  res.Cancelled,
			DurationMs: res.Duration.Milliseconds(),
		}
		if res.Err != nil {
			data.Error = res.Err.Error()
		}
		return NewJSONResponse("ask", data).Write(env.Out)
	}

	switch {
	case opts.markdown:
		fmt.Fprintln(env.Out, components.NewMarkdown(env.Config.UI.Theme).Render(res.Text, RenderWidth(env.Config.UI.WordWrap)))
	default:
		w.finish(res.Text)
	}

	if res.Cancelled {
		env.notice("%s", WarningStyle.Render("[stopped]"))
	} else if fallback {
		env.notice("%s backend unreachable (%v); this is an offline reply", WarningStyle.Render("[OFFLINE]"), res.Err)
	}
	if opts.raw && res.RawOutput != "" {
		fmt.Fprintln(env.Out)
		fmt.Fprintln(env.Out, SectionStyle.Render("Raw output"))
		fmt.Fprintln(env.Out, components.PrettyRaw(res.RawOutput, ColorsEnabled()))
	}
	return nil
}

// =============================================================================
// STREAMED OUTPUT
// =============================================================================

// deltaWriter prints content deltas as they arrive and reconciles the
// printed text with the final reply.
type deltaWriter struct {
	w       io.Writer
	mu      sync.Mutex
	printed strings.Builder
}

func (d *deltaWriter) write(text string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.printed.WriteString(text)
	io.WriteString(d.w, text)
}

// reset forgets the printed text before a new turn.
func (d *deltaWriter) reset() {
	d.mu.Lock()
	d.printed.Reset()
	d.mu.Unlock()
}

// finish prints whatever the final text adds to the streamed text. When the
// two diverge (a fallback, or a final text from the done frame) the final
// text is printed on its own line.
func (d *deltaWriter) finish(final string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	rest, ok := strings.CutPrefix(final, d.printed.String())
	if !ok {
		if d.printed.Len() > 0 {
			io.WriteString(d.w, "\n")
		}
		rest = final
	}
	io.WriteString(d.w, rest)
	if !strings.HasSuffix(final, "\n") {
		io.WriteString(d.w, "\n")
	}
}
