// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// chat.go - The "chat" command: a line-mode conversation with Dino.
//
// Commands:
//
//	/help        Show commands
//	/clear       Forget the local transcript
//	/raw         Print the raw output of the last reply
//	/quit, /exit Leave the chat
//
// Ctrl+C stops a reply in progress; at the prompt it leaves the chat.
package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/peterh/liner"

	"github.com/jeranaias/talkydino-tui/internal/config"
	"github.com/jeranaias/talkydino-tui/internal/session"
	"github.com/jeranaias/talkydino-tui/internal/stream"
	"github.com/jeranaias/talkydino-tui/internal/ui/components"
	"github.com/jeranaias/talkydino-tui/internal/util"
)

// =============================================================================
// INPUT WITH HISTORY
// =============================================================================

// ChatCLI provides input history and line editing for interactive chat.
type ChatCLI struct {
	line        *liner.State
	historyFile string
}

// NewChatCLI creates a ChatCLI whose history lives in the config directory.
func NewChatCLI() *ChatCLI {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)

	configDir, err := config.ConfigDir()
	if err != nil {
		configDir = os.TempDir()
	}

	cli := &ChatCLI{
		line:        line,
		historyFile: filepath.Join(configDir, "chat_history"),
	}
	cli.LoadHistory()
	return cli
}

// LoadHistory loads prompt history from file.
func (c *ChatCLI) LoadHistory() {
	if f, err := os.Open(c.historyFile); err == nil {
		c.line.ReadHistory(f)
		f.Close()
	}
}

// ReadInput reads a line of input with the given prompt.
func (c *ChatCLI) ReadInput(prompt string) (string, error) {
	input, err := c.line.Prompt(prompt)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(input) != "" {
		c.line.AppendHistory(input)
	}
	return input, nil
}

// SaveHistory persists prompt history with owner-only permissions.
func (c *ChatCLI) SaveHistory() {
	var buf bytes.Buffer
	if _, err := c.line.WriteHistory(&buf); err != nil {
		return
	}
	util.AtomicWriteFile(c.historyFile, buf.Bytes(), 0600, 0700)
}

// Close saves history and restores the terminal.
func (c *ChatCLI) Close() {
	c.SaveHistory()
	c.line.Close()
}

// =============================================================================
// CHAT HANDLER
// =============================================================================

// HandleChatCommand handles the "chat" command.
func HandleChatCommand(ctx context.Context, args Args) error {
	if args.JSON {
		return NewValidationError("flag", "--json", "chat is interactive; use ask for JSON output")
	}
	return withEnv(ctx, args, func(env *Env) error {
		input := NewChatCLI()
		defer input.Close()
		return runChat(ctx, env, input.ReadInput)
	})
}

// runChat is the read-send-print loop. read returns io.EOF or
// liner.ErrPromptAborted to end the chat.
func runChat(ctx context.Context, env *Env, read func(prompt string) (string, error)) error {
	w := &deltaWriter{w: env.Out}
	ctrl := session.New(env.Client, session.Options{
		OnEvent: func(u session.Update) {
			if u.Event != nil && u.Event.Kind == stream.KindContentDelta {
				w.write(u.Event.Text)
			}
		},
		Invalidate: env.Client.InvalidateTurn,
	})

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt)
	defer func() {
		signal.Stop(sigCh)
		close(sigCh)
	}()
	go func() {
		for range sigCh {
			ctrl.Cancel()
		}
	}()

	if !env.Args.Quiet {
		printChatWelcome(env)
	}

	var lastRaw string
	for {
		if ctx.Err() != nil {
			return nil
		}
		line, err := read("you> ")
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, liner.ErrPromptAborted) {
				fmt.Fprintln(env.Out)
				return nil
			}
			return NewCommandError("chat", "read", "could not read input", err)
		}

		text := strings.TrimSpace(line)
		switch {
		case text == "":
			continue
		case text == "/quit" || text == "/exit":
			return nil
		case text == "/help":
			printChatHelp(env.Out)
			continue
		case text == "/clear":
			ctrl.Clear()
			env.notice("%s", DimStyle.Render("Transcript cleared."))
			continue
		case text == "/raw":
			if lastRaw == "" {
				env.notice("%s", DimStyle.Render("No raw output yet."))
			} else {
				fmt.Fprintln(env.Out, components.PrettyRaw(lastRaw, ColorsEnabled()))
			}
			continue
		case strings.HasPrefix(text, "/"):
			env.notice("%s unknown command %s (try /help)", WarningStyle.Render("[?]"), text)
			continue
		}

		fmt.Fprint(env.Out, DinoStyle.Render("dino> "))
		w.reset()
		res, err := ctrl.Submit(ctx, text)
		if err != nil {
			fmt.Fprintln(env.Out)
			DisplayError(env.Err, err)
			continue
		}
		w.finish(res.Text)
		lastRaw = res.RawOutput

		if res.Cancelled {
			env.notice("%s", WarningStyle.Render("[stopped]"))
		} else if res.Err != nil {
			env.notice("%s backend unreachable; this is an offline reply", WarningStyle.Render("[OFFLINE]"))
		}
	}
}

func printChatWelcome(env *Env) {
	printTitle(env.Out, "TalkyDino chat")
	printKV(env.Out, "Backend", env.Client.BaseURL())
	if env.Session != nil {
		name := env.Session.Identity().Name()
		if env.Session.IsDemo() {
			name += " " + WarningStyle.Render("(demo)")
		}
		printKV(env.Out, "Signed in as", name)
	}
	fmt.Fprintln(env.Out, DimStyle.Render("  /help for commands, Ctrl+C to stop a reply or leave"))
	fmt.Fprintln(env.Out)
}

func printChatHelp(w io.Writer) {
	fmt.Fprintln(w, SectionStyle.Render("Commands"))
	printKV(w, "/help", "show this list")
	printKV(w, "/clear", "forget the local transcript")
	printKV(w, "/raw", "print the raw output of the last reply")
	printKV(w, "/quit", "leave the chat")
}
