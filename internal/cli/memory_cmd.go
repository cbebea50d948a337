// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// memory_cmd.go - The "memory" and "history" commands.
package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/jeranaias/talkydino-tui/internal/api"
	"github.com/jeranaias/talkydino-tui/internal/ui/components"
)

// =============================================================================
// MEMORY
// =============================================================================

// HandleMemoryCommand handles "memory list" (the default) and "memory add".
func HandleMemoryCommand(ctx context.Context, args Args) error {
	p := NewArgParser(args.Raw)
	switch sub := p.Subcommand(); sub {
	case "", "list", "ls":
		limit, offset, err := ParsePageFlags(p, 0)
		if err != nil {
			return err
		}
		return withEnv(ctx, args, func(env *Env) error {
			if limit == 0 {
				limit = env.Config.API.MemoryLimit
			}
			return memoryList(ctx, env, limit, offset)
		})
	case "add":
		m, err := parseMemory(p)
		if err != nil {
			return err
		}
		return withEnv(ctx, args, func(env *Env) error {
			return memoryAdd(ctx, env, m)
		})
	default:
		return ErrUnknownSubcommand("memory", sub, []string{"list", "add"})
	}
}

// parseMemory reads "add <key> <value...> [--salience F] [--confidence F]".
func parseMemory(p *ArgParser) (api.Memory, error) {
	key := p.Positional(1)
	value := JoinPositionalArgs(p, 2)
	if key == "" || value == "" {
		return api.Memory{}, ErrMissingArgument("key and value", "talkydino memory add favorite_color teal")
	}
	m := api.Memory{Key: key, Value: value, Salience: 1, Confidence: 1}
	for name, dst := range map[string]*float64{"salience": &m.Salience, "confidence": &m.Confidence} {
		v, ok, err := p.FlagFloat(name)
		if err != nil {
			return api.Memory{}, err
		}
		if !ok {
			continue
		}
		if v < 0 || v > 1 {
			return api.Memory{}, NewValidationErrorWithExample(name, p.Flag(name), "must be between 0 and 1", "--"+name+" 0.8")
		}
		*dst = v
	}
	return m, nil
}

func memoryList(ctx context.Context, env *Env, limit, offset int) error {
	items, err := env.Client.Memories(ctx, limit, offset)
	if err != nil {
		return NewCommandError("memory", "list", "could not load memories", err)
	}
	data := PageData[api.Memory]{Items: items, Count: len(items), Limit: limit, Offset: offset}
	return env.output("memory", data, func(w io.Writer) {
		printTitle(w, fmt.Sprintf("Memories (%d from %d)", len(items), offset))
		if len(items) == 0 {
			fmt.Fprintln(w, DimStyle.Render("  Dino has not stored any memories yet."))
			return
		}
		for _, m := range items {
			printMemory(w, m)
		}
		fmt.Fprintln(w)
	})
}

func memoryAdd(ctx context.Context, env *Env, m api.Memory) error {
	saved, err := env.Client.AddMemory(ctx, m)
	if err != nil {
		return NewCommandError("memory", "add", "could not store the memory", err)
	}
	return env.output("memory", saved, func(w io.Writer) {
		fmt.Fprintf(w, "%s Stored %s\n", RenderStatus("ok"), saved.Key)
		printMemory(w, saved)
	})
}

func printMemory(w io.Writer, m api.Memory) {
	fmt.Fprintf(w, "  %s %s\n", LabelStyle.Render(components.Truncate(m.Key, 17)), ValueStyle.Render(components.OneLine(m.Value)))
	fmt.Fprintf(w, "  %s %s\n", LabelStyle.Render(""),
		DimStyle.Render(fmt.Sprintf("salience %.2f  confidence %.2f", m.Salience, m.Confidence)))
}

// =============================================================================
// HISTORY
// =============================================================================

// HandleHistoryCommand handles the "history" command.
func HandleHistoryCommand(ctx context.Context, args Args) error {
	p := NewArgParser(args.Raw)
	limit, offset, err := ParsePageFlags(p, 0)
	if err != nil {
		return err
	}
	return withEnv(ctx, args, func(env *Env) error {
		if limit == 0 {
			limit = env.Config.API.HistoryLimit
		}
		items, err := env.Client.Messages(ctx, limit, offset)
		if err != nil {
			return NewCommandError("history", "list", "could not load recent messages", err)
		}
		data := PageData[api.HistoryMessage]{Items: items, Count: len(items), Limit: limit, Offset: offset}
		return env.output("history", data, func(w io.Writer) {
			printTitle(w, fmt.Sprintf("Recent messages (%d)", len(items)))
			if len(items) == 0 {
				fmt.Fprintln(w, DimStyle.Render("  No messages yet."))
				return
			}
			now := time.Now()
			for _, m := range items {
				label := UserStyle.Render("you")
				if m.Role != "user" {
					label = DinoStyle.Render("dino")
				}
				fmt.Fprintf(w, "  %s %s  %s\n", DimStyle.Render(components.FormatClock(m.Timestamp.Time, now)),
					label, components.OneLine(m.Content))
			}
			fmt.Fprintln(w)
		})
	})
}
