// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// cache_cmd.go - The "cache" command.
//
// Subcommands:
//
//	stats    Show entry counts and size (default)
//	clear    Remove every talkydino entry
//	cleanup  Remove expired and corrupted entries
package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/jeranaias/talkydino-tui/internal/cache"
	"github.com/jeranaias/talkydino-tui/internal/config"
)

// HandleCacheCommand handles the "cache" command. It needs no sign-in.
func HandleCacheCommand(_ context.Context, args Args) error {
	sub := NewArgParser(args.Raw).Subcommand()
	switch sub {
	case "", "stats", "clear", "cleanup":
	default:
		return ErrUnknownSubcommand("cache", sub, []string{"stats", "clear", "cleanup"})
	}

	cfg, _, err := LoadConfig(args)
	if err != nil {
		return err
	}
	m, closeFn := openCacheForAdmin(cfg)
	defer closeFn()

	env := &Env{Args: args, Config: cfg, Out: os.Stdout, Err: os.Stderr}
	switch sub {
	case "clear":
		return cacheAction(env, "clear", m)
	case "cleanup":
		return cacheAction(env, "cleanup", m)
	default:
		return cacheStats(env, m)
	}
}

// openCacheForAdmin opens the configured store even when caching is turned
// off, so stale data can still be cleared. Returns nil for the "none"
// backend.
func openCacheForAdmin(cfg *config.Config) (*cache.Manager, func()) {
	c := *cfg
	c.Cache.Enabled = true
	m := OpenCache(&c)
	if m == nil {
		return nil, func() {}
	}
	return m, func() { m.Close() }
}

func cacheStats(env *Env, m *cache.Manager) error {
	cc := env.Config.Cache
	data := CacheStatsData{
		Enabled: cc.Enabled,
		Backend: cc.Backend,
		TTLSecs: cc.TTLSecs,
	}
	if cc.Backend == "sqlite" || cc.Backend == "" {
		data.Path = cc.Path
	}
	if m != nil {
		data.Stats = m.Stats()
	}

	return env.output("cache", data, func(w io.Writer) {
		printTitle(w, "Response cache")
		enabled := "ok"
		if !data.Enabled {
			enabled = "off"
		}
		printKV(w, "Enabled", RenderStatus(enabled))
		printKV(w, "Backend", data.Backend)
		if data.Path != "" {
			printKV(w, "Path", data.Path)
		}
		printKV(w, "TTL", fmt.Sprintf("%ds", data.TTLSecs))
		if m == nil {
			fmt.Fprintln(w)
			return
		}
		if data.Backend == "memory" {
			fmt.Fprintln(w, DimStyle.Render("  The memory backend only lives as long as one run."))
		}
		fmt.Fprintln(w, SectionStyle.Render("Entries"))
		printKV(w, "Total", data.Stats.TotalEntries)
		printKV(w, "Valid", data.Stats.ValidEntries)
		printKV(w, "Expired", data.Stats.ExpiredEntries)
		printKV(w, "Size", formatBytes(int64(data.Stats.TotalBytes)))
		fmt.Fprintln(w)
	})
}

func cacheAction(env *Env, action string, m *cache.Manager) error {
	removed := 0
	if m != nil {
		if action == "clear" {
			removed = m.Clear()
		} else {
			removed = m.Cleanup()
		}
	}
	data := CacheActionData{Action: action, Removed: removed}
	return env.output("cache", data, func(w io.Writer) {
		fmt.Fprintf(w, "%s %s removed %d entries\n", RenderStatus("ok"), action, removed)
	})
}
