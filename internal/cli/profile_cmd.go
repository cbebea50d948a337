// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// profile_cmd.go - The "profile" and "inspect" commands.
package cli

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jeranaias/talkydino-tui/internal/api"
	"github.com/jeranaias/talkydino-tui/internal/ui/components"
)

// =============================================================================
// PROFILE
// =============================================================================

// HandleProfileCommand handles "profile" (card and stats), "profile stats"
// and "profile refresh".
func HandleProfileCommand(ctx context.Context, args Args) error {
	sub := NewArgParser(args.Raw).Subcommand()
	switch sub {
	case "", "show", "stats", "refresh":
	default:
		return ErrUnknownSubcommand("profile", sub, []string{"show", "stats", "refresh"})
	}

	return withEnv(ctx, args, func(env *Env) error {
		var data ProfileData
		switch sub {
		case "stats":
			stats, err := env.Client.ProfileStats(ctx)
			if err != nil {
				return NewCommandError("profile", "stats", "could not load profile stats", err)
			}
			data.Stats = &stats
		case "refresh":
			env.notice("%s", DimStyle.Render("Rebuilding the profile card..."))
			p, err := env.Client.RefreshProfileCard(ctx)
			if err != nil {
				return NewCommandError("profile", "refresh", "could not rebuild the profile card", err)
			}
			data.Profile = &p
		default:
			if err := loadProfile(ctx, env.Client, &data); err != nil {
				return err
			}
		}
		return env.output("profile", data, func(w io.Writer) {
			printProfile(w, data)
		})
	})
}

// loadProfile fetches the card and its stats together. The card is
// required; missing stats are reported in StatsErr.
func loadProfile(ctx context.Context, client *api.Client, data *ProfileData) error {
	var (
		card     api.Profile
		stats    api.ProfileStats
		statsErr error
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		card, err = client.ProfileCard(gctx)
		return err
	})
	g.Go(func() error {
		stats, statsErr = client.ProfileStats(gctx)
		return nil
	})
	if err := g.Wait(); err != nil {
		return NewCommandError("profile", "show", "could not load the profile card", err)
	}
	data.Profile = &card
	if statsErr != nil {
		data.StatsErr = statsErr.Error()
	} else {
		data.Stats = &stats
	}
	return nil
}

func printProfile(w io.Writer, data ProfileData) {
	printTitle(w, "Profile")
	if s := data.Stats; s != nil {
		printKV(w, "Facts", s.TotalFacts)
		printKV(w, "Version", string(s.Version))
		printKV(w, "Tokens", s.Tokens)
		if !s.LastUpdated.IsZero() {
			printKV(w, "Updated", components.FormatClock(s.LastUpdated.Time, time.Now()))
		}
	} else if data.StatsErr != "" {
		fmt.Fprintf(w, "  %s stats unavailable: %s\n", RenderStatus("warn"), data.StatsErr)
	}

	p := data.Profile
	if p == nil {
		fmt.Fprintln(w)
		return
	}
	names := p.SectionNames()
	if len(names) == 0 {
		fmt.Fprintln(w, DimStyle.Render("  Dino is still getting to know you."))
		return
	}
	for _, section := range names {
		fmt.Fprintln(w, SectionStyle.Render(strings.ToUpper(api.HumanizeName(section))))
		for _, f := range p.Fields(section) {
			if f.IsValue() {
				printKV(w, api.HumanizeName(f.Name), fmt.Sprintf("%s %s", f.Value, confidence(f.Confidence)))
				continue
			}
			items := make([]string, 0, len(f.Items))
			for _, it := range f.Items {
				items = append(items, it.Name)
			}
			printKV(w, api.HumanizeName(f.Name), strings.Join(items, ", "))
		}
	}
	fmt.Fprintln(w)
}

func confidence(c float64) string {
	if c <= 0 {
		return ""
	}
	return DimStyle.Render(fmt.Sprintf("(%.0f%%)", c*100))
}

// =============================================================================
// INSPECT
// =============================================================================

// HandleInspectCommand shows the vector store episodes and collection stats.
func HandleInspectCommand(ctx context.Context, args Args) error {
	return withEnv(ctx, args, func(env *Env) error {
		ins, err := env.Client.InspectChroma(ctx)
		if err != nil {
			return NewCommandError("inspect", "load", "could not inspect the vector store", err)
		}
		return env.output("inspect", ins, func(w io.Writer) {
			printTitle(w, "Vector store")
			printKV(w, "Collection", ins.Stats.CollectionName)
			printKV(w, "Mode", ins.Stats.ChromaMode)
			printKV(w, "Episodes", ins.Stats.TotalEpisodes)
			ready := "warn"
			if ins.Stats.Ready() {
				ready = "ok"
			}
			printKV(w, "Ready", RenderStatus(ready))

			if len(ins.Episodes) == 0 {
				fmt.Fprintln(w, DimStyle.Render("  No episodes stored yet."))
				return
			}
			width := RenderWidth(0) - 8
			now := time.Now()
			for _, ep := range ins.Episodes {
				fmt.Fprintln(w, SectionStyle.Render(fmt.Sprintf("Round %d", ep.RoundNumber))+" "+
					DimStyle.Render(components.FormatClock(ep.Timestamp.Time, now)))
				fmt.Fprintf(w, "  %s %s\n", UserStyle.Render("you "), components.Truncate(components.OneLine(ep.UserMessage), width))
				fmt.Fprintf(w, "  %s %s\n", DinoStyle.Render("dino"), components.Truncate(components.OneLine(ep.AIResponse), width))
				if ep.Similarity != nil {
					fmt.Fprintf(w, "  %s\n", DimStyle.Render(fmt.Sprintf("similarity %.3f", *ep.Similarity)))
				}
			}
			fmt.Fprintln(w)
		})
	})
}
