// talkydino - A terminal chat with Dino, the companion that remembers.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later
package main

import (
	"context"

	"github.com/jeranaias/talkydino-tui/internal/cli"
	"github.com/jeranaias/talkydino-tui/internal/ui"
)

// Version information (set at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

func init() {
	// Sync version info with cli package
	cli.Version = Version
	cli.GitCommit = GitCommit
	cli.BuildDate = BuildDate
}

func main() {
	cmd, args := cli.Parse()

	var handler cli.Handler
	switch cmd {
	case cli.CmdTUI:
		handler = runTUI
	case cli.CmdAsk:
		handler = cli.HandleAskCommand
	case cli.CmdChat:
		handler = cli.HandleChatCommand
	case cli.CmdMemory:
		handler = cli.HandleMemoryCommand
	case cli.CmdHistory:
		handler = cli.HandleHistoryCommand
	case cli.CmdWhoAmI:
		handler = cli.HandleWhoAmICommand
	case cli.CmdHealth:
		handler = cli.HandleHealthCommand
	case cli.CmdProfile:
		handler = cli.HandleProfileCommand
	case cli.CmdInspect:
		handler = cli.HandleInspectCommand
	case cli.CmdCache:
		handler = cli.HandleCacheCommand
	case cli.CmdConfig:
		handler = cli.HandleConfigCommand
	case cli.CmdVersion:
		handler = cli.HandleVersionCommand
	case cli.CmdHelp:
		handler = cli.HandleHelpCommand
	default:
		handler = cli.HandleUnknownCommand
	}
	cli.HandleCommand(cmd, args, handler)
}

// runTUI starts the full-screen chat.
func runTUI(ctx context.Context, args cli.Args) error {
	if args.JSON {
		return cli.NewValidationError("flag", "--json", "the TUI has no JSON output; use ask")
	}
	env, err := cli.NewEnv(ctx, args)
	if err != nil {
		return err
	}
	defer env.Close()

	return ui.Run(ctx, ui.Options{
		Client:     env.Client,
		Session:    env.Session,
		Config:     env.Config,
		ConfigPath: env.ConfigPath,
	})
}
