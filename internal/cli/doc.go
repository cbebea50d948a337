// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli provides command-line parsing and the non-interactive
// commands of talkydino.
//
// Running talkydino with no command starts the full-screen chat. The other
// commands reuse the same config, sign-in, cache and backend client, so a
// reply streamed by "ask" is handled exactly like one in the TUI.
//
// # Key Types
//
//   - Command: Enumeration of all available CLI commands
//   - Args: Parsed command-line arguments with global and command-specific flags
//   - Env: Loaded config, session, cache and client for one command run
//   - JSONResponse: The envelope written by every command under --json
//
// # Usage
//
//	cmd, args := cli.Parse()
//	switch cmd {
//	case cli.CmdAsk:
//	    cli.HandleCommand(cmd, args, cli.HandleAskCommand)
//	// ... other commands
//	}
//
// # Commands Overview
//
//   - ask: Stream one reply to stdout (reads stdin when piped)
//   - chat: Line-mode chat with input history
//   - memory, history: List and add memories, show recent messages
//   - whoami, health: Identity and backend status
//   - profile, inspect: Profile card and vector store debugging
//   - cache, config: Local state management
//
// Exit codes are listed in errors.go.
package cli
