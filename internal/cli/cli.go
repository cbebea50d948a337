// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// cli.go - CLI parsing and command dispatch for talkydino.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
)

// Version information (can be overridden at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Command represents the CLI command to execute.
type Command int

const (
	CmdTUI Command = iota
	CmdAsk
	CmdChat
	CmdMemory
	CmdHistory
	CmdWhoAmI
	CmdHealth
	CmdProfile
	CmdInspect
	CmdCache
	CmdConfig
	CmdVersion
	CmdHelp
	CmdUnknown
)

// String returns the command name used in JSON envelopes and logs.
func (c Command) String() string {
	switch c {
	case CmdTUI:
		return "tui"
	case CmdAsk:
		return "ask"
	case CmdChat:
		return "chat"
	case CmdMemory:
		return "memory"
	case CmdHistory:
		return "history"
	case CmdWhoAmI:
		return "whoami"
	case CmdHealth:
		return "health"
	case CmdProfile:
		return "profile"
	case CmdInspect:
		return "inspect"
	case CmdCache:
		return "cache"
	case CmdConfig:
		return "config"
	case CmdVersion:
		return "version"
	case CmdHelp:
		return "help"
	default:
		return "unknown"
	}
}

// Args holds parsed CLI arguments.
type Args struct {
	// Global flags
	JSON       bool // Output in JSON format
	Quiet      bool
	Verbose    bool
	NoCache    bool   // Bypass the response cache for this run
	BaseURL    string // Overrides api.base_url
	ConfigPath string // Overrides the config file location

	// Command-specific
	Query      string
	Subcommand string
	ConfigKey  string
	ConfigVal  string

	// Raw args (remaining after flag parsing)
	Raw []string
}

const usageText = `talkydino - chat with Dino, a companion that remembers

Usage:
  talkydino                          Start the full-screen chat (default)
  talkydino ask "message"            Stream one reply to stdout
  talkydino chat                     Line-mode chat with input history
  talkydino memory list              List stored memories
  talkydino memory add <key> <value> Store a memory
  talkydino history                  Show recent messages
  talkydino whoami                   Show the backend identity
  talkydino health                   Check the backend
  talkydino profile [stats|refresh]  Show or rebuild the profile card
  talkydino inspect                  Show vector store episodes and stats
  talkydino cache [stats|clear|cleanup]
                                     Manage the response cache
  talkydino config [show|path|init|get|set]
                                     Manage configuration
  talkydino version                  Show version information

Global Flags:
  --json             Output in JSON format
  -q, --quiet        Suppress informational output
  -v, --verbose      Debug logging
  --base-url URL     Backend root URL (overrides api.base_url)
  --no-cache         Do not read or write the response cache
  --config PATH      Use a specific config file

Command Flags:
  ask      --raw                     Print the raw model output after the reply
           --no-markdown             Print the reply as plain text
  memory   list --limit N --offset N
           add --salience F --confidence F
  history  --limit N --offset N

Examples:
  talkydino ask "what do you remember about me?"
  echo "good morning" | talkydino ask
  talkydino memory add favorite_color teal --salience 0.8
  talkydino history --limit 5 --json
  talkydino config set api.base_url https://dino.example.com

Environment:
  TALKYDINO_API_URL, TALKYDINO_TOKEN, TALKYDINO_FIREBASE_API_KEY,
  TALKYDINO_CACHE, TALKYDINO_THEME, TALKYDINO_LOG_LEVEL, NO_COLOR

Version: %s
`

// PrintUsage writes the usage text to w.
func PrintUsage(w io.Writer) {
	fmt.Fprintf(w, usageText, Version)
}

// PrintVersion writes version information to w.
func PrintVersion(w io.Writer) {
	fmt.Fprintf(w, "talkydino version %s\n", Version)
	fmt.Fprintf(w, "  Git commit: %s\n", GitCommit)
	fmt.Fprintf(w, "  Build date: %s\n", BuildDate)
	fmt.Fprintf(w, "  Go version: %s\n", runtime.Version())
}

// =============================================================================
// PARSING
// =============================================================================

// Parse parses os.Args.
func Parse() (Command, Args) {
	return ParseArgs(os.Args[1:])
}

// ParseArgs parses command-line arguments and returns the command and args.
func ParseArgs(argv []string) (Command, Args) {
	remaining, parsedArgs := parseGlobalFlags(argv)

	if len(remaining) == 0 {
		return CmdTUI, parsedArgs
	}

	cmd := strings.ToLower(remaining[0])
	remaining = remaining[1:]
	parsedArgs.Raw = remaining
	if len(remaining) > 0 {
		parsedArgs.Subcommand = strings.ToLower(remaining[0])
	}

	switch cmd {
	case "tui":
		return CmdTUI, parsedArgs
	case "ask":
		// Flags are read by the ask handler; the query is the positionals
		parsedArgs.Subcommand = ""
		parsedArgs.Query = JoinPositionalArgs(NewArgParser(remaining, askBoolFlags...), 0)
		return CmdAsk, parsedArgs
	case "chat":
		return CmdChat, parsedArgs
	case "memory", "memories", "mem":
		return CmdMemory, parsedArgs
	case "history", "messages":
		return CmdHistory, parsedArgs
	case "whoami":
		return CmdWhoAmI, parsedArgs
	case "health":
		return CmdHealth, parsedArgs
	case "profile":
		return CmdProfile, parsedArgs
	case "inspect", "chroma":
		return CmdInspect, parsedArgs
	case "cache":
		return CmdCache, parsedArgs
	case "config":
		parseConfigArgs(&parsedArgs, remaining)
		return CmdConfig, parsedArgs
	case "version", "--version":
		return CmdVersion, parsedArgs
	case "help", "-h", "--help":
		return CmdHelp, parsedArgs
	default:
		parsedArgs.Query = cmd
		return CmdUnknown, parsedArgs
	}
}

// parseGlobalFlags extracts global flags from args and returns remaining args.
func parseGlobalFlags(args []string) ([]string, Args) {
	var remaining []string
	var parsedArgs Args

	for i := 0; i < len(args); i++ {
		arg := args[i]

		switch arg {
		case "--json":
			parsedArgs.JSON = true
		case "-q", "--quiet":
			parsedArgs.Quiet = true
		case "-v", "--verbose":
			parsedArgs.Verbose = true
		case "--no-cache":
			parsedArgs.NoCache = true
		case "--base-url":
			if i+1 < len(args) {
				i++
				parsedArgs.BaseURL = args[i]
			}
		case "--config":
			if i+1 < len(args) {
				i++
				parsedArgs.ConfigPath = args[i]
			}
		default:
			switch {
			case strings.HasPrefix(arg, "--base-url="):
				parsedArgs.BaseURL = strings.TrimPrefix(arg, "--base-url=")
			case strings.HasPrefix(arg, "--config="):
				parsedArgs.ConfigPath = strings.TrimPrefix(arg, "--config=")
			default:
				remaining = append(remaining, arg)
			}
		}
	}

	return remaining, parsedArgs
}

// parseConfigArgs parses config command specific arguments.
func parseConfigArgs(args *Args, remaining []string) {
	if len(remaining) > 1 {
		args.ConfigKey = remaining[1]
	}
	if len(remaining) > 2 {
		args.ConfigVal = strings.Join(remaining[2:], " ")
	}
}

// =============================================================================
// COMMAND HANDLERS
// =============================================================================

// Handler runs one subcommand.
type Handler func(ctx context.Context, args Args) error

// HandleCommand runs fn under a signal-aware context and exits with the
// code for its error. In JSON mode the error is written as an envelope on
// stdout.
func HandleCommand(cmd Command, args Args, fn Handler) {
	signals := []os.Signal{os.Interrupt, syscall.SIGTERM}
	if cmd == CmdChat {
		// chat turns an interrupt into "stop the reply"
		signals = []os.Signal{syscall.SIGTERM}
	}
	ctx, stop := signal.NotifyContext(context.Background(), signals...)
	err := fn(ctx, args)
	stop()
	if err == nil {
		return
	}
	var reported *ReportedError
	switch {
	case errors.As(err, &reported):
	case args.JSON:
		NewJSONErrorResponse(cmd.String(), err).Print()
	default:
		DisplayError(os.Stderr, err)
	}
	os.Exit(GetExitCode(err))
}

// HandleVersionCommand handles the "version" command.
func HandleVersionCommand(_ context.Context, args Args) error {
	if args.JSON {
		return NewJSONResponse("version", VersionData{
			Version:   Version,
			GitCommit: GitCommit,
			BuildDate: BuildDate,
			GoVersion: runtime.Version(),
		}).Print()
	}
	PrintVersion(os.Stdout)
	return nil
}

// HandleHelpCommand handles the "help" command.
func HandleHelpCommand(_ context.Context, _ Args) error {
	PrintUsage(os.Stdout)
	return nil
}

// HandleUnknownCommand reports an unrecognized command.
func HandleUnknownCommand(_ context.Context, args Args) error {
	reason := "see 'talkydino help'"
	if s := SuggestCommand(args.Query); s != "" {
		reason = fmt.Sprintf("did you mean '%s'?", s)
	}
	return &ValidationError{Field: "command", Value: args.Query, Reason: reason}
}
