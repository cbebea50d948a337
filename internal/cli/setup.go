// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// setup.go - Shared startup for commands that talk to the backend.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jeranaias/talkydino-tui/internal/api"
	"github.com/jeranaias/talkydino-tui/internal/auth"
	"github.com/jeranaias/talkydino-tui/internal/cache"
	"github.com/jeranaias/talkydino-tui/internal/config"
	"github.com/jeranaias/talkydino-tui/internal/logging"
)

// =============================================================================
// ENVIRONMENT
// =============================================================================

// Env is what a command needs to run: the effective config, the cache, the
// signed-in session and a client bound to both.
type Env struct {
	Args       Args
	Config     *config.Config
	ConfigPath string
	Cache      *cache.Manager
	Session    *auth.Session
	Client     *api.Client

	// Out receives command output, Err receives notices and warnings.
	Out io.Writer
	Err io.Writer
}

// LoadConfig loads the config named by --config, or the default file, and
// applies the global flag overrides. A broken default file is reported on
// stderr and replaced by defaults; a broken --config file is an error.
func LoadConfig(args Args) (*config.Config, string, error) {
	var (
		cfg  *config.Config
		path = args.ConfigPath
		err  error
	)
	if path != "" {
		cfg, err = config.LoadFromPath(path)
		if err != nil {
			return nil, path, NewCommandError("config", "load", path, err)
		}
	} else {
		cfg, err = config.Load()
		if cfg == nil {
			return nil, "", NewCommandError("config", "load", "invalid configuration", err)
		}
		if err != nil && !args.Quiet {
			fmt.Fprintf(os.Stderr, "%s %v (using defaults)\n", WarningStyle.Render("[WARN]"), err)
		}
		path, _ = config.ConfigPathTOML()
	}

	applyOverrides(cfg, args)
	return cfg, path, nil
}

func applyOverrides(cfg *config.Config, args Args) {
	if u := strings.TrimRight(strings.TrimSpace(args.BaseURL), "/"); u != "" {
		cfg.API.BaseURL = u
	}
	if args.NoCache {
		cfg.Cache.Enabled = false
	}
	if args.Verbose {
		cfg.Log.Level = "debug"
	}
}

// OpenCache builds the response cache from cfg. A sqlite database that
// cannot be opened degrades to the in-memory backend. Returns nil when
// caching is off.
func OpenCache(cfg *config.Config) *cache.Manager {
	if !cfg.Cache.Enabled {
		return nil
	}
	log := logging.WithFields("component", "cache")

	var backend cache.Backend
	switch cfg.Cache.Backend {
	case "none":
		return nil
	case "memory":
		backend = cache.NewMemoryBackend()
	default:
		db, err := cache.OpenSQLite(cfg.Cache.Path)
		if err != nil {
			log.Warn("CACHE_SQLITE_UNAVAILABLE", "path", cfg.Cache.Path, "error", err)
			backend = cache.NewMemoryBackend()
		} else {
			backend = db
		}
	}

	m := cache.NewManager(backend).
		WithTTL(cfg.Cache.TTL()).
		WithMaxBytes(cfg.Cache.MaxBytes).
		WithLogger(log)
	if n := m.Cleanup(); n > 0 {
		log.Debug("CACHE_STARTUP_CLEANUP", "removed", n)
	}
	return m
}

// NewEnv loads config, starts logging, opens the cache and signs in.
// The caller must Close the returned Env.
func NewEnv(ctx context.Context, args Args) (*Env, error) {
	cfg, path, err := LoadConfig(args)
	if err != nil {
		return nil, err
	}
	if err := logging.Setup(cfg.Log.File, cfg.Log.Level); err != nil && !args.Quiet {
		fmt.Fprintf(os.Stderr, "%s %v\n", WarningStyle.Render("[WARN]"), err)
	}

	env := &Env{
		Args:       args,
		Config:     cfg,
		ConfigPath: path,
		Cache:      OpenCache(cfg),
		Out:        os.Stdout,
		Err:        os.Stderr,
	}

	sess, err := auth.Authenticate(ctx, auth.OptionsFromConfig(cfg.Auth))
	if err != nil {
		env.Close()
		return nil, err
	}
	env.Session = sess
	if sess.IsDemo() && !args.Quiet && !args.JSON {
		reason := "sign-in unavailable"
		if r := sess.Reason(); r != nil {
			reason = r.Error()
		}
		fmt.Fprintf(env.Err, "%s Using the offline demo identity: %s\n", WarningStyle.Render("[DEMO]"), reason)
	}

	env.Client = NewClient(cfg, sess, env.Cache)
	return env, nil
}

// NewClient builds the backend client for a session.
func NewClient(cfg *config.Config, sess *auth.Session, c *cache.Manager) *api.Client {
	return api.New(api.Options{
		BaseURL:     cfg.API.BaseURL,
		Timeout:     cfg.API.Timeout(),
		RateLimit:   cfg.API.RateLimit,
		Burst:       cfg.API.Burst,
		TokenSource: sess.TokenSource(),
		Cache:       c,
		UserID:      sess.UserID(),
	})
}

// Close releases the cache and the log file.
func (e *Env) Close() {
	if e.Cache != nil {
		e.Cache.Close()
	}
	logging.Close()
}

// notice writes an informational line to stderr unless quiet or JSON.
func (e *Env) notice(format string, a ...interface{}) {
	if e.Args.Quiet || e.Args.JSON {
		return
	}
	fmt.Fprintf(e.Err, format+"\n", a...)
}

// withEnv runs fn with a fresh Env.
func withEnv(ctx context.Context, args Args, fn func(*Env) error) error {
	env, err := NewEnv(ctx, args)
	if err != nil {
		return err
	}
	defer env.Close()
	return fn(env)
}

// output writes data as a JSON envelope in JSON mode, or runs human.
func (e *Env) output(command string, data interface{}, human func(w io.Writer)) error {
	if e.Args.JSON {
		return NewJSONResponse(command, data).Write(e.Out)
	}
	human(e.Out)
	return nil
}
