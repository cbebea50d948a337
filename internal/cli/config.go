// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// config.go - The "config" command.
//
// Command: config [subcommand]
// Short:   View and modify configuration
//
// Subcommands:
//
//	show (default)      Display the effective configuration
//	path                Show the configuration file path
//	init                Write a default config file if none exists
//	get <key>           Print one value
//	set <key> <value>   Set a value in the config file
//
// Examples:
//
//	talkydino config set api.base_url http://localhost:8000
//	talkydino config set cache.backend memory
//	talkydino config get ui.theme --json
//
// set edits the file itself; environment and flag overrides are not saved.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/jeranaias/talkydino-tui/internal/config"
)

// HandleConfigCommand handles the "config" command.
func HandleConfigCommand(_ context.Context, args Args) error {
	sub := args.Subcommand
	valid := []string{"show", "path", "init", "get", "set"}

	env := &Env{Args: args, Out: os.Stdout, Err: os.Stderr}
	switch sub {
	case "", "show":
		cfg, path, err := LoadConfig(args)
		if err != nil {
			return err
		}
		env.Config, env.ConfigPath = cfg, path
		return configShow(env)
	case "path":
		path, err := configPath(args)
		if err != nil {
			return err
		}
		return env.output("config", ConfigData{Path: path}, func(w io.Writer) {
			fmt.Fprintln(w, path)
		})
	case "get":
		cfg, _, err := LoadConfig(args)
		if err != nil {
			return err
		}
		env.Config = cfg
		return configGet(env, args.ConfigKey)
	case "set":
		path, err := configPath(args)
		if err != nil {
			return err
		}
		return configSet(env, path, args.ConfigKey, args.ConfigVal)
	case "init":
		path, err := configPath(args)
		if err != nil {
			return err
		}
		return configInit(env, path)
	default:
		return ErrUnknownSubcommand("config", sub, valid)
	}
}

func configPath(args Args) (string, error) {
	if args.ConfigPath != "" {
		return args.ConfigPath, nil
	}
	path, err := config.ConfigPathTOML()
	if err != nil {
		return "", NewCommandError("config", "path", "cannot locate the config directory", err)
	}
	return path, nil
}

// =============================================================================
// SHOW / GET
// =============================================================================

func configShow(env *Env) error {
	safe := env.Config.Redacted()
	data := ConfigData{Path: env.ConfigPath, Config: safe}

	return env.output("config", data, func(w io.Writer) {
		printTitle(w, "Configuration")
		printKV(w, "File", data.Path)

		section := ""
		for _, key := range config.GetAllKeys() {
			sec, name, ok := strings.Cut(key, ".")
			if !ok {
				continue
			}
			if sec != section {
				section = sec
				fmt.Fprintln(w, SectionStyle.Render(strings.ToUpper(sec)))
			}
			val, err := safe.Get(key)
			if err != nil {
				continue
			}
			printKV(w, name, formatConfigValue(val))
		}
		fmt.Fprintln(w)
	})
}

func configGet(env *Env, key string) error {
	if key == "" {
		return ErrMissingArgument("key", "talkydino config get api.base_url")
	}
	val, err := env.Config.Get(key)
	if err != nil {
		return &NotFoundError{Resource: "config key", ID: key}
	}
	if config.IsSecretKey(key) {
		val = maskSecret(fmt.Sprint(val))
	}
	return env.output("config", ConfigValueData{Key: key, Value: val}, func(w io.Writer) {
		fmt.Fprintln(w, formatConfigValue(val))
	})
}

func formatConfigValue(v interface{}) string {
	s := fmt.Sprint(v)
	if s == "" {
		return DimStyle.Render("(not set)")
	}
	return s
}

// maskSecret keeps the last four characters of a credential.
func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return "****"
	}
	return "****" + s[len(s)-4:]
}

// =============================================================================
// SET / INIT
// =============================================================================

// loadFileConfig reads only the file at path over the defaults, without
// environment overrides, so saving it back does not capture them.
func loadFileConfig(path string) (*config.Config, error) {
	cfg := config.Default()
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, err
	}
	var err error
	if strings.HasSuffix(path, ".json") {
		err = config.LoadJSON(cfg, path)
	} else {
		err = config.LoadTOML(cfg, path)
	}
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

func saveFileConfig(cfg *config.Config, path string) error {
	if strings.HasSuffix(path, ".json") {
		return config.SaveJSON(cfg, path)
	}
	return config.SaveTOML(cfg, path)
}

func configSet(env *Env, path, key, value string) error {
	if key == "" {
		return ErrMissingArgument("key", "talkydino config set ui.theme light")
	}
	if value == "" {
		return ErrMissingArgument("value", "talkydino config set "+key+" <value>")
	}

	cfg, err := loadFileConfig(path)
	if err != nil {
		return NewCommandError("config", "load", path, err)
	}
	if _, err := cfg.Get(key); err != nil {
		return &NotFoundError{Resource: "config key", ID: key}
	}
	if err := cfg.Set(key, value); err != nil {
		return NewValidationError(key, value, err.Error())
	}

	check := cfg.Clone()
	check.SetDefaults()
	if err := check.Validate(); err != nil {
		return err
	}
	if err := saveFileConfig(cfg, path); err != nil {
		return NewCommandError("config", "set", "could not save "+path, err)
	}

	shown := interface{}(value)
	if config.IsSecretKey(key) {
		shown = maskSecret(value)
	}
	return env.output("config", ConfigValueData{Key: key, Value: shown}, func(w io.Writer) {
		fmt.Fprintf(w, "%s %s = %v\n", RenderStatus("ok"), key, shown)
		fmt.Fprintln(w, DimStyle.Render("  saved to "+path))
	})
}

func configInit(env *Env, path string) error {
	if _, err := os.Stat(path); err == nil {
		return NewCommandError("config", "init", path+" already exists", nil)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return NewCommandError("config", "init", "could not create "+filepath.Dir(path), err)
	}
	if err := saveFileConfig(config.Default(), path); err != nil {
		return NewCommandError("config", "init", "could not write "+path, err)
	}
	return env.output("config", ConfigData{Path: path}, func(w io.Writer) {
		fmt.Fprintf(w, "%s wrote %s\n", RenderStatus("ok"), path)
	})
}
