// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides unified configuration loading and management for talkydino.
//
// Supports both TOML and JSON configuration formats, with sensible defaults,
// .env files, environment variable overrides, and validation.
//
// # Key Types
//
//   - Config: Main configuration structure with all settings
//   - APIConfig: Backend URL, timeouts, rate limiting and page sizes
//   - AuthConfig: Anonymous sign-in and the demo fallback identity
//   - CacheConfig: Response cache behavior
//
// # Configuration Precedence
//
// Configuration is loaded from (in order of precedence):
//   - Environment variables (TALKYDINO_*), including those from .env files
//   - ~/.talkydino/config.toml
//   - ~/.talkydino/config.json
//   - Built-in defaults
//
// # Usage
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.API.BaseURL)
//
// Watch for edits while the TUI runs:
//
//	w, err := config.Watch(ctx, path, func(c *config.Config, err error) { ... })
package config
