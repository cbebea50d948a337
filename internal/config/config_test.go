// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var envVars = []string{
	"TALKYDINO_API_URL",
	"TALKYDINO_FIREBASE_API_KEY",
	"TALKYDINO_TOKEN",
	"TALKYDINO_CACHE",
	"TALKYDINO_THEME",
	"TALKYDINO_LOG_LEVEL",
	"TALKYDINO_LOG_FILE",
}

// isolate points the config directory at a temp dir and unsets overrides.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("TALKYDINO_HOME", dir)
	for _, k := range envVars {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
	return dir
}

// =============================================================================
// GLOBAL CONCURRENCY TESTS
// =============================================================================

// TestConfig_ConcurrentAccess tests that Global(), SetGlobal(), and ReloadGlobal()
// can be safely called concurrently without race conditions.
// Run with: go test -race -v ./internal/config/
func TestConfig_ConcurrentAccess(t *testing.T) {
	isolate(t)
	ResetGlobalForTesting()

	var wg sync.WaitGroup

	// 50 writers using SetGlobal, 50 readers using Global
	for i := 0; i < 50; i++ {
		wg.Add(2)

		go func() {
			defer wg.Done()
			c := Default()
			c.Version = "test"
			c.API.BaseURL = "http://127.0.0.1:9000"
			SetGlobal(c)
		}()

		go func() {
			defer wg.Done()
			if Global() == nil {
				t.Error("Global() returned nil")
			}
		}()
	}

	wg.Wait()
}

// TestConfig_ConcurrentMixedOperations tests a mix of all global operations
// happening concurrently.
func TestConfig_ConcurrentMixedOperations(t *testing.T) {
	isolate(t)
	ResetGlobalForTesting()

	var wg sync.WaitGroup
	for i := 0; i < 90; i++ {
		wg.Add(1)
		switch i % 3 {
		case 0:
			go func() {
				defer wg.Done()
				if Global() == nil {
					t.Error("Global() returned nil")
				}
			}()
		case 1:
			go func() {
				defer wg.Done()
				c := Default()
				c.Version = "concurrent-test"
				SetGlobal(c)
			}()
		case 2:
			go func() {
				defer wg.Done()
				_ = ReloadGlobal()
			}()
		}
	}
	wg.Wait()
}

func TestConfig_GlobalInitialization(t *testing.T) {
	dir := isolate(t)
	ResetGlobalForTesting()
	t.Cleanup(ResetGlobalForTesting)

	cfg := Global()
	require.NotNil(t, cfg)
	assert.Equal(t, CurrentVersion, cfg.Version)
	assert.Equal(t, filepath.Join(dir, "cache.db"), cfg.Cache.Path)

	custom := Default()
	custom.Version = "custom-version"
	SetGlobal(custom)
	assert.Equal(t, "custom-version", Global().Version)
}

// =============================================================================
// DEFAULTS AND VALIDATION TESTS
// =============================================================================

func TestConfig_Default(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "http://localhost:8000", cfg.API.BaseURL)
	assert.Equal(t, 30*time.Second, cfg.API.Timeout())
	assert.Equal(t, 12, cfg.API.MemoryLimit)
	assert.Equal(t, 20, cfg.API.SeedHistory)
	assert.Equal(t, 3*time.Second, cfg.Auth.Timeout())
	assert.True(t, cfg.Auth.DemoFallback)
	assert.Equal(t, 5*time.Minute, cfg.Cache.TTL())
	assert.Equal(t, 4*1024*1024, cfg.Cache.MaxBytes)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"bad base url scheme", func(c *Config) { c.API.BaseURL = "ftp://x" }, "api.base_url"},
		{"base url without host", func(c *Config) { c.API.BaseURL = "http://" }, "api.base_url"},
		{"timeout too large", func(c *Config) { c.API.TimeoutSecs = 10000 }, "api.timeout_secs"},
		{"negative rate", func(c *Config) { c.API.RateLimit = -1 }, "api.rate_limit"},
		{"zero burst", func(c *Config) { c.API.Burst = 0 }, "api.burst"},
		{"page size", func(c *Config) { c.API.MemoryLimit = 500 }, "api.memory_limit"},
		{"auth timeout", func(c *Config) { c.Auth.TimeoutMS = 1 }, "auth.timeout_ms"},
		{"identity url", func(c *Config) {
			c.Auth.FirebaseAPIKey = "key"
			c.Auth.IdentityURL = "nope"
		}, "auth.identity_url"},
		{"cache backend", func(c *Config) { c.Cache.Backend = "redis" }, "cache.backend"},
		{"cache ttl", func(c *Config) { c.Cache.TTLSecs = -5 }, "cache.ttl_secs"},
		{"cache size", func(c *Config) { c.Cache.MaxBytes = 10 }, "cache.max_bytes"},
		{"theme", func(c *Config) { c.UI.Theme = "neon" }, "ui.theme"},
		{"log level", func(c *Config) { c.Log.Level = "loud" }, "log.level"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)

			err := cfg.Validate()
			require.Error(t, err)
			var verrs ValidateErrors
			require.ErrorAs(t, err, &verrs)
			require.Len(t, verrs, 1)
			assert.Equal(t, tc.field, verrs[0].Field)
		})
	}
}

func TestConfig_RateLimitDisabledAllowsZeroBurst(t *testing.T) {
	cfg := Default()
	cfg.API.RateLimit = 0
	cfg.API.Burst = 0
	assert.NoError(t, cfg.Validate())
}

// =============================================================================
// LOAD TESTS
// =============================================================================

func TestLoad_NoFilesUsesDefaults(t *testing.T) {
	dir := isolate(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8000", cfg.API.BaseURL)
	assert.Equal(t, filepath.Join(dir, "identity.json"), cfg.Auth.IdentityFile)
	assert.Equal(t, filepath.Join(dir, "talkydino.log"), cfg.Log.File)
}

func TestLoad_TOMLOverridesDefaults(t *testing.T) {
	dir := isolate(t)
	content := `
[api]
base_url = "https://dino.example.com/"
memory_limit = 6

[cache]
backend = "memory"
path = "custom.db"
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"), []byte(content), 0644))

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "https://dino.example.com", cfg.API.BaseURL, "trailing slash is trimmed")
	assert.Equal(t, 6, cfg.API.MemoryLimit)
	assert.Equal(t, 30, cfg.API.TimeoutSecs)
	assert.Equal(t, "memory", cfg.Cache.Backend)
	assert.Equal(t, filepath.Join(dir, "custom.db"), cfg.Cache.Path)

	if runtime.GOOS != "windows" {
		info, err := os.Stat(filepath.Join(dir, "config.toml"))
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
	}
}

func TestLoad_JSONFallback(t *testing.T) {
	dir := isolate(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.json"),
		[]byte(`{"ui":{"theme":"light"}}`), 0600))

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "light", cfg.UI.Theme)
}

func TestLoad_BrokenFileFallsBackToDefaults(t *testing.T) {
	dir := isolate(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"), []byte("[api\nbase_url="), 0600))

	cfg, err := Load()
	require.Error(t, err)
	require.NotNil(t, cfg)
	assert.Equal(t, "http://localhost:8000", cfg.API.BaseURL)
}

func TestLoadFromPath_InvalidValuesRejected(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "bad.toml")
	require.NoError(t, os.WriteFile(path, []byte("[cache]\nbackend = \"redis\"\n"), 0600))

	_, err := LoadFromPath(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cache.backend")
}

func TestApplyEnvOverrides(t *testing.T) {
	isolate(t)
	t.Setenv("TALKYDINO_API_URL", "http://10.0.0.2:8000")
	t.Setenv("TALKYDINO_TOKEN", "static")
	t.Setenv("TALKYDINO_CACHE", "NONE")
	t.Setenv("TALKYDINO_LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "http://10.0.0.2:8000", cfg.API.BaseURL)
	assert.Equal(t, "static", cfg.Auth.StaticToken)
	assert.Equal(t, "none", cfg.Cache.Backend)
	assert.False(t, cfg.Cache.Enabled)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadDotEnv_DoesNotOverrideEnvironment(t *testing.T) {
	dir := isolate(t)
	env := "TALKYDINO_THEME=dark\nTALKYDINO_LOG_LEVEL=error\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte(env), 0600))
	t.Setenv("TALKYDINO_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "dark", cfg.UI.Theme)
	assert.Equal(t, "warn", cfg.Log.Level)
}

// =============================================================================
// SAVE TESTS
// =============================================================================

func TestSaveTOML_RoundTrip(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "nested", "config.toml")

	cfg := Default()
	cfg.API.BaseURL = "https://saved.example.com"
	cfg.UI.Markdown = false
	require.NoError(t, SaveTOML(cfg, path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "# talkydino configuration file"))

	loaded, err := LoadFromPath(path)
	require.NoError(t, err)
	assert.Equal(t, "https://saved.example.com", loaded.API.BaseURL)
	assert.False(t, loaded.UI.Markdown)

	if runtime.GOOS != "windows" {
		info, err := os.Stat(path)
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
	}
}

func TestSaveJSON_RoundTrip(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "config.json")

	cfg := Default()
	cfg.API.HistoryLimit = 30
	require.NoError(t, SaveJSON(cfg, path))

	loaded, err := LoadFromPath(path)
	require.NoError(t, err)
	assert.Equal(t, 30, loaded.API.HistoryLimit)
}

// =============================================================================
// GET/SET TESTS
// =============================================================================

func TestConfig_GetSet(t *testing.T) {
	cfg := Default()

	v, err := cfg.Get("api.base_url")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8000", v)

	require.NoError(t, cfg.Set("api.timeout_secs", "45"))
	assert.Equal(t, 45, cfg.API.TimeoutSecs)

	require.NoError(t, cfg.Set("api.rate_limit", "2.5"))
	assert.Equal(t, 2.5, cfg.API.RateLimit)

	require.NoError(t, cfg.Set("cache.enabled", "no"))
	assert.False(t, cfg.Cache.Enabled)

	require.NoError(t, cfg.Set("ui.show-raw-output", true))
	assert.True(t, cfg.UI.ShowRawOutput)

	require.NoError(t, cfg.Set("log.level", "debug"))
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestConfig_GetSetErrors(t *testing.T) {
	cfg := Default()

	_, err := cfg.Get("")
	assert.Error(t, err)
	_, err = cfg.Get("api")
	assert.Error(t, err, "sections are not values")
	_, err = cfg.Get("nope.field")
	assert.Error(t, err)
	_, err = cfg.Get("version.extra")
	assert.Error(t, err)

	assert.Error(t, cfg.Set("api.timeout_secs", "abc"))
	assert.Error(t, cfg.Set("api.timeout_secs", true))
	assert.Error(t, cfg.Set("cache.enabled", "maybe"))
}

func TestGetAllKeys(t *testing.T) {
	cfg := Default()
	keys := GetAllKeys()
	assert.Contains(t, keys, "version")
	assert.Contains(t, keys, "api.base_url")
	assert.Contains(t, keys, "auth.demo_fallback")
	assert.Contains(t, keys, "log.file")

	for _, k := range keys {
		_, err := cfg.Get(k)
		assert.NoError(t, err, k)
	}
}

func TestConfig_CloneAndString(t *testing.T) {
	cfg := Default()
	cfg.Auth.FirebaseAPIKey = "AIza-secret"
	cfg.Auth.StaticToken = "tok-secret"

	clone := cfg.Clone()
	clone.API.BaseURL = "http://other:1"
	assert.Equal(t, "http://localhost:8000", cfg.API.BaseURL)

	s := cfg.String()
	assert.NotContains(t, s, "AIza-secret")
	assert.NotContains(t, s, "tok-secret")
	assert.Contains(t, s, "[REDACTED]")
	assert.Equal(t, "AIza-secret", cfg.Auth.FirebaseAPIKey)
}

// =============================================================================
// WATCH TESTS
// =============================================================================

func TestWatch_ReloadsOnChange(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, SaveTOML(Default(), path))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changes := make(chan *Config, 4)
	w, err := WatchWithDebounce(ctx, path, 20*time.Millisecond, func(c *Config, err error) {
		if err == nil {
			changes <- c
		}
	})
	require.NoError(t, err)

	cfg := Default()
	cfg.UI.Theme = "light"
	require.NoError(t, SaveTOML(cfg, path))

	select {
	case got := <-changes:
		assert.Equal(t, "light", got.UI.Theme)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for reload")
	}

	cancel()
	select {
	case <-w.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not stop")
	}
}

func TestWatch_MissingDirectory(t *testing.T) {
	isolate(t)
	_, err := Watch(context.Background(), filepath.Join(t.TempDir(), "missing", "config.toml"), nil)
	assert.Error(t, err)
}
