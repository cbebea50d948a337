// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	"github.com/jeranaias/talkydino-tui/internal/util"
)

// CurrentVersion is the config schema version written by Save.
const CurrentVersion = "1"

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete talkydino configuration.
type Config struct {
	Version string `toml:"version" json:"version"`

	// Backend API configuration
	API APIConfig `toml:"api" json:"api"`

	// Anonymous authentication configuration
	Auth AuthConfig `toml:"auth" json:"auth"`

	// Response cache configuration
	Cache CacheConfig `toml:"cache" json:"cache"`

	// UI configuration
	UI UIConfig `toml:"ui" json:"ui"`

	// Log configuration
	Log LogConfig `toml:"log" json:"log"`
}

// APIConfig contains backend connection settings.
type APIConfig struct {
	// BaseURL is the Talky Dino API root, e.g. http://localhost:8000
	BaseURL string `toml:"base_url" json:"base_url"`
	// TimeoutSecs bounds non-streaming requests
	TimeoutSecs int `toml:"timeout_secs" json:"timeout_secs"`
	// RateLimit is the sustained request rate per second (0 disables limiting)
	RateLimit float64 `toml:"rate_limit" json:"rate_limit"`
	// Burst is the number of requests allowed above the sustained rate
	Burst int `toml:"burst" json:"burst"`
	// MemoryLimit is the page size of the memory panel
	MemoryLimit int `toml:"memory_limit" json:"memory_limit"`
	// HistoryLimit is the page size of the recent messages panel
	HistoryLimit int `toml:"history_limit" json:"history_limit"`
	// SeedHistory is the number of past messages loaded into the transcript on startup
	SeedHistory int `toml:"seed_history" json:"seed_history"`
}

// AuthConfig contains anonymous sign-in settings.
type AuthConfig struct {
	// FirebaseAPIKey is the web API key of the identity project
	FirebaseAPIKey string `toml:"firebase_api_key" json:"firebase_api_key"`
	// IdentityURL is the Identity Toolkit endpoint root
	IdentityURL string `toml:"identity_url" json:"identity_url"`
	// TokenURL is the secure token refresh endpoint
	TokenURL string `toml:"token_url" json:"token_url"`
	// StaticToken, when set, is sent as the bearer token and sign-in is skipped
	StaticToken string `toml:"static_token" json:"static_token"`
	// TimeoutMS bounds sign-in before falling back to the demo identity
	TimeoutMS int `toml:"timeout_ms" json:"timeout_ms"`
	// IdentityFile stores the anonymous identity between runs
	IdentityFile string `toml:"identity_file" json:"identity_file"`
	// DemoFallback enables the offline demo identity when sign-in fails
	DemoFallback bool `toml:"demo_fallback" json:"demo_fallback"`
}

// CacheConfig contains response cache settings.
type CacheConfig struct {
	// Enabled controls whether caching is active
	Enabled bool `toml:"enabled" json:"enabled"`
	// Backend is the storage: "sqlite", "memory", "none"
	Backend string `toml:"backend" json:"backend"`
	// TTLSecs is the time-to-live for cache entries in seconds
	TTLSecs int `toml:"ttl_secs" json:"ttl_secs"`
	// MaxBytes is the size ceiling that triggers a cleanup sweep
	MaxBytes int `toml:"max_bytes" json:"max_bytes"`
	// Path is the sqlite database file
	Path string `toml:"path" json:"path"`
}

// UIConfig contains UI configuration.
type UIConfig struct {
	// Theme is the UI theme: "dark", "light", "auto"
	Theme string `toml:"theme" json:"theme"`
	// Markdown renders finalized assistant messages as markdown
	Markdown bool `toml:"markdown" json:"markdown"`
	// WordWrap is the markdown wrap width for non-TUI output
	WordWrap int `toml:"word_wrap" json:"word_wrap"`
	// ShowRawOutput opens the debug panel on startup
	ShowRawOutput bool `toml:"show_raw_output" json:"show_raw_output"`
	// AltScreen runs the TUI in the alternate screen buffer
	AltScreen bool `toml:"alt_screen" json:"alt_screen"`
}

// LogConfig contains logging configuration.
type LogConfig struct {
	// Level is one of "debug", "info", "warn", "error"
	Level string `toml:"level" json:"level"`
	// File is the log file path; logs never go to the terminal
	File string `toml:"file" json:"file"`
}

// Timeout returns the request timeout as a duration.
func (a APIConfig) Timeout() time.Duration {
	return time.Duration(a.TimeoutSecs) * time.Second
}

// Timeout returns the sign-in timeout as a duration.
func (a AuthConfig) Timeout() time.Duration {
	return time.Duration(a.TimeoutMS) * time.Millisecond
}

// TTL returns the cache entry lifetime as a duration.
func (c CacheConfig) TTL() time.Duration {
	return time.Duration(c.TTLSecs) * time.Second
}

// =============================================================================
// DEFAULT CONFIGURATION
// =============================================================================

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Version: CurrentVersion,
		API: APIConfig{
			BaseURL:      "http://localhost:8000",
			TimeoutSecs:  30,
			RateLimit:    5,
			Burst:        10,
			MemoryLimit:  12,
			HistoryLimit: 12,
			SeedHistory:  20,
		},
		Auth: AuthConfig{
			IdentityURL:  "https://identitytoolkit.googleapis.com/v1",
			TokenURL:     "https://securetoken.googleapis.com/v1/token",
			TimeoutMS:    3000,
			DemoFallback: true,
		},
		Cache: CacheConfig{
			Enabled:  true,
			Backend:  "sqlite",
			TTLSecs:  300,
			MaxBytes: 4 * 1024 * 1024,
		},
		UI: UIConfig{
			Theme:     "auto",
			Markdown:  true,
			WordWrap:  80,
			AltScreen: true,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// ConfigDir returns the talkydino configuration directory path.
// TALKYDINO_HOME overrides the default ~/.talkydino.
func ConfigDir() (string, error) {
	if dir := os.Getenv("TALKYDINO_HOME"); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".talkydino"), nil
}

// ConfigPathTOML returns the path to the TOML config file.
func ConfigPathTOML() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// ConfigPathJSON returns the path to the JSON config file.
func ConfigPathJSON() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// EnsureConfigDir ensures the config directory exists.
func EnsureConfigDir() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	return os.MkdirAll(dir, 0700)
}

// ensureSecurePermissions checks and fixes permissions on config files.
// SECURITY: Config files may hold API keys and tokens; keep them 0600.
func ensureSecurePermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if mode := info.Mode().Perm(); mode != 0600 {
		if err := os.Chmod(path, 0600); err != nil {
			return fmt.Errorf("failed to fix insecure permissions (was %o): %w", mode, err)
		}
	}
	return nil
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load loads configuration from the config file(s).
// Tries TOML first, then JSON, and falls back to defaults.
// .env files and environment overrides are applied last.
func Load() (*Config, error) {
	cfg := Default()
	var loadErr error

	loaded := false
	if tomlPath, err := ConfigPathTOML(); err == nil {
		if _, statErr := os.Stat(tomlPath); statErr == nil {
			if err := LoadTOML(cfg, tomlPath); err != nil {
				loadErr = fmt.Errorf("failed to load TOML config: %w", err)
				cfg = Default()
			} else {
				loaded = true
			}
		}
	}

	if !loaded {
		if jsonPath, err := ConfigPathJSON(); err == nil {
			if _, statErr := os.Stat(jsonPath); statErr == nil {
				if err := LoadJSON(cfg, jsonPath); err != nil {
					loadErr = errors.Join(loadErr, fmt.Errorf("failed to load JSON config: %w", err))
					cfg = Default()
				}
			}
		}
	}

	if err := cfg.finish(); err != nil {
		return nil, err
	}

	// Return config (with any load error for informational purposes)
	return cfg, loadErr
}

// LoadFromPath loads configuration from a specific file path with full validation.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()

	if strings.HasSuffix(path, ".json") {
		if err := LoadJSON(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load JSON config from %s: %w", path, err)
		}
	} else {
		if err := LoadTOML(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load TOML config from %s: %w", path, err)
		}
	}

	if err := cfg.finish(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// finish applies .env files, env overrides, defaults and validation.
func (c *Config) finish() error {
	LoadDotEnv()
	c.ApplyEnvOverrides()
	c.SetDefaults()
	if err := c.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// LoadTOML decodes a TOML file over cfg.
// SECURITY: Checks and fixes file permissions on load.
func LoadTOML(cfg *Config, path string) error {
	if err := ensureSecurePermissions(path); err != nil {
		// Log warning but don't fail - permissions might not be fixable on all systems
		fmt.Fprintf(os.Stderr, "Warning: could not ensure secure permissions on %s: %v\n", path, err)
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return fmt.Errorf("failed to decode TOML file: %w", err)
	}
	return nil
}

// LoadJSON decodes a JSON file over cfg.
// SECURITY: Checks and fixes file permissions on load.
func LoadJSON(cfg *Config, path string) error {
	if err := ensureSecurePermissions(path); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not ensure secure permissions on %s: %v\n", path, err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read JSON file: %w", err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to decode JSON file: %w", err)
	}
	return nil
}

// LoadDotEnv loads ./.env and <config dir>/.env into the process
// environment. Variables already set are never overridden.
func LoadDotEnv() {
	candidates := []string{".env"}
	if dir, err := ConfigDir(); err == nil {
		candidates = append(candidates, filepath.Join(dir, ".env"))
	}
	for _, path := range candidates {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := godotenv.Load(path); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: could not load %s: %v\n", path, err)
		}
	}
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// Save saves the configuration to the default TOML file.
func Save(cfg *Config) error {
	path, err := ConfigPathTOML()
	if err != nil {
		return err
	}
	return SaveTOML(cfg, path)
}

// SaveTOML saves the configuration to a TOML file.
// RELIABILITY: Atomic write prevents a half-written config on crash.
func SaveTOML(cfg *Config, path string) error {
	var sb strings.Builder
	sb.WriteString("# talkydino configuration file\n")
	sb.WriteString("# Generated by talkydino - edit with care\n\n")

	if err := toml.NewEncoder(&sb).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	if err := util.AtomicWriteFile(path, []byte(sb.String()), 0600, 0700); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// SaveJSON saves the configuration to a JSON file.
func SaveJSON(cfg *Config, path string) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := util.AtomicWriteFile(path, data, 0600, 0700); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors is a collection of validation errors.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	msgs := make([]string, 0, len(e))
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Validate validates the configuration and returns any errors.
func (c *Config) Validate() error {
	var errs ValidateErrors
	add := func(field, format string, args ...any) {
		errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	// API
	if err := validateHTTPURL(c.API.BaseURL); err != nil {
		add("api.base_url", "%v", err)
	}
	if c.API.TimeoutSecs < 1 || c.API.TimeoutSecs > 600 {
		add("api.timeout_secs", "must be between 1 and 600, got %d", c.API.TimeoutSecs)
	}
	if c.API.RateLimit < 0 {
		add("api.rate_limit", "must not be negative, got %g", c.API.RateLimit)
	}
	if c.API.RateLimit > 0 && c.API.Burst < 1 {
		add("api.burst", "must be at least 1 when rate limiting is enabled, got %d", c.API.Burst)
	}
	for field, v := range map[string]int{
		"api.memory_limit":  c.API.MemoryLimit,
		"api.history_limit": c.API.HistoryLimit,
		"api.seed_history":  c.API.SeedHistory,
	} {
		if v < 0 || v > 200 {
			add(field, "must be between 0 and 200, got %d", v)
		}
	}

	// Auth
	if c.Auth.StaticToken == "" && c.Auth.FirebaseAPIKey != "" {
		if err := validateHTTPURL(c.Auth.IdentityURL); err != nil {
			add("auth.identity_url", "%v", err)
		}
		if err := validateHTTPURL(c.Auth.TokenURL); err != nil {
			add("auth.token_url", "%v", err)
		}
	}
	if c.Auth.TimeoutMS < 100 || c.Auth.TimeoutMS > 60000 {
		add("auth.timeout_ms", "must be between 100 and 60000, got %d", c.Auth.TimeoutMS)
	}

	// Cache
	switch strings.ToLower(c.Cache.Backend) {
	case "sqlite", "memory", "none":
	default:
		add("cache.backend", "invalid backend '%s', must be one of: sqlite, memory, none", c.Cache.Backend)
	}
	if c.Cache.TTLSecs < 1 {
		add("cache.ttl_secs", "must be positive, got %d", c.Cache.TTLSecs)
	}
	if c.Cache.MaxBytes < 1024 {
		add("cache.max_bytes", "must be at least 1024, got %d", c.Cache.MaxBytes)
	}

	// UI
	switch strings.ToLower(c.UI.Theme) {
	case "auto", "dark", "light":
	default:
		add("ui.theme", "invalid theme '%s', must be one of: auto, dark, light", c.UI.Theme)
	}
	if c.UI.WordWrap < 0 {
		add("ui.word_wrap", "must not be negative, got %d", c.UI.WordWrap)
	}

	// Log
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		add("log.level", "invalid level '%s', must be one of: debug, info, warn, error", c.Log.Level)
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func validateHTTPURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid URL '%s': %v", raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("URL '%s' must use http or https", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("URL '%s' has no host", raw)
	}
	return nil
}

// SetDefaults fills zero values with defaults and resolves relative paths
// into the config directory.
func (c *Config) SetDefaults() {
	d := Default()

	if c.Version == "" {
		c.Version = d.Version
	}
	c.API.BaseURL = strings.TrimRight(strings.TrimSpace(c.API.BaseURL), "/")
	if c.API.BaseURL == "" {
		c.API.BaseURL = d.API.BaseURL
	}
	if c.API.TimeoutSecs == 0 {
		c.API.TimeoutSecs = d.API.TimeoutSecs
	}
	if c.API.MemoryLimit == 0 {
		c.API.MemoryLimit = d.API.MemoryLimit
	}
	if c.API.HistoryLimit == 0 {
		c.API.HistoryLimit = d.API.HistoryLimit
	}
	if c.Auth.IdentityURL == "" {
		c.Auth.IdentityURL = d.Auth.IdentityURL
	}
	if c.Auth.TokenURL == "" {
		c.Auth.TokenURL = d.Auth.TokenURL
	}
	if c.Auth.TimeoutMS == 0 {
		c.Auth.TimeoutMS = d.Auth.TimeoutMS
	}
	if c.Cache.Backend == "" {
		c.Cache.Backend = d.Cache.Backend
	}
	if c.Cache.TTLSecs == 0 {
		c.Cache.TTLSecs = d.Cache.TTLSecs
	}
	if c.Cache.MaxBytes == 0 {
		c.Cache.MaxBytes = d.Cache.MaxBytes
	}
	if c.UI.Theme == "" {
		c.UI.Theme = d.UI.Theme
	}
	if c.Log.Level == "" {
		c.Log.Level = d.Log.Level
	}

	if dir, err := ConfigDir(); err == nil {
		c.Auth.IdentityFile = resolvePath(dir, c.Auth.IdentityFile, "identity.json")
		c.Cache.Path = resolvePath(dir, c.Cache.Path, "cache.db")
		c.Log.File = resolvePath(dir, c.Log.File, "talkydino.log")
	}
}

func resolvePath(dir, path, fallback string) string {
	if path == "" {
		return filepath.Join(dir, fallback)
	}
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	if !filepath.IsAbs(path) && path != ":memory:" {
		return filepath.Join(dir, path)
	}
	return path
}

// ApplyEnvOverrides applies environment variable overrides to the config.
//
// Supported environment variables:
//   - TALKYDINO_API_URL: overrides api.base_url
//   - TALKYDINO_FIREBASE_API_KEY: overrides auth.firebase_api_key
//   - TALKYDINO_TOKEN: overrides auth.static_token
//   - TALKYDINO_CACHE: overrides cache.backend ("none" also disables the cache)
//   - TALKYDINO_THEME: overrides ui.theme
//   - TALKYDINO_LOG_LEVEL: overrides log.level
//   - TALKYDINO_LOG_FILE: overrides log.file
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("TALKYDINO_API_URL"); v != "" {
		c.API.BaseURL = v
	}
	if v := os.Getenv("TALKYDINO_FIREBASE_API_KEY"); v != "" {
		c.Auth.FirebaseAPIKey = v
	}
	if v := os.Getenv("TALKYDINO_TOKEN"); v != "" {
		c.Auth.StaticToken = v
	}
	if v := os.Getenv("TALKYDINO_CACHE"); v != "" {
		c.Cache.Backend = strings.ToLower(v)
		c.Cache.Enabled = c.Cache.Backend != "none"
	}
	if v := os.Getenv("TALKYDINO_THEME"); v != "" {
		c.UI.Theme = v
	}
	if v := os.Getenv("TALKYDINO_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("TALKYDINO_LOG_FILE"); v != "" {
		c.Log.File = v
	}
}

// =============================================================================
// GET/SET HELPERS (DOT NOTATION)
// =============================================================================

// Get retrieves a configuration value using dot notation (e.g., "api.base_url").
func (c *Config) Get(key string) (interface{}, error) {
	field, err := c.lookup(key)
	if err != nil {
		return nil, err
	}
	return field.Interface(), nil
}

// Set sets a configuration value using dot notation (e.g., "cache.ttl_secs").
func (c *Config) Set(key string, value interface{}) error {
	field, err := c.lookup(key)
	if err != nil {
		return err
	}
	if !field.CanSet() {
		return fmt.Errorf("cannot set field: %s", key)
	}
	return setFieldValue(field, value)
}

// lookup walks the struct by toml tag names.
func (c *Config) lookup(key string) (reflect.Value, error) {
	if strings.TrimSpace(key) == "" {
		return reflect.Value{}, errors.New("empty key")
	}
	parts := strings.Split(key, ".")

	v := reflect.ValueOf(c).Elem()
	for i, part := range parts {
		field, ok := fieldByTag(v, part)
		if !ok {
			return reflect.Value{}, fmt.Errorf("unknown field: %s", strings.Join(parts[:i+1], "."))
		}
		if i == len(parts)-1 {
			if field.Kind() == reflect.Struct {
				return reflect.Value{}, fmt.Errorf("field '%s' is a section, not a value", key)
			}
			return field, nil
		}
		if field.Kind() != reflect.Struct {
			return reflect.Value{}, fmt.Errorf("field '%s' is not a struct", strings.Join(parts[:i+1], "."))
		}
		v = field
	}
	return reflect.Value{}, fmt.Errorf("invalid key: %s", key)
}

func fieldByTag(v reflect.Value, name string) (reflect.Value, bool) {
	name = strings.ToLower(strings.ReplaceAll(name, "-", "_"))
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		tag := strings.Split(t.Field(i).Tag.Get("toml"), ",")[0]
		if tag == name {
			return v.Field(i), true
		}
	}
	return reflect.Value{}, false
}

// setFieldValue sets a reflect.Value from an interface{} value with type conversion.
func setFieldValue(field reflect.Value, value interface{}) error {
	if strVal, ok := value.(string); ok {
		switch field.Kind() {
		case reflect.String:
			field.SetString(strVal)
			return nil
		case reflect.Int, reflect.Int64:
			intVal, err := strconv.ParseInt(strVal, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid integer value: %v", err)
			}
			field.SetInt(intVal)
			return nil
		case reflect.Float64:
			floatVal, err := strconv.ParseFloat(strVal, 64)
			if err != nil {
				return fmt.Errorf("invalid float value: %v", err)
			}
			field.SetFloat(floatVal)
			return nil
		case reflect.Bool:
			boolVal, err := strconv.ParseBool(strings.ToLower(strVal))
			if err != nil {
				boolVal = strings.EqualFold(strVal, "yes")
				if !boolVal && !strings.EqualFold(strVal, "no") {
					return fmt.Errorf("invalid boolean value: %q", strVal)
				}
			}
			field.SetBool(boolVal)
			return nil
		}
	}

	val := reflect.ValueOf(value)
	if !val.IsValid() {
		return fmt.Errorf("cannot assign nil to %s", field.Type())
	}
	if val.Type().AssignableTo(field.Type()) {
		field.Set(val)
		return nil
	}
	if val.Type().ConvertibleTo(field.Type()) {
		field.Set(val.Convert(field.Type()))
		return nil
	}
	return fmt.Errorf("cannot assign %T to %s", value, field.Type())
}

// GetAllKeys returns all configuration keys in dot notation.
func GetAllKeys() []string {
	var keys []string
	t := reflect.TypeOf(Config{})
	for i := 0; i < t.NumField(); i++ {
		sec := t.Field(i)
		secName := strings.Split(sec.Tag.Get("toml"), ",")[0]
		if sec.Type.Kind() != reflect.Struct {
			keys = append(keys, secName)
			continue
		}
		for j := 0; j < sec.Type.NumField(); j++ {
			name := strings.Split(sec.Type.Field(j).Tag.Get("toml"), ",")[0]
			keys = append(keys, secName+"."+name)
		}
	}
	return keys
}

// Clone returns a copy of the config. Config holds only value fields, so a
// struct copy is a deep copy.
func (c *Config) Clone() *Config {
	clone := *c
	return &clone
}

// Redacted returns a copy with the API key and static token masked.
func (c *Config) Redacted() *Config {
	safe := c.Clone()
	if safe.Auth.FirebaseAPIKey != "" {
		safe.Auth.FirebaseAPIKey = "[REDACTED]"
	}
	if safe.Auth.StaticToken != "" {
		safe.Auth.StaticToken = "[REDACTED]"
	}
	return safe
}

// String returns a string representation of the config for debugging.
// SECURITY: Redacts the API key and static token.
func (c *Config) String() string {
	data, _ := json.MarshalIndent(c.Redacted(), "", "  ")
	return string(data)
}

// IsSecretKey reports whether a dot-notation key holds a credential.
func IsSecretKey(key string) bool {
	switch strings.ToLower(key) {
	case "auth.firebase_api_key", "auth.static_token":
		return true
	}
	return false
}

// =============================================================================
// SINGLETON PATTERN (THREAD-SAFE)
// =============================================================================

var (
	globalConfig     *Config
	globalConfigOnce sync.Once
	globalConfigMu   sync.RWMutex
)

// Global returns the global configuration instance.
// Loads configuration on first access. Thread-safe.
func Global() *Config {
	globalConfigOnce.Do(func() {
		cfg, err := Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v (using defaults)\n", err)
		}
		if cfg == nil {
			cfg = Default()
			cfg.SetDefaults()
		}
		globalConfigMu.Lock()
		if globalConfig == nil {
			globalConfig = cfg
		}
		globalConfigMu.Unlock()
	})

	globalConfigMu.RLock()
	defer globalConfigMu.RUnlock()
	return globalConfig
}

// ReloadGlobal reloads the global configuration from disk. Thread-safe.
func ReloadGlobal() error {
	cfg, err := Load()
	if cfg == nil {
		return err
	}
	globalConfigMu.Lock()
	defer globalConfigMu.Unlock()
	globalConfig = cfg
	return err
}

// SetGlobal sets the global configuration instance. Thread-safe.
func SetGlobal(cfg *Config) {
	globalConfigMu.Lock()
	defer globalConfigMu.Unlock()
	globalConfig = cfg
}

// ResetGlobalForTesting resets the global config state for testing.
// This should only be used in tests to reset state between test runs.
func ResetGlobalForTesting() {
	globalConfigMu.Lock()
	defer globalConfigMu.Unlock()
	globalConfig = nil
	globalConfigOnce = sync.Once{}
}
