// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// json_output.go - JSON output support for scripting.
//
// Every command accepts --json and writes one envelope to stdout.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/jeranaias/talkydino-tui/internal/api"
	"github.com/jeranaias/talkydino-tui/internal/cache"
)

// JSONResponse is the envelope written by every command in JSON mode.
type JSONResponse struct {
	// Success indicates whether the command completed successfully
	Success bool `json:"success"`

	// Data contains the command-specific response data
	Data interface{} `json:"data"`

	// Error contains the error message if Success is false, null otherwise
	Error *string `json:"error"`

	// Timestamp is the RFC 3339 time the response was generated
	Timestamp string `json:"timestamp"`

	// Command is the command that was executed
	Command string `json:"command,omitempty"`
}

// NewJSONResponse creates a new successful JSON response.
func NewJSONResponse(command string, data interface{}) *JSONResponse {
	return &JSONResponse{
		Success:   true,
		Data:      data,
		Error:     nil,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Command:   command,
	}
}

// NewJSONErrorResponse creates a new error JSON response.
func NewJSONErrorResponse(command string, err error) *JSONResponse {
	errStr := err.Error()
	return &JSONResponse{
		Success:   false,
		Data:      nil,
		Error:     &errStr,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Command:   command,
	}
}

// Print outputs the JSON response to stdout.
// Human-readable messages should go to stderr when JSON mode is enabled.
func (r *JSONResponse) Print() error {
	return r.Write(os.Stdout)
}

// Write encodes the response to w with indentation.
func (r *JSONResponse) Write(w io.Writer) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(r)
}

// String returns the JSON response as a string.
func (r *JSONResponse) String() string {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Sprintf(`{"success":false,"error":"failed to marshal response: %s","timestamp":"%s"}`,
			err.Error(), time.Now().UTC().Format(time.RFC3339))
	}
	return string(data)
}

// =============================================================================
// RESPONSE DATA TYPES
// =============================================================================

// VersionData is the version command payload.
type VersionData struct {
	Version   string `json:"version"`
	GitCommit string `json:"git_commit"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version"`
}

// AskData is the ask command payload.
type AskData struct {
	Message    string `json:"message"`
	Reply      string `json:"reply"`
	RawOutput  string `json:"raw_output,omitempty"`
	Fallback   bool   `json:"fallback"`
	Cancelled  bool   `json:"cancelled,omitempty"`
	DurationMs int64  `json:"duration_ms"`
	Error      string `json:"error,omitempty"`
}

// PageData wraps a list payload with its paging window.
type PageData[T any] struct {
	Items  []T `json:"items"`
	Count  int `json:"count"`
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

// WhoAmIData is the whoami command payload.
type WhoAmIData struct {
	UID         string         `json:"uid"`
	DisplayName string         `json:"display_name"`
	Demo        bool           `json:"demo"`
	Backend     map[string]any `json:"backend,omitempty"`
	BackendErr  string         `json:"backend_error,omitempty"`
}

// HealthData is the health command payload.
type HealthData struct {
	BaseURL   string         `json:"base_url"`
	Healthy   bool           `json:"healthy"`
	Status    string         `json:"status"`
	LatencyMs int64          `json:"latency_ms"`
	Fields    map[string]any `json:"fields,omitempty"`
	Error     string         `json:"error,omitempty"`
}

// ProfileData is the profile command payload.
type ProfileData struct {
	Profile  *api.Profile      `json:"profile,omitempty"`
	Stats    *api.ProfileStats `json:"stats,omitempty"`
	StatsErr string            `json:"stats_error,omitempty"`
}

// CacheStatsData is the cache stats payload.
type CacheStatsData struct {
	Enabled bool        `json:"enabled"`
	Backend string      `json:"backend"`
	Path    string      `json:"path,omitempty"`
	TTLSecs int         `json:"ttl_secs"`
	Stats   cache.Stats `json:"stats"`
}

// CacheActionData reports how many entries a cache action removed.
type CacheActionData struct {
	Action  string `json:"action"`
	Removed int    `json:"removed"`
}

// ConfigData is the config show payload.
type ConfigData struct {
	Path   string      `json:"path"`
	Config interface{} `json:"config,omitempty"`
}

// ConfigValueData is the config get and set payload.
type ConfigValueData struct {
	Key   string      `json:"key"`
	Value interface{} `json:"value"`
}
