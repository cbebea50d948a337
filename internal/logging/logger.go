// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package logging provides the process-wide structured logger.
//
// The TUI owns the terminal, so logs go to a file under the config directory
// (~/.talkydino/talkydino.log by default). Until Setup is called the logger
// discards everything, which keeps tests and one-shot CLI commands quiet.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

type ctxKey string

const ctxKeyTurnID ctxKey = "turn_id"

var (
	mu      sync.RWMutex
	logger  = slog.New(slog.NewTextHandler(io.Discard, nil))
	logFile *os.File
)

// Logger returns the global logger.
func Logger() *slog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return logger
}

// WithFields returns a logger with additional fields.
func WithFields(kv ...any) *slog.Logger {
	return Logger().With(kv...)
}

// WithTurnID stores a chat turn id in the context.
func WithTurnID(ctx context.Context, turnID string) context.Context {
	return context.WithValue(ctx, ctxKeyTurnID, turnID)
}

// FromContext returns the global logger, tagged with turn_id if present.
func FromContext(ctx context.Context) *slog.Logger {
	l := Logger()
	if ctx == nil {
		return l
	}
	if id, _ := ctx.Value(ctxKeyTurnID).(string); id != "" {
		return l.With("turn_id", id)
	}
	return l
}

// ParseLevel maps a config level name to a slog level. Unknown names map to info.
func ParseLevel(name string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// SetOutput replaces the global logger with a text handler writing to w.
func SetOutput(w io.Writer, level slog.Level) {
	l := slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
	mu.Lock()
	logger = l
	mu.Unlock()
}

// Setup opens path for appending (0600) and routes the global logger to it.
// An empty path keeps logging disabled.
func Setup(path, level string) error {
	if path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}

	mu.Lock()
	prev := logFile
	logFile = f
	logger = slog.New(slog.NewTextHandler(f, &slog.HandlerOptions{Level: ParseLevel(level)}))
	mu.Unlock()

	if prev != nil {
		prev.Close()
	}
	return nil
}

// Close closes the log file opened by Setup and disables logging.
func Close() error {
	mu.Lock()
	defer mu.Unlock()
	logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	if logFile == nil {
		return nil
	}
	err := logFile.Close()
	logFile = nil
	return err
}
