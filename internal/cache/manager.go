// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jeranaias/talkydino-tui/internal/logging"
)

// =============================================================================
// CACHE CONSTANTS
// =============================================================================

const (
	// DefaultTTL is how long an entry stays fresh.
	DefaultTTL = 5 * time.Minute

	// DefaultMaxBytes is the storage ceiling that triggers a cleanup sweep.
	DefaultMaxBytes = 4 * 1024 * 1024

	// KeyPrefix namespaces every key written by the Manager.
	KeyPrefix = "talkydino_cache"
)

// Data types used in cache keys.
const (
	TypeMemories = "memories"
	TypeMessages = "messages"
	TypeProfile  = "profile"
	TypeChroma   = "chroma"
)

// ErrCorrupt is reported when a stored entry cannot be decoded.
var ErrCorrupt = errors.New("corrupted cache entry")

// Entry is the stored form of a cached value.
type Entry struct {
	Data      json.RawMessage `json:"data"`
	Timestamp int64           `json:"timestamp"` // unix milliseconds
}

// Stats summarizes the cache contents.
type Stats struct {
	TotalEntries   int `json:"total_entries"`
	ExpiredEntries int `json:"expired_entries"`
	ValidEntries   int `json:"valid_entries"`
	TotalBytes     int `json:"total_bytes"`
}

// =============================================================================
// MANAGER
// =============================================================================

// Manager implements the TTL cache on top of a Backend.
// All methods are safe for concurrent use when the backend is.
type Manager struct {
	backend  Backend
	ttl      time.Duration
	maxBytes int
	prefix   string
	now      func() time.Time
	log      *slog.Logger
}

// NewManager creates a Manager with the default TTL and size ceiling.
// A nil backend disables caching.
func NewManager(backend Backend) *Manager {
	if backend == nil {
		backend = NoopBackend{}
	}
	return &Manager{
		backend:  backend,
		ttl:      DefaultTTL,
		maxBytes: DefaultMaxBytes,
		prefix:   KeyPrefix,
		now:      time.Now,
	}
}

// WithTTL sets the entry lifetime.
func (m *Manager) WithTTL(ttl time.Duration) *Manager {
	if ttl > 0 {
		m.ttl = ttl
	}
	return m
}

// WithMaxBytes sets the storage ceiling.
func (m *Manager) WithMaxBytes(n int) *Manager {
	if n > 0 {
		m.maxBytes = n
	}
	return m
}

// WithClock replaces the time source. Intended for tests.
func (m *Manager) WithClock(now func() time.Time) *Manager {
	if now != nil {
		m.now = now
	}
	return m
}

// WithLogger replaces the logger.
func (m *Manager) WithLogger(l *slog.Logger) *Manager {
	if l != nil {
		m.log = l
	}
	return m
}

// TTL returns the entry lifetime.
func (m *Manager) TTL() time.Duration {
	return m.ttl
}

// Backend returns the underlying storage.
func (m *Manager) Backend() Backend {
	return m.backend
}

// Close closes the backend.
func (m *Manager) Close() error {
	return m.backend.Close()
}

// Key builds a user-scoped key: prefix:dataType:userID:params.
func (m *Manager) Key(dataType, userID string, params any) string {
	p := ""
	if params != nil {
		p = fmt.Sprint(params)
	}
	return fmt.Sprintf("%s:%s:%s:%s", m.prefix, dataType, userID, p)
}

// =============================================================================
// GET / SET
// =============================================================================

// Get decodes the fresh entry stored under key into dst and reports whether
// it was found. Expired and corrupted entries are deleted and reported as a
// miss.
func (m *Manager) Get(key string, dst any) bool {
	raw, ok, err := m.backend.Get(key)
	if err != nil {
		m.logger().Warn("CACHE_GET_ERROR", "key", key, "error", err)
		return false
	}
	if !ok {
		return false
	}

	entry, err := decodeEntry(raw)
	if err != nil {
		m.logger().Warn("CACHE_CORRUPT", "key", key, "error", err)
		m.remove(key)
		return false
	}

	if m.age(entry) > m.ttl {
		m.remove(key)
		return false
	}

	if dst != nil {
		if err := json.Unmarshal(entry.Data, dst); err != nil {
			m.logger().Warn("CACHE_CORRUPT", "key", key, "error", err)
			m.remove(key)
			return false
		}
	}
	return true
}

// Set stores data under key with the current timestamp.
//
// If the write would push the cache past its ceiling, entries older than
// twice the TTL are swept first. Errors are returned for logging only; a
// failed write leaves the cache without the entry.
func (m *Manager) Set(key string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to encode cache data: %w", err)
	}
	encoded, err := json.Marshal(Entry{Data: payload, Timestamp: m.now().UnixMilli()})
	if err != nil {
		return fmt.Errorf("failed to encode cache entry: %w", err)
	}

	if m.TotalSize()+len(encoded) > m.maxBytes {
		m.logger().Info("CACHE_LIMIT_APPROACHING", "max_bytes", m.maxBytes)
		m.Cleanup()
	}

	if err := m.backend.Set(key, encoded); err != nil {
		m.logger().Warn("CACHE_SET_ERROR", "key", key, "error", err)
		m.Cleanup()
		return fmt.Errorf("failed to store cache entry: %w", err)
	}
	return nil
}

// =============================================================================
// INVALIDATION
// =============================================================================

// Invalidate deletes every entry whose key contains pattern and returns the
// number removed.
func (m *Manager) Invalidate(pattern string) int {
	keys, err := m.backend.Keys()
	if err != nil {
		m.logger().Warn("CACHE_INVALIDATE_ERROR", "pattern", pattern, "error", err)
		return 0
	}
	removed := 0
	for _, k := range keys {
		if strings.Contains(k, pattern) {
			if m.remove(k) {
				removed++
				m.logger().Debug("CACHE_INVALIDATED", "key", k)
			}
		}
	}
	return removed
}

// InvalidateUser deletes every entry of dataType for userID.
func (m *Manager) InvalidateUser(dataType, userID string) int {
	return m.Invalidate(fmt.Sprintf("%s:%s:%s:", m.prefix, dataType, userID))
}

// Cleanup deletes corrupted entries and entries older than twice the TTL.
func (m *Manager) Cleanup() int {
	keys, err := m.backend.Keys()
	if err != nil {
		m.logger().Warn("CACHE_CLEANUP_ERROR", "error", err)
		return 0
	}

	removed := 0
	for _, k := range m.owned(keys) {
		raw, ok, err := m.backend.Get(k)
		if err != nil || !ok {
			continue
		}
		entry, err := decodeEntry(raw)
		if err != nil || m.age(entry) > 2*m.ttl {
			if m.remove(k) {
				removed++
			}
		}
	}
	if removed > 0 {
		m.logger().Info("CACHE_CLEANUP", "removed", removed)
	}
	return removed
}

// Clear deletes every entry written by the Manager.
func (m *Manager) Clear() int {
	keys, err := m.backend.Keys()
	if err != nil {
		return 0
	}
	removed := 0
	for _, k := range m.owned(keys) {
		if m.remove(k) {
			removed++
		}
	}
	return removed
}

// =============================================================================
// STATISTICS
// =============================================================================

// TotalSize returns the size in bytes of all stored entries.
func (m *Manager) TotalSize() int {
	if s, ok := m.backend.(sizer); ok {
		n, err := s.Size()
		if err == nil {
			return n
		}
	}

	keys, err := m.backend.Keys()
	if err != nil {
		return 0
	}
	total := 0
	for _, k := range m.owned(keys) {
		if raw, ok, err := m.backend.Get(k); err == nil && ok {
			total += len(raw)
		}
	}
	return total
}

// Stats counts entries. Corrupted entries count as expired.
func (m *Manager) Stats() Stats {
	var st Stats
	keys, err := m.backend.Keys()
	if err != nil {
		return st
	}
	for _, k := range m.owned(keys) {
		raw, ok, err := m.backend.Get(k)
		if err != nil || !ok {
			continue
		}
		st.TotalEntries++
		st.TotalBytes += len(raw)
		entry, err := decodeEntry(raw)
		if err != nil || m.age(entry) > m.ttl {
			st.ExpiredEntries++
		}
	}
	st.ValidEntries = st.TotalEntries - st.ExpiredEntries
	return st
}

// =============================================================================
// HELPERS
// =============================================================================

func (m *Manager) logger() *slog.Logger {
	if m.log != nil {
		return m.log
	}
	return logging.WithFields("component", "cache")
}

func decodeEntry(raw []byte) (Entry, error) {
	var e Entry
	if err := json.Unmarshal(raw, &e); err != nil {
		return Entry{}, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if e.Timestamp == 0 || len(e.Data) == 0 {
		return Entry{}, ErrCorrupt
	}
	return e, nil
}

func (m *Manager) age(e Entry) time.Duration {
	return m.now().Sub(time.UnixMilli(e.Timestamp))
}

func (m *Manager) owned(keys []string) []string {
	out := keys[:0:0]
	for _, k := range keys {
		if strings.HasPrefix(k, m.prefix) {
			out = append(out, k)
		}
	}
	return out
}

func (m *Manager) remove(key string) bool {
	if err := m.backend.Delete(key); err != nil {
		m.logger().Warn("CACHE_DELETE_ERROR", "key", key, "error", err)
		return false
	}
	return true
}
