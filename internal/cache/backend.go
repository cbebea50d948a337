// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cache

import (
	"errors"
	"sort"
	"sync"
)

// ErrClosed is returned by backends after Close.
var ErrClosed = errors.New("cache backend closed")

// =============================================================================
// BACKEND INTERFACE
// =============================================================================

// Backend is raw key/value storage for serialized cache entries.
// Implementations must be safe for concurrent use.
type Backend interface {
	// Get returns the stored value and whether the key exists.
	Get(key string) ([]byte, bool, error)
	// Set stores value under key, replacing any previous value.
	Set(key string, value []byte) error
	// Delete removes key. Deleting a missing key is not an error.
	Delete(key string) error
	// Keys returns every stored key.
	Keys() ([]string, error)
	// Close releases backend resources.
	Close() error
}

// sizer is implemented by backends that can report their total value size
// without reading every entry.
type sizer interface {
	Size() (int, error)
}

// =============================================================================
// MEMORY BACKEND
// =============================================================================

// MemoryBackend keeps entries in a map. Used in tests and when the on-disk
// cache cannot be opened.
type MemoryBackend struct {
	mu     sync.RWMutex
	data   map[string][]byte
	closed bool
}

// NewMemoryBackend creates an empty in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{data: make(map[string][]byte)}
}

func (b *MemoryBackend) Get(key string) ([]byte, bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return nil, false, ErrClosed
	}
	v, ok := b.data[key]
	if !ok {
		return nil, false, nil
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, true, nil
}

func (b *MemoryBackend) Set(key string, value []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrClosed
	}
	v := make([]byte, len(value))
	copy(v, value)
	b.data[key] = v
	return nil
}

func (b *MemoryBackend) Delete(key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrClosed
	}
	delete(b.data, key)
	return nil
}

func (b *MemoryBackend) Keys() ([]string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return nil, ErrClosed
	}
	keys := make([]string, 0, len(b.data))
	for k := range b.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

// Size returns the total length of all stored values.
func (b *MemoryBackend) Size() (int, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return 0, ErrClosed
	}
	total := 0
	for _, v := range b.data {
		total += len(v)
	}
	return total, nil
}

func (b *MemoryBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	b.data = nil
	return nil
}

// =============================================================================
// NOOP BACKEND
// =============================================================================

// NoopBackend stores nothing. Every Get is a miss.
type NoopBackend struct{}

func (NoopBackend) Get(string) ([]byte, bool, error) { return nil, false, nil }
func (NoopBackend) Set(string, []byte) error         { return nil }
func (NoopBackend) Delete(string) error              { return nil }
func (NoopBackend) Keys() ([]string, error)          { return nil, nil }
func (NoopBackend) Size() (int, error)               { return 0, nil }
func (NoopBackend) Close() error                     { return nil }
