// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cache provides a best-effort TTL cache for read-mostly API data
// such as the memory list and message history.
//
// Entries are disposable snapshots, never the source of truth: every failure
// (corrupted entry, full storage, backend error) degrades to a cache miss.
//
// # Key Types
//
//   - Backend: raw key/value storage (MemoryBackend, SQLiteBackend, NoopBackend)
//   - Manager: TTL, quota guard, key scheme and pattern invalidation
//   - Stats: total/expired/valid entry counts
//
// # Usage
//
//	m := cache.NewManager(cache.NewMemoryBackend())
//	key := m.Key(cache.TypeMemories, uid, 12)
//	items, err := cache.Load(ctx, m, key, func(ctx context.Context) ([]api.Memory, error) {
//	    return client.FetchMemories(ctx, 12, 0)
//	})
//	...
//	m.InvalidateUser(cache.TypeMemories, uid) // after a write
package cache
