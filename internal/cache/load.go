// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cache

import (
	"context"
	"fmt"

	"golang.org/x/sync/singleflight"
)

// loads collapses concurrent fetches of the same key into one request.
var loads singleflight.Group

// Load returns the cached value for key or calls fetch and caches its result.
//
// Concurrent Loads for the same key share one fetch. Fetch errors are
// returned as-is and never cached; cache write failures are ignored.
// A nil Manager always fetches.
func Load[T any](ctx context.Context, m *Manager, key string, fetch func(context.Context) (T, error)) (T, error) {
	if m == nil {
		return fetch(ctx)
	}

	var cached T
	if m.Get(key, &cached) {
		return cached, nil
	}

	v, err, _ := loads.Do(key, func() (any, error) {
		val, err := fetch(ctx)
		if err != nil {
			return val, err
		}
		if setErr := m.Set(key, val); setErr != nil {
			m.logger().Debug("CACHE_SET_SKIPPED", "key", key, "error", setErr)
		}
		return val, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}

	out, ok := v.(T)
	if !ok {
		var zero T
		return zero, fmt.Errorf("cache: unexpected type %T for key %s", v, key)
	}
	return out, nil
}
