// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/jeranaias/talkydino-tui/internal/cache"
)

// =============================================================================
// CHAT
// =============================================================================

// StreamChat posts message to /api/chat and returns the open event stream.
// The caller must close the body. Cancelling ctx aborts the stream.
func (c *Client) StreamChat(ctx context.Context, message string) (io.ReadCloser, error) {
	req, err := c.newRequest(ctx, http.MethodPost, "/api/chat", nil, map[string]string{"message": message})
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	// PERFORMANCE: Streaming client has no overall timeout; ctx controls it
	resp, err := c.send(c.streaming, req)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

// InvalidateTurn drops the cached lists a completed chat turn changes.
func (c *Client) InvalidateTurn() {
	c.Invalidate(cache.TypeMessages, cache.TypeMemories, cache.TypeChroma)
}

// Invalidate drops the cached scopes of the given data types so the next
// read goes to the backend.
func (c *Client) Invalidate(dataTypes ...string) {
	for _, dt := range dataTypes {
		c.invalidate(dt)
	}
}

// =============================================================================
// MEMORIES
// =============================================================================

type memoriesResponse struct {
	Items []Memory `json:"items"`
}

type memoryResponse struct {
	Memory Memory `json:"memory"`
}

// Memories returns up to limit stored memories starting at offset.
func (c *Client) Memories(ctx context.Context, limit, offset int) ([]Memory, error) {
	return cached(ctx, c, cache.TypeMemories, page(limit, offset), func(ctx context.Context) ([]Memory, error) {
		var resp memoriesResponse
		if err := c.doJSON(ctx, http.MethodGet, "/api/memory", pageQuery(limit, offset), nil, &resp); err != nil {
			return nil, fmt.Errorf("failed to load memories: %w", err)
		}
		if resp.Items == nil {
			resp.Items = []Memory{}
		}
		return resp.Items, nil
	})
}

// AddMemory stores a memory and returns the saved record.
func (c *Client) AddMemory(ctx context.Context, m Memory) (Memory, error) {
	if strings.TrimSpace(m.Key) == "" {
		return Memory{}, ErrMissingKey
	}
	var resp memoryResponse
	if err := c.doJSON(ctx, http.MethodPost, "/api/memory", nil, m, &resp); err != nil {
		return Memory{}, fmt.Errorf("failed to add memory: %w", err)
	}
	c.invalidate(cache.TypeMemories)
	return resp.Memory, nil
}

// =============================================================================
// MESSAGE HISTORY
// =============================================================================

type messagesResponse struct {
	Items []HistoryMessage `json:"items"`
}

// Messages returns up to limit past messages starting at offset.
func (c *Client) Messages(ctx context.Context, limit, offset int) ([]HistoryMessage, error) {
	return cached(ctx, c, cache.TypeMessages, page(limit, offset), func(ctx context.Context) ([]HistoryMessage, error) {
		var resp messagesResponse
		if err := c.doJSON(ctx, http.MethodGet, "/api/messages", pageQuery(limit, offset), nil, &resp); err != nil {
			return nil, fmt.Errorf("failed to load messages: %w", err)
		}
		if resp.Items == nil {
			resp.Items = []HistoryMessage{}
		}
		return resp.Items, nil
	})
}

// =============================================================================
// IDENTITY AND HEALTH
// =============================================================================

// WhoAmI returns the backend's view of the caller.
func (c *Client) WhoAmI(ctx context.Context) (WhoAmI, error) {
	var w WhoAmI
	if err := c.doJSON(ctx, http.MethodGet, "/whoami", nil, nil, &w); err != nil {
		return WhoAmI{}, fmt.Errorf("failed to load user info: %w", err)
	}
	return w, nil
}

// Health returns the backend health report.
func (c *Client) Health(ctx context.Context) (Health, error) {
	var h Health
	if err := c.doJSON(ctx, http.MethodGet, "/health", nil, nil, &h); err != nil {
		return Health{}, fmt.Errorf("health check failed: %w", err)
	}
	return h, nil
}

// =============================================================================
// VECTOR STORE INSPECTION
// =============================================================================

// InspectChroma returns the stored episodes and collection stats.
func (c *Client) InspectChroma(ctx context.Context) (ChromaInspection, error) {
	return cached(ctx, c, cache.TypeChroma, "inspect", func(ctx context.Context) (ChromaInspection, error) {
		var resp ChromaInspection
		if err := c.doJSON(ctx, http.MethodGet, "/api/chroma/inspect", nil, nil, &resp); err != nil {
			return ChromaInspection{}, fmt.Errorf("failed to load vector store data: %w", err)
		}
		if resp.Episodes == nil {
			resp.Episodes = []Episode{}
		}
		return resp, nil
	})
}

// =============================================================================
// PROFILE CARD
// =============================================================================

type profileResponse struct {
	Profile Profile `json:"profile"`
}

type profileStatsResponse struct {
	Stats ProfileStats `json:"stats"`
}

// ProfileCard returns the learned profile.
func (c *Client) ProfileCard(ctx context.Context) (Profile, error) {
	return cached(ctx, c, cache.TypeProfile, "card", func(ctx context.Context) (Profile, error) {
		var resp profileResponse
		if err := c.doJSON(ctx, http.MethodGet, "/api/profile-card", nil, nil, &resp); err != nil {
			return Profile{}, fmt.Errorf("failed to load profile: %w", err)
		}
		return resp.Profile, nil
	})
}

// ProfileStats returns the profile card summary.
func (c *Client) ProfileStats(ctx context.Context) (ProfileStats, error) {
	return cached(ctx, c, cache.TypeProfile, "stats", func(ctx context.Context) (ProfileStats, error) {
		var resp profileStatsResponse
		if err := c.doJSON(ctx, http.MethodGet, "/api/profile-card/stats", nil, nil, &resp); err != nil {
			return ProfileStats{}, fmt.Errorf("failed to load profile stats: %w", err)
		}
		return resp.Stats, nil
	})
}

// RefreshProfileCard asks the backend to rebuild the profile and returns it.
func (c *Client) RefreshProfileCard(ctx context.Context) (Profile, error) {
	var resp profileResponse
	if err := c.doJSON(ctx, http.MethodPost, "/api/profile-card/refresh", nil, nil, &resp); err != nil {
		return Profile{}, fmt.Errorf("failed to refresh profile: %w", err)
	}
	c.invalidate(cache.TypeProfile)
	return resp.Profile, nil
}

// =============================================================================
// HELPERS
// =============================================================================

func page(limit, offset int) string {
	return strconv.Itoa(limit) + ":" + strconv.Itoa(offset)
}

func pageQuery(limit, offset int) url.Values {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if offset > 0 {
		q.Set("offset", strconv.Itoa(offset))
	}
	return q
}
