// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package api provides the HTTP client for the Talky Dino backend.
//
// # Endpoints
//
//   - POST /api/chat: streamed reply (server-sent events)
//   - GET/POST /api/memory: stored memories
//   - GET /api/messages: message history
//   - GET /whoami, GET /health
//   - GET /api/chroma/inspect: vector store episodes and stats
//   - GET /api/profile-card, /api/profile-card/stats, POST /api/profile-card/refresh
//
// Every request carries the bearer token from an oauth2.TokenSource and
// passes through a token bucket rate limiter. Read endpoints are cached
// per user through cache.Manager; writes invalidate the affected scope.
//
// # Usage
//
//	client := api.New(api.Options{
//	    BaseURL:     cfg.API.BaseURL,
//	    TokenSource: session.TokenSource(),
//	    Cache:       cacheManager,
//	    UserID:      session.UserID(),
//	})
//	body, err := client.StreamChat(ctx, "hello")
package api
