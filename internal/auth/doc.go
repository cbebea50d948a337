// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package auth obtains the bearer token used for every backend request.
//
// Three modes are supported:
//   - static token (auth.static_token or TALKYDINO_TOKEN)
//   - anonymous Identity Toolkit account, persisted in the identity file
//     and refreshed through the secure token endpoint
//   - demo identity (uid "demo-user", token "demo-token") when sign-in is
//     unavailable or does not finish within the auth timeout
//
// Tokens are exposed as an oauth2.TokenSource so the API client can use
// oauth2.Transport to attach them.
package auth
