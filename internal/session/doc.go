// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session provides the chat session controller.
//
// A Controller runs one chat turn at a time through the state machine
//
//	Idle -> AwaitingConnection -> Streaming -> Finalized
//
// with ErrorFallback reachable from any non-idle state. A submission made
// while a turn is in flight is rejected with ErrBusy and is not queued.
//
// # Key Types
//
//   - Controller: owns the transcript and drives turns
//   - Streamer: opens the response stream (implemented by api.Client)
//   - Update: observer notification for every transcript change
//   - Result: outcome of a finished turn
//
// # Usage
//
//	ctrl := session.New(client, session.Options{
//	    OnEvent:    func(u session.Update) { program.Send(u) },
//	    Invalidate: client.InvalidateTurn,
//	})
//	res, err := ctrl.Submit(ctx, "hello")
package session
