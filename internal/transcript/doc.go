// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package transcript holds the chat transcript and the reducer that applies
// stream events to it.
//
// A Transcript is an insertion-ordered list of messages. It is append-only
// except for the single in-flight assistant message, which accumulates
// content deltas until a Done event (or a fallback/cancel) finalizes it.
// Finalized messages are immutable.
//
// # Key Types
//
//   - Message: snapshot of one transcript entry (role, content, raw output)
//   - Transcript: the ordered store plus the Apply reducer
//   - OutputStats: character, word and line counts of raw debug output
//
// # Usage
//
//	t := transcript.New()
//	t.AppendUser("hi")
//	bot, _ := t.AppendPlaceholder()
//	_ = t.Apply(bot.ID, stream.ContentDelta("He"))
//	_ = t.Apply(bot.ID, stream.ContentDelta("llo"))
//	_ = t.Apply(bot.ID, stream.Done())
//
// Transcript methods are safe for concurrent use; a single writer (the
// session controller) mutates it while the UI reads snapshots.
package transcript
