// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package transcript

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// =============================================================================
// ROLE TYPE
// =============================================================================

// Role represents the sender of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}

// DisplayName returns a human-readable name for the role.
func (r Role) DisplayName() string {
	switch r {
	case RoleUser:
		return "You"
	case RoleAssistant:
		return "Dino"
	default:
		return string(r)
	}
}

// ParseRole maps a backend role string to a Role. Anything that is not the
// user is shown as the assistant.
func ParseRole(s string) Role {
	if strings.EqualFold(strings.TrimSpace(s), string(RoleUser)) {
		return RoleUser
	}
	return RoleAssistant
}

// =============================================================================
// MESSAGE TYPE
// =============================================================================

// Message is a snapshot of one transcript entry.
type Message struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	RawOutput string    `json:"raw_output,omitempty"`
	Timestamp time.Time `json:"timestamp"`

	// Finalized messages no longer accept stream events.
	Finalized bool `json:"finalized"`
	// Fallback is set when Content was synthesized locally after a failure.
	Fallback bool `json:"fallback,omitempty"`
	// Cancelled is set when the stream was aborted before completion.
	Cancelled bool `json:"cancelled,omitempty"`
	// Remote is set for messages loaded from server-side history.
	Remote bool `json:"remote,omitempty"`
}

// IsStreaming returns true for an assistant message still accumulating.
func (m Message) IsStreaming() bool {
	return m.Role == RoleAssistant && !m.Finalized
}

// IsEmpty returns true if the message has no content.
func (m Message) IsEmpty() bool {
	return len(m.Content) == 0
}

// HasRawOutput returns true if debug output was received for the message.
func (m Message) HasRawOutput() bool {
	return m.RawOutput != ""
}

// Preview returns a truncated preview of the message content.
// Uses rune-based truncation to handle Unicode correctly.
func (m Message) Preview(maxLen int) string {
	content := strings.Join(strings.Fields(m.Content), " ")
	if maxLen <= 3 || utf8.RuneCountInString(content) <= maxLen {
		return content
	}
	runes := []rune(content)
	return string(runes[:maxLen-3]) + "..."
}

// RawStats returns size statistics for the message's raw output.
func (m Message) RawStats() OutputStats {
	return StatsOf(m.RawOutput)
}

// =============================================================================
// OUTPUT STATS
// =============================================================================

// OutputStats summarizes a block of text for the debug panel.
type OutputStats struct {
	Chars int `json:"chars"`
	Words int `json:"words"`
	Lines int `json:"lines"`
}

// StatsOf computes OutputStats for s. Empty text has zero lines.
func StatsOf(s string) OutputStats {
	if s == "" {
		return OutputStats{}
	}
	return OutputStats{
		Chars: utf8.RuneCountInString(s),
		Words: len(strings.Fields(s)),
		Lines: strings.Count(s, "\n") + 1,
	}
}

// generateID creates a unique message ID.
func generateID() string {
	return "msg_" + uuid.NewString()
}
