// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// suggest.go - Command suggestion for typo correction.
package cli

import (
	"strings"
)

// validCommands is the list of all talkydino commands and aliases.
var validCommands = []string{
	"tui",
	"ask",
	"chat",
	"memory",
	"history",
	"whoami",
	"health",
	"profile",
	"inspect",
	"cache",
	"config",
	"version",
	"help",
	// Aliases
	"mem",      // memory
	"memories", // memory
	"messages", // history
	"chroma",   // inspect
}

// SuggestCommand returns the closest valid command for a mistyped one, or ""
// if nothing is close enough. An input that is a prefix of exactly one
// command suggests that command.
func SuggestCommand(input string) string {
	input = strings.ToLower(input)
	if len(input) < 2 {
		return ""
	}

	// 1 edit for short input, 2 from four characters on.
	maxDistance := 1
	if len(input) >= 4 {
		maxDistance = 2
	}

	bestMatch := ""
	bestDistance := -1
	for _, cmd := range validCommands {
		distance := levenshteinDistance(input, cmd)
		if distance == 0 {
			return ""
		}
		if distance <= maxDistance && (bestDistance == -1 || distance < bestDistance) {
			bestDistance = distance
			bestMatch = cmd
		}
	}
	if bestMatch != "" {
		return bestMatch
	}
	return uniquePrefixMatch(input)
}

// uniquePrefixMatch returns the only command starting with input, or "".
func uniquePrefixMatch(input string) string {
	match := ""
	for _, cmd := range validCommands {
		if !strings.HasPrefix(cmd, input) {
			continue
		}
		if match != "" {
			return ""
		}
		match = cmd
	}
	return match
}

// levenshteinDistance is the edit distance between two ASCII strings.
func levenshteinDistance(s1, s2 string) int {
	if len(s1) == 0 {
		return len(s2)
	}
	if len(s2) == 0 {
		return len(s1)
	}

	// Two rolling rows
	prev := make([]int, len(s2)+1)
	curr := make([]int, len(s2)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(s1); i++ {
		curr[0] = i
		for j := 1; j <= len(s2); j++ {
			cost := 1
			if s1[i-1] == s2[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(s2)]
}
