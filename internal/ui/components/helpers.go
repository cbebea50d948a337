// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strconv"
	"strings"
	"time"

	"github.com/mattn/go-runewidth"
)

// =============================================================================
// SHARED HELPER FUNCTIONS
// =============================================================================

// fmtNumber formats a number with thousand separators.
func fmtNumber(n int) string {
	if n < 0 {
		return "-" + fmtNumber(-n)
	}
	s := strconv.Itoa(n)
	if n < 1000 {
		return s
	}

	var b strings.Builder
	lead := len(s) % 3
	if lead > 0 {
		b.WriteString(s[:lead])
	}
	for i := lead; i < len(s); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(s[i : i+3])
	}
	return b.String()
}

// fmtPercent formats a 0..1 ratio as a whole percentage.
func fmtPercent(ratio float64) string {
	return strconv.Itoa(int(ratio*100+0.5)) + "%"
}

// Truncate shortens s to at most width display columns, appending "..."
// when it cuts. Wide runes count as two columns.
func Truncate(s string, width int) string {
	if width <= 0 {
		return ""
	}
	if runewidth.StringWidth(s) <= width {
		return s
	}
	if width <= 3 {
		return runewidth.Truncate(s, width, "")
	}
	return runewidth.Truncate(s, width, "...")
}

// OneLine collapses whitespace so multi-line text fits a list row.
func OneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// FormatClock formats t as "15:04", or "Jan 2 15:04" when it is not today.
func FormatClock(t, now time.Time) string {
	if t.IsZero() {
		return ""
	}
	t = t.In(now.Location())
	y1, m1, d1 := t.Date()
	y2, m2, d2 := now.Date()
	if y1 == y2 && m1 == m2 && d1 == d2 {
		return t.Format("15:04")
	}
	return t.Format("Jan 2 15:04")
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
