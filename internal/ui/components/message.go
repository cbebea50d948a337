// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/mattn/go-runewidth"

	"github.com/jeranaias/talkydino-tui/internal/transcript"
	"github.com/jeranaias/talkydino-tui/internal/ui/styles"
)

// =============================================================================
// MESSAGE RENDERING
// =============================================================================

// MessageOptions controls how a transcript message is drawn.
type MessageOptions struct {
	Width         int
	Markdown      *Markdown // nil renders finalized replies as plain text
	ShowRawBadge  bool
	ShowTimestamp bool
	Now           time.Time
}

// RenderMessage renders one transcript message. Assistant replies still
// streaming are drawn as wrapped plain text with a cursor; finalized
// replies go through markdown.
func RenderMessage(theme *styles.Theme, msg transcript.Message, opts MessageOptions) string {
	width := opts.Width
	if width < 20 {
		width = 20
	}
	contentWidth := width - 2 // border + padding

	header := renderMessageHeader(theme, msg, opts)

	var body string
	switch {
	case msg.Role == transcript.RoleUser:
		body = theme.UserBubble.Render(Wrap(msg.Content, contentWidth))

	case msg.IsStreaming():
		text := Wrap(msg.Content, contentWidth)
		body = theme.AssistantBubble.Render(text + theme.Cursor.Render("_"))

	case msg.Fallback:
		body = theme.FallbackBubble.Render(Wrap(msg.Content, contentWidth))

	default:
		content := msg.Content
		if content == "" {
			content = "(no reply)"
		}
		if opts.Markdown != nil {
			content = opts.Markdown.Render(content, contentWidth)
		} else {
			content = Wrap(content, contentWidth)
		}
		body = theme.AssistantBubble.Render(content)
	}

	return header + "\n" + body
}

func renderMessageHeader(theme *styles.Theme, msg transcript.Message, opts MessageOptions) string {
	var parts []string
	if msg.Role == transcript.RoleUser {
		parts = append(parts, theme.UserLabel.Render(msg.Role.DisplayName()))
	} else {
		parts = append(parts, theme.AssistantLabel.Render(msg.Role.DisplayName()))
	}

	if opts.ShowTimestamp {
		now := opts.Now
		if now.IsZero() {
			now = time.Now()
		}
		if ts := FormatClock(msg.Timestamp, now); ts != "" {
			parts = append(parts, theme.Timestamp.Render(ts))
		}
	}

	switch {
	case msg.Fallback:
		parts = append(parts, styles.RenderWarning("offline reply"))
	case msg.Cancelled:
		parts = append(parts, theme.Timestamp.Render("(stopped)"))
	case msg.Remote:
		parts = append(parts, theme.Timestamp.Render("(history)"))
	}

	if opts.ShowRawBadge && msg.HasRawOutput() {
		st := msg.RawStats()
		parts = append(parts, theme.Timestamp.Render("[raw "+fmtNumber(st.Chars)+" chars]"))
	}
	return strings.Join(parts, " ")
}

// =============================================================================
// CONTENT WRAPPING WITH RUNEWIDTH SUPPORT
// =============================================================================

// Wrap wraps text at width display columns, breaking at spaces where
// possible and hard-breaking words longer than a line.
func Wrap(text string, width int) string {
	if width <= 0 {
		return text
	}

	var out strings.Builder
	for i, line := range strings.Split(text, "\n") {
		if i > 0 {
			out.WriteByte('\n')
		}
		if runewidth.StringWidth(line) <= width {
			out.WriteString(line)
			continue
		}
		out.WriteString(wrapLine(line, width))
	}
	return out.String()
}

func wrapLine(line string, width int) string {
	var out, cur strings.Builder
	curWidth := 0

	flush := func() {
		if out.Len() > 0 {
			out.WriteByte('\n')
		}
		out.WriteString(strings.TrimRight(cur.String(), " "))
		cur.Reset()
		curWidth = 0
	}

	for _, word := range strings.Split(line, " ") {
		w := runewidth.StringWidth(word)
		if curWidth > 0 && curWidth+1+w > width {
			flush()
		}
		if curWidth > 0 {
			cur.WriteByte(' ')
			curWidth++
		}
		for w > width {
			// Hard-break a word longer than the line.
			head := runewidth.Truncate(word, width-curWidth, "")
			if head == "" {
				if curWidth > 0 {
					flush()
					continue
				}
				_, size := utf8.DecodeRuneInString(word)
				head = word[:size]
			}
			cur.WriteString(head)
			flush()
			word = word[len(head):]
			w = runewidth.StringWidth(word)
		}
		cur.WriteString(word)
		curWidth += w
	}
	if cur.Len() > 0 {
		flush()
	}
	return out.String()
}
