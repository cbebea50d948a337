// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"encoding/json"
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/formatters"
	"github.com/alecthomas/chroma/v2/lexers"
	chromaStyles "github.com/alecthomas/chroma/v2/styles"
)

// =============================================================================
// SYNTAX HIGHLIGHTING (Chroma-based)
// =============================================================================

// Highlight applies terminal syntax highlighting to code. An empty
// language is detected from the content. On any failure the code is
// returned unchanged.
func Highlight(code, language string) string {
	var lexer chroma.Lexer
	if language != "" {
		lexer = lexers.Get(language)
	}
	if lexer == nil {
		lexer = lexers.Analyse(code)
	}
	if lexer == nil {
		lexer = lexers.Fallback
	}
	lexer = chroma.Coalesce(lexer)

	style := chromaStyles.Get("monokai")
	if style == nil {
		style = chromaStyles.Fallback
	}

	formatter := formatters.Get("terminal256")
	if formatter == nil {
		formatter = formatters.Fallback
	}

	iterator, err := lexer.Tokenise(nil, code)
	if err != nil {
		return code
	}

	var buf strings.Builder
	if err := formatter.Format(&buf, style, iterator); err != nil {
		return code
	}
	return buf.String()
}

// RawLanguage guesses the language of a raw model trace: "json" when the
// whole trace is a JSON document, otherwise "markdown".
func RawLanguage(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed != "" && (trimmed[0] == '{' || trimmed[0] == '[') && json.Valid([]byte(trimmed)) {
		return "json"
	}
	return "markdown"
}

// PrettyRaw indents a JSON trace and highlights it. Non-JSON traces are
// highlighted as markdown.
func PrettyRaw(raw string, highlight bool) string {
	lang := RawLanguage(raw)
	text := raw
	if lang == "json" {
		var v any
		if err := json.Unmarshal([]byte(raw), &v); err == nil {
			if b, err := json.MarshalIndent(v, "", "  "); err == nil {
				text = string(b)
			}
		}
	}
	if !highlight {
		return text
	}
	return Highlight(text, lang)
}
