// Package format holds helpers for Telegram HTML parse mode.
package format

import (
	"html"
	"strings"
	"unicode/utf8"
)

// EscapeHTML escapes user-provided text for ParseMode HTML.
func EscapeHTML(s string) string {
	return html.EscapeString(s)
}

// Bold wraps escaped text into <b>.
func Bold(s string) string {
	return "<b>" + EscapeHTML(s) + "</b>"
}

// Truncate shortens s to at most max runes, appending an ellipsis when cut.
func Truncate(s string, max int) string {
	s = strings.TrimSpace(s)
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s
	}
	r := []rune(s)
	return string(r[:max]) + "…"
}
