// Package names holds the Russian-language heuristics: finding a first name in
// free text, declension forms of that name, and replacing second-person
// pronouns with the declined name.
package names

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Extractor finds a display name in free-form text.
type Extractor interface {
	Extract(text string) (string, bool)
}

// capitalized Cyrillic word: first letter upper-case, rest lower-case.
const namePattern = `([А-ЯЁ][а-яё]+)`

// RussianExtractor recognizes common self-introduction phrasings.
type RussianExtractor struct {
	patterns []*regexp.Regexp
}

// NewRussianExtractor compiles the default patterns, most specific first.
func NewRussianExtractor() *RussianExtractor {
	raw := []string{
		`[Мм]еня\s+зовут\s+` + namePattern,
		`[Яя]\s+[-—–]\s+` + namePattern,
		`[Яя]\s+` + namePattern + `\s+и\s`,
		`[Яя]\s+` + namePattern + `[.,!]`,
		`^` + namePattern + `[.,!]`,
	}
	patterns := make([]*regexp.Regexp, 0, len(raw))
	for _, p := range raw {
		patterns = append(patterns, regexp.MustCompile(p))
	}
	return &RussianExtractor{patterns: patterns}
}

// Extract returns the first name matched by any pattern.
func (e *RussianExtractor) Extract(text string) (string, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", false
	}
	for _, re := range e.patterns {
		m := re.FindStringSubmatch(text)
		if len(m) > 1 && m[1] != "" {
			return m[1], true
		}
	}
	return "", false
}

// Normalize cleans a name typed as a standalone answer: trims punctuation and
// capitalizes the first letter. It returns false when nothing usable is left.
func Normalize(raw string) (string, bool) {
	name := strings.TrimFunc(raw, func(r rune) bool {
		return unicode.IsSpace(r) || unicode.IsPunct(r)
	})
	if fields := strings.Fields(name); len(fields) > 0 {
		name = fields[0]
	}
	if name == "" || utf8.RuneCountInString(name) > 40 {
		return "", false
	}
	r, size := utf8.DecodeRuneInString(name)
	return string(unicode.ToUpper(r)) + name[size:], true
}
