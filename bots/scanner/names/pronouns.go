package names

import (
	"regexp"
	"strings"
)

var wordRe = regexp.MustCompile(`\p{L}+(?:-\p{L}+)*`)

var (
	genitivePreps     = set("у", "для", "без", "от", "из-за", "кроме")
	accusativePreps   = set("на", "про", "за", "в")
	instrumentalPreps = set("с", "со", "за", "перед", "над", "под")
)

func set(words ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}

// ReplacePronouns substitutes second-person personal pronouns in text with the
// matching case of the name. Prepositions are kept as written; possessive forms
// (твой, твоя, твоё, твои) are left untouched.
func ReplacePronouns(text string, d Declensions) string {
	if text == "" || !d.Complete() {
		return text
	}
	locs := wordRe.FindAllStringIndex(text, -1)
	if len(locs) == 0 {
		return text
	}

	var b strings.Builder
	b.Grow(len(text) + len(text)/8)
	last := 0
	for i, loc := range locs {
		word := text[loc[0]:loc[1]]
		prev := ""
		if i > 0 {
			p := locs[i-1]
			if gap := text[p[1]:loc[0]]; gap != "" && strings.TrimSpace(gap) == "" {
				prev = strings.ToLower(text[p[0]:p[1]])
			}
		}
		repl, ok := replacement(strings.ToLower(word), prev, d)
		if !ok {
			continue
		}
		b.WriteString(text[last:loc[0]])
		b.WriteString(repl)
		last = loc[1]
	}
	b.WriteString(text[last:])
	return b.String()
}

func replacement(word, prev string, d Declensions) (string, bool) {
	switch word {
	case "ты":
		return d.Nominative, true
	case "тебе":
		return d.Dative, true
	case "тобою":
		return d.Instrumental, true
	case "тебя":
		if _, ok := genitivePreps[prev]; ok {
			return d.Genitive, true
		}
		if _, ok := accusativePreps[prev]; ok {
			return d.Accusative, true
		}
	case "тобой":
		if _, ok := instrumentalPreps[prev]; ok {
			return d.Instrumental, true
		}
	}
	return "", false
}
