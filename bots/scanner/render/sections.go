package render

import (
	"regexp"
	"strconv"
	"strings"
)

// Section is one headed block of the analysis text. The preamble before the
// first heading has an empty Title.
type Section struct {
	Title string
	Lines []string
}

var (
	numberedHeading = regexp.MustCompile(`^\*{0,2}\s*(\d{1,2})\s*[.)]\s*(.+?)\s*\*{0,2}\s*:?\s*$`)
	boldHeading     = regexp.MustCompile(`^\*\*([^*]+)\*\*\s*:?\s*$`)
	percentRe       = regexp.MustCompile(`(\d{1,3})\s*%`)
)

// SplitSections splits analysis text on numbered "N) Title" / "N. Title"
// markers and on whole-line bold headings. Blank lines are kept as "" to
// preserve paragraph breaks; service lines ("ФОРМАТ:") are dropped.
func SplitSections(text string) []Section {
	var (
		out []Section
		cur = Section{}
	)
	flush := func() {
		for len(cur.Lines) > 0 && cur.Lines[len(cur.Lines)-1] == "" {
			cur.Lines = cur.Lines[:len(cur.Lines)-1]
		}
		if cur.Title != "" || len(cur.Lines) > 0 {
			out = append(out, cur)
		}
	}
	for _, raw := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		line := strings.TrimSpace(raw)
		if strings.Contains(line, "ФОРМАТ:") {
			continue
		}
		if title, ok := headingTitle(line); ok {
			flush()
			cur = Section{Title: title}
			continue
		}
		if line == "" && len(cur.Lines) == 0 {
			continue
		}
		cur.Lines = append(cur.Lines, strings.ReplaceAll(line, "**", ""))
	}
	flush()
	return out
}

func headingTitle(line string) (string, bool) {
	if m := numberedHeading.FindStringSubmatch(line); m != nil {
		title := strings.Trim(m[2], "* ")
		if title == "" {
			return "", false
		}
		n, _ := strconv.Atoi(m[1])
		return strconv.Itoa(n) + ". " + title, true
	}
	if m := boldHeading.FindStringSubmatch(line); m != nil {
		return strings.TrimSpace(m[1]), true
	}
	return "", false
}

// Number returns the heading number, or 0 for unnumbered sections.
func (s Section) Number() int {
	i := strings.IndexByte(s.Title, '.')
	if i <= 0 {
		return 0
	}
	n, err := strconv.Atoi(s.Title[:i])
	if err != nil {
		return 0
	}
	return n
}

// Level maps a "● NN%" indicator line onto a traffic-light level: 3 green
// (>=90), 2 orange (>=65), 1 red, 0 when the line carries no indicator.
func Level(line string) int {
	if !strings.HasPrefix(line, "●") {
		return 0
	}
	m := percentRe.FindStringSubmatch(line)
	if m == nil {
		return 0
	}
	p, _ := strconv.Atoi(m[1])
	switch {
	case p >= 90:
		return 3
	case p >= 65:
		return 2
	}
	return 1
}

var emojiReplacer = strings.NewReplacer(
	"🟡", "[3]",
	"💚", "[4]",
	"💙", "[5]",
	"💜", "[6]",
	"🤍", "[7]",
	"✨", "*",
	"💫", "*",
	"🔮", "~",
	"🌿", "~",
	"🕊", "~",
	"🌸", "~",
	"🔹", "•",
	"👉", "→",
	"✅", "•",
)

// CleanText maps emoji the embedded font cannot draw onto plain symbols and
// drops the rest.
func CleanText(s string) string {
	s = emojiReplacer.Replace(s)
	return strings.Map(func(r rune) rune {
		switch {
		case r == 0xFE0F || r == 0x200D:
			return -1
		case r >= 0x1F000:
			return -1
		}
		return r
	}, s)
}
