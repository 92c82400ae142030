package names

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Declensions holds the six grammatical cases of a first name.
type Declensions struct {
	Nominative    string `json:"nominative"`
	Genitive      string `json:"genitive"`
	Dative        string `json:"dative"`
	Accusative    string `json:"accusative"`
	Instrumental  string `json:"instrumental"`
	Prepositional string `json:"prepositional"`
}

// Fallback uses the bare name for every case.
func Fallback(name string) Declensions {
	return Declensions{
		Nominative:    name,
		Genitive:      name,
		Dative:        name,
		Accusative:    name,
		Instrumental:  name,
		Prepositional: name,
	}
}

// Complete reports whether every case is filled.
func (d Declensions) Complete() bool {
	for _, v := range []string{d.Nominative, d.Genitive, d.Dative, d.Accusative, d.Instrumental, d.Prepositional} {
		if strings.TrimSpace(v) == "" {
			return false
		}
	}
	return true
}

// DeclensionPrompt asks the text generator for the JSON object ParseDeclensions reads.
func DeclensionPrompt(name string) string {
	return fmt.Sprintf(`Просклоняй русское имя "%s" по всем падежам.
Ответь строго JSON-объектом без пояснений:
{"nominative": "...", "genitive": "...", "dative": "...", "accusative": "...", "instrumental": "...", "prepositional": "..."}
nominative — кто? (%s), genitive — кого?, dative — кому?, accusative — кого?, instrumental — кем?, prepositional — о ком? (без предлога).`, name, name)
}

// ParseDeclensions decodes a generator reply, tolerating markdown code fences.
func ParseDeclensions(reply string) (Declensions, error) {
	body := strings.TrimSpace(reply)
	if strings.HasPrefix(body, "```") {
		body = strings.TrimPrefix(body, "```json")
		body = strings.TrimPrefix(body, "```")
		body = strings.TrimSuffix(strings.TrimSpace(body), "```")
	}
	if i, j := strings.Index(body, "{"), strings.LastIndex(body, "}"); i >= 0 && j > i {
		body = body[i : j+1]
	}
	var d Declensions
	if err := json.Unmarshal([]byte(body), &d); err != nil {
		return Declensions{}, fmt.Errorf("names: decode declensions: %w", err)
	}
	if !d.Complete() {
		return Declensions{}, fmt.Errorf("names: incomplete declensions for %q", d.Nominative)
	}
	return d, nil
}
