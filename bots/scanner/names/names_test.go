package names

import "testing"

var anna = Declensions{
	Nominative:    "Анна",
	Genitive:      "Анны",
	Dative:        "Анне",
	Accusative:    "Анну",
	Instrumental:  "Анной",
	Prepositional: "Анне",
}

func TestExtractFromIntroduction(t *testing.T) {
	ex := NewRussianExtractor()
	cases := map[string]string{
		"Меня зовут Анна, хочу разобраться с деньгами": "Анна",
		"меня зовут Мария, хочу больше дохода":         "Мария",
		"Я — Ольга, у меня вопрос про отношения":       "Ольга",
		"Я Света и я устала от долгов":                 "Света",
		"Я Катя. Хочу понять, что мешает":              "Катя",
		"Ирина. Про здоровье":                          "Ирина",
	}
	for text, want := range cases {
		got, ok := ex.Extract(text)
		if !ok || got != want {
			t.Fatalf("Extract(%q) = %q, %v; want %q", text, got, ok, want)
		}
	}
}

func TestExtractNoName(t *testing.T) {
	ex := NewRussianExtractor()
	for _, text := range []string{"хочу разобраться с деньгами", "", "   ", "я хочу денег"} {
		if got, ok := ex.Extract(text); ok {
			t.Fatalf("Extract(%q) = %q, expected no match", text, got)
		}
	}
}

func TestNormalize(t *testing.T) {
	if got, ok := Normalize("  анна!  "); !ok || got != "Анна" {
		t.Fatalf("Normalize = %q, %v", got, ok)
	}
	if got, ok := Normalize("Мария Петровна"); !ok || got != "Мария" {
		t.Fatalf("Normalize = %q, %v", got, ok)
	}
	if _, ok := Normalize(" ... "); ok {
		t.Fatal("expected empty name to be rejected")
	}
}

func TestReplacePronouns(t *testing.T) {
	cases := map[string]string{
		"у тебя есть сила":         "у Анны есть сила",
		"твоя сила":                "твоя сила",
		"Ты сильная":               "Анна сильная",
		"тебе важно отдыхать":      "Анне важно отдыхать",
		"я верю в тебя":            "я верю в Анну",
		"рядом с тобой люди":       "рядом с Анной люди",
		"горжусь тобою":            "горжусь Анной",
		"вижу тебя":                "вижу тебя",
		"У тебя и для тебя":        "У Анны и для Анны",
		"из-за тебя, про тебя":     "из-за Анны, про Анну",
		"Твои страхи держат тебя?": "Твои страхи держат тебя?",
		"крутые ты-моменты":        "крутые ты-моменты",
	}
	for in, want := range cases {
		if got := ReplacePronouns(in, anna); got != want {
			t.Fatalf("ReplacePronouns(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestReplacePronounsIncompleteDeclensions(t *testing.T) {
	in := "у тебя есть сила"
	if got := ReplacePronouns(in, Declensions{Nominative: "Анна"}); got != in {
		t.Fatalf("expected text unchanged, got %q", got)
	}
}

func TestParseDeclensions(t *testing.T) {
	reply := "```json\n{\"nominative\":\"Анна\",\"genitive\":\"Анны\",\"dative\":\"Анне\",\"accusative\":\"Анну\",\"instrumental\":\"Анной\",\"prepositional\":\"Анне\"}\n```"
	d, err := ParseDeclensions(reply)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if d != anna {
		t.Fatalf("got %+v", d)
	}
	if _, err := ParseDeclensions(`{"nominative":"Анна"}`); err == nil {
		t.Fatal("expected error for incomplete reply")
	}
	if _, err := ParseDeclensions("не знаю"); err == nil {
		t.Fatal("expected error for non-JSON reply")
	}
	if fb := Fallback("Анна"); !fb.Complete() || fb.Genitive != "Анна" {
		t.Fatalf("fallback = %+v", fb)
	}
}
