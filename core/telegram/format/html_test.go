package format

import "testing"

func TestEscapeHTML(t *testing.T) {
	if got := EscapeHTML(`<Анна & "Ко">`); got != "&lt;Анна &amp; &#34;Ко&#34;&gt;" {
		t.Fatalf("EscapeHTML = %s", got)
	}
	if got := Bold("a<b"); got != "<b>a&lt;b</b>" {
		t.Fatalf("Bold = %s", got)
	}
}

func TestTruncateRunes(t *testing.T) {
	if got := Truncate("хочу больше дохода", 4); got != "хочу…" {
		t.Fatalf("Truncate = %q", got)
	}
	if got := Truncate("  деньги ", 10); got != "деньги" {
		t.Fatalf("Truncate short = %q", got)
	}
}
