package render

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const sample = `Вступление без заголовка.

**1) Общая картина**
Первая строка.
— пункт списка

**2. Деньги**
● Поток денег: 92%
ФОРМАТ: служебная строка
Текст про **деньги**.

**Итог**
Финал.`

func TestSplitSections(t *testing.T) {
	secs := SplitSections(sample)
	if len(secs) != 4 {
		t.Fatalf("expected 4 sections, got %d: %#v", len(secs), secs)
	}
	if secs[0].Title != "" || secs[0].Lines[0] != "Вступление без заголовка." {
		t.Fatalf("unexpected preamble: %#v", secs[0])
	}
	if secs[1].Title != "1. Общая картина" || secs[1].Number() != 1 {
		t.Fatalf("unexpected first heading: %#v", secs[1])
	}
	if len(secs[1].Lines) != 2 {
		t.Fatalf("trailing blank lines must be trimmed: %#v", secs[1].Lines)
	}
	if secs[2].Title != "2. Деньги" {
		t.Fatalf("unexpected second heading: %q", secs[2].Title)
	}
	for _, l := range secs[2].Lines {
		if strings.Contains(l, "ФОРМАТ:") {
			t.Fatalf("service line leaked: %q", l)
		}
		if strings.Contains(l, "**") {
			t.Fatalf("bold markers leaked: %q", l)
		}
	}
	if secs[3].Title != "Итог" || secs[3].Number() != 0 {
		t.Fatalf("unexpected bold heading: %#v", secs[3])
	}
}

func TestSplitSectionsPlainText(t *testing.T) {
	secs := SplitSections("просто текст\nвторая строка")
	if len(secs) != 1 || secs[0].Title != "" || len(secs[0].Lines) != 2 {
		t.Fatalf("unexpected sections: %#v", secs)
	}
	if got := SplitSections("   \n"); len(got) != 0 {
		t.Fatalf("expected no sections for blank text, got %#v", got)
	}
}

func TestLevel(t *testing.T) {
	cases := map[string]int{
		"● Любовь: 95%":   3,
		"● Здоровье: 70%": 2,
		"● Деньги: 40 %":  1,
		"Деньги: 40%":     0,
		"● без процентов": 0,
	}
	for in, want := range cases {
		if got := Level(in); got != want {
			t.Fatalf("Level(%q) = %d, want %d", in, got, want)
		}
	}
}

func TestFooterCellsFitMargins(t *testing.T) {
	// A4 with 15mm margins.
	w := footerCellWidth(210, 15, 15)
	if w != 90 {
		t.Fatalf("width = %v, want 90", w)
	}
	if 15+2*w > 210-15 {
		t.Fatalf("footer overruns the right margin: %v", 15+2*w)
	}
}

func TestCleanText(t *testing.T) {
	in := "💚 Сердце ✨ сияет \U0001F525\u200d\ufe0f"
	if got := CleanText(in); got != "[4] Сердце * сияет " {
		t.Fatalf("unexpected clean text: %q", got)
	}
}

func TestRendererWritesPDF(t *testing.T) {
	fontDir := "/usr/share/fonts/truetype/dejavu"
	if _, err := os.Stat(filepath.Join(fontDir, "DejaVuSans.ttf")); err != nil {
		t.Skip("dejavu fonts not installed")
	}
	if _, err := os.Stat(filepath.Join(fontDir, "DejaVuSans-Bold.ttf")); err != nil {
		t.Skip("dejavu bold font not installed")
	}
	out := t.TempDir()
	r, err := NewRenderer(Options{FontDir: fontDir, OutputDir: out})
	if err != nil {
		t.Fatalf("new renderer: %v", err)
	}
	path, err := r.Render(context.Background(), Document{
		DisplayName: "Мария",
		RequestText: "хочу больше дохода",
		Sections:    SplitSections(sample),
		Date:        time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if filepath.Dir(path) != out || !strings.HasPrefix(filepath.Base(path), "scan_") {
		t.Fatalf("unexpected path %q", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read pdf: %v", err)
	}
	if !strings.HasPrefix(string(data), "%PDF-") {
		t.Fatalf("output is not a pdf")
	}
}

func TestNewRendererMissingFont(t *testing.T) {
	if _, err := NewRenderer(Options{FontDir: t.TempDir()}); err == nil {
		t.Fatalf("expected error for missing fonts")
	}
}
