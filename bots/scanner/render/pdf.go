package render

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"
	"github.com/google/uuid"

	"github.com/m3rciful/scanbot/core/logger"
)

const family = "scan"

// Options configures the PDF renderer.
type Options struct {
	FontDir     string
	RegularFont string
	BoldFont    string
	OutputDir   string
	Now         func() time.Time
}

// Document is the input for one rendered analysis.
type Document struct {
	DisplayName string
	RequestText string
	Sections    []Section
	Date        time.Time
}

// Renderer turns analysis sections into an A4 PDF on local disk.
type Renderer struct {
	opts Options
}

// NewRenderer validates fonts and prepares the output directory.
func NewRenderer(opts Options) (*Renderer, error) {
	if opts.RegularFont == "" {
		opts.RegularFont = "DejaVuSans.ttf"
	}
	if opts.BoldFont == "" {
		opts.BoldFont = "DejaVuSans-Bold.ttf"
	}
	if opts.OutputDir == "" {
		opts.OutputDir = os.TempDir()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	for _, f := range []string{opts.RegularFont, opts.BoldFont} {
		if _, err := os.Stat(filepath.Join(opts.FontDir, f)); err != nil {
			return nil, fmt.Errorf("render: font %s: %w", f, err)
		}
	}
	if err := os.MkdirAll(opts.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("render: output dir: %w", err)
	}
	return &Renderer{opts: opts}, nil
}

var (
	accent = [3]int{0x6B, 0x3D, 0x4F}
	levels = map[int][3]int{
		1: {0xC6, 0x28, 0x28},
		2: {0xEF, 0x6C, 0x00},
		3: {0x2E, 0x7D, 0x32},
	}
)

// Render writes doc to a uniquely named file and returns its path. The
// caller owns the file and removes it after delivery.
func (r *Renderer) Render(ctx context.Context, doc Document) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	started := time.Now()
	date := doc.Date
	if date.IsZero() {
		date = r.opts.Now()
	}

	pdf := fpdf.New("P", "mm", "A4", r.opts.FontDir)
	pdf.AddUTF8Font(family, "", r.opts.RegularFont)
	pdf.AddUTF8Font(family, "B", r.opts.BoldFont)
	pdf.SetMargins(18, 18, 18)
	pdf.SetAutoPageBreak(true, 18)
	title := "Сканер подсознания по Мета-Методу для " + doc.DisplayName
	pdf.SetTitle(title, true)
	pdf.SetCreationDate(date)
	pdf.SetFooterFunc(func() {
		pdf.SetY(-14)
		pdf.SetFont(family, "", 8)
		pdf.SetTextColor(0x88, 0x88, 0x88)
		pageW, _ := pdf.GetPageSize()
		left, _, right, _ := pdf.GetMargins()
		half := footerCellWidth(pageW, left, right)
		pdf.CellFormat(half, 6, fmt.Sprintf("Сгенерировано %s", date.Format("02.01.2006")), "", 0, "L", false, 0, "")
		pdf.CellFormat(half, 6, fmt.Sprintf("%d", pdf.PageNo()), "", 0, "R", false, 0, "")
	})
	pdf.AddPage()

	pdf.SetFont(family, "B", 18)
	pdf.SetTextColor(accent[0], accent[1], accent[2])
	pdf.MultiCell(0, 9, CleanText(title), "", "C", false)
	pdf.Ln(2)
	pdf.SetFont(family, "", 10)
	pdf.SetTextColor(0x55, 0x55, 0x55)
	pdf.MultiCell(0, 5, date.Format("02.01.2006"), "", "C", false)
	if req := strings.TrimSpace(doc.RequestText); req != "" {
		pdf.Ln(4)
		pdf.SetFont(family, "B", 11)
		pdf.SetTextColor(0x33, 0x33, 0x33)
		pdf.MultiCell(0, 6, "Запрос:", "", "L", false)
		pdf.SetFont(family, "", 11)
		pdf.MultiCell(0, 6, CleanText(req), "", "L", false)
	}
	pdf.Ln(4)

	for _, sec := range doc.Sections {
		if sec.Title != "" {
			pdf.Ln(3)
			pdf.SetFont(family, "B", 13)
			pdf.SetTextColor(accent[0], accent[1], accent[2])
			pdf.MultiCell(0, 7, CleanText(sec.Title), "", "L", false)
			pdf.Ln(1)
		}
		for _, line := range sec.Lines {
			writeLine(pdf, line)
		}
	}

	if err := pdf.Error(); err != nil {
		return "", fmt.Errorf("render: layout: %w", err)
	}
	path := filepath.Join(r.opts.OutputDir, "scan_"+uuid.NewString()+".pdf")
	if err := pdf.OutputFileAndClose(path); err != nil {
		return "", fmt.Errorf("render: write: %w", err)
	}
	logger.Debug(ctx, "render", "render.pdf",
		slog.String("path", path),
		slog.Int("sections", len(doc.Sections)),
		slog.Duration("duration", logger.Took(started)),
	)
	return path, nil
}

func writeLine(pdf *fpdf.Fpdf, line string) {
	if line == "" {
		pdf.Ln(3)
		return
	}
	text := CleanText(line)
	pdf.SetFont(family, "", 11)
	pdf.SetTextColor(0x22, 0x22, 0x22)
	if lvl := Level(line); lvl > 0 {
		c := levels[lvl]
		pdf.SetTextColor(c[0], c[1], c[2])
		pdf.SetFont(family, "B", 11)
	}
	if isListItem(text) {
		left, _, _, _ := pdf.GetMargins()
		pdf.SetX(left + 5)
		pdf.MultiCell(0, 6, text, "", "L", false)
		return
	}
	pdf.MultiCell(0, 6, text, "", "L", false)
}

func isListItem(s string) bool {
	for _, p := range []string{"—", "-", "•", "●", "→"} {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}

// footerCellWidth splits the printable width between the date and the page number.
func footerCellWidth(pageW, left, right float64) float64 {
	return (pageW - left - right) / 2
}
