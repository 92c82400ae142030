package storage

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"strings"
	"unicode"

	"github.com/m3rciful/scanbot/core/logger"
)

// Analysis is one generated analysis with its cost metadata.
type Analysis struct {
	UserID            int64
	PhotoRef          string
	RequestText       string
	Result            string
	PDFPath           string
	ProcessingSeconds float64
	TokensUsed        int
	CostUSD           float64
	Model             string
}

// SaveAnalysis inserts the analysis, its request themes and bumps the user's
// counter in one transaction.
func (r *Repository) SaveAnalysis(ctx context.Context, a Analysis) (int64, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("save analysis: begin: %w", err)
	}
	defer tx.Rollback()

	var id int64
	err = tx.QueryRowxContext(ctx, `
		INSERT INTO analyses
			(user_id, photo_ref, request_text, analysis_result, pdf_path,
			 processing_time_seconds, tokens_used, api_cost_usd, model_used)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`, a.UserID, a.PhotoRef, a.RequestText, a.Result, a.PDFPath,
		a.ProcessingSeconds, a.TokensUsed, a.CostUSD, a.Model).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("save analysis: insert: %w", err)
	}

	for _, theme := range ClassifyThemes(a.RequestText) {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO request_themes (analysis_id, theme) VALUES ($1, $2)`, id, theme); err != nil {
			return 0, fmt.Errorf("save analysis: theme: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE users SET total_analyses = total_analyses + 1, last_active = NOW()
		WHERE user_id = $1
	`, a.UserID); err != nil {
		return 0, fmt.Errorf("save analysis: user counter: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("save analysis: commit: %w", err)
	}
	logger.LogEvent(ctx, logger.DB, slog.LevelInfo, "analysis.saved",
		slog.Int64("analysis_id", id),
		slog.Int64("user_id", a.UserID),
		slog.Int("tokens", a.TokensUsed),
	)
	return id, nil
}

// SavePhoto stores the source photo as base64 for later dataset export.
func (r *Repository) SavePhoto(ctx context.Context, analysisID int64, data []byte) error {
	encoded := base64.StdEncoding.EncodeToString(data)
	if _, err := r.db.ExecContext(ctx, `
		INSERT INTO photos (analysis_id, photo_base64, photo_size_kb)
		VALUES ($1, $2, $3)
	`, analysisID, encoded, len(data)/1024); err != nil {
		return fmt.Errorf("save photo for analysis %d: %w", analysisID, err)
	}
	return nil
}

var themeKeywords = []struct {
	theme string
	stems []string
}{
	{"деньги", []string{"деньг", "денег", "доход", "финанс", "заработ", "богат", "долг"}},
	{"отношения", []string{"любов", "любв", "любим", "отношен", "партн", "муж", "жен", "семь", "брак"}},
	{"здоровье", []string{"здоров", "тело", "тела", "болез", "болит", "похуд", "энерги"}},
	{"реализация", []string{"реализ", "работ", "карьер", "призван", "бизнес", "дело", "дела"}},
}

// ClassifyThemes tags the request with coarse themes by word stems.
// Requests that match nothing are tagged "другое".
func ClassifyThemes(request string) []string {
	words := strings.FieldsFunc(strings.ToLower(request), func(r rune) bool {
		return !unicode.IsLetter(r)
	})
	var out []string
	for _, tk := range themeKeywords {
		if matchesAny(words, tk.stems) {
			out = append(out, tk.theme)
		}
	}
	if len(out) == 0 {
		out = append(out, "другое")
	}
	return out
}

func matchesAny(words, stems []string) bool {
	for _, w := range words {
		for _, stem := range stems {
			if strings.HasPrefix(w, stem) {
				return true
			}
		}
	}
	return false
}
