package storage

import (
	"context"
	"fmt"
	"time"
)

// RecentAnalysis is a row of the recent analyses report.
type RecentAnalysis struct {
	ID          int64     `db:"id" json:"id"`
	UserID      int64     `db:"user_id" json:"user_id"`
	FirstName   string    `db:"first_name" json:"first_name"`
	RequestText string    `db:"request_text" json:"request_text"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	TokensUsed  int       `db:"tokens_used" json:"tokens_used"`
	CostUSD     float64   `db:"api_cost_usd" json:"cost_usd"`
	Model       string    `db:"model_used" json:"model"`
	Approved    bool      `db:"is_approved_for_dataset" json:"approved"`
}

// ThemeCount is the number of analyses tagged with a theme.
type ThemeCount struct {
	Theme string `db:"theme" json:"theme"`
	Count int    `db:"count" json:"count"`
}

// CostSummary aggregates generation spend over all analyses.
type CostSummary struct {
	Analyses    int     `db:"total_analyses" json:"analyses"`
	TotalUSD    float64 `db:"total_cost_usd" json:"total_usd"`
	AvgUSD      float64 `db:"avg_cost_usd" json:"avg_usd"`
	MinUSD      float64 `db:"min_cost_usd" json:"min_usd"`
	MaxUSD      float64 `db:"max_cost_usd" json:"max_usd"`
	TotalTokens int64   `db:"total_tokens" json:"total_tokens"`
	AvgTokens   float64 `db:"avg_tokens" json:"avg_tokens"`
}

// RecentAnalyses returns the newest analyses, newest first.
func (r *Repository) RecentAnalyses(ctx context.Context, limit int) ([]RecentAnalysis, error) {
	if limit <= 0 {
		limit = 10
	}
	var rows []RecentAnalysis
	err := r.db.SelectContext(ctx, &rows, `
		SELECT a.id, a.user_id, COALESCE(u.first_name, '') AS first_name, a.request_text, a.created_at,
			a.tokens_used, a.api_cost_usd, a.model_used, a.is_approved_for_dataset
		FROM analyses a
		JOIN users u ON a.user_id = u.user_id
		ORDER BY a.created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("recent analyses: %w", err)
	}
	return rows, nil
}

// ThemeCounts returns request themes ordered by popularity.
func (r *Repository) ThemeCounts(ctx context.Context) ([]ThemeCount, error) {
	var rows []ThemeCount
	err := r.db.SelectContext(ctx, &rows, `
		SELECT theme, COUNT(*) AS count
		FROM request_themes
		GROUP BY theme
		ORDER BY count DESC, theme
	`)
	if err != nil {
		return nil, fmt.Errorf("theme counts: %w", err)
	}
	return rows, nil
}

// CostSummary aggregates tokens and spend across all analyses.
func (r *Repository) CostSummary(ctx context.Context) (CostSummary, error) {
	var s CostSummary
	err := r.db.GetContext(ctx, &s, `
		SELECT
			COUNT(*) AS total_analyses,
			COALESCE(SUM(api_cost_usd), 0) AS total_cost_usd,
			COALESCE(AVG(api_cost_usd), 0) AS avg_cost_usd,
			COALESCE(MIN(api_cost_usd), 0) AS min_cost_usd,
			COALESCE(MAX(api_cost_usd), 0) AS max_cost_usd,
			COALESCE(SUM(tokens_used), 0) AS total_tokens,
			COALESCE(AVG(tokens_used), 0) AS avg_tokens
		FROM analyses
	`)
	if err != nil {
		return CostSummary{}, fmt.Errorf("cost summary: %w", err)
	}
	return s, nil
}

// ApproveForDataset marks an analysis as fine-tuning material.
func (r *Repository) ApproveForDataset(ctx context.Context, analysisID int64, rating int, notes string) error {
	if rating < 1 || rating > 5 {
		return fmt.Errorf("approve analysis %d: rating %d out of range 1..5", analysisID, rating)
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE analyses
		SET is_approved_for_dataset = TRUE, quality_rating = $1, dataset_notes = $2
		WHERE id = $3
	`, rating, notes, analysisID)
	if err != nil {
		return fmt.Errorf("approve analysis %d: %w", analysisID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("approve analysis %d: %w", analysisID, err)
	}
	if n == 0 {
		return fmt.Errorf("approve analysis %d: %w", analysisID, ErrNotFound)
	}
	return nil
}
