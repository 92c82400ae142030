package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
)

type datasetContent struct {
	Type     string        `json:"type"`
	Text     string        `json:"text,omitempty"`
	ImageURL *datasetImage `json:"image_url,omitempty"`
}

type datasetImage struct {
	URL string `json:"url"`
}

type datasetMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type datasetLine struct {
	Messages []datasetMessage `json:"messages"`
}

// ExportDataset streams approved analyses rated at least minRating as
// chat fine-tuning JSONL and returns the number of lines written.
func (r *Repository) ExportDataset(ctx context.Context, w io.Writer, minRating int) (int, error) {
	rows, err := r.db.QueryxContext(ctx, `
		SELECT a.request_text, a.analysis_result, COALESCE(p.photo_base64, '') AS photo_base64
		FROM analyses a
		LEFT JOIN photos p ON a.id = p.analysis_id
		WHERE a.is_approved_for_dataset = TRUE AND a.quality_rating >= $1
		ORDER BY a.created_at DESC
	`, minRating)
	if err != nil {
		return 0, fmt.Errorf("export dataset: %w", err)
	}
	defer rows.Close()

	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	count := 0
	for rows.Next() {
		var request, result, photo string
		if err := rows.Scan(&request, &result, &photo); err != nil {
			return count, fmt.Errorf("export dataset: scan: %w", err)
		}
		user := []datasetContent{{Type: "text", Text: request}}
		if photo != "" {
			user = append(user, datasetContent{
				Type:     "image_url",
				ImageURL: &datasetImage{URL: "data:image/jpeg;base64," + photo},
			})
		}
		line := datasetLine{Messages: []datasetMessage{
			{Role: "user", Content: user},
			{Role: "assistant", Content: result},
		}}
		if err := enc.Encode(line); err != nil {
			return count, fmt.Errorf("export dataset: write: %w", err)
		}
		count++
	}
	if err := rows.Err(); err != nil {
		return count, fmt.Errorf("export dataset: %w", err)
	}
	return count, nil
}
