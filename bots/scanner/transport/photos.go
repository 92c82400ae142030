package transport

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	tele "gopkg.in/telebot.v4"
)

// Downloader is the subset of *tele.Bot needed to fetch files.
type Downloader interface {
	Download(file *tele.File, localFilename string) error
}

// Photos resolves Telegram file ids into local files.
type Photos struct {
	bot Downloader
}

// NewPhotos binds the fetcher to bot.
func NewPhotos(bot Downloader) *Photos {
	return &Photos{bot: bot}
}

// Download stores the photo under dir with a random name.
func (p *Photos) Download(ctx context.Context, ref, dir string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("photos dir: %w", err)
	}
	path := filepath.Join(dir, "photo_"+uuid.NewString()+".jpg")
	if err := p.bot.Download(&tele.File{FileID: ref}, path); err != nil {
		return "", fmt.Errorf("download photo: %w", err)
	}
	return path, nil
}
