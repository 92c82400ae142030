// Package analysis runs one paid analysis end to end: name declensions, text
// generation, pronoun clean-up, PDF rendering, persistence, delivery and
// credit consumption.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/m3rciful/scanbot/bots/scanner/entitlement"
	"github.com/m3rciful/scanbot/bots/scanner/llm"
	"github.com/m3rciful/scanbot/bots/scanner/names"
	"github.com/m3rciful/scanbot/bots/scanner/render"
	"github.com/m3rciful/scanbot/bots/scanner/storage"
	"github.com/m3rciful/scanbot/core/logger"
)

// ErrIncompleteRequest is returned when the request text or name is missing.
var ErrIncompleteRequest = errors.New("analysis: request text and name are required")

// TextGenerator produces the analysis and the name declensions.
type TextGenerator interface {
	Analyze(ctx context.Context, requestText, displayName string) (llm.Result, error)
	Declensions(ctx context.Context, name string) (names.Declensions, error)
}

// Renderer turns sections into a local document file.
type Renderer interface {
	Render(ctx context.Context, doc render.Document) (string, error)
}

// Store persists analyses and their source photos.
type Store interface {
	SaveAnalysis(ctx context.Context, a storage.Analysis) (int64, error)
	SavePhoto(ctx context.Context, analysisID int64, data []byte) error
}

// PhotoFetcher downloads a photo reference into dir and returns the local path.
type PhotoFetcher interface {
	Download(ctx context.Context, ref, dir string) (string, error)
}

// DocumentSender delivers the rendered file to the chat.
type DocumentSender interface {
	SendDocument(ctx context.Context, chatID int64, path, filename, caption string) error
}

// Credits is the entitlement gate and counter.
type Credits interface {
	Check(userID int64) entitlement.Gate
	Consume(userID int64) (int, error)
}

// Deps groups the collaborators of an Orchestrator.
type Deps struct {
	Generator TextGenerator
	Renderer  Renderer
	Store     Store
	Photos    PhotoFetcher
	Out       DocumentSender
	Credits   Credits
}

// Options tunes an Orchestrator.
type Options struct {
	PhotosDir string
	Now       func() time.Time
}

// Request is the input of one run.
type Request struct {
	UserID      int64
	ChatID      int64
	DisplayName string
	RequestText string
	PhotoRef    string
}

// Result describes a completed run.
type Result struct {
	AnalysisID int64
	Remaining  int
	Usage      llm.Usage
	Model      string
}

// Orchestrator executes analysis runs.
type Orchestrator struct {
	deps Deps
	opts Options
}

// New returns an Orchestrator.
func New(deps Deps, opts Options) *Orchestrator {
	if opts.PhotosDir == "" {
		opts.PhotosDir = os.TempDir()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Orchestrator{deps: deps, opts: opts}
}

const documentCaption = "✨ Твой персональный Сканер подсознания готов!\n\n" +
	"Работай с трансформационными фразами каждый день. 🙏"

// Run executes every step in order. Any failure aborts the run; local files
// are removed either way.
func (o *Orchestrator) Run(ctx context.Context, req Request) (res Result, err error) {
	name := strings.TrimSpace(req.DisplayName)
	request := strings.TrimSpace(req.RequestText)
	if name == "" || request == "" {
		return Result{}, ErrIncompleteRequest
	}
	switch o.deps.Credits.Check(req.UserID) {
	case entitlement.GateNotEntitled:
		return Result{}, entitlement.ErrNotEntitled
	case entitlement.GateExhausted:
		return Result{}, entitlement.ErrNoCredits
	}

	started := time.Now()
	stage := "declensions"
	defer func() {
		attrs := []slog.Attr{
			slog.Int64("user_id", req.UserID),
			slog.String("status", logger.Status(err)),
			slog.Duration("duration", logger.Took(started)),
		}
		if err != nil {
			attrs = append(attrs, slog.String("stage", stage), slog.String("error", err.Error()))
			logger.LogEvent(ctx, logger.SVCAnalysis, slog.LevelError, "analysis.failed", attrs...)
			return
		}
		attrs = append(attrs,
			slog.Int64("analysis_id", res.AnalysisID),
			slog.Int("credits", res.Remaining),
			slog.Int("tokens", res.Usage.TotalTokens),
			slog.Float64("cost_usd", res.Usage.CostUSD),
		)
		logger.LogEvent(ctx, logger.SVCAnalysis, slog.LevelInfo, "analysis.done", attrs...)
	}()

	decl, derr := o.deps.Generator.Declensions(ctx, name)
	if derr != nil || !decl.Complete() {
		logger.LogEvent(ctx, logger.SVCAnalysis, slog.LevelWarn, "analysis.declensions_fallback",
			slog.Int64("user_id", req.UserID),
			slog.Any("error", derr),
		)
		decl = names.Fallback(name)
	}

	stage = "generate"
	gen, err := o.deps.Generator.Analyze(ctx, request, name)
	if err != nil {
		return Result{}, fmt.Errorf("generate: %w", err)
	}

	stage = "render"
	text := names.ReplacePronouns(gen.Text, decl)
	pdfPath, err := o.deps.Renderer.Render(ctx, render.Document{
		DisplayName: name,
		RequestText: request,
		Sections:    render.SplitSections(text),
		Date:        o.opts.Now(),
	})
	if err != nil {
		return Result{}, fmt.Errorf("render: %w", err)
	}
	defer removeLocal(ctx, pdfPath)

	stage = "persist"
	id, err := o.deps.Store.SaveAnalysis(ctx, storage.Analysis{
		UserID:            req.UserID,
		PhotoRef:          req.PhotoRef,
		RequestText:       request,
		Result:            text,
		PDFPath:           pdfPath,
		ProcessingSeconds: time.Since(started).Seconds(),
		TokensUsed:        gen.Usage.TotalTokens,
		CostUSD:           gen.Usage.CostUSD,
		Model:             gen.Model,
	})
	if err != nil {
		return Result{}, fmt.Errorf("save analysis: %w", err)
	}
	o.savePhoto(ctx, id, req.PhotoRef)

	stage = "deliver"
	filename := "Сканер_подсознания_" + name + ".pdf"
	if err := o.deps.Out.SendDocument(ctx, req.ChatID, pdfPath, filename, documentCaption); err != nil {
		return Result{}, fmt.Errorf("deliver: %w", err)
	}

	stage = "consume"
	remaining, err := o.deps.Credits.Consume(req.UserID)
	if err != nil {
		return Result{}, fmt.Errorf("consume credit: %w", err)
	}
	return Result{
		AnalysisID: id,
		Remaining:  remaining,
		Usage:      gen.Usage,
		Model:      gen.Model,
	}, nil
}

// savePhoto keeps the durable copy of the source photo. Failures are logged:
// the photo is dataset material, not part of the deliverable.
func (o *Orchestrator) savePhoto(ctx context.Context, analysisID int64, ref string) {
	if ref == "" || o.deps.Photos == nil {
		return
	}
	path, err := o.deps.Photos.Download(ctx, ref, o.opts.PhotosDir)
	if err != nil {
		logger.LogEvent(ctx, logger.SVCAnalysis, slog.LevelWarn, "analysis.photo_download_failed",
			slog.Int64("analysis_id", analysisID),
			slog.String("error", err.Error()),
		)
		return
	}
	defer removeLocal(ctx, path)
	data, err := os.ReadFile(path)
	if err == nil {
		err = o.deps.Store.SavePhoto(ctx, analysisID, data)
	}
	if err != nil {
		logger.LogEvent(ctx, logger.SVCAnalysis, slog.LevelWarn, "analysis.photo_save_failed",
			slog.Int64("analysis_id", analysisID),
			slog.String("error", err.Error()),
		)
	}
}

func removeLocal(ctx context.Context, path string) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.LogEvent(ctx, logger.SVCAnalysis, slog.LevelWarn, "analysis.cleanup_failed",
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
	}
}
