// Package httpapi serves the out-of-band HTTP surface: health, payment
// webhooks and the admin reports.
package httpapi

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/m3rciful/scanbot/bots/scanner/storage"
	"github.com/m3rciful/scanbot/core/logger"
)

// Reports are the queries exposed under /reports.
type Reports interface {
	RecentAnalyses(ctx context.Context, limit int) ([]storage.RecentAnalysis, error)
	ThemeCounts(ctx context.Context) ([]storage.ThemeCount, error)
	CostSummary(ctx context.Context) (storage.CostSummary, error)
	ExportDataset(ctx context.Context, w io.Writer, minRating int) (int, error)
}

// Options wires the router. Nil collaborators leave their routes unmounted.
type Options struct {
	// Ping reports readiness of the backing store.
	Ping    func(ctx context.Context) error
	Webhook http.Handler
	Reports Reports
	// ReportsToken guards /reports with a bearer token; empty disables the group.
	ReportsToken string
}

const (
	defaultRecentLimit = 20
	maxRecentLimit     = 200
	defaultMinRating   = 4
)

// NewRouter builds the chi router.
func NewRouter(opts Options) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if opts.Ping != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := opts.Ping(ctx); err != nil {
				respondError(w, http.StatusServiceUnavailable, "database unavailable")
				return
			}
		}
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	if opts.Webhook != nil {
		r.Method(http.MethodPost, "/webhooks/stripe", opts.Webhook)
	}

	if opts.Reports != nil && opts.ReportsToken != "" {
		h := reportsHandler{reports: opts.Reports}
		r.Route("/reports", func(rr chi.Router) {
			rr.Use(bearerAuth(opts.ReportsToken))
			rr.Get("/recent", h.recent)
			rr.Get("/themes", h.themes)
			rr.Get("/costs", h.costs)
			rr.Get("/dataset.jsonl", h.dataset)
		})
	}
	return r
}

type reportsHandler struct {
	reports Reports
}

func (h reportsHandler) recent(w http.ResponseWriter, r *http.Request) {
	limit, ok := intParam(w, r, "limit", defaultRecentLimit)
	if !ok {
		return
	}
	if limit <= 0 || limit > maxRecentLimit {
		respondError(w, http.StatusBadRequest, "limit out of range")
		return
	}
	rows, err := h.reports.RecentAnalyses(r.Context(), limit)
	if err != nil {
		internalError(w, r, "reports.recent", err)
		return
	}
	if rows == nil {
		rows = []storage.RecentAnalysis{}
	}
	respondJSON(w, http.StatusOK, rows)
}

func (h reportsHandler) themes(w http.ResponseWriter, r *http.Request) {
	rows, err := h.reports.ThemeCounts(r.Context())
	if err != nil {
		internalError(w, r, "reports.themes", err)
		return
	}
	if rows == nil {
		rows = []storage.ThemeCount{}
	}
	respondJSON(w, http.StatusOK, rows)
}

func (h reportsHandler) costs(w http.ResponseWriter, r *http.Request) {
	sum, err := h.reports.CostSummary(r.Context())
	if err != nil {
		internalError(w, r, "reports.costs", err)
		return
	}
	respondJSON(w, http.StatusOK, sum)
}

// dataset streams approved analyses as JSONL.
func (h reportsHandler) dataset(w http.ResponseWriter, r *http.Request) {
	minRating, ok := intParam(w, r, "min_rating", defaultMinRating)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "application/x-ndjson")
	w.Header().Set("Content-Disposition", `attachment; filename="dataset.jsonl"`)
	n, err := h.reports.ExportDataset(r.Context(), w, minRating)
	if err != nil {
		// Headers may be gone already; the log is the only reliable signal.
		logger.LogEvent(r.Context(), logger.HTTP, slog.LevelError, "reports.dataset",
			slog.String("status", "error"),
			slog.String("error", err.Error()),
		)
		return
	}
	logger.LogEvent(r.Context(), logger.HTTP, slog.LevelInfo, "reports.dataset",
		slog.String("status", "ok"),
		slog.Int("rows", n),
	)
}

func intParam(w http.ResponseWriter, r *http.Request, name string, def int) (int, bool) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return def, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid "+name)
		return 0, false
	}
	return v, true
}

func bearerAuth(token string) func(http.Handler) http.Handler {
	want := []byte("Bearer " + token)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := []byte(r.Header.Get("Authorization"))
			if subtle.ConstantTimeCompare(got, want) != 1 {
				respondError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		level := slog.LevelInfo
		if status >= http.StatusInternalServerError {
			level = slog.LevelError
		}
		logger.LogEvent(r.Context(), logger.HTTP, level, "http.request",
			slog.String("rid", middleware.GetReqID(r.Context())),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("code", status),
			slog.Int("bytes", ww.BytesWritten()),
			slog.Duration("duration", logger.Took(start)),
		)
	})
}

func internalError(w http.ResponseWriter, r *http.Request, event string, err error) {
	logger.LogEvent(r.Context(), logger.HTTP, slog.LevelError, event,
		slog.String("status", "error"),
		slog.String("error", err.Error()),
	)
	respondError(w, http.StatusInternalServerError, "internal error")
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
