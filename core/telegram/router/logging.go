package router

import (
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/scanbot/core/logger"
	tghelpers "github.com/m3rciful/scanbot/core/telegram/helpers"
	"github.com/m3rciful/scanbot/core/telegram/middleware"
	"github.com/m3rciful/scanbot/core/telegram/netutil"
)

func handleWithSummary(c tele.Context, handlerName string, start time.Time, statusOverride, outcomeOverride string, fn func() error, extras ...slog.Attr) error {
	tghelpers.WithHandler(c, handlerName)
	err := fn()
	logHandlerSummary(c, handlerName, start, statusOverride, outcomeOverride, err, extras...)
	return err
}

// logHandlerSummary writes the single handler.handled line for an update.
// Overrides replace the status and outcome otherwise derived from err.
func logHandlerSummary(c tele.Context, handlerName string, start time.Time, statusOverride, outcomeOverride string, err error, extras ...slog.Attr) {
	ctx := tghelpers.WithHandler(c, handlerName)
	msgs, kb := middleware.GetCounters(c)

	derived := logger.Status(err)
	status := firstNonEmpty(statusOverride, derived)
	outcome := firstNonEmpty(outcomeOverride, derived)

	attrs := make([]slog.Attr, 0, 9+len(extras))
	attrs = append(attrs,
		slog.String("status", status),
		slog.String("handler", handlerName),
		slog.String("outcome", outcome),
		slog.Int("messages", msgs),
		slog.Bool("kb", kb),
		slog.Int64("duration_ms", logger.RoundMS(time.Since(start)).Milliseconds()),
	)
	if err != nil {
		attrs = append(attrs,
			slog.String("err", logger.SanitizeLimit(netutil.Redact(err), 256)),
			slog.String("err_code", errorCode(err)),
			slog.String("error_kind", netutil.Classify(err)),
		)
	}
	attrs = append(attrs, extras...)
	level := slog.LevelInfo
	if err != nil {
		level = slog.LevelWarn
	}
	logger.LogEvent(ctx, logger.TG, level, "handler.handled", attrs...)
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}

func normalizeHandlerName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return "unknown"
	}
	name = strings.TrimPrefix(name, "/")
	name = strings.ReplaceAll(name, " ", "_")
	return strings.ToLower(name)
}

// errorCode prefers the Telegram API code, then an error's own Code(),
// then the classification bucket.
func errorCode(err error) string {
	var apiErr *tele.Error
	if errors.As(err, &apiErr) {
		return "TG_" + strconv.Itoa(apiErr.Code)
	}
	type coder interface{ Code() string }
	var c coder
	if errors.As(err, &c) {
		if code := strings.TrimSpace(c.Code()); code != "" {
			return strings.ToUpper(strings.ReplaceAll(code, " ", "_"))
		}
	}
	return strings.ToUpper(netutil.Classify(err))
}
