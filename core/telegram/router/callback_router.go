package router

import (
	"log/slog"
	"time"

	tele "gopkg.in/telebot.v4"

	tg "github.com/m3rciful/scanbot/core/telegram"
	"github.com/m3rciful/scanbot/core/telegram/callbacks"
	"github.com/m3rciful/scanbot/core/telegram/middleware"
)

// CallbackOptions customises fallback behaviour for callbacks.
type CallbackOptions struct {
	// NotFound answers unknown keys. It must call Respond itself; when nil the
	// registry default is used.
	NotFound tele.HandlerFunc
}

// CallbackRoute returns a handler that routes callbacks through the registry.
// Known keys are acknowledged before the handler runs so the client spinner
// stops even when the handler is slow.
func CallbackRoute(reg *tg.Registry, opts CallbackOptions) tg.Route {
	handler := func(c tele.Context) error {
		start := time.Now()
		if c.Callback() == nil {
			return nil
		}

		key, payload := callbacks.ParseCallbackData(c.Callback())
		name := "callback." + normalizeHandlerName(key)
		extras := []slog.Attr{slog.String("cb_key", key)}
		if payload != "" {
			extras = append(extras, slog.String("payload", payload))
		}

		if h, ok := reg.GetCallback(key); ok && h != nil {
			_ = c.Respond()
			return handleWithSummary(c, name, start, "", "", func() error {
				return h(c)
			}, extras...)
		}

		notFound := opts.NotFound
		if notFound == nil {
			notFound = reg.CallbackNotFound()
		}
		extras = append(extras, slog.String("reason", "not_found"))
		return handleWithSummary(c, name, start, "", "", func() error {
			if notFound == nil {
				return c.Respond()
			}
			return notFound(c)
		}, extras...)
	}
	return tg.Route{
		Endpoint: tele.OnCallback,
		Handler:  middleware.RecoverMiddleware(middleware.LoggerMiddleware(handler)),
	}
}
