package router

import (
	"log/slog"
	"sort"
	"time"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/scanbot/core/logger"
	tg "github.com/m3rciful/scanbot/core/telegram"
	"github.com/m3rciful/scanbot/core/telegram/middleware"
)

// CommandRouteOptions configures how commands are wrapped and exposed.
type CommandRouteOptions struct {
	AdminID       int64
	OnAdminReject tele.HandlerFunc
}

// CommandRoutes builds one route per registered command, sorted by name.
// Each handler is argument-checked, summarized, panic-safe and logged;
// admin-only commands are gated before any of that runs.
func CommandRoutes(reg *tg.Registry, opts CommandRouteOptions) []tg.Route {
	if reg == nil {
		return nil
	}
	admin := middleware.AdminOnlyMiddleware(middleware.AdminOptions{
		AdminID:  opts.AdminID,
		OnReject: opts.OnAdminReject,
	})

	defs := reg.Commands()
	names := make([]string, 0, len(defs))
	for name := range defs {
		names = append(names, name)
	}
	sort.Strings(names)

	routes := make([]tg.Route, 0, len(names))
	adminCount := 0
	for _, name := range names {
		def := defs[name]
		h := middleware.LoggerMiddleware(middleware.RecoverMiddleware(summarize(name, def.Bound(name))))
		if def.AdminOnly {
			h = admin(h)
			adminCount++
		}
		routes = append(routes, tg.Route{Endpoint: name, Handler: h})
	}

	logger.LogEvent(logger.Background(), logger.TWire, slog.LevelInfo, "tg.wire.complete",
		slog.Int("commands", len(routes)),
		slog.Int("admin_commands", adminCount),
		slog.Int("callbacks", len(reg.ListCallbacks())),
	)
	return routes
}

func summarize(cmd string, next tele.HandlerFunc) tele.HandlerFunc {
	name := normalizeHandlerName(cmd)
	return func(c tele.Context) error {
		return handleWithSummary(c, name, time.Now(), "", "", func() error {
			return next(c)
		})
	}
}
