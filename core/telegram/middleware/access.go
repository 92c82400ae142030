package middleware

import (
	"log/slog"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/scanbot/core/logger"
	tghelpers "github.com/m3rciful/scanbot/core/telegram/helpers"
)

// AdminOptions defines how admin-only checks should behave.
type AdminOptions struct {
	AdminID  int64
	OnReject tele.HandlerFunc
}

// IsAdmin reports whether c comes from the configured admin.
// An unset AdminID matches nobody.
func (o AdminOptions) IsAdmin(c tele.Context) bool {
	return o.AdminID != 0 && c.Sender() != nil && c.Sender().ID == o.AdminID
}

// AdminOnlyMiddleware lets only the admin reach next; everyone else gets OnReject.
func AdminOnlyMiddleware(opts AdminOptions) tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			if opts.IsAdmin(c) {
				return next(c)
			}
			logger.Warn(tghelpers.BuildContext(c), "tg", "tg.admin_reject",
				slog.Bool("admin_configured", opts.AdminID != 0),
			)
			if opts.OnReject != nil {
				return opts.OnReject(c)
			}
			return nil
		}
	}
}
