package middleware

import (
	"fmt"
	"log/slog"
	"runtime/debug"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/scanbot/core/logger"
	tghelpers "github.com/m3rciful/scanbot/core/telegram/helpers"
)

const maxStack = 4096

// RecoverMiddleware turns a handler panic into a logged event. A pending
// callback query is answered so the client does not spin forever.
func RecoverMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) (err error) {
		defer func() {
			r := recover()
			if r == nil {
				return
			}
			stack := debug.Stack()
			if len(stack) > maxStack {
				stack = stack[:maxStack]
			}
			logger.Error(tghelpers.BuildContext(c), "tg", "tg.panic",
				slog.String("err", logger.SanitizeLimit(fmt.Sprint(r), 256)),
				slog.String("stack", string(stack)),
			)
			if c.Callback() != nil {
				_ = c.Respond()
			}
			err = nil
		}()
		return next(c)
	}
}
