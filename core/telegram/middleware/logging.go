package middleware

import (
	"log/slog"
	"sync"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/scanbot/core/logger"
	"github.com/m3rciful/scanbot/core/telegram/callbacks"
	tghelpers "github.com/m3rciful/scanbot/core/telegram/helpers"
)

// recentIDs remembers the last len(ring) update IDs. The logger wraps both
// the global chain and individual routes, so each update passes it twice.
type recentIDs struct {
	mu   sync.Mutex
	ring [256]int
	next int
	set  map[int]struct{}
}

func newRecentIDs() *recentIDs {
	return &recentIDs{set: make(map[int]struct{})}
}

// firstSeen records id and reports whether it was new.
func (r *recentIDs) firstSeen(id int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.set[id]; ok {
		return false
	}
	if old := r.ring[r.next]; old != 0 {
		delete(r.set, old)
	}
	r.ring[r.next] = id
	r.next = (r.next + 1) % len(r.ring)
	r.set[id] = struct{}{}
	return true
}

var received = newRecentIDs()

// LoggerMiddleware sets the request id and update context, and writes one
// sampled update.received line per update.
func LoggerMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		updateID, userID, chatID := tghelpers.UpdateMeta(c)
		rid := logger.BuildRID(updateID, chatID, userID)
		c.Set("rid", rid)

		ctx, ok := tghelpers.ContextFrom(c)
		if !ok {
			ctx = tghelpers.NewUpdateContext(c, rid)
		}
		if logger.ShouldSampleDebug() && received.firstSeen(updateID) {
			logger.LogEvent(ctx, logger.TG, slog.LevelDebug, "update.received", receiptAttrs(c, rid)...)
		}
		return next(c)
	}
}

func receiptAttrs(c tele.Context, rid string) []slog.Attr {
	upd := c.Update()
	attrs := []slog.Attr{
		slog.String("status", "ok"),
		slog.String("rid", rid),
		slog.String("kind", UpdateKind(upd)),
	}
	if chat := c.Chat(); chat != nil {
		attrs = append(attrs, slog.String("chat_type", string(chat.Type)))
	}
	if user := c.Sender(); user != nil {
		if user.Username != "" {
			attrs = append(attrs, slog.String("username", logger.SanitizeLimit(user.Username, 64)))
		}
		if user.LanguageCode != "" {
			attrs = append(attrs, slog.String("lang", user.LanguageCode))
		}
	}
	switch {
	case upd.Callback != nil:
		key, payload := callbacks.ParseCallbackData(upd.Callback)
		attrs = append(attrs,
			slog.String("cb_key", logger.SanitizeLimit(key, 128)),
			slog.String("payload", logger.SanitizeLimit(payload, 256)),
		)
	case upd.Message != nil:
		attrs = append(attrs, slog.String("payload", logger.SanitizeLimit(c.Text(), 256)))
	}
	return attrs
}
