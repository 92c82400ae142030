package middleware

import (
	"log/slog"
	"sync"
	"time"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/scanbot/core/logger"
	tghelpers "github.com/m3rciful/scanbot/core/telegram/helpers"
)

// RateLimitOptions configures RateLimitMiddleware.
type RateLimitOptions struct {
	Interval time.Duration
	// Exclude lists update kinds (see UpdateKind) that are never limited.
	Exclude   map[string]struct{}
	OnLimited tele.HandlerFunc
}

// UpdateKind is "callback", "photo", "message" or "other".
func UpdateKind(upd tele.Update) string {
	switch {
	case upd.Callback != nil:
		return "callback"
	case upd.Message != nil && upd.Message.Photo != nil:
		return "photo"
	case upd.Message != nil:
		return "message"
	}
	return "other"
}

// lastSeen remembers when each user was last let through. Entries older than
// the interval carry no information and are pruned once the map grows.
type lastSeen struct {
	mu       sync.Mutex
	at       map[int64]time.Time
	interval time.Duration
	pruneAt  int
}

func (l *lastSeen) allow(userID int64, now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if last, ok := l.at[userID]; ok && now.Sub(last) < l.interval {
		return false
	}
	l.at[userID] = now
	if len(l.at) >= l.pruneAt {
		for id, t := range l.at {
			if now.Sub(t) >= l.interval {
				delete(l.at, id)
			}
		}
		l.pruneAt = max(1024, 2*len(l.at))
	}
	return true
}

// RateLimitMiddleware drops updates arriving from the same user faster than
// Interval, answering them with OnLimited when set.
func RateLimitMiddleware(opts RateLimitOptions) tele.MiddlewareFunc {
	seen := &lastSeen{at: make(map[int64]time.Time), interval: opts.Interval, pruneAt: 1024}
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			user := c.Sender()
			if user == nil || opts.Interval <= 0 {
				return next(c)
			}
			kind := UpdateKind(c.Update())
			if _, skip := opts.Exclude[kind]; skip {
				return next(c)
			}
			if seen.allow(user.ID, time.Now()) {
				return next(c)
			}
			logger.Warn(tghelpers.BuildContext(c), "tg", "tg.rate_limit",
				slog.String("kind", kind),
			)
			if opts.OnLimited != nil {
				_ = opts.OnLimited(c)
			}
			return nil
		}
	}
}
