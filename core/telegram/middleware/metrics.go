package middleware

import (
	"context"
	"sync/atomic"

	tele "gopkg.in/telebot.v4"

	tghelpers "github.com/m3rciful/scanbot/core/telegram/helpers"
)

// Counters tally what was sent in reply to one update. Handlers that reply
// through tele.Context are counted by the middleware; adapters that talk to the
// Bot API directly report through CountSent.
type Counters struct {
	messages atomic.Int32
	keyboard atomic.Bool
}

// Sent records one outbound message.
func (c *Counters) Sent(withKeyboard bool) {
	if c == nil {
		return
	}
	c.messages.Add(1)
	if withKeyboard {
		c.keyboard.Store(true)
	}
}

// Snapshot returns the message count and whether any carried a keyboard.
func (c *Counters) Snapshot() (int, bool) {
	if c == nil {
		return 0, false
	}
	return int(c.messages.Load()), c.keyboard.Load()
}

type countersKey struct{}

// WithCounters attaches counters to ctx.
func WithCounters(ctx context.Context, c *Counters) context.Context {
	return context.WithValue(ctx, countersKey{}, c)
}

// CountersFrom returns the counters attached to ctx, or nil.
func CountersFrom(ctx context.Context) *Counters {
	if ctx == nil {
		return nil
	}
	c, _ := ctx.Value(countersKey{}).(*Counters)
	return c
}

// CountSent records a message sent on behalf of the update behind ctx.
// It is a no-op outside of an update.
func CountSent(ctx context.Context, withKeyboard bool) {
	CountersFrom(ctx).Sent(withKeyboard)
}

// GetCounters reads the counters of the update behind c.
func GetCounters(c tele.Context) (int, bool) {
	ctx, ok := tghelpers.ContextFrom(c)
	if !ok {
		return 0, false
	}
	return CountersFrom(ctx).Snapshot()
}

// MessageMetricsMiddleware installs per-update counters and counts replies
// made through tele.Context.
func MessageMetricsMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		counters := &Counters{}
		tghelpers.StoreContext(c, WithCounters(tghelpers.BuildContext(c), counters))
		return next(countingContext{Context: c, counters: counters})
	}
}

type countingContext struct {
	tele.Context
	counters *Counters
}

func (m countingContext) count(err error, opts []interface{}) error {
	if err == nil {
		m.counters.Sent(hasKeyboard(opts))
	}
	return err
}

func (m countingContext) Send(what interface{}, opts ...interface{}) error {
	return m.count(m.Context.Send(what, opts...), opts)
}

func (m countingContext) Reply(what interface{}, opts ...interface{}) error {
	return m.count(m.Context.Reply(what, opts...), opts)
}

func (m countingContext) Edit(what interface{}, opts ...interface{}) error {
	return m.count(m.Context.Edit(what, opts...), opts)
}

func (m countingContext) EditOrSend(what interface{}, opts ...interface{}) error {
	return m.count(m.Context.EditOrSend(what, opts...), opts)
}

func (m countingContext) EditOrReply(what interface{}, opts ...interface{}) error {
	return m.count(m.Context.EditOrReply(what, opts...), opts)
}

func hasKeyboard(opts []interface{}) bool {
	for _, o := range opts {
		switch v := o.(type) {
		case *tele.SendOptions:
			if v != nil && v.ReplyMarkup != nil {
				return true
			}
		case *tele.ReplyMarkup:
			if v != nil {
				return true
			}
		}
	}
	return false
}
