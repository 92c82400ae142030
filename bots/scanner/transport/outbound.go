// Package transport adapts telebot to the chat contracts of the funnel.
package transport

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/scanbot/bots/scanner/chat"
	"github.com/m3rciful/scanbot/core/logger"
	"github.com/m3rciful/scanbot/core/telegram/helpers"
	"github.com/m3rciful/scanbot/core/telegram/keyboard"
	"github.com/m3rciful/scanbot/core/telegram/middleware"
	"github.com/m3rciful/scanbot/core/telegram/netutil"
)

// API is the subset of *tele.Bot the adapters use.
type API interface {
	Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error)
	Edit(msg tele.Editable, what interface{}, opts ...interface{}) (*tele.Message, error)
	Delete(msg tele.Editable) error
}

// Outbound sends synchronously so callers get message refs back.
type Outbound struct {
	api     API
	retries int
	backoff time.Duration
}

// NewOutbound wraps api. Transient network errors are retried once.
func NewOutbound(api API) *Outbound {
	return &Outbound{api: api, retries: 1, backoff: 500 * time.Millisecond}
}

// Markup converts a chat menu into an inline keyboard.
func Markup(menu *chat.Menu) *tele.ReplyMarkup {
	if menu == nil || len(menu.Rows) == 0 {
		return nil
	}
	rows := make([][]keyboard.InlineBtn, 0, len(menu.Rows))
	for _, row := range menu.Rows {
		r := make([]keyboard.InlineBtn, 0, len(row))
		for _, b := range row {
			r = append(r, keyboard.InlineBtn{Text: b.Text, Unique: b.Tag, URL: b.URL})
		}
		rows = append(rows, r)
	}
	return keyboard.InlineButtonsRows(rows...)
}

func hasButtons(menu *chat.Menu) bool {
	return menu != nil && len(menu.Rows) > 0
}

func sendOptions(menu *chat.Menu) *tele.SendOptions {
	return &tele.SendOptions{
		ParseMode:             tele.ModeHTML,
		ReplyMarkup:           Markup(menu),
		DisableWebPagePreview: true,
	}
}

// SendText implements chat.Outbound.
func (o *Outbound) SendText(ctx context.Context, chatID int64, body string, menu *chat.Menu) (chat.MessageRef, error) {
	var msg *tele.Message
	err := o.call(ctx, "sendMessage", func() error {
		var err error
		msg, err = o.api.Send(tele.ChatID(chatID), body, sendOptions(menu))
		return err
	})
	if err != nil {
		return chat.MessageRef{}, err
	}
	middleware.CountSent(ctx, hasButtons(menu))
	return chat.MessageRef{ChatID: chatID, MessageID: msg.ID}, nil
}

// SendDocument implements chat.Outbound.
func (o *Outbound) SendDocument(ctx context.Context, chatID int64, path, filename, caption string) error {
	doc := &tele.Document{File: tele.FromDisk(path), FileName: filename, Caption: caption}
	err := o.call(ctx, "sendDocument", func() error {
		_, err := o.api.Send(tele.ChatID(chatID), doc)
		return err
	})
	if err == nil {
		middleware.CountSent(ctx, false)
	}
	return err
}

// EditText implements chat.Outbound.
func (o *Outbound) EditText(ctx context.Context, ref chat.MessageRef, body string, menu *chat.Menu) error {
	err := o.call(ctx, "editMessageText", func() error {
		_, err := o.api.Edit(stored(ref), body, sendOptions(menu))
		return err
	})
	if err == nil {
		middleware.CountSent(ctx, hasButtons(menu))
	}
	return err
}

// Delete implements chat.Outbound.
func (o *Outbound) Delete(ctx context.Context, ref chat.MessageRef) error {
	return o.call(ctx, "deleteMessage", func() error {
		return o.api.Delete(stored(ref))
	})
}

func stored(ref chat.MessageRef) tele.StoredMessage {
	return tele.StoredMessage{MessageID: strconv.Itoa(ref.MessageID), ChatID: ref.ChatID}
}

func (o *Outbound) call(ctx context.Context, endpoint string, run func() error) error {
	start := time.Now()
	var err error
	for attempt := 0; attempt <= o.retries; attempt++ {
		if cerr := ctx.Err(); cerr != nil {
			return cerr
		}
		if err = run(); err == nil || !netutil.ShouldRetry(err) {
			break
		}
		if attempt < o.retries {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(netutil.Backoff(o.backoff, attempt+1, err)):
			}
		}
	}
	level := slog.LevelDebug
	if err != nil {
		level = slog.LevelWarn
	}
	attrs := []slog.Attr{
		slog.String("endpoint", endpoint),
		slog.String("status", logger.Status(err)),
		slog.Duration("duration", logger.Took(start)),
	}
	if err != nil {
		attrs = append(attrs,
			slog.String("err", logger.SanitizeLimit(netutil.Redact(err), 256)),
			slog.String("error_kind", netutil.Classify(err)),
		)
	}
	logger.Event(ctx, "tg.sender", level, "send.sync", attrs...)
	return err
}

// Queued sends text through the shared dispatcher. It suits messages nobody
// edits later, such as reminders; the returned ref is always zero.
type Queued struct {
	*Outbound
}

// SendText enqueues the message.
func (q Queued) SendText(ctx context.Context, chatID int64, body string, menu *chat.Menu) (chat.MessageRef, error) {
	err := helpers.Enqueue(ctx, "send.text", "sendMessage", func() error {
		_, err := q.api.Send(tele.ChatID(chatID), body, sendOptions(menu))
		return err
	})
	return chat.MessageRef{}, err
}
