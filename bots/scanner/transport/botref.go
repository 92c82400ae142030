package transport

import (
	"errors"
	"sync/atomic"

	tele "gopkg.in/telebot.v4"
)

// ErrNotBound is returned by BotRef before Bind.
var ErrNotBound = errors.New("transport: bot not bound")

// BotRef late-binds the bot, which only exists once the runtime has started.
// It satisfies both API and Downloader.
type BotRef struct {
	bot atomic.Pointer[tele.Bot]
}

// Bind sets the bot used by later calls.
func (r *BotRef) Bind(b *tele.Bot) {
	r.bot.Store(b)
}

func (r *BotRef) get() (*tele.Bot, error) {
	b := r.bot.Load()
	if b == nil {
		return nil, ErrNotBound
	}
	return b, nil
}

// Send implements API.
func (r *BotRef) Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error) {
	b, err := r.get()
	if err != nil {
		return nil, err
	}
	return b.Send(to, what, opts...)
}

// Edit implements API.
func (r *BotRef) Edit(msg tele.Editable, what interface{}, opts ...interface{}) (*tele.Message, error) {
	b, err := r.get()
	if err != nil {
		return nil, err
	}
	return b.Edit(msg, what, opts...)
}

// Delete implements API.
func (r *BotRef) Delete(msg tele.Editable) error {
	b, err := r.get()
	if err != nil {
		return err
	}
	return b.Delete(msg)
}

// Download implements Downloader.
func (r *BotRef) Download(file *tele.File, localFilename string) error {
	b, err := r.get()
	if err != nil {
		return err
	}
	return b.Download(file, localFilename)
}
