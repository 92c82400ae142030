// Package ui holds the replies sent when an update has no owner.
package ui

import (
	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/scanbot/core/telegram/helpers"
)

// FallbackProvider exposes handlers used when incoming updates
// cannot be mapped to commands, callbacks, or an active conversation.
type FallbackProvider interface {
	UnknownText() tele.HandlerFunc
	UnknownPhoto() tele.HandlerFunc
	UnknownCallback() tele.HandlerFunc
}

// Replies is a FallbackProvider made of fixed texts. Empty fields produce
// nil handlers, leaving the router's defaults in place.
type Replies struct {
	Text     string
	Photo    string
	Callback string
}

var _ FallbackProvider = Replies{}

// UnknownText sends Text as HTML.
func (r Replies) UnknownText() tele.HandlerFunc { return send(r.Text) }

// UnknownPhoto sends Photo as HTML.
func (r Replies) UnknownPhoto() tele.HandlerFunc { return send(r.Photo) }

// UnknownCallback answers the callback query with Callback as a toast.
func (r Replies) UnknownCallback() tele.HandlerFunc {
	if r.Callback == "" {
		return nil
	}
	return func(c tele.Context) error {
		return c.Respond(&tele.CallbackResponse{Text: r.Callback})
	}
}

func send(text string) tele.HandlerFunc {
	if text == "" {
		return nil
	}
	return func(c tele.Context) error {
		return helpers.SendHTML(c, text)
	}
}
