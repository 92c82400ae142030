package transport

import (
	"strings"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/scanbot/bots/scanner/chat"
	"github.com/m3rciful/scanbot/core/telegram/callbacks"
)

// EventFrom normalizes a telebot update. The second result is false for
// updates the funnel does not consume.
func EventFrom(c tele.Context) (chat.Event, bool) {
	ev := chat.Event{}
	if u := c.Sender(); u != nil {
		ev.UserID = u.ID
		ev.Profile = chat.Profile{Username: u.Username, FirstName: u.FirstName, LastName: u.LastName}
	}
	if ch := c.Chat(); ch != nil {
		ev.ChatID = ch.ID
	}
	if ev.UserID == 0 {
		return ev, false
	}

	if cb := c.Callback(); cb != nil {
		ev.Kind = chat.EventMenu
		ev.Tag = callbacks.CallbackKey(c)
		return ev, ev.Tag != ""
	}

	msg := c.Message()
	if msg == nil {
		return ev, false
	}
	if msg.Photo != nil {
		ev.Kind = chat.EventPhoto
		ev.PhotoRef = msg.Photo.FileID
		ev.Text = msg.Caption
		return ev, ev.PhotoRef != ""
	}
	if name, args, ok := parseCommand(msg.Text); ok {
		ev.Kind = chat.EventCommand
		ev.Command = name
		ev.Args = args
		return ev, true
	}
	ev.Kind = chat.EventText
	ev.Text = msg.Text
	return ev, true
}

// parseCommand splits "/start@bot arg" into ("start", ["arg"]).
func parseCommand(text string) (string, []string, bool) {
	fields := strings.Fields(text)
	if len(fields) == 0 || !strings.HasPrefix(fields[0], "/") {
		return "", nil, false
	}
	name := strings.TrimPrefix(fields[0], "/")
	if i := strings.IndexByte(name, '@'); i >= 0 {
		name = name[:i]
	}
	if name == "" {
		return "", nil, false
	}
	return strings.ToLower(name), fields[1:], true
}
