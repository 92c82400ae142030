// Package chat defines the transport-neutral conversation contracts:
// normalized inbound events and the outbound actions the bot can take.
package chat

import "context"

// EventKind classifies inbound events.
type EventKind int

// Event kinds.
const (
	EventCommand EventKind = iota + 1
	EventText
	EventPhoto
	EventMenu
)

func (k EventKind) String() string {
	switch k {
	case EventCommand:
		return "command"
	case EventText:
		return "text"
	case EventPhoto:
		return "photo"
	case EventMenu:
		return "menu"
	}
	return "unknown"
}

// Profile is the sender's public profile as reported by the transport.
type Profile struct {
	Username  string
	FirstName string
	LastName  string
}

// Event is one normalized inbound update.
type Event struct {
	Kind    EventKind
	UserID  int64
	ChatID  int64
	Profile Profile

	// Command is the command name without the slash; Args its arguments.
	Command string
	Args    []string
	// Text is the message body or the photo caption.
	Text string
	// PhotoRef is an opaque handle resolvable by the photo fetcher.
	PhotoRef string
	// Tag identifies the pressed menu button.
	Tag string
}

// Button is either an action (Tag) or a link (URL).
type Button struct {
	Text string
	Tag  string
	URL  string
}

// Menu is a keyboard laid out in rows.
type Menu struct {
	Rows [][]Button
}

// Row is a helper for building menus.
func Row(buttons ...Button) []Button { return buttons }

// NewMenu lays out rows into a Menu.
func NewMenu(rows ...[]Button) *Menu { return &Menu{Rows: rows} }

// MessageRef identifies a sent message for later edits or deletion.
type MessageRef struct {
	ChatID    int64
	MessageID int
}

// Outbound is the set of actions the bot performs towards a chat.
type Outbound interface {
	SendText(ctx context.Context, chatID int64, body string, menu *Menu) (MessageRef, error)
	SendDocument(ctx context.Context, chatID int64, path, filename, caption string) error
	EditText(ctx context.Context, ref MessageRef, body string, menu *Menu) error
	Delete(ctx context.Context, ref MessageRef) error
}
