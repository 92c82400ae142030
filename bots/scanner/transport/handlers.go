package transport

import (
	"context"
	"fmt"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/scanbot/bots/scanner/chat"
	"github.com/m3rciful/scanbot/bots/scanner/funnel"
	tg "github.com/m3rciful/scanbot/core/telegram"
	"github.com/m3rciful/scanbot/core/telegram/commands"
	"github.com/m3rciful/scanbot/core/telegram/helpers"
)

// Machine is the conversation engine behind the handlers.
type Machine interface {
	Active(userID int64) bool
	Handle(ctx context.Context, ev chat.Event) error
}

// Handlers turns telebot updates into funnel events.
type Handlers struct {
	machine Machine
	reports Reports
}

// NewHandlers binds handlers to the machine. reports may be nil, which
// leaves the admin commands unregistered.
func NewHandlers(machine Machine, reports Reports) *Handlers {
	return &Handlers{machine: machine, reports: reports}
}

// Active implements router.Conversation.
func (h *Handlers) Active(userID int64) bool {
	return h.machine.Active(userID)
}

// Handle implements router.Conversation.
func (h *Handlers) Handle(c tele.Context) error {
	return h.dispatch(c, nil)
}

func (h *Handlers) dispatch(c tele.Context, rewrite func(*chat.Event)) error {
	ev, ok := EventFrom(c)
	if !ok {
		return nil
	}
	if rewrite != nil {
		rewrite(&ev)
	}
	return h.machine.Handle(helpers.WithHandler(c, "funnel."+ev.Kind.String()), ev)
}

// Register adds the funnel commands, menu callbacks and admin commands to reg.
func (h *Handlers) Register(reg *tg.Registry) error {
	reg.RegisterCommand("/start", commands.Command{
		Handler:     h.Handle,
		Description: "Начать сканирование",
	})
	reg.RegisterCommand("/cancel", commands.Command{
		Handler:     h.Handle,
		Description: "Отменить текущий шаг",
	})
	reg.RegisterCommand("/"+funnel.DeepLinkCheckAccess, commands.Command{
		Handler:     h.checkAccess,
		Description: "Активировать бесплатный доступ",
		Hidden:      true,
		Aliases:     []string{funnel.DeepLinkCheckAccess},
	})

	for _, tag := range funnel.Tags() {
		if err := reg.RegisterCallback(tag, h.Handle); err != nil {
			return fmt.Errorf("register callback %s: %w", tag, err)
		}
	}

	if h.reports != nil {
		h.registerAdmin(reg)
	}
	return nil
}

// checkAccess starts the free-access flow as if the deep link had been opened.
func (h *Handlers) checkAccess(c tele.Context) error {
	return h.dispatch(c, func(ev *chat.Event) {
		ev.Kind = chat.EventCommand
		ev.Command = "start"
		ev.Args = []string{funnel.DeepLinkCheckAccess}
		ev.Text = ""
	})
}
