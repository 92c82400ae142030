// Package commands describes slash commands independently of how they are routed.
package commands

import (
	"strings"

	tele "gopkg.in/telebot.v4"
)

// Command is one registered slash command.
type Command struct {
	Handler     tele.HandlerFunc
	Description string
	// Args is the argument synopsis for usage hints, e.g. "<id> <1-5> [note]".
	Args string
	// MinArgs below which the handler is not called and the usage hint is sent instead.
	MinArgs   int
	AdminOnly bool
	Hidden    bool
	Aliases   []string
}

// Usage renders "/name args".
func (c Command) Usage(name string) string {
	if !strings.HasPrefix(name, "/") {
		name = "/" + name
	}
	if c.Args == "" {
		return name
	}
	return name + " " + c.Args
}

// Bound returns the handler registered under name, guarded by MinArgs.
func (c Command) Bound(name string) tele.HandlerFunc {
	if c.MinArgs <= 0 || c.Handler == nil {
		return c.Handler
	}
	usage := "Использование: " + c.Usage(name)
	return func(ctx tele.Context) error {
		if len(ctx.Args()) < c.MinArgs {
			return ctx.Send(usage)
		}
		return c.Handler(ctx)
	}
}
