package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/scanbot/core/logger"
	"github.com/m3rciful/scanbot/core/telegram/commands"
)

// Registry holds the bot's commands and callback handlers. Commands are
// registered during wiring; callbacks may be added at any time.
type Registry struct {
	commands map[string]commands.Command
	// aliases maps every accepted spelling ("/x", "x") to the canonical "/name".
	aliases map[string]string

	mu               sync.RWMutex
	callbacks        map[string]tele.HandlerFunc
	callbackNotFound tele.HandlerFunc
}

// NewRegistry returns an empty registry with a generic stale-button reply.
func NewRegistry() *Registry {
	return &Registry{
		commands:  make(map[string]commands.Command),
		aliases:   make(map[string]string),
		callbacks: make(map[string]tele.HandlerFunc),
		callbackNotFound: func(c tele.Context) error {
			return c.Respond(&tele.CallbackResponse{Text: "Кнопка устарела, нажми /start"})
		},
	}
}

func skipCommand(name, reason string) {
	logger.TWire.LogAttrs(context.Background(), slog.LevelWarn, "register.command.skip",
		slog.String("name", name),
		slog.String("reason", reason),
	)
}

// RegisterCommand adds cmd under name ("/start"). Invalid, duplicate or
// colliding registrations are logged and ignored.
func (r *Registry) RegisterCommand(name string, cmd commands.Command) {
	switch {
	case r == nil || cmd.Handler == nil || cmd.Description == "":
		skipCommand(name, "invalid")
		return
	case !strings.HasPrefix(name, "/") || len(name) < 2:
		skipCommand(name, "no_slash_prefix")
		return
	}
	if _, exists := r.commands[name]; exists {
		skipCommand(name, "duplicate")
		return
	}
	spellings := []string{name, strings.TrimPrefix(name, "/")}
	for _, alias := range cmd.Aliases {
		alias = strings.TrimPrefix(strings.TrimSpace(alias), "/")
		if alias != "" {
			spellings = append(spellings, alias, "/"+alias)
		}
	}
	for _, s := range spellings {
		if owner, taken := r.aliases[s]; taken && owner != name {
			skipCommand(name, "alias_taken:"+s)
			return
		}
	}
	r.commands[name] = cmd
	for _, s := range spellings {
		r.aliases[s] = name
	}
}

// ListCommands returns the commands sorted by name; visibleOnly drops hidden
// and admin-only ones for the public command menu.
func (r *Registry) ListCommands(visibleOnly bool) []tele.Command {
	list := make([]tele.Command, 0, len(r.commands))
	for name, meta := range r.commands {
		if visibleOnly && (meta.Hidden || meta.AdminOnly) {
			continue
		}
		list = append(list, tele.Command{Text: strings.TrimPrefix(name, "/"), Description: meta.Description})
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Text < list[j].Text })
	return list
}

// LookupCommand resolves a name or alias, with or without the slash, to the
// canonical key and its command.
func (r *Registry) LookupCommand(name string) (string, commands.Command, bool) {
	key, ok := r.aliases[strings.TrimSpace(name)]
	if !ok {
		return "", commands.Command{}, false
	}
	return key, r.commands[key], true
}

// Commands returns the registered commands keyed by "/name".
func (r *Registry) Commands() map[string]commands.Command {
	return r.commands
}

// RegisterCallback binds handler to a callback unique key.
func (r *Registry) RegisterCallback(key string, handler tele.HandlerFunc) error {
	if r == nil || key == "" || handler == nil {
		logger.TWire.LogAttrs(context.Background(), slog.LevelWarn, "register.callback.skip",
			slog.String("key", key),
			slog.Bool("handler_nil", handler == nil),
		)
		return errors.New("invalid callback registration")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.callbacks[key]; exists {
		return fmt.Errorf("callback already registered: %s", key)
	}
	r.callbacks[key] = handler
	return nil
}

// GetCallback returns the handler bound to key.
func (r *Registry) GetCallback(key string) (tele.HandlerFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.callbacks[key]
	return h, ok
}

// ListCallbacks returns the registered keys, sorted.
func (r *Registry) ListCallbacks() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := make([]string, 0, len(r.callbacks))
	for k := range r.callbacks {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// SetCallbackNotFound replaces the reply to unknown callback keys.
func (r *Registry) SetCallbackNotFound(h tele.HandlerFunc) {
	if h == nil {
		return
	}
	r.mu.Lock()
	r.callbackNotFound = h
	r.mu.Unlock()
}

// CallbackNotFound returns the reply to unknown callback keys.
func (r *Registry) CallbackNotFound() tele.HandlerFunc {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.callbackNotFound
}

// InitBotCommands publishes the visible commands as the bot's menu.
func InitBotCommands(bot *tele.Bot, reg *Registry) {
	if bot == nil || reg == nil {
		return
	}
	list := reg.ListCommands(true)
	if err := bot.SetCommands(list); err != nil {
		logger.TWire.LogAttrs(context.Background(), slog.LevelError, "register.commands.set_failed",
			slog.String("err", err.Error()),
		)
		return
	}
	logger.TWire.LogAttrs(context.Background(), slog.LevelDebug, "register.commands.set",
		slog.Int("count", len(list)),
	)
}
