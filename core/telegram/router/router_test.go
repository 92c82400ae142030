package router

import (
	"errors"
	"testing"

	tele "gopkg.in/telebot.v4"

	tg "github.com/m3rciful/scanbot/core/telegram"
	"github.com/m3rciful/scanbot/core/telegram/commands"
)

func offlineContext(t *testing.T, upd tele.Update) tele.Context {
	t.Helper()
	b, err := tele.NewBot(tele.Settings{Offline: true})
	if err != nil {
		t.Fatalf("bot: %v", err)
	}
	return b.NewContext(upd)
}

func TestNormalizeHandlerName(t *testing.T) {
	cases := map[string]string{
		"/Start":    "start",
		"":          "unknown",
		" check x ": "check_x",
	}
	for in, want := range cases {
		if got := normalizeHandlerName(in); got != want {
			t.Fatalf("normalizeHandlerName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestErrorCode(t *testing.T) {
	if got := errorCode(tele.NewError(403, "Forbidden: bot was blocked by the user")); got != "TG_403" {
		t.Fatalf("api error code = %q", got)
	}
	if got := errorCode(errors.New("whatever")); got != "UNKNOWN" {
		t.Fatalf("plain error code = %q", got)
	}
}

func TestCommandRoutesSorted(t *testing.T) {
	reg := tg.NewRegistry()
	nop := func(tele.Context) error { return nil }
	reg.RegisterCommand("/start", commands.Command{Handler: nop, Description: "s"})
	reg.RegisterCommand("/cancel", commands.Command{Handler: nop, Description: "c"})
	reg.RegisterCommand("/stats", commands.Command{Handler: nop, Description: "st", AdminOnly: true})

	routes := CommandRoutes(reg, CommandRouteOptions{AdminID: 1})
	if len(routes) != 3 {
		t.Fatalf("routes = %d", len(routes))
	}
	want := []string{"/cancel", "/start", "/stats"}
	for i, r := range routes {
		if r.Endpoint != want[i] {
			t.Fatalf("route %d = %v, want %s", i, r.Endpoint, want[i])
		}
	}
}

func TestAdminCommandRejected(t *testing.T) {
	reg := tg.NewRegistry()
	ran, rejected := false, false
	reg.RegisterCommand("/stats", commands.Command{
		Handler:     func(tele.Context) error { ran = true; return nil },
		Description: "stats",
		AdminOnly:   true,
	})
	routes := CommandRoutes(reg, CommandRouteOptions{
		AdminID:       1,
		OnAdminReject: func(tele.Context) error { rejected = true; return nil },
	})
	c := offlineContext(t, tele.Update{ID: 1, Message: &tele.Message{
		Sender: &tele.User{ID: 2},
		Chat:   &tele.Chat{ID: 2},
		Text:   "/stats",
	}})
	if err := routes[0].Handler(c); err != nil {
		t.Fatalf("handler: %v", err)
	}
	if ran || !rejected {
		t.Fatalf("ran=%v rejected=%v", ran, rejected)
	}
}

func TestCallbackRouteNotFound(t *testing.T) {
	reg := tg.NewRegistry()
	called := 0
	route := CallbackRoute(reg, CallbackOptions{
		NotFound: func(tele.Context) error { called++; return nil },
	})
	c := offlineContext(t, tele.Update{ID: 1, Callback: &tele.Callback{
		ID:     "cb",
		Sender: &tele.User{ID: 3},
		Data:   "\fgone|x",
	}})
	if err := route.Handler(c); err != nil {
		t.Fatalf("handler: %v", err)
	}
	if called != 1 {
		t.Fatalf("not-found handler calls = %d", called)
	}
}

type fakeConversation struct {
	active  bool
	handled int
}

func (f *fakeConversation) Active(int64) bool { return f.active }

func (f *fakeConversation) Handle(tele.Context) error {
	f.handled++
	return nil
}

func TestMessageRoutesPreferConversation(t *testing.T) {
	conv := &fakeConversation{active: true}
	unknown := 0
	routes := MessageRoutes(conv, tg.NewRegistry(), MessageOptions{
		UnknownText: func(tele.Context) error { unknown++; return nil },
	})
	upd := tele.Update{ID: 1, Message: &tele.Message{
		Sender: &tele.User{ID: 9},
		Chat:   &tele.Chat{ID: 9},
		Text:   "Меня зовут Анна",
	}}
	if err := routes[0].Handler(offlineContext(t, upd)); err != nil {
		t.Fatalf("handler: %v", err)
	}
	conv.active = false
	if err := routes[0].Handler(offlineContext(t, upd)); err != nil {
		t.Fatalf("handler: %v", err)
	}
	if conv.handled != 1 || unknown != 1 {
		t.Fatalf("handled=%d unknown=%d", conv.handled, unknown)
	}
}
