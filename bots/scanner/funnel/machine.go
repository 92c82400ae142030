// Package funnel drives the sales conversation: a table of (state, event)
// handlers over the session store.
package funnel

import (
	"context"
	"log/slog"
	"time"

	"github.com/m3rciful/scanbot/bots/scanner/access"
	"github.com/m3rciful/scanbot/bots/scanner/analysis"
	"github.com/m3rciful/scanbot/bots/scanner/chat"
	"github.com/m3rciful/scanbot/bots/scanner/entitlement"
	"github.com/m3rciful/scanbot/bots/scanner/names"
	"github.com/m3rciful/scanbot/bots/scanner/payment"
	"github.com/m3rciful/scanbot/bots/scanner/session"
	"github.com/m3rciful/scanbot/bots/scanner/storage"
	"github.com/m3rciful/scanbot/core/logger"
)

// Users persists the durable user record.
type Users interface {
	UpsertUser(ctx context.Context, u storage.User) error
}

// Reminders schedules and cancels follow-up tasks.
type Reminders interface {
	Start(userID int64)
	Cancel(userID int64)
}

// Analyzer runs one analysis.
type Analyzer interface {
	Run(ctx context.Context, req analysis.Request) (analysis.Result, error)
}

// Deps are the collaborators of a Machine.
type Deps struct {
	Sessions  *session.Store
	Ledger    *entitlement.Ledger
	Out       chat.Outbound
	Users     Users
	Payments  payment.Verifier
	Access    access.Verifier
	Analyzer  Analyzer
	Reminders Reminders
	Names     names.Extractor
}

// Options tunes a Machine.
type Options struct {
	Tariffs         []payment.Tariff
	CallTimeout     time.Duration
	AnalysisTimeout time.Duration
}

type route struct {
	state session.State
	kind  chat.EventKind
}

type handlerFunc func(m *Machine, ctx context.Context, sess session.Session, ev chat.Event) error

// Machine is safe for concurrent use; events of one user are handled one at a time.
type Machine struct {
	sessions  *session.Store
	ledger    *entitlement.Ledger
	out       chat.Outbound
	users     Users
	payments  payment.Verifier
	access    access.Verifier
	analyzer  Analyzer
	reminders Reminders
	names     names.Extractor
	opts      Options

	locks *userLocks
	table map[route]handlerFunc
}

// New wires a Machine.
func New(deps Deps, opts Options) *Machine {
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = 15 * time.Second
	}
	if opts.AnalysisTimeout <= 0 {
		opts.AnalysisTimeout = 5 * time.Minute
	}
	if len(opts.Tariffs) == 0 {
		opts.Tariffs = payment.DefaultTariffs()
	}
	if deps.Names == nil {
		deps.Names = names.NewRussianExtractor()
	}
	m := &Machine{
		sessions:  deps.Sessions,
		ledger:    deps.Ledger,
		out:       deps.Out,
		users:     deps.Users,
		payments:  deps.Payments,
		access:    deps.Access,
		analyzer:  deps.Analyzer,
		reminders: deps.Reminders,
		names:     deps.Names,
		opts:      opts,
		locks:     newUserLocks(),
	}
	m.table = buildTable()
	return m
}

func buildTable() map[route]handlerFunc {
	t := make(map[route]handlerFunc)
	for _, st := range []session.State{
		session.StateStart,
		session.StateWelcome,
		session.StateQuizResult,
		session.StateAbout,
		session.StateExamples,
		session.StatePricing,
		session.StateAwaitingPayment,
	} {
		t[route{st, chat.EventMenu}] = (*Machine).onNavigate
		t[route{st, chat.EventText}] = (*Machine).onMenuText
	}

	t[route{session.StateCheckingFreeAccess, chat.EventText}] = (*Machine).onContact
	t[route{session.StateCheckingFreeAccess, chat.EventMenu}] = (*Machine).onAccessMenu

	for _, st := range []session.State{
		session.StateAwaitingPhoto,
		session.StateAwaitingRequest,
		session.StateAwaitingName,
	} {
		t[route{st, chat.EventPhoto}] = (*Machine).onPhoto
		t[route{st, chat.EventMenu}] = (*Machine).onWorkMenu
	}
	t[route{session.StateAwaitingPhoto, chat.EventText}] = (*Machine).onTextInsteadOfPhoto
	t[route{session.StateAwaitingRequest, chat.EventText}] = (*Machine).onRequestText
	t[route{session.StateAwaitingName, chat.EventText}] = (*Machine).onName

	for _, k := range []chat.EventKind{chat.EventText, chat.EventPhoto, chat.EventMenu} {
		t[route{session.StateTerminal, k}] = (*Machine).onTerminal
	}
	return t
}

// Active reports whether the user has a session the machine can continue.
func (m *Machine) Active(userID int64) bool {
	return m.sessions.Exists(userID)
}

// State returns the user's current state, or "" without a session.
func (m *Machine) State(userID int64) session.State {
	sess, ok := m.sessions.Get(userID)
	if !ok {
		return ""
	}
	return sess.State
}

// Handle processes one inbound event.
func (m *Machine) Handle(ctx context.Context, ev chat.Event) error {
	unlock := m.locks.lock(ev.UserID)
	defer unlock()

	if ev.ChatID == 0 {
		ev.ChatID = ev.UserID
	}
	// Every interaction refreshes the user row, so last_active stays current
	// and a failed upsert on /start is retried before the analysis needs it.
	m.upsertUser(ctx, ev)
	if ev.Kind == chat.EventCommand {
		switch ev.Command {
		case "start":
			return m.onStart(ctx, ev)
		case "cancel":
			return m.onCancel(ctx, ev)
		}
		return nil
	}

	sess, ok := m.sessions.Get(ev.UserID)
	if !ok {
		_, err := m.out.SendText(ctx, ev.ChatID, textRestart, nil)
		return err
	}
	h, ok := m.table[route{sess.State, ev.Kind}]
	if !ok {
		logger.LogEvent(ctx, logger.SVCFunnel, slog.LevelDebug, "funnel.unhandled",
			slog.Int64("user_id", ev.UserID),
			slog.String("state", string(sess.State)),
			slog.String("kind", ev.Kind.String()),
		)
		_, err := m.out.SendText(ctx, ev.ChatID, textStaleButton, nil)
		return err
	}
	err := h(m, ctx, sess, ev)
	m.logTransition(ctx, sess, ev, err)
	return err
}

func (m *Machine) logTransition(ctx context.Context, before session.Session, ev chat.Event, err error) {
	after, ok := m.sessions.Get(before.UserID)
	if !ok || after.State == before.State && err == nil {
		return
	}
	attrs := []slog.Attr{
		slog.Int64("user_id", before.UserID),
		slog.String("from_state", string(before.State)),
		slog.String("to_state", string(after.State)),
		slog.String("kind", ev.Kind.String()),
		slog.String("funnel_stage", string(after.FunnelStage)),
		slog.String("status", logger.Status(err)),
	}
	if ev.Tag != "" {
		attrs = append(attrs, slog.String("tag", ev.Tag))
	}
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
	}
	logger.LogEvent(ctx, logger.SVCFunnel, slog.LevelInfo, "funnel.transition", attrs...)
}

// moveTo sets the state (and optionally the funnel stage) of the user's session.
func (m *Machine) moveTo(userID int64, st session.State, stage session.FunnelStage) (session.Session, error) {
	return m.sessions.Update(userID, func(s *session.Session) error {
		s.State = st
		if stage != "" {
			s.FunnelStage = stage
		}
		return nil
	})
}

func (m *Machine) send(ctx context.Context, chatID int64, body string, menu *chat.Menu) error {
	_, err := m.out.SendText(ctx, chatID, body, menu)
	return err
}

func (m *Machine) callCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, m.opts.CallTimeout)
}
