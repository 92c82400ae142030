// Package app assembles the scanner bot from its configuration.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"
	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/scanbot/bots/scanner/access"
	"github.com/m3rciful/scanbot/bots/scanner/analysis"
	"github.com/m3rciful/scanbot/bots/scanner/config"
	"github.com/m3rciful/scanbot/bots/scanner/entitlement"
	"github.com/m3rciful/scanbot/bots/scanner/followup"
	"github.com/m3rciful/scanbot/bots/scanner/funnel"
	"github.com/m3rciful/scanbot/bots/scanner/httpapi"
	"github.com/m3rciful/scanbot/bots/scanner/llm"
	"github.com/m3rciful/scanbot/bots/scanner/payment"
	"github.com/m3rciful/scanbot/bots/scanner/render"
	"github.com/m3rciful/scanbot/bots/scanner/session"
	"github.com/m3rciful/scanbot/bots/scanner/storage"
	"github.com/m3rciful/scanbot/bots/scanner/transport"
	"github.com/m3rciful/scanbot/core/bootstrap"
	corecmd "github.com/m3rciful/scanbot/core/cmd"
	"github.com/m3rciful/scanbot/core/logger"
	coretelegram "github.com/m3rciful/scanbot/core/telegram"
	"github.com/m3rciful/scanbot/core/telegram/helpers"
	"github.com/m3rciful/scanbot/core/telegram/router"
	"github.com/m3rciful/scanbot/core/telegram/ui"
)

// App owns every long-lived component of the bot.
type App struct {
	cfg *config.Config
	db  *sqlx.DB

	bot       *transport.BotRef
	sessions  *session.Store
	scheduler *followup.Scheduler
	machine   *funnel.Machine
	handlers  *transport.Handlers
	http      *httpapi.Server

	stopSweep context.CancelFunc
}

// Bootstrap satisfies cmd.Options.Bootstrap.
func Bootstrap(carrier corecmd.ConfigCarrier) (corecmd.TelegramApp, error) {
	cfg, ok := carrier.(*config.Config)
	if !ok {
		return nil, fmt.Errorf("app: unexpected config type %T", carrier)
	}
	res, err := bootstrap.Run(bootstrap.Options{
		Config:   &cfg.Config,
		Database: cfg.Database,
	})
	if err != nil {
		return nil, err
	}
	a, err := New(context.Background(), cfg, res.DB)
	if err != nil {
		_ = res.DB.Close()
		return nil, err
	}
	return a, nil
}

// New wires the components over an open database.
func New(ctx context.Context, cfg *config.Config, db *sqlx.DB) (*App, error) {
	repo := storage.New(db)
	sessions := session.NewStore(session.Options{IdleTTL: cfg.Funnel.SessionTTL})
	ledger := entitlement.NewLedger(sessions)

	chatModel, err := cfg.AI.NewChatModel(ctx)
	if err != nil {
		return nil, fmt.Errorf("app: chat model: %w", err)
	}
	systemPrompt, err := cfg.AI.SystemPrompt()
	if err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}
	generator, err := llm.New(ctx, chatModel, llm.Options{
		Model:        cfg.AI.PriceModel,
		SystemPrompt: systemPrompt,
	})
	if err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}
	renderer, err := render.NewRenderer(render.Options{
		FontDir:     cfg.Render.FontDir,
		RegularFont: cfg.Render.RegularFont,
		BoldFont:    cfg.Render.BoldFont,
		OutputDir:   cfg.Render.OutputDir,
	})
	if err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}

	bot := &transport.BotRef{}
	out := transport.NewOutbound(bot)

	orchestrator := analysis.New(analysis.Deps{
		Generator: generator,
		Renderer:  renderer,
		Store:     repo,
		Photos:    transport.NewPhotos(bot),
		Out:       out,
		Credits:   ledger,
	}, analysis.Options{PhotosDir: cfg.Funnel.PhotosDir})

	scheduler := followup.New(sessions, transport.Queued{Outbound: out}, cfg.Funnel.Stages())

	machine := funnel.New(funnel.Deps{
		Sessions:  sessions,
		Ledger:    ledger,
		Out:       out,
		Users:     repo,
		Payments:  paymentVerifier(cfg.Payment, repo),
		Access:    access.NewPostgres(db),
		Analyzer:  orchestrator,
		Reminders: scheduler,
	}, funnel.Options{
		Tariffs:         cfg.Payment.Tariffs,
		CallTimeout:     cfg.Funnel.CallTimeout,
		AnalysisTimeout: cfg.Funnel.AnalysisTimeout,
	})

	a := &App{
		cfg:       cfg,
		db:        db,
		bot:       bot,
		sessions:  sessions,
		scheduler: scheduler,
		machine:   machine,
		handlers:  transport.NewHandlers(machine, repo),
	}

	if cfg.HTTP.Listen != "" {
		var hook *payment.StripeWebhook
		if cfg.Payment.StripeWebhookSecret != "" {
			hook = &payment.StripeWebhook{
				Secret:   cfg.Payment.StripeWebhookSecret,
				Payments: repo,
				Tariffs:  cfg.Payment.Tariffs,
				Notify:   machine.NotifyPaymentReceived,
			}
		}
		opts := httpapi.Options{
			Ping:         db.PingContext,
			Reports:      repo,
			ReportsToken: cfg.HTTP.ReportsToken,
		}
		if hook != nil {
			opts.Webhook = hook
		}
		a.http = httpapi.NewServer(cfg.HTTP.Listen, httpapi.NewRouter(opts))
	}

	logger.LogEvent(ctx, logger.L, slog.LevelInfo, "app.wired",
		slog.String("payment_mode", cfg.Payment.Mode),
		slog.Int("tariffs", len(cfg.Payment.Tariffs)),
		slog.Int("followups", len(cfg.Funnel.Stages())),
		slog.Bool("http", a.http != nil),
	)
	return a, nil
}

func paymentVerifier(cfg config.PaymentConfig, repo *storage.Repository) payment.Verifier {
	if cfg.Mode == config.PaymentModeLedger {
		return payment.NewLedger(repo)
	}
	return payment.Stub{Credits: cfg.DefaultCredits}
}

// TelegramRunOptions satisfies cmd.TelegramApp.
func (a *App) TelegramRunOptions() (coretelegram.RunOptions, error) {
	reg := coretelegram.NewRegistry()
	if err := a.handlers.Register(reg); err != nil {
		return coretelegram.RunOptions{}, err
	}
	fallbacks := ui.Replies{
		Text:     "Нажми /start, чтобы начать 🙂",
		Photo:    "Чтобы провести сканирование, сначала нажми /start",
		Callback: "Кнопка устарела, нажми /start",
	}
	reg.SetCallbackNotFound(fallbacks.UnknownCallback())

	routes := router.CommandRoutes(reg, router.CommandRouteOptions{
		AdminID: a.cfg.Telegram.AdminID,
		OnAdminReject: func(c tele.Context) error {
			return helpers.SendHTML(c, "Команда доступна только администратору")
		},
	})
	routes = append(routes, router.CallbackRoute(reg, router.CallbackOptions{
		NotFound: fallbacks.UnknownCallback(),
	}))
	routes = append(routes, router.MessageRoutes(a.handlers, reg, router.MessageOptions{
		UnknownText:  fallbacks.UnknownText(),
		UnknownPhoto: fallbacks.UnknownPhoto(),
	})...)

	onLimited := func(c tele.Context) error {
		return helpers.SendHTML(c, "Слишком часто 🙏 Подожди секунду и попробуй снова")
	}

	return coretelegram.RunOptions{
		Config:      &a.cfg.Config,
		Registry:    reg,
		Middlewares: coretelegram.DefaultMiddlewares(&a.cfg.Config, onLimited),
		Routes:      routes,
		OnStart:     a.onStart,
		OnStop:      a.onStop,
	}, nil
}

func (a *App) onStart(ctx context.Context, rt coretelegram.Runtime) error {
	a.bot.Bind(rt.Bot)

	sweepCtx, cancel := context.WithCancel(logger.WithJob(context.WithoutCancel(ctx), "sessions.sweep", 0))
	a.stopSweep = cancel
	go a.sessions.Run(sweepCtx, a.cfg.Funnel.SweepInterval)

	if a.http != nil {
		if err := a.http.Start(ctx); err != nil {
			cancel()
			return err
		}
	}
	return nil
}

func (a *App) onStop(ctx context.Context, _ coretelegram.Runtime) error {
	a.scheduler.Stop()
	if a.stopSweep != nil {
		a.stopSweep()
	}
	var httpErr error
	if a.http != nil {
		httpErr = a.http.Shutdown(ctx)
	}
	if err := a.db.Close(); err != nil {
		logger.LogEvent(ctx, logger.DB, slog.LevelWarn, "db.close",
			slog.String("err", err.Error()),
		)
	}
	return httpErr
}
