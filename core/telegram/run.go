package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	tele "gopkg.in/telebot.v4"

	coreconfig "github.com/m3rciful/scanbot/core/config"
	"github.com/m3rciful/scanbot/core/logger"
	tghelpers "github.com/m3rciful/scanbot/core/telegram/helpers"
	"github.com/m3rciful/scanbot/core/telegram/netutil"
	tgsender "github.com/m3rciful/scanbot/core/telegram/sender"
)

// Middleware describes a global bot middleware to be registered via bot.Use.
type Middleware struct {
	Name string
	Use  func(next tele.HandlerFunc) tele.HandlerFunc
}

// Route declares a single bot handler bound to an arbitrary endpoint.
// Endpoint values are passed directly to tele.Bot.Handle.
type Route struct {
	Endpoint any
	Handler  tele.HandlerFunc
}

// RunOptions controls the behaviour of RunTelegram.
type RunOptions struct {
	Config   *coreconfig.Config
	Registry *Registry

	DispatcherOptions tgsender.Options
	// Dispatcher overrides the one built from DispatcherOptions.
	Dispatcher *tgsender.Dispatcher

	Middlewares []Middleware
	Routes      []Route

	// DisableCommandMenu skips setMyCommands on startup.
	DisableCommandMenu bool

	OnStart func(ctx context.Context, rt Runtime) error
	OnStop  func(ctx context.Context, rt Runtime) error
}

// Runtime exposes runtime components to lifecycle hooks.
// Bot is set before OnStart so adapters that send outside an update can bind to it.
type Runtime struct {
	Bot        *tele.Bot
	Dispatcher *tgsender.Dispatcher
	Registry   *Registry
}

// RunTelegram builds the bot, installs middlewares and routes, and serves
// updates until ctx is done. Cancellation is a clean exit.
func RunTelegram(ctx context.Context, opts RunOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if opts.Config == nil {
		return errors.New("telegram: nil config provided")
	}
	if opts.Registry == nil {
		opts.Registry = NewRegistry()
	}

	bot, err := newBot(ctx, opts.Config)
	if err != nil {
		return err
	}
	rt := Runtime{Bot: bot, Dispatcher: opts.Dispatcher, Registry: opts.Registry}
	if rt.Dispatcher == nil {
		rt.Dispatcher = tgsender.NewDispatcher(opts.DispatcherOptions)
	}
	tghelpers.SetDispatcher(rt.Dispatcher)
	defer closeDispatcher(ctx, rt.Dispatcher)

	install(bot, opts)

	if opts.OnStart != nil {
		if err := opts.OnStart(ctx, rt); err != nil {
			return err
		}
	}
	runErr := serve(ctx, bot)

	var stopErr error
	if opts.OnStop != nil {
		stopErr = opts.OnStop(ctx, rt)
	}
	return errors.Join(stopErr, runErr)
}

func newBot(ctx context.Context, cfg *coreconfig.Config) (*tele.Bot, error) {
	pollerOpts := PollerOptions{
		RunMode:                cfg.Telegram.RunMode,
		LongPollTimeoutSeconds: cfg.Telegram.LongPollTimeoutSeconds,
		Webhook: WebhookOptions{
			Listen: cfg.Webhook.Listen,
			Port:   cfg.Webhook.Port,
			URL:    cfg.Webhook.URL,
		},
	}
	poller := BuildPoller(pollerOpts)
	client := BuildHTTPClient(HTTPClientOptions{LongPoll: pollerOpts.LongPollTimeout(), Retries: 2})

	start := time.Now()
	bot, err := tele.NewBot(tele.Settings{
		Token:   cfg.Telegram.Token,
		Poller:  poller,
		Client:  client,
		OnError: onError,
	})
	if err != nil {
		return nil, fmt.Errorf("telegram: bot initialization failed: %s", netutil.Redact(err))
	}

	attrs := []slog.Attr{slog.Duration("duration", logger.Took(start))}
	if wh, ok := poller.(*tele.Webhook); ok {
		attrs = append(attrs,
			slog.String("mode", RunModeWebhook),
			slog.String("listen", wh.Listen),
			slog.String("public_url", wh.Endpoint.PublicURL),
		)
	} else {
		attrs = append(attrs,
			slog.String("mode", RunModeLongpoll),
			slog.Duration("timeout", pollerOpts.LongPollTimeout()),
		)
		clearWebhook(ctx, client, cfg.Telegram.Token)
	}
	logger.LogEvent(ctx, logger.TG, slog.LevelInfo, "tg.mode", attrs...)
	return bot, nil
}

// clearWebhook removes a webhook left by an earlier webhook-mode run;
// Telegram refuses getUpdates while one is set.
func clearWebhook(ctx context.Context, client *http.Client, token string) {
	err := deleteWebhook(ctx, client, token)
	attrs := []slog.Attr{slog.String("status", logger.Status(err))}
	level := slog.LevelInfo
	if err != nil {
		level = slog.LevelWarn
		attrs = append(attrs, slog.String("err", netutil.Redact(err)))
	}
	logger.LogEvent(ctx, logger.TG, level, "tg.delete_webhook", attrs...)
}

func onError(err error, c tele.Context) {
	ctx := logger.Background()
	if c != nil {
		ctx = tghelpers.BuildContext(c)
	}
	logger.Error(ctx, "tg", "handler.error",
		slog.String("err", logger.SanitizeLimit(netutil.Redact(err), 256)),
		slog.String("error_kind", netutil.Classify(err)),
	)
}

func install(bot *tele.Bot, opts RunOptions) {
	for _, mw := range opts.Middlewares {
		if mw.Use != nil {
			bot.Use(mw.Use)
		}
	}
	for _, route := range opts.Routes {
		if route.Endpoint != nil && route.Handler != nil {
			bot.Handle(route.Endpoint, route.Handler)
		}
	}
	if !opts.DisableCommandMenu {
		InitBotCommands(bot, opts.Registry)
	}
}

// serve runs the poller until ctx ends or the poller stops on its own.
func serve(ctx context.Context, bot *tele.Bot) error {
	done := make(chan struct{})
	go func() {
		defer close(done)
		bot.Start()
	}()
	select {
	case <-ctx.Done():
		bot.Stop()
		<-done
		if errors.Is(ctx.Err(), context.Canceled) {
			return nil
		}
		return ctx.Err()
	case <-done:
		return nil
	}
}

func closeDispatcher(ctx context.Context, d *tgsender.Dispatcher) {
	d.Close()
	tghelpers.SetDispatcher(nil)
	logger.LogEvent(ctx, logger.TG, slog.LevelInfo, "sender.closed",
		slog.Uint64("completed", d.Completed()),
		slog.Uint64("failed", d.ErrorCount()),
	)
}
