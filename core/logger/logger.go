// Package logger is the structured logging layer: a slog handler with a fixed
// key order, request identity carried in context, and per-component loggers.
package logger

import (
	"context"
	"errors"
	"io"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/m3rciful/scanbot/core/buildinfo"
	coreconfig "github.com/m3rciful/scanbot/core/config"
)

var (
	initOnce sync.Once
	closeMu  sync.Mutex
	closed   bool
	sinks    []*asyncWriter
	files    []io.Closer

	levelVar      slog.LevelVar
	debugSampler  = newRatioSampler(1, 50)
	traceOverride bool

	// L is the base logger; nil until InitLogger runs.
	L *slog.Logger

	DB          *slog.Logger // database connection events
	TG          *slog.Logger // Telegram transport
	MIG         *slog.Logger // schema migrations
	TWire       *slog.Logger // handler registration and routing setup
	HTTP        *slog.Logger // webhook and report server
	SVCFunnel   *slog.Logger // conversation transitions
	SVCFollowup *slog.Logger // reminder scheduling and delivery
	SVCAnalysis *slog.Logger // analysis orchestration
	SVCAccess   *slog.Logger // free-access checks and activations
	SVCPayments *slog.Logger // payment verification and webhooks
	SVCSessions *slog.Logger // session store housekeeping
)

// Component loggers discard output until InitLogger replaces them, so
// packages can log unconditionally in tests.
func init() {
	wireComponents(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

// settings is the logging configuration after defaults are applied.
type settings struct {
	format     logFormat
	level      slog.Level
	order      []string
	sampleNum  int
	sampleDen  int
	profile    string
	mainFile   string
	errorsFile string
}

func resolveSettings(cfg *coreconfig.Config) settings {
	s := settings{
		format:    formatJSON,
		level:     slog.LevelInfo,
		order:     append([]string(nil), defaultKeyOrder...),
		sampleNum: 1,
		sampleDen: 50,
		profile:   "prod",
	}
	if cfg == nil {
		return s
	}
	lc := cfg.Logging
	if p := strings.ToLower(strings.TrimSpace(lc.Profile)); p != "" {
		s.profile = p
	}
	switch strings.ToLower(strings.TrimSpace(lc.Format)) {
	case "kv", "text", "pretty":
		s.format = formatKV
	case "json":
	default:
		if s.profile == "dev" || s.profile == "debug" {
			s.format = formatKV
		}
	}
	switch strings.ToLower(strings.TrimSpace(lc.Level)) {
	case "debug":
		s.level = slog.LevelDebug
	case "warn", "warning":
		s.level = slog.LevelWarn
	case "error":
		s.level = slog.LevelError
	}
	if raw := strings.TrimSpace(lc.KeysOrder); raw != "" && raw != "default" {
		var order []string
		for _, k := range strings.Split(raw, ",") {
			if k = strings.TrimSpace(k); k != "" {
				order = append(order, k)
			}
		}
		if len(order) > 0 {
			s.order = order
		}
	}
	if spec := strings.TrimSpace(lc.DebugSample); spec != "" {
		s.sampleNum, s.sampleDen = parseRatioSpec(spec)
	}
	if dir := strings.TrimSpace(lc.Dir); dir != "" {
		if f := strings.TrimSpace(lc.BotFile); f != "" {
			s.mainFile = filepath.Join(dir, f)
		}
		if f := strings.TrimSpace(lc.ErrorsFile); f != "" {
			s.errorsFile = filepath.Join(dir, f)
		}
	}
	return s
}

// InitLogger configures the global structured logger. Only the first call
// has any effect.
func InitLogger(cfg *coreconfig.Config) error {
	initOnce.Do(func() {
		s := resolveSettings(cfg)
		levelVar.Set(s.level)
		debugSampler.Set(s.sampleNum, s.sampleDen)
		traceOverride = isTruthy(os.Getenv("TRACE")) || isTruthy(os.Getenv("LOG_TRACE"))

		main := newAsyncWriter(append([]io.Writer{os.Stdout}, openSink(s.mainFile)...), 64*1024)
		sinks = append(sinks, main)
		hc := handlerConfig{level: &levelVar, writer: main, format: s.format, keyOrder: s.order}
		if errSinks := openSink(s.errorsFile); len(errSinks) > 0 {
			hc.errors = newAsyncWriter(errSinks, 16*1024)
			sinks = append(sinks, hc.errors)
		}

		L = slog.New(newStructuredHandler(hc))
		slog.SetDefault(L)
		wireComponents(L)
		L.LogAttrs(context.Background(), slog.LevelInfo, "startup",
			slog.String("component", "app"),
			slog.String("event", "startup"),
			slog.String("go_version", runtime.Version()),
			slog.String("build", buildinfo.String()),
			slog.String("cfg_profile", s.profile),
			slog.String("format", string(s.format)),
		)
	})
	return nil
}

// openSink opens path for appending. Failures fall back to stdout only.
func openSink(path string) []io.Writer {
	if path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		log.Printf("logger: create log dir for %s: %v", path, err)
		return nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		log.Printf("logger: open %s: %v", path, err)
		return nil
	}
	files = append(files, f)
	return []io.Writer{f}
}

func wireComponents(base *slog.Logger) {
	c := func(name string) *slog.Logger { return base.With("component", name) }
	DB, TG, MIG, TWire, HTTP = c("db"), c("tg"), c("db.migrate"), c("tg.wire"), c("http")
	SVCFunnel = c("service.funnel")
	SVCFollowup = c("service.followup")
	SVCAnalysis = c("service.analysis")
	SVCAccess = c("service.access")
	SVCPayments = c("service.payments")
	SVCSessions = c("service.sessions")
}

// Shutdown flushes buffered output and closes log files. It is idempotent.
func Shutdown() error {
	closeMu.Lock()
	defer closeMu.Unlock()
	if closed {
		return nil
	}
	closed = true

	var errs []error
	for _, w := range sinks {
		errs = append(errs, w.Close())
	}
	for _, f := range files {
		errs = append(errs, f.Close())
	}
	return errors.Join(errs...)
}

func isTruthy(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "on", "yes":
		return true
	}
	return false
}

// ShouldSampleDebug reports whether a high-volume debug event should be logged.
func ShouldSampleDebug() bool {
	return traceOverride || debugSampler.Allow()
}

// TraceEnabled reports whether TRACE forces full debug output.
func TraceEnabled() bool {
	return traceOverride
}
