package logger

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	coreconfig "github.com/m3rciful/scanbot/core/config"
)

// captureLine logs one event through a fresh handler and returns the line.
func captureLine(t *testing.T, format logFormat, ctx context.Context, component, event string, attrs ...slog.Attr) string {
	t.Helper()
	buf := &bytes.Buffer{}
	aw := newAsyncWriter([]io.Writer{buf}, 1024)
	h := newStructuredHandler(handlerConfig{level: slog.LevelDebug, writer: aw, format: format})
	LogEvent(ctx, slog.New(h).With("component", component), slog.LevelInfo, event, attrs...)
	if err := aw.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	line := strings.TrimSpace(buf.String())
	if line == "" {
		t.Fatal("expected a log line")
	}
	return line
}

func assertOrdered(t *testing.T, line string, parts ...string) {
	t.Helper()
	pos := -1
	for _, p := range parts {
		idx := strings.Index(line, p)
		if idx <= pos {
			t.Fatalf("%q missing or out of order in %s", p, line)
		}
		pos = idx
	}
}

func TestHandlerKeyOrder(t *testing.T) {
	ctx := WithUpdateMeta(WithRID(Background(), "rid-123"), 42, 7, 9)

	kv := captureLine(t, formatKV, ctx, "app", "test.event", slog.String("status", "ok"), slog.String("cause", "unit"))
	if !strings.HasPrefix(kv, "ts=") {
		t.Fatalf("kv line must start with ts: %s", kv)
	}
	assertOrdered(t, kv, "level=INFO", "component=app", "event=test.event", "status=ok", "rid=rid-123", "update_id=42", "user_id=7", "chat_id=9")

	js := captureLine(t, formatJSON, ctx, "service.test", "service.failed", slog.String("status", "error"), slog.String("err", "boom"))
	assertOrdered(t, js, `{"ts":`, `"level":"INFO"`, `"component":"service.test"`, `"event":"service.failed"`, `"status":"fail"`, `"rid":"rid-123"`)
}

func TestHandlerCompactRID(t *testing.T) {
	ctx := WithRID(Background(), "12:34:56")
	kv := captureLine(t, formatKV, ctx, "app", "rid.test")
	if !strings.Contains(kv, "rid="+CompactRID("12:34:56")) || strings.Contains(kv, "rid_full=") {
		t.Fatalf("kv rid: %s", kv)
	}
	js := captureLine(t, formatJSON, ctx, "app", "rid.test")
	for _, want := range []string{`"rid":"` + CompactRID("12:34:56") + `"`, `"rid_full":"12:34:56"`, `"ts_unix_nano"`} {
		if !strings.Contains(js, want) {
			t.Fatalf("expected %s in %s", want, js)
		}
	}
}

func TestHandlerDurationKeys(t *testing.T) {
	line := captureLine(t, formatKV, Background(), "service.analysis", "analysis.done",
		slog.Duration("duration", 1500*time.Millisecond),
		slog.Duration("render_duration", 20*time.Millisecond),
		slog.Duration("backoff", 2*time.Second),
		slog.String("state", "awaiting_photo"),
		slog.Int("credits", 0),
	)
	for _, want := range []string{"duration_ms=1500", "render_duration_ms=20", "backoff_ms=2000", "credits=0"} {
		if !strings.Contains(line, want) {
			t.Fatalf("expected %q in %s", want, line)
		}
	}
	assertOrdered(t, line, "state=awaiting_photo", "credits=0")
}

func TestHandlerRedactsSecrets(t *testing.T) {
	line := captureLine(t, formatJSON, Background(), "http", "cfg",
		slog.String("webhook_secret", "whsec_123"),
		slog.Group("db", slog.String("password", "hunter2")),
	)
	if strings.Contains(line, "whsec_123") || strings.Contains(line, "hunter2") {
		t.Fatalf("secret leaked: %s", line)
	}
	for _, want := range []string{`"webhook_secret":"[redacted]"`, `"db.password":"[redacted]"`} {
		if !strings.Contains(line, want) {
			t.Fatalf("expected %s in %s", want, line)
		}
	}
}

func TestIsSecretKey(t *testing.T) {
	for key, want := range map[string]bool{
		"token":           true,
		"db.password":     true,
		"stripe.API_KEY":  true,
		"a.b.secret":      true,
		"token_count":     false,
		"password.length": false,
		"":                false,
	} {
		if got := isSecretKey(key); got != want {
			t.Fatalf("isSecretKey(%q) = %v, want %v", key, got, want)
		}
	}
}

func TestHandlerGroupsAndEmpty(t *testing.T) {
	line := captureLine(t, formatKV, Background(), "", "",
		slog.Group("http", slog.Int("code", 200), slog.String("path", "")),
		slog.String("outcome", "weird"),
		slog.String("text", "a b"),
	)
	for _, want := range []string{"component=app", "event=unknown", "http.code=200", `text="a b"`} {
		if !strings.Contains(line, want) {
			t.Fatalf("expected %q in %s", want, line)
		}
	}
	if strings.Contains(line, "http.path") || strings.Contains(line, "outcome=") {
		t.Fatalf("empty and invalid values must be dropped: %s", line)
	}
}

func TestNormalizeStatus(t *testing.T) {
	cases := map[string]string{"OK": "ok", "error": "fail", "canceled": "cancelled", "odd": "odd"}
	for in, want := range cases {
		if got, _ := normalizeStatus(in); got != want {
			t.Fatalf("normalizeStatus(%q) = %q, want %q", in, got, want)
		}
	}
	if _, ok := normalizeOutcome("skip"); ok {
		t.Fatal("skip is not an outcome")
	}
}

func TestHandlerCopiesWarningsToErrorSink(t *testing.T) {
	mainBuf, errBuf := &bytes.Buffer{}, &bytes.Buffer{}
	mainW := newAsyncWriter([]io.Writer{mainBuf}, 1024)
	errW := newAsyncWriter([]io.Writer{errBuf}, 1024)
	log := slog.New(newStructuredHandler(handlerConfig{
		level:  slog.LevelDebug,
		writer: mainW,
		errors: errW,
		format: formatKV,
	}))
	LogEvent(Background(), log, slog.LevelInfo, "quiet")
	LogEvent(Background(), log, slog.LevelWarn, "loud")
	_ = mainW.Close()
	_ = errW.Close()

	if got := strings.Count(mainBuf.String(), "\n"); got != 2 {
		t.Fatalf("main sink lines = %d", got)
	}
	if !strings.Contains(errBuf.String(), "event=loud") || strings.Contains(errBuf.String(), "event=quiet") {
		t.Fatalf("error sink = %q", errBuf.String())
	}
}

func TestResolveSettings(t *testing.T) {
	s := resolveSettings(nil)
	if s.format != formatJSON || s.level != slog.LevelInfo || s.sampleDen != 50 {
		t.Fatalf("defaults = %+v", s)
	}

	cfg := &coreconfig.Config{Logging: coreconfig.LoggingConfig{
		Profile:     "Dev",
		Level:       "warning",
		KeysOrder:   "event, ,level",
		DebugSample: "1/10",
		Dir:         "/var/log/scanbot",
		BotFile:     "bot.log",
		ErrorsFile:  "errors.log",
	}}
	s = resolveSettings(cfg)
	if s.format != formatKV || s.level != slog.LevelWarn || s.profile != "dev" {
		t.Fatalf("resolved = %+v", s)
	}
	if strings.Join(s.order, ",") != "event,level" || s.sampleNum != 1 || s.sampleDen != 10 {
		t.Fatalf("order/sample = %v %d/%d", s.order, s.sampleNum, s.sampleDen)
	}
	if s.mainFile != "/var/log/scanbot/bot.log" || s.errorsFile != "/var/log/scanbot/errors.log" {
		t.Fatalf("files = %q %q", s.mainFile, s.errorsFile)
	}
}
