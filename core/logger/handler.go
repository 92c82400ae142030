package logger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"
)

type logFormat string

const (
	formatJSON logFormat = "json"
	formatKV   logFormat = "kv"

	timeFormatMillis = "2006-01-02T15:04:05.000Z07:00"
	redacted         = "[redacted]"
)

var errNoWriter = errors.New("logger: writer not initialized")

type handlerConfig struct {
	level    slog.Leveler
	writer   *asyncWriter
	errors   *asyncWriter // optional copy of WARN and above
	format   logFormat
	keyOrder []string
}

type field struct {
	key string
	val any
}

// structuredHandler flattens every record into one ordered line. Attributes
// bound with With are normalized once, when they are bound.
type structuredHandler struct {
	cfg    handlerConfig
	enc    encoder
	bound  []field
	prefix string
}

func newStructuredHandler(cfg handlerConfig) *structuredHandler {
	if cfg.level == nil {
		cfg.level = slog.LevelInfo
	}
	if cfg.keyOrder == nil {
		cfg.keyOrder = append([]string(nil), defaultKeyOrder...)
	}
	return &structuredHandler{cfg: cfg, enc: newEncoder(cfg.format, cfg.keyOrder)}
}

func (h *structuredHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.cfg.level.Level()
}

func (h *structuredHandler) Handle(ctx context.Context, r slog.Record) error {
	if h.cfg.writer == nil {
		return errNoWriter
	}
	rec := make(record, 16+len(h.bound))
	ts := r.Time.UTC()
	rec["ts"] = ts.Truncate(time.Millisecond).Format(timeFormatMillis)
	rec["level"] = normalizeLevel(r.Level.String())
	if h.cfg.format == formatJSON {
		rec["ts_unix_nano"] = ts.UnixNano()
	}
	for _, f := range h.bound {
		rec[f.key] = f.val
	}
	r.Attrs(func(a slog.Attr) bool {
		h.resolve(a, func(f field) { rec[f.key] = f.val })
		return true
	})
	rec.fromContext(ctx)
	rec.finish(r.Message, h.cfg.format == formatJSON)

	line, err := h.enc.encode(rec)
	if err != nil {
		return err
	}
	line = append(line, '\n')
	if h.cfg.errors != nil && r.Level >= slog.LevelWarn {
		_ = h.cfg.errors.Write(line)
	}
	return h.cfg.writer.Write(line)
}

func (h *structuredHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.bound = append([]field(nil), h.bound...)
	for _, a := range attrs {
		h.resolve(a, func(f field) { clone.bound = append(clone.bound, f) })
	}
	return &clone
}

func (h *structuredHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	clone.prefix = joinKey(h.prefix, name)
	return &clone
}

func (h *structuredHandler) resolve(a slog.Attr, emit func(field)) {
	flatten(h.prefix, a, func(key string, v slog.Value) {
		if val, k, ok := normalizeValue(key, v); ok {
			emit(field{key: k, val: val})
		}
	})
}

func joinKey(prefix, key string) string {
	switch {
	case prefix == "":
		return key
	case key == "":
		return prefix
	}
	return prefix + "." + key
}

func flatten(prefix string, a slog.Attr, fn func(string, slog.Value)) {
	key := joinKey(prefix, a.Key)
	v := a.Value.Resolve()
	if v.Kind() != slog.KindGroup {
		if key != "" {
			fn(key, v)
		}
		return
	}
	for _, child := range v.Group() {
		flatten(key, child, fn)
	}
}

// isSecretKey matches on the last segment so grouped keys like db.password
// are masked too.
func isSecretKey(key string) bool {
	return secretKeys[strings.ToLower(key[strings.LastIndexByte(key, '.')+1:])]
}

// normalizeValue converts v to a JSON-friendly scalar. Durations become
// integer milliseconds under a *_ms key and secret keys are masked.
func normalizeValue(key string, v slog.Value) (any, string, bool) {
	if isSecretKey(key) {
		return redacted, key, true
	}
	switch v.Kind() {
	case slog.KindString:
		return strings.TrimSpace(v.String()), key, true
	case slog.KindBool:
		return v.Bool(), key, true
	case slog.KindInt64:
		return v.Int64(), key, true
	case slog.KindUint64:
		if u := v.Uint64(); u <= math.MaxInt64 {
			return int64(u), key, true
		}
		return v.Uint64(), key, true
	case slog.KindFloat64:
		return v.Float64(), key, true
	case slog.KindDuration:
		return RoundMS(v.Duration()).Milliseconds(), durationKey(key), true
	case slog.KindTime:
		return v.Time().UTC().Format(time.RFC3339Nano), key, true
	}
	switch x := v.Any().(type) {
	case nil:
		return nil, key, false
	case error:
		return x.Error(), key, true
	case time.Duration:
		return RoundMS(x).Milliseconds(), durationKey(key), true
	case fmt.Stringer:
		return x.String(), key, true
	case string:
		return strings.TrimSpace(x), key, true
	default:
		return fmt.Sprint(x), key, true
	}
}

// durationKey maps duration attrs onto *_ms keys so sinks see integers.
func durationKey(key string) string {
	switch {
	case key == "duration":
		return "duration_ms"
	case strings.HasSuffix(key, "_ms"):
		return key
	}
	return key + "_ms"
}

// record is one log line before encoding.
type record map[string]any

func (r record) str(key string) string {
	switch v := r[key].(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}

func (r record) setDefault(key string, val any) {
	if _, ok := r[key]; !ok {
		r[key] = val
	}
}

// fromContext fills request identity from ctx without overriding explicit attrs.
func (r record) fromContext(ctx context.Context) {
	if ctx == nil {
		return
	}
	for key, val := range map[string]any{
		"rid":       RIDFrom(ctx),
		"job":       JobFrom(ctx),
		"handler":   HandlerFrom(ctx),
		"user_id":   UserIDFrom(ctx),
		"chat_id":   ChatIDFrom(ctx),
		"update_id": int64(UpdateIDFrom(ctx)),
	} {
		switch v := val.(type) {
		case string:
			if v != "" {
				r.setDefault(key, v)
			}
		case int64:
			if v != 0 {
				r.setDefault(key, v)
			}
		}
	}
}

// finish applies defaults, compacts the rid and drops empty values.
func (r record) finish(msg string, keepFullRID bool) {
	if rid := r.str("rid"); rid != "" {
		if compact := CompactRID(rid); compact != "" && compact != rid {
			if keepFullRID {
				r.setDefault("rid_full", rid)
			}
			r["rid"] = compact
		}
	}
	if r.str("event") == "" {
		r["event"] = firstOf(msg, "unknown")
	}
	if r.str("component") == "" {
		r["component"] = "app"
	}
	if s := r.str("status"); s != "" {
		r["status"], _ = normalizeStatus(s)
	}
	if o := r.str("outcome"); o != "" {
		if norm, ok := normalizeOutcome(o); ok {
			r["outcome"] = norm
		} else {
			delete(r, "outcome")
		}
	}
	for k, v := range r {
		if v == nil || v == "" {
			delete(r, k)
		}
	}
}

func firstOf(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
