package logger

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
)

type ctxKey int

const (
	keyRID ctxKey = iota
	keyUpdateID
	keyUserID
	keyChatID
	keyLogger
	keyHandler
	keyJob
)

func with(ctx context.Context, key ctxKey, v any) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, key, v)
}

func value[T any](ctx context.Context, key ctxKey) (T, bool) {
	var zero T
	if ctx == nil {
		return zero, false
	}
	v, ok := ctx.Value(key).(T)
	if !ok {
		return zero, false
	}
	return v, true
}

// WithLogger stores log in ctx; FromContext returns it to LogEvent callers passing nil.
func WithLogger(ctx context.Context, log *slog.Logger) context.Context {
	if log == nil {
		if ctx == nil {
			return context.Background()
		}
		return ctx
	}
	return with(ctx, keyLogger, log)
}

// FromContext returns the logger stored in ctx or the global one.
func FromContext(ctx context.Context) *slog.Logger {
	if l, ok := value[*slog.Logger](ctx, keyLogger); ok && l != nil {
		return l
	}
	return L
}

// WithRID attaches the correlation id.
func WithRID(ctx context.Context, rid string) context.Context {
	return with(ctx, keyRID, rid)
}

// RIDFrom returns the correlation id, if any.
func RIDFrom(ctx context.Context) string {
	rid, _ := value[string](ctx, keyRID)
	return rid
}

// WithUpdateMeta attaches the Telegram update identifiers.
func WithUpdateMeta(ctx context.Context, updateID int, userID, chatID int64) context.Context {
	ctx = with(ctx, keyUpdateID, updateID)
	ctx = with(ctx, keyUserID, userID)
	return with(ctx, keyChatID, chatID)
}

// WithHandler names the handler serving the update.
func WithHandler(ctx context.Context, handler string) context.Context {
	if handler == "" {
		if ctx == nil {
			return context.Background()
		}
		return ctx
	}
	return with(ctx, keyHandler, handler)
}

// HandlerFrom returns the handler name, if any.
func HandlerFrom(ctx context.Context) string {
	h, _ := value[string](ctx, keyHandler)
	return h
}

// WithJob marks ctx as belonging to background work done for userID outside of
// an update: reminders, webhook confirmations, housekeeping. It sets a rid of
// the form job:user so the lines still correlate per user.
func WithJob(ctx context.Context, job string, userID int64) context.Context {
	ctx = with(ctx, keyJob, job)
	if userID != 0 {
		ctx = with(ctx, keyUserID, userID)
		ctx = with(ctx, keyChatID, userID)
	}
	return WithRID(ctx, job+":"+strconv.FormatInt(userID, 10))
}

// JobFrom returns the background job name, if any.
func JobFrom(ctx context.Context) string {
	j, _ := value[string](ctx, keyJob)
	return j
}

// UserIDFrom returns the Telegram user id.
func UserIDFrom(ctx context.Context) int64 {
	id, _ := value[int64](ctx, keyUserID)
	return id
}

// ChatIDFrom returns the chat id.
func ChatIDFrom(ctx context.Context) int64 {
	id, _ := value[int64](ctx, keyChatID)
	return id
}

// UpdateIDFrom returns the update id.
func UpdateIDFrom(ctx context.Context) int {
	id, _ := value[int](ctx, keyUpdateID)
	return id
}

// BuildRID formats updateID:chatID:userID.
func BuildRID(updateID int, chatID, userID int64) string {
	return fmt.Sprintf("%d:%d:%d", updateID, chatID, userID)
}

// CompactRID rewrites a numeric three-part rid into dot-separated base36.
// Anything else is returned as is.
func CompactRID(rid string) string {
	rid = strings.TrimSpace(rid)
	parts := strings.Split(rid, ":")
	if len(parts) != 3 {
		return rid
	}
	for i, part := range parts {
		n, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
		if err != nil {
			return rid
		}
		parts[i] = strconv.FormatInt(n, 36)
	}
	return strings.Join(parts, ".")
}
