package logger

import "strings"

// Level names as written to sinks.
const (
	LevelDebug = "DEBUG"
	LevelInfo  = "INFO"
	LevelWarn  = "WARN"
	LevelError = "ERROR"
	LevelFatal = "FATAL"
)

func normalizeLevel(level string) string {
	switch strings.ToLower(level) {
	case "":
		return LevelInfo
	case "debug", "debug-4":
		return LevelDebug
	case "info":
		return LevelInfo
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	case "fatal":
		return LevelFatal
	}
	return strings.ToUpper(level)
}

// normalizeStatus folds spellings onto the status vocabulary. Unknown values
// are reported as invalid but passed through lower-cased.
func normalizeStatus(status string) (string, bool) {
	status = strings.ToLower(strings.TrimSpace(status))
	switch status {
	case "":
		return "", false
	case "ok", "skip", "retry", "rate_limited":
		return status, true
	case "fail", "error", "failed":
		return "fail", true
	case "cancelled", "canceled":
		return "cancelled", true
	}
	return status, false
}

// normalizeOutcome accepts the narrower outcome vocabulary only.
func normalizeOutcome(outcome string) (string, bool) {
	s, ok := normalizeStatus(outcome)
	if !ok || s == "skip" || s == "retry" {
		return "", false
	}
	return s, true
}

// Key order is grouped by concern; keys not listed follow alphabetically.
var (
	headKeys      = []string{"ts", "level", "component", "event", "status", "rid", "rid_full", "job", "ts_unix_nano"}
	updateKeys    = []string{"update_id", "user_id", "chat_id", "chat_type", "handler", "operation", "op", "cb_key", "outcome"}
	funnelKeys    = []string{"state", "from_state", "to_state", "funnel_stage", "payment_status", "credits", "tariff", "stage"}
	analysisKeys  = []string{"analysis_id", "model", "tokens", "cost_usd", "duration_ms", "messages", "kb", "count", "payload", "lang", "username"}
	transportKeys = []string{"mode", "listen", "public_url", "method", "path", "http_code", "db", "host", "port"}
	errorKeys     = []string{"err", "err_code", "error_kind", "cause", "retryable", "attempts", "backoff_ms", "rate_limited", "pending_count"}

	defaultKeyOrder = concatKeys(headKeys, updateKeys, funnelKeys, analysisKeys, transportKeys, errorKeys)
)

func concatKeys(groups ...[]string) []string {
	var out []string
	for _, g := range groups {
		out = append(out, g...)
	}
	return out
}

// secretKeys are never written in clear.
var secretKeys = map[string]bool{
	"token":          true,
	"password":       true,
	"secret":         true,
	"api_key":        true,
	"webhook_secret": true,
}
