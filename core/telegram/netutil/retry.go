// Package netutil decides how outbound Telegram calls react to failures.
package netutil

import (
	"errors"
	"net"
	"net/url"
	"time"

	tele "gopkg.in/telebot.v4"
)

// maxFloodWait caps how long a single call will honour a 429 retry_after.
const maxFloodWait = 30 * time.Second

// ShouldRetry reports whether err is transient: a dial or timeout failure, a
// Telegram 5xx, or a flood-control reply.
func ShouldRetry(err error) bool {
	if err == nil {
		return false
	}
	if _, ok := RetryAfter(err); ok {
		return true
	}

	var apiErr *tele.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code >= 500
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) && (opErr.Op == "dial" || opErr.Timeout()) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Err != nil && urlErr.Err != err {
		return ShouldRetry(urlErr.Err)
	}
	return false
}

// RetryAfter extracts the wait Telegram asked for in a 429 reply.
func RetryAfter(err error) (time.Duration, bool) {
	var flood tele.FloodError
	if !errors.As(err, &flood) {
		return 0, false
	}
	wait := time.Duration(flood.RetryAfter) * time.Second
	if wait <= 0 {
		wait = time.Second
	}
	return min(wait, maxFloodWait), true
}

// Backoff is the delay before retry number attempt (1-based). Flood replies
// dictate their own wait; everything else grows linearly from base.
func Backoff(base time.Duration, attempt int, err error) time.Duration {
	if wait, ok := RetryAfter(err); ok {
		return wait
	}
	if attempt < 1 {
		attempt = 1
	}
	return base * time.Duration(attempt)
}
