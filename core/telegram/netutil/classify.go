package netutil

import (
	"context"
	"crypto/tls"
	"errors"
	"net"
	"regexp"

	tele "gopkg.in/telebot.v4"
)

var tokenRe = regexp.MustCompile(`bot[0-9]+:[A-Za-z0-9_-]+`)

// Classify buckets err for the error_kind log field.
func Classify(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	}
	if _, ok := RetryAfter(err); ok {
		return "flood"
	}

	var apiErr *tele.Error
	if errors.As(err, &apiErr) {
		if apiErr.Code >= 500 {
			return "http_5xx"
		}
		return "http_4xx"
	}
	var groupErr tele.GroupError
	if errors.As(err, &groupErr) {
		return "http_4xx"
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		if dnsErr.IsTimeout {
			return "timeout"
		}
		return "dns"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "timeout"
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return "dial"
	}
	var alertErr tls.AlertError
	if errors.As(err, &alertErr) {
		return "tls"
	}
	return "unknown"
}

// Redact hides bot tokens that net/http embeds in request URLs.
func Redact(err error) string {
	if err == nil {
		return ""
	}
	return tokenRe.ReplaceAllString(err.Error(), "bot<redacted>")
}
