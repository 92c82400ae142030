package telegram

import (
	"net"
	"net/http"
	"time"

	"github.com/m3rciful/scanbot/core/telegram/netutil"
)

// HTTPClientOptions sizes the Bot API client.
type HTTPClientOptions struct {
	// LongPoll is the getUpdates timeout; response deadlines are stretched past it.
	LongPoll time.Duration
	// Upload bounds a whole request, document uploads included.
	Upload       time.Duration
	Retries      int
	RetryBackoff time.Duration
}

func (o *HTTPClientOptions) normalize() {
	if o.LongPoll <= 0 {
		o.LongPoll = 10 * time.Second
	}
	if o.Upload <= 0 {
		o.Upload = 60 * time.Second
	}
	if o.Retries < 0 {
		o.Retries = 0
	}
	if o.RetryBackoff <= 0 {
		o.RetryBackoff = time.Second
	}
}

// BuildHTTPClient returns the client telebot uses for every Bot API call.
func BuildHTTPClient(opts HTTPClientOptions) *http.Client {
	opts.normalize()
	base := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: 5 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          50,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ResponseHeaderTimeout: opts.LongPoll + 10*time.Second,
		ExpectContinueTimeout: time.Second,
	}
	return &http.Client{
		Timeout:   max(opts.Upload, opts.LongPoll+15*time.Second),
		Transport: &retryTransport{base: base, retries: opts.Retries, backoff: opts.RetryBackoff},
	}
}

// retryTransport replays requests that failed before any response arrived.
// Requests whose body cannot be rewound (multipart uploads) are sent once.
type retryTransport struct {
	base    http.RoundTripper
	retries int
	backoff time.Duration
}

func (t *retryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.base.RoundTrip(req)
	for attempt := 1; err != nil && attempt <= t.retries; attempt++ {
		if !netutil.ShouldRetry(err) || (req.Body != nil && req.GetBody == nil) {
			return nil, err
		}
		timer := time.NewTimer(netutil.Backoff(t.backoff, attempt, err))
		select {
		case <-req.Context().Done():
			timer.Stop()
			return nil, req.Context().Err()
		case <-timer.C:
		}
		retry := req.Clone(req.Context())
		if req.GetBody != nil {
			body, berr := req.GetBody()
			if berr != nil {
				return nil, berr
			}
			retry.Body = body
		}
		resp, err = t.base.RoundTrip(retry)
	}
	return resp, err
}
