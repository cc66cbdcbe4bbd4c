// Package httpkit builds the outbound HTTP clients every other package
// uses, so timeouts, pooling, and the User-Agent header stay uniform.
package httpkit

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"syscall"
	"time"

	"github.com/Endsi3g/AI-Assistant-Computer/internal/buildinfo"
)

const (
	dialTimeout       = 10 * time.Second
	tlsTimeout        = 10 * time.Second
	headerTimeout     = 15 * time.Second
	idleTimeout       = 90 * time.Second
	maxIdleConns      = 20
	maxIdlePerHost    = 5
	keepAliveInterval = 30 * time.Second
)

// ClientOption configures NewClient.
type ClientOption func(*options)

type options struct {
	timeout    time.Duration
	transport  *http.Transport
	retries    int
	retryDelay time.Duration
	logger     *slog.Logger
}

// WithTimeout sets the whole-request timeout. Zero disables it, which
// streaming callers need.
func WithTimeout(d time.Duration) ClientOption {
	return func(o *options) { o.timeout = d }
}

// WithTransport substitutes a caller-owned transport for the default.
func WithTransport(t *http.Transport) ClientOption {
	return func(o *options) { o.transport = t }
}

// WithRetry retries dial-level failures (host/net unreachable,
// connection refused) up to count times. Those errors happen before the
// server sees any bytes, so a retry cannot duplicate a side effect.
func WithRetry(count int, delay time.Duration) ClientOption {
	return func(o *options) {
		o.retries = count
		o.retryDelay = delay
	}
}

// WithLogger enables retry diagnostics.
func WithLogger(l *slog.Logger) ClientOption {
	return func(o *options) { o.logger = l }
}

// NewTransport returns the pooled transport all clients share by
// default.
func NewTransport() *http.Transport {
	dialer := &net.Dialer{Timeout: dialTimeout, KeepAlive: keepAliveInterval}
	return &http.Transport{
		DialContext:           dialer.DialContext,
		TLSHandshakeTimeout:   tlsTimeout,
		ResponseHeaderTimeout: headerTimeout,
		IdleConnTimeout:       idleTimeout,
		MaxIdleConns:          maxIdleConns,
		MaxIdleConnsPerHost:   maxIdlePerHost,
		ForceAttemptHTTP2:     true,
	}
}

// NewClient assembles an *http.Client. Every client stamps
// buildinfo.UserAgent() on requests that lack a User-Agent.
func NewClient(opts ...ClientOption) *http.Client {
	o := options{timeout: 30 * time.Second}
	for _, apply := range opts {
		apply(&o)
	}

	base := o.transport
	if base == nil {
		base = NewTransport()
	}

	var rt http.RoundTripper = identTransport{next: base}
	if o.retries > 0 {
		rt = &retryTransport{next: rt, retries: o.retries, delay: o.retryDelay, logger: o.logger}
	}

	return &http.Client{Timeout: o.timeout, Transport: rt}
}

// identTransport stamps the build's User-Agent on outgoing requests.
type identTransport struct {
	next http.RoundTripper
}

func (t identTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("User-Agent") == "" {
		// RoundTrippers must not mutate the caller's request.
		req = req.Clone(req.Context())
		req.Header.Set("User-Agent", buildinfo.UserAgent())
	}
	return t.next.RoundTrip(req)
}

// retryTransport re-sends requests that failed before reaching the
// server. Requests with a body are retried only when GetBody can
// rewind it.
type retryTransport struct {
	next    http.RoundTripper
	retries int
	delay   time.Duration
	logger  *slog.Logger
}

func (t *retryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.next.RoundTrip(req)

	for attempt := 1; attempt <= t.retries; attempt++ {
		if err == nil || !dialFailure(err) {
			return resp, err
		}
		if req.Body != nil && req.Body != http.NoBody && req.GetBody == nil {
			return resp, err
		}

		if t.logger != nil {
			t.logger.Debug("retrying after dial failure",
				"method", req.Method, "url", req.URL.String(),
				"attempt", attempt, "error", err)
		}

		timer := time.NewTimer(t.delay)
		select {
		case <-req.Context().Done():
			timer.Stop()
			return nil, req.Context().Err()
		case <-timer.C:
		}

		next := req.Clone(req.Context())
		if req.GetBody != nil {
			body, rewindErr := req.GetBody()
			if rewindErr != nil {
				return nil, fmt.Errorf("retry: rewind body: %w", rewindErr)
			}
			next.Body = body
		}
		resp, err = t.next.RoundTrip(next)
	}

	return resp, err
}

// dialFailure reports whether err is a connect-phase error worth
// retrying. ECONNRESET is excluded: the server may already have acted
// on the request.
func dialFailure(err error) bool {
	var errno syscall.Errno
	if !errors.As(err, &errno) {
		var opErr *net.OpError
		if !errors.As(err, &opErr) || !errors.As(opErr.Err, &errno) {
			return false
		}
	}
	switch errno {
	case syscall.EHOSTUNREACH, syscall.ENETUNREACH, syscall.ECONNREFUSED:
		return true
	}
	return false
}

// DrainAndClose consumes up to limit leftover bytes and closes rc so
// the connection can go back to the pool.
func DrainAndClose(rc io.ReadCloser, limit int64) {
	if rc == nil {
		return
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(rc, limit))
	rc.Close()
}

// ReadErrorBody captures up to limit bytes of a failed response for an
// error message, draining the rest.
func ReadErrorBody(rc io.ReadCloser, limit int64) string {
	if rc == nil {
		return ""
	}
	body, err := io.ReadAll(io.LimitReader(rc, limit))
	DrainAndClose(rc, 1024)
	if err != nil {
		return fmt.Sprintf("(failed to read error body: %v)", err)
	}
	return string(body)
}
